package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nusalink-net/crm-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomerFilters contains all filter options for listing customers
type CustomerFilters struct {
	Status        *domain.CustomerStatus
	CustomerType  *domain.CustomerType
	SalesID       *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	SearchQuery   *string
}

type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

func (r *CustomerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(customer).Error
}

// CreateInTx persists a customer inside an existing transaction (conversion fan-out)
func (r *CustomerRepository) CreateInTx(tx *gorm.DB, customer *domain.Customer) error {
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	return tx.Omit(clause.Associations).Create(customer).Error
}

func (r *CustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	var customer domain.Customer
	query := r.db.WithContext(ctx).
		Preload("Services").
		Preload("Lead").
		Where("id = ?", id)
	query = ApplySalesScope(ctx, query)
	err := query.First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *CustomerRepository) GetByNumber(ctx context.Context, customerNumber string) (*domain.Customer, error) {
	var customer domain.Customer
	query := r.db.WithContext(ctx).
		Preload("Services").
		Where("customer_number = ?", customerNumber)
	query = ApplySalesScope(ctx, query)
	err := query.First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *CustomerRepository) Update(ctx context.Context, customer *domain.Customer) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(customer).Error
}

// Delete removes a customer. Callers must verify the customer has no
// services first.
func (r *CustomerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Customer{}, "id = ?", id).Error
}

func (r *CustomerRepository) List(ctx context.Context, page, pageSize int, filters *CustomerFilters) ([]domain.Customer, int64, error) {
	var customers []domain.Customer
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Customer{}).Preload("Services")

	// Apply per-rep ownership filter from context
	query = ApplySalesScope(ctx, query)

	query = r.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&customers).Error

	return customers, total, err
}

// CountByStatus returns customer counts grouped by status
func (r *CustomerRepository) CountByStatus(ctx context.Context) (map[domain.CustomerStatus]int64, error) {
	type statusRow struct {
		Status domain.CustomerStatus
		Count  int64
	}

	var rows []statusRow
	query := r.db.WithContext(ctx).Model(&domain.Customer{}).
		Select("status, COUNT(*) as count").
		Group("status")
	query = ApplySalesScope(ctx, query)
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[domain.CustomerStatus]int64)
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Search performs a case-insensitive search on customers
func (r *CustomerRepository) Search(ctx context.Context, searchQuery string, limit int) ([]domain.Customer, error) {
	var customers []domain.Customer
	searchPattern := "%" + strings.ToLower(searchQuery) + "%"
	query := r.db.WithContext(ctx).
		Where("LOWER(name) LIKE ? OR LOWER(customer_number) LIKE ? OR LOWER(email) LIKE ?",
			searchPattern, searchPattern, searchPattern)
	query = ApplySalesScope(ctx, query)
	err := query.Limit(limit).Order("created_at DESC").Find(&customers).Error
	return customers, err
}

func (r *CustomerRepository) applyFilters(query *gorm.DB, filters *CustomerFilters) *gorm.DB {
	if filters == nil {
		return query
	}

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	if filters.CustomerType != nil {
		query = query.Where("customer_type = ?", *filters.CustomerType)
	}

	if filters.SalesID != nil {
		query = query.Where("sales_id = ?", *filters.SalesID)
	}

	if filters.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filters.CreatedAfter)
	}

	if filters.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filters.CreatedBefore)
	}

	if filters.SearchQuery != nil && *filters.SearchQuery != "" {
		searchPattern := "%" + strings.ToLower(*filters.SearchQuery) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(customer_number) LIKE ?", searchPattern, searchPattern)
	}

	return query
}
