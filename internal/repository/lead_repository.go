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

// LeadFilters contains all filter options for listing leads
type LeadFilters struct {
	Status        *domain.LeadStatus
	SalesID       *string
	Source        *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	SearchQuery   *string
}

// LeadSortOption represents available sort options
type LeadSortOption string

const (
	LeadSortByCreatedDesc LeadSortOption = "created_desc"
	LeadSortByCreatedAsc  LeadSortOption = "created_asc"
	LeadSortByNameAsc     LeadSortOption = "name_asc"
	LeadSortByNameDesc    LeadSortOption = "name_desc"
)

type LeadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

func (r *LeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(lead).Error
}

func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	var lead domain.Lead
	query := r.db.WithContext(ctx).Where("id = ?", id)
	query = ApplySalesScope(ctx, query)
	err := query.First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *LeadRepository) Update(ctx context.Context, lead *domain.Lead) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(lead).Error
}

func (r *LeadRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Lead{}, "id = ?", id).Error
}

func (r *LeadRepository) List(ctx context.Context, page, pageSize int, filters *LeadFilters, sortBy LeadSortOption) ([]domain.Lead, int64, error) {
	var leads []domain.Lead
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Lead{})

	// Apply per-rep ownership filter from context
	query = ApplySalesScope(ctx, query)

	query = r.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = r.applySorting(query, sortBy)

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Find(&leads).Error

	return leads, total, err
}

// UpdateStatus updates only the status field
func (r *LeadRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.LeadStatus) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	return r.db.WithContext(ctx).Model(&domain.Lead{}).Where("id = ?", id).Updates(updates).Error
}

// MarkConverted marks a lead as closed_won inside an existing transaction.
// Called from the deal close fan-out.
func (r *LeadRepository) MarkConverted(tx *gorm.DB, id uuid.UUID) error {
	updates := map[string]interface{}{
		"status":     domain.LeadStatusClosedWon,
		"updated_at": time.Now(),
	}
	return tx.Model(&domain.Lead{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateStatusInTx updates only the status field inside an existing transaction
func (r *LeadRepository) UpdateStatusInTx(tx *gorm.DB, id uuid.UUID, status domain.LeadStatus) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	return tx.Model(&domain.Lead{}).Where("id = ?", id).Updates(updates).Error
}

// CountByStatus returns lead counts grouped by status
func (r *LeadRepository) CountByStatus(ctx context.Context) (map[domain.LeadStatus]int64, error) {
	type statusRow struct {
		Status domain.LeadStatus
		Count  int64
	}

	var rows []statusRow
	query := r.db.WithContext(ctx).Model(&domain.Lead{}).
		Select("status, COUNT(*) as count").
		Group("status")
	query = ApplySalesScope(ctx, query)
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[domain.LeadStatus]int64)
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Search performs a case-insensitive search on leads
func (r *LeadRepository) Search(ctx context.Context, searchQuery string, limit int) ([]domain.Lead, error) {
	var leads []domain.Lead
	searchPattern := "%" + strings.ToLower(searchQuery) + "%"
	query := r.db.WithContext(ctx).
		Where("LOWER(name) LIKE ? OR LOWER(company_name) LIKE ? OR LOWER(email) LIKE ?",
			searchPattern, searchPattern, searchPattern)
	query = ApplySalesScope(ctx, query)
	err := query.Limit(limit).Order("created_at DESC").Find(&leads).Error
	return leads, err
}

func (r *LeadRepository) applyFilters(query *gorm.DB, filters *LeadFilters) *gorm.DB {
	if filters == nil {
		return query
	}

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	if filters.SalesID != nil {
		query = query.Where("sales_id = ?", *filters.SalesID)
	}

	if filters.Source != nil {
		query = query.Where("source = ?", *filters.Source)
	}

	if filters.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filters.CreatedAfter)
	}

	if filters.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filters.CreatedBefore)
	}

	if filters.SearchQuery != nil && *filters.SearchQuery != "" {
		searchPattern := "%" + strings.ToLower(*filters.SearchQuery) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(company_name) LIKE ?", searchPattern, searchPattern)
	}

	return query
}

func (r *LeadRepository) applySorting(query *gorm.DB, sortBy LeadSortOption) *gorm.DB {
	switch sortBy {
	case LeadSortByCreatedAsc:
		return query.Order("created_at ASC")
	case LeadSortByNameAsc:
		return query.Order("name ASC")
	case LeadSortByNameDesc:
		return query.Order("name DESC")
	default: // LeadSortByCreatedDesc
		return query.Order("created_at DESC")
	}
}
