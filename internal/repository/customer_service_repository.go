package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/nusalink-net/crm-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CustomerServiceRepository struct {
	db *gorm.DB
}

func NewCustomerServiceRepository(db *gorm.DB) *CustomerServiceRepository {
	return &CustomerServiceRepository{db: db}
}

func (r *CustomerServiceRepository) Create(ctx context.Context, svc *domain.CustomerService) error {
	if svc.ID == uuid.Nil {
		svc.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(svc).Error
}

// CreateInTx persists a service inside an existing transaction (conversion fan-out)
func (r *CustomerServiceRepository) CreateInTx(tx *gorm.DB, svc *domain.CustomerService) error {
	if svc.ID == uuid.Nil {
		svc.ID = uuid.New()
	}
	return tx.Omit(clause.Associations).Create(svc).Error
}

func (r *CustomerServiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.CustomerService, error) {
	var svc domain.CustomerService
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("id = ?", id).
		First(&svc).Error
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *CustomerServiceRepository) GetByNumber(ctx context.Context, serviceNumber string) (*domain.CustomerService, error) {
	var svc domain.CustomerService
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("service_number = ?", serviceNumber).
		First(&svc).Error
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

func (r *CustomerServiceRepository) Update(ctx context.Context, svc *domain.CustomerService) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(svc).Error
}

// ListByCustomer returns all services under a customer
func (r *CustomerServiceRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]domain.CustomerService, error) {
	var services []domain.CustomerService
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("customer_id = ?", customerID).
		Order("created_at ASC").
		Find(&services).Error
	return services, err
}

// ListByDeal returns all services created from a deal
func (r *CustomerServiceRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]domain.CustomerService, error) {
	var services []domain.CustomerService
	err := r.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("created_at ASC").
		Find(&services).Error
	return services, err
}

// ActiveSummary holds recurring revenue aggregates for active services
type ActiveSummary struct {
	Count           int64
	MonthlyFee      float64
	InstallationFee float64
}

// GetActiveSummary returns count and fee totals for active services
func (r *CustomerServiceRepository) GetActiveSummary(ctx context.Context) (*ActiveSummary, error) {
	result := &ActiveSummary{}
	err := r.db.WithContext(ctx).Model(&domain.CustomerService{}).
		Select("COUNT(*) as count, COALESCE(SUM(monthly_fee), 0) as monthly_fee, COALESCE(SUM(installation_fee), 0) as installation_fee").
		Where("status = ?", domain.ServiceStatusActive).
		Scan(result).Error
	return result, err
}

// ListExpiring returns active services whose end date falls on or before the cutoff
func (r *CustomerServiceRepository) ListExpiring(ctx context.Context, cutoff time.Time) ([]domain.CustomerService, error) {
	var services []domain.CustomerService
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Where("status = ?", domain.ServiceStatusActive).
		Where("end_date IS NOT NULL AND end_date <= ?", cutoff).
		Order("end_date ASC").
		Find(&services).Error
	return services, err
}

// UpdateStatus updates only the status field
func (r *CustomerServiceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.ServiceStatus) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	return r.db.WithContext(ctx).Model(&domain.CustomerService{}).Where("id = ?", id).Updates(updates).Error
}
