package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/nusalink-net/crm-api/internal/domain"
	"gorm.io/gorm"
)

type DealStatusHistoryRepository struct {
	db *gorm.DB
}

func NewDealStatusHistoryRepository(db *gorm.DB) *DealStatusHistoryRepository {
	return &DealStatusHistoryRepository{db: db}
}

func (r *DealStatusHistoryRepository) Create(ctx context.Context, entry *domain.DealStatusHistory) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// CreateInTx records a status transition inside an existing transaction
func (r *DealStatusHistoryRepository) CreateInTx(tx *gorm.DB, entry *domain.DealStatusHistory) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return tx.Create(entry).Error
}

// ListByDeal returns the status history for a deal, oldest first
func (r *DealStatusHistoryRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]domain.DealStatusHistory, error) {
	var entries []domain.DealStatusHistory
	err := r.db.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Order("changed_at ASC").
		Find(&entries).Error
	return entries, err
}
