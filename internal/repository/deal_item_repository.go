package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/nusalink-net/crm-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DealItemRepository struct {
	db *gorm.DB
}

func NewDealItemRepository(db *gorm.DB) *DealItemRepository {
	return &DealItemRepository{db: db}
}

func (r *DealItemRepository) Create(ctx context.Context, item *domain.DealItem) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(item).Error
}

func (r *DealItemRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.DealItem, error) {
	var item domain.DealItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("id = ?", id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *DealItemRepository) Update(ctx context.Context, item *domain.DealItem) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(item).Error
}

func (r *DealItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.DealItem{}, "id = ?", id).Error
}

// ListByDeal returns all items for a deal in insertion order
func (r *DealItemRepository) ListByDeal(ctx context.Context, dealID uuid.UUID) ([]domain.DealItem, error) {
	var items []domain.DealItem
	err := r.db.WithContext(ctx).
		Preload("Product").
		Where("deal_id = ?", dealID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// ListByDealInTx returns all items for a deal inside an existing transaction
func (r *DealItemRepository) ListByDealInTx(tx *gorm.DB, dealID uuid.UUID) ([]domain.DealItem, error) {
	var items []domain.DealItem
	err := tx.Where("deal_id = ?", dealID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

// CountByDeal returns the number of items on a deal
func (r *DealItemRepository) CountByDeal(ctx context.Context, dealID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.DealItem{}).
		Where("deal_id = ?", dealID).
		Count(&count).Error
	return count, err
}
