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

// DealFilters contains all filter options for listing deals
type DealFilters struct {
	Status        *domain.DealStatus
	LeadID        *uuid.UUID
	SalesID       *string
	NeedsApproval *bool
	MinAmount     *float64
	MaxAmount     *float64
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	SearchQuery   *string
}

// DealSortOption represents available sort options
type DealSortOption string

const (
	DealSortByCreatedDesc DealSortOption = "created_desc"
	DealSortByCreatedAsc  DealSortOption = "created_asc"
	DealSortByAmountDesc  DealSortOption = "amount_desc"
	DealSortByAmountAsc   DealSortOption = "amount_asc"
)

type DealRepository struct {
	db *gorm.DB
}

func NewDealRepository(db *gorm.DB) *DealRepository {
	return &DealRepository{db: db}
}

func (r *DealRepository) Create(ctx context.Context, deal *domain.Deal) error {
	if deal.ID == uuid.Nil {
		deal.ID = uuid.New()
	}
	// Omit associations to avoid GORM trying to validate related records
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(deal).Error
}

func (r *DealRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Deal, error) {
	var deal domain.Deal
	query := r.db.WithContext(ctx).
		Preload("Lead").
		Preload("Items").
		Where("id = ?", id)
	query = ApplySalesScope(ctx, query)
	err := query.First(&deal).Error
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

// GetByIDForUpdate loads a deal with a row lock inside an existing transaction.
// Approval and close operations use this to serialize concurrent decisions on
// the same deal.
func (r *DealRepository) GetByIDForUpdate(tx *gorm.DB, id uuid.UUID) (*domain.Deal, error) {
	var deal domain.Deal
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&deal).Error
	if err != nil {
		return nil, err
	}
	return &deal, nil
}

func (r *DealRepository) Update(ctx context.Context, deal *domain.Deal) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(deal).Error
}

func (r *DealRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&domain.Deal{}, "id = ?", id).Error
}

func (r *DealRepository) List(ctx context.Context, page, pageSize int, filters *DealFilters, sortBy DealSortOption) ([]domain.Deal, int64, error) {
	var deals []domain.Deal
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Deal{}).Preload("Lead").Preload("Items")

	// Apply per-rep ownership filter from context
	query = ApplySalesScope(ctx, query)

	query = r.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = r.applySorting(query, sortBy)

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Find(&deals).Error

	return deals, total, err
}

// GetByLead returns all deals attached to a lead
func (r *DealRepository) GetByLead(ctx context.Context, leadID uuid.UUID) ([]domain.Deal, error) {
	var deals []domain.Deal
	query := r.db.WithContext(ctx).
		Preload("Items").
		Where("lead_id = ?", leadID)
	query = ApplySalesScope(ctx, query)
	err := query.Order("created_at DESC").Find(&deals).Error
	return deals, err
}

// GetPendingApproval returns deals waiting for a manager decision
func (r *DealRepository) GetPendingApproval(ctx context.Context) ([]domain.Deal, error) {
	var deals []domain.Deal
	err := r.db.WithContext(ctx).
		Preload("Lead").
		Preload("Items").
		Where("status = ?", domain.DealStatusWaitingApproval).
		Order("updated_at ASC").
		Find(&deals).Error
	return deals, err
}

// CountPendingApproval returns the number of deals waiting for a decision
func (r *DealRepository) CountPendingApproval(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Deal{}).
		Where("status = ?", domain.DealStatusWaitingApproval).
		Count(&count).Error
	return count, err
}

// CountByStatus returns deal counts grouped by status
func (r *DealRepository) CountByStatus(ctx context.Context) (map[domain.DealStatus]int64, error) {
	type statusRow struct {
		Status domain.DealStatus
		Count  int64
	}

	var rows []statusRow
	query := r.db.WithContext(ctx).Model(&domain.Deal{}).
		Select("status, COUNT(*) as count").
		Group("status")
	query = ApplySalesScope(ctx, query)
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[domain.DealStatus]int64)
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// WonSummary holds closed-won aggregates for reporting
type WonSummary struct {
	Count          int64
	FinalAmount    float64
	DiscountAmount float64
}

// GetWonSummary returns count and amount totals for closed-won deals in a date range
func (r *DealRepository) GetWonSummary(ctx context.Context, from, to *time.Time) (*WonSummary, error) {
	result := &WonSummary{}
	query := r.db.WithContext(ctx).Model(&domain.Deal{}).
		Select("COUNT(*) as count, COALESCE(SUM(final_amount), 0) as final_amount, COALESCE(SUM(discount_amount), 0) as discount_amount").
		Where("status = ?", domain.DealStatusClosedWon)
	if from != nil {
		query = query.Where("closed_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("closed_at <= ?", *to)
	}
	query = ApplySalesScope(ctx, query)
	err := query.Scan(result).Error
	return result, err
}

// GetRecognizedRevenue sums final amounts over approved and closed-won deals
func (r *DealRepository) GetRecognizedRevenue(ctx context.Context, from, to *time.Time) (float64, error) {
	var total float64
	query := r.db.WithContext(ctx).Model(&domain.Deal{}).
		Select("COALESCE(SUM(final_amount), 0)").
		Where("status IN ?", []domain.DealStatus{domain.DealStatusApproved, domain.DealStatusClosedWon})
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}
	query = ApplySalesScope(ctx, query)
	err := query.Scan(&total).Error
	return total, err
}

// SalesPerformanceRow holds per-rep aggregates for reporting
type SalesPerformanceRow struct {
	SalesID    string
	SalesName  string
	TotalDeals int64
	WonDeals   int64
	LostDeals  int64
	WonAmount  float64
}

// GetSalesPerformance returns per-rep deal aggregates ordered by won amount
func (r *DealRepository) GetSalesPerformance(ctx context.Context, from, to *time.Time, limit int) ([]SalesPerformanceRow, error) {
	var rows []SalesPerformanceRow
	query := r.db.WithContext(ctx).Model(&domain.Deal{}).
		Select(`sales_id, MAX(sales_name) as sales_name, COUNT(*) as total_deals,
			COUNT(*) FILTER (WHERE status = 'closed_won') as won_deals,
			COUNT(*) FILTER (WHERE status = 'closed_lost') as lost_deals,
			COALESCE(SUM(final_amount) FILTER (WHERE status = 'closed_won'), 0) as won_amount`).
		Group("sales_id")
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}
	query = ApplySalesScope(ctx, query)
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Order("won_amount DESC").Scan(&rows).Error
	return rows, err
}

// GetRecent returns the most recently updated deals
func (r *DealRepository) GetRecent(ctx context.Context, limit int) ([]domain.Deal, error) {
	var deals []domain.Deal
	query := r.db.WithContext(ctx).
		Preload("Lead").
		Preload("Items")
	query = ApplySalesScope(ctx, query)
	err := query.Order("updated_at DESC").Limit(limit).Find(&deals).Error
	return deals, err
}

// UpdateTotals writes only the recomputed money columns and approval flag
func (r *DealRepository) UpdateTotals(ctx context.Context, id uuid.UUID, total, discount, final float64, needsApproval bool) error {
	updates := map[string]interface{}{
		"total_amount":    total,
		"discount_amount": discount,
		"final_amount":    final,
		"needs_approval":  needsApproval,
		"updated_at":      time.Now(),
	}
	return r.db.WithContext(ctx).Model(&domain.Deal{}).Where("id = ?", id).Updates(updates).Error
}

// ApplyUpdatesInTx writes targeted columns inside an existing transaction.
// Used by the approval and close flows while holding the row lock.
func (r *DealRepository) ApplyUpdatesInTx(tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = time.Now()
	return tx.Model(&domain.Deal{}).Where("id = ?", id).Updates(updates).Error
}

// WithTransaction executes operations within a transaction
func (r *DealRepository) WithTransaction(ctx context.Context, fn func(*gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func (r *DealRepository) applyFilters(query *gorm.DB, filters *DealFilters) *gorm.DB {
	if filters == nil {
		return query
	}

	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	if filters.LeadID != nil {
		query = query.Where("lead_id = ?", *filters.LeadID)
	}

	if filters.SalesID != nil {
		query = query.Where("sales_id = ?", *filters.SalesID)
	}

	if filters.NeedsApproval != nil {
		query = query.Where("needs_approval = ?", *filters.NeedsApproval)
	}

	if filters.MinAmount != nil {
		query = query.Where("final_amount >= ?", *filters.MinAmount)
	}

	if filters.MaxAmount != nil {
		query = query.Where("final_amount <= ?", *filters.MaxAmount)
	}

	if filters.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filters.CreatedAfter)
	}

	if filters.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filters.CreatedBefore)
	}

	if filters.SearchQuery != nil && *filters.SearchQuery != "" {
		searchPattern := "%" + strings.ToLower(*filters.SearchQuery) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", searchPattern, searchPattern)
	}

	return query
}

func (r *DealRepository) applySorting(query *gorm.DB, sortBy DealSortOption) *gorm.DB {
	switch sortBy {
	case DealSortByCreatedAsc:
		return query.Order("created_at ASC")
	case DealSortByAmountDesc:
		return query.Order("final_amount DESC")
	case DealSortByAmountAsc:
		return query.Order("final_amount ASC")
	default: // DealSortByCreatedDesc
		return query.Order("created_at DESC")
	}
}
