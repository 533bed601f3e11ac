package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nusalink-net/crm-api/internal/auth"
	"github.com/nusalink-net/crm-api/internal/config"
	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/mapper"
	"github.com/nusalink-net/crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// validDealTransitions is the explicit state machine for deals. A transition
// absent from this map is rejected with a state conflict.
var validDealTransitions = map[domain.DealStatus][]domain.DealStatus{
	domain.DealStatusDraft:           {domain.DealStatusWaitingApproval},
	domain.DealStatusWaitingApproval: {domain.DealStatusApproved, domain.DealStatusRejected},
	domain.DealStatusApproved:        {domain.DealStatusClosedWon, domain.DealStatusClosedLost},
	domain.DealStatusRejected:        {},
	domain.DealStatusClosedWon:       {},
	domain.DealStatusClosedLost:      {},
}

func isValidDealTransition(from, to domain.DealStatus) bool {
	for _, allowed := range validDealTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// DealService handles deal business logic: the item ledger, the approval
// workflow and the close-won conversion fan-out.
type DealService struct {
	dealRepo         *repository.DealRepository
	itemRepo         *repository.DealItemRepository
	leadRepo         *repository.LeadRepository
	productRepo      *repository.ProductRepository
	historyRepo      *repository.DealStatusHistoryRepository
	customerRepo     *repository.CustomerRepository
	serviceRepo      *repository.CustomerServiceRepository
	notificationRepo *repository.NotificationRepository
	auditRepo        *repository.AuditLogRepository
	userRepo         *repository.UserRepository
	numberSvc        *NumberSequenceService
	provisioner      Provisioner
	dealCfg          *config.DealConfig
	logger           *zap.Logger
}

// NewDealService creates a new DealService
func NewDealService(
	dealRepo *repository.DealRepository,
	itemRepo *repository.DealItemRepository,
	leadRepo *repository.LeadRepository,
	productRepo *repository.ProductRepository,
	historyRepo *repository.DealStatusHistoryRepository,
	customerRepo *repository.CustomerRepository,
	serviceRepo *repository.CustomerServiceRepository,
	notificationRepo *repository.NotificationRepository,
	auditRepo *repository.AuditLogRepository,
	userRepo *repository.UserRepository,
	numberSvc *NumberSequenceService,
	provisioner Provisioner,
	dealCfg *config.DealConfig,
	logger *zap.Logger,
) *DealService {
	return &DealService{
		dealRepo:         dealRepo,
		itemRepo:         itemRepo,
		leadRepo:         leadRepo,
		productRepo:      productRepo,
		historyRepo:      historyRepo,
		customerRepo:     customerRepo,
		serviceRepo:      serviceRepo,
		notificationRepo: notificationRepo,
		auditRepo:        auditRepo,
		userRepo:         userRepo,
		numberSvc:        numberSvc,
		provisioner:      provisioner,
		dealCfg:          dealCfg,
		logger:           logger,
	}
}

// Create creates a new deal in draft status against an open lead.
// Initial items may be supplied and are priced the same way AddItem prices them.
func (s *DealService) Create(ctx context.Context, req *domain.CreateDealRequest) (*domain.DealDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	lead, err := s.leadRepo.GetByID(ctx, req.LeadID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: lead %s", ErrNotFound, req.LeadID)
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	if lead.Status.IsTerminal() {
		return nil, ErrLeadClosed
	}

	// The deal follows the lead's owning rep so the funnel stays consistent
	// when a manager creates on a rep's behalf
	deal := &domain.Deal{
		Title:       req.Title,
		Description: req.Description,
		LeadID:      lead.ID,
		Status:      domain.DealStatusDraft,
		SalesID:     lead.SalesID,
		SalesName:   lead.SalesName,
		Notes:       req.Notes,
	}

	if err := s.dealRepo.Create(ctx, deal); err != nil {
		return nil, fmt.Errorf("failed to create deal: %w", err)
	}

	for i := range req.Items {
		item, err := s.buildItem(ctx, deal.ID, &req.Items[i])
		if err != nil {
			return nil, err
		}
		if err := s.itemRepo.Create(ctx, item); err != nil {
			return nil, fmt.Errorf("failed to create deal item: %w", err)
		}
	}

	if len(req.Items) > 0 {
		if err := s.refreshPricing(ctx, deal, userCtx); err != nil {
			return nil, err
		}
	}

	s.logger.Info("deal created",
		zap.String("dealID", deal.ID.String()),
		zap.String("leadID", lead.ID.String()),
		zap.String("createdBy", userCtx.UserID))

	return s.getDTO(ctx, deal.ID)
}

// GetByID returns a single deal with its lead and items
func (s *DealService) GetByID(ctx context.Context, id uuid.UUID) (*domain.DealDTO, error) {
	return s.getDTO(ctx, id)
}

// List returns deals with pagination, filtering and sorting
func (s *DealService) List(ctx context.Context, page, pageSize int, filters *repository.DealFilters, sortBy repository.DealSortOption) ([]domain.DealDTO, int64, error) {
	deals, total, err := s.dealRepo.List(ctx, page, pageSize, filters, sortBy)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list deals: %w", err)
	}

	dtos := make([]domain.DealDTO, 0, len(deals))
	for i := range deals {
		dtos = append(dtos, mapper.ToDealDTO(&deals[i]))
	}
	return dtos, total, nil
}

// ListPendingApproval returns deals waiting for a manager decision
func (s *DealService) ListPendingApproval(ctx context.Context) ([]domain.DealDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	if !userCtx.CanApproveDeals() {
		return nil, ErrForbidden
	}

	deals, err := s.dealRepo.GetPendingApproval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending deals: %w", err)
	}

	dtos := make([]domain.DealDTO, 0, len(deals))
	for i := range deals {
		dtos = append(dtos, mapper.ToDealDTO(&deals[i]))
	}
	return dtos, nil
}

// Update updates deal header fields while the deal is still editable
func (s *DealService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateDealRequest) (*domain.DealDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	deal, err := s.loadEditable(ctx, id, "update")
	if err != nil {
		return nil, err
	}

	deal.Title = req.Title
	deal.Description = req.Description
	deal.Notes = req.Notes
	if req.DiscountAmount != nil {
		deal.DiscountAmount = *req.DiscountAmount
	}

	if err := s.dealRepo.Update(ctx, deal); err != nil {
		return nil, fmt.Errorf("failed to update deal: %w", err)
	}

	// A changed deal-level discount moves the final amount and can trip
	// the approval rule.
	if req.DiscountAmount != nil {
		if err := s.refreshPricing(ctx, deal, userCtx); err != nil {
			return nil, err
		}
	}

	return s.getDTO(ctx, id)
}

// Delete removes a deal. Only editable deals may be deleted.
func (s *DealService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.loadEditable(ctx, id, "delete"); err != nil {
		return err
	}
	if err := s.dealRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete deal: %w", err)
	}
	return nil
}

// AddItem adds a product line to an editable deal. The unit price is
// snapshotted from the product's current selling price and a missing
// negotiated price defaults to that list price.
func (s *DealService) AddItem(ctx context.Context, dealID uuid.UUID, req *domain.CreateDealItemRequest) (*domain.DealDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	deal, err := s.loadEditable(ctx, dealID, "modify items of")
	if err != nil {
		return nil, err
	}

	item, err := s.buildItem(ctx, deal.ID, req)
	if err != nil {
		return nil, err
	}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create deal item: %w", err)
	}

	if err := s.refreshPricing(ctx, deal, userCtx); err != nil {
		return nil, err
	}
	return s.getDTO(ctx, dealID)
}

// UpdateItem changes quantity or negotiated price of an existing line
func (s *DealService) UpdateItem(ctx context.Context, dealID, itemID uuid.UUID, req *domain.UpdateDealItemRequest) (*domain.DealDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	deal, err := s.loadEditable(ctx, dealID, "modify items of")
	if err != nil {
		return nil, err
	}

	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: deal item %s", ErrNotFound, itemID)
		}
		return nil, fmt.Errorf("failed to get deal item: %w", err)
	}
	if item.DealID != deal.ID {
		return nil, fmt.Errorf("%w: deal item %s", ErrNotFound, itemID)
	}

	item.Quantity = req.Quantity
	if req.NegotiatedPrice != nil {
		item.NegotiatedPrice = *req.NegotiatedPrice
	}
	item.DiscountPercentage = DiscountPercentage(item.UnitPrice, item.NegotiatedPrice)
	item.Subtotal = ItemSubtotal(item.Quantity, item.NegotiatedPrice)
	item.Notes = req.Notes

	if err := s.itemRepo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to update deal item: %w", err)
	}

	if err := s.refreshPricing(ctx, deal, userCtx); err != nil {
		return nil, err
	}
	return s.getDTO(ctx, dealID)
}

// RemoveItem deletes a line from an editable deal
func (s *DealService) RemoveItem(ctx context.Context, dealID, itemID uuid.UUID) (*domain.DealDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	deal, err := s.loadEditable(ctx, dealID, "modify items of")
	if err != nil {
		return nil, err
	}

	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: deal item %s", ErrNotFound, itemID)
		}
		return nil, fmt.Errorf("failed to get deal item: %w", err)
	}
	if item.DealID != deal.ID {
		return nil, fmt.Errorf("%w: deal item %s", ErrNotFound, itemID)
	}

	if err := s.itemRepo.Delete(ctx, itemID); err != nil {
		return nil, fmt.Errorf("failed to delete deal item: %w", err)
	}

	if err := s.refreshPricing(ctx, deal, userCtx); err != nil {
		return nil, err
	}
	return s.getDTO(ctx, dealID)
}

// Submit moves a draft deal into the approval queue
func (s *DealService) Submit(ctx context.Context, id uuid.UUID) (*domain.DealDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	deal, err := s.getDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isValidDealTransition(deal.Status, domain.DealStatusWaitingApproval) {
		return nil, NewStateConflictError("submit", deal.Status)
	}

	count, err := s.itemRepo.CountByDeal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count deal items: %w", err)
	}
	if count == 0 {
		return nil, ErrDealHasNoItems
	}

	if err := s.transition(ctx, deal, domain.DealStatusWaitingApproval, userCtx, "submitted for approval"); err != nil {
		return nil, err
	}
	s.notifyManagers(ctx, deal)

	return s.getDTO(ctx, id)
}

// Approve marks a waiting deal as approved. Managers only.
func (s *DealService) Approve(ctx context.Context, id uuid.UUID) (*domain.DealDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	if !userCtx.CanApproveDeals() {
		return nil, ErrForbidden
	}

	var owner string
	err := s.dealRepo.WithTransaction(ctx, func(tx *gorm.DB) error {
		deal, err := s.dealRepo.GetByIDForUpdate(tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: deal %s", ErrNotFound, id)
			}
			return fmt.Errorf("failed to lock deal: %w", err)
		}
		if !isValidDealTransition(deal.Status, domain.DealStatusApproved) {
			return NewStateConflictError("approve", deal.Status)
		}
		owner = deal.SalesID

		now := time.Now()
		updates := map[string]interface{}{
			"status":           domain.DealStatusApproved,
			"approved_by_id":   userCtx.UserID,
			"approved_by_name": userCtx.DisplayName,
			"approved_at":      now,
		}
		if err := s.dealRepo.ApplyUpdatesInTx(tx, id, updates); err != nil {
			return fmt.Errorf("failed to approve deal: %w", err)
		}

		from := deal.Status
		if err := s.historyRepo.CreateInTx(tx, &domain.DealStatusHistory{
			DealID:        id,
			FromStatus:    &from,
			ToStatus:      domain.DealStatusApproved,
			ChangedByID:   userCtx.UserID,
			ChangedByName: userCtx.DisplayName,
		}); err != nil {
			return fmt.Errorf("failed to record status history: %w", err)
		}

		if owner != userCtx.UserID {
			if err := s.notificationRepo.CreateInTx(tx, &domain.Notification{
				UserID:     owner,
				Type:       string(domain.NotificationTypeDealApproved),
				Title:      "Deal approved",
				Message:    fmt.Sprintf("Deal '%s' was approved by %s", deal.Title, userCtx.DisplayName),
				EntityID:   &deal.ID,
				EntityType: "Deal",
			}); err != nil {
				return fmt.Errorf("failed to create notification: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("deal approved",
		zap.String("dealID", id.String()),
		zap.String("approvedBy", userCtx.UserID))

	return s.getDTO(ctx, id)
}

// Reject declines a waiting deal with a mandatory reason. Managers only.
func (s *DealService) Reject(ctx context.Context, id uuid.UUID, req *domain.RejectDealRequest) (*domain.DealDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	if !userCtx.CanApproveDeals() {
		return nil, ErrForbidden
	}

	err := s.dealRepo.WithTransaction(ctx, func(tx *gorm.DB) error {
		deal, err := s.dealRepo.GetByIDForUpdate(tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: deal %s", ErrNotFound, id)
			}
			return fmt.Errorf("failed to lock deal: %w", err)
		}
		if !isValidDealTransition(deal.Status, domain.DealStatusRejected) {
			return NewStateConflictError("reject", deal.Status)
		}

		updates := map[string]interface{}{
			"status":        domain.DealStatusRejected,
			"reject_reason": req.Reason,
		}
		if err := s.dealRepo.ApplyUpdatesInTx(tx, id, updates); err != nil {
			return fmt.Errorf("failed to reject deal: %w", err)
		}

		from := deal.Status
		if err := s.historyRepo.CreateInTx(tx, &domain.DealStatusHistory{
			DealID:        id,
			FromStatus:    &from,
			ToStatus:      domain.DealStatusRejected,
			ChangedByID:   userCtx.UserID,
			ChangedByName: userCtx.DisplayName,
			Notes:         req.Reason,
		}); err != nil {
			return fmt.Errorf("failed to record status history: %w", err)
		}

		if deal.SalesID != userCtx.UserID {
			if err := s.notificationRepo.CreateInTx(tx, &domain.Notification{
				UserID:     deal.SalesID,
				Type:       string(domain.NotificationTypeDealRejected),
				Title:      "Deal rejected",
				Message:    fmt.Sprintf("Deal '%s' was rejected: %s", deal.Title, req.Reason),
				EntityID:   &deal.ID,
				EntityType: "Deal",
			}); err != nil {
				return fmt.Errorf("failed to create notification: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.getDTO(ctx, id)
}

// Close finalizes an approved deal. A won close runs the conversion fan-out:
// in one transaction the customer account is created, every item becomes a
// provisioned service, the lead is marked won and an audit entry is written.
// A lost close only records the outcome on deal and lead.
func (s *DealService) Close(ctx context.Context, id uuid.UUID, req *domain.CloseDealRequest) (*domain.ConversionResultDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	// Visibility check up front; the lock below re-reads without scope
	if _, err := s.getDeal(ctx, id); err != nil {
		return nil, err
	}

	var customerID uuid.UUID
	err := s.dealRepo.WithTransaction(ctx, func(tx *gorm.DB) error {
		deal, err := s.dealRepo.GetByIDForUpdate(tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: deal %s", ErrNotFound, id)
			}
			return fmt.Errorf("failed to lock deal: %w", err)
		}

		target := domain.DealStatusClosedLost
		if req.Won {
			target = domain.DealStatusClosedWon
		}
		if !isValidDealTransition(deal.Status, target) {
			return NewStateConflictError("close", deal.Status)
		}

		if !req.Won {
			return s.closeLostInTx(tx, deal, req, userCtx)
		}

		cid, err := s.convertInTx(tx, deal, req, userCtx)
		if err != nil {
			return err
		}
		customerID = cid
		return nil
	})
	if err != nil {
		return nil, err
	}

	dealDTO, err := s.getDTO(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &domain.ConversionResultDTO{Deal: *dealDTO}
	if req.Won {
		customer, err := s.customerRepo.GetByID(ctx, customerID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload customer: %w", err)
		}
		withServices := mapper.ToCustomerWithServicesDTO(customer)
		result.Customer = &withServices
	}
	return result, nil
}

// ListStatusHistory returns the status transitions of a deal, oldest first
func (s *DealService) ListStatusHistory(ctx context.Context, dealID uuid.UUID) ([]domain.DealStatusHistoryDTO, error) {
	if _, err := s.getDeal(ctx, dealID); err != nil {
		return nil, err
	}

	entries, err := s.historyRepo.ListByDeal(ctx, dealID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status history: %w", err)
	}

	dtos := make([]domain.DealStatusHistoryDTO, 0, len(entries))
	for i := range entries {
		dtos = append(dtos, mapper.ToDealStatusHistoryDTO(&entries[i]))
	}
	return dtos, nil
}

// ============================================================================
// Internal helpers
// ============================================================================

func (s *DealService) getDeal(ctx context.Context, id uuid.UUID) (*domain.Deal, error) {
	deal, err := s.dealRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: deal %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get deal: %w", err)
	}
	return deal, nil
}

func (s *DealService) getDTO(ctx context.Context, id uuid.UUID) (*domain.DealDTO, error) {
	deal, err := s.getDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToDealDTO(deal)
	return &dto, nil
}

func (s *DealService) loadEditable(ctx context.Context, id uuid.UUID, action string) (*domain.Deal, error) {
	deal, err := s.getDeal(ctx, id)
	if err != nil {
		return nil, err
	}
	if !deal.Status.IsMutable() {
		return nil, NewStateConflictError(action, deal.Status)
	}
	return deal, nil
}

// buildItem prices a new line: the unit price is snapshotted from the
// product's derived selling price so later catalog changes never reprice
// existing deals.
func (s *DealService) buildItem(ctx context.Context, dealID uuid.UUID, req *domain.CreateDealItemRequest) (*domain.DealItem, error) {
	product, err := s.productRepo.GetByID(ctx, req.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: product %s", ErrNotFound, req.ProductID)
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if !product.IsActive {
		return nil, ErrProductInactive
	}

	unitPrice := product.SellingPrice()
	negotiated := unitPrice
	if req.NegotiatedPrice != nil {
		negotiated = *req.NegotiatedPrice
	}

	// An explicit discountPct overrides the derived percentage
	discountPct := DiscountPercentage(unitPrice, negotiated)
	if req.DiscountPct != nil {
		discountPct = *req.DiscountPct
	}

	return &domain.DealItem{
		DealID:             dealID,
		ProductID:          product.ID,
		ProductName:        product.Name,
		Quantity:           req.Quantity,
		UnitPrice:          unitPrice,
		NegotiatedPrice:    negotiated,
		DiscountPercentage: discountPct,
		Subtotal:           ItemSubtotal(req.Quantity, negotiated),
		Notes:              req.Notes,
	}, nil
}

// refreshPricing recomputes the deal's money columns from its current items
// and deal-level discount, then re-evaluates the approval rule. When the rule
// trips on a draft deal the deal advances to waiting_approval automatically.
func (s *DealService) refreshPricing(ctx context.Context, deal *domain.Deal, userCtx *auth.UserContext) error {
	items, err := s.itemRepo.ListByDeal(ctx, deal.ID)
	if err != nil {
		return fmt.Errorf("failed to list deal items: %w", err)
	}

	lines := make([]PricedLine, 0, len(items))
	belowList := false
	for i := range items {
		lines = append(lines, PricedLine{
			Quantity:        items[i].Quantity,
			NegotiatedPrice: items[i].NegotiatedPrice,
		})
		if RequiresApproval(items[i].NegotiatedPrice, items[i].UnitPrice) {
			belowList = true
		}
	}

	totals := ComputeDealTotals(lines, deal.DiscountAmount)
	needsApproval := belowList ||
		(totals.TotalAmount > 0 && totals.DiscountAmount > totals.TotalAmount*s.dealCfg.ApprovalDiscountPercent/100)

	if err := s.dealRepo.UpdateTotals(ctx, deal.ID, totals.TotalAmount, totals.DiscountAmount, totals.FinalAmount, needsApproval); err != nil {
		return fmt.Errorf("failed to update deal totals: %w", err)
	}

	deal.TotalAmount = totals.TotalAmount
	deal.DiscountAmount = totals.DiscountAmount
	deal.FinalAmount = totals.FinalAmount
	deal.NeedsApproval = needsApproval

	if needsApproval && deal.Status == domain.DealStatusDraft {
		if err := s.transition(ctx, deal, domain.DealStatusWaitingApproval, userCtx, "negotiated pricing requires approval"); err != nil {
			return err
		}
		s.notifyManagers(ctx, deal)
	}
	return nil
}

// transition applies a validated status change and records it in history
func (s *DealService) transition(ctx context.Context, deal *domain.Deal, to domain.DealStatus, userCtx *auth.UserContext, note string) error {
	from := deal.Status
	if !isValidDealTransition(from, to) {
		return NewStateConflictError(string(to), from)
	}

	err := s.dealRepo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.dealRepo.ApplyUpdatesInTx(tx, deal.ID, map[string]interface{}{"status": to}); err != nil {
			return fmt.Errorf("failed to update deal status: %w", err)
		}
		return s.historyRepo.CreateInTx(tx, &domain.DealStatusHistory{
			DealID:        deal.ID,
			FromStatus:    &from,
			ToStatus:      to,
			ChangedByID:   userCtx.UserID,
			ChangedByName: userCtx.DisplayName,
			Notes:         note,
		})
	})
	if err != nil {
		return err
	}

	deal.Status = to
	s.logger.Info("deal status changed",
		zap.String("dealID", deal.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return nil
}

func (s *DealService) closeLostInTx(tx *gorm.DB, deal *domain.Deal, req *domain.CloseDealRequest, userCtx *auth.UserContext) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":    domain.DealStatusClosedLost,
		"closed_at": now,
	}
	if err := s.dealRepo.ApplyUpdatesInTx(tx, deal.ID, updates); err != nil {
		return fmt.Errorf("failed to close deal: %w", err)
	}

	if err := s.leadRepo.UpdateStatusInTx(tx, deal.LeadID, domain.LeadStatusClosedLost); err != nil {
		return fmt.Errorf("failed to update lead status: %w", err)
	}

	from := deal.Status
	return s.historyRepo.CreateInTx(tx, &domain.DealStatusHistory{
		DealID:        deal.ID,
		FromStatus:    &from,
		ToStatus:      domain.DealStatusClosedLost,
		ChangedByID:   userCtx.UserID,
		ChangedByName: userCtx.DisplayName,
		Notes:         req.LostReason,
	})
}

// convertInTx runs the close-won fan-out under the caller's transaction and
// row lock. Everything commits or nothing does.
func (s *DealService) convertInTx(tx *gorm.DB, deal *domain.Deal, req *domain.CloseDealRequest, userCtx *auth.UserContext) (uuid.UUID, error) {
	items, err := s.itemRepo.ListByDealInTx(tx, deal.ID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to list deal items: %w", err)
	}
	if len(items) == 0 {
		return uuid.Nil, ErrDealHasNoItems
	}

	var lead domain.Lead
	if err := tx.Where("id = ?", deal.LeadID).First(&lead).Error; err != nil {
		return uuid.Nil, fmt.Errorf("failed to get lead: %w", err)
	}

	now := time.Now()

	customerNumber, err := s.numberSvc.NextCustomerNumberInTx(tx, now)
	if err != nil {
		return uuid.Nil, err
	}

	billingAddress := req.BillingAddress
	if billingAddress == "" {
		billingAddress = lead.Address
	}
	installationAddress := req.InstallationAddress
	if installationAddress == "" {
		installationAddress = lead.Address
	}
	customerType := domain.CustomerTypeIndividual
	if req.CustomerType != nil {
		customerType = *req.CustomerType
	}
	billingCycle := domain.BillingCycleMonthly
	if req.BillingCycle != nil {
		billingCycle = *req.BillingCycle
	}

	customer := &domain.Customer{
		CustomerNumber:      customerNumber,
		Name:                lead.Name,
		Email:               lead.Email,
		Phone:               lead.Phone,
		Address:             lead.Address,
		BillingAddress:      billingAddress,
		InstallationAddress: installationAddress,
		CustomerType:        customerType,
		Status:              domain.CustomerStatusActive,
		LeadID:              &lead.ID,
		SalesID:             deal.SalesID,
		SalesName:           deal.SalesName,
		ActivationDate:      &now,
		Notes:               fmt.Sprintf("created automatically from deal: %s", deal.Title),
	}
	if err := s.customerRepo.CreateInTx(tx, customer); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create customer: %w", err)
	}

	for i := range items {
		item := &items[i]

		serviceNumber, err := s.numberSvc.NextServiceNumberInTx(tx, now)
		if err != nil {
			return uuid.Nil, err
		}

		equipment := s.provisioner.Provision(item.ProductName, now)
		equipmentJSON, err := json.Marshal(equipment)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to encode equipment info: %w", err)
		}

		svc := &domain.CustomerService{
			ServiceNumber:       serviceNumber,
			CustomerID:          customer.ID,
			ProductID:           item.ProductID,
			ProductName:         item.ProductName,
			DealID:              &deal.ID,
			MonthlyFee:          item.NegotiatedPrice,
			InstallationFee:     InstallationFee(item.ProductName),
			StartDate:           now,
			BillingCycle:        billingCycle,
			Status:              domain.ServiceStatusActive,
			InstallationAddress: installationAddress,
			EquipmentInfo:       string(equipmentJSON),
		}
		if err := s.serviceRepo.CreateInTx(tx, svc); err != nil {
			return uuid.Nil, fmt.Errorf("failed to create customer service: %w", err)
		}
	}

	if err := s.leadRepo.MarkConverted(tx, lead.ID); err != nil {
		return uuid.Nil, fmt.Errorf("failed to mark lead converted: %w", err)
	}

	updates := map[string]interface{}{
		"status":    domain.DealStatusClosedWon,
		"closed_at": now,
	}
	if err := s.dealRepo.ApplyUpdatesInTx(tx, deal.ID, updates); err != nil {
		return uuid.Nil, fmt.Errorf("failed to close deal: %w", err)
	}

	from := deal.Status
	if err := s.historyRepo.CreateInTx(tx, &domain.DealStatusHistory{
		DealID:        deal.ID,
		FromStatus:    &from,
		ToStatus:      domain.DealStatusClosedWon,
		ChangedByID:   userCtx.UserID,
		ChangedByName: userCtx.DisplayName,
		Notes:         fmt.Sprintf("converted to customer %s", customerNumber),
	}); err != nil {
		return uuid.Nil, fmt.Errorf("failed to record status history: %w", err)
	}

	metadata, _ := json.Marshal(map[string]interface{}{
		"customerId":     customer.ID,
		"customerNumber": customerNumber,
		"leadId":         lead.ID,
		"salesId":        deal.SalesID,
		"serviceCount":   len(items),
		"finalAmount":    deal.FinalAmount,
	})
	if err := s.auditRepo.CreateInTx(tx, &domain.AuditLog{
		UserID:      userCtx.UserID,
		UserEmail:   userCtx.Email,
		UserName:    userCtx.DisplayName,
		Action:      domain.AuditActionConvert,
		EntityType:  "Deal",
		EntityID:    &deal.ID,
		EntityName:  deal.Title,
		Metadata:    string(metadata),
		PerformedAt: now,
	}); err != nil {
		return uuid.Nil, fmt.Errorf("failed to record audit entry: %w", err)
	}

	if deal.SalesID != userCtx.UserID {
		if err := s.notificationRepo.CreateInTx(tx, &domain.Notification{
			UserID:     deal.SalesID,
			Type:       string(domain.NotificationTypeDealClosedWon),
			Title:      "Deal closed won",
			Message:    fmt.Sprintf("Deal '%s' was closed won, customer %s created", deal.Title, customerNumber),
			EntityID:   &deal.ID,
			EntityType: "Deal",
		}); err != nil {
			return uuid.Nil, fmt.Errorf("failed to create notification: %w", err)
		}
	}

	s.logger.Info("deal converted",
		zap.String("dealID", deal.ID.String()),
		zap.String("customerNumber", customerNumber),
		zap.Int("services", len(items)))

	return customer.ID, nil
}

// notifyManagers fans an approval-requested notification out to every manager.
// Failures are logged, not surfaced: the deal transition already committed.
func (s *DealService) notifyManagers(ctx context.Context, deal *domain.Deal) {
	managers, err := s.userRepo.ListByRole(ctx, domain.RoleManager)
	if err != nil {
		s.logger.Warn("failed to list managers for notification", zap.Error(err))
		return
	}
	for i := range managers {
		notification := &domain.Notification{
			UserID:     managers[i].ID,
			Type:       string(domain.NotificationTypeApprovalRequested),
			Title:      "Deal awaiting approval",
			Message:    fmt.Sprintf("Deal '%s' needs an approval decision", deal.Title),
			EntityID:   &deal.ID,
			EntityType: "Deal",
		}
		if err := s.notificationRepo.Create(ctx, notification); err != nil {
			s.logger.Warn("failed to create approval notification",
				zap.String("userID", managers[i].ID),
				zap.Error(err))
		}
	}
}
