package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nusalink-net/crm-api/internal/auth"
	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/mapper"
	"github.com/nusalink-net/crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LeadService handles lead business logic
type LeadService struct {
	leadRepo *repository.LeadRepository
	dealRepo *repository.DealRepository
	logger   *zap.Logger
}

// NewLeadService creates a new LeadService
func NewLeadService(leadRepo *repository.LeadRepository, dealRepo *repository.DealRepository, logger *zap.Logger) *LeadService {
	return &LeadService{
		leadRepo: leadRepo,
		dealRepo: dealRepo,
		logger:   logger,
	}
}

// Create registers a new lead owned by the calling sales rep
func (s *LeadService) Create(ctx context.Context, req *domain.CreateLeadRequest) (*domain.LeadDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	lead := &domain.Lead{
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		CompanyName: req.CompanyName,
		Address:     req.Address,
		Needs:       req.Needs,
		Source:      req.Source,
		Status:      domain.LeadStatusNew,
		SalesID:     userCtx.UserID,
		SalesName:   userCtx.DisplayName,
		Notes:       req.Notes,
	}

	if err := s.leadRepo.Create(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}

	s.logger.Info("lead created",
		zap.String("leadID", lead.ID.String()),
		zap.String("salesID", lead.SalesID))

	dto := mapper.ToLeadDTO(lead)
	return &dto, nil
}

// GetByID returns a single lead
func (s *LeadService) GetByID(ctx context.Context, id uuid.UUID) (*domain.LeadDTO, error) {
	lead, err := s.getLead(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToLeadDTO(lead)
	return &dto, nil
}

// List returns leads with pagination, filtering and sorting
func (s *LeadService) List(ctx context.Context, page, pageSize int, filters *repository.LeadFilters, sortBy repository.LeadSortOption) ([]domain.LeadDTO, int64, error) {
	leads, total, err := s.leadRepo.List(ctx, page, pageSize, filters, sortBy)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list leads: %w", err)
	}

	dtos := make([]domain.LeadDTO, 0, len(leads))
	for i := range leads {
		dtos = append(dtos, mapper.ToLeadDTO(&leads[i]))
	}
	return dtos, total, nil
}

// Update updates a lead. Status changes are validated: the closing statuses
// are owned by the deal workflow and cannot be set by hand.
func (s *LeadService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateLeadRequest) (*domain.LeadDTO, error) {
	lead, err := s.getLead(ctx, id)
	if err != nil {
		return nil, err
	}
	if lead.Status.IsTerminal() {
		return nil, ErrLeadClosed
	}

	lead.Name = req.Name
	lead.Email = req.Email
	lead.Phone = req.Phone
	lead.CompanyName = req.CompanyName
	lead.Address = req.Address
	lead.Needs = req.Needs
	lead.Source = req.Source
	lead.Notes = req.Notes

	if req.Status != nil {
		if !req.Status.IsValid() {
			return nil, fmt.Errorf("%w: invalid lead status %q", ErrInvalidInput, *req.Status)
		}
		if req.Status.IsTerminal() {
			return nil, fmt.Errorf("%w: closing statuses are set by the deal workflow", ErrInvalidInput)
		}
		lead.Status = *req.Status
	}

	if err := s.leadRepo.Update(ctx, lead); err != nil {
		return nil, fmt.Errorf("failed to update lead: %w", err)
	}

	dto := mapper.ToLeadDTO(lead)
	return &dto, nil
}

// Delete removes a lead that has no deals attached
func (s *LeadService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.getLead(ctx, id); err != nil {
		return err
	}

	deals, err := s.dealRepo.GetByLead(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check lead deals: %w", err)
	}
	if len(deals) > 0 {
		return fmt.Errorf("%w: lead has %d deal(s)", ErrConflict, len(deals))
	}

	if err := s.leadRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	return nil
}

// ListDeals returns all deals attached to a lead
func (s *LeadService) ListDeals(ctx context.Context, id uuid.UUID) ([]domain.DealDTO, error) {
	if _, err := s.getLead(ctx, id); err != nil {
		return nil, err
	}

	deals, err := s.dealRepo.GetByLead(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list lead deals: %w", err)
	}

	dtos := make([]domain.DealDTO, 0, len(deals))
	for i := range deals {
		dtos = append(dtos, mapper.ToDealDTO(&deals[i]))
	}
	return dtos, nil
}

// Search performs a case-insensitive lead search
func (s *LeadService) Search(ctx context.Context, query string, limit int) ([]domain.LeadDTO, error) {
	if limit <= 0 || limit > repository.MaxPageSize {
		limit = 20
	}

	leads, err := s.leadRepo.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search leads: %w", err)
	}

	dtos := make([]domain.LeadDTO, 0, len(leads))
	for i := range leads {
		dtos = append(dtos, mapper.ToLeadDTO(&leads[i]))
	}
	return dtos, nil
}

func (s *LeadService) getLead(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	lead, err := s.leadRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: lead %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return lead, nil
}
