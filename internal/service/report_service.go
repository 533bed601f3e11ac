package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nusalink-net/crm-api/internal/auth"
	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/mapper"
	"github.com/nusalink-net/crm-api/internal/repository"
	"go.uber.org/zap"
)

// ReportService aggregates funnel, revenue and performance numbers.
// All queries respect the sales ownership scope: reps see their own numbers,
// managers see everything.
type ReportService struct {
	leadRepo    *repository.LeadRepository
	dealRepo    *repository.DealRepository
	serviceRepo *repository.CustomerServiceRepository
	logger      *zap.Logger
}

// NewReportService creates a new ReportService
func NewReportService(
	leadRepo *repository.LeadRepository,
	dealRepo *repository.DealRepository,
	serviceRepo *repository.CustomerServiceRepository,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		leadRepo:    leadRepo,
		dealRepo:    dealRepo,
		serviceRepo: serviceRepo,
		logger:      logger,
	}
}

// SalesFunnel returns lead and deal counts per status plus the lead
// conversion rate
func (s *ReportService) SalesFunnel(ctx context.Context) (*domain.SalesFunnelDTO, error) {
	leadCounts, err := s.leadRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count leads: %w", err)
	}
	dealCounts, err := s.dealRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count deals: %w", err)
	}

	funnel := &domain.SalesFunnelDTO{
		LeadsByStatus: leadCounts,
		DealsByStatus: dealCounts,
	}
	for _, count := range leadCounts {
		funnel.TotalLeads += count
	}
	for _, count := range dealCounts {
		funnel.TotalDeals += count
	}
	if funnel.TotalLeads > 0 {
		funnel.ConversionRate = float64(leadCounts[domain.LeadStatusClosedWon]) / float64(funnel.TotalLeads) * 100
	}
	return funnel, nil
}

// RevenueSummary returns won and recognized revenue plus recurring fee totals.
// Growth and retention rates need historical billing data this system does not
// hold yet and are reported as zero.
func (s *ReportService) RevenueSummary(ctx context.Context, from, to *time.Time) (*domain.RevenueSummaryDTO, error) {
	won, err := s.dealRepo.GetWonSummary(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize won deals: %w", err)
	}

	recognized, err := s.dealRepo.GetRecognizedRevenue(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize revenue: %w", err)
	}

	active, err := s.serviceRepo.GetActiveSummary(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize active services: %w", err)
	}

	return &domain.RevenueSummaryDTO{
		WonDeals:            won.Count,
		WonAmount:           won.FinalAmount,
		TotalRevenue:        recognized,
		TotalDiscountGiven:  won.DiscountAmount,
		ActiveServices:      active.Count,
		MonthlyRecurringFee: active.MonthlyFee,
		InstallationRevenue: active.InstallationFee,
	}, nil
}

// SalesPerformance returns per-rep deal aggregates. Managers only.
func (s *ReportService) SalesPerformance(ctx context.Context, from, to *time.Time, limit int) ([]domain.SalesPerformanceDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	if !userCtx.CanAccessAllSales() {
		return nil, ErrForbidden
	}

	rows, err := s.dealRepo.GetSalesPerformance(ctx, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales performance: %w", err)
	}

	dtos := make([]domain.SalesPerformanceDTO, 0, len(rows))
	for _, row := range rows {
		dto := domain.SalesPerformanceDTO{
			SalesID:    row.SalesID,
			SalesName:  row.SalesName,
			TotalDeals: row.TotalDeals,
			WonDeals:   row.WonDeals,
			LostDeals:  row.LostDeals,
			WonAmount:  row.WonAmount,
		}
		if closed := row.WonDeals + row.LostDeals; closed > 0 {
			dto.WinRate = float64(row.WonDeals) / float64(closed) * 100
		}
		dtos = append(dtos, dto)
	}
	return dtos, nil
}

// Dashboard returns the combined overview used by the landing screen
func (s *ReportService) Dashboard(ctx context.Context) (*domain.DashboardDTO, error) {
	funnel, err := s.SalesFunnel(ctx)
	if err != nil {
		return nil, err
	}

	revenue, err := s.RevenueSummary(ctx, nil, nil)
	if err != nil {
		return nil, err
	}

	dashboard := &domain.DashboardDTO{
		Funnel:      *funnel,
		Revenue:     *revenue,
		RecentDeals: []domain.DealDTO{},
		TopSales:    []domain.SalesPerformanceDTO{},
	}

	recent, err := s.dealRepo.GetRecent(ctx, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent deals: %w", err)
	}
	for i := range recent {
		dashboard.RecentDeals = append(dashboard.RecentDeals, mapper.ToDealDTO(&recent[i]))
	}

	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}
	if userCtx.CanApproveDeals() {
		pending, err := s.dealRepo.CountPendingApproval(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to count pending approvals: %w", err)
		}
		dashboard.PendingApprovals = pending

		top, err := s.SalesPerformance(ctx, nil, nil, 5)
		if err != nil {
			return nil, err
		}
		dashboard.TopSales = top
	}

	return dashboard, nil
}
