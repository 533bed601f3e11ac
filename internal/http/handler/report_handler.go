package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/nusalink-net/crm-api/internal/service"
	"go.uber.org/zap"
)

type ReportHandler struct {
	reportService *service.ReportService
	logger        *zap.Logger
}

func NewReportHandler(reportService *service.ReportService, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		reportService: reportService,
		logger:        logger,
	}
}

// parseDateRange reads optional from/to query params in YYYY-MM-DD format.
// The to bound is pushed to end of day so the range is inclusive.
func parseDateRange(r *http.Request) (*time.Time, *time.Time, error) {
	var from, to *time.Time

	if f := r.URL.Query().Get("from"); f != "" {
		t, err := time.Parse("2006-01-02", f)
		if err != nil {
			return nil, nil, errors.New("invalid 'from' date: expected YYYY-MM-DD")
		}
		from = &t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, nil, errors.New("invalid 'to' date: expected YYYY-MM-DD")
		}
		end := t.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}
	return from, to, nil
}

// @Summary Sales funnel
// @Description Lead and deal counts per pipeline stage with conversion rate
// @Tags Reports
// @Produce json
// @Success 200 {object} domain.SalesFunnelDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /reports/funnel [get]
func (h *ReportHandler) SalesFunnel(w http.ResponseWriter, r *http.Request) {
	funnel, err := h.reportService.SalesFunnel(r.Context())
	if err != nil {
		h.logger.Error("failed to build sales funnel", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to build sales funnel")
		return
	}
	respondJSON(w, http.StatusOK, funnel)
}

// @Summary Revenue summary
// @Description Won and recurring revenue aggregates, optionally bounded by date range
// @Tags Reports
// @Produce json
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Success 200 {object} domain.RevenueSummaryDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /reports/revenue [get]
func (h *ReportHandler) RevenueSummary(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := h.reportService.RevenueSummary(r.Context(), from, to)
	if err != nil {
		h.logger.Error("failed to build revenue summary", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to build revenue summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// @Summary Sales performance
// @Description Per-rep won deals, revenue and win rate. Managers only.
// @Tags Reports
// @Produce json
// @Param from query string false "Start date (YYYY-MM-DD)"
// @Param to query string false "End date (YYYY-MM-DD)"
// @Param limit query int false "Max reps returned" default(10)
// @Success 200 {array} domain.SalesPerformanceDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /reports/performance [get]
func (h *ReportHandler) SalesPerformance(w http.ResponseWriter, r *http.Request) {
	from, to, err := parseDateRange(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := parseIntQuery(r, "limit", 10)
	performance, err := h.reportService.SalesPerformance(r.Context(), from, to, limit)
	if err != nil {
		if errors.Is(err, service.ErrForbidden) {
			respondWithError(w, http.StatusForbidden, "Manager access required")
			return
		}
		h.logger.Error("failed to build sales performance report", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to build sales performance report")
		return
	}
	respondJSON(w, http.StatusOK, performance)
}

// @Summary Dashboard
// @Description Combined funnel, revenue and recent activity snapshot
// @Tags Reports
// @Produce json
// @Success 200 {object} domain.DashboardDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /reports/dashboard [get]
func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.reportService.Dashboard(r.Context())
	if err != nil {
		h.logger.Error("failed to build dashboard", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to build dashboard")
		return
	}
	respondJSON(w, http.StatusOK, dashboard)
}
