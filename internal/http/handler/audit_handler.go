package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/repository"
	"github.com/nusalink-net/crm-api/internal/service"
	"go.uber.org/zap"
)

type AuditHandler struct {
	auditService *service.AuditLogService
	logger       *zap.Logger
}

func NewAuditHandler(auditService *service.AuditLogService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
		logger:       logger,
	}
}

// @Summary List audit logs
// @Description Paginated audit trail with filters. Admins only.
// @Tags Audit
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param userId query string false "Filter by acting user ID"
// @Param action query string false "Filter by action"
// @Param entityType query string false "Filter by entity type"
// @Param entityId query string false "Filter by entity ID"
// @Param startTime query string false "Start of time range (RFC3339)"
// @Param endTime query string false "End of time range (RFC3339)"
// @Success 200 {object} domain.PaginatedResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /audit-logs [get]
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	filter := &repository.AuditLogFilter{
		UserID:     r.URL.Query().Get("userId"),
		EntityType: r.URL.Query().Get("entityType"),
		IPAddress:  r.URL.Query().Get("ipAddress"),
		RequestID:  r.URL.Query().Get("requestId"),
	}

	if a := r.URL.Query().Get("action"); a != "" {
		action := domain.AuditAction(a)
		filter.Action = &action
	}
	if eid := r.URL.Query().Get("entityId"); eid != "" {
		id, err := uuid.Parse(eid)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid entityId: must be a valid UUID")
			return
		}
		filter.EntityID = &id
	}
	if st := r.URL.Query().Get("startTime"); st != "" {
		t, err := time.Parse(time.RFC3339, st)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid startTime: expected RFC3339")
			return
		}
		filter.StartTime = &t
	}
	if et := r.URL.Query().Get("endTime"); et != "" {
		t, err := time.Parse(time.RFC3339, et)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid endTime: expected RFC3339")
			return
		}
		filter.EndTime = &t
	}

	logs, total, err := h.auditService.List(r.Context(), filter, page, pageSize)
	if err != nil {
		h.logger.Error("failed to list audit logs", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list audit logs")
		return
	}
	respondJSON(w, http.StatusOK, newPaginatedResponse(logs, total, page, pageSize))
}

// @Summary Get audit log
// @Tags Audit
// @Produce json
// @Param id path string true "Audit log ID"
// @Success 200 {object} domain.AuditLogDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /audit-logs/{id} [get]
func (h *AuditHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid audit log ID: must be a valid UUID")
		return
	}

	entry, err := h.auditService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Audit log not found")
			return
		}
		h.logger.Error("failed to get audit log", zap.Error(err), zap.String("audit_log_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to get audit log")
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// @Summary Audit trail for an entity
// @Description Most recent audit entries touching one entity
// @Tags Audit
// @Produce json
// @Param entityType path string true "Entity type"
// @Param entityId path string true "Entity ID"
// @Param limit query int false "Max entries" default(50)
// @Success 200 {array} domain.AuditLogDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /audit-logs/{entityType}/{entityId} [get]
func (h *AuditHandler) ListByEntity(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "entityType")
	entityID, err := uuid.Parse(chi.URLParam(r, "entityId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid entity ID: must be a valid UUID")
		return
	}

	limit := parseIntQuery(r, "limit", 50)
	logs, err := h.auditService.ListByEntity(r.Context(), entityType, entityID, limit)
	if err != nil {
		h.logger.Error("failed to list audit logs", zap.Error(err), zap.String("entity_id", entityID.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to list audit logs")
		return
	}
	respondJSON(w, http.StatusOK, logs)
}
