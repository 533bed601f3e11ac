package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/service"
	"go.uber.org/zap"
)

type ActivityHandler struct {
	activityService *service.ActivityService
	logger          *zap.Logger
}

func NewActivityHandler(activityService *service.ActivityService, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{
		activityService: activityService,
		logger:          logger,
	}
}

func parseActivityTarget(s string) (domain.ActivityTargetType, bool) {
	switch strings.ToLower(s) {
	case "lead":
		return domain.ActivityTargetLead, true
	case "deal":
		return domain.ActivityTargetDeal, true
	case "customer":
		return domain.ActivityTargetCustomer, true
	}
	return "", false
}

// @Summary Create activity
// @Description Record a call, meeting, email or note against a lead, deal or customer
// @Tags Activities
// @Accept json
// @Produce json
// @Param request body domain.CreateActivityRequest true "Activity data"
// @Success 201 {object} domain.ActivityDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /activities [post]
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	activity, err := h.activityService.Create(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusBadRequest, "Activity target not found")
		case errors.Is(err, service.ErrInvalidInput):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUnauthorized):
			respondWithError(w, http.StatusUnauthorized, "Authentication required")
		default:
			h.logger.Error("failed to create activity", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "Failed to create activity")
		}
		return
	}
	respondJSON(w, http.StatusCreated, activity)
}

// @Summary List activities for a target
// @Description List activities recorded against a lead, deal or customer
// @Tags Activities
// @Produce json
// @Param targetType path string true "Target type (lead, deal, customer)"
// @Param targetId path string true "Target ID"
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Success 200 {object} domain.PaginatedResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /activities/{targetType}/{targetId} [get]
func (h *ActivityHandler) ListByTarget(w http.ResponseWriter, r *http.Request) {
	targetType, ok := parseActivityTarget(chi.URLParam(r, "targetType"))
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid target type: must be lead, deal or customer")
		return
	}

	targetID, err := uuid.Parse(chi.URLParam(r, "targetId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid target ID: must be a valid UUID")
		return
	}

	page, pageSize := parsePagination(r)
	activities, total, err := h.activityService.ListByTarget(r.Context(), targetType, targetID, page, pageSize)
	if err != nil {
		h.logger.Error("failed to list activities", zap.Error(err), zap.String("target_id", targetID.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to list activities")
		return
	}
	respondJSON(w, http.StatusOK, newPaginatedResponse(activities, total, page, pageSize))
}

// @Summary Delete activity
// @Description Delete an activity. Only the creator or an admin may delete.
// @Tags Activities
// @Param id path string true "Activity ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /activities/{id} [delete]
func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid activity ID: must be a valid UUID")
		return
	}

	if err := h.activityService.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Activity not found")
		case errors.Is(err, service.ErrForbidden):
			respondWithError(w, http.StatusForbidden, "Only the creator or an admin can delete an activity")
		case errors.Is(err, service.ErrUnauthorized):
			respondWithError(w, http.StatusUnauthorized, "Authentication required")
		default:
			h.logger.Error("failed to delete activity", zap.Error(err), zap.String("activity_id", id.String()))
			respondWithError(w, http.StatusInternalServerError, "Failed to delete activity")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
