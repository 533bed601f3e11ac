package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/repository"
	"github.com/nusalink-net/crm-api/internal/service"
	"go.uber.org/zap"
)

type DealHandler struct {
	dealService *service.DealService
	logger      *zap.Logger
}

func NewDealHandler(dealService *service.DealService, logger *zap.Logger) *DealHandler {
	return &DealHandler{
		dealService: dealService,
		logger:      logger,
	}
}

// @Summary List deals
// @Description List deals with optional filters
// @Tags Deals
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param status query string false "Filter by status (draft, waiting_approval, approved, rejected, closed_won, closed_lost)"
// @Param leadId query string false "Filter by lead ID"
// @Param salesId query string false "Filter by sales rep ID"
// @Param needsApproval query bool false "Filter by approval flag"
// @Param minAmount query number false "Minimum final amount"
// @Param maxAmount query number false "Maximum final amount"
// @Param createdAfter query string false "Created after date (YYYY-MM-DD)"
// @Param createdBefore query string false "Created before date (YYYY-MM-DD)"
// @Param q query string false "Search in title and description"
// @Param sort query string false "Sort by (created_desc, created_asc, amount_desc, amount_asc)"
// @Success 200 {object} domain.PaginatedResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals [get]
func (h *DealHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	filters := &repository.DealFilters{}

	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.DealStatus(s)
		if !status.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid deal status")
			return
		}
		filters.Status = &status
	}

	if lid := r.URL.Query().Get("leadId"); lid != "" {
		if id, err := uuid.Parse(lid); err == nil {
			filters.LeadID = &id
		}
	}

	if sid := r.URL.Query().Get("salesId"); sid != "" {
		filters.SalesID = &sid
	}

	if na := r.URL.Query().Get("needsApproval"); na != "" {
		if v, err := strconv.ParseBool(na); err == nil {
			filters.NeedsApproval = &v
		}
	}

	if minAmt := r.URL.Query().Get("minAmount"); minAmt != "" {
		if v, err := strconv.ParseFloat(minAmt, 64); err == nil {
			filters.MinAmount = &v
		}
	}
	if maxAmt := r.URL.Query().Get("maxAmount"); maxAmt != "" {
		if v, err := strconv.ParseFloat(maxAmt, 64); err == nil {
			filters.MaxAmount = &v
		}
	}

	if ca := r.URL.Query().Get("createdAfter"); ca != "" {
		if t, err := time.Parse("2006-01-02", ca); err == nil {
			filters.CreatedAfter = &t
		}
	}
	if cb := r.URL.Query().Get("createdBefore"); cb != "" {
		if t, err := time.Parse("2006-01-02", cb); err == nil {
			filters.CreatedBefore = &t
		}
	}

	if q := r.URL.Query().Get("q"); q != "" {
		filters.SearchQuery = &q
	}

	sortBy := repository.DealSortByCreatedDesc
	if s := r.URL.Query().Get("sort"); s != "" {
		sortBy = repository.DealSortOption(s)
	}

	deals, total, err := h.dealService.List(r.Context(), page, pageSize, filters, sortBy)
	if err != nil {
		h.logger.Error("failed to list deals", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list deals")
		return
	}

	respondJSON(w, http.StatusOK, newPaginatedResponse(deals, total, page, pageSize))
}

// @Summary List deals pending approval
// @Description List deals waiting for a manager decision. Managers only.
// @Tags Deals
// @Produce json
// @Success 200 {array} domain.DealDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/pending-approval [get]
func (h *DealHandler) ListPendingApproval(w http.ResponseWriter, r *http.Request) {
	deals, err := h.dealService.ListPendingApproval(r.Context())
	if err != nil {
		if errors.Is(err, service.ErrForbidden) {
			respondWithError(w, http.StatusForbidden, "Manager access required")
			return
		}
		h.logger.Error("failed to list pending deals", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list pending deals")
		return
	}
	respondJSON(w, http.StatusOK, deals)
}

// @Summary Create deal
// @Description Create a new draft deal against an open lead
// @Tags Deals
// @Accept json
// @Produce json
// @Param request body domain.CreateDealRequest true "Deal data"
// @Success 201 {object} domain.DealDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals [post]
func (h *DealHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	deal, err := h.dealService.Create(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusBadRequest, "Lead not found")
		case errors.Is(err, service.ErrLeadClosed):
			respondWithError(w, http.StatusConflict, "Lead is already closed")
		case errors.Is(err, service.ErrProductInactive):
			respondWithError(w, http.StatusBadRequest, "Product is not active")
		default:
			h.logger.Error("failed to create deal", zap.Error(err))
			respondWithError(w, http.StatusInternalServerError, "Failed to create deal")
		}
		return
	}

	w.Header().Set("Location", "/api/v1/deals/"+deal.ID.String())
	respondJSON(w, http.StatusCreated, deal)
}

// @Summary Get deal
// @Description Get a deal by ID including items and status history
// @Tags Deals
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {object} DealWithHistoryResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id} [get]
func (h *DealHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	deal, err := h.dealService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Deal not found")
			return
		}
		h.logger.Error("failed to get deal", zap.Error(err), zap.String("deal_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to get deal")
		return
	}

	history, _ := h.dealService.ListStatusHistory(r.Context(), id)

	respondJSON(w, http.StatusOK, DealWithHistoryResponse{
		Deal:          deal,
		StatusHistory: history,
	})
}

// DealWithHistoryResponse wraps a deal with its status history
type DealWithHistoryResponse struct {
	Deal          *domain.DealDTO               `json:"deal"`
	StatusHistory []domain.DealStatusHistoryDTO `json:"statusHistory"`
}

// @Summary Update deal
// @Description Update header fields of an editable deal
// @Tags Deals
// @Accept json
// @Produce json
// @Param id path string true "Deal ID"
// @Param request body domain.UpdateDealRequest true "Deal data"
// @Success 200 {object} domain.DealDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id} [put]
func (h *DealHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	var req domain.UpdateDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	deal, err := h.dealService.Update(r.Context(), id, &req)
	if err != nil {
		h.respondDealError(w, err, id, "update deal")
		return
	}
	respondJSON(w, http.StatusOK, deal)
}

// @Summary Delete deal
// @Description Delete an editable deal
// @Tags Deals
// @Param id path string true "Deal ID"
// @Success 204
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id} [delete]
func (h *DealHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	if err := h.dealService.Delete(r.Context(), id); err != nil {
		h.respondDealError(w, err, id, "delete deal")
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// @Summary Add deal item
// @Description Add a product line to an editable deal
// @Tags Deals
// @Accept json
// @Produce json
// @Param id path string true "Deal ID"
// @Param request body domain.CreateDealItemRequest true "Item data"
// @Success 201 {object} domain.DealDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id}/items [post]
func (h *DealHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	var req domain.CreateDealItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	deal, err := h.dealService.AddItem(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, service.ErrProductInactive) {
			respondWithError(w, http.StatusBadRequest, "Product is not active")
			return
		}
		h.respondDealError(w, err, id, "add deal item")
		return
	}
	respondJSON(w, http.StatusCreated, deal)
}

// @Summary Update deal item
// @Description Change quantity or negotiated price of a line
// @Tags Deals
// @Accept json
// @Produce json
// @Param id path string true "Deal ID"
// @Param itemId path string true "Item ID"
// @Param request body domain.UpdateDealItemRequest true "Item data"
// @Success 200 {object} domain.DealDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id}/items/{itemId} [put]
func (h *DealHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid item ID: must be a valid UUID")
		return
	}

	var req domain.UpdateDealItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	deal, err := h.dealService.UpdateItem(r.Context(), id, itemID, &req)
	if err != nil {
		h.respondDealError(w, err, id, "update deal item")
		return
	}
	respondJSON(w, http.StatusOK, deal)
}

// @Summary Remove deal item
// @Description Remove a line from an editable deal
// @Tags Deals
// @Produce json
// @Param id path string true "Deal ID"
// @Param itemId path string true "Item ID"
// @Success 200 {object} domain.DealDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id}/items/{itemId} [delete]
func (h *DealHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}
	itemID, err := uuid.Parse(chi.URLParam(r, "itemId"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid item ID: must be a valid UUID")
		return
	}

	deal, err := h.dealService.RemoveItem(r.Context(), id, itemID)
	if err != nil {
		h.respondDealError(w, err, id, "remove deal item")
		return
	}
	respondJSON(w, http.StatusOK, deal)
}

// @Summary Submit deal
// @Description Submit a draft deal for approval
// @Tags Deals
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {object} domain.DealDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id}/submit [post]
func (h *DealHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	deal, err := h.dealService.Submit(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrDealHasNoItems) {
			respondWithError(w, http.StatusBadRequest, "Deal has no items")
			return
		}
		h.respondDealError(w, err, id, "submit deal")
		return
	}
	respondJSON(w, http.StatusOK, deal)
}

// @Summary Approve deal
// @Description Approve a deal waiting for a decision. Managers only.
// @Tags Deals
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {object} domain.DealDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id}/approve [post]
func (h *DealHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	deal, err := h.dealService.Approve(r.Context(), id)
	if err != nil {
		h.respondDealError(w, err, id, "approve deal")
		return
	}
	respondJSON(w, http.StatusOK, deal)
}

// @Summary Reject deal
// @Description Reject a deal waiting for a decision with a reason. Managers only.
// @Tags Deals
// @Accept json
// @Produce json
// @Param id path string true "Deal ID"
// @Param request body domain.RejectDealRequest true "Rejection reason"
// @Success 200 {object} domain.DealDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id}/reject [post]
func (h *DealHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	var req domain.RejectDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	deal, err := h.dealService.Reject(r.Context(), id, &req)
	if err != nil {
		h.respondDealError(w, err, id, "reject deal")
		return
	}
	respondJSON(w, http.StatusOK, deal)
}

// @Summary Close deal
// @Description Close an approved deal. Won closes run the conversion fan-out and return the created customer.
// @Tags Deals
// @Accept json
// @Produce json
// @Param id path string true "Deal ID"
// @Param request body domain.CloseDealRequest true "Close outcome"
// @Success 200 {object} domain.ConversionResultDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id}/close [post]
func (h *DealHandler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	var req domain.CloseDealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	result, err := h.dealService.Close(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, service.ErrDealHasNoItems) {
			respondWithError(w, http.StatusBadRequest, "Deal has no items")
			return
		}
		h.respondDealError(w, err, id, "close deal")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// @Summary Get deal status history
// @Description List the status transitions of a deal, oldest first
// @Tags Deals
// @Produce json
// @Param id path string true "Deal ID"
// @Success 200 {array} domain.DealStatusHistoryDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /deals/{id}/history [get]
func (h *DealHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid deal ID: must be a valid UUID")
		return
	}

	history, err := h.dealService.ListStatusHistory(r.Context(), id)
	if err != nil {
		h.respondDealError(w, err, id, "get deal history")
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// respondDealError maps the shared deal service errors to HTTP responses
func (h *DealHandler) respondDealError(w http.ResponseWriter, err error, id uuid.UUID, action string) {
	var stateErr *service.StateConflictError
	switch {
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "Deal not found")
	case errors.Is(err, service.ErrForbidden):
		respondWithError(w, http.StatusForbidden, "Manager access required")
	case errors.Is(err, service.ErrUnauthorized):
		respondWithError(w, http.StatusUnauthorized, "Authentication required")
	case errors.As(err, &stateErr):
		respondStateConflict(w, stateErr)
	default:
		h.logger.Error("failed to "+action, zap.Error(err), zap.String("deal_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to "+action)
	}
}
