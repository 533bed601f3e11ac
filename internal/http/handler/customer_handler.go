package handler

import (
	"context"
	"encoding/json"
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

type CustomerHandler struct {
	customerService *service.CustomerService
	logger          *zap.Logger
}

func NewCustomerHandler(customerService *service.CustomerService, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{
		customerService: customerService,
		logger:          logger,
	}
}

// @Summary List customers
// @Description List customers with optional filters
// @Tags Customers
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Page size" default(20)
// @Param status query string false "Filter by status (active, inactive, suspended)"
// @Param customerType query string false "Filter by type (individual, corporate)"
// @Param salesId query string false "Filter by sales rep ID"
// @Param createdAfter query string false "Created after date (YYYY-MM-DD)"
// @Param createdBefore query string false "Created before date (YYYY-MM-DD)"
// @Param q query string false "Search in name and customer number"
// @Success 200 {object} domain.PaginatedResponse
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /customers [get]
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)

	filters := &repository.CustomerFilters{}

	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.CustomerStatus(s)
		filters.Status = &status
	}
	if t := r.URL.Query().Get("customerType"); t != "" {
		customerType := domain.CustomerType(t)
		filters.CustomerType = &customerType
	}
	if sid := r.URL.Query().Get("salesId"); sid != "" {
		filters.SalesID = &sid
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

	customers, total, err := h.customerService.List(r.Context(), page, pageSize, filters)
	if err != nil {
		h.logger.Error("failed to list customers", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list customers")
		return
	}

	respondJSON(w, http.StatusOK, newPaginatedResponse(customers, total, page, pageSize))
}

// @Summary Get customer
// @Description Get a customer by ID with its provisioned services
// @Tags Customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {object} domain.CustomerWithServicesDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /customers/{id} [get]
func (h *CustomerHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid customer ID: must be a valid UUID")
		return
	}

	customer, err := h.customerService.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Customer not found")
			return
		}
		h.logger.Error("failed to get customer", zap.Error(err), zap.String("customer_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to get customer")
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

// @Summary Get customer by number
// @Description Look a customer up by its generated number, e.g. CUST-20260831-001
// @Tags Customers
// @Produce json
// @Param number path string true "Customer number"
// @Success 200 {object} domain.CustomerWithServicesDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /customers/by-number/{number} [get]
func (h *CustomerHandler) GetByNumber(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	if number == "" {
		respondWithError(w, http.StatusBadRequest, "Customer number is required")
		return
	}

	customer, err := h.customerService.GetByNumber(r.Context(), number)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Customer not found")
			return
		}
		h.logger.Error("failed to get customer", zap.Error(err), zap.String("customer_number", number))
		respondWithError(w, http.StatusInternalServerError, "Failed to get customer")
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

// @Summary Create customer
// @Description Register a customer directly, outside the deal conversion flow
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body domain.CreateCustomerRequest true "Customer data"
// @Success 201 {object} domain.CustomerWithServicesDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /customers [post]
func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	customer, err := h.customerService.Create(r.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			respondWithError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		h.logger.Error("failed to create customer", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to create customer")
		return
	}
	respondJSON(w, http.StatusCreated, customer)
}

// @Summary Delete customer
// @Description Remove a customer with no services. Admin only
// @Tags Customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 204 "No Content"
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /customers/{id} [delete]
func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid customer ID: must be a valid UUID")
		return
	}

	if err := h.customerService.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Customer not found")
		case errors.Is(err, service.ErrForbidden):
			respondWithError(w, http.StatusForbidden, "Only admins can delete customers")
		case errors.Is(err, service.ErrConflict):
			respondWithError(w, http.StatusConflict, "Customer still has services")
		default:
			h.logger.Error("failed to delete customer", zap.Error(err), zap.String("customer_id", id.String()))
			respondWithError(w, http.StatusInternalServerError, "Failed to delete customer")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// @Summary Update customer
// @Description Update customer contact and billing details
// @Tags Customers
// @Accept json
// @Produce json
// @Param id path string true "Customer ID"
// @Param request body domain.UpdateCustomerRequest true "Customer data"
// @Success 200 {object} domain.CustomerWithServicesDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /customers/{id} [put]
func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid customer ID: must be a valid UUID")
		return
	}

	var req domain.UpdateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	customer, err := h.customerService.Update(r.Context(), id, &req)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Customer not found")
			return
		}
		h.logger.Error("failed to update customer", zap.Error(err), zap.String("customer_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to update customer")
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

// @Summary Suspend customer
// @Description Suspend a customer and its active services
// @Tags Customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {object} domain.CustomerWithServicesDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /customers/{id}/suspend [post]
func (h *CustomerHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.customerService.Suspend)
}

// @Summary Reactivate customer
// @Description Restore a suspended customer and its suspended services
// @Tags Customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {object} domain.CustomerWithServicesDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /customers/{id}/reactivate [post]
func (h *CustomerHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, h.customerService.Reactivate)
}

func (h *CustomerHandler) setStatus(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) (*domain.CustomerWithServicesDTO, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid customer ID: must be a valid UUID")
		return
	}

	customer, err := fn(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Customer not found")
			return
		}
		h.logger.Error("failed to change customer status", zap.Error(err), zap.String("customer_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to change customer status")
		return
	}
	respondJSON(w, http.StatusOK, customer)
}

// @Summary Search customers
// @Description Case-insensitive search across name, number and email
// @Tags Customers
// @Produce json
// @Param q query string true "Search query"
// @Param limit query int false "Max results" default(20)
// @Success 200 {array} domain.CustomerDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /customers/search [get]
func (h *CustomerHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'q' is required")
		return
	}

	limit := parseIntQuery(r, "limit", 20)
	customers, err := h.customerService.Search(r.Context(), q, limit)
	if err != nil {
		h.logger.Error("failed to search customers", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to search customers")
		return
	}
	respondJSON(w, http.StatusOK, customers)
}

// @Summary List customer services
// @Description List all provisioned services under a customer
// @Tags Customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {array} domain.CustomerServiceDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /customers/{id}/services [get]
func (h *CustomerHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid customer ID: must be a valid UUID")
		return
	}

	services, err := h.customerService.ListServices(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Customer not found")
			return
		}
		h.logger.Error("failed to list services", zap.Error(err), zap.String("customer_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to list services")
		return
	}
	respondJSON(w, http.StatusOK, services)
}

// @Summary Get service
// @Description Get a provisioned service by ID
// @Tags Services
// @Produce json
// @Param id path string true "Service ID"
// @Success 200 {object} domain.CustomerServiceDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /services/{id} [get]
func (h *CustomerHandler) GetService(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid service ID: must be a valid UUID")
		return
	}

	svc, err := h.customerService.GetService(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondWithError(w, http.StatusNotFound, "Service not found")
			return
		}
		h.logger.Error("failed to get service", zap.Error(err), zap.String("service_id", id.String()))
		respondWithError(w, http.StatusInternalServerError, "Failed to get service")
		return
	}
	respondJSON(w, http.StatusOK, svc)
}

// @Summary Update service
// @Description Update billing fields and lifecycle status of a service
// @Tags Services
// @Accept json
// @Produce json
// @Param id path string true "Service ID"
// @Param request body domain.UpdateCustomerServiceRequest true "Service data"
// @Success 200 {object} domain.CustomerServiceDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /services/{id} [put]
func (h *CustomerHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid service ID: must be a valid UUID")
		return
	}

	var req domain.UpdateCustomerServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body: malformed JSON")
		return
	}

	if err := validate.Struct(req); err != nil {
		respondValidationError(w, err)
		return
	}

	svc, err := h.customerService.UpdateService(r.Context(), id, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Service not found")
		case errors.Is(err, service.ErrConflict):
			respondWithError(w, http.StatusConflict, err.Error())
		case errors.Is(err, service.ErrInvalidInput):
			respondWithError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("failed to update service", zap.Error(err), zap.String("service_id", id.String()))
			respondWithError(w, http.StatusInternalServerError, "Failed to update service")
		}
		return
	}
	respondJSON(w, http.StatusOK, svc)
}

// @Summary Terminate service
// @Description End a subscription permanently
// @Tags Services
// @Produce json
// @Param id path string true "Service ID"
// @Success 200 {object} domain.CustomerServiceDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /services/{id}/terminate [post]
func (h *CustomerHandler) TerminateService(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid service ID: must be a valid UUID")
		return
	}

	svc, err := h.customerService.TerminateService(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "Service not found")
		case errors.Is(err, service.ErrConflict):
			respondWithError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("failed to terminate service", zap.Error(err), zap.String("service_id", id.String()))
			respondWithError(w, http.StatusInternalServerError, "Failed to terminate service")
		}
		return
	}
	respondJSON(w, http.StatusOK, svc)
}

// @Summary List expiring services
// @Description List active services ending within the given number of days
// @Tags Services
// @Produce json
// @Param withinDays query int false "Horizon in days" default(30)
// @Success 200 {array} domain.CustomerServiceDTO
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /services/expiring [get]
func (h *CustomerHandler) ListExpiringServices(w http.ResponseWriter, r *http.Request) {
	withinDays := parseIntQuery(r, "withinDays", 30)
	services, err := h.customerService.ListExpiring(r.Context(), withinDays)
	if err != nil {
		h.logger.Error("failed to list expiring services", zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "Failed to list expiring services")
		return
	}
	respondJSON(w, http.StatusOK, services)
}
