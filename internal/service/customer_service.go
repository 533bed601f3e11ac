package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nusalink-net/crm-api/internal/auth"
	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/mapper"
	"github.com/nusalink-net/crm-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CustomerService handles customer accounts and their provisioned services.
// Accounts normally come out of the deal conversion fan-out; this service
// covers everything that happens to them afterwards.
type CustomerService struct {
	customerRepo     *repository.CustomerRepository
	serviceRepo      *repository.CustomerServiceRepository
	notificationRepo *repository.NotificationRepository
	numberSvc        *NumberSequenceService
	logger           *zap.Logger
}

// NewCustomerService creates a new CustomerService
func NewCustomerService(
	customerRepo *repository.CustomerRepository,
	serviceRepo *repository.CustomerServiceRepository,
	notificationRepo *repository.NotificationRepository,
	numberSvc *NumberSequenceService,
	logger *zap.Logger,
) *CustomerService {
	return &CustomerService{
		customerRepo:     customerRepo,
		serviceRepo:      serviceRepo,
		notificationRepo: notificationRepo,
		numberSvc:        numberSvc,
		logger:           logger,
	}
}

// Create registers a customer directly, outside the deal conversion path.
// Used for accounts migrated from a previous system or walk-in signups.
func (s *CustomerService) Create(ctx context.Context, req *domain.CreateCustomerRequest) (*domain.CustomerWithServicesDTO, error) {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrUnauthorized
	}

	now := time.Now()
	customerNumber, err := s.numberSvc.NextCustomerNumber(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to generate customer number: %w", err)
	}

	customerType := domain.CustomerTypeIndividual
	if req.CustomerType != nil {
		customerType = *req.CustomerType
	}
	billingAddress := req.BillingAddress
	if billingAddress == "" {
		billingAddress = req.Address
	}
	installationAddress := req.InstallationAddress
	if installationAddress == "" {
		installationAddress = req.Address
	}

	customer := &domain.Customer{
		CustomerNumber:      customerNumber,
		Name:                req.Name,
		Email:               req.Email,
		Phone:               req.Phone,
		Address:             req.Address,
		BillingAddress:      billingAddress,
		InstallationAddress: installationAddress,
		CustomerType:        customerType,
		Status:              domain.CustomerStatusActive,
		SalesID:             userCtx.UserID,
		SalesName:           userCtx.DisplayName,
		ActivationDate:      &now,
		Notes:               req.Notes,
	}

	if err := s.customerRepo.Create(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}

	s.logger.Info("customer created",
		zap.String("customerID", customer.ID.String()),
		zap.String("customerNumber", customer.CustomerNumber))

	dto := mapper.ToCustomerWithServicesDTO(customer)
	return &dto, nil
}

// Delete removes a customer. Admin only, and only when the customer has no
// services on record.
func (s *CustomerService) Delete(ctx context.Context, id uuid.UUID) error {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return ErrUnauthorized
	}
	if !userCtx.IsAdmin() {
		return fmt.Errorf("%w: only admins can delete customers", ErrForbidden)
	}

	customer, err := s.getCustomer(ctx, id)
	if err != nil {
		return err
	}
	services, err := s.serviceRepo.ListByCustomer(ctx, customer.ID)
	if err != nil {
		return fmt.Errorf("failed to list customer services: %w", err)
	}
	if len(services) > 0 {
		return fmt.Errorf("%w: customer has %d services", ErrConflict, len(services))
	}

	if err := s.customerRepo.Delete(ctx, customer.ID); err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}

	s.logger.Info("customer deleted",
		zap.String("customerID", customer.ID.String()),
		zap.String("deletedBy", userCtx.UserID))
	return nil
}

// GetByID returns a customer with its services
func (s *CustomerService) GetByID(ctx context.Context, id uuid.UUID) (*domain.CustomerWithServicesDTO, error) {
	customer, err := s.getCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToCustomerWithServicesDTO(customer)
	return &dto, nil
}

// GetByNumber looks a customer up by its generated number
func (s *CustomerService) GetByNumber(ctx context.Context, customerNumber string) (*domain.CustomerWithServicesDTO, error) {
	customer, err := s.customerRepo.GetByNumber(ctx, customerNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: customer %s", ErrNotFound, customerNumber)
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	dto := mapper.ToCustomerWithServicesDTO(customer)
	return &dto, nil
}

// List returns customers with pagination and filtering
func (s *CustomerService) List(ctx context.Context, page, pageSize int, filters *repository.CustomerFilters) ([]domain.CustomerWithServicesDTO, int64, error) {
	customers, total, err := s.customerRepo.List(ctx, page, pageSize, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list customers: %w", err)
	}

	dtos := make([]domain.CustomerWithServicesDTO, 0, len(customers))
	for i := range customers {
		dtos = append(dtos, mapper.ToCustomerWithServicesDTO(&customers[i]))
	}
	return dtos, total, nil
}

// Update updates customer contact and billing details
func (s *CustomerService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateCustomerRequest) (*domain.CustomerWithServicesDTO, error) {
	customer, err := s.getCustomer(ctx, id)
	if err != nil {
		return nil, err
	}

	customer.Name = req.Name
	customer.Email = req.Email
	customer.Phone = req.Phone
	customer.Address = req.Address
	customer.BillingAddress = req.BillingAddress
	customer.InstallationAddress = req.InstallationAddress
	customer.Notes = req.Notes
	if req.CustomerType != nil {
		customer.CustomerType = *req.CustomerType
	}
	if req.Status != nil {
		customer.Status = *req.Status
	}

	if err := s.customerRepo.Update(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}

	dto := mapper.ToCustomerWithServicesDTO(customer)
	return &dto, nil
}

// Suspend suspends a customer and every active service under it.
// Used for non-payment cutoffs.
func (s *CustomerService) Suspend(ctx context.Context, id uuid.UUID) (*domain.CustomerWithServicesDTO, error) {
	return s.setStatus(ctx, id, domain.CustomerStatusSuspended, domain.ServiceStatusSuspended, domain.ServiceStatusActive)
}

// Reactivate restores a suspended customer and its suspended services
func (s *CustomerService) Reactivate(ctx context.Context, id uuid.UUID) (*domain.CustomerWithServicesDTO, error) {
	return s.setStatus(ctx, id, domain.CustomerStatusActive, domain.ServiceStatusActive, domain.ServiceStatusSuspended)
}

func (s *CustomerService) setStatus(ctx context.Context, id uuid.UUID, customerStatus domain.CustomerStatus, serviceStatus, fromServiceStatus domain.ServiceStatus) (*domain.CustomerWithServicesDTO, error) {
	customer, err := s.getCustomer(ctx, id)
	if err != nil {
		return nil, err
	}

	customer.Status = customerStatus
	if err := s.customerRepo.Update(ctx, customer); err != nil {
		return nil, fmt.Errorf("failed to update customer status: %w", err)
	}

	for i := range customer.Services {
		if customer.Services[i].Status != fromServiceStatus {
			continue
		}
		if err := s.serviceRepo.UpdateStatus(ctx, customer.Services[i].ID, serviceStatus); err != nil {
			return nil, fmt.Errorf("failed to update service status: %w", err)
		}
		customer.Services[i].Status = serviceStatus
	}

	s.logger.Info("customer status changed",
		zap.String("customerID", id.String()),
		zap.String("status", string(customerStatus)))

	dto := mapper.ToCustomerWithServicesDTO(customer)
	return &dto, nil
}

// Search performs a case-insensitive customer search
func (s *CustomerService) Search(ctx context.Context, query string, limit int) ([]domain.CustomerDTO, error) {
	if limit <= 0 || limit > repository.MaxPageSize {
		limit = 20
	}

	customers, err := s.customerRepo.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search customers: %w", err)
	}

	dtos := make([]domain.CustomerDTO, 0, len(customers))
	for i := range customers {
		dtos = append(dtos, mapper.ToCustomerDTO(&customers[i]))
	}
	return dtos, nil
}

// ============================================================================
// Provisioned services
// ============================================================================

// GetService returns a single provisioned service
func (s *CustomerService) GetService(ctx context.Context, id uuid.UUID) (*domain.CustomerServiceDTO, error) {
	svc, err := s.getService(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := mapper.ToCustomerServiceDTO(svc)
	return &dto, nil
}

// ListServices returns all services under a customer
func (s *CustomerService) ListServices(ctx context.Context, customerID uuid.UUID) ([]domain.CustomerServiceDTO, error) {
	if _, err := s.getCustomer(ctx, customerID); err != nil {
		return nil, err
	}

	services, err := s.serviceRepo.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}

	dtos := make([]domain.CustomerServiceDTO, 0, len(services))
	for i := range services {
		dtos = append(dtos, mapper.ToCustomerServiceDTO(&services[i]))
	}
	return dtos, nil
}

// UpdateService updates the billing fields and lifecycle status of a service
func (s *CustomerService) UpdateService(ctx context.Context, id uuid.UUID, req *domain.UpdateCustomerServiceRequest) (*domain.CustomerServiceDTO, error) {
	svc, err := s.getService(ctx, id)
	if err != nil {
		return nil, err
	}
	if svc.Status == domain.ServiceStatusTerminated {
		return nil, fmt.Errorf("%w: service is terminated", ErrConflict)
	}

	if req.MonthlyFee != nil {
		svc.MonthlyFee = *req.MonthlyFee
	}
	if req.EndDate != nil {
		endDate, err := time.Parse("2006-01-02", *req.EndDate)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid end date", ErrInvalidInput)
		}
		svc.EndDate = &endDate
	}
	if req.BillingCycle != nil {
		if !req.BillingCycle.IsValid() {
			return nil, fmt.Errorf("%w: invalid billing cycle %q", ErrInvalidInput, *req.BillingCycle)
		}
		svc.BillingCycle = *req.BillingCycle
	}
	if req.Status != nil {
		svc.Status = *req.Status
	}
	if req.InstallationAddress != "" {
		svc.InstallationAddress = req.InstallationAddress
	}

	if err := s.serviceRepo.Update(ctx, svc); err != nil {
		return nil, fmt.Errorf("failed to update service: %w", err)
	}

	dto := mapper.ToCustomerServiceDTO(svc)
	return &dto, nil
}

// TerminateService ends a subscription. Terminated services never reactivate.
func (s *CustomerService) TerminateService(ctx context.Context, id uuid.UUID) (*domain.CustomerServiceDTO, error) {
	svc, err := s.getService(ctx, id)
	if err != nil {
		return nil, err
	}
	if svc.Status == domain.ServiceStatusTerminated {
		return nil, fmt.Errorf("%w: service already terminated", ErrConflict)
	}

	now := time.Now()
	svc.Status = domain.ServiceStatusTerminated
	if svc.EndDate == nil {
		svc.EndDate = &now
	}

	if err := s.serviceRepo.Update(ctx, svc); err != nil {
		return nil, fmt.Errorf("failed to terminate service: %w", err)
	}

	s.logger.Info("service terminated",
		zap.String("serviceID", id.String()),
		zap.String("serviceNumber", svc.ServiceNumber))

	dto := mapper.ToCustomerServiceDTO(svc)
	return &dto, nil
}

// ListExpiring returns active services ending within the given number of days.
// The expiry job and the dashboard both use this.
func (s *CustomerService) ListExpiring(ctx context.Context, withinDays int) ([]domain.CustomerServiceDTO, error) {
	cutoff := time.Now().AddDate(0, 0, withinDays)
	services, err := s.serviceRepo.ListExpiring(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list expiring services: %w", err)
	}

	dtos := make([]domain.CustomerServiceDTO, 0, len(services))
	for i := range services {
		dtos = append(dtos, mapper.ToCustomerServiceDTO(&services[i]))
	}
	return dtos, nil
}

// NotifyExpiring notifies the owning sales rep about every active service
// whose end date falls within the given horizon. Returns the number of
// notifications sent.
func (s *CustomerService) NotifyExpiring(ctx context.Context, withinDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, withinDays)
	services, err := s.serviceRepo.ListExpiring(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list expiring services: %w", err)
	}

	notified := 0
	for i := range services {
		svc := &services[i]
		if svc.Customer.SalesID == "" {
			continue
		}

		serviceID := svc.ID
		notification := &domain.Notification{
			UserID:     svc.Customer.SalesID,
			Type:       string(domain.NotificationTypeServiceExpiring),
			Title:      "Service expiring soon",
			Message:    fmt.Sprintf("Service %s for %s ends on %s", svc.ServiceNumber, svc.Customer.Name, svc.EndDate.Format("2006-01-02")),
			EntityID:   &serviceID,
			EntityType: "CustomerService",
		}
		if err := s.notificationRepo.Create(ctx, notification); err != nil {
			s.logger.Warn("failed to create expiry notification",
				zap.Error(err),
				zap.String("serviceID", svc.ID.String()))
			continue
		}
		notified++
	}

	return notified, nil
}

func (s *CustomerService) getCustomer(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	customer, err := s.customerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: customer %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return customer, nil
}

func (s *CustomerService) getService(ctx context.Context, id uuid.UUID) (*domain.CustomerService, error) {
	svc, err := s.serviceRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: service %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}
	return svc, nil
}
