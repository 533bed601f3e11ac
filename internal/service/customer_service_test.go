package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/repository"
	"github.com/nusalink-net/crm-api/internal/service"
	"github.com/nusalink-net/crm-api/internal/testutil"
)

func strPtr(s string) *string { return &s }

func createCustomerService(t *testing.T, db *gorm.DB) *service.CustomerService {
	t.Helper()
	return service.NewCustomerService(
		repository.NewCustomerRepository(db),
		repository.NewCustomerServiceRepository(db),
		repository.NewNotificationRepository(db),
		service.NewNumberSequenceService(repository.NewNumberSequenceRepository(db), zap.NewNop()),
		zap.NewNop(),
	)
}

func TestCreateCustomerDirectly(t *testing.T) {
	db := testutil.SetupTestDB(t)
	custSvc := createCustomerService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)

	corporate := domain.CustomerTypeCorporate
	created, err := custSvc.Create(salesCtx, &domain.CreateCustomerRequest{
		Name:         "PT Migrasi Lama",
		Email:        "admin@migrasilama.co.id",
		Address:      "Jl. Veteran 12, Surabaya",
		CustomerType: &corporate,
		Notes:        "migrated from legacy billing",
	})
	require.NoError(t, err)
	assert.Regexp(t, `^CUST-\d{8}-\d{3}$`, created.CustomerNumber)
	assert.Equal(t, domain.CustomerStatusActive, created.Status)
	assert.Equal(t, domain.CustomerTypeCorporate, created.CustomerType)
	assert.Equal(t, "Jl. Veteran 12, Surabaya", created.BillingAddress)
	assert.Equal(t, "Jl. Veteran 12, Surabaya", created.InstallationAddress)
	assert.Equal(t, sales.ID, created.SalesID)
	assert.Empty(t, created.Services)

	t.Run("defaults to individual type", func(t *testing.T) {
		created, err := custSvc.Create(salesCtx, &domain.CreateCustomerRequest{Name: "Pak Budi"})
		require.NoError(t, err)
		assert.Equal(t, domain.CustomerTypeIndividual, created.CustomerType)
	})

	t.Run("requires authentication", func(t *testing.T) {
		_, err := custSvc.Create(context.Background(), &domain.CreateCustomerRequest{Name: "Nobody"})
		assert.ErrorIs(t, err, service.ErrUnauthorized)
	})
}

func TestDeleteCustomer(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealSvc := createDealService(t, db)
	custSvc := createCustomerService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	admin := testutil.CreateTestUser(t, db, "Sari Admin", domain.RoleAdmin)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)
	adminCtx := testutil.AdminContext(admin.ID, admin.Name)

	empty, err := custSvc.Create(salesCtx, &domain.CreateCustomerRequest{Name: "Kosong"})
	require.NoError(t, err)

	t.Run("admin only", func(t *testing.T) {
		err := custSvc.Delete(salesCtx, empty.ID)
		assert.ErrorIs(t, err, service.ErrForbidden)
	})

	t.Run("refuses customers with services", func(t *testing.T) {
		converted := seedWonDeal(t, db, dealSvc, sales, manager)
		err := custSvc.Delete(adminCtx, converted.Customer.ID)
		assert.ErrorIs(t, err, service.ErrConflict)
	})

	t.Run("deletes a customer with no services", func(t *testing.T) {
		require.NoError(t, custSvc.Delete(adminCtx, empty.ID))
		_, err := custSvc.GetByID(adminCtx, empty.ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}

func TestGetCustomerByNumber(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealSvc := createDealService(t, db)
	custSvc := createCustomerService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)

	result := seedWonDeal(t, db, dealSvc, sales, manager)

	found, err := custSvc.GetByNumber(salesCtx, result.Customer.CustomerNumber)
	require.NoError(t, err)
	assert.Equal(t, result.Customer.ID, found.ID)
	assert.Len(t, found.Services, 1)

	_, err = custSvc.GetByNumber(salesCtx, "CUST-19700101-999")
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestSuspendAndReactivateCustomer(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealSvc := createDealService(t, db)
	custSvc := createCustomerService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)

	result := seedWonDeal(t, db, dealSvc, sales, manager)
	customerID := result.Customer.ID

	suspended, err := custSvc.Suspend(salesCtx, customerID)
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerStatusSuspended, suspended.Status)
	require.Len(t, suspended.Services, 1)
	assert.Equal(t, domain.ServiceStatusSuspended, suspended.Services[0].Status)

	reactivated, err := custSvc.Reactivate(salesCtx, customerID)
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerStatusActive, reactivated.Status)
	assert.Equal(t, domain.ServiceStatusActive, reactivated.Services[0].Status)
}

func TestSuspendLeavesTerminatedServicesAlone(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealSvc := createDealService(t, db)
	custSvc := createCustomerService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)

	result := seedWonDeal(t, db, dealSvc, sales, manager)
	serviceID := result.Customer.Services[0].ID

	_, err := custSvc.TerminateService(salesCtx, serviceID)
	require.NoError(t, err)

	suspended, err := custSvc.Suspend(salesCtx, result.Customer.ID)
	require.NoError(t, err)
	require.Len(t, suspended.Services, 1)
	assert.Equal(t, domain.ServiceStatusTerminated, suspended.Services[0].Status)
}

func TestUpdateCustomerService(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealSvc := createDealService(t, db)
	custSvc := createCustomerService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)

	result := seedWonDeal(t, db, dealSvc, sales, manager)
	serviceID := result.Customer.Services[0].ID

	t.Run("updates fee and end date", func(t *testing.T) {
		quarterly := domain.BillingCycleQuarterly
		updated, err := custSvc.UpdateService(salesCtx, serviceID, &domain.UpdateCustomerServiceRequest{
			MonthlyFee:   floatPtr(475000),
			EndDate:      strPtr("2027-08-31"),
			BillingCycle: &quarterly,
		})
		require.NoError(t, err)
		assert.InDelta(t, 475000, updated.MonthlyFee, 0.001)
		assert.Equal(t, domain.BillingCycleQuarterly, updated.BillingCycle)
		require.NotNil(t, updated.EndDate)
		assert.Equal(t, "2027-08-31", *updated.EndDate)
	})

	t.Run("rejects malformed end date", func(t *testing.T) {
		_, err := custSvc.UpdateService(salesCtx, serviceID, &domain.UpdateCustomerServiceRequest{
			EndDate: strPtr("31-08-2027"),
		})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("terminated service cannot be updated", func(t *testing.T) {
		_, err := custSvc.TerminateService(salesCtx, serviceID)
		require.NoError(t, err)

		_, err = custSvc.UpdateService(salesCtx, serviceID, &domain.UpdateCustomerServiceRequest{
			MonthlyFee: floatPtr(500000),
		})
		assert.ErrorIs(t, err, service.ErrConflict)

		_, err = custSvc.TerminateService(salesCtx, serviceID)
		assert.ErrorIs(t, err, service.ErrConflict)
	})
}

func TestSearchCustomers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealSvc := createDealService(t, db)
	custSvc := createCustomerService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)

	result := seedWonDeal(t, db, dealSvc, sales, manager)

	t.Run("matches by name", func(t *testing.T) {
		found, err := custSvc.Search(salesCtx, "konversi", 10)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, result.Customer.ID, found[0].ID)
	})

	t.Run("matches by customer number", func(t *testing.T) {
		found, err := custSvc.Search(salesCtx, result.Customer.CustomerNumber, 10)
		require.NoError(t, err)
		require.Len(t, found, 1)
	})

	t.Run("no match returns empty", func(t *testing.T) {
		found, err := custSvc.Search(salesCtx, "tidak ada", 10)
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}

func TestListExpiringServices(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealSvc := createDealService(t, db)
	custSvc := createCustomerService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)

	result := seedWonDeal(t, db, dealSvc, sales, manager)
	serviceID := result.Customer.Services[0].ID

	expiring, err := custSvc.ListExpiring(salesCtx, 30)
	require.NoError(t, err)
	assert.Empty(t, expiring)

	endDate := time.Now().AddDate(0, 0, 14)
	require.NoError(t, db.Model(&domain.CustomerService{}).
		Where("id = ?", serviceID).
		Update("end_date", endDate).Error)

	expiring, err = custSvc.ListExpiring(salesCtx, 30)
	require.NoError(t, err)
	require.Len(t, expiring, 1)
	assert.Equal(t, serviceID, expiring[0].ID)

	expiring, err = custSvc.ListExpiring(salesCtx, 7)
	require.NoError(t, err)
	assert.Empty(t, expiring)
}

func TestNotifyExpiring(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealSvc := createDealService(t, db)
	custSvc := createCustomerService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	managerCtx := testutil.ManagerContext(manager.ID, manager.Name)

	result := seedWonDeal(t, db, dealSvc, sales, manager)
	svcDTO := result.Customer.Services[0]

	endDate := time.Now().AddDate(0, 0, 14)
	require.NoError(t, db.Model(&domain.CustomerService{}).
		Where("id = ?", svcDTO.ID).
		Update("end_date", endDate).Error)

	notified, err := custSvc.NotifyExpiring(managerCtx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, notified)

	var notification domain.Notification
	err = db.Where("user_id = ? AND type = ?", sales.ID, domain.NotificationTypeServiceExpiring).
		First(&notification).Error
	require.NoError(t, err)
	assert.Contains(t, notification.Message, svcDTO.ServiceNumber)
	require.NotNil(t, notification.EntityID)
	assert.Equal(t, svcDTO.ID, *notification.EntityID)
}

func TestGetCustomerScopedToOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealSvc := createDealService(t, db)
	custSvc := createCustomerService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	other := testutil.CreateTestUser(t, db, "Bima Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)

	result := seedWonDeal(t, db, dealSvc, sales, manager)

	_, err := custSvc.GetByID(testutil.SalesContext(other.ID, other.Name), result.Customer.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = custSvc.GetByID(testutil.ManagerContext(manager.ID, manager.Name), result.Customer.ID)
	require.NoError(t, err)
}
