package service_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/repository"
	"github.com/nusalink-net/crm-api/internal/service"
	"github.com/nusalink-net/crm-api/internal/testutil"
)

func createLeadService(t *testing.T, db *gorm.DB) *service.LeadService {
	t.Helper()
	return service.NewLeadService(
		repository.NewLeadRepository(db),
		repository.NewDealRepository(db),
		zap.NewNop(),
	)
}

func TestCreateLead(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createLeadService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	ctx := testutil.SalesContext(sales.ID, sales.Name)

	lead, err := svc.Create(ctx, &domain.CreateLeadRequest{
		Name:        "PT Calon Pelanggan",
		Email:       "info@calon.co.id",
		Phone:       "02112345678",
		CompanyName: "PT Calon Pelanggan",
		Address:     "Jl. Gatot Subroto No. 3, Jakarta",
		Needs:       "Dedicated internet for head office",
		Source:      "website",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.LeadStatusNew, lead.Status)
	assert.Equal(t, sales.ID, lead.SalesID)
	assert.Equal(t, "PT Calon Pelanggan", lead.Name)
	assert.NotEqual(t, uuid.Nil, lead.ID)
}

func TestUpdateLead(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createLeadService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	ctx := testutil.SalesContext(sales.ID, sales.Name)

	t.Run("updates fields and open status", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, "PT Lama", sales.ID)
		contacted := domain.LeadStatusContacted

		updated, err := svc.Update(ctx, lead.ID, &domain.UpdateLeadRequest{
			Name:   "PT Baru",
			Status: &contacted,
		})
		require.NoError(t, err)
		assert.Equal(t, "PT Baru", updated.Name)
		assert.Equal(t, domain.LeadStatusContacted, updated.Status)
	})

	t.Run("closing statuses cannot be set by hand", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, "PT Jalan Pintas", sales.ID)
		won := domain.LeadStatusClosedWon

		_, err := svc.Update(ctx, lead.ID, &domain.UpdateLeadRequest{
			Name:   lead.Name,
			Status: &won,
		})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("closed lead is read only", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, "PT Sudah Selesai", sales.ID)
		require.NoError(t, db.Model(&domain.Lead{}).
			Where("id = ?", lead.ID).
			Update("status", domain.LeadStatusClosedWon).Error)

		_, err := svc.Update(ctx, lead.ID, &domain.UpdateLeadRequest{Name: "Rename attempt"})
		assert.ErrorIs(t, err, service.ErrLeadClosed)
	})
}

func TestDeleteLead(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createLeadService(t, db)
	dealSvc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	ctx := testutil.SalesContext(sales.ID, sales.Name)

	t.Run("deletes a lead without deals", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, "PT Tanpa Deal", sales.ID)
		require.NoError(t, svc.Delete(ctx, lead.ID))

		_, err := svc.GetByID(ctx, lead.ID)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("refuses to delete a lead with deals", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, "PT Ada Deal", sales.ID)
		_, err := dealSvc.Create(ctx, &domain.CreateDealRequest{Title: "Attached deal", LeadID: lead.ID})
		require.NoError(t, err)

		err = svc.Delete(ctx, lead.ID)
		assert.ErrorIs(t, err, service.ErrConflict)
	})
}

func TestListLeads(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createLeadService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	other := testutil.CreateTestUser(t, db, "Bima Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)

	testutil.CreateTestLead(t, db, "PT Milik Andi Satu", sales.ID)
	testutil.CreateTestLead(t, db, "PT Milik Andi Dua", sales.ID)
	testutil.CreateTestLead(t, db, "PT Milik Bima", other.ID)

	t.Run("rep sees only own leads", func(t *testing.T) {
		leads, total, err := svc.List(testutil.SalesContext(sales.ID, sales.Name),
			1, 20, &repository.LeadFilters{}, repository.LeadSortByCreatedDesc)
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, leads, 2)
	})

	t.Run("manager sees everything", func(t *testing.T) {
		leads, total, err := svc.List(testutil.ManagerContext(manager.ID, manager.Name),
			1, 20, &repository.LeadFilters{}, repository.LeadSortByCreatedDesc)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, leads, 3)
	})

	t.Run("status filter narrows results", func(t *testing.T) {
		status := domain.LeadStatusNew
		_, total, err := svc.List(testutil.ManagerContext(manager.ID, manager.Name),
			1, 20, &repository.LeadFilters{Status: &status}, repository.LeadSortByCreatedDesc)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})
}

func TestSearchLeads(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createLeadService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	ctx := testutil.SalesContext(sales.ID, sales.Name)

	testutil.CreateTestLead(t, db, "PT Nusantara Sejahtera", sales.ID)
	testutil.CreateTestLead(t, db, "CV Harapan Jaya", sales.ID)

	results, err := svc.Search(ctx, "nusantara", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "PT Nusantara Sejahtera", results[0].Name)
}

func TestListLeadDeals(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createLeadService(t, db)
	dealSvc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	ctx := testutil.SalesContext(sales.ID, sales.Name)

	lead := testutil.CreateTestLead(t, db, "PT Banyak Deal", sales.ID)
	_, err := dealSvc.Create(ctx, &domain.CreateDealRequest{Title: "First offer", LeadID: lead.ID})
	require.NoError(t, err)
	_, err = dealSvc.Create(ctx, &domain.CreateDealRequest{Title: "Second offer", LeadID: lead.ID})
	require.NoError(t, err)

	deals, err := svc.ListDeals(ctx, lead.ID)
	require.NoError(t, err)
	assert.Len(t, deals, 2)

	_, err = svc.ListDeals(ctx, uuid.New())
	assert.ErrorIs(t, err, service.ErrNotFound)
}
