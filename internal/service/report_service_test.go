package service_test

import (
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

func createReportService(t *testing.T, db *gorm.DB) *service.ReportService {
	t.Helper()
	return service.NewReportService(
		repository.NewLeadRepository(db),
		repository.NewDealRepository(db),
		repository.NewCustomerServiceRepository(db),
		zap.NewNop(),
	)
}

// seedWonDeal walks a discounted deal through approval and a won close so the
// reports have converted data to aggregate.
func seedWonDeal(t *testing.T, db *gorm.DB, dealSvc *service.DealService, sales, manager *domain.User) *domain.ConversionResultDTO {
	t.Helper()

	salesCtx := testutil.SalesContext(sales.ID, sales.Name)
	managerCtx := testutil.ManagerContext(manager.ID, manager.Name)

	lead := testutil.CreateTestLead(t, db, "PT Konversi", sales.ID)
	product := testutil.CreateTestProduct(t, db, "Home Fiber 100Mbps", 400000, 25)

	deal, err := dealSvc.Create(salesCtx, &domain.CreateDealRequest{
		Title:  "Won subscription",
		LeadID: lead.ID,
		Items: []domain.CreateDealItemRequest{
			{ProductID: product.ID, Quantity: 1, NegotiatedPrice: floatPtr(450000)},
		},
	})
	require.NoError(t, err)

	_, err = dealSvc.Update(salesCtx, deal.ID, &domain.UpdateDealRequest{
		Title:          "Won subscription",
		DiscountAmount: floatPtr(50000),
	})
	require.NoError(t, err)

	_, err = dealSvc.Approve(managerCtx, deal.ID)
	require.NoError(t, err)

	result, err := dealSvc.Close(salesCtx, deal.ID, &domain.CloseDealRequest{Won: true})
	require.NoError(t, err)
	return result
}

func TestSalesFunnel(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealSvc := createDealService(t, db)
	reportSvc := createReportService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)
	managerCtx := testutil.ManagerContext(manager.ID, manager.Name)

	seedWonDeal(t, db, dealSvc, sales, manager)

	draftLead := testutil.CreateTestLead(t, db, "PT Masih Baru", sales.ID)
	_, err := dealSvc.Create(salesCtx, &domain.CreateDealRequest{Title: "Draft deal", LeadID: draftLead.ID})
	require.NoError(t, err)

	testutil.CreateTestLead(t, db, "PT Tanpa Deal", sales.ID)

	funnel, err := reportSvc.SalesFunnel(managerCtx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), funnel.TotalLeads)
	assert.Equal(t, int64(2), funnel.TotalDeals)
	assert.Equal(t, int64(1), funnel.LeadsByStatus[domain.LeadStatusClosedWon])
	assert.Equal(t, int64(2), funnel.LeadsByStatus[domain.LeadStatusNew])
	assert.Equal(t, int64(1), funnel.DealsByStatus[domain.DealStatusClosedWon])
	assert.Equal(t, int64(1), funnel.DealsByStatus[domain.DealStatusDraft])
	assert.InDelta(t, 100.0/3, funnel.ConversionRate, 0.01)
}

func TestSalesFunnelScopedToRep(t *testing.T) {
	db := testutil.SetupTestDB(t)
	reportSvc := createReportService(t, db)

	repA := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	repB := testutil.CreateTestUser(t, db, "Bima Sales", domain.RoleSales)

	testutil.CreateTestLead(t, db, "PT Milik Andi", repA.ID)
	testutil.CreateTestLead(t, db, "PT Milik Bima Satu", repB.ID)
	testutil.CreateTestLead(t, db, "PT Milik Bima Dua", repB.ID)

	funnel, err := reportSvc.SalesFunnel(testutil.SalesContext(repA.ID, repA.Name))
	require.NoError(t, err)
	assert.Equal(t, int64(1), funnel.TotalLeads)

	funnel, err = reportSvc.SalesFunnel(testutil.SalesContext(repB.ID, repB.Name))
	require.NoError(t, err)
	assert.Equal(t, int64(2), funnel.TotalLeads)
}

func TestRevenueSummary(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealSvc := createDealService(t, db)
	reportSvc := createReportService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	managerCtx := testutil.ManagerContext(manager.ID, manager.Name)

	seedWonDeal(t, db, dealSvc, sales, manager)

	t.Run("aggregates won deals and active services", func(t *testing.T) {
		summary, err := reportSvc.RevenueSummary(managerCtx, nil, nil)
		require.NoError(t, err)

		assert.Equal(t, int64(1), summary.WonDeals)
		assert.InDelta(t, 400000, summary.WonAmount, 0.001)
		assert.InDelta(t, 50000, summary.TotalDiscountGiven, 0.001)
		assert.Equal(t, int64(1), summary.ActiveServices)
		assert.InDelta(t, 450000, summary.MonthlyRecurringFee, 0.001)
		assert.InDelta(t, service.InstallationFeeResidential, summary.InstallationRevenue, 0.001)
	})

	t.Run("date range excludes deals closed outside it", func(t *testing.T) {
		from := time.Now().Add(24 * time.Hour)
		summary, err := reportSvc.RevenueSummary(managerCtx, &from, nil)
		require.NoError(t, err)
		assert.Zero(t, summary.WonDeals)
		assert.Zero(t, summary.WonAmount)
	})
}

func TestSalesPerformance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealSvc := createDealService(t, db)
	reportSvc := createReportService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)
	managerCtx := testutil.ManagerContext(manager.ID, manager.Name)

	seedWonDeal(t, db, dealSvc, sales, manager)

	openLead := testutil.CreateTestLead(t, db, "PT Masih Jalan", sales.ID)
	_, err := dealSvc.Create(salesCtx, &domain.CreateDealRequest{Title: "Open deal", LeadID: openLead.ID})
	require.NoError(t, err)

	t.Run("sales rep is denied", func(t *testing.T) {
		_, err := reportSvc.SalesPerformance(salesCtx, nil, nil, 10)
		assert.ErrorIs(t, err, service.ErrForbidden)
	})

	t.Run("manager sees per-rep aggregates", func(t *testing.T) {
		rows, err := reportSvc.SalesPerformance(managerCtx, nil, nil, 10)
		require.NoError(t, err)
		require.Len(t, rows, 1)

		row := rows[0]
		assert.Equal(t, sales.ID, row.SalesID)
		assert.Equal(t, int64(2), row.TotalDeals)
		assert.Equal(t, int64(1), row.WonDeals)
		assert.Zero(t, row.LostDeals)
		assert.InDelta(t, 400000, row.WonAmount, 0.001)
		assert.InDelta(t, 100, row.WinRate, 0.001)
	})
}

func TestDashboard(t *testing.T) {
	db := testutil.SetupTestDB(t)
	dealSvc := createDealService(t, db)
	reportSvc := createReportService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)
	managerCtx := testutil.ManagerContext(manager.ID, manager.Name)

	seedWonDeal(t, db, dealSvc, sales, manager)

	waitingLead := testutil.CreateTestLead(t, db, "PT Menunggu", sales.ID)
	product := testutil.CreateTestProduct(t, db, "Home Fiber 50Mbps", 200000, 25)
	waiting, err := dealSvc.Create(salesCtx, &domain.CreateDealRequest{
		Title:  "Waiting deal",
		LeadID: waitingLead.ID,
		Items: []domain.CreateDealItemRequest{
			{ProductID: product.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	_, err = dealSvc.Submit(salesCtx, waiting.ID)
	require.NoError(t, err)

	t.Run("manager dashboard includes approvals and top sales", func(t *testing.T) {
		dashboard, err := reportSvc.Dashboard(managerCtx)
		require.NoError(t, err)

		assert.Equal(t, int64(2), dashboard.Funnel.TotalDeals)
		assert.Equal(t, int64(1), dashboard.PendingApprovals)
		assert.Len(t, dashboard.RecentDeals, 2)
		require.NotEmpty(t, dashboard.TopSales)
		assert.Equal(t, sales.ID, dashboard.TopSales[0].SalesID)
	})

	t.Run("rep dashboard omits manager sections", func(t *testing.T) {
		dashboard, err := reportSvc.Dashboard(salesCtx)
		require.NoError(t, err)

		assert.Zero(t, dashboard.PendingApprovals)
		assert.Empty(t, dashboard.TopSales)
		assert.Len(t, dashboard.RecentDeals, 2)
	})
}
