package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nusalink-net/crm-api/internal/config"
	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/repository"
	"github.com/nusalink-net/crm-api/internal/service"
	"github.com/nusalink-net/crm-api/internal/testutil"
)

func createDealService(t *testing.T, db *gorm.DB) *service.DealService {
	t.Helper()

	logger := zap.NewNop()
	numberSvc := service.NewNumberSequenceService(repository.NewNumberSequenceRepository(db), logger)
	provisioner := &service.StaticProvisioner{
		RouterModel: "MikroTik CCR2004",
		ModemModel:  "Nokia G-240W-C",
		Technician:  "Budi Santoso",
	}

	return service.NewDealService(
		repository.NewDealRepository(db),
		repository.NewDealItemRepository(db),
		repository.NewLeadRepository(db),
		repository.NewProductRepository(db),
		repository.NewDealStatusHistoryRepository(db),
		repository.NewCustomerRepository(db),
		repository.NewCustomerServiceRepository(db),
		repository.NewNotificationRepository(db),
		repository.NewAuditLogRepository(db),
		repository.NewUserRepository(db),
		numberSvc,
		provisioner,
		&config.DealConfig{ApprovalDiscountPercent: 10},
		logger,
	)
}

func floatPtr(v float64) *float64 { return &v }

func TestCreateDeal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	ctx := testutil.SalesContext(sales.ID, sales.Name)

	t.Run("creates draft deal owned by the lead's rep", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, "PT Maju Jaya", sales.ID)

		deal, err := svc.Create(ctx, &domain.CreateDealRequest{
			Title:  "Fiber subscription",
			LeadID: lead.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.DealStatusDraft, deal.Status)
		assert.Equal(t, lead.ID, deal.LeadID)
		assert.Equal(t, sales.ID, deal.SalesID)
		assert.Empty(t, deal.Items)
		assert.Zero(t, deal.TotalAmount)
	})

	t.Run("prices initial items on create", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, "PT Sinar Abadi", sales.ID)
		product := testutil.CreateTestProduct(t, db, "Home Fiber 100Mbps", 400000, 25)

		deal, err := svc.Create(ctx, &domain.CreateDealRequest{
			Title:  "Bundled order",
			LeadID: lead.ID,
			Items: []domain.CreateDealItemRequest{
				{ProductID: product.ID, Quantity: 2},
			},
		})
		require.NoError(t, err)
		require.Len(t, deal.Items, 1)
		assert.InDelta(t, 500000, deal.Items[0].UnitPrice, 0.001)
		assert.InDelta(t, 500000, deal.Items[0].NegotiatedPrice, 0.001)
		assert.InDelta(t, 1000000, deal.TotalAmount, 0.001)
		assert.False(t, deal.NeedsApproval)
		assert.Equal(t, domain.DealStatusDraft, deal.Status)
	})

	t.Run("rejects unknown lead", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.CreateDealRequest{
			Title:  "Orphan deal",
			LeadID: uuid.New(),
		})
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("rejects closed lead", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, "PT Sudah Tutup", sales.ID)
		require.NoError(t, db.Model(&domain.Lead{}).
			Where("id = ?", lead.ID).
			Update("status", domain.LeadStatusClosedLost).Error)

		_, err := svc.Create(ctx, &domain.CreateDealRequest{
			Title:  "Too late",
			LeadID: lead.ID,
		})
		assert.ErrorIs(t, err, service.ErrLeadClosed)
	})

	t.Run("rejects inactive product", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, "PT Produk Lama", sales.ID)
		product := testutil.CreateTestProduct(t, db, "Legacy ADSL", 100000, 20)
		require.NoError(t, db.Model(&domain.Product{}).
			Where("id = ?", product.ID).
			Update("is_active", false).Error)

		_, err := svc.Create(ctx, &domain.CreateDealRequest{
			Title:  "Legacy order",
			LeadID: lead.ID,
			Items: []domain.CreateDealItemRequest{
				{ProductID: product.ID, Quantity: 1},
			},
		})
		assert.ErrorIs(t, err, service.ErrProductInactive)
	})
}

func TestDealItemLedger(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	ctx := testutil.SalesContext(sales.ID, sales.Name)

	lead := testutil.CreateTestLead(t, db, "PT Ledger", sales.ID)
	internet := testutil.CreateTestProduct(t, db, "Home Fiber 100Mbps", 400000, 25)
	staticIP := testutil.CreateTestProduct(t, db, "Static IP Address", 80000, 25)

	deal, err := svc.Create(ctx, &domain.CreateDealRequest{Title: "Ledger deal", LeadID: lead.ID})
	require.NoError(t, err)

	t.Run("add item snapshots the list price", func(t *testing.T) {
		updated, err := svc.AddItem(ctx, deal.ID, &domain.CreateDealItemRequest{
			ProductID: internet.ID,
			Quantity:  1,
		})
		require.NoError(t, err)
		require.Len(t, updated.Items, 1)
		assert.InDelta(t, 500000, updated.Items[0].UnitPrice, 0.001)
		assert.InDelta(t, 500000, updated.Items[0].Subtotal, 0.001)
		assert.Zero(t, updated.Items[0].DiscountPercentage)
		assert.InDelta(t, 500000, updated.TotalAmount, 0.001)
		assert.Equal(t, domain.DealStatusDraft, updated.Status)
	})

	t.Run("second item extends the totals", func(t *testing.T) {
		updated, err := svc.AddItem(ctx, deal.ID, &domain.CreateDealItemRequest{
			ProductID: staticIP.ID,
			Quantity:  2,
		})
		require.NoError(t, err)
		require.Len(t, updated.Items, 2)
		assert.InDelta(t, 700000, updated.TotalAmount, 0.001)
		assert.InDelta(t, 700000, updated.FinalAmount, 0.001)
	})

	t.Run("update item recomputes discount and totals", func(t *testing.T) {
		current, err := svc.GetByID(ctx, deal.ID)
		require.NoError(t, err)

		var itemID uuid.UUID
		for _, item := range current.Items {
			if item.ProductID == staticIP.ID {
				itemID = item.ID
			}
		}
		require.NotEqual(t, uuid.Nil, itemID)

		updated, err := svc.UpdateItem(ctx, deal.ID, itemID, &domain.UpdateDealItemRequest{
			Quantity:        1,
			NegotiatedPrice: floatPtr(90000),
		})
		require.NoError(t, err)
		assert.InDelta(t, 590000, updated.TotalAmount, 0.001)
		assert.Zero(t, updated.DiscountAmount)
		assert.InDelta(t, 590000, updated.FinalAmount, 0.001)
	})

	t.Run("remove item recomputes totals", func(t *testing.T) {
		current, err := svc.GetByID(ctx, deal.ID)
		require.NoError(t, err)

		var itemID uuid.UUID
		for _, item := range current.Items {
			if item.ProductID == staticIP.ID {
				itemID = item.ID
			}
		}
		require.NotEqual(t, uuid.Nil, itemID)

		updated, err := svc.RemoveItem(ctx, deal.ID, itemID)
		require.NoError(t, err)
		require.Len(t, updated.Items, 1)
		assert.InDelta(t, 500000, updated.TotalAmount, 0.001)
		assert.Zero(t, updated.DiscountAmount)
		assert.InDelta(t, 500000, updated.FinalAmount, 0.001)
	})

	t.Run("deal-level discount deducts from the total", func(t *testing.T) {
		updated, err := svc.Update(ctx, deal.ID, &domain.UpdateDealRequest{
			Title:          "Ledger deal",
			DiscountAmount: floatPtr(10000),
		})
		require.NoError(t, err)
		assert.InDelta(t, 500000, updated.TotalAmount, 0.001)
		assert.InDelta(t, 10000, updated.DiscountAmount, 0.001)
		assert.InDelta(t, 490000, updated.FinalAmount, 0.001)
	})
}

func TestAddItemExplicitDiscountPercentage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	ctx := testutil.SalesContext(sales.ID, sales.Name)

	lead := testutil.CreateTestLead(t, db, "PT Persen Khusus", sales.ID)
	product := testutil.CreateTestProduct(t, db, "Home Fiber 100Mbps", 400000, 25)

	deal, err := svc.Create(ctx, &domain.CreateDealRequest{Title: "Quoted deal", LeadID: lead.ID})
	require.NoError(t, err)

	// An explicit percentage wins over the derived one
	updated, err := svc.AddItem(ctx, deal.ID, &domain.CreateDealItemRequest{
		ProductID:       product.ID,
		Quantity:        1,
		NegotiatedPrice: floatPtr(450000),
		DiscountPct:     floatPtr(12.5),
	})
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	assert.InDelta(t, 12.5, updated.Items[0].DiscountPercentage, 0.001)
	assert.InDelta(t, 450000, updated.Items[0].Subtotal, 0.001)
}

func TestDealLevelDiscountTripsApproval(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	ctx := testutil.SalesContext(sales.ID, sales.Name)

	lead := testutil.CreateTestLead(t, db, "PT Potongan", sales.ID)
	product := testutil.CreateTestProduct(t, db, "Home Fiber 100Mbps", 400000, 25)

	deal, err := svc.Create(ctx, &domain.CreateDealRequest{
		Title:  "List price deal",
		LeadID: lead.ID,
		Items: []domain.CreateDealItemRequest{
			{ProductID: product.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.Equal(t, domain.DealStatusDraft, deal.Status)

	t.Run("discount within threshold keeps the draft", func(t *testing.T) {
		updated, err := svc.Update(ctx, deal.ID, &domain.UpdateDealRequest{
			Title:          "List price deal",
			DiscountAmount: floatPtr(30000),
		})
		require.NoError(t, err)
		assert.False(t, updated.NeedsApproval)
		assert.Equal(t, domain.DealStatusDraft, updated.Status)
		assert.InDelta(t, 470000, updated.FinalAmount, 0.001)
	})

	t.Run("discount over threshold advances to waiting approval", func(t *testing.T) {
		updated, err := svc.Update(ctx, deal.ID, &domain.UpdateDealRequest{
			Title:          "List price deal",
			DiscountAmount: floatPtr(60000),
		})
		require.NoError(t, err)
		assert.True(t, updated.NeedsApproval)
		assert.Equal(t, domain.DealStatusWaitingApproval, updated.Status)
		assert.InDelta(t, 500000, updated.TotalAmount, 0.001)
		assert.InDelta(t, 60000, updated.DiscountAmount, 0.001)
		assert.InDelta(t, 440000, updated.FinalAmount, 0.001)
	})
}

func TestDealAutoAdvancesWhenPricedBelowList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	ctx := testutil.SalesContext(sales.ID, sales.Name)

	lead := testutil.CreateTestLead(t, db, "PT Nego Keras", sales.ID)
	product := testutil.CreateTestProduct(t, db, "Home Fiber 100Mbps", 400000, 25)

	deal, err := svc.Create(ctx, &domain.CreateDealRequest{
		Title:  "Discounted deal",
		LeadID: lead.ID,
		Items: []domain.CreateDealItemRequest{
			{ProductID: product.ID, Quantity: 1, NegotiatedPrice: floatPtr(450000)},
		},
	})
	require.NoError(t, err)

	assert.True(t, deal.NeedsApproval)
	assert.Equal(t, domain.DealStatusWaitingApproval, deal.Status)
	require.Len(t, deal.Items, 1)
	assert.InDelta(t, 10, deal.Items[0].DiscountPercentage, 0.001)
	assert.InDelta(t, 450000, deal.TotalAmount, 0.001)
	assert.Zero(t, deal.DiscountAmount)
	assert.InDelta(t, 450000, deal.FinalAmount, 0.001)

	history, err := svc.ListStatusHistory(ctx, deal.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.NotNil(t, history[0].FromStatus)
	assert.Equal(t, domain.DealStatusDraft, *history[0].FromStatus)
	assert.Equal(t, domain.DealStatusWaitingApproval, history[0].ToStatus)
}

func TestSubmitDeal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	ctx := testutil.SalesContext(sales.ID, sales.Name)

	t.Run("empty deal cannot be submitted", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, "PT Kosong", sales.ID)
		deal, err := svc.Create(ctx, &domain.CreateDealRequest{Title: "Empty", LeadID: lead.ID})
		require.NoError(t, err)

		_, err = svc.Submit(ctx, deal.ID)
		assert.ErrorIs(t, err, service.ErrDealHasNoItems)
	})

	t.Run("draft with items moves to waiting_approval", func(t *testing.T) {
		lead := testutil.CreateTestLead(t, db, "PT Isi", sales.ID)
		product := testutil.CreateTestProduct(t, db, "Home Fiber 50Mbps", 200000, 25)
		deal, err := svc.Create(ctx, &domain.CreateDealRequest{
			Title:  "List price deal",
			LeadID: lead.ID,
			Items: []domain.CreateDealItemRequest{
				{ProductID: product.ID, Quantity: 1},
			},
		})
		require.NoError(t, err)
		require.Equal(t, domain.DealStatusDraft, deal.Status)

		submitted, err := svc.Submit(ctx, deal.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DealStatusWaitingApproval, submitted.Status)

		// Not submittable twice
		_, err = svc.Submit(ctx, deal.ID)
		assert.True(t, service.IsStateConflict(err))
	})
}

func TestApproveDeal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)
	managerCtx := testutil.ManagerContext(manager.ID, manager.Name)

	newWaitingDeal := func(t *testing.T, title string) *domain.DealDTO {
		t.Helper()
		lead := testutil.CreateTestLead(t, db, title, sales.ID)
		product := testutil.CreateTestProduct(t, db, "Home Fiber 100Mbps", 400000, 25)
		deal, err := svc.Create(salesCtx, &domain.CreateDealRequest{
			Title:  title,
			LeadID: lead.ID,
			Items: []domain.CreateDealItemRequest{
				{ProductID: product.ID, Quantity: 1, NegotiatedPrice: floatPtr(450000)},
			},
		})
		require.NoError(t, err)
		require.Equal(t, domain.DealStatusWaitingApproval, deal.Status)
		return deal
	}

	t.Run("sales rep cannot approve", func(t *testing.T) {
		deal := newWaitingDeal(t, "Rep approval attempt")
		_, err := svc.Approve(salesCtx, deal.ID)
		assert.ErrorIs(t, err, service.ErrForbidden)
	})

	t.Run("manager approves and the owner is notified", func(t *testing.T) {
		deal := newWaitingDeal(t, "Manager approval")
		approved, err := svc.Approve(managerCtx, deal.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.DealStatusApproved, approved.Status)
		assert.Equal(t, manager.ID, approved.ApprovedByID)
		assert.NotNil(t, approved.ApprovedAt)

		var notification domain.Notification
		err = db.Where("user_id = ? AND type = ?", sales.ID, domain.NotificationTypeDealApproved).
			First(&notification).Error
		require.NoError(t, err)
		assert.Contains(t, notification.Message, deal.Title)
	})

	t.Run("approved deal cannot be approved again", func(t *testing.T) {
		deal := newWaitingDeal(t, "Double approval")
		_, err := svc.Approve(managerCtx, deal.ID)
		require.NoError(t, err)
		_, err = svc.Approve(managerCtx, deal.ID)
		assert.True(t, service.IsStateConflict(err))
	})
}

func TestRejectDeal(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)
	managerCtx := testutil.ManagerContext(manager.ID, manager.Name)

	lead := testutil.CreateTestLead(t, db, "PT Ditolak", sales.ID)
	product := testutil.CreateTestProduct(t, db, "Corporate Fiber 500Mbps", 2000000, 25)
	deal, err := svc.Create(salesCtx, &domain.CreateDealRequest{
		Title:  "Heavy discount",
		LeadID: lead.ID,
		Items: []domain.CreateDealItemRequest{
			{ProductID: product.ID, Quantity: 1, NegotiatedPrice: floatPtr(1500000)},
		},
	})
	require.NoError(t, err)
	require.Equal(t, domain.DealStatusWaitingApproval, deal.Status)

	t.Run("sales rep cannot reject", func(t *testing.T) {
		_, err := svc.Reject(salesCtx, deal.ID, &domain.RejectDealRequest{Reason: "too cheap"})
		assert.ErrorIs(t, err, service.ErrForbidden)
	})

	t.Run("manager rejects with a reason", func(t *testing.T) {
		rejected, err := svc.Reject(managerCtx, deal.ID, &domain.RejectDealRequest{
			Reason: "Discount exceeds mandate",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.DealStatusRejected, rejected.Status)
		assert.Equal(t, "Discount exceeds mandate", rejected.RejectReason)
	})

	t.Run("rejected is terminal", func(t *testing.T) {
		_, err := svc.Submit(salesCtx, deal.ID)
		assert.True(t, service.IsStateConflict(err))
		_, err = svc.Approve(managerCtx, deal.ID)
		assert.True(t, service.IsStateConflict(err))
	})
}

func TestCloseDealWonConversion(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)
	managerCtx := testutil.ManagerContext(manager.ID, manager.Name)

	lead := testutil.CreateTestLead(t, db, "PT Pelanggan Baru", sales.ID)
	product := testutil.CreateTestProduct(t, db, "Home Fiber 100Mbps", 400000, 25)

	deal, err := svc.Create(salesCtx, &domain.CreateDealRequest{
		Title:  "Fiber 100 subscription",
		LeadID: lead.ID,
		Items: []domain.CreateDealItemRequest{
			{ProductID: product.ID, Quantity: 1, NegotiatedPrice: floatPtr(450000)},
		},
	})
	require.NoError(t, err)
	require.Equal(t, domain.DealStatusWaitingApproval, deal.Status)
	require.True(t, deal.NeedsApproval)
	require.InDelta(t, 10, deal.Items[0].DiscountPercentage, 0.001)

	_, err = svc.Approve(managerCtx, deal.ID)
	require.NoError(t, err)

	result, err := svc.Close(salesCtx, deal.ID, &domain.CloseDealRequest{Won: true})
	require.NoError(t, err)

	assert.Equal(t, domain.DealStatusClosedWon, result.Deal.Status)
	assert.NotNil(t, result.Deal.ClosedAt)

	require.NotNil(t, result.Customer)
	customer := result.Customer
	assert.Regexp(t, `^CUST-\d{8}-\d{3}$`, customer.CustomerNumber)
	assert.Equal(t, lead.Name, customer.Name)
	assert.Equal(t, lead.Address, customer.BillingAddress)
	assert.Equal(t, lead.Address, customer.InstallationAddress)
	assert.Equal(t, domain.CustomerTypeIndividual, customer.CustomerType)
	assert.Equal(t, domain.CustomerStatusActive, customer.Status)
	assert.Equal(t, sales.ID, customer.SalesID)
	assert.Equal(t, "created automatically from deal: Fiber 100 subscription", customer.Notes)

	require.Len(t, customer.Services, 1)
	svcDTO := customer.Services[0]
	assert.Regexp(t, `^SVC-\d{8}-\d{3}$`, svcDTO.ServiceNumber)
	assert.InDelta(t, 450000, svcDTO.MonthlyFee, 0.001)
	assert.InDelta(t, service.InstallationFeeResidential, svcDTO.InstallationFee, 0.001)
	assert.Equal(t, domain.ServiceStatusActive, svcDTO.Status)
	assert.Equal(t, domain.BillingCycleMonthly, svcDTO.BillingCycle)
	require.NotNil(t, svcDTO.EquipmentInfo)
	assert.Equal(t, "MikroTik CCR2004", svcDTO.EquipmentInfo.RouterModel)
	assert.Equal(t, "Nokia G-240W-C", svcDTO.EquipmentInfo.ModemModel)
	assert.Equal(t, "100Mbps", svcDTO.EquipmentInfo.Bandwidth)

	var reloadedLead domain.Lead
	require.NoError(t, db.Where("id = ?", lead.ID).First(&reloadedLead).Error)
	assert.Equal(t, domain.LeadStatusClosedWon, reloadedLead.Status)

	var audit domain.AuditLog
	err = db.Where("action = ? AND entity_id = ?", domain.AuditActionConvert, deal.ID).
		First(&audit).Error
	require.NoError(t, err)
	assert.Contains(t, audit.Metadata, customer.CustomerNumber)
	assert.Contains(t, audit.Metadata, customer.ID.String())
	assert.Contains(t, audit.Metadata, lead.ID.String())
	assert.Contains(t, audit.Metadata, sales.ID)

	history, err := svc.ListStatusHistory(salesCtx, deal.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, domain.DealStatusWaitingApproval, history[0].ToStatus)
	assert.Equal(t, domain.DealStatusApproved, history[1].ToStatus)
	assert.Equal(t, domain.DealStatusClosedWon, history[2].ToStatus)
	assert.Contains(t, history[2].Notes, customer.CustomerNumber)

	t.Run("closed deal is terminal", func(t *testing.T) {
		_, err := svc.Close(salesCtx, deal.ID, &domain.CloseDealRequest{Won: true})
		assert.True(t, service.IsStateConflict(err))
	})
}

func TestCloseDealWonCreatesServicePerItem(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)
	managerCtx := testutil.ManagerContext(manager.ID, manager.Name)

	lead := testutil.CreateTestLead(t, db, "PT Multi Layanan", sales.ID)
	internet := testutil.CreateTestProduct(t, db, "Corporate Fiber 500Mbps", 2000000, 25)
	staticIP := testutil.CreateTestProduct(t, db, "Static IP Address", 80000, 25)

	corporate := domain.CustomerTypeCorporate
	yearly := domain.BillingCycleYearly

	deal, err := svc.Create(salesCtx, &domain.CreateDealRequest{
		Title:  "Corporate bundle",
		LeadID: lead.ID,
		Items: []domain.CreateDealItemRequest{
			{ProductID: internet.ID, Quantity: 1, NegotiatedPrice: floatPtr(2300000)},
			{ProductID: staticIP.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.Equal(t, domain.DealStatusWaitingApproval, deal.Status)

	_, err = svc.Approve(managerCtx, deal.ID)
	require.NoError(t, err)

	result, err := svc.Close(salesCtx, deal.ID, &domain.CloseDealRequest{
		Won:                 true,
		CustomerType:        &corporate,
		BillingCycle:        &yearly,
		BillingAddress:      "Jl. Thamrin No. 5, Jakarta",
		InstallationAddress: "Gedung Graha Niaga Lt. 12, Jakarta",
	})
	require.NoError(t, err)

	require.NotNil(t, result.Customer)
	customer := result.Customer
	assert.Equal(t, domain.CustomerTypeCorporate, customer.CustomerType)
	assert.Equal(t, "Jl. Thamrin No. 5, Jakarta", customer.BillingAddress)
	assert.Equal(t, "Gedung Graha Niaga Lt. 12, Jakarta", customer.InstallationAddress)
	assert.Equal(t, lead.Address, customer.Address)

	require.Len(t, customer.Services, 2)
	byProduct := map[uuid.UUID]domain.CustomerServiceDTO{}
	for _, s := range customer.Services {
		byProduct[s.ProductID] = s
	}

	fiber := byProduct[internet.ID]
	assert.InDelta(t, 2300000, fiber.MonthlyFee, 0.001)
	assert.InDelta(t, service.InstallationFeeCorporate, fiber.InstallationFee, 0.001)
	assert.Equal(t, domain.BillingCycleYearly, fiber.BillingCycle)
	assert.Equal(t, "Gedung Graha Niaga Lt. 12, Jakarta", fiber.InstallationAddress)

	ip := byProduct[staticIP.ID]
	assert.InDelta(t, 100000, ip.MonthlyFee, 0.001)
	assert.InDelta(t, service.InstallationFeeDefault, ip.InstallationFee, 0.001)
	require.NotNil(t, ip.EquipmentInfo)
	assert.Equal(t, "Standard", ip.EquipmentInfo.Bandwidth)

	// Service numbers issued from one daily sequence
	assert.NotEqual(t, fiber.ServiceNumber, ip.ServiceNumber)
}

func TestCloseDealLost(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)
	managerCtx := testutil.ManagerContext(manager.ID, manager.Name)

	lead := testutil.CreateTestLead(t, db, "PT Pindah Kompetitor", sales.ID)
	product := testutil.CreateTestProduct(t, db, "Home Fiber 50Mbps", 200000, 25)

	deal, err := svc.Create(salesCtx, &domain.CreateDealRequest{
		Title:  "Lost deal",
		LeadID: lead.ID,
		Items: []domain.CreateDealItemRequest{
			{ProductID: product.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	_, err = svc.Submit(salesCtx, deal.ID)
	require.NoError(t, err)
	_, err = svc.Approve(managerCtx, deal.ID)
	require.NoError(t, err)

	result, err := svc.Close(salesCtx, deal.ID, &domain.CloseDealRequest{
		Won:        false,
		LostReason: "Chose a competitor",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DealStatusClosedLost, result.Deal.Status)
	assert.Nil(t, result.Customer)

	var reloadedLead domain.Lead
	require.NoError(t, db.Where("id = ?", lead.ID).First(&reloadedLead).Error)
	assert.Equal(t, domain.LeadStatusClosedLost, reloadedLead.Status)

	var customerCount int64
	require.NoError(t, db.Model(&domain.Customer{}).Count(&customerCount).Error)
	assert.Zero(t, customerCount)

	history, err := svc.ListStatusHistory(salesCtx, deal.ID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, domain.DealStatusClosedLost, last.ToStatus)
	assert.Equal(t, "Chose a competitor", last.Notes)
}

func TestCloseRequiresApprovedStatus(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	ctx := testutil.SalesContext(sales.ID, sales.Name)

	lead := testutil.CreateTestLead(t, db, "PT Belum Siap", sales.ID)
	product := testutil.CreateTestProduct(t, db, "Home Fiber 50Mbps", 200000, 25)

	deal, err := svc.Create(ctx, &domain.CreateDealRequest{
		Title:  "Draft close attempt",
		LeadID: lead.ID,
		Items: []domain.CreateDealItemRequest{
			{ProductID: product.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.Equal(t, domain.DealStatusDraft, deal.Status)

	_, err = svc.Close(ctx, deal.ID, &domain.CloseDealRequest{Won: true})
	assert.True(t, service.IsStateConflict(err))
}

func TestDealNotEditableAfterApproval(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)
	managerCtx := testutil.ManagerContext(manager.ID, manager.Name)

	lead := testutil.CreateTestLead(t, db, "PT Terkunci", sales.ID)
	product := testutil.CreateTestProduct(t, db, "Home Fiber 100Mbps", 400000, 25)

	deal, err := svc.Create(salesCtx, &domain.CreateDealRequest{
		Title:  "Locked deal",
		LeadID: lead.ID,
		Items: []domain.CreateDealItemRequest{
			{ProductID: product.ID, Quantity: 1, NegotiatedPrice: floatPtr(450000)},
		},
	})
	require.NoError(t, err)
	_, err = svc.Approve(managerCtx, deal.ID)
	require.NoError(t, err)

	_, err = svc.AddItem(salesCtx, deal.ID, &domain.CreateDealItemRequest{
		ProductID: product.ID,
		Quantity:  1,
	})
	assert.True(t, service.IsStateConflict(err))

	_, err = svc.Update(salesCtx, deal.ID, &domain.UpdateDealRequest{Title: "Renamed"})
	assert.True(t, service.IsStateConflict(err))

	err = svc.Delete(salesCtx, deal.ID)
	assert.True(t, service.IsStateConflict(err))
}

func TestListPendingApproval(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)
	managerCtx := testutil.ManagerContext(manager.ID, manager.Name)

	product := testutil.CreateTestProduct(t, db, "Home Fiber 100Mbps", 400000, 25)

	leadA := testutil.CreateTestLead(t, db, "PT Antri Satu", sales.ID)
	_, err := svc.Create(salesCtx, &domain.CreateDealRequest{
		Title:  "Waiting deal",
		LeadID: leadA.ID,
		Items: []domain.CreateDealItemRequest{
			{ProductID: product.ID, Quantity: 1, NegotiatedPrice: floatPtr(450000)},
		},
	})
	require.NoError(t, err)

	leadB := testutil.CreateTestLead(t, db, "PT Masih Draft", sales.ID)
	_, err = svc.Create(salesCtx, &domain.CreateDealRequest{
		Title:  "Draft deal",
		LeadID: leadB.ID,
		Items: []domain.CreateDealItemRequest{
			{ProductID: product.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	pending, err := svc.ListPendingApproval(managerCtx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Waiting deal", pending[0].Title)
	assert.Equal(t, domain.DealStatusWaitingApproval, pending[0].Status)
}

func TestSubmitNotifiesManagers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	salesCtx := testutil.SalesContext(sales.ID, sales.Name)

	lead := testutil.CreateTestLead(t, db, "PT Notifikasi", sales.ID)
	product := testutil.CreateTestProduct(t, db, "Home Fiber 100Mbps", 400000, 25)

	deal, err := svc.Create(salesCtx, &domain.CreateDealRequest{
		Title:  "Needs a decision",
		LeadID: lead.ID,
		Items: []domain.CreateDealItemRequest{
			{ProductID: product.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	_, err = svc.Submit(salesCtx, deal.ID)
	require.NoError(t, err)

	var notifications []domain.Notification
	require.NoError(t, db.Where("user_id = ? AND type = ?",
		manager.ID, domain.NotificationTypeApprovalRequested).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Contains(t, notifications[0].Message, "Needs a decision")
}

func TestDealVisibilityScopedToOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createDealService(t, db)

	owner := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	other := testutil.CreateTestUser(t, db, "Bima Sales", domain.RoleSales)
	manager := testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)

	ownerCtx := testutil.SalesContext(owner.ID, owner.Name)
	otherCtx := testutil.SalesContext(other.ID, other.Name)
	managerCtx := testutil.ManagerContext(manager.ID, manager.Name)

	lead := testutil.CreateTestLead(t, db, "PT Milik Andi", owner.ID)
	deal, err := svc.Create(ownerCtx, &domain.CreateDealRequest{Title: "Private deal", LeadID: lead.ID})
	require.NoError(t, err)

	_, err = svc.GetByID(otherCtx, deal.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	got, err := svc.GetByID(managerCtx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, deal.ID, got.ID)

	ctx := context.Background()
	_, err = svc.Submit(ctx, deal.ID)
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}
