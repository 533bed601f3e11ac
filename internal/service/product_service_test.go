package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/repository"
	"github.com/nusalink-net/crm-api/internal/service"
	"github.com/nusalink-net/crm-api/internal/testutil"
)

func TestCreateProduct(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := service.NewProductService(repository.NewProductRepository(db), zap.NewNop())
	ctx := context.Background()

	t.Run("derives the selling price from cost and margin", func(t *testing.T) {
		product, err := svc.Create(ctx, &domain.CreateProductRequest{
			Name:      "Home Fiber 100Mbps",
			Code:      "FIBER-100",
			Category:  "internet",
			HPP:       400000,
			MarginPct: 25,
		})
		require.NoError(t, err)
		assert.InDelta(t, 500000, product.SellingPrice, 0.001)
		assert.True(t, product.IsActive)
	})

	t.Run("duplicate code is rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.CreateProductRequest{
			Name:      "Home Fiber 100Mbps Copy",
			Code:      "FIBER-100",
			HPP:       400000,
			MarginPct: 25,
		})
		assert.ErrorIs(t, err, service.ErrConflict)
	})

	t.Run("invalid margin is rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.CreateProductRequest{
			Name:      "Overpriced",
			HPP:       400000,
			MarginPct: 150,
		})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})
}

func TestUpdateProductRepricesOnlyNewDeals(t *testing.T) {
	db := testutil.SetupTestDB(t)
	productSvc := service.NewProductService(repository.NewProductRepository(db), zap.NewNop())
	dealSvc := createDealService(t, db)

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	ctx := testutil.SalesContext(sales.ID, sales.Name)

	product := testutil.CreateTestProduct(t, db, "Home Fiber 100Mbps", 400000, 25)
	lead := testutil.CreateTestLead(t, db, "PT Harga Lama", sales.ID)

	deal, err := dealSvc.Create(ctx, &domain.CreateDealRequest{
		Title:  "Snapshot deal",
		LeadID: lead.ID,
		Items: []domain.CreateDealItemRequest{
			{ProductID: product.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	require.InDelta(t, 500000, deal.Items[0].UnitPrice, 0.001)

	_, err = productSvc.Update(context.Background(), product.ID, &domain.UpdateProductRequest{
		Name:      product.Name,
		Code:      product.Code,
		Category:  product.Category,
		HPP:       480000,
		MarginPct: 25,
	})
	require.NoError(t, err)

	// Existing line keeps its snapshotted price
	reloaded, err := dealSvc.GetByID(ctx, deal.ID)
	require.NoError(t, err)
	assert.InDelta(t, 500000, reloaded.Items[0].UnitPrice, 0.001)

	// A new line sees the changed catalog price
	updated, err := dealSvc.AddItem(ctx, deal.ID, &domain.CreateDealItemRequest{
		ProductID: product.ID,
		Quantity:  1,
	})
	require.NoError(t, err)
	require.Len(t, updated.Items, 2)
	for _, item := range updated.Items {
		if item.ID != reloaded.Items[0].ID {
			assert.InDelta(t, 600000, item.UnitPrice, 0.001)
		}
	}
}

func TestDeactivateProduct(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := service.NewProductService(repository.NewProductRepository(db), zap.NewNop())
	ctx := context.Background()

	product := testutil.CreateTestProduct(t, db, "Legacy ADSL", 100000, 20)
	active := testutil.CreateTestProduct(t, db, "Home Fiber 50Mbps", 200000, 25)

	deactivated, err := svc.Deactivate(ctx, product.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	listed, err := svc.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, active.ID, listed[0].ID)

	_, err = svc.Deactivate(ctx, uuid.New())
	assert.ErrorIs(t, err, service.ErrNotFound)
}
