package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/repository"
	"github.com/nusalink-net/crm-api/internal/service"
	"github.com/nusalink-net/crm-api/internal/testutil"
)

func TestCreateActivity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := service.NewActivityService(repository.NewActivityRepository(db), zap.NewNop())

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	ctx := testutil.SalesContext(sales.ID, sales.Name)
	lead := testutil.CreateTestLead(t, db, "PT Aktif", sales.ID)

	t.Run("records an activity with explicit timestamp", func(t *testing.T) {
		occurredAt := time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339)
		activity, err := svc.Create(ctx, &domain.CreateActivityRequest{
			TargetType: domain.ActivityTargetLead,
			TargetID:   lead.ID,
			Title:      "Site survey",
			Body:       "Visited the office, fiber reachable from the nearest pole",
			OccurredAt: &occurredAt,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ActivityTargetLead, activity.TargetType)
		assert.Equal(t, sales.ID, activity.CreatorID)
		assert.Equal(t, occurredAt, activity.OccurredAt)
	})

	t.Run("defaults occurredAt to now", func(t *testing.T) {
		activity, err := svc.Create(ctx, &domain.CreateActivityRequest{
			TargetType: domain.ActivityTargetLead,
			TargetID:   lead.ID,
			Title:      "Follow-up call",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, activity.OccurredAt)
	})

	t.Run("rejects unknown target type", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.CreateActivityRequest{
			TargetType: "Invoice",
			TargetID:   lead.ID,
			Title:      "Bad target",
		})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("rejects malformed timestamp", func(t *testing.T) {
		bad := "yesterday"
		_, err := svc.Create(ctx, &domain.CreateActivityRequest{
			TargetType: domain.ActivityTargetLead,
			TargetID:   lead.ID,
			Title:      "Bad timestamp",
			OccurredAt: &bad,
		})
		assert.ErrorIs(t, err, service.ErrInvalidInput)
	})

	t.Run("requires authentication", func(t *testing.T) {
		_, err := svc.Create(context.Background(), &domain.CreateActivityRequest{
			TargetType: domain.ActivityTargetLead,
			TargetID:   lead.ID,
			Title:      "Anonymous",
		})
		assert.ErrorIs(t, err, service.ErrUnauthorized)
	})
}

func TestListActivitiesByTarget(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := service.NewActivityService(repository.NewActivityRepository(db), zap.NewNop())

	sales := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	ctx := testutil.SalesContext(sales.ID, sales.Name)
	lead := testutil.CreateTestLead(t, db, "PT Riwayat", sales.ID)

	for _, title := range []string{"First call", "Quotation sent", "Negotiation meeting"} {
		_, err := svc.Create(ctx, &domain.CreateActivityRequest{
			TargetType: domain.ActivityTargetLead,
			TargetID:   lead.ID,
			Title:      title,
		})
		require.NoError(t, err)
	}

	activities, total, err := svc.ListByTarget(ctx, domain.ActivityTargetLead, lead.ID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, activities, 2)

	activities, total, err = svc.ListByTarget(ctx, domain.ActivityTargetLead, uuid.New(), 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, activities)
}

func TestDeleteActivity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := service.NewActivityService(repository.NewActivityRepository(db), zap.NewNop())

	creator := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	other := testutil.CreateTestUser(t, db, "Bima Sales", domain.RoleSales)
	admin := testutil.CreateTestUser(t, db, "Agus Admin", domain.RoleAdmin)

	creatorCtx := testutil.SalesContext(creator.ID, creator.Name)
	lead := testutil.CreateTestLead(t, db, "PT Hapus", creator.ID)

	newActivity := func(t *testing.T) *domain.ActivityDTO {
		t.Helper()
		activity, err := svc.Create(creatorCtx, &domain.CreateActivityRequest{
			TargetType: domain.ActivityTargetLead,
			TargetID:   lead.ID,
			Title:      "Disposable note",
		})
		require.NoError(t, err)
		return activity
	}

	t.Run("creator can delete", func(t *testing.T) {
		activity := newActivity(t)
		require.NoError(t, svc.Delete(creatorCtx, activity.ID))
	})

	t.Run("another rep cannot delete", func(t *testing.T) {
		activity := newActivity(t)
		err := svc.Delete(testutil.SalesContext(other.ID, other.Name), activity.ID)
		assert.ErrorIs(t, err, service.ErrForbidden)
	})

	t.Run("admin can delete anything", func(t *testing.T) {
		activity := newActivity(t)
		require.NoError(t, svc.Delete(testutil.AdminContext(admin.ID, admin.Name), activity.ID))
	})

	t.Run("missing activity", func(t *testing.T) {
		err := svc.Delete(creatorCtx, uuid.New())
		assert.ErrorIs(t, err, service.ErrNotFound)
	})
}
