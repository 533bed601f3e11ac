package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nusalink-net/crm-api/internal/repository"
	"github.com/nusalink-net/crm-api/internal/service"
	"github.com/nusalink-net/crm-api/internal/testutil"
)

func setupNumberSequenceService(t *testing.T) *service.NumberSequenceService {
	db := testutil.SetupTestDB(t)
	repo := repository.NewNumberSequenceRepository(db)
	return service.NewNumberSequenceService(repo, zap.NewNop())
}

func TestNextCustomerNumber(t *testing.T) {
	svc := setupNumberSequenceService(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	first, err := svc.NextCustomerNumber(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "CUST-20260831-001", first)

	second, err := svc.NextCustomerNumber(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "CUST-20260831-002", second)
}

func TestNextServiceNumber(t *testing.T) {
	svc := setupNumberSequenceService(t)
	ctx := context.Background()
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	number, err := svc.NextServiceNumber(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "SVC-20260831-001", number)
}

func TestSequencesAreIndependentPerEntityAndDay(t *testing.T) {
	svc := setupNumberSequenceService(t)
	ctx := context.Background()
	day1 := time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 9, 1, 1, 0, 0, 0, time.UTC)

	custNumber, err := svc.NextCustomerNumber(ctx, day1)
	require.NoError(t, err)
	svcNumber, err := svc.NextServiceNumber(ctx, day1)
	require.NoError(t, err)

	// Service sequence does not share a counter with the customer sequence
	assert.Equal(t, "CUST-20260831-001", custNumber)
	assert.Equal(t, "SVC-20260831-001", svcNumber)

	// A new day restarts the counter at 001
	nextDay, err := svc.NextCustomerNumber(ctx, day2)
	require.NoError(t, err)
	assert.Equal(t, "CUST-20260901-001", nextDay)
}

func TestNextNumbersInTx(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repo := repository.NewNumberSequenceRepository(db)
	svc := service.NewNumberSequenceService(repo, zap.NewNop())
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	err := db.Transaction(func(tx *gorm.DB) error {
		custNumber, err := svc.NextCustomerNumberInTx(tx, now)
		require.NoError(t, err)
		assert.Equal(t, "CUST-20260831-001", custNumber)

		svcNumber, err := svc.NextServiceNumberInTx(tx, now)
		require.NoError(t, err)
		assert.Equal(t, "SVC-20260831-001", svcNumber)
		return nil
	})
	require.NoError(t, err)

	// Committed sequence rows continue outside the transaction
	next, err := svc.NextCustomerNumber(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, "CUST-20260831-002", next)
}
