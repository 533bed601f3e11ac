package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nusalink-net/crm-api/internal/auth"
	"github.com/nusalink-net/crm-api/internal/config"
	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/nusalink-net/crm-api/internal/repository"
	"github.com/nusalink-net/crm-api/internal/service"
	"github.com/nusalink-net/crm-api/internal/testutil"
)

func createUserService(t *testing.T, db *gorm.DB) *service.UserService {
	t.Helper()

	logger := zap.NewNop()
	tokenManager := auth.NewTokenManager(&config.AuthConfig{
		JWTSecret: "test-secret-for-unit-tests",
		TokenTTL:  3600,
		Issuer:    "crm-api-test",
	})
	auditSvc := service.NewAuditLogService(repository.NewAuditLogRepository(db), logger)

	return service.NewUserService(repository.NewUserRepository(db), tokenManager, auditSvc, logger)
}

func TestCreateUserAndLogin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createUserService(t, db)
	ctx := context.Background()

	created, err := svc.Create(ctx, &domain.CreateUserRequest{
		Email:    "andi@nusalink.net",
		Name:     "Andi Sales",
		Password: "correct-horse-battery",
		Roles:    []string{"sales"},
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)
	assert.Contains(t, created.Roles, "sales")

	t.Run("duplicate email is rejected", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.CreateUserRequest{
			Email:    "andi@nusalink.net",
			Name:     "Andi Clone",
			Password: "another-password",
			Roles:    []string{"sales"},
		})
		assert.ErrorIs(t, err, service.ErrConflict)
	})

	t.Run("login with correct password issues a token", func(t *testing.T) {
		resp, err := svc.Login(ctx, &domain.LoginRequest{
			Email:    "andi@nusalink.net",
			Password: "correct-horse-battery",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Token)
		assert.NotEmpty(t, resp.ExpiresAt)
		assert.Equal(t, created.ID, resp.User.ID)
	})

	t.Run("wrong password and unknown email fail the same way", func(t *testing.T) {
		_, err := svc.Login(ctx, &domain.LoginRequest{
			Email:    "andi@nusalink.net",
			Password: "wrong-password",
		})
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)

		_, err = svc.Login(ctx, &domain.LoginRequest{
			Email:    "nobody@nusalink.net",
			Password: "whatever-password",
		})
		assert.ErrorIs(t, err, service.ErrInvalidCredentials)
	})
}

func TestSetUserActive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createUserService(t, db)
	ctx := context.Background()

	created, err := svc.Create(ctx, &domain.CreateUserRequest{
		Email:    "dewi@nusalink.net",
		Name:     "Dewi Sales",
		Password: "initial-password",
		Roles:    []string{"sales"},
	})
	require.NoError(t, err)

	deactivated, err := svc.SetActive(ctx, created.ID, false)
	require.NoError(t, err)
	assert.False(t, deactivated.IsActive)

	_, err = svc.Login(ctx, &domain.LoginRequest{
		Email:    "dewi@nusalink.net",
		Password: "initial-password",
	})
	assert.ErrorIs(t, err, service.ErrUserInactive)

	reactivated, err := svc.SetActive(ctx, created.ID, true)
	require.NoError(t, err)
	assert.True(t, reactivated.IsActive)

	_, err = svc.Login(ctx, &domain.LoginRequest{
		Email:    "dewi@nusalink.net",
		Password: "initial-password",
	})
	require.NoError(t, err)
}

func TestMe(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createUserService(t, db)

	user := testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)

	me, err := svc.Me(testutil.SalesContext(user.ID, user.Name))
	require.NoError(t, err)
	assert.Equal(t, user.ID, me.ID)
	assert.Equal(t, user.Email, me.Email)

	_, err = svc.Me(context.Background())
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestListUsers(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := createUserService(t, db)

	testutil.CreateTestUser(t, db, "Andi Sales", domain.RoleSales)
	testutil.CreateTestUser(t, db, "Maya Manager", domain.RoleManager)
	testutil.CreateTestUser(t, db, "Agus Admin", domain.RoleAdmin)

	users, total, err := svc.List(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, users, 2)
}
