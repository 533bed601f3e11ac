package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nusalink-net/crm-api/internal/auth"
	"github.com/nusalink-net/crm-api/internal/domain"
)

func TestUserContextRoundTrip(t *testing.T) {
	userCtx := &auth.UserContext{
		UserID:      "user-123",
		DisplayName: "Andi Sales",
		Roles:       []domain.UserRole{domain.RoleSales},
	}

	ctx := auth.WithUserContext(context.Background(), userCtx)
	got, ok := auth.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, userCtx, got)

	_, ok = auth.FromContext(context.Background())
	assert.False(t, ok)
}

func TestRoleHelpers(t *testing.T) {
	sales := &auth.UserContext{UserID: "s1", Roles: []domain.UserRole{domain.RoleSales}}
	manager := &auth.UserContext{UserID: "m1", Roles: []domain.UserRole{domain.RoleManager}}
	admin := &auth.UserContext{UserID: "a1", Roles: []domain.UserRole{domain.RoleAdmin}}

	assert.False(t, sales.CanApproveDeals())
	assert.True(t, manager.CanApproveDeals())
	assert.True(t, admin.CanApproveDeals())

	assert.False(t, sales.IsAdmin())
	assert.True(t, admin.IsAdmin())

	require.NotNil(t, sales.GetSalesFilter())
	assert.Equal(t, "s1", *sales.GetSalesFilter())
	assert.Nil(t, manager.GetSalesFilter())
	assert.Nil(t, admin.GetSalesFilter())
}

func TestGetEffectiveSalesFilter(t *testing.T) {
	salesCtx := auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID: "s1",
		Roles:  []domain.UserRole{domain.RoleSales},
	})
	managerCtx := auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID: "m1",
		Roles:  []domain.UserRole{domain.RoleManager},
	})

	t.Run("rep defaults to own records", func(t *testing.T) {
		filter := auth.GetEffectiveSalesFilter(salesCtx)
		require.NotNil(t, filter)
		assert.Equal(t, "s1", *filter)
	})

	t.Run("manager defaults to everything", func(t *testing.T) {
		assert.Nil(t, auth.GetEffectiveSalesFilter(managerCtx))
	})

	t.Run("explicit scope wins", func(t *testing.T) {
		target := "s2"
		scoped := auth.WithSalesScope(managerCtx, &auth.SalesScope{
			SalesID:            &target,
			RequestedByManager: true,
		})
		filter := auth.GetEffectiveSalesFilter(scoped)
		require.NotNil(t, filter)
		assert.Equal(t, "s2", *filter)
	})

	t.Run("no context means no filter", func(t *testing.T) {
		assert.Nil(t, auth.GetEffectiveSalesFilter(context.Background()))
	})
}

func TestGetDisplayNameInitials(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Andi Pratama", "AP"},
		{"Maya", "M"},
		{"", ""},
		{"budi agus santoso", "BAS"},
	}

	for _, tt := range tests {
		u := &auth.UserContext{DisplayName: tt.name}
		assert.Equal(t, tt.want, u.GetDisplayNameInitials())
	}
}
