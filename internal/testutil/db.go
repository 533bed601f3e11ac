// Package testutil provides shared helpers for database-backed tests.
// Tests run against an in-memory SQLite database so they need no
// external services.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/nusalink-net/crm-api/internal/auth"
	"github.com/nusalink-net/crm-api/internal/database"
	"github.com/nusalink-net/crm-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates a fresh in-memory SQLite database with the full schema
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err, "failed to open in-memory database")

	require.NoError(t, database.AutoMigrate(db), "failed to migrate test schema")

	return db
}

// CreateTestUser inserts a user with the given roles and returns it
func CreateTestUser(t *testing.T, db *gorm.DB, name string, roles ...domain.UserRole) *domain.User {
	t.Helper()

	roleStrings := make([]string, len(roles))
	for i, r := range roles {
		roleStrings[i] = string(r)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Email:        fmt.Sprintf("%s-%d@example.com", uuid.NewString()[:8], time.Now().UnixNano()),
		Name:         name,
		PasswordHash: "$2a$10$N9qo8uLOickgx2ZMRZoMye.IjPeGvGzjzQ0Cz.7eUJlMr3BkpGmPa",
		Roles:        pq.StringArray(roleStrings),
		IsActive:     true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTestLead inserts a lead owned by the given sales rep
func CreateTestLead(t *testing.T, db *gorm.DB, name, salesID string) *domain.Lead {
	t.Helper()

	lead := &domain.Lead{
		BaseModel: domain.BaseModel{ID: uuid.New()},
		Name:      name,
		Email:     "lead@example.com",
		Phone:     "081234567890",
		Address:   "Jl. Sudirman No. 10, Jakarta",
		Status:    domain.LeadStatusNew,
		SalesID:   salesID,
		SalesName: "Test Sales",
	}
	require.NoError(t, db.Omit(clause.Associations).Create(lead).Error)
	return lead
}

// CreateTestProduct inserts a catalog product
func CreateTestProduct(t *testing.T, db *gorm.DB, name string, hpp, marginPct float64) *domain.Product {
	t.Helper()

	product := &domain.Product{
		BaseModel: domain.BaseModel{ID: uuid.New()},
		Name:      name,
		Code:      fmt.Sprintf("PRD-%s", uuid.NewString()[:8]),
		Category:  "internet",
		HPP:       hpp,
		MarginPct: marginPct,
		IsActive:  true,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

// SalesContext returns a context authenticated as a plain sales rep
func SalesContext(userID, name string) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:      userID,
		DisplayName: name,
		Email:       "sales@example.com",
		Roles:       []domain.UserRole{domain.RoleSales},
	})
}

// ManagerContext returns a context authenticated as a manager
func ManagerContext(userID, name string) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:      userID,
		DisplayName: name,
		Email:       "manager@example.com",
		Roles:       []domain.UserRole{domain.RoleManager},
	})
}

// AdminContext returns a context authenticated as an admin
func AdminContext(userID, name string) context.Context {
	return auth.WithUserContext(context.Background(), &auth.UserContext{
		UserID:      userID,
		DisplayName: name,
		Email:       "admin@example.com",
		Roles:       []domain.UserRole{domain.RoleAdmin},
	})
}
