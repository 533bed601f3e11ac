package repository

import (
	"context"
	"strings"

	"github.com/nusalink-net/crm-api/internal/auth"
	"gorm.io/gorm"
)

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// SortConfig holds sorting configuration for list queries
type SortConfig struct {
	Field string    // The field to sort by (API field name)
	Order SortOrder // asc or desc
}

// DefaultSortConfig returns a default sort configuration (updated_at DESC)
func DefaultSortConfig() SortConfig {
	return SortConfig{
		Field: "updatedAt",
		Order: SortOrderDesc,
	}
}

// ParseSortOrder parses a string into SortOrder, defaulting to desc
func ParseSortOrder(s string) SortOrder {
	if strings.ToLower(s) == "asc" {
		return SortOrderAsc
	}
	return SortOrderDesc
}

// BuildOrderClause builds the SQL ORDER BY clause from field mapping and sort config
// fieldMap maps API field names to database column names
// Returns the default sort if field is not in whitelist
func BuildOrderClause(config SortConfig, fieldMap map[string]string, defaultColumn string) string {
	column, ok := fieldMap[config.Field]
	if !ok {
		column = defaultColumn
	}

	order := "DESC"
	if config.Order == SortOrderAsc {
		order = "ASC"
	}

	return column + " " + order
}

// ApplySalesScope applies the per-rep ownership filter to a GORM query
// This should be called on queries over sales-owned tables (leads, deals, customers)
// If no filter is set (manager or admin), the query is returned unchanged
func ApplySalesScope(ctx context.Context, query *gorm.DB) *gorm.DB {
	salesID := auth.GetEffectiveSalesFilter(ctx)
	if salesID != nil {
		return query.Where("sales_id = ?", *salesID)
	}
	return query
}

// ApplySalesScopeWithAlias applies the ownership filter using a table alias
// Use this when joining multiple tables and you need to specify which table's sales_id to filter on
func ApplySalesScopeWithAlias(ctx context.Context, query *gorm.DB, tableAlias string) *gorm.DB {
	salesID := auth.GetEffectiveSalesFilter(ctx)
	if salesID != nil {
		return query.Where(tableAlias+".sales_id = ?", *salesID)
	}
	return query
}

// MustHaveSalesAccess checks if the user has access to a record owned by a sales rep
// Returns true if access is allowed, false otherwise
// This is useful for single-record operations where you need to verify access
func MustHaveSalesAccess(ctx context.Context, recordSalesID string) bool {
	salesID := auth.GetEffectiveSalesFilter(ctx)

	// If no filter, user has access to all
	if salesID == nil {
		return true
	}

	return *salesID == recordSalesID
}
