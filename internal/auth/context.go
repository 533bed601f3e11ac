package auth

import (
	"context"
	"strings"

	"github.com/nusalink-net/crm-api/internal/domain"
)

// UserContext holds authenticated user information
type UserContext struct {
	UserID      string
	DisplayName string
	Email       string
	Roles       []domain.UserRole
}

type contextKey string

const userContextKey contextKey = "userContext"
const salesScopeKey contextKey = "salesScope"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// MustFromContext extracts user context or panics
func MustFromContext(ctx context.Context) *UserContext {
	user, ok := FromContext(ctx)
	if !ok {
		panic("user context not found in context")
	}
	return user
}

// HasRole checks if user has a specific role
func (u *UserContext) HasRole(role domain.UserRole) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if user has any of the specified roles
func (u *UserContext) HasAnyRole(roles ...domain.UserRole) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}

// IsAdmin checks if user is a system administrator
func (u *UserContext) IsAdmin() bool {
	return u.HasRole(domain.RoleAdmin)
}

// CanApproveDeals checks if the user may approve, reject or close deals
// that require approval. Only managers and admins can.
func (u *UserContext) CanApproveDeals() bool {
	return u.HasAnyRole(domain.RoleManager, domain.RoleAdmin)
}

// CanAccessAllSales checks if the user can see records owned by other
// sales reps. Sales users only see their own leads, deals and customers.
func (u *UserContext) CanAccessAllSales() bool {
	return u.HasAnyRole(domain.RoleManager, domain.RoleAdmin)
}

// GetSalesFilter returns the sales ID to filter queries by
// Returns nil for managers and admins (no filtering needed)
func (u *UserContext) GetSalesFilter() *string {
	if u.CanAccessAllSales() {
		return nil
	}
	id := u.UserID
	return &id
}

// GetDisplayNameInitials returns initials from the display name (e.g., "John Doe" -> "JD")
func (u *UserContext) GetDisplayNameInitials() string {
	if u.DisplayName == "" {
		return ""
	}
	parts := strings.Fields(u.DisplayName)
	initials := ""
	for _, part := range parts {
		if len(part) > 0 {
			initials += strings.ToUpper(string(part[0]))
		}
	}
	return initials
}

// RolesAsStrings returns roles as a slice of strings
func (u *UserContext) RolesAsStrings() []string {
	result := make([]string, len(u.Roles))
	for i, role := range u.Roles {
		result[i] = string(role)
	}
	return result
}

// SalesScope represents the effective ownership filter for queries
// This is set by middleware based on user context and query parameters
type SalesScope struct {
	// SalesID is the sales rep to filter by (nil means no filter / all reps)
	SalesID *string
	// RequestedByManager indicates a manager explicitly asked for one rep's records
	RequestedByManager bool
}

// WithSalesScope adds a sales ownership scope to the context
func WithSalesScope(ctx context.Context, scope *SalesScope) context.Context {
	return context.WithValue(ctx, salesScopeKey, scope)
}

// SalesScopeFromContext extracts the sales ownership scope from the context
func SalesScopeFromContext(ctx context.Context) (*SalesScope, bool) {
	scope, ok := ctx.Value(salesScopeKey).(*SalesScope)
	return scope, ok
}

// GetEffectiveSalesFilter returns the sales ID to filter queries by
// This should be used by repositories to apply ownership filtering
// Returns nil if no filtering should be applied (user sees all reps)
func GetEffectiveSalesFilter(ctx context.Context) *string {
	// First check if there's an explicit scope set by middleware
	if scope, ok := SalesScopeFromContext(ctx); ok && scope != nil {
		return scope.SalesID
	}

	// Fall back to user's default filter
	if userCtx, ok := FromContext(ctx); ok {
		return userCtx.GetSalesFilter()
	}

	return nil
}
