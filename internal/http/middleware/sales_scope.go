package middleware

import (
	"net/http"

	"github.com/nusalink-net/crm-api/internal/auth"
	"go.uber.org/zap"
)

// SalesScopeMiddleware handles per-rep data isolation
// Sales users only see leads, deals and customers they own; managers and
// admins see everything and may narrow to one rep via query parameter
type SalesScopeMiddleware struct {
	logger *zap.Logger
}

// NewSalesScopeMiddleware creates a new sales scope middleware
func NewSalesScopeMiddleware(logger *zap.Logger) *SalesScopeMiddleware {
	return &SalesScopeMiddleware{
		logger: logger,
	}
}

// Filter is the middleware handler that sets the effective sales scope in context
// - Managers and admins can optionally filter by ?sales_id=<user id>
// - Sales users are always scoped to their own records
func (m *SalesScopeMiddleware) Filter(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userCtx, ok := auth.FromContext(r.Context())
		if !ok {
			// No user context - let request proceed without scope
			// Authentication middleware should have already rejected unauthenticated requests
			next.ServeHTTP(w, r)
			return
		}

		var scope *auth.SalesScope

		// Check for sales_id query parameter
		requestedSalesID := r.URL.Query().Get("sales_id")

		if requestedSalesID != "" {
			// Only managers and admins may look at another rep's records
			if !userCtx.CanAccessAllSales() && requestedSalesID != userCtx.UserID {
				m.logger.Warn("user attempted to access another rep's records",
					zap.String("user_id", userCtx.UserID),
					zap.String("requested_sales_id", requestedSalesID),
				)
				http.Error(w, "Access denied: you cannot access records for this sales rep", http.StatusForbidden)
				return
			}

			scope = &auth.SalesScope{
				SalesID:            &requestedSalesID,
				RequestedByManager: userCtx.CanAccessAllSales(),
			}
		} else if salesID := userCtx.GetSalesFilter(); salesID != nil {
			// Sales users are always scoped to themselves
			scope = &auth.SalesScope{
				SalesID:            salesID,
				RequestedByManager: false,
			}
		} else {
			// Manager or admin with no explicit filter - show all records
			scope = &auth.SalesScope{
				SalesID:            nil,
				RequestedByManager: false,
			}
		}

		ctx := auth.WithSalesScope(r.Context(), scope)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
