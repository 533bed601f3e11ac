package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nusalink-net/crm-api/internal/auth"
	"github.com/nusalink-net/crm-api/internal/config"
	"github.com/nusalink-net/crm-api/internal/database"
	"github.com/nusalink-net/crm-api/internal/http/handler"
	"github.com/nusalink-net/crm-api/internal/http/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/nusalink-net/crm-api/docs" // Import generated swagger docs
)

type Router struct {
	cfg                  *config.Config
	logger               *zap.Logger
	db                   *gorm.DB
	authMiddleware       *auth.Middleware
	salesScopeMiddleware *middleware.SalesScopeMiddleware
	rateLimiter          *middleware.RateLimiter
	auditMiddleware      *middleware.AuditMiddleware
	authHandler          *handler.AuthHandler
	userHandler          *handler.UserHandler
	leadHandler          *handler.LeadHandler
	productHandler       *handler.ProductHandler
	dealHandler          *handler.DealHandler
	customerHandler      *handler.CustomerHandler
	reportHandler        *handler.ReportHandler
	notificationHandler  *handler.NotificationHandler
	activityHandler      *handler.ActivityHandler
	auditHandler         *handler.AuditHandler
	fileHandler          *handler.FileHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	authMiddleware *auth.Middleware,
	salesScopeMiddleware *middleware.SalesScopeMiddleware,
	rateLimiter *middleware.RateLimiter,
	auditMiddleware *middleware.AuditMiddleware,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	leadHandler *handler.LeadHandler,
	productHandler *handler.ProductHandler,
	dealHandler *handler.DealHandler,
	customerHandler *handler.CustomerHandler,
	reportHandler *handler.ReportHandler,
	notificationHandler *handler.NotificationHandler,
	activityHandler *handler.ActivityHandler,
	auditHandler *handler.AuditHandler,
	fileHandler *handler.FileHandler,
) *Router {
	return &Router{
		cfg:                  cfg,
		logger:               logger,
		db:                   db,
		authMiddleware:       authMiddleware,
		salesScopeMiddleware: salesScopeMiddleware,
		rateLimiter:          rateLimiter,
		auditMiddleware:      auditMiddleware,
		authHandler:          authHandler,
		userHandler:          userHandler,
		leadHandler:          leadHandler,
		productHandler:       productHandler,
		dealHandler:          dealHandler,
		customerHandler:      customerHandler,
		reportHandler:        reportHandler,
		notificationHandler:  notificationHandler,
		activityHandler:      activityHandler,
		auditHandler:         auditHandler,
		fileHandler:          fileHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP) // Apply IP-based rate limiting globally

	// Health check (basic liveness probe)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Database health check (readiness probe with detailed stats)
	r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
		stats, err := database.HealthCheckWithStats(rt.db)
		if err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  "unhealthy",
				"error":   err.Error(),
				"service": "database",
			})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "healthy",
			"service": "database",
			"stats": map[string]interface{}{
				"max_open_connections": stats.MaxOpenConnections,
				"open_connections":     stats.OpenConnections,
				"in_use":               stats.InUse,
				"idle":                 stats.Idle,
				"wait_count":           stats.WaitCount,
				"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
			},
		})
	})

	// Combined readiness check (checks all dependencies)
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]interface{})
		allHealthy := true

		if err := database.HealthCheck(rt.db); err != nil {
			rt.logger.Error("Database health check failed", zap.Error(err))
			checks["database"] = map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
			}
			allHealthy = false
		} else {
			checks["database"] = map[string]interface{}{
				"status": "healthy",
			}
		}

		w.Header().Set("Content-Type", "application/json")
		status := "healthy"
		code := http.StatusOK
		if !allHealthy {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": status,
			"checks": checks,
		})
	})

	// Swagger documentation
	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (no auth required)
		r.Post("/auth/login", rt.authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(rt.authMiddleware.Authenticate)
			r.Use(rt.salesScopeMiddleware.Filter)
			r.Use(rt.auditMiddleware.Audit) // Audit all modifications

			// Auth
			r.Get("/auth/me", rt.authHandler.Me)

			// Users (admin only)
			r.Route("/users", func(r chi.Router) {
				r.Use(rt.authMiddleware.RequireAdmin)
				r.Get("/", rt.userHandler.List)
				r.Post("/", rt.userHandler.Create)
				r.Get("/{id}", rt.userHandler.GetByID)
				r.Put("/{id}/active", rt.userHandler.SetActive)
			})

			// Leads
			r.Route("/leads", func(r chi.Router) {
				r.Get("/", rt.leadHandler.List)
				r.Post("/", rt.leadHandler.Create)
				r.Get("/search", rt.leadHandler.Search)
				r.Get("/{id}", rt.leadHandler.GetByID)
				r.Put("/{id}", rt.leadHandler.Update)
				r.Delete("/{id}", rt.leadHandler.Delete)
				r.Get("/{id}/deals", rt.leadHandler.ListDeals)
			})

			// Products
			r.Route("/products", func(r chi.Router) {
				r.Get("/", rt.productHandler.List)
				r.Get("/active", rt.productHandler.ListActive)
				r.Get("/{id}", rt.productHandler.GetByID)

				// Catalog maintenance is admin only
				r.Group(func(r chi.Router) {
					r.Use(rt.authMiddleware.RequireAdmin)
					r.Post("/", rt.productHandler.Create)
					r.Put("/{id}", rt.productHandler.Update)
					r.Delete("/{id}", rt.productHandler.Deactivate)
				})
			})

			// Deals
			r.Route("/deals", func(r chi.Router) {
				r.Get("/", rt.dealHandler.List)
				r.Post("/", rt.dealHandler.Create)
				r.With(rt.authMiddleware.RequireApprover).Get("/pending-approval", rt.dealHandler.ListPendingApproval)
				r.Get("/{id}", rt.dealHandler.GetByID)
				r.Put("/{id}", rt.dealHandler.Update)
				r.Delete("/{id}", rt.dealHandler.Delete)

				// Item ledger
				r.Post("/{id}/items", rt.dealHandler.AddItem)
				r.Put("/{id}/items/{itemId}", rt.dealHandler.UpdateItem)
				r.Delete("/{id}/items/{itemId}", rt.dealHandler.RemoveItem)

				// Lifecycle endpoints
				r.Post("/{id}/submit", rt.dealHandler.Submit)
				r.With(rt.authMiddleware.RequireApprover).Post("/{id}/approve", rt.dealHandler.Approve)
				r.With(rt.authMiddleware.RequireApprover).Post("/{id}/reject", rt.dealHandler.Reject)
				r.Post("/{id}/close", rt.dealHandler.Close)
				r.Get("/{id}/history", rt.dealHandler.History)

				// Attachments
				r.Get("/{dealId}/files", rt.fileHandler.ListByDeal)
			})

			// Customers
			r.Route("/customers", func(r chi.Router) {
				r.Get("/", rt.customerHandler.List)
				r.Post("/", rt.customerHandler.Create)
				r.Get("/search", rt.customerHandler.Search)
				r.Get("/by-number/{number}", rt.customerHandler.GetByNumber)
				r.Get("/{id}", rt.customerHandler.GetByID)
				r.Put("/{id}", rt.customerHandler.Update)
				r.With(rt.authMiddleware.RequireAdmin).Delete("/{id}", rt.customerHandler.Delete)
				r.Post("/{id}/suspend", rt.customerHandler.Suspend)
				r.Post("/{id}/reactivate", rt.customerHandler.Reactivate)
				r.Get("/{id}/services", rt.customerHandler.ListServices)
			})

			// Services
			r.Route("/services", func(r chi.Router) {
				r.Get("/expiring", rt.customerHandler.ListExpiringServices)
				r.Get("/{id}", rt.customerHandler.GetService)
				r.Put("/{id}", rt.customerHandler.UpdateService)
				r.Post("/{id}/terminate", rt.customerHandler.TerminateService)
			})

			// Reports
			r.Route("/reports", func(r chi.Router) {
				r.Get("/funnel", rt.reportHandler.SalesFunnel)
				r.Get("/revenue", rt.reportHandler.RevenueSummary)
				r.Get("/performance", rt.reportHandler.SalesPerformance)
				r.Get("/dashboard", rt.reportHandler.Dashboard)
			})

			// Notifications
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", rt.notificationHandler.ListMine)
				r.With(rt.authMiddleware.RequireAdmin).Post("/", rt.notificationHandler.Create)
				r.Get("/unread-count", rt.notificationHandler.CountUnread)
				r.Post("/read-all", rt.notificationHandler.MarkAllAsRead)
				r.Post("/{id}/read", rt.notificationHandler.MarkAsRead)
			})

			// Activities
			r.Route("/activities", func(r chi.Router) {
				r.Post("/", rt.activityHandler.Create)
				r.Delete("/{id}", rt.activityHandler.Delete)
				r.Get("/{targetType}/{targetId}", rt.activityHandler.ListByTarget)
			})

			// Audit logs (admin only)
			r.Route("/audit-logs", func(r chi.Router) {
				r.Use(rt.authMiddleware.RequireAdmin)
				r.Get("/", rt.auditHandler.List)
				r.Get("/{entityType}/{entityId}", rt.auditHandler.ListByEntity)
				r.Get("/{id}", rt.auditHandler.GetByID)
			})

			// Files
			r.Route("/files", func(r chi.Router) {
				r.Post("/upload", rt.fileHandler.Upload)
				r.Get("/{id}/download", rt.fileHandler.Download)
				r.Delete("/{id}", rt.fileHandler.Delete)
			})
		})
	})

	return r
}
