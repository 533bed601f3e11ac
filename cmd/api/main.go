package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nusalink-net/crm-api/docs"
	"github.com/nusalink-net/crm-api/internal/auth"
	"github.com/nusalink-net/crm-api/internal/config"
	"github.com/nusalink-net/crm-api/internal/database"
	"github.com/nusalink-net/crm-api/internal/http/handler"
	"github.com/nusalink-net/crm-api/internal/http/middleware"
	"github.com/nusalink-net/crm-api/internal/http/router"
	"github.com/nusalink-net/crm-api/internal/jobs"
	"github.com/nusalink-net/crm-api/internal/logger"
	"github.com/nusalink-net/crm-api/internal/repository"
	"github.com/nusalink-net/crm-api/internal/service"
	"github.com/nusalink-net/crm-api/internal/storage"
	"go.uber.org/zap"
)

// @title Nusalink CRM API
// @version 1.0
// @description CRM API for ISP lead, deal, and customer subscription management
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.email support@nusalink.net

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name x-api-key
// @description API Key for system operations
// @Security BearerAuth
// @Security ApiKeyAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	// Configure Swagger host based on environment
	switch basicCfg.App.Environment {
	case "staging":
		docs.SwaggerInfo.Host = "crm-staging.nusalink.net"
	case "production":
		docs.SwaggerInfo.Host = "crm.nusalink.net"
	default:
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// Load full configuration with secrets
	// In development: uses environment variables
	// In staging/production: fetches from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	// Connect to database
	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize storage
	fileStorage, err := storage.NewStorage(&cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	productRepo := repository.NewProductRepository(db)
	dealRepo := repository.NewDealRepository(db)
	dealItemRepo := repository.NewDealItemRepository(db)
	historyRepo := repository.NewDealStatusHistoryRepository(db)
	customerRepo := repository.NewCustomerRepository(db)
	serviceRepo := repository.NewCustomerServiceRepository(db)
	numberSequenceRepo := repository.NewNumberSequenceRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	auditLogRepo := repository.NewAuditLogRepository(db)
	fileRepo := repository.NewFileRepository(db)

	// Initialize services
	auditLogService := service.NewAuditLogService(auditLogRepo, log)
	tokenManager := auth.NewTokenManager(&cfg.Auth)
	userService := service.NewUserService(userRepo, tokenManager, auditLogService, log)

	numberSequenceService := service.NewNumberSequenceService(numberSequenceRepo, log)
	provisioner := service.NewProvisioner()

	leadService := service.NewLeadService(leadRepo, dealRepo, log)
	productService := service.NewProductService(productRepo, log)
	dealService := service.NewDealService(
		dealRepo,
		dealItemRepo,
		leadRepo,
		productRepo,
		historyRepo,
		customerRepo,
		serviceRepo,
		notificationRepo,
		auditLogRepo,
		userRepo,
		numberSequenceService,
		provisioner,
		&cfg.Deal,
		log,
	)
	customerService := service.NewCustomerService(customerRepo, serviceRepo, notificationRepo, numberSequenceService, log)
	reportService := service.NewReportService(leadRepo, dealRepo, serviceRepo, log)
	notificationService := service.NewNotificationService(notificationRepo, log)
	activityService := service.NewActivityService(activityRepo, log)
	fileService := service.NewFileService(fileRepo, dealRepo, fileStorage, log)

	// Initialize middleware
	authMiddleware := auth.NewMiddleware(cfg, log)
	salesScopeMiddleware := middleware.NewSalesScopeMiddleware(log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)
	auditMiddleware := middleware.NewAuditMiddleware(auditLogService, nil, log)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(userService, log)
	userHandler := handler.NewUserHandler(userService, log)
	leadHandler := handler.NewLeadHandler(leadService, log)
	productHandler := handler.NewProductHandler(productService, log)
	dealHandler := handler.NewDealHandler(dealService, log)
	customerHandler := handler.NewCustomerHandler(customerService, log)
	reportHandler := handler.NewReportHandler(reportService, log)
	notificationHandler := handler.NewNotificationHandler(notificationService, log)
	activityHandler := handler.NewActivityHandler(activityService, log)
	auditHandler := handler.NewAuditHandler(auditLogService, log)
	fileHandler := handler.NewFileHandler(fileService, cfg.Storage.MaxUploadSizeMB, log)

	// Setup router
	rt := router.NewRouter(
		cfg,
		log,
		db,
		authMiddleware,
		salesScopeMiddleware,
		rateLimiter,
		auditMiddleware,
		authHandler,
		userHandler,
		leadHandler,
		productHandler,
		dealHandler,
		customerHandler,
		reportHandler,
		notificationHandler,
		activityHandler,
		auditHandler,
		fileHandler,
	)

	// Initialize and start scheduler for background jobs
	var scheduler *jobs.Scheduler
	if cfg.Jobs.ServiceExpiryEnabled {
		scheduler = jobs.NewScheduler(log)

		if err := jobs.RegisterServiceExpiryJob(
			scheduler,
			customerService,
			log,
			cfg.Jobs.ServiceExpiryCron,
			cfg.Jobs.ServiceExpiryHorizonDays,
			cfg.Jobs.ServiceExpiryTimeoutDuration(),
		); err != nil {
			log.Error("Failed to register service expiry job", zap.Error(err))
		} else {
			scheduler.Start()
			log.Info("Scheduler started with service expiry job",
				zap.String("cron_expr", cfg.Jobs.ServiceExpiryCron),
				zap.Int("horizon_days", cfg.Jobs.ServiceExpiryHorizonDays),
			)
		}
	} else {
		log.Info("Service expiry job disabled")
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rt.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// Start server in goroutine
	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Wait for interrupt signal
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		// Stop scheduler if running
		if scheduler != nil {
			ctx := scheduler.Stop()
			<-ctx.Done()
			log.Info("Scheduler stopped")
		}

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
