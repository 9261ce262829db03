package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpcapi "reseller-ledger-backend/internal/api/grpc"
	httpapi "reseller-ledger-backend/internal/api/http"
	"reseller-ledger-backend/internal/config"
	"reseller-ledger-backend/internal/jobs"
	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/repository/memory"
	"reseller-ledger-backend/internal/repository/postgres"
	redisrepo "reseller-ledger-backend/internal/repository/redis"
	"reseller-ledger-backend/internal/scheduler"
	"reseller-ledger-backend/internal/security"
	"reseller-ledger-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Reseller Ledger Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "http", cfg.GetServerAddress(), "grpc", cfg.GetGRPCAddress())
	logger.Info("Database configuration", "driver", cfg.Database.Driver, "host", cfg.Database.Host, "database", cfg.Database.Database)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checks := make(map[string]grpcapi.Check)

	// Initialize Repositories
	var repos service.Repositories
	switch cfg.Database.Driver {
	case "memory":
		store := memory.NewStore()
		if cfg.Database.SeedFile != "" {
			if err := store.LoadSeed(cfg.Database.SeedFile); err != nil {
				log.Fatalf("Failed to load seed data: %v", err)
			}
			logger.Info("Loaded seed data", "file", cfg.Database.SeedFile)
		}
		repos = service.Repositories{
			Resellers:     store.Resellers,
			Products:      store.Products,
			Transactions:  store.Transactions,
			Compensations: store.Compensations,
			History:       store.History,
		}
	default:
		db, err := postgres.Open(ctx, cfg.Database.Driver, cfg.GetDatabaseConnectionString(), 10)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		logger.Info("Database connection established")

		store := postgres.NewStore(db)
		repos = service.Repositories{
			Resellers:     store.ResellerRepository,
			Products:      store.ProductRepository,
			Transactions:  store.TransactionRepository,
			Compensations: store.CompensationRepository,
			History:       memory.NewHistoryRepository(),
		}
		checks["database"] = db.PingContext
	}

	// Undo history lives in Redis when it is reachable
	if cfg.Redis.Enabled {
		if client := redisrepo.NewClient(ctx, cfg.GetRedisAddress(), cfg.Redis.Password, cfg.Redis.DB); client != nil {
			defer client.Close()
			repos.History = redisrepo.NewHistoryRepository(client, cfg.HistoryTTL())
			checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		}
	}

	// Initialize Services
	repos.Locks = service.NewResellerLocks()
	alerts := service.NewAlertService(cfg.Alerts.SendGridAPIKey, cfg.Alerts.FromEmail, cfg.Alerts.FromName, cfg.Alerts.Recipients)
	historySvc := service.NewHistoryService(repos, alerts, cfg.Ledger.UndoDepth)
	ledgerSvc := service.NewLedgerService(repos, historySvc, alerts, cfg.Ledger.MaxImportRows)
	exportSvc := service.NewExportService(repos)

	// The cronjob binary cannot reach an in-process store, so memory runs
	// schedule their own background jobs.
	if cfg.Database.Driver == "memory" {
		runner := jobs.NewJobRunner(&jobs.Services{
			Compensation: service.NewCompensationService(repos, alerts, cfg.Compensation.MaxAttempts, cfg.Compensation.BatchSize),
			Audit:        service.NewAuditService(repos, alerts, cfg.Audit.Repair),
		}, cfg)
		cronScheduler := scheduler.NewScheduler(runner)
		cronScheduler.Start()
		defer cronScheduler.Stop()
	}

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute)

	// Set up HTTP server
	handler := httpapi.NewHandler(ledgerSvc, historySvc, exportSvc)
	httpServer := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           httpapi.NewRouter(handler, tokenManager),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Set up gRPC health server
	lis, err := net.Listen("tcp", cfg.GetGRPCAddress())
	if err != nil {
		logger.Error("Failed to listen", "error", err, "address", cfg.GetGRPCAddress())
		log.Fatalf("Failed to listen: %v", err)
	}
	grpcServer := grpcapi.NewServer(checks)
	go grpcServer.Watch(ctx, 30*time.Second)

	go func() {
		logger.Info("gRPC health server listening", "address", cfg.GetGRPCAddress())
		if err := grpcServer.GRPC().Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err)
		}
	}()

	go func() {
		logger.Info("HTTP server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	grpcServer.Stop()
	logger.Info("Server stopped. Goodbye!")
}
