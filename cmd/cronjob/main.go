package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"reseller-ledger-backend/internal/config"
	"reseller-ledger-backend/internal/jobs"
	"reseller-ledger-backend/internal/logger"
	"reseller-ledger-backend/internal/repository/postgres"
	"reseller-ledger-backend/internal/scheduler"
	"reseller-ledger-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'retry-compensations', 'audit-balances', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Reseller Ledger Cronjob Runner...", "log_level", cfg.Log.Level)

	if cfg.Database.Driver == "memory" {
		log.Fatalf("The memory driver runs its jobs inside the server process; configure postgres or pgx")
	}

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := postgres.Open(context.Background(), cfg.Database.Driver, cfg.GetDatabaseConnectionString(), 5)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db)
	repos := service.Repositories{
		Resellers:     store.ResellerRepository,
		Products:      store.ProductRepository,
		Transactions:  store.TransactionRepository,
		Compensations: store.CompensationRepository,
		Locks:         service.NewResellerLocks(),
	}

	// Initialize Services
	alerts := service.NewAlertService(cfg.Alerts.SendGridAPIKey, cfg.Alerts.FromEmail, cfg.Alerts.FromName, cfg.Alerts.Recipients)
	jobServices := &jobs.Services{
		Compensation: service.NewCompensationService(repos, alerts, cfg.Compensation.MaxAttempts, cfg.Compensation.BatchSize),
		Audit:        service.NewAuditService(repos, alerts, cfg.Audit.Repair),
	}

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(jobServices, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner)

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "retry-compensations":
		jobRunner.RetryCompensations()
	case "audit-balances":
		jobRunner.AuditBalances()
	case "all":
		jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - retry-compensations\n")
		fmt.Printf("  - audit-balances\n")
		fmt.Printf("  - all\n")
		os.Exit(1)
	}
}
