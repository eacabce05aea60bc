package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"settlement-engine/internal/config"
	"settlement-engine/internal/domain"
	"settlement-engine/internal/jobs"
	"settlement-engine/internal/lock"
	"settlement-engine/internal/logger"
	"settlement-engine/internal/metrics"
	"settlement-engine/internal/notify"
	"settlement-engine/internal/policy"
	"settlement-engine/internal/repository/postgres"
	"settlement-engine/internal/scheduler"
	"settlement-engine/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'expire-offers', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Settlement Cronjob Runner...", "log_level", cfg.Log.Level)

	// The sweep must see the server's offers, so only the shared database makes sense here
	if cfg.Database.Driver != "postgres" {
		log.Fatalf("cronjob requires database.driver=postgres, got %q", cfg.Database.Driver)
	}

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db)

	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	// Expiry never sends anything, but the engine needs a dispatcher
	dispatcher := notify.NewRouter().
		Handle(domain.ChannelEmail, notify.LogDispatcher{}).
		Handle(domain.ChannelSMS, notify.LogDispatcher{}).
		Handle(domain.ChannelPhone, notify.LogDispatcher{})

	svc := service.NewNegotiationService(
		store,
		policy.NewEvaluator(cfg.Policy),
		lock.NewManager(cfg.Engine.LockTimeout),
		dispatcher,
		cfg.Engine,
		service.SystemClock(),
	)

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(svc, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if err := runJobOnce(jobRunner, *runOnce); err != nil {
			logger.Error("Job execution failed", "job", *runOnce, "error", err)
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		log.Fatalf("Failed to initialize scheduler: %v", err)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.", "next_run", cronScheduler.NextRun())

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) error {
	switch jobName {
	case "expire-offers", "all":
		res, err := jobRunner.RunExpireOffers(context.Background())
		if res != nil {
			fmt.Printf("scanned=%d expired=%d skipped=%d failed=%d\n", res.Scanned, res.Expired, res.Skipped, res.Failed)
		}
		return err
	default:
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - expire-offers\n")
		fmt.Printf("  - all\n")
		return fmt.Errorf("unknown job name %q", jobName)
	}
}
