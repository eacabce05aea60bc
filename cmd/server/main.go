package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	httpapi "settlement-engine/internal/api/http"
	"settlement-engine/internal/config"
	"settlement-engine/internal/domain"
	"settlement-engine/internal/jobs"
	"settlement-engine/internal/lock"
	"settlement-engine/internal/logger"
	"settlement-engine/internal/metrics"
	"settlement-engine/internal/notify"
	"settlement-engine/internal/policy"
	"settlement-engine/internal/repository"
	"settlement-engine/internal/repository/memory"
	"settlement-engine/internal/repository/postgres"
	"settlement-engine/internal/scheduler"
	"settlement-engine/internal/security"
	"settlement-engine/internal/service"
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
	logger.Info("Starting Settlement Engine...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Policy configuration",
		"secured", []float64{cfg.Policy.SecuredMin, cfg.Policy.SecuredMax},
		"unsecured", []float64{cfg.Policy.UnsecuredMin, cfg.Policy.UnsecuredMax},
		"max_due_horizon_days", cfg.Policy.MaxDueHorizonDays,
	)

	// Initialize Store
	store, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Error("Failed to initialize store", "driver", cfg.Database.Driver, "error", err)
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer closeStore()

	// Initialize Metrics
	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	// Initialize Services
	svc := service.NewNegotiationService(
		store,
		policy.NewEvaluator(cfg.Policy),
		lock.NewManager(cfg.Engine.LockTimeout),
		buildDispatcher(cfg),
		cfg.Engine,
		service.SystemClock(),
	)

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer)

	opts := httpapi.RouterOptions{MetricsPath: cfg.Metrics.Path}
	if cfg.Metrics.Enabled {
		opts.MetricsHandler = metrics.Handler()
	}
	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           httpapi.NewRouter(svc, tokenManager, opts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	// Expiry sweep runs in-process when enabled
	var cronScheduler *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		cronScheduler, err = scheduler.NewScheduler(jobs.NewJobRunner(svc, cfg))
		if err != nil {
			log.Fatalf("Failed to initialize scheduler: %v", err)
		}
		cronScheduler.Start()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	// Graceful shutdown
	logger.Info("Shutting down...")
	if cronScheduler != nil {
		cronScheduler.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}
	logger.Info("Settlement Engine stopped")
}

// openStore builds the configured store. The returned close func is always non-nil.
func openStore(cfg *config.Config) (repository.Store, func(), error) {
	switch cfg.Database.Driver {
	case "postgres":
		logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
		db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
		if err != nil {
			return nil, func() {}, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, func() {}, err
		}
		logger.Info("Database connection established")

		store := postgres.NewStore(db)
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, func() {}, err
		}
		return store, func() { db.Close() }, nil

	default:
		store := memory.NewStore()
		if cfg.Database.SeedFile != "" {
			n, err := store.LoadLoansFile(cfg.Database.SeedFile)
			if err != nil {
				return nil, func() {}, err
			}
			logger.Info("Loaded reference loans", "count", n, "file", cfg.Database.SeedFile)
		}
		logger.Warn("Using in-memory store, offers are lost on restart")
		return store, func() {}, nil
	}
}

// buildDispatcher routes email through SendGrid when a key is configured. SMS and phone
// are logged for the agent to follow up on.
func buildDispatcher(cfg *config.Config) notify.Dispatcher {
	router := notify.NewRouter()
	if cfg.SendGrid.APIKey != "" {
		logger.Info("SendGrid configuration", "from", cfg.SendGrid.FromEmail)
		router.Handle(domain.ChannelEmail, notify.NewSendGridDispatcher(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName))
	} else {
		logger.Warn("SendGrid API key not set, offer emails are logged only")
		router.Handle(domain.ChannelEmail, notify.LogDispatcher{})
	}
	router.Handle(domain.ChannelSMS, notify.LogDispatcher{})
	router.Handle(domain.ChannelPhone, notify.LogDispatcher{})
	return router
}
