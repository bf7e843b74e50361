// Package main provides the entry point for the stock insights dashboard service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/stock-insights/internal/api"
	"github.com/yourusername/stock-insights/internal/cache"
	"github.com/yourusername/stock-insights/internal/config"
	"github.com/yourusername/stock-insights/internal/database"
	"github.com/yourusername/stock-insights/internal/datasource"
	"github.com/yourusername/stock-insights/internal/logger"
	"github.com/yourusername/stock-insights/internal/metrics"
	"github.com/yourusername/stock-insights/internal/repository"
	"github.com/yourusername/stock-insights/internal/scheduler"
	"github.com/yourusername/stock-insights/internal/service"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.LoadWithDefaults(os.Getenv("STOCK_INSIGHTS_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Load AWS secrets if enabled
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			log.Fatalf("AWS_REGION and AWS_SECRET_NAME environment variables must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(context.Background(), cfg, region, secretName); err != nil {
			log.Fatalf("Failed to load secrets: %v", err)
		}
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	opts, err := cfg.Aggregation.ToOptions()
	if err != nil {
		log.Fatalf("Invalid aggregation settings: %v", err)
	}

	appLog := logger.NewLogger(cfg.App.LogLevel)
	appLog.WithFields(logrus.Fields{
		"environment": cfg.App.Environment,
		"log_level":   cfg.App.LogLevel,
		"version":     Version,
	}).Info("Stock Insights service starting")
	logger.NewAuditLogger(appLog).LogConfigLoaded(
		cfg.App.Environment, cfg.Backend.BaseURL, cfg.Refresh.Schedule,
		cfg.Aggregation.MetricsScope, cfg.Features.PersistenceEnabled,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.InitRegistry()

	var (
		db    *database.DB
		store service.SnapshotStore
	)
	if cfg.Features.PersistenceEnabled {
		db, err = database.Initialize(ctx, cfg, appLog)
		if err != nil {
			appLog.WithError(err).Fatal("Failed to connect to database")
		}
		defer db.Close()

		repos, err := repository.NewRepositories(db)
		if err != nil {
			appLog.WithError(err).Fatal("Failed to initialize repositories")
		}
		store = repos.Snapshot
	}

	source := datasource.NewHTTPPredictionSourceFromConfig(&cfg.Backend, appLog)
	snapshotCache := cache.NewSnapshotCache(cfg.Refresh.CacheTTL(), cfg.Refresh.CacheMaxSize)

	var (
		hub       *api.StreamHub
		publisher service.Publisher
	)
	if cfg.Features.StreamEnabled {
		hub = api.NewStreamHub(appLog)
		publisher = hub
	}

	dashboard := service.NewDashboardService(source, opts, snapshotCache, store, publisher, appLog)
	if hub != nil {
		hub.SetSnapshotFunc(dashboard.Current)
	}
	if err := dashboard.Restore(ctx); err != nil {
		appLog.WithError(err).Warn("Could not restore last snapshot")
	}

	serverCfg := api.Config{
		ServiceName:    cfg.App.Name,
		Version:        Version,
		Commit:         GitCommit,
		Port:           cfg.Server.Port,
		ReadTimeout:    secondsDuration(cfg.Server.ReadTimeoutSeconds),
		WriteTimeout:   secondsDuration(cfg.Server.WriteTimeoutSeconds),
		RefreshTimeout: cfg.Refresh.Timeout(),
		HistoryLimit:   cfg.Server.HistoryLimit,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		Logger:         appLog,
		Dashboard:      dashboard,
		Hub:            hub,
	}
	if db != nil {
		serverCfg.DB = db
	}
	server := api.NewServer(serverCfg)
	if err := server.Start(ctx); err != nil {
		appLog.WithError(err).Fatal("Failed to start API server")
	}

	if cfg.Server.GRPCPort > 0 {
		grpcHealth := api.NewGRPCHealthServer(cfg.App.Name, dashboard.Ready, appLog)
		if err := grpcHealth.Start(ctx, cfg.Server.GRPCPort); err != nil {
			appLog.WithError(err).Fatal("Failed to start gRPC health server")
		}
	}

	sched := scheduler.NewScheduler(dashboard, appLog)
	if err := sched.ScheduleRefresh(cfg.Refresh.Schedule, cfg.Refresh.Timeout()); err != nil {
		appLog.WithError(err).Fatal("Failed to schedule refresh")
	}
	if err := sched.Start(); err != nil {
		appLog.WithError(err).Fatal("Failed to start scheduler")
	}
	if cfg.Refresh.RefreshOnStart {
		sched.RunNow()
	}

	appLog.WithFields(logrus.Fields{
		"addr":        server.Addr(),
		"source":      source.Name(),
		"schedule":    cfg.Refresh.Schedule,
		"persistence": cfg.Features.PersistenceEnabled,
		"stream":      cfg.Features.StreamEnabled,
	}).Info("Stock Insights service is running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	appLog.WithField("signal", sig).Info("Shutdown signal received")

	if err := sched.Stop(); err != nil {
		appLog.WithError(err).Error("Error during scheduler shutdown")
	}
	if err := server.Shutdown(); err != nil {
		appLog.WithError(err).Error("Error during API server shutdown")
	}
	if err := source.Close(); err != nil {
		appLog.WithError(err).Warn("Error releasing backend connections")
	}
	cancel()

	appLog.Info("Stock Insights service shut down successfully")
}

func secondsDuration(seconds int) time.Duration {
	return time.Duration(seconds) * time.Second
}
