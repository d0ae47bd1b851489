package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/soltixdb/statseries/internal/archive"
	"github.com/soltixdb/statseries/internal/cache"
	"github.com/soltixdb/statseries/internal/config"
	"github.com/soltixdb/statseries/internal/handlers"
	"github.com/soltixdb/statseries/internal/logging"
	"github.com/soltixdb/statseries/internal/metrics"
	"github.com/soltixdb/statseries/internal/queue"
	"github.com/soltixdb/statseries/internal/router"
	"github.com/soltixdb/statseries/internal/scheduler"
	"github.com/soltixdb/statseries/internal/services"
	"github.com/soltixdb/statseries/internal/statbank"
	"github.com/soltixdb/statseries/internal/utils"
)

var (
	Version   = "dev"     // Injected via ldflags during build
	GitCommit = "unknown" // Injected via ldflags during build
	BuildTime = "unknown" // Injected via ldflags during build
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewFromConfig(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)
	handlers.Version = Version
	logger.Info("Report service starting...",
		"version", Version, "commit", GitCommit, "build time", BuildTime,
		"reports", len(cfg.Reports))

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		logger.Info("Metrics enabled", "path", cfg.Metrics.Path)
	}

	// Upstream payload cache
	payloads, err := cache.New(cfg.Cache)
	if err != nil {
		logger.Fatal("Failed to initialize cache", "type", cfg.Cache.Type, "error", err)
	}
	defer func() { _ = payloads.Close() }()
	logger.Info("Cache initialized", "type", cfg.Cache.Type, "ttl", cfg.Cache.TTL, "compress", cfg.Cache.Compress)

	client := statbank.New(cfg.Statbank, statbank.WithCache(payloads, cfg.Cache.KeyPrefix), statbank.WithMetrics(m))
	reports := services.NewReportService(logger, client, cfg.Reports, services.WithMetrics(m))

	// Report event publishing (configurable backend)
	logger.Info("Connecting to Queue", "type", cfg.Queue.Type, "url", cfg.Queue.URL)
	queueClient, err := queue.NewQueue(cfg.Queue)
	if err != nil {
		logger.Fatal("Failed to connect to Queue", "error", err)
	}
	defer func() { _ = queueClient.Close() }()

	// Chart archive (configurable backend)
	charts, err := archive.New(context.Background(), cfg.Archive)
	if err != nil {
		logger.Fatal("Failed to initialize chart archive", "type", cfg.Archive.Type, "error", err)
	}
	logger.Info("Chart archive initialized", "type", cfg.Archive.Type, "bucket", cfg.Archive.Bucket)

	refresher, err := scheduler.NewRefresher(cfg.Scheduler, cfg.Queue.SubjectPrefix, logger, reports, queueClient,
		scheduler.WithArchive(charts, cfg.Archive.Prefix),
		scheduler.WithMetrics(m))
	if err != nil {
		logger.Fatal("Failed to create report scheduler", "error", err)
	}

	if cfg.Auth.Enabled {
		logger.Info("API key authentication enabled", "num_keys", len(cfg.Auth.APIKeys))
	} else {
		logger.Warn("API key authentication DISABLED - all requests will be allowed")
	}

	app := router.New(logger, reports, *cfg, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	refresher.Start(ctx)

	go func() {
		addr := cfg.GetServerAddress()
		logger.Info("Server listening", "address", addr)
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()
	refresher.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), utils.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
