package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/brandpilot/brandpilot/infrastructure/bootstrap"
	"github.com/brandpilot/brandpilot/infrastructure/config"
	httpserver "github.com/brandpilot/brandpilot/infrastructure/http"
	"github.com/brandpilot/brandpilot/infrastructure/service/jwt"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
	"github.com/brandpilot/brandpilot/infrastructure/service/metrics"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logger
	structuredLogger := logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: "brandpilot",
	})
	structuredLogger.Info(ctx, "Application starting", map[string]interface{}{
		"env":          cfg.Environment,
		"store_driver": cfg.StoreDriver,
		"ai_mock_mode": cfg.AIMockMode,
	})

	repos, closeStore, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to open store", err, map[string]interface{}{
			"store_driver": cfg.StoreDriver,
		})
		os.Exit(1)
	}
	defer closeStore()

	seeded, err := bootstrap.LoadDomains(ctx, cfg, repos)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to seed domains", err, map[string]interface{}{
			"domains_file": cfg.DomainsFile,
		})
		os.Exit(1)
	}
	if seeded > 0 {
		structuredLogger.Info(ctx, "Domains seeded", map[string]interface{}{"count": seeded})
	}

	// Redis is optional; without it alerts stay in the log and pages in memory
	rdb, err := bootstrap.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		structuredLogger.Warn(ctx, "Redis unavailable, running without it", map[string]interface{}{
			"error": err.Error(),
		})
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	pipelineMetrics := metrics.NewPrometheusMetrics(prometheus.DefaultRegisterer)
	collab := bootstrap.BuildCollaborators(cfg, rdb, pipelineMetrics, structuredLogger)
	pipeline := bootstrap.NewPipeline(repos, collab, structuredLogger, nil, cfg.CollaboratorTimeout)

	if cfg.RollbackSweepInterval > 0 {
		go bootstrap.RunSweeper(ctx, pipeline.Deployments, cfg.RollbackSweepInterval, structuredLogger)
	}

	tokenService, err := jwt.NewOperatorTokenService(cfg)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to initialize token service", err, nil)
		os.Exit(1)
	}

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Audit:              pipeline.Audit,
		Budget:             pipeline.Budget,
		Gate:               pipeline.Gate,
		Deployments:        pipeline.Deployments,
		Tickets:            pipeline.Tickets,
		Coordinator:        pipeline.Coordinator,
		Tokens:             tokenService,
		Recorder:           pipelineMetrics,
		Gatherer:           prometheus.DefaultGatherer,
		Logger:             structuredLogger,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		CorrelationHeader:  cfg.LogCorrelationIDHeader,
	})
	server := httpserver.NewServer(cfg.Addr(), router, structuredLogger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			structuredLogger.Error(ctx, "Server failed", err, map[string]interface{}{"addr": cfg.Addr()})
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		structuredLogger.Error(shutdownCtx, "Server forced to shutdown", err, nil)
	}
	structuredLogger.Info(shutdownCtx, "Server exited", nil)
}
