// Command sweep expires every deployment whose rollback window has closed
// and exits. Run it from cron when the server's own sweeper is disabled.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brandpilot/brandpilot/infrastructure/bootstrap"
	"github.com/brandpilot/brandpilot/infrastructure/config"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	structuredLogger := logger.NewStructuredLogger(logger.LoggerConfig{
		Level:       cfg.LogLevel,
		Format:      cfg.LogFormat,
		ServiceName: "brandpilot-sweep",
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	repos, closeStore, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		structuredLogger.Error(ctx, "Failed to open store", err, nil)
		os.Exit(1)
	}
	defer closeStore()

	pipeline := bootstrap.NewPipeline(repos, bootstrap.BuildCollaborators(cfg, nil, nil, structuredLogger), structuredLogger, nil, cfg.CollaboratorTimeout)

	start := time.Now()
	n, err := pipeline.Deployments.ExpireSweep(ctx)
	if err != nil {
		structuredLogger.Error(ctx, "Rollback sweep failed", err, nil)
		os.Exit(1)
	}
	logger.LogPerformance(ctx, structuredLogger, "rollback_sweep", time.Since(start), map[string]interface{}{
		"expired": n,
	})
}
