package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/brandpilot/brandpilot/application/port/inbound"
	"github.com/brandpilot/brandpilot/application/port/outbound"
	"github.com/brandpilot/brandpilot/infrastructure/adapter/memory"
	"github.com/brandpilot/brandpilot/infrastructure/adapter/postgres"
	"github.com/brandpilot/brandpilot/infrastructure/config"
	"github.com/brandpilot/brandpilot/infrastructure/service/engine"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
	"github.com/brandpilot/brandpilot/infrastructure/service/notifier"
	"github.com/brandpilot/brandpilot/infrastructure/service/publishing"
	"github.com/brandpilot/brandpilot/infrastructure/service/spendlock"
)

// OpenStore returns the configured store with its schema applied. The
// returned close func is never nil.
func OpenStore(ctx context.Context, cfg *config.Config) (Repositories, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		return memory.NewStore(), func() {}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		db.Close()
		return nil, nil, err
	}
	return postgres.NewStore(db), func() { db.Close() }, nil
}

// LoadDomains seeds the store from cfg.DomainsFile when one is configured
func LoadDomains(ctx context.Context, cfg *config.Config, repos Repositories) (int, error) {
	if cfg.DomainsFile == "" {
		return 0, nil
	}
	specs, err := config.LoadDomains(cfg.DomainsFile)
	if err != nil {
		return 0, err
	}
	if err := SeedDomains(ctx, repos.Domains(), specs, time.Now().UTC()); err != nil {
		return 0, err
	}
	return len(specs), nil
}

// NewRedisClient connects to url, or returns nil when url is empty
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// BuildCollaborators picks engines, publisher, notifier and spend lock from
// cfg. rdb may be nil, in which case everything stays in process.
func BuildCollaborators(cfg *config.Config, rdb *redis.Client, metrics outbound.PipelineMetrics, log logger.Logger) Collaborators {
	var engines []outbound.ContentEngine
	if cfg.AIMockMode {
		engines = append(engines, engine.NewMockEngine("mock", 0, 0.05))
	} else {
		engines = append(engines,
			engine.NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.AIPrimaryModel, cfg.AICostPer1KTokens),
			engine.NewOpenAIEngine(cfg.OpenAIAPIKey, cfg.AISecondaryModel, cfg.AICostPer1KTokens),
		)
	}

	collab := Collaborators{
		Generator: engine.NewChain(cfg.CollaboratorTimeout, metrics, log, engines...),
		Publisher: publishing.NewMemoryBackend(nil),
		Notifier:  notifier.NewLogNotifier(log),
		Metrics:   metrics,
	}

	if rdb != nil {
		collab.Publisher = publishing.NewRedisBackend(rdb, "")
		if cfg.NotifyRedisEnabled {
			collab.Notifier = notifier.Fanout{collab.Notifier, notifier.NewRedisNotifier(rdb, cfg.NotifyChannel)}
		}
	}

	if cfg.BudgetHardCap {
		collab.Locker = spendlock.NewSpendLocker(rdb, spendlock.LockConfig{
			TTL: cfg.BudgetLockTTL,
		}, logger.Logrus(log))
	}
	return collab
}

// RunSweeper expires closed rollback windows every interval until ctx ends
func RunSweeper(ctx context.Context, deployments inbound.DeploymentManager, interval time.Duration, log logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := deployments.ExpireSweep(ctx)
			if err != nil {
				log.Error(ctx, "Rollback sweep failed", err, nil)
				continue
			}
			if n > 0 {
				log.Info(ctx, "Rollback windows expired", map[string]interface{}{"count": n})
			}
		}
	}
}
