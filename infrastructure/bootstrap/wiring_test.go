package bootstrap

import (
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"

	"github.com/brandpilot/brandpilot/infrastructure/config"
	"github.com/brandpilot/brandpilot/infrastructure/service/logger"
	"github.com/brandpilot/brandpilot/infrastructure/service/publishing"
	"github.com/brandpilot/brandpilot/infrastructure/service/spendlock"
)

func TestBuildCollaborators_SpendLockSharesRedisClient(t *testing.T) {
	log := logger.NewNopLogger()
	cfg := &config.Config{AIMockMode: true, BudgetHardCap: true, BudgetLockTTL: time.Second, CollaboratorTimeout: time.Second}

	local := BuildCollaborators(cfg, nil, nil, log)
	assert.IsType(t, &spendlock.LocalLocker{}, local.Locker)
	assert.IsType(t, &publishing.MemoryBackend{}, local.Publisher)

	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()
	shared := BuildCollaborators(cfg, rdb, nil, log)
	assert.IsType(t, &spendlock.RedisLocker{}, shared.Locker)
	assert.IsType(t, &publishing.RedisBackend{}, shared.Publisher)

	cfg.BudgetHardCap = false
	assert.Nil(t, BuildCollaborators(cfg, rdb, nil, log).Locker)
}
