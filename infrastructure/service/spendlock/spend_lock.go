package spendlock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/brandpilot/brandpilot/application/port/outbound"
)

const (
	keyPrefix    = "brandpilot:spendlock:"
	retryBackoff = 25 * time.Millisecond
)

// releaseScript deletes the lock only if we still own it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// LockConfig configures the per-domain spend lock
type LockConfig struct {
	TTL time.Duration
}

// NewSpendLocker returns a Redis-backed locker on client, or a process-local
// one when client is nil. The caller owns client.
func NewSpendLocker(client *redis.Client, config LockConfig, logger *logrus.Logger) outbound.SpendLocker {
	if config.TTL <= 0 {
		config.TTL = 30 * time.Second
	}
	if client == nil {
		logger.Info("Spend lock using process-local mutexes")
		return NewLocalLocker()
	}

	logger.WithFields(logrus.Fields{
		"ttl": config.TTL,
	}).Info("Spend lock service initialized")
	return NewRedisLocker(client, config.TTL, logger)
}

// RedisLocker serializes spend per domain across processes with SET NX PX
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

// Lock blocks until the domain lock is held or ctx ends. The lock expires
// after ttl so a crashed holder cannot wedge the domain.
func (l *RedisLocker) Lock(ctx context.Context, domainID string) (func(), error) {
	key := keyPrefix + domainID
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire spend lock: %w", err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("spend lock wait for %s: %w", domainID, ctx.Err())
		case <-time.After(retryBackoff):
		}
	}

	unlock := func() {
		// release must not depend on the caller's ctx, which may be done
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			l.logger.WithError(err).WithField("domain_id", domainID).Error("Failed to release spend lock")
		}
	}
	return unlock, nil
}

// LocalLocker serializes spend per domain inside one process
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(domainID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[domainID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[domainID] = ch
	}
	return ch
}

func (l *LocalLocker) Lock(ctx context.Context, domainID string) (func(), error) {
	ch := l.slot(domainID)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("spend lock wait for %s: %w", domainID, ctx.Err())
	}

	var once sync.Once
	return func() { once.Do(func() { <-ch }) }, nil
}
