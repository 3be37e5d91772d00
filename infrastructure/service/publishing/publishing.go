package publishing

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/brandpilot/brandpilot/application/port/outbound"
)

// MemoryBackend keeps published pages in process. Each target holds the
// content currently live on the site.
type MemoryBackend struct {
	mu    sync.Mutex
	pages map[string]string
}

func NewMemoryBackend(seed map[string]string) *MemoryBackend {
	pages := make(map[string]string, len(seed))
	for k, v := range seed {
		pages[k] = v
	}
	return &MemoryBackend{pages: pages}
}

func (b *MemoryBackend) Publish(ctx context.Context, target, content string) (*outbound.PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if target == "" {
		return nil, fmt.Errorf("publish: empty target")
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	before := b.pages[target]
	b.pages[target] = content
	return &outbound.PublishResult{StateBefore: before, StateAfter: content}, nil
}

func (b *MemoryBackend) Restore(ctx context.Context, target, beforeState string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if beforeState == "" {
		delete(b.pages, target)
		return nil
	}
	b.pages[target] = beforeState
	return nil
}

// Page returns the live content of target
func (b *MemoryBackend) Page(target string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	content, ok := b.pages[target]
	return content, ok
}

// RedisBackend stores live page content under a key per target
type RedisBackend struct {
	client *redis.Client
	prefix string
}

func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "brandpilot:page:"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) key(target string) string { return b.prefix + target }

// Publish swaps the page content atomically and returns what was there
func (b *RedisBackend) Publish(ctx context.Context, target, content string) (*outbound.PublishResult, error) {
	if target == "" {
		return nil, fmt.Errorf("publish: empty target")
	}
	before, err := b.client.GetSet(ctx, b.key(target), content).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("publish %s: %w", target, err)
	}
	return &outbound.PublishResult{StateBefore: before, StateAfter: content}, nil
}

func (b *RedisBackend) Restore(ctx context.Context, target, beforeState string) error {
	var err error
	if beforeState == "" {
		err = b.client.Del(ctx, b.key(target)).Err()
	} else {
		err = b.client.Set(ctx, b.key(target), beforeState, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("restore %s: %w", target, err)
	}
	return nil
}
