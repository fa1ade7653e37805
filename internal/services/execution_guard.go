// internal/services/execution_guard.go
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ExecutionGuard makes sure only one worker executes a given payout at a
// time, across processes when backed by Redis.
type ExecutionGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type RedisExecutionGuard struct {
	client    *redis.Client
	keyPrefix string
}

func NewRedisExecutionGuard(client *redis.Client, keyPrefix string) *RedisExecutionGuard {
	if keyPrefix == "" {
		keyPrefix = "settlement:guard:"
	}
	return &RedisExecutionGuard{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Acquire uses SETNX so the key is taken atomically; the TTL frees it if the
// holder dies mid-execution.
func (g *RedisExecutionGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := g.client.SetNX(ctx, g.keyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire execution guard: %w", err)
	}
	return ok, nil
}

func (g *RedisExecutionGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, g.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release execution guard: %w", err)
	}
	return nil
}

// InMemoryExecutionGuard is the single-instance fallback used when Redis is
// not configured, and in tests.
type InMemoryExecutionGuard struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func NewInMemoryExecutionGuard() *InMemoryExecutionGuard {
	return &InMemoryExecutionGuard{entries: make(map[string]time.Time)}
}

func (g *InMemoryExecutionGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	if expiresAt, exists := g.entries[key]; exists && now.Before(expiresAt) {
		return false, nil
	}
	g.entries[key] = now.Add(ttl)
	return true, nil
}

func (g *InMemoryExecutionGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, key)
	return nil
}

var (
	_ ExecutionGuard = (*RedisExecutionGuard)(nil)
	_ ExecutionGuard = (*InMemoryExecutionGuard)(nil)
)
