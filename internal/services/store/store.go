// Package store abstracts the shared durable key-value store behind a
// small interface with a Redis implementation and an in-process
// memory implementation. Consumers that must fail open (cache,
// embedding memoization) treat any error as a miss; the quota ledger
// fails over to the memory implementation instead.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/advisorai/admission-gate/internal/models"
)

// Store is the durable key-value surface shared by the cache hierarchy,
// the embedding cache and the quota ledger.
type Store interface {
	// Get returns the value for key, reporting found=false on a miss.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	// Set writes value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// DeleteByPrefix removes every key with the prefix and returns the
	// number removed.
	DeleteByPrefix(ctx context.Context, prefix string) (int64, error)
	CountByPrefix(ctx context.Context, prefix string) (int64, error)

	// PushRecent prepends member to a bounded recency list, trimming it
	// to cap entries.
	PushRecent(ctx context.Context, list, member string, cap int) error
	// Recent returns up to n members of a recency list, newest first.
	Recent(ctx context.Context, list string, n int) ([]string, error)

	// Reserve atomically increments the counter at key by amount unless
	// the result would exceed limit, in which case the counter is left
	// untouched and allowed=false is returned alongside the current
	// total. A limit <= 0 means unlimited. The ttl is applied only when
	// the key has none yet, so window counters expire at their boundary
	// regardless of traffic.
	Reserve(ctx context.Context, key string, amount, limit float64, ttl time.Duration) (total float64, allowed bool, err error)
	// IncrByFloat unconditionally adjusts the counter at key by delta.
	IncrByFloat(ctx context.Context, key string, delta float64, ttl time.Duration) (float64, error)
	// GetFloat reads a counter, returning 0 for a missing key.
	GetFloat(ctx context.Context, key string) (float64, error)

	Ping(ctx context.Context) error
	Close() error
}

// New builds a store from configuration, defaulting to Redis for
// backward compatibility with existing deployments.
func New(cfg models.StoreConfig) (Store, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = models.StoreBackendRedis
	}

	switch backend {
	case models.StoreBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis URL not set - please configure store.redis_url")
		}
		return NewRedis(cfg.RedisURL)
	case models.StoreBackendMemory:
		capacity := cfg.Capacity
		if capacity <= 0 {
			capacity = 10_000
		}
		return NewMemory(capacity)
	default:
		return nil, fmt.Errorf("unsupported store backend: %s (supported: redis, memory)", backend)
	}
}
