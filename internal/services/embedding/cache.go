package embedding

import (
	"context"
	"encoding/json"
	"time"

	"github.com/advisorai/admission-gate/internal/services/cache"
	"github.com/advisorai/admission-gate/internal/services/store"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/singleflight"
)

// Cache memoizes Provider calls in the durable store, keyed by a digest
// of the text, with a multi-day TTL. On store unavailability it falls
// through to the provider and returns the unmemoized vector:
// correctness is preserved, only the cost saving is lost.
type Cache struct {
	provider Provider
	store    store.Store
	keys     *cache.KeyBuilder
	ttl      time.Duration
	sfGroup  singleflight.Group
}

// NewCache wraps a provider with store-backed memoization.
func NewCache(provider Provider, st store.Store, ttl time.Duration) *Cache {
	return &Cache{
		provider: provider,
		store:    st,
		keys:     cache.NewKeyBuilder(),
		ttl:      ttl,
	}
}

// Embed returns the vector for text, serving repeats from the store.
// Concurrent callers for the same text share one provider call.
func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.keys.EmbeddingKey(text)

	if data, found, err := c.store.Get(ctx, key); err != nil {
		fiberlog.Warnf("EmbeddingCache: store lookup failed, calling provider directly: %v", err)
	} else if found {
		var vector []float32
		if err := json.Unmarshal(data, &vector); err == nil {
			return vector, nil
		}
		fiberlog.Warnf("EmbeddingCache: corrupt cached vector for %s, recomputing", key[:24])
	}

	v, err, _ := c.sfGroup.Do(key, func() (any, error) {
		vector, err := c.provider.Embed(ctx, text)
		if err != nil {
			return nil, err
		}

		if data, err := json.Marshal(vector); err == nil {
			if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
				fiberlog.Warnf("EmbeddingCache: failed to memoize vector: %v", err)
			}
		}
		return vector, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]float32), nil
}
