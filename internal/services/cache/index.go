package cache

import (
	"context"
	"fmt"

	"github.com/advisorai/admission-gate/internal/models"

	"github.com/botirk38/semanticcache"
	"github.com/botirk38/semanticcache/options"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// SimilarityIndex delegates semantic lookups to an external
// similarity-search service instead of the bounded recent-window scan,
// trading an extra network hop for full recall.
type SimilarityIndex struct {
	cache *semanticcache.SemanticCache[string, string]
}

// NewSimilarityIndex creates the index from configuration.
func NewSimilarityIndex(cfg *models.SimilarityIndexConfig) (*SimilarityIndex, error) {
	if cfg == nil {
		return nil, fmt.Errorf("similarity index not configured")
	}

	apiKey := cfg.OpenAIAPIKey
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key not set in similarity index configuration")
	}

	embedModel := cfg.EmbeddingModel
	if embedModel == "" {
		embedModel = "text-embedding-3-large"
	}

	backend := cfg.Backend
	if backend == "" {
		backend = models.StoreBackendRedis
		fiberlog.Warn("SimilarityIndex: backend not specified, defaulting to redis")
	}

	var index *semanticcache.SemanticCache[string, string]
	var err error

	switch backend {
	case models.StoreBackendMemory:
		capacity := cfg.Capacity
		if capacity <= 0 {
			capacity = 1000
		}
		index, err = semanticcache.New(
			options.WithOpenAIProvider[string, string](apiKey, embedModel),
			options.WithLRUBackend[string, string](capacity),
		)

	case models.StoreBackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis URL not set in similarity index configuration")
		}
		index, err = semanticcache.New(
			options.WithOpenAIProvider[string, string](apiKey, embedModel),
			options.WithRedisBackend[string, string](cfg.RedisURL, 0),
		)

	default:
		return nil, fmt.Errorf("unsupported similarity index backend: %s (supported: redis, memory)", backend)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create similarity index: %w", err)
	}

	return &SimilarityIndex{cache: index}, nil
}

// Lookup searches the index for the nearest stored input at or above
// threshold. Errors are logged and reported as misses.
func (si *SimilarityIndex) Lookup(ctx context.Context, input string, threshold float32) ([]byte, float32, bool) {
	match, err := si.cache.Lookup(ctx, input, threshold)
	if err != nil {
		fiberlog.Warnf("SimilarityIndex: lookup failed, treating as miss: %v", err)
		return nil, 0, false
	}
	if match == nil {
		return nil, 0, false
	}
	return []byte(match.Value), match.Score, true
}

// Store writes the input/value pair to the index, fire-and-forget.
func (si *SimilarityIndex) Store(ctx context.Context, input string, value []byte) {
	si.cache.SetAsync(ctx, input, input, string(value))
}

// Close releases index resources.
func (si *SimilarityIndex) Close() error {
	if si.cache != nil {
		return si.cache.Close()
	}
	return nil
}
