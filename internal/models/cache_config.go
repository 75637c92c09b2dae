package models

const (
	// DefaultSemanticThreshold is the medium-stakes default; workloads
	// override it per class.
	DefaultSemanticThreshold float32 = 0.85

	DefaultExactTTLSeconds    = 3600          // 1h
	DefaultSemanticTTLSeconds = 6 * 3600      // 6h
	DefaultPartialTTLSeconds  = 24 * 3600     // 24h
	DefaultEmbeddingTTLSecs   = 3 * 24 * 3600 // 3d

	// DefaultSemanticWindow bounds the recent-embedding scan. Recall is
	// capped on purpose; see the semantic index delegate for full
	// recall.
	DefaultSemanticWindow = 256
)

// SimilarityIndexConfig configures the optional external similarity
// index. When set, semantic lookups delegate to it instead of the
// bounded recent-window scan.
type SimilarityIndexConfig struct {
	Backend  StoreBackendType `json:"backend,omitzero" yaml:"backend"` // "redis" or "memory"
	RedisURL string           `json:"redis_url,omitzero" yaml:"redis_url"`
	Capacity int              `json:"capacity,omitzero" yaml:"capacity"`
	// OpenAIAPIKey and EmbeddingModel configure the index's own
	// embedding provider.
	OpenAIAPIKey   string `json:"openai_api_key,omitzero" yaml:"openai_api_key"`
	EmbeddingModel string `json:"embedding_model,omitzero" yaml:"embedding_model"`
}

// CacheConfig holds configuration for the cache hierarchy
type CacheConfig struct {
	Enabled bool `json:"enabled,omitzero" yaml:"enabled"`

	ExactTTLSeconds    int `json:"exact_ttl_seconds,omitzero" yaml:"exact_ttl_seconds"`
	SemanticTTLSeconds int `json:"semantic_ttl_seconds,omitzero" yaml:"semantic_ttl_seconds"`
	PartialTTLSeconds  int `json:"partial_ttl_seconds,omitzero" yaml:"partial_ttl_seconds"`

	SemanticThreshold float32 `json:"semantic_threshold,omitzero" yaml:"semantic_threshold"`
	// WorkloadThresholds overrides the semantic threshold per workload
	// class, e.g. stricter for high-stakes classifications.
	WorkloadThresholds map[string]float32 `json:"workload_thresholds,omitzero" yaml:"workload_thresholds"`

	// SemanticWindow bounds how many recently stored embeddings the
	// semantic level scans.
	SemanticWindow int `json:"semantic_window,omitzero" yaml:"semantic_window"`

	SimilarityIndex *SimilarityIndexConfig `json:"similarity_index,omitempty" yaml:"similarity_index,omitempty"`
}

// TTLFor returns the TTL for a level. A zero TTL disables writes at
// that level; defaults are applied at config load, not here.
func (c *CacheConfig) TTLFor(level CacheLevel) int {
	switch level {
	case CacheLevelExact:
		return c.ExactTTLSeconds
	case CacheLevelSemantic:
		return c.SemanticTTLSeconds
	case CacheLevelPartial:
		return c.PartialTTLSeconds
	default:
		return 0
	}
}

// ThresholdFor returns the similarity threshold for a workload class.
func (c *CacheConfig) ThresholdFor(workload string) float32 {
	if t, ok := c.WorkloadThresholds[workload]; ok {
		return t
	}
	if c.SemanticThreshold > 0 {
		return c.SemanticThreshold
	}
	return DefaultSemanticThreshold
}

// EmbeddingConfig configures the text-to-vector provider and its
// memoization cache.
type EmbeddingConfig struct {
	APIKey     string `json:"-" yaml:"api_key"`
	Model      string `json:"model,omitzero" yaml:"model"`
	BaseURL    string `json:"base_url,omitzero" yaml:"base_url"`
	TimeoutMs  int    `json:"timeout_ms,omitzero" yaml:"timeout_ms"`
	TTLSeconds int    `json:"ttl_seconds,omitzero" yaml:"ttl_seconds"`
}
