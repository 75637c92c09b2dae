package models

// StoreBackendType represents the type of durable store backend to use
type StoreBackendType string

const (
	StoreBackendRedis  StoreBackendType = "redis"
	StoreBackendMemory StoreBackendType = "memory"
)

// StoreConfig holds configuration for the shared durable key-value store
type StoreConfig struct {
	Backend  StoreBackendType `json:"backend,omitzero" yaml:"backend"`
	RedisURL string           `json:"redis_url,omitzero" yaml:"redis_url"`
	// Capacity bounds the in-memory backend (and the in-process
	// fallback used when Redis is unreachable).
	Capacity int `json:"capacity,omitzero" yaml:"capacity"`
}
