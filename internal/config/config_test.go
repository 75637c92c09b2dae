package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/advisorai/admission-gate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFileSubstitutesEnvVars(t *testing.T) {
	t.Setenv("TEST_GATE_PORT", "9090")

	path := writeConfig(t, `
server:
  port: "${TEST_GATE_PORT:-8080}"
  allowed_origins: "${TEST_GATE_ORIGINS:-*}"
store:
  backend: memory
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "*", cfg.Server.AllowedOrigins)
}

func TestLoadFromFileAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: "8080"
  allowed_origins: "*"
store:
  backend: memory
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 32*1024, cfg.Server.MaxInputBytes)
	assert.Equal(t, 10, cfg.Quota.BurstWindowSeconds)
	assert.Equal(t, models.DefaultExactTTLSeconds, cfg.Cache.ExactTTLSeconds)
	assert.Equal(t, models.DefaultSemanticThreshold, cfg.Cache.SemanticThreshold)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedding.Model)

	gen := cfg.Gate.Classes[models.ClassGeneration]
	assert.Equal(t, 4, gen.Concurrency)
	assert.Equal(t, 40, gen.IntervalCap)
}

func TestLoadFromFileRejectsBadPaths(t *testing.T) {
	_, err := LoadFromFile("../../etc/passwd.yaml")
	assert.Error(t, err)

	_, err = LoadFromFile("config.json")
	assert.Error(t, err)
}

func TestValidateMissingFields(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.MissingFields, "server.port")
	assert.Contains(t, vErr.MissingFields, "server.allowed_origins")
}

func TestValidateRequiresRedisURLForRedisBackend(t *testing.T) {
	cfg := &Config{
		Server: models.ServerConfig{Port: "8080", AllowedOrigins: "*"},
		Store:  models.StoreConfig{Backend: models.StoreBackendRedis},
	}

	err := cfg.Validate()
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.MissingFields, "store.redis_url")
}

func TestValidateRejectsOutOfRangeThreshold(t *testing.T) {
	cfg := &Config{
		Server: models.ServerConfig{Port: "8080", AllowedOrigins: "*"},
		Store:  models.StoreConfig{Backend: models.StoreBackendMemory},
		Cache:  models.CacheConfig{SemanticThreshold: 1.5},
	}

	assert.Error(t, cfg.Validate())
}

func TestAgentAllowed(t *testing.T) {
	cfg := &Config{Agents: []string{"strategic", "financial"}}

	assert.True(t, cfg.AgentAllowed("strategic"))
	assert.True(t, cfg.AgentAllowed("Financial"))
	assert.False(t, cfg.AgentAllowed("astrology"))

	open := &Config{}
	assert.True(t, open.AgentAllowed("anything"))
}

func TestAllowedOriginList(t *testing.T) {
	cfg := &Config{Server: models.ServerConfig{AllowedOrigins: "https://a.example.com, https://b.example.com ,"}}

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOriginList())
}
