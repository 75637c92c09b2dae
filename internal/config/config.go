package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/advisorai/admission-gate/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultMaxInputBytes      = 32 * 1024
	defaultBurstWindowSeconds = 10
)

// Config represents the complete application configuration
type Config struct {
	Server    models.ServerConfig     `yaml:"server"`
	Store     models.StoreConfig      `yaml:"store"`
	Cache     models.CacheConfig      `yaml:"cache"`
	Embedding models.EmbeddingConfig  `yaml:"embedding"`
	Gate      models.GateConfig       `yaml:"gate"`
	Quota     models.QuotaConfig      `yaml:"quota"`
	Pricing   models.PricingConfig    `yaml:"pricing"`
	Database  *models.DatabaseConfig  `yaml:"database,omitempty"`
	// Agents lists the advisory agent types requests may fan out to.
	Agents []string `yaml:"agents"`
}

// LoadFromFile loads configuration from a YAML file with environment variable substitution
func LoadFromFile(configPath string) (*Config, error) {
	// Validate and clean the file path to prevent directory traversal
	cleanPath := filepath.Clean(configPath)

	if strings.Contains(cleanPath, "..") {
		return nil, fmt.Errorf("invalid config path: path traversal not allowed")
	}

	ext := filepath.Ext(cleanPath)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("invalid config file: only .yaml and .yml files are allowed")
	}

	data, err := os.ReadFile(cleanPath) // #nosec G304 - path is validated above
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	content := substituteEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	config.applyDefaults()

	return &config, nil
}

// LoadEnvFiles loads environment variables from .env files in order of precedence
// Loads files in the order provided (first has highest priority)
func LoadEnvFiles(envFiles []string) {
	for _, envFile := range envFiles {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err == nil {
				fmt.Printf("Loaded environment variables from %s\n", envFile)
			}
		}
	}
}

// New creates a new Config instance by loading from the specified config file path
func New(configPath string) (*Config, error) {
	return LoadFromFile(configPath)
}

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} patterns with environment variables
func substituteEnvVars(content string) string {
	// Pattern matches ${VAR_NAME} or ${VAR_NAME:-default_value}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::(-[^}]*))?\}`)

	return re.ReplaceAllStringFunc(content, func(match string) string {
		submatches := re.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""

		if len(submatches) > 2 && submatches[2] != "" {
			defaultValue = strings.TrimPrefix(submatches[2], "-")
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

func (c *Config) applyDefaults() {
	if c.Server.MaxInputBytes <= 0 {
		c.Server.MaxInputBytes = defaultMaxInputBytes
	}
	if c.Quota.BurstWindowSeconds <= 0 {
		c.Quota.BurstWindowSeconds = defaultBurstWindowSeconds
	}
	if c.Cache.SemanticWindow <= 0 {
		c.Cache.SemanticWindow = models.DefaultSemanticWindow
	}
	if c.Cache.ExactTTLSeconds == 0 {
		c.Cache.ExactTTLSeconds = models.DefaultExactTTLSeconds
	}
	if c.Cache.SemanticTTLSeconds == 0 {
		c.Cache.SemanticTTLSeconds = models.DefaultSemanticTTLSeconds
	}
	if c.Cache.PartialTTLSeconds == 0 {
		c.Cache.PartialTTLSeconds = models.DefaultPartialTTLSeconds
	}
	if c.Cache.SemanticThreshold == 0 {
		c.Cache.SemanticThreshold = models.DefaultSemanticThreshold
	}
	if c.Embedding.TTLSeconds <= 0 {
		c.Embedding.TTLSeconds = models.DefaultEmbeddingTTLSecs
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Pricing.PerCallFixedCost == 0 {
		c.Pricing.PerCallFixedCost = 0.01
	}
	if c.Pricing.InputRatePer1K == 0 {
		c.Pricing.InputRatePer1K = 0.003
	}
	if c.Pricing.OutputRatePer1K == 0 {
		c.Pricing.OutputRatePer1K = 0.015
	}
	if c.Pricing.DefaultOutputChars <= 0 {
		c.Pricing.DefaultOutputChars = 4000
	}
	if c.Gate.Classes == nil {
		c.Gate.Classes = make(map[models.GateClass]models.GateClassConfig)
	}
	for _, class := range []models.GateClass{models.ClassGeneration, models.ClassRender, models.ClassSimilarity} {
		cc := c.Gate.Classes[class]
		if cc.Concurrency <= 0 {
			cc.Concurrency = 4
		}
		if cc.TimeoutMs <= 0 {
			cc.TimeoutMs = 60_000
		}
		if cc.IntervalCap <= 0 {
			cc.IntervalCap = cc.Concurrency * 10
		}
		c.Gate.Classes[class] = cc
	}
}

// AllowedOriginList splits the configured origins into a slice.
func (c *Config) AllowedOriginList() []string {
	if c.Server.AllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.Server.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// AgentAllowed reports whether an agent type is configured. An empty
// agent list allows everything.
func (c *Config) AgentAllowed(agentType string) bool {
	if len(c.Agents) == 0 {
		return true
	}
	for _, a := range c.Agents {
		if strings.EqualFold(a, agentType) {
			return true
		}
	}
	return false
}

// GetNormalizedLogLevel returns the log level in lowercase for consistent comparison
func (c *Config) GetNormalizedLogLevel() string {
	return strings.ToLower(c.Server.LogLevel)
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Validate checks if all required configuration values are set
func (c *Config) Validate() error {
	var missing []string

	if c.Server.Port == "" {
		missing = append(missing, "server.port")
	}
	if c.Server.AllowedOrigins == "" {
		missing = append(missing, "server.allowed_origins")
	}
	if c.Store.Backend == models.StoreBackendRedis && c.Store.RedisURL == "" {
		missing = append(missing, "store.redis_url")
	}
	if c.Cache.Enabled && c.Cache.SimilarityIndex == nil && c.Embedding.APIKey == "" {
		missing = append(missing, "embedding.api_key")
	}

	if len(missing) > 0 {
		return &ValidationError{MissingFields: missing}
	}

	if t := c.Cache.SemanticThreshold; t < -1 || t > 1 {
		return fmt.Errorf("invalid semantic threshold %.2f; cosine similarity lives in [-1, 1]", t)
	}
	for workload, t := range c.Cache.WorkloadThresholds {
		if t < -1 || t > 1 {
			return fmt.Errorf("invalid semantic threshold %.2f for workload %q", t, workload)
		}
	}

	return nil
}

// ValidationError represents configuration validation errors
type ValidationError struct {
	MissingFields []string
}

func (e *ValidationError) Error() string {
	return "missing required configuration fields: " + strings.Join(e.MissingFields, ", ")
}
