package models

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string `json:"port,omitzero" yaml:"port"`
	AllowedOrigins string `json:"allowed_origins,omitzero" yaml:"allowed_origins"`
	Environment    string `json:"environment,omitzero" yaml:"environment"`
	LogLevel       string `json:"log_level,omitzero" yaml:"log_level"`
	// AdminToken guards the operator surface for non-loopback callers.
	AdminToken string `json:"-" yaml:"admin_token"`
	// MaxInputBytes rejects oversized inputs before any cache or quota
	// work. Zero means the built-in default.
	MaxInputBytes int `json:"max_input_bytes,omitzero" yaml:"max_input_bytes"`
}
