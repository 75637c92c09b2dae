package models

// GateClassConfig configures one concurrency class pool.
type GateClassConfig struct {
	Concurrency int `json:"concurrency,omitzero" yaml:"concurrency"`
	TimeoutMs   int `json:"timeout_ms,omitzero" yaml:"timeout_ms"`
	// IntervalCap feeds the saturation predicate: the class is
	// overloaded when queued+running exceeds 80% of it.
	IntervalCap int `json:"interval_cap,omitzero" yaml:"interval_cap"`
}

// GateConfig maps class names to their pool configuration.
type GateConfig struct {
	Classes map[GateClass]GateClassConfig `json:"classes" yaml:"classes"`
}
