package models

// WindowLimits holds per-window limits for one metric family. Zero
// means unlimited for that window.
type WindowLimits struct {
	Burst   float64 `json:"burst,omitzero" yaml:"burst"`
	Hourly  float64 `json:"hourly,omitzero" yaml:"hourly"`
	Daily   float64 `json:"daily,omitzero" yaml:"daily"`
	Monthly float64 `json:"monthly,omitzero" yaml:"monthly"`
}

// Limit returns the limit for a window kind.
func (l WindowLimits) Limit(kind WindowKind) float64 {
	switch kind {
	case WindowBurst:
		return l.Burst
	case WindowHourly:
		return l.Hourly
	case WindowDaily:
		return l.Daily
	case WindowMonthly:
		return l.Monthly
	default:
		return 0
	}
}

// QuotaConfig holds the multi-window quota limits for both metric
// families plus the burst window length.
type QuotaConfig struct {
	Enabled            bool         `json:"enabled,omitzero" yaml:"enabled"`
	BurstWindowSeconds int          `json:"burst_window_seconds,omitzero" yaml:"burst_window_seconds"`
	Requests           WindowLimits `json:"requests" yaml:"requests"`
	Cost               WindowLimits `json:"cost" yaml:"cost"`
}

// LimitsFor returns the limits for a metric family.
func (c *QuotaConfig) LimitsFor(metric QuotaMetric) WindowLimits {
	if metric == MetricCost {
		return c.Cost
	}
	return c.Requests
}

// PricingConfig drives the pre-request cost estimate. Token counts are
// approximated from character length (tokens ~ chars/4); the estimate
// only needs to be conservative in aggregate, not exact per request.
type PricingConfig struct {
	// PerCallFixedCost is charged once per downstream advisory call.
	PerCallFixedCost float64 `json:"per_call_fixed_cost,omitzero" yaml:"per_call_fixed_cost"`
	// InputRatePer1K and OutputRatePer1K are dollar rates per thousand
	// tokens.
	InputRatePer1K  float64 `json:"input_rate_per_1k,omitzero" yaml:"input_rate_per_1k"`
	OutputRatePer1K float64 `json:"output_rate_per_1k,omitzero" yaml:"output_rate_per_1k"`
	// DefaultOutputChars is the assumed response size when the caller
	// provides no estimate.
	DefaultOutputChars int `json:"default_output_chars,omitzero" yaml:"default_output_chars"`
}
