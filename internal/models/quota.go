package models

import "time"

// QuotaMetric identifies a counter family tracked by the ledger.
type QuotaMetric string

const (
	MetricRequests QuotaMetric = "requests"
	MetricCost     QuotaMetric = "cost"
)

// WindowKind identifies one quota accumulation window.
type WindowKind string

const (
	WindowBurst   WindowKind = "burst"
	WindowHourly  WindowKind = "hourly"
	WindowDaily   WindowKind = "daily"
	WindowMonthly WindowKind = "monthly"
)

// RequestWindows lists window kinds checked for the request-count
// metric, tightest first.
var RequestWindows = []WindowKind{WindowBurst, WindowHourly, WindowDaily, WindowMonthly}

// CostWindows lists window kinds checked for the monetary metric,
// tightest first. Cost has no burst window.
var CostWindows = []WindowKind{WindowHourly, WindowDaily, WindowMonthly}

// Duration returns the window length. Burst length is configurable and
// passed in; the fixed kinds ignore it.
func (k WindowKind) Duration(burst time.Duration) time.Duration {
	switch k {
	case WindowBurst:
		return burst
	case WindowHourly:
		return time.Hour
	case WindowDaily:
		return 24 * time.Hour
	case WindowMonthly:
		return 30 * 24 * time.Hour
	default:
		return time.Hour
	}
}

// WindowStart truncates now to the containing window boundary.
func (k WindowKind) WindowStart(now time.Time, burst time.Duration) time.Time {
	return now.Truncate(k.Duration(burst))
}

// QuotaWindow is one counter snapshot for a client/metric/kind triple.
type QuotaWindow struct {
	Kind        WindowKind `json:"kind"`
	Count       float64    `json:"count"`
	Limit       float64    `json:"limit"`
	WindowStart time.Time  `json:"window_start"`
}

// Remaining returns the headroom left in the window, floored at zero.
func (w QuotaWindow) Remaining() float64 {
	if r := w.Limit - w.Count; r > 0 {
		return r
	}
	return 0
}

// ResetAt returns when the window rolls over.
func (w QuotaWindow) ResetAt(burst time.Duration) time.Time {
	return w.WindowStart.Add(w.Kind.Duration(burst))
}

// Reservation is the outcome of a quota reserve call.
type Reservation struct {
	Allowed bool `json:"allowed"`
	// DeniedBy names the first window family whose projected total
	// would exceed its limit. Empty when allowed.
	DeniedBy   WindowKind    `json:"denied_by,omitzero"`
	Metric     QuotaMetric   `json:"metric"`
	RetryAfter int           `json:"retry_after_seconds,omitzero"`
	Windows    []QuotaWindow `json:"windows"`
	// Degraded is set when the durable store was unreachable and the
	// in-process fallback limiter answered instead.
	Degraded bool `json:"degraded,omitzero"`
}

// Tightest returns the window with the least remaining headroom,
// used to populate rate-limit response headers.
func (r *Reservation) Tightest() *QuotaWindow {
	var tight *QuotaWindow
	for i := range r.Windows {
		w := &r.Windows[i]
		if tight == nil || w.Remaining() < tight.Remaining() {
			tight = w
		}
	}
	return tight
}
