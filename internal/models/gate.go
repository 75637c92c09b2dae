package models

import "time"

// GateClass names a concurrency class with its own capacity pool.
type GateClass string

const (
	// ClassGeneration covers primary advisory text generation.
	ClassGeneration GateClass = "generation"
	// ClassRender covers report rendering.
	ClassRender GateClass = "render"
	// ClassSimilarity covers similarity-index lookups.
	ClassSimilarity GateClass = "similarity"
)

// GateResult reports the outcome of one gated task.
type GateResult struct {
	Success bool
	Value   any
	Err     error
	// QueueTime is wall clock from submission to execution start.
	QueueTime time.Duration
	// ExecTime is wall clock from execution start to completion or
	// timeout.
	ExecTime time.Duration
	TimedOut bool
}

// PoolStats is a point-in-time snapshot of one class pool.
type PoolStats struct {
	Class       GateClass `json:"class"`
	Queued      int       `json:"queued"`
	Running     int       `json:"running"`
	Idle        int       `json:"idle"`
	Concurrency int       `json:"concurrency"`
	IntervalCap int       `json:"interval_cap"`
	Completed   int64     `json:"completed"`
	TimedOut    int64     `json:"timed_out"`
	Overloaded  bool      `json:"overloaded"`
}
