package models

import "time"

// RequestUsage is one audit-log row per admitted request.
type RequestUsage struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ClientID      string     `gorm:"not null;size:100;index;default:''" json:"client_id"`
	RequestID     string     `gorm:"not null;size:100;index;default:''" json:"request_id,omitzero"`
	Allowed       bool       `gorm:"not null;default:false" json:"allowed"`
	Reason        string     `gorm:"not null;size:50;default:''" json:"reason,omitzero"`
	CacheLevel    CacheLevel `gorm:"not null;size:20;default:''" json:"cache_level,omitzero"`
	EstimatedCost float64    `gorm:"not null;type:decimal(10,6);default:0" json:"estimated_cost"`
	ActualCost    float64    `gorm:"not null;type:decimal(10,6);default:0" json:"actual_cost"`
	LatencyMs     int        `gorm:"not null;default:0" json:"latency_ms"`
	UserAgent     string     `gorm:"not null;size:255;default:''" json:"user_agent,omitzero"`
	IPAddress     string     `gorm:"not null;size:45;default:''" json:"ip_address,omitzero"`
	CreatedAt     time.Time  `gorm:"not null;autoCreateTime;index" json:"created_at"`
}

func (RequestUsage) TableName() string {
	return "request_usage"
}

// UsageStats aggregates audit-log rows for the operator surface. Field
// names must map to the column aliases in GetUsageStats, which is how
// gorm matches Scan results.
type UsageStats struct {
	TotalRequests      int64   `json:"total_requests"`
	AllowedRequests    int64   `json:"allowed_requests"`
	RejectedRequests   int64   `json:"rejected_requests"`
	CacheHits          int64   `json:"cache_hits"`
	TotalEstimatedCost float64 `json:"total_estimated_cost"`
	TotalActualCost    float64 `json:"total_actual_cost"`
	AvgLatencyMs       float64 `json:"avg_latency_ms"`
}

// RecordUsageParams carries one audit record through the async worker.
type RecordUsageParams struct {
	ClientID      string
	RequestID     string
	Allowed       bool
	Reason        ErrorType
	CacheLevel    CacheLevel
	EstimatedCost float64
	ActualCost    float64
	LatencyMs     int
	UserAgent     string
	IPAddress     string
}
