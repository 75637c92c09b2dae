// Package usage persists the per-request audit log and serves the
// aggregates behind the operator stats surface.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/advisorai/admission-gate/internal/models"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) AutoMigrate() error {
	return s.db.AutoMigrate(&models.RequestUsage{})
}

// RecordUsage writes one audit row. Rows are append-only; nothing in
// admission reads them back on the hot path.
func (s *Service) RecordUsage(ctx context.Context, params models.RecordUsageParams) (*models.RequestUsage, error) {
	row := models.RequestUsage{
		ClientID:      params.ClientID,
		RequestID:     params.RequestID,
		Allowed:       params.Allowed,
		Reason:        string(params.Reason),
		CacheLevel:    params.CacheLevel,
		EstimatedCost: params.EstimatedCost,
		ActualCost:    params.ActualCost,
		LatencyMs:     params.LatencyMs,
		UserAgent:     params.UserAgent,
		IPAddress:     params.IPAddress,
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}

	return &row, nil
}

// GetUsageByClient returns the most recent audit rows for one client.
func (s *Service) GetUsageByClient(ctx context.Context, clientID string, limit, offset int) ([]models.RequestUsage, error) {
	var rows []models.RequestUsage

	query := s.db.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	return rows, nil
}

// GetUsageStats aggregates the audit log over a date range. An empty
// clientID aggregates across all clients.
func (s *Service) GetUsageStats(ctx context.Context, clientID string, startDate, endDate time.Time) (*models.UsageStats, error) {
	var stats models.UsageStats

	query := s.db.WithContext(ctx).Model(&models.RequestUsage{})

	if clientID != "" {
		query = query.Where("client_id = ?", clientID)
	}
	if !startDate.IsZero() {
		query = query.Where("created_at >= ?", startDate)
	}
	if !endDate.IsZero() {
		query = query.Where("created_at <= ?", endDate)
	}

	err := query.
		Select(
			"COUNT(*) as total_requests",
			"COUNT(CASE WHEN allowed THEN 1 END) as allowed_requests",
			"COUNT(CASE WHEN NOT allowed THEN 1 END) as rejected_requests",
			"COUNT(CASE WHEN cache_level <> '' THEN 1 END) as cache_hits",
			"COALESCE(SUM(estimated_cost), 0) as total_estimated_cost",
			"COALESCE(SUM(actual_cost), 0) as total_actual_cost",
			"COALESCE(AVG(latency_ms), 0) as avg_latency_ms",
		).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get usage stats: %w", err)
	}

	return &stats, nil
}

// GetRejectionsByReason counts rejections per reason tag over a date
// range, for capacity tuning.
func (s *Service) GetRejectionsByReason(ctx context.Context, startDate, endDate time.Time) (map[string]int64, error) {
	type reasonCount struct {
		Reason string
		Count  int64
	}

	query := s.db.WithContext(ctx).
		Model(&models.RequestUsage{}).
		Where("allowed = ?", false)

	if !startDate.IsZero() {
		query = query.Where("created_at >= ?", startDate)
	}
	if !endDate.IsZero() {
		query = query.Where("created_at <= ?", endDate)
	}

	var rows []reasonCount
	if err := query.
		Select("reason", "COUNT(*) as count").
		Group("reason").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get rejection breakdown: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Reason] = r.Count
	}
	return out, nil
}
