package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/209works/api-platform/internal/models"
	"github.com/209works/api-platform/internal/repository"
	"github.com/209works/api-platform/internal/storage"
	"github.com/google/uuid"
)

const analyticsCacheTTL = 60 * time.Second

// Analytics windows and groupings accepted by Query.
const (
	WindowHour  = "hour"
	WindowDay   = "day"
	WindowWeek  = "week"
	WindowMonth = "month"

	GroupByEndpoint = "endpoint"
	GroupByStatus   = "status"
	GroupByRegion   = "region"
)

// UsageReader is the read-side surface over the usage fact table.
type UsageReader interface {
	Count(ctx context.Context, filter repository.UsageFilter) (int64, error)
	AverageResponseTime(ctx context.Context, filter repository.UsageFilter) (float64, error)
	CountByStatus(ctx context.Context, filter repository.UsageFilter) ([]repository.StatusCount, error)
	TopGroups(ctx context.Context, filter repository.UsageFilter, column string, limit int) ([]repository.GroupCount, error)
	FindByAPIKey(ctx context.Context, apiKeyID uuid.UUID, from, to time.Time, limit, offset int) ([]models.APIUsage, error)
	FindByTimeRange(ctx context.Context, from, to time.Time, limit, offset int) ([]models.APIUsage, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type AnalyticsQuery struct {
	APIKeyID *uuid.UUID `json:"api_key_id,omitempty"`
	OwnerID  string     `json:"owner_id,omitempty"`
	Window   string     `json:"window"`
	GroupBy  string     `json:"group_by"`
}

type Report struct {
	TotalRequests   int64                    `json:"total_requests"`
	AvgResponseTime float64                  `json:"avg_response_time_ms"`
	StatusCodes     []repository.StatusCount `json:"status_codes"`
	TopGroups       []repository.GroupCount  `json:"top_groups"`
	Window          string                   `json:"window"`
	GroupBy         string                   `json:"group_by"`
	From            time.Time                `json:"from"`
	To              time.Time                `json:"to"`
}

// AnalyticsService aggregates usage facts into windowed rollups. Reads
// only; reports are memoized in Redis for a minute per query shape.
type AnalyticsService struct {
	usage UsageReader
	redis *storage.RedisClient // nil disables memoization
}

func NewAnalyticsService(usage UsageReader, redis *storage.RedisClient) *AnalyticsService {
	return &AnalyticsService{usage: usage, redis: redis}
}

func (s *AnalyticsService) Query(ctx context.Context, q AnalyticsQuery) (*Report, error) {
	window, err := windowDuration(q.Window)
	if err != nil {
		return nil, err
	}

	groupColumn, err := groupColumn(q.GroupBy)
	if err != nil {
		return nil, err
	}

	cacheKey := s.cacheKey(q)
	if cached := s.fromCache(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	to := time.Now().UTC()
	from := to.Add(-window)
	filter := repository.UsageFilter{From: from, To: to, APIKeyID: q.APIKeyID, OwnerID: q.OwnerID}

	report := &Report{Window: q.Window, GroupBy: q.GroupBy, From: from, To: to}

	report.TotalRequests, err = s.usage.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	if report.TotalRequests == 0 {
		s.toCache(ctx, cacheKey, report)
		return report, nil
	}

	report.AvgResponseTime, err = s.usage.AverageResponseTime(ctx, filter)
	if err != nil {
		return nil, err
	}

	report.StatusCodes, err = s.usage.CountByStatus(ctx, filter)
	if err != nil {
		return nil, err
	}

	report.TopGroups, err = s.usage.TopGroups(ctx, filter, groupColumn, 10)
	if err != nil {
		return nil, err
	}

	s.toCache(ctx, cacheKey, report)

	return report, nil
}

// Logs lists raw usage rows for admin screens, newest first.
func (s *AnalyticsService) Logs(ctx context.Context, apiKeyID *uuid.UUID, from, to time.Time, limit, offset int) ([]models.APIUsage, error) {
	if apiKeyID != nil {
		return s.usage.FindByAPIKey(ctx, *apiKeyID, from, to, limit, offset)
	}
	return s.usage.FindByTimeRange(ctx, from, to, limit, offset)
}

// Cleanup deletes usage rows older than the retention period.
func (s *AnalyticsService) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	return s.usage.DeleteBefore(ctx, cutoff)
}

func (s *AnalyticsService) cacheKey(q AnalyticsQuery) string {
	keyID := ""
	if q.APIKeyID != nil {
		keyID = q.APIKeyID.String()
	}
	return fmt.Sprintf("analytics:cache:%s:%s:%s:%s", keyID, q.OwnerID, q.Window, q.GroupBy)
}

func (s *AnalyticsService) fromCache(ctx context.Context, key string) *Report {
	if s.redis == nil {
		return nil
	}

	cached, err := s.redis.Get(ctx, key)
	if err != nil || cached == "" {
		return nil
	}

	var report Report
	if err := json.Unmarshal([]byte(cached), &report); err != nil {
		return nil
	}
	return &report
}

func (s *AnalyticsService) toCache(ctx context.Context, key string, report *Report) {
	if s.redis == nil {
		return
	}

	data, err := json.Marshal(report)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, analyticsCacheTTL); err != nil {
		log.Printf("failed to cache analytics report: %v", err)
	}
}

func windowDuration(window string) (time.Duration, error) {
	switch window {
	case WindowHour:
		return time.Hour, nil
	case WindowDay:
		return 24 * time.Hour, nil
	case WindowWeek:
		return 7 * 24 * time.Hour, nil
	case WindowMonth:
		return 30 * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown window %q", window)
}

func groupColumn(groupBy string) (string, error) {
	switch groupBy {
	case GroupByEndpoint, "":
		return "endpoint", nil
	case GroupByStatus:
		return "status_code", nil
	case GroupByRegion:
		return "region", nil
	}
	return "", fmt.Errorf("unknown group_by %q", groupBy)
}
