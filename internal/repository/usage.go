package repository

import (
	"context"
	"time"

	"github.com/209works/api-platform/internal/models"
	"github.com/209works/api-platform/internal/storage"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UsageRepository struct {
	db *storage.Postgres
}

func NewUsageRepository(db *storage.Postgres) *UsageRepository {
	return &UsageRepository{db: db}
}

// Inserts one usage fact
func (r *UsageRepository) Create(ctx context.Context, usage *models.APIUsage) error {
	return r.db.DB.WithContext(ctx).Create(usage).Error
}

// Inserts multiple usage facts in one statement
func (r *UsageRepository) CreateBatch(ctx context.Context, usages []*models.APIUsage) error {
	if len(usages) == 0 {
		return nil
	}

	return r.db.DB.WithContext(ctx).Create(&usages).Error
}

// Retrieves usage rows within a time range
func (r *UsageRepository) FindByTimeRange(ctx context.Context, from, to time.Time, limit, offset int) ([]models.APIUsage, error) {
	var usages []models.APIUsage

	err := r.db.DB.WithContext(ctx).
		Where("timestamp BETWEEN ? AND ?", from, to).
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&usages).Error

	return usages, err
}

// Retrieves usage rows for a specific API key
func (r *UsageRepository) FindByAPIKey(ctx context.Context, apiKeyID uuid.UUID, from, to time.Time, limit, offset int) ([]models.APIUsage, error) {
	var usages []models.APIUsage
	err := r.db.DB.WithContext(ctx).
		Where("api_key_id = ? AND timestamp BETWEEN ? AND ?", apiKeyID, from, to).
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&usages).Error

	return usages, err
}

// Counts usage rows in a time range, optionally filtered by key or owner
func (r *UsageRepository) Count(ctx context.Context, filter UsageFilter) (int64, error) {
	var count int64
	err := filter.apply(r.db.DB.WithContext(ctx).Model(&models.APIUsage{})).
		Count(&count).Error

	return count, err
}

// Calculates average response time over the filtered rows
func (r *UsageRepository) AverageResponseTime(ctx context.Context, filter UsageFilter) (float64, error) {
	var avg *float64

	err := filter.apply(r.db.DB.WithContext(ctx).Model(&models.APIUsage{})).
		Select("AVG(response_time_ms)").
		Scan(&avg).Error

	if err != nil || avg == nil {
		return 0, err
	}

	return *avg, nil
}

type GroupCount struct {
	Group string `json:"group"`
	Count int64  `json:"count"`
}

type StatusCount struct {
	StatusCode int   `json:"status_code"`
	Count      int64 `json:"count"`
}

// Returns the status-code histogram over the filtered rows
func (r *UsageRepository) CountByStatus(ctx context.Context, filter UsageFilter) ([]StatusCount, error) {
	var results []StatusCount

	err := filter.apply(r.db.DB.WithContext(ctx).Model(&models.APIUsage{})).
		Select("status_code, COUNT(*) as count").
		Group("status_code").
		Order("count DESC").
		Scan(&results).Error

	return results, err
}

// Returns the top groups by request count for the given column
func (r *UsageRepository) TopGroups(ctx context.Context, filter UsageFilter, column string, limit int) ([]GroupCount, error) {
	var results []GroupCount

	err := filter.apply(r.db.DB.WithContext(ctx).Model(&models.APIUsage{})).
		Select(column + " as \"group\", COUNT(*) as count").
		Group(column).
		Order("count DESC").
		Limit(limit).
		Scan(&results).Error

	return results, err
}

// Deletes usage rows older than the specified time
func (r *UsageRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.DB.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&models.APIUsage{})

	return result.RowsAffected, result.Error
}

// UsageFilter restricts aggregate queries to a time range and optionally
// one key or one owner's keys.
type UsageFilter struct {
	From     time.Time
	To       time.Time
	APIKeyID *uuid.UUID
	OwnerID  string
}

func (f UsageFilter) apply(tx *gorm.DB) *gorm.DB {
	tx = tx.Where("timestamp BETWEEN ? AND ?", f.From, f.To)
	if f.APIKeyID != nil {
		tx = tx.Where("api_key_id = ?", *f.APIKeyID)
	}
	if f.OwnerID != "" {
		tx = tx.Where("api_key_id IN (?)",
			tx.Session(&gorm.Session{NewDB: true}).
				Model(&models.APIKey{}).
				Select("id").
				Where("owner_id = ?", f.OwnerID))
	}
	return tx
}
