package repository

import (
	"context"

	"github.com/209works/api-platform/internal/models"
	"github.com/209works/api-platform/internal/storage"
)

type AuditRepository struct {
	db *storage.Postgres
}

func NewAuditRepository(db *storage.Postgres) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, entry *models.AuditLog) error {
	return r.db.DB.WithContext(ctx).Create(entry).Error
}

func (r *AuditRepository) List(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	var entries []models.AuditLog
	err := r.db.DB.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error

	return entries, err
}
