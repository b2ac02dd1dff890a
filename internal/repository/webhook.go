package repository

import (
	"context"

	"github.com/209works/api-platform/internal/models"
	"github.com/209works/api-platform/internal/storage"
	"gorm.io/gorm"
)

type WebhookRepository struct {
	db *storage.Postgres
}

func NewWebhookRepository(db *storage.Postgres) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Create(ctx context.Context, endpoint *models.WebhookEndpoint) error {
	return r.db.DB.WithContext(ctx).Create(endpoint).Error
}

func (r *WebhookRepository) FindByID(ctx context.Context, id string) (*models.WebhookEndpoint, error) {
	var endpoint models.WebhookEndpoint
	err := r.db.DB.WithContext(ctx).
		Where("id = ?", id).
		First(&endpoint).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}

	return &endpoint, err
}

func (r *WebhookRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.WebhookEndpoint, error) {
	var endpoints []models.WebhookEndpoint
	err := r.db.DB.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&endpoints).Error

	return endpoints, err
}

func (r *WebhookRepository) Delete(ctx context.Context, id string) error {
	return r.db.DB.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.WebhookEndpoint{}).Error
}
