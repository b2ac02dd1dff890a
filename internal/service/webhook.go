package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/209works/api-platform/internal/keys"
	"github.com/209works/api-platform/internal/models"
)

// Default retry policy stored on new endpoints. Configuration for a
// dispatcher that lives outside this service.
const (
	defaultWebhookRetries    = 3
	defaultBackoffMultiplier = 2.0
	defaultBackoffCapSeconds = 300
)

const webhookSecretPrefix = "whsec_"

type WebhookStore interface {
	Create(ctx context.Context, endpoint *models.WebhookEndpoint) error
	FindByID(ctx context.Context, id string) (*models.WebhookEndpoint, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.WebhookEndpoint, error)
	Delete(ctx context.Context, id string) error
}

type WebhookService struct {
	store WebhookStore
}

func NewWebhookService(store WebhookStore) *WebhookService {
	return &WebhookService{store: store}
}

// Register stores a new outbound endpoint. A signing secret is generated
// when the caller does not supply one.
func (s *WebhookService) Register(ctx context.Context, ownerID, rawURL string, events []string, secret string) (*models.WebhookEndpoint, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid webhook URL %q", rawURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported webhook scheme %q", parsed.Scheme)
	}

	if len(events) == 0 {
		return nil, fmt.Errorf("at least one event is required")
	}

	if secret == "" {
		secret, err = keys.GenerateSecret(webhookSecretPrefix)
		if err != nil {
			return nil, err
		}
	}

	endpoint := models.WebhookEndpoint{
		OwnerID:           ownerID,
		URL:               rawURL,
		Secret:            secret,
		MaxRetries:        defaultWebhookRetries,
		BackoffMultiplier: defaultBackoffMultiplier,
		BackoffCapSeconds: defaultBackoffCapSeconds,
		Active:            true,
	}
	endpoint.SetEvents(events)

	if err := s.store.Create(ctx, &endpoint); err != nil {
		return nil, fmt.Errorf("failed to register webhook: %w", err)
	}

	return &endpoint, nil
}

func (s *WebhookService) Get(ctx context.Context, id string) (*models.WebhookEndpoint, error) {
	return s.store.FindByID(ctx, id)
}

func (s *WebhookService) ListByOwner(ctx context.Context, ownerID string) ([]models.WebhookEndpoint, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

func (s *WebhookService) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
