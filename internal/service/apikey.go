package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/209works/api-platform/internal/keys"
	"github.com/209works/api-platform/internal/models"
	"github.com/209works/api-platform/internal/ratelimit"
	"github.com/209works/api-platform/internal/scopes"
	"github.com/209works/api-platform/internal/storage"
	"github.com/google/uuid"
)

// Error codes returned to HTTP middleware. Policy rejections are results,
// not Go errors, so callers map them straight to status codes.
const (
	ErrCodeInvalidKey        = "invalid_key"
	ErrCodeInactiveKey       = "inactive_key"
	ErrCodeExpiredKey        = "expired_key"
	ErrCodeInsufficientScope = "insufficient_scope"
	ErrCodeRateLimitExceeded = "rate_limit_exceeded"
	ErrCodeValidationFailed  = "validation_failed"
)

// KeyStore is the persistence surface the key service needs. The gorm
// repository satisfies it; tests use an in-memory fake.
type KeyStore interface {
	Create(ctx context.Context, apiKey *models.APIKey) error
	FindByHash(ctx context.Context, hash string) (*models.APIKey, error)
	FindByID(ctx context.Context, id string) (*models.APIKey, error)
	List(ctx context.Context) ([]models.APIKey, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.APIKey, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
	UpdateLastUsed(ctx context.Context, id uuid.UUID) error
}

type TierStore interface {
	FindByName(ctx context.Context, name string) (*models.RateLimitTier, error)
}

type AuditStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}

type ValidationResult struct {
	Valid     bool                `json:"valid"`
	Key       *models.APIKey      `json:"key,omitempty"`
	ErrorCode string              `json:"error,omitempty"`
	Message   string              `json:"message,omitempty"`
	RateLimit *ratelimit.Decision `json:"rate_limit,omitempty"`
}

type APIKeyService struct {
	keyStore   KeyStore
	tierStore  TierStore
	auditStore AuditStore
	hasher     keys.Hasher
	scopeTable *scopes.Table
	limiter    *ratelimit.TierLimiter
	redis      *storage.RedisClient // nil disables the lookup cache
}

func NewAPIKeyService(keyStore KeyStore, tierStore TierStore, auditStore AuditStore, hasher keys.Hasher, scopeTable *scopes.Table, limiter *ratelimit.TierLimiter, redis *storage.RedisClient) *APIKeyService {
	return &APIKeyService{
		keyStore:   keyStore,
		tierStore:  tierStore,
		auditStore: auditStore,
		hasher:     hasher,
		scopeTable: scopeTable,
		limiter:    limiter,
		redis:      redis,
	}
}

// Issue creates a new key and returns the plaintext exactly once. The
// tier's current limits are copied onto the key row; the snapshot never
// tracks later tier-table edits.
func (s *APIKeyService) Issue(ctx context.Context, ownerID, name string, scopeSet []string, tier string, expiresInDays int) (string, *models.APIKey, error) {
	if !models.ValidTier(tier) {
		return "", nil, fmt.Errorf("unknown tier %q", tier)
	}

	tierConfig, err := s.tierStore.FindByName(ctx, tier)
	if err != nil {
		return "", nil, fmt.Errorf("failed to load tier %q: %w", tier, err)
	}
	if tierConfig == nil {
		return "", nil, fmt.Errorf("tier %q is not configured", tier)
	}

	rawKey, err := keys.Generate()
	if err != nil {
		return "", nil, err
	}

	apiKey := models.APIKey{
		KeyHash:           s.hasher.Hash(keys.Secret(rawKey)),
		Name:              name,
		OwnerID:           ownerID,
		Tier:              tier,
		RequestsPerMinute: tierConfig.RequestsPerMinute,
		RequestsPerHour:   tierConfig.RequestsPerHour,
		RequestsPerDay:    tierConfig.RequestsPerDay,
		BurstLimit:        tierConfig.BurstLimit,
		ConcurrentLimit:   tierConfig.ConcurrentLimit,
		Status:            models.KeyStatusActive,
	}
	apiKey.SetScopes(scopeSet)

	if expiresInDays != 0 {
		expiry := time.Now().AddDate(0, 0, expiresInDays)
		apiKey.ExpiresAt = &expiry
	}

	if err := s.keyStore.Create(ctx, &apiKey); err != nil {
		return "", nil, fmt.Errorf("failed to create API key: %w", err)
	}

	s.writeAudit(ctx, ownerID, models.AuditActionKeyIssued, apiKey.ID.String(), map[string]interface{}{
		"scopes": scopeSet,
		"tier":   tier,
	})

	// Plaintext is returned here and never stored.
	return rawKey, &apiKey, nil
}

// Validate runs the full decision pipeline for one inbound request:
// lookup, status, expiry, scope, rate limit. Its only side effect is the
// async last-used timestamp update.
func (s *APIKeyService) Validate(ctx context.Context, rawKey, endpoint, method string) ValidationResult {
	hash := s.hasher.Hash(keys.Secret(rawKey))

	apiKey, err := s.lookup(ctx, hash)
	if err != nil {
		log.Printf("api key lookup failed: %v", err)
		return ValidationResult{ErrorCode: ErrCodeValidationFailed, Message: "key lookup failed"}
	}
	if apiKey == nil {
		return ValidationResult{ErrorCode: ErrCodeInvalidKey, Message: "API key not found"}
	}

	if apiKey.Status != models.KeyStatusActive {
		return ValidationResult{ErrorCode: ErrCodeInactiveKey, Message: "API key is " + apiKey.Status}
	}

	if apiKey.IsExpired(time.Now()) {
		return ValidationResult{ErrorCode: ErrCodeExpiredKey, Message: "API key has expired"}
	}

	if required := s.scopeTable.Required(method, endpoint); required != "" && !apiKey.HasScope(required) {
		return ValidationResult{
			ErrorCode: ErrCodeInsufficientScope,
			Message:   fmt.Sprintf("scope %q required for %s %s", required, method, endpoint),
		}
	}

	decision, err := s.limiter.Check(ctx, apiKey.ID.String(), ratelimit.Limits{
		PerMinute: apiKey.RequestsPerMinute,
		PerHour:   apiKey.RequestsPerHour,
		PerDay:    apiKey.RequestsPerDay,
	})
	if err != nil && !decision.Allowed {
		return ValidationResult{ErrorCode: ErrCodeValidationFailed, Message: "rate limit check failed", RateLimit: &decision}
	}
	if !decision.Allowed {
		return ValidationResult{ErrorCode: ErrCodeRateLimitExceeded, Message: "rate limit exceeded", RateLimit: &decision}
	}

	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.keyStore.UpdateLastUsed(bg, apiKey.ID); err != nil {
			log.Printf("failed to update last_used_at for key %s: %v", apiKey.ID, err)
		}
	}()

	return ValidationResult{Valid: true, Key: apiKey, RateLimit: &decision}
}

func (s *APIKeyService) Get(ctx context.Context, id string) (*models.APIKey, error) {
	return s.keyStore.FindByID(ctx, id)
}

func (s *APIKeyService) List(ctx context.Context) ([]models.APIKey, error) {
	return s.keyStore.List(ctx)
}

func (s *APIKeyService) ListByOwner(ctx context.Context, ownerID string) ([]models.APIKey, error) {
	return s.keyStore.ListByOwner(ctx, ownerID)
}

// Update changes a key's status or tier. A tier change re-snapshots the
// limits from the current tier table.
func (s *APIKeyService) Update(ctx context.Context, actor, id string, status, tier *string) error {
	updates := make(map[string]interface{})

	if status != nil {
		switch *status {
		case models.KeyStatusActive, models.KeyStatusSuspended, models.KeyStatusRevoked:
		default:
			return fmt.Errorf("unknown status %q", *status)
		}
		updates["status"] = *status
	}

	if tier != nil {
		tierConfig, err := s.tierStore.FindByName(ctx, *tier)
		if err != nil {
			return err
		}
		if tierConfig == nil {
			return fmt.Errorf("unknown tier %q", *tier)
		}
		updates["tier"] = *tier
		updates["requests_per_minute"] = tierConfig.RequestsPerMinute
		updates["requests_per_hour"] = tierConfig.RequestsPerHour
		updates["requests_per_day"] = tierConfig.RequestsPerDay
		updates["burst_limit"] = tierConfig.BurstLimit
		updates["concurrent_limit"] = tierConfig.ConcurrentLimit
	}

	if len(updates) == 0 {
		return fmt.Errorf("no fields to update")
	}

	if err := s.keyStore.Update(ctx, id, updates); err != nil {
		return err
	}

	s.invalidateCache(ctx, id)

	action := models.AuditActionKeyUpdated
	if status != nil && *status == models.KeyStatusRevoked {
		action = models.AuditActionKeyRevoked
	}
	s.writeAudit(ctx, actor, action, id, updates)

	return nil
}

// Revoke soft-deletes: the row stays, the status flips.
func (s *APIKeyService) Revoke(ctx context.Context, actor, id string) error {
	status := models.KeyStatusRevoked
	return s.Update(ctx, actor, id, &status, nil)
}

// lookup resolves a key by hash, trying the Redis cache before the
// database. Cached entries go stale for at most five minutes; update and
// revoke paths invalidate eagerly.
func (s *APIKeyService) lookup(ctx context.Context, hash string) (*models.APIKey, error) {
	cacheKey := "apikey:cache:" + hash

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey); err == nil && cached != "" {
			var apiKey models.APIKey
			if err := json.Unmarshal([]byte(cached), &apiKey); err == nil {
				return &apiKey, nil
			}
		}
	}

	apiKey, err := s.keyStore.FindByHash(ctx, hash)
	if err != nil || apiKey == nil {
		return apiKey, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(apiKey); err == nil {
			s.redis.Set(ctx, cacheKey, data, 5*time.Minute)
		}
	}

	return apiKey, nil
}

func (s *APIKeyService) invalidateCache(ctx context.Context, id string) {
	if s.redis == nil {
		return
	}

	apiKey, err := s.keyStore.FindByID(ctx, id)
	if err != nil || apiKey == nil {
		return
	}

	s.redis.Del(ctx, "apikey:cache:"+apiKey.KeyHash)
}

func (s *APIKeyService) writeAudit(ctx context.Context, actor, action, resource string, detail map[string]interface{}) {
	if s.auditStore == nil {
		return
	}

	detailJSON, _ := json.Marshal(detail)
	entry := &models.AuditLog{
		Actor:    actor,
		Action:   action,
		Resource: resource,
		Detail:   string(detailJSON),
	}

	if err := s.auditStore.Create(ctx, entry); err != nil {
		// Audit loss is logged, never surfaced to the caller.
		log.Printf("failed to write audit entry %s for %s: %v", action, resource, err)
	}
}
