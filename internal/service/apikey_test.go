package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/209works/api-platform/internal/keys"
	"github.com/209works/api-platform/internal/models"
	"github.com/209works/api-platform/internal/ratelimit"
	"github.com/209works/api-platform/internal/scopes"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeKeyStore struct {
	mu   sync.Mutex
	byID map[string]*models.APIKey
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{byID: make(map[string]*models.APIKey)}
}

func (s *fakeKeyStore) Create(ctx context.Context, apiKey *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if apiKey.ID == uuid.Nil {
		apiKey.ID = uuid.New()
	}
	apiKey.CreatedAt = time.Now()
	copied := *apiKey
	s.byID[apiKey.ID.String()] = &copied
	return nil
}

func (s *fakeKeyStore) FindByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.byID {
		if k.KeyHash == hash {
			copied := *k
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeKeyStore) FindByID(ctx context.Context, id string) (*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	copied := *k
	return &copied, nil
}

func (s *fakeKeyStore) List(ctx context.Context) ([]models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.APIKey
	for _, k := range s.byID {
		out = append(out, *k)
	}
	return out, nil
}

func (s *fakeKeyStore) ListByOwner(ctx context.Context, ownerID string) ([]models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.APIKey
	for _, k := range s.byID {
		if k.OwnerID == ownerID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (s *fakeKeyStore) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.byID[id]
	if !ok {
		return nil
	}
	if status, ok := updates["status"].(string); ok {
		k.Status = status
	}
	if tier, ok := updates["tier"].(string); ok {
		k.Tier = tier
	}
	if v, ok := updates["requests_per_minute"].(int); ok {
		k.RequestsPerMinute = v
	}
	return nil
}

func (s *fakeKeyStore) UpdateLastUsed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if k, ok := s.byID[id.String()]; ok {
		now := time.Now()
		k.LastUsedAt = &now
	}
	return nil
}

type fakeTierStore struct {
	tiers map[string]models.RateLimitTier
}

func newFakeTierStore() *fakeTierStore {
	tiers := make(map[string]models.RateLimitTier)
	for _, tier := range models.DefaultTiers() {
		tiers[tier.Name] = tier
	}
	return &fakeTierStore{tiers: tiers}
}

func (s *fakeTierStore) FindByName(ctx context.Context, name string) (*models.RateLimitTier, error) {
	tier, ok := s.tiers[name]
	if !ok {
		return nil, nil
	}
	return &tier, nil
}

type fakeAuditStore struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (s *fakeAuditStore) Create(ctx context.Context, entry *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

func newTestService(tierStore TierStore) (*APIKeyService, *fakeKeyStore, *fakeAuditStore) {
	keyStore := newFakeKeyStore()
	auditStore := &fakeAuditStore{}
	svc := NewAPIKeyService(
		keyStore, tierStore, auditStore,
		keys.SHA256Hasher{}, scopes.Defaults(),
		ratelimit.NewTierLimiter(ratelimit.NewMemoryStore(), false),
		nil,
	)
	return svc, keyStore, auditStore
}

func TestIssueSnapshotsTierLimits(t *testing.T) {
	svc, _, auditStore := newTestService(newFakeTierStore())
	ctx := context.Background()

	rawKey, apiKey, err := svc.Issue(ctx, "emp-1", "ats integration", []string{"jobs:read"}, models.TierBasic, 0)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rawKey, keys.Prefix))
	assert.Equal(t, 300, apiKey.RequestsPerMinute)
	assert.Equal(t, 10_000, apiKey.RequestsPerHour)
	assert.Equal(t, 100_000, apiKey.RequestsPerDay)
	assert.Equal(t, models.KeyStatusActive, apiKey.Status)
	assert.Nil(t, apiKey.ExpiresAt)
	assert.Equal(t, []string{"jobs:read"}, apiKey.ScopeSet())

	// Only the hash is stored.
	hasher := keys.SHA256Hasher{}
	assert.Equal(t, hasher.Hash(keys.Secret(rawKey)), apiKey.KeyHash)
	assert.NotContains(t, apiKey.KeyHash, rawKey)

	auditStore.mu.Lock()
	defer auditStore.mu.Unlock()
	require.Len(t, auditStore.entries, 1)
	assert.Equal(t, models.AuditActionKeyIssued, auditStore.entries[0].Action)
	assert.Equal(t, "emp-1", auditStore.entries[0].Actor)
}

func TestIssueUnknownTier(t *testing.T) {
	svc, _, _ := newTestService(newFakeTierStore())

	_, _, err := svc.Issue(context.Background(), "emp-1", "bad", nil, "platinum", 0)
	require.Error(t, err)
}

func TestIssueIsNotIdempotent(t *testing.T) {
	svc, _, _ := newTestService(newFakeTierStore())
	ctx := context.Background()

	raw1, key1, err := svc.Issue(ctx, "emp-1", "same", []string{"jobs:read"}, models.TierFree, 0)
	require.NoError(t, err)
	raw2, key2, err := svc.Issue(ctx, "emp-1", "same", []string{"jobs:read"}, models.TierFree, 0)
	require.NoError(t, err)

	assert.NotEqual(t, raw1, raw2)
	assert.NotEqual(t, key1.ID, key2.ID)
}

func TestValidateHappyPath(t *testing.T) {
	svc, _, _ := newTestService(newFakeTierStore())
	ctx := context.Background()

	rawKey, _, err := svc.Issue(ctx, "emp-1", "reader", []string{"jobs:read"}, models.TierBasic, 0)
	require.NoError(t, err)

	result := svc.Validate(ctx, rawKey, "/api/jobs", "GET")
	assert.True(t, result.Valid)
	require.NotNil(t, result.Key)
	require.NotNil(t, result.RateLimit)
	assert.Equal(t, 300, result.RateLimit.Limit)
}

func TestValidateUnknownKey(t *testing.T) {
	svc, _, _ := newTestService(newFakeTierStore())

	result := svc.Validate(context.Background(), "209w_doesnotexist", "/api/jobs", "GET")
	assert.False(t, result.Valid)
	assert.Equal(t, ErrCodeInvalidKey, result.ErrorCode)
}

func TestValidateInactiveBeatsExpiry(t *testing.T) {
	svc, keyStore, _ := newTestService(newFakeTierStore())
	ctx := context.Background()

	// Expired and suspended at once: inactive wins.
	rawKey, apiKey, err := svc.Issue(ctx, "emp-1", "dead", []string{"jobs:read"}, models.TierFree, -1)
	require.NoError(t, err)

	require.NoError(t, keyStore.Update(ctx, apiKey.ID.String(), map[string]interface{}{
		"status": models.KeyStatusSuspended,
	}))

	result := svc.Validate(ctx, rawKey, "/api/jobs", "GET")
	assert.False(t, result.Valid)
	assert.Equal(t, ErrCodeInactiveKey, result.ErrorCode)
}

func TestValidateExpiredKey(t *testing.T) {
	svc, _, _ := newTestService(newFakeTierStore())
	ctx := context.Background()

	rawKey, _, err := svc.Issue(ctx, "emp-1", "expired", []string{"jobs:read"}, models.TierFree, -1)
	require.NoError(t, err)

	result := svc.Validate(ctx, rawKey, "/api/jobs", "GET")
	assert.False(t, result.Valid)
	assert.Equal(t, ErrCodeExpiredKey, result.ErrorCode)
}

func TestValidateScopeEnforcement(t *testing.T) {
	svc, _, _ := newTestService(newFakeTierStore())
	ctx := context.Background()

	rawKey, _, err := svc.Issue(ctx, "emp-1", "reader", []string{"jobs:read"}, models.TierBasic, 0)
	require.NoError(t, err)

	result := svc.Validate(ctx, rawKey, "/api/jobs", "GET")
	assert.True(t, result.Valid)

	result = svc.Validate(ctx, rawKey, "/api/jobs", "POST")
	assert.False(t, result.Valid)
	assert.Equal(t, ErrCodeInsufficientScope, result.ErrorCode)

	// Endpoints outside the scope table need no scope.
	result = svc.Validate(ctx, rawKey, "/api/search", "GET")
	assert.True(t, result.Valid)
}

type tinyTierStore struct{}

func (tinyTierStore) FindByName(ctx context.Context, name string) (*models.RateLimitTier, error) {
	return &models.RateLimitTier{Name: name, RequestsPerMinute: 2, RequestsPerHour: 100, RequestsPerDay: 100}, nil
}

func TestValidateRateLimitExceeded(t *testing.T) {
	svc, _, _ := newTestService(tinyTierStore{})
	ctx := context.Background()

	rawKey, _, err := svc.Issue(ctx, "emp-1", "tiny", []string{"jobs:read"}, models.TierFree, 0)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		result := svc.Validate(ctx, rawKey, "/api/jobs", "GET")
		require.True(t, result.Valid, "request %d should pass", i+1)
	}

	result := svc.Validate(ctx, rawKey, "/api/jobs", "GET")
	assert.False(t, result.Valid)
	assert.Equal(t, ErrCodeRateLimitExceeded, result.ErrorCode)
	require.NotNil(t, result.RateLimit)
	assert.Equal(t, 2, result.RateLimit.Limit)
	assert.Equal(t, 0, result.RateLimit.Remaining)
}

func TestRevokeSoftDeletes(t *testing.T) {
	svc, keyStore, _ := newTestService(newFakeTierStore())
	ctx := context.Background()

	rawKey, apiKey, err := svc.Issue(ctx, "emp-1", "doomed", []string{"jobs:read"}, models.TierFree, 0)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, "admin@209.works", apiKey.ID.String()))

	// The row survives with revoked status.
	stored, err := keyStore.FindByID(ctx, apiKey.ID.String())
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.KeyStatusRevoked, stored.Status)

	result := svc.Validate(ctx, rawKey, "/api/jobs", "GET")
	assert.False(t, result.Valid)
	assert.Equal(t, ErrCodeInactiveKey, result.ErrorCode)
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newTestService(newFakeTierStore())
	ctx := context.Background()

	_, apiKey, err := svc.Issue(ctx, "emp-1", "key", []string{"jobs:read"}, models.TierFree, 0)
	require.NoError(t, err)

	bad := "paused"
	err = svc.Update(ctx, "admin@209.works", apiKey.ID.String(), &bad, nil)
	require.Error(t, err)
}
