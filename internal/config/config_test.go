package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
	assert.Equal(t, 24, cfg.Auth.ExpiryHours)
	assert.Equal(t, 1000, cfg.Usage.BufferSize)
	assert.Equal(t, 90, cfg.Usage.RetentionDays)
	assert.False(t, cfg.RateLimit.FailOpen)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `{"server":{"port":"9000"},"database":{"dsn":"from-file"}}`)

	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("PORT", "9999")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://env", cfg.Database.DSN)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "9999", cfg.Server.Port)
}

func TestJWTSecretNeverReadFromFile(t *testing.T) {
	path := writeConfig(t, `{"auth":{"jwt_secret":"leaked","expiry_hours":48}}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Empty(t, cfg.Auth.JWTSecret)
	assert.Equal(t, 48, cfg.Auth.ExpiryHours)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadBadJSON(t *testing.T) {
	path := writeConfig(t, `{"server":`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestScopeTableOverride(t *testing.T) {
	path := writeConfig(t, `{"scope_rules":[{"method":"GET","path":"/api/custom","scope":"custom:read"}]}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	table := cfg.ScopeTable()
	assert.Equal(t, "custom:read", table.Required("GET", "/api/custom"))
	// Built-in rules are replaced, not merged.
	assert.Empty(t, table.Required("GET", "/api/jobs"))
}
