package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/209works/api-platform/internal/scopes"
)

type Config struct {
	Server    ServerConfig   `json:"server"`
	Database  DatabaseConfig `json:"database"`
	Redis     RedisConfig    `json:"redis"`
	Auth      AuthConfig     `json:"auth"`
	RateLimit RateLimit      `json:"rate_limit"`
	Usage     UsageConfig    `json:"usage"`
	Upstream  UpstreamConfig `json:"upstream"`

	// ScopeRules overrides the built-in scope table when set.
	ScopeRules []scopes.Rule `json:"scope_rules,omitempty"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type AuthConfig struct {
	JWTSecret   string `json:"-"` // env only, never in the file
	ExpiryHours int    `json:"expiry_hours"`
}

type RateLimit struct {
	// FailOpen decides what happens when the counter store is down:
	// true lets requests through, false rejects them. Defaults closed.
	FailOpen bool `json:"fail_open"`
}

type UsageConfig struct {
	BufferSize    int `json:"buffer_size"`
	RetentionDays int `json:"retention_days"`
}

// UpstreamConfig points at the job-board API that validated requests are
// forwarded to. Empty URL disables the data plane (control plane only).
type UpstreamConfig struct {
	URL            string `json:"url"`
	MaxFailures    int    `json:"max_failures"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func Load(path string) (*Config, error) {
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	config.applyDefaults()
	config.applyEnv()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == "" {
		c.Redis.Port = "6379"
	}
	if c.Auth.ExpiryHours <= 0 {
		c.Auth.ExpiryHours = 24
	}
	if c.Usage.BufferSize <= 0 {
		c.Usage.BufferSize = 1000
	}
	if c.Usage.RetentionDays <= 0 {
		c.Usage.RetentionDays = 90
	}
}

// Secrets and connection strings come from the environment so the config
// file can be committed.
func (c *Config) applyEnv() {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Database.DSN = dsn
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
}

func (c *RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

// ScopeTable builds the scope rule table from config, falling back to the
// built-in 209 Works API rules.
func (c *Config) ScopeTable() *scopes.Table {
	if len(c.ScopeRules) > 0 {
		return scopes.NewTable(c.ScopeRules)
	}
	return scopes.Defaults()
}
