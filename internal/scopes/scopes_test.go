package scopes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultsRequired(t *testing.T) {
	table := Defaults()

	tests := []struct {
		name   string
		method string
		path   string
		want   string
	}{
		{"jobs list read", "GET", "/api/jobs", "jobs:read"},
		{"jobs detail read", "GET", "/api/jobs/123", "jobs:read"},
		{"jobs create", "POST", "/api/jobs", "jobs:write"},
		{"jobs update", "PUT", "/api/jobs/123", "jobs:write"},
		{"jobs delete", "DELETE", "/api/jobs/123", "jobs:delete"},
		{"applications read", "GET", "/api/applications", "applications:read"},
		{"applications create", "POST", "/api/applications", "applications:write"},
		{"webhooks create", "POST", "/api/webhooks", "webhooks:write"},
		{"unmapped endpoint", "GET", "/api/search", ""},
		{"unmapped method", "PATCH", "/api/jobs", ""},
		{"method is case insensitive", "get", "/api/jobs", "jobs:read"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Required(tt.method, tt.path))
		})
	}
}

func TestFirstMatchWins(t *testing.T) {
	table := NewTable([]Rule{
		{Method: "GET", Path: "/api/jobs/featured", Scope: "jobs:featured"},
		{Method: "GET", Path: "/api/jobs/*", Scope: "jobs:read"},
	})

	assert.Equal(t, "jobs:featured", table.Required("GET", "/api/jobs/featured"))
	assert.Equal(t, "jobs:read", table.Required("GET", "/api/jobs/123"))
}

func TestWildcardDoesNotMatchSiblings(t *testing.T) {
	table := NewTable([]Rule{
		{Method: "GET", Path: "/api/jobs/*", Scope: "jobs:read"},
	})

	assert.Equal(t, "jobs:read", table.Required("GET", "/api/jobs"))
	assert.Equal(t, "jobs:read", table.Required("GET", "/api/jobs/1/applicants"))
	assert.Equal(t, "", table.Required("GET", "/api/jobseekers"))
}
