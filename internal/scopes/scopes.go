package scopes

import "strings"

// Rule maps a method and path pattern to the scope a key must hold.
// A pattern ending in "/*" matches the path and everything under it;
// otherwise the match is exact.
type Rule struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Scope  string `json:"scope"`
}

// Table is an ordered rule list; the first matching rule wins. Requests
// that match no rule require no scope.
type Table struct {
	rules []Rule
}

func NewTable(rules []Rule) *Table {
	return &Table{rules: rules}
}

// Defaults covers the 209 Works public API surface.
func Defaults() *Table {
	return NewTable([]Rule{
		{Method: "GET", Path: "/api/jobs/*", Scope: "jobs:read"},
		{Method: "GET", Path: "/api/jobs", Scope: "jobs:read"},
		{Method: "POST", Path: "/api/jobs", Scope: "jobs:write"},
		{Method: "PUT", Path: "/api/jobs/*", Scope: "jobs:write"},
		{Method: "DELETE", Path: "/api/jobs/*", Scope: "jobs:delete"},
		{Method: "DELETE", Path: "/api/jobs", Scope: "jobs:delete"},
		{Method: "GET", Path: "/api/applications/*", Scope: "applications:read"},
		{Method: "GET", Path: "/api/applications", Scope: "applications:read"},
		{Method: "POST", Path: "/api/applications", Scope: "applications:write"},
		{Method: "GET", Path: "/api/employers/*", Scope: "employers:read"},
		{Method: "GET", Path: "/api/employers", Scope: "employers:read"},
		{Method: "POST", Path: "/api/webhooks", Scope: "webhooks:write"},
	})
}

// Required returns the scope needed for the given request, or "" when the
// endpoint is unmapped.
func (t *Table) Required(method, path string) string {
	for _, r := range t.rules {
		if !strings.EqualFold(r.Method, method) {
			continue
		}
		if match(r.Path, path) {
			return r.Scope
		}
	}
	return ""
}

func match(pattern, path string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		return path == prefix || strings.HasPrefix(path, prefix+"/")
	}
	return pattern == path
}
