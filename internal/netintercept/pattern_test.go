// File: internal/netintercept/pattern_test.go
package netintercept

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/remedy/api/schemas"
)

func TestPatternKey(t *testing.T) {
	testCases := []struct {
		name     string
		pattern  schemas.URLPattern
		expected string
	}{
		{"regex wins over url", schemas.URLPattern{Regex: regexp.MustCompile(`/api/.*`), URL: "/api/"}, "re:/api/.*"},
		{"url substring", schemas.URLPattern{URL: "/api/users"}, "url:/api/users"},
		{"method and type only", schemas.URLPattern{Methods: []string{"POST"}, ResourceTypes: []string{"xhr", "fetch"}}, "mt:POST:xhr,fetch"},
		{"empty", schemas.URLPattern{}, "mt::"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, patternKey(tc.pattern))
		})
	}
}

func TestMatches(t *testing.T) {
	req := &schemas.PausedRequest{
		URL:          "https://api.example.com/v1/users?page=2",
		Method:       "POST",
		ResourceType: "xhr",
	}

	testCases := []struct {
		name    string
		pattern schemas.URLPattern
		matched bool
	}{
		{"url substring hit", schemas.URLPattern{URL: "/v1/users"}, true},
		{"url substring miss", schemas.URLPattern{URL: "/v1/orders"}, false},
		{"regex hit", schemas.URLPattern{Regex: regexp.MustCompile(`/v1/users\b`)}, true},
		{"regex miss", schemas.URLPattern{Regex: regexp.MustCompile(`^http://`)}, false},
		{"method filter case-insensitive", schemas.URLPattern{URL: "/v1/", Methods: []string{"post"}}, true},
		{"method filter miss", schemas.URLPattern{URL: "/v1/", Methods: []string{"DELETE"}}, false},
		{"resource type filter", schemas.URLPattern{ResourceTypes: []string{"XHR"}}, true},
		{"conjunctive filters must all pass", schemas.URLPattern{URL: "/v1/users", Methods: []string{"POST"}, ResourceTypes: []string{"document"}}, false},
		{"empty pattern matches everything", schemas.URLPattern{}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.matched, matches(tc.pattern, req))
		})
	}
}
