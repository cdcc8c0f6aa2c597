// File: internal/netintercept/pattern.go
package netintercept

import (
	"strings"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// patternKey derives the registry key for a pattern. Two registrations with
// the same key address the same traffic slice, so the later one replaces the
// earlier.
func patternKey(p schemas.URLPattern) string {
	if p.Regex != nil {
		return "re:" + p.Regex.String()
	}
	if p.URL != "" {
		return "url:" + p.URL
	}
	return "mt:" + strings.Join(p.Methods, ",") + ":" + strings.Join(p.ResourceTypes, ",")
}

// matches reports whether a paused request falls under the pattern. URL
// matching is substring for plain patterns and full regexp otherwise; method
// and resource-type lists are conjunctive filters.
func matches(p schemas.URLPattern, req *schemas.PausedRequest) bool {
	if p.Regex != nil {
		if !p.Regex.MatchString(req.URL) {
			return false
		}
	} else if p.URL != "" {
		if !strings.Contains(req.URL, p.URL) {
			return false
		}
	}
	if len(p.Methods) > 0 && !containsFold(p.Methods, req.Method) {
		return false
	}
	if len(p.ResourceTypes) > 0 && !containsFold(p.ResourceTypes, req.ResourceType) {
		return false
	}
	return true
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
