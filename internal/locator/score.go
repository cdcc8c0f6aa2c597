// File: internal/locator/score.go
package locator

import (
	"regexp"
	"strings"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// calculateLocatorScore computes the strategy-local ranking score: the base
// priority weight for the strategy type, adjusted by element-level signals.
// Deterministic for a fixed elementInfo.
func (g *Generator) calculateLocatorScore(info elementInfo, typ schemas.LocatorType) float64 {
	score := basePriority[typ]

	if typ == schemas.LocatorID && info.id != "" && !isGenericID(info.id) {
		score += 2
	}
	if interactiveTags[info.tag] {
		score += 0.5
		if typ == schemas.LocatorCSS && info.attributes["name"] != "" {
			score += 1
		}
	}
	if typ == schemas.LocatorUniqueClass && len(info.classes) > 0 && allGeneric(info.classes) {
		score -= 1
	}
	return score
}

func allGeneric(classes []string) bool {
	for _, c := range classes {
		if !isGenericClass(c) {
			return false
		}
	}
	return true
}

// ScoreLocatorStability estimates how likely a selector is to survive page
// churn, per a fixed heuristic table. The first matching row sets the base;
// attribute predicates add a small bonus; length and generic classes apply
// multiplicative penalties. Deterministic for fixed inputs.
func (g *Generator) ScoreLocatorStability(selector string, info elementInfo) float64 {
	base := 0.5
	switch {
	case strings.HasPrefix(selector, "#") || strings.Contains(selector, "[@id="):
		base = 0.95
	case containsAny(selector, "data-testid", "data-test", "data-qa", "data-cy", "data-automation-id"):
		base = 0.9
	case strings.Contains(selector, "aria-label"):
		base = 0.85
	case strings.Contains(selector, "[role=") || strings.Contains(selector, "@role"):
		base = 0.8
	case strings.Contains(selector, "normalize-space") || strings.Contains(selector, "contains("):
		base = 0.6
	case strings.Contains(selector, ":nth-child") || strings.Contains(selector, ":nth-of-type"):
		base = 0.4
	case strings.Count(selector, ">") > 3:
		base = 0.3
	}

	// Each bracketed attribute predicate narrows the match a little.
	bonus := 0.05 * float64(strings.Count(selector, "["))
	if bonus > 0.2 {
		bonus = 0.2
	}
	score := base + bonus

	if len(selector) > 100 {
		score *= 0.8
	}
	if selectorHasGenericClass(selector) {
		score *= 0.9
	}

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// classToken matches the .class tokens of a CSS selector.
var classToken = regexp.MustCompile(`\.([A-Za-z0-9_-]+)`)

// selectorHasGenericClass checks the .class tokens of a CSS selector against
// the generic-class denylist.
func selectorHasGenericClass(selector string) bool {
	for _, m := range classToken.FindAllStringSubmatch(selector, -1) {
		if isGenericClass(m[1]) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
