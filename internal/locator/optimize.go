// File: internal/locator/optimize.go
package locator

import (
	"strings"
)

const maxDescendantHops = 4

// OptimizeLocator normalizes and shortens a selector. It is idempotent:
// applying it twice yields the same string as applying it once.
//
// XPath selectors are only trimmed; rewriting inside quoted literals would
// change match semantics.
func OptimizeLocator(selector string) string {
	selector = strings.TrimSpace(selector)
	if selector == "" || isXPath(selector) {
		return selector
	}

	// Whitespace normalization: single spaces, combinators padded.
	selector = strings.Join(strings.Fields(selector), " ")
	selector = strings.ReplaceAll(selector, " >", ">")
	selector = strings.ReplaceAll(selector, "> ", ">")
	selector = strings.ReplaceAll(selector, ">", " > ")

	// Shorthand substitutions.
	selector = strings.ReplaceAll(selector, ":nth-child(1)", ":first-child")
	selector = strings.ReplaceAll(selector, ":nth-last-child(1)", ":last-child")

	return shortenChain(selector)
}

func isXPath(selector string) bool {
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(")
}

// shortenChain reduces an overly long descendant chain to at most
// maxDescendantHops segments, always preserving segments that carry an id or
// a data- attribute, then filling the remaining slots from the tail (the
// segments closest to the target element).
func shortenChain(selector string) string {
	segments := strings.Split(selector, " > ")
	if len(segments) <= maxDescendantHops {
		return selector
	}

	keep := make([]bool, len(segments))
	kept := 0
	for i, seg := range segments {
		if strings.Contains(seg, "#") || strings.Contains(seg, "[data-") {
			keep[i] = true
			kept++
		}
	}
	// The target element itself is always the last segment.
	if !keep[len(segments)-1] {
		keep[len(segments)-1] = true
		kept++
	}
	for i := len(segments) - 2; i >= 0 && kept < maxDescendantHops; i-- {
		if !keep[i] {
			keep[i] = true
			kept++
		}
	}

	out := make([]string, 0, kept)
	for i, seg := range segments {
		if keep[i] {
			out = append(out, seg)
		}
	}
	// Dropped hops mean the survivors are no longer direct children; the
	// descendant combinator keeps the selector truthful.
	return strings.Join(out, " ")
}
