// File: internal/healing/strategy.go
// Description: The healing strategy contract and the shared validation gate.
// Strategies are fallback heuristics that try to re-locate an element whose
// original locator no longer matches any live node. "Not found" is a nil
// result, never an error; errors are reserved for infrastructure failures.
package healing

import (
	"context"
	"fmt"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// DefaultConfidenceThreshold is the minimum score a candidate must clear.
const DefaultConfidenceThreshold = 0.7

// LiveCandidate is one element found by a live-page scan: a unique selector
// plus the features captured at scan time.
type LiveCandidate struct {
	Selector string
	Features schemas.ElementFeatures
}

// GeometryFunc scans the live page for elements matching a CSS selector and
// returns their selectors and features, including bounding boxes. Swappable
// in tests.
type GeometryFunc func(ctx context.Context, cssSelector string) ([]LiveCandidate, error)

// LiveContext bundles everything a strategy may touch during one healing
// attempt: the parsed snapshot for searching, the frame for validation, and
// the geometry scan for position-based work.
type LiveContext struct {
	Frame    schemas.FrameSession
	Snapshot *Snapshot
	Geometry GeometryFunc
}

// HealRequest is the input to every strategy: the element as described by
// the caller plus its last-known feature snapshot.
type HealRequest struct {
	Descriptor schemas.ElementDescriptor
	Features   *schemas.ElementFeatures
	Live       *LiveContext
}

// Strategy is one fallback heuristic. Heal returns (nil, nil) when no
// qualifying candidate exists; an error only for unexpected infrastructure
// failure. Every non-nil result has already passed the validation gate.
type Strategy interface {
	Name() string
	Heal(ctx context.Context, req *HealRequest) (*schemas.HealingResult, error)
}

// Validator is the shared gate every candidate must clear before a strategy
// may return it: the selector must resolve to at least one live node, to
// exactly one if the original required strict matching, and the node must
// currently satisfy the original's visible/enabled requirements.
type Validator struct {
	frame schemas.FrameSession
}

// NewValidator creates the gate over a frame.
func NewValidator(frame schemas.FrameSession) *Validator {
	return &Validator{frame: frame}
}

// Validate checks a candidate selector against the descriptor's runtime
// requirements. A failed check returns (nil, nil); only provider failures
// return an error.
func (v *Validator) Validate(ctx context.Context, selector string, desc schemas.ElementDescriptor) (schemas.LiveHandle, error) {
	h := v.frame.Query(selector)

	count, err := h.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("validation count for %q: %w", selector, err)
	}
	if count == 0 {
		return nil, nil
	}
	if desc.Strict && count != 1 {
		return nil, nil
	}
	if desc.RequireVisible {
		visible, err := h.IsVisible(ctx)
		if err != nil {
			return nil, fmt.Errorf("validation visibility for %q: %w", selector, err)
		}
		if !visible {
			return nil, nil
		}
	}
	if desc.RequireEnabled {
		enabled, err := h.IsEnabled(ctx)
		if err != nil {
			return nil, fmt.Errorf("validation enabled-state for %q: %w", selector, err)
		}
		if !enabled {
			return nil, nil
		}
	}
	return h, nil
}

// semanticGroups maps an element to the set of tags/forms that play the same
// role in a page, so healing can search the whole semantic family rather
// than only the literal tag.
type semanticGroup struct {
	css   string
	xpath string
}

var semanticGroups = map[string]semanticGroup{
	"button": {
		css:   `button, input[type="button"], input[type="submit"], [role="button"]`,
		xpath: `//button | //input[@type="button" or @type="submit"] | //*[@role="button"]`,
	},
	"a": {
		css:   `a, [role="link"]`,
		xpath: `//a | //*[@role="link"]`,
	},
	"input": {
		css:   `input, textarea, select`,
		xpath: `//input | //textarea | //select`,
	},
	"select": {
		css:   `select, [role="listbox"], [role="combobox"]`,
		xpath: `//select | //*[@role="listbox"] | //*[@role="combobox"]`,
	},
}

// groupFor returns the semantic search group for a feature snapshot,
// defaulting to the literal tag.
func groupFor(f *schemas.ElementFeatures) semanticGroup {
	tag := f.Structural.TagName
	if g, ok := semanticGroups[tag]; ok {
		return g
	}
	return semanticGroup{css: tag, xpath: "//" + tag}
}
