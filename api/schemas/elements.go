// File: api/schemas/elements.go
package schemas

import "math"

// -- Element Description and Feature Schemas --

// LocatorType enumerates the selector families the framework understands, both
// for declared locators on an ElementDescriptor and for generated candidates.
type LocatorType string

const (
	LocatorID          LocatorType = "id"
	LocatorTestID      LocatorType = "testId"
	LocatorAriaLabel   LocatorType = "ariaLabel"
	LocatorUniqueClass LocatorType = "uniqueClass"
	LocatorRole        LocatorType = "role"
	LocatorText        LocatorType = "text"
	LocatorPlaceholder LocatorType = "placeholder"
	LocatorTitle       LocatorType = "title"
	LocatorLabel       LocatorType = "label"
	LocatorAlt         LocatorType = "alt"
	LocatorXPath       LocatorType = "xpath"
	LocatorCSS         LocatorType = "css"
)

// ElementDescriptor is the caller-facing description of a logical element.
// It carries the declared locator plus the runtime state the element is
// required to be in before a resolution (or a healed replacement) is accepted.
type ElementDescriptor struct {
	// Name is a short human identifier used in logs and error messages.
	Name string `json:"name"`
	// Description is a natural-language description, consumed by the AI
	// identification fallback when all structural strategies fail.
	Description string `json:"description,omitempty"`

	LocatorType  LocatorType `json:"locatorType"`
	LocatorValue string      `json:"locatorValue"`

	// Strict requires the locator to match exactly one node.
	Strict bool `json:"strict,omitempty"`
	// RequireVisible and RequireEnabled gate both resolution and healing.
	RequireVisible bool `json:"requireVisible,omitempty"`
	RequireEnabled bool `json:"requireEnabled,omitempty"`
}

// Box is a bounding box in CSS pixels, viewport-relative.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// CenterDistance returns the Euclidean distance between the centers of two boxes.
func (b Box) CenterDistance(o Box) float64 {
	dx := (b.X + b.Width/2) - (o.X + o.Width/2)
	dy := (b.Y + b.Height/2) - (o.Y + o.Height/2)
	return math.Sqrt(dx*dx + dy*dy)
}

// StructuralFeatures describes the element's own markup.
type StructuralFeatures struct {
	TagName     string            `json:"tagName"`
	Attributes  map[string]string `json:"attributes"`
	HasChildren bool              `json:"hasChildren"`
	// ChildrenTags is the ordered tag sequence of direct element children,
	// used for structural re-matching during healing.
	ChildrenTags []string `json:"childrenTags,omitempty"`
}

// ContextFeatures describes the element's immediate surroundings.
type ContextFeatures struct {
	ParentTag    string   `json:"parentTag"`
	SiblingTexts []string `json:"siblingTexts"`
	// PrecedingText is the text of the immediately preceding element sibling,
	// an anchor for adjacency-based healing.
	PrecedingText string `json:"precedingText,omitempty"`
}

// ElementFeatures is an immutable snapshot of an element captured at
// resolution time. Healing strategies read it as ground truth; once captured
// it is never mutated.
type ElementFeatures struct {
	Structural StructuralFeatures `json:"structural"`
	Text       string             `json:"text"`
	Context    ContextFeatures    `json:"context"`
	// Position is absent when the bounding-box capture failed (detached or
	// zero-sized element at capture time).
	Position *Box `json:"position,omitempty"`
}

// LocatorCandidate is a single generated selector with a strategy-local score.
// Scores are only meaningful for ranking within one generation pass.
type LocatorCandidate struct {
	Selector string      `json:"selector"`
	Type     LocatorType `json:"type"`
	Score    float64     `json:"score"`
}

// RobustLocator is the output of robust generation: a primary selector, an
// ordered fallback chain, and an overall stability confidence in [0,1].
type RobustLocator struct {
	Primary    string          `json:"primary"`
	Fallbacks  []string        `json:"fallbacks"`
	Metadata   ElementFeatures `json:"metadata"`
	Confidence float64         `json:"confidence"`
}

// HealingResult is returned to the caller when a strategy re-locates a lost
// element. The caller decides whether to adopt the handle as the new live
// reference; the framework does not retain healing results.
type HealingResult struct {
	Strategy   string     `json:"strategy"`
	Handle     LiveHandle `json:"-"`
	Confidence float64    `json:"confidence"`
	Selector   string     `json:"selector"`
	Reason     string     `json:"reason"`
}
