// File: internal/similarity/calculator.go
package similarity

import (
	"strings"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// Weights for the default feature-similarity blend. Position weight is
// redistributed across the others when either snapshot lacks a bounding box.
const (
	wTag       = 0.2
	wAttrs     = 0.3
	wText      = 0.3
	wContext   = 0.1
	wPosition  = 0.1
	nearSamePx = 200.0 // distance at which positional similarity reaches zero
)

// Calculator is the default schemas.SimilarityCalculator. It blends tag,
// attribute, text, context and positional similarity into one score in [0,1].
type Calculator struct{}

// NewCalculator returns the default feature-similarity calculator.
func NewCalculator() *Calculator { return &Calculator{} }

var _ schemas.SimilarityCalculator = (*Calculator)(nil)

// Calculate scores how alike two snapshots are. Nil snapshots score zero.
func (c *Calculator) Calculate(a, b *schemas.ElementFeatures) float64 {
	if a == nil || b == nil {
		return 0
	}

	tag := 0.0
	if a.Structural.TagName == b.Structural.TagName {
		tag = 1.0
	}

	attrs := attributeSimilarity(a.Structural.Attributes, b.Structural.Attributes)
	text := TextSimilarity(a.Text, b.Text)
	ctx := contextSimilarity(a.Context, b.Context)

	score := wTag*tag + wAttrs*attrs + wText*text + wContext*ctx
	total := wTag + wAttrs + wText + wContext

	if a.Position != nil && b.Position != nil {
		dist := a.Position.CenterDistance(*b.Position)
		pos := 1.0 - dist/nearSamePx
		if pos < 0 {
			pos = 0
		}
		score += wPosition * pos
		total += wPosition
	}

	return score / total
}

// attributeSimilarity compares attribute maps key by key over the union of
// keys. The class attribute is compared as a token set.
func attributeSimilarity(a, b map[string]string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	keys := make(map[string]bool, len(a)+len(b))
	for k := range a {
		keys[k] = true
	}
	for k := range b {
		keys[k] = true
	}

	var sum float64
	for k := range keys {
		av, aok := a[k]
		bv, bok := b[k]
		switch {
		case !aok || !bok:
			// Attribute present on only one side contributes nothing.
		case k == "class":
			sum += Jaccard(splitTokens(av), splitTokens(bv))
		case av == bv:
			sum += 1.0
		}
	}
	return sum / float64(len(keys))
}

func contextSimilarity(a, b schemas.ContextFeatures) float64 {
	parent := 0.0
	if a.ParentTag == b.ParentTag {
		parent = 1.0
	}
	siblings := Jaccard(normalizeAll(a.SiblingTexts), normalizeAll(b.SiblingTexts))
	return 0.5*parent + 0.5*siblings
}

func normalizeAll(texts []string) []string {
	out := make([]string, 0, len(texts))
	for _, t := range texts {
		if n := NormalizeText(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func splitTokens(s string) []string {
	return strings.Fields(s)
}
