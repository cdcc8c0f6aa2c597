// File: internal/locator/generator.go
// Description: Multi-strategy locator candidate generation. Given an element
// node inside a parsed DOM snapshot, the generator emits one candidate per
// applicable strategy, ranked by estimated stability, without needing the
// original author's intent.
package locator

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// ErrNoCandidates is returned when no strategy can produce a selector for the
// element (no usable attributes, no text, no stable path).
var ErrNoCandidates = errors.New("locator: no candidates could be generated")

// testIDAttributes is the fixed priority list of test-id style attributes.
var testIDAttributes = []string{
	"data-testid",
	"data-test-id",
	"data-test",
	"data-qa",
	"data-cy",
	"data-automation-id",
}

// compositeAttributes is the fixed priority list for attribute-composite CSS.
var compositeAttributes = []string{"name", "type", "placeholder", "value", "title", "alt", "for", "href"}

// interactiveTags are controls that get a small stability bonus: their
// attributes tend to be load-bearing and rarely churn.
var interactiveTags = map[string]bool{
	"a": true, "button": true, "input": true, "select": true, "textarea": true, "option": true,
}

// Base priority weights per strategy type. Only meaningful for ranking within
// one generation pass.
var basePriority = map[schemas.LocatorType]float64{
	schemas.LocatorID:          10,
	schemas.LocatorTestID:      9,
	schemas.LocatorAriaLabel:   8,
	schemas.LocatorRole:        7,
	schemas.LocatorText:        6,
	schemas.LocatorCSS:         5,
	schemas.LocatorUniqueClass: 4,
	schemas.LocatorXPath:       3,
}

const (
	maxCompositeAttrs = 3
	maxClassSelectors = 2
	maxTextWords      = 5
	exactTextLimit    = 30
	robustTopN        = 5
)

// Generator turns DOM nodes into ranked selector candidates. Construct one
// per session and pass it by reference; it holds no per-element state.
type Generator struct {
	logger *zap.Logger
}

// NewGenerator creates a locator generator.
func NewGenerator(logger *zap.Logger) *Generator {
	return &Generator{logger: logger.Named("locator")}
}

// elementInfo is the extracted view of one node used by the strategies.
type elementInfo struct {
	tag        string
	id         string
	classes    []string
	attributes map[string]string
	text       string
}

func extractInfo(node *html.Node) elementInfo {
	info := elementInfo{
		tag:        strings.ToLower(node.Data),
		attributes: make(map[string]string, len(node.Attr)),
	}
	for _, a := range node.Attr {
		info.attributes[a.Key] = a.Val
	}
	info.id = info.attributes["id"]
	if cls, ok := info.attributes["class"]; ok {
		info.classes = strings.Fields(cls)
	}
	info.text = strings.TrimSpace(htmlquery.InnerText(node))
	return info
}

// GenerateCandidates produces the full ranked candidate list for a node.
// The returned slice is deduplicated, sorted by descending score, and every
// selector has been through OptimizeLocator.
func (g *Generator) GenerateCandidates(node *html.Node) ([]schemas.LocatorCandidate, error) {
	if node == nil || node.Type != html.ElementNode {
		return nil, fmt.Errorf("%w: not an element node", ErrNoCandidates)
	}
	info := extractInfo(node)

	var candidates []schemas.LocatorCandidate
	add := func(sel string, typ schemas.LocatorType) {
		if sel == "" {
			return
		}
		candidates = append(candidates, schemas.LocatorCandidate{
			Selector: sel,
			Type:     typ,
			Score:    g.calculateLocatorScore(info, typ),
		})
	}

	add(idSelector(info), schemas.LocatorID)
	add(testIDSelector(info), schemas.LocatorTestID)
	add(ariaLabelSelector(info), schemas.LocatorAriaLabel)
	add(roleSelector(info), schemas.LocatorRole)
	add(textSelector(info), schemas.LocatorText)
	add(attributeCompositeSelector(info), schemas.LocatorCSS)
	add(classSelector(info), schemas.LocatorUniqueClass)
	add(xpathSelector(node, info), schemas.LocatorXPath)

	// The DOM-path CSS fallback is half-weighted: it is brittle against
	// structural churn but always available.
	if sel := cssPathSelector(node); sel != "" {
		candidates = append(candidates, schemas.LocatorCandidate{
			Selector: sel,
			Type:     schemas.LocatorCSS,
			Score:    g.calculateLocatorScore(info, schemas.LocatorCSS) / 2,
		})
	}

	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	candidates = dedupe(candidates)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	for i := range candidates {
		candidates[i].Selector = OptimizeLocator(candidates[i].Selector)
	}

	g.logger.Debug("Generated locator candidates.",
		zap.String("tag", info.tag), zap.Int("count", len(candidates)))
	return candidates, nil
}

// GenerateLocator returns only the highest-ranked candidate.
func (g *Generator) GenerateLocator(node *html.Node) (schemas.LocatorCandidate, error) {
	candidates, err := g.GenerateCandidates(node)
	if err != nil {
		return schemas.LocatorCandidate{}, err
	}
	return candidates[0], nil
}

// GenerateRobustLocator re-scores the top candidates by the fixed stability
// heuristic and returns the best as primary with the rest as fallbacks.
func (g *Generator) GenerateRobustLocator(node *html.Node, metadata schemas.ElementFeatures) (*schemas.RobustLocator, error) {
	candidates, err := g.GenerateCandidates(node)
	if err != nil {
		return nil, err
	}
	if len(candidates) > robustTopN {
		candidates = candidates[:robustTopN]
	}

	info := extractInfo(node)
	type scored struct {
		selector  string
		stability float64
	}
	rescored := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		rescored = append(rescored, scored{c.Selector, g.ScoreLocatorStability(c.Selector, info)})
	}
	sort.SliceStable(rescored, func(i, j int) bool {
		return rescored[i].stability > rescored[j].stability
	})

	robust := &schemas.RobustLocator{
		Primary:    rescored[0].selector,
		Metadata:   metadata,
		Confidence: rescored[0].stability,
	}
	for _, s := range rescored[1:] {
		robust.Fallbacks = append(robust.Fallbacks, s.selector)
	}
	return robust, nil
}

// dedupe removes candidates whose selectors are equal after case-insensitive
// whitespace normalization, keeping the first (highest-priority) occurrence.
func dedupe(in []schemas.LocatorCandidate) []schemas.LocatorCandidate {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, c := range in {
		key := strings.ToLower(strings.Join(strings.Fields(c.Selector), " "))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}
