// File: internal/healing/parentchild.go
package healing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/remedy/api/schemas"
	"github.com/xkilldash9x/remedy/internal/locator"
	"github.com/xkilldash9x/remedy/internal/similarity"
)

// Score floor for the exact child-sequence match before the feature blend.
const childSequenceBase = 0.4

// ParentChildStrategy re-locates an element through its structural
// relationships, tried in a fixed order: the parent/tag pairing, the ordered
// tag sequence of its children, then the text of the element that preceded
// it. The first relation yielding a validated, threshold-clearing candidate
// wins; scores only rank candidates within one relation. Structure is the
// last thing left when attributes and text have both churned.
type ParentChildStrategy struct {
	calc      schemas.SimilarityCalculator
	gen       *locator.Generator
	validator *Validator
	threshold float64
	logger    *zap.Logger
}

// NewParentChildStrategy builds the strategy.
func NewParentChildStrategy(calc schemas.SimilarityCalculator, gen *locator.Generator, validator *Validator, threshold float64, logger *zap.Logger) *ParentChildStrategy {
	return &ParentChildStrategy{
		calc:      calc,
		gen:       gen,
		validator: validator,
		threshold: threshold,
		logger:    logger.Named("parent_child"),
	}
}

func (s *ParentChildStrategy) Name() string { return "parent-child" }

type relationCandidate struct {
	node   *html.Node
	score  float64
	reason string
}

func (s *ParentChildStrategy) Heal(ctx context.Context, req *HealRequest) (*schemas.HealingResult, error) {
	if req.Features == nil || req.Features.Structural.TagName == "" {
		return nil, nil
	}

	for _, collect := range []func(*HealRequest) ([]relationCandidate, error){
		s.byParentTag,
		s.byChildSequence,
		s.byPrecedingText,
	} {
		found, err := collect(req)
		if err != nil {
			return nil, err
		}
		res, err := s.firstValidated(ctx, req, found)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
	}
	return nil, nil
}

// firstValidated ranks the candidates of one relation and returns the best
// one that clears the threshold and survives live validation.
func (s *ParentChildStrategy) firstValidated(ctx context.Context, req *HealRequest, ranked []relationCandidate) (*schemas.HealingResult, error) {
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	seen := make(map[*html.Node]bool, len(ranked))
	for _, rc := range ranked {
		if rc.score < s.threshold {
			break
		}
		if seen[rc.node] {
			continue
		}
		seen[rc.node] = true
		handle, selector, err := validateNode(ctx, s.gen, s.validator, rc.node, req.Descriptor)
		if err != nil {
			return nil, err
		}
		if handle == nil {
			continue
		}
		s.logger.Debug("Healed via structural relationship.",
			zap.String("selector", selector),
			zap.String("relation", rc.reason),
			zap.Float64("score", rc.score))
		return &schemas.HealingResult{
			Strategy:   s.Name(),
			Handle:     handle,
			Confidence: rc.score,
			Selector:   selector,
			Reason:     rc.reason,
		}, nil
	}
	return nil, nil
}

// byParentTag scans direct parent/child tag pairings and scores each hit by
// full feature similarity.
func (s *ParentChildStrategy) byParentTag(req *HealRequest) ([]relationCandidate, error) {
	parent := req.Features.Context.ParentTag
	tag := req.Features.Structural.TagName
	if parent == "" {
		return nil, nil
	}
	nodes, err := req.Live.Snapshot.FindXPath(fmt.Sprintf("//%s/%s", parent, tag))
	if err != nil {
		return nil, fmt.Errorf("parent-tag scan: %w", err)
	}
	out := make([]relationCandidate, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, relationCandidate{
			node:   n,
			score:  s.calc.Calculate(req.Features, FeaturesFromNode(n)),
			reason: fmt.Sprintf("same %s/%s parent-child pairing", parent, tag),
		})
	}
	return out, nil
}

// byChildSequence looks for same-tag elements whose direct children repeat
// the original's exact tag sequence. An exact sequence is strong evidence on
// its own, so it contributes a fixed base before the feature blend.
func (s *ParentChildStrategy) byChildSequence(req *HealRequest) ([]relationCandidate, error) {
	want := req.Features.Structural.ChildrenTags
	if len(want) == 0 {
		return nil, nil
	}
	nodes, err := req.Live.Snapshot.FindXPath("//" + req.Features.Structural.TagName)
	if err != nil {
		return nil, fmt.Errorf("child-sequence scan: %w", err)
	}
	var out []relationCandidate
	for _, n := range nodes {
		f := FeaturesFromNode(n)
		if !equalStrings(want, f.Structural.ChildrenTags) {
			continue
		}
		out = append(out, relationCandidate{
			node:   n,
			score:  childSequenceBase + (1-childSequenceBase)*s.calc.Calculate(req.Features, f),
			reason: fmt.Sprintf("child tag sequence [%s] preserved", strings.Join(want, " ")),
		})
	}
	return out, nil
}

// byPrecedingText anchors on the text of the immediately preceding sibling,
// the way a label anchors its input. A same-tag element directly after a
// matching anchor is taken in document order.
func (s *ParentChildStrategy) byPrecedingText(req *HealRequest) ([]relationCandidate, error) {
	anchor := similarity.NormalizeText(req.Features.Context.PrecedingText)
	if anchor == "" {
		return nil, nil
	}
	tag := req.Features.Structural.TagName

	nodes, err := req.Live.Snapshot.FindXPath("//*")
	if err != nil {
		return nil, fmt.Errorf("preceding-text scan: %w", err)
	}
	var out []relationCandidate
	for _, n := range nodes {
		if similarity.NormalizeText(collapseText(htmlquery.InnerText(n))) != anchor {
			continue
		}
		next := nextElementSibling(n)
		if next == nil || strings.ToLower(next.Data) != tag {
			continue
		}
		out = append(out, relationCandidate{
			node:   next,
			score:  s.calc.Calculate(req.Features, FeaturesFromNode(next)),
			reason: fmt.Sprintf("%s directly after anchor text %q", tag, truncate(anchor, 40)),
		})
	}
	return out, nil
}

func nextElementSibling(n *html.Node) *html.Node {
	for c := n.NextSibling; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
