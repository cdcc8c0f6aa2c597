// File: internal/healing/attributes.go
package healing

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/remedy/api/schemas"
	"github.com/xkilldash9x/remedy/internal/locator"
	"github.com/xkilldash9x/remedy/internal/similarity"
)

// attributeSimilarityFloor gates candidates before the feature blend. A node
// sharing fewer than this fraction of weighted attributes is a different
// control, not a restyled one.
const attributeSimilarityFloor = 0.7

// weightedAttributes are the attributes that carry identity, with how much
// each contributes. Everything else shares a flat weight when present on both
// sides.
var weightedAttributes = map[string]float64{
	"class":       0.3,
	"role":        0.25,
	"type":        0.2,
	"name":        0.15,
	"aria-label":  0.15,
	"placeholder": 0.1,
}

const otherAttributeWeight = 0.1

// SimilarAttributesStrategy re-locates an element by its attribute profile.
// Useful when text changed (localization, counters) but the markup identity
// attributes survived.
type SimilarAttributesStrategy struct {
	calc      schemas.SimilarityCalculator
	gen       *locator.Generator
	validator *Validator
	threshold float64
	logger    *zap.Logger
}

// NewSimilarAttributesStrategy builds the strategy.
func NewSimilarAttributesStrategy(calc schemas.SimilarityCalculator, gen *locator.Generator, validator *Validator, threshold float64, logger *zap.Logger) *SimilarAttributesStrategy {
	return &SimilarAttributesStrategy{
		calc:      calc,
		gen:       gen,
		validator: validator,
		threshold: threshold,
		logger:    logger.Named("similar_attributes"),
	}
}

func (s *SimilarAttributesStrategy) Name() string { return "similar-attributes" }

func (s *SimilarAttributesStrategy) Heal(ctx context.Context, req *HealRequest) (*schemas.HealingResult, error) {
	if req.Features == nil || len(req.Features.Structural.Attributes) == 0 {
		return nil, nil
	}
	tag := req.Features.Structural.TagName
	if tag == "" {
		return nil, nil
	}

	nodes, err := req.Live.Snapshot.FindXPath("//" + tag)
	if err != nil {
		return nil, fmt.Errorf("similar-attributes tag scan: %w", err)
	}

	type scored struct {
		node    *html.Node
		attrSim float64
		score   float64
	}
	var ranked []scored
	for _, n := range nodes {
		f := FeaturesFromNode(n)
		attrSim := weightedAttributeSimilarity(req.Features.Structural.Attributes, f.Structural.Attributes)
		if attrSim < attributeSimilarityFloor {
			continue
		}
		score := 0.5*attrSim + 0.5*s.calc.Calculate(req.Features, f)
		ranked = append(ranked, scored{node: n, attrSim: attrSim, score: score})
	}
	if len(ranked) == 0 {
		return nil, nil
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	for _, sc := range ranked {
		if sc.score < s.threshold {
			break
		}
		handle, selector, err := validateNode(ctx, s.gen, s.validator, sc.node, req.Descriptor)
		if err != nil {
			return nil, err
		}
		if handle == nil {
			continue
		}
		s.logger.Debug("Healed via attribute profile.",
			zap.String("selector", selector),
			zap.Float64("attribute_similarity", sc.attrSim),
			zap.Float64("score", sc.score))
		return &schemas.HealingResult{
			Strategy:   s.Name(),
			Handle:     handle,
			Confidence: sc.score,
			Selector:   selector,
			Reason:     fmt.Sprintf("attribute profile %.0f%% match", sc.attrSim*100),
		}, nil
	}
	return nil, nil
}

// weightedAttributeSimilarity scores attribute agreement in [0,1]. Class is
// compared as a token set; every other weighted attribute needs an exact
// match. Attributes outside the weighted table only count when present on
// both sides, so page-specific noise cannot dilute the identity attributes.
func weightedAttributeSimilarity(a, b map[string]string) float64 {
	var got, total float64

	for attr, weight := range weightedAttributes {
		av, aok := a[attr]
		bv, bok := b[attr]
		if !aok && !bok {
			continue
		}
		total += weight
		if !aok || !bok {
			continue
		}
		if attr == "class" {
			got += weight * similarity.Jaccard(strings.Fields(av), strings.Fields(bv))
		} else if av == bv {
			got += weight
		}
	}

	for attr, av := range a {
		if _, weighted := weightedAttributes[attr]; weighted {
			continue
		}
		bv, ok := b[attr]
		if !ok {
			continue
		}
		total += otherAttributeWeight
		if av == bv {
			got += otherAttributeWeight
		}
	}

	if total == 0 {
		return 0
	}
	return got / total
}
