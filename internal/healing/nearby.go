// File: internal/healing/nearby.go
package healing

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// DefaultNearbyRadiusPx is the positional search radius around the
// last-known box center.
const DefaultNearbyRadiusPx = 100.0

// Weights blending proximity with overall feature similarity.
const (
	nearbyDistanceWeight = 0.3
	nearbyFeatureWeight  = 0.7
)

// NearbyElementStrategy re-locates an element by looking for same-semantic-type
// elements close to its last-known position. Layout rarely moves a control
// far, even when its markup is rewritten.
type NearbyElementStrategy struct {
	calc      schemas.SimilarityCalculator
	validator *Validator
	radius    float64
	threshold float64
	logger    *zap.Logger
}

// NewNearbyElementStrategy builds the strategy. A radius <= 0 uses the default.
func NewNearbyElementStrategy(calc schemas.SimilarityCalculator, validator *Validator, radius, threshold float64, logger *zap.Logger) *NearbyElementStrategy {
	if radius <= 0 {
		radius = DefaultNearbyRadiusPx
	}
	return &NearbyElementStrategy{
		calc:      calc,
		validator: validator,
		radius:    radius,
		threshold: threshold,
		logger:    logger.Named("nearby"),
	}
}

func (s *NearbyElementStrategy) Name() string { return "nearby-element" }

func (s *NearbyElementStrategy) Heal(ctx context.Context, req *HealRequest) (*schemas.HealingResult, error) {
	if req.Features == nil || req.Features.Position == nil {
		// Without a last-known box there is nothing to be near.
		return nil, nil
	}
	origin := *req.Features.Position

	candidates, err := req.Live.Geometry(ctx, groupFor(req.Features).css)
	if err != nil {
		return nil, fmt.Errorf("nearby geometry scan: %w", err)
	}

	type scored struct {
		cand  LiveCandidate
		dist  float64
		score float64
	}
	var inRadius []scored
	for _, c := range candidates {
		if c.Features.Position == nil {
			continue
		}
		dist := origin.CenterDistance(*c.Features.Position)
		if dist > s.radius {
			continue
		}
		featureSim := s.calc.Calculate(req.Features, &c.Features)
		score := nearbyDistanceWeight*(1-dist/s.radius) + nearbyFeatureWeight*featureSim
		inRadius = append(inRadius, scored{cand: c, dist: dist, score: score})
	}
	if len(inRadius) == 0 {
		return nil, nil
	}

	sort.SliceStable(inRadius, func(i, j int) bool { return inRadius[i].score > inRadius[j].score })

	for _, sc := range inRadius {
		if sc.score < s.threshold {
			break
		}
		handle, err := s.validator.Validate(ctx, sc.cand.Selector, req.Descriptor)
		if err != nil {
			return nil, err
		}
		if handle == nil {
			continue
		}
		s.logger.Debug("Healed via nearby element.",
			zap.String("selector", sc.cand.Selector),
			zap.Float64("distance", sc.dist),
			zap.Float64("score", sc.score))
		return &schemas.HealingResult{
			Strategy:   s.Name(),
			Handle:     handle,
			Confidence: sc.score,
			Selector:   sc.cand.Selector,
			Reason:     fmt.Sprintf("same-type element %.0fpx from last known position", sc.dist),
		}, nil
	}
	return nil, nil
}
