// File: internal/healing/orchestrator.go
// Description: The healing orchestrator. Captures one page snapshot, then
// runs the fallback strategies in fixed cheapest-first order and returns the
// first validated result.
package healing

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
	"github.com/xkilldash9x/remedy/internal/config"
	"github.com/xkilldash9x/remedy/internal/locator"
	"github.com/xkilldash9x/remedy/internal/similarity"
)

// Orchestrator coordinates one healing attempt per lost element. Strategy
// order is fixed: positional, textual, attribute, structural, then the AI
// fallback. The first result to clear the validation gate wins outright.
type Orchestrator struct {
	frame      schemas.FrameSession
	geometry   GeometryFunc
	strategies []Strategy
	enabled    bool
	logger     *zap.Logger
}

// NewOrchestrator wires the five strategies from configuration. A nil
// identifier simply disables the AI fallback.
func NewOrchestrator(cfg config.Interface, frame schemas.FrameSession, identifier schemas.ElementIdentifier, logger *zap.Logger) *Orchestrator {
	healingCfg := cfg.Healing()
	threshold := healingCfg.ConfidenceThreshold
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}

	calc := similarity.NewCalculator()
	gen := locator.NewGenerator(logger)
	validator := NewValidator(frame)

	if !healingCfg.AIEnabled {
		identifier = nil
	}

	return &Orchestrator{
		frame:    frame,
		geometry: NewGeometryFunc(frame),
		enabled:  healingCfg.Enabled,
		logger:   logger.Named("healing"),
		strategies: []Strategy{
			NewNearbyElementStrategy(calc, validator, healingCfg.NearbyRadiusPx, threshold, logger),
			NewSimilarTextStrategy(calc, gen, validator, threshold, logger),
			NewSimilarAttributesStrategy(calc, gen, validator, threshold, logger),
			NewParentChildStrategy(calc, gen, validator, threshold, logger),
			NewAIIdentificationStrategy(identifier, validator, logger),
		},
	}
}

// Enabled reports whether healing is switched on at all.
func (o *Orchestrator) Enabled() bool { return o.enabled }

// Heal attempts to re-locate a lost element. It returns (nil, nil) when no
// strategy produced a validated candidate; only snapshot capture failure or
// cancellation is an error. A single strategy blowing up is logged and the
// next one runs, so one flaky heuristic cannot sink the whole attempt.
func (o *Orchestrator) Heal(ctx context.Context, desc schemas.ElementDescriptor, features *schemas.ElementFeatures) (*schemas.HealingResult, error) {
	if !o.enabled {
		return nil, nil
	}

	pageHTML, err := o.frame.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("healing snapshot capture: %w", err)
	}
	snapshot, err := NewSnapshot(pageHTML)
	if err != nil {
		return nil, fmt.Errorf("healing snapshot parse: %w", err)
	}

	req := &HealRequest{
		Descriptor: desc,
		Features:   features,
		Live: &LiveContext{
			Frame:    o.frame,
			Snapshot: snapshot,
			Geometry: o.geometry,
		},
	}

	for _, strategy := range o.strategies {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result, err := strategy.Heal(ctx, req)
		if err != nil {
			o.logger.Warn("Healing strategy failed; trying next.",
				zap.String("strategy", strategy.Name()),
				zap.String("element", desc.Name),
				zap.Error(err))
			continue
		}
		if result != nil {
			o.logger.Info("Element healed.",
				zap.String("element", desc.Name),
				zap.String("strategy", result.Strategy),
				zap.String("selector", result.Selector),
				zap.Float64("confidence", result.Confidence))
			return result, nil
		}
	}

	o.logger.Warn("All healing strategies exhausted.", zap.String("element", desc.Name))
	return nil, nil
}
