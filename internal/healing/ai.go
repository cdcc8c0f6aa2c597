// File: internal/healing/ai.go
package healing

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// aiConfidence is the fixed confidence assigned to an AI-identified selector
// once it has cleared validation. The model gives no calibrated score of its
// own.
const aiConfidence = 0.8

// AIIdentificationStrategy is the last-resort fallback: hand the page HTML
// and the element's natural-language description to the model and validate
// whatever selector comes back. Ordered last because it is the slowest and
// the only strategy with a network dependency.
type AIIdentificationStrategy struct {
	identifier schemas.ElementIdentifier
	validator  *Validator
	logger     *zap.Logger
}

// NewAIIdentificationStrategy builds the strategy. A nil identifier yields a
// strategy that never matches, so wiring stays unconditional.
func NewAIIdentificationStrategy(identifier schemas.ElementIdentifier, validator *Validator, logger *zap.Logger) *AIIdentificationStrategy {
	return &AIIdentificationStrategy{
		identifier: identifier,
		validator:  validator,
		logger:     logger.Named("ai_identification"),
	}
}

func (s *AIIdentificationStrategy) Name() string { return "ai-identification" }

func (s *AIIdentificationStrategy) Heal(ctx context.Context, req *HealRequest) (*schemas.HealingResult, error) {
	if s.identifier == nil {
		return nil, nil
	}
	description := strings.TrimSpace(req.Descriptor.Description)
	if description == "" {
		description = strings.TrimSpace(req.Descriptor.Name)
	}
	if description == "" {
		return nil, nil
	}

	selector, err := s.identifier.Identify(ctx, description, req.Live.Snapshot.HTML)
	if err != nil {
		// The model failing to answer must not poison the healing attempt;
		// the orchestrator treats nil as "strategy found nothing".
		s.logger.Warn("AI identification failed.", zap.Error(err))
		return nil, nil
	}
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return nil, nil
	}

	handle, err := s.validator.Validate(ctx, selector, req.Descriptor)
	if err != nil {
		return nil, err
	}
	if handle == nil {
		s.logger.Debug("AI-proposed selector failed validation.", zap.String("selector", selector))
		return nil, nil
	}
	s.logger.Debug("Healed via AI identification.", zap.String("selector", selector))
	return &schemas.HealingResult{
		Strategy:   s.Name(),
		Handle:     handle,
		Confidence: aiConfidence,
		Selector:   selector,
		Reason:     fmt.Sprintf("model identified element for %q", description),
	}, nil
}
