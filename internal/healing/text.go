// File: internal/healing/text.go
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

// textSimilarityFloor is the prerequisite before a candidate is even scored.
// Below it the text is considered a different label, not a reworded one.
const textSimilarityFloor = 0.8

const (
	textSimWeight     = 0.6
	textFeatureWeight = 0.4
)

// SimilarTextStrategy re-locates an element by its visible text. Labels
// survive most refactors even when ids and classes are regenerated.
type SimilarTextStrategy struct {
	calc      schemas.SimilarityCalculator
	gen       *locator.Generator
	validator *Validator
	threshold float64
	logger    *zap.Logger
}

// NewSimilarTextStrategy builds the strategy.
func NewSimilarTextStrategy(calc schemas.SimilarityCalculator, gen *locator.Generator, validator *Validator, threshold float64, logger *zap.Logger) *SimilarTextStrategy {
	return &SimilarTextStrategy{
		calc:      calc,
		gen:       gen,
		validator: validator,
		threshold: threshold,
		logger:    logger.Named("similar_text"),
	}
}

func (s *SimilarTextStrategy) Name() string { return "similar-text" }

func (s *SimilarTextStrategy) Heal(ctx context.Context, req *HealRequest) (*schemas.HealingResult, error) {
	if req.Features == nil {
		return nil, nil
	}
	originalText := similarity.NormalizeText(req.Features.Text)
	if originalText == "" {
		return nil, nil
	}
	// Candidates must share at least one significant word with the original
	// label; single short-word labels fall back to the similarity floor alone.
	words := similarity.SignificantWords(req.Features.Text, 3)

	nodes, err := req.Live.Snapshot.FindXPath(groupFor(req.Features).xpath)
	if err != nil {
		return nil, fmt.Errorf("similar-text group scan: %w", err)
	}

	type scored struct {
		node    *html.Node
		textSim float64
		score   float64
	}
	// Keep only the best-scoring node per distinct text so a repeated label
	// (table rows, menus) yields one candidate, not one per occurrence.
	best := make(map[string]scored)
	for _, n := range nodes {
		f := FeaturesFromNode(n)
		text := similarity.NormalizeText(f.Text)
		if text == "" {
			continue
		}
		if len(words) > 0 && !containsAnyWord(text, words) {
			continue
		}
		textSim := similarity.TextSimilarity(originalText, text)
		if textSim < textSimilarityFloor {
			continue
		}
		score := textSimWeight*textSim + textFeatureWeight*s.calc.Calculate(req.Features, f)
		if prev, ok := best[text]; !ok || score > prev.score {
			best[text] = scored{node: n, textSim: textSim, score: score}
		}
	}
	if len(best) == 0 {
		return nil, nil
	}

	ranked := make([]scored, 0, len(best))
	for _, sc := range best {
		ranked = append(ranked, sc)
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
		s.logger.Debug("Healed via text similarity.",
			zap.String("selector", selector),
			zap.Float64("text_similarity", sc.textSim),
			zap.Float64("score", sc.score))
		return &schemas.HealingResult{
			Strategy:   s.Name(),
			Handle:     handle,
			Confidence: sc.score,
			Selector:   selector,
			Reason:     fmt.Sprintf("text %.0f%% similar to last known label", sc.textSim*100),
		}, nil
	}
	return nil, nil
}

// containsAnyWord reports whether normalized text contains any of the
// normalized words as a substring.
func containsAnyWord(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}
