// File: internal/healing/text_test.go
package healing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
	"github.com/xkilldash9x/remedy/internal/locator"
)

func textStrategy(frame *fakeFrame, calc schemas.SimilarityCalculator) *SimilarTextStrategy {
	logger := zap.NewNop()
	return NewSimilarTextStrategy(calc, locator.NewGenerator(logger), NewValidator(frame), 0.7, logger)
}

func TestSimilarTextHealsRenamedLabel(t *testing.T) {
	page := `<html><body><form>
		<button id="pay-now" class="btn">Submit Orders</button>
		<button id="cancel" class="btn">Cancel</button>
	</form></body></html>`
	frame := frameMatching("#pay-now")
	s := textStrategy(frame, stubCalc{1})

	features := &schemas.ElementFeatures{
		Structural: schemas.StructuralFeatures{TagName: "button", Attributes: map[string]string{"class": "btn"}},
		Text:       "Submit Order",
	}
	req := newRequest(frame, mustSnapshot(t, page), staticGeometry(), schemas.ElementDescriptor{Name: "submit"}, features)

	res, err := s.Heal(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "similar-text", res.Strategy)
	assert.Equal(t, "#pay-now", res.Selector)
	assert.Greater(t, res.Confidence, 0.9)
}

func TestSimilarTextIgnoresDifferentLabels(t *testing.T) {
	page := `<html><body><button id="checkout">Checkout</button></body></html>`
	frame := frameMatching("#checkout")
	s := textStrategy(frame, stubCalc{1})

	features := &schemas.ElementFeatures{
		Structural: schemas.StructuralFeatures{TagName: "button"},
		Text:       "Submit Order",
	}
	req := newRequest(frame, mustSnapshot(t, page), staticGeometry(), schemas.ElementDescriptor{}, features)

	res, err := s.Heal(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestSimilarTextRequiresSharedSignificantWord(t *testing.T) {
	// "paymenty" is within edit distance of "payments" but no longer contains
	// the word itself, so it is not a candidate.
	page := `<html><body><button id="typo" class="btn">paymenty</button></body></html>`
	frame := frameMatching("#typo")
	s := textStrategy(frame, stubCalc{1})

	features := &schemas.ElementFeatures{
		Structural: schemas.StructuralFeatures{TagName: "button", Attributes: map[string]string{"class": "btn"}},
		Text:       "payments",
	}
	req := newRequest(frame, mustSnapshot(t, page), staticGeometry(), schemas.ElementDescriptor{}, features)

	res, err := s.Heal(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestSimilarTextSkipsWithoutText(t *testing.T) {
	frame := frameMatching()
	s := textStrategy(frame, stubCalc{1})

	testCases := []struct {
		name     string
		features *schemas.ElementFeatures
	}{
		{"nil features", nil},
		{"empty text", &schemas.ElementFeatures{Structural: schemas.StructuralFeatures{TagName: "button"}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := newRequest(frame, mustSnapshot(t, "<html><body></body></html>"), staticGeometry(),
				schemas.ElementDescriptor{}, tc.features)
			res, err := s.Heal(context.Background(), req)
			require.NoError(t, err)
			assert.Nil(t, res)
		})
	}
}

func TestSimilarTextSearchesSemanticGroup(t *testing.T) {
	// The original was a <button>; the rebuilt page uses a role=button div.
	page := `<html><body><form><div role="button" id="submit-div">Submit Order</div></form></body></html>`
	frame := frameMatching("#submit-div")
	s := textStrategy(frame, stubCalc{1})

	features := &schemas.ElementFeatures{
		Structural: schemas.StructuralFeatures{TagName: "button"},
		Text:       "Submit Order",
	}
	req := newRequest(frame, mustSnapshot(t, page), staticGeometry(), schemas.ElementDescriptor{}, features)

	res, err := s.Heal(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "similar-text", res.Strategy)
}
