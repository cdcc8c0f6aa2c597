// File: internal/healing/attributes_test.go
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

func TestWeightedAttributeSimilarity(t *testing.T) {
	testCases := []struct {
		name     string
		a, b     map[string]string
		expected float64
	}{
		{
			"identical profile",
			map[string]string{"class": "btn primary", "type": "submit"},
			map[string]string{"class": "btn primary", "type": "submit"},
			1.0,
		},
		{
			"class token order irrelevant",
			map[string]string{"class": "btn primary"},
			map[string]string{"class": "primary btn"},
			1.0,
		},
		{
			"weighted attribute missing on one side",
			map[string]string{"class": "btn", "type": "submit"},
			map[string]string{"class": "btn"},
			0.3 / 0.5,
		},
		{
			"unweighted attribute only counts when shared",
			map[string]string{"data-step": "3"},
			map[string]string{"data-step": "3"},
			1.0,
		},
		{
			"unweighted mismatch",
			map[string]string{"data-step": "3"},
			map[string]string{"data-step": "4"},
			0.0,
		},
		{
			"no comparable attributes",
			map[string]string{},
			map[string]string{},
			0.0,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, weightedAttributeSimilarity(tc.a, tc.b), 1e-9)
		})
	}
}

func attributesStrategy(frame *fakeFrame, calc schemas.SimilarityCalculator) *SimilarAttributesStrategy {
	logger := zap.NewNop()
	return NewSimilarAttributesStrategy(calc, locator.NewGenerator(logger), NewValidator(frame), 0.7, logger)
}

func TestSimilarAttributesHealsRelabeledControl(t *testing.T) {
	// Text changed entirely; the identity attributes survived.
	page := `<html><body><form><input id="email-field" name="email" type="text"></form></body></html>`
	frame := frameMatching("#email-field")
	s := attributesStrategy(frame, stubCalc{1})

	features := &schemas.ElementFeatures{
		Structural: schemas.StructuralFeatures{
			TagName:    "input",
			Attributes: map[string]string{"name": "email", "type": "text"},
		},
	}
	req := newRequest(frame, mustSnapshot(t, page), staticGeometry(), schemas.ElementDescriptor{Name: "email"}, features)

	res, err := s.Heal(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "similar-attributes", res.Strategy)
	assert.Equal(t, "#email-field", res.Selector)
}

func TestSimilarAttributesRejectsDifferentProfile(t *testing.T) {
	page := `<html><body><input id="user" name="username" type="text"></body></html>`
	frame := frameMatching("#user")
	s := attributesStrategy(frame, stubCalc{1})

	features := &schemas.ElementFeatures{
		Structural: schemas.StructuralFeatures{
			TagName:    "input",
			Attributes: map[string]string{"name": "email", "type": "text"},
		},
	}
	req := newRequest(frame, mustSnapshot(t, page), staticGeometry(), schemas.ElementDescriptor{}, features)

	res, err := s.Heal(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestSimilarAttributesSkipsWithoutAttributes(t *testing.T) {
	frame := frameMatching()
	s := attributesStrategy(frame, stubCalc{1})

	features := &schemas.ElementFeatures{
		Structural: schemas.StructuralFeatures{TagName: "input"},
	}
	req := newRequest(frame, mustSnapshot(t, "<html><body></body></html>"), staticGeometry(),
		schemas.ElementDescriptor{}, features)

	res, err := s.Heal(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, res)
}
