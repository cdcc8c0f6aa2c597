// File: internal/healing/ai_test.go
package healing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
)

func TestAIIdentificationHealsValidatedSelector(t *testing.T) {
	frame := frameMatching("#pay-now")
	ident := &stubIdentifier{selector: "#pay-now"}
	s := NewAIIdentificationStrategy(ident, NewValidator(frame), zap.NewNop())

	desc := schemas.ElementDescriptor{Name: "submit", Description: "the green button that submits the order"}
	req := newRequest(frame, mustSnapshot(t, "<html><body></body></html>"), staticGeometry(), desc, nil)

	res, err := s.Heal(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "ai-identification", res.Strategy)
	assert.Equal(t, "#pay-now", res.Selector)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
	assert.Equal(t, "the green button that submits the order", ident.gotDescription)
}

func TestAIIdentificationFallsBackToName(t *testing.T) {
	frame := frameMatching("#pay-now")
	ident := &stubIdentifier{selector: "#pay-now"}
	s := NewAIIdentificationStrategy(ident, NewValidator(frame), zap.NewNop())

	desc := schemas.ElementDescriptor{Name: "submit button"}
	req := newRequest(frame, mustSnapshot(t, "<html><body></body></html>"), staticGeometry(), desc, nil)

	res, err := s.Heal(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "submit button", ident.gotDescription)
}

func TestAIIdentificationNeverMatchesWhenUnavailable(t *testing.T) {
	frame := frameMatching("#pay-now")

	testCases := []struct {
		name string
		s    *AIIdentificationStrategy
		desc schemas.ElementDescriptor
	}{
		{
			"nil identifier",
			NewAIIdentificationStrategy(nil, NewValidator(frame), zap.NewNop()),
			schemas.ElementDescriptor{Description: "a button"},
		},
		{
			"no description or name",
			NewAIIdentificationStrategy(&stubIdentifier{selector: "#pay-now"}, NewValidator(frame), zap.NewNop()),
			schemas.ElementDescriptor{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := newRequest(frame, mustSnapshot(t, "<html><body></body></html>"), staticGeometry(), tc.desc, nil)
			res, err := tc.s.Heal(context.Background(), req)
			require.NoError(t, err)
			assert.Nil(t, res)
		})
	}
}

func TestAIIdentificationModelFailureIsNotAnError(t *testing.T) {
	frame := frameMatching()
	ident := &stubIdentifier{err: errors.New("rate limited")}
	s := NewAIIdentificationStrategy(ident, NewValidator(frame), zap.NewNop())

	desc := schemas.ElementDescriptor{Description: "a button"}
	req := newRequest(frame, mustSnapshot(t, "<html><body></body></html>"), staticGeometry(), desc, nil)

	res, err := s.Heal(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestAIIdentificationRejectsUnvalidatedSelector(t *testing.T) {
	frame := frameMatching() // nothing resolves
	ident := &stubIdentifier{selector: "#ghost"}
	s := NewAIIdentificationStrategy(ident, NewValidator(frame), zap.NewNop())

	desc := schemas.ElementDescriptor{Description: "a button"}
	req := newRequest(frame, mustSnapshot(t, "<html><body></body></html>"), staticGeometry(), desc, nil)

	res, err := s.Heal(context.Background(), req)
	require.NoError(t, err)
	assert.Nil(t, res)
}
