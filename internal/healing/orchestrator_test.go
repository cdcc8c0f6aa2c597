// File: internal/healing/orchestrator_test.go
package healing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
	"github.com/xkilldash9x/remedy/internal/config"
)

func healingConfig(enabled bool) *config.Config {
	return &config.Config{
		HealingCfg: config.HealingConfig{
			Enabled:             enabled,
			ConfidenceThreshold: 0.7,
			NearbyRadiusPx:      100,
		},
	}
}

func TestOrchestratorDisabled(t *testing.T) {
	// The frame would fail if touched; disabled healing must never get there.
	frame := &fakeFrame{htmlErr: errors.New("target closed")}
	o := NewOrchestrator(healingConfig(false), frame, nil, zap.NewNop())

	assert.False(t, o.Enabled())
	res, err := o.Heal(context.Background(), schemas.ElementDescriptor{Name: "x"}, nil)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestOrchestratorSnapshotFailure(t *testing.T) {
	frame := &fakeFrame{htmlErr: errors.New("target closed")}
	o := NewOrchestrator(healingConfig(true), frame, nil, zap.NewNop())

	_, err := o.Heal(context.Background(), schemas.ElementDescriptor{Name: "x"}, nil)
	assert.Error(t, err)
}

func TestOrchestratorSurvivesStrategyFailure(t *testing.T) {
	// The geometry scan blows up, taking the positional strategy down with
	// it; the text strategy must still get its turn and heal the element.
	frame := frameMatching("#pay-now")
	frame.html = `<html><body><form><button id="pay-now" class="btn">Submit Order</button></form></body></html>`
	frame.evalErr = errors.New("execution context was destroyed")

	o := NewOrchestrator(healingConfig(true), frame, nil, zap.NewNop())

	features := &schemas.ElementFeatures{
		Structural: schemas.StructuralFeatures{
			TagName:    "button",
			Attributes: map[string]string{"id": "pay-now", "class": "btn"},
		},
		Text:     "Submit Order",
		Context:  schemas.ContextFeatures{ParentTag: "form"},
		Position: &schemas.Box{X: 100, Y: 100, Width: 80, Height: 30},
	}

	res, err := o.Heal(context.Background(), schemas.ElementDescriptor{Name: "submit"}, features)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "similar-text", res.Strategy)
	assert.Equal(t, "#pay-now", res.Selector)
}

func TestOrchestratorExhaustsStrategies(t *testing.T) {
	frame := &fakeFrame{html: "<html><body></body></html>"}
	o := NewOrchestrator(healingConfig(true), frame, nil, zap.NewNop())

	res, err := o.Heal(context.Background(), schemas.ElementDescriptor{Name: "gone"}, nil)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestOrchestratorHonorsCancellation(t *testing.T) {
	frame := &fakeFrame{html: "<html><body></body></html>"}
	o := NewOrchestrator(healingConfig(true), frame, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Heal(ctx, schemas.ElementDescriptor{Name: "x"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOrchestratorDisablesAIWithoutConfig(t *testing.T) {
	frame := &fakeFrame{html: "<html><body><button id='b'>Go</button></body></html>"}
	ident := &stubIdentifier{selector: "#b"}

	// AIEnabled is off, so the identifier must never be consulted even when
	// everything else fails.
	o := NewOrchestrator(healingConfig(true), frame, ident, zap.NewNop())

	desc := schemas.ElementDescriptor{Name: "gone", Description: "a missing element"}
	res, err := o.Heal(context.Background(), desc, nil)
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Empty(t, ident.gotDescription)
}
