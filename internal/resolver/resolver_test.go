// File: internal/resolver/resolver_test.go
package resolver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
	"github.com/xkilldash9x/remedy/internal/config"
	"github.com/xkilldash9x/remedy/internal/healing"
)

// countResult scripts one Count call on a fake handle.
type countResult struct {
	n   int
	err error
}

// fakeHandle consumes a scripted sequence of Count results, repeating the
// last one once exhausted.
type fakeHandle struct {
	selector string
	script   []countResult
	calls    int
	visible  bool
	enabled  bool
}

func (h *fakeHandle) Selector() string { return h.selector }

func (h *fakeHandle) Count(context.Context) (int, error) {
	i := h.calls
	if i >= len(h.script) {
		i = len(h.script) - 1
	}
	h.calls++
	if i < 0 {
		return 0, nil
	}
	r := h.script[i]
	return r.n, r.err
}

func (h *fakeHandle) IsVisible(context.Context) (bool, error) { return h.visible, nil }
func (h *fakeHandle) IsEnabled(context.Context) (bool, error) { return h.enabled, nil }
func (h *fakeHandle) BoundingBox(context.Context) (*schemas.Box, error) {
	return nil, nil
}

type fakeFrame struct {
	html    string
	handles map[string]*fakeHandle
}

func (f *fakeFrame) Evaluate(_ context.Context, _ string, out any) error { return nil }
func (f *fakeFrame) WaitReady(context.Context) error                     { return nil }
func (f *fakeFrame) HTML(context.Context) (string, error)                { return f.html, nil }

func (f *fakeFrame) Query(selector string) schemas.LiveHandle {
	if h, ok := f.handles[selector]; ok {
		return h
	}
	return &fakeHandle{selector: selector}
}

type fakeExtractor struct {
	features *schemas.ElementFeatures
	err      error
	calls    int
}

func (e *fakeExtractor) ExtractFeatures(context.Context, schemas.LiveHandle) (*schemas.ElementFeatures, error) {
	e.calls++
	return e.features, e.err
}

type stubIdentifier struct{ selector string }

func (s stubIdentifier) Identify(context.Context, string, string) (string, error) {
	return s.selector, nil
}

func resolverConfig() *config.Config {
	return &config.Config{
		ResolverCfg: config.ResolverConfig{MaxAttempts: 3, RetryDelay: time.Millisecond},
	}
}

func TestResolveDirectMatch(t *testing.T) {
	frame := &fakeFrame{handles: map[string]*fakeHandle{
		"#save-btn": {script: []countResult{{n: 1}}, visible: true, enabled: true},
	}}
	extractor := &fakeExtractor{features: &schemas.ElementFeatures{Text: "Save"}}
	r := New(resolverConfig(), frame, extractor, nil, zap.NewNop())

	desc := schemas.ElementDescriptor{
		Name:         "save",
		LocatorType:  schemas.LocatorID,
		LocatorValue: "save-btn",
	}
	res, err := r.Resolve(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, "#save-btn", res.Selector)
	assert.Nil(t, res.Healed)

	// The snapshot must be cached for future healing.
	assert.Equal(t, 1, extractor.calls)
	require.NotNil(t, r.Features("save"))
	assert.Equal(t, "Save", r.Features("save").Text)
}

func TestResolveRetriesTransientFailures(t *testing.T) {
	frame := &fakeFrame{handles: map[string]*fakeHandle{
		"#save-btn": {
			script: []countResult{
				{err: errors.New("Execution context was destroyed")},
				{n: 1},
			},
			visible: true,
			enabled: true,
		},
	}}
	r := New(resolverConfig(), frame, &fakeExtractor{}, nil, zap.NewNop())

	desc := schemas.ElementDescriptor{
		Name: "save", LocatorType: schemas.LocatorID, LocatorValue: "save-btn",
	}
	res, err := r.Resolve(context.Background(), desc)
	require.NoError(t, err)
	assert.Equal(t, "#save-btn", res.Selector)
}

func TestResolveFailsFastOnUnexpectedError(t *testing.T) {
	frame := &fakeFrame{handles: map[string]*fakeHandle{
		"#save-btn": {script: []countResult{{err: errors.New("protocol violation")}}},
	}}
	r := New(resolverConfig(), frame, &fakeExtractor{}, nil, zap.NewNop())

	desc := schemas.ElementDescriptor{
		Name: "save", LocatorType: schemas.LocatorID, LocatorValue: "save-btn",
	}
	_, err := r.Resolve(context.Background(), desc)
	require.Error(t, err)
	assert.ErrorContains(t, err, "protocol violation")
	assert.Equal(t, 1, frame.handles["#save-btn"].calls, "unexpected errors must not be retried")
}

func TestResolveExhaustsAttempts(t *testing.T) {
	frame := &fakeFrame{handles: map[string]*fakeHandle{}}
	r := New(resolverConfig(), frame, &fakeExtractor{}, nil, zap.NewNop())

	desc := schemas.ElementDescriptor{
		Name: "gone", LocatorType: schemas.LocatorID, LocatorValue: "gone",
	}
	_, err := r.Resolve(context.Background(), desc)
	require.Error(t, err)
	assert.ErrorContains(t, err, "after 3 attempts")
}

func TestResolveHealsThroughDescription(t *testing.T) {
	// The declared locator matches nothing, but the element carries a
	// description the AI fallback can work from.
	frame := &fakeFrame{
		html: "<html><body><button id='recovered'>Pay</button></body></html>",
		handles: map[string]*fakeHandle{
			"#recovered": {script: []countResult{{n: 1}}, visible: true, enabled: true},
		},
	}
	cfg := resolverConfig()
	cfg.HealingCfg = config.HealingConfig{Enabled: true, ConfidenceThreshold: 0.7, AIEnabled: true}
	orch := healing.NewOrchestrator(cfg, frame, stubIdentifier{selector: "#recovered"}, zap.NewNop())
	r := New(cfg, frame, &fakeExtractor{features: &schemas.ElementFeatures{}}, orch, zap.NewNop())

	desc := schemas.ElementDescriptor{
		Name:         "pay",
		Description:  "the payment button",
		LocatorType:  schemas.LocatorID,
		LocatorValue: "pay-old",
	}
	res, err := r.Resolve(context.Background(), desc)
	require.NoError(t, err)
	require.NotNil(t, res.Healed)
	assert.Equal(t, "ai-identification", res.Healed.Strategy)
	assert.Equal(t, "#recovered", res.Selector)
}

func TestResolveSkipsHealingWithoutHistory(t *testing.T) {
	// Never resolved, no description: there is nothing to heal from, so the
	// orchestrator must not even capture a snapshot.
	frame := &fakeFrame{handles: map[string]*fakeHandle{}}
	cfg := resolverConfig()
	cfg.HealingCfg = config.HealingConfig{Enabled: true, ConfidenceThreshold: 0.7}
	orch := healing.NewOrchestrator(cfg, frame, nil, zap.NewNop())
	r := New(cfg, frame, &fakeExtractor{}, orch, zap.NewNop())

	desc := schemas.ElementDescriptor{
		Name: "gone", LocatorType: schemas.LocatorID, LocatorValue: "gone",
	}
	_, err := r.Resolve(context.Background(), desc)
	assert.Error(t, err)
}

func TestResolveHonorsCancellationBetweenAttempts(t *testing.T) {
	frame := &fakeFrame{handles: map[string]*fakeHandle{}}
	r := New(resolverConfig(), frame, &fakeExtractor{}, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	desc := schemas.ElementDescriptor{
		Name: "gone", LocatorType: schemas.LocatorID, LocatorValue: "gone",
	}
	_, err := r.Resolve(ctx, desc)
	assert.ErrorIs(t, err, context.Canceled)
}
