// File: internal/healing/fakes_test.go
package healing

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// fakeHandle answers validation queries from canned state.
type fakeHandle struct {
	selector string
	count    int
	visible  bool
	enabled  bool
	countErr error
}

func (h *fakeHandle) Selector() string                             { return h.selector }
func (h *fakeHandle) Count(context.Context) (int, error)           { return h.count, h.countErr }
func (h *fakeHandle) IsVisible(context.Context) (bool, error)      { return h.visible, nil }
func (h *fakeHandle) IsEnabled(context.Context) (bool, error)      { return h.enabled, nil }
func (h *fakeHandle) BoundingBox(context.Context) (*schemas.Box, error) {
	return nil, nil
}

// fakeFrame is a schemas.FrameSession answering from fixtures. Query returns
// a passing handle for registered selectors and a zero-match handle for
// everything else. Evaluate unmarshals evalJSON into the output value.
type fakeFrame struct {
	html    string
	htmlErr error

	evalJSON string
	evalErr  error

	handles map[string]*fakeHandle
}

func (f *fakeFrame) Evaluate(_ context.Context, _ string, out any) error {
	if f.evalErr != nil {
		return f.evalErr
	}
	payload := f.evalJSON
	if payload == "" {
		payload = "[]"
	}
	return json.Unmarshal([]byte(payload), out)
}

func (f *fakeFrame) WaitReady(context.Context) error { return nil }

func (f *fakeFrame) HTML(context.Context) (string, error) { return f.html, f.htmlErr }

func (f *fakeFrame) Query(selector string) schemas.LiveHandle {
	if h, ok := f.handles[selector]; ok {
		return h
	}
	return &fakeHandle{selector: selector}
}

// frameMatching builds a frame where exactly the given selectors resolve to
// one visible, enabled node.
func frameMatching(selectors ...string) *fakeFrame {
	handles := make(map[string]*fakeHandle, len(selectors))
	for _, s := range selectors {
		handles[s] = &fakeHandle{selector: s, count: 1, visible: true, enabled: true}
	}
	return &fakeFrame{handles: handles}
}

// stubCalc scores every pair with a fixed value.
type stubCalc struct{ score float64 }

func (s stubCalc) Calculate(a, b *schemas.ElementFeatures) float64 { return s.score }

// stubIdentifier records the description it was asked about.
type stubIdentifier struct {
	selector       string
	err            error
	gotDescription string
}

func (s *stubIdentifier) Identify(_ context.Context, description, _ string) (string, error) {
	s.gotDescription = description
	if s.err != nil {
		return "", s.err
	}
	return s.selector, nil
}

func mustSnapshot(t *testing.T, pageHTML string) *Snapshot {
	t.Helper()
	snap, err := NewSnapshot(pageHTML)
	require.NoError(t, err)
	return snap
}

func newRequest(frame *fakeFrame, snap *Snapshot, geom GeometryFunc, desc schemas.ElementDescriptor, features *schemas.ElementFeatures) *HealRequest {
	return &HealRequest{
		Descriptor: desc,
		Features:   features,
		Live: &LiveContext{
			Frame:    frame,
			Snapshot: snap,
			Geometry: geom,
		},
	}
}
