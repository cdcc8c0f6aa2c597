// File: internal/netintercept/recorder_test.go
package netintercept

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
)

func entryFor(url string) schemas.NetworkEntry {
	return schemas.NetworkEntry{
		URL:       url,
		Method:    "GET",
		StartedAt: time.Now(),
	}
}

func TestRecorderCountSurvivesRingTrim(t *testing.T) {
	r := NewRecorder(5, zap.NewNop())
	pattern := schemas.URLPattern{URL: "/api/poll"}
	r.Track(pattern)

	for n := 0; n < 12; n++ {
		r.Record(entryFor(fmt.Sprintf("https://x.test/api/poll?n=%d", n)))
	}

	// The ring holds only the newest five entries, but the counter keeps the
	// true total.
	assert.Equal(t, int64(12), r.GetRequestCount(pattern))
	entries := r.GetRecorded(pattern)
	require.Len(t, entries, 5)
	assert.Equal(t, "https://x.test/api/poll?n=7", entries[0].URL)
	assert.Equal(t, "https://x.test/api/poll?n=11", entries[4].URL)
	assert.Equal(t, int64(12), r.Total())
}

func TestRecorderUntrackedFallsBackToCatchAll(t *testing.T) {
	r := NewRecorder(10, zap.NewNop())

	r.Record(entryFor("https://x.test/api/users"))
	r.Record(entryFor("https://x.test/static/app.js"))

	assert.Equal(t, int64(1), r.GetRequestCount(schemas.URLPattern{URL: "/api/"}))
	assert.Len(t, r.GetRecorded(schemas.URLPattern{URL: "/static/"}), 1)
}

func TestRecorderTrackingStartsAtRegistration(t *testing.T) {
	r := NewRecorder(3, zap.NewNop())
	pattern := schemas.URLPattern{URL: "/api/"}

	// Earlier traffic pushed beyond the catch-all ring is gone; the tracked
	// counter only covers what it saw.
	for n := 0; n < 5; n++ {
		r.Record(entryFor("https://x.test/api/early"))
	}
	r.Track(pattern)
	r.Record(entryFor("https://x.test/api/late"))

	assert.Equal(t, int64(1), r.GetRequestCount(pattern))
}

func TestRecorderClearKeepsTracking(t *testing.T) {
	r := NewRecorder(10, zap.NewNop())
	pattern := schemas.URLPattern{URL: "/api/"}
	r.Track(pattern)

	r.Record(entryFor("https://x.test/api/a"))
	r.Clear()

	assert.Zero(t, r.Total())
	assert.Zero(t, r.GetRequestCount(pattern))

	r.Record(entryFor("https://x.test/api/b"))
	assert.Equal(t, int64(1), r.GetRequestCount(pattern), "the pattern stays tracked across Clear")
}

func TestWaitForRequestAlreadyBuffered(t *testing.T) {
	r := NewRecorder(10, zap.NewNop())
	r.Record(entryFor("https://x.test/api/users"))

	entry, err := r.WaitForRequest(context.Background(), schemas.URLPattern{URL: "/api/users"})
	require.NoError(t, err)
	assert.Equal(t, "https://x.test/api/users", entry.URL)
}

func TestWaitForRequestBlocksUntilRecorded(t *testing.T) {
	r := NewRecorder(10, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		entry, err := r.WaitForRequest(context.Background(), schemas.URLPattern{URL: "/api/orders"})
		assert.NoError(t, err)
		assert.Equal(t, "https://x.test/api/orders", entry.URL)
	}()

	// Unrelated traffic must not satisfy the waiter.
	r.Record(entryFor("https://x.test/api/users"))
	select {
	case <-done:
		t.Fatal("waiter woke on non-matching traffic")
	case <-time.After(10 * time.Millisecond):
	}

	r.Record(entryFor("https://x.test/api/orders"))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter never woke")
	}
}

func TestWaitForRequestHonorsContext(t *testing.T) {
	r := NewRecorder(10, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := r.WaitForRequest(ctx, schemas.URLPattern{URL: "/never"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
