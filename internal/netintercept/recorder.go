// File: internal/netintercept/recorder.go
// Description: Bounded traffic recording. Each tracked pattern gets its own
// entry ring plus an independent counter, so call-count assertions stay
// accurate after the ring trims old traffic. Untracked queries fall back to
// the catch-all ring.
package netintercept

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// DefaultRecordBufferSize bounds each entry ring.
const DefaultRecordBufferSize = 100

type waiter struct {
	pattern schemas.URLPattern
	ch      chan schemas.NetworkEntry
}

type trackedSlot struct {
	pattern schemas.URLPattern
	entries []schemas.NetworkEntry
	count   int64
}

// Recorder captures network entries as the interceptor routes them.
type Recorder struct {
	logger *zap.Logger

	mu       sync.Mutex
	capacity int
	all      []schemas.NetworkEntry
	total    int64
	tracked  map[string]*trackedSlot
	waiters  []*waiter
}

// NewRecorder builds a recorder. Capacity <= 0 uses the default.
func NewRecorder(capacity int, logger *zap.Logger) *Recorder {
	if capacity <= 0 {
		capacity = DefaultRecordBufferSize
	}
	return &Recorder{
		logger:   logger.Named("recorder"),
		capacity: capacity,
		tracked:  make(map[string]*trackedSlot),
	}
}

// Track registers a pattern for independent recording. Counting starts at
// registration; earlier traffic is not retroactively counted.
func (r *Recorder) Track(pattern schemas.URLPattern) {
	key := patternKey(pattern)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tracked[key]; !ok {
		r.tracked[key] = &trackedSlot{pattern: pattern}
	}
}

// Record appends one entry to the catch-all ring and every matching tracked
// ring, then wakes any waiters the entry satisfies.
func (r *Recorder) Record(entry schemas.NetworkEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.all = appendRing(r.all, entry, r.capacity)
	r.total++

	req := entryAsRequest(entry)
	for _, slot := range r.tracked {
		if matches(slot.pattern, req) {
			slot.entries = appendRing(slot.entries, entry, r.capacity)
			slot.count++
		}
	}

	remaining := r.waiters[:0]
	for _, w := range r.waiters {
		if matches(w.pattern, req) {
			w.ch <- entry
			close(w.ch)
			continue
		}
		remaining = append(remaining, w)
	}
	r.waiters = remaining
}

// Total returns how many entries were ever recorded, trimmed or not.
func (r *Recorder) Total() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// GetRequestCount returns how many recorded entries match the pattern: the
// independent counter when tracked, otherwise a scan of the catch-all ring.
func (r *Recorder) GetRequestCount(pattern schemas.URLPattern) int64 {
	key := patternKey(pattern)
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot, ok := r.tracked[key]; ok {
		return slot.count
	}
	var n int64
	for _, e := range r.all {
		if matches(pattern, entryAsRequest(e)) {
			n++
		}
	}
	return n
}

// GetRecorded returns the buffered entries matching a pattern, oldest first.
func (r *Recorder) GetRecorded(pattern schemas.URLPattern) []schemas.NetworkEntry {
	key := patternKey(pattern)
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot, ok := r.tracked[key]; ok {
		out := make([]schemas.NetworkEntry, len(slot.entries))
		copy(out, slot.entries)
		return out
	}
	var out []schemas.NetworkEntry
	for _, e := range r.all {
		if matches(pattern, entryAsRequest(e)) {
			out = append(out, e)
		}
	}
	return out
}

// Clear drops all rings, counters and the total. Tracked patterns stay
// tracked.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = nil
	r.total = 0
	for _, slot := range r.tracked {
		slot.entries = nil
		slot.count = 0
	}
}

// WaitForRequest blocks until an entry matching the pattern is recorded, or
// the context ends. An entry already buffered satisfies it immediately.
func (r *Recorder) WaitForRequest(ctx context.Context, pattern schemas.URLPattern) (schemas.NetworkEntry, error) {
	r.mu.Lock()
	for _, e := range r.all {
		if matches(pattern, entryAsRequest(e)) {
			r.mu.Unlock()
			return e, nil
		}
	}
	w := &waiter{pattern: pattern, ch: make(chan schemas.NetworkEntry, 1)}
	r.waiters = append(r.waiters, w)
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		r.dropWaiter(w)
		return schemas.NetworkEntry{}, ctx.Err()
	case entry := <-w.ch:
		return entry, nil
	}
}

func (r *Recorder) dropWaiter(w *waiter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.waiters {
		if existing == w {
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			return
		}
	}
}

func appendRing(ring []schemas.NetworkEntry, entry schemas.NetworkEntry, capacity int) []schemas.NetworkEntry {
	ring = append(ring, entry)
	if len(ring) > capacity {
		ring = ring[len(ring)-capacity:]
	}
	return ring
}

// entryAsRequest adapts an entry to the shape the pattern matcher reads.
func entryAsRequest(e schemas.NetworkEntry) *schemas.PausedRequest {
	return &schemas.PausedRequest{
		URL:          e.URL,
		Method:       e.Method,
		ResourceType: e.ResourceType,
	}
}
