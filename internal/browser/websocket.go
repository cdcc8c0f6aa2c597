// File: internal/browser/websocket.go
// Description: WebSocket tracking from CDP network events. Tracks the state
// machine of every connection the page opens, records frames in a bounded
// ring, and drives an optional reconnect policy on unexpected closes.
package browser

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
	"github.com/xkilldash9x/remedy/internal/config"
)

// frameRingCap bounds the per-connection frame buffer. Metrics counters keep
// counting after the ring trims.
const frameRingCap = 100

// ReconnectFunc re-establishes a page-side connection, typically by
// evaluating application JavaScript. Invoked by the tracker's reconnect
// policy, never concurrently for the same URL.
type ReconnectFunc func(ctx context.Context, url string) error

type wsConnection struct {
	url       string
	state     schemas.WebSocketState
	metrics   schemas.WebSocketMetrics
	frames    []schemas.WebSocketFrame
	wantClose bool
}

// WebSocketTracker observes every WebSocket the page opens.
type WebSocketTracker struct {
	logger        *zap.Logger
	maxReconnects int
	backoff       time.Duration
	reconnect     ReconnectFunc

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	conns        map[network.RequestID]*wsConnection
	waiters      []*wsWaiter
	frameWaiters []*wsFrameWaiter
}

type wsWaiter struct {
	urlSubstring string
	state        schemas.WebSocketState
	ch           chan struct{}
}

type wsFrameWaiter struct {
	urlSubstring string
	matcher      func(schemas.WebSocketFrame) bool
	ch           chan schemas.WebSocketFrame
}

// NewWebSocketTracker creates a tracker. The reconnect function may be nil to
// observe only.
func NewWebSocketTracker(ctx context.Context, cfg config.NetworkConfig, reconnect ReconnectFunc, logger *zap.Logger) *WebSocketTracker {
	tCtx, tCancel := context.WithCancel(ctx)
	return &WebSocketTracker{
		logger:        logger.Named("websocket"),
		maxReconnects: cfg.MaxReconnectAttempts,
		backoff:       cfg.ReconnectBackoff,
		reconnect:     reconnect,
		ctx:           tCtx,
		cancel:        tCancel,
		conns:         make(map[network.RequestID]*wsConnection),
	}
}

// Start attaches the event listeners to the tab context.
func (t *WebSocketTracker) Start(tabCtx context.Context) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		select {
		case <-t.ctx.Done():
			return
		default:
		}

		switch ev := ev.(type) {
		case *network.EventWebSocketCreated:
			t.handleCreated(ev)
		case *network.EventWebSocketHandshakeResponseReceived:
			t.transition(ev.RequestID, schemas.WSOpen)
		case *network.EventWebSocketFrameSent:
			t.handleFrame(ev.RequestID, true, ev.Response)
		case *network.EventWebSocketFrameReceived:
			t.handleFrame(ev.RequestID, false, ev.Response)
		case *network.EventWebSocketFrameError:
			t.handleFrameError(ev)
		case *network.EventWebSocketClosed:
			t.handleClosed(ev)
		}
	})
}

// Stop detaches the tracker.
func (t *WebSocketTracker) Stop() { t.cancel() }

// MarkClosing records that the test itself is closing a connection, so the
// upcoming close event does not trigger the reconnect policy.
func (t *WebSocketTracker) MarkClosing(urlSubstring string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.conns {
		if strings.Contains(c.url, urlSubstring) && c.state == schemas.WSOpen {
			c.state = schemas.WSClosing
			c.wantClose = true
		}
	}
}

// Connections returns a snapshot of every tracked connection.
func (t *WebSocketTracker) Connections() []schemas.WebSocketConnection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]schemas.WebSocketConnection, 0, len(t.conns))
	for _, c := range t.conns {
		out = append(out, schemas.WebSocketConnection{URL: c.url, State: c.state, Metrics: c.metrics})
	}
	return out
}

// Frames returns the buffered frames for connections whose URL contains the
// substring, oldest first.
func (t *WebSocketTracker) Frames(urlSubstring string) []schemas.WebSocketFrame {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []schemas.WebSocketFrame
	for _, c := range t.conns {
		if strings.Contains(c.url, urlSubstring) {
			out = append(out, c.frames...)
		}
	}
	return out
}

// WaitForState blocks until a connection matching the URL substring reaches
// the given state, or the context ends.
func (t *WebSocketTracker) WaitForState(ctx context.Context, urlSubstring string, state schemas.WebSocketState) error {
	t.mu.Lock()
	for _, c := range t.conns {
		if strings.Contains(c.url, urlSubstring) && c.state == state {
			t.mu.Unlock()
			return nil
		}
	}
	w := &wsWaiter{urlSubstring: urlSubstring, state: state, ch: make(chan struct{})}
	t.waiters = append(t.waiters, w)
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		t.dropWaiter(w)
		return ctx.Err()
	case <-w.ch:
		return nil
	}
}

// -- Event handlers --

func (t *WebSocketTracker) handleCreated(ev *network.EventWebSocketCreated) {
	t.mu.Lock()
	t.conns[ev.RequestID] = &wsConnection{url: ev.URL, state: schemas.WSConnecting}
	t.notifyLocked(ev.URL, schemas.WSConnecting)
	t.mu.Unlock()
	t.logger.Debug("WebSocket opening.", zap.String("url", ev.URL))
}

func (t *WebSocketTracker) transition(id network.RequestID, state schemas.WebSocketState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[id]
	if !ok {
		return
	}
	c.state = state
	t.notifyLocked(c.url, state)
}

func (t *WebSocketTracker) handleFrame(id network.RequestID, sent bool, frame *network.WebSocketFrame) {
	if frame == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[id]
	if !ok {
		return
	}
	if sent {
		c.metrics.FramesSent++
		c.metrics.BytesSent += int64(len(frame.PayloadData))
	} else {
		c.metrics.FramesReceived++
		c.metrics.BytesReceived += int64(len(frame.PayloadData))
	}
	recorded := schemas.WebSocketFrame{
		Sent:      sent,
		Opcode:    int64(frame.Opcode),
		Payload:   frame.PayloadData,
		Timestamp: time.Now(),
	}
	c.frames = append(c.frames, recorded)
	if len(c.frames) > frameRingCap {
		c.frames = c.frames[len(c.frames)-frameRingCap:]
	}

	remaining := t.frameWaiters[:0]
	for _, w := range t.frameWaiters {
		if strings.Contains(c.url, w.urlSubstring) && w.matcher(recorded) {
			w.ch <- recorded
			close(w.ch)
			continue
		}
		remaining = append(remaining, w)
	}
	t.frameWaiters = remaining
}

// WaitForMessage blocks until a frame matching the predicate arrives on a
// connection whose URL contains the substring, or the context ends. Frames
// already buffered satisfy it immediately.
func (t *WebSocketTracker) WaitForMessage(ctx context.Context, urlSubstring string, matcher func(schemas.WebSocketFrame) bool) (schemas.WebSocketFrame, error) {
	t.mu.Lock()
	for _, c := range t.conns {
		if !strings.Contains(c.url, urlSubstring) {
			continue
		}
		for _, f := range c.frames {
			if matcher(f) {
				t.mu.Unlock()
				return f, nil
			}
		}
	}
	w := &wsFrameWaiter{urlSubstring: urlSubstring, matcher: matcher, ch: make(chan schemas.WebSocketFrame, 1)}
	t.frameWaiters = append(t.frameWaiters, w)
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		t.dropFrameWaiter(w)
		return schemas.WebSocketFrame{}, ctx.Err()
	case f := <-w.ch:
		return f, nil
	}
}

func (t *WebSocketTracker) dropFrameWaiter(w *wsFrameWaiter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, existing := range t.frameWaiters {
		if existing == w {
			t.frameWaiters = append(t.frameWaiters[:i], t.frameWaiters[i+1:]...)
			return
		}
	}
}

func (t *WebSocketTracker) handleFrameError(ev *network.EventWebSocketFrameError) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.conns[ev.RequestID]; ok {
		c.metrics.Errors++
		t.logger.Warn("WebSocket frame error.", zap.String("url", c.url), zap.String("error", ev.ErrorMessage))
	}
}

func (t *WebSocketTracker) handleClosed(ev *network.EventWebSocketClosed) {
	t.mu.Lock()
	c, ok := t.conns[ev.RequestID]
	if !ok {
		t.mu.Unlock()
		return
	}
	unexpected := !c.wantClose && c.state == schemas.WSOpen
	c.state = schemas.WSClosed
	t.notifyLocked(c.url, schemas.WSClosed)
	url := c.url
	attempts := c.metrics.ReconnectAttempts
	t.mu.Unlock()

	t.logger.Debug("WebSocket closed.", zap.String("url", url), zap.Bool("unexpected", unexpected))
	if unexpected && t.reconnect != nil && attempts < t.maxReconnects {
		go t.runReconnect(ev.RequestID, url)
	}
}

// runReconnect retries the page-side reconnect with a fixed backoff until it
// succeeds or the attempt budget is spent.
func (t *WebSocketTracker) runReconnect(id network.RequestID, url string) {
	for {
		t.mu.Lock()
		c, ok := t.conns[id]
		if !ok || c.metrics.ReconnectAttempts >= t.maxReconnects {
			t.mu.Unlock()
			return
		}
		c.metrics.ReconnectAttempts++
		attempt := c.metrics.ReconnectAttempts
		t.mu.Unlock()

		select {
		case <-t.ctx.Done():
			return
		case <-time.After(t.backoff):
		}

		t.logger.Info("Attempting WebSocket reconnect.", zap.String("url", url), zap.Int("attempt", attempt))
		if err := t.reconnect(t.ctx, url); err == nil {
			return
		} else {
			t.logger.Warn("WebSocket reconnect failed.", zap.String("url", url), zap.Int("attempt", attempt), zap.Error(err))
		}
	}
}

// notifyLocked wakes waiters satisfied by a state change. Caller holds mu.
func (t *WebSocketTracker) notifyLocked(url string, state schemas.WebSocketState) {
	remaining := t.waiters[:0]
	for _, w := range t.waiters {
		if w.state == state && strings.Contains(url, w.urlSubstring) {
			close(w.ch)
			continue
		}
		remaining = append(remaining, w)
	}
	t.waiters = remaining
}

func (t *WebSocketTracker) dropWaiter(w *wsWaiter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, existing := range t.waiters {
		if existing == w {
			t.waiters = append(t.waiters[:i], t.waiters[i+1:]...)
			return
		}
	}
}
