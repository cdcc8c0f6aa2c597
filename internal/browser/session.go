// File: internal/browser/session.go
// Description: Chromedp-backed browser session. The session owns the
// allocator and tab contexts and exposes the ActionExecutor surface the rest
// of the framework runs CDP actions through.
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/internal/config"
)

// ActionExecutor executes browser actions, abstracting chromedp from the
// components that need browser operations without coupling to the Session.
type ActionExecutor interface {
	// RunActions executes actions within the given operational context,
	// combined with the long-lived session context carrying the CDP target.
	RunActions(ctx context.Context, actions ...chromedp.Action) error

	// RunBackgroundActions executes actions in a detached context so they
	// survive cancellation of the operational context. Used for work that
	// must finish after its trigger completed, e.g. fetching a response body.
	RunBackgroundActions(ctx context.Context, actions ...chromedp.Action) error
}

// Session is one browser tab plus its allocator.
type Session struct {
	logger *zap.Logger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	closeOnce sync.Once
}

var _ ActionExecutor = (*Session)(nil)

// NewSession starts a browser and opens a tab according to cfg.
func NewSession(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !cfg.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.DisableCache {
		opts = append(opts, chromedp.Flag("disable-application-cache", true))
	}
	if cfg.IgnoreTLSErrors {
		opts = append(opts, chromedp.Flag("ignore-certificate-errors", true))
	}
	if w, h := cfg.Viewport["width"], cfg.Viewport["height"]; w > 0 && h > 0 {
		opts = append(opts, chromedp.WindowSize(w, h))
	}
	for _, arg := range cfg.Args {
		opts = append(opts, chromedp.Flag(arg, true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		logger:      logger.Named("session"),
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
	}

	// Touch the tab so the browser process starts eagerly; a dead binary
	// should fail session construction, not the first test step.
	if err := chromedp.Run(tabCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}
	s.logger.Debug("Browser session started.")
	return s, nil
}

// TabContext returns the chromedp tab context for event listeners.
func (s *Session) TabContext() context.Context { return s.tabCtx }

// Navigate loads a URL and waits for the document to become ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.RunActions(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// RunActions implements ActionExecutor. The operational context bounds the
// work; the tab context carries the CDP target.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := mergeContexts(s.tabCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// RunBackgroundActions implements ActionExecutor. Only the passed context
// (typically carrying its own timeout) bounds the work; cancellation of the
// operational flow that spawned it does not propagate.
func (s *Session) RunBackgroundActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := mergeContexts(s.tabCtx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Close tears down the tab and the browser process. Safe to call repeatedly.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.tabCancel()
		s.allocCancel()
		s.logger.Debug("Browser session closed.")
	})
}

// mergeContexts derives a context from the tab context that is additionally
// cancelled when the operational context ends.
func mergeContexts(tab, op context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(tab)
	stop := context.AfterFunc(op, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
