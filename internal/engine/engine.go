// File: internal/engine/engine.go
// Description: Top-level wiring. The engine owns the browser session and
// assembles resolution, healing, interception, recording and evidence into
// one surface the scenario runner and embedding code drive.
package engine

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
	"github.com/xkilldash9x/remedy/internal/browser"
	"github.com/xkilldash9x/remedy/internal/config"
	"github.com/xkilldash9x/remedy/internal/evidence"
	"github.com/xkilldash9x/remedy/internal/healing"
	"github.com/xkilldash9x/remedy/internal/healing/aiident"
	"github.com/xkilldash9x/remedy/internal/netintercept"
	"github.com/xkilldash9x/remedy/internal/resolver"
)

// Engine is one browser session with the full framework assembled around it.
type Engine struct {
	cfg    config.Interface
	logger *zap.Logger

	session  *browser.Session
	frame    *browser.Frame
	router   *browser.Router
	resolver *resolver.SmartElementResolver

	interceptor *netintercept.Interceptor
	mocker      *netintercept.RequestMocker
	modifier    *netintercept.ResponseModifier
	throttler   *netintercept.Throttler
	recorder    *netintercept.Recorder
	har         *browser.HARRecorder
	websockets  *browser.WebSocketTracker
	evidence    *evidence.Store
}

// New starts a browser and wires every subsystem. The engine owns the
// session; Close tears everything down.
func New(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*Engine, error) {
	session, err := browser.NewSession(ctx, cfg.Browser(), logger)
	if err != nil {
		return nil, err
	}

	frame := browser.NewFrame(session)
	extractor := browser.NewFeatureExtractor(frame, logger)

	var identifier schemas.ElementIdentifier
	if cfg.Healing().AIEnabled {
		identifier, err = aiident.NewGeminiIdentifier(cfg.AI(), logger)
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("configuring AI identification: %w", err)
		}
	}

	orchestrator := healing.NewOrchestrator(cfg, frame, identifier, logger)
	res := resolver.New(cfg, frame, extractor, orchestrator, logger)

	recorder := netintercept.NewRecorder(cfg.Network().RecordBufferSize, logger)
	router := browser.NewRouter(session, logger)
	interceptor := netintercept.NewInterceptor(router, recorder, logger)

	harRec := browser.NewHARRecorder(ctx, session, cfg.Network().CaptureResponseBodies, logger)
	harRec.Start(session.TabContext())

	wsTracker := browser.NewWebSocketTracker(ctx, cfg.Network(), nil, logger)
	wsTracker.Start(session.TabContext())

	store, err := evidence.NewStore(cfg.Evidence(), logger)
	if err != nil {
		session.Close()
		return nil, err
	}

	return &Engine{
		cfg:         cfg,
		logger:      logger.Named("engine"),
		session:     session,
		frame:       frame,
		router:      router,
		resolver:    res,
		interceptor: interceptor,
		mocker:      netintercept.NewRequestMocker(interceptor),
		modifier:    netintercept.NewResponseModifier(interceptor),
		throttler:   netintercept.NewThrottler(interceptor),
		recorder:    recorder,
		har:         harRec,
		websockets:  wsTracker,
		evidence:    store,
	}, nil
}

// EnableInterception turns on request routing through the interceptor. Until
// called, traffic flows untouched.
func (e *Engine) EnableInterception() error {
	return e.router.EnableInterception(e.session.TabContext(), func(ctx context.Context, pr *schemas.PausedRequest) {
		if err := e.interceptor.HandlePaused(ctx, pr); err != nil {
			e.logger.Error("Failed to route intercepted request.", zap.String("url", pr.URL), zap.Error(err))
		}
	})
}

// DisableInterception detaches the routing hook.
func (e *Engine) DisableInterception(ctx context.Context) error {
	return e.router.DisableInterception(ctx)
}

// Navigate loads a URL in the session tab.
func (e *Engine) Navigate(ctx context.Context, url string) error {
	return e.session.Navigate(ctx, url)
}

// Resolve locates an element, healing it if the declared locator is stale.
func (e *Engine) Resolve(ctx context.Context, desc schemas.ElementDescriptor) (*resolver.Resolution, error) {
	return e.resolver.Resolve(ctx, desc)
}

// Click resolves the element and clicks it.
func (e *Engine) Click(ctx context.Context, desc schemas.ElementDescriptor) (*resolver.Resolution, error) {
	r, err := e.Resolve(ctx, desc)
	if err != nil {
		return nil, err
	}
	if err := e.session.RunActions(ctx, chromedp.Click(r.Selector, queryOption(r.Selector))); err != nil {
		return nil, fmt.Errorf("clicking %q: %w", desc.Name, err)
	}
	return r, nil
}

// Fill resolves the element, clears it, and types the value.
func (e *Engine) Fill(ctx context.Context, desc schemas.ElementDescriptor, value string) (*resolver.Resolution, error) {
	r, err := e.Resolve(ctx, desc)
	if err != nil {
		return nil, err
	}
	opt := queryOption(r.Selector)
	if err := e.session.RunActions(ctx,
		chromedp.Clear(r.Selector, opt),
		chromedp.SendKeys(r.Selector, value, opt),
	); err != nil {
		return nil, fmt.Errorf("filling %q: %w", desc.Name, err)
	}
	return r, nil
}

// Text resolves the element and returns its visible text.
func (e *Engine) Text(ctx context.Context, desc schemas.ElementDescriptor) (string, *resolver.Resolution, error) {
	r, err := e.Resolve(ctx, desc)
	if err != nil {
		return "", nil, err
	}
	var text string
	if err := e.session.RunActions(ctx, chromedp.Text(r.Selector, &text, queryOption(r.Selector))); err != nil {
		return "", nil, fmt.Errorf("reading text of %q: %w", desc.Name, err)
	}
	return text, r, nil
}

// Frame returns the evaluation surface of the main frame.
func (e *Engine) Frame() schemas.FrameSession { return e.frame }

// Mocker returns the request mocker.
func (e *Engine) Mocker() *netintercept.RequestMocker { return e.mocker }

// Modifier returns the response modifier.
func (e *Engine) Modifier() *netintercept.ResponseModifier { return e.modifier }

// Throttler returns the bandwidth throttler.
func (e *Engine) Throttler() *netintercept.Throttler { return e.throttler }

// Interceptor returns the rule dispatcher for custom rules.
func (e *Engine) Interceptor() *netintercept.Interceptor { return e.interceptor }

// Recorder returns the traffic recorder.
func (e *Engine) Recorder() *netintercept.Recorder { return e.recorder }

// HAR returns the HAR recorder.
func (e *Engine) HAR() *browser.HARRecorder { return e.har }

// WebSockets returns the websocket tracker.
func (e *Engine) WebSockets() *browser.WebSocketTracker { return e.websockets }

// Evidence returns the artifact store for this run.
func (e *Engine) Evidence() *evidence.Store { return e.evidence }

// Close tears the trackers and the browser down.
func (e *Engine) Close() {
	e.websockets.Stop()
	e.session.Close()
}

func queryOption(selector string) chromedp.QueryOption {
	if browser.IsXPathSelector(selector) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}
