// File: internal/browser/routing.go
// Description: Adapter between the CDP fetch domain and the provider-neutral
// RoutingContext contract. The browser exposes exactly one interception hook
// per page; everything upstream composes through rule tables, never by
// registering a second hook here.
package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// routeActionTimeout bounds each individual fetch-domain command. Paused
// requests the browser has already discarded would otherwise hang forever.
const routeActionTimeout = 30 * time.Second

// PausedHandler receives every paused request/response event.
type PausedHandler func(ctx context.Context, pr *schemas.PausedRequest)

// Router implements schemas.RoutingContext over the fetch domain.
type Router struct {
	executor ActionExecutor
	logger   *zap.Logger
}

var _ schemas.RoutingContext = (*Router)(nil)

// NewRouter creates the routing adapter.
func NewRouter(executor ActionExecutor, logger *zap.Logger) *Router {
	return &Router{executor: executor, logger: logger.Named("router")}
}

// EnableInterception installs the single global fetch hook on the tab and
// dispatches every paused event to handler. Handlers run on their own
// goroutine per event because fetch commands issued from inside a listener
// callback would deadlock the CDP message loop.
func (r *Router) EnableInterception(tabCtx context.Context, handler PausedHandler) error {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		paused, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		pr := convertPaused(paused)
		go handler(tabCtx, pr)
	})

	patterns := []*fetch.RequestPattern{
		{URLPattern: "*", RequestStage: fetch.RequestStageRequest},
		{URLPattern: "*", RequestStage: fetch.RequestStageResponse},
	}
	err := r.executor.RunActions(tabCtx,
		network.Enable(),
		fetch.Enable().WithPatterns(patterns),
	)
	if err != nil {
		return fmt.Errorf("failed to enable request interception: %w", err)
	}
	r.logger.Debug("Request interception enabled.")
	return nil
}

// DisableInterception removes the fetch hook, letting traffic flow untouched.
func (r *Router) DisableInterception(ctx context.Context) error {
	if err := r.run(ctx, fetch.Disable()); err != nil {
		return fmt.Errorf("failed to disable request interception: %w", err)
	}
	return nil
}

func (r *Router) ContinueRequest(ctx context.Context, id string) error {
	return r.run(ctx, fetch.ContinueRequest(fetch.RequestID(id)))
}

func (r *Router) ContinueResponse(ctx context.Context, id string) error {
	return r.run(ctx, fetch.ContinueResponse(fetch.RequestID(id)))
}

func (r *Router) ContinueWithOverrides(ctx context.Context, id string, url, method string, headers map[string]string, postData []byte) error {
	p := fetch.ContinueRequest(fetch.RequestID(id))
	if url != "" {
		p = p.WithURL(url)
	}
	if method != "" {
		p = p.WithMethod(method)
	}
	if len(headers) > 0 {
		p = p.WithHeaders(toHeaderEntries(headers))
	}
	if postData != nil {
		p = p.WithPostData(base64.StdEncoding.EncodeToString(postData))
	}
	return r.run(ctx, p)
}

func (r *Router) Fulfill(ctx context.Context, id string, status int, headers map[string]string, body []byte) error {
	p := fetch.FulfillRequest(fetch.RequestID(id), int64(status))
	if len(headers) > 0 {
		p = p.WithResponseHeaders(toHeaderEntries(headers))
	}
	if len(body) > 0 {
		p = p.WithBody(base64.StdEncoding.EncodeToString(body))
	}
	return r.run(ctx, p)
}

func (r *Router) Fail(ctx context.Context, id string) error {
	return r.run(ctx, fetch.FailRequest(fetch.RequestID(id), network.ErrorReasonFailed))
}

func (r *Router) FetchResponseBody(ctx context.Context, id string) ([]byte, error) {
	var body []byte
	err := r.runAction(ctx, chromedp.ActionFunc(func(c context.Context) error {
		var err error
		body, err = fetch.GetResponseBody(fetch.RequestID(id)).Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch response body for request %s: %w", id, err)
	}
	return body, nil
}

func (r *Router) run(ctx context.Context, p chromedp.Action) error {
	return r.runAction(ctx, p)
}

// runAction executes a routing command detached from the caller's lifetime:
// a paused request must be resumed or failed even when the operation that
// triggered it was cancelled, or the page hangs on that request.
func (r *Router) runAction(ctx context.Context, action chromedp.Action) error {
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), routeActionTimeout)
	defer cancel()
	return r.executor.RunBackgroundActions(opCtx, action)
}

func convertPaused(ev *fetch.EventRequestPaused) *schemas.PausedRequest {
	pr := &schemas.PausedRequest{
		ID:           string(ev.RequestID),
		URL:          ev.Request.URL,
		Method:       ev.Request.Method,
		ResourceType: string(ev.ResourceType),
		Headers:      flattenHeaders(ev.Request.Headers),
	}

	if len(ev.Request.PostDataEntries) > 0 {
		var post []byte
		for _, entry := range ev.Request.PostDataEntries {
			if decoded, err := base64.StdEncoding.DecodeString(entry.Bytes); err == nil {
				post = append(post, decoded...)
			} else {
				post = append(post, entry.Bytes...)
			}
		}
		pr.PostData = post
	}

	// A paused event carrying a status code (or headers) is the response
	// stage of the same request.
	if ev.ResponseStatusCode != 0 || len(ev.ResponseHeaders) > 0 {
		pr.IsResponse = true
		pr.ResponseStatus = int(ev.ResponseStatusCode)
		pr.ResponseHeaders = make(map[string]string, len(ev.ResponseHeaders))
		for _, h := range ev.ResponseHeaders {
			pr.ResponseHeaders[h.Name] = h.Value
		}
	}
	return pr
}

func flattenHeaders(h network.Headers) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func toHeaderEntries(h map[string]string) []*fetch.HeaderEntry {
	entries := make([]*fetch.HeaderEntry, 0, len(h))
	for k, v := range h {
		entries = append(entries, &fetch.HeaderEntry{Name: k, Value: v})
	}
	return entries
}
