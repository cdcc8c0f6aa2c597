// File: api/schemas/interfaces.go
// Description: Canonical capability contracts for the framework. These live at
// the API level so internal packages can depend on them without import cycles;
// adapters over the concrete browser-automation library implement them in
// internal/browser.
package schemas

import "context"

// LiveHandle is a binding between a selector expression and a live query
// capability on the current page. Implementations re-query on every call; a
// handle is cheap to construct and never caches node references.
type LiveHandle interface {
	// Selector returns the selector expression this handle is bound to.
	Selector() string

	// Count returns how many nodes the selector currently matches.
	Count(ctx context.Context) (int, error)

	// IsVisible reports whether the first matched node is currently visible
	// (rendered, non-zero size, not display:none/visibility:hidden).
	IsVisible(ctx context.Context) (bool, error)

	// IsEnabled reports whether the first matched node is enabled (not
	// carrying the disabled attribute or aria-disabled="true").
	IsEnabled(ctx context.Context) (bool, error)

	// BoundingBox returns the viewport-relative box of the first matched
	// node, or an error if the node is detached or has no layout.
	BoundingBox(ctx context.Context) (*Box, error)
}

// FrameSession exposes the evaluation surface of one frame. It is the only
// path through which the core reads page state.
type FrameSession interface {
	// Evaluate runs a JavaScript expression and unmarshals its result into out.
	Evaluate(ctx context.Context, expression string, out any) error

	// WaitReady blocks until the document reaches a stable ready state.
	WaitReady(ctx context.Context) error

	// HTML returns the serialized outer HTML of the document element.
	HTML(ctx context.Context) (string, error)

	// Query constructs a live handle for a selector. Selectors starting with
	// "/", "//" or "(" are treated as XPath, everything else as CSS.
	Query(selector string) LiveHandle
}

// ElementFeatureExtractor captures a feature snapshot from a live handle.
type ElementFeatureExtractor interface {
	ExtractFeatures(ctx context.Context, handle LiveHandle) (*ElementFeatures, error)
}

// SimilarityCalculator scores how alike two feature snapshots are, in [0,1].
type SimilarityCalculator interface {
	Calculate(a, b *ElementFeatures) float64
}

// ElementIdentifier is the opaque AI element-identification capability. Given
// a natural-language description and the current page HTML it returns a
// selector expression, or an error when it cannot identify anything.
type ElementIdentifier interface {
	Identify(ctx context.Context, description, pageHTML string) (string, error)
}

// PausedRequest is a provider-neutral view of one intercepted request event.
// IsResponse marks the response stage of the same request.
type PausedRequest struct {
	ID           string
	URL          string
	Method       string
	ResourceType string
	Headers      map[string]string
	PostData     []byte

	IsResponse      bool
	ResponseStatus  int
	ResponseHeaders map[string]string
}

// RoutingContext is the provider's single routing hook, abstracted. All five
// interception components compose through this; none registers its own hook.
type RoutingContext interface {
	// ContinueRequest lets a request-stage event proceed unmodified.
	ContinueRequest(ctx context.Context, id string) error

	// ContinueResponse lets a response-stage event through to the page.
	ContinueResponse(ctx context.Context, id string) error

	// ContinueWithOverrides proceeds with a rewritten URL, method, headers or
	// post data. Nil/empty fields keep the original values.
	ContinueWithOverrides(ctx context.Context, id string, url, method string, headers map[string]string, postData []byte) error

	// Fulfill short-circuits the request with a synthetic response.
	Fulfill(ctx context.Context, id string, status int, headers map[string]string, body []byte) error

	// Fail aborts the request with a generic failure.
	Fail(ctx context.Context, id string) error

	// FetchResponseBody retrieves the real response body at the response
	// stage, before the page sees it.
	FetchResponseBody(ctx context.Context, id string) ([]byte, error)
}
