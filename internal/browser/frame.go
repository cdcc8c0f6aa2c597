// File: internal/browser/frame.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// Frame implements schemas.FrameSession on top of an ActionExecutor.
type Frame struct {
	executor ActionExecutor
}

var _ schemas.FrameSession = (*Frame)(nil)

// NewFrame wraps an executor as a frame session.
func NewFrame(executor ActionExecutor) *Frame {
	return &Frame{executor: executor}
}

// Evaluate runs a JavaScript expression and unmarshals the result into out.
func (f *Frame) Evaluate(ctx context.Context, expression string, out any) error {
	var raw json.RawMessage
	err := f.executor.RunActions(ctx,
		chromedp.Evaluate(expression, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithAwaitPromise(true).WithSilent(true)
		}),
	)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	if out == nil || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// WaitReady blocks until document.readyState is interactive or complete.
func (f *Frame) WaitReady(ctx context.Context) error {
	return f.executor.RunActions(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return chromedp.Poll(
			`document.readyState === 'interactive' || document.readyState === 'complete'`,
			nil,
		).Do(c)
	}))
}

// HTML returns the serialized outer HTML of the document element.
func (f *Frame) HTML(ctx context.Context) (string, error) {
	var html string
	if err := f.Evaluate(ctx, `document.documentElement.outerHTML`, &html); err != nil {
		return "", fmt.Errorf("failed to capture page HTML: %w", err)
	}
	return html, nil
}

// Query constructs a live handle bound to this frame's executor.
func (f *Frame) Query(selector string) schemas.LiveHandle {
	return NewHandle(selector, f.executor)
}
