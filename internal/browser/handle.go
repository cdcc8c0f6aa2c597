// File: internal/browser/handle.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// handle binds a selector to the live page through an ActionExecutor. It
// implements schemas.LiveHandle by re-querying on every call; no node
// references are cached.
type handle struct {
	selector string
	executor ActionExecutor
}

var _ schemas.LiveHandle = (*handle)(nil)

// NewHandle creates a live handle for a CSS or XPath selector.
func NewHandle(selector string, executor ActionExecutor) schemas.LiveHandle {
	return &handle{selector: selector, executor: executor}
}

func (h *handle) Selector() string { return h.selector }

// queryScript resolves the selector to a node list inside the page. XPath is
// recognized by its leading "/" or "(".
const queryScript = `
(function(sel) {
    if (sel.startsWith('/') || sel.startsWith('(')) {
        const it = document.evaluate(sel, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
        const nodes = [];
        for (let i = 0; i < it.snapshotLength; i++) nodes.push(it.snapshotItem(i));
        return nodes;
    }
    return Array.from(document.querySelectorAll(sel));
})`

func (h *handle) evaluate(ctx context.Context, body string, out any) error {
	script := fmt.Sprintf(`
        (function() {
            const nodes = %s(%s);
            %s
        })()`, queryScript, jsString(h.selector), body)

	var raw json.RawMessage
	err := h.executor.RunActions(ctx,
		chromedp.Evaluate(script, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithReturnByValue(true).WithSilent(true)
		}),
	)
	if err != nil {
		return err
	}
	if out == nil || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unexpected evaluation result %q: %w", string(raw), err)
	}
	return nil
}

func (h *handle) Count(ctx context.Context) (int, error) {
	var count int
	if err := h.evaluate(ctx, `return nodes.length;`, &count); err != nil {
		return 0, fmt.Errorf("counting matches for %q: %w", h.selector, err)
	}
	return count, nil
}

func (h *handle) IsVisible(ctx context.Context) (bool, error) {
	const body = `
        if (nodes.length === 0) return false;
        const node = nodes[0];
        const rect = node.getBoundingClientRect();
        const style = window.getComputedStyle(node);
        return rect.width > 0 && rect.height > 0 &&
            style.display !== 'none' && style.visibility !== 'hidden' && style.opacity !== '0';`
	var visible bool
	if err := h.evaluate(ctx, body, &visible); err != nil {
		return false, fmt.Errorf("visibility check for %q: %w", h.selector, err)
	}
	return visible, nil
}

func (h *handle) IsEnabled(ctx context.Context) (bool, error) {
	const body = `
        if (nodes.length === 0) return false;
        const node = nodes[0];
        if (node.disabled === true) return false;
        return node.getAttribute('aria-disabled') !== 'true';`
	var enabled bool
	if err := h.evaluate(ctx, body, &enabled); err != nil {
		return false, fmt.Errorf("enabled check for %q: %w", h.selector, err)
	}
	return enabled, nil
}

func (h *handle) BoundingBox(ctx context.Context) (*schemas.Box, error) {
	const body = `
        if (nodes.length === 0) return null;
        const rect = nodes[0].getBoundingClientRect();
        if (rect.width === 0 && rect.height === 0) return null;
        return {x: rect.x, y: rect.y, width: rect.width, height: rect.height};`
	var box *schemas.Box
	if err := h.evaluate(ctx, body, &box); err != nil {
		return nil, fmt.Errorf("bounding box for %q: %w", h.selector, err)
	}
	if box == nil {
		return nil, fmt.Errorf("element %q has no layout box", h.selector)
	}
	return box, nil
}

// jsString safely encodes a Go string as a JS string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}

// IsXPathSelector reports whether a selector expression is XPath rather than CSS.
func IsXPathSelector(selector string) bool {
	return strings.HasPrefix(selector, "/") || strings.HasPrefix(selector, "(")
}
