// File: internal/healing/geometry.go
package healing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// geometryScript scans the live page for every element matching a CSS
// selector and returns, per element, a unique DOM-path selector plus the
// same feature shape the extractor captures. One evaluation, however many
// candidates, so position-based healing costs a single page round-trip.
const geometryScript = `
(function(sel) {
    const cssPath = function(el) {
        const parts = [];
        while (el && el.nodeType === Node.ELEMENT_NODE) {
            if (el.id) { parts.unshift('#' + CSS.escape(el.id)); break; }
            let part = el.tagName.toLowerCase();
            let nth = 1;
            for (let sib = el.previousElementSibling; sib; sib = sib.previousElementSibling) {
                if (sib.tagName === el.tagName) nth++;
            }
            part += ':nth-of-type(' + nth + ')';
            parts.unshift(part);
            el = el.parentElement;
        }
        return parts.join(' > ');
    };

    const out = [];
    for (const node of document.querySelectorAll(sel)) {
        const rect = node.getBoundingClientRect();
        if (rect.width === 0 && rect.height === 0) continue;

        const attributes = {};
        for (const attr of node.attributes) attributes[attr.name] = attr.value;

        const childrenTags = [];
        for (const child of node.children) {
            childrenTags.push(child.tagName.toLowerCase());
            if (childrenTags.length >= 20) break;
        }

        const siblingTexts = [];
        if (node.parentElement) {
            for (const sib of node.parentElement.children) {
                if (sib === node) continue;
                const t = (sib.textContent || '').trim().slice(0, 80);
                if (t) siblingTexts.push(t);
                if (siblingTexts.length >= 10) break;
            }
        }
        const prev = node.previousElementSibling;

        out.push({
            selector: cssPath(node),
            features: {
                structural: {
                    tagName: node.tagName.toLowerCase(),
                    attributes: attributes,
                    hasChildren: node.children.length > 0,
                    childrenTags: childrenTags
                },
                text: (node.textContent || '').trim().slice(0, 500),
                context: {
                    parentTag: node.parentElement ? node.parentElement.tagName.toLowerCase() : '',
                    siblingTexts: siblingTexts,
                    precedingText: prev ? (prev.textContent || '').trim().slice(0, 80) : ''
                },
                position: {x: rect.x, y: rect.y, width: rect.width, height: rect.height}
            }
        });
        if (out.length >= 200) break;
    }
    return out;
})(%s)`

// liveCandidateWire mirrors the script's output shape.
type liveCandidateWire struct {
	Selector string                  `json:"selector"`
	Features schemas.ElementFeatures `json:"features"`
}

// NewGeometryFunc builds the default live-page geometry scan over a frame.
func NewGeometryFunc(frame schemas.FrameSession) GeometryFunc {
	return func(ctx context.Context, cssSelector string) ([]LiveCandidate, error) {
		selJSON, err := json.Marshal(cssSelector)
		if err != nil {
			return nil, fmt.Errorf("geometry selector encode: %w", err)
		}
		var wire []liveCandidateWire
		if err := frame.Evaluate(ctx, fmt.Sprintf(geometryScript, selJSON), &wire); err != nil {
			return nil, fmt.Errorf("geometry scan %q failed: %w", cssSelector, err)
		}
		out := make([]LiveCandidate, 0, len(wire))
		for _, w := range wire {
			out = append(out, LiveCandidate{Selector: w.Selector, Features: w.Features})
		}
		return out, nil
	}
}
