// File: internal/browser/extractor.go
package browser

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// FeatureExtractor captures ElementFeatures snapshots from live handles with
// a single JS evaluation per element.
type FeatureExtractor struct {
	frame  schemas.FrameSession
	logger *zap.Logger
}

var _ schemas.ElementFeatureExtractor = (*FeatureExtractor)(nil)

// NewFeatureExtractor creates an extractor bound to one frame.
func NewFeatureExtractor(frame schemas.FrameSession, logger *zap.Logger) *FeatureExtractor {
	return &FeatureExtractor{frame: frame, logger: logger.Named("extractor")}
}

// extractScript gathers every feature in one page round-trip. Sibling texts
// are trimmed and capped so snapshots of list-heavy pages stay small.
const extractScript = `
(function(sel) {
    const resolve = %s;
    const nodes = resolve(sel);
    if (nodes.length === 0) return null;
    const node = nodes[0];

    const attributes = {};
    for (const attr of node.attributes) attributes[attr.name] = attr.value;

    const siblingTexts = [];
    if (node.parentElement) {
        for (const sib of node.parentElement.children) {
            if (sib === node) continue;
            const t = (sib.textContent || '').trim().slice(0, 80);
            if (t) siblingTexts.push(t);
            if (siblingTexts.length >= 10) break;
        }
    }

    const childrenTags = [];
    for (const child of node.children) {
        childrenTags.push(child.tagName.toLowerCase());
        if (childrenTags.length >= 20) break;
    }

    const prev = node.previousElementSibling;
    const precedingText = prev ? (prev.textContent || '').trim().slice(0, 80) : '';

    let position = null;
    const rect = node.getBoundingClientRect();
    if (rect.width > 0 || rect.height > 0) {
        position = {x: rect.x, y: rect.y, width: rect.width, height: rect.height};
    }

    return {
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
            precedingText: precedingText
        },
        position: position
    };
})(%s)`

// ExtractFeatures captures a snapshot for the element the handle points at.
// The snapshot is immutable from the caller's perspective; healing strategies
// only ever read it.
func (e *FeatureExtractor) ExtractFeatures(ctx context.Context, h schemas.LiveHandle) (*schemas.ElementFeatures, error) {
	script := fmt.Sprintf(extractScript, queryScript, jsString(h.Selector()))

	var features *schemas.ElementFeatures
	if err := e.frame.Evaluate(ctx, script, &features); err != nil {
		return nil, fmt.Errorf("feature extraction for %q failed: %w", h.Selector(), err)
	}
	if features == nil {
		return nil, fmt.Errorf("feature extraction for %q: element not found", h.Selector())
	}
	if features.Position == nil {
		e.logger.Debug("Element has no layout box; snapshot captured without position.",
			zap.String("selector", h.Selector()))
	}
	return features, nil
}
