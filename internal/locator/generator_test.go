// File: internal/locator/generator_test.go
package locator

import (
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/remedy/api/schemas"
)

const formDoc = `<html><body>
<form id="checkout">
  <button id="save-btn" data-testid="save" aria-label="Save" role="button" name="save" type="submit" class="btn primary-action">Submit</button>
  <input type="text" name="email" placeholder="Email">
</form>
</body></html>`

func findNode(t *testing.T, doc, xpath string) *html.Node {
	t.Helper()
	root, err := htmlquery.Parse(strings.NewReader(doc))
	require.NoError(t, err)
	node := htmlquery.FindOne(root, xpath)
	require.NotNil(t, node, "fixture must contain %s", xpath)
	return node
}

func selectorsOfType(cands []schemas.LocatorCandidate, typ schemas.LocatorType) []string {
	var out []string
	for _, c := range cands {
		if c.Type == typ {
			out = append(out, c.Selector)
		}
	}
	return out
}

func TestGenerateCandidatesRanksIDFirst(t *testing.T) {
	gen := NewGenerator(zap.NewNop())
	node := findNode(t, formDoc, `//button`)

	cands, err := gen.GenerateCandidates(node)
	require.NoError(t, err)
	require.NotEmpty(t, cands)

	assert.Equal(t, schemas.LocatorID, cands[0].Type)
	assert.Equal(t, "#save-btn", cands[0].Selector)
	for _, c := range cands[1:] {
		assert.LessOrEqual(t, c.Score, cands[0].Score)
	}
}

func TestGenerateCandidatesSelectorFormats(t *testing.T) {
	gen := NewGenerator(zap.NewNop())
	node := findNode(t, formDoc, `//button`)

	cands, err := gen.GenerateCandidates(node)
	require.NoError(t, err)

	testCases := []struct {
		name     string
		typ      schemas.LocatorType
		expected string
	}{
		{"id", schemas.LocatorID, "#save-btn"},
		{"test id", schemas.LocatorTestID, `[data-testid="save"]`},
		{"aria label", schemas.LocatorAriaLabel, `button[aria-label="Save"]`},
		{"role with accessible name", schemas.LocatorRole, `[role="button"][aria-label="Save"]`},
		{"exact text", schemas.LocatorText, `//button[normalize-space(.)="Submit"]`},
		{"attribute composite", schemas.LocatorCSS, `button[name="save"][type="submit"]`},
		{"unique classes", schemas.LocatorUniqueClass, `button.btn.primary-action`},
		{"id anchored xpath", schemas.LocatorXPath, `//*[@id="save-btn"]`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Contains(t, selectorsOfType(cands, tc.typ), tc.expected)
		})
	}
}

func TestGenerateCandidatesCompositeAttributeCap(t *testing.T) {
	gen := NewGenerator(zap.NewNop())
	node := findNode(t, formDoc, `//input`)

	cands, err := gen.GenerateCandidates(node)
	require.NoError(t, err)

	// name, type and placeholder fill the three attribute slots; nothing
	// further may be appended.
	assert.Contains(t, selectorsOfType(cands, schemas.LocatorCSS),
		`input[name="email"][type="text"][placeholder="Email"]`)
}

func TestGenerateCandidatesGenericIDNotAnchored(t *testing.T) {
	doc := `<html><body><div><button id="ember123">Go</button></div></body></html>`
	gen := NewGenerator(zap.NewNop())
	node := findNode(t, doc, `//button`)

	cands, err := gen.GenerateCandidates(node)
	require.NoError(t, err)

	// A framework-generated id still yields a direct CSS candidate, but the
	// XPath must fall back to a positional path instead of anchoring on it.
	assert.Contains(t, selectorsOfType(cands, schemas.LocatorID), "#ember123")
	xpaths := selectorsOfType(cands, schemas.LocatorXPath)
	require.Len(t, xpaths, 1)
	assert.Equal(t, "/html[1]/body[1]/div[1]/button[1]", xpaths[0])
}

func TestGenerateCandidatesLongTextUsesContains(t *testing.T) {
	doc := `<html><body><p>This is a rather long paragraph used for matching</p></body></html>`
	gen := NewGenerator(zap.NewNop())
	node := findNode(t, doc, `//p`)

	cands, err := gen.GenerateCandidates(node)
	require.NoError(t, err)

	assert.Contains(t, selectorsOfType(cands, schemas.LocatorText),
		`//p[contains(normalize-space(.), "This is a rather long")]`)
}

func TestGenerateCandidatesRejectsNonElement(t *testing.T) {
	gen := NewGenerator(zap.NewNop())

	_, err := gen.GenerateCandidates(nil)
	assert.ErrorIs(t, err, ErrNoCandidates)

	text := &html.Node{Type: html.TextNode, Data: "hello"}
	_, err = gen.GenerateCandidates(text)
	assert.ErrorIs(t, err, ErrNoCandidates)
}

func TestGenerateLocatorReturnsTopCandidate(t *testing.T) {
	gen := NewGenerator(zap.NewNop())
	node := findNode(t, formDoc, `//button`)

	best, err := gen.GenerateLocator(node)
	require.NoError(t, err)
	assert.Equal(t, "#save-btn", best.Selector)
}

func TestGenerateRobustLocator(t *testing.T) {
	gen := NewGenerator(zap.NewNop())
	node := findNode(t, formDoc, `//button`)
	meta := schemas.ElementFeatures{Text: "Submit"}

	robust, err := gen.GenerateRobustLocator(node, meta)
	require.NoError(t, err)

	assert.Equal(t, "#save-btn", robust.Primary)
	assert.InDelta(t, 0.95, robust.Confidence, 1e-9)
	assert.Equal(t, meta, robust.Metadata)
	assert.Contains(t, robust.Fallbacks, `[data-testid="save"]`)
}
