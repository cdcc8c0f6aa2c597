// File: internal/healing/snapshot.go
package healing

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// Snapshot is a parsed copy of the page DOM captured once per healing
// attempt. Strategies search the snapshot; only candidate validation touches
// the live page.
type Snapshot struct {
	HTML string
	Doc  *html.Node
	gq   *goquery.Document
}

// NewSnapshot parses serialized page HTML.
func NewSnapshot(pageHTML string) (*Snapshot, error) {
	doc, err := htmlquery.Parse(strings.NewReader(pageHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page snapshot: %w", err)
	}
	gq := goquery.NewDocumentFromNode(doc)
	return &Snapshot{HTML: pageHTML, Doc: doc, gq: gq}, nil
}

// FindXPath returns all nodes matching an XPath expression. A malformed
// expression is an infrastructure failure and surfaces as an error.
func (s *Snapshot) FindXPath(expr string) ([]*html.Node, error) {
	nodes, err := htmlquery.QueryAll(s.Doc, expr)
	if err != nil {
		return nil, fmt.Errorf("snapshot xpath query %q failed: %w", expr, err)
	}
	return nodes, nil
}

// FindCSS returns all nodes matching a CSS selector.
func (s *Snapshot) FindCSS(selector string) []*html.Node {
	return s.gq.Find(selector).Nodes
}

// FeaturesFromNode builds a positionless feature snapshot for a node found
// inside the parsed DOM. Position never survives serialization; strategies
// needing geometry read it from the live page instead.
func FeaturesFromNode(n *html.Node) *schemas.ElementFeatures {
	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[a.Key] = a.Val
	}

	var childrenTags []string
	hasChildren := false
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			hasChildren = true
			childrenTags = append(childrenTags, strings.ToLower(c.Data))
		}
	}

	parentTag := ""
	var siblingTexts []string
	precedingText := ""
	if p := n.Parent; p != nil && p.Type == html.ElementNode {
		parentTag = strings.ToLower(p.Data)
		for c := p.FirstChild; c != nil; c = c.NextSibling {
			if c == n || c.Type != html.ElementNode {
				continue
			}
			if t := collapseText(htmlquery.InnerText(c)); t != "" {
				siblingTexts = append(siblingTexts, truncate(t, 80))
			}
		}
	}
	for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if prev.Type == html.ElementNode {
			precedingText = truncate(collapseText(htmlquery.InnerText(prev)), 80)
			break
		}
	}

	return &schemas.ElementFeatures{
		Structural: schemas.StructuralFeatures{
			TagName:      strings.ToLower(n.Data),
			Attributes:   attrs,
			HasChildren:  hasChildren,
			ChildrenTags: childrenTags,
		},
		Text: truncate(collapseText(htmlquery.InnerText(n)), 500),
		Context: schemas.ContextFeatures{
			ParentTag:     parentTag,
			SiblingTexts:  siblingTexts,
			PrecedingText: precedingText,
		},
	}
}

func collapseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate caps s at n runes, never splitting a multi-byte sequence.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
