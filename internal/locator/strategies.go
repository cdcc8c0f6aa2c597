// File: internal/locator/strategies.go
package locator

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// genericIDPatterns matches machine-generated ids that are unstable across
// page loads (UUIDs, framework counters, hashed suffixes).
var genericIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`),
	regexp.MustCompile(`^[0-9]+$`),
	regexp.MustCompile(`^ember[0-9]+$`),
	regexp.MustCompile(`^react-.*[0-9]+$`),
	regexp.MustCompile(`^:r[0-9a-z]+:$`),
	regexp.MustCompile(`^[a-zA-Z]+-[0-9]{4,}$`),
	regexp.MustCompile(`^[0-9a-f]{16,}$`),
}

// genericClassPatterns is the denylist of utility and state classes that say
// nothing about element identity.
var genericClassPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(active|selected|disabled|enabled|hidden|visible|open|closed|hover|focus|focused)$`),
	regexp.MustCompile(`^(container|wrapper|inner|outer|content|item|row|col|grid|flex|block|inline)$`),
	regexp.MustCompile(`^(col|row)-`),
	regexp.MustCompile(`^[mp][tblrxy]?-[0-9]`),
	regexp.MustCompile(`^(text|bg|border|fill|stroke)-`),
	regexp.MustCompile(`^[wh]-[0-9]`),
	regexp.MustCompile(`^(d|justify|align|items|self|gap|space)-`),
	regexp.MustCompile(`^js-`),
	regexp.MustCompile(`^ng-`),
	regexp.MustCompile(`^css-[0-9a-z]+$`),
}

func isGenericID(id string) bool {
	for _, p := range genericIDPatterns {
		if p.MatchString(id) {
			return true
		}
	}
	return false
}

func isGenericClass(class string) bool {
	for _, p := range genericClassPatterns {
		if p.MatchString(class) {
			return true
		}
	}
	return false
}

// cssEscape escapes characters with special meaning in CSS identifiers.
func cssEscape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r > 127:
			b.WriteRune(r)
		default:
			b.WriteByte('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

// attrQuote produces a double-quoted CSS attribute value.
func attrQuote(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}

// xpathLiteral produces an XPath string literal, handling embedded quotes via
// concat() when necessary.
func xpathLiteral(v string) string {
	if !strings.Contains(v, `"`) {
		return `"` + v + `"`
	}
	if !strings.Contains(v, "'") {
		return "'" + v + "'"
	}
	parts := strings.Split(v, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		quoted = append(quoted, `"`+p+`"`)
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// -- Per-strategy selector builders. Each returns "" when inapplicable. --

func idSelector(info elementInfo) string {
	if info.id == "" {
		return ""
	}
	return "#" + cssEscape(info.id)
}

func testIDSelector(info elementInfo) string {
	for _, attr := range testIDAttributes {
		if v, ok := info.attributes[attr]; ok && v != "" {
			return fmt.Sprintf("[%s=%s]", attr, attrQuote(v))
		}
	}
	return ""
}

func ariaLabelSelector(info elementInfo) string {
	v := info.attributes["aria-label"]
	if v == "" {
		return ""
	}
	return fmt.Sprintf("%s[aria-label=%s]", info.tag, attrQuote(v))
}

// roleSelector composes an explicit role with an accessible name when one is
// available: the aria-label if present, otherwise short visible text.
func roleSelector(info elementInfo) string {
	role := info.attributes["role"]
	if role == "" {
		return ""
	}
	if label := info.attributes["aria-label"]; label != "" {
		return fmt.Sprintf("[role=%s][aria-label=%s]", attrQuote(role), attrQuote(label))
	}
	if info.text != "" && len(info.text) < exactTextLimit {
		return fmt.Sprintf(`//%s[@role=%s][normalize-space(.)=%s]`,
			info.tag, xpathLiteral(role), xpathLiteral(info.text))
	}
	return fmt.Sprintf("[role=%s]", attrQuote(role))
}

// textSelector matches on visible text: exact for short text, a capped
// word-prefix contains() for longer text.
func textSelector(info elementInfo) string {
	if info.text == "" {
		return ""
	}
	if len(info.text) < exactTextLimit {
		return fmt.Sprintf(`//%s[normalize-space(.)=%s]`, info.tag, xpathLiteral(info.text))
	}
	words := strings.Fields(info.text)
	if len(words) > maxTextWords {
		words = words[:maxTextWords]
	}
	return fmt.Sprintf(`//%s[contains(normalize-space(.), %s)]`,
		info.tag, xpathLiteral(strings.Join(words, " ")))
}

// attributeCompositeSelector builds tag + up to three attributes from the
// fixed priority list.
func attributeCompositeSelector(info elementInfo) string {
	var b strings.Builder
	b.WriteString(info.tag)
	count := 0
	for _, attr := range compositeAttributes {
		v, ok := info.attributes[attr]
		if !ok || v == "" {
			continue
		}
		fmt.Fprintf(&b, "[%s=%s]", attr, attrQuote(v))
		count++
		if count == maxCompositeAttrs {
			break
		}
	}
	if count == 0 {
		return ""
	}
	return b.String()
}

// classSelector builds tag + up to two non-generic classes. Falls back to
// generic classes only if no specific ones exist; the score adjustment
// penalizes that case.
func classSelector(info elementInfo) string {
	var picked []string
	for _, c := range info.classes {
		if !isGenericClass(c) {
			picked = append(picked, c)
			if len(picked) == maxClassSelectors {
				break
			}
		}
	}
	if len(picked) == 0 {
		for _, c := range info.classes {
			picked = append(picked, c)
			if len(picked) == maxClassSelectors {
				break
			}
		}
	}
	if len(picked) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(info.tag)
	for _, c := range picked {
		b.WriteByte('.')
		b.WriteString(cssEscape(c))
	}
	return b.String()
}

// xpathSelector generates a robust XPath for the node. It prioritizes ids as
// anchors for stability and brevity; otherwise it walks up the tree emitting
// positional segments disambiguated by same-tag sibling index.
func xpathSelector(node *html.Node, info elementInfo) string {
	if info.id != "" && !isGenericID(info.id) {
		return fmt.Sprintf(`//*[@id=%s]`, xpathLiteral(info.id))
	}

	var path []string
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(n.Data)
		if tag == "" {
			continue
		}

		// An ancestor id terminates the walk; everything above it is noise.
		if id := attrValue(n, "id"); id != "" && !isGenericID(id) {
			path = append(path, fmt.Sprintf(`//*[@id=%s]`, xpathLiteral(id)))
			break
		}

		// XPath indices are 1-based, counted among same-tag siblings.
		index := 1
		for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
				index++
			}
		}
		path = append(path, fmt.Sprintf("%s[%d]", tag, index))
	}

	if len(path) == 0 {
		return ""
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	xpath := strings.Join(path, "/")
	if !strings.HasPrefix(xpath, "//*[@id=") {
		xpath = "/" + xpath
	}
	return xpath
}

// cssPathSelector builds a descendant CSS path with nth-of-type
// disambiguation, shortened by OptimizeLocator downstream.
func cssPathSelector(node *html.Node) string {
	var segments []string
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(n.Data)
		if tag == "" || tag == "html" {
			continue
		}
		seg := tag
		if id := attrValue(n, "id"); id != "" {
			segments = append(segments, "#"+cssEscape(id))
			break
		}
		index := 1
		ambiguous := false
		for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
			if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
				index++
				ambiguous = true
			}
		}
		if !ambiguous {
			for next := n.NextSibling; next != nil; next = next.NextSibling {
				if next.Type == html.ElementNode && strings.ToLower(next.Data) == tag {
					ambiguous = true
					break
				}
			}
		}
		if ambiguous {
			seg = fmt.Sprintf("%s:nth-of-type(%d)", tag, index)
		}
		segments = append(segments, seg)
	}

	if len(segments) == 0 {
		return ""
	}
	for i, j := 0, len(segments)-1; i < j; i, j = i+1, j-1 {
		segments[i], segments[j] = segments[j], segments[i]
	}
	return strings.Join(segments, " > ")
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
