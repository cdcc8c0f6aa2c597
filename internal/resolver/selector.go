// File: internal/resolver/selector.go
package resolver

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// SelectorFor translates a declared locator into a concrete selector
// expression. CSS and XPath pass through untouched; the semantic types expand
// to the attribute or structure they name.
func SelectorFor(desc schemas.ElementDescriptor) (string, error) {
	value := desc.LocatorValue
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("element %q has an empty locator value", desc.Name)
	}

	switch desc.LocatorType {
	case schemas.LocatorCSS, schemas.LocatorXPath:
		return value, nil
	case schemas.LocatorID:
		return "#" + cssEscape(value), nil
	case schemas.LocatorTestID:
		return fmt.Sprintf(`[data-testid=%s]`, attrQuote(value)), nil
	case schemas.LocatorAriaLabel:
		return fmt.Sprintf(`[aria-label=%s]`, attrQuote(value)), nil
	case schemas.LocatorRole:
		return fmt.Sprintf(`[role=%s]`, attrQuote(value)), nil
	case schemas.LocatorPlaceholder:
		return fmt.Sprintf(`[placeholder=%s]`, attrQuote(value)), nil
	case schemas.LocatorTitle:
		return fmt.Sprintf(`[title=%s]`, attrQuote(value)), nil
	case schemas.LocatorAlt:
		return fmt.Sprintf(`[alt=%s]`, attrQuote(value)), nil
	case schemas.LocatorUniqueClass:
		return "." + cssEscape(value), nil
	case schemas.LocatorText:
		return fmt.Sprintf(`//*[normalize-space(.)=%s]`, xpathLiteral(value)), nil
	case schemas.LocatorLabel:
		// A labelled control: the label's for-target, expressed structurally
		// since CSS cannot follow the for attribute.
		return fmt.Sprintf(`//label[normalize-space(.)=%s]/following::input[1] | //label[normalize-space(.)=%s]//input`,
			xpathLiteral(value), xpathLiteral(value)), nil
	default:
		return "", fmt.Errorf("element %q uses unknown locator type %q", desc.Name, desc.LocatorType)
	}
}

// cssEscape escapes the characters CSS identifiers cannot carry raw.
func cssEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('\\')
			b.WriteRune(r)
		}
	}
	return b.String()
}

func attrQuote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// xpathLiteral renders a string as an XPath literal, using concat() when the
// value mixes both quote kinds.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		if p != "" {
			quoted = append(quoted, `"`+p+`"`)
		}
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
