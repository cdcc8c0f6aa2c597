// File: internal/resolver/selector_test.go
package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/remedy/api/schemas"
)

func TestSelectorFor(t *testing.T) {
	testCases := []struct {
		name     string
		typ      schemas.LocatorType
		value    string
		expected string
	}{
		{"css passthrough", schemas.LocatorCSS, "form > button.btn", "form > button.btn"},
		{"xpath passthrough", schemas.LocatorXPath, `//button[@name="go"]`, `//button[@name="go"]`},
		{"id", schemas.LocatorID, "save-btn", "#save-btn"},
		{"id with colon escaped", schemas.LocatorID, "form:save", `#form\:save`},
		{"test id", schemas.LocatorTestID, "save", `[data-testid="save"]`},
		{"aria label", schemas.LocatorAriaLabel, "Save changes", `[aria-label="Save changes"]`},
		{"role", schemas.LocatorRole, "button", `[role="button"]`},
		{"placeholder", schemas.LocatorPlaceholder, "Email", `[placeholder="Email"]`},
		{"title", schemas.LocatorTitle, "Close", `[title="Close"]`},
		{"alt", schemas.LocatorAlt, "Company logo", `[alt="Company logo"]`},
		{"unique class", schemas.LocatorUniqueClass, "checkout-button", ".checkout-button"},
		{"text", schemas.LocatorText, "Submit Order", `//*[normalize-space(.)="Submit Order"]`},
		{
			"text with embedded double quote",
			schemas.LocatorText,
			`Say "hello"`,
			`//*[normalize-space(.)='Say "hello"']`,
		},
		{
			"text with both quote kinds",
			schemas.LocatorText,
			`it's "fine"`,
			`//*[normalize-space(.)=concat("it's ", '"', "fine", '"')]`,
		},
		{
			"label",
			schemas.LocatorLabel,
			"Email",
			`//label[normalize-space(.)="Email"]/following::input[1] | //label[normalize-space(.)="Email"]//input`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SelectorFor(schemas.ElementDescriptor{
				Name:         "el",
				LocatorType:  tc.typ,
				LocatorValue: tc.value,
			})
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestSelectorForErrors(t *testing.T) {
	_, err := SelectorFor(schemas.ElementDescriptor{Name: "el", LocatorType: schemas.LocatorID})
	assert.ErrorContains(t, err, "empty locator value")

	_, err = SelectorFor(schemas.ElementDescriptor{Name: "el", LocatorType: "telepathy", LocatorValue: "x"})
	assert.ErrorContains(t, err, "unknown locator type")
}
