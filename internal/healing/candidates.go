// File: internal/healing/candidates.go
package healing

import (
	"context"
	"errors"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/remedy/api/schemas"
	"github.com/xkilldash9x/remedy/internal/locator"
)

// validateNode turns a snapshot node into a live handle: generate ranked
// selector candidates for the node, then accept the first one that clears
// the validation gate. Returns (nil, "", nil) when no selector validates.
func validateNode(ctx context.Context, gen *locator.Generator, v *Validator, node *html.Node, desc schemas.ElementDescriptor) (schemas.LiveHandle, string, error) {
	candidates, err := gen.GenerateCandidates(node)
	if err != nil {
		if errors.Is(err, locator.ErrNoCandidates) {
			return nil, "", nil
		}
		return nil, "", err
	}
	for _, c := range candidates {
		handle, err := v.Validate(ctx, c.Selector, desc)
		if err != nil {
			return nil, "", err
		}
		if handle != nil {
			return handle, c.Selector, nil
		}
	}
	return nil, "", nil
}
