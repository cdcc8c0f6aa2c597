// File: internal/netintercept/modifier.go
// Description: Response modification. Always fetches the real response at the
// response stage, edits it, and fulfills the request with the edited copy.
package netintercept

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/remedy/api/schemas"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// ResponseModifier rewrites real responses in flight.
type ResponseModifier struct {
	interceptor *Interceptor
}

// NewResponseModifier creates a modifier over an interceptor.
func NewResponseModifier(interceptor *Interceptor) *ResponseModifier {
	return &ResponseModifier{interceptor: interceptor}
}

// Modify applies the modification to every response the pattern matches.
func (m *ResponseModifier) Modify(pattern schemas.URLPattern, mod schemas.ResponseModification) {
	m.interceptor.Register(pattern, schemas.RuleResponse, "modify",
		ActionFunc(func(ctx context.Context, req *schemas.PausedRequest, rc schemas.RoutingContext) (bool, error) {
			return applyModification(ctx, req, rc, mod)
		}))
}

// Unmodify removes the modification for a pattern.
func (m *ResponseModifier) Unmodify(pattern schemas.URLPattern) bool {
	return m.interceptor.Unregister(pattern, schemas.RuleResponse)
}

func applyModification(ctx context.Context, req *schemas.PausedRequest, rc schemas.RoutingContext, mod schemas.ResponseModification) (bool, error) {
	if mod.SimulateError {
		if err := rc.Fail(ctx, req.ID); err != nil {
			return false, err
		}
		return true, nil
	}
	if mod.SimulateTimeout {
		// Never answer; the page-side request runs into its own timeout.
		return true, nil
	}

	body, err := rc.FetchResponseBody(ctx, req.ID)
	if err != nil {
		return false, fmt.Errorf("fetching response body for %s: %w", req.URL, err)
	}
	body, decompressed, err := decodeBody(body, req.ResponseHeaders)
	if err != nil {
		return false, fmt.Errorf("decoding response body for %s: %w", req.URL, err)
	}

	if len(mod.SetJSONFields) > 0 || len(mod.RemoveJSONFields) > 0 {
		if body, err = editJSON(body, mod.SetJSONFields, mod.RemoveJSONFields); err != nil {
			return false, fmt.Errorf("editing JSON body for %s: %w", req.URL, err)
		}
	}
	for _, r := range mod.ReplaceText {
		body = bytes.ReplaceAll(body, []byte(r.Old), []byte(r.New))
	}

	headers := make(map[string]string, len(req.ResponseHeaders)+len(mod.SetHeaders))
	for k, v := range req.ResponseHeaders {
		headers[k] = v
	}
	if decompressed {
		deleteHeader(headers, "Content-Encoding")
	}
	deleteHeader(headers, "Content-Length")
	headers["Content-Length"] = strconv.Itoa(len(body))
	for k, v := range mod.SetHeaders {
		headers[k] = v
	}
	for _, k := range mod.RemoveHeaders {
		deleteHeader(headers, k)
	}

	status := req.ResponseStatus
	if mod.StatusCode != 0 {
		status = mod.StatusCode
	}

	if mod.SlowResponse > 0 {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(mod.SlowResponse):
		}
	}

	if err := rc.Fulfill(ctx, req.ID, status, headers, body); err != nil {
		return false, err
	}
	return true, nil
}

// decodeBody undoes gzip/brotli content encoding so the edits see plain text.
func decodeBody(body []byte, headers map[string]string) ([]byte, bool, error) {
	encoding := strings.ToLower(headerValue(headers, "Content-Encoding"))
	switch encoding {
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, false, err
		}
		defer zr.Close()
		plain, err := io.ReadAll(zr)
		if err != nil {
			return nil, false, err
		}
		return plain, true, nil
	case "br":
		plain, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, false, err
		}
		return plain, true, nil
	default:
		return body, false, nil
	}
}

// editJSON sets and removes dot-separated paths in a JSON object body,
// creating intermediate objects for set paths as needed.
func editJSON(body []byte, set map[string]any, remove []string) ([]byte, error) {
	var doc map[string]any
	if err := jsonAPI.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("body is not a JSON object: %w", err)
	}
	for path, value := range set {
		setPath(doc, strings.Split(path, "."), value)
	}
	for _, path := range remove {
		removePath(doc, strings.Split(path, "."))
	}
	return jsonAPI.Marshal(doc)
}

func setPath(doc map[string]any, path []string, value any) {
	for len(path) > 1 {
		child, ok := doc[path[0]].(map[string]any)
		if !ok {
			child = make(map[string]any)
			doc[path[0]] = child
		}
		doc = child
		path = path[1:]
	}
	doc[path[0]] = value
}

func removePath(doc map[string]any, path []string) {
	for len(path) > 1 {
		child, ok := doc[path[0]].(map[string]any)
		if !ok {
			return
		}
		doc = child
		path = path[1:]
	}
	delete(doc, path[0])
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

func deleteHeader(headers map[string]string, name string) {
	for k := range headers {
		if strings.EqualFold(k, name) {
			delete(headers, k)
		}
	}
}
