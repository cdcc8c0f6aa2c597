// File: internal/netintercept/mocker.go
package netintercept

import (
	"context"
	"sync"
	"time"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// RequestMocker serves synthetic responses for matched requests without
// touching the network. It is a thin registration layer over the
// interceptor; all dispatch happens there.
type RequestMocker struct {
	interceptor *Interceptor
}

// NewRequestMocker creates a mocker over an interceptor.
func NewRequestMocker(interceptor *Interceptor) *RequestMocker {
	return &RequestMocker{interceptor: interceptor}
}

// Mock serves the response for everything the pattern matches. When several
// response sources are set, precedence is Generator, then Conditions, then
// Sequence, then the plain body.
func (m *RequestMocker) Mock(pattern schemas.URLPattern, mock schemas.MockResponse) {
	var (
		mu  sync.Mutex
		seq int
	)
	m.interceptor.Register(pattern, schemas.RuleRequest, "mock",
		ActionFunc(func(ctx context.Context, req *schemas.PausedRequest, rc schemas.RoutingContext) (bool, error) {
			resolved := mock
			switch {
			case mock.Generator != nil:
				resolved = mock.Generator(req)
			case len(mock.Conditions) > 0:
				matched := false
				for _, c := range mock.Conditions {
					if c.Matcher != nil && c.Matcher(req) {
						resolved = c.Response
						matched = true
						break
					}
				}
				if !matched {
					// No condition claims this request; let it hit the network.
					return false, nil
				}
			case len(mock.Sequence) > 0:
				mu.Lock()
				resolved = mock.Sequence[seq%len(mock.Sequence)]
				seq++
				mu.Unlock()
			}

			if resolved.Delay > 0 {
				select {
				case <-ctx.Done():
					return false, ctx.Err()
				case <-time.After(resolved.Delay):
				}
			}

			status := resolved.Status
			if status == 0 {
				status = 200
			}
			headers := make(map[string]string, len(resolved.Headers)+1)
			for k, v := range resolved.Headers {
				headers[k] = v
			}
			if resolved.ContentType != "" {
				headers["Content-Type"] = resolved.ContentType
			}

			if err := rc.Fulfill(ctx, req.ID, status, headers, resolved.Body); err != nil {
				return false, err
			}
			return true, nil
		}))
}

// ClearMock removes the mock for a pattern.
func (m *RequestMocker) ClearMock(pattern schemas.URLPattern) bool {
	return m.interceptor.Unregister(pattern, schemas.RuleRequest)
}

// ClearAllMocks removes every registered mock, leaving other rule kinds in
// place. Returns how many mocks were removed.
func (m *RequestMocker) ClearAllMocks() int {
	return m.interceptor.unregisterLabel("mock")
}
