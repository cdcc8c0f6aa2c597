// File: internal/netintercept/throttle.go
package netintercept

import (
	"context"
	"fmt"
	"time"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// Throttler simulates slow networks per URL pattern by delaying matched
// responses in proportion to their body size.
type Throttler struct {
	interceptor *Interceptor
}

// NewThrottler creates a throttler over an interceptor.
func NewThrottler(interceptor *Interceptor) *Throttler {
	return &Throttler{interceptor: interceptor}
}

// Throttle shapes every response the pattern matches. The transfer delay is
// size / (bandwidth in bytes per millisecond), so 5000 bytes over 8000 bps
// takes five seconds, plus any fixed latency.
func (t *Throttler) Throttle(pattern schemas.URLPattern, opts schemas.ThrottleOptions) {
	t.interceptor.Register(pattern, schemas.RuleResponse, "throttle",
		ActionFunc(func(ctx context.Context, req *schemas.PausedRequest, rc schemas.RoutingContext) (bool, error) {
			body, err := rc.FetchResponseBody(ctx, req.ID)
			if err != nil {
				return false, fmt.Errorf("fetching body to throttle %s: %w", req.URL, err)
			}

			delay := TransferDelay(int64(len(body)), opts)
			if delay > 0 {
				select {
				case <-ctx.Done():
					return false, ctx.Err()
				case <-time.After(delay):
				}
			}

			if err := rc.Fulfill(ctx, req.ID, req.ResponseStatus, req.ResponseHeaders, body); err != nil {
				return false, err
			}
			return true, nil
		}))
}

// Unthrottle removes the throttle for a pattern.
func (t *Throttler) Unthrottle(pattern schemas.URLPattern) bool {
	return t.interceptor.Unregister(pattern, schemas.RuleResponse)
}

// TransferDelay computes how long a body of the given size takes at the
// configured bandwidth, plus fixed latency. Zero bandwidth means latency only.
func TransferDelay(size int64, opts schemas.ThrottleOptions) time.Duration {
	delay := opts.Latency
	if opts.BandwidthBPS > 0 && size > 0 {
		bytesPerMs := float64(opts.BandwidthBPS) / 8000.0
		ms := float64(size) / bytesPerMs
		delay += time.Duration(ms * float64(time.Millisecond))
	}
	return delay
}
