// File: api/schemas/network.go
package schemas

import (
	"regexp"
	"time"
)

// -- Interception Pattern Schemas --

// URLPattern matches requests by URL (substring or regular expression),
// HTTP method(s) and/or resource type(s). A pattern with no URL and no regex
// matches on method/resource type alone.
type URLPattern struct {
	URL           string         `json:"url,omitempty"`
	Regex         *regexp.Regexp `json:"-"`
	Methods       []string       `json:"methods,omitempty"`
	ResourceTypes []string       `json:"resourceTypes,omitempty"`
}

// RuleType distinguishes request-stage from response-stage rules.
type RuleType string

const (
	RuleRequest  RuleType = "request"
	RuleResponse RuleType = "response"
)

// InterceptRule is a snapshot of one registered interception rule. Higher
// priority rules are consulted first; equal priorities keep registration order.
type InterceptRule struct {
	Pattern  URLPattern `json:"pattern"`
	Type     RuleType   `json:"type"`
	Label    string     `json:"label"`
	Enabled  bool       `json:"enabled"`
	Priority int        `json:"priority"`
}

// -- Mocking Schemas --

// MockResponse describes a synthetic response. Exactly one of Body,
// Sequence, Conditions or Generator should be populated; when several are,
// Generator wins, then Conditions, then Sequence, then Body.
type MockResponse struct {
	Status      int               `json:"status,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	ContentType string            `json:"contentType,omitempty"`
	Body        []byte            `json:"body,omitempty"`
	// Delay is injected before fulfilling the mock.
	Delay time.Duration `json:"delay,omitempty"`

	// Sequence serves the listed responses round-robin, wrapping at the end.
	Sequence []MockResponse `json:"-"`
	// Conditions serves the first response whose matcher accepts the request.
	Conditions []ConditionalResponse `json:"-"`
	// Generator builds the response from the parsed request.
	Generator func(req *PausedRequest) MockResponse `json:"-"`
}

// ConditionalResponse pairs a request predicate with the response to serve.
type ConditionalResponse struct {
	Matcher  func(req *PausedRequest) bool
	Response MockResponse
}

// -- Response Modification Schemas --

// ResponseModification describes edits applied to a fetched real response.
// The modifier never bypasses the network; it always fetches first.
type ResponseModification struct {
	// SetHeaders adds or replaces response headers; RemoveHeaders deletes them.
	SetHeaders    map[string]string `json:"setHeaders,omitempty"`
	RemoveHeaders []string          `json:"removeHeaders,omitempty"`

	// SetJSONFields injects values at dot-separated paths into a JSON body;
	// RemoveJSONFields deletes the paths. Intermediate objects are created.
	SetJSONFields    map[string]any `json:"setJsonFields,omitempty"`
	RemoveJSONFields []string       `json:"removeJsonFields,omitempty"`

	// ReplaceText applies ordered literal text replacements to the body.
	ReplaceText []TextReplacement `json:"replaceText,omitempty"`

	// StatusCode overrides the response status when non-zero.
	StatusCode int `json:"statusCode,omitempty"`

	// SimulateError aborts the request after fetching the real response.
	SimulateError bool `json:"simulateError,omitempty"`
	// SimulateTimeout holds the response until the page-side request times out.
	SimulateTimeout bool `json:"simulateTimeout,omitempty"`
	// SlowResponse delays fulfillment by the given duration.
	SlowResponse time.Duration `json:"slowResponse,omitempty"`
}

// TextReplacement is a single literal old→new substitution.
type TextReplacement struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// ThrottleOptions shapes matched responses to a bandwidth, with optional
// fixed extra latency per response.
type ThrottleOptions struct {
	// BandwidthBPS is the simulated bandwidth in bits per second.
	BandwidthBPS int64 `json:"bandwidthBps"`
	// Latency is added on top of the computed transfer delay.
	Latency time.Duration `json:"latency,omitempty"`
}

// -- Recording Schemas --

// NetworkEntry is one recorded request/response pair. Entries live in a
// bounded per-pattern ring buffer; counts are tracked independently so
// call-count assertions stay accurate after trimming.
type NetworkEntry struct {
	URL          string            `json:"url"`
	Method       string            `json:"method"`
	ResourceType string            `json:"resourceType,omitempty"`
	ReqHeaders   map[string]string `json:"requestHeaders,omitempty"`
	PostData     string            `json:"postData,omitempty"`

	Status      int               `json:"status,omitempty"`
	RespHeaders map[string]string `json:"responseHeaders,omitempty"`
	BodySize    int64             `json:"bodySize,omitempty"`
	Mocked      bool              `json:"mocked,omitempty"`
	Modified    bool              `json:"modified,omitempty"`
	Aborted     bool              `json:"aborted,omitempty"`

	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// -- WebSocket Schemas --

// WebSocketState is the connection lifecycle state.
type WebSocketState string

const (
	WSConnecting WebSocketState = "connecting"
	WSOpen       WebSocketState = "open"
	WSClosing    WebSocketState = "closing"
	WSClosed     WebSocketState = "closed"
)

// WebSocketMetrics counts traffic on one connection. Counters keep
// incrementing after the frame ring buffers trim.
type WebSocketMetrics struct {
	FramesSent        int64 `json:"framesSent"`
	FramesReceived    int64 `json:"framesReceived"`
	BytesSent         int64 `json:"bytesSent"`
	BytesReceived     int64 `json:"bytesReceived"`
	Errors            int64 `json:"errors"`
	ReconnectAttempts int   `json:"reconnectAttempts"`
}

// WebSocketFrame is one recorded frame payload.
type WebSocketFrame struct {
	Sent      bool      `json:"sent"`
	Opcode    int64     `json:"opcode"`
	Payload   string    `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// WebSocketConnection is a snapshot of one tracked connection.
type WebSocketConnection struct {
	URL     string           `json:"url"`
	State   WebSocketState   `json:"state"`
	Metrics WebSocketMetrics `json:"metrics"`
}
