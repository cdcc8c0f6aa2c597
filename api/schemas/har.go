// File: api/schemas/har.go
package schemas

import (
	"time"
)

// -- HAR (HTTP Archive) Schemas --

// HAR is the root object of the HTTP Archive format. See
// http://www.softwareishard.com/blog/har-1-2-spec/ for the full specification.
type HAR struct {
	Log HARLog `json:"log"`
}

// HARLog is the main container within a HAR file.
type HARLog struct {
	Version string     `json:"version"`
	Creator Creator    `json:"creator"`
	Pages   []HARPage  `json:"pages"`
	Entries []HAREntry `json:"entries"`
}

// Creator identifies the tool that produced the HAR file.
type Creator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HARPage represents a single page load in the recording session.
type HARPage struct {
	StartedDateTime time.Time   `json:"startedDateTime"`
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	PageTimings     PageTimings `json:"pageTimings"`
}

// PageTimings holds the key page load event timings, in milliseconds.
type PageTimings struct {
	OnContentLoad float64 `json:"onContentLoad"`
	OnLoad        float64 `json:"onLoad"`
}

// HAREntry is one recorded request/response pair.
type HAREntry struct {
	Pageref         string      `json:"pageref"`
	StartedDateTime time.Time   `json:"startedDateTime"`
	Time            float64     `json:"time"`
	Request         HARRequest  `json:"request"`
	Response        HARResponse `json:"response"`
	Cache           struct{}    `json:"cache"`
	Timings         Timings     `json:"timings"`
}

// HARRequest describes the HTTP request half of an entry.
type HARRequest struct {
	Method      string      `json:"method"`
	URL         string      `json:"url"`
	HTTPVersion string      `json:"httpVersion"`
	Cookies     []HARCookie `json:"cookies"`
	Headers     []NVPair    `json:"headers"`
	QueryString []NVPair    `json:"queryString"`
	PostData    *PostData   `json:"postData,omitempty"`
	HeadersSize int64       `json:"headersSize"`
	BodySize    int64       `json:"bodySize"`
}

// HARResponse describes the HTTP response half of an entry.
type HARResponse struct {
	Status      int         `json:"status"`
	StatusText  string      `json:"statusText"`
	HTTPVersion string      `json:"httpVersion"`
	Cookies     []HARCookie `json:"cookies"`
	Headers     []NVPair    `json:"headers"`
	Content     Content     `json:"content"`
	RedirectURL string      `json:"redirectURL"`
	HeadersSize int64       `json:"headersSize"`
	BodySize    int64       `json:"bodySize"`
	// Non-standard field (underscore prefix) carrying the remote address.
	RemoteIPAddress string `json:"_remoteIPAddress,omitempty"`
}

// Timings breaks one request down into its network phases, in milliseconds.
// A value of -1 means the phase does not apply.
type Timings struct {
	Blocked float64 `json:"blocked"`
	DNS     float64 `json:"dns"`
	Connect float64 `json:"connect"`
	SSL     float64 `json:"ssl"`
	Send    float64 `json:"send"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
}

// NVPair is a name-value pair used for headers, query strings and params.
type NVPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HARCookie is an HTTP cookie as defined by the HAR specification.
type HARCookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Path     string `json:"path,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Expires  string `json:"expires,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
}

// PostData carries the request body of POST-like requests.
type PostData struct {
	MimeType string   `json:"mimeType"`
	Text     string   `json:"text"`
	Params   []NVPair `json:"params"`
}

// Content describes a response body.
type Content struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

// NewHAR creates a HAR document with the log header filled in.
func NewHAR() *HAR {
	return &HAR{
		Log: HARLog{
			Version: "1.2",
			Creator: Creator{
				Name:    "remedy",
				Version: "0.1",
			},
			Entries: make([]HAREntry, 0),
		},
	}
}

// -- Derived HAR Analytics Schemas --

// HARAnalytics is the post-processed view of a HAR recording consumed by the
// reporting subsystem.
type HARAnalytics struct {
	TotalRequests int     `json:"totalRequests"`
	TotalBytes    int64   `json:"totalBytes"`
	TotalTimeMs   float64 `json:"totalTimeMs"`
	CacheHitRate  float64 `json:"cacheHitRate"`

	ByType   map[string]TypeBreakdown `json:"byType"`
	ByDomain map[string]TypeBreakdown `json:"byDomain"`
	ByStatus map[string]int           `json:"byStatus"`

	Slowest []EntrySummary `json:"slowest"`
	Largest []EntrySummary `json:"largest"`
	Failed  []EntrySummary `json:"failed"`
}

// TypeBreakdown aggregates count and size for one resource type or domain.
type TypeBreakdown struct {
	Count int   `json:"count"`
	Bytes int64 `json:"bytes"`
}

// EntrySummary is a compact entry reference used by top-N lists.
type EntrySummary struct {
	URL    string  `json:"url"`
	Method string  `json:"method"`
	Status int     `json:"status"`
	TimeMs float64 `json:"timeMs"`
	Bytes  int64   `json:"bytes"`
}

// WaterfallEntry is one row of the synthesized waterfall view.
type WaterfallEntry struct {
	URL      string  `json:"url"`
	StartMs  float64 `json:"startMs"`
	TimeMs   float64 `json:"timeMs"`
	Timings  Timings `json:"timings"`
	Status   int     `json:"status"`
	MimeType string  `json:"mimeType"`
}

// Waterfall is the full synthesized waterfall for one recording.
type Waterfall struct {
	StartedAt time.Time        `json:"startedAt"`
	Entries   []WaterfallEntry `json:"entries"`
}

// SecurityHeaderReport summarizes security-relevant response headers per domain.
type SecurityHeaderReport struct {
	Domain  string            `json:"domain"`
	Present map[string]string `json:"present"`
	Missing []string          `json:"missing"`
	Grade   string            `json:"grade"`
}
