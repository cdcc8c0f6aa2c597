// File: internal/netintercept/analytics.go
// Description: Post-processing of HAR recordings: aggregate analytics, a
// synthesized waterfall view, and per-domain security header reports.
package netintercept

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// topN bounds the slowest/largest/failed lists.
const topN = 10

// securityHeaders are the response headers the security report checks for,
// in report order.
var securityHeaders = []string{
	"Strict-Transport-Security",
	"Content-Security-Policy",
	"X-Content-Type-Options",
	"X-Frame-Options",
	"Referrer-Policy",
	"Permissions-Policy",
}

// Analyze computes aggregate analytics over a HAR recording.
func Analyze(har *schemas.HAR) *schemas.HARAnalytics {
	a := &schemas.HARAnalytics{
		ByType:   make(map[string]schemas.TypeBreakdown),
		ByDomain: make(map[string]schemas.TypeBreakdown),
		ByStatus: make(map[string]int),
	}
	if har == nil {
		return a
	}

	var cacheHits int
	for _, e := range har.Log.Entries {
		a.TotalRequests++
		size := e.Response.Content.Size
		a.TotalBytes += size
		a.TotalTimeMs += e.Time

		statusClass := strconv.Itoa(e.Response.Status/100) + "xx"
		a.ByStatus[statusClass]++
		if isCacheHit(e.Response) {
			cacheHits++
		}

		mime := mimeGroup(e.Response.Content.MimeType)
		bt := a.ByType[mime]
		bt.Count++
		bt.Bytes += size
		a.ByType[mime] = bt

		domain := entryDomain(e.Request.URL)
		bd := a.ByDomain[domain]
		bd.Count++
		bd.Bytes += size
		a.ByDomain[domain] = bd

		summary := schemas.EntrySummary{
			URL:    e.Request.URL,
			Method: e.Request.Method,
			Status: e.Response.Status,
			TimeMs: e.Time,
			Bytes:  size,
		}
		a.Slowest = append(a.Slowest, summary)
		a.Largest = append(a.Largest, summary)
		if e.Response.Status == 0 || e.Response.Status >= 400 {
			a.Failed = append(a.Failed, summary)
		}
	}
	if a.TotalRequests > 0 {
		a.CacheHitRate = float64(cacheHits) / float64(a.TotalRequests)
	}

	sort.SliceStable(a.Slowest, func(i, j int) bool { return a.Slowest[i].TimeMs > a.Slowest[j].TimeMs })
	sort.SliceStable(a.Largest, func(i, j int) bool { return a.Largest[i].Bytes > a.Largest[j].Bytes })
	if len(a.Slowest) > topN {
		a.Slowest = a.Slowest[:topN]
	}
	if len(a.Largest) > topN {
		a.Largest = a.Largest[:topN]
	}
	if len(a.Failed) > topN {
		a.Failed = a.Failed[:topN]
	}
	return a
}

// BuildWaterfall synthesizes a waterfall view from a HAR recording, entries
// ordered by start time relative to the earliest request.
func BuildWaterfall(har *schemas.HAR) *schemas.Waterfall {
	w := &schemas.Waterfall{}
	if har == nil || len(har.Log.Entries) == 0 {
		return w
	}

	entries := make([]schemas.HAREntry, len(har.Log.Entries))
	copy(entries, har.Log.Entries)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartedDateTime.Before(entries[j].StartedDateTime)
	})

	w.StartedAt = entries[0].StartedDateTime
	for _, e := range entries {
		w.Entries = append(w.Entries, schemas.WaterfallEntry{
			URL:      e.Request.URL,
			StartMs:  float64(e.StartedDateTime.Sub(w.StartedAt).Microseconds()) / 1000,
			TimeMs:   e.Time,
			Timings:  e.Timings,
			Status:   e.Response.Status,
			MimeType: e.Response.Content.MimeType,
		})
	}
	return w
}

// SecurityReport checks document and XHR responses for the standard security
// headers, one report per domain. The grade drops one letter per missing
// header, bottoming out at F.
func SecurityReport(har *schemas.HAR) []schemas.SecurityHeaderReport {
	if har == nil {
		return nil
	}

	type domainState struct {
		present map[string]string
		seen    bool
	}
	domains := make(map[string]*domainState)
	for _, e := range har.Log.Entries {
		domain := entryDomain(e.Request.URL)
		st, ok := domains[domain]
		if !ok {
			st = &domainState{present: make(map[string]string)}
			domains[domain] = st
		}
		st.seen = true
		for _, want := range securityHeaders {
			for _, h := range e.Response.Headers {
				if strings.EqualFold(h.Name, want) {
					st.present[want] = h.Value
				}
			}
		}
	}

	names := make([]string, 0, len(domains))
	for d := range domains {
		names = append(names, d)
	}
	sort.Strings(names)

	reports := make([]schemas.SecurityHeaderReport, 0, len(names))
	for _, d := range names {
		st := domains[d]
		var missing []string
		for _, want := range securityHeaders {
			if _, ok := st.present[want]; !ok {
				missing = append(missing, want)
			}
		}
		reports = append(reports, schemas.SecurityHeaderReport{
			Domain:  d,
			Present: st.present,
			Missing: missing,
			Grade:   gradeFor(len(missing)),
		})
	}
	return reports
}

// cacheHeaders are the response headers CDNs and caching proxies use to
// report whether a response was served from cache.
var cacheHeaders = map[string]bool{
	"x-cache":         true,
	"x-cache-status":  true,
	"cf-cache-status": true,
}

// isCacheHit reports whether a response was served from a cache, either by a
// 304 revalidation or by a cache header declaring a hit.
func isCacheHit(r schemas.HARResponse) bool {
	if r.Status == 304 {
		return true
	}
	for _, h := range r.Headers {
		if cacheHeaders[strings.ToLower(h.Name)] && strings.Contains(strings.ToLower(h.Value), "hit") {
			return true
		}
	}
	return false
}

func gradeFor(missing int) string {
	grades := []string{"A", "B", "C", "D", "E", "F"}
	if missing >= len(grades) {
		return "F"
	}
	return grades[missing]
}

func mimeGroup(mime string) string {
	mime = strings.ToLower(mime)
	switch {
	case mime == "":
		return "other"
	case strings.Contains(mime, "html"):
		return "document"
	case strings.Contains(mime, "javascript"):
		return "script"
	case strings.Contains(mime, "css"):
		return "stylesheet"
	case strings.HasPrefix(mime, "image/"):
		return "image"
	case strings.HasPrefix(mime, "font/") || strings.Contains(mime, "font"):
		return "font"
	case strings.Contains(mime, "json") || strings.Contains(mime, "xml"):
		return "xhr"
	case strings.HasPrefix(mime, "audio/") || strings.HasPrefix(mime, "video/"):
		return "media"
	default:
		return "other"
	}
}

func entryDomain(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
