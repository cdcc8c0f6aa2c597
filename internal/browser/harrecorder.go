// File: internal/browser/harrecorder.go
// Description: HAR recording from CDP network events. The recorder listens on
// the tab, tracks every request through its lifecycle, fetches bodies in the
// background, and renders a HAR 1.2 document on stop.
package browser

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
)

const idleCheckFrequency = 250 * time.Millisecond

const (
	postDataFetchTimeout = 10 * time.Second
	bodyFetchTimeout     = 30 * time.Second
)

// requestRecord tracks one network request through its lifecycle.
type requestRecord struct {
	request   *network.EventRequestWillBeSent
	responses []*network.EventResponseReceived

	body                []byte
	bodyFetchInProgress bool
	postBody            []byte
	err                 error
	finished            bool
	isDataURL           bool
	wallTime            time.Time
	monotonicTime       cdp.MonotonicTime
}

// HARRecorder captures the tab's network traffic into a HAR document.
type HARRecorder struct {
	ctx           context.Context
	cancel        context.CancelFunc
	logger        *zap.Logger
	captureBodies bool
	executor      ActionExecutor

	mu            sync.RWMutex
	requests      map[network.RequestID]*requestRecord
	pageID        string
	pageTitle     string
	startTime     time.Time
	onLoadTime    float64
	onContentLoad float64
	activeReqs    int64

	wg sync.WaitGroup
}

// NewHARRecorder creates a recorder. The executor synchronizes the CDP calls
// used for background body fetches.
func NewHARRecorder(ctx context.Context, executor ActionExecutor, captureBodies bool, logger *zap.Logger) *HARRecorder {
	if executor == nil {
		panic("HARRecorder created with nil ActionExecutor reference")
	}
	rCtx, rCancel := context.WithCancel(ctx)
	return &HARRecorder{
		ctx:           rCtx,
		cancel:        rCancel,
		logger:        logger.Named("har"),
		captureBodies: captureBodies,
		executor:      executor,
		requests:      make(map[network.RequestID]*requestRecord),
		startTime:     time.Now(),
	}
}

// Start attaches the event listeners to the tab context.
func (h *HARRecorder) Start(tabCtx context.Context) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		select {
		case <-h.ctx.Done():
			return
		default:
		}

		switch ev := ev.(type) {
		case *network.EventRequestWillBeSent:
			h.handleRequestWillBeSent(ev)
		case *network.EventResponseReceived:
			h.handleResponseReceived(ev)
		case *network.EventLoadingFinished:
			h.handleLoadingFinished(ev)
		case *network.EventLoadingFailed:
			h.handleLoadingFailed(ev)
		case *page.EventLifecycleEvent:
			h.handleLifecycleEvent(ev)
		}
	})
}

// Stop halts capture, waits for outstanding body fetches within the given
// context, and returns the assembled HAR.
func (h *HARRecorder) Stop(ctx context.Context) *schemas.HAR {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		h.logger.Warn("HAR recording stopped before all bodies were fetched; archive may be incomplete.", zap.Error(ctx.Err()))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buildHAR()
}

// WaitNetworkIdle blocks until no request has been in flight for quietPeriod.
func (h *HARRecorder) WaitNetworkIdle(ctx context.Context, quietPeriod time.Duration) error {
	h.logger.Debug("Waiting for network to become idle.")

	timer := time.NewTimer(quietPeriod)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	defer timer.Stop()

	isIdle := false
	ticker := time.NewTicker(idleCheckFrequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.ctx.Done():
			return h.ctx.Err()
		case <-ticker.C:
			h.mu.RLock()
			active := h.activeReqs
			h.mu.RUnlock()

			if active > 0 {
				if isIdle {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					isIdle = false
				}
			} else if !isIdle {
				timer.Reset(quietPeriod)
				isIdle = true
			}
		case <-timer.C:
			h.logger.Debug("Network is idle.")
			return nil
		}
	}
}

// -- Event handlers --

func (h *HARRecorder) handleRequestWillBeSent(ev *network.EventRequestWillBeSent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.activeReqs++

	rec, exists := h.requests[ev.RequestID]
	if !exists {
		rec = &requestRecord{isDataURL: strings.HasPrefix(ev.Request.URL, "data:")}
		h.requests[ev.RequestID] = rec
	}
	rec.request = ev
	rec.wallTime = ev.WallTime.Time()
	if ev.Timestamp != nil {
		rec.monotonicTime = *ev.Timestamp
	}

	if ev.Request.HasPostData && rec.postBody == nil {
		if len(ev.Request.PostDataEntries) > 0 {
			var postBody bytes.Buffer
			for _, entry := range ev.Request.PostDataEntries {
				decoded, err := base64.StdEncoding.DecodeString(entry.Bytes)
				if err != nil {
					postBody.WriteString(entry.Bytes)
				} else {
					postBody.Write(decoded)
				}
			}
			rec.postBody = postBody.Bytes()
		} else {
			// Large bodies are not inlined in the event; fetch asynchronously.
			h.fetchPostBody(ev.RequestID)
		}
	}

	if h.pageID == "" && ev.Type == network.ResourceTypeDocument {
		h.pageID = ev.FrameID.String()
	}
}

func (h *HARRecorder) handleResponseReceived(ev *network.EventResponseReceived) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec, ok := h.requests[ev.RequestID]
	if !ok {
		return
	}
	rec.responses = append(rec.responses, ev)
	// Fetch eagerly; waiting for LoadingFinished risks the browser dropping
	// the body buffer first.
	if h.captureBodies && rec.body == nil && !rec.isDataURL && !rec.bodyFetchInProgress {
		rec.bodyFetchInProgress = true
		h.fetchBody(ev.RequestID)
	}
}

func (h *HARRecorder) handleLoadingFinished(ev *network.EventLoadingFinished) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rec, ok := h.requests[ev.RequestID]; ok {
		rec.finished = true
		if h.captureBodies && len(rec.responses) > 0 && rec.body == nil && !rec.isDataURL && !rec.bodyFetchInProgress {
			rec.bodyFetchInProgress = true
			h.fetchBody(ev.RequestID)
		}
	}
	if h.activeReqs > 0 {
		h.activeReqs--
	}
}

func (h *HARRecorder) handleLoadingFailed(ev *network.EventLoadingFailed) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rec, ok := h.requests[ev.RequestID]; ok {
		rec.finished = true
		rec.err = fmt.Errorf("request failed: %s", ev.ErrorText)
	}
	if h.activeReqs > 0 {
		h.activeReqs--
	}
}

func (h *HARRecorder) handleLifecycleEvent(ev *page.EventLifecycleEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.pageID == "" {
		h.pageID = ev.FrameID.String()
	}
	if h.startTime.IsZero() {
		return
	}
	delta := ev.Timestamp.Time().Sub(h.startTime).Seconds() * 1000

	switch ev.Name {
	case "load":
		h.onLoadTime = delta
	case "DOMContentLoaded":
		h.onContentLoad = delta
	case "init":
		if h.pageID == ev.FrameID.String() {
			h.startTime = ev.Timestamp.Time()
		}
	}
}

// -- Background body fetching --

func (h *HARRecorder) fetchPostBody(reqID network.RequestID) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		fetchCtx, cancel := context.WithTimeout(context.Background(), postDataFetchTimeout)
		defer cancel()

		var postData string
		err := h.executor.RunBackgroundActions(fetchCtx,
			chromedp.ActionFunc(func(c context.Context) error {
				var err error
				postData, err = network.GetRequestPostData(reqID).Do(c)
				return err
			}),
		)

		h.mu.Lock()
		defer h.mu.Unlock()
		rec, ok := h.requests[reqID]
		if !ok {
			return
		}
		if err != nil {
			if h.ctx.Err() == nil && !strings.Contains(err.Error(), "No post data") {
				h.logger.Debug("Failed to fetch request post data.", zap.String("reqID", string(reqID)), zap.Error(err))
			}
			return
		}
		rec.postBody = []byte(postData)
	}()
}

func (h *HARRecorder) fetchBody(reqID network.RequestID) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		fetchCtx, cancel := context.WithTimeout(context.Background(), bodyFetchTimeout)
		defer cancel()

		var body []byte
		err := h.executor.RunBackgroundActions(fetchCtx,
			chromedp.ActionFunc(func(c context.Context) error {
				var err error
				body, err = network.GetResponseBody(reqID).Do(c)
				return err
			}),
		)

		h.mu.Lock()
		defer h.mu.Unlock()
		rec, ok := h.requests[reqID]
		if !ok {
			return
		}
		rec.bodyFetchInProgress = false
		if err != nil {
			if h.ctx.Err() == nil {
				h.logger.Debug("Failed to fetch response body.", zap.String("reqID", string(reqID)), zap.Error(err))
			}
			rec.err = err
			return
		}
		rec.body = body
	}()
}

// -- HAR assembly --

func (h *HARRecorder) buildHAR() *schemas.HAR {
	har := schemas.NewHAR()

	if h.startTime.IsZero() {
		h.startTime = time.Now()
	}
	har.Log.Pages = append(har.Log.Pages, schemas.HARPage{
		StartedDateTime: h.startTime,
		ID:              h.pageID,
		Title:           h.pageTitle,
		PageTimings: schemas.PageTimings{
			OnContentLoad: h.onContentLoad,
			OnLoad:        h.onLoadTime,
		},
	})

	for _, rec := range h.requests {
		if rec.request == nil || len(rec.responses) == 0 || rec.monotonicTime.Time().IsZero() {
			continue
		}
		finalResp := rec.responses[len(rec.responses)-1]
		totalTime := finalResp.Timestamp.Time().Sub(rec.monotonicTime.Time()).Seconds() * 1000

		har.Log.Entries = append(har.Log.Entries, schemas.HAREntry{
			Pageref:         h.pageID,
			StartedDateTime: rec.wallTime,
			Time:            totalTime,
			Request:         buildHARRequest(rec.request, rec.postBody),
			Response:        buildHARResponse(finalResp, rec.body),
			Cache:           struct{}{},
			Timings:         convertResourceTimings(finalResp.Response.Timing),
		})
	}
	return har
}

func buildHARRequest(req *network.EventRequestWillBeSent, postBody []byte) schemas.HARRequest {
	u, _ := url.Parse(req.Request.URL)
	qs := make([]schemas.NVPair, 0)
	if u != nil {
		for k, v := range u.Query() {
			for _, val := range v {
				qs = append(qs, schemas.NVPair{Name: k, Value: val})
			}
		}
	}

	harReq := schemas.HARRequest{
		Method:      req.Request.Method,
		URL:         req.Request.URL,
		HTTPVersion: "HTTP/1.1",
		Cookies:     parseCookieHeader(headerString(req.Request.Headers, "Cookie")),
		Headers:     headerPairs(req.Request.Headers),
		QueryString: qs,
		HeadersSize: headerSize(req.Request.Headers),
		BodySize:    int64(len(postBody)),
	}
	if len(postBody) > 0 {
		harReq.PostData = &schemas.PostData{
			MimeType: headerString(req.Request.Headers, "Content-Type"),
			Text:     string(postBody),
		}
	}
	return harReq
}

func buildHARResponse(resp *network.EventResponseReceived, body []byte) schemas.HARResponse {
	content := schemas.Content{
		Size:     int64(len(body)),
		MimeType: resp.Response.MimeType,
	}
	if isTextMime(resp.Response.MimeType) {
		content.Text = string(body)
	} else if len(body) > 0 {
		content.Encoding = "base64"
		content.Text = base64.StdEncoding.EncodeToString(body)
	}

	return schemas.HARResponse{
		Status:          int(resp.Response.Status),
		StatusText:      resp.Response.StatusText,
		HTTPVersion:     resp.Response.Protocol,
		Cookies:         parseCookieHeader(headerString(resp.Response.Headers, "Set-Cookie")),
		Headers:         headerPairs(resp.Response.Headers),
		Content:         content,
		RedirectURL:     headerString(resp.Response.Headers, "Location"),
		HeadersSize:     headerSize(resp.Response.Headers),
		BodySize:        int64(resp.Response.EncodedDataLength),
		RemoteIPAddress: resp.Response.RemoteIPAddress,
	}
}

// convertResourceTimings maps CDP resource timing onto HAR phases. Phases
// that never started stay -1 per the HAR convention.
func convertResourceTimings(t *network.ResourceTiming) schemas.Timings {
	if t == nil {
		return schemas.Timings{}
	}
	clampNeg := func(v float64) float64 {
		if v < 0 {
			return -1
		}
		return v
	}

	dns := -1.0
	if t.DNSStart >= 0 {
		dns = clampNeg(t.DNSEnd - t.DNSStart)
	}
	connect := -1.0
	if t.ConnectStart >= 0 {
		connect = clampNeg(t.ConnectEnd - t.ConnectStart)
	}
	ssl := -1.0
	if t.SslStart >= 0 {
		ssl = clampNeg(t.SslEnd - t.SslStart)
	}
	send := clampNeg(t.SendEnd - t.SendStart)

	minPos := func(a, b float64) float64 {
		if a < 0 {
			return b
		}
		if b < 0 {
			return a
		}
		if a < b {
			return a
		}
		return b
	}
	blocked := -1.0
	blocked = minPos(blocked, t.ProxyStart)
	blocked = minPos(blocked, t.DNSStart)
	blocked = minPos(blocked, t.ConnectStart)
	blocked = minPos(blocked, t.SendStart)
	if blocked < 0 {
		blocked = -1
	}

	wait := -1.0
	if t.SendEnd >= 0 {
		wait = clampNeg(t.ReceiveHeadersEnd - t.SendEnd)
	}

	return schemas.Timings{
		Blocked: blocked,
		DNS:     dns,
		Connect: connect,
		SSL:     ssl,
		Send:    send,
		Wait:    wait,
		Receive: 0,
	}
}

// -- Helpers --

func headerString(headers network.Headers, key string) string {
	for h, v := range headers {
		if strings.EqualFold(h, key) {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func headerPairs(headers network.Headers) []schemas.NVPair {
	pairs := make([]schemas.NVPair, 0, len(headers))
	for k, v := range headers {
		if val, ok := v.(string); ok {
			pairs = append(pairs, schemas.NVPair{Name: k, Value: val})
		}
	}
	return pairs
}

func headerSize(headers network.Headers) int64 {
	var size int64
	for k, v := range headers {
		if val, ok := v.(string); ok {
			size += int64(len(k) + len(val) + 4)
		}
	}
	return size
}

func parseCookieHeader(cookieHeader string) []schemas.HARCookie {
	if cookieHeader == "" {
		return []schemas.HARCookie{}
	}
	parts := strings.Split(cookieHeader, ";")
	cookies := make([]schemas.HARCookie, 0, len(parts))
	for _, part := range parts {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) == 2 {
			cookies = append(cookies, schemas.HARCookie{Name: kv[0], Value: kv[1]})
		}
	}
	return cookies
}

func isTextMime(mimeType string) bool {
	lower := strings.ToLower(mimeType)
	return strings.HasPrefix(lower, "text/") ||
		strings.Contains(lower, "javascript") ||
		strings.Contains(lower, "json") ||
		strings.Contains(lower, "xml") ||
		strings.Contains(lower, "x-www-form-urlencoded")
}
