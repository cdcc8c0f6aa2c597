// File: internal/netintercept/interceptor.go
// Description: The interception dispatcher. Owns the single routing hook and
// a keyed rule registry; mocking, modification, throttling and aborting all
// register rules here instead of hooking the provider themselves.
package netintercept

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
)

// Action is what a rule does to a matched event. Handled means the action
// terminally routed the request (fulfilled, failed, or deliberately parked
// it); unhandled matched events fall through to the next rule.
type Action interface {
	Apply(ctx context.Context, req *schemas.PausedRequest, rc schemas.RoutingContext) (handled bool, err error)
}

// ActionFunc adapts a function to the Action interface.
type ActionFunc func(ctx context.Context, req *schemas.PausedRequest, rc schemas.RoutingContext) (bool, error)

func (f ActionFunc) Apply(ctx context.Context, req *schemas.PausedRequest, rc schemas.RoutingContext) (bool, error) {
	return f(ctx, req, rc)
}

type rule struct {
	key      string
	pattern  schemas.URLPattern
	typ      schemas.RuleType
	action   Action
	label    string
	priority int
	disabled bool
}

// Interceptor dispatches paused network events to registered rules. Rules
// are keyed by their pattern: registering a second rule for the same pattern
// and stage replaces the first. Matching walks rules by descending priority,
// registration order breaking ties, and the first rule that handles the
// event wins.
type Interceptor struct {
	routing  schemas.RoutingContext
	recorder *Recorder
	logger   *zap.Logger

	mu    sync.RWMutex
	rules []*rule
}

// NewInterceptor builds the dispatcher. The recorder may be nil to skip
// traffic recording.
func NewInterceptor(routing schemas.RoutingContext, recorder *Recorder, logger *zap.Logger) *Interceptor {
	return &Interceptor{
		routing:  routing,
		recorder: recorder,
		logger:   logger.Named("interceptor"),
	}
}

// Register installs a rule at the default priority 0. Same pattern key and
// stage replaces the previous registration in place, keeping its position in
// the tie-break order.
func (i *Interceptor) Register(pattern schemas.URLPattern, typ schemas.RuleType, label string, action Action) {
	i.RegisterPriority(pattern, typ, label, 0, action)
}

// RegisterPriority installs a rule with an explicit priority. Higher
// priority rules are consulted before lower ones.
func (i *Interceptor) RegisterPriority(pattern schemas.URLPattern, typ schemas.RuleType, label string, priority int, action Action) {
	key := patternKey(pattern)
	i.mu.Lock()
	defer i.mu.Unlock()
	for idx, r := range i.rules {
		if r.key == key && r.typ == typ {
			i.logger.Warn("Replacing existing interception rule.",
				zap.String("pattern", key),
				zap.String("stage", string(typ)),
				zap.String("old", r.label),
				zap.String("new", label))
			i.rules[idx] = &rule{key: key, pattern: pattern, typ: typ, action: action, label: label, priority: priority}
			return
		}
	}
	i.rules = append(i.rules, &rule{key: key, pattern: pattern, typ: typ, action: action, label: label, priority: priority})
	i.logger.Debug("Interception rule registered.",
		zap.String("pattern", key), zap.String("stage", string(typ)),
		zap.String("label", label), zap.Int("priority", priority))
}

// Rules returns a snapshot of the registered rules in consultation order.
func (i *Interceptor) Rules() []schemas.InterceptRule {
	i.mu.RLock()
	out := make([]schemas.InterceptRule, 0, len(i.rules))
	for _, r := range i.rules {
		out = append(out, schemas.InterceptRule{
			Pattern:  r.pattern,
			Type:     r.typ,
			Label:    r.label,
			Enabled:  !r.disabled,
			Priority: r.priority,
		})
	}
	i.mu.RUnlock()
	sort.SliceStable(out, func(a, b int) bool { return out[a].Priority > out[b].Priority })
	return out
}

// Unregister removes the rule for a pattern and stage. Returns whether a
// rule existed.
func (i *Interceptor) Unregister(pattern schemas.URLPattern, typ schemas.RuleType) bool {
	key := patternKey(pattern)
	i.mu.Lock()
	defer i.mu.Unlock()
	for idx, r := range i.rules {
		if r.key == key && r.typ == typ {
			i.rules = append(i.rules[:idx], i.rules[idx+1:]...)
			return true
		}
	}
	return false
}

// unregisterLabel removes every rule carrying a label, e.g. all mocks.
func (i *Interceptor) unregisterLabel(label string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	kept := i.rules[:0]
	removed := 0
	for _, r := range i.rules {
		if r.label == label {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	i.rules = kept
	return removed
}

// SetEnabled toggles the rule for a pattern and stage without removing it.
// Returns whether a rule existed.
func (i *Interceptor) SetEnabled(pattern schemas.URLPattern, typ schemas.RuleType, enabled bool) bool {
	key := patternKey(pattern)
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, r := range i.rules {
		if r.key == key && r.typ == typ {
			r.disabled = !enabled
			return true
		}
	}
	return false
}

// ClearInterceptors removes every rule.
func (i *Interceptor) ClearInterceptors() {
	i.mu.Lock()
	i.rules = nil
	i.mu.Unlock()
}

// InterceptRequest installs a custom request-stage action for a pattern.
func (i *Interceptor) InterceptRequest(pattern schemas.URLPattern, action Action) {
	i.Register(pattern, schemas.RuleRequest, "custom", action)
}

// InterceptResponse installs a custom response-stage action for a pattern.
func (i *Interceptor) InterceptResponse(pattern schemas.URLPattern, action Action) {
	i.Register(pattern, schemas.RuleResponse, "custom", action)
}

// HandlePaused routes one paused event. Every event is answered exactly once:
// by the first handling rule, or by a plain continue when nothing claims it.
func (i *Interceptor) HandlePaused(ctx context.Context, req *schemas.PausedRequest) error {
	stage := schemas.RuleRequest
	if req.IsResponse {
		stage = schemas.RuleResponse
	}

	i.mu.RLock()
	candidates := make([]*rule, 0, len(i.rules))
	for _, r := range i.rules {
		if r.typ == stage && !r.disabled && matches(r.pattern, req) {
			candidates = append(candidates, r)
		}
	}
	i.mu.RUnlock()
	sort.SliceStable(candidates, func(a, b int) bool { return candidates[a].priority > candidates[b].priority })

	start := time.Now()
	for _, r := range candidates {
		handled, err := r.action.Apply(ctx, req, i.routing)
		if err != nil {
			// A broken rule must not leak the request to the real network.
			i.logger.Error("Interception rule failed; aborting route.",
				zap.String("label", r.label), zap.String("url", req.URL), zap.Error(err))
			i.record(req, start, recordOutcome{aborted: true})
			if failErr := i.routing.Fail(ctx, req.ID); failErr != nil {
				return fmt.Errorf("failing %s after rule error: %w", req.URL, failErr)
			}
			return nil
		}
		if handled {
			i.record(req, start, recordOutcome{
				mocked:   r.label == "mock",
				modified: r.label == "modify" || r.label == "throttle",
				aborted:  r.label == "abort",
			})
			return nil
		}
	}

	i.record(req, start, recordOutcome{})
	return i.passThrough(ctx, req)
}

type recordOutcome struct {
	mocked   bool
	modified bool
	aborted  bool
}

func (i *Interceptor) record(req *schemas.PausedRequest, start time.Time, out recordOutcome) {
	if i.recorder == nil {
		return
	}
	entry := schemas.NetworkEntry{
		URL:          req.URL,
		Method:       req.Method,
		ResourceType: req.ResourceType,
		ReqHeaders:   req.Headers,
		PostData:     string(req.PostData),
		Mocked:       out.mocked,
		Modified:     out.modified,
		Aborted:      out.aborted,
		StartedAt:    start,
	}
	if req.IsResponse {
		entry.Status = req.ResponseStatus
		entry.RespHeaders = req.ResponseHeaders
		entry.Duration = time.Since(start)
	}
	i.recorder.Record(entry)
}

func (i *Interceptor) passThrough(ctx context.Context, req *schemas.PausedRequest) error {
	var err error
	if req.IsResponse {
		err = i.routing.ContinueResponse(ctx, req.ID)
	} else {
		err = i.routing.ContinueRequest(ctx, req.ID)
	}
	if err != nil {
		return fmt.Errorf("continuing %s: %w", req.URL, err)
	}
	return nil
}

// Abort registers a request-stage rule failing everything the pattern matches.
func (i *Interceptor) Abort(pattern schemas.URLPattern) {
	i.Register(pattern, schemas.RuleRequest, "abort",
		ActionFunc(func(ctx context.Context, req *schemas.PausedRequest, rc schemas.RoutingContext) (bool, error) {
			if err := rc.Fail(ctx, req.ID); err != nil {
				return false, err
			}
			return true, nil
		}))
}
