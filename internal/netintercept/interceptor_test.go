// File: internal/netintercept/interceptor_test.go
package netintercept

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
)

func fulfillWith(status int) Action {
	return ActionFunc(func(ctx context.Context, req *schemas.PausedRequest, rc schemas.RoutingContext) (bool, error) {
		if err := rc.Fulfill(ctx, req.ID, status, nil, nil); err != nil {
			return false, err
		}
		return true, nil
	})
}

func TestHandlePausedPassThrough(t *testing.T) {
	routing := newFakeRouting()
	i := NewInterceptor(routing, nil, zap.NewNop())

	require.NoError(t, i.HandlePaused(context.Background(), requestEvent("r1", "https://example.com/")))
	assert.Equal(t, "continueRequest", routing.last(t).kind)

	require.NoError(t, i.HandlePaused(context.Background(), responseEvent("r2", "https://example.com/", 200)))
	assert.Equal(t, "continueResponse", routing.last(t).kind)
}

func TestHandlePausedFirstMatchingRuleWins(t *testing.T) {
	routing := newFakeRouting()
	i := NewInterceptor(routing, nil, zap.NewNop())

	i.Register(schemas.URLPattern{URL: "/api/"}, schemas.RuleRequest, "custom", fulfillWith(201))
	i.Register(schemas.URLPattern{URL: "/api/users"}, schemas.RuleRequest, "custom", fulfillWith(202))

	require.NoError(t, i.HandlePaused(context.Background(), requestEvent("r1", "https://x.test/api/users")))
	last := routing.last(t)
	assert.Equal(t, "fulfill", last.kind)
	assert.Equal(t, 201, last.status, "at equal priority registration order decides, not specificity")
	assert.Equal(t, 1, routing.count(), "the event must be answered exactly once")
}

func TestRegisterReplacesSamePatternAndStage(t *testing.T) {
	routing := newFakeRouting()
	i := NewInterceptor(routing, nil, zap.NewNop())

	pattern := schemas.URLPattern{URL: "/api/"}
	i.Register(pattern, schemas.RuleRequest, "custom", fulfillWith(201))
	i.Register(pattern, schemas.RuleRequest, "custom", fulfillWith(299))

	require.NoError(t, i.HandlePaused(context.Background(), requestEvent("r1", "https://x.test/api/users")))
	assert.Equal(t, 299, routing.last(t).status)
}

func TestSamePatternDifferentStagesCoexist(t *testing.T) {
	routing := newFakeRouting()
	i := NewInterceptor(routing, nil, zap.NewNop())

	pattern := schemas.URLPattern{URL: "/api/"}
	i.Register(pattern, schemas.RuleRequest, "custom", fulfillWith(201))
	i.Register(pattern, schemas.RuleResponse, "custom", fulfillWith(202))

	require.NoError(t, i.HandlePaused(context.Background(), requestEvent("r1", "https://x.test/api/a")))
	assert.Equal(t, 201, routing.last(t).status)

	require.NoError(t, i.HandlePaused(context.Background(), responseEvent("r2", "https://x.test/api/a", 200)))
	assert.Equal(t, 202, routing.last(t).status)
}

func TestSetEnabledSkipsRuleWithoutRemovingIt(t *testing.T) {
	routing := newFakeRouting()
	i := NewInterceptor(routing, nil, zap.NewNop())

	pattern := schemas.URLPattern{URL: "/api/"}
	i.Register(pattern, schemas.RuleRequest, "custom", fulfillWith(201))

	require.True(t, i.SetEnabled(pattern, schemas.RuleRequest, false))
	require.NoError(t, i.HandlePaused(context.Background(), requestEvent("r1", "https://x.test/api/a")))
	assert.Equal(t, "continueRequest", routing.last(t).kind)

	require.True(t, i.SetEnabled(pattern, schemas.RuleRequest, true))
	require.NoError(t, i.HandlePaused(context.Background(), requestEvent("r2", "https://x.test/api/a")))
	assert.Equal(t, "fulfill", routing.last(t).kind)
}

func TestRuleErrorAbortsTheRoute(t *testing.T) {
	routing := newFakeRouting()
	recorder := NewRecorder(10, zap.NewNop())
	i := NewInterceptor(routing, recorder, zap.NewNop())

	i.Register(schemas.URLPattern{URL: "/api/"}, schemas.RuleRequest, "custom",
		ActionFunc(func(context.Context, *schemas.PausedRequest, schemas.RoutingContext) (bool, error) {
			return false, errors.New("rule blew up")
		}))

	// A broken rule must never let the request reach the real network.
	require.NoError(t, i.HandlePaused(context.Background(), requestEvent("r1", "https://x.test/api/a")))
	assert.Equal(t, "fail", routing.last(t).kind)
	assert.Equal(t, 1, routing.count(), "the event must be answered exactly once")

	entries := recorder.GetRecorded(schemas.URLPattern{URL: "/api/"})
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Aborted)
}

func TestHigherPriorityRuleWinsRegardlessOfOrder(t *testing.T) {
	routing := newFakeRouting()
	i := NewInterceptor(routing, nil, zap.NewNop())

	i.Register(schemas.URLPattern{URL: "/api/"}, schemas.RuleRequest, "custom", fulfillWith(201))
	i.RegisterPriority(schemas.URLPattern{URL: "/api/users"}, schemas.RuleRequest, "custom", 5, fulfillWith(202))

	require.NoError(t, i.HandlePaused(context.Background(), requestEvent("r1", "https://x.test/api/users")))
	last := routing.last(t)
	assert.Equal(t, "fulfill", last.kind)
	assert.Equal(t, 202, last.status)
	assert.Equal(t, 1, routing.count())

	rules := i.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, 5, rules[0].Priority, "consultation order puts the high-priority rule first")
	assert.True(t, rules[0].Enabled)
}

func TestUnhandledRuleFallsThrough(t *testing.T) {
	routing := newFakeRouting()
	i := NewInterceptor(routing, nil, zap.NewNop())

	i.Register(schemas.URLPattern{URL: "/api/"}, schemas.RuleRequest, "first",
		ActionFunc(func(context.Context, *schemas.PausedRequest, schemas.RoutingContext) (bool, error) {
			return false, nil
		}))
	i.Register(schemas.URLPattern{URL: "/api/users"}, schemas.RuleRequest, "second", fulfillWith(200))

	require.NoError(t, i.HandlePaused(context.Background(), requestEvent("r1", "https://x.test/api/users")))
	assert.Equal(t, "fulfill", routing.last(t).kind)
}

func TestUnregisterAndClear(t *testing.T) {
	routing := newFakeRouting()
	i := NewInterceptor(routing, nil, zap.NewNop())

	pattern := schemas.URLPattern{URL: "/api/"}
	i.Register(pattern, schemas.RuleRequest, "custom", fulfillWith(201))

	assert.True(t, i.Unregister(pattern, schemas.RuleRequest))
	assert.False(t, i.Unregister(pattern, schemas.RuleRequest))

	i.Register(pattern, schemas.RuleRequest, "custom", fulfillWith(201))
	i.ClearInterceptors()
	require.NoError(t, i.HandlePaused(context.Background(), requestEvent("r1", "https://x.test/api/a")))
	assert.Equal(t, "continueRequest", routing.last(t).kind)
}

func TestAbort(t *testing.T) {
	routing := newFakeRouting()
	recorder := NewRecorder(10, zap.NewNop())
	i := NewInterceptor(routing, recorder, zap.NewNop())

	i.Abort(schemas.URLPattern{ResourceTypes: []string{"image"}})

	img := requestEvent("r1", "https://x.test/logo.png")
	img.ResourceType = "image"
	require.NoError(t, i.HandlePaused(context.Background(), img))
	assert.Equal(t, "fail", routing.last(t).kind)

	entries := recorder.GetRecorded(schemas.URLPattern{URL: "logo.png"})
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Aborted)
	assert.False(t, entries[0].Mocked)
}

func TestRecordOutcomeFlags(t *testing.T) {
	routing := newFakeRouting()
	recorder := NewRecorder(10, zap.NewNop())
	i := NewInterceptor(routing, recorder, zap.NewNop())

	NewRequestMocker(i).Mock(schemas.URLPattern{URL: "/mocked"}, schemas.MockResponse{Body: []byte("{}")})

	require.NoError(t, i.HandlePaused(context.Background(), requestEvent("r1", "https://x.test/mocked")))
	entries := recorder.GetRecorded(schemas.URLPattern{URL: "/mocked"})
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Mocked)
	assert.False(t, entries[0].Modified)
}
