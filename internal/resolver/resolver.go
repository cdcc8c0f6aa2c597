// File: internal/resolver/resolver.go
// Description: Smart element resolution. Resolves declared locators against
// the live page with retries, keeps feature snapshots of everything it
// resolves, and falls back to the healing orchestrator when a previously
// known element disappears.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
	"github.com/xkilldash9x/remedy/internal/config"
	"github.com/xkilldash9x/remedy/internal/healing"
)

// Defaults applied when configuration leaves the retry knobs zero.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
)

// Transient evaluation failures caused by navigation racing the query. These
// are retried rather than surfaced; anything else fails the attempt.
var transientErrorMarkers = []string{
	"execution context was destroyed",
	"cannot find context with specified id",
	"inspected target navigated or closed",
}

// Resolution is a successful resolve: the live handle, how it was obtained,
// and the selector that finally matched.
type Resolution struct {
	Handle   schemas.LiveHandle
	Selector string
	// Healed carries the healing result when the declared locator failed and
	// a fallback strategy recovered the element. Nil on a direct match.
	Healed *schemas.HealingResult
}

// SmartElementResolver resolves descriptors to live handles. Safe for
// concurrent use; the feature cache is the only shared state.
type SmartElementResolver struct {
	frame        schemas.FrameSession
	extractor    schemas.ElementFeatureExtractor
	orchestrator *healing.Orchestrator
	validator    *healing.Validator
	maxAttempts  int
	retryDelay   time.Duration
	logger       *zap.Logger

	mu       sync.RWMutex
	features map[string]*schemas.ElementFeatures
}

// New builds a resolver. The orchestrator may be nil to run without healing.
func New(cfg config.Interface, frame schemas.FrameSession, extractor schemas.ElementFeatureExtractor, orchestrator *healing.Orchestrator, logger *zap.Logger) *SmartElementResolver {
	resolverCfg := cfg.Resolver()
	maxAttempts := resolverCfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	retryDelay := resolverCfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	return &SmartElementResolver{
		frame:        frame,
		extractor:    extractor,
		orchestrator: orchestrator,
		validator:    healing.NewValidator(frame),
		maxAttempts:  maxAttempts,
		retryDelay:   retryDelay,
		logger:       logger.Named("resolver"),
		features:     make(map[string]*schemas.ElementFeatures),
	}
}

// Resolve locates the element the descriptor names. Each attempt tries the
// declared locator first; when that fails and a feature snapshot from an
// earlier resolve exists, the healing orchestrator gets a shot before the
// next retry. On success the element's feature snapshot is refreshed so the
// next disappearance has fresh ground truth to heal from.
func (r *SmartElementResolver) Resolve(ctx context.Context, desc schemas.ElementDescriptor) (*Resolution, error) {
	selector, err := SelectorFor(desc)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.retryDelay):
			}
		}

		// Best effort; a page stuck in loading should not block resolution
		// of elements already present.
		if err := r.frame.WaitReady(ctx); err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}

		handle, err := r.validator.Validate(ctx, selector, desc)
		if err != nil {
			if isTransient(err) {
				r.logger.Debug("Resolution raced a navigation; retrying.",
					zap.String("element", desc.Name), zap.Int("attempt", attempt))
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("resolving %q: %w", desc.Name, err)
		}
		if handle != nil {
			r.cacheFeatures(ctx, desc, handle)
			return &Resolution{Handle: handle, Selector: selector}, nil
		}

		// Declared locator found nothing this attempt. Try healing if we
		// have ever seen this element before.
		if result, healErr := r.tryHeal(ctx, desc); healErr != nil {
			if isTransient(healErr) {
				lastErr = healErr
				continue
			}
			return nil, healErr
		} else if result != nil {
			r.cacheFeatures(ctx, desc, result.Handle)
			return &Resolution{Handle: result.Handle, Selector: result.Selector, Healed: result}, nil
		}

		lastErr = fmt.Errorf("element %q not found via %s=%q", desc.Name, desc.LocatorType, desc.LocatorValue)
		r.logger.Debug("Resolution attempt failed.",
			zap.String("element", desc.Name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.maxAttempts))
	}
	return nil, fmt.Errorf("failed to resolve %q after %d attempts: %w", desc.Name, r.maxAttempts, lastErr)
}

// Features returns the cached snapshot for an element, if any.
func (r *SmartElementResolver) Features(name string) *schemas.ElementFeatures {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.features[name]
}

func (r *SmartElementResolver) tryHeal(ctx context.Context, desc schemas.ElementDescriptor) (*schemas.HealingResult, error) {
	if r.orchestrator == nil || !r.orchestrator.Enabled() {
		return nil, nil
	}
	known := r.Features(desc.Name)
	if known == nil && desc.Description == "" {
		// Nothing to heal from: never resolved and no description for the
		// AI fallback.
		return nil, nil
	}
	return r.orchestrator.Heal(ctx, desc, known)
}

// cacheFeatures refreshes the stored snapshot. Extraction failure only costs
// future healing quality, so it is logged and swallowed.
func (r *SmartElementResolver) cacheFeatures(ctx context.Context, desc schemas.ElementDescriptor, handle schemas.LiveHandle) {
	features, err := r.extractor.ExtractFeatures(ctx, handle)
	if err != nil {
		r.logger.Warn("Feature snapshot capture failed.",
			zap.String("element", desc.Name), zap.Error(err))
		return
	}
	r.mu.Lock()
	r.features[desc.Name] = features
	r.mu.Unlock()
}

func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, marker := range transientErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
