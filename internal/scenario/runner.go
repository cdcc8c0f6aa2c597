// File: internal/scenario/runner.go
package scenario

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remedy/api/schemas"
	"github.com/xkilldash9x/remedy/internal/engine"
	"github.com/xkilldash9x/remedy/internal/netintercept"
	"github.com/xkilldash9x/remedy/internal/resolver"
)

const defaultStepTimeout = 30 * time.Second
const defaultQuietPeriod = 500 * time.Millisecond

// StepResult is the recorded outcome of one step.
type StepResult struct {
	StepID  string                 `json:"stepId"`
	Action  StepAction             `json:"action"`
	OK      bool                   `json:"ok"`
	Error   string                 `json:"error,omitempty"`
	Healed  *schemas.HealingResult `json:"healed,omitempty"`
	Elapsed time.Duration          `json:"elapsed"`
}

// Runner drives a scenario against an engine and writes evidence as it goes.
type Runner struct {
	engine *engine.Engine
	logger *zap.Logger
}

// NewRunner creates a runner.
func NewRunner(e *engine.Engine, logger *zap.Logger) *Runner {
	return &Runner{engine: e, logger: logger.Named("runner")}
}

// Run executes every step in order, stopping at the first failure. Evidence
// for each step and the final network artifacts are written regardless of
// outcome.
func (r *Runner) Run(ctx context.Context, s *Scenario) error {
	r.logger.Info("Running scenario.", zap.String("scenario", s.ID), zap.Int("steps", len(s.Steps)))

	var runErr error
	for _, step := range s.Steps {
		result := r.runStep(ctx, s, step)
		if err := r.engine.Evidence().WriteJSON(s.ID, step.ID, "step", result); err != nil {
			r.logger.Warn("Failed to write step evidence.", zap.String("step", step.ID), zap.Error(err))
		}
		if !result.OK {
			runErr = fmt.Errorf("step %q failed: %s", step.ID, result.Error)
			break
		}
	}

	r.flushNetworkEvidence(ctx, s)
	if runErr != nil {
		return runErr
	}
	r.logger.Info("Scenario passed.", zap.String("scenario", s.ID))
	return nil
}

func (r *Runner) runStep(ctx context.Context, s *Scenario, step Step) StepResult {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	result := StepResult{StepID: step.ID, Action: step.Action, OK: true}

	var res *resolver.Resolution
	var err error
	switch step.Action {
	case ActionNavigate:
		url := step.Value
		if url == "" {
			url = s.BaseURL
		} else if strings.HasPrefix(url, "/") {
			url = strings.TrimSuffix(s.BaseURL, "/") + url
		}
		err = r.engine.Navigate(stepCtx, url)
	case ActionClick:
		res, err = r.engine.Click(stepCtx, s.Descriptor(step.Element))
	case ActionFill:
		res, err = r.engine.Fill(stepCtx, s.Descriptor(step.Element), step.Value)
	case ActionAssertText:
		var text string
		text, res, err = r.engine.Text(stepCtx, s.Descriptor(step.Element))
		if err == nil && !strings.Contains(text, step.Value) {
			err = fmt.Errorf("expected text %q, got %q", step.Value, text)
		}
	case ActionWait:
		d := defaultQuietPeriod
		if step.Value != "" {
			d, _ = time.ParseDuration(step.Value)
		}
		select {
		case <-stepCtx.Done():
			err = stepCtx.Err()
		case <-time.After(d):
		}
	case ActionWaitIdle:
		quiet := defaultQuietPeriod
		if step.Value != "" {
			quiet, _ = time.ParseDuration(step.Value)
		}
		err = r.engine.HAR().WaitNetworkIdle(stepCtx, quiet)
	}

	result.Elapsed = time.Since(start)
	if res != nil && res.Healed != nil {
		result.Healed = res.Healed
		r.logger.Info("Step used a healed locator.",
			zap.String("step", step.ID),
			zap.String("strategy", res.Healed.Strategy),
			zap.String("selector", res.Healed.Selector))
	}
	if err != nil {
		result.OK = false
		result.Error = err.Error()
		r.logger.Error("Step failed.", zap.String("step", step.ID), zap.Error(err))
	} else {
		r.logger.Debug("Step passed.", zap.String("step", step.ID), zap.Duration("elapsed", result.Elapsed))
	}
	return result
}

// flushNetworkEvidence writes the HAR, its analytics, the waterfall and the
// security header report for the whole scenario.
func (r *Runner) flushNetworkEvidence(ctx context.Context, s *Scenario) {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	har := r.engine.HAR().Stop(stopCtx)
	artifacts := map[string]any{
		"har":              har,
		"har-analytics":    netintercept.Analyze(har),
		"waterfall":        netintercept.BuildWaterfall(har),
		"security-headers": netintercept.SecurityReport(har),
		"websockets":       r.engine.WebSockets().Connections(),
	}
	if err := r.engine.Evidence().WriteBundle(stopCtx, s.ID, "_network", artifacts); err != nil {
		r.logger.Warn("Failed to write network evidence.", zap.Error(err))
	}
}
