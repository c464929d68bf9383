// Package engine executes recipes: it runs individual steps through their
// tools with retry and timeout handling, and orchestrates full recipes as
// phases of concurrently-running steps.
//
// Import rules:
//   - May import domain, constants, errors, clock, ctxutil, condition,
//     plan, tool, variables, recipe
//   - Must NOT import config, logging, or cmd packages
package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/forge/internal/constants"
	"github.com/mrz1836/forge/internal/ctxutil"
	"github.com/mrz1836/forge/internal/domain"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
	"github.com/mrz1836/forge/internal/tool"
	"github.com/mrz1836/forge/internal/variables"
)

// StepRunner executes a single step through its tool, applying the step's
// condition, validation, timeout, and retry policy. It is safe for
// concurrent use; all per-step state lives in the StepResult it returns.
type StepRunner struct {
	registry       *tool.Registry
	logger         zerolog.Logger
	defaultRetries int
	metrics        Metrics
	sleep          func(ctx context.Context, d time.Duration) error

	// onResolve, when set, observes every tool resolution; the returned
	// function runs when the step releases the instance. The engine uses
	// it to clean up tools backing in-flight steps on cancellation.
	onResolve func(executionID string, inst tool.Tool) func()
}

// NewStepRunner creates a step runner backed by the given tool registry.
// defaultRetries applies to steps that do not declare their own retry count;
// pass a negative value to use the built-in default.
func NewStepRunner(registry *tool.Registry, logger zerolog.Logger, defaultRetries int) *StepRunner {
	if defaultRetries < 0 {
		defaultRetries = constants.DefaultStepRetries
	}
	return &StepRunner{
		registry:       registry,
		logger:         logger,
		defaultRetries: defaultRetries,
		metrics:        NoopMetrics{},
		sleep:          ctxutil.Sleep,
	}
}

// RunStep executes one step and returns its terminal result. The result is
// always non-nil; ordinary failures are encoded in the result rather than
// panicking or returning a bare error.
//
// State machine: pending -> running -> {skipped, completed, failed, cancelled}.
func (r *StepRunner) RunStep(ctx context.Context, step *domain.Step, stepCtx *domain.StepContext) *domain.StepResult {
	result := &domain.StepResult{
		StepName:              step.Name,
		Status:                constants.StepStatusRunning,
		StartedAt:             time.Now().UTC(),
		DependenciesSatisfied: true,
		ConditionResult:       true,
	}

	if err := ctxutil.Canceled(ctx); err != nil {
		return r.finish(result, constants.StepStatusCancelled, &domain.StepError{
			Message: "execution cancelled before step started",
			Code:    domain.ErrorCodeCancelled,
			Cause:   err.Error(),
		})
	}

	merged := stepCtx.ForStep(step)
	expanded := variables.ExpandStep(step, merged.Variables)

	ok, err := r.evaluateCondition(expanded, merged)
	if err != nil {
		return r.finish(result, constants.StepStatusFailed, &domain.StepError{
			Message: fmt.Sprintf("condition %q: %s", expanded.When, err),
			Code:    domain.ErrorCodeValidation,
			Cause:   err.Error(),
		})
	}
	if !ok {
		result.ConditionResult = false
		result.Output = "skipped: condition evaluated to false"
		r.logger.Debug().
			Str("step_name", step.Name).
			Str("condition", expanded.When).
			Msg("skipping step")
		return r.finish(result, constants.StepStatusSkipped, nil)
	}

	inst, err := r.registry.Resolve(ctx, expanded.Tool, expanded.ToolName())
	if err != nil {
		return r.finish(result, constants.StepStatusFailed, &domain.StepError{
			Message: fmt.Sprintf("resolving tool %s/%s", expanded.Tool, expanded.ToolName()),
			Code:    domain.ErrorCodeValidation,
			Cause:   err.Error(),
		})
	}
	defer r.registry.Release(expanded.Tool, expanded.ToolName())

	if r.onResolve != nil {
		if release := r.onResolve(merged.ExecutionID, inst); release != nil {
			defer release()
		}
	}

	validation, err := inst.Validate(ctx, expanded, merged)
	if err != nil {
		return r.finish(result, constants.StepStatusFailed, &domain.StepError{
			Message: "tool validation errored",
			Code:    domain.ErrorCodeValidation,
			Cause:   err.Error(),
		})
	}
	if !validation.Valid {
		return r.finish(result, constants.StepStatusFailed, &domain.StepError{
			Message: "invalid step configuration: " + strings.Join(validation.Errors, "; "),
			Code:    domain.ErrorCodeValidation,
		})
	}

	return r.execute(ctx, inst, expanded, merged, result)
}

// execute runs the tool with the step's retry policy. Validation has
// already passed; every attempt here is an execution attempt.
func (r *StepRunner) execute(ctx context.Context, inst tool.Tool, step *domain.Step, stepCtx *domain.StepContext, result *domain.StepResult) *domain.StepResult {
	retries := r.defaultRetries
	if step.Retries != nil {
		retries = *step.Retries
	}
	maxAttempts := retries + 1

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result.RetryCount = attempt

		if attempt > 0 {
			r.metrics.StepRetried(stepCtx.ExecutionID, step.Name, attempt)
			delay := backoffDelay(attempt - 1)
			r.logger.Warn().
				Str("step_name", step.Name).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Err(lastErr).
				Msg("retrying step")
			if err := r.sleep(ctx, delay); err != nil {
				return r.finish(result, constants.StepStatusCancelled, &domain.StepError{
					Message: "execution cancelled while waiting to retry",
					Code:    domain.ErrorCodeCancelled,
					Cause:   err.Error(),
				})
			}
		}

		payload, err := r.attempt(ctx, inst, step, stepCtx)
		if err == nil {
			if payload != nil {
				result.Output = payload.Output
				result.Metadata = payload.Metadata
				result.FilesCreated = payload.FilesCreated
				result.FilesModified = payload.FilesModified
				result.FilesDeleted = payload.FilesDeleted
			}
			return r.finish(result, constants.StepStatusCompleted, nil)
		}

		if ctxutil.Canceled(ctx) != nil {
			return r.finish(result, constants.StepStatusCancelled, &domain.StepError{
				Message: "execution cancelled",
				Code:    domain.ErrorCodeCancelled,
				Cause:   err.Error(),
			})
		}
		lastErr = err
	}

	code := domain.ErrorCodeExecution
	if stderrors.Is(lastErr, context.DeadlineExceeded) || stderrors.Is(lastErr, forgeerrors.ErrStepTimeout) {
		code = domain.ErrorCodeTimeout
	}
	return r.finish(result, constants.StepStatusFailed, &domain.StepError{
		Message: fmt.Sprintf("%s after %d attempts", forgeerrors.ErrMaxRetriesExceeded, maxAttempts),
		Code:    code,
		Cause:   lastErr.Error(),
	})
}

// attempt performs one Execute call under the step's per-attempt timeout.
func (r *StepRunner) attempt(ctx context.Context, inst tool.Tool, step *domain.Step, stepCtx *domain.StepContext) (*tool.Result, error) {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultStepTimeout
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := inst.Execute(attemptCtx, step, stepCtx)
	if err != nil && stderrors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return payload, fmt.Errorf("%w: attempt exceeded %s: %s", forgeerrors.ErrStepTimeout, timeout, err)
	}
	return payload, err
}

// evaluateCondition returns the step's `when` verdict. Empty conditions
// evaluate true; evaluation errors fail the step as a configuration error.
func (r *StepRunner) evaluateCondition(step *domain.Step, stepCtx *domain.StepContext) (bool, error) {
	if step.When == "" {
		return true, nil
	}
	if stepCtx.Evaluator == nil {
		return false, forgeerrors.ErrConditionEval
	}
	return stepCtx.Evaluator.Evaluate(step.When, conditionScope(stepCtx))
}

// conditionScope builds the variable tree visible to `when` expressions:
// variables.<name>, env.<name>, and steps.<name>.{status,output}.
func conditionScope(stepCtx *domain.StepContext) map[string]any {
	env := make(map[string]any, len(stepCtx.Environment))
	for k, v := range stepCtx.Environment {
		env[k] = v
	}

	steps := make(map[string]any, len(stepCtx.Results))
	for name, res := range stepCtx.Results {
		steps[name] = map[string]any{
			"status": res.Status.String(),
			"output": res.Output,
		}
	}

	return map[string]any{
		"variables": stepCtx.Variables,
		"env":       env,
		"steps":     steps,
	}
}

// finish stamps the terminal state on the result and returns it.
func (r *StepRunner) finish(result *domain.StepResult, status constants.StepStatus, stepErr *domain.StepError) *domain.StepResult {
	result.Status = status
	result.Error = stepErr
	result.CompletedAt = time.Now().UTC()
	result.DurationMs = result.CompletedAt.Sub(result.StartedAt).Milliseconds()
	return result
}

// backoffDelay returns the delay before retry number retryIndex (0-based):
// min(base * 2^retryIndex, max) with symmetric jitter, floored at the
// minimum delay so retries never hammer a failing tool.
func backoffDelay(retryIndex int) time.Duration {
	delay := constants.RetryBaseDelay
	for i := 0; i < retryIndex && delay < constants.RetryMaxDelay; i++ {
		delay *= 2
	}
	if delay > constants.RetryMaxDelay {
		delay = constants.RetryMaxDelay
	}

	jitter := 1 + constants.RetryJitterFraction*(2*rand.Float64()-1) //nolint:gosec // Jitter does not need crypto randomness
	delay = time.Duration(float64(delay) * jitter)

	if delay < constants.RetryMinDelay {
		delay = constants.RetryMinDelay
	}
	return delay
}
