package engine

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/forge/internal/constants"
	"github.com/mrz1836/forge/internal/domain"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
	"github.com/mrz1836/forge/internal/plan"
	"github.com/mrz1836/forge/internal/recipe"
	"github.com/mrz1836/forge/internal/tool"
	"github.com/mrz1836/forge/internal/variables"
)

// Config holds engine-wide settings. Zero values select the defaults.
type Config struct {
	// MaxParallelSteps bounds concurrency within a phase when the recipe
	// does not set its own limit. Zero selects the default.
	MaxParallelSteps int

	// DefaultRetries applies to steps without their own retry count.
	// Negative selects the default.
	DefaultRetries int

	// ProjectRoot is the directory relative output paths resolve against.
	ProjectRoot string

	// Metrics receives execution metrics. Nil selects NoopMetrics.
	Metrics Metrics
}

// RunOptions are per-execution flags.
type RunOptions struct {
	// DryRun predicts file changes without touching the file system.
	// Hooks do not run under dry run.
	DryRun bool

	// Force allows tools to overwrite existing files.
	Force bool
}

// Engine orchestrates recipe execution: it validates the recipe, builds the
// execution plan, and dispatches phases with bounded concurrency. Safe for
// concurrent use; each ExecuteRecipe call is an independent execution.
type Engine struct {
	registry  *tool.Registry
	runner    *StepRunner
	evaluator domain.ConditionEvaluator
	logger    zerolog.Logger
	metrics   Metrics
	cfg       Config

	mu          sync.Mutex
	observers   []ProgressCallback
	executions  map[string]*execution
	lastMetrics map[string]*domain.ExecutionMetrics
}

// New creates an engine backed by the given tool registry and condition
// evaluator.
func New(registry *tool.Registry, evaluator domain.ConditionEvaluator, logger zerolog.Logger, cfg Config) *Engine {
	if cfg.MaxParallelSteps <= 0 {
		cfg.MaxParallelSteps = constants.DefaultMaxParallelSteps
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoopMetrics{}
	}

	runner := NewStepRunner(registry, logger, cfg.DefaultRetries)
	runner.metrics = cfg.Metrics

	e := &Engine{
		registry:    registry,
		runner:      runner,
		evaluator:   evaluator,
		logger:      logger,
		metrics:     cfg.Metrics,
		cfg:         cfg,
		executions:  make(map[string]*execution),
		lastMetrics: make(map[string]*domain.ExecutionMetrics),
	}
	runner.onResolve = e.trackStepTool
	return e
}

// trackStepTool records a resolved tool instance against its execution so
// CancelExecution can clean up instances backing in-flight steps. The
// returned function removes the record when the step releases the tool.
func (e *Engine) trackStepTool(executionID string, inst tool.Tool) func() {
	e.mu.Lock()
	ex, ok := e.executions[executionID]
	e.mu.Unlock()

	if !ok {
		return nil
	}
	ex.trackTool(inst)
	return func() { ex.untrackTool(inst) }
}

// Registry returns the engine's tool registry, for registration and discovery.
func (e *Engine) Registry() *tool.Registry {
	return e.registry
}

// ExecuteRecipe runs a full recipe. values are the caller-provided variable
// values, checked against the recipe's declarations.
//
// A structurally invalid recipe (duplicate steps, unknown dependencies,
// cycles) or an unsatisfiable variable set fails fast with an error and zero
// side effects. Step-level failures are encoded in the returned
// RecipeResult, not the error.
func (e *Engine) ExecuteRecipe(ctx context.Context, rec *domain.RecipeConfig, values map[string]any, opts RunOptions) (*domain.RecipeResult, error) {
	if err := recipe.Validate(rec); err != nil {
		return nil, err
	}

	vars, err := variables.Resolve(rec.Variables, values)
	if err != nil {
		return nil, err
	}

	tracker := newMetricsTracker()

	planStart := time.Now()
	execPlan, planErr := plan.Create(rec.Steps)
	if planErr != nil {
		return nil, planErr
	}
	tracker.planResolved(time.Since(planStart), execPlan)

	executionID := uuid.NewString()

	timeout := rec.Settings.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultRecipeTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ex := e.registerExecution(executionID, rec.Name, cancel)
	defer e.unregisterExecution(executionID)

	stepCtx := &domain.StepContext{
		Variables:   vars,
		ProjectRoot: e.cfg.ProjectRoot,
		RecipeName:  rec.Name,
		ExecutionID: executionID,
		StartedAt:   time.Now().UTC(),
		Evaluator:   e.evaluator,
		DryRun:      opts.DryRun,
		Force:       opts.Force,
	}

	e.logger.Info().
		Str("recipe", rec.Name).
		Str("execution_id", executionID).
		Int("steps", len(rec.Steps)).
		Int("phases", len(execPlan.Phases)).
		Bool("dry_run", opts.DryRun).
		Msg("executing recipe")

	e.metrics.RecipeStarted(executionID, rec.Name)
	e.emit(ProgressEvent{Type: EventRecipeStarted, ExecutionID: executionID, RecipeName: rec.Name})

	if !opts.DryRun {
		e.runHooks(runCtx, "before_recipe", rec.Hooks.BeforeRecipe, stepCtx)
	}

	results := e.runPhases(runCtx, rec, execPlan, stepCtx, tracker)

	result := e.assembleResult(rec, ex, stepCtx, results, tracker)

	if !opts.DryRun {
		if !result.Success {
			e.runHooks(context.WithoutCancel(runCtx), "on_error", rec.Hooks.OnError, stepCtx)
		}
		e.runHooks(context.WithoutCancel(runCtx), "after_recipe", rec.Hooks.AfterRecipe, stepCtx)
	}

	e.mu.Lock()
	e.lastMetrics[executionID] = result.Metrics
	e.mu.Unlock()

	e.metrics.RecipeCompleted(executionID, result.Duration, result.Status.String())
	e.emit(ProgressEvent{
		Type:        EventRecipeCompleted,
		ExecutionID: executionID,
		RecipeName:  rec.Name,
	})

	e.logger.Info().
		Str("recipe", rec.Name).
		Str("execution_id", executionID).
		Str("status", result.Status.String()).
		Dur("duration", result.Duration).
		Msg("recipe finished")

	return result, nil
}

// ExecuteSteps runs a bare step list without recipe-level settings, hooks,
// or variable declarations. The step context supplies variables and flags.
// Returns results in declaration order; the error is non-nil only for
// structural problems.
func (e *Engine) ExecuteSteps(ctx context.Context, steps []domain.Step, stepCtx *domain.StepContext) ([]*domain.StepResult, error) {
	execPlan, err := plan.Create(steps)
	if err != nil {
		return nil, err
	}

	if stepCtx.ExecutionID == "" {
		stepCtx.ExecutionID = uuid.NewString()
	}
	if stepCtx.Evaluator == nil {
		stepCtx.Evaluator = e.evaluator
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.registerExecution(stepCtx.ExecutionID, stepCtx.RecipeName, cancel)
	defer e.unregisterExecution(stepCtx.ExecutionID)

	rec := &domain.RecipeConfig{Name: stepCtx.RecipeName, Steps: steps}
	tracker := newMetricsTracker()
	tracker.planResolved(0, execPlan)

	results := e.runPhases(runCtx, rec, execPlan, stepCtx, tracker)

	e.mu.Lock()
	e.lastMetrics[stepCtx.ExecutionID] = tracker.snapshot()
	e.mu.Unlock()

	ordered := make([]*domain.StepResult, 0, len(steps))
	for i := range steps {
		ordered = append(ordered, results[steps[i].Name])
	}
	return ordered, nil
}

// Metrics returns the finalized metrics snapshot for a finished execution.
func (e *Engine) Metrics(executionID string) (*domain.ExecutionMetrics, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	metrics, ok := e.lastMetrics[executionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", forgeerrors.ErrExecutionNotFound, executionID)
	}
	return metrics, nil
}

// runPhases dispatches the plan phase by phase. Steps within a phase run
// concurrently up to the parallelism limit; phases are strictly sequential.
// Every step gets a terminal result, dispatched or not.
func (e *Engine) runPhases(ctx context.Context, rec *domain.RecipeConfig, execPlan *domain.ExecutionPlan, stepCtx *domain.StepContext, tracker *metricsTracker) map[string]*domain.StepResult {
	maxParallel := rec.Settings.MaxParallelSteps
	if maxParallel <= 0 {
		maxParallel = e.cfg.MaxParallelSteps
	}
	continueAll := rec.Settings.ContinueOnError

	// Retry resolution: step-level count, then the recipe-wide default,
	// then the engine default inside the runner.
	byName := make(map[string]*domain.Step, len(rec.Steps))
	for i := range rec.Steps {
		step := &rec.Steps[i]
		if step.Retries == nil && rec.Settings.DefaultRetries != nil {
			withDefault := *step
			withDefault.Retries = rec.Settings.DefaultRetries
			step = &withDefault
		}
		byName[step.Name] = step
	}

	results := make(map[string]*domain.StepResult, len(rec.Steps))
	var resultsMu sync.Mutex

	aborted := false
	abortedBy := ""

	for _, phase := range execPlan.Phases {
		cancelled := ctx.Err() != nil

		// Snapshot of prior-phase results; every entry is terminal, so the
		// phase's goroutines can read it without locking.
		view := make(map[string]*domain.StepResult, len(results))
		for name, res := range results {
			view[name] = res
		}
		phaseCtx := *stepCtx
		phaseCtx.Results = view

		e.emit(ProgressEvent{
			Type:        EventPhaseStarted,
			ExecutionID: stepCtx.ExecutionID,
			RecipeName:  rec.Name,
			PhaseIndex:  phase.Index,
			TotalPhases: len(execPlan.Phases),
		})

		var g errgroup.Group
		g.SetLimit(maxParallel)

		for _, name := range phase.Steps {
			step := byName[name]

			if cancelled {
				res := undispatchedResult(step, constants.StepStatusCancelled, &domain.StepError{
					Message: "execution cancelled before step started",
					Code:    domain.ErrorCodeCancelled,
				})
				resultsMu.Lock()
				results[step.Name] = res
				resultsMu.Unlock()
				e.notifyTerminal(rec.Name, stepCtx.ExecutionID, step, res)
				continue
			}

			if skip := e.skipVerdict(step, view, aborted, abortedBy, continueAll); skip != nil {
				resultsMu.Lock()
				results[step.Name] = skip
				resultsMu.Unlock()
				tracker.stepSkipped(skip)
				e.notifyTerminal(rec.Name, stepCtx.ExecutionID, step, skip)
				continue
			}

			g.Go(func() error {
				tracker.stepStarted()
				e.emit(ProgressEvent{
					Type:        EventStepStarted,
					ExecutionID: stepCtx.ExecutionID,
					RecipeName:  rec.Name,
					StepName:    step.Name,
					StepStatus:  constants.StepStatusRunning,
				})

				if !stepCtx.DryRun {
					e.runHooks(ctx, "before_step", rec.Hooks.BeforeStep, &phaseCtx)
				}

				res := e.runner.RunStep(ctx, step, &phaseCtx)

				if !stepCtx.DryRun {
					e.runHooks(context.WithoutCancel(ctx), "after_step", rec.Hooks.AfterStep, &phaseCtx)
				}

				resultsMu.Lock()
				results[step.Name] = res
				resultsMu.Unlock()

				tracker.stepFinished(res)
				e.metrics.StepExecuted(stepCtx.ExecutionID, step.Name, step.Tool,
					time.Duration(res.DurationMs)*time.Millisecond,
					res.Status == constants.StepStatusCompleted)
				e.notifyTerminal(rec.Name, stepCtx.ExecutionID, step, res)
				return nil
			})
		}

		_ = g.Wait()

		e.emit(ProgressEvent{
			Type:        EventPhaseCompleted,
			ExecutionID: stepCtx.ExecutionID,
			RecipeName:  rec.Name,
			PhaseIndex:  phase.Index,
			TotalPhases: len(execPlan.Phases),
		})

		if aborted {
			continue
		}
		for _, name := range phase.Steps {
			res := results[name]
			if res == nil || res.Status != constants.StepStatusFailed {
				continue
			}
			if byName[name].ContinueOnError || continueAll {
				continue
			}
			aborted = true
			abortedBy = name
			e.logger.Warn().
				Str("recipe", rec.Name).
				Str("step_name", abortedBy).
				Msg("step failed; skipping dependent steps")
			break
		}
	}

	return results
}

// skipVerdict decides whether a step must be skipped without dispatching:
// either a dependency did not reach a satisfying state, or the run aborted
// after an earlier non-continuable failure. Returns nil when the step
// should dispatch.
func (e *Engine) skipVerdict(step *domain.Step, view map[string]*domain.StepResult, aborted bool, abortedBy string, continueAll bool) *domain.StepResult {
	for _, dep := range step.DependsOn {
		res := view[dep]
		if res == nil {
			continue
		}
		if res.Satisfied() {
			continue
		}
		if res.Status == constants.StepStatusFailed && (continueAll || step.ContinueOnError) {
			// The dependent opted into running after failures.
			continue
		}
		skip := undispatchedResult(step, constants.StepStatusSkipped, &domain.StepError{
			Message: fmt.Sprintf("dependency %q did not complete (status %s)", dep, res.Status),
			Code:    domain.ErrorCodeDependency,
		})
		skip.DependenciesSatisfied = false
		return skip
	}

	if aborted {
		return undispatchedResult(step, constants.StepStatusSkipped, &domain.StepError{
			Message: fmt.Sprintf("not run: step %q failed earlier in the recipe", abortedBy),
			Code:    domain.ErrorCodeDependency,
		})
	}
	return nil
}

// notifyTerminal emits the step_completed event for a terminal result.
func (e *Engine) notifyTerminal(recipeName, executionID string, step *domain.Step, res *domain.StepResult) {
	event := ProgressEvent{
		Type:        EventStepCompleted,
		ExecutionID: executionID,
		RecipeName:  recipeName,
		StepName:    step.Name,
		StepStatus:  res.Status,
	}
	if res.Error != nil {
		event.Err = res.Error.Message
	}
	e.emit(event)
}

// assembleResult folds the per-step results into the recipe-level report,
// in declaration order with no step omitted.
func (e *Engine) assembleResult(rec *domain.RecipeConfig, exec *execution, stepCtx *domain.StepContext, results map[string]*domain.StepResult, tracker *metricsTracker) *domain.RecipeResult {
	result := &domain.RecipeResult{
		RecipeName:  rec.Name,
		ExecutionID: stepCtx.ExecutionID,
		Success:     true,
		StartedAt:   stepCtx.StartedAt,
		CompletedAt: time.Now().UTC(),
	}
	result.Duration = result.CompletedAt.Sub(result.StartedAt)

	anyCancelled := false
	for i := range rec.Steps {
		step := &rec.Steps[i]
		res := results[step.Name]
		if res == nil {
			res = undispatchedResult(step, constants.StepStatusSkipped, &domain.StepError{
				Message: "not dispatched",
				Code:    domain.ErrorCodeDependency,
			})
		}
		result.StepResults = append(result.StepResults, res)

		result.FilesCreated = append(result.FilesCreated, res.FilesCreated...)
		result.FilesModified = append(result.FilesModified, res.FilesModified...)
		result.FilesDeleted = append(result.FilesDeleted, res.FilesDeleted...)

		switch res.Status {
		case constants.StepStatusFailed:
			result.Success = false
			if res.Error != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("step %q: %s", step.Name, res.Error.Message))
			}
		case constants.StepStatusCancelled:
			result.Success = false
			anyCancelled = true
		case constants.StepStatusSkipped:
			if res.Error != nil && res.Error.Code == domain.ErrorCodeDependency {
				result.Success = false
			}
		case constants.StepStatusPending, constants.StepStatusRunning,
			constants.StepStatusCompleted:
		}
	}

	switch {
	case anyCancelled || exec.cancelled.Load():
		result.Status = constants.ExecutionStatusCancelled
	case result.Success:
		result.Status = constants.ExecutionStatusCompleted
	default:
		result.Status = constants.ExecutionStatusFailed
	}

	result.Metrics = tracker.snapshot()
	return result
}

// undispatchedResult builds a terminal result for a step that never ran.
func undispatchedResult(step *domain.Step, status constants.StepStatus, stepErr *domain.StepError) *domain.StepResult {
	now := time.Now().UTC()
	return &domain.StepResult{
		StepName:              step.Name,
		Status:                status,
		StartedAt:             now,
		CompletedAt:           now,
		DependenciesSatisfied: true,
		ConditionResult:       true,
		Error:                 stepErr,
	}
}

// runHooks executes hook commands through the shell, expanding {{variable}}
// references against the run's variables. Hook failures are logged and
// swallowed; hooks never fail the run.
func (e *Engine) runHooks(ctx context.Context, kind string, commands []string, stepCtx *domain.StepContext) {
	for _, command := range commands {
		expanded := variables.ExpandString(command, stepCtx.Variables)

		cmd := exec.CommandContext(ctx, "sh", "-c", expanded) //nolint:gosec // Hooks are recipe-authored commands
		cmd.Dir = stepCtx.ProjectRoot
		if out, err := cmd.CombinedOutput(); err != nil {
			e.logger.Warn().
				Str("hook", kind).
				Str("command", expanded).
				Str("output", string(out)).
				Err(err).
				Msg("hook failed")
		}
	}
}
