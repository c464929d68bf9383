package domain

import (
	"time"

	"github.com/mrz1836/forge/internal/constants"
)

// StepError is the structured error attached to a failed step result.
type StepError struct {
	// Message is the human-readable failure description.
	Message string `json:"message"`

	// Code categorizes the failure (validation, execution, timeout, cancelled).
	Code string `json:"code,omitempty"`

	// Cause carries the underlying error text, if any.
	Cause string `json:"cause,omitempty"`
}

// Error codes used in StepError.Code.
const (
	// ErrorCodeValidation marks a tool validation rejection (never retried).
	ErrorCodeValidation = "validation"

	// ErrorCodeExecution marks an execution fault after retries were exhausted.
	ErrorCodeExecution = "execution"

	// ErrorCodeTimeout marks a step that exceeded its timeout.
	ErrorCodeTimeout = "timeout"

	// ErrorCodeCancelled marks a step terminated by cancellation.
	ErrorCodeCancelled = "cancelled"

	// ErrorCodeDependency marks a step skipped because a dependency failed.
	ErrorCodeDependency = "dependency_failed"
)

// StepResult captures the outcome of executing one step.
// It is created at phase dispatch, mutated only by the runner that owns it,
// and immutable once Status reaches a terminal value.
//
// Example JSON representation:
//
//	{
//	    "step_name": "render-model",
//	    "status": "completed",
//	    "duration_ms": 120,
//	    "retry_count": 0,
//	    "files_created": ["internal/models/user.go"]
//	}
type StepResult struct {
	// StepName identifies which step produced this result.
	StepName string `json:"step_name"`

	// Status is the current state of the step.
	Status constants.StepStatus `json:"status"`

	// StartedAt is when step execution began.
	StartedAt time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the step reached a terminal state.
	CompletedAt time.Time `json:"completed_at,omitempty"`

	// DurationMs is the wall-clock execution time in milliseconds.
	DurationMs int64 `json:"duration_ms"`

	// RetryCount is how many retries were consumed (0 for first-attempt success).
	RetryCount int `json:"retry_count"`

	// DependenciesSatisfied records whether all dependencies reached a
	// satisfying terminal state before dispatch.
	DependenciesSatisfied bool `json:"dependencies_satisfied"`

	// ConditionResult records the `when` evaluation (true when no condition).
	ConditionResult bool `json:"condition_result"`

	// Output contains free-form text output from the tool.
	Output string `json:"output,omitempty"`

	// Metadata carries tool-specific payload for downstream steps.
	Metadata map[string]any `json:"metadata,omitempty"`

	// File change lists extracted from the tool result.
	FilesCreated  []string `json:"files_created,omitempty"`
	FilesModified []string `json:"files_modified,omitempty"`
	FilesDeleted  []string `json:"files_deleted,omitempty"`

	// Error is set when Status is failed or cancelled.
	Error *StepError `json:"error,omitempty"`
}

// Satisfied reports whether this terminal result satisfies dependents for
// scheduling. Completed and skipped-by-condition results satisfy; failed
// results satisfy only if the step opted into continue-on-error (the
// orchestrator checks that separately), and cancelled results never do.
func (r *StepResult) Satisfied() bool {
	switch r.Status {
	case constants.StepStatusCompleted, constants.StepStatusSkipped:
		return r.Error == nil || r.Error.Code != ErrorCodeDependency
	case constants.StepStatusPending, constants.StepStatusRunning,
		constants.StepStatusFailed, constants.StepStatusCancelled:
		return false
	}
	return false
}

// RecipeResult is the aggregated, recipe-level outcome of one execution.
type RecipeResult struct {
	// RecipeName identifies the executed recipe.
	RecipeName string `json:"recipe_name"`

	// ExecutionID is the unique id assigned to this run.
	ExecutionID string `json:"execution_id"`

	// Success is true when every dispatched step completed or was skipped
	// by its condition.
	Success bool `json:"success"`

	// Status is the terminal execution status.
	Status constants.ExecutionStatus `json:"status"`

	// StepResults holds one result per step, in recipe declaration order.
	// No step is ever omitted from the report.
	StepResults []*StepResult `json:"step_results"`

	// Aggregated file change lists across all steps.
	FilesCreated  []string `json:"files_created,omitempty"`
	FilesModified []string `json:"files_modified,omitempty"`
	FilesDeleted  []string `json:"files_deleted,omitempty"`

	// Errors collects fatal condition descriptions, in declaration order.
	Errors []string `json:"errors,omitempty"`

	// StartedAt and CompletedAt bound the run.
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// Duration is the total wall-clock run time.
	Duration time.Duration `json:"duration"`

	// Metrics is the finalized metrics snapshot for the run.
	Metrics *ExecutionMetrics `json:"metrics,omitempty"`
}

// ExecutionMetrics accumulates timing, concurrency, retry, and memory
// statistics for one recipe run.
type ExecutionMetrics struct {
	// TotalDuration is the wall-clock time of the whole run.
	TotalDuration time.Duration `json:"total_duration"`

	// ResolutionDuration is the time spent building the execution plan.
	ResolutionDuration time.Duration `json:"resolution_duration"`

	// StepDurations maps step name to execution time.
	StepDurations map[string]time.Duration `json:"step_durations,omitempty"`

	// MaxConcurrent is the peak number of simultaneously running steps.
	MaxConcurrent int `json:"max_concurrent"`

	// AvgConcurrent is the mean concurrency sampled at step boundaries.
	AvgConcurrent float64 `json:"avg_concurrent"`

	// RetryCount is the total retries consumed across all steps.
	RetryCount int `json:"retry_count"`

	// FailureCount is the number of steps that ended failed.
	FailureCount int `json:"failure_count"`

	// SkippedCount is the number of steps that ended skipped.
	SkippedCount int `json:"skipped_count"`

	// PeakMemoryDelta and AvgMemoryDelta track heap growth against the
	// snapshot taken at run start, in bytes.
	PeakMemoryDelta int64 `json:"peak_memory_delta"`
	AvgMemoryDelta  int64 `json:"avg_memory_delta"`

	// PhaseCount is the number of phases in the plan.
	PhaseCount int `json:"phase_count"`

	// MaxDepth is the deepest dependency depth in the plan.
	MaxDepth int `json:"max_depth"`

	// CycleCount is the number of dependency cycles detected (always zero
	// for plans that reached execution).
	CycleCount int `json:"cycle_count"`
}
