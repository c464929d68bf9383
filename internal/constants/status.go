package constants

// StepStatus represents the state of a step in the forge execution state machine.
// Status values use snake_case for JSON serialization compatibility.
type StepStatus string

// Step status constants define the valid states a step can be in.
// These follow the state machine defined in the architecture:
//
//	Pending → Running, Skipped
//	Running → Completed, Failed, Cancelled
//
// Completed, Failed, Skipped and Cancelled are terminal: a StepResult is
// immutable once it reaches one of them.
const (
	// StepStatusPending indicates a step is planned but not yet dispatched.
	StepStatusPending StepStatus = "pending"

	// StepStatusRunning indicates the step's tool is actively executing.
	StepStatusRunning StepStatus = "running"

	// StepStatusCompleted indicates the step finished successfully.
	StepStatusCompleted StepStatus = "completed"

	// StepStatusFailed indicates the step failed after exhausting retries,
	// or failed tool validation (which consumes no retries).
	StepStatusFailed StepStatus = "failed"

	// StepStatusSkipped indicates the step did not run, either because its
	// `when` condition evaluated false or because a dependency failed.
	StepStatusSkipped StepStatus = "skipped"

	// StepStatusCancelled indicates execution was cancelled before or during
	// the step. Cancelled steps are never retried.
	StepStatusCancelled StepStatus = "cancelled"
)

// String returns the string representation of the StepStatus.
// This implements fmt.Stringer for convenient logging and debugging.
func (s StepStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status is a terminal state.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusCompleted, StepStatusFailed, StepStatusSkipped, StepStatusCancelled:
		return true
	case StepStatusPending, StepStatusRunning:
		return false
	}
	return false
}

// ExecutionStatus represents the state of a recipe execution.
type ExecutionStatus string

// Execution status constants define the valid states a recipe run can be in.
const (
	// ExecutionStatusPending indicates the execution is planned but not started.
	ExecutionStatusPending ExecutionStatus = "pending"

	// ExecutionStatusRunning indicates phases are being dispatched.
	ExecutionStatusRunning ExecutionStatus = "running"

	// ExecutionStatusCompleted indicates all steps reached a terminal state
	// and none failed.
	ExecutionStatusCompleted ExecutionStatus = "completed"

	// ExecutionStatusFailed indicates at least one step failed.
	ExecutionStatusFailed ExecutionStatus = "failed"

	// ExecutionStatusCancelled indicates the run was cancelled by request.
	ExecutionStatusCancelled ExecutionStatus = "cancelled"
)

// String returns the string representation of the ExecutionStatus.
func (s ExecutionStatus) String() string {
	return string(s)
}
