package engine

import (
	"time"

	"github.com/mrz1836/forge/internal/constants"
)

// ProgressEventType identifies the transition a progress event describes.
type ProgressEventType string

// Progress event types emitted during recipe execution.
const (
	// EventRecipeStarted fires once, before the first phase dispatches.
	EventRecipeStarted ProgressEventType = "recipe_started"

	// EventRecipeCompleted fires once, after the run reached a terminal state.
	EventRecipeCompleted ProgressEventType = "recipe_completed"

	// EventPhaseStarted fires before a phase's steps dispatch.
	EventPhaseStarted ProgressEventType = "phase_started"

	// EventPhaseCompleted fires after all steps of a phase are terminal.
	EventPhaseCompleted ProgressEventType = "phase_completed"

	// EventStepStarted fires when a step begins running.
	EventStepStarted ProgressEventType = "step_started"

	// EventStepCompleted fires when a step reaches a terminal state,
	// including skipped and failed.
	EventStepCompleted ProgressEventType = "step_completed"

	// EventExecutionCancelled fires when an execution is cancelled.
	EventExecutionCancelled ProgressEventType = "execution_cancelled"
)

// ProgressEvent describes one execution transition. Events are delivered
// synchronously to registered observers in registration order; slow
// observers slow the run down.
type ProgressEvent struct {
	Type        ProgressEventType
	ExecutionID string
	RecipeName  string

	// Step fields, set for step events.
	StepName   string
	StepStatus constants.StepStatus

	// Phase fields, set for phase events.
	PhaseIndex  int
	TotalPhases int

	// Err carries the failure description for failed steps and runs.
	Err string

	Timestamp time.Time
}

// ProgressCallback receives execution progress events. Callbacks must not
// call back into the engine for the same execution.
type ProgressCallback func(ProgressEvent)

// OnProgress registers a progress observer for all subsequent executions.
// Observers cannot be unregistered; register once at setup.
func (e *Engine) OnProgress(cb ProgressCallback) {
	if cb == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, cb)
}

// emit delivers an event to every registered observer.
func (e *Engine) emit(event ProgressEvent) {
	event.Timestamp = time.Now().UTC()

	e.mu.Lock()
	observers := make([]ProgressCallback, len(e.observers))
	copy(observers, e.observers)
	e.mu.Unlock()

	for _, cb := range observers {
		cb(event)
	}
}
