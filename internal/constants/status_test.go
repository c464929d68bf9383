package constants_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mrz1836/forge/internal/constants"
)

func TestStepStatusString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pending", constants.StepStatusPending.String())
	assert.Equal(t, "running", constants.StepStatusRunning.String())
	assert.Equal(t, "completed", constants.StepStatusCompleted.String())
	assert.Equal(t, "failed", constants.StepStatusFailed.String())
	assert.Equal(t, "skipped", constants.StepStatusSkipped.String())
	assert.Equal(t, "cancelled", constants.StepStatusCancelled.String())
}

func TestStepStatusIsTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   constants.StepStatus
		terminal bool
	}{
		{constants.StepStatusPending, false},
		{constants.StepStatusRunning, false},
		{constants.StepStatusCompleted, true},
		{constants.StepStatusFailed, true},
		{constants.StepStatusSkipped, true},
		{constants.StepStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}
