package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	forgeerrors "github.com/mrz1836/forge/internal/errors"
)

func TestSentinelErrorsAreDistinct(t *testing.T) {
	t.Parallel()

	sentinels := []error{
		forgeerrors.ErrRecipeNil,
		forgeerrors.ErrCyclicDependency,
		forgeerrors.ErrUnknownDependency,
		forgeerrors.ErrDuplicateStepName,
		forgeerrors.ErrDuplicateTool,
		forgeerrors.ErrToolNotFound,
		forgeerrors.ErrStepValidation,
		forgeerrors.ErrStepExecution,
		forgeerrors.ErrMaxRetriesExceeded,
		forgeerrors.ErrExecutionCancelled,
		forgeerrors.ErrVariableRequired,
		forgeerrors.ErrConditionSyntax,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, stderrors.Is(a, b), "%v should not match %v", a, b)
		}
	}
}

func TestWrapPreservesChain(t *testing.T) {
	t.Parallel()

	wrapped := forgeerrors.Wrap(forgeerrors.ErrToolNotFound, "resolving step tool")
	require.Error(t, wrapped)
	assert.ErrorIs(t, wrapped, forgeerrors.ErrToolNotFound)
	assert.Contains(t, wrapped.Error(), "resolving step tool")

	assert.NoError(t, forgeerrors.Wrap(nil, "no-op"))
}

func TestWrapfFormats(t *testing.T) {
	t.Parallel()

	wrapped := forgeerrors.Wrapf(forgeerrors.ErrUnknownDependency, "step %q", "build")
	require.Error(t, wrapped)
	assert.ErrorIs(t, wrapped, forgeerrors.ErrUnknownDependency)
	assert.Contains(t, wrapped.Error(), `step "build"`)
}

func TestUserMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"cycle", forgeerrors.ErrCyclicDependency, "dependency cycle"},
		{"wrapped cycle", fmt.Errorf("planning: %w", forgeerrors.ErrCyclicDependency), "dependency cycle"},
		{"unknown sentinel", stderrors.New("boom"), "boom"},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			msg := forgeerrors.UserMessage(tt.err)
			if tt.contains == "" {
				assert.Empty(t, msg)
				return
			}
			assert.Contains(t, msg, tt.contains)
		})
	}
}

func TestActionable(t *testing.T) {
	t.Parallel()

	assert.NotEmpty(t, forgeerrors.Actionable(forgeerrors.ErrToolNotFound))
	assert.Empty(t, forgeerrors.Actionable(stderrors.New("unmapped")))
	assert.Empty(t, forgeerrors.Actionable(nil))
}
