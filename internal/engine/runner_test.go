package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/forge/internal/condition"
	"github.com/mrz1836/forge/internal/constants"
	"github.com/mrz1836/forge/internal/domain"
	"github.com/mrz1836/forge/internal/tool"
)

// stubTool is a configurable in-memory tool for runner tests.
type stubTool struct {
	mu            sync.Mutex
	executeCalls  int
	validateCalls int

	validateErrs []string
	executeErr   error
	failUntil    int // fail executions before this call number
	executeDelay time.Duration
	result       *tool.Result
}

func (s *stubTool) Initialize(context.Context) error { return nil }

func (s *stubTool) Validate(context.Context, *domain.Step, *domain.StepContext) (*tool.ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validateCalls++
	if len(s.validateErrs) > 0 {
		return &tool.ValidationResult{Valid: false, Errors: s.validateErrs}, nil
	}
	return &tool.ValidationResult{Valid: true}, nil
}

func (s *stubTool) Execute(ctx context.Context, _ *domain.Step, _ *domain.StepContext) (*tool.Result, error) {
	s.mu.Lock()
	s.executeCalls++
	calls := s.executeCalls
	s.mu.Unlock()

	if s.executeDelay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.executeDelay):
		}
	}

	if calls <= s.failUntil {
		return nil, errors.New("transient fault")
	}
	if s.executeErr != nil {
		return nil, s.executeErr
	}
	if s.result != nil {
		return s.result, nil
	}
	return &tool.Result{Output: "ok"}, nil
}

func (s *stubTool) Cleanup(context.Context) error { return nil }

func (s *stubTool) executions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executeCalls
}

func newRunnerFixture(t *testing.T, stub *stubTool) *StepRunner {
	t.Helper()

	registry := tool.NewRegistry(tool.RegistryConfig{SweepInterval: -1}, zerolog.Nop())
	t.Cleanup(func() { _ = registry.Close(context.Background()) })

	require.NoError(t, registry.Register(tool.Registration{
		Kind:    domain.ToolKindAction,
		Name:    "build",
		Factory: func() (tool.Tool, error) { return stub, nil },
	}))

	runner := NewStepRunner(registry, zerolog.Nop(), -1)
	runner.sleep = func(context.Context, time.Duration) error { return nil }
	return runner
}

func actionStep(retries int) *domain.Step {
	return &domain.Step{
		Name:    "compile",
		Tool:    domain.ToolKindAction,
		Action:  "build",
		Retries: &retries,
	}
}

func baseStepContext() *domain.StepContext {
	return &domain.StepContext{
		Variables: map[string]any{},
		Evaluator: condition.New(),
	}
}

func TestRunStepSuccessFirstAttempt(t *testing.T) {
	t.Parallel()

	stub := &stubTool{result: &tool.Result{Output: "done", FilesCreated: []string{"a.go"}}}
	runner := newRunnerFixture(t, stub)

	result := runner.RunStep(context.Background(), actionStep(2), baseStepContext())

	assert.Equal(t, constants.StepStatusCompleted, result.Status)
	assert.Equal(t, 0, result.RetryCount)
	assert.Equal(t, "done", result.Output)
	assert.Equal(t, []string{"a.go"}, result.FilesCreated)
	assert.Nil(t, result.Error)
	assert.Equal(t, 1, stub.executions())
}

func TestRunStepRetryBound(t *testing.T) {
	t.Parallel()

	// Always fails: retries=2 means exactly 3 attempts, no more.
	stub := &stubTool{failUntil: 100}
	runner := newRunnerFixture(t, stub)

	var delays []time.Duration
	runner.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	result := runner.RunStep(context.Background(), actionStep(2), baseStepContext())

	assert.Equal(t, constants.StepStatusFailed, result.Status)
	assert.Equal(t, 3, stub.executions())
	assert.Equal(t, 2, result.RetryCount)
	assert.Len(t, delays, 2)
	require.NotNil(t, result.Error)
	assert.Equal(t, domain.ErrorCodeExecution, result.Error.Code)
	assert.Contains(t, result.Error.Cause, "transient fault")
}

func TestRunStepRecoversMidRetry(t *testing.T) {
	t.Parallel()

	stub := &stubTool{failUntil: 2}
	runner := newRunnerFixture(t, stub)

	result := runner.RunStep(context.Background(), actionStep(2), baseStepContext())

	assert.Equal(t, constants.StepStatusCompleted, result.Status)
	assert.Equal(t, 2, result.RetryCount)
	assert.Equal(t, 3, stub.executions())
}

func TestRunStepValidationFailureConsumesNoRetry(t *testing.T) {
	t.Parallel()

	stub := &stubTool{validateErrs: []string{"action is empty"}}
	runner := newRunnerFixture(t, stub)

	result := runner.RunStep(context.Background(), actionStep(2), baseStepContext())

	assert.Equal(t, constants.StepStatusFailed, result.Status)
	assert.Equal(t, 0, result.RetryCount)
	assert.Equal(t, 0, stub.executions())
	require.NotNil(t, result.Error)
	assert.Equal(t, domain.ErrorCodeValidation, result.Error.Code)
	assert.Contains(t, result.Error.Message, "action is empty")
}

func TestRunStepConditionFalseSkips(t *testing.T) {
	t.Parallel()

	stub := &stubTool{}
	runner := newRunnerFixture(t, stub)

	step := actionStep(2)
	step.When = "variables.enabled == true"

	stepCtx := baseStepContext()
	stepCtx.Variables["enabled"] = false

	result := runner.RunStep(context.Background(), step, stepCtx)

	assert.Equal(t, constants.StepStatusSkipped, result.Status)
	assert.False(t, result.ConditionResult)
	assert.Equal(t, 0, result.RetryCount)
	assert.Equal(t, 0, stub.executions())
	assert.Nil(t, result.Error)
}

func TestRunStepConditionSyntaxErrorFails(t *testing.T) {
	t.Parallel()

	stub := &stubTool{}
	runner := newRunnerFixture(t, stub)

	step := actionStep(0)
	step.When = "variables.enabled ="

	result := runner.RunStep(context.Background(), step, baseStepContext())

	assert.Equal(t, constants.StepStatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, domain.ErrorCodeValidation, result.Error.Code)
	assert.Equal(t, 0, stub.executions())
}

func TestRunStepTimeoutIsRetryable(t *testing.T) {
	t.Parallel()

	stub := &stubTool{executeDelay: 200 * time.Millisecond, failUntil: 100}
	runner := newRunnerFixture(t, stub)

	step := actionStep(1)
	step.Timeout = 20 * time.Millisecond

	result := runner.RunStep(context.Background(), step, baseStepContext())

	assert.Equal(t, constants.StepStatusFailed, result.Status)
	assert.Equal(t, 2, stub.executions())
	require.NotNil(t, result.Error)
	assert.Equal(t, domain.ErrorCodeTimeout, result.Error.Code)
}

func TestRunStepCancelledDuringExecute(t *testing.T) {
	t.Parallel()

	stub := &stubTool{executeDelay: 5 * time.Second}
	runner := newRunnerFixture(t, stub)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	result := runner.RunStep(ctx, actionStep(2), baseStepContext())

	assert.Equal(t, constants.StepStatusCancelled, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, domain.ErrorCodeCancelled, result.Error.Code)
	// Cancelled steps are never retried.
	assert.Equal(t, 1, stub.executions())
}

func TestRunStepUnknownToolFails(t *testing.T) {
	t.Parallel()

	runner := newRunnerFixture(t, &stubTool{})

	step := &domain.Step{Name: "gen", Tool: domain.ToolKindAction, Action: "missing"}
	result := runner.RunStep(context.Background(), step, baseStepContext())

	assert.Equal(t, constants.StepStatusFailed, result.Status)
	require.NotNil(t, result.Error)
	assert.Equal(t, domain.ErrorCodeValidation, result.Error.Code)
}

func TestExecuteRecipeAppliesRecipeDefaultRetries(t *testing.T) {
	t.Parallel()

	// Always fails: a recipe-wide default of 2 retries means 3 attempts
	// for a step that declares no retry count of its own.
	stub := &stubTool{failUntil: 100}

	registry := tool.NewRegistry(tool.RegistryConfig{SweepInterval: -1}, zerolog.Nop())
	t.Cleanup(func() { _ = registry.Close(context.Background()) })
	require.NoError(t, registry.Register(tool.Registration{
		Kind:    domain.ToolKindAction,
		Name:    "build",
		Factory: func() (tool.Tool, error) { return stub, nil },
	}))

	eng := New(registry, condition.New(), zerolog.Nop(), Config{DefaultRetries: 0})
	eng.runner.sleep = func(context.Context, time.Duration) error { return nil }

	two := 2
	recipeCfg := &domain.RecipeConfig{
		Name:     "retrier",
		Settings: domain.Settings{DefaultRetries: &two},
		Steps: []domain.Step{
			{Name: "compile", Tool: domain.ToolKindAction, Action: "build"},
		},
	}

	result, err := eng.ExecuteRecipe(context.Background(), recipeCfg, nil, RunOptions{})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 3, stub.executions())
	assert.Equal(t, 2, result.StepResults[0].RetryCount)
}

func TestStepRetriesOverrideRecipeDefault(t *testing.T) {
	t.Parallel()

	stub := &stubTool{failUntil: 100}

	registry := tool.NewRegistry(tool.RegistryConfig{SweepInterval: -1}, zerolog.Nop())
	t.Cleanup(func() { _ = registry.Close(context.Background()) })
	require.NoError(t, registry.Register(tool.Registration{
		Kind:    domain.ToolKindAction,
		Name:    "build",
		Factory: func() (tool.Tool, error) { return stub, nil },
	}))

	eng := New(registry, condition.New(), zerolog.Nop(), Config{DefaultRetries: 0})
	eng.runner.sleep = func(context.Context, time.Duration) error { return nil }

	three := 3
	zero := 0
	recipeCfg := &domain.RecipeConfig{
		Name:     "retrier",
		Settings: domain.Settings{DefaultRetries: &three},
		Steps: []domain.Step{
			{Name: "compile", Tool: domain.ToolKindAction, Action: "build", Retries: &zero},
		},
	}

	result, err := eng.ExecuteRecipe(context.Background(), recipeCfg, nil, RunOptions{})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, 1, stub.executions())
	assert.Equal(t, 0, result.StepResults[0].RetryCount)
}

func TestBackoffDelayBounds(t *testing.T) {
	t.Parallel()

	for retryIndex := 0; retryIndex < 10; retryIndex++ {
		for i := 0; i < 50; i++ {
			delay := backoffDelay(retryIndex)

			assert.GreaterOrEqual(t, delay, constants.RetryMinDelay)

			ceiling := time.Duration(float64(constants.RetryMaxDelay) * (1 + constants.RetryJitterFraction))
			assert.LessOrEqual(t, delay, ceiling)
		}
	}

	// Without jitter extremes, later retries back off further than the first.
	first := backoffDelay(0)
	assert.LessOrEqual(t, first, time.Duration(float64(constants.RetryBaseDelay)*(1+constants.RetryJitterFraction)))
}
