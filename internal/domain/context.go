package domain

import "time"

// ConditionEvaluator evaluates a step's `when` expression against a
// variable context. Implementations live outside this package; the engine
// injects one into every StepContext.
type ConditionEvaluator interface {
	// Evaluate returns the boolean value of expr against vars.
	// An empty expression evaluates true.
	Evaluate(expr string, vars map[string]any) (bool, error)
}

// StepContext is the execution-time environment handed to a tool.
// It carries merged variables, prior step results, and run identity.
// The logger travels on the context.Context (zerolog.Ctx), not here.
type StepContext struct {
	// Variables are the merged recipe + step override variables.
	Variables map[string]any

	// Environment are the merged environment overrides for the tool.
	Environment map[string]string

	// ProjectRoot is the directory all relative output paths resolve against.
	ProjectRoot string

	// RecipeName and ExecutionID identify the owning run.
	RecipeName  string
	ExecutionID string

	// StartedAt is when the recipe run began.
	StartedAt time.Time

	// Results maps step name to the terminal StepResult of every step in
	// an earlier phase. A step is guaranteed to observe the terminal
	// result of each of its transitive dependencies.
	Results map[string]*StepResult

	// Evaluator evaluates `when` expressions for this run.
	Evaluator ConditionEvaluator

	// DryRun predicts file changes without touching the file system.
	DryRun bool

	// Force allows tools to overwrite existing files.
	Force bool
}

// ForStep returns a copy of the context with the step's variable and
// environment overrides merged in. The receiver is not modified.
func (c *StepContext) ForStep(step *Step) *StepContext {
	merged := *c

	if len(step.Variables) > 0 {
		vars := make(map[string]any, len(c.Variables)+len(step.Variables))
		for k, v := range c.Variables {
			vars[k] = v
		}
		for k, v := range step.Variables {
			vars[k] = v
		}
		merged.Variables = vars
	}

	if len(step.Environment) > 0 {
		env := make(map[string]string, len(c.Environment)+len(step.Environment))
		for k, v := range c.Environment {
			env[k] = v
		}
		for k, v := range step.Environment {
			env[k] = v
		}
		merged.Environment = env
	}

	return &merged
}

// ResultFor returns the recorded terminal result for a prior step, or nil.
func (c *StepContext) ResultFor(stepName string) *StepResult {
	if c.Results == nil {
		return nil
	}
	return c.Results[stepName]
}
