package domain

import "time"

// VariableType categorizes the declared type of a recipe variable.
type VariableType string

// Variable type constants define the valid declared variable types.
const (
	// VariableTypeString accepts any string value.
	VariableTypeString VariableType = "string"

	// VariableTypeNumber accepts numeric values (coerced from strings).
	VariableTypeNumber VariableType = "number"

	// VariableTypeBoolean accepts true/false values.
	VariableTypeBoolean VariableType = "boolean"

	// VariableTypeEnum accepts one of the declared Values.
	VariableTypeEnum VariableType = "enum"
)

// String returns the string representation of the VariableType.
func (t VariableType) String() string {
	return string(t)
}

// VariableDecl declares a recipe variable: its type, whether it is
// required, an optional default, and value constraints.
type VariableDecl struct {
	// Type is the declared variable type. Empty defaults to string.
	Type VariableType `yaml:"type,omitempty" json:"type,omitempty"`

	// Description explains what the variable controls.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Required indicates the variable must be provided or have a default.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`

	// Default is used when no value is provided.
	Default any `yaml:"default,omitempty" json:"default,omitempty"`

	// Pattern is a regular expression string values must match.
	Pattern string `yaml:"pattern,omitempty" json:"pattern,omitempty"`

	// Min and Max bound numeric values (inclusive).
	Min *float64 `yaml:"min,omitempty" json:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty" json:"max,omitempty"`

	// Values lists the allowed values for enum variables.
	Values []string `yaml:"values,omitempty" json:"values,omitempty"`
}

// DependencyRef references another recipe this recipe loads before running.
type DependencyRef struct {
	// Recipe is the source reference of the dependency recipe.
	Recipe string `yaml:"recipe" json:"recipe"`

	// Optional dependencies that fail to load are logged and skipped
	// rather than failing the run.
	Optional bool `yaml:"optional,omitempty" json:"optional,omitempty"`
}

// Hooks holds named lifecycle hook command lists. Hook failures are logged
// but never fail the run.
type Hooks struct {
	BeforeRecipe []string `yaml:"before_recipe,omitempty" json:"before_recipe,omitempty"`
	AfterRecipe  []string `yaml:"after_recipe,omitempty" json:"after_recipe,omitempty"`
	BeforeStep   []string `yaml:"before_step,omitempty" json:"before_step,omitempty"`
	AfterStep    []string `yaml:"after_step,omitempty" json:"after_step,omitempty"`
	OnError      []string `yaml:"on_error,omitempty" json:"on_error,omitempty"`
}

// Settings holds recipe-wide execution settings.
type Settings struct {
	// Timeout bounds the whole recipe run. Zero means the engine default.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// DefaultRetries applies to steps that do not set Retries themselves.
	// Nil means the engine default.
	DefaultRetries *int `yaml:"default_retries,omitempty" json:"default_retries,omitempty"`

	// ContinueOnError keeps later phases running after a step fails.
	ContinueOnError bool `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`

	// MaxParallelSteps bounds concurrent steps within a phase.
	// Zero means the engine default.
	MaxParallelSteps int `yaml:"max_parallel_steps,omitempty" json:"max_parallel_steps,omitempty"`
}

// RecipeConfig is a loaded, validated recipe: the declarative document
// describing variables, steps, and settings for a generation run.
//
// Invariant: step names are unique within a recipe. The loader enforces
// this; the engine re-checks it before execution.
type RecipeConfig struct {
	// Name uniquely identifies the recipe.
	Name string `yaml:"name" json:"name"`

	// Version is the recipe document version, free-form.
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// Description explains what the recipe generates.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Variables declares the recipe's typed variables.
	Variables map[string]VariableDecl `yaml:"variables,omitempty" json:"variables,omitempty"`

	// Steps is the ordered step sequence. Declaration order is the
	// tie-break for scheduling and reporting.
	Steps []Step `yaml:"steps" json:"steps"`

	// Dependencies are other recipes to load before this one runs.
	Dependencies []DependencyRef `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`

	// Hooks are lifecycle hook command lists.
	Hooks Hooks `yaml:"hooks,omitempty" json:"hooks,omitempty"`

	// Settings are recipe-wide execution settings.
	Settings Settings `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// StepByName returns the step with the given name, or nil.
func (r *RecipeConfig) StepByName(name string) *Step {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i]
		}
	}
	return nil
}

// StepNames returns the step names in declaration order.
func (r *RecipeConfig) StepNames() []string {
	names := make([]string, len(r.Steps))
	for i := range r.Steps {
		names[i] = r.Steps[i].Name
	}
	return names
}
