// Package domain provides shared domain types for the forge recipe orchestrator.
// These types are used across all internal packages to ensure consistent data structures.
//
// This package follows strict import rules:
//   - CAN import: internal/constants, internal/errors, standard library
//   - MUST NOT import: any other internal packages
//
// All JSON/YAML field names use snake_case per architecture requirements.
package domain

import "time"

// ToolKind categorizes the kind of execution a step performs.
// This is the step's discriminant field and determines which tool
// family handles the step.
type ToolKind string

// Tool kind constants define the valid execution kinds for steps.
const (
	// ToolKindTemplate indicates the step renders a template to output files.
	ToolKindTemplate ToolKind = "template"

	// ToolKindAction indicates the step invokes a user-defined action.
	ToolKindAction ToolKind = "action"

	// ToolKindCodeMod indicates the step applies a code transform to files.
	ToolKindCodeMod ToolKind = "codemod"

	// ToolKindRecipe indicates the step executes a sub-recipe.
	ToolKindRecipe ToolKind = "recipe"
)

// String returns the string representation of the ToolKind.
// This implements fmt.Stringer for convenient logging and debugging.
func (k ToolKind) String() string {
	return string(k)
}

// Valid reports whether k is one of the known tool kinds.
func (k ToolKind) Valid() bool {
	switch k {
	case ToolKindTemplate, ToolKindAction, ToolKindCodeMod, ToolKindRecipe:
		return true
	}
	return false
}

// Step describes one unit of work within a recipe. The Tool field selects
// the variant: exactly one of the variant field groups below is meaningful
// for a given step.
//
// Example YAML representation:
//
//	name: render-model
//	tool: template
//	template: model
//	output_dir: internal/models
//	depends_on: [scaffold]
//	retries: 2
type Step struct {
	// Name uniquely identifies this step within its recipe.
	Name string `yaml:"name" json:"name"`

	// Tool selects the step variant (template, action, codemod, recipe).
	Tool ToolKind `yaml:"tool" json:"tool"`

	// Description explains what this step does.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// When is an optional condition expression. If it evaluates false
	// against the merged variable context, the step is skipped.
	When string `yaml:"when,omitempty" json:"when,omitempty"`

	// DependsOn lists step names that must reach a terminal state before
	// this step may start. Every name must reference an existing step.
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`

	// Parallel is an advisory hint that this step may overlap its own
	// internal work with siblings. It never affects phase placement.
	Parallel bool `yaml:"parallel,omitempty" json:"parallel,omitempty"`

	// ContinueOnError lets the recipe proceed to later phases even if this
	// step ends failed.
	ContinueOnError bool `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`

	// Timeout is the maximum duration for one execution attempt.
	// Zero means the recipe/engine default applies.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// Retries is how many times to retry on execution faults. Nil falls
	// back to the recipe-wide default; zero disables retries.
	Retries *int `yaml:"retries,omitempty" json:"retries,omitempty"`

	// Tags label the step for search and reporting.
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// Variables are step-scoped overrides merged over recipe variables.
	Variables map[string]any `yaml:"variables,omitempty" json:"variables,omitempty"`

	// Environment are step-scoped environment overrides for the tool.
	Environment map[string]string `yaml:"environment,omitempty" json:"environment,omitempty"`

	// Template variant: template identifier and output routing.
	Template  string `yaml:"template,omitempty" json:"template,omitempty"`
	OutputDir string `yaml:"output_dir,omitempty" json:"output_dir,omitempty"`

	// Action variant: action identifier and parameters.
	Action string         `yaml:"action,omitempty" json:"action,omitempty"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty"`

	// CodeMod variant: transform identifier and target file patterns.
	CodeMod string   `yaml:"codemod,omitempty" json:"codemod,omitempty"`
	Files   []string `yaml:"files,omitempty" json:"files,omitempty"`

	// Recipe variant: sub-recipe reference and variable inheritance policy.
	Recipe           string `yaml:"recipe,omitempty" json:"recipe,omitempty"`
	InheritVariables bool   `yaml:"inherit_variables,omitempty" json:"inherit_variables,omitempty"`
}

// ToolName derives the concrete tool name for registry resolution from the
// step's variant field. Returns an empty string if the variant field is unset.
func (s *Step) ToolName() string {
	switch s.Tool {
	case ToolKindTemplate:
		return s.Template
	case ToolKindAction:
		return s.Action
	case ToolKindCodeMod:
		return s.CodeMod
	case ToolKindRecipe:
		return s.Recipe
	}
	return ""
}

// HasTag reports whether the step carries the given tag.
func (s *Step) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
