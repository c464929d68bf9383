// Package tool defines the pluggable tool contract and the tool registry
// for the forge engine.
//
// A Tool is the executor behind one step kind (template rendering, action
// invocation, code transform, sub-recipe). The registry indexes tool
// factories by (kind, name), resolves and caches live instances with
// reference counting, and evicts idle instances on a TTL sweep.
//
// Import rules:
//   - CAN import: internal/clock, internal/constants, internal/domain, internal/errors
//   - MUST NOT import: internal/engine, internal/recipe, internal/cli
package tool

import (
	"context"

	"github.com/mrz1836/forge/internal/domain"
)

// ValidationResult reports a tool's verdict on a step's configuration.
type ValidationResult struct {
	// Valid is true when the step configuration is acceptable.
	Valid bool

	// Errors lists the configuration problems when Valid is false.
	Errors []string
}

// Result is a tool's execution payload. File-change lists are extracted
// into the StepResult by the runner for recipe-level aggregation.
type Result struct {
	// Output is free-form text output from the tool.
	Output string

	// Metadata carries tool-specific data for downstream steps.
	Metadata map[string]any

	// File changes performed (or, under dry run, predicted).
	FilesCreated  []string
	FilesModified []string
	FilesDeleted  []string
}

// Tool is the pluggable executor contract for one step kind.
//
// Lifecycle: the registry calls Initialize once after construction and
// Cleanup once before eviction. Validate and Execute may be called any
// number of times in between, possibly for different steps; tools that
// keep per-call state must guard it themselves since steps sharing a
// cached instance run concurrently within a phase.
//
// All Execute implementations must check ctx.Done() during long
// operations and return promptly on cancellation.
type Tool interface {
	// Initialize prepares the instance for use. Called once per instance.
	Initialize(ctx context.Context) error

	// Validate checks the step's tool-specific configuration.
	// Validation failures are configuration errors: the runner fails the
	// step immediately without consuming a retry.
	Validate(ctx context.Context, step *domain.Step, stepCtx *domain.StepContext) (*ValidationResult, error)

	// Execute runs the step and returns its payload. Execution faults are
	// retried by the runner per the step's retry policy.
	Execute(ctx context.Context, step *domain.Step, stepCtx *domain.StepContext) (*Result, error)

	// Cleanup releases held resources. Called once before eviction, on
	// registry close, and on cancellation of an in-flight execution.
	Cleanup(ctx context.Context) error
}

// Factory constructs a new, uninitialized tool instance.
type Factory func() (Tool, error)

// Metadata describes a registered tool for discovery.
type Metadata struct {
	// Category groups related tools (e.g. "scaffolding", "refactoring").
	Category string

	// Tags label the tool for search.
	Tags []string

	// Description is a one-line summary of what the tool does.
	Description string
}

// Registration binds a (kind, name) pair to a factory plus metadata.
// Registrations are owned by the registry for the process lifetime and
// mutated only through explicit Register/Unregister calls.
type Registration struct {
	// Kind is the step kind this tool serves.
	Kind domain.ToolKind

	// Name is the concrete tool name steps reference from their variant
	// field (template id, action id, codemod id, sub-recipe id).
	Name string

	// Factory constructs instances of the tool.
	Factory Factory

	// Metadata describes the tool for discovery and search.
	Metadata Metadata
}

// Criteria filters registrations in Registry.Search. Zero-value fields
// match everything.
type Criteria struct {
	// Kind restricts matches to one step kind.
	Kind domain.ToolKind

	// Category restricts matches to one metadata category.
	Category string

	// Tag requires the metadata tag list to contain this tag.
	Tag string

	// NameContains requires the tool name to contain this substring.
	NameContains string
}

func (c Criteria) matches(reg Registration) bool {
	if c.Kind != "" && reg.Kind != c.Kind {
		return false
	}
	if c.Category != "" && reg.Metadata.Category != c.Category {
		return false
	}
	if c.Tag != "" && !containsTag(reg.Metadata.Tags, c.Tag) {
		return false
	}
	if c.NameContains != "" && !containsFold(reg.Name, c.NameContains) {
		return false
	}
	return true
}

func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
