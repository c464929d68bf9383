// Package errors provides centralized error handling for forge.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import "errors"

// Sentinel errors for error categorization.
// These allow callers to check error types with errors.Is().
// All errors use lowercase descriptions per Go conventions.
var (
	// ErrRecipeNil indicates a nil recipe was provided.
	ErrRecipeNil = errors.New("recipe cannot be nil")

	// ErrRecipeNameEmpty indicates a recipe has an empty name.
	ErrRecipeNameEmpty = errors.New("recipe name is required")

	// ErrRecipeInvalid indicates a recipe failed structural validation.
	ErrRecipeInvalid = errors.New("invalid recipe")

	// ErrRecipeFileMissing indicates the recipe file does not exist.
	ErrRecipeFileMissing = errors.New("recipe file not found")

	// ErrRecipeParseError indicates the recipe file has invalid YAML/JSON syntax.
	ErrRecipeParseError = errors.New("recipe parse error")

	// ErrDuplicateStepName indicates two steps in a recipe share a name.
	ErrDuplicateStepName = errors.New("duplicate step name")

	// ErrStepNameEmpty indicates a step has an empty name.
	ErrStepNameEmpty = errors.New("step name is required")

	// ErrUnknownToolKind indicates a step declares a tool kind that is not
	// one of template, action, codemod, or recipe.
	ErrUnknownToolKind = errors.New("unknown tool kind")

	// ErrCyclicDependency indicates a step transitively depends on itself.
	ErrCyclicDependency = errors.New("cyclic step dependency")

	// ErrUnknownDependency indicates dependsOn references a step that does not exist.
	ErrUnknownDependency = errors.New("unknown step dependency")

	// ErrDuplicateTool indicates a (type, name) pair was registered twice
	// without an intervening unregister.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrToolNotFound indicates no factory is registered for the requested
	// (type, name) pair.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolInitFailed indicates a tool factory produced an instance that
	// failed to initialize.
	ErrToolInitFailed = errors.New("tool initialization failed")

	// ErrRegistryClosed indicates an operation on a closed tool registry.
	ErrRegistryClosed = errors.New("tool registry closed")

	// ErrStepValidation indicates a tool rejected a step's configuration.
	// Validation errors are configuration errors, never retried.
	ErrStepValidation = errors.New("step validation failed")

	// ErrStepExecution indicates a step's tool execution failed after all
	// retry attempts were exhausted.
	ErrStepExecution = errors.New("step execution failed")

	// ErrStepTimeout indicates a step exceeded its configured timeout.
	ErrStepTimeout = errors.New("step timeout exceeded")

	// ErrMaxRetriesExceeded indicates the maximum retry attempts have been reached.
	ErrMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")

	// ErrExecutionNotFound indicates the requested execution id is not active.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrExecutionCancelled indicates the execution was cancelled by request.
	ErrExecutionCancelled = errors.New("execution cancelled")

	// ErrVariableRequired indicates a required recipe variable was not provided.
	ErrVariableRequired = errors.New("required variable not provided")

	// ErrVariableType indicates a variable value does not match its declared type.
	ErrVariableType = errors.New("variable type mismatch")

	// ErrVariableConstraint indicates a variable value violates its constraints.
	ErrVariableConstraint = errors.New("variable constraint violated")

	// ErrConditionSyntax indicates a `when` expression could not be parsed.
	ErrConditionSyntax = errors.New("invalid condition expression")

	// ErrConditionEval indicates a `when` expression failed to evaluate.
	ErrConditionEval = errors.New("condition evaluation failed")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigNotFound indicates that the configuration file was not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrValueOutOfRange indicates that a value is outside the allowed range.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrInvalidArgument indicates that an invalid argument was provided.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRecipeFailed indicates a recipe run finished with failed steps.
	ErrRecipeFailed = errors.New("recipe execution failed")

	// ErrInvalidOutputFormat indicates an unsupported --output value.
	ErrInvalidOutputFormat = errors.New("invalid output format")
)
