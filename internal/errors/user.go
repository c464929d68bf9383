package errors

import "errors"

// ErrorInfo holds user-facing message and suggested action for an error.
type ErrorInfo struct {
	// Message is the user-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
}

// errorEntry pairs a sentinel error with its user-facing info.
type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries is the pre-built mapping of sentinel errors to their user-facing messages.
// This single source of truth ensures UserMessage and Actionable stay in sync.
// Using a slice (not a map) because errors.Is() requires proper error chain traversal.
//
//nolint:gochecknoglobals // Pre-built mapping for efficiency
var errorInfoEntries = []errorEntry{
	{
		err: ErrCyclicDependency,
		info: ErrorInfo{
			Message: "The recipe contains a dependency cycle between steps.",
			Action:  "Remove one of the dependsOn entries listed in the cycle and retry.",
		},
	},
	{
		err: ErrUnknownDependency,
		info: ErrorInfo{
			Message: "A step depends on a step name that does not exist in the recipe.",
			Action:  "Check dependsOn entries against the declared step names.",
		},
	},
	{
		err: ErrDuplicateStepName,
		info: ErrorInfo{
			Message: "Two or more steps in the recipe share the same name.",
			Action:  "Rename the duplicated steps so every step name is unique.",
		},
	},
	{
		err: ErrToolNotFound,
		info: ErrorInfo{
			Message: "No tool is registered for the step's tool kind and name.",
			Action:  "Run 'forge tools list' to see the available tools.",
		},
	},
	{
		err: ErrStepValidation,
		info: ErrorInfo{
			Message: "A step's configuration was rejected by its tool.",
			Action:  "Fix the step's tool-specific fields; validation errors are never retried.",
		},
	},
	{
		err: ErrVariableRequired,
		info: ErrorInfo{
			Message: "A required recipe variable was not provided.",
			Action:  "Pass the variable with --var name=value or add a default to the recipe.",
		},
	},
	{
		err: ErrConditionSyntax,
		info: ErrorInfo{
			Message: "A step's 'when' expression could not be parsed.",
			Action:  "Conditions support comparisons, &&, ||, ! and parentheses only.",
		},
	},
	{
		err: ErrRecipeParseError,
		info: ErrorInfo{
			Message: "The recipe file is not valid YAML or JSON.",
			Action:  "Run 'forge validate <file>' for the exact parse location.",
		},
	},
	{
		err: ErrRecipeFileMissing,
		info: ErrorInfo{
			Message: "The recipe file was not found.",
			Action:  "Check the path; relative paths resolve against the project root.",
		},
	},
	{
		err: ErrMaxRetriesExceeded,
		info: ErrorInfo{
			Message: "A step kept failing after all retry attempts.",
			Action:  "Inspect the step's error output, or raise retries in the recipe settings.",
		},
	},
	{
		err: ErrExecutionCancelled,
		info: ErrorInfo{
			Message: "The recipe run was cancelled before completion.",
			Action:  "Steps already completed kept their file changes; re-run to finish.",
		},
	},
}

// UserMessage returns a user-friendly message for known sentinel errors.
// Falls back to the raw error text for unrecognized errors.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info.Message
		}
	}
	return err.Error()
}

// Actionable returns a suggested next action for known sentinel errors,
// or an empty string when there is no specific suggestion.
func Actionable(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info.Action
		}
	}
	return ""
}
