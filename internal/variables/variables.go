// Package variables resolves recipe variable declarations against provided
// values and expands {{name}} references across step configuration.
//
// Resolution order: declared defaults first, then provided values on top,
// then type coercion and constraint checks per declaration. Step-scoped
// overrides are merged later by StepContext.ForStep, after resolution.
package variables

import (
	"fmt"
	"maps"
	"regexp"
	"strings"

	"github.com/spf13/cast"

	"github.com/mrz1836/forge/internal/domain"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
)

// varPattern matches {{variable}} patterns for expansion.
// This is a package-level compiled regex for performance (immutable after init).
var varPattern = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)

// Resolve validates provided values against the recipe's variable
// declarations and returns the merged variable map.
//
// Missing required variables without defaults fail with ErrVariableRequired.
// Values that cannot be coerced to the declared type fail with
// ErrVariableType; coerced values that violate pattern/range/enum
// constraints fail with ErrVariableConstraint. Provided values without a
// declaration pass through untouched.
func Resolve(decls map[string]domain.VariableDecl, provided map[string]any) (map[string]any, error) {
	merged := make(map[string]any, len(decls)+len(provided))

	for name, decl := range decls {
		if decl.Default != nil {
			merged[name] = decl.Default
		}
	}
	maps.Copy(merged, provided)

	for name, decl := range decls {
		value, ok := merged[name]
		if !ok {
			if decl.Required {
				return nil, fmt.Errorf("%w: %s", forgeerrors.ErrVariableRequired, name)
			}
			continue
		}

		coerced, err := coerce(name, decl, value)
		if err != nil {
			return nil, err
		}
		merged[name] = coerced
	}

	return merged, nil
}

// coerce converts a value to its declared type and checks constraints.
func coerce(name string, decl domain.VariableDecl, value any) (any, error) {
	switch decl.Type {
	case domain.VariableTypeNumber:
		f, err := cast.ToFloat64E(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: expected number, got %T", forgeerrors.ErrVariableType, name, value)
		}
		if decl.Min != nil && f < *decl.Min {
			return nil, fmt.Errorf("%w: %s: %v below minimum %v", forgeerrors.ErrVariableConstraint, name, f, *decl.Min)
		}
		if decl.Max != nil && f > *decl.Max {
			return nil, fmt.Errorf("%w: %s: %v above maximum %v", forgeerrors.ErrVariableConstraint, name, f, *decl.Max)
		}
		return f, nil

	case domain.VariableTypeBoolean:
		b, err := cast.ToBoolE(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: expected boolean, got %T", forgeerrors.ErrVariableType, name, value)
		}
		return b, nil

	case domain.VariableTypeEnum:
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: expected string, got %T", forgeerrors.ErrVariableType, name, value)
		}
		for _, allowed := range decl.Values {
			if s == allowed {
				return s, nil
			}
		}
		return nil, fmt.Errorf("%w: %s: %q not in [%s]", forgeerrors.ErrVariableConstraint,
			name, s, strings.Join(decl.Values, ", "))

	case domain.VariableTypeString, "":
		s, err := cast.ToStringE(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: expected string, got %T", forgeerrors.ErrVariableType, name, value)
		}
		if decl.Pattern != "" {
			re, err := regexp.Compile(decl.Pattern)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: invalid pattern %q", forgeerrors.ErrVariableConstraint, name, decl.Pattern)
			}
			if !re.MatchString(s) {
				return nil, fmt.Errorf("%w: %s: %q does not match %q", forgeerrors.ErrVariableConstraint, name, s, decl.Pattern)
			}
		}
		return s, nil
	}

	return nil, fmt.Errorf("%w: %s: unknown type %q", forgeerrors.ErrVariableType, name, decl.Type)
}

// ExpandString replaces {{variable}} patterns with values from the map.
// Dotted names traverse nested maps. Unmatched patterns are left as-is.
func ExpandString(s string, vars map[string]any) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSpace(strings.Trim(match, "{}"))
		if val, ok := lookupPath(vars, name); ok {
			return cast.ToString(val)
		}
		return match // Leave unexpanded if not found
	})
}

// ExpandValue recursively expands string values inside maps and slices.
func ExpandValue(v any, vars map[string]any) any {
	switch val := v.(type) {
	case string:
		return ExpandString(val, vars)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = ExpandValue(item, vars)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = ExpandValue(item, vars)
		}
		return out
	default:
		return v
	}
}

// ExpandStep returns a copy of the step with {{variable}} references
// expanded in its description and variant fields. The original step is
// not modified.
func ExpandStep(step *domain.Step, vars map[string]any) *domain.Step {
	out := *step
	out.Description = ExpandString(step.Description, vars)
	out.Template = ExpandString(step.Template, vars)
	out.OutputDir = ExpandString(step.OutputDir, vars)
	out.Action = ExpandString(step.Action, vars)
	out.CodeMod = ExpandString(step.CodeMod, vars)
	out.Recipe = ExpandString(step.Recipe, vars)

	if len(step.Params) > 0 {
		out.Params = make(map[string]any, len(step.Params))
		for k, v := range step.Params {
			out.Params[k] = ExpandValue(v, vars)
		}
	}
	if len(step.Files) > 0 {
		out.Files = make([]string, len(step.Files))
		for i, f := range step.Files {
			out.Files[i] = ExpandString(f, vars)
		}
	}
	if len(step.Environment) > 0 {
		out.Environment = make(map[string]string, len(step.Environment))
		for k, v := range step.Environment {
			out.Environment[k] = ExpandString(v, vars)
		}
	}

	return &out
}

// lookupPath resolves a possibly-dotted name against nested maps.
func lookupPath(vars map[string]any, name string) (any, bool) {
	parts := strings.Split(name, ".")
	var current any = vars
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
