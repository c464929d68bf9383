package recipe

import (
	"fmt"
	"regexp"

	"github.com/mrz1836/forge/internal/domain"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
)

// Validate checks a recipe's structure: name present, steps well-formed,
// step names unique, dependency references resolvable, variable
// declarations coherent. Cycle detection is deferred to plan creation.
func Validate(recipe *domain.RecipeConfig) error {
	if recipe == nil {
		return forgeerrors.ErrRecipeNil
	}

	if recipe.Name == "" {
		return forgeerrors.ErrRecipeNameEmpty
	}

	if len(recipe.Steps) == 0 {
		return fmt.Errorf("%w: recipe %q has no steps", forgeerrors.ErrRecipeInvalid, recipe.Name)
	}

	if recipe.Settings.Timeout < 0 {
		return fmt.Errorf("%w: settings.timeout is negative", forgeerrors.ErrRecipeInvalid)
	}
	if recipe.Settings.DefaultRetries != nil && *recipe.Settings.DefaultRetries < 0 {
		return fmt.Errorf("%w: settings.default_retries is negative", forgeerrors.ErrRecipeInvalid)
	}
	if recipe.Settings.MaxParallelSteps < 0 {
		return fmt.Errorf("%w: settings.max_parallel_steps is negative", forgeerrors.ErrRecipeInvalid)
	}

	for name, decl := range recipe.Variables {
		if err := validateVariableDecl(name, decl); err != nil {
			return err
		}
	}

	seen := make(map[string]int, len(recipe.Steps))
	for i := range recipe.Steps {
		step := &recipe.Steps[i]

		if err := validateStep(i, step); err != nil {
			return err
		}

		if prev, ok := seen[step.Name]; ok {
			return fmt.Errorf("%w: %q (steps %d and %d)",
				forgeerrors.ErrDuplicateStepName, step.Name, prev, i)
		}
		seen[step.Name] = i
	}

	for i := range recipe.Steps {
		step := &recipe.Steps[i]
		for _, dep := range step.DependsOn {
			if _, ok := seen[dep]; !ok {
				return fmt.Errorf("%w: step %q depends on %q",
					forgeerrors.ErrUnknownDependency, step.Name, dep)
			}
			if dep == step.Name {
				return fmt.Errorf("%w: step %q depends on itself",
					forgeerrors.ErrCyclicDependency, step.Name)
			}
		}
	}

	return nil
}

func validateStep(index int, step *domain.Step) error {
	if step.Name == "" {
		return fmt.Errorf("%w: step %d", forgeerrors.ErrStepNameEmpty, index)
	}

	if !step.Tool.Valid() {
		return fmt.Errorf("%w: step %d (%s): tool %q",
			forgeerrors.ErrUnknownToolKind, index, step.Name, step.Tool)
	}

	if step.Timeout < 0 {
		return fmt.Errorf("%w: step %d (%s): timeout is negative",
			forgeerrors.ErrRecipeInvalid, index, step.Name)
	}
	if step.Retries != nil && *step.Retries < 0 {
		return fmt.Errorf("%w: step %d (%s): retries is negative",
			forgeerrors.ErrRecipeInvalid, index, step.Name)
	}

	// Each tool kind requires its primary field.
	switch step.Tool {
	case domain.ToolKindTemplate:
		if step.Template == "" {
			return fmt.Errorf("%w: step %d (%s): template steps require a template",
				forgeerrors.ErrRecipeInvalid, index, step.Name)
		}
	case domain.ToolKindAction:
		if step.Action == "" {
			return fmt.Errorf("%w: step %d (%s): action steps require an action",
				forgeerrors.ErrRecipeInvalid, index, step.Name)
		}
	case domain.ToolKindCodeMod:
		if step.CodeMod == "" {
			return fmt.Errorf("%w: step %d (%s): codemod steps require a codemod",
				forgeerrors.ErrRecipeInvalid, index, step.Name)
		}
	case domain.ToolKindRecipe:
		if step.Recipe == "" {
			return fmt.Errorf("%w: step %d (%s): recipe steps require a recipe",
				forgeerrors.ErrRecipeInvalid, index, step.Name)
		}
	}

	return nil
}

func validateVariableDecl(name string, decl domain.VariableDecl) error {
	switch decl.Type {
	case "", domain.VariableTypeString, domain.VariableTypeNumber,
		domain.VariableTypeBoolean, domain.VariableTypeEnum:
	default:
		return fmt.Errorf("%w: variable %q has unknown type %q",
			forgeerrors.ErrRecipeInvalid, name, decl.Type)
	}

	if decl.Type == domain.VariableTypeEnum && len(decl.Values) == 0 {
		return fmt.Errorf("%w: enum variable %q declares no values",
			forgeerrors.ErrRecipeInvalid, name)
	}

	if decl.Pattern != "" {
		if _, err := regexp.Compile(decl.Pattern); err != nil {
			return fmt.Errorf("%w: variable %q pattern: %s",
				forgeerrors.ErrRecipeInvalid, name, err)
		}
	}

	if decl.Min != nil && decl.Max != nil && *decl.Min > *decl.Max {
		return fmt.Errorf("%w: variable %q has min greater than max",
			forgeerrors.ErrRecipeInvalid, name)
	}

	return nil
}
