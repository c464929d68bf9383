package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrz1836/forge/internal/domain"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
	"github.com/mrz1836/forge/internal/tool"
)

// RecipeLoader loads a recipe from a file path.
type RecipeLoader interface {
	LoadFromFile(path string) (*domain.RecipeConfig, error)
}

// RecipeExecutor runs a loaded recipe. The engine satisfies this through a
// small adapter in the CLI wiring; the indirection keeps builtin from
// depending on the engine package.
type RecipeExecutor interface {
	ExecuteRecipe(ctx context.Context, rec *domain.RecipeConfig, values map[string]any) (*domain.RecipeResult, error)
}

// recipeParams are the decoded step params for sub-recipe steps.
type recipeParams struct {
	// Variables are values passed to the sub-recipe, merged over the
	// inherited parent variables when inherit_variables is set.
	Variables map[string]any `mapstructure:"variables"`
}

// RecipeTool executes another recipe as a single step, surfacing the
// sub-recipe's aggregated file changes on the step result.
type RecipeTool struct {
	loader   RecipeLoader
	executor RecipeExecutor
}

// NewRecipeFactory returns a factory producing sub-recipe tools.
func NewRecipeFactory(loader RecipeLoader, executor RecipeExecutor) tool.Factory {
	return func() (tool.Tool, error) {
		return &RecipeTool{loader: loader, executor: executor}, nil
	}
}

// Initialize implements tool.Tool.
func (r *RecipeTool) Initialize(context.Context) error { return nil }

// Validate checks the sub-recipe file loads and parses.
func (r *RecipeTool) Validate(_ context.Context, step *domain.Step, _ *domain.StepContext) (*tool.ValidationResult, error) {
	var errs []string

	if step.Recipe == "" {
		errs = append(errs, "recipe path is required")
	} else if _, err := r.loader.LoadFromFile(step.Recipe); err != nil {
		errs = append(errs, fmt.Sprintf("loading recipe %q: %s", step.Recipe, err))
	}

	var params recipeParams
	if err := decodeParams(step.Params, &params); err != nil {
		errs = append(errs, err.Error())
	}

	return &tool.ValidationResult{Valid: len(errs) == 0, Errors: errs}, nil
}

// Execute loads and runs the sub-recipe. The step fails when the sub-recipe
// does not succeed, with the sub-recipe's fatal conditions in the error.
func (r *RecipeTool) Execute(ctx context.Context, step *domain.Step, stepCtx *domain.StepContext) (*tool.Result, error) {
	sub, err := r.loader.LoadFromFile(step.Recipe)
	if err != nil {
		return nil, err
	}

	var params recipeParams
	if err := decodeParams(step.Params, &params); err != nil {
		return nil, err
	}

	values := make(map[string]any)
	if step.InheritVariables {
		for k, v := range stepCtx.Variables {
			values[k] = v
		}
	}
	for k, v := range params.Variables {
		values[k] = v
	}

	subResult, err := r.executor.ExecuteRecipe(ctx, sub, values)
	if err != nil {
		return nil, err
	}

	result := &tool.Result{
		Output: fmt.Sprintf("recipe %s finished with status %s", sub.Name, subResult.Status),
		Metadata: map[string]any{
			"recipe":       sub.Name,
			"execution_id": subResult.ExecutionID,
			"status":       subResult.Status.String(),
		},
		FilesCreated:  subResult.FilesCreated,
		FilesModified: subResult.FilesModified,
		FilesDeleted:  subResult.FilesDeleted,
	}

	if !subResult.Success {
		return result, fmt.Errorf("%w: recipe %s: %s",
			forgeerrors.ErrStepExecution, sub.Name, strings.Join(subResult.Errors, "; "))
	}
	return result, nil
}

// Cleanup implements tool.Tool.
func (r *RecipeTool) Cleanup(context.Context) error { return nil }
