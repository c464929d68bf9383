package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/forge/internal/domain"
	"github.com/mrz1836/forge/internal/plan"
	"github.com/mrz1836/forge/internal/recipe"
)

func newValidateCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <recipe>",
		Short: "Validate a recipe without executing it",
		Long: `Validate a recipe file: structural checks (step names, dependencies,
tool kinds, variable declarations) plus dependency resolution. The resolved
phase plan is printed so the parallelism of a run can be inspected up front.

Examples:
  forge validate recipes/service.yaml
  forge validate recipes/service.yaml --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateRecipe(app, args[0], os.Stdout)
		},
	}
}

// validateResponse is the JSON shape of a validate run.
type validateResponse struct {
	Recipe string       `json:"recipe"`
	Valid  bool         `json:"valid"`
	Steps  int          `json:"steps"`
	Phases []phaseEntry `json:"phases,omitempty"`
	Error  string       `json:"error,omitempty"`
}

type phaseEntry struct {
	Index int      `json:"index"`
	Steps []string `json:"steps"`
}

func validateRecipe(app *appState, path string, w io.Writer) error {
	out := newOutput(w, app.flags.output)

	rec, execPlan, err := loadAndPlan(path)
	if err != nil {
		if app.flags.output == outputJSON {
			name := ""
			if rec != nil {
				name = rec.Name
			}
			_ = out.JSON(validateResponse{Recipe: name, Valid: false, Error: err.Error()})
		} else {
			out.Error(err)
		}
		return err
	}

	if app.flags.output == outputJSON {
		resp := validateResponse{Recipe: rec.Name, Valid: true, Steps: len(rec.Steps)}
		for _, phase := range execPlan.Phases {
			resp.Phases = append(resp.Phases, phaseEntry{Index: phase.Index, Steps: phase.Steps})
		}
		return out.JSON(resp)
	}

	out.Success(fmt.Sprintf("%s is valid: %d steps in %d phases", rec.Name, len(rec.Steps), len(execPlan.Phases)))
	for _, phase := range execPlan.Phases {
		out.Info(fmt.Sprintf("  phase %d: %s", phase.Index, strings.Join(phase.Steps, ", ")))
	}
	return nil
}

// loadAndPlan loads a recipe and resolves its dependency plan. Loading
// already runs structural validation; planning surfaces cycles.
func loadAndPlan(path string) (*domain.RecipeConfig, *domain.ExecutionPlan, error) {
	loader := recipe.NewLoader(filepath.Dir(path))
	rec, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, nil, err
	}

	execPlan, err := plan.Create(rec.Steps)
	if err != nil {
		return rec, nil, err
	}
	return rec, execPlan, nil
}
