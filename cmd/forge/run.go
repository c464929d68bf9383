package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/forge/internal/condition"
	"github.com/mrz1836/forge/internal/constants"
	"github.com/mrz1836/forge/internal/domain"
	"github.com/mrz1836/forge/internal/engine"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
	"github.com/mrz1836/forge/internal/flock"
	"github.com/mrz1836/forge/internal/recipe"
	"github.com/mrz1836/forge/internal/tool"
	"github.com/mrz1836/forge/internal/tool/builtin"
)

// runFlags holds the run command's local flags.
type runFlags struct {
	dryRun       bool
	force        bool
	vars         []string
	templatesDir string
}

func newRunCmd(app *appState) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <recipe>",
		Short: "Execute a recipe",
		Long: `Execute a recipe file (YAML or JSON).

Steps run phase by phase: steps with satisfied dependencies run concurrently,
failed steps are retried per their retry policy, and dependents of failed
steps are skipped.

Examples:
  forge run recipes/service.yaml
  forge run recipes/service.yaml --var service=billing --var port=8080
  forge run recipes/service.yaml --dry-run
  forge run recipes/service.yaml --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecipe(cmd.Context(), app, flags, args[0], os.Stdout)
		},
	}

	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "predict file changes without writing anything")
	cmd.Flags().BoolVar(&flags.force, "force", false, "allow tools to overwrite existing files")
	cmd.Flags().StringArrayVar(&flags.vars, "var", nil, "recipe variable as key=value (repeatable)")
	cmd.Flags().StringVar(&flags.templatesDir, "templates-dir", "templates", "directory template names resolve under")

	return cmd
}

func runRecipe(ctx context.Context, app *appState, flags *runFlags, path string, w io.Writer) error {
	out := newOutput(w, app.flags.output)

	values, err := parseVarFlags(flags.vars)
	if err != nil {
		return err
	}

	loader := recipe.NewLoader(filepath.Dir(path))
	rec, err := loader.LoadFromFile(path)
	if err != nil {
		return err
	}

	// One run per project at a time; dry runs touch nothing and skip the lock.
	if !flags.dryRun {
		lock, lockErr := flock.Acquire(filepath.Join(app.projectRoot, ".forge", "run.lock"))
		if lockErr != nil {
			return lockErr
		}
		defer func() {
			if releaseErr := lock.Release(); releaseErr != nil {
				app.logger.Warn().Err(releaseErr).Msg("run lock release failed")
			}
		}()
	}

	registry := tool.NewRegistry(tool.RegistryConfig{
		MaxEntries:    app.cfg.ToolCache.MaxEntries,
		TTL:           app.cfg.ToolCache.TTL,
		SweepInterval: app.cfg.ToolCache.SweepInterval,
	}, app.logger)
	defer func() {
		if closeErr := registry.Close(context.WithoutCancel(ctx)); closeErr != nil {
			app.logger.Warn().Err(closeErr).Msg("tool registry close failed")
		}
	}()

	eng := engine.New(registry, condition.New(), app.logger, engine.Config{
		MaxParallelSteps: app.cfg.Engine.MaxParallelSteps,
		DefaultRetries:   app.cfg.Engine.DefaultRetries,
		ProjectRoot:      app.projectRoot,
	})

	opts := engine.RunOptions{DryRun: flags.dryRun, Force: flags.force}

	runner := &subRecipeRunner{eng: eng, opts: opts}
	runner.deps = builtin.Deps{
		TemplatesDir: resolveDir(app.projectRoot, flags.templatesDir),
		Loader:       loader,
		Executor:     runner,
	}
	if err := builtin.RegisterForRecipe(registry, rec, runner.deps); err != nil {
		return err
	}

	if app.flags.output == outputText && !app.flags.quiet {
		eng.OnProgress(stepProgressPrinter(out))
	}

	result, err := eng.ExecuteRecipe(ctx, rec, values, opts)
	if err != nil {
		return err
	}

	if app.flags.output == outputJSON {
		if err := out.JSON(result); err != nil {
			return err
		}
	} else {
		printRunSummary(out, result, flags.dryRun)
	}

	if !result.Success {
		return fmt.Errorf("%w: %s", forgeerrors.ErrRecipeFailed, result.RecipeName)
	}
	return nil
}

// stepProgressPrinter reports terminal step states as they happen.
func stepProgressPrinter(out output) engine.ProgressCallback {
	return func(ev engine.ProgressEvent) {
		if ev.Type != engine.EventStepCompleted {
			return
		}
		switch ev.StepStatus {
		case constants.StepStatusCompleted:
			out.Success(ev.StepName)
		case constants.StepStatusSkipped:
			out.Info("- " + ev.StepName + " (skipped)")
		case constants.StepStatusFailed:
			out.Error(fmt.Errorf("%s: %s", ev.StepName, ev.Err))
		case constants.StepStatusCancelled:
			out.Warning(ev.StepName + " (cancelled)")
		case constants.StepStatusPending, constants.StepStatusRunning:
		}
	}
}

func printRunSummary(out output, result *domain.RecipeResult, dryRun bool) {
	changed := len(result.FilesCreated) + len(result.FilesModified) + len(result.FilesDeleted)

	if dryRun && result.Success {
		out.Info(fmt.Sprintf("dry run: %d files would change", changed))
		for _, f := range result.FilesCreated {
			out.Info("  + " + f)
		}
		for _, f := range result.FilesModified {
			out.Info("  ~ " + f)
		}
		for _, f := range result.FilesDeleted {
			out.Info("  - " + f)
		}
		return
	}

	if result.Success {
		out.Success(fmt.Sprintf("%s completed: %d steps, %d files changed in %s",
			result.RecipeName, len(result.StepResults), changed, result.Duration.Round(time.Millisecond)))
		return
	}

	for _, msg := range result.Errors {
		out.Error(fmt.Errorf("%s", msg))
	}
}

// parseVarFlags converts repeated --var key=value flags into a value map.
func parseVarFlags(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("%w: --var %q must be key=value", forgeerrors.ErrInvalidArgument, pair)
		}
		values[key] = value
	}
	return values, nil
}

func resolveDir(projectRoot, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(projectRoot, dir)
}

// subRecipeRunner adapts the engine for recipe steps: it registers the
// sub-recipe's tools before delegating, so nested recipes resolve the same
// way top-level ones do.
type subRecipeRunner struct {
	eng  *engine.Engine
	deps builtin.Deps
	opts engine.RunOptions
}

func (s *subRecipeRunner) ExecuteRecipe(ctx context.Context, rec *domain.RecipeConfig, values map[string]any) (*domain.RecipeResult, error) {
	if err := builtin.RegisterForRecipe(s.eng.Registry(), rec, s.deps); err != nil {
		return nil, err
	}
	return s.eng.ExecuteRecipe(ctx, rec, values, s.opts)
}
