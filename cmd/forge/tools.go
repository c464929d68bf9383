package main

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/forge/internal/domain"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
	"github.com/mrz1836/forge/internal/recipe"
	"github.com/mrz1836/forge/internal/tool"
	"github.com/mrz1836/forge/internal/tool/builtin"
)

func newToolsCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Tool discovery",
	}
	cmd.AddCommand(newToolsListCmd(app))
	return cmd
}

func newToolsListCmd(app *appState) *cobra.Command {
	return &cobra.Command{
		Use:   "list [recipe]",
		Short: "List the tools recipes reference",
		Long: `List the tools a recipe references, with kind, category, and description.

Without an argument, every recipe under the configured recipes directory is
scanned. Recipes that fail to load are reported as warnings and skipped.

Examples:
  forge tools list
  forge tools list recipes/service.yaml
  forge tools list --output json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return listTools(app, path, os.Stdout)
		},
	}
}

// toolEntry is the JSON shape of one registered tool.
type toolEntry struct {
	Kind        string   `json:"kind"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description"`
}

func listTools(app *appState, path string, w io.Writer) error {
	out := newOutput(w, app.flags.output)

	paths, err := recipePaths(app, path)
	if err != nil {
		return err
	}

	registry := tool.NewRegistry(tool.RegistryConfig{SweepInterval: -1}, app.logger)
	defer func() { _ = registry.Close(context.Background()) }()

	runner := &fileLoaderOnly{}
	for _, p := range paths {
		loader := recipe.NewLoader(filepath.Dir(p))
		rec, loadErr := loader.LoadFromFile(p)
		if loadErr != nil {
			out.Warning("skipping " + p + ": " + loadErr.Error())
			continue
		}
		deps := builtin.Deps{TemplatesDir: app.projectRoot, Loader: loader, Executor: runner}
		if regErr := builtin.RegisterForRecipe(registry, rec, deps); regErr != nil {
			return regErr
		}
	}

	regs := registry.Search(tool.Criteria{})
	sort.Slice(regs, func(i, j int) bool {
		if regs[i].Kind != regs[j].Kind {
			return regs[i].Kind < regs[j].Kind
		}
		return regs[i].Name < regs[j].Name
	})

	if app.flags.output == outputJSON {
		entries := make([]toolEntry, 0, len(regs))
		for _, reg := range regs {
			entries = append(entries, toolEntry{
				Kind:        string(reg.Kind),
				Name:        reg.Name,
				Category:    reg.Metadata.Category,
				Tags:        reg.Metadata.Tags,
				Description: reg.Metadata.Description,
			})
		}
		return out.JSON(entries)
	}

	if len(regs) == 0 {
		out.Info("no tools referenced")
		return nil
	}

	rows := make([][]string, 0, len(regs))
	for _, reg := range regs {
		rows = append(rows, []string{string(reg.Kind), reg.Name, reg.Metadata.Category, reg.Metadata.Description})
	}
	writeTable(w, []string{"KIND", "NAME", "CATEGORY", "DESCRIPTION"}, rows)
	return nil
}

// recipePaths resolves the recipe files to scan: the explicit argument, or
// every recipe file under the configured recipes directory.
func recipePaths(app *appState, path string) ([]string, error) {
	if path != "" {
		return []string{path}, nil
	}

	dir := resolveDir(app.projectRoot, app.cfg.Recipes.Dir)
	var paths []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".yaml", ".yml", ".json":
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return paths, nil
}

// fileLoaderOnly satisfies the sub-recipe executor contract for discovery,
// where nothing is ever executed.
type fileLoaderOnly struct{}

func (fileLoaderOnly) ExecuteRecipe(_ context.Context, _ *domain.RecipeConfig, _ map[string]any) (*domain.RecipeResult, error) {
	return nil, forgeerrors.ErrInvalidArgument
}
