// Package recipe provides recipe loading and structural validation.
//
// The loader parses YAML or JSON recipe documents into domain.RecipeConfig
// and validates them before the engine sees them: the engine only ever
// consumes an already-parsed, already-validated recipe.
package recipe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mrz1836/forge/internal/domain"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
)

// fileRecipe is the YAML/JSON structure for recipe documents.
// Field names use both yaml and json tags for dual format support.
// Durations are strings in the file ("30s", "5m") and parsed on convert.
type fileRecipe struct {
	Name         string                             `yaml:"name" json:"name"`
	Version      string                             `yaml:"version,omitempty" json:"version,omitempty"`
	Description  string                             `yaml:"description,omitempty" json:"description,omitempty"`
	Variables    map[string]domain.VariableDecl     `yaml:"variables,omitempty" json:"variables,omitempty"`
	Steps        []fileStep                         `yaml:"steps" json:"steps"`
	Dependencies []domain.DependencyRef             `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Hooks        domain.Hooks                       `yaml:"hooks,omitempty" json:"hooks,omitempty"`
	Settings     fileSettings                       `yaml:"settings,omitempty" json:"settings,omitempty"`
}

type fileSettings struct {
	Timeout          string `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	DefaultRetries   *int   `yaml:"default_retries,omitempty" json:"default_retries,omitempty"`
	ContinueOnError  bool   `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`
	MaxParallelSteps int    `yaml:"max_parallel_steps,omitempty" json:"max_parallel_steps,omitempty"`
}

type fileStep struct {
	Name            string            `yaml:"name" json:"name"`
	Tool            string            `yaml:"tool" json:"tool"`
	Description     string            `yaml:"description,omitempty" json:"description,omitempty"`
	When            string            `yaml:"when,omitempty" json:"when,omitempty"`
	DependsOn       []string          `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Parallel        bool              `yaml:"parallel,omitempty" json:"parallel,omitempty"`
	ContinueOnError bool              `yaml:"continue_on_error,omitempty" json:"continue_on_error,omitempty"`
	Timeout         string            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Retries         *int              `yaml:"retries,omitempty" json:"retries,omitempty"`
	Tags            []string          `yaml:"tags,omitempty" json:"tags,omitempty"`
	Variables       map[string]any    `yaml:"variables,omitempty" json:"variables,omitempty"`
	Environment     map[string]string `yaml:"environment,omitempty" json:"environment,omitempty"`

	Template         string         `yaml:"template,omitempty" json:"template,omitempty"`
	OutputDir        string         `yaml:"output_dir,omitempty" json:"output_dir,omitempty"`
	Action           string         `yaml:"action,omitempty" json:"action,omitempty"`
	Params           map[string]any `yaml:"params,omitempty" json:"params,omitempty"`
	CodeMod          string         `yaml:"codemod,omitempty" json:"codemod,omitempty"`
	Files            []string       `yaml:"files,omitempty" json:"files,omitempty"`
	Recipe           string         `yaml:"recipe,omitempty" json:"recipe,omitempty"`
	InheritVariables bool           `yaml:"inherit_variables,omitempty" json:"inherit_variables,omitempty"`
}

// Loader loads recipes from files.
type Loader struct {
	basePath string
}

// NewLoader creates a recipe loader.
// basePath is used to resolve relative recipe paths (typically project root).
func NewLoader(basePath string) *Loader {
	return &Loader{basePath: basePath}
}

// LoadFromFile loads a recipe from a YAML or JSON file.
// The format is auto-detected by file extension (.json for JSON, otherwise
// YAML). The returned recipe has passed structural validation.
func (l *Loader) LoadFromFile(path string) (*domain.RecipeConfig, error) {
	resolved := l.resolvePath(path)

	data, err := os.ReadFile(resolved) //nolint:gosec // Path comes from user invocation
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", forgeerrors.ErrRecipeFileMissing, resolved)
		}
		return nil, fmt.Errorf("reading recipe %s: %w", resolved, err)
	}

	if strings.EqualFold(filepath.Ext(resolved), ".json") {
		return Parse(data, FormatJSON)
	}
	return Parse(data, FormatYAML)
}

// Format selects the document encoding for Parse.
type Format string

// Supported recipe document formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Parse decodes and validates a recipe document.
func Parse(data []byte, format Format) (*domain.RecipeConfig, error) {
	var file fileRecipe

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("%w: %s", forgeerrors.ErrRecipeParseError, err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("%w: %s", forgeerrors.ErrRecipeParseError, err)
		}
	default:
		return nil, fmt.Errorf("%w: format %q", forgeerrors.ErrInvalidArgument, format)
	}

	recipe, err := file.toDomain()
	if err != nil {
		return nil, err
	}

	if err := Validate(recipe); err != nil {
		return nil, err
	}
	return recipe, nil
}

// toDomain converts the file representation into domain types, parsing
// duration strings.
func (f *fileRecipe) toDomain() (*domain.RecipeConfig, error) {
	recipe := &domain.RecipeConfig{
		Name:         f.Name,
		Version:      f.Version,
		Description:  f.Description,
		Variables:    f.Variables,
		Dependencies: f.Dependencies,
		Hooks:        f.Hooks,
		Settings: domain.Settings{
			DefaultRetries:   f.Settings.DefaultRetries,
			ContinueOnError:  f.Settings.ContinueOnError,
			MaxParallelSteps: f.Settings.MaxParallelSteps,
		},
	}

	if f.Settings.Timeout != "" {
		d, err := time.ParseDuration(f.Settings.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: settings.timeout %q: %s", forgeerrors.ErrRecipeInvalid, f.Settings.Timeout, err)
		}
		recipe.Settings.Timeout = d
	}

	recipe.Steps = make([]domain.Step, len(f.Steps))
	for i := range f.Steps {
		step, err := f.Steps[i].toDomain(i)
		if err != nil {
			return nil, err
		}
		recipe.Steps[i] = *step
	}

	return recipe, nil
}

func (f *fileStep) toDomain(index int) (*domain.Step, error) {
	step := &domain.Step{
		Name:             f.Name,
		Tool:             domain.ToolKind(strings.ToLower(strings.TrimSpace(f.Tool))),
		Description:      f.Description,
		When:             f.When,
		DependsOn:        f.DependsOn,
		Parallel:         f.Parallel,
		ContinueOnError:  f.ContinueOnError,
		Retries:          f.Retries,
		Tags:             f.Tags,
		Variables:        f.Variables,
		Environment:      f.Environment,
		Template:         f.Template,
		OutputDir:        f.OutputDir,
		Action:           f.Action,
		Params:           f.Params,
		CodeMod:          f.CodeMod,
		Files:            f.Files,
		Recipe:           f.Recipe,
		InheritVariables: f.InheritVariables,
	}

	if f.Timeout != "" {
		d, err := time.ParseDuration(f.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: step %d (%s): timeout %q: %s",
				forgeerrors.ErrRecipeInvalid, index, f.Name, f.Timeout, err)
		}
		step.Timeout = d
	}

	return step, nil
}

// resolvePath returns the path as-is when absolute, else joined to basePath.
func (l *Loader) resolvePath(path string) string {
	if filepath.IsAbs(path) || l.basePath == "" {
		return path
	}
	return filepath.Join(l.basePath, path)
}
