package recipe_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/forge/internal/domain"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
	"github.com/mrz1836/forge/internal/recipe"
)

const sampleYAML = `name: service-scaffold
version: 1.0.0
description: Generate a service package
variables:
  service_name:
    type: string
    required: true
    pattern: "^[a-z][a-z0-9_]*$"
  replicas:
    type: number
    default: 1
    min: 1
    max: 10
settings:
  timeout: 10m
  max_parallel_steps: 4
steps:
  - name: render-model
    tool: template
    template: model
    output_dir: internal/model
  - name: render-handler
    tool: template
    template: handler
    output_dir: internal/handler
    depends_on: [render-model]
    timeout: 90s
    retries: 1
  - name: tidy
    tool: action
    action: go-mod-tidy
    depends_on: [render-model, render-handler]
    when: variables.tidy_enabled == true
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFromFileYAML(t *testing.T) {
	t.Parallel()

	loader := recipe.NewLoader("")
	r, err := loader.LoadFromFile(writeFile(t, "scaffold.yaml", sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "service-scaffold", r.Name)
	assert.Equal(t, 10*time.Minute, r.Settings.Timeout)
	assert.Equal(t, 4, r.Settings.MaxParallelSteps)
	require.Len(t, r.Steps, 3)

	handler := r.StepByName("render-handler")
	require.NotNil(t, handler)
	assert.Equal(t, domain.ToolKindTemplate, handler.Tool)
	assert.Equal(t, 90*time.Second, handler.Timeout)
	require.NotNil(t, handler.Retries)
	assert.Equal(t, 1, *handler.Retries)
	assert.Equal(t, []string{"render-model"}, handler.DependsOn)

	tidy := r.StepByName("tidy")
	require.NotNil(t, tidy)
	assert.Equal(t, "variables.tidy_enabled == true", tidy.When)

	decl := r.Variables["replicas"]
	assert.Equal(t, domain.VariableTypeNumber, decl.Type)
	require.NotNil(t, decl.Min)
	assert.InDelta(t, 1.0, *decl.Min, 0.0001)
}

func TestLoadFromFileJSON(t *testing.T) {
	t.Parallel()

	content := `{
		"name": "json-recipe",
		"steps": [
			{"name": "run", "tool": "action", "action": "build", "params": {"flags": ["-v"]}}
		]
	}`

	loader := recipe.NewLoader("")
	r, err := loader.LoadFromFile(writeFile(t, "recipe.json", content))
	require.NoError(t, err)

	assert.Equal(t, "json-recipe", r.Name)
	require.Len(t, r.Steps, 1)
	assert.Equal(t, "build", r.Steps[0].Action)
	assert.Equal(t, []any{"-v"}, r.Steps[0].Params["flags"])
}

func TestLoadFromFileMissing(t *testing.T) {
	t.Parallel()

	loader := recipe.NewLoader("")
	_, err := loader.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, forgeerrors.ErrRecipeFileMissing)
}

func TestLoadFromFileResolvesRelativePaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "r.yaml"), []byte(sampleYAML), 0o600))

	loader := recipe.NewLoader(dir)
	r, err := loader.LoadFromFile("r.yaml")
	require.NoError(t, err)
	assert.Equal(t, "service-scaffold", r.Name)
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		data   string
		format recipe.Format
	}{
		{name: "bad yaml", data: "name: [unclosed", format: recipe.FormatYAML},
		{name: "bad json", data: `{"name": `, format: recipe.FormatJSON},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := recipe.Parse([]byte(tc.data), tc.format)
			assert.ErrorIs(t, err, forgeerrors.ErrRecipeParseError)
		})
	}
}

func TestParseBadDuration(t *testing.T) {
	t.Parallel()

	data := `
name: broken
steps:
  - name: run
    tool: action
    action: build
    timeout: not-a-duration
`
	_, err := recipe.Parse([]byte(data), recipe.FormatYAML)
	assert.ErrorIs(t, err, forgeerrors.ErrRecipeInvalid)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *domain.RecipeConfig {
		return &domain.RecipeConfig{
			Name: "ok",
			Steps: []domain.Step{
				{Name: "a", Tool: domain.ToolKindAction, Action: "build"},
				{Name: "b", Tool: domain.ToolKindTemplate, Template: "model", DependsOn: []string{"a"}},
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*domain.RecipeConfig)
		wantErr error
	}{
		{
			name:   "valid recipe",
			mutate: func(*domain.RecipeConfig) {},
		},
		{
			name:    "empty name",
			mutate:  func(r *domain.RecipeConfig) { r.Name = "" },
			wantErr: forgeerrors.ErrRecipeNameEmpty,
		},
		{
			name:    "no steps",
			mutate:  func(r *domain.RecipeConfig) { r.Steps = nil },
			wantErr: forgeerrors.ErrRecipeInvalid,
		},
		{
			name:    "empty step name",
			mutate:  func(r *domain.RecipeConfig) { r.Steps[0].Name = "" },
			wantErr: forgeerrors.ErrStepNameEmpty,
		},
		{
			name:    "unknown tool kind",
			mutate:  func(r *domain.RecipeConfig) { r.Steps[0].Tool = "compiler" },
			wantErr: forgeerrors.ErrUnknownToolKind,
		},
		{
			name:    "action without action field",
			mutate:  func(r *domain.RecipeConfig) { r.Steps[0].Action = "" },
			wantErr: forgeerrors.ErrRecipeInvalid,
		},
		{
			name:    "template without template field",
			mutate:  func(r *domain.RecipeConfig) { r.Steps[1].Template = "" },
			wantErr: forgeerrors.ErrRecipeInvalid,
		},
		{
			name:    "duplicate step names",
			mutate:  func(r *domain.RecipeConfig) { r.Steps[1].Name = "a" },
			wantErr: forgeerrors.ErrDuplicateStepName,
		},
		{
			name:    "unknown dependency",
			mutate:  func(r *domain.RecipeConfig) { r.Steps[1].DependsOn = []string{"ghost"} },
			wantErr: forgeerrors.ErrUnknownDependency,
		},
		{
			name:    "self dependency",
			mutate:  func(r *domain.RecipeConfig) { r.Steps[0].DependsOn = []string{"a"} },
			wantErr: forgeerrors.ErrCyclicDependency,
		},
		{
			name:    "negative step timeout",
			mutate:  func(r *domain.RecipeConfig) { r.Steps[0].Timeout = -time.Second },
			wantErr: forgeerrors.ErrRecipeInvalid,
		},
		{
			name: "negative retries",
			mutate: func(r *domain.RecipeConfig) {
				n := -1
				r.Steps[0].Retries = &n
			},
			wantErr: forgeerrors.ErrRecipeInvalid,
		},
		{
			name: "enum without values",
			mutate: func(r *domain.RecipeConfig) {
				r.Variables = map[string]domain.VariableDecl{
					"mode": {Type: domain.VariableTypeEnum},
				}
			},
			wantErr: forgeerrors.ErrRecipeInvalid,
		},
		{
			name: "invalid pattern",
			mutate: func(r *domain.RecipeConfig) {
				r.Variables = map[string]domain.VariableDecl{
					"id": {Type: domain.VariableTypeString, Pattern: "["},
				}
			},
			wantErr: forgeerrors.ErrRecipeInvalid,
		},
		{
			name: "min above max",
			mutate: func(r *domain.RecipeConfig) {
				lo, hi := 10.0, 1.0
				r.Variables = map[string]domain.VariableDecl{
					"n": {Type: domain.VariableTypeNumber, Min: &lo, Max: &hi},
				}
			},
			wantErr: forgeerrors.ErrRecipeInvalid,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := valid()
			tc.mutate(r)

			err := recipe.Validate(r)
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestValidateNil(t *testing.T) {
	t.Parallel()

	assert.ErrorIs(t, recipe.Validate(nil), forgeerrors.ErrRecipeNil)
}
