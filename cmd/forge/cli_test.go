package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/forge/internal/config"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
)

func TestIsValidOutputFormat(t *testing.T) {
	t.Parallel()

	assert.True(t, isValidOutputFormat(outputText))
	assert.True(t, isValidOutputFormat(outputJSON))
	assert.False(t, isValidOutputFormat("yaml"))
	assert.False(t, isValidOutputFormat(""))
}

func TestFormatVersion(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "dev (commit: none, built: unknown)", formatVersion(buildInfo{}))
	assert.Equal(t, "1.2.0 (commit: abc123, built: 2026-08-01)",
		formatVersion(buildInfo{version: "1.2.0", commit: "abc123", date: "2026-08-01"}))
}

func TestParseVarFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{name: "empty", pairs: nil, want: nil},
		{name: "single", pairs: []string{"service=billing"}, want: map[string]any{"service": "billing"}},
		{
			name:  "value with equals",
			pairs: []string{"expr=a=b"},
			want:  map[string]any{"expr": "a=b"},
		},
		{name: "missing equals", pairs: []string{"service"}, wantErr: true},
		{name: "empty key", pairs: []string{"=billing"}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseVarFlags(tc.pairs)
			if tc.wantErr {
				require.ErrorIs(t, err, forgeerrors.ErrInvalidArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWriteTableAlignsColumns(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	writeTable(&buf, []string{"KIND", "NAME"}, [][]string{
		{"action", "go-mod-tidy"},
		{"template", "svc"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "KIND      NAME", lines[0])
	assert.Equal(t, "action    go-mod-tidy", lines[1])
	assert.Equal(t, "template  svc", lines[2])
}

func TestJSONOutputSuppressesStatusMessages(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	out := newOutput(&buf, outputJSON)

	out.Success("done")
	out.Info("detail")
	out.Warning("careful")
	assert.Empty(t, buf.String())

	require.NoError(t, out.JSON(map[string]int{"steps": 3}))

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, 3, decoded["steps"])
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

func testAppState(t *testing.T) *appState {
	t.Helper()
	return &appState{
		flags:       &globalFlags{output: outputText},
		cfg:         config.DefaultConfig(),
		logger:      zerolog.Nop(),
		projectRoot: t.TempDir(),
	}
}

const validRecipeYAML = `name: service
steps:
  - name: first
    tool: action
    action: tidy
    params:
      command: "true"
  - name: second
    tool: action
    action: tidy
    params:
      command: "true"
    depends_on: [first]
`

const cyclicRecipeYAML = `name: broken
steps:
  - name: a
    tool: action
    action: tidy
    depends_on: [b]
  - name: b
    tool: action
    action: tidy
    depends_on: [a]
`

func TestValidateRecipeReportsPlan(t *testing.T) {
	t.Parallel()

	app := testAppState(t)
	path := filepath.Join(t.TempDir(), "service.yaml")
	require.NoError(t, writeFile(path, validRecipeYAML))

	app.flags.output = outputJSON
	var buf bytes.Buffer
	require.NoError(t, validateRecipe(app, path, &buf))

	var resp validateResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.True(t, resp.Valid)
	assert.Equal(t, "service", resp.Recipe)
	assert.Equal(t, 2, resp.Steps)
	require.Len(t, resp.Phases, 2)
	assert.Equal(t, []string{"first"}, resp.Phases[0].Steps)
	assert.Equal(t, []string{"second"}, resp.Phases[1].Steps)
}

func TestValidateRecipeRejectsCycle(t *testing.T) {
	t.Parallel()

	app := testAppState(t)
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, writeFile(path, cyclicRecipeYAML))

	var buf bytes.Buffer
	err := validateRecipe(app, path, &buf)
	require.ErrorIs(t, err, forgeerrors.ErrCyclicDependency)
}

func TestListToolsScansRecipesDir(t *testing.T) {
	t.Parallel()

	app := testAppState(t)
	recipesDir := filepath.Join(app.projectRoot, app.cfg.Recipes.Dir)
	require.NoError(t, writeFile(filepath.Join(recipesDir, "service.yaml"), validRecipeYAML))

	app.flags.output = outputJSON
	var buf bytes.Buffer
	require.NoError(t, listTools(app, "", &buf))

	var entries []toolEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "action", entries[0].Kind)
	assert.Equal(t, "tidy", entries[0].Name)
	assert.Equal(t, "automation", entries[0].Category)
}

func TestListToolsMissingDirIsEmpty(t *testing.T) {
	t.Parallel()

	app := testAppState(t)
	app.flags.output = outputJSON
	var buf bytes.Buffer
	require.NoError(t, listTools(app, "", &buf))

	var entries []toolEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	assert.Empty(t, entries)
}

func TestRunRecipeExecutesSteps(t *testing.T) {
	t.Parallel()

	app := testAppState(t)
	path := filepath.Join(t.TempDir(), "touch.yaml")
	require.NoError(t, writeFile(path, `name: touch
steps:
  - name: create
    tool: action
    action: touch
    params:
      command: "echo made > made.txt"
`))

	var buf bytes.Buffer
	flags := &runFlags{templatesDir: "templates"}
	require.NoError(t, runRecipe(t.Context(), app, flags, path, &buf))
	assert.FileExists(t, filepath.Join(app.projectRoot, "made.txt"))
}

func TestRunRecipePropagatesFailure(t *testing.T) {
	t.Parallel()

	app := testAppState(t)
	app.flags.quiet = true
	path := filepath.Join(t.TempDir(), "fail.yaml")
	require.NoError(t, writeFile(path, `name: fail
steps:
  - name: boom
    tool: action
    action: boom
    retries: 0
    params:
      command: "exit 1"
`))

	var buf bytes.Buffer
	flags := &runFlags{templatesDir: "templates"}
	err := runRecipe(t.Context(), app, flags, path, &buf)
	require.ErrorIs(t, err, forgeerrors.ErrRecipeFailed)
}
