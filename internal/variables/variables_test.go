package variables_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/forge/internal/domain"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
	"github.com/mrz1836/forge/internal/variables"
)

func floatPtr(f float64) *float64 { return &f }

func TestResolveDefaultsAndOverrides(t *testing.T) {
	t.Parallel()

	decls := map[string]domain.VariableDecl{
		"name":  {Type: domain.VariableTypeString, Required: true},
		"port":  {Type: domain.VariableTypeNumber, Default: 8080},
		"debug": {Type: domain.VariableTypeBoolean, Default: false},
	}

	vars, err := variables.Resolve(decls, map[string]any{
		"name":  "svc",
		"debug": "true",
		"extra": 42,
	})
	require.NoError(t, err)

	assert.Equal(t, "svc", vars["name"])
	assert.Equal(t, float64(8080), vars["port"], "default coerced to declared type")
	assert.Equal(t, true, vars["debug"], "string coerced to boolean")
	assert.Equal(t, 42, vars["extra"], "undeclared values pass through")
}

func TestResolveRequiredMissing(t *testing.T) {
	t.Parallel()

	decls := map[string]domain.VariableDecl{
		"name": {Type: domain.VariableTypeString, Required: true},
	}

	_, err := variables.Resolve(decls, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, forgeerrors.ErrVariableRequired)

	// A default satisfies a required variable.
	decls["name"] = domain.VariableDecl{Type: domain.VariableTypeString, Required: true, Default: "svc"}
	vars, err := variables.Resolve(decls, nil)
	require.NoError(t, err)
	assert.Equal(t, "svc", vars["name"])
}

func TestResolveTypeMismatch(t *testing.T) {
	t.Parallel()

	decls := map[string]domain.VariableDecl{
		"port": {Type: domain.VariableTypeNumber},
	}

	_, err := variables.Resolve(decls, map[string]any{"port": "not-a-number"})
	require.Error(t, err)
	assert.ErrorIs(t, err, forgeerrors.ErrVariableType)
}

func TestResolveConstraints(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		decl     domain.VariableDecl
		value    any
		wantErr  error
		expected any
	}{
		{
			name:     "number within range",
			decl:     domain.VariableDecl{Type: domain.VariableTypeNumber, Min: floatPtr(1), Max: floatPtr(100)},
			value:    50,
			expected: float64(50),
		},
		{
			name:    "number below min",
			decl:    domain.VariableDecl{Type: domain.VariableTypeNumber, Min: floatPtr(10)},
			value:   5,
			wantErr: forgeerrors.ErrVariableConstraint,
		},
		{
			name:    "number above max",
			decl:    domain.VariableDecl{Type: domain.VariableTypeNumber, Max: floatPtr(10)},
			value:   50,
			wantErr: forgeerrors.ErrVariableConstraint,
		},
		{
			name:     "string matching pattern",
			decl:     domain.VariableDecl{Type: domain.VariableTypeString, Pattern: `^[a-z]+$`},
			value:    "service",
			expected: "service",
		},
		{
			name:    "string violating pattern",
			decl:    domain.VariableDecl{Type: domain.VariableTypeString, Pattern: `^[a-z]+$`},
			value:   "Service1",
			wantErr: forgeerrors.ErrVariableConstraint,
		},
		{
			name:     "enum member",
			decl:     domain.VariableDecl{Type: domain.VariableTypeEnum, Values: []string{"http", "grpc"}},
			value:    "grpc",
			expected: "grpc",
		},
		{
			name:    "enum non-member",
			decl:    domain.VariableDecl{Type: domain.VariableTypeEnum, Values: []string{"http", "grpc"}},
			value:   "ftp",
			wantErr: forgeerrors.ErrVariableConstraint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			vars, err := variables.Resolve(
				map[string]domain.VariableDecl{"v": tt.decl},
				map[string]any{"v": tt.value},
			)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, vars["v"])
		})
	}
}

func TestExpandString(t *testing.T) {
	t.Parallel()

	vars := map[string]any{
		"name": "svc",
		"port": 8080,
		"db":   map[string]any{"driver": "postgres"},
	}

	tests := []struct {
		in   string
		want string
	}{
		{"{{name}}", "svc"},
		{"{{ name }}", "svc"},
		{"server-{{name}}:{{port}}", "server-svc:8080"},
		{"driver={{db.driver}}", "driver=postgres"},
		{"{{missing}} stays", "{{missing}} stays"},
		{"no vars here", "no vars here"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, variables.ExpandString(tt.in, vars))
		})
	}
}

func TestExpandStep(t *testing.T) {
	t.Parallel()

	vars := map[string]any{"name": "user", "pkg": "models"}

	step := &domain.Step{
		Name:        "render",
		Tool:        domain.ToolKindTemplate,
		Description: "render {{name}} model",
		Template:    "{{name}}-model",
		OutputDir:   "internal/{{pkg}}",
		Params: map[string]any{
			"target": "{{name}}.go",
			"nested": map[string]any{"label": "{{name}}"},
			"list":   []any{"{{pkg}}", 1},
		},
		Files:       []string{"internal/{{pkg}}/*.go"},
		Environment: map[string]string{"MODEL": "{{name}}"},
	}

	expanded := variables.ExpandStep(step, vars)

	assert.Equal(t, "render user model", expanded.Description)
	assert.Equal(t, "user-model", expanded.Template)
	assert.Equal(t, "internal/models", expanded.OutputDir)
	assert.Equal(t, "user.go", expanded.Params["target"])
	assert.Equal(t, "user", expanded.Params["nested"].(map[string]any)["label"])
	assert.Equal(t, "models", expanded.Params["list"].([]any)[0])
	assert.Equal(t, []string{"internal/models/*.go"}, expanded.Files)
	assert.Equal(t, "user", expanded.Environment["MODEL"])

	// Original untouched.
	assert.Equal(t, "{{name}}-model", step.Template)
	assert.Equal(t, "{{name}}.go", step.Params["target"])
}
