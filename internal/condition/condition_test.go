package condition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/forge/internal/condition"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
)

func testVars() map[string]any {
	return map[string]any{
		"name":     "svc",
		"port":     8080,
		"debug":    true,
		"disabled": false,
		"ratio":    0.5,
		"empty":    "",
		"db": map[string]any{
			"driver": "postgres",
			"pool":   10,
		},
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"empty expression is true", "", true},
		{"blank expression is true", "   ", true},

		{"bare true", "true", true},
		{"bare false", "false", false},
		{"bare bool variable", "debug", true},
		{"bare false variable", "disabled", false},
		{"bare string variable", "name", true},
		{"bare empty string", "empty", false},
		{"unknown variable is falsy", "missing", false},

		{"string equality", "name == 'svc'", true},
		{"string inequality", "name != 'api'", true},
		{"double quotes", `name == "svc"`, true},
		{"numeric equality", "port == 8080", true},
		{"numeric coercion", "port == '8080'", true},
		{"less than", "port < 9000", true},
		{"greater or equal", "port >= 8080", true},
		{"float compare", "ratio < 1", true},
		{"bool literal compare", "debug == true", true},
		{"nil compare", "missing == null", true},
		{"nil not equal value", "name == null", false},

		{"dotted lookup", "db.driver == 'postgres'", true},
		{"dotted numeric", "db.pool > 5", true},
		{"dotted missing", "db.host == null", true},

		{"and", "debug && port == 8080", true},
		{"and short-circuit", "disabled && missing.boom == 1", false},
		{"or", "disabled || debug", true},
		{"not", "!disabled", true},
		{"double not", "!!debug", true},
		{"parens", "(disabled || debug) && port < 9000", true},
		{"precedence and over or", "disabled && disabled || debug", true},
		{"string ordering", "'apple' < 'banana'", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := condition.New().Evaluate(tt.expr, testVars())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got, "expr: %s", tt.expr)
		})
	}
}

func TestEvaluateSyntaxErrors(t *testing.T) {
	t.Parallel()

	exprs := []string{
		"port ==",
		"== 8080",
		"(debug",
		"port = 8080",
		"debug &&",
		"debug & disabled",
		"name == 'unterminated",
		"port @ 1",
		"port == 8080 extra",
	}

	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			t.Parallel()
			_, err := condition.New().Evaluate(expr, testVars())
			require.Error(t, err)
			assert.ErrorIs(t, err, forgeerrors.ErrConditionSyntax)
		})
	}
}

func TestEvaluateOrderingTypeMismatch(t *testing.T) {
	t.Parallel()

	// Ordering a map against a number cannot be coerced.
	_, err := condition.New().Evaluate("db > 1", testVars())
	require.Error(t, err)
	assert.ErrorIs(t, err, forgeerrors.ErrConditionEval)
}

func TestEvaluateNilVars(t *testing.T) {
	t.Parallel()

	got, err := condition.New().Evaluate("missing == null", nil)
	require.NoError(t, err)
	assert.True(t, got)
}
