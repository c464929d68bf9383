package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/forge/internal/config"
	"github.com/mrz1836/forge/internal/constants"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	// Empty project root, no config files: pure defaults.
	cfg, err := config.Load(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultMaxParallelSteps, cfg.Engine.MaxParallelSteps)
	assert.Equal(t, constants.DefaultStepRetries, cfg.Engine.DefaultRetries)
	assert.Equal(t, constants.DefaultRecipeTimeout, cfg.Engine.RecipeTimeout)
	assert.Equal(t, constants.DefaultToolCacheSize, cfg.ToolCache.MaxEntries)
	assert.Equal(t, constants.DefaultToolCacheTTL, cfg.ToolCache.TTL)
	assert.Equal(t, "recipes", cfg.Recipes.Dir)
	assert.False(t, cfg.Logging.Verbose)
}

func TestLoadProjectConfigOverridesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	root := t.TempDir()
	dir := filepath.Join(root, constants.ForgeHome)
	require.NoError(t, os.MkdirAll(dir, 0o750))

	content := `
engine:
  max_parallel_steps: 3
  recipe_timeout: 15m
tool_cache:
  ttl: 1h
recipes:
  dir: codegen
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))

	cfg, err := config.Load(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Engine.MaxParallelSteps)
	assert.Equal(t, 15*time.Minute, cfg.Engine.RecipeTimeout)
	assert.Equal(t, time.Hour, cfg.ToolCache.TTL)
	assert.Equal(t, "codegen", cfg.Recipes.Dir)

	// Untouched keys keep their defaults.
	assert.Equal(t, constants.DefaultStepRetries, cfg.Engine.DefaultRetries)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("FORGE_ENGINE_MAX_PARALLEL_STEPS", "2")
	t.Setenv("FORGE_LOGGING_VERBOSE", "true")

	cfg, err := config.Load(context.Background(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Engine.MaxParallelSteps)
	assert.True(t, cfg.Logging.Verbose)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  default_retries: 5\n"), 0o600))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Engine.DefaultRetries)
}

func TestLoadFromFileMissing(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, forgeerrors.ErrConfigNotFound)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  max_parallel_steps: -1\n"), 0o600))

	_, err := config.LoadFromFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, forgeerrors.ErrValueOutOfRange)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr error
	}{
		{name: "defaults are valid", mutate: func(*config.Config) {}},
		{
			name:    "zero recipe timeout",
			mutate:  func(c *config.Config) { c.Engine.RecipeTimeout = 0 },
			wantErr: forgeerrors.ErrValueOutOfRange,
		},
		{
			name:    "negative retries",
			mutate:  func(c *config.Config) { c.Engine.DefaultRetries = -1 },
			wantErr: forgeerrors.ErrValueOutOfRange,
		},
		{
			name:    "zero cache entries",
			mutate:  func(c *config.Config) { c.ToolCache.MaxEntries = 0 },
			wantErr: forgeerrors.ErrValueOutOfRange,
		},
		{
			name:    "verbose and quiet",
			mutate:  func(c *config.Config) { c.Logging.Verbose = true; c.Logging.Quiet = true },
			wantErr: forgeerrors.ErrInvalidArgument,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tc.mutate(cfg)

			err := config.Validate(cfg)
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

	assert.ErrorIs(t, config.Validate(nil), forgeerrors.ErrConfigNil)
}
