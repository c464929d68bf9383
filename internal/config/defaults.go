package config

import (
	"github.com/spf13/viper"

	"github.com/mrz1836/forge/internal/constants"
)

// DefaultConfig returns a Config populated with the built-in defaults.
// These form the base layer overridden by config files and environment
// variables.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxParallelSteps: constants.DefaultMaxParallelSteps,
			DefaultRetries:   constants.DefaultStepRetries,
			RecipeTimeout:    constants.DefaultRecipeTimeout,
			StepTimeout:      constants.DefaultStepTimeout,
		},
		ToolCache: ToolCacheConfig{
			MaxEntries:    constants.DefaultToolCacheSize,
			TTL:           constants.DefaultToolCacheTTL,
			SweepInterval: constants.DefaultToolSweepInterval,
		},
		Recipes: RecipesConfig{
			Dir: "recipes",
		},
	}
}

// setDefaults registers the built-in defaults on a viper instance.
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()

	v.SetDefault("engine.max_parallel_steps", defaults.Engine.MaxParallelSteps)
	v.SetDefault("engine.default_retries", defaults.Engine.DefaultRetries)
	v.SetDefault("engine.recipe_timeout", defaults.Engine.RecipeTimeout)
	v.SetDefault("engine.step_timeout", defaults.Engine.StepTimeout)

	v.SetDefault("tool_cache.max_entries", defaults.ToolCache.MaxEntries)
	v.SetDefault("tool_cache.ttl", defaults.ToolCache.TTL)
	v.SetDefault("tool_cache.sweep_interval", defaults.ToolCache.SweepInterval)

	v.SetDefault("recipes.dir", defaults.Recipes.Dir)

	v.SetDefault("logging.verbose", false)
	v.SetDefault("logging.quiet", false)
}
