// Package config provides layered configuration for forge.
//
// Configuration is loaded from built-in defaults, the global config file
// (~/.forge/config.yaml), the project config file (.forge/config.yaml), and
// FORGE_* environment variables, in increasing precedence.
package config

import (
	"time"
)

// Config is the root configuration structure.
type Config struct {
	// Engine holds orchestration settings.
	Engine EngineConfig `yaml:"engine" mapstructure:"engine"`

	// ToolCache holds tool registry cache settings.
	ToolCache ToolCacheConfig `yaml:"tool_cache" mapstructure:"tool_cache"`

	// Recipes holds recipe discovery settings.
	Recipes RecipesConfig `yaml:"recipes" mapstructure:"recipes"`

	// Logging holds logger verbosity settings.
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// EngineConfig controls recipe execution.
type EngineConfig struct {
	// MaxParallelSteps bounds concurrent steps within a phase.
	MaxParallelSteps int `yaml:"max_parallel_steps" mapstructure:"max_parallel_steps"`

	// DefaultRetries applies to steps without an explicit retry count.
	DefaultRetries int `yaml:"default_retries" mapstructure:"default_retries"`

	// RecipeTimeout bounds a full recipe run.
	RecipeTimeout time.Duration `yaml:"recipe_timeout" mapstructure:"recipe_timeout"`

	// StepTimeout bounds one step attempt when the step sets no timeout.
	StepTimeout time.Duration `yaml:"step_timeout" mapstructure:"step_timeout"`
}

// ToolCacheConfig controls the tool registry's instance cache.
type ToolCacheConfig struct {
	// MaxEntries bounds cached tool instances before LRU eviction.
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`

	// TTL is how long idle, unreferenced instances stay cached.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`

	// SweepInterval is how often the background sweeper runs.
	SweepInterval time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// RecipesConfig controls recipe discovery.
type RecipesConfig struct {
	// Dir is the directory searched for recipe files, relative to the
	// project root unless absolute.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LoggingConfig controls logger verbosity.
type LoggingConfig struct {
	// Verbose enables debug-level logging.
	Verbose bool `yaml:"verbose" mapstructure:"verbose"`

	// Quiet restricts logging to warnings and errors.
	Quiet bool `yaml:"quiet" mapstructure:"quiet"`
}
