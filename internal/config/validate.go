package config

import (
	"fmt"

	forgeerrors "github.com/mrz1836/forge/internal/errors"
)

// Validate checks a loaded configuration for out-of-range values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return forgeerrors.ErrConfigNil
	}

	if cfg.Engine.MaxParallelSteps <= 0 {
		return fmt.Errorf("%w: engine.max_parallel_steps must be positive", forgeerrors.ErrValueOutOfRange)
	}
	if cfg.Engine.DefaultRetries < 0 {
		return fmt.Errorf("%w: engine.default_retries cannot be negative", forgeerrors.ErrValueOutOfRange)
	}
	if cfg.Engine.RecipeTimeout <= 0 {
		return fmt.Errorf("%w: engine.recipe_timeout must be positive", forgeerrors.ErrValueOutOfRange)
	}
	if cfg.Engine.StepTimeout <= 0 {
		return fmt.Errorf("%w: engine.step_timeout must be positive", forgeerrors.ErrValueOutOfRange)
	}

	if cfg.ToolCache.MaxEntries <= 0 {
		return fmt.Errorf("%w: tool_cache.max_entries must be positive", forgeerrors.ErrValueOutOfRange)
	}
	if cfg.ToolCache.TTL <= 0 {
		return fmt.Errorf("%w: tool_cache.ttl must be positive", forgeerrors.ErrValueOutOfRange)
	}

	if cfg.Logging.Verbose && cfg.Logging.Quiet {
		return fmt.Errorf("%w: logging.verbose and logging.quiet are mutually exclusive", forgeerrors.ErrInvalidArgument)
	}

	return nil
}
