package config

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/mrz1836/forge/internal/constants"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
)

// configFileName is the file name looked up in both config directories.
const configFileName = "config.yaml"

// Load reads configuration from all available sources with proper
// precedence. Highest precedence first:
//  1. Environment variables (FORGE_* prefix)
//  2. Project config (.forge/config.yaml under projectRoot)
//  3. Global config (~/.forge/config.yaml)
//  4. Built-in defaults
//
// Missing config files are not errors; only unreadable or invalid
// configuration fails the load.
func Load(ctx context.Context, projectRoot string) (*Config, error) {
	v := newViperInstance()

	if err := loadGlobalConfig(v); err != nil {
		return nil, err
	}
	if err := loadProjectConfig(v, projectRoot); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, forgeerrors.Wrap(err, "failed to unmarshal config")
	}

	logger := zerolog.Ctx(ctx).With().Str("component", "config").Logger()
	logger.Debug().
		Int("engine.max_parallel_steps", cfg.Engine.MaxParallelSteps).
		Dur("engine.recipe_timeout", cfg.Engine.RecipeTimeout).
		Dur("tool_cache.ttl", cfg.ToolCache.TTL).
		Msg("configuration loaded")

	if err := Validate(&cfg); err != nil {
		return nil, forgeerrors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// LoadFromFile reads configuration from an explicit file path layered over
// the defaults, skipping the global/project search. Used by the --config
// flag.
func LoadFromFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", forgeerrors.ErrConfigNotFound, path)
	}

	v := newViperInstance()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, forgeerrors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viperDecoderOption()); err != nil {
		return nil, forgeerrors.Wrap(err, "failed to unmarshal config")
	}
	if err := Validate(&cfg); err != nil {
		return nil, forgeerrors.Wrap(err, "invalid configuration")
	}
	return &cfg, nil
}

// newViperInstance creates a Viper instance with the standard forge
// configuration: defaults, FORGE_ env prefix, and key replacer.
func newViperInstance() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("FORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadGlobalConfig loads ~/.forge/config.yaml when it exists.
func loadGlobalConfig(v *viper.Viper) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil //nolint:nilerr // No home directory means no global config
	}

	path := filepath.Join(home, constants.ForgeHome, configFileName)
	if !fileExists(path) {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !isConfigNotFoundError(err) {
		return forgeerrors.Wrap(err, "failed to read global config file")
	}
	return nil
}

// loadProjectConfig merges .forge/config.yaml from the project root when it
// exists.
func loadProjectConfig(v *viper.Viper, projectRoot string) error {
	if projectRoot == "" {
		projectRoot = "."
	}

	path := filepath.Join(projectRoot, constants.ForgeHome, configFileName)
	if !fileExists(path) {
		return nil
	}

	v.SetConfigFile(path)
	if err := v.MergeInConfig(); err != nil && !isConfigNotFoundError(err) {
		return forgeerrors.Wrap(err, "failed to read project config file")
	}
	return nil
}

// isConfigNotFoundError reports whether err is viper's missing-file error.
func isConfigNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var notFound viper.ConfigFileNotFoundError
	return stderrors.As(err, &notFound)
}

// viperDecoderOption configures mapstructure to convert duration strings.
func viperDecoderOption() viper.DecoderConfigOption {
	return viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		),
	)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
