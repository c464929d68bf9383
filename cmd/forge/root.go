package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mrz1836/forge/internal/config"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
	"github.com/mrz1836/forge/internal/logging"
)

// buildInfo contains version information set at build time via ldflags.
type buildInfo struct {
	version string
	commit  string
	date    string
}

// globalFlags holds flags available to all commands.
type globalFlags struct {
	// output selects the output format (text or json).
	output string
	// verbose enables debug-level logging.
	verbose bool
	// quiet suppresses non-essential output.
	quiet bool
	// configFile overrides the layered config lookup with a single file.
	configFile string
}

// appState carries the collaborators initialized in PersistentPreRunE and
// shared by all subcommands.
type appState struct {
	flags  *globalFlags
	cfg    *config.Config
	logger zerolog.Logger

	// projectRoot is the working directory relative paths resolve against.
	projectRoot string
}

func newRootCmd(app *appState, info buildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forge",
		Short: "forge - recipe-driven code generation orchestrator",
		Long: `forge executes declarative recipes: YAML or JSON documents describing
code generation and transformation steps. Steps declare dependencies on each
other; forge resolves them into maximally-parallel phases and routes each
step to its tool (template, action, codemod, or sub-recipe).`,
		Version: formatVersion(info),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !isValidOutputFormat(app.flags.output) {
				return fmt.Errorf("%w: %q must be one of %v",
					forgeerrors.ErrInvalidOutputFormat, app.flags.output, validOutputFormats())
			}

			cwd, err := os.Getwd()
			if err != nil {
				return forgeerrors.Wrap(err, "resolving working directory")
			}
			app.projectRoot = cwd

			cfg, err := loadConfig(cmd.Context(), app.flags, cwd)
			if err != nil {
				return err
			}
			app.cfg = cfg

			app.logger = logging.InitLogger(
				app.flags.verbose || cfg.Logging.Verbose,
				app.flags.quiet || cfg.Logging.Quiet,
			)
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&app.flags.output, "output", "o", outputText, "output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&app.flags.verbose, "verbose", "v", false, "enable verbose output")
	cmd.PersistentFlags().BoolVarP(&app.flags.quiet, "quiet", "q", false, "suppress non-essential output")
	cmd.PersistentFlags().StringVarP(&app.flags.configFile, "config", "c", "", "config file (overrides layered lookup)")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(newRunCmd(app))
	cmd.AddCommand(newValidateCmd(app))
	cmd.AddCommand(newToolsCmd(app))

	return cmd
}

// loadConfig loads configuration from an explicit file when --config is set,
// otherwise through the layered global/project lookup.
func loadConfig(ctx context.Context, flags *globalFlags, projectRoot string) (*config.Config, error) {
	if flags.configFile != "" {
		return config.LoadFromFile(flags.configFile)
	}
	return config.Load(ctx, projectRoot)
}

func formatVersion(info buildInfo) string {
	if info.version == "" {
		info.version = "dev"
	}
	if info.commit == "" {
		info.commit = "none"
	}
	if info.date == "" {
		info.date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", info.version, info.commit, info.date)
}

// execute runs the root command with the provided context and build info.
func execute(ctx context.Context, info buildInfo) error {
	app := &appState{flags: &globalFlags{}}
	cmd := newRootCmd(app, info)
	defer logging.CloseLogFile()
	return cmd.ExecuteContext(ctx)
}
