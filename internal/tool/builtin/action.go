package builtin

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/mrz1836/forge/internal/domain"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
	"github.com/mrz1836/forge/internal/tool"
)

// actionParams are the decoded step params for action steps.
type actionParams struct {
	// Command is a shell command line, run through `sh -c`.
	Command string `mapstructure:"command"`

	// Args is an argv-style invocation, run directly without a shell.
	// Exactly one of Command or Args must be set.
	Args []string `mapstructure:"args"`

	// Dir overrides the working directory (default: project root).
	Dir string `mapstructure:"dir"`
}

// ActionTool executes a user-defined command. The step's environment
// overrides are appended to the inherited process environment.
type ActionTool struct{}

// NewActionFactory returns a factory producing action tools.
func NewActionFactory() tool.Factory {
	return func() (tool.Tool, error) {
		return &ActionTool{}, nil
	}
}

// Initialize implements tool.Tool.
func (a *ActionTool) Initialize(context.Context) error { return nil }

// Validate checks that exactly one of command or args is configured.
func (a *ActionTool) Validate(_ context.Context, step *domain.Step, _ *domain.StepContext) (*tool.ValidationResult, error) {
	var params actionParams
	if err := decodeParams(step.Params, &params); err != nil {
		return &tool.ValidationResult{Valid: false, Errors: []string{err.Error()}}, nil
	}

	var errs []string
	switch {
	case params.Command == "" && len(params.Args) == 0:
		errs = append(errs, "one of params.command or params.args is required")
	case params.Command != "" && len(params.Args) > 0:
		errs = append(errs, "params.command and params.args are mutually exclusive")
	}

	return &tool.ValidationResult{Valid: len(errs) == 0, Errors: errs}, nil
}

// Execute runs the configured command, honoring cancellation via the
// context. Under dry run the command is reported but not executed.
func (a *ActionTool) Execute(ctx context.Context, step *domain.Step, stepCtx *domain.StepContext) (*tool.Result, error) {
	var params actionParams
	if err := decodeParams(step.Params, &params); err != nil {
		return nil, err
	}

	display := params.Command
	if display == "" {
		display = strings.Join(params.Args, " ")
	}

	if stepCtx.DryRun {
		return &tool.Result{
			Output:   "would run: " + display,
			Metadata: map[string]any{"command": display, "dry_run": true},
		}, nil
	}

	var cmd *exec.Cmd
	if params.Command != "" {
		cmd = exec.CommandContext(ctx, "sh", "-c", params.Command) //nolint:gosec // Actions are recipe-authored commands
	} else {
		cmd = exec.CommandContext(ctx, params.Args[0], params.Args[1:]...) //nolint:gosec // Actions are recipe-authored commands
	}

	cmd.Dir = params.Dir
	if cmd.Dir == "" {
		cmd.Dir = stepCtx.ProjectRoot
	}
	cmd.Env = append(os.Environ(), flattenEnv(stepCtx.Environment)...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return &tool.Result{Output: string(out)},
			fmt.Errorf("%w: %s: %s", forgeerrors.ErrStepExecution, display, err)
	}

	return &tool.Result{
		Output:   string(out),
		Metadata: map[string]any{"command": display},
	}, nil
}

// Cleanup implements tool.Tool.
func (a *ActionTool) Cleanup(context.Context) error { return nil }

func flattenEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
