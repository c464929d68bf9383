package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/mrz1836/forge/internal/domain"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
	"github.com/mrz1836/forge/internal/tool"
)

// codemodParams are the decoded step params for codemod steps.
type codemodParams struct {
	// Pattern is the regular expression applied to each file.
	Pattern string `mapstructure:"pattern"`

	// Replace is the replacement text; $1-style group references apply.
	Replace string `mapstructure:"replace"`
}

// CodeModTool applies a regex find/replace across the step's file globs.
// Globs resolve relative to the project root. Only files whose content
// actually changes are rewritten and reported.
type CodeModTool struct{}

// NewCodeModFactory returns a factory producing codemod tools.
func NewCodeModFactory() tool.Factory {
	return func() (tool.Tool, error) {
		return &CodeModTool{}, nil
	}
}

// Initialize implements tool.Tool.
func (c *CodeModTool) Initialize(context.Context) error { return nil }

// Validate checks the pattern compiles and the step lists target files.
func (c *CodeModTool) Validate(_ context.Context, step *domain.Step, _ *domain.StepContext) (*tool.ValidationResult, error) {
	var params codemodParams
	if err := decodeParams(step.Params, &params); err != nil {
		return &tool.ValidationResult{Valid: false, Errors: []string{err.Error()}}, nil
	}

	var errs []string
	if params.Pattern == "" {
		errs = append(errs, "params.pattern is required")
	} else if _, err := regexp.Compile(params.Pattern); err != nil {
		errs = append(errs, fmt.Sprintf("params.pattern: %s", err))
	}
	if len(step.Files) == 0 {
		errs = append(errs, "files is required")
	}

	return &tool.ValidationResult{Valid: len(errs) == 0, Errors: errs}, nil
}

// Execute applies the transform to every matched file. Under dry run the
// files that would change are predicted without rewriting them.
func (c *CodeModTool) Execute(ctx context.Context, step *domain.Step, stepCtx *domain.StepContext) (*tool.Result, error) {
	var params codemodParams
	if err := decodeParams(step.Params, &params); err != nil {
		return nil, err
	}

	pattern, err := regexp.Compile(params.Pattern)
	if err != nil {
		return nil, forgeerrors.Wrap(err, "compiling codemod pattern")
	}

	paths, err := c.expandGlobs(step.Files, stepCtx.ProjectRoot)
	if err != nil {
		return nil, err
	}

	result := &tool.Result{Metadata: map[string]any{"codemod": step.CodeMod, "matched_files": len(paths)}}

	for _, path := range paths {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		raw, err := os.ReadFile(path) //nolint:gosec // Paths come from recipe-authored globs
		if err != nil {
			return nil, forgeerrors.Wrap(err, "reading "+path)
		}

		transformed := pattern.ReplaceAll(raw, []byte(params.Replace))
		if string(transformed) == string(raw) {
			continue
		}

		if !stepCtx.DryRun {
			info, err := os.Stat(path)
			if err != nil {
				return nil, forgeerrors.Wrap(err, "stat "+path)
			}
			if err := os.WriteFile(path, transformed, info.Mode().Perm()); err != nil {
				return nil, forgeerrors.Wrap(err, "writing "+path)
			}
		}
		result.FilesModified = append(result.FilesModified, path)
	}

	result.Output = fmt.Sprintf("codemod %s changed %d of %d file(s)", step.CodeMod, len(result.FilesModified), len(paths))
	return result, nil
}

// Cleanup implements tool.Tool.
func (c *CodeModTool) Cleanup(context.Context) error { return nil }

// expandGlobs resolves the step's globs against the project root, returning
// matched file paths in glob order with duplicates removed.
func (c *CodeModTool) expandGlobs(globs []string, root string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string

	for _, glob := range globs {
		if !filepath.IsAbs(glob) {
			glob = filepath.Join(root, glob)
		}

		matches, err := filepath.Glob(glob)
		if err != nil {
			return nil, fmt.Errorf("%w: glob %q: %s", forgeerrors.ErrInvalidArgument, glob, err)
		}
		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil || info.IsDir() {
				continue
			}
			if !seen[match] {
				seen[match] = true
				paths = append(paths, match)
			}
		}
	}
	return paths, nil
}
