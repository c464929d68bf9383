package builtin

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	texttemplate "text/template"

	"github.com/mrz1836/forge/internal/domain"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
	"github.com/mrz1836/forge/internal/tool"
	"github.com/mrz1836/forge/internal/variables"
)

// templateSuffix is stripped from template file names when rendering.
const templateSuffix = ".tmpl"

// templateParams are the decoded step params for template steps.
type templateParams struct {
	// Data is merged over the step variables as template input.
	Data map[string]any `mapstructure:"data"`
}

// TemplateTool renders a named template directory into the step's output
// directory using text/template. Template names resolve under the
// configured templates root; every file in the named directory is rendered,
// with {{name}} markers in file paths expanded from variables.
type TemplateTool struct {
	templatesDir string
}

// NewTemplateFactory returns a factory producing template tools rooted at
// templatesDir.
func NewTemplateFactory(templatesDir string) tool.Factory {
	return func() (tool.Tool, error) {
		return &TemplateTool{templatesDir: templatesDir}, nil
	}
}

// Initialize implements tool.Tool.
func (t *TemplateTool) Initialize(context.Context) error { return nil }

// Validate checks that the named template exists and the step declares an
// output directory.
func (t *TemplateTool) Validate(_ context.Context, step *domain.Step, _ *domain.StepContext) (*tool.ValidationResult, error) {
	var errs []string

	if step.Template == "" {
		errs = append(errs, "template name is required")
	} else if _, err := os.Stat(t.templateRoot(step.Template)); err != nil {
		errs = append(errs, fmt.Sprintf("template %q not found under %s", step.Template, t.templatesDir))
	}

	if step.OutputDir == "" {
		errs = append(errs, "output_dir is required")
	}

	var params templateParams
	if err := decodeParams(step.Params, &params); err != nil {
		errs = append(errs, err.Error())
	}

	return &tool.ValidationResult{Valid: len(errs) == 0, Errors: errs}, nil
}

// Execute renders every file of the template into the output directory.
// Under dry run the file list is predicted without touching the file system.
func (t *TemplateTool) Execute(ctx context.Context, step *domain.Step, stepCtx *domain.StepContext) (*tool.Result, error) {
	var params templateParams
	if err := decodeParams(step.Params, &params); err != nil {
		return nil, err
	}

	data := make(map[string]any, len(stepCtx.Variables)+len(params.Data))
	for k, v := range stepCtx.Variables {
		data[k] = v
	}
	for k, v := range params.Data {
		data[k] = v
	}

	root := t.templateRoot(step.Template)
	outputDir := step.OutputDir
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(stepCtx.ProjectRoot, outputDir)
	}

	result := &tool.Result{Metadata: map[string]any{"template": step.Template}}

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		target := filepath.Join(outputDir, t.renderPath(rel, data))

		if stepCtx.DryRun {
			result.FilesCreated = append(result.FilesCreated, target)
			return nil
		}
		return t.renderFile(path, target, data, stepCtx.Force, result)
	})
	if walkErr != nil {
		return nil, forgeerrors.Wrap(walkErr, "rendering template "+step.Template)
	}

	result.Output = fmt.Sprintf("rendered %d file(s) from template %s", len(result.FilesCreated)+len(result.FilesModified), step.Template)
	return result, nil
}

// Cleanup implements tool.Tool.
func (t *TemplateTool) Cleanup(context.Context) error { return nil }

func (t *TemplateTool) templateRoot(name string) string {
	return filepath.Join(t.templatesDir, name)
}

// renderPath expands {{variable}} markers in a template-relative path and
// strips the template suffix.
func (t *TemplateTool) renderPath(rel string, data map[string]any) string {
	expanded := variables.ExpandString(rel, data)
	return strings.TrimSuffix(expanded, templateSuffix)
}

// renderFile renders one template file to its target path.
func (t *TemplateTool) renderFile(src, target string, data map[string]any, force bool, result *tool.Result) error {
	existed := fileExists(target)
	if existed && !force {
		return fmt.Errorf("%w: %s already exists (use force to overwrite)", forgeerrors.ErrStepExecution, target)
	}

	raw, err := os.ReadFile(src) //nolint:gosec // Template paths come from the configured templates root
	if err != nil {
		return err
	}

	tmpl, err := texttemplate.New(filepath.Base(src)).Option("missingkey=zero").Parse(string(raw))
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return err
	}
	if err := os.WriteFile(target, buf.Bytes(), 0o600); err != nil {
		return err
	}

	if existed {
		result.FilesModified = append(result.FilesModified, target)
	} else {
		result.FilesCreated = append(result.FilesCreated, target)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
