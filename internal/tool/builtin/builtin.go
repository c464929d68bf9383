// Package builtin provides the built-in tool implementations: template
// rendering, action (command) execution, codemod transforms, and sub-recipe
// execution. Each implements the tool.Tool contract; the engine treats them
// as opaque plugins resolved through the registry.
package builtin

import (
	"github.com/go-viper/mapstructure/v2"

	"github.com/mrz1836/forge/internal/domain"
	forgeerrors "github.com/mrz1836/forge/internal/errors"
	"github.com/mrz1836/forge/internal/tool"
)

// decodeParams decodes a step's params map into a typed options struct.
// Input is weakly typed so YAML scalars coerce naturally.
func decodeParams(params map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return forgeerrors.Wrap(err, "building params decoder")
	}
	if err := dec.Decode(params); err != nil {
		return forgeerrors.Wrap(err, "decoding step params")
	}
	return nil
}

// RegisterForRecipe registers built-in tool factories for every tool name a
// recipe references, so the registry can resolve each step. Already
// registered names are left alone.
func RegisterForRecipe(registry *tool.Registry, rec *domain.RecipeConfig, deps Deps) error {
	for i := range rec.Steps {
		step := &rec.Steps[i]
		name := step.ToolName()
		if name == "" {
			continue
		}
		if registered(registry, step.Tool, name) {
			continue
		}

		reg := tool.Registration{Kind: step.Tool, Name: name}
		switch step.Tool {
		case domain.ToolKindTemplate:
			reg.Factory = NewTemplateFactory(deps.TemplatesDir)
			reg.Metadata = tool.Metadata{Category: "scaffolding", Description: "renders template " + name}
		case domain.ToolKindAction:
			reg.Factory = NewActionFactory()
			reg.Metadata = tool.Metadata{Category: "automation", Description: "runs action " + name}
		case domain.ToolKindCodeMod:
			reg.Factory = NewCodeModFactory()
			reg.Metadata = tool.Metadata{Category: "refactoring", Description: "applies codemod " + name}
		case domain.ToolKindRecipe:
			reg.Factory = NewRecipeFactory(deps.Loader, deps.Executor)
			reg.Metadata = tool.Metadata{Category: "composition", Description: "runs sub-recipe " + name}
		}

		if err := registry.Register(reg); err != nil {
			return err
		}
	}
	return nil
}

// Deps carries the collaborators built-in tools need.
type Deps struct {
	// TemplatesDir is the root directory template names resolve under.
	TemplatesDir string

	// Loader loads sub-recipes for recipe steps.
	Loader RecipeLoader

	// Executor runs sub-recipes for recipe steps.
	Executor RecipeExecutor
}

func registered(registry *tool.Registry, kind domain.ToolKind, name string) bool {
	for _, reg := range registry.Search(tool.Criteria{Kind: kind}) {
		if reg.Name == name {
			return true
		}
	}
	return false
}
