package llms

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Tool is a function the model may call during generation. Parameters is
// the JSON schema of the arguments object, in the shape provider APIs
// expect for function declarations.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema

	execute func(ctx context.Context, arguments string) (string, error)
}

// NewTool builds a Tool whose argument schema is reflected from T. The
// arguments JSON produced by the model is unmarshalled into T before
// execute is called.
func NewTool[T any](name, description string, execute func(ctx context.Context, params T) (string, error)) Tool {
	reflector := jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	var params T
	schema := reflector.Reflect(&params)
	schema.Version = ""

	return Tool{
		Name:        name,
		Description: description,
		Parameters:  schema,
		execute: func(ctx context.Context, arguments string) (string, error) {
			var params T
			if arguments != "" {
				if err := json.Unmarshal([]byte(arguments), &params); err != nil {
					return "", fmt.Errorf("failed to parse arguments for %q: %w", name, err)
				}
			}
			return execute(ctx, params)
		},
	}
}

// Execute runs the tool against the model-supplied arguments JSON.
func (t Tool) Execute(ctx context.Context, arguments string) (string, error) {
	if t.execute == nil {
		return "", fmt.Errorf("tool %q has no implementation", t.Name)
	}
	return t.execute(ctx, arguments)
}
