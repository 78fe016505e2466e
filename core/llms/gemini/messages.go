package gemini

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/zhafranr/nova-core/core/llms"
)

type generateRequest struct {
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
	Tools             []tool           `json:"tools,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *functionCall     `json:"functionCall,omitempty"`
	FunctionResponse *functionResponse `json:"functionResponse,omitempty"`
}

type functionCall struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

type functionResponse struct {
	Name     string          `json:"name"`
	Response json.RawMessage `json:"response"`
}

type tool struct {
	FunctionDeclarations []functionDeclaration `json:"function_declarations"`
}

type functionDeclaration struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

func (f *functionCall) toToolCall() llms.ToolCall {
	return llms.ToolCall{
		Name:      f.Name,
		Arguments: string(f.Args),
	}
}

// toRequest flattens the prompt options and the prompt into the wire
// request. Assistant turns map to the "model" role, and resolved tool
// calls expand into a model functionCall content followed by a user
// functionResponse content, which is the shape resumed tool runs require.
func toRequest(options llms.PromptOptions, prompt string) generateRequest {
	request := generateRequest{
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxOutputTokens,
		},
	}
	if options.Instructions != "" {
		request.SystemInstruction = &content{Parts: []part{{Text: options.Instructions}}}
	}

	for _, turn := range options.Turns {
		request.Contents = append(request.Contents, turnContents(turn)...)
	}
	request.Contents = append(request.Contents, content{
		Role:  "user",
		Parts: []part{{Text: prompt}},
	})

	if len(options.Tools) > 0 {
		declarations := make([]functionDeclaration, 0, len(options.Tools))
		for _, t := range options.Tools {
			declarations = append(declarations, functionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		request.Tools = []tool{{FunctionDeclarations: declarations}}
	}
	return request
}

func turnContents(turn llms.Turn) []content {
	role := string(turn.Role)
	switch turn.Role {
	case llms.RoleAssistant:
		role = "model"
	case llms.RoleSystem:
		// System context travels in system_instruction; a stray system
		// turn degrades to user text rather than being dropped.
		role = "user"
	}

	var contents []content
	if turn.Content != "" {
		contents = append(contents, content{
			Role:  role,
			Parts: []part{{Text: turn.Content}},
		})
	}

	for _, call := range turn.ToolCalls {
		args := json.RawMessage(call.Arguments)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		contents = append(contents, content{
			Role:  "model",
			Parts: []part{{FunctionCall: &functionCall{Name: call.Name, Args: args}}},
		})
		if call.Response != "" {
			result, _ := json.Marshal(map[string]string{"result": call.Response})
			contents = append(contents, content{
				Role:  "user",
				Parts: []part{{FunctionResponse: &functionResponse{Name: call.Name, Response: result}}},
			})
		}
	}
	return contents
}
