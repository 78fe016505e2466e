package groq

import (
	"github.com/invopop/jsonschema"
	"github.com/jinzhu/copier"
	"github.com/zhafranr/nova-core/core/llms"
)

type message struct {
	Role       messageRole `json:"role"`
	Content    string      `json:"content"`
	ToolCallID string      `json:"tool_call_id,omitempty"`
	ToolCalls  []toolCall  `json:"tool_calls,omitempty"`
}

type messageRole string

const (
	messageRoleSystem    messageRole = "system"
	messageRoleUser      messageRole = "user"
	messageRoleAssistant messageRole = "assistant"
	messageRoleTool      messageRole = "tool"
)

type toolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function toolCallFunction `json:"function"`
}

type toolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type Tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters,omitempty"`
}

// toMessages flattens the prompt options and the prompt itself into the
// wire message list. A turn with resolved tool calls expands into the
// assistant message carrying the calls followed by one tool message per
// response, which is the shape the API requires for resumed tool runs.
func toMessages(options llms.PromptOptions, prompt string) []message {
	messages := []message{}
	if options.Instructions != "" {
		messages = append(messages, message{
			Role:    messageRoleSystem,
			Content: options.Instructions,
		})
	}
	for _, turn := range options.Turns {
		messages = append(messages, turnMessages(turn)...)
	}
	return append(messages, message{
		Role:    messageRoleUser,
		Content: prompt,
	})
}

func turnMessages(turn llms.Turn) []message {
	msg := message{Role: messageRole(turn.Role), Content: turn.Content}
	var responses []message
	for _, call := range turn.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, toolCall{
			ID:   call.ID,
			Type: "function",
			Function: toolCallFunction{
				Name:      call.Name,
				Arguments: call.Arguments,
			},
		})
		if call.Response != "" {
			responses = append(responses, message{
				Role:       messageRoleTool,
				Content:    call.Response,
				ToolCallID: call.ID,
			})
		}
	}

	messages := []message{}
	if msg.Content != "" || len(msg.ToolCalls) > 0 {
		messages = append(messages, msg)
	}
	return append(messages, responses...)
}

func toTools(tools []llms.Tool) []Tool {
	var wire []Tool
	for _, tool := range tools {
		var function toolFunction
		copier.Copy(&function, &tool)
		wire = append(wire, Tool{Type: "function", Function: function})
	}
	return wire
}
