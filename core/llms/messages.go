// Package llms defines the shared surface every text generation backend
// speaks: conversation turns, tool calls, streaming chunks, and the
// Generator interface the routing layer composes over.
package llms

// Role describes who a conversation turn is from.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is a single exchange in the conversation. User turns carry the
// prompt; assistant turns carry the response text and any tool calls that
// were resolved while producing it.
type Turn struct {
	Role      Role
	Content   string
	ToolCalls []ToolCall
}

// ToolCall records one tool invocation requested by the model, together
// with the response it received. Arguments and Response are raw strings so
// they can be folded back into provider message formats verbatim.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
	Response  string
}

// Response is a complete, non-streamed generation result. ToolCalls lists
// the calls that were resolved on the way to the final content.
type Response struct {
	Content   string
	ToolCalls []ToolCall
}
