package llms

import "context"

// Stream is a lazily opened token stream. Chunks performs the underlying
// request on first iteration and yields chunks until the backend signals
// completion or the iteration is stopped.
type Stream interface {
	Chunks(context.Context) func(func(StreamChunk, error) bool)
}

type StreamChunk interface {
	FinishReason() *string
}

// StreamContentChunk carries a fragment of assistant text.
type StreamContentChunk interface {
	StreamChunk
	Content() string
}

// StreamToolCallChunk carries a complete tool call the model requested
// mid-stream. Backends that deliver tool calls in fragments assemble them
// before yielding.
type StreamToolCallChunk interface {
	StreamChunk
	ToolCall() ToolCall
}
