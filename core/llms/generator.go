package llms

import "context"

// Generator is a text generation backend. Implementations map their own
// error taxonomy onto providers.Error values so the routing layer can make
// failover decisions.
type Generator interface {
	Name() string
	IsAvailable(ctx context.Context) bool

	// Generate produces a complete response, resolving any tool calls
	// internally before returning.
	Generate(ctx context.Context, prompt string, opts ...PromptOption) (*Response, error)

	// GenerateStream opens a token stream for the prompt. Tool calls are
	// surfaced as chunks and left to the caller to resolve.
	GenerateStream(ctx context.Context, prompt string, opts ...PromptOption) (Stream, error)
}
