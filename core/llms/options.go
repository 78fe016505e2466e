package llms

// PromptOptions collects everything a backend needs to shape a request
// beyond the prompt itself.
type PromptOptions struct {
	Instructions    string
	Turns           []Turn
	Tools           []Tool
	ForcedToolsCall bool
}

// PromptOption modifies the prompt options.
type PromptOption func(*PromptOptions)

// WithSystemPrompt sets the system instructions for the prompt. Repeating
// this option overwrites the previous value.
func WithSystemPrompt(prompt string) PromptOption {
	return func(opts *PromptOptions) {
		opts.Instructions = prompt
	}
}

// WithTurns appends conversation history ahead of the prompt. Repeating
// this option sequentially adds more turns.
func WithTurns(turns ...Turn) PromptOption {
	return func(opts *PromptOptions) {
		opts.Turns = append(opts.Turns, turns...)
	}
}

// WithTools makes tools available to the model. Repeating this option
// sequentially adds more tools.
func WithTools(tools ...Tool) PromptOption {
	return func(opts *PromptOptions) {
		opts.Tools = append(opts.Tools, tools...)
	}
}

// WithForcedTools makes tools available and requires the model to call one.
// Note that any available tool can be used, not just the ones passed into
// this option.
func WithForcedTools(tools ...Tool) PromptOption {
	return func(opts *PromptOptions) {
		opts.Tools = append(opts.Tools, tools...)
		opts.ForcedToolsCall = true
	}
}
