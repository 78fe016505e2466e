package orchestration

import (
	"context"

	"github.com/zhafranr/nova-core/core/audio"
	"github.com/zhafranr/nova-core/core/llms"
	"github.com/zhafranr/nova-core/core/providers"
	"github.com/zhafranr/nova-core/core/speechtotext"
	"github.com/zhafranr/nova-core/core/texttospeech"
)

type OrchestratorOption func(*Orchestrator)

// ToolSource exposes a set of tools to advertise to the model together
// with their execution surface.
type ToolSource interface {
	Tools() []llms.Tool
	Execute(ctx context.Context, name string, arguments string) (string, error)
}

// WithTranscription enables voice input through the given transcription
// router and recording device.
func WithTranscription(router *providers.Router[speechtotext.Transcriber], recorder audio.Recorder, opts ...speechtotext.TranscriptionOption) OrchestratorOption {
	return func(o *Orchestrator) {
		o.transcription = router
		o.recorder = recorder
		o.transcribeOpts = opts
	}
}

// WithSynthesis enables spoken output through the given synthesis router
// and playback device. Without it the pipeline responds in text only.
func WithSynthesis(router *providers.Router[texttospeech.Synthesizer], player audio.Player, opts ...texttospeech.SynthesizeOption) OrchestratorOption {
	return func(o *Orchestrator) {
		o.speech = newSpeechQueue(router, player, opts...)
	}
}

// WithConversation attaches the history collaborator that supplies context
// before each generation and records each finished exchange.
func WithConversation(conversation Conversation) OrchestratorOption {
	return func(o *Orchestrator) {
		o.conversation = conversation
	}
}

// WithTools makes the source's tools available to every generation call.
func WithTools(tools ToolSource) OrchestratorOption {
	return func(o *Orchestrator) {
		o.tools = tools
	}
}

// WithSystemPrompt replaces the default assistant persona.
func WithSystemPrompt(prompt string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.systemPrompt = prompt
	}
}

// WithContextProvider registers an additional system context source, such
// as retrieved memories or pending notifications. Providers run in
// registration order before every generation call.
func WithContextProvider(provider ContextProvider) OrchestratorOption {
	return func(o *Orchestrator) {
		o.contextProviders = append(o.contextProviders, provider)
	}
}
