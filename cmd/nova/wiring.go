package main

import (
	"context"
	"fmt"
	"strings"

	orchestration "github.com/zhafranr/nova-core/core"
	"github.com/zhafranr/nova-core/core/audio"
	"github.com/zhafranr/nova-core/core/audio/mediaplayer"
	"github.com/zhafranr/nova-core/core/audio/miniaudio"
	"github.com/zhafranr/nova-core/core/conversations"
	"github.com/zhafranr/nova-core/core/llms"
	"github.com/zhafranr/nova-core/core/llms/gemini"
	"github.com/zhafranr/nova-core/core/llms/groq"
	"github.com/zhafranr/nova-core/core/providers"
	"github.com/zhafranr/nova-core/core/speechtotext"
	deepgramstt "github.com/zhafranr/nova-core/core/speechtotext/deepgram"
	"github.com/zhafranr/nova-core/core/speechtotext/groqwhisper"
	"github.com/zhafranr/nova-core/core/texttospeech"
	"github.com/zhafranr/nova-core/core/texttospeech/cloudflare"
	deepgramtts "github.com/zhafranr/nova-core/core/texttospeech/deepgram"
	"github.com/zhafranr/nova-core/core/texttospeech/edge"
	"github.com/zhafranr/nova-core/internal/config"
)

// buildOrchestrator assembles the provider routers from whatever
// credentials are configured. The second return reports whether voice
// input is usable (a microphone plus at least one transcriber).
func buildOrchestrator(cfg *config.Config, conversation *conversations.Manager, registry orchestration.ToolSource, store *conversations.Store) (*orchestration.Orchestrator, bool, error) {
	generation, err := generationRouter(cfg)
	if err != nil {
		return nil, false, err
	}

	opts := []orchestration.OrchestratorOption{
		orchestration.WithConversation(conversation),
		orchestration.WithTools(registry),
		orchestration.WithContextProvider(factsContext(store)),
	}
	if cfg.SystemPrompt != "" {
		opts = append(opts, orchestration.WithSystemPrompt(cfg.SystemPrompt))
	}

	if synthesis, err := synthesisRouter(cfg); err == nil {
		if player, err := mediaplayer.New(); err == nil {
			var synthesizeOpts []texttospeech.SynthesizeOption
			if cfg.Language != "" && cfg.Language != "auto" {
				synthesizeOpts = append(synthesizeOpts, texttospeech.WithLanguage(cfg.Language))
			}
			opts = append(opts, orchestration.WithSynthesis(synthesis, player, synthesizeOpts...))
		}
	}

	voiceReady := false
	if transcription, err := transcriptionRouter(cfg); err == nil {
		if recorder, err := miniaudio.NewClient(miniaudio.WithCaptureConfig(audio.CaptureConfig{
			SampleRate:       cfg.SampleRate,
			SilenceThreshold: cfg.SilenceThreshold,
			SilenceDuration:  cfg.SilenceDuration,
			MaxDuration:      cfg.MaxRecording,
		})); err == nil {
			opts = append(opts, orchestration.WithTranscription(transcription, recorder))
			voiceReady = true
		}
	}

	orchestrator, err := orchestration.NewOrchestrator(generation, opts...)
	if err != nil {
		return nil, false, err
	}
	return orchestrator, voiceReady, nil
}

func generationRouter(cfg *config.Config) (*providers.Router[llms.Generator], error) {
	var generators []llms.Generator
	if cfg.GeminiAPIKey != "" {
		generators = append(generators, gemini.New(cfg.GeminiAPIKey))
	}
	if cfg.GroqAPIKey != "" {
		generators = append(generators, groq.New(cfg.GroqAPIKey))
	}
	return providers.NewRouter(providers.CapabilityGenerate, generators...)
}

func transcriptionRouter(cfg *config.Config) (*providers.Router[speechtotext.Transcriber], error) {
	var transcribers []speechtotext.Transcriber
	if cfg.GroqAPIKey != "" {
		transcribers = append(transcribers, groqwhisper.New(cfg.GroqAPIKey))
	}
	if cfg.DeepgramAPIKey != "" {
		transcribers = append(transcribers, deepgramstt.New(cfg.DeepgramAPIKey))
	}
	return providers.NewRouter(providers.CapabilityTranscribe, transcribers...)
}

func synthesisRouter(cfg *config.Config) (*providers.Router[texttospeech.Synthesizer], error) {
	synthesizers := []texttospeech.Synthesizer{edge.New()}
	if cfg.CloudflareAccountID != "" && cfg.CloudflareAPIToken != "" {
		synthesizers = append(synthesizers, cloudflare.New(cfg.CloudflareAccountID, cfg.CloudflareAPIToken))
	}
	if cfg.DeepgramAPIKey != "" {
		synthesizers = append(synthesizers, deepgramtts.New(cfg.DeepgramAPIKey))
	}
	return providers.NewRouter(providers.CapabilitySynthesize, synthesizers...)
}

// factsContext surfaces remembered facts to the model before each turn.
func factsContext(store *conversations.Store) orchestration.ContextProvider {
	return func(ctx context.Context) string {
		facts, err := store.Facts(ctx)
		if err != nil || len(facts) == 0 {
			return ""
		}

		var b strings.Builder
		b.WriteString("Fakta yang kamu ingat tentang pengguna:")
		for _, fact := range facts {
			fmt.Fprintf(&b, "\n- %s: %s", fact.Key, fact.Value)
		}
		return b.String()
	}
}

type conversationSummary struct {
	Summary string `json:"summary" jsonschema:"description=Ringkasan singkat percakapan dalam 2-3 kalimat"`
}

// newSummarizer condenses dropped conversation history through the
// structured-output endpoint so compaction keeps the gist of old turns.
func newSummarizer(client *groq.Client) conversations.Summarizer {
	return func(ctx context.Context, transcript string) (string, error) {
		result, err := groq.GenerateJSON[conversationSummary](ctx, client,
			"Ringkas percakapan berikut dalam 2-3 kalimat, pertahankan fakta penting:\n\n"+transcript)
		if err != nil {
			return "", err
		}
		return result.Summary, nil
	}
}
