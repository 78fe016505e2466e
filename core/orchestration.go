package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zhafranr/nova-core/core/audio"
	"github.com/zhafranr/nova-core/core/llms"
	"github.com/zhafranr/nova-core/core/providers"
	"github.com/zhafranr/nova-core/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// busyReply is spoken when every provider for a required capability is
	// exhausted in one turn.
	busyReply = "Semua layanan sedang sibuk, coba lagi sebentar."
	// errorReply covers everything else; a single bad turn must leave the
	// pipeline usable for the next one.
	errorReply = "Terjadi kesalahan, tapi saya masih berjalan."

	// wavHeaderSize is the size of a WAV clip that carries no samples.
	wavHeaderSize = 44
)

// Conversation is the history collaborator: the pipeline reads an ordered
// snapshot before generating and appends the final exchange afterwards,
// never mutating history mid-request.
type Conversation interface {
	History() []llms.Turn
	AppendExchange(ctx context.Context, prompt string, response string, toolCalls []llms.ToolCall) error
}

// ContextProvider supplies an optional extra instruction block, injected
// into the system context ahead of each generation call. An empty string
// contributes nothing.
type ContextProvider func(ctx context.Context) string

// warmer is implemented by synthesizers that benefit from pre-opening
// their connection before the first request.
type warmer interface {
	Warmup(ctx context.Context) error
}

// Orchestrator coordinates one voice assistant pipeline: transcription,
// generation with tool calling, sentence-level speech synthesis, and
// conversation bookkeeping.
//
// Each turn first attempts the streaming path, where sentences are spoken
// while the rest of the response is still being generated. If that path
// fails or produces no text, the turn falls back to a single blocking
// generation with its own bounded tool loop, spoken in full afterwards.
type Orchestrator struct {
	generation    *providers.Router[llms.Generator]
	transcription *providers.Router[speechtotext.Transcriber]

	speech       *speechQueue
	recorder     audio.Recorder
	conversation Conversation
	tools        ToolSource

	systemPrompt     string
	contextProviders []ContextProvider
	transcribeOpts   []speechtotext.TranscriptionOption

	warmupOnce sync.Once
	turns      atomic.Int64
}

// NewOrchestrator assembles a pipeline around the mandatory generation
// router. Everything else is optional: without a synthesis router and
// player the pipeline is text only, without a transcription router and
// recorder HandleVoiceTurn is unavailable.
func NewOrchestrator(generation *providers.Router[llms.Generator], opts ...OrchestratorOption) (*Orchestrator, error) {
	if generation == nil {
		return nil, errors.New("orchestrator requires a generation router")
	}

	o := &Orchestrator{
		generation:   generation,
		systemPrompt: defaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// HandleTurn runs one full text exchange: generation, speech, and
// conversation bookkeeping. It never returns an error to its caller:
// a full generation outage becomes a fixed busy apology and any other
// failure becomes a generic one.
func (o *Orchestrator) HandleTurn(ctx context.Context, input string) string {
	turn := o.turns.Add(1)
	ctx, span := tracer.Start(ctx, "handle turn")
	defer span.End()
	span.SetAttributes(attribute.Int64("turn.id", turn))

	o.warmupOnce.Do(func() {
		go o.warmupSynthesis(context.WithoutCancel(ctx))
	})

	start := time.Now()
	response, toolCalls, err := o.respond(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var aggregate *providers.AggregateError
		if errors.As(err, &aggregate) {
			logger.ErrorContext(ctx, "all generation providers failed",
				"turn", turn, "error", err)
			return busyReply
		}
		logger.ErrorContext(ctx, "turn failed",
			"turn", turn, "error", err)
		return errorReply
	}

	if o.conversation != nil {
		if err := o.conversation.AppendExchange(ctx, input, response, toolCalls); err != nil {
			logger.WarnContext(ctx, "failed to persist exchange",
				"turn", turn, "error", err)
		}
	}

	logger.InfoContext(ctx, "turn complete",
		"turn", turn,
		"elapsed", time.Since(start).Round(time.Millisecond),
		"tool_calls", len(toolCalls),
		"characters", len(response))
	return response
}

// HandleVoiceTurn captures one utterance, transcribes it, and runs the
// same response path as HandleTurn. It returns ("", nil) when no speech
// was detected; capture device failures are the only errors it surfaces,
// provider failures are absorbed into the same fixed replies.
func (o *Orchestrator) HandleVoiceTurn(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "handle voice turn")
	defer span.End()

	if o.recorder == nil {
		return "", errors.New("no audio recorder configured")
	}
	if o.transcription == nil {
		return "", errors.New("no transcription providers configured")
	}

	recording, err := o.recorder.Record(ctx)
	if err != nil {
		recordedErr := fmt.Errorf("failed to capture audio: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		return "", recordedErr
	}
	if len(recording) <= wavHeaderSize {
		logger.DebugContext(ctx, "no speech captured", "bytes", len(recording))
		return "", nil
	}

	transcript, err := providers.Execute(ctx, o.transcription, "transcribe",
		func(ctx context.Context, transcriber speechtotext.Transcriber) (string, error) {
			return transcriber.Transcribe(ctx, recording, o.transcribeOpts...)
		})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		var aggregate *providers.AggregateError
		if errors.As(err, &aggregate) {
			logger.ErrorContext(ctx, "all transcription providers failed", "error", err)
			return busyReply, nil
		}
		logger.ErrorContext(ctx, "transcription failed", "error", err)
		return errorReply, nil
	}

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", nil
	}
	span.SetAttributes(attribute.String("turn.transcript", transcript))

	return o.HandleTurn(ctx, transcript), nil
}

// respond picks the response path: streaming first, blocking as fallback.
// A streaming failure is never terminal because the blocking path retries
// generation through the router from scratch.
func (o *Orchestrator) respond(ctx context.Context, input string) (string, []llms.ToolCall, error) {
	response, toolCalls, err := o.respondStreaming(ctx, input)
	switch {
	case err != nil:
		logger.WarnContext(ctx, "streaming path failed, falling back", "error", err)
	case response == "":
		logger.InfoContext(ctx, "streaming path produced no text, falling back")
	default:
		return response, toolCalls, nil
	}
	return o.respondBlocking(ctx, input)
}

// respondStreaming speaks sentences while the rest of the response is
// still streaming from the primary generator. Failover is deliberately
// absent here: a mid-stream provider switch would replay partial text, so
// anything that goes wrong defers to the blocking path instead.
func (o *Orchestrator) respondStreaming(ctx context.Context, input string) (string, []llms.ToolCall, error) {
	ctx, span := tracer.Start(ctx, "streaming response")
	defer span.End()

	generator := o.generation.Primary()
	span.SetAttributes(attribute.String("generator.name", generator.Name()))

	instructions, history := o.promptContext(ctx)
	stream := newResponseStream(generator, o.executor(), input, instructions, history, o.toolList())

	if o.speech != nil {
		if err := o.speech.stream(ctx, stream.Sentences(ctx)); err != nil {
			return "", nil, err
		}
	} else {
		for _, err := range stream.Sentences(ctx) {
			if err != nil {
				return "", nil, err
			}
		}
	}

	return strings.TrimSpace(stream.Text()), stream.ToolCalls(), nil
}

// respondBlocking makes one blocking generation through the router, with
// its own bounded tool loop, then speaks the completed text. Synthesis
// problems only cost the audio, never the text.
func (o *Orchestrator) respondBlocking(ctx context.Context, input string) (string, []llms.ToolCall, error) {
	ctx, span := tracer.Start(ctx, "blocking response")
	defer span.End()

	instructions, history := o.promptContext(ctx)
	turn := llms.Turn{Role: llms.RoleAssistant}
	var toolCalls []llms.ToolCall

	rounds := 0
	for {
		opts := []llms.PromptOption{llms.WithTurns(history...)}
		if instructions != "" {
			opts = append(opts, llms.WithSystemPrompt(instructions))
		}
		if len(turn.ToolCalls) > 0 {
			opts = append(opts, llms.WithTurns(turn))
		}
		if tools := o.toolList(); len(tools) > 0 && rounds < maxToolRounds {
			opts = append(opts, llms.WithTools(tools...))
		}

		response, err := providers.Execute(ctx, o.generation, "generate",
			func(ctx context.Context, generator llms.Generator) (*llms.Response, error) {
				return generator.Generate(ctx, input, opts...)
			})
		if err != nil {
			return "", toolCalls, err
		}

		if len(response.ToolCalls) == 0 || rounds >= maxToolRounds {
			span.SetAttributes(attribute.Int("response.tool_rounds", rounds))
			text := strings.TrimSpace(response.Content)
			o.speak(ctx, text)
			return text, toolCalls, nil
		}

		rounds++
		for _, call := range response.ToolCalls {
			call.Response = executeToolCall(ctx, o.executor(), call, toolTimeout)
			turn.ToolCalls = append(turn.ToolCalls, call)
			toolCalls = append(toolCalls, call)
		}
	}
}

// speak voices a completed response. Failures are logged and swallowed:
// the caller still has the text.
func (o *Orchestrator) speak(ctx context.Context, text string) {
	if o.speech == nil || text == "" {
		return
	}
	if err := o.speech.speak(ctx, text); err != nil {
		var aggregate *providers.AggregateError
		if errors.As(err, &aggregate) {
			logger.ErrorContext(ctx, "all synthesis providers failed, responding as text only",
				"error", err)
			return
		}
		logger.WarnContext(ctx, "speech playback failed", "error", err)
	}
}

// promptContext assembles the system instructions and conversation history
// for one generation call. Context providers contribute additively and in
// registration order. Instructions travel as the prompt's system slot, not
// as a conversation turn, so backends with a dedicated instruction field
// receive them there.
func (o *Orchestrator) promptContext(ctx context.Context) (string, []llms.Turn) {
	instructions := o.systemPrompt
	for _, provide := range o.contextProviders {
		if extra := strings.TrimSpace(provide(ctx)); extra != "" {
			instructions += "\n\n" + extra
		}
	}

	var turns []llms.Turn
	if o.conversation != nil {
		turns = append(turns, o.conversation.History()...)
	}
	return instructions, turns
}

func (o *Orchestrator) toolList() []llms.Tool {
	if o.tools == nil {
		return nil
	}
	return o.tools.Tools()
}

func (o *Orchestrator) executor() ToolExecutor {
	if o.tools == nil {
		return nil
	}
	return o.tools
}

func (o *Orchestrator) warmupSynthesis(ctx context.Context) {
	if o.speech == nil {
		return
	}
	if w, ok := o.speech.router.Primary().(warmer); ok {
		if err := w.Warmup(ctx); err != nil {
			logger.DebugContext(ctx, "synthesizer warmup failed", "error", err)
		}
	}
}

// CheckProviders probes every configured provider and returns the names of
// the unavailable ones, grouped by capability. An empty map means the
// whole pipeline is ready.
func (o *Orchestrator) CheckProviders(ctx context.Context) map[providers.Capability][]string {
	unavailable := map[providers.Capability][]string{}
	record := func(capability providers.Capability, name string, ok bool) {
		if !ok {
			unavailable[capability] = append(unavailable[capability], name)
		}
	}

	for _, provider := range o.generation.Providers() {
		record(providers.CapabilityGenerate, provider.Name(), provider.IsAvailable(ctx))
	}
	if o.transcription != nil {
		for _, provider := range o.transcription.Providers() {
			record(providers.CapabilityTranscribe, provider.Name(), provider.IsAvailable(ctx))
		}
	}
	if o.speech != nil {
		for _, provider := range o.speech.router.Providers() {
			record(providers.CapabilitySynthesize, provider.Name(), provider.IsAvailable(ctx))
		}
	}
	return unavailable
}
