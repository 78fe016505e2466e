package orchestration

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/zhafranr/nova-core/core/llms"
	"github.com/zhafranr/nova-core/core/providers"
	"github.com/zhafranr/nova-core/core/speechtotext"
	"github.com/zhafranr/nova-core/core/texttospeech"
	"github.com/zhafranr/nova-core/core/tools"
)

type stubConversation struct {
	history   []llms.Turn
	prompts   []string
	responses []string
}

func (c *stubConversation) History() []llms.Turn { return c.history }

func (c *stubConversation) AppendExchange(_ context.Context, prompt, response string, _ []llms.ToolCall) error {
	c.prompts = append(c.prompts, prompt)
	c.responses = append(c.responses, response)
	return nil
}

type stubRecorder struct {
	clip []byte
	err  error
}

func (r *stubRecorder) Record(context.Context) ([]byte, error) { return r.clip, r.err }

type stubTranscriber struct {
	name       string
	transcript string
	err        error
	calls      int
}

func (s *stubTranscriber) Name() string { return s.name }

func (s *stubTranscriber) IsAvailable(context.Context) bool { return true }

func (s *stubTranscriber) Transcribe(_ context.Context, _ []byte, _ ...speechtotext.TranscriptionOption) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.transcript, nil
}

// failingGenerator fails both the streaming and the blocking path with
// the same error.
type failingGenerator struct {
	name string
	err  error
}

func (g *failingGenerator) Name() string { return g.name }

func (g *failingGenerator) IsAvailable(context.Context) bool { return true }

func (g *failingGenerator) Generate(context.Context, string, ...llms.PromptOption) (*llms.Response, error) {
	return nil, g.err
}

func (g *failingGenerator) GenerateStream(context.Context, string, ...llms.PromptOption) (llms.Stream, error) {
	return nil, g.err
}

// dualGenerator scripts the streaming path like scriptedGenerator and
// answers the blocking path through a callback.
type dualGenerator struct {
	scriptedGenerator
	generate         func(options llms.PromptOptions) (*llms.Response, error)
	generateRequests []llms.PromptOptions
}

func (g *dualGenerator) Generate(_ context.Context, _ string, opts ...llms.PromptOption) (*llms.Response, error) {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	g.generateRequests = append(g.generateRequests, options)
	return g.generate(options)
}

func newGenerationRouter(t *testing.T, generators ...llms.Generator) *providers.Router[llms.Generator] {
	t.Helper()
	router, err := providers.NewRouter(providers.CapabilityGenerate, generators...)
	if err != nil {
		t.Fatalf("failed to build generation router: %v", err)
	}
	return router
}

func synthesisOption(t *testing.T, synthesizer *stubSynthesizer, player *stubPlayer) OrchestratorOption {
	t.Helper()
	router, err := providers.NewRouter[texttospeech.Synthesizer](providers.CapabilitySynthesize, synthesizer)
	if err != nil {
		t.Fatalf("failed to build synthesis router: %v", err)
	}
	return WithSynthesis(router, player)
}

func TestHandleTurnAnswersTimeQuestion(t *testing.T) {
	var mu sync.Mutex
	toolCalls := 0
	registry := tools.NewRegistry(llms.NewTool("get_current_time", "Current time",
		func(context.Context, struct{}) (string, error) {
			mu.Lock()
			toolCalls++
			mu.Unlock()
			return "10:00", nil
		}))

	generator := &scriptedGenerator{streams: []*stubStream{
		toolCallStream("get_current_time", "{}"),
		textStream("Sekarang pukul 10:00."),
	}}
	synthesizer := &stubSynthesizer{name: "edge"}
	player := &stubPlayer{}
	conversation := &stubConversation{}

	orchestrator, err := NewOrchestrator(newGenerationRouter(t, generator),
		synthesisOption(t, synthesizer, player),
		WithTools(registry),
		WithConversation(conversation),
	)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	response := orchestrator.HandleTurn(context.Background(), "jam berapa?")

	if !strings.Contains(response, "10:00") {
		t.Fatalf("expected response to carry the tool result, got %q", response)
	}
	if toolCalls != 1 {
		t.Fatalf("expected exactly one tool invocation, got %d", toolCalls)
	}
	if playback := player.playback(); len(playback) != 1 || playback[0] != "Sekarang pukul 10:00." {
		t.Fatalf("expected the answer to be played, got %v", playback)
	}
	if len(conversation.prompts) != 1 || conversation.prompts[0] != "jam berapa?" {
		t.Fatalf("expected the exchange to be recorded, got %v", conversation.prompts)
	}
	if conversation.responses[0] != response {
		t.Fatalf("recorded response %q does not match returned %q", conversation.responses[0], response)
	}
}

func TestHandleTurnAllGeneratorsRateLimitedReturnsBusyReply(t *testing.T) {
	first := &failingGenerator{name: "gemini", err: providers.NewRateLimitError("gemini", 0, nil)}
	second := &failingGenerator{name: "groq", err: providers.NewRateLimitError("groq", 0, nil)}
	conversation := &stubConversation{}

	orchestrator, err := NewOrchestrator(newGenerationRouter(t, first, second),
		WithConversation(conversation))
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	response := orchestrator.HandleTurn(context.Background(), "halo")

	if response != busyReply {
		t.Fatalf("expected busy reply, got %q", response)
	}
	if len(conversation.prompts) != 0 {
		t.Fatalf("failed turn must not be recorded, got %v", conversation.prompts)
	}
}

func TestHandleTurnSynthesisFailureStillReturnsText(t *testing.T) {
	generator := &scriptedGenerator{streams: []*stubStream{
		textStream("Cuacanya cerah hari ini."),
	}}
	synthesizer := &stubSynthesizer{
		name: "edge",
		fail: func(string) error { return providers.NewError("edge", nil) },
	}
	player := &stubPlayer{}
	conversation := &stubConversation{}

	orchestrator, err := NewOrchestrator(newGenerationRouter(t, generator),
		synthesisOption(t, synthesizer, player),
		WithConversation(conversation),
	)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	response := orchestrator.HandleTurn(context.Background(), "bagaimana cuacanya?")

	if response != "Cuacanya cerah hari ini." {
		t.Fatalf("expected the text response despite synthesis failure, got %q", response)
	}
	if playback := player.playback(); len(playback) != 0 {
		t.Fatalf("expected no playback, got %v", playback)
	}
	if len(conversation.responses) != 1 {
		t.Fatalf("expected the exchange to be recorded, got %v", conversation.responses)
	}
}

func TestHandleTurnFallsBackWhenStreamingYieldsNoText(t *testing.T) {
	generator := &dualGenerator{
		scriptedGenerator: scriptedGenerator{streams: []*stubStream{{}}},
		generate: func(llms.PromptOptions) (*llms.Response, error) {
			return &llms.Response{Content: "Jawaban dari jalur cadangan."}, nil
		},
	}

	orchestrator, err := NewOrchestrator(newGenerationRouter(t, generator))
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	response := orchestrator.HandleTurn(context.Background(), "halo")

	if response != "Jawaban dari jalur cadangan." {
		t.Fatalf("expected the blocking path response, got %q", response)
	}
	if len(generator.requests) != 1 {
		t.Fatalf("expected one streaming attempt, got %d", len(generator.requests))
	}
	if len(generator.generateRequests) != 1 {
		t.Fatalf("expected one blocking attempt, got %d", len(generator.generateRequests))
	}
}

func TestBlockingToolLoopIsBounded(t *testing.T) {
	executed := 0
	registry := tools.NewRegistry(llms.NewTool("get_current_time", "Current time",
		func(context.Context, struct{}) (string, error) {
			executed++
			return "10:00", nil
		}))

	generator := &dualGenerator{}
	generator.generate = func(llms.PromptOptions) (*llms.Response, error) {
		return &llms.Response{
			Content:   "Sudah saya periksa.",
			ToolCalls: []llms.ToolCall{{ID: "call-1", Name: "get_current_time", Arguments: "{}"}},
		}, nil
	}

	orchestrator, err := NewOrchestrator(newGenerationRouter(t, generator), WithTools(registry))
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	response, toolCalls, err := orchestrator.respondBlocking(context.Background(), "jam berapa?")
	if err != nil {
		t.Fatalf("respondBlocking failed: %v", err)
	}

	if response != "Sudah saya periksa." {
		t.Fatalf("expected accumulated text, got %q", response)
	}
	if executed != maxToolRounds {
		t.Fatalf("expected %d tool executions, got %d", maxToolRounds, executed)
	}
	if len(toolCalls) != maxToolRounds {
		t.Fatalf("expected %d recorded tool calls, got %d", maxToolRounds, len(toolCalls))
	}
	final := generator.generateRequests[len(generator.generateRequests)-1]
	if len(final.Tools) != 0 {
		t.Fatalf("final request past the round limit must not advertise tools, got %d", len(final.Tools))
	}
}

func TestPromptContextSeparatesInstructionsFromHistory(t *testing.T) {
	conversation := &stubConversation{history: []llms.Turn{
		{Role: llms.RoleUser, Content: "halo"},
		{Role: llms.RoleAssistant, Content: "Halo, Pak."},
	}}

	orchestrator, err := NewOrchestrator(newGenerationRouter(t, &scriptedGenerator{}),
		WithSystemPrompt("Kamu adalah asisten pribadi."),
		WithContextProvider(func(context.Context) string { return "Memori: pengguna suka kopi." }),
		WithContextProvider(func(context.Context) string { return "" }),
		WithConversation(conversation),
	)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	instructions, turns := orchestrator.promptContext(context.Background())

	if !strings.Contains(instructions, "asisten pribadi") ||
		!strings.Contains(instructions, "suka kopi") {
		t.Fatalf("instructions missing prompt or provided context: %q", instructions)
	}
	if len(turns) != 2 {
		t.Fatalf("expected history only, got %d turns", len(turns))
	}
	for _, turn := range turns {
		if turn.Role == llms.RoleSystem {
			t.Fatalf("instructions leaked into history as a system turn: %v", turn)
		}
	}
	if turns[0].Content != "halo" || turns[1].Content != "Halo, Pak." {
		t.Fatalf("history out of order: %v", turns)
	}
}

func TestSystemPromptTravelsAsInstructions(t *testing.T) {
	generator := &scriptedGenerator{streams: []*stubStream{
		textStream("Halo, ada yang bisa saya bantu?"),
	}}

	orchestrator, err := NewOrchestrator(newGenerationRouter(t, generator),
		WithSystemPrompt("Kamu adalah NOVA."),
	)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	orchestrator.HandleTurn(context.Background(), "halo")

	if len(generator.requests) != 1 {
		t.Fatalf("expected one streaming request, got %d", len(generator.requests))
	}
	options := generator.requests[0]
	if options.Instructions != "Kamu adalah NOVA." {
		t.Fatalf("expected the system prompt in the instructions slot, got %q", options.Instructions)
	}
	for _, turn := range options.Turns {
		if turn.Role == llms.RoleSystem {
			t.Fatalf("system prompt also leaked in as a turn: %v", turn)
		}
	}
}

func TestSystemPromptReachesBlockingFallback(t *testing.T) {
	generator := &dualGenerator{
		scriptedGenerator: scriptedGenerator{streams: []*stubStream{textStream("   ")}},
		generate: func(llms.PromptOptions) (*llms.Response, error) {
			return &llms.Response{Content: "Siap membantu."}, nil
		},
	}

	orchestrator, err := NewOrchestrator(newGenerationRouter(t, generator),
		WithSystemPrompt("Kamu adalah NOVA."),
	)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	response := orchestrator.HandleTurn(context.Background(), "halo")

	if response != "Siap membantu." {
		t.Fatalf("expected the blocking answer, got %q", response)
	}
	if len(generator.generateRequests) != 1 {
		t.Fatalf("expected one blocking request, got %d", len(generator.generateRequests))
	}
	if got := generator.generateRequests[0].Instructions; got != "Kamu adalah NOVA." {
		t.Fatalf("expected the system prompt in the instructions slot, got %q", got)
	}
}

func TestHandleVoiceTurnTranscribesAndResponds(t *testing.T) {
	generator := &scriptedGenerator{streams: []*stubStream{
		textStream("Sudah siang sekarang."),
	}}
	transcriber := &stubTranscriber{name: "whisper", transcript: "jam berapa sekarang"}
	transcription, err := providers.NewRouter[speechtotext.Transcriber](providers.CapabilityTranscribe, transcriber)
	if err != nil {
		t.Fatalf("failed to build transcription router: %v", err)
	}
	conversation := &stubConversation{}

	orchestrator, err := NewOrchestrator(newGenerationRouter(t, generator),
		WithTranscription(transcription, &stubRecorder{clip: make([]byte, 4000)}),
		WithConversation(conversation),
	)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	response, err := orchestrator.HandleVoiceTurn(context.Background())
	if err != nil {
		t.Fatalf("HandleVoiceTurn failed: %v", err)
	}

	if response != "Sudah siang sekarang." {
		t.Fatalf("unexpected response %q", response)
	}
	if len(conversation.prompts) != 1 || conversation.prompts[0] != "jam berapa sekarang" {
		t.Fatalf("expected the transcript to be recorded as the prompt, got %v", conversation.prompts)
	}
}

func TestHandleVoiceTurnIgnoresSilentCapture(t *testing.T) {
	transcriber := &stubTranscriber{name: "whisper", transcript: "should not run"}
	transcription, err := providers.NewRouter[speechtotext.Transcriber](providers.CapabilityTranscribe, transcriber)
	if err != nil {
		t.Fatalf("failed to build transcription router: %v", err)
	}

	orchestrator, err := NewOrchestrator(newGenerationRouter(t, &scriptedGenerator{}),
		WithTranscription(transcription, &stubRecorder{clip: make([]byte, wavHeaderSize)}),
	)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	response, err := orchestrator.HandleVoiceTurn(context.Background())
	if err != nil {
		t.Fatalf("HandleVoiceTurn failed: %v", err)
	}
	if response != "" {
		t.Fatalf("expected no response for silence, got %q", response)
	}
	if transcriber.calls != 0 {
		t.Fatalf("transcriber must not run on silence, got %d calls", transcriber.calls)
	}
}

func TestHandleVoiceTurnTranscriptionOutageReturnsBusyReply(t *testing.T) {
	transcriber := &stubTranscriber{name: "whisper", err: providers.NewRateLimitError("whisper", 0, nil)}
	transcription, err := providers.NewRouter[speechtotext.Transcriber](providers.CapabilityTranscribe, transcriber)
	if err != nil {
		t.Fatalf("failed to build transcription router: %v", err)
	}

	orchestrator, err := NewOrchestrator(newGenerationRouter(t, &scriptedGenerator{}),
		WithTranscription(transcription, &stubRecorder{clip: make([]byte, 4000)}),
	)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	response, err := orchestrator.HandleVoiceTurn(context.Background())
	if err != nil {
		t.Fatalf("HandleVoiceTurn failed: %v", err)
	}
	if response != busyReply {
		t.Fatalf("expected busy reply, got %q", response)
	}
}

func TestCheckProvidersReportsUnavailable(t *testing.T) {
	available := &scriptedGenerator{}
	down := &unavailableGenerator{name: "gemini"}

	orchestrator, err := NewOrchestrator(newGenerationRouter(t, down, available))
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	report := orchestrator.CheckProviders(context.Background())

	names := report[providers.CapabilityGenerate]
	if len(names) != 1 || names[0] != "gemini" {
		t.Fatalf("expected only the down generator to be reported, got %v", names)
	}
}

type unavailableGenerator struct{ name string }

func (g *unavailableGenerator) Name() string { return g.name }

func (g *unavailableGenerator) IsAvailable(context.Context) bool { return false }

func (g *unavailableGenerator) Generate(context.Context, string, ...llms.PromptOption) (*llms.Response, error) {
	return nil, providers.NewError(g.name, nil)
}

func (g *unavailableGenerator) GenerateStream(context.Context, string, ...llms.PromptOption) (llms.Stream, error) {
	return nil, providers.NewError(g.name, nil)
}
