package orchestration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zhafranr/nova-core/core/llms"
)

type stubContentChunk struct{ text string }

func (stubContentChunk) FinishReason() *string { return nil }

func (c stubContentChunk) Content() string { return c.text }

type stubToolCallChunk struct{ call llms.ToolCall }

func (stubToolCallChunk) FinishReason() *string { return nil }

func (c stubToolCallChunk) ToolCall() llms.ToolCall { return c.call }

type stubStream struct {
	chunks []llms.StreamChunk
	err    error
}

func (s *stubStream) Chunks(context.Context) func(func(llms.StreamChunk, error) bool) {
	return func(yield func(llms.StreamChunk, error) bool) {
		for _, chunk := range s.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if s.err != nil {
			yield(nil, s.err)
		}
	}
}

func textStream(texts ...string) *stubStream {
	stream := &stubStream{}
	for _, text := range texts {
		stream.chunks = append(stream.chunks, stubContentChunk{text: text})
	}
	return stream
}

func toolCallStream(name, arguments string) *stubStream {
	return &stubStream{chunks: []llms.StreamChunk{
		stubToolCallChunk{call: llms.ToolCall{ID: "call-1", Name: name, Arguments: arguments}},
	}}
}

// scriptedGenerator plays back a fixed sequence of streams and records the
// prompt options of every request.
type scriptedGenerator struct {
	streams  []*stubStream
	openErr  error
	requests []llms.PromptOptions
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) IsAvailable(context.Context) bool { return true }

func (g *scriptedGenerator) Generate(context.Context, string, ...llms.PromptOption) (*llms.Response, error) {
	return nil, errors.New("not implemented")
}

func (g *scriptedGenerator) GenerateStream(_ context.Context, _ string, opts ...llms.PromptOption) (llms.Stream, error) {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	g.requests = append(g.requests, options)
	if g.openErr != nil {
		return nil, g.openErr
	}
	index := len(g.requests) - 1
	if index >= len(g.streams) {
		index = len(g.streams) - 1
	}
	return g.streams[index], nil
}

type recordedCall struct {
	name      string
	arguments string
}

type stubToolExecutor struct {
	calls   []recordedCall
	respond func(name, arguments string) (string, error)
}

func (e *stubToolExecutor) Execute(_ context.Context, name, arguments string) (string, error) {
	e.calls = append(e.calls, recordedCall{name: name, arguments: arguments})
	if e.respond == nil {
		return "", nil
	}
	return e.respond(name, arguments)
}

func collectSentences(t *testing.T, stream *responseStream) []string {
	t.Helper()
	var sentences []string
	for sentence, err := range stream.Sentences(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
		sentences = append(sentences, sentence)
	}
	return sentences
}

func TestSentencesYieldsCompleteSentences(t *testing.T) {
	generator := &scriptedGenerator{streams: []*stubStream{
		textStream("Halo, saya Nova. ", "Saya bisa membantu Anda."),
	}}
	stream := newResponseStream(generator, nil, "test", "", nil, nil)

	sentences := collectSentences(t, stream)
	want := []string{"Halo, saya Nova.", "Saya bisa membantu Anda."}
	if len(sentences) != len(want) {
		t.Fatalf("expected %d sentences, got %v", len(want), sentences)
	}
	for i := range want {
		if sentences[i] != want[i] {
			t.Fatalf("expected sentence %d to be %q, got %q", i, want[i], sentences[i])
		}
	}
	if stream.Text() != "Halo, saya Nova. Saya bisa membantu Anda." {
		t.Fatalf("unexpected accumulated text %q", stream.Text())
	}
}

func TestSentencesFlushesRemainderAtStreamEnd(t *testing.T) {
	generator := &scriptedGenerator{streams: []*stubStream{textStream("No period here")}}
	stream := newResponseStream(generator, nil, "test", "", nil, nil)

	sentences := collectSentences(t, stream)
	if len(sentences) != 1 || sentences[0] != "No period here" {
		t.Fatalf("expected the unterminated buffer to be flushed, got %v", sentences)
	}
}

func TestToolCallExecutesAndResumesStreaming(t *testing.T) {
	generator := &scriptedGenerator{streams: []*stubStream{
		toolCallStream("get_current_time", "{}"),
		textStream("Sekarang pukul 10:00 WIB."),
	}}
	executor := &stubToolExecutor{respond: func(string, string) (string, error) {
		return "10:00", nil
	}}
	tools := []llms.Tool{{Name: "get_current_time"}}
	stream := newResponseStream(generator, executor, "jam berapa?", "", nil, tools)

	sentences := collectSentences(t, stream)
	if len(executor.calls) != 1 || executor.calls[0].name != "get_current_time" {
		t.Fatalf("expected a single tool execution, got %v", executor.calls)
	}
	if len(sentences) != 1 || !strings.Contains(sentences[0], "10:00") {
		t.Fatalf("expected the post-tool response, got %v", sentences)
	}
	if len(generator.requests) != 2 {
		t.Fatalf("expected a fresh stream after the tool call, got %d requests", len(generator.requests))
	}

	// The reopened stream must carry the resolved (call, response) pair.
	second := generator.requests[1]
	var resolved *llms.ToolCall
	for _, turn := range second.Turns {
		for i := range turn.ToolCalls {
			resolved = &turn.ToolCalls[i]
		}
	}
	if resolved == nil {
		t.Fatalf("expected resolved tool call in the reopened context")
	}
	if resolved.Response != "10:00" {
		t.Fatalf("expected tool response folded into context, got %q", resolved.Response)
	}
}

func TestMultipleSequentialToolCalls(t *testing.T) {
	generator := &scriptedGenerator{streams: []*stubStream{
		toolCallStream("get_current_time", "{}"),
		toolCallStream("get_current_date", "{}"),
		textStream("Sekarang hari Sabtu, pukul 10:00 WIB."),
	}}
	responses := map[string]string{
		"get_current_time": "10:00",
		"get_current_date": "Sabtu, 1 Maret 2026",
	}
	executor := &stubToolExecutor{respond: func(name, _ string) (string, error) {
		return responses[name], nil
	}}
	tools := []llms.Tool{{Name: "get_current_time"}, {Name: "get_current_date"}}
	stream := newResponseStream(generator, executor, "jam dan tanggal?", "", nil, tools)

	sentences := collectSentences(t, stream)
	if len(executor.calls) != 2 {
		t.Fatalf("expected two tool executions, got %v", executor.calls)
	}
	full := strings.Join(sentences, " ")
	if !strings.Contains(full, "Sabtu") {
		t.Fatalf("expected final response after both tools, got %q", full)
	}
}

func TestToolErrorBecomesBackendVisibleText(t *testing.T) {
	generator := &scriptedGenerator{streams: []*stubStream{
		toolCallStream("broken_tool", "{}"),
		textStream("Terjadi kesalahan saat menjalankan tool."),
	}}
	executor := &stubToolExecutor{respond: func(string, string) (string, error) {
		return "", errors.New("connection failed")
	}}
	tools := []llms.Tool{{Name: "broken_tool"}}
	stream := newResponseStream(generator, executor, "test", "", nil, tools)

	sentences := collectSentences(t, stream)
	if len(sentences) == 0 {
		t.Fatalf("expected the model to still produce a response")
	}
	calls := stream.ToolCalls()
	if len(calls) != 1 {
		t.Fatalf("expected one recorded tool call, got %d", len(calls))
	}
	if !strings.Contains(calls[0].Response, "connection failed") {
		t.Fatalf("expected failure surfaced as text, got %q", calls[0].Response)
	}
}

func TestToolTimeoutBecomesBackendVisibleText(t *testing.T) {
	generator := &scriptedGenerator{streams: []*stubStream{
		toolCallStream("slow_tool", "{}"),
		textStream("Maaf, tool sedang tidak tersedia."),
	}}
	blocked := make(chan struct{})
	defer close(blocked)
	executor := &stubToolExecutor{respond: func(string, string) (string, error) {
		<-blocked
		return "too late", nil
	}}
	tools := []llms.Tool{{Name: "slow_tool"}}
	stream := newResponseStream(generator, executor, "test", "", nil, tools)
	stream.timeout = 50 * time.Millisecond

	sentences := collectSentences(t, stream)
	if len(sentences) == 0 {
		t.Fatalf("expected a response after the timeout")
	}
	calls := stream.ToolCalls()
	if len(calls) != 1 || !strings.Contains(calls[0].Response, "timed out") {
		t.Fatalf("expected timeout surfaced as text, got %v", calls)
	}
}

func TestToolRoundsAreBounded(t *testing.T) {
	generator := &scriptedGenerator{streams: []*stubStream{
		toolCallStream("get_current_time", "{}"),
	}}
	executor := &stubToolExecutor{respond: func(string, string) (string, error) {
		return "10:00", nil
	}}
	tools := []llms.Tool{{Name: "get_current_time"}}
	stream := newResponseStream(generator, executor, "test", "", nil, tools)

	for _, err := range stream.Sentences(context.Background()) {
		if err != nil {
			t.Fatalf("unexpected stream error: %v", err)
		}
	}

	if len(executor.calls) != maxToolRounds {
		t.Fatalf("expected exactly %d tool executions, got %d", maxToolRounds, len(executor.calls))
	}
	// Past the bound the final request must not offer tools anymore.
	last := generator.requests[len(generator.requests)-1]
	if len(last.Tools) != 0 {
		t.Fatalf("expected no tools on the final request, got %d", len(last.Tools))
	}
}

func TestBufferCarriesAcrossToolTransition(t *testing.T) {
	generator := &scriptedGenerator{streams: []*stubStream{
		{chunks: []llms.StreamChunk{
			stubContentChunk{text: "Sebentar ya"},
			stubToolCallChunk{call: llms.ToolCall{ID: "call-1", Name: "get_current_time"}},
		}},
		textStream(", sudah saya periksa sekarang."),
	}}
	executor := &stubToolExecutor{respond: func(string, string) (string, error) {
		return "10:00", nil
	}}
	tools := []llms.Tool{{Name: "get_current_time"}}
	stream := newResponseStream(generator, executor, "test", "", nil, tools)

	sentences := collectSentences(t, stream)
	if len(sentences) != 1 {
		t.Fatalf("expected one merged sentence, got %v", sentences)
	}
	if sentences[0] != "Sebentar ya, sudah saya periksa sekarang." {
		t.Fatalf("expected buffer to carry across the tool call, got %q", sentences[0])
	}
}

func TestStreamOpenErrorIsYielded(t *testing.T) {
	generator := &scriptedGenerator{openErr: errors.New("boom")}
	stream := newResponseStream(generator, nil, "test", "", nil, nil)

	var streamErr error
	for _, err := range stream.Sentences(context.Background()) {
		if err != nil {
			streamErr = err
		}
	}
	if streamErr == nil {
		t.Fatalf("expected the open error to be yielded")
	}
}
