package orchestration

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zhafranr/nova-core/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	// toolTimeout bounds a single tool execution. It applies per call, not
	// cumulatively across calls in one request.
	toolTimeout = 15 * time.Second
	// maxToolRounds bounds how many tool round-trips one request may make
	// before the response is finalised with whatever text exists.
	maxToolRounds = 3
)

// ToolExecutor resolves a tool call by name against model-supplied
// arguments JSON.
type ToolExecutor interface {
	Execute(ctx context.Context, name string, arguments string) (string, error)
}

// responseStream drives one streamed generation, turning raw token chunks
// into complete sentences and resolving tool calls in between.
//
// Internally it alternates between two phases: consuming stream chunks and
// feeding the sentence buffer, and executing a requested tool. A tool call
// suspends sentence production, folds its (call, response) pair into the
// context, and reopens a fresh backend stream over the updated context.
// Sentences already yielded are never retracted; an unyielded buffer
// fragment carries forward unchanged across the transition.
type responseStream struct {
	generator llms.Generator
	executor  ToolExecutor

	prompt       string
	instructions string
	history      []llms.Turn
	tools        []llms.Tool

	// timeout bounds each tool execution; swappable for tests.
	timeout time.Duration

	message   strings.Builder
	toolCalls []llms.ToolCall
}

func newResponseStream(generator llms.Generator, executor ToolExecutor, prompt, instructions string, history []llms.Turn, tools []llms.Tool) *responseStream {
	return &responseStream{
		generator:    generator,
		executor:     executor,
		prompt:       prompt,
		instructions: instructions,
		history:      history,
		tools:        tools,
		timeout:      toolTimeout,
	}
}

// Text returns the full response text accumulated so far. After the
// sentence iteration completes it holds the complete response.
func (s *responseStream) Text() string { return s.message.String() }

// ToolCalls returns the tool calls resolved while producing the response.
func (s *responseStream) ToolCalls() []llms.ToolCall { return s.toolCalls }

// Sentences iterates complete sentences as the backend streams them. The
// final buffer fragment is emitted verbatim at stream end regardless of
// length. A tool failure is never fatal: it is surfaced to the backend as
// an error string and streaming resumes.
func (s *responseStream) Sentences(ctx context.Context) func(func(string, error) bool) {
	return func(yield func(string, error) bool) {
		ctx, span := tracer.Start(ctx, "stream response")
		defer span.End()

		buffer := ""
		rounds := 0
		turn := llms.Turn{Role: llms.RoleAssistant}
		for {
			opts := []llms.PromptOption{llms.WithTurns(s.history...)}
			if s.instructions != "" {
				opts = append(opts, llms.WithSystemPrompt(s.instructions))
			}
			if len(turn.ToolCalls) > 0 {
				opts = append(opts, llms.WithTurns(turn))
			}
			if len(s.tools) > 0 && rounds < maxToolRounds {
				opts = append(opts, llms.WithTools(s.tools...))
			}

			stream, err := s.generator.GenerateStream(ctx, s.prompt, opts...)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				yield("", err)
				return
			}

			var calls []llms.ToolCall
			for chunk, err := range stream.Chunks(ctx) {
				if err != nil {
					err = fmt.Errorf("failed to stream response: %w", err)
					span.RecordError(err)
					span.SetStatus(codes.Error, err.Error())
					yield("", err)
					return
				}

				switch chunk := chunk.(type) {
				case llms.StreamContentChunk:
					s.message.WriteString(chunk.Content())
					buffer += chunk.Content()
					for {
						sentence, rest, ok := extractSentence(buffer)
						if !ok {
							break
						}
						buffer = rest
						if !yield(sentence, nil) {
							return
						}
					}

				case llms.StreamToolCallChunk:
					calls = append(calls, chunk.ToolCall())
				}
			}

			if len(calls) == 0 || rounds >= maxToolRounds {
				break
			}
			if ctx.Err() != nil {
				yield("", ctx.Err())
				return
			}

			rounds++
			for _, call := range calls {
				call.Response = executeToolCall(ctx, s.executor, call, s.timeout)
				turn.ToolCalls = append(turn.ToolCalls, call)
				s.toolCalls = append(s.toolCalls, call)
			}
		}

		span.SetAttributes(
			attribute.Int("response.length", s.message.Len()),
			attribute.Int("response.tool_rounds", rounds),
		)

		if remainder := strings.TrimSpace(buffer); remainder != "" {
			yield(remainder, nil)
		}
	}
}

// executeToolCall runs one tool call under the per-call timeout. It never
// returns an error: failures and timeouts become strings the backend can
// read and respond to.
func executeToolCall(ctx context.Context, executor ToolExecutor, call llms.ToolCall, timeout time.Duration) string {
	ctx, span := tracer.Start(ctx, "execute tool")
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", call.Name))

	if executor == nil {
		return fmt.Sprintf("error: no executor for tool %s", call.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value string
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := executor.Execute(ctx, call.Name, call.Arguments)
		done <- result{value: value, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			logger.WarnContext(ctx, "tool execution failed",
				"tool", call.Name, "error", res.err)
			span.RecordError(res.err)
			span.SetStatus(codes.Error, res.err.Error())
			return fmt.Sprintf("error: %v", res.err)
		}
		return res.value
	case <-ctx.Done():
		logger.WarnContext(ctx, "tool execution timed out",
			"tool", call.Name, "timeout", timeout)
		span.SetStatus(codes.Error, "tool execution timed out")
		return fmt.Sprintf("error: %s timed out", call.Name)
	}
}
