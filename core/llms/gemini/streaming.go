package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zhafranr/nova-core/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Stream is one lazily-opened streaming generation. The HTTP request
// happens when Chunks is first iterated, so a Stream can be built ahead
// of time and cancelled through the iteration context.
type Stream struct {
	client  *Client
	request generateRequest
}

func (s *Stream) Chunks(ctx context.Context) func(func(llms.StreamChunk, error) bool) {
	requestToFirstTokenTime := time.Time{}
	setRequestToFirstTokenTime := func(span trace.Span) {
		if requestToFirstTokenTime.IsZero() {
			return
		}
		span.SetAttributes(attribute.Float64("response.request_to_first_token_time", time.Since(requestToFirstTokenTime).Seconds()))
		span.AddEvent("received first chunk")
		requestToFirstTokenTime = time.Time{}
	}

	return func(yield func(llms.StreamChunk, error) bool) {
		ctx, span := tracer.Start(ctx, "prompt llm stream")
		defer span.End()
		span.SetAttributes(attribute.String("request.model", s.client.model))

		requestBodyBytes, err := json.Marshal(s.request)
		if err != nil {
			err = fmt.Errorf("error marshalling JSON: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}

		url := s.client.endpoint("streamGenerateContent") + "?alt=sse"
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBodyBytes))
		if err != nil {
			err = fmt.Errorf("error creating HTTP request: %w", err)
			span.RecordError(err)
			yield(nil, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", s.client.apiKey)

		span.SetAttributes(attribute.String("request.url", req.URL.String()))
		requestToFirstTokenTime = time.Now()
		span.AddEvent("request started")
		resp, err := s.client.client.Do(req)
		if err != nil {
			err = transportError(err)
			span.RecordError(err)
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
		if resp.StatusCode != http.StatusOK {
			errorBody, readErr := io.ReadAll(resp.Body)
			if readErr != nil {
				span.RecordError(readErr)
			} else {
				span.SetAttributes(attribute.String("response.error", string(errorBody)))
			}

			err := statusError(resp.StatusCode, errorBody)
			span.RecordError(err)
			yield(nil, err)
			return
		}

		toolCalls := 0
		defer func() {
			span.SetAttributes(attribute.Int("response.tool_calls", toolCalls))
		}()
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			chunk := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), chunkPrefix))
			setRequestToFirstTokenTime(span)

			if len(chunk) == 0 {
				continue
			}

			var responseBody generateResponse
			if err := json.Unmarshal([]byte(chunk), &responseBody); err != nil {
				err = fmt.Errorf("error unmarshalling JSON: %w", err)
				span.RecordError(err)
				if !yield(nil, err) {
					return
				}
				continue
			}
			if len(responseBody.Candidates) == 0 {
				continue
			}

			candidate := responseBody.Candidates[0]
			var finishReason *string
			if candidate.FinishReason != "" {
				finishReason = &candidate.FinishReason
			}

			for _, p := range candidate.Content.Parts {
				if p.FunctionCall != nil {
					toolCalls++
					if !yield(StreamToolCallChunk{
						finishReason: finishReason,
						toolCall:     p.FunctionCall.toToolCall(),
					}, nil) {
						return
					}
				}
				if p.Text != "" {
					if !yield(StreamContentChunk{
						finishReason: finishReason,
						content:      p.Text,
					}, nil) {
						return
					}
				}
			}

			if responseBody.UsageMetadata != nil {
				span.SetAttributes(
					attribute.Int("usage.prompt", responseBody.UsageMetadata.PromptTokenCount),
					attribute.Int("usage.completion", responseBody.UsageMetadata.CandidatesTokenCount),
					attribute.Int("usage.total", responseBody.UsageMetadata.TotalTokenCount),
				)
			}
		}

		if err := scanner.Err(); err != nil {
			yield(nil, fmt.Errorf("error reading streamed response: %w", err))
			return
		}
	}
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason,omitempty"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

type StreamContentChunk struct {
	finishReason *string
	content      string
}

func (s StreamContentChunk) FinishReason() *string {
	return s.finishReason
}

func (s StreamContentChunk) Content() string {
	return s.content
}

type StreamToolCallChunk struct {
	finishReason *string
	toolCall     llms.ToolCall
}

func (s StreamToolCallChunk) FinishReason() *string {
	return s.finishReason
}

func (s StreamToolCallChunk) ToolCall() llms.ToolCall {
	return s.toolCall
}
