// Package groq implements the generation provider backed by the Groq
// chat completions API. It is the fallback generator: fast, OpenAI-wire
// compatible, and strict about rate limits.
package groq

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/zhafranr/nova-core/core/llms"
	"github.com/zhafranr/nova-core/core/providers"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	providerName = "groq"

	chatURL   = "https://api.groq.com/openai/v1/chat/completions"
	modelsURL = "https://api.groq.com/openai/v1/models"

	defaultModel = "llama-3.3-70b-versatile"

	endMessage  = "[DONE]"
	chunkPrefix = "data:"
)

type Client struct {
	apiKey string
	model  string
	client *http.Client
}

type Option func(*Client)

// WithModel overrides the default chat model.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithHTTPClient replaces the underlying HTTP client, mostly so tests can
// point the provider at a local server.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey: apiKey,
		model:  defaultModel,
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(operationName string, request *http.Request) string {
				return operationName + " " + request.URL.Path
			}),
		)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return providerName }

// IsAvailable probes the models endpoint with the configured credentials.
func (c *Client) IsAvailable(ctx context.Context) bool {
	if c.apiKey == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, modelsURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Generate makes one blocking chat completion call.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...llms.PromptOption) (*llms.Response, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", c.model))

	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	reqBody := requestBody{
		Model:    c.model,
		Messages: toMessages(options, prompt),
		Tools:    toTools(options.Tools),
	}
	if len(reqBody.Tools) > 0 {
		choice := "auto"
		if options.ForcedToolsCall {
			choice = "required"
		}
		reqBody.ToolChoice = &choice
	}

	body, err := c.post(ctx, chatURL, reqBody)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var completion completionResponseBody
	if err := json.Unmarshal(body, &completion); err != nil {
		err = fmt.Errorf("error unmarshalling completion: %w", err)
		span.RecordError(err)
		return nil, providers.NewError(providerName, err)
	}
	if len(completion.Choices) == 0 {
		err := errors.New("completion carried no choices")
		span.RecordError(err)
		return nil, providers.NewError(providerName, err)
	}

	choice := completion.Choices[0].Message
	response := &llms.Response{Content: choice.Content}
	for _, call := range choice.ToolCalls {
		response.ToolCalls = append(response.ToolCalls, llms.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	span.SetAttributes(attribute.Int("response.length", len(response.Content)))
	return response, nil
}

// GenerateStream prepares a streaming chat completion. The request is
// made lazily when the stream's chunks are first iterated.
func (c *Client) GenerateStream(_ context.Context, prompt string, opts ...llms.PromptOption) (llms.Stream, error) {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	return &Stream{
		client:   c,
		messages: toMessages(options, prompt),
		tools:    toTools(options.Tools),
	}, nil
}

// post sends one JSON request and returns the raw response body, with
// failures already classified for the provider router.
func (c *Client) post(ctx context.Context, url string, payload any) ([]byte, error) {
	requestBodyBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.NewError(providerName, fmt.Errorf("error reading response body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, body)
	}
	return body, nil
}

// transportError classifies request failures that never produced a
// response.
func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return providers.NewTimeoutError(providerName, err)
	}
	return providers.NewError(providerName, fmt.Errorf("error sending request: %w", err))
}

// statusError classifies non-OK responses into the failure kinds the
// router distinguishes.
func statusError(resp *http.Response, body []byte) error {
	err := fmt.Errorf("non-OK HTTP status: %s: %s", resp.Status, body)
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return providers.NewRateLimitError(providerName, parseRetryAfter(resp.Header.Get("Retry-After")), err)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return providers.NewTimeoutError(providerName, err)
	default:
		return providers.NewError(providerName, err)
	}
}

// parseRetryAfter reads a Retry-After header given in seconds. Zero means
// the server offered no usable hint.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
