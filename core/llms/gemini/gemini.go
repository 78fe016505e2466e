// Package gemini implements the primary generation provider on the
// Google Generative Language REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zhafranr/nova-core/core/llms"
	"github.com/zhafranr/nova-core/core/providers"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	providerName = "gemini"

	baseURL      = "https://generativelanguage.googleapis.com/v1beta/models"
	defaultModel = "gemini-2.5-flash"

	chunkPrefix = "data:"
)

// generation knobs tuned for spoken responses: short and steady.
const (
	temperature     = 0.3
	maxOutputTokens = 512
)

type Client struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

type Option func(*Client)

// WithModel overrides the default generation model.
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

// WithBaseURL points the client at a different API root.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: baseURL,
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

// IsAvailable validates the credentials by fetching the model metadata.
func (c *Client) IsAvailable(ctx context.Context) bool {
	if c.apiKey == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+c.model, nil)
	if err != nil {
		return false
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Generate makes one blocking generateContent call.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...llms.PromptOption) (*llms.Response, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()
	span.SetAttributes(attribute.String("request.model", c.model))

	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	body, err := c.post(ctx, c.endpoint("generateContent"), toRequest(options, prompt))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var generated generateResponse
	if err := json.Unmarshal(body, &generated); err != nil {
		err = fmt.Errorf("error unmarshalling response: %w", err)
		span.RecordError(err)
		return nil, providers.NewError(providerName, err)
	}
	if len(generated.Candidates) == 0 {
		err := errors.New("response carried no candidates")
		span.RecordError(err)
		return nil, providers.NewError(providerName, err)
	}

	response := &llms.Response{}
	var content strings.Builder
	for _, part := range generated.Candidates[0].Content.Parts {
		if part.Text != "" {
			content.WriteString(part.Text)
		}
		if part.FunctionCall != nil {
			response.ToolCalls = append(response.ToolCalls, part.FunctionCall.toToolCall())
		}
	}
	response.Content = content.String()
	span.SetAttributes(attribute.Int("response.length", len(response.Content)))
	return response, nil
}

// GenerateStream prepares a streaming generateContent call. The request
// is made lazily when the stream's chunks are first iterated.
func (c *Client) GenerateStream(_ context.Context, prompt string, opts ...llms.PromptOption) (llms.Stream, error) {
	options := llms.PromptOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	return &Stream{
		client:  c,
		request: toRequest(options, prompt),
	}, nil
}

func (c *Client) endpoint(method string) string {
	return c.baseURL + "/" + c.model + ":" + method
}

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
	req.Header.Set("x-goog-api-key", c.apiKey)

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
		return nil, statusError(resp.StatusCode, body)
	}
	return body, nil
}

func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return providers.NewTimeoutError(providerName, err)
	}
	return providers.NewError(providerName, fmt.Errorf("error sending request: %w", err))
}

// statusError classifies API failures the way the router distinguishes
// them. Rate-limit bodies often carry a retry hint in the error message.
func statusError(statusCode int, body []byte) error {
	err := fmt.Errorf("non-OK HTTP status: %d: %s", statusCode, body)
	message := strings.ToLower(string(body))
	switch {
	case statusCode == http.StatusTooManyRequests ||
		strings.Contains(message, "resource exhausted") ||
		strings.Contains(message, "rate limit"):
		return providers.NewRateLimitError(providerName, parseRetryAfter(string(body)), err)
	case strings.Contains(message, "timeout") || strings.Contains(message, "deadline"):
		return providers.NewTimeoutError(providerName, err)
	default:
		return providers.NewError(providerName, err)
	}
}

var retryAfterPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*s`)

// parseRetryAfter extracts a "retry in Ns" hint from an error message.
// Zero means no usable hint was found.
func parseRetryAfter(message string) time.Duration {
	match := retryAfterPattern.FindStringSubmatch(message)
	if match == nil {
		return 0
	}
	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
