// Package cloudflare implements the fallback speech synthesizer on top of
// Cloudflare Workers AI text-to-speech models.
package cloudflare

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

	"github.com/zhafranr/nova-core/core/providers"
	"github.com/zhafranr/nova-core/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	providerName = "cloudflare_tts"

	baseURL      = "https://api.cloudflare.com/client/v4"
	defaultModel = "@cf/myshell-ai/melotts"

	// Responses shorter than this cannot be a real clip; the API
	// occasionally returns a near-empty body on success status.
	minAudioBytes = 100
)

var languages = map[string]string{
	"id": "id",
	"en": "en",
}

const fallbackLanguage = "en"

type Client struct {
	accountID string
	apiToken  string
	model     string
	baseURL   string

	client *http.Client
}

type Option func(*Client)

// WithModel overrides the default synthesis model.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithBaseURL points the client at a different API root.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func New(accountID, apiToken string, opts ...Option) *Client {
	c := &Client{
		accountID: accountID,
		apiToken:  apiToken,
		model:     defaultModel,
		baseURL:   baseURL,
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
				}),
			),
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return providerName }

// IsAvailable verifies the API token against the token introspection
// endpoint.
func (c *Client) IsAvailable(ctx context.Context) bool {
	if c.accountID == "" || c.apiToken == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/user/tokens/verify", nil)
	if err != nil {
		return false
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.client.Do(req)
	if err != nil {
		logger.WarnContext(ctx, "availability check failed", "provider", providerName, "error", err)
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

type synthesisRequestBody struct {
	Text     string `json:"text"`
	Language string `json:"lang"`
}

// Synthesize renders the text to one audio clip. Unsupported languages fall
// back to English.
func (c *Client) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesizeOption) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()

	options := texttospeech.SynthesizeOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	language := languageFor(options.Language)
	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.String("request.language", language),
		attribute.Int("request.text_length", len(text)),
	)

	body, err := json.Marshal(synthesisRequestBody{Text: text, Language: language})
	if err != nil {
		return nil, providers.NewError(providerName, fmt.Errorf("failed to marshal request body: %w", err))
	}

	url := fmt.Sprintf("%s/accounts/%s/ai/run/%s", c.baseURL, c.accountID, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewError(providerName, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		err = transportError(err)
		span.RecordError(err)
		return nil, err
	}
	defer resp.Body.Close()

	clip, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providers.NewError(providerName, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		err := statusError(resp, clip)
		span.RecordError(err)
		return nil, err
	}

	if len(clip) < minAudioBytes {
		err := providers.NewError(providerName, fmt.Errorf("cloudflare returned empty audio (%d bytes)", len(clip)))
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("response.audio_bytes", len(clip)))
	return clip, nil
}

func languageFor(language string) string {
	if lang, ok := languages[language]; ok {
		return lang
	}
	return fallbackLanguage
}

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
