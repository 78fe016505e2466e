// Package deepgram implements a last-resort speech synthesizer over the
// Deepgram speak API. Its voices are English only, so it sits at the back
// of the synthesis chain behind the multilingual providers.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/zhafranr/nova-core/core/providers"
	"github.com/zhafranr/nova-core/core/texttospeech"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	providerName = "deepgram_tts"

	speakURL     = "https://api.deepgram.com/v1/speak"
	defaultVoice = "aura-asteria-en"
	encoding     = "mp3"
)

type Client struct {
	apiKey string
	voice  string
	url    string

	client *http.Client
}

type Option func(*Client)

// WithVoice overrides the default aura voice model.
func WithVoice(voice string) Option {
	return func(c *Client) {
		c.voice = voice
	}
}

// WithURL points the client at a different speak endpoint.
func WithURL(url string) Option {
	return func(c *Client) {
		c.url = url
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey: apiKey,
		voice:  defaultVoice,
		url:    speakURL,
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

func (c *Client) IsAvailable(context.Context) bool {
	return c.apiKey != ""
}

type speakRequestBody struct {
	Text string `json:"text"`
}

// Synthesize renders the text to one MP3 clip. Language options are
// ignored, every aura voice speaks English.
func (c *Client) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesizeOption) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()

	options := texttospeech.SynthesizeOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	voice := options.Voice
	if voice == "" {
		voice = c.voice
	}
	span.SetAttributes(
		attribute.String("request.voice", voice),
		attribute.Int("request.text_length", len(text)),
	)

	if c.apiKey == "" {
		return nil, providers.NewError(providerName, fmt.Errorf("deepgram api key not configured"))
	}

	speakUrl, err := url.Parse(c.url)
	if err != nil {
		return nil, providers.NewError(providerName, fmt.Errorf("invalid speak url: %w", err))
	}
	queryParams := speakUrl.Query()
	queryParams.Set("model", voice)
	queryParams.Set("encoding", encoding)
	speakUrl.RawQuery = queryParams.Encode()

	body, err := json.Marshal(speakRequestBody{Text: text})
	if err != nil {
		return nil, providers.NewError(providerName, fmt.Errorf("failed to marshal request body: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, speakUrl.String(), bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewError(providerName, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Authorization", "Token "+c.apiKey)
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

	if len(clip) == 0 {
		err := providers.NewError(providerName, fmt.Errorf("deepgram returned empty audio"))
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("response.audio_bytes", len(clip)))
	return clip, nil
}

func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return providers.NewTimeoutError(providerName, err)
	}
	return providers.NewError(providerName, fmt.Errorf("error sending request: %w", err))
}

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
