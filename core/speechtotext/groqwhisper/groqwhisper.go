// Package groqwhisper implements the primary transcription provider on
// Groq's hosted Whisper API.
package groqwhisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zhafranr/nova-core/core/providers"
	"github.com/zhafranr/nova-core/core/speechtotext"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

const (
	providerName = "groq_whisper"

	transcriptionsURL = "https://api.groq.com/openai/v1/audio/transcriptions"
	modelsURL         = "https://api.groq.com/openai/v1/models"

	defaultModel = "whisper-large-v3-turbo"

	// defaultPrompt biases Whisper toward the languages it will hear.
	defaultPrompt = "Ini adalah percakapan dalam bahasa Indonesia dan English."
)

type Client struct {
	apiKey string
	model  string
	client *http.Client
}

type Option func(*Client)

// WithModel overrides the default Whisper model.
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

// Transcribe converts one WAV clip to text. Near-silent clips are gated
// locally before the API is called, and transcripts that look like
// Whisper hallucinations come back as the empty string rather than as an
// error, since silence is a normal outcome.
func (c *Client) Transcribe(ctx context.Context, audio []byte, opts ...speechtotext.TranscriptionOption) (string, error) {
	ctx, span := tracer.Start(ctx, "transcribe audio")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.Int("request.audio_bytes", len(audio)),
	)

	options := speechtotext.TranscriptionOptions{Prompt: defaultPrompt}
	for _, opt := range opts {
		opt(&options)
	}

	if rms := clipRMS(audio); rms < minRMSThreshold {
		logger.DebugContext(ctx, "audio below energy threshold, skipping transcription",
			"rms", rms)
		span.SetAttributes(attribute.Bool("response.gated_silence", true))
		return "", nil
	}

	body, contentType, err := c.multipartBody(audio, options)
	if err != nil {
		span.RecordError(err)
		return "", providers.NewError(providerName, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, transcriptionsURL, body)
	if err != nil {
		return "", providers.NewError(providerName, fmt.Errorf("error creating HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", providers.NewTimeoutError(providerName, err)
		}
		return "", providers.NewError(providerName, fmt.Errorf("error sending request: %w", err))
	}
	defer resp.Body.Close()

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", providers.NewError(providerName, fmt.Errorf("error reading response body: %w", err))
	}

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("non-OK HTTP status: %s: %s", resp.Status, responseBytes)
		span.RecordError(err)
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", providers.NewRateLimitError(providerName, parseRetryAfter(resp.Header.Get("Retry-After")), err)
		}
		return "", providers.NewError(providerName, err)
	}

	var transcription transcriptionResponse
	if err := json.Unmarshal(responseBytes, &transcription); err != nil {
		return "", providers.NewError(providerName, fmt.Errorf("error unmarshalling response: %w", err))
	}

	text := strings.TrimSpace(transcription.Text)
	if len(transcription.Segments) > 0 {
		total := 0.0
		for _, segment := range transcription.Segments {
			total += segment.NoSpeechProb
		}
		if average := total / float64(len(transcription.Segments)); average > noSpeechProbThreshold {
			logger.DebugContext(ctx, "rejecting transcript with high no-speech probability",
				"probability", average, "transcript", text)
			span.SetAttributes(attribute.Bool("response.gated_no_speech", true))
			return "", nil
		}
	}

	if text != "" && isHallucination(text) {
		logger.InfoContext(ctx, "rejected hallucinated transcript", "transcript", text)
		span.SetAttributes(attribute.Bool("response.gated_hallucination", true))
		return "", nil
	}

	span.SetAttributes(attribute.Int("response.length", len(text)))
	return text, nil
}

// multipartBody assembles the transcription form. verbose_json is always
// requested so segment metadata can gate hallucinations.
func (c *Client) multipartBody(audio []byte, options speechtotext.TranscriptionOptions) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	form := multipart.NewWriter(body)

	fields := map[string]string{
		"model":           c.model,
		"response_format": "verbose_json",
	}
	if options.Prompt != "" {
		fields["prompt"] = options.Prompt
	}
	if options.Language != "" && options.Language != "auto" {
		fields["language"] = options.Language
	}
	for field, value := range fields {
		if err := form.WriteField(field, value); err != nil {
			return nil, "", fmt.Errorf("error writing form field %s: %w", field, err)
		}
	}

	file, err := form.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("error creating form file: %w", err)
	}
	if _, err := file.Write(audio); err != nil {
		return nil, "", fmt.Errorf("error writing audio: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, "", fmt.Errorf("error finalising form: %w", err)
	}
	return body, form.FormDataContentType(), nil
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

type transcriptionResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		NoSpeechProb float64 `json:"no_speech_prob"`
	} `json:"segments"`
}
