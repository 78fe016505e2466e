// Package deepgram implements the fallback transcription provider over
// the Deepgram live websocket API. A captured clip is replayed down the
// socket in one burst, the stream is closed, and the final transcripts
// are stitched together.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/zhafranr/nova-core/core/audio"
	"github.com/zhafranr/nova-core/core/providers"
	"github.com/zhafranr/nova-core/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
)

const (
	providerName = "deepgram"

	listenURL    = "wss://api.deepgram.com/v1/listen"
	defaultModel = "nova-3"

	// chunkSize paces clip replay so the socket write buffer never grows
	// unbounded.
	chunkSize = 8192
)

type Client struct {
	apiKey   string
	model    string
	language string
	url      string
}

type Option func(*Client)

// WithModel overrides the default transcription model.
func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

// WithLanguage sets the default transcription language.
func WithLanguage(language string) Option {
	return func(c *Client) {
		c.language = language
	}
}

// WithURL points the client at a different listen endpoint.
func WithURL(url string) Option {
	return func(c *Client) {
		c.url = url
	}
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:   apiKey,
		model:    defaultModel,
		language: "en-US",
		url:      listenURL,
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

// Transcribe replays one WAV clip over the live socket and collects the
// final transcripts until the server closes the stream.
func (c *Client) Transcribe(ctx context.Context, clip []byte, opts ...speechtotext.TranscriptionOption) (string, error) {
	ctx, span := tracer.Start(ctx, "transcribe audio")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.model", c.model),
		attribute.Int("request.audio_bytes", len(clip)),
	)

	if c.apiKey == "" {
		return "", providers.NewError(providerName, fmt.Errorf("deepgram api key not configured"))
	}

	options := speechtotext.TranscriptionOptions{EncodingInfo: audio.GetDefaultEncodingInfo()}
	for _, opt := range opts {
		opt(&options)
	}

	encoding, err := convertEncoding(options.EncodingInfo)
	if err != nil {
		return "", providers.NewError(providerName, fmt.Errorf("invalid encoding: %w", err))
	}

	conn, err := c.dial(encoding, options.Language)
	if err != nil {
		return "", providers.NewError(providerName, err)
	}
	defer conn.Close()

	if err := replayClip(conn, clip); err != nil {
		return "", providers.NewError(providerName, err)
	}

	transcript, err := collectTranscript(ctx, conn)
	if err != nil {
		span.RecordError(err)
		return "", providers.NewError(providerName, err)
	}

	span.SetAttributes(attribute.Int("response.length", len(transcript)))
	return transcript, nil
}

func (c *Client) dial(encoding *encodingInfo, language string) (*websocket.Conn, error) {
	listenUrl, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}

	if language == "" || language == "auto" {
		language = c.language
	}

	queryParams := listenUrl.Query()
	queryParams.Set("encoding", encoding.Format.Name())
	queryParams.Set("sample_rate", strconv.Itoa(encoding.SampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", c.model)
	queryParams.Set("language", language)
	queryParams.Set("smart_format", "true")
	listenUrl.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(listenUrl.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

// replayClip writes the clip's PCM payload in paced chunks and then asks
// the server to flush and close the stream.
func replayClip(conn *websocket.Conn, clip []byte) error {
	payload := audio.PCMPayload(clip)
	for offset := 0; offset < len(payload); offset += chunkSize {
		end := min(offset+chunkSize, len(payload))
		if err := conn.WriteMessage(websocket.BinaryMessage, payload[offset:end]); err != nil {
			return fmt.Errorf("failed to write to deepgram client: %w", err)
		}
	}

	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

// collectTranscript reads messages until the server closes the socket,
// accumulating every final transcript segment.
func collectTranscript(ctx context.Context, conn *websocket.Conn) (string, error) {
	var closeOnce sync.Once
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-ctx.Done():
			closeOnce.Do(func() { conn.Close() })
		case <-watchdogDone:
		}
	}()

	var segments []string
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			return "", fmt.Errorf("failed to read deepgram websocket message: %w", err)
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		var parsedMsg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg, &parsedMsg); err != nil {
			logger.Warn("failed to unmarshal deepgram message", "error", err)
			continue
		}

		if api.TypeResponse(parsedMsg.Type) != api.TypeMessageResponse {
			continue
		}

		var msgResp api.MessageResponse
		if err := json.Unmarshal(msg, &msgResp); err != nil {
			logger.Warn("failed to unmarshal deepgram transcript", "error", err)
			continue
		}
		if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
			continue
		}
		if transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript); transcript != "" {
			segments = append(segments, transcript)
		}
	}

	return strings.Join(segments, " "), nil
}
