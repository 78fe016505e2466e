// Package edge implements the default speech synthesizer over the
// Microsoft Edge read-aloud websocket service. The service needs no API
// key, which makes it the natural primary: the paid providers only see
// traffic when this one misbehaves.
package edge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/zhafranr/nova-core/core/providers"
	"github.com/zhafranr/nova-core/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
)

const (
	providerName = "edge_tts"

	synthesizeURL      = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"
	trustedClientToken = "6A5AA1D4EAE998E9BC90ADB5E14190A1FCE15C37"

	// The service only talks to clients that look like the Edge browser's
	// read-aloud extension.
	originHeader    = "chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold"
	userAgentHeader = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36 Edg/130.0.0.0"

	outputFormat = "audio-24khz-48kbitrate-mono-mp3"
)

var voices = map[string]string{
	"id": "id-ID-ArdiNeural",
	"en": "en-US-GuyNeural",
}

const fallbackVoice = "en-US-GuyNeural"

type Client struct {
	url    string
	dialer *websocket.Dialer
}

type Option func(*Client)

// WithURL points the client at a different synthesis endpoint.
func WithURL(url string) Option {
	return func(c *Client) {
		c.url = url
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		url:    synthesizeURL,
		dialer: websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string { return providerName }

// IsAvailable always reports true, the service has no credentials to be
// missing. Connection failures surface from Synthesize instead.
func (c *Client) IsAvailable(context.Context) bool { return true }

// Synthesize renders the text to a single MP3 clip. The voice follows the
// requested language unless an explicit voice override is given.
func (c *Client) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesizeOption) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "synthesize speech")
	defer span.End()

	options := texttospeech.SynthesizeOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	voice := options.Voice
	if voice == "" {
		voice = voiceFor(options.Language)
	}
	span.SetAttributes(
		attribute.String("request.voice", voice),
		attribute.Int("request.text_length", len(text)),
	)

	clip, err := c.speak(ctx, voice, text)
	if err != nil {
		span.RecordError(err)
		return nil, classifyError(err)
	}

	span.SetAttributes(attribute.Int("response.audio_bytes", len(clip)))
	return clip, nil
}

// Warmup runs a throwaway synthesis so DNS and TLS caches are hot before
// the first real sentence needs them.
func (c *Client) Warmup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.speak(ctx, fallbackVoice, "ok"); err != nil {
		return classifyError(err)
	}
	return nil
}

func (c *Client) speak(ctx context.Context, voice, text string) ([]byte, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to edge tts: %w", err)
	}
	defer conn.Close()

	if err := sendRequest(conn, voice, text); err != nil {
		return nil, err
	}

	return collectAudio(ctx, conn)
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	synthesizeUrl, err := url.Parse(c.url)
	if err != nil {
		return nil, fmt.Errorf("invalid synthesize url: %w", err)
	}

	queryParams := synthesizeUrl.Query()
	queryParams.Set("TrustedClientToken", trustedClientToken)
	queryParams.Set("ConnectionId", connectionID())
	synthesizeUrl.RawQuery = queryParams.Encode()

	conn, _, err := c.dialer.DialContext(ctx, synthesizeUrl.String(), http.Header{
		"Origin":     {originHeader},
		"User-Agent": {userAgentHeader},
	})
	return conn, err
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return providers.NewTimeoutError(providerName, err)
	}
	return providers.NewError(providerName, err)
}

func voiceFor(language string) string {
	if voice, ok := voices[language]; ok {
		return voice
	}
	return fallbackVoice
}

func connectionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
)

func sendRequest(conn *websocket.Conn, voice, text string) error {
	timestamp := time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")

	config := fmt.Sprintf(
		"X-Timestamp:%s\r\nContent-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n"+
			`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},"outputFormat":"%s"}}}}`,
		timestamp, outputFormat)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(config)); err != nil {
		return fmt.Errorf("failed to send speech config: %w", err)
	}

	ssml := fmt.Sprintf(
		"<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>"+
			"<voice name='%s'><prosody pitch='+0Hz' rate='+0%%' volume='+0%%'>%s</prosody></voice></speak>",
		voice, xmlEscaper.Replace(text))
	request := fmt.Sprintf(
		"X-RequestId:%s\r\nContent-Type:application/ssml+xml\r\nX-Timestamp:%s\r\nPath:ssml\r\n\r\n%s",
		connectionID(), timestamp, ssml)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(request)); err != nil {
		return fmt.Errorf("failed to send synthesis request: %w", err)
	}

	return nil
}

// collectAudio reads frames until the service signals the end of the turn,
// concatenating the audio payloads.
func collectAudio(ctx context.Context, conn *websocket.Conn) ([]byte, error) {
	watchdogDone := make(chan struct{})
	defer close(watchdogDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchdogDone:
		}
	}()

	var clip []byte
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to read edge tts websocket message: %w", err)
		}

		switch msgType {
		case websocket.BinaryMessage:
			if payload, ok := audioPayload(msg); ok {
				clip = append(clip, payload...)
			}
		case websocket.TextMessage:
			if turnEnded(msg) {
				if len(clip) == 0 {
					return nil, fmt.Errorf("edge tts returned empty audio")
				}
				return clip, nil
			}
		}
	}
}

// audioPayload strips the length-prefixed header block from a binary frame
// and reports whether the frame carries audio data.
func audioPayload(msg []byte) ([]byte, bool) {
	if len(msg) < 2 {
		return nil, false
	}
	headerLength := int(msg[0])<<8 | int(msg[1])
	if len(msg) < 2+headerLength {
		return nil, false
	}
	if !bytes.Contains(msg[2:2+headerLength], []byte("Path:audio")) {
		return nil, false
	}
	return msg[2+headerLength:], true
}

func turnEnded(msg []byte) bool {
	return bytes.Contains(msg, []byte("Path:turn.end"))
}
