// Package portaudio is the alternative capture backend for platforms where
// miniaudio misbehaves. It only records; playback goes through whichever
// player the caller pairs it with.
package portaudio

import (
	"context"
	"fmt"

	"github.com/gordonklaus/portaudio"
	"github.com/zhafranr/nova-core/core/audio"
)

const chunkFrames = 1600

type Client struct {
	stream *portaudio.Stream
	in     []int16

	captureConfig audio.CaptureConfig
}

type Option func(*Client)

// WithCaptureConfig tunes the utterance recorder's energy gate.
func WithCaptureConfig(config audio.CaptureConfig) Option {
	return func(c *Client) {
		c.captureConfig = config
	}
}

func NewClient(opts ...Option) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	client := &Client{
		in:            make([]int16, chunkFrames),
		captureConfig: audio.CaptureConfig{SampleRate: audio.DefaultSampleRate},
	}
	for _, opt := range opts {
		opt(client)
	}

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(audio.DefaultSampleRate), chunkFrames, client.in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open portaudio stream: %w", err)
	}
	client.stream = stream

	return client, nil
}

// Record captures one utterance from the microphone and returns it as a
// WAV clip.
func (c *Client) Record(ctx context.Context) ([]byte, error) {
	if err := c.stream.Start(); err != nil {
		return nil, fmt.Errorf("failed to start portaudio stream: %w", err)
	}
	defer func() { _ = c.stream.Stop() }()

	return audio.RecordUtterance(ctx, c, c.captureConfig)
}

// ReadChunk blocks on the stream until the next chunk of samples arrives.
func (c *Client) ReadChunk(ctx context.Context) ([]int16, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := c.stream.Read(); err != nil {
		return nil, fmt.Errorf("failed to read from portaudio stream: %w", err)
	}

	chunk := make([]int16, len(c.in))
	copy(chunk, c.in)
	return chunk, nil
}

func (c *Client) Close() {
	_ = c.stream.Close()
	_ = portaudio.Terminate()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: audio.DefaultSampleRate,
		Format:     audio.EncodingLinear16,
	}
}
