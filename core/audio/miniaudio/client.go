// Package miniaudio backs the audio device surface with miniaudio via
// malgo. The capture side feeds the energy-gated utterance recorder; the
// playback side plays raw 16-bit mono PCM clips.
package miniaudio

import (
	"context"
	"fmt"

	"github.com/gen2brain/malgo"
	"github.com/zhafranr/nova-core/core/audio"
)

type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient
	captureClient

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
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(string) {})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{
		audioContext:  audioCtx,
		captureConfig: audio.CaptureConfig{SampleRate: audio.DefaultSampleRate},
	}
	for _, opt := range opts {
		opt(&client)
	}

	if err := client.playbackClient.Init(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize playback client: %w", err)
	}

	if err := client.playbackClient.Start(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	if err := client.captureClient.Init(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	return &client, nil
}

// Record captures one utterance from the microphone and returns it as a
// WAV clip. It blocks until the speaker finishes or the context ends.
func (c *Client) Record(ctx context.Context) ([]byte, error) {
	if err := c.captureClient.Start(); err != nil {
		return nil, err
	}
	defer func() { _ = c.captureClient.Stop() }()

	return audio.RecordUtterance(ctx, &c.captureClient, c.captureConfig)
}

// Play queues a 16-bit mono PCM clip (bare or RIFF-wrapped) on the
// playback device and blocks until it drains.
func (c *Client) Play(ctx context.Context, clip []byte) error {
	payload := audio.PCMPayload(clip)
	if len(payload) == 0 {
		return nil
	}

	if err := c.playbackClient.SendAudio(payload); err != nil {
		return err
	}

	done := make(chan struct{})
	c.playbackClient.Mark(func() { close(done) })

	select {
	case <-ctx.Done():
		c.playbackClient.ClearBuffer()
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	_ = c.audioContext.Uninit()
	c.audioContext.Free()
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.EncodingInfo{
		SampleRate: c.captureConfig.SampleRate,
		Format:     audio.EncodingLinear16,
	}
}
