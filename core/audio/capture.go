package audio

import (
	"context"
	"math"
	"time"
)

// ChunkSource reads one chunk of 16-bit mono PCM samples from an input
// device. Implementations block until a chunk is ready or the context is
// cancelled.
type ChunkSource interface {
	ReadChunk(ctx context.Context) ([]int16, error)
}

// CaptureConfig tunes the energy-gated utterance recorder. Zero values
// fall back to defaults suited for close-range speech at 16kHz.
type CaptureConfig struct {
	SampleRate int

	// SilenceThreshold is the RMS energy (on samples normalized to
	// [-1, 1]) below which a chunk counts as silence.
	SilenceThreshold float64
	// SilenceDuration is how long the speaker must stay quiet before the
	// utterance is considered finished.
	SilenceDuration time.Duration
	// MaxDuration caps a single utterance.
	MaxDuration time.Duration
	// MinDuration pads short clips with trailing silence; transcription
	// models hallucinate on very short inputs.
	MinDuration time.Duration
}

func (c CaptureConfig) withDefaults() CaptureConfig {
	if c.SampleRate == 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.SilenceThreshold == 0 {
		c.SilenceThreshold = 0.03
	}
	if c.SilenceDuration == 0 {
		c.SilenceDuration = 1500 * time.Millisecond
	}
	if c.MaxDuration == 0 {
		c.MaxDuration = 15 * time.Second
	}
	if c.MinDuration == 0 {
		c.MinDuration = 1500 * time.Millisecond
	}
	return c
}

type captureState int

const (
	stateWaiting captureState = iota
	stateRecording
	stateDone
)

// RecordUtterance drives a chunk source through a waiting -> recording ->
// done state machine: it discards chunks until one crosses the energy
// threshold, then records until the configured stretch of silence or the
// duration cap. The clip comes back WAV-encoded; cancellation while still
// waiting yields a header-only clip.
func RecordUtterance(ctx context.Context, source ChunkSource, config CaptureConfig) ([]byte, error) {
	config = config.withDefaults()

	var recorded []int16
	state := stateWaiting
	silenceSamples := 0
	maxSamples := int(config.MaxDuration.Seconds() * float64(config.SampleRate))
	silenceSamplesThreshold := int(config.SilenceDuration.Seconds() * float64(config.SampleRate))

	for state != stateDone {
		chunk, err := source.ReadChunk(ctx)
		if err != nil {
			if ctx.Err() != nil && state == stateWaiting {
				return EncodeWAV(nil, config.SampleRate), nil
			}
			if ctx.Err() != nil {
				break
			}
			return nil, err
		}

		energy := ChunkRMS(chunk)

		switch state {
		case stateWaiting:
			if energy > config.SilenceThreshold {
				state = stateRecording
				recorded = append(recorded, chunk...)
			}
		case stateRecording:
			recorded = append(recorded, chunk...)

			if energy < config.SilenceThreshold {
				silenceSamples += len(chunk)
				if silenceSamples >= silenceSamplesThreshold {
					state = stateDone
				}
			} else {
				silenceSamples = 0
			}

			if len(recorded) >= maxSamples {
				state = stateDone
			}
		}
	}

	if minSamples := int(config.MinDuration.Seconds() * float64(config.SampleRate)); len(recorded) > 0 && len(recorded) < minSamples {
		recorded = append(recorded, make([]int16, minSamples-len(recorded))...)
	}

	return EncodeWAV(recorded, config.SampleRate), nil
}

// ChunkRMS computes the root mean square energy of a chunk, normalized so
// full-scale samples map to 1.0.
func ChunkRMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}

	var sum float64
	for _, sample := range samples {
		normalized := float64(sample) / 32768.0
		sum += normalized * normalized
	}
	return math.Sqrt(sum / float64(len(samples)))
}
