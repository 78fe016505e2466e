package orchestration

import (
	"context"
	"sync"
	"time"

	"github.com/zhafranr/nova-core/core/audio"
	"github.com/zhafranr/nova-core/core/providers"
	"github.com/zhafranr/nova-core/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
)

// speechQueueCapacity bounds how far synthesis may run ahead of playback:
// at most one finished sentence waiting behind the one being played.
const speechQueueCapacity = 2

// speechQueue overlaps synthesis of sentence N+1 with playback of sentence
// N. A producer walks a sentence source and synthesizes each sentence
// through the synthesis router; a consumer plays finished payloads in FIFO
// order. A per-sentence synthesis failure is logged and skipped without
// aborting the response, and a playback failure is logged without being
// propagated.
type speechQueue struct {
	router *providers.Router[texttospeech.Synthesizer]
	player audio.Player
	opts   []texttospeech.SynthesizeOption
}

func newSpeechQueue(router *providers.Router[texttospeech.Synthesizer], player audio.Player, opts ...texttospeech.SynthesizeOption) *speechQueue {
	return &speechQueue{router: router, player: player, opts: opts}
}

func (q *speechQueue) synthesize(ctx context.Context, sentence string) ([]byte, error) {
	opts := make([]texttospeech.SynthesizeOption, 0, len(q.opts)+1)
	opts = append(opts, texttospeech.WithLanguage(detectLanguage(sentence)))
	opts = append(opts, q.opts...)
	return providers.Execute(ctx, q.router, "synthesize",
		func(ctx context.Context, synthesizer texttospeech.Synthesizer) ([]byte, error) {
			return synthesizer.Synthesize(ctx, sentence, opts...)
		})
}

// speak splits a known-complete text into sentences and plays them with
// synthesis overlapped against playback. Single-sentence responses bypass
// the queue since there is nothing to overlap.
func (q *speechQueue) speak(ctx context.Context, text string) error {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	if len(sentences) == 1 {
		payload, err := q.synthesize(ctx, sentences[0])
		if err != nil {
			return err
		}
		if err := q.player.Play(ctx, payload); err != nil {
			logger.WarnContext(ctx, "playback failed", "error", err)
		}
		return nil
	}

	logger.InfoContext(ctx, "overlapping speech synthesis",
		"sentences", len(sentences), "length", len(text))
	return q.stream(ctx, func(yield func(string, error) bool) {
		for _, sentence := range sentences {
			if !yield(sentence, nil) {
				return
			}
		}
	})
}

// stream drives the producer/consumer pair over a lazy sentence source,
// typically a responseStream still being generated. The returned error is
// the sentence source's error, if it produced one; synthesis and playback
// failures never surface here.
func (q *speechQueue) stream(ctx context.Context, sentences func(func(string, error) bool)) error {
	ctx, span := tracer.Start(ctx, "stream speech")
	defer span.End()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	queue := make(chan []byte, speechQueueCapacity)
	start := time.Now()

	var sourceErr error
	produced := 0

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer func() {
			select {
			case queue <- nil:
			case <-ctx.Done():
			}
		}()

		first := true
		for sentence, err := range sentences {
			if err != nil {
				sourceErr = err
				cancel()
				return
			}
			if ctx.Err() != nil {
				return
			}

			payload, err := q.synthesize(ctx, sentence)
			if err != nil {
				logger.WarnContext(ctx, "failed to synthesize sentence, skipping",
					"sentence", sentence, "error", err)
				continue
			}
			if first {
				span.SetAttributes(attribute.Float64("speech.first_audio_seconds", time.Since(start).Seconds()))
				first = false
			}

			select {
			case queue <- payload:
				produced++
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case payload := <-queue:
				if payload == nil {
					return
				}
				if err := q.player.Play(ctx, payload); err != nil {
					logger.WarnContext(ctx, "playback failed", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	span.SetAttributes(attribute.Int("speech.sentences", produced))
	return sourceErr
}
