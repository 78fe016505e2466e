// Package texttospeech defines the synthesis provider surface. Synthesizers
// turn one sentence of text into a playable audio payload; overlap of
// synthesis and playback is the caller's concern.
package texttospeech

import "context"

// Synthesizer is a speech synthesis backend. Implementations map their own
// error taxonomy onto providers.Error values so the routing layer can make
// failover decisions.
type Synthesizer interface {
	Name() string
	IsAvailable(ctx context.Context) bool

	// Synthesize renders the text as audio. The returned payload is a
	// complete, self-contained audio clip.
	Synthesize(ctx context.Context, text string, opts ...SynthesizeOption) ([]byte, error)
}
