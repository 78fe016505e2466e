// Package audio holds shared audio primitives: encoding descriptions and
// the playback surface device backends implement.
package audio

import "context"

// Player plays a complete audio clip, blocking until playback finishes or
// the context is cancelled.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// Recorder captures one utterance from an input device and returns it as
// a complete WAV clip. A clip with no speech may be header-only.
type Recorder interface {
	Record(ctx context.Context) ([]byte, error)
}
