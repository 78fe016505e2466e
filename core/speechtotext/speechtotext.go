// Package speechtotext defines the transcription provider surface.
package speechtotext

import "context"

// Transcriber is a speech recognition backend. Implementations map their
// own error taxonomy onto providers.Error values so the routing layer can
// make failover decisions.
type Transcriber interface {
	Name() string
	IsAvailable(ctx context.Context) bool

	// Transcribe converts a complete audio clip into text.
	Transcribe(ctx context.Context, audio []byte, opts ...TranscriptionOption) (string, error)
}
