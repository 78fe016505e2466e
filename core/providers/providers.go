// Package providers implements capability routing over redundant backend
// providers: ordered failover, per-provider exponential backoff, and an
// aggregate error once a whole capability is exhausted.
package providers

import "context"

// Capability identifies one class of interchangeable providers. Each
// capability gets its own provider list and its own Router.
type Capability string

const (
	CapabilityTranscribe Capability = "transcribe"
	CapabilityGenerate   Capability = "generate"
	CapabilitySynthesize Capability = "synthesize"
)

// Provider is the common surface every backend exposes regardless of
// capability. Capability-specific methods live on the typed interfaces
// (llms.Generator, speechtotext.Transcriber, texttospeech.Synthesizer).
type Provider interface {
	// Name uniquely identifies the provider within its capability.
	Name() string

	// IsAvailable reports whether the provider is configured and reachable.
	IsAvailable(ctx context.Context) bool
}
