package speechtotext

import "github.com/zhafranr/nova-core/core/audio"

type TranscriptionOptions struct {
	// Language hints the expected language ("id", "en"). Empty lets the
	// provider detect it.
	Language string
	// Prompt biases the transcription toward expected vocabulary.
	Prompt string

	EncodingInfo audio.EncodingInfo
}

type TranscriptionOption func(*TranscriptionOptions)

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}

func WithPrompt(prompt string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Prompt = prompt
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.EncodingInfo = encodingInfo
	}
}
