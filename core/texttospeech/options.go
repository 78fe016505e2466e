package texttospeech

import "github.com/zhafranr/nova-core/core/audio"

type SynthesizeOptions struct {
	// Language selects the voice language ("id", "en", or "auto" to let the
	// synthesizer detect it from the text).
	Language string
	// Voice overrides the provider's default voice for the language.
	Voice string

	EncodingInfo audio.EncodingInfo
}

type SynthesizeOption func(*SynthesizeOptions)

func WithLanguage(language string) SynthesizeOption {
	return func(o *SynthesizeOptions) {
		o.Language = language
	}
}

func WithVoice(voice string) SynthesizeOption {
	return func(o *SynthesizeOptions) {
		o.Voice = voice
	}
}

func WithEncodingInfo(encodingInfo audio.EncodingInfo) SynthesizeOption {
	return func(o *SynthesizeOptions) {
		if encodingInfo.IsZero() {
			return
		}

		o.EncodingInfo = encodingInfo
	}
}
