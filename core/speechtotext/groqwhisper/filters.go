package groqwhisper

import (
	"encoding/binary"
	"math"
	"strings"
)

// minRMSThreshold is the minimum RMS energy for a clip to be worth
// sending to the API at all.
const minRMSThreshold = 200

// noSpeechProbThreshold rejects transcripts whose segments Whisper itself
// considers mostly non-speech.
const noSpeechProbThreshold = 0.7

// hallucinationPhrases are transcripts Whisper is known to invent on
// silence or noise. Matched exactly, or against the first three words.
var hallucinationPhrases = []string{
	"terima kasih",
	"thank you",
	"thanks for watching",
	"subscribe",
	"like and subscribe",
	"see you next time",
	"sampai jumpa",
	"selamat tinggal",
	"bye bye",
	"subtitles by",
	"translated by",
	"amara.org",
	"salam",
	"assalamualaikum",
}

// clipRMS computes the RMS energy of a 16-bit PCM WAV clip. Parse
// failures fail open with +Inf so an odd header never blocks a real
// request.
func clipRMS(clip []byte) float64 {
	samples, ok := pcmSamples(clip)
	if !ok {
		return math.Inf(1)
	}
	if len(samples) == 0 {
		return 0
	}

	var sumSquares float64
	for _, sample := range samples {
		sumSquares += float64(sample) * float64(sample)
	}
	return math.Sqrt(sumSquares / float64(len(samples)))
}

// pcmSamples walks the RIFF chunks of a WAV clip and decodes the data
// chunk as signed 16-bit little-endian samples.
func pcmSamples(clip []byte) ([]int16, bool) {
	if len(clip) < 12 || string(clip[0:4]) != "RIFF" || string(clip[8:12]) != "WAVE" {
		return nil, false
	}

	offset := 12
	for offset+8 <= len(clip) {
		chunkID := string(clip[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(clip[offset+4 : offset+8]))
		offset += 8

		if chunkID == "data" {
			end := offset + chunkSize
			if end > len(clip) {
				end = len(clip)
			}
			data := clip[offset:end]
			samples := make([]int16, len(data)/2)
			for i := range samples {
				samples[i] = int16(binary.LittleEndian.Uint16(data[2*i : 2*i+2]))
			}
			return samples, true
		}
		offset += chunkSize
	}
	return nil, false
}

// isHallucination reports whether a transcript matches a known phantom
// phrase, either in full or by its first three words.
func isHallucination(text string) bool {
	normalised := strings.ToLower(strings.TrimSpace(text))
	if normalised == "" {
		return false
	}

	words := strings.Fields(normalised)
	prefix := strings.Join(words[:min(len(words), 3)], " ")
	for _, phrase := range hallucinationPhrases {
		if normalised == phrase || prefix == phrase {
			return true
		}
	}
	return false
}
