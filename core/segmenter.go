package orchestration

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// minExtractLength is the shortest fragment extractSentence will emit
	// as a standalone sentence mid-stream.
	minExtractLength = 8
	// minSplitLength is the shortest fragment splitSentences keeps
	// unmerged when splitting a known-complete text.
	minSplitLength = 10
)

// abbreviations end with a period but do not terminate a sentence. Covers
// common Indonesian and English abbreviations.
var abbreviations = map[string]bool{
	"dr": true, "mr": true, "mrs": true, "ms": true, "prof": true,
	"jr": true, "sr": true, "vs": true, "etc": true, "inc": true,
	"ltd": true, "dll": true, "dsb": true, "dkk": true, "spt": true,
	"yth": true, "no": true, "vol": true, "hal": true, "tel": true,
	"fax": true,
}

func isTerminator(r byte) bool {
	return r == '.' || r == '!' || r == '?'
}

// endsOnAbbreviation reports whether the candidate's final word, with
// trailing punctuation stripped, is a known abbreviation.
func endsOnAbbreviation(candidate string) bool {
	stripped := strings.TrimRight(candidate, ".!?")
	fields := strings.Fields(stripped)
	if len(fields) == 0 {
		return false
	}
	return abbreviations[strings.ToLower(fields[len(fields)-1])]
}

// endsOnDigit reports whether the character immediately before the
// candidate's trailing period is a digit, which marks a decimal or an
// enumerated item rather than a sentence end.
func endsOnDigit(candidate string) bool {
	trimmed := strings.TrimRight(candidate, " ")
	if !strings.HasSuffix(trimmed, ".") {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(strings.TrimRight(trimmed, "."))
	return unicode.IsDigit(r)
}

// acceptCandidate applies the shared boundary guards: minimum length,
// abbreviation endings, and digit-before-period decimals.
func acceptCandidate(candidate string) bool {
	if utf8.RuneCountInString(candidate) < minExtractLength {
		return false
	}
	if !strings.HasSuffix(candidate, ".") {
		return true
	}
	return !endsOnAbbreviation(candidate) && !endsOnDigit(candidate)
}

// extractSentence pulls the first complete sentence off the front of a
// growing token buffer. It returns the sentence, the remaining buffer, and
// whether a sentence was found. When no acceptable boundary exists yet the
// whole buffer is returned unchanged so the caller keeps accumulating.
//
// A newline ends a sentence outright when enough text precedes it.
// Otherwise sentence-ending punctuation followed by whitespace marks a
// boundary, unless the fragment is too short, ends on an abbreviation, or
// ends on a digit-adjacent period (a decimal like "3.14").
func extractSentence(buffer string) (string, string, bool) {
	for i := 1; i < len(buffer); i++ {
		if buffer[i] != '\n' {
			continue
		}
		candidate := strings.TrimSpace(buffer[:i])
		if utf8.RuneCountInString(candidate) >= minExtractLength {
			return candidate, strings.TrimLeft(buffer[i+1:], " \t\n"), true
		}
	}

	for i := 0; i+1 < len(buffer); i++ {
		if !isTerminator(buffer[i]) || !unicode.IsSpace(rune(buffer[i+1])) {
			continue
		}
		candidate := strings.TrimSpace(buffer[:i+1])
		if acceptCandidate(candidate) {
			return candidate, strings.TrimLeft(buffer[i+1:], " \t\n"), true
		}
	}

	return "", buffer, false
}

// splitSentences splits a known-complete text into sentences suitable for
// independent synthesis. Fragments produced by abbreviation or decimal
// periods are merged back together, and very short fragments are merged
// with their neighbour.
func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var parts []string
	start := 0
	for i := 0; i+1 < len(text); i++ {
		if isTerminator(text[i]) && unicode.IsSpace(rune(text[i+1])) {
			parts = append(parts, text[start:i+1])
			j := i + 1
			for j < len(text) && unicode.IsSpace(rune(text[j])) {
				j++
			}
			start = j
			i = j - 1
		}
	}
	if start < len(text) {
		parts = append(parts, text[start:])
	}

	var sentences []string
	buffer := ""
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if buffer == "" {
			buffer = part
			continue
		}

		if endsOnAbbreviation(buffer) || endsOnDigit(buffer) {
			buffer += " " + part
			continue
		}

		if utf8.RuneCountInString(buffer) >= minSplitLength {
			sentences = append(sentences, buffer)
			buffer = part
		} else {
			buffer += " " + part
		}
	}

	if buffer != "" {
		if len(sentences) > 0 && utf8.RuneCountInString(buffer) < minSplitLength {
			sentences[len(sentences)-1] += " " + buffer
		} else {
			sentences = append(sentences, buffer)
		}
	}
	return sentences
}
