package orchestration

import "strings"

// indonesianWords are high-frequency Indonesian function words used to
// classify response text between Indonesian and English voices.
var indonesianWords = map[string]struct{}{
	"apa": {}, "siapa": {}, "bagaimana": {}, "mengapa": {}, "kenapa": {},
	"dimana": {}, "kapan": {},
	"saya": {}, "kamu": {}, "anda": {}, "dia": {}, "kami": {},
	"mereka": {}, "ini": {}, "itu": {},
	"dan": {}, "atau": {}, "yang": {}, "dengan": {}, "untuk": {},
	"dari": {}, "ke": {}, "di": {},
	"adalah": {}, "bisa": {}, "tidak": {}, "sudah": {}, "akan": {},
	"sedang": {}, "telah": {},
	"halo": {}, "terima": {}, "kasih": {}, "tolong": {}, "mohon": {},
	"selamat": {},
}

// detectLanguage classifies text as Indonesian ("id") or English ("en")
// by counting distinct Indonesian function words. Two or more hits is a
// confident Indonesian signal; a single hit in a short utterance is still
// more likely Indonesian than English.
func detectLanguage(text string) string {
	fields := strings.Fields(strings.ToLower(text))
	seen := map[string]struct{}{}
	hits := 0
	for _, field := range fields {
		if _, dup := seen[field]; dup {
			continue
		}
		seen[field] = struct{}{}
		if _, ok := indonesianWords[field]; ok {
			hits++
		}
	}
	if hits >= 2 {
		return "id"
	}
	if hits >= 1 && len(seen) <= 5 {
		return "id"
	}
	return "en"
}
