package orchestration

import "testing"

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"apa kabar dengan kamu hari ini", "id"},
		{"saya sudah periksa dan tidak ada masalah", "id"},
		{"halo", "id"},
		{"terima kasih", "id"},
		{"hello there, how can I help you today", "en"},
		{"the quick brown fox jumps over the lazy dog", "en"},
		{"weather report", "en"},
	}

	for _, tc := range cases {
		if got := detectLanguage(tc.text); got != tc.want {
			t.Errorf("detectLanguage(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}
