package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zhafranr/nova-core/core/providers"
	"github.com/zhafranr/nova-core/core/texttospeech"
)

func TestSynthesizeRequestsConfiguredVoice(t *testing.T) {
	clip := bytes.Repeat([]byte{0xCD}, 64)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("model"); got != "aura-luna-en" {
			t.Errorf("unexpected model: %s", got)
		}
		if got := r.URL.Query().Get("encoding"); got != "mp3" {
			t.Errorf("unexpected encoding: %s", got)
		}
		if auth := r.Header.Get("Authorization"); auth != "Token key-123" {
			t.Errorf("unexpected authorization header: %s", auth)
		}

		var body speakRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		if body.Text != "Good morning" {
			t.Errorf("unexpected text: %s", body.Text)
		}

		_, _ = w.Write(clip)
	}))
	defer server.Close()

	client := New("key-123", WithURL(server.URL))

	got, err := client.Synthesize(context.Background(), "Good morning",
		texttospeech.WithVoice("aura-luna-en"))
	if err != nil {
		t.Fatalf("failed to synthesize: %v", err)
	}
	if !bytes.Equal(got, clip) {
		t.Errorf("unexpected clip (%d bytes)", len(got))
	}
}

func TestSynthesizeClassifiesRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New("key", WithURL(server.URL))

	_, err := client.Synthesize(context.Background(), "hello")

	var providerErr *providers.Error
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected providers.Error, got %v", err)
	}
	if providerErr.Kind != providers.FailureRateLimited {
		t.Errorf("expected rate limited failure, got %q", providerErr.Kind)
	}
}

func TestSynthesizeWithoutKeyFails(t *testing.T) {
	client := New("")

	if client.IsAvailable(context.Background()) {
		t.Error("expected client without key to be unavailable")
	}
	if _, err := client.Synthesize(context.Background(), "hello"); err == nil {
		t.Fatal("expected error without api key")
	}
}
