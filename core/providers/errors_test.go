package providers

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestErrorMessages(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "rate limit with hint",
			err:  NewRateLimitError("groq", 5*time.Second, nil),
			want: "[groq] rate limit exceeded (retry after 5s)",
		},
		{
			name: "rate limit without hint",
			err:  NewRateLimitError("groq", 0, nil),
			want: "[groq] rate limit exceeded",
		},
		{
			name: "timeout",
			err:  NewTimeoutError("gemini", nil),
			want: "[gemini] request timed out",
		},
		{
			name: "generic with cause",
			err:  NewError("edge", errors.New("connection refused")),
			want: "[edge] request failed: connection refused",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := errors.New("boom")
	err := NewTimeoutError("gemini", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to be reachable via errors.Is")
	}
}

func TestAggregateErrorListsProviders(t *testing.T) {
	agg := &AggregateError{
		Capability: CapabilitySynthesize,
		Failures: []*Error{
			NewTimeoutError("edge", nil),
			NewError("cloudflare", errors.New("500")),
		},
	}
	msg := agg.Error()
	if !strings.Contains(msg, "synthesize") {
		t.Fatalf("expected capability in message, got %q", msg)
	}
	if !strings.Contains(msg, "edge, cloudflare") {
		t.Fatalf("expected provider names in order, got %q", msg)
	}
}

func TestAggregateErrorUnwrapsFailures(t *testing.T) {
	cause := errors.New("underlying")
	agg := &AggregateError{
		Capability: CapabilityGenerate,
		Failures:   []*Error{NewError("gemini", cause)},
	}
	if !errors.Is(agg, cause) {
		t.Fatalf("expected errors.Is to reach the underlying cause")
	}
	var provErr *Error
	if !errors.As(agg, &provErr) {
		t.Fatalf("expected errors.As to extract a provider failure")
	}
	if provErr.Provider != "gemini" {
		t.Fatalf("expected gemini failure, got %q", provErr.Provider)
	}
}
