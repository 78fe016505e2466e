package llms

import (
	"context"
	"strings"
	"testing"
)

func TestNewToolExecutesWithParsedArguments(t *testing.T) {
	tool := NewTool("echo", "Echo the given text",
		func(_ context.Context, params struct {
			Text string `json:"text"`
		}) (string, error) {
			return params.Text, nil
		})

	got, err := tool.Execute(context.Background(), `{"text":"hello"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello" {
		t.Fatalf("expected %q, got %q", "hello", got)
	}
}

func TestNewToolAcceptsEmptyArguments(t *testing.T) {
	tool := NewTool("ping", "Always pongs",
		func(context.Context, struct{}) (string, error) {
			return "pong", nil
		})

	got, err := tool.Execute(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "pong" {
		t.Fatalf("expected %q, got %q", "pong", got)
	}
}

func TestNewToolRejectsMalformedArguments(t *testing.T) {
	tool := NewTool("echo", "Echo the given text",
		func(_ context.Context, params struct {
			Text string `json:"text"`
		}) (string, error) {
			return params.Text, nil
		})

	_, err := tool.Execute(context.Background(), `{"text":`)
	if err == nil {
		t.Fatalf("expected error for malformed arguments")
	}
	if !strings.Contains(err.Error(), "echo") {
		t.Fatalf("expected tool name in error, got %v", err)
	}
}

func TestNewToolReflectsParameterSchema(t *testing.T) {
	tool := NewTool("remember", "Store a fact",
		func(_ context.Context, params struct {
			Fact string `json:"fact" jsonschema:"description=The fact to store"`
		}) (string, error) {
			return "", nil
		})

	if tool.Parameters == nil {
		t.Fatalf("expected reflected parameter schema")
	}
	if tool.Parameters.Properties == nil {
		t.Fatalf("expected schema properties")
	}
	if _, ok := tool.Parameters.Properties.Get("fact"); !ok {
		t.Fatalf("expected schema to describe the fact parameter")
	}
}

func TestToolWithoutImplementation(t *testing.T) {
	var tool Tool
	if _, err := tool.Execute(context.Background(), "{}"); err == nil {
		t.Fatalf("expected error for tool without implementation")
	}
}
