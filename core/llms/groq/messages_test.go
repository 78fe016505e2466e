package groq

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/zhafranr/nova-core/core/llms"
	"github.com/zhafranr/nova-core/core/providers"
)

func TestToMessages_ExpandsResolvedToolCalls(t *testing.T) {
	options := llms.PromptOptions{
		Instructions: "Be brief.",
		Turns: []llms.Turn{
			{Role: llms.RoleUser, Content: "jam berapa?"},
			{
				Role: llms.RoleAssistant,
				ToolCalls: []llms.ToolCall{
					{ID: "call_1", Name: "get_current_time", Arguments: "{}", Response: "10:00"},
				},
			},
		},
	}

	messages := toMessages(options, "dan tanggal?")

	if len(messages) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(messages))
	}
	if messages[0].Role != messageRoleSystem || messages[0].Content != "Be brief." {
		t.Fatalf("unexpected system message: %+v", messages[0])
	}
	if messages[1].Role != messageRoleUser || messages[1].Content != "jam berapa?" {
		t.Fatalf("unexpected user message: %+v", messages[1])
	}
	if messages[2].Role != messageRoleAssistant || len(messages[2].ToolCalls) != 1 || messages[2].ToolCalls[0].ID != "call_1" {
		t.Fatalf("unexpected assistant tool call message: %+v", messages[2])
	}
	if messages[3].Role != messageRoleTool || messages[3].Content != "10:00" || messages[3].ToolCallID != "call_1" {
		t.Fatalf("unexpected tool response message: %+v", messages[3])
	}
	if messages[4].Role != messageRoleUser || messages[4].Content != "dan tanggal?" {
		t.Fatalf("unexpected prompt message: %+v", messages[4])
	}
}

func TestToTools_CopiesDeclarations(t *testing.T) {
	wire := toTools([]llms.Tool{llms.NewTool("get_current_time", "Current local time",
		func(context.Context, struct{}) (string, error) { return "", nil })})

	if len(wire) != 1 {
		t.Fatalf("expected 1 wire tool, got %d", len(wire))
	}
	if wire[0].Type != "function" {
		t.Fatalf("expected function type, got %q", wire[0].Type)
	}
	if wire[0].Function.Name != "get_current_time" || wire[0].Function.Description != "Current local time" {
		t.Fatalf("unexpected declaration: %+v", wire[0].Function)
	}
	if wire[0].Function.Parameters == nil {
		t.Fatal("expected reflected parameters schema")
	}
}

func TestStatusErrorClassification(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Status:     "429 Too Many Requests",
		Header:     http.Header{"Retry-After": []string{"2.5"}},
	}

	err := statusError(resp, []byte(`{"error":"rate limit reached"}`))

	var provErr *providers.Error
	if !errors.As(err, &provErr) {
		t.Fatalf("expected a provider error, got %T", err)
	}
	if provErr.Kind != providers.FailureRateLimited {
		t.Fatalf("expected rate limit classification, got %q", provErr.Kind)
	}
	if provErr.RetryAfter != 2500*time.Millisecond {
		t.Fatalf("expected parsed retry-after, got %v", provErr.RetryAfter)
	}

	resp = &http.Response{StatusCode: http.StatusGatewayTimeout, Status: "504 Gateway Timeout", Header: http.Header{}}
	err = statusError(resp, nil)
	if !errors.As(err, &provErr) || provErr.Kind != providers.FailureTimedOut {
		t.Fatalf("expected timeout classification, got %v", err)
	}

	resp = &http.Response{StatusCode: http.StatusInternalServerError, Status: "500 Internal Server Error", Header: http.Header{}}
	err = statusError(resp, nil)
	if !errors.As(err, &provErr) || provErr.Kind != providers.FailureGeneric {
		t.Fatalf("expected generic classification, got %v", err)
	}
}
