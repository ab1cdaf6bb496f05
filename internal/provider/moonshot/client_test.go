package moonshot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aq-cli/aq/internal/message"
	"github.com/aq-cli/aq/internal/provider"
)

func TestStream_SendsThinkingAndToolCallHistory(t *testing.T) {
	var captured map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Fatalf("invalid json body: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"index\":0,\"delta\":{\"content\":\"ok\"},\"finish_reason\":\"stop\"}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", "moonshot:test")

	req := provider.CompletionRequest{
		Model:        "kimi-k2.5",
		SystemPrompt: "sys",
		Messages: []message.ChatMessage{
			message.NewUser("hi"),
			message.NewAssistant("", []message.ToolCallRequest{{ID: "tc1", Name: "WebSearch", RawArgs: "{}"}}),
			message.NewToolResult("tc1", "ok"),
			message.NewAssistant("done", nil),
		},
	}

	events, err := c.Stream(context.Background(), req)
	if err != nil {
		t.Fatalf("Stream returned error: %v", err)
	}

	var sawContent bool
	for ev := range events {
		if ev.Kind == message.EventContent {
			sawContent = true
		}
	}
	if !sawContent {
		t.Fatalf("expected at least one content event")
	}

	if captured["thinking"] == nil {
		t.Fatalf("expected thinking mode to be requested")
	}

	rawMsgs, ok := captured["messages"].([]any)
	if !ok {
		t.Fatalf("messages not found in payload")
	}
	var sawToolCall bool
	for _, raw := range rawMsgs {
		msg, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if msg["role"] == "assistant" {
			if _, ok := msg["tool_calls"]; ok {
				sawToolCall = true
			}
		}
	}
	if !sawToolCall {
		t.Fatalf("expected an assistant message with tool_calls in request history")
	}
}
