package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestFormatResponsesInput(t *testing.T) {
	items := formatResponsesInput([]Message{
		{Role: "system", Content: "rules"},
		{Role: "user", Content: "question"},
		{Role: "assistant", Content: "answer"},
		{Role: "", Content: "anonymous"},
	})
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}
	expected := []struct {
		role     string
		partType string
	}{
		{"system", "input_text"},
		{"user", "input_text"},
		{"assistant", "output_text"},
		{"user", "input_text"},
	}
	for i, want := range expected {
		if items[i].Role != want.role {
			t.Errorf("item %d role = %q, want %q", i, items[i].Role, want.role)
		}
		if len(items[i].Content) != 1 || items[i].Content[0].Type != want.partType {
			t.Errorf("item %d content = %+v, want type %q", i, items[i].Content, want.partType)
		}
	}
	if items[2].Content[0].Text != "answer" {
		t.Errorf("expected text to be carried over, got %q", items[2].Content[0].Text)
	}
}

func TestClampOutputTokens(t *testing.T) {
	tests := []struct {
		requested, want int
	}{
		{512, 1024},
		{2000, 2000},
		{9000, 4096},
		{0, 1024},
	}
	for _, tt := range tests {
		if got := clampOutputTokens(tt.requested, 1024, 4096); got != tt.want {
			t.Errorf("clampOutputTokens(%d) = %d, want %d", tt.requested, got, tt.want)
		}
	}
}

func TestNextOutputTokenCap(t *testing.T) {
	tests := []struct {
		current, want int
	}{
		{1024, 1536},
		{256, 512},
		{3000, 4096},
		{4000, 4096},
	}
	for _, tt := range tests {
		if got := nextOutputTokenCap(tt.current, 4096); got != tt.want {
			t.Errorf("nextOutputTokenCap(%d) = %d, want %d", tt.current, got, tt.want)
		}
	}
}

func TestExtractResponsesText(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
		wantOK  bool
	}{
		{
			name: "message output text",
			payload: map[string]any{"output": []any{
				map[string]any{"type": "reasoning", "content": []any{map[string]any{"type": "text", "text": "hidden"}}},
				map[string]any{"type": "message", "content": []any{
					map[string]any{"type": "output_text", "text": "visible"},
				}},
			}},
			want:   "visible",
			wantOK: true,
		},
		{
			name: "content field used when text empty",
			payload: map[string]any{"output": []any{
				map[string]any{"type": "message", "content": []any{
					map[string]any{"type": "text", "text": "", "content": "from content"},
				}},
			}},
			want:   "from content",
			wantOK: true,
		},
		{
			name: "outputs alias and scalar content",
			payload: map[string]any{"outputs": map[string]any{
				"type":    "output_text",
				"content": map[string]any{"type": "text", "text": map[string]any{"value": "wrapped"}},
			}},
			want:   "wrapped",
			wantOK: true,
		},
		{
			name:    "output_text fallback",
			payload: map[string]any{"output": []any{}, "output_text": "aggregated"},
			want:    "aggregated",
			wantOK:  true,
		},
		{
			name: "refusal blocks ignored",
			payload: map[string]any{"output": []any{
				map[string]any{"type": "message", "content": []any{map[string]any{"type": "refusal", "refusal": "no"}}},
			}},
		},
		{
			name:    "nothing extractable",
			payload: map[string]any{"status": "incomplete"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractResponsesText(tt.payload)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("extractResponsesText = %q (ok=%v), want %q (ok=%v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestIncompleteReason(t *testing.T) {
	if got := incompleteReason(map[string]any{"incomplete_details": map[string]any{"reason": "max_output_tokens"}}); got != "max_output_tokens" {
		t.Errorf("expected max_output_tokens, got %q", got)
	}
	if got := incompleteReason(map[string]any{"incomplete_details": nil}); got != "" {
		t.Errorf("expected empty reason, got %q", got)
	}
	if got := incompleteReason(map[string]any{}); got != "" {
		t.Errorf("expected empty reason, got %q", got)
	}
}

func decodeResponsesRequest(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Errorf("decode request: %v", err)
	}
	return body
}

func TestResponses_SendsClampedCapWithoutTemperature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/responses" {
			t.Errorf("expected path /responses, got %s", r.URL.Path)
		}
		body := decodeResponsesRequest(t, r)
		if _, ok := body["temperature"]; ok {
			t.Error("temperature must not be sent on the responses protocol")
		}
		if body["max_output_tokens"] != float64(1024) {
			t.Errorf("expected max_output_tokens 1024, got %v", body["max_output_tokens"])
		}
		input, _ := body["input"].([]any)
		if len(input) != 1 {
			t.Errorf("expected 1 input item, got %d", len(input))
		}
		writeJSON(w, map[string]any{
			"status": "completed",
			"output": []any{map[string]any{"type": "message", "content": []any{map[string]any{"type": "output_text", "text": "ok"}}}},
		})
	}))
	defer server.Close()

	text, err := newTestDispatcher(t, server.URL, "gpt-5-mini").Generate(context.Background(), []Message{{Role: "user", Content: "hi"}}, Params{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if text != "ok" {
		t.Errorf("expected 'ok', got %q", text)
	}
}

func TestResponses_RetriesOnceOnTruncation(t *testing.T) {
	var calls int32
	caps := make(chan float64, 4)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		body := decodeResponsesRequest(t, r)
		outputCap, _ := body["max_output_tokens"].(float64)
		caps <- outputCap
		if n == 1 {
			writeJSON(w, map[string]any{
				"status":             "incomplete",
				"incomplete_details": map[string]any{"reason": "max_output_tokens"},
				"output":             []any{map[string]any{"type": "reasoning"}},
			})
			return
		}
		writeJSON(w, map[string]any{"status": "completed", "output_text": "finished"})
	}))
	defer server.Close()

	text, err := newTestDispatcher(t, server.URL, "gpt-5-mini").Generate(context.Background(), []Message{{Role: "user", Content: "hi"}}, Params{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if text != "finished" {
		t.Errorf("expected retry text, got %q", text)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected exactly 2 calls, got %d", calls)
	}
	first, second := <-caps, <-caps
	if first != 1024 || second != 1536 {
		t.Errorf("expected caps 1024 then 1536, got %v then %v", first, second)
	}
}

func TestResponses_SecondTruncationIsAccepted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, map[string]any{
			"status":             "incomplete",
			"incomplete_details": map[string]any{"reason": "max_output_tokens"},
			"output":             []any{},
		})
	}))
	defer server.Close()

	text, err := newTestDispatcher(t, server.URL, "o4-mini").Generate(context.Background(), []Message{{Role: "user", Content: "hi"}}, Params{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if text != FallbackMessage {
		t.Errorf("expected fallback message, got %q", text)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected exactly 2 calls, got %d", calls)
	}
}

func TestResponses_NoRetryAtCeiling(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, map[string]any{
			"incomplete_details": map[string]any{"reason": "max_output_tokens"},
			"output_text":        "partial",
		})
	}))
	defer server.Close()

	text, err := newTestDispatcher(t, server.URL, "gpt-5-mini").Generate(context.Background(), []Message{{Role: "user", Content: "hi"}}, Params{MaxTokens: 10000})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if text != "partial" {
		t.Errorf("expected partial text, got %q", text)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected a single call at the ceiling, got %d", calls)
	}
}

func TestResponses_RetryTransportFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			writeJSON(w, map[string]any{"incomplete_details": map[string]any{"reason": "max_output_tokens"}})
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestDispatcher(t, server.URL, "gpt-5-mini").Generate(context.Background(), []Message{{Role: "user", Content: "hi"}}, Params{})
	var gatewayErr *GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("expected *GatewayError, got %v", err)
	}
	if gatewayErr.Protocol != ProtocolResponses {
		t.Errorf("expected responses protocol, got %s", gatewayErr.Protocol)
	}
}
