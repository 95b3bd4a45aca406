package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestResponsesClient(baseURL, model string, maxOutputTokens int) *OpenAIResponsesClient {
	return &OpenAIResponsesClient{
		apiKey:          "test",
		baseURL:         baseURL,
		model:           model,
		maxOutputTokens: maxOutputTokens,
		httpClient: &http.Client{
			Timeout: 2 * time.Second,
		},
	}
}

func TestOpenAIResponsesClientSendsTemperatureForChatModels(t *testing.T) {
	t.Parallel()

	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		if r.URL.Path != "/responses" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test" {
			t.Errorf("missing bearer header")
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode request payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"model":"gpt-4o-mini",
			"output":[{"content":[{"type":"output_text","text":"{\"calories\":150}"}]}],
			"usage":{"input_tokens":10,"output_tokens":4,"total_tokens":14}
		}`))
	}))
	defer server.Close()

	client := newTestResponsesClient(server.URL, "gpt-4o-mini", 600)
	resp, err := client.Query(context.Background(), AIModelRequest{
		SystemPrompt:    "system",
		UserPrompt:      "김밥 1줄",
		Temperature:     floatPtr(0.1),
		MaxOutputTokens: 200,
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if resp.Answer != `{"calories":150}` {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}
	if resp.Usage.TotalTokens != 14 {
		t.Fatalf("expected usage 14, got %d", resp.Usage.TotalTokens)
	}
	if received["temperature"] != 0.1 {
		t.Fatalf("expected temperature 0.1, got %v", received["temperature"])
	}
	if int(extractNumberFromMap(received, "max_output_tokens")) != 200 {
		t.Fatalf("expected per-request token limit, got %v", received["max_output_tokens"])
	}
	if _, ok := received["reasoning"]; ok {
		t.Fatalf("chat models must not receive reasoning controls")
	}
	input, _ := received["input"].([]any)
	if len(input) != 2 {
		t.Fatalf("expected system and user blocks, got %d", len(input))
	}
}

func TestOpenAIResponsesClientUsesReasoningControlsForReasoningModels(t *testing.T) {
	t.Parallel()

	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"output_text":"ok",
			"usage":{"input_tokens":8,"output_tokens":3,"total_tokens":11}
		}`))
	}))
	defer server.Close()

	client := newTestResponsesClient(server.URL, "gpt-5-mini", 320)
	resp, err := client.Query(context.Background(), AIModelRequest{
		UserPrompt:  "token test",
		Temperature: floatPtr(0.3),
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if resp.Model != "gpt-5-mini" {
		t.Fatalf("expected request model echoed, got %q", resp.Model)
	}
	if _, ok := received["temperature"]; ok {
		t.Fatalf("reasoning models must not receive temperature")
	}
	if _, ok := received["reasoning"]; !ok {
		t.Fatalf("expected reasoning controls")
	}
	if int(extractNumberFromMap(received, "max_output_tokens")) != 1200 {
		t.Fatalf("expected reasoning token floor 1200, got %v", received["max_output_tokens"])
	}
}

func TestOpenAIResponsesClientRetriesWithoutAssistantTurnsOnce(t *testing.T) {
	t.Parallel()

	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var payload map[string]any
		_ = json.NewDecoder(r.Body).Decode(&payload)
		input, _ := payload["input"].([]any)

		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Invalid value: 'input_text'. Supported values are: 'output_text' and 'refusal'."}}`))
			return
		}
		for _, item := range input {
			block, _ := item.(map[string]any)
			if block["role"] == "assistant" {
				t.Errorf("retry must drop assistant turns")
			}
		}
		_, _ = w.Write([]byte(`{
			"output":[{"content":[{"type":"output_text","text":"retried"}]}],
			"usage":{"total_tokens":5}
		}`))
	}))
	defer server.Close()

	client := newTestResponsesClient(server.URL, "gpt-4o-mini", 600)
	resp, err := client.Query(context.Background(), AIModelRequest{
		Conversation: []ChatTurn{
			{Role: "user", Content: "벤치프레스 했어"},
			{Role: "assistant", Content: "몇 kg으로 하셨나요?"},
		},
		UserPrompt: "60kg",
	})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if resp.Answer != "retried" {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
}

func TestOpenAIResponsesClientDoesNotRetryServerErrors(t *testing.T) {
	t.Parallel()

	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"message":"temporary upstream issue"}}`))
	}))
	defer server.Close()

	client := newTestResponsesClient(server.URL, "gpt-4o-mini", 600)
	_, err := client.Query(context.Background(), AIModelRequest{UserPrompt: "hello"})
	if err == nil || !strings.Contains(err.Error(), "openai responses error (502)") {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("expected a single attempt, got %d", got)
	}
}

func TestOpenAIResponsesClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	client := &OpenAIResponsesClient{baseURL: "http://127.0.0.1:1", model: "gpt-4o-mini", httpClient: http.DefaultClient}
	_, err := client.Query(context.Background(), AIModelRequest{UserPrompt: "hello"})
	if !errors.Is(err, ErrAINotConfigured) {
		t.Fatalf("expected ErrAINotConfigured, got %v", err)
	}
}

func TestIsReasoningModel(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"gpt-5-mini":      true,
		"o4-mini":         true,
		"o1":              true,
		"gpt-4o-mini":     false,
		"omni-moderation": false,
		"":                false,
	}
	for model, want := range cases {
		if got := isReasoningModel(model); got != want {
			t.Fatalf("isReasoningModel(%q) = %v, want %v", model, got, want)
		}
	}
}

func TestExtractResponseAnswerReadsNestedTextValue(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"output": []any{
			map[string]any{"content": []any{
				map[string]any{"type": "reasoning", "text": "skip"},
				map[string]any{"type": "output_text", "text": map[string]any{"value": "first"}},
			}},
			map[string]any{"content": []any{
				map[string]any{"type": "text", "text": "second"},
			}},
		},
	}
	if got := extractResponseAnswer(data); got != "first\nsecond" {
		t.Fatalf("unexpected answer %q", got)
	}
}

func TestOpenAIResponsesClientAcceptsReplyWithoutUsage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"output_text":"{\"calories\":180,\"carbs\":30,\"protein\":6,\"fat\":4}"}`))
	}))
	defer server.Close()

	client := newTestResponsesClient(server.URL, "gpt-4o-mini", 600)
	resp, err := client.Query(context.Background(), AIModelRequest{UserPrompt: "고구마 1개"})
	if err != nil {
		t.Fatalf("reply without usage must succeed, got %v", err)
	}
	if resp.Usage != (AIUsage{}) {
		t.Fatalf("expected zero usage, got %+v", resp.Usage)
	}

	app := newUnitApp(t, WithAIClient(client))
	got, source := app.estimateNutrition(context.Background(), "고구마", "1개")
	if source != nutritionSourceGPT || got != (Nutrition{Calories: 180, Carbs: 30, Protein: 6, Fat: 4}) {
		t.Fatalf("expected model estimate, got %+v from %s", got, source)
	}
}

func TestOpenAIResponsesClientSumsUsageWithoutTotal(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output_text":"ok","usage":{"input_tokens":9,"output_tokens":2}}`))
	}))
	defer server.Close()

	resp, err := newTestResponsesClient(server.URL, "gpt-4o-mini", 600).Query(context.Background(), AIModelRequest{UserPrompt: "hi"})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if resp.Usage.TotalTokens != 11 {
		t.Fatalf("expected total 11, got %d", resp.Usage.TotalTokens)
	}
}
