package server

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/Hyeon6492/LifeBit/internal/record"
)

const chatPath = "/api/py/chat"

func TestChatRejectsBlankMessage(t *testing.T) {
	router := newUnitApp(t, WithAIClient(newFakeAI(`{}`))).Router()
	rec := performRequest(t, router, http.MethodPost, chatPath, "", map[string]any{"message": "   "}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", rec.Code, rec.Body.String())
	}
	if detail := responseDetail(t, rec); detail != "메시지가 비어있습니다." {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestChatReportsDisabledModel(t *testing.T) {
	router := newUnitApp(t).Router()
	rec := performRequest(t, router, http.MethodPost, chatPath, "", map[string]any{"message": "안녕", "record_type": "exercise"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeJSONMap(t, rec)
	if body["type"] != "error" || body["message"] != chatDisabledMessage {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestChatWithoutRecordTypeReturnsInitialGuidance(t *testing.T) {
	ai := newFakeAI(`{}`)
	router := newUnitApp(t, WithAIClient(ai)).Router()
	rec := performRequest(t, router, http.MethodPost, chatPath, "", map[string]any{"message": "안녕하세요"}, nil)
	body := decodeJSONMap(t, rec)
	if body["type"] != "initial" || body["message"] != chatInitialMessage {
		t.Fatalf("unexpected body %v", body)
	}
	if len(ai.calls()) != 0 {
		t.Fatalf("initial guidance must not call the model")
	}
}

func TestChatRejectsUnknownRecordType(t *testing.T) {
	router := newUnitApp(t, WithAIClient(newFakeAI(`{}`))).Router()
	rec := performRequest(t, router, http.MethodPost, chatPath, "", map[string]any{"message": "hi", "record_type": "sleep"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatExtractionAddsCalories(t *testing.T) {
	ai := newFakeAI(`{
		"response_type": "confirmation",
		"system_message": {
			"data": {"exercise": "벤치프레스", "category": "근력운동", "weight": 60, "sets": 3, "reps": 10},
			"missing_fields": [],
			"next_step": "confirmation"
		},
		"user_message": {"text": "벤치프레스 60kg 3세트 10회 맞나요?"}
	}`)
	router := newUnitApp(t, WithAIClient(ai)).Router()

	history := make([]map[string]string, 0, 8)
	for i := 0; i < 8; i++ {
		history = append(history, map[string]string{"role": "user", "content": "turn"})
	}
	rec := performRequest(t, router, http.MethodPost, chatPath, "", map[string]any{
		"message":              "벤치프레스 60kg 3세트 10회 했어",
		"record_type":          "exercise",
		"conversation_history": history,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}

	body := decodeJSONMap(t, rec)
	if body["type"] != "confirmation" {
		t.Fatalf("expected confirmation type, got %v", body["type"])
	}
	if body["phase"] != string(record.PhaseExtraction) {
		t.Fatalf("expected extraction phase, got %v", body["phase"])
	}
	data, _ := body["parsed_data"].(map[string]any)
	if data["calories_burned"] != 120.0 {
		t.Fatalf("expected calories 120, got %v", data["calories_burned"])
	}
	if missing, _ := body["missing_fields"].([]any); len(missing) != 0 {
		t.Fatalf("expected no missing fields, got %v", missing)
	}

	calls := ai.calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 model call, got %d", len(calls))
	}
	if len(calls[0].Conversation) != baseTestConfig.ChatHistoryTurns {
		t.Fatalf("expected history trimmed to %d turns, got %d", baseTestConfig.ChatHistoryTurns, len(calls[0].Conversation))
	}
	if calls[0].Temperature == nil || *calls[0].Temperature != baseTestConfig.ChatTemperature {
		t.Fatalf("expected chat temperature")
	}
	if calls[0].SystemPrompt != chatPrompts[record.CategoryExercise][record.PhaseExtraction] {
		t.Fatalf("expected bare extraction prompt")
	}
}

func TestChatConfirmationCarriesCollectedData(t *testing.T) {
	ai := newFakeAI("```json\n{\"response_type\":\"confirmation\",\"system_message\":{\"data\":[{\"food_name\":\"밥\",\"amount\":\"1 공기\",\"meal_time\":\"점심\"}]},\"user_message\":{\"text\":\"저장할까요?\"}}\n```")
	router := newUnitApp(t, WithAIClient(ai)).Router()

	rec := performRequest(t, router, http.MethodPost, chatPath, "", map[string]any{
		"message":      "네 저장해주세요",
		"record_type":  "diet",
		"current_data": map[string]any{"food_name": "밥", "amount": "1공기", "meal_time": "점심"},
	}, nil)
	body := decodeJSONMap(t, rec)
	if body["phase"] != string(record.PhaseConfirmation) {
		t.Fatalf("expected confirmation phase, got %v", body["phase"])
	}
	items, _ := body["parsed_data"].([]any)
	if len(items) != 1 {
		t.Fatalf("expected one parsed item, got %v", body["parsed_data"])
	}
	if item := items[0].(map[string]any); item["amount"] != "1그릇" {
		t.Fatalf("expected normalized amount, got %v", item["amount"])
	}

	prompt := ai.calls()[0].SystemPrompt
	if !strings.HasPrefix(prompt, chatPrompts[record.CategoryDiet][record.PhaseConfirmation]) {
		t.Fatalf("expected diet confirmation prompt")
	}
	if !strings.Contains(prompt, "**현재 수집된 데이터:**") || !strings.Contains(prompt, `"food_name": "밥"`) {
		t.Fatalf("expected collected data in prompt, got %q", prompt)
	}
}

func TestChatPlainTextReplyIsIncomplete(t *testing.T) {
	router := newUnitApp(t, WithAIClient(newFakeAI("몇 세트 하셨나요?"))).Router()
	rec := performRequest(t, router, http.MethodPost, chatPath, "", map[string]any{"message": "스쿼트", "record_type": "exercise"}, nil)
	body := decodeJSONMap(t, rec)
	if body["type"] != "incomplete" || body["message"] != "몇 세트 하셨나요?" {
		t.Fatalf("unexpected body %v", body)
	}
	if suggestions, ok := body["suggestions"].([]any); !ok || len(suggestions) != 0 {
		t.Fatalf("expected empty suggestions, got %v", body["suggestions"])
	}
}

func TestChatDefaultsMissingReplyParts(t *testing.T) {
	router := newUnitApp(t, WithAIClient(newFakeAI(`{"system_message":{"data":{}}}`))).Router()
	rec := performRequest(t, router, http.MethodPost, chatPath, "", map[string]any{"message": "운동", "record_type": "exercise"}, nil)
	body := decodeJSONMap(t, rec)
	if body["type"] != "success" || body["message"] != chatReplyFallbackText {
		t.Fatalf("unexpected defaults %v", body)
	}
}

func TestChatModelFailureIs500(t *testing.T) {
	ai := newFakeAI()
	ai.err = errors.New("upstream timeout")
	router := newUnitApp(t, WithAIClient(ai)).Router()
	rec := performRequest(t, router, http.MethodPost, chatPath, "", map[string]any{"message": "운동", "record_type": "exercise"}, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if detail := responseDetail(t, rec); detail != "채팅 처리 중 오류가 발생했습니다: upstream timeout" {
		t.Fatalf("unexpected detail %q", detail)
	}
}

func TestParseModelReply(t *testing.T) {
	if _, ok := parseModelReply("not json"); ok {
		t.Fatalf("expected plain text to be rejected")
	}
	if _, ok := parseModelReply(`{"broken":`); ok {
		t.Fatalf("expected malformed json to be rejected")
	}
	reply, ok := parseModelReply("```json\n{\"response_type\":\"validation\",\"system_message\":{\"missing_fields\":[\"sets\"]}}\n```")
	if !ok {
		t.Fatalf("expected fenced json to parse")
	}
	if reply.ResponseType != "validation" || len(reply.SystemMessage.MissingFields) != 1 {
		t.Fatalf("unexpected reply %+v", reply)
	}
}

func TestRecentTurns(t *testing.T) {
	history := []ChatTurn{{Role: "user", Content: "1"}, {Role: "assistant", Content: "2"}, {Role: "user", Content: "3"}}
	if got := recentTurns(history, 2); len(got) != 2 || got[0].Content != "2" {
		t.Fatalf("unexpected trimmed history %v", got)
	}
	if got := recentTurns(history, 0); got != nil {
		t.Fatalf("expected nil for zero limit")
	}
	if got := recentTurns(history, 10); len(got) != 3 {
		t.Fatalf("expected full history")
	}
}

func TestSystemPromptForEmptyDataIsBarePrompt(t *testing.T) {
	for _, current := range []any{nil, map[string]any{}, []any{}} {
		if got := systemPromptFor(record.CategoryDiet, record.PhaseValidation, current); got != chatPrompts[record.CategoryDiet][record.PhaseValidation] {
			t.Fatalf("expected bare prompt for %v", current)
		}
	}
}
