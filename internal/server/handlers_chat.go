package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Hyeon6492/LifeBit/internal/observability"
	"github.com/Hyeon6492/LifeBit/internal/record"
)

const (
	chatReplyFallbackText = "응답을 처리했습니다."
	chatDisabledMessage   = "GPT 기능이 비활성화되어 있습니다."
)

// chatHTTPError carries a handler status through the chat helpers.
type chatHTTPError struct {
	Status int
	Detail string
}

func (e *chatHTTPError) Error() string {
	return e.Detail
}

// modelReply is the JSON envelope the record prompts ask the model for.
type modelReply struct {
	ResponseType  string `json:"response_type"`
	SystemMessage struct {
		Data          any      `json:"data"`
		MissingFields []string `json:"missing_fields"`
		NextStep      string   `json:"next_step"`
	} `json:"system_message"`
	UserMessage struct {
		Text string `json:"text"`
	} `json:"user_message"`
}

func (a *App) chat(c *gin.Context) {
	var payload chatRequest
	if !mustJSON(c, &payload) {
		return
	}

	result, err := a.runChat(c.Request.Context(), payload)
	if err != nil {
		writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (a *App) runChat(ctx context.Context, payload chatRequest) (gin.H, error) {
	message := strings.TrimSpace(payload.Message)
	if message == "" {
		return nil, &chatHTTPError{Status: http.StatusBadRequest, Detail: "메시지가 비어있습니다."}
	}
	if a.ai == nil {
		return gin.H{"type": "error", "message": chatDisabledMessage}, nil
	}
	if strings.TrimSpace(payload.RecordType) == "" {
		return gin.H{"type": "initial", "message": chatInitialMessage}, nil
	}
	// Unknown record types are rejected rather than routed to the diet prompts.
	category, ok := record.ParseCategory(payload.RecordType)
	if !ok {
		return nil, &chatHTTPError{Status: http.StatusBadRequest, Detail: "record_type은 exercise 또는 diet 이어야 합니다."}
	}

	current := record.FieldsFrom(payload.CurrentData)
	phase := record.ResolvePhase(message, current, string(category))
	observability.RecordChatPhase(string(category), string(phase))
	log.Printf("chat phase record_type=%s phase=%s fields=%d", category, phase, len(current))

	temperature := a.cfg.ChatTemperature
	resp, err := a.ai.Query(ctx, AIModelRequest{
		SystemPrompt: systemPromptFor(category, phase, payload.CurrentData),
		Conversation: recentTurns(payload.ConversationHistory, a.cfg.ChatHistoryTurns),
		UserPrompt:   message,
		Temperature:  &temperature,
	})
	observability.RecordAIRequest("chat", err)
	observability.RecordAITokens("chat", resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	if err != nil {
		return nil, err
	}

	reply, ok := parseModelReply(resp.Answer)
	if !ok {
		return gin.H{"type": "incomplete", "message": resp.Answer, "suggestions": []string{}}, nil
	}
	enrichRecordData(category, reply.SystemMessage.Data)

	responseType := strings.TrimSpace(reply.ResponseType)
	if responseType == "" {
		responseType = "success"
	}
	text := reply.UserMessage.Text
	if strings.TrimSpace(text) == "" {
		text = chatReplyFallbackText
	}
	missing := reply.SystemMessage.MissingFields
	if missing == nil {
		missing = []string{}
	}

	return gin.H{
		"type":           responseType,
		"message":        text,
		"parsed_data":    reply.SystemMessage.Data,
		"missing_fields": missing,
		"suggestions":    []string{},
		"phase":          string(phase),
	}, nil
}

// recentTurns keeps the last limit turns of the client supplied history.
func recentTurns(history []ChatTurn, limit int) []ChatTurn {
	if limit <= 0 || len(history) == 0 {
		return nil
	}
	if len(history) > limit {
		return history[len(history)-limit:]
	}
	return history
}

// parseModelReply decodes a reply that is a single JSON object. Replies
// wrapped in code fences are unwrapped first; plain text is rejected.
func parseModelReply(answer string) (modelReply, bool) {
	candidate := strings.TrimSpace(answer)
	if strings.HasPrefix(candidate, "```") {
		candidate = extractJSONObject(candidate)
	}
	if !strings.HasPrefix(candidate, "{") || !strings.HasSuffix(candidate, "}") {
		return modelReply{}, false
	}
	var reply modelReply
	if err := json.Unmarshal([]byte(candidate), &reply); err != nil {
		return modelReply{}, false
	}
	return reply, true
}

// enrichRecordData fills derived fields in place: calories for exercise
// records and canonical amounts for diet records. data may be one record or
// a list of them.
func enrichRecordData(category record.Category, data any) {
	for _, item := range recordItems(data) {
		fields := record.Fields(item)
		switch category {
		case record.CategoryExercise:
			if fields.Present(record.FieldExercise) {
				item[record.FieldCalories] = record.EstimateCalories(fields)
			}
		case record.CategoryDiet:
			if amount, ok := item[record.FieldAmount].(string); ok {
				item[record.FieldAmount] = record.NormalizeAmount(amount)
			}
		}
	}
}

func recordItems(data any) []map[string]any {
	switch v := data.(type) {
	case map[string]any:
		return []map[string]any{v}
	case []any:
		items := make([]map[string]any, 0, len(v))
		for _, entry := range v {
			if m, ok := entry.(map[string]any); ok {
				items = append(items, m)
			}
		}
		return items
	default:
		return nil
	}
}

func writeChatError(c *gin.Context, err error) {
	var httpErr *chatHTTPError
	if errors.As(err, &httpErr) {
		writeError(c, httpErr.Status, httpErr.Detail)
		return
	}
	log.Printf("chat failed err=%v", err)
	writeError(c, http.StatusInternalServerError, fmt.Sprintf("채팅 처리 중 오류가 발생했습니다: %v", err))
}
