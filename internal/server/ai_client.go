package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/Hyeon6492/LifeBit/internal/config"
)

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type AIModelRequest struct {
	Model        string
	SystemPrompt string
	Conversation []ChatTurn
	UserPrompt   string
	// Temperature is ignored for reasoning models, which reject it.
	Temperature     *float64
	MaxOutputTokens int
}

type AIModelResponse struct {
	Answer string
	Model  string
	Usage  AIUsage
}

type AIClient interface {
	Query(ctx context.Context, req AIModelRequest) (AIModelResponse, error)
}

// ErrAINotConfigured is returned when a model call is needed but no client is wired.
var ErrAINotConfigured = errors.New("OPENAI_API_KEY is not configured")

type OpenAIResponsesClient struct {
	apiKey          string
	baseURL         string
	model           string
	maxOutputTokens int
	httpClient      *http.Client
}

func NewOpenAIResponsesClient(cfg config.Config) *OpenAIResponsesClient {
	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	return &OpenAIResponsesClient{
		apiKey:          strings.TrimSpace(cfg.OpenAIAPIKey),
		baseURL:         strings.TrimRight(strings.TrimSpace(cfg.OpenAIBaseURL), "/"),
		model:           strings.TrimSpace(cfg.OpenAIModel),
		maxOutputTokens: cfg.AIMaxOutputTokens,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

// responsesBlock is one message in the Responses API "input" array.
type responsesBlock struct {
	Role    string             `json:"role"`
	Content []responsesContent `json:"content"`
}

type responsesContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// responsesCall is a resolved request: model, token budget and sampling
// settings are fixed before the first attempt.
type responsesCall struct {
	model       string
	maxTokens   int
	reasoning   bool
	temperature *float64
}

func (c *OpenAIResponsesClient) Query(ctx context.Context, req AIModelRequest) (AIModelResponse, error) {
	call, err := c.resolveCall(req)
	if err != nil {
		return AIModelResponse{}, err
	}

	status, body, err := c.post(ctx, call, responsesInput(req, true))
	if err != nil {
		return AIModelResponse{}, err
	}
	if !isSuccessStatus(status) {
		if !rejectsAssistantTurns(status, body) || !hasAssistantTurn(req.Conversation) {
			return AIModelResponse{}, fmt.Errorf("openai responses error (%d): %s", status, strings.TrimSpace(string(body)))
		}
		// Some models refuse assistant history as input; ask once more without it.
		status, body, err = c.post(ctx, call, responsesInput(req, false))
		if err != nil {
			return AIModelResponse{}, err
		}
		if !isSuccessStatus(status) {
			return AIModelResponse{}, fmt.Errorf("openai responses error (%d): %s", status, strings.TrimSpace(string(body)))
		}
	}
	return decodeResponsesBody(body, call.model)
}

func (c *OpenAIResponsesClient) resolveCall(req AIModelRequest) (responsesCall, error) {
	switch {
	case strings.TrimSpace(c.apiKey) == "":
		return responsesCall{}, ErrAINotConfigured
	case strings.TrimSpace(c.baseURL) == "":
		return responsesCall{}, errors.New("OPENAI_BASE_URL is not configured")
	case strings.TrimSpace(c.model) == "":
		return responsesCall{}, errors.New("OPENAI_MODEL is not configured")
	}

	call := responsesCall{
		model:       strings.TrimSpace(req.Model),
		maxTokens:   req.MaxOutputTokens,
		temperature: req.Temperature,
	}
	if call.model == "" {
		call.model = strings.TrimSpace(c.model)
	}
	if call.maxTokens <= 0 {
		call.maxTokens = c.maxOutputTokens
	}
	call.reasoning = isReasoningModel(call.model)
	if call.reasoning && call.maxTokens < reasoningMinOutputTokens {
		call.maxTokens = reasoningMinOutputTokens
	}
	return call, nil
}

const reasoningMinOutputTokens = 1200

// responsesInput lays out system prompt, history and the new user prompt.
// Blank turns and roles other than user/assistant are dropped.
func responsesInput(req AIModelRequest, withAssistant bool) []responsesBlock {
	input := make([]responsesBlock, 0, len(req.Conversation)+2)
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		input = append(input, responsesBlock{Role: "system", Content: []responsesContent{{Type: "input_text", Text: system}}})
	}
	for _, turn := range req.Conversation {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		switch role := strings.ToLower(strings.TrimSpace(turn.Role)); role {
		case "user":
			input = append(input, responsesBlock{Role: role, Content: []responsesContent{{Type: "input_text", Text: content}}})
		case "assistant":
			if withAssistant {
				input = append(input, responsesBlock{Role: role, Content: []responsesContent{{Type: "output_text", Text: content}}})
			}
		}
	}
	if prompt := strings.TrimSpace(req.UserPrompt); prompt != "" {
		input = append(input, responsesBlock{Role: "user", Content: []responsesContent{{Type: "input_text", Text: prompt}}})
	}
	return input
}

func (c *OpenAIResponsesClient) post(ctx context.Context, call responsesCall, input []responsesBlock) (int, []byte, error) {
	if len(input) == 0 {
		return 0, nil, errors.New("AI request input is empty")
	}
	payload := map[string]any{
		"model":             call.model,
		"input":             input,
		"max_output_tokens": call.maxTokens,
	}
	if call.reasoning {
		payload["reasoning"] = map[string]any{"effort": "low"}
		payload["text"] = map[string]any{"verbosity": "low"}
	} else if call.temperature != nil {
		payload["temperature"] = *call.temperature
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode responses payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(raw))
	if err != nil {
		return 0, nil, err
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey)
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return 0, nil, err
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return 0, nil, err
	}
	return response.StatusCode, body, nil
}

func decodeResponsesBody(body []byte, requestModel string) (AIModelResponse, error) {
	parsed := parseJSONStringMap(body)
	answer := extractResponseAnswer(parsed)
	if answer == "" {
		if isMaxOutputTokenIncomplete(parsed) {
			return AIModelResponse{}, errors.New("openai response incomplete due max_output_tokens")
		}
		log.Printf("openai response had no extractable answer: %s", truncateForLog(string(body), 1200))
		return AIModelResponse{}, errors.New("openai response answer is empty")
	}

	usageMap, _ := parsed["usage"].(map[string]any)
	usage := AIUsage{
		PromptTokens:     int(extractNumberFromMap(usageMap, "input_tokens", "prompt_tokens")),
		CompletionTokens: int(extractNumberFromMap(usageMap, "output_tokens", "completion_tokens")),
		TotalTokens:      int(extractNumberFromMap(usageMap, "total_tokens")),
	}
	if usage.TotalTokens <= 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	model := strings.TrimSpace(toString(parsed["model"]))
	if model == "" {
		model = requestModel
	}
	return AIModelResponse{Answer: answer, Model: model, Usage: usage}, nil
}

func isSuccessStatus(status int) bool {
	return status >= 200 && status < 300
}

func hasAssistantTurn(turns []ChatTurn) bool {
	for _, turn := range turns {
		if strings.EqualFold(strings.TrimSpace(turn.Role), "assistant") {
			return true
		}
	}
	return false
}

func rejectsAssistantTurns(status int, body []byte) bool {
	text := string(body)
	return status == http.StatusBadRequest &&
		strings.Contains(text, "Invalid value: 'input_text'") &&
		strings.Contains(text, "Supported values are: 'output_text' and 'refusal'")
}

func extractResponseAnswer(data map[string]any) string {
	direct := strings.TrimSpace(toString(data["output_text"]))
	if direct != "" {
		return direct
	}

	outputs, ok := data["output"].([]any)
	if !ok {
		return ""
	}
	parts := make([]string, 0)
	for _, item := range outputs {
		block, ok := item.(map[string]any)
		if !ok {
			continue
		}
		contentList, ok := block["content"].([]any)
		if !ok {
			continue
		}
		for _, contentItem := range contentList {
			contentMap, ok := contentItem.(map[string]any)
			if !ok {
				continue
			}
			contentType := strings.ToLower(strings.TrimSpace(toString(contentMap["type"])))
			if contentType != "output_text" && contentType != "text" {
				continue
			}
			text := strings.TrimSpace(extractResponseTextValue(contentMap))
			if text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func extractResponseTextValue(content map[string]any) string {
	if content == nil {
		return ""
	}
	if text := strings.TrimSpace(toString(content["text"])); text != "" {
		return text
	}
	textMap, ok := content["text"].(map[string]any)
	if ok {
		if value := strings.TrimSpace(toString(textMap["value"])); value != "" {
			return value
		}
	}
	if value := strings.TrimSpace(toString(content["output_text"])); value != "" {
		return value
	}
	return ""
}

func truncateForLog(value string, limit int) string {
	trimmed := strings.TrimSpace(value)
	if limit <= 0 || len(trimmed) <= limit {
		return trimmed
	}
	return trimmed[:limit] + "...(truncated)"
}

func isMaxOutputTokenIncomplete(parsed map[string]any) bool {
	if parsed == nil {
		return false
	}
	details, ok := parsed["incomplete_details"].(map[string]any)
	if !ok {
		return false
	}
	reason := strings.ToLower(strings.TrimSpace(toString(details["reason"])))
	return reason == "max_output_tokens"
}

// isReasoningModel reports whether model takes reasoning controls instead of
// a sampling temperature.
func isReasoningModel(model string) bool {
	lowered := strings.ToLower(strings.TrimSpace(model))
	if strings.HasPrefix(lowered, "gpt-5") {
		return true
	}
	return len(lowered) > 1 && lowered[0] == 'o' && lowered[1] >= '0' && lowered[1] <= '9'
}

func floatPtr(v float64) *float64 {
	return &v
}
