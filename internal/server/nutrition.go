package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/Hyeon6492/LifeBit/internal/observability"
)

const (
	nutritionMaxOutputTokens = 200

	nutritionBasisAmount = "amount"
	nutritionBasis100g   = "100g"

	// nutrition_source values stored on food_items.
	nutritionSourceGPT      = "GPT"
	nutritionSourceUser     = "USER"
	nutritionSourceFallback = "FALLBACK"
)

// Nutrition is a macro estimate for one food, either for an eaten amount or
// per 100 g.
type Nutrition struct {
	Calories float64 `json:"calories"`
	Carbs    float64 `json:"carbs"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
}

var (
	amountFallbackNutrition  = Nutrition{Calories: 100, Carbs: 20, Protein: 5, Fat: 3}
	per100gFallbackNutrition = Nutrition{Calories: 250, Carbs: 60, Protein: 3, Fat: 1}
)

// estimateNutrition never fails: any model or parse error yields the fixed
// amount fallback. The returned source is nutritionSourceGPT or
// nutritionSourceFallback.
func (a *App) estimateNutrition(ctx context.Context, foodName, amount string) (Nutrition, string) {
	return a.queryNutrition(ctx, nutritionPrompt(foodName, amount), nutritionBasisAmount, amountFallbackNutrition)
}

func (a *App) estimateNutritionPer100g(ctx context.Context, foodName string) (Nutrition, string) {
	return a.queryNutrition(ctx, nutritionPer100gPrompt(foodName), nutritionBasis100g, per100gFallbackNutrition)
}

func (a *App) queryNutrition(ctx context.Context, prompt, basis string, fallback Nutrition) (Nutrition, string) {
	if a.ai == nil {
		log.Printf("nutrition fallback basis=%s reason=%v", basis, ErrAINotConfigured)
		observability.RecordNutritionFallback(basis)
		return fallback, nutritionSourceFallback
	}

	temperature := a.cfg.NutritionTemperature
	resp, err := a.ai.Query(ctx, AIModelRequest{
		UserPrompt:      prompt,
		Temperature:     &temperature,
		MaxOutputTokens: nutritionMaxOutputTokens,
	})
	observability.RecordAIRequest("nutrition", err)
	observability.RecordAITokens("nutrition", resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	if err != nil {
		log.Printf("nutrition fallback basis=%s reason=%v", basis, err)
		observability.RecordNutritionFallback(basis)
		return fallback, nutritionSourceFallback
	}

	nutrition, err := parseNutritionReply(resp.Answer)
	if err != nil {
		log.Printf("nutrition fallback basis=%s reason=%v answer=%q", basis, err, truncateForLog(resp.Answer, 200))
		observability.RecordNutritionFallback(basis)
		return fallback, nutritionSourceFallback
	}
	return nutrition, nutritionSourceGPT
}

var errNutritionReply = errors.New("nutrition reply is not a 4-key JSON object")

func parseNutritionReply(answer string) (Nutrition, error) {
	candidate := extractJSONObject(answer)
	if candidate == "" {
		return Nutrition{}, errNutritionReply
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
		return Nutrition{}, fmt.Errorf("%w: %v", errNutritionReply, err)
	}

	values := make([]float64, 0, 4)
	for _, key := range []string{"calories", "carbs", "protein", "fat"} {
		value, ok := numericValue(raw[key])
		if !ok {
			return Nutrition{}, fmt.Errorf("%w: %s missing", errNutritionReply, key)
		}
		values = append(values, value)
	}
	return Nutrition{Calories: values[0], Carbs: values[1], Protein: values[2], Fat: values[3]}, nil
}

// extractJSONObject strips code fences and surrounding prose from a model
// reply, returning the outermost {...} span or "".
func extractJSONObject(answer string) string {
	candidate := strings.TrimSpace(answer)
	if strings.HasPrefix(candidate, "```") {
		candidate = strings.TrimSpace(strings.TrimPrefix(candidate, "```json"))
		candidate = strings.TrimSpace(strings.TrimPrefix(candidate, "```"))
		candidate = strings.TrimSpace(strings.TrimSuffix(candidate, "```"))
	}
	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(candidate[start : end+1])
}

func numericValue(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
