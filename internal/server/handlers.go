package server

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

type chatRequest struct {
	Message             string     `json:"message"`
	ConversationHistory []ChatTurn `json:"conversation_history"`
	RecordType          string     `json:"record_type"`
	ChatStep            string     `json:"chat_step"`
	CurrentData         any        `json:"current_data"`
	MealTimeMapping     any        `json:"meal_time_mapping"`
	UserID              *int64     `json:"user_id"`
}

type exerciseNoteRequest struct {
	UserID            int64    `json:"user_id"`
	Name              string   `json:"name" binding:"required"`
	ExerciseCatalogID *int64   `json:"exercise_catalog_id"`
	Weight            *float64 `json:"weight"`
	Sets              *int     `json:"sets"`
	Reps              *int     `json:"reps"`
	DurationMinutes   *int     `json:"duration_minutes"`
	CaloriesBurned    *float64 `json:"calories_burned"`
	ExerciseDate      string   `json:"exercise_date"`
}

type dietNoteRequest struct {
	UserID   int64    `json:"user_id"`
	FoodName string   `json:"food_name" binding:"required"`
	Amount   string   `json:"amount" binding:"required"`
	MealTime string   `json:"meal_time" binding:"omitempty,mealtime"`
	Calories *float64 `json:"calories"`
	Carbs    *float64 `json:"carbs"`
	Protein  *float64 `json:"protein"`
	Fat      *float64 `json:"fat"`
	LogDate  string   `json:"log_date"`
}

type foodItemRequest struct {
	FoodName string `json:"food_name"`
}

type analyticsRequest struct {
	UserID int64  `json:"user_id"`
	Period string `json:"period" binding:"omitempty,oneof=day week month year"`
}

// exerciseListItem is one row of the daily exercise list.
type exerciseListItem struct {
	ExerciseSessionID int64  `json:"exercise_session_id"`
	Name              string `json:"name"`
	Weight            string `json:"weight"`
	Sets              int    `json:"sets"`
	Reps              int    `json:"reps"`
	Time              string `json:"time"`
}

type dietListItem struct {
	MealLogID int64   `json:"meal_log_id"`
	FoodName  string  `json:"food_name"`
	Amount    string  `json:"amount"`
	MealTime  string  `json:"meal_time"`
	Calories  float64 `json:"calories"`
	Carbs     float64 `json:"carbs"`
	Protein   float64 `json:"protein"`
	Fat       float64 `json:"fat"`
}

// parseDate reads a YYYY-MM-DD value; empty input means today.
func parseDate(raw string, now time.Time) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		year, month, day := now.Date()
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
	}
	parsed, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func parseJSONStringMap(raw []byte) map[string]any {
	result := map[string]any{}
	if len(raw) == 0 {
		return result
	}
	if err := json.Unmarshal(raw, &result); err != nil || result == nil {
		return map[string]any{}
	}
	return result
}

// extractNumberFromMap returns the first numeric value found under keys.
func extractNumberFromMap(value map[string]any, keys ...string) float64 {
	if value == nil {
		return 0
	}
	for _, key := range keys {
		switch v := value[key].(type) {
		case float64:
			return v
		case int:
			return float64(v)
		case int64:
			return float64(v)
		case json.Number:
			if parsed, err := v.Float64(); err == nil {
				return parsed
			}
		case string:
			if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return parsed
			}
		}
	}
	return 0
}

func mustMarshalJSON(input any) string {
	encoded, err := json.Marshal(input)
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

func derefInt(value *int, fallback int) int {
	if value == nil {
		return fallback
	}
	return *value
}

func derefFloat(value *float64) float64 {
	if value == nil {
		return 0
	}
	return *value
}

func roundTo(value float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(value*scale) / scale
}
