package record

import (
	"strings"
	"time"
)

// MealTime is the fixed meal-time enumeration stored with each diet record.
type MealTime string

const (
	MealBreakfast MealTime = "breakfast"
	MealLunch     MealTime = "lunch"
	MealDinner    MealTime = "dinner"
	MealMidnight  MealTime = "midnight"
	MealSnack     MealTime = "snack"
)

var mealTimeLabels = map[MealTime]string{
	MealBreakfast: "아침",
	MealLunch:     "점심",
	MealDinner:    "저녁",
	MealMidnight:  "야식",
	MealSnack:     "간식",
}

type mealTimeRule struct {
	Keyword  string
	MealTime MealTime
}

var mealTimeRules = []mealTimeRule{
	{"야식", MealMidnight},
	{"midnight", MealMidnight},
	{"late-night", MealMidnight},
	{"아침", MealBreakfast},
	{"조식", MealBreakfast},
	{"breakfast", MealBreakfast},
	{"morning", MealBreakfast},
	{"점심", MealLunch},
	{"중식", MealLunch},
	{"lunch", MealLunch},
	{"저녁", MealDinner},
	{"석식", MealDinner},
	{"dinner", MealDinner},
	{"간식", MealSnack},
	{"snack", MealSnack},
}

// Label returns the Korean display label.
func (m MealTime) Label() string {
	return mealTimeLabels[m]
}

// ParseMealTime maps a Korean or English meal label onto MealTime.
func ParseMealTime(raw string) (MealTime, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return "", false
	}
	for _, rule := range mealTimeRules {
		if strings.Contains(normalized, rule.Keyword) {
			return rule.MealTime, true
		}
	}
	return "", false
}

// MealTimeAt infers a meal time from the hour of t.
func MealTimeAt(t time.Time) MealTime {
	hour := t.Hour()
	switch {
	case hour >= 5 && hour < 11:
		return MealBreakfast
	case hour >= 11 && hour < 17:
		return MealLunch
	case hour >= 17 && hour < 22:
		return MealDinner
	case hour >= 22:
		return MealMidnight
	default:
		return MealSnack
	}
}

// ResolveMealTime parses raw, inferring from now when raw is empty. The
// second result is false only for a non-empty label that matches nothing.
func ResolveMealTime(raw string, now time.Time) (MealTime, bool) {
	if strings.TrimSpace(raw) == "" {
		return MealTimeAt(now), true
	}
	return ParseMealTime(raw)
}

var dietTranscriptKeywords = []string{"밥", "먹었", "식사", "점심", "저녁", "아침", "간식"}

// RouteTranscript decides which record a free-form transcript describes.
func RouteTranscript(text string) Category {
	for _, keyword := range dietTranscriptKeywords {
		if strings.Contains(text, keyword) {
			return CategoryDiet
		}
	}
	return CategoryExercise
}
