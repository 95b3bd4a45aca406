// Package record holds the rule-based pieces of the record conversation:
// amount canonicalization, phase resolution, exercise classification and
// calorie estimation. Everything here is a pure function of its inputs.
package record

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Fields is a partially filled record as resent by the client on every turn.
type Fields map[string]any

const (
	FieldExercise    = "exercise"
	FieldCategory    = "category"
	FieldWeight      = "weight"
	FieldSets        = "sets"
	FieldReps        = "reps"
	FieldDurationMin = "duration_min"
	FieldCalories    = "calories_burned"
	FieldFoodName    = "food_name"
	FieldAmount      = "amount"
	FieldMealTime    = "meal_time"
)

// FieldsFrom coerces a decoded JSON value into Fields. Lists yield their
// first object element; anything else yields an empty record.
func FieldsFrom(raw any) Fields {
	switch v := raw.(type) {
	case map[string]any:
		return Fields(v)
	case Fields:
		return v
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				return Fields(m)
			}
		}
	}
	return Fields{}
}

// IsEmpty reports whether no field has been collected yet.
func (f Fields) IsEmpty() bool {
	return len(f) == 0
}

// Present reports whether key holds a truthy value. Absent keys, nil, empty
// strings, zero numbers, false and empty collections are all treated as
// missing.
func (f Fields) Present(key string) bool {
	if f == nil {
		return false
	}
	return truthy(f[key])
}

// String returns the value under key as text, or "" when it is not a string
// or number.
func (f Fields) String(key string) string {
	if f == nil {
		return ""
	}
	switch v := f[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Number returns the numeric value under key. Numeric strings such as "60"
// or "60kg" are parsed by their leading number.
func (f Fields) Number(key string) (float64, bool) {
	if f == nil {
		return 0, false
	}
	return toNumber(f[key])
}

// NumberOr returns the numeric value under key or fallback when absent.
func (f Fields) NumberOr(key string, fallback float64) float64 {
	if value, ok := f.Number(key); ok {
		return value
	}
	return fallback
}

func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case bool:
		return v
	case float64:
		return v != 0
	case float32:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case json.Number:
		f, err := v.Float64()
		return err != nil || f != 0
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return true
	}
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		return leadingNumber(v)
	default:
		return 0, false
	}
}

func leadingNumber(raw string) (float64, bool) {
	trimmed := strings.TrimSpace(raw)
	end := 0
	seenDot := false
	for end < len(trimmed) {
		ch := trimmed[end]
		if ch >= '0' && ch <= '9' {
			end++
			continue
		}
		if ch == '.' && !seenDot {
			seenDot = true
			end++
			continue
		}
		if ch == '-' && end == 0 {
			end++
			continue
		}
		break
	}
	if end == 0 {
		return 0, false
	}
	parsed, err := strconv.ParseFloat(trimmed[:end], 64)
	if err != nil {
		return 0, false
	}
	return parsed, true
}
