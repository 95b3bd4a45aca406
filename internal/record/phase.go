package record

import "strings"

// Phase describes how much of a record is known.
type Phase string

const (
	PhaseExtraction   Phase = "extraction"
	PhaseValidation   Phase = "validation"
	PhaseConfirmation Phase = "confirmation"
)

// Category is the kind of record being collected.
type Category string

const (
	CategoryExercise Category = "exercise"
	CategoryDiet     Category = "diet"
)

// ParseCategory maps a client supplied record_type onto a Category.
func ParseCategory(raw string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategoryExercise:
		return CategoryExercise, true
	case CategoryDiet:
		return CategoryDiet, true
	default:
		return "", false
	}
}

// Intent is what a user reply signals about the collected record.
type Intent string

const (
	IntentConfirm Intent = "confirm"
	IntentReject  Intent = "reject"
)

type intentRule struct {
	Keyword string
	Intent  Intent
}

// intentRules is matched against the lowercased message. Confirmation is
// checked before rejection.
var intentRules = []intentRule{
	{"네", IntentConfirm},
	{"맞아요", IntentConfirm},
	{"저장", IntentConfirm},
	{"기록", IntentConfirm},
	{"완료", IntentConfirm},
	{"끝", IntentConfirm},
	{"ok", IntentConfirm},
	{"yes", IntentConfirm},
	{"아니오", IntentReject},
	{"수정", IntentReject},
	{"바꿔", IntentReject},
	{"아니야", IntentReject},
	{"틀려", IntentReject},
	{"no", IntentReject},
}

// MessageIntent returns the intent signalled by message, or "" when the
// message carries neither a confirmation nor a rejection keyword.
func MessageIntent(message string) Intent {
	lowered := strings.ToLower(message)
	for _, want := range []Intent{IntentConfirm, IntentReject} {
		for _, rule := range intentRules {
			if rule.Intent == want && strings.Contains(lowered, rule.Keyword) {
				return want
			}
		}
	}
	return ""
}

// ResolvePhase picks the next conversation phase from the latest message,
// the record collected so far and the record category. It keeps no state:
// the client resends the partial record on every turn.
//
// First match wins: a confirmation keyword, a rejection keyword, an empty
// record, then required-field completeness for the category. Unknown
// categories with a non-empty record fall back to extraction.
func ResolvePhase(message string, data Fields, category string) Phase {
	switch MessageIntent(message) {
	case IntentConfirm:
		return PhaseConfirmation
	case IntentReject:
		return PhaseValidation
	}
	if data.IsEmpty() {
		return PhaseExtraction
	}

	parsed, ok := ParseCategory(category)
	if !ok {
		return PhaseExtraction
	}
	if len(MissingFields(parsed, data)) == 0 {
		return PhaseConfirmation
	}
	return PhaseValidation
}

// RequiredFields lists the fields a record of the given category must carry
// before it can be confirmed.
func RequiredFields(category Category, data Fields) []string {
	switch category {
	case CategoryExercise:
		switch ClassifyExercise(data.String(FieldExercise)) {
		case ExerciseCardio:
			return []string{FieldExercise, FieldDurationMin}
		case ExerciseBodyweight:
			return []string{FieldExercise, FieldSets, FieldReps}
		default:
			return []string{FieldExercise, FieldWeight, FieldSets, FieldReps}
		}
	case CategoryDiet:
		return []string{FieldFoodName, FieldAmount, FieldMealTime}
	default:
		return nil
	}
}

// MissingFields returns the required fields that are absent or falsy in
// data, in declaration order.
func MissingFields(category Category, data Fields) []string {
	required := RequiredFields(category, data)
	missing := make([]string, 0, len(required))
	for _, field := range required {
		if !data.Present(field) {
			missing = append(missing, field)
		}
	}
	return missing
}
