package record

import (
	"math"
	"strings"
	"time"
)

// ExerciseKind decides which fields an exercise record needs.
type ExerciseKind string

const (
	ExerciseCardio     ExerciseKind = "cardio"
	ExerciseBodyweight ExerciseKind = "bodyweight"
	ExerciseStrength   ExerciseKind = "strength"
)

// Category labels used by the model replies and the calorie estimator.
const (
	CategoryLabelCardio   = "유산소운동"
	CategoryLabelStrength = "근력운동"
)

type exerciseRule struct {
	Keyword string
	Kind    ExerciseKind
}

var exerciseRules = []exerciseRule{
	{"달리기", ExerciseCardio},
	{"조깅", ExerciseCardio},
	{"워킹", ExerciseCardio},
	{"걷기", ExerciseCardio},
	{"수영", ExerciseCardio},
	{"자전거", ExerciseCardio},
	{"사이클링", ExerciseCardio},
	{"줄넘기", ExerciseCardio},
	{"등산", ExerciseCardio},
	{"하이킹", ExerciseCardio},
	{"트레드밀", ExerciseCardio},
	{"런닝머신", ExerciseCardio},
	{"일립티컬", ExerciseCardio},
	{"푸시업", ExerciseBodyweight},
	{"풀업", ExerciseBodyweight},
	{"플랭크", ExerciseBodyweight},
	{"크런치", ExerciseBodyweight},
	{"싯업", ExerciseBodyweight},
	{"버피", ExerciseBodyweight},
}

// ClassifyExercise maps an exercise name to its kind. Cardio keywords take
// precedence over bodyweight keywords; anything unmatched is strength work.
func ClassifyExercise(name string) ExerciseKind {
	lowered := strings.ToLower(name)
	for _, want := range []ExerciseKind{ExerciseCardio, ExerciseBodyweight} {
		for _, rule := range exerciseRules {
			if rule.Kind == want && strings.Contains(lowered, rule.Keyword) {
				return want
			}
		}
	}
	return ExerciseStrength
}

type cardioRate struct {
	Keywords []string
	PerMin   float64
}

// cardioRates are kcal per minute by exercise family; the first family with
// a matching keyword wins.
var cardioRates = []cardioRate{
	{Keywords: []string{"달리기", "조깅", "런닝"}, PerMin: 10},
	{Keywords: []string{"걷기", "워킹"}, PerMin: 4},
	{Keywords: []string{"수영"}, PerMin: 12},
	{Keywords: []string{"자전거", "사이클"}, PerMin: 8},
}

const (
	defaultCardioRate     = 7.0
	defaultStrengthWeight = 70.0
	strengthLoadFactor    = 0.05
	minutesPerSet         = 2.0
	kcalPerStrengthMinute = 5.0
)

// EstimateCalories estimates calories burned for a collected exercise record.
// Records whose category is 유산소운동 use duration × a per-family rate;
// everything else uses (weight × sets × reps × 0.05) + (sets × 2 × 5).
// Missing weight defaults to 70, missing sets/reps to 1 and missing
// duration to 0. The result is rounded to one decimal place.
func EstimateCalories(data Fields) float64 {
	if data.String(FieldCategory) == CategoryLabelCardio {
		duration := data.NumberOr(FieldDurationMin, 0)
		return roundTenth(duration * CardioRate(data.String(FieldExercise)))
	}
	weight := data.NumberOr(FieldWeight, defaultStrengthWeight)
	sets := data.NumberOr(FieldSets, 1)
	reps := data.NumberOr(FieldReps, 1)
	return roundTenth(strengthCalories(weight, sets, reps))
}

// EstimateSessionCalories estimates calories for a directly submitted
// session, deriving the category from the exercise name.
func EstimateSessionCalories(name string, weight *float64, sets, reps, durationMin *int) float64 {
	data := Fields{FieldExercise: name}
	if ClassifyExercise(name) == ExerciseCardio {
		data[FieldCategory] = CategoryLabelCardio
	} else {
		data[FieldCategory] = CategoryLabelStrength
	}
	if weight != nil {
		data[FieldWeight] = *weight
	}
	if sets != nil {
		data[FieldSets] = float64(*sets)
	}
	if reps != nil {
		data[FieldReps] = float64(*reps)
	}
	if durationMin != nil {
		data[FieldDurationMin] = float64(*durationMin)
	}
	return EstimateCalories(data)
}

// CardioRate returns kcal per minute for a cardio exercise name.
func CardioRate(name string) float64 {
	lowered := strings.ToLower(name)
	for _, family := range cardioRates {
		for _, keyword := range family.Keywords {
			if strings.Contains(lowered, keyword) {
				return family.PerMin
			}
		}
	}
	return defaultCardioRate
}

func strengthCalories(weight, sets, reps float64) float64 {
	estimatedMinutes := sets * minutesPerSet
	return weight*sets*reps*strengthLoadFactor + estimatedMinutes*kcalPerStrengthMinute
}

func roundTenth(value float64) float64 {
	return math.Round(value*10) / 10
}

// TimePeriod buckets the hour an exercise was logged.
type TimePeriod string

const (
	TimePeriodMorning   TimePeriod = "morning"
	TimePeriodAfternoon TimePeriod = "afternoon"
	TimePeriodEvening   TimePeriod = "evening"
	TimePeriodNight     TimePeriod = "night"
)

// TimePeriodAt classifies t by local hour: 5-12 morning, 12-18 afternoon,
// 18-22 evening, otherwise night.
func TimePeriodAt(t time.Time) TimePeriod {
	hour := t.Hour()
	switch {
	case hour >= 5 && hour < 12:
		return TimePeriodMorning
	case hour >= 12 && hour < 18:
		return TimePeriodAfternoon
	case hour >= 18 && hour < 22:
		return TimePeriodEvening
	default:
		return TimePeriodNight
	}
}
