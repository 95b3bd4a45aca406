package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Hyeon6492/LifeBit/internal/events"
	"github.com/Hyeon6492/LifeBit/internal/observability"
	"github.com/Hyeon6492/LifeBit/internal/record"
)

func (a *App) saveExerciseNote(c *gin.Context) {
	var payload exerciseNoteRequest
	if !mustJSON(c, &payload) {
		return
	}
	userID := actingUserID(c, payload.UserID)
	if userID <= 0 {
		writeError(c, http.StatusBadRequest, "user_id is required")
		return
	}
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		writeError(c, http.StatusBadRequest, "name is required")
		return
	}

	weight := payload.Weight
	switch record.ClassifyExercise(name) {
	case record.ExerciseCardio:
		if derefInt(payload.DurationMinutes, 0) <= 0 {
			writeError(c, http.StatusBadRequest, "duration_minutes is required for cardio exercises")
			return
		}
	case record.ExerciseBodyweight:
		if derefInt(payload.Sets, 0) <= 0 || derefInt(payload.Reps, 0) <= 0 {
			writeError(c, http.StatusBadRequest, "sets and reps are required for bodyweight exercises")
			return
		}
		if weight == nil {
			bodyWeight := a.cfg.DefaultBodyWeightKG
			weight = &bodyWeight
		}
	default:
		if derefFloat(weight) <= 0 || derefInt(payload.Sets, 0) <= 0 || derefInt(payload.Reps, 0) <= 0 {
			writeError(c, http.StatusBadRequest, "weight, sets and reps are required for strength exercises")
			return
		}
	}

	now := a.now()
	exerciseDate, ok := parseDate(payload.ExerciseDate, now)
	if !ok {
		writeError(c, http.StatusBadRequest, "exercise_date must be YYYY-MM-DD")
		return
	}
	calories := record.EstimateSessionCalories(name, weight, payload.Sets, payload.Reps, payload.DurationMinutes)
	if payload.CaloriesBurned != nil {
		calories = *payload.CaloriesBurned
	}

	entry := exerciseEntry{
		UserID:          userID,
		Name:            name,
		CatalogID:       payload.ExerciseCatalogID,
		Weight:          weight,
		Sets:            payload.Sets,
		Reps:            payload.Reps,
		DurationMinutes: payload.DurationMinutes,
		CaloriesBurned:  calories,
		ExerciseDate:    exerciseDate,
		TimePeriod:      record.TimePeriodAt(now),
		Source:          events.SourceTyping,
	}

	ctx := c.Request.Context()
	tx, err := a.db.Begin(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to start transaction")
		return
	}
	defer tx.Rollback(ctx)

	id, err := insertExerciseSession(ctx, tx, entry)
	if err != nil {
		log.Printf("save exercise failed user_id=%d err=%v", userID, err)
		writeError(c, http.StatusInternalServerError, fmt.Sprintf("운동 기록 저장 실패: %v", err))
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(c, http.StatusInternalServerError, fmt.Sprintf("운동 기록 저장 실패: %v", err))
		return
	}

	observability.RecordSaved(events.RecordTypeExercise, entry.Source)
	a.publish(ctx, events.NewRecordEvent(events.RecordTypeExercise, id, userID, entry.Source, exercisePayload(entry)))

	c.JSON(http.StatusOK, gin.H{
		"message":         "운동 기록 저장 성공",
		"id":              id,
		"calories_burned": roundTo(calories, 1),
	})
}

func (a *App) saveDietNote(c *gin.Context) {
	var payload dietNoteRequest
	if !mustJSON(c, &payload) {
		return
	}
	userID := actingUserID(c, payload.UserID)
	if userID <= 0 {
		writeError(c, http.StatusBadRequest, "user_id is required")
		return
	}
	foodName := strings.TrimSpace(payload.FoodName)
	if foodName == "" {
		writeError(c, http.StatusBadRequest, "food_name is required")
		return
	}

	now := a.now()
	mealTime, ok := record.ResolveMealTime(payload.MealTime, now)
	if !ok {
		writeError(c, http.StatusBadRequest, "meal_time must be one of 아침, 점심, 저녁, 야식, 간식")
		return
	}
	logDate, ok := parseDate(payload.LogDate, now)
	if !ok {
		writeError(c, http.StatusBadRequest, "log_date must be YYYY-MM-DD")
		return
	}

	ctx := c.Request.Context()
	amount := record.NormalizeAmount(payload.Amount)
	nutrition, nutritionSource := a.completeNutrition(ctx, foodName, amount, payload)
	entry := dietEntry{
		UserID:          userID,
		FoodName:        foodName,
		Amount:          amount,
		MealTime:        mealTime,
		Nutrition:       nutrition,
		NutritionSource: nutritionSource,
		LogDate:         logDate,
		Source:          events.SourceTyping,
	}

	tx, err := a.db.Begin(ctx)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "Failed to start transaction")
		return
	}
	defer tx.Rollback(ctx)

	foodItemID, created, err := findOrCreateFoodItem(ctx, tx, entry.FoodName, entry.Nutrition, entry.NutritionSource)
	if err != nil {
		log.Printf("save diet failed user_id=%d food=%q err=%v", userID, foodName, err)
		writeError(c, http.StatusInternalServerError, fmt.Sprintf("식단 기록 저장 실패: %v", err))
		return
	}
	id, err := insertMealLog(ctx, tx, foodItemID, entry)
	if err != nil {
		log.Printf("save diet failed user_id=%d food=%q err=%v", userID, foodName, err)
		writeError(c, http.StatusInternalServerError, fmt.Sprintf("식단 기록 저장 실패: %v", err))
		return
	}
	if err := tx.Commit(ctx); err != nil {
		writeError(c, http.StatusInternalServerError, fmt.Sprintf("식단 기록 저장 실패: %v", err))
		return
	}

	observability.RecordSaved(events.RecordTypeDiet, entry.Source)
	if created {
		observability.RecordSaved(events.RecordTypeFoodItem, entry.Source)
		a.publish(ctx, events.NewRecordEvent(events.RecordTypeFoodItem, foodItemID, userID, entry.Source, map[string]any{"name": foodName}))
	}
	a.publish(ctx, events.NewRecordEvent(events.RecordTypeDiet, id, userID, entry.Source, dietPayload(entry, foodItemID)))

	c.JSON(http.StatusOK, gin.H{
		"message":      "식단 기록 저장 성공",
		"id":           id,
		"food_item_id": foodItemID,
		"amount":       amount,
		"meal_time":    string(mealTime),
		"nutrition":    entry.Nutrition,
	})
}

// completeNutrition keeps client supplied macros and asks the estimator only
// when at least one of them is missing. The source is nutritionSourceUser
// when nothing was estimated, otherwise the estimator's source.
func (a *App) completeNutrition(ctx context.Context, foodName, amount string, payload dietNoteRequest) (Nutrition, string) {
	supplied := Nutrition{
		Calories: derefFloat(payload.Calories),
		Carbs:    derefFloat(payload.Carbs),
		Protein:  derefFloat(payload.Protein),
		Fat:      derefFloat(payload.Fat),
	}
	if payload.Calories != nil && payload.Carbs != nil && payload.Protein != nil && payload.Fat != nil {
		return supplied, nutritionSourceUser
	}
	estimate, source := a.estimateNutrition(ctx, foodName, amount)
	if payload.Calories != nil {
		estimate.Calories = supplied.Calories
	}
	if payload.Carbs != nil {
		estimate.Carbs = supplied.Carbs
	}
	if payload.Protein != nil {
		estimate.Protein = supplied.Protein
	}
	if payload.Fat != nil {
		estimate.Fat = supplied.Fat
	}
	return estimate, source
}

func (a *App) listDailyExercise(c *gin.Context) {
	userID, day, ok := a.bindDailyQuery(c)
	if !ok {
		return
	}
	items, err := listExerciseSessions(c.Request.Context(), a.db, userID, day)
	if err != nil {
		log.Printf("list exercise failed user_id=%d err=%v", userID, err)
		writeError(c, http.StatusInternalServerError, "Failed to load exercise records")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (a *App) listDailyDiet(c *gin.Context) {
	userID, day, ok := a.bindDailyQuery(c)
	if !ok {
		return
	}
	items, err := listMealLogs(c.Request.Context(), a.db, userID, day)
	if err != nil {
		log.Printf("list diet failed user_id=%d err=%v", userID, err)
		writeError(c, http.StatusInternalServerError, "Failed to load diet records")
		return
	}
	c.JSON(http.StatusOK, items)
}

func (a *App) bindDailyQuery(c *gin.Context) (int64, time.Time, bool) {
	var supplied int64
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, "user_id must be an integer")
			return 0, time.Time{}, false
		}
		supplied = parsed
	}
	userID := actingUserID(c, supplied)
	if userID <= 0 {
		writeError(c, http.StatusBadRequest, "user_id is required")
		return 0, time.Time{}, false
	}
	day, ok := parseDate(c.Query("date"), a.now())
	if !ok {
		writeError(c, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return 0, time.Time{}, false
	}
	return userID, day, true
}

func exercisePayload(entry exerciseEntry) map[string]any {
	return map[string]any{
		"name":             entry.Name,
		"weight":           entry.Weight,
		"sets":             entry.Sets,
		"reps":             entry.Reps,
		"duration_minutes": entry.DurationMinutes,
		"calories_burned":  roundTo(entry.CaloriesBurned, 1),
		"exercise_date":    entry.ExerciseDate.Format(dateLayout),
		"time_period":      string(entry.TimePeriod),
	}
}

func dietPayload(entry dietEntry, foodItemID int64) map[string]any {
	return map[string]any{
		"food_item_id": foodItemID,
		"food_name":    entry.FoodName,
		"amount":       entry.Amount,
		"meal_time":    string(entry.MealTime),
		"calories":     entry.Nutrition.Calories,
		"log_date":     entry.LogDate.Format(dateLayout),
	}
}
