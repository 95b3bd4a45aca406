package server

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Hyeon6492/LifeBit/internal/record"
)

const (
	exerciseNameFallback = "기타 운동"
	bodyWeightLabel      = "체중"
)

// exerciseEntry is an exercise session ready to be written.
type exerciseEntry struct {
	UserID          int64
	Name            string
	CatalogID       *int64
	Weight          *float64
	Sets            *int
	Reps            *int
	DurationMinutes *int
	CaloriesBurned  float64
	ExerciseDate    time.Time
	TimePeriod      record.TimePeriod
	Source          string
}

// dietEntry is a meal log ready to be written. Nutrition covers the eaten
// amount, not 100 g.
type dietEntry struct {
	UserID    int64
	FoodName  string
	Amount    string
	MealTime  record.MealTime
	Nutrition Nutrition
	// NutritionSource is the nutrition_source a new food item gets.
	NutritionSource string
	LogDate         time.Time
	Source          string
}

type voiceClipRow struct {
	ID         string
	UserID     *int64
	RecordType string
	Transcript string
	AudioKey   string
	Status     string
	ParsedData any
}

func insertExerciseSession(ctx context.Context, q dbQuerier, entry exerciseEntry) (int64, error) {
	var id int64
	err := q.QueryRow(
		ctx,
		`INSERT INTO exercise_sessions (
		   user_id, exercise_catalog_id, notes, weight, sets, reps,
		   duration_minutes, calories_burned, exercise_date, time_period, input_source
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING exercise_session_id`,
		entry.UserID,
		entry.CatalogID,
		entry.Name,
		entry.Weight,
		entry.Sets,
		entry.Reps,
		entry.DurationMinutes,
		roundTo(entry.CaloriesBurned, 1),
		entry.ExerciseDate,
		string(entry.TimePeriod),
		entry.Source,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert exercise session: %w", err)
	}
	return id, nil
}

// foodItemRow is the part of a food_items row the handlers branch on.
type foodItemRow struct {
	ID              int64
	NutritionSource string
}

func findFoodItem(ctx context.Context, q dbQuerier, name string) (foodItemRow, bool, error) {
	var row foodItemRow
	err := q.QueryRow(
		ctx,
		`SELECT food_item_id, nutrition_source FROM food_items WHERE name = $1`,
		name,
	).Scan(&row.ID, &row.NutritionSource)
	if errors.Is(err, pgx.ErrNoRows) {
		return foodItemRow{}, false, nil
	}
	if err != nil {
		return foodItemRow{}, false, fmt.Errorf("find food item %q: %w", name, err)
	}
	return row, true, nil
}

// findOrCreateFoodItem returns the id of the food item called name, creating
// it with nutrition and source when it does not exist yet. created reports
// whether this call inserted the row.
func findOrCreateFoodItem(ctx context.Context, q dbQuerier, name string, nutrition Nutrition, source string) (int64, bool, error) {
	var id int64
	err := q.QueryRow(
		ctx,
		`INSERT INTO food_items (name, serving_size, calories, carbs, protein, fat, nutrition_source)
		 VALUES ($1, 100, $2, $3, $4, $5, $6)
		 ON CONFLICT (name) DO NOTHING
		 RETURNING food_item_id`,
		name,
		nutrition.Calories,
		nutrition.Carbs,
		nutrition.Protein,
		nutrition.Fat,
		source,
	).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("insert food item %q: %w", name, err)
	}

	row, found, err := findFoodItem(ctx, q, name)
	if err != nil {
		return 0, false, err
	}
	if !found {
		return 0, false, fmt.Errorf("food item %q vanished after conflict", name)
	}
	return row.ID, false, nil
}

// refreshFallbackFoodItem replaces fallback nutrition with a real estimate.
// Rows whose values came from the model or a user are left alone.
func refreshFallbackFoodItem(ctx context.Context, q dbQuerier, id int64, nutrition Nutrition) (bool, error) {
	tag, err := q.Exec(
		ctx,
		`UPDATE food_items
		 SET calories = $2, carbs = $3, protein = $4, fat = $5, nutrition_source = $6
		 WHERE food_item_id = $1 AND nutrition_source = $7`,
		id,
		nutrition.Calories,
		nutrition.Carbs,
		nutrition.Protein,
		nutrition.Fat,
		nutritionSourceGPT,
		nutritionSourceFallback,
	)
	if err != nil {
		return false, fmt.Errorf("refresh food item %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func insertMealLog(ctx context.Context, q dbQuerier, foodItemID int64, entry dietEntry) (int64, error) {
	var id int64
	err := q.QueryRow(
		ctx,
		`INSERT INTO meal_logs (
		   user_id, food_item_id, quantity, amount, meal_time,
		   calories, carbs, protein, fat, log_date, input_source
		 ) VALUES ($1, $2, 1, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING meal_log_id`,
		entry.UserID,
		foodItemID,
		entry.Amount,
		string(entry.MealTime),
		entry.Nutrition.Calories,
		entry.Nutrition.Carbs,
		entry.Nutrition.Protein,
		entry.Nutrition.Fat,
		entry.LogDate,
		entry.Source,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert meal log: %w", err)
	}
	return id, nil
}

func insertVoiceClip(ctx context.Context, q dbQuerier, clip voiceClipRow) error {
	var audioKey *string
	if strings.TrimSpace(clip.AudioKey) != "" {
		audioKey = &clip.AudioKey
	}
	_, err := q.Exec(
		ctx,
		`INSERT INTO voice_clips (
		   voice_clip_id, user_id, record_type, transcript, audio_key, status, parsed_data
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)`,
		clip.ID,
		clip.UserID,
		clip.RecordType,
		clip.Transcript,
		audioKey,
		clip.Status,
		mustMarshalJSON(clip.ParsedData),
	)
	if err != nil {
		return fmt.Errorf("insert voice clip: %w", err)
	}
	return nil
}

func listExerciseSessions(ctx context.Context, q dbQuerier, userID int64, day time.Time) ([]exerciseListItem, error) {
	rows, err := q.Query(
		ctx,
		`SELECT exercise_session_id, notes, weight::float8, sets, reps, duration_minutes
		 FROM exercise_sessions
		 WHERE user_id = $1 AND exercise_date = $2
		 ORDER BY exercise_session_id ASC`,
		userID,
		day,
	)
	if err != nil {
		return nil, fmt.Errorf("list exercise sessions: %w", err)
	}
	defer rows.Close()

	items := make([]exerciseListItem, 0)
	for rows.Next() {
		var (
			id       int64
			name     *string
			weight   *float64
			sets     *int
			reps     *int
			duration *int
		)
		if err := rows.Scan(&id, &name, &weight, &sets, &reps, &duration); err != nil {
			return nil, fmt.Errorf("scan exercise session: %w", err)
		}
		items = append(items, exerciseListItem{
			ExerciseSessionID: id,
			Name:              exerciseDisplayName(name),
			Weight:            weightLabel(weight),
			Sets:              positiveOr(sets, 1),
			Reps:              positiveOr(reps, 1),
			Time:              fmt.Sprintf("%d분", derefInt(duration, 0)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exercise sessions: %w", err)
	}
	return items, nil
}

func listMealLogs(ctx context.Context, q dbQuerier, userID int64, day time.Time) ([]dietListItem, error) {
	rows, err := q.Query(
		ctx,
		`SELECT m.meal_log_id, COALESCE(f.name, ''), COALESCE(m.amount, ''), m.meal_time,
		        COALESCE(m.calories, 0)::float8, COALESCE(m.carbs, 0)::float8,
		        COALESCE(m.protein, 0)::float8, COALESCE(m.fat, 0)::float8
		 FROM meal_logs m
		 LEFT JOIN food_items f ON f.food_item_id = m.food_item_id
		 WHERE m.user_id = $1 AND m.log_date = $2
		 ORDER BY m.meal_log_id ASC`,
		userID,
		day,
	)
	if err != nil {
		return nil, fmt.Errorf("list meal logs: %w", err)
	}
	defer rows.Close()

	items := make([]dietListItem, 0)
	for rows.Next() {
		var item dietListItem
		if err := rows.Scan(
			&item.MealLogID,
			&item.FoodName,
			&item.Amount,
			&item.MealTime,
			&item.Calories,
			&item.Carbs,
			&item.Protein,
			&item.Fat,
		); err != nil {
			return nil, fmt.Errorf("scan meal log: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meal logs: %w", err)
	}
	return items, nil
}

func exerciseDisplayName(name *string) string {
	if name == nil || strings.TrimSpace(*name) == "" {
		return exerciseNameFallback
	}
	return *name
}

func weightLabel(weight *float64) string {
	if weight == nil || *weight <= 0 {
		return bodyWeightLabel
	}
	return strconv.FormatFloat(*weight, 'f', -1, 64) + "kg"
}

func positiveOr(value *int, fallback int) int {
	if value == nil || *value <= 0 {
		return fallback
	}
	return *value
}
