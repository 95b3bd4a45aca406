package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS food_items (
		food_item_id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		serving_size NUMERIC(8,2) NOT NULL DEFAULT 100,
		calories NUMERIC(8,2) NOT NULL DEFAULT 0,
		carbs NUMERIC(8,2) NOT NULL DEFAULT 0,
		protein NUMERIC(8,2) NOT NULL DEFAULT 0,
		fat NUMERIC(8,2) NOT NULL DEFAULT 0,
		nutrition_source TEXT NOT NULL DEFAULT 'GPT',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`ALTER TABLE food_items ADD COLUMN IF NOT EXISTS nutrition_source TEXT NOT NULL DEFAULT 'GPT'`,
	`CREATE TABLE IF NOT EXISTS exercise_sessions (
		exercise_session_id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		exercise_catalog_id BIGINT,
		notes TEXT,
		weight NUMERIC(6,2),
		sets INTEGER,
		reps INTEGER,
		duration_minutes INTEGER,
		calories_burned NUMERIC(8,1),
		exercise_date DATE NOT NULL DEFAULT CURRENT_DATE,
		time_period TEXT,
		input_source TEXT NOT NULL DEFAULT 'TYPING',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_exercise_sessions_user_date ON exercise_sessions (user_id, exercise_date)`,
	`CREATE TABLE IF NOT EXISTS meal_logs (
		meal_log_id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL,
		food_item_id BIGINT REFERENCES food_items (food_item_id),
		quantity NUMERIC(8,2) NOT NULL DEFAULT 1,
		amount TEXT,
		meal_time TEXT NOT NULL,
		calories NUMERIC(8,2),
		carbs NUMERIC(8,2),
		protein NUMERIC(8,2),
		fat NUMERIC(8,2),
		log_date DATE NOT NULL DEFAULT CURRENT_DATE,
		input_source TEXT NOT NULL DEFAULT 'TYPING',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_meal_logs_user_date ON meal_logs (user_id, log_date)`,
	`CREATE TABLE IF NOT EXISTS voice_clips (
		voice_clip_id UUID PRIMARY KEY,
		user_id BIGINT,
		record_type TEXT NOT NULL,
		transcript TEXT NOT NULL,
		audio_key TEXT,
		status TEXT NOT NULL,
		parsed_data JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the record tables when they are missing. It is safe to run
// on every start. All statements run in one transaction.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return applyStatements(ctx, pool, schemaStatements)
}

func applyStatements(ctx context.Context, pool *pgxpool.Pool, statements []string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
