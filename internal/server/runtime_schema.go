package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// requiredColumns are the columns the record handlers read or write.
var requiredColumns = []struct {
	table  string
	column string
}{
	{table: "food_items", column: "name"},
	{table: "food_items", column: "serving_size"},
	{table: "food_items", column: "nutrition_source"},
	{table: "exercise_sessions", column: "notes"},
	{table: "exercise_sessions", column: "calories_burned"},
	{table: "exercise_sessions", column: "time_period"},
	{table: "exercise_sessions", column: "input_source"},
	{table: "meal_logs", column: "amount"},
	{table: "meal_logs", column: "meal_time"},
	{table: "meal_logs", column: "input_source"},
	{table: "voice_clips", column: "parsed_data"},
}

// ValidateRuntimeSchema fails fast when the database predates the columns
// the handlers rely on.
func ValidateRuntimeSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("database pool is nil")
	}

	for _, item := range requiredColumns {
		ok, err := columnExists(ctx, pool, item.table, item.column)
		if err != nil {
			return fmt.Errorf(
				"failed checking schema for %s.%s: %w",
				item.table,
				item.column,
				err,
			)
		}
		if !ok {
			return fmt.Errorf(
				"required column %s.%s is missing; run with AUTO_MIGRATE=true",
				item.table,
				item.column,
			)
		}
	}

	return nil
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, tableName, columnName string) (bool, error) {
	table := strings.TrimSpace(tableName)
	column := strings.TrimSpace(columnName)
	if table == "" || column == "" {
		return false, fmt.Errorf("table/column must not be empty")
	}
	var exists bool
	err := pool.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM information_schema.columns
		   WHERE table_schema = current_schema()
		     AND lower(table_name) = lower($1)
		     AND lower(column_name) = lower($2)
		 )`,
		table,
		column,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
