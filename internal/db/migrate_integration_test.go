//go:build integration

package db

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("lifebit"),
		postgrescontainer.WithUsername("lifebit"),
		postgrescontainer.WithPassword("lifebit"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := Connect(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, waitForPing(ctx, pool.Ping))
	return pool
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)

	require.NoError(t, Migrate(ctx, pool))
	require.NoError(t, Migrate(ctx, pool))

	for _, table := range []string{"food_items", "exercise_sessions", "meal_logs", "voice_clips"} {
		var exists bool
		err := pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_schema = 'public' AND table_name = $1
			)`, table).Scan(&exists)
		require.NoError(t, err)
		require.True(t, exists, "table %s should exist", table)
	}

	var foodItemID int64
	err := pool.QueryRow(ctx, `INSERT INTO food_items (name) VALUES ('계란') RETURNING food_item_id`).Scan(&foodItemID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `INSERT INTO food_items (name) VALUES ('계란')`)
	require.Error(t, err, "food item names are unique")

	var source string
	require.NoError(t, pool.QueryRow(ctx, `SELECT nutrition_source FROM food_items WHERE food_item_id = $1`, foodItemID).Scan(&source))
	require.Equal(t, "GPT", source)
}

func TestMigrateRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	pool := startPostgres(t)

	err := applyStatements(ctx, pool, []string{
		`CREATE TABLE half_applied (id BIGSERIAL PRIMARY KEY)`,
		`CREATE TABLE broken (`,
	})
	require.ErrorContains(t, err, "schema statement 2")

	var exists bool
	require.NoError(t, pool.QueryRow(ctx, `SELECT to_regclass('public.half_applied') IS NOT NULL`).Scan(&exists))
	require.False(t, exists, "earlier statements must roll back")
}

func waitForPing(ctx context.Context, ping func(context.Context) error) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		err := ping(ctx)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
