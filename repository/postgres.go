package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/mapleleafu/cardarena/arena-backend/models"
)

const createRunsTable = `CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	lobby       INTEGER NOT NULL,
	versus      BOOLEAN NOT NULL,
	deck        TEXT NOT NULL,
	stake       INTEGER NOT NULL,
	seed        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	user_ids    TEXT[] NOT NULL,
	winner      TEXT NOT NULL DEFAULT ''
)`

func ConnectToPostgreSQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// RunStore keeps finished run summaries in the runs table.
type RunStore struct {
	db *sql.DB
}

func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

func (s *RunStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createRunsTable); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	return nil
}

func (s *RunStore) SaveRun(ctx context.Context, run models.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, lobby, versus, deck, stake, seed, created_at, finished_at, user_ids, winner)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.Lobby, run.Versus, run.Deck, run.Stake, run.Seed,
		run.CreatedAt.UTC(), run.FinishedAt.UTC(), pq.Array(run.UserIDs), run.Winner)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// RunsByPlayer returns the runs id took part in, newest first.
func (s *RunStore) RunsByPlayer(ctx context.Context, id string) ([]models.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lobby, versus, deck, stake, seed, created_at, finished_at, user_ids, winner
		FROM runs WHERE $1 = ANY(user_ids) ORDER BY created_at DESC`, id)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		var run models.Run
		err := rows.Scan(&run.ID, &run.Lobby, &run.Versus, &run.Deck, &run.Stake, &run.Seed,
			&run.CreatedAt, &run.FinishedAt, pq.Array(&run.UserIDs), &run.Winner)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
