package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"goldpipe/pkg/core/run"
)

// RunRepo persists run records. Status and timing live in columns for
// querying; the full record rides along as JSON.
type RunRepo struct {
	pool *pgxpool.Pool
}

func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

func (r *RunRepo) Create(ctx context.Context, rec *run.Run) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	query := `
		INSERT INTO runs (id, preset_id, status, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = r.pool.Exec(ctx, query, rec.ID, rec.PresetID, string(rec.Status), payload, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

func (r *RunRepo) Update(ctx context.Context, rec *run.Run) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	query := `
		UPDATE runs
		SET status = $2, payload = $3, finished_at = $4
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, rec.ID, string(rec.Status), payload, rec.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run '%s' not found", rec.ID)
	}
	return nil
}

func (r *RunRepo) Get(ctx context.Context, id string) (*run.Run, error) {
	query := `SELECT payload FROM runs WHERE id = $1`
	var payload []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run '%s' not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	var rec run.Run
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &rec, nil
}
