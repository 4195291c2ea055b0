package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"goldpipe/pkg/core/run"
)

// StageCache is the fingerprint-keyed stage result cache, backed by the
// database when a pool is available and by a local JSON directory otherwise.
// A result, once present for a fingerprint, is never overwritten by Put;
// that insert-if-absent commit is the cross-process at-most-once guard.
type StageCache struct {
	pool    *pgxpool.Pool
	fileDir string
}

// NewStageCache creates a cache instance. With a nil pool it falls back to a
// file cache in dir, defaulting to .cache/stage_results.
func NewStageCache(pool *pgxpool.Pool, dir string) (*StageCache, error) {
	if pool == nil && dir == "" {
		dir = filepath.Join(".cache", "stage_results")
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create stage cache directory: %w", err)
		}
	}
	return &StageCache{pool: pool, fileDir: dir}, nil
}

func (c *StageCache) Get(ctx context.Context, fp string) (*run.StageResult, error) {
	if c.pool != nil {
		query := `SELECT payload FROM stage_results WHERE fingerprint = $1`
		var payload []byte
		err := c.pool.QueryRow(ctx, query, fp).Scan(&payload)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("stage cache query failed: %w", err)
		}
		var sr run.StageResult
		if err := json.Unmarshal(payload, &sr); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cached stage result: %w", err)
		}
		return &sr, nil
	}
	return c.loadFromFile(fp)
}

func (c *StageCache) Put(ctx context.Context, sr *run.StageResult) error {
	payload, err := json.Marshal(sr)
	if err != nil {
		return fmt.Errorf("failed to marshal stage result: %w", err)
	}

	if c.pool != nil {
		query := `
			INSERT INTO stage_results (fingerprint, kind, document_id, success, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (fingerprint) DO NOTHING
		`
		_, err := c.pool.Exec(ctx, query,
			sr.Fingerprint, string(sr.Kind), sr.DocumentID, sr.Success, payload, sr.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save stage result: %w", err)
		}
		return nil
	}

	// O_EXCL gives the same first-writer-wins semantics as ON CONFLICT DO
	// NOTHING for the file backend.
	f, err := os.OpenFile(c.path(sr.Fingerprint), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return fmt.Errorf("failed to write stage result file: %w", err)
	}
	defer f.Close()
	_, err = f.Write(payload)
	return err
}

func (c *StageCache) Replace(ctx context.Context, sr *run.StageResult) error {
	payload, err := json.Marshal(sr)
	if err != nil {
		return fmt.Errorf("failed to marshal stage result: %w", err)
	}

	if c.pool != nil {
		query := `
			INSERT INTO stage_results (fingerprint, kind, document_id, success, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (fingerprint) DO UPDATE SET
				success = EXCLUDED.success,
				payload = EXCLUDED.payload,
				created_at = EXCLUDED.created_at
		`
		_, err := c.pool.Exec(ctx, query,
			sr.Fingerprint, string(sr.Kind), sr.DocumentID, sr.Success, payload, sr.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to replace stage result: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(c.path(sr.Fingerprint), payload, 0o644); err != nil {
		return fmt.Errorf("failed to replace stage result file: %w", err)
	}
	return nil
}

func (c *StageCache) path(fp string) string {
	return filepath.Join(c.fileDir, fp+".json")
}

func (c *StageCache) loadFromFile(fp string) (*run.StageResult, error) {
	data, err := os.ReadFile(c.path(fp))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var sr run.StageResult
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached stage result: %w", err)
	}
	return &sr, nil
}
