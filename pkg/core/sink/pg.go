package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"goldpipe/pkg/core/preset"
)

// PGSink upserts gold outputs into the gold_outputs table, keyed by
// document. Re-delivery after a reused combine result is a no-op update.
type PGSink struct {
	pool *pgxpool.Pool
}

func NewPGSink(pool *pgxpool.Pool) *PGSink {
	return &PGSink{pool: pool}
}

func (s *PGSink) Write(ctx context.Context, _ preset.DestDescriptor, documentID, gold string) error {
	query := `
		INSERT INTO gold_outputs (document_id, body, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (document_id) DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = NOW()
	`
	if _, err := s.pool.Exec(ctx, query, documentID, gold); err != nil {
		return fmt.Errorf("failed to store gold output for '%s': %w", documentID, err)
	}
	return nil
}
