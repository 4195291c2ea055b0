package content

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore implements Store on top of Postgres. The variable mapping and tags
// are stored as JSONB alongside the body text.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates a Postgres-backed content store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Get(ctx context.Context, id string) (*Content, error) {
	query := `
		SELECT id, name, kind, body, vars, tags, description, created_at, updated_at
		FROM content_pieces
		WHERE id = $1 AND NOT deleted
	`
	row := s.pool.QueryRow(ctx, query, id)
	c, err := scanContent(row)
	if err == pgx.ErrNoRows {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load content '%s': %w", id, err)
	}
	return c, nil
}

func (s *PGStore) List(ctx context.Context, kind Kind) ([]*Content, error) {
	query := `
		SELECT id, name, kind, body, vars, tags, description, created_at, updated_at
		FROM content_pieces
		WHERE NOT deleted AND ($1 = '' OR kind = $1)
		ORDER BY name
	`
	rows, err := s.pool.Query(ctx, query, string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to list content: %w", err)
	}
	defer rows.Close()

	var results []*Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content row: %w", err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (s *PGStore) Put(ctx context.Context, c *Content) error {
	if c.ID == "" {
		return fmt.Errorf("content ID cannot be empty")
	}
	if !ValidKind(c.Kind) {
		return fmt.Errorf("unknown content kind '%s' for '%s'", c.Kind, c.ID)
	}
	if err := checkAcyclic(ctx, s, c); err != nil {
		return err
	}

	varsJSON, err := json.Marshal(c.Vars)
	if err != nil {
		return fmt.Errorf("failed to marshal vars for '%s': %w", c.ID, err)
	}
	tagsJSON, err := json.Marshal(c.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags for '%s': %w", c.ID, err)
	}

	query := `
		INSERT INTO content_pieces (id, name, kind, body, vars, description, tags, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, NOW(), NOW())
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			kind = EXCLUDED.kind,
			body = EXCLUDED.body,
			vars = EXCLUDED.vars,
			description = EXCLUDED.description,
			tags = EXCLUDED.tags,
			deleted = false,
			updated_at = NOW()
	`
	_, err = s.pool.Exec(ctx, query, c.ID, c.Name, string(c.Kind), c.Body, varsJSON, tagsJSON, c.Description)
	if err != nil {
		return fmt.Errorf("failed to save content '%s': %w", c.ID, err)
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	query := `UPDATE content_pieces SET deleted = true, updated_at = NOW() WHERE id = $1 AND NOT deleted`
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete content '%s': %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{ID: id}
	}
	return nil
}

func scanContent(row pgx.Row) (*Content, error) {
	var c Content
	var kindStr string
	var varsJSON, tagsJSON []byte

	if err := row.Scan(&c.ID, &c.Name, &kindStr, &c.Body, &varsJSON, &tagsJSON,
		&c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Kind = Kind(kindStr)

	if len(varsJSON) > 0 {
		if err := json.Unmarshal(varsJSON, &c.Vars); err != nil {
			return nil, fmt.Errorf("failed to unmarshal vars: %w", err)
		}
	}
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &c.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	return &c, nil
}
