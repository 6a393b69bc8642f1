package tags

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewTag is a row to insert as active.
type NewTag struct {
	ClientID uuid.UUID
	Kind     Kind
}

// Repository persists tag rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tag repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DeactivateActive flips every active row of the given clients to inactive
// and returns the number of rows touched.
func (r *Repository) DeactivateActive(ctx context.Context, clientIDs []uuid.UUID, now time.Time) (int, error) {
	if len(clientIDs) == 0 {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE crm_tags SET active = false, updated_at = $2
		WHERE client_id = ANY($1::uuid[]) AND active = true
	`, clientIDs, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate tags: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// InsertActive bulk-inserts fresh active rows in one statement.
func (r *Repository) InsertActive(ctx context.Context, rows []NewTag, now time.Time) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	clientIDs := make([]uuid.UUID, len(rows))
	kinds := make([]string, len(rows))
	for i, row := range rows {
		clientIDs[i] = row.ClientID
		kinds[i] = string(row.Kind)
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO crm_tags (client_id, kind, active, created_at, updated_at)
		SELECT t.client_id, t.kind, true, $3, $3
		FROM unnest($1::uuid[], $2::text[]) AS t(client_id, kind)
	`, clientIDs, kinds, now)
	if err != nil {
		return 0, fmt.Errorf("insert tags: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
