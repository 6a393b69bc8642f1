package priority

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists conversation scores.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a priority repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpdatePriority writes score and tier unless the conversation carries a
// manual override. It reports whether a row was written.
func (r *Repository) UpdatePriority(ctx context.Context, conversationID uuid.UUID, score int, tier Tier, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE crm_conversations
		SET priority_score = $2, priority_tier = $3, priority_updated_at = $4, updated_at = $4
		WHERE id = $1 AND manual_priority_override = false
	`, conversationID, score, string(tier), now)
	if err != nil {
		return false, fmt.Errorf("update priority: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
