package campaigns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Counters is the delta applied to a campaign after one send.
type Counters struct {
	Completed int
	Failed    int
}

// Store is the persistence the dispatcher and the control service need.
// Every status write is conditional on the expected current status.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (Campaign, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]Campaign, error)
	NextPendingRecipient(ctx context.Context, campaignID uuid.UUID) (Recipient, error)
	ResolveRecipient(ctx context.Context, recipientID uuid.UUID, status RecipientStatus, at time.Time, lastError string) (bool, error)
	Advance(ctx context.Context, campaignID uuid.UUID, nextSendAt time.Time, delta Counters, now time.Time) error
	Complete(ctx context.Context, campaignID uuid.UUID, now time.Time) (bool, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, nextSendAt *time.Time, now time.Time) (bool, error)
}

// Repository is the pgx Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a campaign repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const campaignColumns = `
	id, name, status, min_interval_seconds, max_interval_seconds, business_hours,
	next_send_at, planned_count, completed_count, failed_count,
	started_at, finished_at, created_at, updated_at`

func scanCampaign(row pgx.Row) (Campaign, error) {
	var c Campaign
	var status string
	var hours []byte
	err := row.Scan(
		&c.ID, &c.Name, &status, &c.MinIntervalSeconds, &c.MaxIntervalSeconds, &hours,
		&c.NextSendAt, &c.PlannedCount, &c.CompletedCount, &c.FailedCount,
		&c.StartedAt, &c.FinishedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return Campaign{}, err
	}
	c.Status = Status(status)
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &c.BusinessHours); err != nil {
			return Campaign{}, fmt.Errorf("decode business hours for %s: %w", c.ID, err)
		}
	}
	return c, nil
}

// Get loads one campaign.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Campaign, error) {
	c, err := scanCampaign(r.pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM crm_campaigns WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Campaign{}, ErrCampaignNotFound
	}
	return c, err
}

// ListDue returns active campaigns whose next send time has passed, oldest first.
func (r *Repository) ListDue(ctx context.Context, now time.Time, limit int) ([]Campaign, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+campaignColumns+`
		FROM crm_campaigns
		WHERE status = 'active' AND (next_send_at IS NULL OR next_send_at <= $1)
		ORDER BY next_send_at NULLS FIRST, id
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due campaigns: %w", err)
	}
	defer rows.Close()

	var out []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// NextPendingRecipient returns the oldest pending recipient.
func (r *Repository) NextPendingRecipient(ctx context.Context, campaignID uuid.UUID) (Recipient, error) {
	var rec Recipient
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, campaign_id, client_id, phone, personalized_message, status, sent_at, last_error, created_at
		FROM crm_campaign_recipients
		WHERE campaign_id = $1 AND status = 'pending'
		ORDER BY created_at, id
		LIMIT 1
	`, campaignID).Scan(
		&rec.ID, &rec.CampaignID, &rec.ClientID, &rec.Phone, &rec.PersonalizedMessage,
		&status, &rec.SentAt, &rec.LastError, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Recipient{}, ErrNoPendingRecipients
	}
	if err != nil {
		return Recipient{}, fmt.Errorf("next recipient: %w", err)
	}
	rec.Status = RecipientStatus(status)
	return rec, nil
}

// ResolveRecipient moves a pending recipient to sent or failed. It reports
// false when the recipient had already left pending.
func (r *Repository) ResolveRecipient(ctx context.Context, recipientID uuid.UUID, status RecipientStatus, at time.Time, lastError string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE crm_campaign_recipients
		SET status = $2, sent_at = $3, last_error = NULLIF($4, '')
		WHERE id = $1 AND status = 'pending'
	`, recipientID, string(status), at, lastError)
	if err != nil {
		return false, fmt.Errorf("resolve recipient: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Advance pushes next_send_at forward and bumps the counters.
func (r *Repository) Advance(ctx context.Context, campaignID uuid.UUID, nextSendAt time.Time, delta Counters, now time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE crm_campaigns
		SET next_send_at = $2,
		    completed_count = completed_count + $3,
		    failed_count = failed_count + $4,
		    updated_at = $5
		WHERE id = $1
	`, campaignID, nextSendAt, delta.Completed, delta.Failed, now)
	if err != nil {
		return fmt.Errorf("advance campaign: %w", err)
	}
	return nil
}

// Complete marks an active campaign completed when nothing is pending.
func (r *Repository) Complete(ctx context.Context, campaignID uuid.UUID, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE crm_campaigns
		SET status = 'completed', next_send_at = NULL, finished_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'active'
		  AND NOT EXISTS (
		      SELECT 1 FROM crm_campaign_recipients
		      WHERE campaign_id = $1 AND status = 'pending'
		  )
	`, campaignID, now)
	if err != nil {
		return false, fmt.Errorf("complete campaign: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// TransitionStatus applies from -> to only if the row is still in from.
func (r *Repository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, nextSendAt *time.Time, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE crm_campaigns
		SET status = $3,
		    next_send_at = COALESCE($4::timestamptz, next_send_at),
		    started_at = CASE WHEN $3 = 'active' AND started_at IS NULL THEN $5::timestamptz ELSE started_at END,
		    finished_at = CASE WHEN $3 IN ('completed', 'cancelled') THEN $5 ELSE finished_at END,
		    updated_at = $5
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), nextSendAt, now)
	if err != nil {
		return false, fmt.Errorf("transition campaign: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

var _ Store = (*Repository)(nil)
