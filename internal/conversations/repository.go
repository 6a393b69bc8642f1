package conversations

import (
	"context"
	"errors"
	"fmt"

	"whatsapp_crm_backend/internal/signals"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const lastMessagePreviewLen = 500

var ErrMissingPhone = errors.New("phone is required when no client is given")

// Repository writes clients, conversations and messages in one transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a conversations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordMessage upserts the client and its WhatsApp conversation, then
// appends the message. A message whose external id was already stored is
// reported as Duplicate and changes nothing. Inbound messages bump the
// unread counter; outbound ones leave it.
func (r *Repository) RecordMessage(ctx context.Context, in MessageInput) (out Recorded, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Recorded{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if in.ClientID != nil {
		out.ClientID = *in.ClientID
	} else {
		if in.Phone == "" {
			return Recorded{}, ErrMissingPhone
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO crm_clients (phone, name, classification_pending)
			VALUES ($1, $2, true)
			ON CONFLICT (phone) DO UPDATE
			SET name = CASE WHEN crm_clients.name = '' THEN EXCLUDED.name ELSE crm_clients.name END,
			    updated_at = now()
			RETURNING id, (xmax = 0)
		`, in.Phone, in.PushName).Scan(&out.ClientID, &out.ClientCreated)
		if err != nil {
			return Recorded{}, fmt.Errorf("upsert client: %w", err)
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO crm_conversations (client_id, channel)
		VALUES ($1, $2)
		ON CONFLICT (client_id, channel) DO UPDATE SET updated_at = now()
		RETURNING id
	`, out.ClientID, signals.ChannelWhatsApp).Scan(&out.ConversationID)
	if err != nil {
		return Recorded{}, fmt.Errorf("upsert conversation: %w", err)
	}

	var messageID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO crm_messages (conversation_id, external_id, sent_at, direction, content, sent_via)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, NULLIF($6, ''))
		ON CONFLICT (external_id) WHERE external_id IS NOT NULL DO NOTHING
		RETURNING id
	`, out.ConversationID, in.ExternalID, in.SentAt, in.Direction, in.Content, in.SentVia).Scan(&messageID)
	if errors.Is(err, pgx.ErrNoRows) {
		out.Duplicate = true
		err = tx.Commit(ctx)
		return out, err
	}
	if err != nil {
		return Recorded{}, fmt.Errorf("insert message: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE crm_conversations
		SET last_interaction_at = GREATEST(COALESCE(last_interaction_at, $2), $2),
		    last_message_text = CASE
		        WHEN last_interaction_at IS NULL OR last_interaction_at <= $2 THEN $3
		        ELSE last_message_text END,
		    unread_count = unread_count + CASE WHEN $4 = 'inbound' THEN 1 ELSE 0 END,
		    updated_at = now()
		WHERE id = $1
	`, out.ConversationID, in.SentAt, preview(in.Content), in.Direction)
	if err != nil {
		return Recorded{}, fmt.Errorf("touch conversation: %w", err)
	}

	err = tx.Commit(ctx)
	return out, err
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= lastMessagePreviewLen {
		return s
	}
	return string(r[:lastMessagePreviewLen])
}

var _ Recorder = (*Repository)(nil)
