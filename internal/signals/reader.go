package signals

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrConversationNotFound = errors.New("conversation not found")

// Reader runs the read-only signal queries.
type Reader struct {
	pool *pgxpool.Pool
}

// NewReader creates a signal reader.
func NewReader(pool *pgxpool.Pool) *Reader {
	return &Reader{pool: pool}
}

// ListClientIDs returns every client ordered by creation.
func (r *Reader) ListClientIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM crm_clients ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListScorableConversations returns every conversation without a manual override.
func (r *Reader) ListScorableConversations(ctx context.Context) ([]Target, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, client_id, manual_priority_override
		FROM crm_conversations
		WHERE channel = $1 AND manual_priority_override = false
		ORDER BY created_at, id
	`, ChannelWhatsApp)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []Target
	for rows.Next() {
		var t Target
		if err := rows.Scan(&t.ConversationID, &t.ClientID, &t.ManualPriorityOverride); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetConversationTarget loads a single conversation, including overridden ones.
func (r *Reader) GetConversationTarget(ctx context.Context, conversationID uuid.UUID) (Target, error) {
	var t Target
	err := r.pool.QueryRow(ctx, `
		SELECT id, client_id, manual_priority_override
		FROM crm_conversations WHERE id = $1
	`, conversationID).Scan(&t.ConversationID, &t.ClientID, &t.ManualPriorityOverride)
	if errors.Is(err, pgx.ErrNoRows) {
		return Target{}, ErrConversationNotFound
	}
	return t, err
}

// LoadBundles assembles one bundle per requested client that exists.
func (r *Reader) LoadBundles(ctx context.Context, clientIDs []uuid.UUID) (map[uuid.UUID]*Bundle, error) {
	bundles := make(map[uuid.UUID]*Bundle, len(clientIDs))
	if len(clientIDs) == 0 {
		return bundles, nil
	}

	if err := r.loadClients(ctx, clientIDs, bundles); err != nil {
		return nil, err
	}
	if err := r.loadConversations(ctx, clientIDs, bundles); err != nil {
		return nil, err
	}
	if err := r.loadLastMessages(ctx, clientIDs, bundles); err != nil {
		return nil, err
	}
	if err := r.loadProducts(ctx, clientIDs, bundles); err != nil {
		return nil, err
	}
	if err := r.loadSales(ctx, clientIDs, bundles); err != nil {
		return nil, err
	}
	if err := r.loadActiveTags(ctx, clientIDs, bundles); err != nil {
		return nil, err
	}
	return bundles, nil
}

func (r *Reader) loadClients(ctx context.Context, ids []uuid.UUID, out map[uuid.UUID]*Bundle) error {
	rows, err := r.pool.Query(ctx, `SELECT id FROM crm_clients WHERE id = ANY($1::uuid[])`, ids)
	if err != nil {
		return fmt.Errorf("load clients: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return err
		}
		out[id] = &Bundle{ClientID: id}
	}
	return rows.Err()
}

func (r *Reader) loadConversations(ctx context.Context, ids []uuid.UUID, out map[uuid.UUID]*Bundle) error {
	rows, err := r.pool.Query(ctx, `
		SELECT client_id, id, last_interaction_at, manual_priority_override
		FROM crm_conversations
		WHERE client_id = ANY($1::uuid[]) AND channel = $2
	`, ids, ChannelWhatsApp)
	if err != nil {
		return fmt.Errorf("load conversations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var clientID uuid.UUID
		var conv Conversation
		if err := rows.Scan(&clientID, &conv.ID, &conv.LastInteractionAt, &conv.ManualPriorityOverride); err != nil {
			return err
		}
		if b, ok := out[clientID]; ok {
			b.Conversation = &conv
		}
	}
	return rows.Err()
}

func (r *Reader) loadLastMessages(ctx context.Context, ids []uuid.UUID, out map[uuid.UUID]*Bundle) error {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (c.client_id) c.client_id, m.sent_at, m.direction
		FROM crm_conversations c
		JOIN crm_messages m ON m.conversation_id = c.id
		WHERE c.client_id = ANY($1::uuid[]) AND c.channel = $2
		ORDER BY c.client_id, m.sent_at DESC, m.id DESC
	`, ids, ChannelWhatsApp)
	if err != nil {
		return fmt.Errorf("load last messages: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var clientID uuid.UUID
		var msg Message
		var direction string
		if err := rows.Scan(&clientID, &msg.At, &direction); err != nil {
			return err
		}
		msg.Direction = Direction(direction)
		if b, ok := out[clientID]; ok {
			b.LastMessage = &msg
		}
	}
	return rows.Err()
}

func (r *Reader) loadProducts(ctx context.Context, ids []uuid.UUID, out map[uuid.UUID]*Bundle) error {
	rows, err := r.pool.Query(ctx, `
		SELECT client_id, id, type, status, calls_total, calls_completed, expected_end_date
		FROM crm_products
		WHERE client_id = ANY($1::uuid[]) AND active = true
		ORDER BY client_id, created_at, id
	`, ids)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}

	type ref struct {
		clientID uuid.UUID
		index    int
	}
	index := make(map[uuid.UUID]ref)
	for rows.Next() {
		var clientID uuid.UUID
		var p Product
		if err := rows.Scan(&clientID, &p.ID, &p.Type, &p.Status, &p.CallsTotal, &p.CallsCompleted, &p.ExpectedEndDate); err != nil {
			rows.Close()
			return err
		}
		b, ok := out[clientID]
		if !ok {
			continue
		}
		b.Products = append(b.Products, p)
		index[p.ID] = ref{clientID: clientID, index: len(b.Products) - 1}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if len(index) == 0 {
		return nil
	}

	productIDs := make([]uuid.UUID, 0, len(index))
	for id := range index {
		productIDs = append(productIDs, id)
	}

	callRows, err := r.pool.Query(ctx, `
		SELECT product_id, scheduled_at, completed_at, satisfaction_survey_sent, transcript
		FROM crm_calls
		WHERE product_id = ANY($1::uuid[])
		ORDER BY product_id, scheduled_at NULLS LAST, id
	`, productIDs)
	if err != nil {
		return fmt.Errorf("load calls: %w", err)
	}
	defer callRows.Close()
	for callRows.Next() {
		var productID uuid.UUID
		var c Call
		if err := callRows.Scan(&productID, &c.ScheduledAt, &c.CompletedAt, &c.SatisfactionSurveySent, &c.Transcript); err != nil {
			return err
		}
		ref, ok := index[productID]
		if !ok {
			continue
		}
		p := &out[ref.clientID].Products[ref.index]
		p.Calls = append(p.Calls, c)
	}
	return callRows.Err()
}

func (r *Reader) loadSales(ctx context.Context, ids []uuid.UUID, out map[uuid.UUID]*Bundle) error {
	rows, err := r.pool.Query(ctx, `
		SELECT client_id, status FROM crm_sales
		WHERE client_id = ANY($1::uuid[]) AND active = true
	`, ids)
	if err != nil {
		return fmt.Errorf("load sales: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var clientID uuid.UUID
		var s Sale
		if err := rows.Scan(&clientID, &s.Status); err != nil {
			return err
		}
		if b, ok := out[clientID]; ok {
			b.Sales = append(b.Sales, s)
		}
	}
	return rows.Err()
}

func (r *Reader) loadActiveTags(ctx context.Context, ids []uuid.UUID, out map[uuid.UUID]*Bundle) error {
	rows, err := r.pool.Query(ctx, `
		SELECT client_id, kind FROM crm_tags
		WHERE client_id = ANY($1::uuid[]) AND active = true
		ORDER BY client_id, kind
	`, ids)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var clientID uuid.UUID
		var kind string
		if err := rows.Scan(&clientID, &kind); err != nil {
			return err
		}
		if b, ok := out[clientID]; ok {
			b.ActiveTags = append(b.ActiveTags, kind)
		}
	}
	return rows.Err()
}
