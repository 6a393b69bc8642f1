// Package signals assembles the read-only signal bundle the tag and priority
// engines evaluate: last message, active products with their calls, active
// sales and the client's currently active tags.
package signals

import (
	"time"

	"github.com/google/uuid"
)

// ChannelWhatsApp is the only channel the core reads. A client has at most
// one conversation per channel.
const ChannelWhatsApp = "whatsapp"

// Direction of a message relative to the business.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Product types.
const (
	ProductElite = "Elite"
	ProductScale = "Scale"
	ProductLabs  = "Labs"
	ProductVenda = "Venda"
)

// Conversation is the client's single WhatsApp conversation.
type Conversation struct {
	ID                     uuid.UUID
	LastInteractionAt      *time.Time
	ManualPriorityOverride bool
}

// Message is the latest message of a conversation.
type Message struct {
	At        time.Time
	Direction Direction
}

// Call belongs to a product.
type Call struct {
	ScheduledAt            *time.Time
	CompletedAt            *time.Time
	SatisfactionSurveySent bool
	Transcript             *string
}

// Completed reports whether the call happened.
func (c Call) Completed() bool { return c.CompletedAt != nil }

// HasTranscript reports whether a non-blank transcript was stored.
func (c Call) HasTranscript() bool {
	if c.Transcript == nil {
		return false
	}
	for _, r := range *c.Transcript {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return true
		}
	}
	return false
}

// Product is an active product with its call history.
type Product struct {
	ID              uuid.UUID
	Type            string
	Status          string
	CallsTotal      int
	CallsCompleted  int
	ExpectedEndDate *time.Time
	Calls           []Call
}

// Sale is an active sales record.
type Sale struct {
	Status string
}

// Bundle is everything the engines read about one client.
type Bundle struct {
	ClientID     uuid.UUID
	Conversation *Conversation
	LastMessage  *Message
	Products     []Product
	Sales        []Sale
	ActiveTags   []string
}

// LastInteraction returns the conversation's last interaction, falling back
// to the last message timestamp.
func (b Bundle) LastInteraction() *time.Time {
	if b.Conversation != nil && b.Conversation.LastInteractionAt != nil {
		return b.Conversation.LastInteractionAt
	}
	if b.LastMessage != nil {
		at := b.LastMessage.At
		return &at
	}
	return nil
}

// Target identifies a conversation the priority engine can score.
type Target struct {
	ConversationID         uuid.UUID
	ClientID               uuid.UUID
	ManualPriorityOverride bool
}

// DaysSince returns the whole days elapsed from t to now.
// ok is false when t lies in the future.
func DaysSince(now, t time.Time) (days int, ok bool) {
	elapsed := now.Sub(t)
	if elapsed < 0 {
		return 0, false
	}
	return int(elapsed / (24 * time.Hour)), true
}

// DaysUntil returns the whole days from now to t. ok is false when t is in the past.
func DaysUntil(now, t time.Time) (days int, ok bool) {
	ahead := t.Sub(now)
	if ahead < 0 {
		return 0, false
	}
	return int(ahead / (24 * time.Hour)), true
}
