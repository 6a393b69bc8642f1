// Package events defines the CRM domain events and re-exports the bus so
// modules depend on one events package.
package events

import (
	"whatsapp_crm_backend/platform/events"
	"whatsapp_crm_backend/platform/logger"

	"github.com/google/uuid"
)

type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
	InMemoryBus = events.InMemoryBus
)

var (
	NewBaseEvent   = events.NewBaseEvent
	NewBaseEventAt = events.NewBaseEventAt
)

// NewInMemoryBus creates the process-local bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return events.NewInMemoryBus(log)
}

// =============================================================================
// Conversation Domain Events
// =============================================================================

// MessageIngested is published after the ingestor stores a provider message.
// Subscribers trigger the priority recalculation for the conversation;
// delivery is at-most-once.
type MessageIngested struct {
	BaseEvent
	ConversationID uuid.UUID `json:"conversationId"`
	ClientID       uuid.UUID `json:"clientId"`
	Direction      string    `json:"direction"`
	ClientCreated  bool      `json:"clientCreated"`
}

func (e MessageIngested) EventName() string { return "conversations.message.ingested" }

// =============================================================================
// Campaign Domain Events
// =============================================================================

// CampaignRecipientProcessed is published after the dispatcher resolves a recipient.
type CampaignRecipientProcessed struct {
	BaseEvent
	CampaignID     uuid.UUID  `json:"campaignId"`
	RecipientID    uuid.UUID  `json:"recipientId"`
	ConversationID *uuid.UUID `json:"conversationId,omitempty"`
	Sent           bool       `json:"sent"`
	Error          string     `json:"error,omitempty"`
}

func (e CampaignRecipientProcessed) EventName() string { return "campaigns.recipient.processed" }
