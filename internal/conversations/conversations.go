// Package conversations is the shared message-history store. The ingestor
// writes provider traffic through it and the campaign dispatcher appends its
// automation-originated sends, so both engines re-read the same history.
package conversations

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SentViaCampaign marks rows written by the campaign dispatcher.
const SentViaCampaign = "campaign"

// MessageInput describes one message to record.
type MessageInput struct {
	// ClientID, when set, skips the phone lookup.
	ClientID *uuid.UUID
	// Phone is the normalized digits used to match or create the client.
	Phone      string
	PushName   string
	ExternalID string
	SentAt     time.Time
	Direction  string
	Content    string
	SentVia    string
}

// Recorded is the outcome of RecordMessage.
type Recorded struct {
	ClientID       uuid.UUID
	ConversationID uuid.UUID
	ClientCreated  bool
	Duplicate      bool
}

// Recorder stores a message and the client/conversation it belongs to.
type Recorder interface {
	RecordMessage(ctx context.Context, in MessageInput) (Recorded, error)
}
