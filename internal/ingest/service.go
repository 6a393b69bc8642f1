package ingest

import (
	"context"
	"time"

	"whatsapp_crm_backend/internal/conversations"
	"whatsapp_crm_backend/internal/events"
	"whatsapp_crm_backend/platform/apperr"
	"whatsapp_crm_backend/platform/logger"
	"whatsapp_crm_backend/platform/sanitize"

	"github.com/google/uuid"
)

// Outcome status values.
const (
	StatusIgnored   = "ignored"
	StatusProcessed = "processed"
	StatusDuplicate = "duplicate"
)

// Outcome reports what happened to one webhook.
type Outcome struct {
	Status         string     `json:"status"`
	Reason         string     `json:"reason,omitempty"`
	ConversationID *uuid.UUID `json:"conversationId,omitempty"`
}

// Service records provider messages and announces them on the bus.
type Service struct {
	recorder conversations.Recorder
	bus      events.Bus
	now      func() time.Time
	log      *logger.Logger
}

// NewService creates the ingestor. bus may be nil.
func NewService(recorder conversations.Recorder, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		recorder: recorder,
		bus:      bus,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.Component("ingest"),
	}
}

// Ingest parses and stores one webhook body. Payloads that are not
// storable messages are reported as ignored, never as errors.
func (s *Service) Ingest(ctx context.Context, body []byte) (Outcome, error) {
	log := s.log.WithContext(ctx)

	in, reason, ok := Parse(body, s.now())
	if !ok {
		log.Debug("webhook ignored", "reason", reason)
		return Outcome{Status: StatusIgnored, Reason: reason}, nil
	}

	text := sanitize.Text(in.Text)
	if text == "" {
		text = NonTextPlaceholder
	}

	recorded, err := s.recorder.RecordMessage(ctx, conversations.MessageInput{
		Phone:      in.Phone,
		PushName:   sanitize.Text(in.PushName),
		ExternalID: in.ExternalID,
		SentAt:     in.SentAt,
		Direction:  string(in.Direction),
		Content:    text,
	})
	if err != nil {
		log.With("externalId", in.ExternalID).DatabaseError("record_message", err)
		return Outcome{}, apperr.Wrap(apperr.KindInternal, "failed to store message", err)
	}

	out := Outcome{Status: StatusProcessed, ConversationID: &recorded.ConversationID}
	if recorded.Duplicate {
		out.Status = StatusDuplicate
		return out, nil
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.MessageIngested{
			BaseEvent:      events.NewBaseEventAt(s.now()),
			ConversationID: recorded.ConversationID,
			ClientID:       recorded.ClientID,
			Direction:      string(in.Direction),
			ClientCreated:  recorded.ClientCreated,
		})
	}

	log.Info("webhook message stored",
		"conversationId", recorded.ConversationID,
		"direction", in.Direction,
		"clientCreated", recorded.ClientCreated,
	)
	return out, nil
}
