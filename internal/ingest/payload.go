// Package ingest accepts inbound WhatsApp provider webhooks and records them
// in the shared conversation history.
package ingest

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"whatsapp_crm_backend/internal/signals"
	"whatsapp_crm_backend/platform/phone"
)

const (
	eventMessagesUpsert = "messages.upsert"
	statusBroadcastJID  = "status@broadcast"

	// NonTextPlaceholder is stored for media, stickers, reactions and anything
	// else without a text body.
	NonTextPlaceholder = "[non-text message]"
)

// Webhook is the provider envelope. Some gateway versions send the event
// name as "event" instead of "type".
type Webhook struct {
	Type  string      `json:"type"`
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

// WebhookData is the messages.upsert body.
type WebhookData struct {
	Key              MessageKey      `json:"key"`
	PushName         string          `json:"pushName"`
	Message          *MessageContent `json:"message"`
	MessageTimestamp unixSeconds     `json:"messageTimestamp"`
}

// MessageKey identifies a provider message.
type MessageKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// MessageContent holds the text variants the ingestor reads.
type MessageContent struct {
	Conversation        *string       `json:"conversation"`
	ExtendedTextMessage *extendedText `json:"extendedTextMessage"`
}

type extendedText struct {
	Text string `json:"text"`
}

// unixSeconds accepts both numeric and quoted epoch seconds.
type unixSeconds int64

func (u *unixSeconds) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*u = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*u = unixSeconds(n)
	return nil
}

// Inbound is a webhook reduced to what gets stored.
type Inbound struct {
	Phone      string
	PushName   string
	ExternalID string
	Direction  signals.Direction
	Text       string
	SentAt     time.Time
}

// Parse decodes body into an Inbound. When the payload is not a storable
// one-to-one message, ok is false and reason says why.
func Parse(body []byte, now time.Time) (in Inbound, reason string, ok bool) {
	var w Webhook
	if err := json.Unmarshal(body, &w); err != nil {
		return Inbound{}, "malformed payload", false
	}
	return w.Inbound(now)
}

// Inbound extracts the message. now is used when the provider sent no timestamp.
func (w Webhook) Inbound(now time.Time) (Inbound, string, bool) {
	event := w.Type
	if event == "" {
		event = w.Event
	}
	if !strings.EqualFold(event, eventMessagesUpsert) {
		return Inbound{}, "unsupported event", false
	}

	jid := strings.TrimSpace(w.Data.Key.RemoteJID)
	if jid == "" {
		return Inbound{}, "missing remoteJid", false
	}
	if jid == statusBroadcastJID {
		return Inbound{}, "status broadcast", false
	}
	number := phone.FromJID(jid)
	if number == "" {
		return Inbound{}, "not a direct chat", false
	}

	sentAt := now
	if w.Data.MessageTimestamp > 0 {
		sentAt = time.Unix(int64(w.Data.MessageTimestamp), 0).UTC()
	}

	direction := signals.DirectionInbound
	if w.Data.Key.FromMe {
		direction = signals.DirectionOutbound
	}

	return Inbound{
		Phone:      number,
		PushName:   strings.TrimSpace(w.Data.PushName),
		ExternalID: strings.TrimSpace(w.Data.Key.ID),
		Direction:  direction,
		Text:       messageText(w.Data.Message),
		SentAt:     sentAt,
	}, "", true
}

func messageText(m *MessageContent) string {
	if m == nil {
		return NonTextPlaceholder
	}
	if m.Conversation != nil && strings.TrimSpace(*m.Conversation) != "" {
		return *m.Conversation
	}
	if m.ExtendedTextMessage != nil && strings.TrimSpace(m.ExtendedTextMessage.Text) != "" {
		return m.ExtendedTextMessage.Text
	}
	return NonTextPlaceholder
}
