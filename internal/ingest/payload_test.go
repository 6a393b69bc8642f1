package ingest

import (
	"testing"
	"time"

	"whatsapp_crm_backend/internal/signals"
)

var ingestNow = time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)

func TestParseTextMessage(t *testing.T) {
	body := `{"type":"messages.upsert","data":{"key":{"remoteJid":"5511999998888@s.whatsapp.net","fromMe":false,"id":"ABC123"},"pushName":"Ana","message":{"conversation":"Olá, tudo bem?"},"messageTimestamp":1781092800}}`

	in, reason, ok := Parse([]byte(body), ingestNow)
	if !ok {
		t.Fatalf("expected message, got ignored: %s", reason)
	}
	if in.Phone != "5511999998888" || in.ExternalID != "ABC123" || in.PushName != "Ana" {
		t.Fatalf("unexpected inbound %+v", in)
	}
	if in.Direction != signals.DirectionInbound || in.Text != "Olá, tudo bem?" {
		t.Fatalf("unexpected inbound %+v", in)
	}
	if !in.SentAt.Equal(time.Unix(1781092800, 0)) {
		t.Fatalf("expected provider timestamp, got %v", in.SentAt)
	}
}

func TestParseExtendedTextFromMe(t *testing.T) {
	body := `{"event":"messages.upsert","data":{"key":{"remoteJid":"5511999998888:3@s.whatsapp.net","fromMe":true,"id":"X"},"message":{"extendedTextMessage":{"text":"link https://x.y"}},"messageTimestamp":"1781092800"}}`

	in, _, ok := Parse([]byte(body), ingestNow)
	if !ok {
		t.Fatalf("expected message")
	}
	if in.Direction != signals.DirectionOutbound || in.Text != "link https://x.y" || in.Phone != "5511999998888" {
		t.Fatalf("unexpected inbound %+v", in)
	}
}

func TestParseNonTextUsesPlaceholder(t *testing.T) {
	body := `{"type":"messages.upsert","data":{"key":{"remoteJid":"5511999998888@s.whatsapp.net","id":"IMG"},"message":{"imageMessage":{"url":"https://cdn"}}}}`

	in, _, ok := Parse([]byte(body), ingestNow)
	if !ok {
		t.Fatalf("expected message")
	}
	if in.Text != NonTextPlaceholder || !in.SentAt.Equal(ingestNow) {
		t.Fatalf("unexpected inbound %+v", in)
	}
}

func TestParseIgnored(t *testing.T) {
	cases := map[string]string{
		"broadcast": `{"type":"messages.upsert","data":{"key":{"remoteJid":"status@broadcast","id":"S"},"message":{"conversation":"x"}}}`,
		"group":     `{"type":"messages.upsert","data":{"key":{"remoteJid":"120363025@g.us","id":"G"},"message":{"conversation":"x"}}}`,
		"event":     `{"type":"connection.update","data":{}}`,
		"no jid":    `{"type":"messages.upsert","data":{"key":{"id":"N"}}}`,
		"malformed": `{"type":`,
	}
	for name, body := range cases {
		if _, reason, ok := Parse([]byte(body), ingestNow); ok || reason == "" {
			t.Fatalf("%s: expected ignored with a reason", name)
		}
	}
}
