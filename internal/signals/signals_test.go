package signals

import (
	"testing"
	"time"
)

func TestDaysSinceFloorsAndRejectsFuture(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if d, ok := DaysSince(now, now.Add(-71*time.Hour)); !ok || d != 2 {
		t.Fatalf("expected 2 days, got %d ok=%v", d, ok)
	}
	if d, ok := DaysSince(now, now.Add(-72*time.Hour)); !ok || d != 3 {
		t.Fatalf("expected 3 days, got %d ok=%v", d, ok)
	}
	if _, ok := DaysSince(now, now.Add(time.Minute)); ok {
		t.Fatalf("expected future timestamp to be rejected")
	}
}

func TestHasTranscriptIgnoresBlank(t *testing.T) {
	blank := "  \n"
	text := "resumo"
	if (Call{Transcript: &blank}).HasTranscript() {
		t.Fatalf("blank transcript must not count")
	}
	if !(Call{Transcript: &text}).HasTranscript() {
		t.Fatalf("expected transcript to count")
	}
	if (Call{}).HasTranscript() {
		t.Fatalf("nil transcript must not count")
	}
}

func TestLastInteractionFallsBackToMessage(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	b := Bundle{LastMessage: &Message{At: at, Direction: DirectionInbound}}
	if got := b.LastInteraction(); got == nil || !got.Equal(at) {
		t.Fatalf("expected fallback to last message, got %v", got)
	}
	if (Bundle{}).LastInteraction() != nil {
		t.Fatalf("expected nil without conversation or messages")
	}
}
