package conversations

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryRecorder is an in-process Recorder keyed by phone. It backs tests of
// the ingestor and the dispatcher.
type MemoryRecorder struct {
	mu            sync.Mutex
	clients       map[string]uuid.UUID
	conversations map[uuid.UUID]uuid.UUID
	external      map[string]bool
	Messages      []MessageInput
	Unread        map[uuid.UUID]int
}

// NewMemoryRecorder creates an empty recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		clients:       make(map[string]uuid.UUID),
		conversations: make(map[uuid.UUID]uuid.UUID),
		external:      make(map[string]bool),
		Unread:        make(map[uuid.UUID]int),
	}
}

// RecordMessage implements Recorder.
func (m *MemoryRecorder) RecordMessage(_ context.Context, in MessageInput) (Recorded, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out Recorded
	if in.ClientID != nil {
		out.ClientID = *in.ClientID
	} else {
		if in.Phone == "" {
			return Recorded{}, ErrMissingPhone
		}
		id, ok := m.clients[in.Phone]
		if !ok {
			id = uuid.New()
			m.clients[in.Phone] = id
			out.ClientCreated = true
		}
		out.ClientID = id
	}

	conv, ok := m.conversations[out.ClientID]
	if !ok {
		conv = uuid.New()
		m.conversations[out.ClientID] = conv
	}
	out.ConversationID = conv

	if in.ExternalID != "" {
		if m.external[in.ExternalID] {
			out.Duplicate = true
			return out, nil
		}
		m.external[in.ExternalID] = true
	}

	m.Messages = append(m.Messages, in)
	if in.Direction == "inbound" {
		m.Unread[conv]++
	}
	return out, nil
}

// Count returns how many messages were stored.
func (m *MemoryRecorder) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}

var _ Recorder = (*MemoryRecorder)(nil)
