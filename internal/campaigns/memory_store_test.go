package campaigns

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore is an in-memory Store with the same conditional-update rules
// as the SQL repository.
type memoryStore struct {
	mu         sync.Mutex
	campaigns  map[uuid.UUID]*Campaign
	recipients []*Recipient
	listErr    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{campaigns: make(map[uuid.UUID]*Campaign)}
}

func (m *memoryStore) addCampaign(c Campaign) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	m.campaigns[c.ID] = &c
	return c.ID
}

func (m *memoryStore) addRecipient(campaignID uuid.UUID, phone, text string, createdAt time.Time) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &Recipient{
		ID:                  uuid.New(),
		CampaignID:          campaignID,
		Phone:               phone,
		PersonalizedMessage: text,
		Status:              RecipientPending,
		CreatedAt:           createdAt,
	}
	m.recipients = append(m.recipients, r)
	m.campaigns[campaignID].PlannedCount++
	return r.ID
}

func (m *memoryStore) campaign(id uuid.UUID) Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.campaigns[id]
}

func (m *memoryStore) recipient(id uuid.UUID) Recipient {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recipients {
		if r.ID == id {
			return *r
		}
	}
	return Recipient{}
}

func (m *memoryStore) Get(_ context.Context, id uuid.UUID) (Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return Campaign{}, ErrCampaignNotFound
	}
	return *c, nil
}

func (m *memoryStore) ListDue(_ context.Context, now time.Time, limit int) ([]Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Campaign
	for _, c := range m.campaigns {
		if c.Status == StatusActive && (c.NextSendAt == nil || !c.NextSendAt.After(now)) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].NextSendAt, out[j].NextSendAt
		switch {
		case a == nil && b == nil:
			return out[i].ID.String() < out[j].ID.String()
		case a == nil:
			return true
		case b == nil:
			return false
		}
		return a.Before(*b)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) NextPendingRecipient(_ context.Context, campaignID uuid.UUID) (Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *Recipient
	for _, r := range m.recipients {
		if r.CampaignID != campaignID || r.Status != RecipientPending {
			continue
		}
		if best == nil || r.CreatedAt.Before(best.CreatedAt) {
			best = r
		}
	}
	if best == nil {
		return Recipient{}, ErrNoPendingRecipients
	}
	return *best, nil
}

func (m *memoryStore) ResolveRecipient(_ context.Context, id uuid.UUID, status RecipientStatus, at time.Time, lastError string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recipients {
		if r.ID != id {
			continue
		}
		if r.Status != RecipientPending {
			return false, nil
		}
		r.Status = status
		r.SentAt = &at
		if lastError != "" {
			r.LastError = &lastError
		}
		return true, nil
	}
	return false, nil
}

func (m *memoryStore) Advance(_ context.Context, id uuid.UUID, next time.Time, delta Counters, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.campaigns[id]
	c.NextSendAt = &next
	c.CompletedCount += delta.Completed
	c.FailedCount += delta.Failed
	c.UpdatedAt = now
	return nil
}

func (m *memoryStore) Complete(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.campaigns[id]
	if c.Status != StatusActive {
		return false, nil
	}
	for _, r := range m.recipients {
		if r.CampaignID == id && r.Status == RecipientPending {
			return false, nil
		}
	}
	c.Status = StatusCompleted
	c.NextSendAt = nil
	c.FinishedAt = &now
	return true, nil
}

func (m *memoryStore) TransitionStatus(_ context.Context, id uuid.UUID, from, to Status, next *time.Time, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	if next != nil {
		c.NextSendAt = next
	}
	if to == StatusActive && c.StartedAt == nil {
		c.StartedAt = &now
	}
	if to.Terminal() {
		c.FinishedAt = &now
	}
	return true, nil
}

var _ Store = (*memoryStore)(nil)
