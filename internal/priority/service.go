package priority

import (
	"context"
	"errors"
	"time"

	"whatsapp_crm_backend/internal/signals"
	"whatsapp_crm_backend/platform/apperr"
	"whatsapp_crm_backend/platform/logger"

	"github.com/google/uuid"
)

const loadChunkSize = 50

// SignalSource is the read side the engine needs.
type SignalSource interface {
	ListScorableConversations(ctx context.Context) ([]signals.Target, error)
	GetConversationTarget(ctx context.Context, conversationID uuid.UUID) (signals.Target, error)
	LoadBundles(ctx context.Context, clientIDs []uuid.UUID) (map[uuid.UUID]*signals.Bundle, error)
}

// Store persists computed scores.
type Store interface {
	UpdatePriority(ctx context.Context, conversationID uuid.UUID, score int, tier Tier, now time.Time) (bool, error)
}

// ConversationScore is one persisted score.
type ConversationScore struct {
	ConversationID uuid.UUID `json:"conversationId"`
	Breakdown
}

// Result reports how much of the pass succeeded.
type Result struct {
	ConversationsProcessed int                 `json:"conversationsProcessed"`
	Skipped                int                 `json:"skipped"`
	Failed                 int                 `json:"failed"`
	Scores                 []ConversationScore `json:"scores"`
}

// Service runs priority passes.
type Service struct {
	source     SignalSource
	store      Store
	thresholds Thresholds
	now        func() time.Time
	log        *logger.Logger
}

// NewService creates the priority engine service.
func NewService(source SignalSource, store Store, thresholds Thresholds, log *logger.Logger) *Service {
	return &Service{
		source:     source,
		store:      store,
		thresholds: thresholds,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log.Component("priority"),
	}
}

// SetClock replaces the wall clock. Used by tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Recalculate scores one conversation, or every non-overridden conversation
// when conversationID is nil.
func (s *Service) Recalculate(ctx context.Context, conversationID *uuid.UUID) (Result, error) {
	var targets []signals.Target
	res := Result{}

	if conversationID != nil {
		t, err := s.source.GetConversationTarget(ctx, *conversationID)
		if errors.Is(err, signals.ErrConversationNotFound) {
			return res, apperr.NotFound("conversation not found")
		}
		if err != nil {
			return res, apperr.Wrap(apperr.KindInternal, "failed to load conversation", err)
		}
		targets = []signals.Target{t}
	} else {
		all, err := s.source.ListScorableConversations(ctx)
		if err != nil {
			return res, apperr.Wrap(apperr.KindInternal, "failed to list conversations", err)
		}
		targets = all
	}

	res.Scores = make([]ConversationScore, 0, len(targets))
	for start := 0; start < len(targets); start += loadChunkSize {
		if err := ctx.Err(); err != nil {
			return res, apperr.Wrap(apperr.KindInternal, "priority pass interrupted", err).WithDetails(res)
		}
		end := min(start+loadChunkSize, len(targets))
		s.processChunk(ctx, targets[start:end], &res)
	}

	s.log.WithContext(ctx).Info("priority pass finished",
		"processed", res.ConversationsProcessed,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res, nil
}

func (s *Service) processChunk(ctx context.Context, targets []signals.Target, res *Result) {
	log := s.log.WithContext(ctx)

	clientIDs := make([]uuid.UUID, 0, len(targets))
	for _, t := range targets {
		if !t.ManualPriorityOverride {
			clientIDs = append(clientIDs, t.ClientID)
		}
	}

	var bundles map[uuid.UUID]*signals.Bundle
	if len(clientIDs) > 0 {
		var err error
		bundles, err = s.source.LoadBundles(ctx, clientIDs)
		if err != nil {
			log.Error("priority chunk load failed", "size", len(clientIDs), "error", err)
			res.Failed += len(clientIDs)
			res.Skipped += len(targets) - len(clientIDs)
			return
		}
	}

	now := s.now()
	for _, t := range targets {
		if t.ManualPriorityOverride {
			res.Skipped++
			continue
		}
		b, ok := bundles[t.ClientID]
		if !ok {
			log.RowError("priority.load", t.ConversationID.String(), errors.New("client signals missing"))
			res.Failed++
			continue
		}

		score := Score(*b, now, s.thresholds)
		written, err := s.store.UpdatePriority(ctx, t.ConversationID, score.Total, score.Tier, now)
		if err != nil {
			log.RowError("priority.update", t.ConversationID.String(), err)
			res.Failed++
			continue
		}
		if !written {
			// override was set after the target list was read
			res.Skipped++
			continue
		}
		res.ConversationsProcessed++
		res.Scores = append(res.Scores, ConversationScore{ConversationID: t.ConversationID, Breakdown: score})
	}
}
