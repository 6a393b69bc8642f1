package tags

import (
	"context"
	"time"

	"whatsapp_crm_backend/internal/signals"
	"whatsapp_crm_backend/platform/apperr"
	"whatsapp_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// DefaultChunkSize bounds how many clients are loaded and written per round trip.
const DefaultChunkSize = 50

// SignalSource is the read side the engine needs.
type SignalSource interface {
	ListClientIDs(ctx context.Context) ([]uuid.UUID, error)
	LoadBundles(ctx context.Context, clientIDs []uuid.UUID) (map[uuid.UUID]*signals.Bundle, error)
}

// Store is the write side of the deactivate-then-insert protocol.
type Store interface {
	DeactivateActive(ctx context.Context, clientIDs []uuid.UUID, now time.Time) (int, error)
	InsertActive(ctx context.Context, rows []NewTag, now time.Time) (int, error)
}

// ClientSummary lists the tags a client ended the pass with.
type ClientSummary struct {
	ClientID uuid.UUID `json:"clientId"`
	Tags     []Kind    `json:"tags"`
}

// Result reports how much of the pass succeeded.
type Result struct {
	ClientsProcessed int             `json:"clientsProcessed"`
	TagsCreated      int             `json:"tagsCreated"`
	TagsDeactivated  int             `json:"tagsDeactivated"`
	ChunksFailed     int             `json:"chunksFailed"`
	PerClient        []ClientSummary `json:"perClientSummary"`
}

// Service runs tag passes over batches of clients.
type Service struct {
	source     SignalSource
	store      Store
	thresholds Thresholds
	chunkSize  int
	now        func() time.Time
	log        *logger.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithChunkSize overrides DefaultChunkSize. Non-positive values are ignored.
func WithChunkSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// NewService creates the tag engine service.
func NewService(source SignalSource, store Store, thresholds Thresholds, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		source:     source,
		store:      store,
		thresholds: thresholds,
		chunkSize:  DefaultChunkSize,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log.Component("tags"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recalculate recomputes tags for one client, or for every client when clientID is nil.
func (s *Service) Recalculate(ctx context.Context, clientID *uuid.UUID) (Result, error) {
	var ids []uuid.UUID
	if clientID != nil {
		ids = []uuid.UUID{*clientID}
	} else {
		all, err := s.source.ListClientIDs(ctx)
		if err != nil {
			return Result{}, apperr.Wrap(apperr.KindInternal, "failed to list clients", err)
		}
		ids = all
	}

	res := Result{PerClient: make([]ClientSummary, 0, len(ids))}
	for start := 0; start < len(ids); start += s.chunkSize {
		if err := ctx.Err(); err != nil {
			return res, apperr.Wrap(apperr.KindInternal, "tag pass interrupted", err).WithDetails(res)
		}
		end := min(start+s.chunkSize, len(ids))
		s.processChunk(ctx, ids[start:end], &res)
	}

	if clientID != nil && res.ClientsProcessed == 0 && res.ChunksFailed == 0 {
		return res, apperr.NotFound("client not found")
	}

	s.log.WithContext(ctx).Info("tag pass finished",
		"clients", res.ClientsProcessed,
		"created", res.TagsCreated,
		"deactivated", res.TagsDeactivated,
		"chunksFailed", res.ChunksFailed,
	)
	return res, nil
}

func (s *Service) processChunk(ctx context.Context, ids []uuid.UUID, res *Result) {
	log := s.log.WithContext(ctx)

	bundles, err := s.source.LoadBundles(ctx, ids)
	if err != nil {
		log.Error("tag chunk load failed", "size", len(ids), "error", err)
		res.ChunksFailed++
		return
	}

	now := s.now()
	present := make([]uuid.UUID, 0, len(ids))
	summaries := make([]ClientSummary, 0, len(ids))
	var rows []NewTag
	for _, id := range ids {
		b, ok := bundles[id]
		if !ok {
			continue
		}
		set := Evaluate(*b, now, s.thresholds)
		present = append(present, id)
		summaries = append(summaries, ClientSummary{ClientID: id, Tags: set.Kinds()})
		for _, k := range set.Kinds() {
			rows = append(rows, NewTag{ClientID: id, Kind: k})
		}
	}
	if len(present) == 0 {
		return
	}

	deactivated, err := s.store.DeactivateActive(ctx, present, now)
	if err != nil {
		log.Warn("tag deactivate failed, inserting anyway", "size", len(present), "error", err)
	}
	res.TagsDeactivated += deactivated

	created, err := s.store.InsertActive(ctx, rows, now)
	if err != nil {
		log.Error("tag chunk insert failed", "size", len(present), "error", err)
		res.ChunksFailed++
		return
	}
	res.TagsCreated += created
	res.ClientsProcessed += len(present)
	res.PerClient = append(res.PerClient, summaries...)
}
