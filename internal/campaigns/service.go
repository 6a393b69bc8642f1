package campaigns

import (
	"context"
	"errors"
	"time"

	"whatsapp_crm_backend/platform/apperr"
	"whatsapp_crm_backend/platform/logger"

	"github.com/google/uuid"
)

// Service applies operator actions to campaigns.
type Service struct {
	store Store
	now   func() time.Time
	log   *logger.Logger
}

// NewService creates the campaign control service.
func NewService(store Store, log *logger.Logger) *Service {
	return &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		log:   log.Component("campaigns"),
	}
}

// Get returns one campaign.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Campaign, error) {
	c, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrCampaignNotFound) {
		return Campaign{}, apperr.NotFound("campaign not found")
	}
	if err != nil {
		return Campaign{}, apperr.Wrap(apperr.KindInternal, "failed to load campaign", err)
	}
	return c, nil
}

// Apply runs action against the campaign. Starting a campaign makes it due
// immediately; pausing and cancelling take effect from the next tick, and a
// send already in flight finishes first.
func (s *Service) Apply(ctx context.Context, id uuid.UUID, action Action) (Campaign, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return Campaign{}, err
	}

	to, err := Transition(c.Status, action)
	if err != nil {
		return Campaign{}, apperr.Wrap(apperr.KindConflict, "invalid campaign transition", err).
			WithDetails(map[string]string{"status": string(c.Status), "action": string(action)})
	}

	now := s.now()
	var nextSendAt *time.Time
	if action == ActionStart {
		nextSendAt = &now
	}

	ok, err := s.store.TransitionStatus(ctx, id, c.Status, to, nextSendAt, now)
	if err != nil {
		return Campaign{}, apperr.Wrap(apperr.KindInternal, "failed to update campaign", err)
	}
	if !ok {
		return Campaign{}, apperr.Conflict("campaign changed concurrently, retry")
	}

	s.log.WithContext(ctx).Info("campaign status changed", "campaignId", id, "from", c.Status, "to", to)
	return s.Get(ctx, id)
}
