package campaigns

import (
	"context"
	"errors"
	"sync"
	"time"

	"whatsapp_crm_backend/internal/conversations"
	"whatsapp_crm_backend/internal/events"
	"whatsapp_crm_backend/internal/signals"
	"whatsapp_crm_backend/platform/apperr"
	"whatsapp_crm_backend/platform/logger"
	"whatsapp_crm_backend/platform/phone"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchSize   = 5
	defaultSendTimeout = 15 * time.Second
	defaultLockTTL     = 2 * time.Minute
	dueScanFactor      = 20
)

// Sender is the outbound message gateway. The returned id is the provider's
// message id; the webhook echo of the same send carries it too.
type Sender interface {
	SendText(ctx context.Context, phone string, text string) (string, error)
}

// Outcome of one campaign in a tick.
type Outcome string

const (
	OutcomeSent      Outcome = "sent"
	OutcomeFailed    Outcome = "failed"
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeError     Outcome = "error"
)

// CampaignOutcome reports what a tick did to one campaign.
type CampaignOutcome struct {
	CampaignID  uuid.UUID  `json:"campaignId"`
	Outcome     Outcome    `json:"outcome"`
	RecipientID *uuid.UUID `json:"recipientId,omitempty"`
	Error       string     `json:"error,omitempty"`
	NextSendAt  *time.Time `json:"nextSendAt,omitempty"`
}

// TickResult summarizes one dispatcher invocation.
type TickResult struct {
	CampaignsSelected   int               `json:"campaignsSelected"`
	Sent                int               `json:"sent"`
	Failed              int               `json:"failed"`
	Completed           int               `json:"completed"`
	SkippedOutsideHours int               `json:"skippedOutsideHours"`
	Skipped             int               `json:"skipped"`
	Errors              int               `json:"errors"`
	Campaigns           []CampaignOutcome `json:"campaigns"`
}

func (r *TickResult) add(o CampaignOutcome) {
	switch o.Outcome {
	case OutcomeSent:
		r.Sent++
	case OutcomeFailed:
		r.Failed++
	case OutcomeCompleted:
		r.Completed++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeError:
		r.Errors++
	}
	r.Campaigns = append(r.Campaigns, o)
}

// DispatcherOptions tunes the dispatcher. Zero values take the defaults.
type DispatcherOptions struct {
	BatchSize       int
	SendTimeout     time.Duration
	DefaultLocation *time.Location
	Locker          Locker
	LockTTL         time.Duration
	Jitter          Jitter
	Now             func() time.Time
}

// Dispatcher advances due campaigns by one recipient each per tick.
type Dispatcher struct {
	store    Store
	sender   Sender
	recorder conversations.Recorder
	bus      events.Bus
	opts     DispatcherOptions
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher. sender may be nil, in which case every
// tick fails with a configuration error before touching any campaign.
func NewDispatcher(store Store, sender Sender, recorder conversations.Recorder, bus events.Bus, opts DispatcherOptions, log *logger.Logger) *Dispatcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if opts.DefaultLocation == nil {
		opts.DefaultLocation = time.UTC
	}
	if opts.Jitter == nil {
		opts.Jitter = defaultJitter
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Dispatcher{
		store:    store,
		sender:   sender,
		recorder: recorder,
		bus:      bus,
		opts:     opts,
		log:      log.Component("campaigns"),
	}
}

// Tick runs one invocation.
func (d *Dispatcher) Tick(ctx context.Context) (TickResult, error) {
	res := TickResult{Campaigns: []CampaignOutcome{}}
	if d.sender == nil {
		return res, apperr.Configuration("whatsapp gateway is not configured")
	}

	log := d.log.WithContext(ctx)
	now := d.opts.Now()

	due, err := d.store.ListDue(ctx, now, d.opts.BatchSize*dueScanFactor)
	if err != nil {
		return res, apperr.Wrap(apperr.KindInternal, "failed to list due campaigns", err)
	}

	selected := make([]Campaign, 0, d.opts.BatchSize)
	for _, c := range due {
		if len(selected) == d.opts.BatchSize {
			break
		}
		open, err := c.BusinessHours.Allows(now, d.opts.DefaultLocation)
		if err != nil {
			log.Warn("campaign business hours invalid, skipping", "campaignId", c.ID, "error", err)
			res.SkippedOutsideHours++
			continue
		}
		if !open {
			res.SkippedOutsideHours++
			continue
		}
		selected = append(selected, c)
	}
	res.CampaignsSelected = len(selected)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(d.opts.BatchSize)
	for _, c := range selected {
		g.Go(func() error {
			outcome := d.advance(ctx, c)
			mu.Lock()
			res.add(outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	log.Info("campaign tick finished",
		"selected", res.CampaignsSelected,
		"sent", res.Sent,
		"failed", res.Failed,
		"completed", res.Completed,
		"outsideHours", res.SkippedOutsideHours,
		"skipped", res.Skipped,
		"errors", res.Errors,
	)
	return res, nil
}

// advance moves one campaign forward by at most one recipient. Once a send
// starts it runs to completion and is recorded even if ctx is cancelled.
func (d *Dispatcher) advance(ctx context.Context, c Campaign) CampaignOutcome {
	log := d.log.WithContext(ctx).With("campaignId", c.ID)
	out := CampaignOutcome{CampaignID: c.ID}

	if d.opts.Locker != nil {
		release, ok, err := d.opts.Locker.Acquire(ctx, c.ID, d.opts.LockTTL)
		if err != nil {
			log.Error("campaign lease failed", "error", err)
			out.Outcome, out.Error = OutcomeError, err.Error()
			return out
		}
		if !ok {
			out.Outcome = OutcomeSkipped
			return out
		}
		defer release()

		// another tick may have advanced it between listing and locking
		fresh, err := d.store.Get(ctx, c.ID)
		if err != nil {
			log.Error("campaign reload failed", "error", err)
			out.Outcome, out.Error = OutcomeError, err.Error()
			return out
		}
		if fresh.Status != StatusActive || (fresh.NextSendAt != nil && fresh.NextSendAt.After(d.opts.Now())) {
			out.Outcome = OutcomeSkipped
			return out
		}
		c = fresh
	}

	rec, err := d.store.NextPendingRecipient(ctx, c.ID)
	if errors.Is(err, ErrNoPendingRecipients) {
		done, err := d.store.Complete(ctx, c.ID, d.opts.Now())
		if err != nil {
			log.Error("campaign completion failed", "error", err)
			out.Outcome, out.Error = OutcomeError, err.Error()
			return out
		}
		if !done {
			// paused, cancelled or refilled since it was listed
			out.Outcome = OutcomeSkipped
			return out
		}
		log.Info("campaign completed")
		out.Outcome = OutcomeCompleted
		return out
	}
	if err != nil {
		log.Error("next recipient failed", "error", err)
		out.Outcome, out.Error = OutcomeError, err.Error()
		return out
	}
	out.RecipientID = &rec.ID

	work := context.WithoutCancel(ctx)
	sendCtx, cancel := context.WithTimeout(work, d.opts.SendTimeout)
	messageID, sendErr := d.sender.SendText(sendCtx, rec.Phone, rec.PersonalizedMessage)
	cancel()

	now := d.opts.Now()
	status, delta := RecipientSent, Counters{Completed: 1}
	if sendErr != nil {
		status, delta = RecipientFailed, Counters{Failed: 1}
		out.Error = sendErr.Error()
	}

	resolved, err := d.store.ResolveRecipient(work, rec.ID, status, now, out.Error)
	if err != nil {
		log.RowError("campaign.resolve_recipient", rec.ID.String(), err)
		out.Outcome, out.Error = OutcomeError, err.Error()
		return out
	}
	if !resolved {
		// resolved by an overlapping tick; do not count it twice
		delta = Counters{}
	}

	var conversationID *uuid.UUID
	if sendErr == nil && resolved {
		conversationID = d.recordAutomation(work, log, rec, messageID, now)
	}

	next := now.Add(NextDelay(c.MinIntervalSeconds, c.MaxIntervalSeconds, d.opts.Jitter))
	if err := d.store.Advance(work, c.ID, next, delta, now); err != nil {
		log.Error("campaign advance failed", "error", err)
		out.Outcome, out.Error = OutcomeError, err.Error()
		return out
	}
	out.NextSendAt = &next

	if sendErr != nil {
		log.Warn("campaign send failed", "recipientId", rec.ID, "error", sendErr)
		out.Outcome = OutcomeFailed
	} else {
		out.Outcome = OutcomeSent
	}

	if d.bus != nil && resolved {
		d.bus.Publish(work, events.CampaignRecipientProcessed{
			BaseEvent:      events.NewBaseEventAt(now),
			CampaignID:     c.ID,
			RecipientID:    rec.ID,
			ConversationID: conversationID,
			Sent:           sendErr == nil,
			Error:          out.Error,
		})
	}
	return out
}

// recordAutomation appends the sent message to the shared history so the
// engines see it as outbound traffic.
func (d *Dispatcher) recordAutomation(ctx context.Context, log *logger.Logger, rec Recipient, messageID string, at time.Time) *uuid.UUID {
	if d.recorder == nil {
		return nil
	}
	recorded, err := d.recorder.RecordMessage(ctx, conversations.MessageInput{
		ClientID:   rec.ClientID,
		Phone:      phone.Digits(rec.Phone),
		ExternalID: messageID,
		SentAt:     at,
		Direction:  string(signals.DirectionOutbound),
		Content:    rec.PersonalizedMessage,
		SentVia:    conversations.SentViaCampaign,
	})
	if err != nil {
		log.RowError("campaign.record_message", rec.ID.String(), err)
		return nil
	}
	return &recorded.ConversationID
}
