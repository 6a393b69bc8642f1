package tags

import (
	"time"

	"whatsapp_crm_backend/internal/signals"
	"whatsapp_crm_backend/platform/config"
	"whatsapp_crm_backend/platform/sanitize"
)

// Thresholds are the day boundaries the rules compare against.
type Thresholds struct {
	NoResponseShortDays  int
	NoResponseMediumDays int
	NoResponseLongDays   int
	StaleCallDays        int
	UpcomingScheduleDays int
	TranscriptGraceDays  int
	NearCompletionRatio  float64
	NoShowWindowDays     int
	SalesFollowUpDays    int
}

// DefaultThresholds returns the production boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NoResponseShortDays:  3,
		NoResponseMediumDays: 7,
		NoResponseLongDays:   14,
		StaleCallDays:        20,
		UpcomingScheduleDays: 3,
		TranscriptGraceDays:  3,
		NearCompletionRatio:  0.8,
		NoShowWindowDays:     7,
		SalesFollowUpDays:    5,
	}
}

// WithOverrides applies the non-zero values of f on top of t.
func (t Thresholds) WithOverrides(f config.TagThresholdFile) Thresholds {
	override := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}
	override(&t.NoResponseShortDays, f.NoResponseShortDays)
	override(&t.NoResponseMediumDays, f.NoResponseMediumDays)
	override(&t.NoResponseLongDays, f.NoResponseLongDays)
	override(&t.StaleCallDays, f.StaleCallDays)
	override(&t.UpcomingScheduleDays, f.UpcomingScheduleDays)
	override(&t.TranscriptGraceDays, f.TranscriptGraceDays)
	override(&t.NoShowWindowDays, f.NoShowWindowDays)
	override(&t.SalesFollowUpDays, f.SalesFollowUpDays)
	if f.NearCompletionRatio > 0 {
		t.NearCompletionRatio = f.NearCompletionRatio
	}
	return t
}

// Folded status keys.
const (
	statusFormNotFilled   = "form not filled"
	statusCompleted       = "completed"
	statusCancelled       = "cancelled"
	statusCanceled        = "canceled"
	statusRefunded        = "refunded"
	saleInContact         = "in contact"
	saleFollowUpScheduled = "follow up scheduled"
)

// Evaluate returns the tags that should be active for b at now.
// It reads nothing but its arguments.
func Evaluate(b signals.Bundle, now time.Time, th Thresholds) Set {
	var out []Kind

	if k, ok := noResponseTier(b, now, th); ok {
		out = append(out, k)
	}

	for _, p := range b.Products {
		out = append(out, productTags(p, now, th)...)
	}

	if salesFollowUpDue(b, now, th) {
		out = append(out, SalesFollowUp)
	}

	return NewSet(out...)
}

// noResponseTier returns the single highest tier reached by an unanswered
// outbound message.
func noResponseTier(b signals.Bundle, now time.Time, th Thresholds) (Kind, bool) {
	if b.LastMessage == nil || b.LastMessage.Direction != signals.DirectionOutbound {
		return "", false
	}
	days, ok := signals.DaysSince(now, b.LastMessage.At)
	if !ok {
		return "", false
	}
	switch {
	case days >= th.NoResponseLongDays:
		return NoResponse14Days, true
	case days >= th.NoResponseMediumDays:
		return NoResponse7Days, true
	case days >= th.NoResponseShortDays:
		return NoResponse3Days, true
	}
	return "", false
}

func productTags(p signals.Product, now time.Time, th Thresholds) []Kind {
	var out []Kind
	status := sanitize.StatusKey(p.Status)

	var latestCompleted *time.Time
	for _, c := range p.Calls {
		if c.Completed() {
			if latestCompleted == nil || c.CompletedAt.After(*latestCompleted) {
				latestCompleted = c.CompletedAt
			}
			if !c.SatisfactionSurveySent {
				out = append(out, CSATPending)
			}
			if days, ok := signals.DaysSince(now, *c.CompletedAt); ok && days > th.TranscriptGraceDays && !c.HasTranscript() {
				out = append(out, TranscriptPending)
			}
			continue
		}
		if c.ScheduledAt == nil {
			continue
		}
		if days, ok := signals.DaysUntil(now, *c.ScheduledAt); ok && days <= th.UpcomingScheduleDays {
			out = append(out, UpcomingSchedule)
		}
		if days, ok := signals.DaysSince(now, *c.ScheduledAt); ok && days <= th.NoShowWindowDays {
			out = append(out, NoShow)
		}
	}

	if isCoaching(p.Type) && latestCompleted != nil {
		if days, ok := signals.DaysSince(now, *latestCompleted); ok && days > th.StaleCallDays {
			out = append(out, StaleCall20Days)
		}
	}

	if status == statusFormNotFilled {
		out = append(out, FormPending)
	}

	if tracksCompletion(p.Type) && p.CallsTotal > 0 &&
		float64(p.CallsCompleted)/float64(p.CallsTotal) >= th.NearCompletionRatio {
		out = append(out, NearCompletion)
	}

	if p.ExpectedEndDate != nil && p.ExpectedEndDate.Before(now) && !isTerminal(status) {
		out = append(out, TimeExhausted)
	}

	return out
}

func salesFollowUpDue(b signals.Bundle, now time.Time, th Thresholds) bool {
	open := false
	for _, s := range b.Sales {
		switch sanitize.StatusKey(s.Status) {
		case saleInContact, saleFollowUpScheduled:
			open = true
		}
	}
	if !open {
		return false
	}
	last := b.LastInteraction()
	if last == nil {
		return true
	}
	days, ok := signals.DaysSince(now, *last)
	return ok && days >= th.SalesFollowUpDays
}

func isCoaching(productType string) bool {
	return productType == signals.ProductElite || productType == signals.ProductScale
}

func tracksCompletion(productType string) bool {
	return isCoaching(productType) || productType == signals.ProductLabs
}

func isTerminal(status string) bool {
	switch status {
	case statusCompleted, statusCancelled, statusCanceled, statusRefunded:
		return true
	}
	return false
}
