// Package priority turns a client's signal bundle into a bounded urgency
// score and tier for its conversation.
package priority

import (
	"time"

	"whatsapp_crm_backend/internal/signals"
	"whatsapp_crm_backend/internal/tags"
	"whatsapp_crm_backend/platform/config"
	"whatsapp_crm_backend/platform/sanitize"
)

// Tier is the categorical priority derived from the score.
type Tier string

const (
	TierLow      Tier = "low"
	TierMedium   Tier = "medium"
	TierHigh     Tier = "high"
	TierCritical Tier = "critical"
)

// Component caps. These are fixed and not configurable.
const (
	maxLatency     = 30
	maxProductTier = 25
	minProductTier = 5
	maxStatus      = 25
	maxTags        = 20
	maxScore       = 100

	tierCriticalFrom = 70
	tierHighFrom     = 50
	tierMediumFrom   = 30
)

// Latency points per threshold.
const (
	latencyHighPoints   = 30
	latencyMediumPoints = 20
	latencyLowPoints    = 10
)

var productTierPoints = map[string]int{
	signals.ProductElite: 25,
	signals.ProductScale: 25,
	signals.ProductLabs:  15,
	signals.ProductVenda: 15,
}

// statusPoints is keyed by sanitize.StatusKey.
var statusPoints = map[string]int{
	"refunded":        25,
	"time exhausted":  25,
	"paused":          20,
	"form not filled": 15,
	"near completion": 15,
	"new student":     10,
}

const saleStatusPoints = 10

var saleStatusesScored = map[string]bool{
	"lost":     true,
	"new lead": true,
}

var tagPoints = map[tags.Kind]int{
	tags.NoResponse14Days:  10,
	tags.TimeExhausted:     10,
	tags.NoShow:            8,
	tags.SalesFollowUp:     8,
	tags.NoResponse7Days:   7,
	tags.StaleCall20Days:   6,
	tags.CSATPending:       5,
	tags.NoResponse3Days:   5,
	tags.TranscriptPending: 3,
}

// Thresholds are the response-latency day boundaries. They are configured
// separately from the tag engine's no-response tiers.
type Thresholds struct {
	LatencyLowDays    int
	LatencyMediumDays int
	LatencyHighDays   int
}

// DefaultThresholds returns 2/4/8 days.
func DefaultThresholds() Thresholds {
	return Thresholds{LatencyLowDays: 2, LatencyMediumDays: 4, LatencyHighDays: 8}
}

// WithOverrides applies the non-zero values of f on top of t.
func (t Thresholds) WithOverrides(f config.PriorityThresholdFile) Thresholds {
	if f.LatencyLowDays > 0 {
		t.LatencyLowDays = f.LatencyLowDays
	}
	if f.LatencyMediumDays > 0 {
		t.LatencyMediumDays = f.LatencyMediumDays
	}
	if f.LatencyHighDays > 0 {
		t.LatencyHighDays = f.LatencyHighDays
	}
	return t
}

// Breakdown is a score with its components.
type Breakdown struct {
	Latency     int  `json:"latency"`
	ProductTier int  `json:"productTier"`
	Status      int  `json:"status"`
	Tags        int  `json:"tags"`
	Total       int  `json:"score"`
	Tier        Tier `json:"tier"`
}

// Score computes the breakdown for b at now. Same input, same output.
func Score(b signals.Bundle, now time.Time, th Thresholds) Breakdown {
	out := Breakdown{
		Latency:     latencyScore(b, now, th),
		ProductTier: productTierScore(b.Products),
		Status:      statusScore(b),
		Tags:        tagScore(b.ActiveTags),
	}
	out.Total = min(out.Latency+out.ProductTier+out.Status+out.Tags, maxScore)
	out.Tier = TierFor(out.Total)
	return out
}

// TierFor maps a score to its tier.
func TierFor(score int) Tier {
	switch {
	case score >= tierCriticalFrom:
		return TierCritical
	case score >= tierHighFrom:
		return TierHigh
	case score >= tierMediumFrom:
		return TierMedium
	default:
		return TierLow
	}
}

func latencyScore(b signals.Bundle, now time.Time, th Thresholds) int {
	if b.LastMessage == nil || b.LastMessage.Direction != signals.DirectionInbound {
		return 0
	}
	days, ok := signals.DaysSince(now, b.LastMessage.At)
	if !ok {
		return 0
	}
	var pts int
	switch {
	case days >= th.LatencyHighDays:
		pts = latencyHighPoints
	case days >= th.LatencyMediumDays:
		pts = latencyMediumPoints
	case days >= th.LatencyLowDays:
		pts = latencyLowPoints
	}
	return min(pts, maxLatency)
}

func productTierScore(products []signals.Product) int {
	best := minProductTier
	for _, p := range products {
		pts, ok := productTierPoints[p.Type]
		if !ok {
			pts = minProductTier
		}
		best = max(best, pts)
	}
	return min(best, maxProductTier)
}

func statusScore(b signals.Bundle) int {
	total := 0
	for _, p := range b.Products {
		total += statusPoints[sanitize.StatusKey(p.Status)]
	}
	for _, s := range b.Sales {
		if saleStatusesScored[sanitize.StatusKey(s.Status)] {
			total += saleStatusPoints
		}
	}
	return min(total, maxStatus)
}

func tagScore(active []string) int {
	total := 0
	seen := make(map[tags.Kind]bool, len(active))
	for _, raw := range active {
		k := tags.Kind(raw)
		if seen[k] {
			continue
		}
		seen[k] = true
		total += tagPoints[k]
	}
	return min(total, maxTags)
}
