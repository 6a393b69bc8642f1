package tags

import (
	"testing"
	"time"

	"whatsapp_crm_backend/internal/signals"
	"whatsapp_crm_backend/platform/config"
)

var testNow = time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(d float64) *time.Time {
	t := testNow.Add(-time.Duration(d * float64(24*time.Hour)))
	return &t
}

func daysAhead(d float64) *time.Time {
	t := testNow.Add(time.Duration(d * float64(24*time.Hour)))
	return &t
}

func strPtr(s string) *string { return &s }

func evaluate(b signals.Bundle) Set {
	return Evaluate(b, testNow, DefaultThresholds())
}

func TestNoResponseReturnsSingleHighestTier(t *testing.T) {
	cases := []struct {
		days float64
		want Kind
	}{
		{2.9, ""},
		{3, NoResponse3Days},
		{6.9, NoResponse3Days},
		{7, NoResponse7Days},
		{13.5, NoResponse7Days},
		{14, NoResponse14Days},
		{40, NoResponse14Days},
	}

	for _, tc := range cases {
		b := signals.Bundle{LastMessage: &signals.Message{At: *daysAgo(tc.days), Direction: signals.DirectionOutbound}}
		got := evaluate(b)
		count := 0
		for _, k := range []Kind{NoResponse3Days, NoResponse7Days, NoResponse14Days} {
			if got.Has(k) {
				count++
			}
		}
		if tc.want == "" {
			if count != 0 {
				t.Fatalf("%.1f days: expected no tier, got %v", tc.days, got.Kinds())
			}
			continue
		}
		if count != 1 || !got.Has(tc.want) {
			t.Fatalf("%.1f days: expected only %s, got %v", tc.days, tc.want, got.Kinds())
		}
	}
}

func TestNoResponseIgnoresAnsweredConversation(t *testing.T) {
	b := signals.Bundle{LastMessage: &signals.Message{At: *daysAgo(20), Direction: signals.DirectionInbound}}
	if got := evaluate(b); got.Len() != 0 {
		t.Fatalf("expected no tags when client replied last, got %v", got.Kinds())
	}
}

func TestStaleCallOnlyForEliteAndScale(t *testing.T) {
	calls := []signals.Call{
		{CompletedAt: daysAgo(30), SatisfactionSurveySent: true, Transcript: strPtr("ok")},
		{CompletedAt: daysAgo(21), SatisfactionSurveySent: true, Transcript: strPtr("ok")},
	}
	elite := signals.Bundle{Products: []signals.Product{{Type: signals.ProductElite, Calls: calls}}}
	if !evaluate(elite).Has(StaleCall20Days) {
		t.Fatalf("expected stale call for Elite with latest call 21 days ago")
	}

	labs := signals.Bundle{Products: []signals.Product{{Type: signals.ProductLabs, Calls: calls}}}
	if evaluate(labs).Has(StaleCall20Days) {
		t.Fatalf("Labs products must not get stale call tag")
	}

	exact := signals.Bundle{Products: []signals.Product{{Type: signals.ProductScale, Calls: []signals.Call{
		{CompletedAt: daysAgo(20), SatisfactionSurveySent: true, Transcript: strPtr("ok")},
	}}}}
	if evaluate(exact).Has(StaleCall20Days) {
		t.Fatalf("exactly 20 days must not be stale")
	}
}

func TestCallDerivedTags(t *testing.T) {
	b := signals.Bundle{Products: []signals.Product{{
		Type: signals.ProductLabs,
		Calls: []signals.Call{
			{CompletedAt: daysAgo(1)},
			{CompletedAt: daysAgo(5), SatisfactionSurveySent: true, Transcript: strPtr("   ")},
			{ScheduledAt: daysAhead(2)},
			{ScheduledAt: daysAgo(3)},
		},
	}}}

	got := evaluate(b)
	for _, k := range []Kind{CSATPending, TranscriptPending, UpcomingSchedule, NoShow} {
		if !got.Has(k) {
			t.Fatalf("expected %s in %v", k, got.Kinds())
		}
	}
}

func TestCallDerivedTagsOutsideWindows(t *testing.T) {
	b := signals.Bundle{Products: []signals.Product{{
		Type: signals.ProductLabs,
		Calls: []signals.Call{
			{CompletedAt: daysAgo(2), SatisfactionSurveySent: true},
			{ScheduledAt: daysAhead(4.5)},
			{ScheduledAt: daysAgo(8.5)},
		},
	}}}

	got := evaluate(b)
	for _, k := range []Kind{CSATPending, TranscriptPending, UpcomingSchedule, NoShow} {
		if got.Has(k) {
			t.Fatalf("did not expect %s in %v", k, got.Kinds())
		}
	}
}

func TestProductStatusTags(t *testing.T) {
	b := signals.Bundle{Products: []signals.Product{
		{Type: signals.ProductVenda, Status: "Form Not Filled"},
		{Type: signals.ProductLabs, Status: "active", ExpectedEndDate: daysAgo(1)},
		{Type: signals.ProductElite, Status: "Refunded", ExpectedEndDate: daysAgo(1)},
	}}

	got := evaluate(b)
	if !got.Has(FormPending) {
		t.Fatalf("expected form pending, got %v", got.Kinds())
	}
	if !got.Has(TimeExhausted) {
		t.Fatalf("expected time exhausted, got %v", got.Kinds())
	}

	terminal := signals.Bundle{Products: []signals.Product{{Type: signals.ProductElite, Status: "completed", ExpectedEndDate: daysAgo(10)}}}
	if evaluate(terminal).Has(TimeExhausted) {
		t.Fatalf("terminal products must not be time exhausted")
	}
}

func TestNearCompletion(t *testing.T) {
	cases := []struct {
		productType string
		total, done int
		want        bool
	}{
		{signals.ProductElite, 10, 8, true},
		{signals.ProductLabs, 5, 4, true},
		{signals.ProductScale, 10, 7, false},
		{signals.ProductVenda, 10, 10, false},
		{signals.ProductElite, 0, 0, false},
	}
	for _, tc := range cases {
		b := signals.Bundle{Products: []signals.Product{{Type: tc.productType, CallsTotal: tc.total, CallsCompleted: tc.done}}}
		if got := evaluate(b).Has(NearCompletion); got != tc.want {
			t.Fatalf("%s %d/%d: expected %v, got %v", tc.productType, tc.done, tc.total, tc.want, got)
		}
	}
}

func TestSalesFollowUp(t *testing.T) {
	sale := []signals.Sale{{Status: "follow_up_scheduled"}}

	stale := signals.Bundle{Sales: sale, Conversation: &signals.Conversation{LastInteractionAt: daysAgo(5)}}
	if !evaluate(stale).Has(SalesFollowUp) {
		t.Fatalf("expected follow-up after 5 days")
	}

	fresh := signals.Bundle{Sales: sale, Conversation: &signals.Conversation{LastInteractionAt: daysAgo(4.9)}}
	if evaluate(fresh).Has(SalesFollowUp) {
		t.Fatalf("did not expect follow-up before 5 days")
	}

	never := signals.Bundle{Sales: []signals.Sale{{Status: "In Contact"}}}
	if !evaluate(never).Has(SalesFollowUp) {
		t.Fatalf("expected follow-up when no interaction was ever recorded")
	}

	lost := signals.Bundle{Sales: []signals.Sale{{Status: "lost"}}}
	if evaluate(lost).Has(SalesFollowUp) {
		t.Fatalf("lost sales must not trigger follow-up")
	}
}

func TestEvaluateIsDeterministicAndDeduplicated(t *testing.T) {
	b := signals.Bundle{Products: []signals.Product{
		{Type: signals.ProductLabs, Calls: []signals.Call{{CompletedAt: daysAgo(1)}, {CompletedAt: daysAgo(2)}}},
		{Type: signals.ProductVenda, Calls: []signals.Call{{CompletedAt: daysAgo(1)}}},
	}}
	first := evaluate(b).Kinds()
	second := evaluate(b).Kinds()
	if len(first) != 1 || first[0] != CSATPending {
		t.Fatalf("expected a single csat tag, got %v", first)
	}
	if len(second) != len(first) || second[0] != first[0] {
		t.Fatalf("expected identical output, got %v and %v", first, second)
	}
}

func TestThresholdOverrides(t *testing.T) {
	th := DefaultThresholds().WithOverrides(config.TagThresholdFile{NoResponseMediumDays: 5})
	if th.NoResponseMediumDays != 5 || th.NoResponseShortDays != 3 || th.NoResponseLongDays != 14 {
		t.Fatalf("unexpected thresholds %+v", th)
	}
	b := signals.Bundle{LastMessage: &signals.Message{At: *daysAgo(5), Direction: signals.DirectionOutbound}}
	if !Evaluate(b, testNow, th).Has(NoResponse7Days) {
		t.Fatalf("expected medium tier with overridden boundary")
	}
}
