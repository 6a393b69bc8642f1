// Package tags derives a client's operational labels from its signal bundle
// and replaces the client's active tag rows wholesale on every pass.
package tags

// Kind identifies a tag. Values are stored verbatim in crm_tags.kind.
type Kind string

const (
	NoResponse3Days   Kind = "no_response_3_dias"
	NoResponse7Days   Kind = "no_response_7_dias"
	NoResponse14Days  Kind = "no_response_14_dias"
	StaleCall20Days   Kind = "stale_call_20_dias"
	CSATPending       Kind = "csat_pending"
	FormPending       Kind = "form_pending"
	UpcomingSchedule  Kind = "upcoming_schedule"
	TranscriptPending Kind = "transcript_pending"
	NearCompletion    Kind = "near_completion"
	TimeExhausted     Kind = "time_exhausted"
	NoShow            Kind = "no_show"
	SalesFollowUp     Kind = "sales_follow_up"
)

// AllKinds lists every kind in display order.
var AllKinds = []Kind{
	NoResponse3Days,
	NoResponse7Days,
	NoResponse14Days,
	StaleCall20Days,
	CSATPending,
	FormPending,
	UpcomingSchedule,
	TranscriptPending,
	NearCompletion,
	TimeExhausted,
	NoShow,
	SalesFollowUp,
}

// Set is an immutable set of tag kinds, kept in AllKinds order.
type Set struct {
	kinds []Kind
}

// NewSet builds a set, dropping duplicates.
func NewSet(kinds ...Kind) Set {
	seen := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		seen[k] = struct{}{}
	}
	out := make([]Kind, 0, len(seen))
	for _, k := range AllKinds {
		if _, ok := seen[k]; ok {
			out = append(out, k)
			delete(seen, k)
		}
	}
	// unknown kinds keep their input order
	for _, k := range kinds {
		if _, ok := seen[k]; ok {
			out = append(out, k)
			delete(seen, k)
		}
	}
	return Set{kinds: out}
}

// Has reports membership.
func (s Set) Has(k Kind) bool {
	for _, v := range s.kinds {
		if v == k {
			return true
		}
	}
	return false
}

// Len returns the number of kinds in the set.
func (s Set) Len() int { return len(s.kinds) }

// Kinds returns a copy of the members.
func (s Set) Kinds() []Kind {
	out := make([]Kind, len(s.kinds))
	copy(out, s.kinds)
	return out
}
