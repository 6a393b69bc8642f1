package campaigns

import (
	"math/rand/v2"
	"time"
)

// Jitter returns a uniform value in [0, n). n is always positive.
type Jitter func(n int64) int64

func defaultJitter(n int64) int64 { return rand.Int64N(n) }

// NextDelay picks the wait before a campaign's next send, uniform over
// [min, max] seconds at millisecond resolution. Negative bounds clamp to
// zero and inverted bounds are swapped.
func NextDelay(minSeconds, maxSeconds int, jitter Jitter) time.Duration {
	minSeconds = max(minSeconds, 0)
	maxSeconds = max(maxSeconds, 0)
	if minSeconds > maxSeconds {
		minSeconds, maxSeconds = maxSeconds, minSeconds
	}

	lo := time.Duration(minSeconds) * time.Second
	spanMs := int64(maxSeconds-minSeconds) * 1000
	if spanMs == 0 {
		return lo
	}
	if jitter == nil {
		jitter = defaultJitter
	}
	return lo + time.Duration(jitter(spanMs+1))*time.Millisecond
}
