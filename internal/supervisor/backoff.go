package supervisor

import (
	"math/rand"
	"time"
)

// backoffPolicy implements exponential-with-full-jitter (spec §4.4):
// base 1s, factor 2, cap 60s, reset to base after a Streaming dwell of
// at least resetDwell. This is AWS's "full jitter" formula (sleep =
// rand(0, min(cap, base*2^attempt))), not the same shape as
// jpillora/backoff's proportional jitter, which is why that transitive
// dependency isn't reused here — see DESIGN.md.
type backoffPolicy struct {
	base       time.Duration
	cap        time.Duration
	resetDwell time.Duration
	attempt    int
}

func newBackoffPolicy() *backoffPolicy {
	return &backoffPolicy{
		base:       time.Second,
		cap:        60 * time.Second,
		resetDwell: 30 * time.Second,
	}
}

// Next returns the next backoff delay and advances the attempt counter.
func (b *backoffPolicy) Next() time.Duration {
	upper := b.base << b.attempt
	if upper <= 0 || upper > b.cap {
		upper = b.cap
	}
	b.attempt++
	if upper <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(upper)))
}

// ResetIfDwelled resets the attempt counter to base if the feed stayed
// in Streaming for at least resetDwell before the failure that led here.
func (b *backoffPolicy) ResetIfDwelled(dwell time.Duration) {
	if dwell >= b.resetDwell {
		b.attempt = 0
	}
}
