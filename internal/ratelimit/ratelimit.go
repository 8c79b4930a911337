// internal/ratelimit/ratelimit.go
// REST pacing and weight telemetry (SPEC_FULL §12 "per-exchange
// weight/rate-limit telemetry", "IP/shard-aware REST pacing"). Adapted
// from internal/metrics/rate/ratelimit.go: the teacher keys its
// rate-limit-exceeded/IP-ban counters per (exchange, data type); this
// generalizes that key shape to (exchange, purpose) token buckets that
// gate the one-off REST weight probes made at startup (startup.go:
// Binance exchange-info, Bybit instruments-info), since this engine has
// no sharded poller fleet to protect the way the teacher's delta/snapshot
// readers do. The venue adapters themselves make no REST calls.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Purpose names what a REST call is for, so a venue's documented
// ceiling for exchange-info lookups doesn't share a bucket with, say,
// its symbol-metadata lookup.
type Purpose string

const (
	PurposeExchangeInfo Purpose = "exchange_info"
	PurposeSymbolInfo   Purpose = "symbol_info"
)

type bucketKey struct {
	exchange string
	purpose  Purpose
}

// Limiter paces outbound REST calls per (exchange, purpose), each
// backed by its own token bucket so one venue's pacing never throttles
// another's.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[bucketKey]*rate.Limiter
	rateFor  func(exchange string, purpose Purpose) rate.Limit
	burstFor func(exchange string, purpose Purpose) int
}

// defaultRate is conservative enough for a one-shot startup lookup per
// feed: one call per second, burst of 2, well under any venue's public
// REST ceiling for unauthenticated metadata endpoints.
const (
	defaultRate  = 1
	defaultBurst = 2
)

// New constructs a Limiter using defaultRate/defaultBurst for every
// (exchange, purpose) pair.
func New() *Limiter {
	return &Limiter{
		buckets: make(map[bucketKey]*rate.Limiter),
		rateFor:  func(string, Purpose) rate.Limit { return defaultRate },
		burstFor: func(string, Purpose) int { return defaultBurst },
	}
}

func (l *Limiter) bucket(exchange string, purpose Purpose) *rate.Limiter {
	key := bucketKey{exchange: exchange, purpose: purpose}

	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.rateFor(exchange, purpose), l.burstFor(exchange, purpose))
		l.buckets[key] = b
	}
	return b
}

// Wait blocks until a token is available for (exchange, purpose) or ctx
// is cancelled.
func (l *Limiter) Wait(ctx context.Context, exchange string, purpose Purpose) error {
	return l.bucket(exchange, purpose).Wait(ctx)
}
