// internal/supervisor/feed.go
// The Feed Supervisor (spec §4.4): one Feed per (exchange, instrument
// type) drives its own transport through Idle -> Connecting ->
// Subscribing -> Streaming -> Backoff -> Connecting, writing every
// decoded quote straight into the Quote Store with no intermediate
// buffering (spec §4.2 "Put never suspends"). Grounded on
// Projectsrxg-kalshi_v2's reconnect-loop shape in its feed manager,
// generalized from a single hardcoded venue to any adapter.Adapter and
// re-expressed with this module's State/backoffPolicy types in place
// of that codebase's ad hoc retry counters.
package supervisor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bbofeed/internal/adapter"
	"bbofeed/internal/ferr"
	"bbofeed/internal/logger"
	"bbofeed/internal/metrics"
	"bbofeed/internal/store"
	"bbofeed/internal/transport"
)

// connectTimeout and subscribeTimeout bound how long Connecting and
// Subscribing may take before the feed treats the attempt as failed
// and falls back to Backoff (spec §5).
const (
	connectTimeout   = 10 * time.Second
	subscribeTimeout = 10 * time.Second
)

// cloudWatchSnapshotInterval is how often a streaming feed mirrors its
// §4.4 counters to the optional CloudWatch sink. A no-op when
// metrics.InitCloudWatch was never called (spec §10 ambient stack). A
// var rather than a const so tests can shrink it instead of waiting a
// full minute for the snapshot ticker to fire.
var cloudWatchSnapshotInterval = time.Minute

// Feed owns one adapter's connection lifecycle end to end. It is
// constructed once per (exchange, instrument type, symbol set) and run
// for the engine's lifetime; Run returns only when ctx is canceled.
// Any other failure, including a SubscribePayload error, leads to
// Backoff and another attempt.
type Feed struct {
	exchange       string
	instrumentType string
	symbolKeys     []string

	adapter adapter.Adapter
	dialer  transport.Dialer
	store   *store.Store
	log     *logger.Entry
	metrics metrics.Counters

	backoff *backoffPolicy
	state   State
}

// NewFeed builds a Feed around an already-constructed Adapter. The
// supervisor's caller (the façade) resolves the adapter through
// adapter.Build before calling this, so Feed itself never touches the
// registry or catalog.
func NewFeed(a adapter.Adapter, symbolKeys []string, st *store.Store, log *logger.Log) *Feed {
	exchange := a.Exchange()
	itype := a.InstrumentType().String()
	taskID := uuid.NewString()
	return &Feed{
		exchange:       exchange,
		instrumentType: itype,
		symbolKeys:     symbolKeys,
		adapter:        a,
		dialer:         transport.DefaultDialer(),
		store:          st,
		log: log.WithComponent("feed").WithFields(logger.Fields{
			"exchange": exchange, "instrument_type": itype, "task_id": taskID,
		}),
		metrics: metrics.ForFeed(exchange, itype),
		backoff: newBackoffPolicy(),
		state:   Idle,
	}
}

// State reports the feed's current lifecycle state, for diagnostics.
func (f *Feed) State() State { return f.state }

func (f *Feed) setState(s State) {
	f.state = s
	f.log.WithFields(logger.Fields{"state": s.String()}).Info("feed state transition")
}

// Run drives the feed's connect/subscribe/stream/backoff cycle until
// ctx is canceled, at which point it closes any open connection and
// returns nil — cooperative shutdown is not an error (spec §4.4).
func (f *Feed) Run(ctx context.Context) error {
	defer f.setState(Stopped)

	for {
		if ctx.Err() != nil {
			return nil
		}

		streamedAt, err := f.runOnce(ctx)
		if err != nil {
			if _, ok := err.(*ferr.ShutdownRequested); ok {
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			f.log.WithError(err).Warn("feed connection ended")
		}

		f.maybeResetBackoff(streamedAt)
		delay := f.backoff.Next()
		f.setState(Backoff)
		f.metrics.IncReconnects()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// maybeResetBackoff resets the attempt counter only if the feed actually
// reached Streaming and dwelled there for at least resetDwell before
// failing. A zero streamedAt means the attempt never got past
// Connecting/Subscribing; time.Since of a zero time.Time is decades, so
// without this guard a persistently unreachable venue would reset to
// base on every failure and never climb toward the backoff cap.
func (f *Feed) maybeResetBackoff(streamedAt time.Time) {
	if streamedAt.IsZero() {
		return
	}
	f.backoff.ResetIfDwelled(time.Since(streamedAt))
}

// runOnce performs one full connect-subscribe-stream cycle, returning
// the time Streaming was entered (zero if never reached) and the error
// that ended the cycle, if any.
func (f *Feed) runOnce(ctx context.Context) (time.Time, error) {
	f.setState(Connecting)
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	conn, err := f.dialer.Dial(dialCtx, f.adapter.Endpoint())
	cancel()
	if err != nil {
		return time.Time{}, &ferr.TransportError{Cause: err}
	}
	defer conn.Close()

	f.setState(Subscribing)
	frames, err := f.adapter.SubscribePayload(f.symbolKeys)
	if err != nil {
		return time.Time{}, err
	}
	for _, frame := range frames {
		if err := conn.Send(frame); err != nil {
			return time.Time{}, &ferr.TransportError{Cause: err}
		}
	}

	if f.adapter.RequiresSubscribeAck() {
		if err := f.awaitAck(ctx, conn); err != nil {
			return time.Time{}, err
		}
	}

	f.setState(Streaming)
	streamedAt := time.Now()
	return streamedAt, f.stream(ctx, conn)
}

func (f *Feed) awaitAck(ctx context.Context, conn *transport.Conn) error {
	deadline := time.NewTimer(subscribeTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return &ferr.ShutdownRequested{}
		case <-deadline.C:
			return &ferr.TransportError{Cause: errTimeout("subscribe ack")}
		case err := <-conn.Errors():
			return &ferr.TransportError{Cause: err}
		case frame := <-conn.Frames():
			out := f.adapter.Decode(frame)
			switch out.Kind {
			case adapter.OutputAck:
				return nil
			case adapter.OutputQuote:
				// Some venues interleave data before the ack; don't drop it.
				f.handleQuote(out)
			}
		}
	}
}

// staleAfter is the inactivity threshold that trips KeepaliveLost for a
// given policy. KeepaliveRespondToServerPing has no application-level
// pong for this feed to watch — the transport answers the venue's
// control-frame pings on its own (internal/transport.Conn's
// SetPingHandler) — so the only signal left is silence on the wire,
// and the spec's contract for that kind is "no incoming frame for 3
// intervals". KeepaliveApplicationLevel ties liveness to the adapter's
// own traffic (e.g. ticker updates following its periodic ping), which
// arrives well inside 2 intervals when the venue is healthy.
func staleAfter(kind adapter.KeepaliveKind, interval time.Duration) time.Duration {
	if kind == adapter.KeepaliveRespondToServerPing {
		return 3 * interval
	}
	return 2 * interval
}

func (f *Feed) stream(ctx context.Context, conn *transport.Conn) error {
	policy := f.adapter.KeepalivePolicy()

	var pingTicker, watchdog *time.Ticker
	switch policy.Kind {
	case adapter.KeepaliveClientPing:
		if policy.Interval > 0 {
			pingTicker = time.NewTicker(policy.Interval)
			defer pingTicker.Stop()
		}
	case adapter.KeepaliveApplicationLevel:
		if policy.Interval > 0 {
			pingTicker = time.NewTicker(policy.Interval)
			defer pingTicker.Stop()
			watchdog = time.NewTicker(policy.Interval)
			defer watchdog.Stop()
		}
	case adapter.KeepaliveRespondToServerPing:
		if policy.Interval > 0 {
			watchdog = time.NewTicker(policy.Interval)
			defer watchdog.Stop()
		}
	}

	// pongPending and missedPongs track KeepaliveClientPing's "missing
	// two consecutive pongs" contract: each tick either clears the
	// previous ping's pong debt or counts it as a miss, rather than
	// inferring liveness from any inbound frame the way the other two
	// kinds do.
	var pongPending bool
	var missedPongs int

	snapshotTicker := time.NewTicker(cloudWatchSnapshotInterval)
	defer snapshotTicker.Stop()

	for {
		var pingCh, watchdogCh <-chan time.Time
		if pingTicker != nil {
			pingCh = pingTicker.C
		}
		if watchdog != nil {
			watchdogCh = watchdog.C
		}

		select {
		case <-ctx.Done():
			return &ferr.ShutdownRequested{}

		case <-snapshotTicker.C:
			in, decoded, invariantRejected, decodeErr, reconn := f.metrics.Snapshot()
			metrics.EmitFeedSnapshot(f.exchange, f.instrumentType, in, decoded, invariantRejected, decodeErr, reconn)

		case err := <-conn.Errors():
			return &ferr.TransportError{Cause: err}

		case frame := <-conn.Frames():
			f.metrics.IncFramesIn()
			if policy.Kind == adapter.KeepaliveClientPing && policy.IsPong != nil && policy.IsPong(frame) {
				pongPending = false
			}
			out := f.adapter.Decode(frame)
			switch out.Kind {
			case adapter.OutputQuote:
				f.handleQuote(out)
			case adapter.OutputDecodeError:
				f.metrics.IncDecodeErr()
				f.log.WithError(out.DecodeError).Warn("frame decode error")
			case adapter.OutputResetSignal:
				return &ferr.VenueResetSignal{Exchange: f.exchange, Reason: "adapter signaled reset"}
			case adapter.OutputHeartbeat, adapter.OutputAck, adapter.OutputIgnored:
			}

		case <-pingCh:
			switch policy.Kind {
			case adapter.KeepaliveClientPing:
				if pongPending {
					missedPongs++
				} else {
					missedPongs = 0
				}
				if missedPongs >= 2 {
					return &ferr.KeepaliveLost{Exchange: f.exchange}
				}
				if policy.Ping != nil {
					if err := conn.Send(policy.Ping()); err != nil {
						return &ferr.TransportError{Cause: err}
					}
					pongPending = true
				}
			case adapter.KeepaliveApplicationLevel:
				if policy.ApplicationPing != nil {
					if err := conn.Send(policy.ApplicationPing()); err != nil {
						return &ferr.TransportError{Cause: err}
					}
				}
			}

		case <-watchdogCh:
			if time.Since(conn.LastActivity()) > staleAfter(policy.Kind, policy.Interval) {
				return &ferr.KeepaliveLost{Exchange: f.exchange}
			}
		}
	}
}

func (f *Feed) handleQuote(out adapter.AdapterOutput) {
	f.metrics.SetLastFrameTsNs(out.Record.ReceivedTsNs)
	if !f.store.Put(f.exchange, out.SymbolId, out.Record) {
		f.metrics.IncInvariantRejected()
		f.log.WithFields(logger.Fields{"symbol_id": out.SymbolId}).Debug("quote rejected invariant check")
		return
	}
	f.metrics.IncFramesDecoded()
}

type errTimeout string

func (e errTimeout) Error() string { return string(e) + " timed out" }
