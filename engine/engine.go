// engine/engine.go
// Public API façade (spec §4.5): the one package a host application or
// language binding imports. It wires together the Symbol Registry,
// Quote Store, and Feed Supervisor without exposing any of their
// construction details, and owns the one process-wide Registry/Store
// pair it holds for convenience — spec §9's "may hold one for
// convenience but never impose it" is honored by every accessor taking
// the Engine receiver explicitly rather than reaching for a package
// singleton. Grounded on the teacher's main.go wiring sequence (load
// config, build components, spawn workers, wait for shutdown signal),
// reshaped into a library entry point instead of a standalone command.
package engine

import (
	"context"
	"sync"
	"time"

	"bbofeed/internal/adapter"
	_ "bbofeed/internal/adapter/binance"
	_ "bbofeed/internal/adapter/bybit"
	_ "bbofeed/internal/adapter/coinbase"
	_ "bbofeed/internal/adapter/kraken"
	_ "bbofeed/internal/adapter/lighter"
	_ "bbofeed/internal/adapter/mexc"
	"bbofeed/internal/config"
	"bbofeed/internal/diag"
	"bbofeed/internal/ferr"
	"bbofeed/internal/logger"
	"bbofeed/internal/model"
	"bbofeed/internal/registry"
	"bbofeed/internal/store"
	"bbofeed/internal/supervisor"
)

// ShutdownGrace is the default wait Shutdown allows feed tasks to
// reach Stopped before abandoning them (spec §5).
const ShutdownGrace = 5 * time.Second

type runningFeed struct {
	feed   *supervisor.Feed
	cancel context.CancelFunc
	done   chan struct{}
}

type feedKey struct {
	exchange string
	itype    model.InstrumentType
}

// Engine is the façade over Registry + Store + Supervisor. Construct
// one with New, call StartSpotFeeds/StartPerpFeeds as configuration
// arrives, read through the Market accessor methods, and call Shutdown
// once before discarding it.
type Engine struct {
	reg   *registry.Registry
	store *store.Store
	log   *logger.Log
	logs  *diag.LogStore

	mu    sync.Mutex
	feeds map[feedKey]*runningFeed
}

// New constructs an Engine with its own Registry and Quote Store. Pass
// a logger built and configured by the caller (spec §10); if nil, a
// default logger is built.
func New(log *logger.Log) *Engine {
	if log == nil {
		log = logger.Logger()
	}
	logs := diag.NewLogStore(200)
	log.AddHook(logs)

	return &Engine{
		reg:   registry.New(),
		store: store.New(),
		log:   log,
		logs:  logs,
		feeds: make(map[feedKey]*runningFeed),
	}
}

// StartSpotFeeds spawns (or extends) spot feeds per cfg.Spot. Per spec
// §4.5: idempotent for an already-running (exchange) pair, additive for
// new exchanges, and never stops an exchange omitted from cfg — that
// requires an explicit Shutdown.
func (e *Engine) StartSpotFeeds(cfg config.Config) error {
	return e.startFeeds(model.Spot, cfg.SectionFor(model.Spot))
}

// StartPerpFeeds is StartSpotFeeds for the perp instrument type.
func (e *Engine) StartPerpFeeds(cfg config.Config) error {
	return e.startFeeds(model.Perp, cfg.SectionFor(model.Perp))
}

func (e *Engine) startFeeds(itype model.InstrumentType, entries config.Entries) error {
	for exchange, symbolKeys := range entries {
		if !config.KnownVenue(exchange, itype) {
			return ferr.UnknownVenue(exchange)
		}

		key := feedKey{exchange: exchange, itype: itype}
		e.mu.Lock()
		_, running := e.feeds[key]
		e.mu.Unlock()
		if running {
			continue
		}

		a, err := adapter.Build(exchange, itype, e.reg, symbolKeys)
		if err != nil {
			return err
		}

		f := supervisor.NewFeed(a, symbolKeys, e.store, e.log)
		ctx, cancel := context.WithCancel(context.Background())
		rf := &runningFeed{feed: f, cancel: cancel, done: make(chan struct{})}

		e.mu.Lock()
		e.feeds[key] = rf
		e.mu.Unlock()

		go func() {
			defer close(rf.done)
			f.Run(ctx)
		}()
	}
	return nil
}

// Market returns a read handle bound to the Quote Store (spec §4.5
// get_market_data). The handle stays valid for the Engine's lifetime.
func (e *Engine) Market() *Market {
	return &Market{store: e.store, reg: e.reg}
}

// Registry exposes the engine's Symbol Registry for symbol lookups
// independent of any stored quote.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// RecentLogs returns the most recent captured log records, newest
// last, for host applications without external log infrastructure
// (SPEC_FULL §12).
func (e *Engine) RecentLogs() []diag.Record {
	return e.logs.Snapshot()
}

// Shutdown signals every running feed to stop, waits up to grace for
// all of them to reach Stopped, and returns. Feeds that do not observe
// cancellation within grace are abandoned (spec §5) — their transports
// are left for the OS to tear down.
func (e *Engine) Shutdown(grace time.Duration) {
	if grace <= 0 {
		grace = ShutdownGrace
	}

	e.mu.Lock()
	feeds := make([]*runningFeed, 0, len(e.feeds))
	for _, rf := range e.feeds {
		feeds = append(feeds, rf)
	}
	e.mu.Unlock()

	for _, rf := range feeds {
		rf.cancel()
	}

	deadline := time.Now().Add(grace)
	for _, rf := range feeds {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		timer := time.NewTimer(remaining)
		select {
		case <-rf.done:
			timer.Stop()
		case <-timer.C:
			e.log.WithComponent("engine").Warn("feed did not stop within shutdown grace, abandoning")
		}
	}
}
