// internal/store/store.go
// Quote Store (spec §4.2): holds the latest BBO per VenueKey with
// concurrent, lossy-latest semantics. Partitioned per exchange to
// localize contention (spec §4.2/§9); within a partition, each symbol
// gets its own slot whose record is published via an atomic pointer
// swap — copy-on-write of an immutable *model.QuoteRecord, one of the
// two strategies spec §9 names (seqlock being the other) for
// satisfying the torn-read prohibition without readers ever blocking
// writers of a different key. Grounded on the RWMutex-guarded,
// copy-on-write map discipline of Projectsrxg-kalshi_v2's
// registryState (internal/market/state.go), generalized from one
// process-wide map to a per-exchange partition table.
package store

import (
	"sync"
	"sync/atomic"
	"time"

	"bbofeed/internal/model"
)

// DefaultRecencyWindow is the window MidquoteMean uses by default
// (spec §4.2).
const DefaultRecencyWindow = time.Second

type slot struct {
	rec atomic.Pointer[model.QuoteRecord]
}

type partition struct {
	mu    sync.RWMutex
	slots map[model.SymbolId]*slot
}

func newPartition() *partition {
	return &partition{slots: make(map[model.SymbolId]*slot)}
}

// getOrCreate never blocks on a key that already exists: the common
// path only takes a read lock to fetch the slot pointer, after which
// all access to the record itself goes through the slot's atomic
// pointer with no locking at all.
func (p *partition) getOrCreate(id model.SymbolId) *slot {
	p.mu.RLock()
	s, ok := p.slots[id]
	p.mu.RUnlock()
	if ok {
		return s
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok = p.slots[id]
	if !ok {
		s = &slot{}
		p.slots[id] = s
	}
	return s
}

func (p *partition) lookup(id model.SymbolId) (*slot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.slots[id]
	return s, ok
}

func (p *partition) symbols() []model.SymbolId {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]model.SymbolId, 0, len(p.slots))
	for id := range p.slots {
		out = append(out, id)
	}
	return out
}

// Store is shared by all feed tasks (writers) and the façade (readers);
// its lifetime equals the engine's (spec §3). Constructed explicitly,
// never an ambient singleton (spec §9).
type Store struct {
	mu         sync.RWMutex
	partitions map[string]*partition
}

// New constructs an empty Store.
func New() *Store {
	return &Store{partitions: make(map[string]*partition)}
}

func (s *Store) partitionFor(exchange string) *partition {
	s.mu.RLock()
	p, ok := s.partitions[exchange]
	s.mu.RUnlock()
	if ok {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok = s.partitions[exchange]
	if !ok {
		p = newPartition()
		s.partitions[exchange] = p
	}
	return p
}

func (s *Store) lookupPartition(exchange string) (*partition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.partitions[exchange]
	return p, ok
}

// Put overwrites the previous record for (exchange, id). Records that
// violate the spec §3 invariants are rejected and the previous value
// (if any) is left unchanged; ok reports whether the write landed.
// Put never suspends (spec §5): the partition/slot lookups are brief,
// uncontended after warmup, in-memory locks, and the publish itself is
// a single atomic pointer store.
func (s *Store) Put(exchange string, id model.SymbolId, rec model.QuoteRecord) (ok bool) {
	if !rec.Valid() {
		return false
	}
	p := s.partitionFor(exchange)
	sl := p.getOrCreate(id)
	recCopy := rec
	sl.rec.Store(&recCopy)
	return true
}

// GetRecord returns an atomic copy of the full record, or ok=false if
// no write has landed for this key.
func (s *Store) GetRecord(exchange string, id model.SymbolId) (model.QuoteRecord, bool) {
	p, ok := s.lookupPartition(exchange)
	if !ok {
		return model.QuoteRecord{}, false
	}
	sl, ok := p.lookup(id)
	if !ok {
		return model.QuoteRecord{}, false
	}
	rec := sl.rec.Load()
	if rec == nil {
		return model.QuoteRecord{}, false
	}
	return *rec, true
}

// GetField returns one scalar from the current record. FieldTs narrows
// ReceivedTsNs (a nanosecond epoch uint64) to float64, which only
// carries 53 bits of exact integer precision — a few of the low-order
// nanosecond digits can be lost for the generic accessor. Callers that
// need the exact value (e.g. recency-window comparisons) should use
// GetRecord instead, which returns ReceivedTsNs unconverted.
func (s *Store) GetField(exchange string, id model.SymbolId, field model.Field) (float64, bool) {
	rec, ok := s.GetRecord(exchange, id)
	if !ok {
		return 0, false
	}
	switch field {
	case model.FieldBid:
		return rec.BidPrice, true
	case model.FieldAsk:
		return rec.AskPrice, true
	case model.FieldBidQty:
		return rec.BidQty, true
	case model.FieldAskQty:
		return rec.AskQty, true
	case model.FieldTs:
		return float64(rec.ReceivedTsNs), true
	default:
		return 0, false
	}
}

// GetMidquote returns (bid+ask)/2 from a single atomic read.
func (s *Store) GetMidquote(exchange string, id model.SymbolId) (float64, bool) {
	rec, ok := s.GetRecord(exchange, id)
	if !ok {
		return 0, false
	}
	return rec.Midquote(), true
}

// GetSpread returns ask-bid from a single atomic read.
func (s *Store) GetSpread(exchange string, id model.SymbolId) (float64, bool) {
	rec, ok := s.GetRecord(exchange, id)
	if !ok {
		return 0, false
	}
	return rec.Spread(), true
}

// SymbolsOf returns a snapshot of every symbol id ever written under
// exchange.
func (s *Store) SymbolsOf(exchange string) []model.SymbolId {
	p, ok := s.lookupPartition(exchange)
	if !ok {
		return nil
	}
	return p.symbols()
}

// Exchanges returns a snapshot of every exchange name that has ever
// had a record written.
func (s *Store) Exchanges() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.partitions))
	for ex := range s.partitions {
		out = append(out, ex)
	}
	return out
}

// MidquoteMean scans every exchange holding a record for id and
// averages midquotes whose ReceivedTsNs falls within the default
// recency window of now. Returns ok=false if that set is empty.
func (s *Store) MidquoteMean(id model.SymbolId) (float64, bool) {
	return s.MidquoteMeanAt(id, DefaultRecencyWindow, time.Now())
}

// MidquoteMeanAt is the testable form of MidquoteMean with an
// explicit window and reference time.
func (s *Store) MidquoteMeanAt(id model.SymbolId, window time.Duration, now time.Time) (float64, bool) {
	cutoff := uint64(now.Add(-window).UnixNano())

	s.mu.RLock()
	partitions := make([]*partition, 0, len(s.partitions))
	for _, p := range s.partitions {
		partitions = append(partitions, p)
	}
	s.mu.RUnlock()

	var sum float64
	var n int
	for _, p := range partitions {
		sl, ok := p.lookup(id)
		if !ok {
			continue
		}
		rec := sl.rec.Load()
		if rec == nil || rec.ReceivedTsNs < cutoff {
			continue
		}
		sum += rec.Midquote()
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
