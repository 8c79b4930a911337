// internal/registry/registry.go
// Symbol Registry (spec §4.1): canonicalizes free-form user symbol
// strings to a stable, dense numeric id and back. Grounded on the
// separator-normalization idioms of internal/symbols/mapper.go and on
// the copy-on-write publish discipline of Projectsrxg-kalshi_v2's
// registryState (internal/market/state.go) — an RWMutex there, an
// atomic snapshot swap here, per spec §9's "avoid a naive coarse lock"
// guidance for the registry's read-mostly map.
package registry

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"bbofeed/internal/model"
)

// ValidationError reports a malformed register() input (spec §4.1).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("registry: invalid %s: %s", e.Field, e.Reason)
}

type splitPair struct {
	base, quote string
}

// snapshot is the immutable, copy-on-write view published after every
// registration. Readers load it once and never observe a partially
// updated map.
type snapshot struct {
	canonicalToID map[string]model.SymbolId // "SPOT-BTC-USDT" -> id
	concatIndex   map[model.InstrumentType]map[string]splitPair
	idToCanonical []string // dense, index == SymbolId
}

func emptySnapshot() *snapshot {
	return &snapshot{
		canonicalToID: make(map[string]model.SymbolId),
		concatIndex:   make(map[model.InstrumentType]map[string]splitPair),
		idToCanonical: nil,
	}
}

// Registry is process-wide, constructed once, and shared by all
// readers and writers (spec §3 Ownership & lifecycle). It holds no
// ambient singleton state — callers construct and pass it explicitly
// (spec §9).
type Registry struct {
	allocMu sync.Mutex // serializes register(); never held across a read
	snap    atomic.Pointer[snapshot]
}

// New constructs an empty Registry.
func New() *Registry {
	r := &Registry{}
	r.snap.Store(emptySnapshot())
	return r
}

var separators = []byte{'-', '/', '_'}

// splitSeparated splits a key that contains one of the accepted
// separators into (base, quote). Only the first occurrence is used as
// the split point.
func splitSeparated(upper string) (base, quote string, ok bool) {
	for _, sep := range separators {
		if idx := strings.IndexByte(upper, sep); idx >= 0 {
			base = upper[:idx]
			quote = upper[idx+1:]
			return base, quote, base != "" && quote != ""
		}
	}
	return "", "", false
}

func canonicalString(itype model.InstrumentType, base, quote string) string {
	return itype.String() + "-" + base + "-" + quote
}

// SplitFreeForm uppercases key and splits it into (base, quote) using
// the separator rule in spec §3 (hyphen, slash, underscore). It does
// not consult the concatenation index, so it cannot split a
// no-separator key — callers needing that (Resolve) must go through a
// Registry instance instead. Adapter constructors use this to parse
// operator-supplied config keys (which must carry a separator the
// first time a pair is seen) before calling Register.
func SplitFreeForm(key string) (base, quote string, ok bool) {
	upper := strings.ToUpper(strings.TrimSpace(key))
	return splitSeparated(upper)
}

// Resolve normalizes key (uppercase, strip separators), splits it into
// (base, quote) per spec §3, and returns the existing id, if any.
func (r *Registry) Resolve(key string, itype model.InstrumentType) (model.SymbolId, bool) {
	upper := strings.ToUpper(strings.TrimSpace(key))
	if upper == "" {
		return 0, false
	}

	snap := r.snap.Load()

	if base, quote, ok := splitSeparated(upper); ok {
		id, found := snap.canonicalToID[canonicalString(itype, base, quote)]
		return id, found
	}

	// No separator: only succeeds if this exact concatenation was seen
	// at a prior registration. Spec §9: fail rather than guess a split.
	byType, ok := snap.concatIndex[itype]
	if !ok {
		return 0, false
	}
	pair, ok := byType[upper]
	if !ok {
		return 0, false
	}
	id, found := snap.canonicalToID[canonicalString(itype, pair.base, pair.quote)]
	return id, found
}

func validateHalf(field, v string) error {
	if v == "" {
		return &ValidationError{Field: field, Reason: "empty"}
	}
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c > 127 {
			return &ValidationError{Field: field, Reason: "non-ASCII"}
		}
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			return &ValidationError{Field: field, Reason: "contains whitespace"}
		}
	}
	return nil
}

// Register idempotently allocates (or returns the existing) id for
// (base, quote, itype). The allocator is serialized; the lookup maps
// are never mutated in place — a new snapshot is built and published
// atomically so concurrent Resolve/Canonical calls never block and
// never observe a half-written map.
func (r *Registry) Register(base, quote string, itype model.InstrumentType) (model.SymbolId, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if err := validateHalf("base", base); err != nil {
		return 0, err
	}
	if err := validateHalf("quote", quote); err != nil {
		return 0, err
	}

	r.allocMu.Lock()
	defer r.allocMu.Unlock()

	cur := r.snap.Load()
	canon := canonicalString(itype, base, quote)
	if id, ok := cur.canonicalToID[canon]; ok {
		return id, nil
	}

	next := &snapshot{
		canonicalToID: make(map[string]model.SymbolId, len(cur.canonicalToID)+1),
		concatIndex:   make(map[model.InstrumentType]map[string]splitPair, len(cur.concatIndex)),
		idToCanonical: make([]string, len(cur.idToCanonical), len(cur.idToCanonical)+1),
	}
	for k, v := range cur.canonicalToID {
		next.canonicalToID[k] = v
	}
	for t, m := range cur.concatIndex {
		cloned := make(map[string]splitPair, len(m)+1)
		for k, v := range m {
			cloned[k] = v
		}
		next.concatIndex[t] = cloned
	}
	copy(next.idToCanonical, cur.idToCanonical)

	id := model.SymbolId(len(next.idToCanonical))
	next.idToCanonical = append(next.idToCanonical, canon)
	next.canonicalToID[canon] = id

	byType, ok := next.concatIndex[itype]
	if !ok {
		byType = make(map[string]splitPair, 4)
		next.concatIndex[itype] = byType
	}
	pair := splitPair{base: base, quote: quote}
	byType[base+quote] = pair
	byType[base+"-"+quote] = pair
	byType[base+"/"+quote] = pair
	byType[base+"_"+quote] = pair

	r.snap.Store(next)
	return id, nil
}

// Canonical is the O(1) reverse lookup from id to printable form.
func (r *Registry) Canonical(id model.SymbolId) (string, bool) {
	snap := r.snap.Load()
	idx := int(id)
	if idx < 0 || idx >= len(snap.idToCanonical) {
		return "", false
	}
	return snap.idToCanonical[idx], true
}

// Len reports the number of distinct registered symbols, useful for
// tests asserting dense, monotone id allocation (spec §8 law 3).
func (r *Registry) Len() int {
	return len(r.snap.Load().idToCanonical)
}
