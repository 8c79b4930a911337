// internal/adapter/common.go
// Shared plumbing every venue adapter's constructor uses (spec §4.3:
// "shared code factors separator/casing rules only"). Grounded on
// internal/symbols/mapper.go's normalization helpers, generalized from
// a single venue's ToBinance()-style formatter to a registration
// helper any adapter factory can call before building its own
// venue-symbol index.
package adapter

import (
	"bbofeed/internal/ferr"
	"bbofeed/internal/model"
	"bbofeed/internal/registry"
)

// ResolvedSymbol is one registered (base, quote) pair and the
// registry id it was assigned.
type ResolvedSymbol struct {
	SymbolId  model.SymbolId
	Base      string
	Quote     string
	Canonical string
}

// RegisterAll splits and registers every entry in symbolKeys against
// reg for itype, in order. It fails closed on the first key that
// doesn't carry a recognized separator (spec §3: registration requires
// an explicit separator the first time a pair is seen) with a
// ConfigError naming the offending key.
func RegisterAll(reg *registry.Registry, itype model.InstrumentType, symbolKeys []string) ([]ResolvedSymbol, error) {
	out := make([]ResolvedSymbol, 0, len(symbolKeys))
	for _, key := range symbolKeys {
		base, quote, ok := registry.SplitFreeForm(key)
		if !ok {
			return nil, ferr.UnknownSymbol(key)
		}
		id, err := reg.Register(base, quote, itype)
		if err != nil {
			return nil, ferr.UnknownSymbol(key)
		}
		canonical, _ := reg.Canonical(id)
		out = append(out, ResolvedSymbol{SymbolId: id, Base: base, Quote: quote, Canonical: canonical})
	}
	return out, nil
}

// SymbolIndex is the bidirectional map every adapter builds once at
// construction time: registry SymbolId on one side, this venue's wire
// symbol string on the other. Immutable after Build; safe for
// concurrent read-only use from Decode.
type SymbolIndex struct {
	venueToID     map[string]model.SymbolId
	idToVenue     map[model.SymbolId]string
	idToBaseQuote map[model.SymbolId]ResolvedSymbol
}

// BuildIndex formats each resolved symbol with format (the venue's
// native concatenation rule, e.g. Binance's "BASEQUOTE" or Coinbase's
// "BASE-QUOTE") and indexes both directions.
func BuildIndex(resolved []ResolvedSymbol, format func(base, quote string) string) *SymbolIndex {
	idx := &SymbolIndex{
		venueToID:     make(map[string]model.SymbolId, len(resolved)),
		idToVenue:     make(map[model.SymbolId]string, len(resolved)),
		idToBaseQuote: make(map[model.SymbolId]ResolvedSymbol, len(resolved)),
	}
	for _, r := range resolved {
		venueSym := format(r.Base, r.Quote)
		idx.venueToID[venueSym] = r.SymbolId
		idx.idToVenue[r.SymbolId] = venueSym
		idx.idToBaseQuote[r.SymbolId] = r
	}
	return idx
}

// Lookup resolves a venue wire symbol string to its registry SymbolId.
func (idx *SymbolIndex) Lookup(venueSymbol string) (model.SymbolId, bool) {
	id, ok := idx.venueToID[venueSymbol]
	return id, ok
}

// VenueFormat is the inverse of Lookup.
func (idx *SymbolIndex) VenueFormat(id model.SymbolId) (string, bool) {
	s, ok := idx.idToVenue[id]
	return s, ok
}

// BaseQuote returns the (base, quote) pair registered for a venue wire
// symbol string, used to implement VenueFormatToSymbol.
func (idx *SymbolIndex) BaseQuote(venueSymbol string) (base, quote string, ok bool) {
	id, ok := idx.venueToID[venueSymbol]
	if !ok {
		return "", "", false
	}
	r := idx.idToBaseQuote[id]
	return r.Base, r.Quote, true
}

// Symbols returns every venue wire symbol string in the index, used to
// build chunked subscribe payloads.
func (idx *SymbolIndex) Symbols() []string {
	out := make([]string, 0, len(idx.venueToID))
	for s := range idx.venueToID {
		out = append(out, s)
	}
	return out
}

// Chunk splits items into groups of at most size, preserving order.
// Venues that cap the number of channels per subscribe message (spec
// §4.3 "exchanges that limit subscription batches must chunk") use
// this to build one OutgoingFrame per chunk.
func Chunk(items []string, size int) [][]string {
	if size <= 0 || len(items) <= size {
		if len(items) == 0 {
			return nil
		}
		return [][]string{items}
	}
	var out [][]string
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}
