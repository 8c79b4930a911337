// engine/market.go
// Market is the read handle spec §4.5's get_market_data returns: every
// accessor operation spec §6 names, bound to one Engine's Quote Store
// and Registry. Grounded on the Store's own accessor set
// (internal/store/store.go), re-exposed one level up so a binding only
// ever imports this package, never internal/store directly.
package engine

import (
	"bbofeed/internal/model"
	"bbofeed/internal/registry"
	"bbofeed/internal/store"
)

// Market is safe for concurrent use by any number of readers.
type Market struct {
	store *store.Store
	reg   *registry.Registry
}

// Snapshot is the record-dictionary shape spec §6 mandates for
// get_market_data.
type Snapshot struct {
	Bid        float64
	Ask        float64
	BidQty     float64
	AskQty     float64
	ReceivedTs uint64
}

// GetBid returns the most recent best bid price for (exchange, id).
func (m *Market) GetBid(exchange string, id model.SymbolId) (float64, bool) {
	return m.store.GetField(exchange, id, model.FieldBid)
}

// GetAsk returns the most recent best ask price for (exchange, id).
func (m *Market) GetAsk(exchange string, id model.SymbolId) (float64, bool) {
	return m.store.GetField(exchange, id, model.FieldAsk)
}

// GetBidQty returns the most recent best bid quantity.
func (m *Market) GetBidQty(exchange string, id model.SymbolId) (float64, bool) {
	return m.store.GetField(exchange, id, model.FieldBidQty)
}

// GetAskQty returns the most recent best ask quantity.
func (m *Market) GetAskQty(exchange string, id model.SymbolId) (float64, bool) {
	return m.store.GetField(exchange, id, model.FieldAskQty)
}

// GetMidquote returns (bid+ask)/2 from a single atomic read.
func (m *Market) GetMidquote(exchange string, id model.SymbolId) (float64, bool) {
	return m.store.GetMidquote(exchange, id)
}

// GetSpread returns ask-bid from a single atomic read.
func (m *Market) GetSpread(exchange string, id model.SymbolId) (float64, bool) {
	return m.store.GetSpread(exchange, id)
}

// GetMarketData returns the full record dictionary for (exchange, id).
func (m *Market) GetMarketData(exchange string, id model.SymbolId) (Snapshot, bool) {
	rec, ok := m.store.GetRecord(exchange, id)
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		Bid:        rec.BidPrice,
		Ask:        rec.AskPrice,
		BidQty:     rec.BidQty,
		AskQty:     rec.AskQty,
		ReceivedTs: rec.ReceivedTsNs,
	}, true
}

// GetMidquoteMean averages midquotes for id across every exchange with
// a record inside the store's default 1 s recency window.
func (m *Market) GetMidquoteMean(id model.SymbolId) (float64, bool) {
	return m.store.MidquoteMean(id)
}

// GetAllSymbols returns every symbol id ever written under exchange.
func (m *Market) GetAllSymbols(exchange string) []model.SymbolId {
	return m.store.SymbolsOf(exchange)
}

// Exchanges returns every exchange name that has ever had a record
// written, a convenience beyond spec §6's named accessor set.
func (m *Market) Exchanges() []string {
	return m.store.Exchanges()
}

// Lookup is the Registry API's lookup(key, itype) -> Option<u32>.
func (m *Market) Lookup(key string, itype model.InstrumentType) (model.SymbolId, bool) {
	return m.reg.Resolve(key, itype)
}

// GetSymbol is the Registry API's get_symbol(id) -> Option<string>.
func (m *Market) GetSymbol(id model.SymbolId) (string, bool) {
	return m.reg.Canonical(id)
}
