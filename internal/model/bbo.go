// internal/model/bbo.go
package model

import "fmt"

// SymbolId is a dense, process-stable handle allocated by the symbol
// registry. Persistence across processes is not supported.
type SymbolId uint32

// InstrumentType partitions the symbol namespace; spot and perp
// instruments with the same base/quote never share an id.
type InstrumentType int

const (
	Spot InstrumentType = iota
	Perp
)

// String renders the upper-case token used in canonical symbol strings.
func (t InstrumentType) String() string {
	switch t {
	case Spot:
		return "SPOT"
	case Perp:
		return "PERP"
	default:
		return "UNKNOWN"
	}
}

// ParseInstrumentType maps a canonical token back to an InstrumentType.
func ParseInstrumentType(s string) (InstrumentType, bool) {
	switch s {
	case "SPOT":
		return Spot, true
	case "PERP":
		return Perp, true
	default:
		return 0, false
	}
}

// QuoteRecord is the normalized top-of-book snapshot written by every
// adapter. Fields are validated on write; see store.Put.
type QuoteRecord struct {
	BidPrice     float64
	AskPrice     float64
	BidQty       float64
	AskQty       float64
	ReceivedTsNs uint64
}

// Valid reports whether the record satisfies the invariants in spec §3.
func (r QuoteRecord) Valid() bool {
	return r.BidPrice > 0 &&
		r.AskPrice > 0 &&
		r.BidPrice <= r.AskPrice &&
		r.BidQty >= 0 &&
		r.AskQty >= 0
}

// Midquote returns (bid+ask)/2 for an already-read, internally
// consistent record.
func (r QuoteRecord) Midquote() float64 {
	return (r.BidPrice + r.AskPrice) / 2
}

// Spread returns ask-bid for an already-read, internally consistent record.
func (r QuoteRecord) Spread() float64 {
	return r.AskPrice - r.BidPrice
}

// String renders the record for diagnostic logging, e.g. when an
// InvariantError reports the record that was rejected.
func (r QuoteRecord) String() string {
	return fmt.Sprintf("bid=%g ask=%g bid_qty=%g ask_qty=%g ts=%d",
		r.BidPrice, r.AskPrice, r.BidQty, r.AskQty, r.ReceivedTsNs)
}

// VenueKey identifies a single (exchange, symbol) row in the quote store.
type VenueKey struct {
	Exchange string
	SymbolId SymbolId
}

// Field selects a single scalar from a QuoteRecord for store.GetField.
type Field int

const (
	FieldBid Field = iota
	FieldAsk
	FieldBidQty
	FieldAskQty
	FieldTs
)
