// internal/adapter/binance/binance.go
// Binance spot and USD-M futures bookTicker adapters (spec §4.3
// venue set). Both stream shapes are identical: one JSON object per
// update carrying best bid/ask price and quantity, keyed by the
// concatenated lowercase symbol the client subscribed with — so a
// single decode routine serves both instrument types, differing only
// in endpoint and registry instrument type, matching spec §4.3's
// "shared code factors separator/casing rules only" for same-venue
// adapters. Grounded on internal/pipeline/normalizer/binance.go's
// json.Unmarshal-then-parse shape, with shopspring/decimal in place of
// strconv.ParseFloat for lossless price parsing per SPEC_FULL §11.
package binance

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bbofeed/internal/adapter"
	"bbofeed/internal/model"
	"bbofeed/internal/registry"
)

const subscribeChunkSize = 50

type bookTickerFrame struct {
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

type subscribeAck struct {
	ID     int64       `json:"id"`
	Result interface{} `json:"result"`
}

type venueAdapter struct {
	exchange string
	itype    model.InstrumentType
	endpoint string
	idx      *adapter.SymbolIndex
}

func newAdapter(exchange, endpoint string, itype model.InstrumentType) adapter.Factory {
	return func(reg *registry.Registry, symbolKeys []string) (adapter.Adapter, error) {
		resolved, err := adapter.RegisterAll(reg, itype, symbolKeys)
		if err != nil {
			return nil, err
		}
		idx := adapter.BuildIndex(resolved, func(base, quote string) string {
			return strings.ToLower(base + quote)
		})
		return &venueAdapter{exchange: exchange, itype: itype, endpoint: endpoint, idx: idx}, nil
	}
}

// NewSpot builds the Binance spot bookTicker adapter factory.
func NewSpot() adapter.Factory {
	return newAdapter("binance", "wss://stream.binance.com:9443/ws", model.Spot)
}

// NewPerp builds the Binance USD-M futures bookTicker adapter factory.
func NewPerp() adapter.Factory {
	return newAdapter("binance", "wss://fstream.binance.com/ws", model.Perp)
}

func init() {
	adapter.RegisterFactory("binance", model.Spot, NewSpot())
	adapter.RegisterFactory("binance", model.Perp, NewPerp())
}

func (a *venueAdapter) Exchange() string                    { return a.exchange }
func (a *venueAdapter) InstrumentType() model.InstrumentType { return a.itype }
func (a *venueAdapter) Endpoint() string                     { return a.endpoint }
func (a *venueAdapter) RequiresSubscribeAck() bool           { return true }

func (a *venueAdapter) SubscribePayload(symbolKeys []string) ([]adapter.OutgoingFrame, error) {
	streams := make([]string, 0, len(symbolKeys))
	for _, venueSym := range a.idx.Symbols() {
		streams = append(streams, venueSym+"@bookTicker")
	}
	chunks := adapter.Chunk(streams, subscribeChunkSize)

	frames := make([]adapter.OutgoingFrame, 0, len(chunks))
	for i, chunk := range chunks {
		payload, err := json.Marshal(map[string]interface{}{
			"method": "SUBSCRIBE",
			"params": chunk,
			"id":     i + 1,
		})
		if err != nil {
			return nil, err
		}
		frames = append(frames, adapter.OutgoingFrame{Payload: payload})
	}
	return frames, nil
}

func (a *venueAdapter) Decode(frame adapter.IncomingFrame) adapter.AdapterOutput {
	var ack subscribeAck
	if err := json.Unmarshal(frame.Payload, &ack); err == nil && ack.ID != 0 {
		return adapter.AdapterOutput{Kind: adapter.OutputAck}
	}

	var bt bookTickerFrame
	if err := json.Unmarshal(frame.Payload, &bt); err != nil {
		return adapter.AdapterOutput{Kind: adapter.OutputDecodeError, DecodeError: err}
	}
	if bt.Symbol == "" {
		return adapter.AdapterOutput{Kind: adapter.OutputIgnored}
	}

	id, ok := a.idx.Lookup(strings.ToLower(bt.Symbol))
	if !ok {
		return adapter.AdapterOutput{Kind: adapter.OutputIgnored}
	}

	bid, err1 := decimal.NewFromString(bt.BidPrice)
	ask, err2 := decimal.NewFromString(bt.AskPrice)
	bidQty, err3 := decimal.NewFromString(bt.BidQty)
	askQty, err4 := decimal.NewFromString(bt.AskQty)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return adapter.AdapterOutput{Kind: adapter.OutputDecodeError, DecodeError: fmt.Errorf("binance: malformed bookTicker numeric field")}
	}

	bidF, _ := bid.Float64()
	askF, _ := ask.Float64()
	bidQtyF, _ := bidQty.Float64()
	askQtyF, _ := askQty.Float64()

	return adapter.AdapterOutput{
		Kind:     adapter.OutputQuote,
		SymbolId: id,
		Record: model.QuoteRecord{
			BidPrice:     bidF,
			AskPrice:     askF,
			BidQty:       bidQtyF,
			AskQty:       askQtyF,
			ReceivedTsNs: uint64(time.Now().UnixNano()),
		},
	}
}

func (a *venueAdapter) KeepalivePolicy() adapter.KeepalivePolicy {
	return adapter.KeepalivePolicy{Kind: adapter.KeepaliveRespondToServerPing, Interval: 3 * time.Minute}
}

func (a *venueAdapter) SymbolToVenueFormat(id model.SymbolId, _ string) string {
	s, _ := a.idx.VenueFormat(id)
	return s
}

func (a *venueAdapter) VenueFormatToSymbol(venueSymbol string) (base, quote string, ok bool) {
	return a.idx.BaseQuote(strings.ToLower(venueSymbol))
}
