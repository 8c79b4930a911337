// internal/adapter/bybit/bybit.go
// Bybit v5 unified WebSocket adapter, spot and linear perp (spec §4.3
// venue set). Both categories share one topic shape: "tickers.{symbol}"
// pushes snapshot/delta frames carrying bid1Price/ask1Price (and, on
// deltas, only the fields that changed) under a "data" object, wrapped
// in a "topic"/"type"/"data" envelope. Grounded on
// internal/pipeline/normalizer/bybit.go's snapshot-vs-delta merge
// idiom, generalized into a per-symbol last-good cache so a delta frame
// missing bid or ask still yields a valid quote (spec §4.3 "adapters
// that deliver partial updates must retain last-known values").
package bybit

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"bbofeed/internal/adapter"
	"bbofeed/internal/model"
	"bbofeed/internal/registry"
)

const (
	spotEndpoint = "wss://stream.bybit.com/v5/public/spot"
	perpEndpoint = "wss://stream.bybit.com/v5/public/linear"

	subscribeChunkSize = 10
)

type tickerData struct {
	Symbol    string `json:"symbol"`
	Bid1Price string `json:"bid1Price"`
	Bid1Size  string `json:"bid1Size"`
	Ask1Price string `json:"ask1Price"`
	Ask1Size  string `json:"ask1Size"`
}

type tickerEnvelope struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
}

type opEnvelope struct {
	Op      string `json:"op"`
	Success *bool  `json:"success"`
}

type lastGood struct {
	bid, bidQty, ask, askQty decimal.Decimal
}

type venueAdapter struct {
	exchange string
	itype    model.InstrumentType
	endpoint string
	idx      *adapter.SymbolIndex

	mu    sync.Mutex
	cache map[model.SymbolId]lastGood
}

func newAdapter(endpoint string, itype model.InstrumentType) adapter.Factory {
	return func(reg *registry.Registry, symbolKeys []string) (adapter.Adapter, error) {
		resolved, err := adapter.RegisterAll(reg, itype, symbolKeys)
		if err != nil {
			return nil, err
		}
		idx := adapter.BuildIndex(resolved, func(base, quote string) string {
			return strings.ToUpper(base + quote)
		})
		return &venueAdapter{
			exchange: "bybit",
			itype:    itype,
			endpoint: endpoint,
			idx:      idx,
			cache:    make(map[model.SymbolId]lastGood, len(resolved)),
		}, nil
	}
}

// NewSpot builds the Bybit spot ticker adapter factory.
func NewSpot() adapter.Factory { return newAdapter(spotEndpoint, model.Spot) }

// NewPerp builds the Bybit linear perpetual ticker adapter factory.
func NewPerp() adapter.Factory { return newAdapter(perpEndpoint, model.Perp) }

func init() {
	adapter.RegisterFactory("bybit", model.Spot, NewSpot())
	adapter.RegisterFactory("bybit", model.Perp, NewPerp())
}

func (a *venueAdapter) Exchange() string                    { return a.exchange }
func (a *venueAdapter) InstrumentType() model.InstrumentType { return a.itype }
func (a *venueAdapter) Endpoint() string                     { return a.endpoint }
func (a *venueAdapter) RequiresSubscribeAck() bool           { return true }

func (a *venueAdapter) SubscribePayload(symbolKeys []string) ([]adapter.OutgoingFrame, error) {
	topics := make([]string, 0, len(a.idx.Symbols()))
	for _, sym := range a.idx.Symbols() {
		topics = append(topics, "tickers."+sym)
	}
	chunks := adapter.Chunk(topics, subscribeChunkSize)

	frames := make([]adapter.OutgoingFrame, 0, len(chunks))
	for _, chunk := range chunks {
		payload, err := json.Marshal(map[string]interface{}{
			"op":   "subscribe",
			"args": chunk,
		})
		if err != nil {
			return nil, err
		}
		frames = append(frames, adapter.OutgoingFrame{Payload: payload})
	}
	return frames, nil
}

func (a *venueAdapter) Decode(frame adapter.IncomingFrame) adapter.AdapterOutput {
	var op opEnvelope
	if err := json.Unmarshal(frame.Payload, &op); err == nil && op.Op != "" {
		if op.Op == "subscribe" {
			return adapter.AdapterOutput{Kind: adapter.OutputAck}
		}
		if op.Op == "ping" || op.Op == "pong" {
			return adapter.AdapterOutput{Kind: adapter.OutputHeartbeat}
		}
	}

	var env tickerEnvelope
	if err := json.Unmarshal(frame.Payload, &env); err != nil {
		return adapter.AdapterOutput{Kind: adapter.OutputDecodeError, DecodeError: err}
	}
	if !strings.HasPrefix(env.Topic, "tickers.") {
		return adapter.AdapterOutput{Kind: adapter.OutputIgnored}
	}

	var td tickerData
	if err := json.Unmarshal(env.Data, &td); err != nil {
		return adapter.AdapterOutput{Kind: adapter.OutputDecodeError, DecodeError: err}
	}
	if td.Symbol == "" {
		return adapter.AdapterOutput{Kind: adapter.OutputIgnored}
	}

	id, ok := a.idx.Lookup(td.Symbol)
	if !ok {
		return adapter.AdapterOutput{Kind: adapter.OutputIgnored}
	}

	a.mu.Lock()
	cur := a.cache[id]
	if td.Bid1Price != "" {
		if v, err := decimal.NewFromString(td.Bid1Price); err == nil {
			cur.bid = v
		}
	}
	if td.Bid1Size != "" {
		if v, err := decimal.NewFromString(td.Bid1Size); err == nil {
			cur.bidQty = v
		}
	}
	if td.Ask1Price != "" {
		if v, err := decimal.NewFromString(td.Ask1Price); err == nil {
			cur.ask = v
		}
	}
	if td.Ask1Size != "" {
		if v, err := decimal.NewFromString(td.Ask1Size); err == nil {
			cur.askQty = v
		}
	}
	a.cache[id] = cur
	a.mu.Unlock()

	if cur.bid.IsZero() || cur.ask.IsZero() {
		return adapter.AdapterOutput{Kind: adapter.OutputIgnored}
	}

	bidF, _ := cur.bid.Float64()
	askF, _ := cur.ask.Float64()
	bidQtyF, _ := cur.bidQty.Float64()
	askQtyF, _ := cur.askQty.Float64()

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
	return adapter.KeepalivePolicy{
		Kind:     adapter.KeepaliveClientPing,
		Interval: 20 * time.Second,
		Ping: func() adapter.OutgoingFrame {
			payload, _ := json.Marshal(map[string]string{"op": "ping"})
			return adapter.OutgoingFrame{Payload: payload}
		},
		IsPong: func(f adapter.IncomingFrame) bool {
			var op opEnvelope
			if err := json.Unmarshal(f.Payload, &op); err != nil {
				return false
			}
			return op.Op == "pong"
		},
	}
}

func (a *venueAdapter) SymbolToVenueFormat(id model.SymbolId, _ string) string {
	s, _ := a.idx.VenueFormat(id)
	return s
}

func (a *venueAdapter) VenueFormatToSymbol(venueSymbol string) (base, quote string, ok bool) {
	return a.idx.BaseQuote(strings.ToUpper(venueSymbol))
}
