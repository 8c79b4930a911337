// internal/adapter/kraken/kraken.go
// Kraken WebSocket v2 spot adapter (spec §4.3 venue set). The "ticker"
// channel pushes one envelope per update with "channel":"ticker" and a
// "data" array of objects carrying bid/ask price and quantity, keyed by
// Kraken's native slash-separated pair name (e.g. "BTC/USD"). Grounded
// on internal/pipeline/normalizer/bybit.go's envelope-unwrap-then-
// lookup shape, adapted to Kraken v2's array-of-updates "data" field
// and its numeric (not string) price/qty encoding.
package kraken

import (
	"encoding/json"
	"strings"
	"time"

	"bbofeed/internal/adapter"
	"bbofeed/internal/model"
	"bbofeed/internal/registry"
)

const endpoint = "wss://ws.kraken.com/v2"

type tickerUpdate struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	BidQty float64 `json:"bid_qty"`
	Ask    float64 `json:"ask"`
	AskQty float64 `json:"ask_qty"`
}

type envelope struct {
	Channel string          `json:"channel"`
	Type    string          `json:"type"`
	Method  string          `json:"method"`
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type venueAdapter struct {
	idx *adapter.SymbolIndex
}

// New builds the Kraken v2 spot ticker adapter factory.
func New() adapter.Factory {
	return func(reg *registry.Registry, symbolKeys []string) (adapter.Adapter, error) {
		resolved, err := adapter.RegisterAll(reg, model.Spot, symbolKeys)
		if err != nil {
			return nil, err
		}
		idx := adapter.BuildIndex(resolved, func(base, quote string) string {
			return base + "/" + quote
		})
		return &venueAdapter{idx: idx}, nil
	}
}

func init() {
	adapter.RegisterFactory("kraken", model.Spot, New())
}

func (a *venueAdapter) Exchange() string                    { return "kraken" }
func (a *venueAdapter) InstrumentType() model.InstrumentType { return model.Spot }
func (a *venueAdapter) Endpoint() string                     { return endpoint }
func (a *venueAdapter) RequiresSubscribeAck() bool           { return true }

func (a *venueAdapter) SubscribePayload(symbolKeys []string) ([]adapter.OutgoingFrame, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"method": "subscribe",
		"params": map[string]interface{}{
			"channel": "ticker",
			"symbol":  a.idx.Symbols(),
		},
	})
	if err != nil {
		return nil, err
	}
	return []adapter.OutgoingFrame{{Payload: payload}}, nil
}

func (a *venueAdapter) Decode(frame adapter.IncomingFrame) adapter.AdapterOutput {
	var env envelope
	if err := json.Unmarshal(frame.Payload, &env); err != nil {
		return adapter.AdapterOutput{Kind: adapter.OutputDecodeError, DecodeError: err}
	}

	if env.Method == "subscribe" {
		return adapter.AdapterOutput{Kind: adapter.OutputAck}
	}
	if env.Channel == "heartbeat" {
		return adapter.AdapterOutput{Kind: adapter.OutputHeartbeat}
	}
	if env.Channel != "ticker" || len(env.Data) == 0 {
		return adapter.AdapterOutput{Kind: adapter.OutputIgnored}
	}

	var updates []tickerUpdate
	if err := json.Unmarshal(env.Data, &updates); err != nil {
		return adapter.AdapterOutput{Kind: adapter.OutputDecodeError, DecodeError: err}
	}
	for _, u := range updates {
		if u.Symbol == "" {
			continue
		}
		id, ok := a.idx.Lookup(strings.ToUpper(u.Symbol))
		if !ok {
			continue
		}
		return adapter.AdapterOutput{
			Kind:     adapter.OutputQuote,
			SymbolId: id,
			Record: model.QuoteRecord{
				BidPrice:     u.Bid,
				AskPrice:     u.Ask,
				BidQty:       u.BidQty,
				AskQty:       u.AskQty,
				ReceivedTsNs: uint64(time.Now().UnixNano()),
			},
		}
	}
	return adapter.AdapterOutput{Kind: adapter.OutputIgnored}
}

func (a *venueAdapter) KeepalivePolicy() adapter.KeepalivePolicy {
	return adapter.KeepalivePolicy{Kind: adapter.KeepaliveApplicationLevel, Interval: 30 * time.Second}
}

func (a *venueAdapter) SymbolToVenueFormat(id model.SymbolId, _ string) string {
	s, _ := a.idx.VenueFormat(id)
	return s
}

func (a *venueAdapter) VenueFormatToSymbol(venueSymbol string) (base, quote string, ok bool) {
	return a.idx.BaseQuote(strings.ToUpper(venueSymbol))
}
