// internal/adapter/coinbase/coinbase.go
// Coinbase Advanced Trade spot adapter (spec §4.3 venue set). The
// "ticker" channel pushes one JSON event per trade/quote update
// carrying best_bid/best_ask as decimal strings, wrapped in an
// envelope of "channel"/"events"/"tickers". Grounded on
// internal/pipeline/normalizer/binance.go's decode-then-lookup shape,
// adapted to Coinbase's nested events[].tickers[] wire layout and its
// hyphenated "BASE-QUOTE" product_id format (spec §4.3: same-venue
// code differs from Binance only in separator/casing and envelope
// shape).
package coinbase

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

const endpoint = "wss://advanced-trade-ws.coinbase.com"

type tickerEvent struct {
	ProductID string `json:"product_id"`
	BestBid   string `json:"best_bid"`
	BestAsk   string `json:"best_ask"`
	BestBidSz string `json:"best_bid_quantity"`
	BestAskSz string `json:"best_ask_quantity"`
}

type tickerEnvelope struct {
	Channel string `json:"channel"`
	Events  []struct {
		Type    string        `json:"type"`
		Tickers []tickerEvent `json:"tickers"`
	} `json:"events"`
}

type subscriptionsEnvelope struct {
	Channel string `json:"channel"`
}

type venueAdapter struct {
	idx *adapter.SymbolIndex
}

// New builds the Coinbase Advanced Trade spot ticker adapter factory.
func New() adapter.Factory {
	return func(reg *registry.Registry, symbolKeys []string) (adapter.Adapter, error) {
		resolved, err := adapter.RegisterAll(reg, model.Spot, symbolKeys)
		if err != nil {
			return nil, err
		}
		idx := adapter.BuildIndex(resolved, func(base, quote string) string {
			return base + "-" + quote
		})
		return &venueAdapter{idx: idx}, nil
	}
}

func init() {
	adapter.RegisterFactory("coinbase", model.Spot, New())
}

func (a *venueAdapter) Exchange() string                    { return "coinbase" }
func (a *venueAdapter) InstrumentType() model.InstrumentType { return model.Spot }
func (a *venueAdapter) Endpoint() string                     { return endpoint }
func (a *venueAdapter) RequiresSubscribeAck() bool           { return true }

func (a *venueAdapter) SubscribePayload(symbolKeys []string) ([]adapter.OutgoingFrame, error) {
	productIDs := a.idx.Symbols()
	payload, err := json.Marshal(map[string]interface{}{
		"type":        "subscribe",
		"product_ids": productIDs,
		"channel":     "ticker",
	})
	if err != nil {
		return nil, err
	}
	return []adapter.OutgoingFrame{{Payload: payload}}, nil
}

func (a *venueAdapter) Decode(frame adapter.IncomingFrame) adapter.AdapterOutput {
	var sub subscriptionsEnvelope
	if err := json.Unmarshal(frame.Payload, &sub); err == nil && sub.Channel == "subscriptions" {
		return adapter.AdapterOutput{Kind: adapter.OutputAck}
	}

	var env tickerEnvelope
	if err := json.Unmarshal(frame.Payload, &env); err != nil {
		return adapter.AdapterOutput{Kind: adapter.OutputDecodeError, DecodeError: err}
	}
	if env.Channel == "heartbeats" {
		return adapter.AdapterOutput{Kind: adapter.OutputHeartbeat}
	}
	if env.Channel != "ticker" && env.Channel != "ticker_batch" {
		return adapter.AdapterOutput{Kind: adapter.OutputIgnored}
	}

	for _, ev := range env.Events {
		for _, t := range ev.Tickers {
			if t.ProductID == "" {
				continue
			}
			id, ok := a.idx.Lookup(strings.ToUpper(t.ProductID))
			if !ok {
				continue
			}

			bid, err1 := decimal.NewFromString(t.BestBid)
			ask, err2 := decimal.NewFromString(t.BestAsk)
			if err1 != nil || err2 != nil {
				return adapter.AdapterOutput{Kind: adapter.OutputDecodeError, DecodeError: fmt.Errorf("coinbase: malformed ticker numeric field")}
			}
			bidQty, _ := decimal.NewFromString(t.BestBidSz)
			askQty, _ := decimal.NewFromString(t.BestAskSz)

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
