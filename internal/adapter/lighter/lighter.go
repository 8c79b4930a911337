// internal/adapter/lighter/lighter.go
// Lighter perpetual DEX adapter (spec §4.3 venue set). Lighter's public
// WebSocket is order-book-centric rather than ticker-centric: a
// "subscribe" to "order_book/{market_id}" pushes periodic snapshots
// whose top level of bids/asks (sorted best-first) stands in for a
// top-of-book quote. Market identifiers are small integers assigned by
// the exchange rather than symbol strings, so this adapter keeps its
// own venue-symbol-key -> market id table built at construction time
// from the operator's config (spec §4.3: "a venue whose wire protocol
// has no native symbol string still canonicalizes through the registry
// using its configured key"). Grounded on internal/pipeline/
// normalizer/bybit.go's envelope-unwrap shape, adapted to an
// order-book-levels payload in place of a ticker object.
package lighter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bbofeed/internal/adapter"
	"bbofeed/internal/model"
	"bbofeed/internal/registry"
)

const endpoint = "wss://mainnet.zklighter.elliot.ai/stream"

type level struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

type orderBookData struct {
	MarketID int     `json:"market_id"`
	Bids     []level `json:"bids"`
	Asks     []level `json:"asks"`
}

type envelope struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	OrderBook *orderBookData `json:"order_book"`
}

type venueAdapter struct {
	// marketIDToSymbolId maps Lighter's configured market id (a small
	// integer the operator supplies as the second half of a "BTC-<marketID>"
	// style key) to the registered symbol.
	marketIDToSymbolId map[int]model.SymbolId
	symbolIdToMarketID map[model.SymbolId]int
	idx                *adapter.SymbolIndex
}

// New builds the Lighter perp order-book top-of-book adapter factory.
// symbolKeys entries must look like "BTC-<marketID>", e.g. "BTC-2" for
// the BTC-USD perp market with Lighter market id 2 — Lighter has no
// native symbol string, so the operator pins the mapping explicitly.
func New() adapter.Factory {
	return func(reg *registry.Registry, symbolKeys []string) (adapter.Adapter, error) {
		resolved, err := adapter.RegisterAll(reg, model.Perp, symbolKeys)
		if err != nil {
			return nil, err
		}
		idx := adapter.BuildIndex(resolved, func(base, quote string) string {
			return base + "-" + quote
		})

		marketIDToSymbolId := make(map[int]model.SymbolId, len(resolved))
		symbolIdToMarketID := make(map[model.SymbolId]int, len(resolved))
		for _, r := range resolved {
			marketID, err := strconv.Atoi(r.Quote)
			if err != nil {
				return nil, fmt.Errorf("lighter: symbol key %s-%s: quote half must be a Lighter market id: %w", r.Base, r.Quote, err)
			}
			marketIDToSymbolId[marketID] = r.SymbolId
			symbolIdToMarketID[r.SymbolId] = marketID
		}

		return &venueAdapter{
			marketIDToSymbolId: marketIDToSymbolId,
			symbolIdToMarketID: symbolIdToMarketID,
			idx:                idx,
		}, nil
	}
}

func init() {
	adapter.RegisterFactory("lighter", model.Perp, New())
}

func (a *venueAdapter) Exchange() string                    { return "lighter" }
func (a *venueAdapter) InstrumentType() model.InstrumentType { return model.Perp }
func (a *venueAdapter) Endpoint() string                     { return endpoint }
func (a *venueAdapter) RequiresSubscribeAck() bool           { return true }

func (a *venueAdapter) SubscribePayload(symbolKeys []string) ([]adapter.OutgoingFrame, error) {
	frames := make([]adapter.OutgoingFrame, 0, len(a.marketIDToSymbolId))
	for marketID := range a.marketIDToSymbolId {
		payload, err := json.Marshal(map[string]interface{}{
			"type":    "subscribe",
			"channel": fmt.Sprintf("order_book/%d", marketID),
		})
		if err != nil {
			return nil, err
		}
		frames = append(frames, adapter.OutgoingFrame{Payload: payload})
	}
	return frames, nil
}

func (a *venueAdapter) Decode(frame adapter.IncomingFrame) adapter.AdapterOutput {
	var env envelope
	if err := json.Unmarshal(frame.Payload, &env); err != nil {
		return adapter.AdapterOutput{Kind: adapter.OutputDecodeError, DecodeError: err}
	}

	if env.Type == "subscribed" {
		return adapter.AdapterOutput{Kind: adapter.OutputAck}
	}
	if env.Type == "ping" || env.Type == "pong" {
		return adapter.AdapterOutput{Kind: adapter.OutputHeartbeat}
	}
	if !strings.HasPrefix(env.Channel, "order_book/") || env.OrderBook == nil {
		return adapter.AdapterOutput{Kind: adapter.OutputIgnored}
	}

	ob := env.OrderBook
	if len(ob.Bids) == 0 || len(ob.Asks) == 0 {
		return adapter.AdapterOutput{Kind: adapter.OutputIgnored}
	}

	id, ok := a.marketIDToSymbolId[ob.MarketID]
	if !ok {
		return adapter.AdapterOutput{Kind: adapter.OutputIgnored}
	}

	bid, err1 := decimal.NewFromString(ob.Bids[0].Price)
	bidQty, err2 := decimal.NewFromString(ob.Bids[0].Size)
	ask, err3 := decimal.NewFromString(ob.Asks[0].Price)
	askQty, err4 := decimal.NewFromString(ob.Asks[0].Size)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return adapter.AdapterOutput{Kind: adapter.OutputDecodeError, DecodeError: fmt.Errorf("lighter: malformed order book level")}
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
	return adapter.KeepalivePolicy{
		Kind:     adapter.KeepaliveClientPing,
		Interval: 15 * time.Second,
		Ping: func() adapter.OutgoingFrame {
			payload, _ := json.Marshal(map[string]string{"type": "ping"})
			return adapter.OutgoingFrame{Payload: payload}
		},
		IsPong: func(f adapter.IncomingFrame) bool {
			return strings.Contains(string(f.Payload), `"pong"`)
		},
	}
}

func (a *venueAdapter) SymbolToVenueFormat(id model.SymbolId, _ string) string {
	s, _ := a.idx.VenueFormat(id)
	return s
}

func (a *venueAdapter) VenueFormatToSymbol(venueSymbol string) (base, quote string, ok bool) {
	return a.idx.BaseQuote(venueSymbol)
}
