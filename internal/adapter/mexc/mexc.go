// internal/adapter/mexc/mexc.go
// MEXC adapters, spot and futures/contract (spec §4.3 venue set). Spot
// mirrors Binance's bookTicker shape (MEXC's spot API is a Binance
// fork) so it reuses the same string-price decode idiom as
// internal/adapter/binance; the futures/contract side speaks a
// different protocol entirely — a "channel"/"data" envelope over
// "sub.ticker" pushing numeric (not string) bid1/ask1 fields. Both are
// kept in one package because they share nothing but the exchange name
// and registry plumbing; grounded on internal/pipeline/normalizer's
// per-venue decode functions living side by side in one file.
package mexc

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

const (
	spotEndpoint    = "wss://wbs-api.mexc.com/ws"
	futuresEndpoint = "wss://contract.mexc.com/edge"

	spotSubscribeChunkSize = 30
)

// --- spot ---

type spotBookTicker struct {
	Symbol string `json:"s"`
	BidPx  string `json:"b"`
	BidQty string `json:"B"`
	AskPx  string `json:"a"`
	AskQty string `json:"A"`
}

type spotEnvelope struct {
	Channel string          `json:"c"`
	Symbol  string          `json:"s"`
	Data    json.RawMessage `json:"d"`
}

type spotAck struct {
	ID   int64  `json:"id"`
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type spotAdapter struct {
	idx *adapter.SymbolIndex
}

// NewSpot builds the MEXC spot bookTicker adapter factory.
func NewSpot() adapter.Factory {
	return func(reg *registry.Registry, symbolKeys []string) (adapter.Adapter, error) {
		resolved, err := adapter.RegisterAll(reg, model.Spot, symbolKeys)
		if err != nil {
			return nil, err
		}
		idx := adapter.BuildIndex(resolved, func(base, quote string) string {
			return strings.ToUpper(base + quote)
		})
		return &spotAdapter{idx: idx}, nil
	}
}

func (a *spotAdapter) Exchange() string                    { return "mexc" }
func (a *spotAdapter) InstrumentType() model.InstrumentType { return model.Spot }
func (a *spotAdapter) Endpoint() string                     { return spotEndpoint }
func (a *spotAdapter) RequiresSubscribeAck() bool           { return true }

func (a *spotAdapter) SubscribePayload(symbolKeys []string) ([]adapter.OutgoingFrame, error) {
	params := make([]string, 0, len(a.idx.Symbols()))
	for _, sym := range a.idx.Symbols() {
		params = append(params, "spot@public.bookTicker.v3.api@"+sym)
	}
	chunks := adapter.Chunk(params, spotSubscribeChunkSize)

	frames := make([]adapter.OutgoingFrame, 0, len(chunks))
	for i, chunk := range chunks {
		payload, err := json.Marshal(map[string]interface{}{
			"method": "SUBSCRIPTION",
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

func (a *spotAdapter) Decode(frame adapter.IncomingFrame) adapter.AdapterOutput {
	var ack spotAck
	if err := json.Unmarshal(frame.Payload, &ack); err == nil && ack.ID != 0 {
		return adapter.AdapterOutput{Kind: adapter.OutputAck}
	}

	var env spotEnvelope
	if err := json.Unmarshal(frame.Payload, &env); err != nil {
		return adapter.AdapterOutput{Kind: adapter.OutputDecodeError, DecodeError: err}
	}
	if !strings.Contains(env.Channel, "bookTicker") || env.Symbol == "" {
		return adapter.AdapterOutput{Kind: adapter.OutputIgnored}
	}

	var bt spotBookTicker
	if err := json.Unmarshal(env.Data, &bt); err != nil {
		return adapter.AdapterOutput{Kind: adapter.OutputDecodeError, DecodeError: err}
	}

	id, ok := a.idx.Lookup(strings.ToUpper(env.Symbol))
	if !ok {
		return adapter.AdapterOutput{Kind: adapter.OutputIgnored}
	}

	bid, err1 := decimal.NewFromString(bt.BidPx)
	ask, err2 := decimal.NewFromString(bt.AskPx)
	bidQty, err3 := decimal.NewFromString(bt.BidQty)
	askQty, err4 := decimal.NewFromString(bt.AskQty)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return adapter.AdapterOutput{Kind: adapter.OutputDecodeError, DecodeError: fmt.Errorf("mexc: malformed bookTicker numeric field")}
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

func (a *spotAdapter) KeepalivePolicy() adapter.KeepalivePolicy {
	return adapter.KeepalivePolicy{
		Kind:     adapter.KeepaliveClientPing,
		Interval: 30 * time.Second,
		Ping: func() adapter.OutgoingFrame {
			payload, _ := json.Marshal(map[string]string{"method": "PING"})
			return adapter.OutgoingFrame{Payload: payload}
		},
		IsPong: func(f adapter.IncomingFrame) bool {
			return strings.Contains(string(f.Payload), `"PONG"`)
		},
	}
}

func (a *spotAdapter) SymbolToVenueFormat(id model.SymbolId, _ string) string {
	s, _ := a.idx.VenueFormat(id)
	return s
}

func (a *spotAdapter) VenueFormatToSymbol(venueSymbol string) (base, quote string, ok bool) {
	return a.idx.BaseQuote(strings.ToUpper(venueSymbol))
}

func init() {
	adapter.RegisterFactory("mexc", model.Spot, NewSpot())
	adapter.RegisterFactory("mexc", model.Perp, NewPerp())
}

// --- futures / contract ---

type futuresTickerData struct {
	Symbol     string  `json:"symbol"`
	Bid1       float64 `json:"bid1"`
	Ask1       float64 `json:"ask1"`
	Bid1Volume float64 `json:"bid1Volume"`
	Ask1Volume float64 `json:"ask1Volume"`
}

type futuresEnvelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type futuresAdapter struct {
	idx *adapter.SymbolIndex
}

// NewPerp builds the MEXC futures/contract ticker adapter factory.
func NewPerp() adapter.Factory {
	return func(reg *registry.Registry, symbolKeys []string) (adapter.Adapter, error) {
		resolved, err := adapter.RegisterAll(reg, model.Perp, symbolKeys)
		if err != nil {
			return nil, err
		}
		idx := adapter.BuildIndex(resolved, func(base, quote string) string {
			return strings.ToUpper(base) + "_" + strings.ToUpper(quote)
		})
		return &futuresAdapter{idx: idx}, nil
	}
}

func (a *futuresAdapter) Exchange() string                    { return "mexc" }
func (a *futuresAdapter) InstrumentType() model.InstrumentType { return model.Perp }
func (a *futuresAdapter) Endpoint() string                     { return futuresEndpoint }
func (a *futuresAdapter) RequiresSubscribeAck() bool           { return true }

func (a *futuresAdapter) SubscribePayload(symbolKeys []string) ([]adapter.OutgoingFrame, error) {
	frames := make([]adapter.OutgoingFrame, 0, len(a.idx.Symbols()))
	for _, sym := range a.idx.Symbols() {
		payload, err := json.Marshal(map[string]interface{}{
			"method": "sub.ticker",
			"param":  map[string]string{"symbol": sym},
		})
		if err != nil {
			return nil, err
		}
		frames = append(frames, adapter.OutgoingFrame{Payload: payload})
	}
	return frames, nil
}

func (a *futuresAdapter) Decode(frame adapter.IncomingFrame) adapter.AdapterOutput {
	var env futuresEnvelope
	if err := json.Unmarshal(frame.Payload, &env); err != nil {
		return adapter.AdapterOutput{Kind: adapter.OutputDecodeError, DecodeError: err}
	}
	if env.Channel == "pong" {
		return adapter.AdapterOutput{Kind: adapter.OutputHeartbeat}
	}
	if env.Channel == "rs.sub.ticker" {
		return adapter.AdapterOutput{Kind: adapter.OutputAck}
	}
	if env.Channel != "push.ticker" || len(env.Data) == 0 {
		return adapter.AdapterOutput{Kind: adapter.OutputIgnored}
	}

	var td futuresTickerData
	if err := json.Unmarshal(env.Data, &td); err != nil {
		return adapter.AdapterOutput{Kind: adapter.OutputDecodeError, DecodeError: err}
	}
	if td.Symbol == "" {
		return adapter.AdapterOutput{Kind: adapter.OutputIgnored}
	}

	id, ok := a.idx.Lookup(strings.ToUpper(td.Symbol))
	if !ok {
		return adapter.AdapterOutput{Kind: adapter.OutputIgnored}
	}

	return adapter.AdapterOutput{
		Kind:     adapter.OutputQuote,
		SymbolId: id,
		Record: model.QuoteRecord{
			BidPrice:     td.Bid1,
			AskPrice:     td.Ask1,
			BidQty:       td.Bid1Volume,
			AskQty:       td.Ask1Volume,
			ReceivedTsNs: uint64(time.Now().UnixNano()),
		},
	}
}

func (a *futuresAdapter) KeepalivePolicy() adapter.KeepalivePolicy {
	return adapter.KeepalivePolicy{
		Kind:     adapter.KeepaliveClientPing,
		Interval: 20 * time.Second,
		Ping: func() adapter.OutgoingFrame {
			payload, _ := json.Marshal(map[string]string{"method": "ping"})
			return adapter.OutgoingFrame{Payload: payload}
		},
		IsPong: func(f adapter.IncomingFrame) bool {
			return strings.Contains(string(f.Payload), `"pong"`)
		},
	}
}

func (a *futuresAdapter) SymbolToVenueFormat(id model.SymbolId, _ string) string {
	s, _ := a.idx.VenueFormat(id)
	return s
}

func (a *futuresAdapter) VenueFormatToSymbol(venueSymbol string) (base, quote string, ok bool) {
	return a.idx.BaseQuote(strings.ToUpper(venueSymbol))
}
