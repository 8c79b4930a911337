package coinbase

import (
	"testing"

	"bbofeed/internal/adapter"
	"bbofeed/internal/model"
	"bbofeed/internal/registry"
)

func TestDecodeTickerEvent(t *testing.T) {
	reg := registry.New()
	a, err := New()(reg, []string{"BTC-USDT"})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}

	payload := []byte(`{
		"channel": "ticker",
		"events": [{
			"type": "update",
			"tickers": [{
				"product_id": "BTC-USDT",
				"best_bid": "100.10",
				"best_ask": "100.20",
				"best_bid_quantity": "1.5",
				"best_ask_quantity": "2.5"
			}]
		}]
	}`)

	out := a.Decode(adapter.IncomingFrame{Payload: payload})
	if out.Kind != adapter.OutputQuote {
		t.Fatalf("Kind = %v, want OutputQuote", out.Kind)
	}
	if out.Record.BidPrice != 100.10 || out.Record.AskPrice != 100.20 {
		t.Fatalf("unexpected record: %+v", out.Record)
	}

	wantID, _ := reg.Resolve("BTC-USDT", model.Spot)
	if out.SymbolId != wantID {
		t.Fatalf("SymbolId = %d, want %d", out.SymbolId, wantID)
	}
}

func TestDecodeSubscriptionsAck(t *testing.T) {
	reg := registry.New()
	a, _ := New()(reg, []string{"BTC-USDT"})
	out := a.Decode(adapter.IncomingFrame{Payload: []byte(`{"channel":"subscriptions"}`)})
	if out.Kind != adapter.OutputAck {
		t.Fatalf("Kind = %v, want OutputAck", out.Kind)
	}
}

func TestDecodeHeartbeat(t *testing.T) {
	reg := registry.New()
	a, _ := New()(reg, []string{"BTC-USDT"})
	out := a.Decode(adapter.IncomingFrame{Payload: []byte(`{"channel":"heartbeats"}`)})
	if out.Kind != adapter.OutputHeartbeat {
		t.Fatalf("Kind = %v, want OutputHeartbeat", out.Kind)
	}
}

func TestSymbolToVenueFormatRoundTrip(t *testing.T) {
	reg := registry.New()
	a, _ := New()(reg, []string{"ETH-USD"})
	id, ok := reg.Resolve("ETH-USD", model.Spot)
	if !ok {
		t.Fatalf("expected ETH-USD to resolve")
	}
	v := a.SymbolToVenueFormat(id, "")
	if v != "ETH-USD" {
		t.Fatalf("SymbolToVenueFormat = %q, want ETH-USD", v)
	}
	base, quote, ok := a.VenueFormatToSymbol(v)
	if !ok || base != "ETH" || quote != "USD" {
		t.Fatalf("VenueFormatToSymbol = (%q,%q,%v)", base, quote, ok)
	}
}
