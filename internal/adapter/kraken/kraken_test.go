package kraken

import (
	"testing"

	"bbofeed/internal/adapter"
	"bbofeed/internal/model"
	"bbofeed/internal/registry"
)

func TestDecodeTickerData(t *testing.T) {
	reg := registry.New()
	a, err := New()(reg, []string{"BTC-USD"})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}

	payload := []byte(`{"channel":"ticker","type":"update","data":[{"symbol":"BTC/USD","bid":100.10,"bid_qty":1.5,"ask":100.20,"ask_qty":2.5}]}`)
	out := a.Decode(adapter.IncomingFrame{Payload: payload})
	if out.Kind != adapter.OutputQuote {
		t.Fatalf("Kind = %v, want OutputQuote", out.Kind)
	}
	if out.Record.BidPrice != 100.10 || out.Record.AskPrice != 100.20 {
		t.Fatalf("unexpected record: %+v", out.Record)
	}

	wantID, _ := reg.Resolve("BTC-USD", model.Spot)
	if out.SymbolId != wantID {
		t.Fatalf("SymbolId = %d, want %d", out.SymbolId, wantID)
	}
}

func TestDecodeSubscribeMethodAck(t *testing.T) {
	reg := registry.New()
	a, _ := New()(reg, []string{"BTC-USD"})
	out := a.Decode(adapter.IncomingFrame{Payload: []byte(`{"method":"subscribe","success":true}`)})
	if out.Kind != adapter.OutputAck {
		t.Fatalf("Kind = %v, want OutputAck", out.Kind)
	}
}

func TestDecodeHeartbeat(t *testing.T) {
	reg := registry.New()
	a, _ := New()(reg, []string{"BTC-USD"})
	out := a.Decode(adapter.IncomingFrame{Payload: []byte(`{"channel":"heartbeat"}`)})
	if out.Kind != adapter.OutputHeartbeat {
		t.Fatalf("Kind = %v, want OutputHeartbeat", out.Kind)
	}
}
