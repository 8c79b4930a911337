package bybit

import (
	"testing"

	"bbofeed/internal/adapter"
	"bbofeed/internal/model"
	"bbofeed/internal/registry"
)

func TestDecodeSnapshotThenDelta(t *testing.T) {
	reg := registry.New()
	a, err := NewSpot()(reg, []string{"BTC-USDT"})
	if err != nil {
		t.Fatalf("factory: %v", err)
	}

	snapshot := []byte(`{"topic":"tickers.BTCUSDT","type":"snapshot","data":{"symbol":"BTCUSDT","bid1Price":"100.10","bid1Size":"1.5","ask1Price":"100.20","ask1Size":"2.5"}}`)
	out := a.Decode(adapter.IncomingFrame{Payload: snapshot})
	if out.Kind != adapter.OutputQuote {
		t.Fatalf("Kind = %v, want OutputQuote", out.Kind)
	}
	if out.Record.BidPrice != 100.10 || out.Record.AskPrice != 100.20 {
		t.Fatalf("unexpected snapshot record: %+v", out.Record)
	}

	delta := []byte(`{"topic":"tickers.BTCUSDT","type":"delta","data":{"symbol":"BTCUSDT","bid1Price":"100.15"}}`)
	out = a.Decode(adapter.IncomingFrame{Payload: delta})
	if out.Kind != adapter.OutputQuote {
		t.Fatalf("Kind = %v, want OutputQuote for delta", out.Kind)
	}
	if out.Record.BidPrice != 100.15 {
		t.Fatalf("delta bid = %v, want 100.15 (retained ask = %v)", out.Record.BidPrice, out.Record.AskPrice)
	}
	if out.Record.AskPrice != 100.20 {
		t.Fatalf("delta should retain last-known ask, got %v", out.Record.AskPrice)
	}

	wantID, _ := reg.Resolve("BTC-USDT", model.Spot)
	if out.SymbolId != wantID {
		t.Fatalf("SymbolId = %d, want %d", out.SymbolId, wantID)
	}
}

func TestDecodeSubscribeAck(t *testing.T) {
	reg := registry.New()
	a, _ := NewPerp()(reg, []string{"BTC-USDT"})
	out := a.Decode(adapter.IncomingFrame{Payload: []byte(`{"op":"subscribe","success":true}`)})
	if out.Kind != adapter.OutputAck {
		t.Fatalf("Kind = %v, want OutputAck", out.Kind)
	}
}

func TestDeltaWithoutPriorSnapshotIgnored(t *testing.T) {
	reg := registry.New()
	a, _ := NewSpot()(reg, []string{"BTC-USDT"})
	delta := []byte(`{"topic":"tickers.BTCUSDT","type":"delta","data":{"symbol":"BTCUSDT","bid1Price":"100.15"}}`)
	out := a.Decode(adapter.IncomingFrame{Payload: delta})
	if out.Kind != adapter.OutputIgnored {
		t.Fatalf("Kind = %v, want OutputIgnored when ask never seen", out.Kind)
	}
}
