package supervisor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"bbofeed/internal/adapter"
	"bbofeed/internal/logger"
	"bbofeed/internal/model"
	"bbofeed/internal/store"
)

// fakeAdapter is a minimal adapter.Adapter for exercising the feed
// run-loop without a real venue's wire format.
type fakeAdapter struct {
	endpoint    string
	requiresAck bool
	nextID      model.SymbolId
	keepalive   adapter.KeepalivePolicy
}

func (a *fakeAdapter) Exchange() string                    { return "fakevenue" }
func (a *fakeAdapter) InstrumentType() model.InstrumentType { return model.Spot }
func (a *fakeAdapter) Endpoint() string                     { return a.endpoint }
func (a *fakeAdapter) RequiresSubscribeAck() bool           { return a.requiresAck }

func (a *fakeAdapter) SubscribePayload(symbolKeys []string) ([]adapter.OutgoingFrame, error) {
	payload, _ := json.Marshal(map[string]interface{}{"op": "subscribe", "symbols": symbolKeys})
	return []adapter.OutgoingFrame{{Payload: payload}}, nil
}

type fakeFrame struct {
	Type string  `json:"type"`
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
}

func (a *fakeAdapter) Decode(frame adapter.IncomingFrame) adapter.AdapterOutput {
	if string(frame.Payload) == "ack" {
		return adapter.AdapterOutput{Kind: adapter.OutputAck}
	}
	var f fakeFrame
	if err := json.Unmarshal(frame.Payload, &f); err != nil {
		return adapter.AdapterOutput{Kind: adapter.OutputDecodeError, DecodeError: err}
	}
	return adapter.AdapterOutput{
		Kind:     adapter.OutputQuote,
		SymbolId: a.nextID,
		Record: model.QuoteRecord{
			BidPrice:     f.Bid,
			AskPrice:     f.Ask,
			BidQty:       1,
			AskQty:       1,
			ReceivedTsNs: uint64(time.Now().UnixNano()),
		},
	}
}

func (a *fakeAdapter) KeepalivePolicy() adapter.KeepalivePolicy {
	return a.keepalive
}

func (a *fakeAdapter) SymbolToVenueFormat(id model.SymbolId, canonical string) string { return canonical }
func (a *fakeAdapter) VenueFormatToSymbol(venueSymbol string) (base, quote string, ok bool) {
	return "", "", false
}

func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	return server
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestFeedWritesQuoteIntoStore(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // subscribe frame
		conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"quote","bid":100.10,"ask":100.20}`))
		time.Sleep(200 * time.Millisecond)
	})
	defer server.Close()

	a := &fakeAdapter{endpoint: wsURL(server.URL), nextID: 7}
	st := store.New()
	f := NewFeed(a, []string{"BTC-USDT"}, st, logger.Logger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	deadline := time.After(1500 * time.Millisecond)
	for {
		if rec, ok := st.GetRecord("fakevenue", 7); ok {
			if rec.BidPrice != 100.10 || rec.AskPrice != 100.20 {
				t.Fatalf("unexpected record: %+v", rec)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for quote to land in store")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestFeedAwaitsAckBeforeStreaming(t *testing.T) {
	var reachedStreaming int32
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
		conn.WriteMessage(websocket.TextMessage, []byte("ack"))
		time.Sleep(200 * time.Millisecond)
	})
	defer server.Close()

	a := &fakeAdapter{endpoint: wsURL(server.URL), requiresAck: true, nextID: 1}
	st := store.New()
	f := NewFeed(a, []string{"BTC-USDT"}, st, logger.Logger())

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	go f.Run(ctx)

	for i := 0; i < 50; i++ {
		if f.State() == Streaming {
			atomic.StoreInt32(&reachedStreaming, 1)
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if atomic.LoadInt32(&reachedStreaming) == 0 {
		t.Fatal("feed never reached Streaming after ack")
	}
}

func TestFeedStopsCleanlyOnContextCancel(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	a := &fakeAdapter{endpoint: wsURL(server.URL), nextID: 1}
	st := store.New()
	f := NewFeed(a, []string{"BTC-USDT"}, st, logger.Logger())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error on cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancel")
	}
	if f.State() != Stopped {
		t.Fatalf("State() = %v, want Stopped", f.State())
	}
}

func TestStreamTripsKeepaliveLostAfterMissedClientPongs(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // subscribe frame
		for {
			// Drain pings the feed sends but never answer with a pong.
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	defer server.Close()

	a := &fakeAdapter{
		endpoint: wsURL(server.URL),
		nextID:   1,
		keepalive: adapter.KeepalivePolicy{
			Kind:     adapter.KeepaliveClientPing,
			Interval: 20 * time.Millisecond,
			Ping: func() adapter.OutgoingFrame {
				return adapter.OutgoingFrame{Payload: []byte(`{"op":"ping"}`)}
			},
			IsPong: func(f adapter.IncomingFrame) bool {
				return string(f.Payload) == `{"op":"pong"}`
			},
		},
	}
	st := store.New()
	f := NewFeed(a, []string{"BTC-USDT"}, st, logger.Logger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go f.Run(ctx)

	deadline := time.After(1 * time.Second)
	for {
		if f.State() == Backoff {
			return
		}
		select {
		case <-deadline:
			t.Fatal("feed never detected missed client pongs")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStreamIgnoresKeepaliveLossWhilePongsArrive(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // subscribe frame
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			conn.WriteMessage(websocket.TextMessage, []byte(`{"op":"pong"}`))
		}
	})
	defer server.Close()

	a := &fakeAdapter{
		endpoint: wsURL(server.URL),
		nextID:   1,
		keepalive: adapter.KeepalivePolicy{
			Kind:     adapter.KeepaliveClientPing,
			Interval: 15 * time.Millisecond,
			Ping: func() adapter.OutgoingFrame {
				return adapter.OutgoingFrame{Payload: []byte(`{"op":"ping"}`)}
			},
			IsPong: func(f adapter.IncomingFrame) bool {
				return string(f.Payload) == `{"op":"pong"}`
			},
		},
	}
	st := store.New()
	f := NewFeed(a, []string{"BTC-USDT"}, st, logger.Logger())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()

	sawBackoff := false
	for {
		select {
		case <-done:
			if sawBackoff {
				t.Fatal("feed incorrectly flagged keepalive loss while pongs kept arriving")
			}
			return
		case <-time.After(5 * time.Millisecond):
			if f.State() == Backoff {
				sawBackoff = true
			}
		}
	}
}

func TestStreamTripsKeepaliveLostOnStaleRespondToServerPing(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // subscribe frame
		time.Sleep(2 * time.Second)
	})
	defer server.Close()

	a := &fakeAdapter{
		endpoint: wsURL(server.URL),
		nextID:   1,
		keepalive: adapter.KeepalivePolicy{
			Kind:     adapter.KeepaliveRespondToServerPing,
			Interval: 20 * time.Millisecond,
		},
	}
	st := store.New()
	f := NewFeed(a, []string{"BTC-USDT"}, st, logger.Logger())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go f.Run(ctx)

	deadline := time.After(1 * time.Second)
	for {
		if f.State() == Backoff {
			return
		}
		select {
		case <-deadline:
			t.Fatal("feed never detected a stale RespondToServerPing connection")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestMaybeResetBackoffIgnoresZeroStreamedAt(t *testing.T) {
	a := &fakeAdapter{endpoint: "ws://unused"}
	f := NewFeed(a, nil, store.New(), logger.Logger())
	f.backoff.attempt = 3

	f.maybeResetBackoff(time.Time{})

	if f.backoff.attempt != 3 {
		t.Fatalf("attempt = %d, want unchanged at 3: a pre-Streaming failure must never reset backoff", f.backoff.attempt)
	}
}

func TestMaybeResetBackoffResetsAfterADwell(t *testing.T) {
	a := &fakeAdapter{endpoint: "ws://unused"}
	f := NewFeed(a, nil, store.New(), logger.Logger())
	f.backoff.attempt = 3

	f.maybeResetBackoff(time.Now().Add(-time.Hour))

	if f.backoff.attempt != 0 {
		t.Fatalf("attempt = %d, want reset to 0 after a long Streaming dwell", f.backoff.attempt)
	}
}

func TestStreamEmitsCloudWatchSnapshotPeriodically(t *testing.T) {
	prev := cloudWatchSnapshotInterval
	cloudWatchSnapshotInterval = 10 * time.Millisecond
	defer func() { cloudWatchSnapshotInterval = prev }()

	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage() // subscribe frame
		for i := 0; i < 5; i++ {
			conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"quote","bid":1,"ask":2}`))
			time.Sleep(10 * time.Millisecond)
		}
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	a := &fakeAdapter{endpoint: wsURL(server.URL), nextID: 1}
	st := store.New()
	f := NewFeed(a, []string{"BTC-USDT"}, st, logger.Logger())

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()
	<-done

	// The snapshot ticker firing mid-stream must not disrupt normal
	// frame handling or trip any keepalive/transport error.
	if in, _, _, _, _ := f.metrics.Snapshot(); in == 0 {
		t.Fatalf("expected frames_in to have been counted while the snapshot ticker ran")
	}
}

func TestRunGrowsBackoffAcrossRepeatedPreStreamingFailures(t *testing.T) {
	// Port 1 refuses connections immediately on loopback, so runOnce
	// fails fast and repeatedly without ever reaching Streaming.
	a := &fakeAdapter{endpoint: "ws://127.0.0.1:1"}
	st := store.New()
	f := NewFeed(a, []string{"BTC-USDT"}, st, logger.Logger())
	f.backoff = &backoffPolicy{base: 2 * time.Millisecond, cap: 50 * time.Millisecond, resetDwell: time.Hour}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		f.Run(ctx)
		close(done)
	}()
	<-done

	if f.backoff.attempt < 3 {
		t.Fatalf("attempt = %d after repeated pre-Streaming failures, want it to have grown", f.backoff.attempt)
	}
}
