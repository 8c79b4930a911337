package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"bbofeed/internal/adapter"
)

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

func TestDialAndReceiveFrame(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"hello":"world"}`))
		time.Sleep(50 * time.Millisecond)
	})
	defer server.Close()

	c, err := DefaultDialer().Dial(context.Background(), wsURL(server.URL))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	select {
	case frame := <-c.Frames():
		if string(frame.Payload) != `{"hello":"world"}` {
			t.Fatalf("unexpected payload: %s", frame.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestSendRoundTrip(t *testing.T) {
	received := make(chan string, 1)
	server := mockWSServer(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(msg)
	})
	defer server.Close()

	c, err := DefaultDialer().Dial(context.Background(), wsURL(server.URL))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	if err := c.Send(adapter.OutgoingFrame{Payload: []byte("ping")}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-received:
		if msg != "ping" {
			t.Fatalf("server received %q, want ping", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server receipt")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		time.Sleep(100 * time.Millisecond)
	})
	defer server.Close()

	c, err := DefaultDialer().Dial(context.Background(), wsURL(server.URL))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}

func TestErrorsChannelOnServerClose(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.Close()
	})
	defer server.Close()

	c, err := DefaultDialer().Dial(context.Background(), wsURL(server.URL))
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	select {
	case <-c.Errors():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transport error after server close")
	}
}
