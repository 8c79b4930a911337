// internal/transport/transport.go
// Secure WebSocket transport owned exclusively by one feed task (spec
// §3 "each feed task exclusively owns its transport handle"). Grounded
// on Projectsrxg-kalshi_v2's internal/connection/client.go: a
// gorilla/websocket.Conn wrapped with a read loop delivering frames on
// a channel, a write mutex serializing Send, and native ping/pong
// handler wiring so the supervisor's keepalive policy can ride on top
// of it rather than reimplementing control-frame handling.
package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bbofeed/internal/adapter"
)

// Conn is a single streaming WebSocket connection. One Conn belongs to
// exactly one feed task for its entire lifetime; it is never shared.
type Conn struct {
	ws *websocket.Conn

	writeMu sync.Mutex

	frames chan adapter.IncomingFrame
	errs   chan error
	done   chan struct{}

	closeOnce sync.Once

	mu         sync.Mutex
	lastPingAt time.Time
}

// Dialer opens connections to a venue's streaming endpoint.
type Dialer struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadBufferSize   int
}

// DefaultDialer matches spec §5's 10 s connect timeout.
func DefaultDialer() Dialer {
	return Dialer{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// Dial opens a WebSocket connection to endpoint. The returned Conn's
// read loop starts immediately; frames and transport errors are
// delivered on the channels returned by Frames/Errors until Close.
func (d Dialer) Dial(ctx context.Context, endpoint string) (*Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, endpoint, http.Header{})
	if err != nil {
		return nil, err
	}

	c := &Conn{
		ws:         ws,
		frames:     make(chan adapter.IncomingFrame, 256),
		errs:       make(chan error, 1),
		done:       make(chan struct{}),
		lastPingAt: time.Now(),
	}

	writeTimeout := d.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 5 * time.Second
	}

	ws.SetPingHandler(func(data string) error {
		c.mu.Lock()
		c.lastPingAt = time.Now()
		c.mu.Unlock()
		return ws.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	ws.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.lastPingAt = time.Now()
		c.mu.Unlock()
		return nil
	})

	go c.readLoop()
	return c, nil
}

func (c *Conn) readLoop() {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			case c.errs <- err:
			default:
			}
			return
		}
		c.mu.Lock()
		c.lastPingAt = time.Now()
		c.mu.Unlock()

		frame := adapter.IncomingFrame{Binary: kind == websocket.BinaryMessage, Payload: data}
		select {
		case <-c.done:
			return
		case c.frames <- frame:
		}
	}
}

// Frames is every application frame read from the connection, in
// arrival order, timestamped implicitly by channel delivery order —
// the caller stamps received_ts_ns itself at consumption per spec §4.3.
func (c *Conn) Frames() <-chan adapter.IncomingFrame { return c.frames }

// Errors carries at most one transport error: the first ReadMessage
// failure, after which the read loop exits.
func (c *Conn) Errors() <-chan error { return c.errs }

// Send writes a single outgoing frame. Safe for concurrent use even
// though in practice only the owning feed task's goroutine calls it.
func (c *Conn) Send(f adapter.OutgoingFrame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	kind := websocket.TextMessage
	if f.Binary {
		kind = websocket.BinaryMessage
	}
	return c.ws.WriteMessage(kind, f.Payload)
}

// Ping sends a WS control-frame ping. The supervisor does not call it:
// KeepaliveClientPing policies send the adapter's own application-level
// Ping frame through Send.
func (c *Conn) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
}

// LastActivity reports the time of the most recent inbound frame or
// control message, used by the supervisor's RespondToServerPing watchdog.
func (c *Conn) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPingAt
}

// Close sends a WS close frame and releases the underlying socket.
// Idempotent: later calls are no-ops.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}
