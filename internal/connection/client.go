package connection

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// transportBuffer is the inbound frame buffer per connection. The manager
// drains it continuously; it only has to absorb short bursts.
const transportBuffer = 256

// Client is the transport under the Manager: it dials the venue, pumps
// inbound text frames with receive timestamps, and serializes writes.
type Client interface {
	// Connect dials the endpoint and starts the read pump.
	Connect(ctx context.Context) error

	// Close sends a close frame and tears the connection down. Safe to
	// call more than once.
	Close() error

	// Send writes one text frame under the write deadline.
	Send(data []byte) error

	// Messages delivers inbound frames. The channel closes when the read
	// pump stops; any terminal read error is on Errors first.
	Messages() <-chan TimestampedMessage

	// Errors holds the terminal read error, if the connection dropped.
	Errors() <-chan error
}

// wsClient is the gorilla/websocket implementation of Client.
type wsClient struct {
	url            string
	authToken      string
	connectTimeout time.Duration
	writeTimeout   time.Duration
	logger         *slog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	messages chan TimestampedMessage
	errors   chan error
	done     chan struct{}
	closed   atomic.Bool
}

// newWSClient returns an unconnected transport.
func newWSClient(cfg Config, logger *slog.Logger) *wsClient {
	return &wsClient{
		url:            cfg.URL,
		authToken:      cfg.AuthToken,
		connectTimeout: cfg.ConnectTimeout,
		writeTimeout:   cfg.WriteTimeout,
		logger:         logger,
		messages:       make(chan TimestampedMessage, transportBuffer),
		errors:         make(chan error, 1),
		done:           make(chan struct{}),
	}
}

// Connect dials the venue. When an auth token is configured it rides the
// upgrade request as a cookie; the venue authenticates the socket once at
// the handshake, not per frame.
func (c *wsClient) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.connectTimeout}
	header := http.Header{}
	if c.authToken != "" {
		header.Set("Cookie", "auth_token="+c.authToken)
	}

	ctx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return fmt.Errorf("dial %s: status %d: %w", c.url, resp.StatusCode, err)
		}
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.conn = conn

	go c.readLoop()
	return nil
}

// readLoop pumps inbound frames until the connection drops. The terminal
// read error is published before messages closes so the manager can
// inspect close codes.
func (c *wsClient) readLoop() {
	defer close(c.messages)
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				select {
				case c.errors <- err:
				default:
				}
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		select {
		case c.messages <- TimestampedMessage{Data: data, ReceivedAt: time.Now()}:
		case <-c.done:
			return
		}
	}
}

// Send writes one text frame. Writes are serialized; each gets a fresh
// deadline.
func (c *wsClient) Send(data []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	if c.conn == nil {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close attempts a graceful close frame, then tears the socket down.
func (c *wsClient) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	if c.conn == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
	deadline := time.Now().Add(c.writeTimeout)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		c.logger.Debug("close frame not delivered", "error", err)
	}
	return c.conn.Close()
}

func (c *wsClient) Messages() <-chan TimestampedMessage { return c.messages }

func (c *wsClient) Errors() <-chan error { return c.errors }
