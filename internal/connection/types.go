package connection

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/meridianxyz/meridian-data/internal/router"
	"github.com/meridianxyz/meridian-data/internal/state"
)

// Errors. Failures that ride the event stream (sequence gaps, parse
// errors, server error frames) are defined next to the types that raise
// them; these cover the connection lifecycle and local usage.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrConnectionClosed = errors.New("connection closed")
	ErrChannelClosed    = errors.New("command channel closed")
	ErrPingTimeout      = errors.New("ping timeout")
	ErrRateLimited      = errors.New("rate limited by venue")
	ErrInvalidAuthToken = errors.New("auth token is empty")
	ErrReconnectFailed  = errors.New("reconnect attempts exhausted")
	ErrUserSubscribed   = errors.New("a user channel is already subscribed")
)

// State is the connection lifecycle phase.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateReconnecting  State = "reconnecting"
	StateDisconnecting State = "disconnecting"
)

// TimestampedMessage wraps raw frame data with its receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw text frame bytes from the socket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// Config tunes a Manager. Zero numeric fields fall back to the defaults
// below; the boolean flags are taken as given, so callers normally start
// from DefaultConfig and override what they need.
type Config struct {
	URL       string // Streaming endpoint (e.g. wss://stream.meridian.xyz/ws)
	AuthToken string // Optional; rides the upgrade request as a cookie

	ReconnectAttempts int           // Dial attempts per outage
	BaseDelay         time.Duration // First backoff step
	MaxDelay          time.Duration // Backoff cap
	PingInterval      time.Duration // Liveness probe interval
	PongTimeout       time.Duration // Max silence after a probe
	ConnectTimeout    time.Duration // Dial + handshake deadline
	WriteTimeout      time.Duration // Write deadline for sends

	AutoReconnect   bool // Reconnect after unexpected closes
	AutoResubscribe bool // Replay the registry after reconnects

	OnGap router.GapPolicy // Sequence-gap recovery policy

	EventBuffer   int // Event channel capacity
	CommandBuffer int // Command channel capacity
	TradeLimit    int // Retained executions per orderbook

	// SendRate caps outbound frames per second; 0 means unlimited.
	// SendBurst is the bucket size when SendRate is set.
	SendRate  float64
	SendBurst int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ReconnectAttempts: 10,
		BaseDelay:         1 * time.Second,
		MaxDelay:          30 * time.Second,
		PingInterval:      30 * time.Second,
		PongTimeout:       60 * time.Second,
		ConnectTimeout:    30 * time.Second,
		WriteTimeout:      5 * time.Second,
		AutoReconnect:     true,
		AutoResubscribe:   true,
		OnGap:             router.GapPolicyResubscribe,
		EventBuffer:       1000,
		CommandBuffer:     100,
		TradeLimit:        state.DefaultTradeLimit,
	}
}

// validate rejects configurations the manager cannot run with. A token
// that is all whitespace is a usage error, not an anonymous session;
// anonymous callers leave AuthToken empty.
func (c Config) validate() error {
	if c.URL == "" {
		return errors.New("connection: url is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("connection: invalid url %q: %w", c.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("connection: url scheme must be ws or wss, got %q", u.Scheme)
	}
	if c.AuthToken != "" && strings.TrimSpace(c.AuthToken) == "" {
		return ErrInvalidAuthToken
	}
	return nil
}

// normalize fills unset tunables and trims the auth token.
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = def.ReconnectAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = def.BaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = def.MaxDelay
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = def.PongTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.OnGap == "" {
		c.OnGap = def.OnGap
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = def.EventBuffer
	}
	if c.CommandBuffer <= 0 {
		c.CommandBuffer = def.CommandBuffer
	}
	if c.TradeLimit <= 0 {
		c.TradeLimit = def.TradeLimit
	}
	c.AuthToken = strings.TrimSpace(c.AuthToken)
	return c
}

// Stats are cumulative counters for one Manager.
type Stats struct {
	Connects      uint64 // Successful dials, reconnects included
	Reconnects    uint64 // Successful automatic reconnects
	FramesSent    uint64 // Outbound frames written
	PingsSent     uint64 // Liveness probes sent
	PongTimeouts  uint64 // Probes that expired without a pong
	EventsDropped uint64 // Events discarded because the consumer lagged
}
