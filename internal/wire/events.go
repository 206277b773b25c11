package wire

import "time"

// EventType discriminates the Event stream delivered to applications.
type EventType string

// Event types.
const (
	// Connection lifecycle.
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventReconnecting EventType = "reconnecting"
	EventRateLimited  EventType = "rate_limited"

	// Data channels.
	EventBookUpdate   EventType = "book_update"
	EventTrade        EventType = "trade"
	EventUserUpdate   EventType = "user_update"
	EventNonceUpdate  EventType = "nonce_update"
	EventPriceHistory EventType = "price_history"
	EventMarket       EventType = "market"
	EventTicker       EventType = "ticker"
	EventAuth         EventType = "auth"

	// Reconciliation and errors.
	EventResyncRequired EventType = "resync_required"
	EventError          EventType = "error"
)

// Event is one entry in the client's event stream. Type selects the variant;
// only the fields for that variant are populated.
type Event struct {
	Type       EventType
	ReceivedAt time.Time

	// Book, trade, price-history and resync events.
	OrderbookID string
	IsSnapshot  bool
	Book        *BookUpdate
	Trade       *Trade
	Resolution  Resolution

	// User channel events.
	UserEventType string
	Wallet        string
	NewNonce      uint64

	// Price-history events.
	HistoryEventType string

	// Market, ticker and auth events.
	Market *MarketEvent
	Ticker *TickerUpdate
	Auth   *AuthStatus

	// Lifecycle detail.
	Reason  string
	Attempt int

	// Error events, including in-band server errors.
	Err error
}
