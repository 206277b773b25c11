package wire

import (
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Channel tags carried in the envelope "type" field (server → client).
const (
	TypeBookUpdate   = "book_update"
	TypeTrades       = "trades"
	TypeUser         = "user"
	TypePriceHistory = "price_history"
	TypeMarket       = "market"
	TypeTicker       = "ticker"
	TypeAuth         = "auth"
	TypeError        = "error"
	TypePong         = "pong"
)

// Order side values used across user events and trades.
const (
	SideBuy  = 0
	SideSell = 1
)

// Envelope is the generic inbound frame wrapper. Data is decoded a second
// time once the channel tag is known.
type Envelope struct {
	Type    string          `json:"type"`
	Version float64         `json:"version,omitempty"`
	Data    json.RawMessage `json:"data"`
}

// ParseEnvelope decodes the outer frame. The payload stays raw.
func ParseEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// Resolution identifies a price-history candle interval.
type Resolution string

// Supported candle resolutions.
const (
	Resolution1m  Resolution = "1m"
	Resolution5m  Resolution = "5m"
	Resolution15m Resolution = "15m"
	Resolution1h  Resolution = "1h"
	Resolution4h  Resolution = "4h"
	Resolution1d  Resolution = "1d"
)

// Valid reports whether r is a resolution the venue serves.
func (r Resolution) Valid() bool {
	switch r {
	case Resolution1m, Resolution5m, Resolution15m, Resolution1h, Resolution4h, Resolution1d:
		return true
	}
	return false
}

// PriceLevel is one price point in a book update.
type PriceLevel struct {
	Side  string          `json:"side"`
	Price decimal.Decimal `json:"price"`
	Size  decimal.Decimal `json:"size"`
}

// BookUpdate is an orderbook snapshot or delta.
//
// Seq is per-channel monotonic; the snapshot defines the baseline. A true
// Resync flag tells the client to discard local state regardless of Seq.
type BookUpdate struct {
	OrderbookID string       `json:"orderbook_id"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Seq         uint64       `json:"seq"`
	Bids        []PriceLevel `json:"bids,omitempty"`
	Asks        []PriceLevel `json:"asks,omitempty"`
	IsSnapshot  bool         `json:"is_snapshot"`
	Resync      bool         `json:"resync,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// Trade is an executed trade from the trades channel.
type Trade struct {
	OrderbookID string          `json:"orderbook_id"`
	Price       decimal.Decimal `json:"price"`
	Size        decimal.Decimal `json:"size"`
	Side        string          `json:"side"`
	Timestamp   string          `json:"timestamp"`
	TradeID     string          `json:"trade_id"`
	Seq         uint64          `json:"seq,omitempty"`
}

// User event_type values.
const (
	UserEventSnapshot      = "snapshot"
	UserEventOrderUpdate   = "order_update"
	UserEventBalanceUpdate = "balance_update"
	UserEventNonce         = "nonce"
)

// UserEvent is the payload of the user channel. The populated fields depend
// on EventType: snapshots carry Orders/Balances/Nonce, order updates carry
// Order, balance updates carry Balance, nonce events carry NewNonce.
type UserEvent struct {
	EventType    string                  `json:"event_type"`
	Wallet       string                  `json:"user,omitempty"`
	Orders       []Order                 `json:"orders,omitempty"`
	Balances     map[string]BalanceEntry `json:"balances,omitempty"`
	Order        *OrderUpdate            `json:"order,omitempty"`
	Balance      *Balance                `json:"balance,omitempty"`
	Nonce        uint64                  `json:"nonce,omitempty"`
	NewNonce     uint64                  `json:"new_nonce,omitempty"`
	MarketPubkey string                  `json:"market_pubkey,omitempty"`
	OrderbookID  string                  `json:"orderbook_id,omitempty"`
	DepositMint  string                  `json:"deposit_mint,omitempty"`
	Timestamp    string                  `json:"timestamp,omitempty"`
}

// Order is a user order as delivered in snapshots.
type Order struct {
	OrderHash    string          `json:"order_hash"`
	MarketPubkey string          `json:"market_pubkey"`
	OrderbookID  string          `json:"orderbook_id"`
	Side         int             `json:"side"`
	MakerAmount  decimal.Decimal `json:"maker_amount"`
	TakerAmount  decimal.Decimal `json:"taker_amount"`
	Remaining    decimal.Decimal `json:"remaining"`
	Filled       decimal.Decimal `json:"filled"`
	Price        decimal.Decimal `json:"price"`
	CreatedAt    int64           `json:"created_at"`
	Expiration   int64           `json:"expiration"`
}

// OrderUpdate is a real-time change to a single order. Remaining of exactly
// zero means the order left the book (filled or cancelled).
type OrderUpdate struct {
	OrderHash  string          `json:"order_hash"`
	Price      decimal.Decimal `json:"price"`
	FillAmount decimal.Decimal `json:"fill_amount"`
	Remaining  decimal.Decimal `json:"remaining"`
	Filled     decimal.Decimal `json:"filled"`
	Side       int             `json:"side"`
	IsMaker    bool            `json:"is_maker"`
	CreatedAt  int64           `json:"created_at"`
	Balance    *Balance        `json:"balance,omitempty"`
}

// Balance carries per-outcome balances attached to user events.
type Balance struct {
	Outcomes []OutcomeBalance `json:"outcomes"`
}

// OutcomeBalance is the idle/on-book split for a single conditional token.
type OutcomeBalance struct {
	OutcomeIndex int             `json:"outcome_index"`
	Mint         string          `json:"mint"`
	Idle         decimal.Decimal `json:"idle"`
	OnBook       decimal.Decimal `json:"on_book"`
}

// BalanceEntry is a keyed balance from a user snapshot or balance update.
// The map key is "market_pubkey:deposit_mint".
type BalanceEntry struct {
	MarketPubkey string           `json:"market_pubkey"`
	DepositMint  string           `json:"deposit_mint"`
	Outcomes     []OutcomeBalance `json:"outcomes"`
}

// Price history event_type values.
const (
	PriceHistorySnapshot  = "snapshot"
	PriceHistoryUpdate    = "update"
	PriceHistoryHeartbeat = "heartbeat"
)

// Candle is one OHLCV interval. Price fields are nil for intervals with no
// trades.
type Candle struct {
	T  int64            `json:"t"`
	O  *decimal.Decimal `json:"o,omitempty"`
	H  *decimal.Decimal `json:"h,omitempty"`
	L  *decimal.Decimal `json:"l,omitempty"`
	C  *decimal.Decimal `json:"c,omitempty"`
	V  *decimal.Decimal `json:"v,omitempty"`
	M  *decimal.Decimal `json:"m,omitempty"`
	BB *decimal.Decimal `json:"bb,omitempty"`
	BA *decimal.Decimal `json:"ba,omitempty"`
}

// PriceHistory is the payload of the price_history channel. Snapshots fill
// Prices (oldest first); updates carry a single candle inline; heartbeats
// carry ServerTime only.
type PriceHistory struct {
	EventType     string     `json:"event_type"`
	OrderbookID   string     `json:"orderbook_id,omitempty"`
	Resolution    Resolution `json:"resolution,omitempty"`
	IncludeOHLCV  *bool      `json:"include_ohlcv,omitempty"`
	Prices        []Candle   `json:"prices,omitempty"`
	LastTimestamp int64      `json:"last_timestamp,omitempty"`
	ServerTime    int64      `json:"server_time,omitempty"`
	LastProcessed int64      `json:"last_processed,omitempty"`

	// Inline candle fields for update events.
	T  int64            `json:"t,omitempty"`
	O  *decimal.Decimal `json:"o,omitempty"`
	H  *decimal.Decimal `json:"h,omitempty"`
	L  *decimal.Decimal `json:"l,omitempty"`
	C  *decimal.Decimal `json:"c,omitempty"`
	V  *decimal.Decimal `json:"v,omitempty"`
	M  *decimal.Decimal `json:"m,omitempty"`
	BB *decimal.Decimal `json:"bb,omitempty"`
	BA *decimal.Decimal `json:"ba,omitempty"`
}

// ToCandle lifts the inline candle fields of an update event. Returns false
// when the payload has no inline candle.
func (p *PriceHistory) ToCandle() (Candle, bool) {
	if p.T == 0 {
		return Candle{}, false
	}
	return Candle{
		T:  p.T,
		O:  p.O,
		H:  p.H,
		L:  p.L,
		C:  p.C,
		V:  p.V,
		M:  p.M,
		BB: p.BB,
		BA: p.BA,
	}, true
}

// Market event types.
const (
	MarketEventOrderbookCreated = "orderbook_created"
	MarketEventSettled          = "settled"
	MarketEventOpened           = "opened"
	MarketEventPaused           = "paused"
)

// MarketEvent is a market lifecycle notification.
type MarketEvent struct {
	EventType    string `json:"event_type"`
	MarketPubkey string `json:"market_pubkey"`
	OrderbookID  string `json:"orderbook_id,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// TickerUpdate is a top-of-book summary from the ticker channel.
type TickerUpdate struct {
	OrderbookID string           `json:"orderbook_id"`
	BestBid     *decimal.Decimal `json:"best_bid,omitempty"`
	BestAsk     *decimal.Decimal `json:"best_ask,omitempty"`
	Mid         *decimal.Decimal `json:"mid,omitempty"`
}

// Auth status values.
const (
	AuthAuthenticated = "authenticated"
	AuthAnonymous     = "anonymous"
	AuthFailed        = "failed"
)

// AuthStatus reports the outcome of connection authentication.
type AuthStatus struct {
	Status  string `json:"status"`
	Wallet  string `json:"wallet,omitempty"`
	Message string `json:"message,omitempty"`
}

// Server error codes carried in error frames.
const (
	ErrorCodeEngineUnavailable = "ENGINE_UNAVAILABLE"
	ErrorCodeInvalidJSON       = "INVALID_JSON"
	ErrorCodeInvalidMethod     = "INVALID_METHOD"
	ErrorCodeRateLimited       = "RATE_LIMITED"
)

// ErrorData is the payload of an in-band error frame.
type ErrorData struct {
	Error       string `json:"error"`
	Code        string `json:"code,omitempty"`
	OrderbookID string `json:"orderbook_id,omitempty"`
}

// Pong is the reply to a client ping.
type Pong struct {
	Timestamp int64 `json:"timestamp,omitempty"`
}
