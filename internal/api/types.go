package api

import (
	"github.com/shopspring/decimal"

	"github.com/meridianxyz/meridian-data/internal/wire"
)

// Market status values served by the REST API.
const (
	MarketStatusPending = "Pending"
	MarketStatusActive  = "Active"
	MarketStatusSettled = "Settled"
)

// MarketsResponse from GET /api/markets
type MarketsResponse struct {
	Markets []Market `json:"markets"`
	Total   int64    `json:"total"`
}

// Market represents a market from the Meridian API.
type Market struct {
	MarketName  string    `json:"market_name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	Outcomes    []Outcome `json:"outcomes"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags,omitempty"`

	// On-chain identity
	MarketPubkey string `json:"market_pubkey"`
	MarketID     uint64 `json:"market_id"`
	Oracle       string `json:"oracle,omitempty"`

	// Lifecycle
	MarketStatus      string `json:"market_status"`
	WinningOutcome    int    `json:"winning_outcome,omitempty"`
	HasWinningOutcome bool   `json:"has_winning_outcome,omitempty"`

	// Timestamps (ISO 8601)
	CreatedAt   string `json:"created_at"`
	ActivatedAt string `json:"activated_at,omitempty"`
	SettledAt   string `json:"settled_at,omitempty"`

	DepositAssets []DepositAsset     `json:"deposit_assets,omitempty"`
	Orderbooks    []OrderbookSummary `json:"orderbooks,omitempty"`
}

// Outcome is one possible market outcome.
type Outcome struct {
	Index        int    `json:"index"`
	Name         string `json:"name"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// OrderbookSummary is the orderbook listing embedded in market responses.
type OrderbookSummary struct {
	OrderbookID  string `json:"orderbook_id"`
	MarketPubkey string `json:"market_pubkey"`
	BaseToken    string `json:"base_token"`
	QuoteToken   string `json:"quote_token"`
	TickSize     int64  `json:"tick_size"`
	CreatedAt    string `json:"created_at"`
}

// DepositAsset is a collateral asset accepted by a market.
type DepositAsset struct {
	DisplayName string `json:"display_name"`
	Symbol      string `json:"symbol"`
	Mint        string `json:"deposit_asset"`
	Vault       string `json:"vault"`
	NumOutcomes int    `json:"num_outcomes"`
	Decimals    int    `json:"decimals"`
}

// MarketInfoResponse from GET /api/markets/{market_pubkey}
type MarketInfoResponse struct {
	Market            Market         `json:"market"`
	DepositAssets     []DepositAsset `json:"deposit_assets"`
	DepositAssetCount int64          `json:"deposit_asset_count"`
}

// BookLevel is one REST orderbook level. Price and Size are scaled by 1e6.
type BookLevel struct {
	Price  int64 `json:"price"`
	Size   int64 `json:"size"`
	Orders int   `json:"orders"`
}

// OrderbookResponse from GET /api/orderbook/{orderbook_id}
type OrderbookResponse struct {
	MarketPubkey string      `json:"market_pubkey"`
	OrderbookID  string      `json:"orderbook_id"`
	Bids         []BookLevel `json:"bids"`
	Asks         []BookLevel `json:"asks"`
	BestBid      *int64      `json:"best_bid"`
	BestAsk      *int64      `json:"best_ask"`
	Spread       *int64      `json:"spread"`
	TickSize     int64       `json:"tick_size"`
}

// APITrade represents an executed trade from the Meridian API. Unlike
// orderbook levels, trade amounts arrive as decimal strings.
type APITrade struct {
	ID          int64           `json:"id"`
	OrderbookID string          `json:"orderbook_id"`
	TakerPubkey string          `json:"taker_pubkey"`
	MakerPubkey string          `json:"maker_pubkey"`
	Side        string          `json:"side"` // "BID" or "ASK"
	Size        decimal.Decimal `json:"size"`
	Price       decimal.Decimal `json:"price"`
	TakerFee    decimal.Decimal `json:"taker_fee"`
	MakerFee    decimal.Decimal `json:"maker_fee"`
	ExecutedAt  int64           `json:"executed_at"` // milliseconds since epoch
}

// TradesResponse from GET /api/trades
type TradesResponse struct {
	OrderbookID string     `json:"orderbook_id"`
	Trades      []APITrade `json:"trades"`
	NextCursor  *int64     `json:"next_cursor"`
	HasMore     bool       `json:"has_more"`
}

// PricePoint is one REST price-history sample. All prices are scaled by 1e6;
// OHLCV fields are present only when include_ohlcv was requested.
type PricePoint struct {
	T  int64  `json:"t"`
	M  int64  `json:"m"`
	O  *int64 `json:"o,omitempty"`
	H  *int64 `json:"h,omitempty"`
	L  *int64 `json:"l,omitempty"`
	C  *int64 `json:"c,omitempty"`
	V  *int64 `json:"v,omitempty"`
	BB *int64 `json:"bb,omitempty"`
	BA *int64 `json:"ba,omitempty"`
}

// PriceHistoryResponse from GET /api/price-history
type PriceHistoryResponse struct {
	OrderbookID  string       `json:"orderbook_id"`
	Resolution   string       `json:"resolution"`
	IncludeOHLCV bool         `json:"include_ohlcv"`
	Prices       []PricePoint `json:"prices"`
	NextCursor   *int64       `json:"next_cursor"`
	HasMore      bool         `json:"has_more"`
}

// ServerTimeResponse from GET /api/time
type ServerTimeResponse struct {
	ServerTime int64 `json:"server_time"` // milliseconds since epoch
}

// GetTradesOptions configures a GetTrades request. OrderbookID is required.
type GetTradesOptions struct {
	OrderbookID string
	User        string
	From        int64 // milliseconds, inclusive
	To          int64 // milliseconds, exclusive
	Cursor      int64
	Limit       int // 1-500
}

// GetPriceHistoryOptions configures a GetPriceHistory request. OrderbookID is
// required.
type GetPriceHistoryOptions struct {
	OrderbookID  string
	Resolution   wire.Resolution
	From         int64
	To           int64
	Cursor       int64
	Limit        int // 1-1000
	IncludeOHLCV bool
}
