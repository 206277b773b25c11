package wire

import json "github.com/goccy/go-json"

// Request frame types (client → server).
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
)

// Request is an outbound control frame.
type Request struct {
	Type   string  `json:"type"`
	Params *Params `json:"params,omitempty"`
}

// Params selects a channel and its arguments. Exactly the fields for the
// chosen channel are set; the rest stay empty and are omitted on the wire.
type Params struct {
	Type         string     `json:"type"`
	OrderbookIDs []string   `json:"orderbook_ids,omitempty"`
	User         string     `json:"user,omitempty"`
	OrderbookID  string     `json:"orderbook_id,omitempty"`
	Resolution   Resolution `json:"resolution,omitempty"`
	IncludeOHLCV *bool      `json:"include_ohlcv,omitempty"`
	MarketPubkey string     `json:"market_pubkey,omitempty"`
}

// Subscribe builds a subscribe request for the given channel params.
func Subscribe(p Params) Request {
	return Request{Type: TypeSubscribe, Params: &p}
}

// Unsubscribe builds an unsubscribe request for the given channel params.
func Unsubscribe(p Params) Request {
	return Request{Type: TypeUnsubscribe, Params: &p}
}

// Ping builds a liveness probe frame.
func Ping() Request {
	return Request{Type: TypePing}
}

// BookParams subscribes one or more orderbooks to depth updates.
func BookParams(orderbookIDs []string) Params {
	return Params{Type: TypeBookUpdate, OrderbookIDs: orderbookIDs}
}

// TradesParams subscribes one or more orderbooks to trade executions.
func TradesParams(orderbookIDs []string) Params {
	return Params{Type: TypeTrades, OrderbookIDs: orderbookIDs}
}

// UserParams subscribes the authenticated user channel for a wallet.
func UserParams(wallet string) Params {
	return Params{Type: TypeUser, User: wallet}
}

// PriceHistoryParams subscribes candles for one orderbook at a resolution.
func PriceHistoryParams(orderbookID string, resolution Resolution, includeOHLCV bool) Params {
	return Params{
		Type:         TypePriceHistory,
		OrderbookID:  orderbookID,
		Resolution:   resolution,
		IncludeOHLCV: &includeOHLCV,
	}
}

// MarketParams subscribes lifecycle events for a market. The pubkey "all"
// subscribes every market.
func MarketParams(marketPubkey string) Params {
	return Params{Type: TypeMarket, MarketPubkey: marketPubkey}
}

// TickerParams subscribes top-of-book summaries for one or more orderbooks.
func TickerParams(orderbookIDs []string) Params {
	return Params{Type: TypeTicker, OrderbookIDs: orderbookIDs}
}

// Encode serializes the request frame.
func (r Request) Encode() ([]byte, error) {
	return json.Marshal(r)
}
