package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianxyz/meridian-data/internal/wire"
)

// PriceScale is the REST API's fixed-point scaling factor. A price of 0.5
// arrives as 500000.
const PriceScale = 1_000_000

// ScaledToDecimal converts a 1e6-scaled integer to an exact decimal.
// 500000 -> 0.5
func ScaledToDecimal(scaled int64) decimal.Decimal {
	return decimal.New(scaled, -6)
}

// DecimalToScaled converts a decimal to the REST API's 1e6-scaled integer,
// truncating sub-scale precision. 0.5 -> 500000
func DecimalToScaled(d decimal.Decimal) int64 {
	return d.Shift(6).IntPart()
}

func scaledPtr(scaled *int64) *decimal.Decimal {
	if scaled == nil {
		return nil
	}
	d := ScaledToDecimal(*scaled)
	return &d
}

// DeriveOrderbookID derives the canonical orderbook identifier from base and
// quote token pubkeys: the first eight characters of each, joined by "_".
func DeriveOrderbookID(baseToken, quoteToken string) string {
	return tokenPrefix(baseToken) + "_" + tokenPrefix(quoteToken)
}

func tokenPrefix(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}

// ParseTimestamp parses an ISO 8601 timestamp. Returns the zero time for
// empty or invalid input.
func ParseTimestamp(iso string) time.Time {
	if iso == "" {
		return time.Time{}
	}

	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return time.Time{}
		}
	}

	return t
}

// ToBookUpdate converts a REST orderbook to a feed-shaped snapshot. The
// result carries no sequence number and seeds bootstrap display only; live
// reconciliation always rebases on a feed snapshot.
func (o *OrderbookResponse) ToBookUpdate() *wire.BookUpdate {
	bids := make([]wire.PriceLevel, 0, len(o.Bids))
	for _, lvl := range o.Bids {
		bids = append(bids, wire.PriceLevel{
			Side:  "bid",
			Price: ScaledToDecimal(lvl.Price),
			Size:  ScaledToDecimal(lvl.Size),
		})
	}

	asks := make([]wire.PriceLevel, 0, len(o.Asks))
	for _, lvl := range o.Asks {
		asks = append(asks, wire.PriceLevel{
			Side:  "ask",
			Price: ScaledToDecimal(lvl.Price),
			Size:  ScaledToDecimal(lvl.Size),
		})
	}

	return &wire.BookUpdate{
		OrderbookID: o.OrderbookID,
		Bids:        bids,
		Asks:        asks,
		IsSnapshot:  true,
	}
}

// ToWire converts a REST trade to the feed trade shape. REST sides arrive as
// "BID"/"ASK" where the feed uses "buy"/"sell".
func (t *APITrade) ToWire() wire.Trade {
	return wire.Trade{
		OrderbookID: t.OrderbookID,
		Price:       t.Price,
		Size:        t.Size,
		Side:        tradeSide(t.Side),
		Timestamp:   time.UnixMilli(t.ExecutedAt).UTC().Format(time.RFC3339Nano),
		TradeID:     strconv.FormatInt(t.ID, 10),
	}
}

func tradeSide(side string) string {
	switch strings.ToUpper(side) {
	case "BID":
		return "buy"
	case "ASK":
		return "sell"
	}
	return strings.ToLower(side)
}

// ToWireTrades converts a trades page to feed trades, oldest first so the
// result can seed a rolling trade store directly.
func (r *TradesResponse) ToWireTrades() []wire.Trade {
	trades := make([]wire.Trade, 0, len(r.Trades))
	for i := len(r.Trades) - 1; i >= 0; i-- {
		trades = append(trades, r.Trades[i].ToWire())
	}
	return trades
}

// ToCandle converts a REST price point to a feed candle.
func (p *PricePoint) ToCandle() wire.Candle {
	m := ScaledToDecimal(p.M)
	return wire.Candle{
		T:  p.T,
		M:  &m,
		O:  scaledPtr(p.O),
		H:  scaledPtr(p.H),
		L:  scaledPtr(p.L),
		C:  scaledPtr(p.C),
		V:  scaledPtr(p.V),
		BB: scaledPtr(p.BB),
		BA: scaledPtr(p.BA),
	}
}

// ToCandles converts a price-history page to feed candles in server order.
func (r *PriceHistoryResponse) ToCandles() []wire.Candle {
	candles := make([]wire.Candle, 0, len(r.Prices))
	for i := range r.Prices {
		candles = append(candles, r.Prices[i].ToCandle())
	}
	return candles
}
