package recorder

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridianxyz/meridian-data/internal/wire"
)

// toMicros converts a decimal price or size to integer micros, truncating
// toward zero.
func toMicros(d decimal.Decimal) int64 {
	return d.Shift(6).IntPart()
}

// timestampMicros parses a venue RFC 3339 timestamp. Events with a missing
// or malformed timestamp fall back to the local receive time.
func timestampMicros(ts string, fallback time.Time) int64 {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t.UnixMicro()
	}
	return fallback.UnixMicro()
}

// bookRows flattens a book update into one row per price level.
func bookRows(ev wire.Event) []bookRow {
	b := ev.Book
	receivedAt := ev.ReceivedAt.UnixMicro()

	rows := make([]bookRow, 0, len(b.Bids)+len(b.Asks))
	for _, l := range b.Bids {
		rows = append(rows, bookRow{
			ReceivedAt:  receivedAt,
			OrderbookID: b.OrderbookID,
			Seq:         int64(b.Seq),
			IsSnapshot:  b.IsSnapshot,
			Side:        "bid",
			Price:       toMicros(l.Price),
			Size:        toMicros(l.Size),
		})
	}
	for _, l := range b.Asks {
		rows = append(rows, bookRow{
			ReceivedAt:  receivedAt,
			OrderbookID: b.OrderbookID,
			Seq:         int64(b.Seq),
			IsSnapshot:  b.IsSnapshot,
			Side:        "ask",
			Price:       toMicros(l.Price),
			Size:        toMicros(l.Size),
		})
	}
	return rows
}

// tradeRowFrom converts a trade event to a tradeRow.
func tradeRowFrom(ev wire.Event) tradeRow {
	t := ev.Trade
	return tradeRow{
		TradeID:     t.TradeID,
		OrderbookID: t.OrderbookID,
		Side:        t.Side,
		Price:       toMicros(t.Price),
		Size:        toMicros(t.Size),
		ExecutedAt:  timestampMicros(t.Timestamp, ev.ReceivedAt),
		ReceivedAt:  ev.ReceivedAt.UnixMicro(),
		Seq:         int64(t.Seq),
	}
}
