package state

import (
	"github.com/gammazero/deque"

	"github.com/meridianxyz/meridian-data/internal/wire"
)

// DefaultTradeLimit is the number of recent trades retained per orderbook.
const DefaultTradeLimit = 500

// TradeHistory is a bounded ring of recent trades for one orderbook, newest
// first. Live pushes evict the oldest trade once the limit is reached.
type TradeHistory struct {
	orderbookID string
	ring        deque.Deque[wire.Trade]
	limit       int
}

// NewTradeHistory returns an empty ring. A non-positive limit selects
// DefaultTradeLimit.
func NewTradeHistory(orderbookID string, limit int) *TradeHistory {
	if limit <= 0 {
		limit = DefaultTradeLimit
	}
	return &TradeHistory{orderbookID: orderbookID, limit: limit}
}

// Push prepends a live trade, evicting the oldest past the limit.
func (h *TradeHistory) Push(trade wire.Trade) {
	h.ring.PushFront(trade)
	for h.ring.Len() > h.limit {
		h.ring.PopBack()
	}
}

// Replace swaps the ring contents for a backfilled list, newest first, as
// served by the venue's trade-history endpoint.
func (h *TradeHistory) Replace(trades []wire.Trade) {
	h.ring.Clear()
	for _, trade := range trades {
		if h.ring.Len() == h.limit {
			break
		}
		h.ring.PushBack(trade)
	}
}

// Latest returns the most recent trade.
func (h *TradeHistory) Latest() (wire.Trade, bool) {
	if h.ring.Len() == 0 {
		return wire.Trade{}, false
	}
	return h.ring.Front(), true
}

// Recent returns up to n trades, newest first.
func (h *TradeHistory) Recent(n int) []wire.Trade {
	if n > h.ring.Len() {
		n = h.ring.Len()
	}
	if n <= 0 {
		return nil
	}
	out := make([]wire.Trade, n)
	for i := 0; i < n; i++ {
		out[i] = h.ring.At(i)
	}
	return out
}

// All returns every retained trade, newest first.
func (h *TradeHistory) All() []wire.Trade {
	return h.Recent(h.ring.Len())
}

// OrderbookID returns the orderbook this ring tracks.
func (h *TradeHistory) OrderbookID() string { return h.orderbookID }

// Len returns the number of retained trades.
func (h *TradeHistory) Len() int { return h.ring.Len() }

// Limit returns the retention cap.
func (h *TradeHistory) Limit() int { return h.limit }

// Clear drops all retained trades.
func (h *TradeHistory) Clear() {
	h.ring.Clear()
}
