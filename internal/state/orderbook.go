package state

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/meridianxyz/meridian-data/internal/wire"
)

// SequenceGapError reports a delta whose sequence number does not match the
// expected next value. The book is left untouched; the caller decides
// whether to clear and resync.
type SequenceGapError struct {
	Expected uint64
	Received uint64
}

func (e *SequenceGapError) Error() string {
	return fmt.Sprintf("sequence gap: expected %d, received %d", e.Expected, e.Received)
}

// Level is one price level of a book side.
type Level struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// OrderBook mirrors one orderbook's depth. Bids are held in descending price
// order, asks ascending. A level with size zero is never stored.
type OrderBook struct {
	OrderbookID string

	bids []Level
	asks []Level

	expectedSeq   uint64
	hasSnapshot   bool
	lastTimestamp string
}

// NewOrderBook creates an empty book for an orderbook id.
func NewOrderBook(orderbookID string) *OrderBook {
	return &OrderBook{OrderbookID: orderbookID}
}

// Apply reconciles a snapshot or delta into the book.
//
// Snapshots replace both sides and rebase the sequence to seq+1. Deltas are
// accepted only when their sequence matches the expected next value; a
// mismatch returns SequenceGapError and leaves the book unchanged.
func (b *OrderBook) Apply(update *wire.BookUpdate) error {
	if update.IsSnapshot {
		b.applySnapshot(update)
		return nil
	}
	return b.applyDelta(update)
}

func (b *OrderBook) applySnapshot(update *wire.BookUpdate) {
	b.bids = b.bids[:0]
	b.asks = b.asks[:0]

	for _, lvl := range update.Bids {
		if lvl.Size.IsZero() {
			continue
		}
		b.bids = append(b.bids, Level{Price: lvl.Price, Size: lvl.Size})
	}
	for _, lvl := range update.Asks {
		if lvl.Size.IsZero() {
			continue
		}
		b.asks = append(b.asks, Level{Price: lvl.Price, Size: lvl.Size})
	}

	sort.Slice(b.bids, func(i, j int) bool { return b.bids[i].Price.GreaterThan(b.bids[j].Price) })
	sort.Slice(b.asks, func(i, j int) bool { return b.asks[i].Price.LessThan(b.asks[j].Price) })

	b.expectedSeq = update.Seq + 1
	b.hasSnapshot = true
	b.lastTimestamp = update.Timestamp
}

func (b *OrderBook) applyDelta(update *wire.BookUpdate) error {
	if update.Seq != b.expectedSeq {
		return &SequenceGapError{Expected: b.expectedSeq, Received: update.Seq}
	}

	for _, lvl := range update.Bids {
		b.bids = upsertLevel(b.bids, lvl.Price, lvl.Size, descending)
	}
	for _, lvl := range update.Asks {
		b.asks = upsertLevel(b.asks, lvl.Price, lvl.Size, ascending)
	}

	b.expectedSeq = update.Seq + 1
	b.lastTimestamp = update.Timestamp
	return nil
}

type sideOrder int

const (
	descending sideOrder = iota
	ascending
)

// upsertLevel inserts, replaces or removes (size zero) a price level while
// keeping the side sorted.
func upsertLevel(side []Level, price, size decimal.Decimal, order sideOrder) []Level {
	idx := sort.Search(len(side), func(i int) bool {
		if order == descending {
			return side[i].Price.LessThanOrEqual(price)
		}
		return side[i].Price.GreaterThanOrEqual(price)
	})

	exists := idx < len(side) && side[idx].Price.Equal(price)

	if size.IsZero() {
		if exists {
			side = append(side[:idx], side[idx+1:]...)
		}
		return side
	}

	if exists {
		side[idx].Size = size
		return side
	}

	side = append(side, Level{})
	copy(side[idx+1:], side[idx:])
	side[idx] = Level{Price: price, Size: size}
	return side
}

// BestBid returns the highest bid price, if any.
func (b *OrderBook) BestBid() (decimal.Decimal, bool) {
	if len(b.bids) == 0 {
		return decimal.Decimal{}, false
	}
	return b.bids[0].Price, true
}

// BestAsk returns the lowest ask price, if any.
func (b *OrderBook) BestAsk() (decimal.Decimal, bool) {
	if len(b.asks) == 0 {
		return decimal.Decimal{}, false
	}
	return b.asks[0].Price, true
}

// Spread returns best ask minus best bid when both sides have depth.
func (b *OrderBook) Spread() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Decimal{}, false
	}
	return ask.Sub(bid), true
}

// Midpoint returns (best bid + best ask) / 2 when both sides have depth.
func (b *OrderBook) Midpoint() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Decimal{}, false
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), true
}

// TopBids returns up to n best bid levels, highest price first.
func (b *OrderBook) TopBids(n int) []Level {
	return copyLevels(b.bids, n)
}

// TopAsks returns up to n best ask levels, lowest price first.
func (b *OrderBook) TopAsks(n int) []Level {
	return copyLevels(b.asks, n)
}

func copyLevels(side []Level, n int) []Level {
	if n > len(side) {
		n = len(side)
	}
	out := make([]Level, n)
	copy(out, side[:n])
	return out
}

// BidDepth returns the total size across all bid levels.
func (b *OrderBook) BidDepth() decimal.Decimal {
	return sumLevels(b.bids)
}

// AskDepth returns the total size across all ask levels.
func (b *OrderBook) AskDepth() decimal.Decimal {
	return sumLevels(b.asks)
}

func sumLevels(side []Level) decimal.Decimal {
	total := decimal.Zero
	for _, lvl := range side {
		total = total.Add(lvl.Size)
	}
	return total
}

// BidCount returns the number of bid levels.
func (b *OrderBook) BidCount() int { return len(b.bids) }

// AskCount returns the number of ask levels.
func (b *OrderBook) AskCount() int { return len(b.asks) }

// ExpectedSeq returns the next delta sequence the book will accept.
func (b *OrderBook) ExpectedSeq() uint64 { return b.expectedSeq }

// HasSnapshot reports whether the book has a sequence baseline.
func (b *OrderBook) HasSnapshot() bool { return b.hasSnapshot }

// LastTimestamp returns the wire timestamp of the last applied update.
func (b *OrderBook) LastTimestamp() string { return b.lastTimestamp }

// Clear discards all levels and the sequence baseline, for resync.
func (b *OrderBook) Clear() {
	b.bids = nil
	b.asks = nil
	b.expectedSeq = 0
	b.hasSnapshot = false
	b.lastTimestamp = ""
}

// Clone returns a deep copy that stays valid while the original keeps
// mutating.
func (b *OrderBook) Clone() *OrderBook {
	return &OrderBook{
		OrderbookID:   b.OrderbookID,
		bids:          copyLevels(b.bids, len(b.bids)),
		asks:          copyLevels(b.asks, len(b.asks)),
		expectedSeq:   b.expectedSeq,
		hasSnapshot:   b.hasSnapshot,
		lastTimestamp: b.lastTimestamp,
	}
}
