package state

import (
	"sort"
	"sync"

	"github.com/meridianxyz/meridian-data/internal/wire"
)

// HistoryKey identifies one candle series.
type HistoryKey struct {
	OrderbookID string
	Resolution  wire.Resolution
}

// Stores aggregates every entity store for one connection behind a single
// reader-writer lock.
//
// The connection manager goroutine is the only writer, so mutation is already
// serialized; the lock exists because applications read concurrently. Readers
// only ever receive point-in-time copies, never a mutable handle.
type Stores struct {
	mu         sync.RWMutex
	books      map[string]*OrderBook
	trades     map[string]*TradeHistory
	histories  map[HistoryKey]*PriceHistoryState
	user       *UserState
	tradeLimit int
}

// NewStores returns an empty store set. A non-positive tradeLimit selects
// DefaultTradeLimit for each trade ring.
func NewStores(tradeLimit int) *Stores {
	return &Stores{
		books:      make(map[string]*OrderBook),
		trades:     make(map[string]*TradeHistory),
		histories:  make(map[HistoryKey]*PriceHistoryState),
		tradeLimit: tradeLimit,
	}
}

// EnsureBook pre-creates an empty book so reads work before the snapshot
// arrives.
func (s *Stores) EnsureBook(orderbookID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.books[orderbookID]; !ok {
		s.books[orderbookID] = NewOrderBook(orderbookID)
	}
}

// ApplyBook reconciles a book snapshot or delta, creating the book on first
// sight. A sequence gap is returned to the caller with the book untouched.
func (s *Stores) ApplyBook(update *wire.BookUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	book, ok := s.books[update.OrderbookID]
	if !ok {
		book = NewOrderBook(update.OrderbookID)
		s.books[update.OrderbookID] = book
	}
	return book.Apply(update)
}

// ClearBook discards one book's levels and sequence baseline for resync.
func (s *Stores) ClearBook(orderbookID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if book, ok := s.books[orderbookID]; ok {
		book.Clear()
	}
}

// DropBook removes a book entirely, after an unsubscribe.
func (s *Stores) DropBook(orderbookID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.books, orderbookID)
}

// PushTrade appends a live trade, creating the ring on first sight.
func (s *Stores) PushTrade(trade wire.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ring, ok := s.trades[trade.OrderbookID]
	if !ok {
		ring = NewTradeHistory(trade.OrderbookID, s.tradeLimit)
		s.trades[trade.OrderbookID] = ring
	}
	ring.Push(trade)
}

// ReplaceTrades swaps one ring's contents for a backfilled list, newest
// first.
func (s *Stores) ReplaceTrades(orderbookID string, trades []wire.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ring, ok := s.trades[orderbookID]
	if !ok {
		ring = NewTradeHistory(orderbookID, s.tradeLimit)
		s.trades[orderbookID] = ring
	}
	ring.Replace(trades)
}

// DropTrades removes a trade ring entirely, after an unsubscribe.
func (s *Stores) DropTrades(orderbookID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trades, orderbookID)
}

// SetUser installs the tracked user for this connection. At most one user
// channel is served per connection; a different wallet replaces the previous
// state wholesale.
func (s *Stores) SetUser(wallet string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil || s.user.Wallet() != wallet {
		s.user = NewUserState(wallet)
	}
}

// DropUser removes the tracked user if it matches wallet.
func (s *Stores) DropUser(wallet string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil && s.user.Wallet() == wallet {
		s.user = nil
	}
}

// ApplyUser folds a user event into the tracked user's state. It reports the
// tracked wallet and false when no user is subscribed.
func (s *Stores) ApplyUser(event *wire.UserEvent) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return "", false
	}
	s.user.Apply(event)
	return s.user.Wallet(), true
}

// ApplyHistory folds a snapshot or single-candle update into one series. A
// series is created only by its snapshot; updates for an unknown series are
// rejected so the caller can log the dropped event.
func (s *Stores) ApplyHistory(orderbookID string, resolution wire.Resolution, event *wire.PriceHistory) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := HistoryKey{OrderbookID: orderbookID, Resolution: resolution}
	history, ok := s.histories[key]
	if !ok {
		if event.EventType != wire.PriceHistorySnapshot {
			return false
		}
		history = NewPriceHistoryState(orderbookID, resolution)
		s.histories[key] = history
	}
	history.Apply(event)
	return true
}

// HeartbeatHistories applies a heartbeat to every series. Heartbeats carry no
// orderbook id; they refresh the server clock everywhere.
func (s *Stores) HeartbeatHistories(event *wire.PriceHistory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, history := range s.histories {
		history.Apply(event)
	}
}

// DropHistory removes one series entirely, after an unsubscribe.
func (s *Stores) DropHistory(orderbookID string, resolution wire.Resolution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, HistoryKey{OrderbookID: orderbookID, Resolution: resolution})
}

// ClearAll empties every store in place. Instances survive so that snapshots
// replayed after a reconnect apply into the same stores the subscriptions
// reference.
func (s *Stores) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, book := range s.books {
		book.Clear()
	}
	for _, ring := range s.trades {
		ring.Clear()
	}
	for _, history := range s.histories {
		history.Clear()
	}
	if s.user != nil {
		s.user.Clear()
	}
}

// Book returns a point-in-time copy of one book.
func (s *Stores) Book(orderbookID string) (*OrderBook, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	book, ok := s.books[orderbookID]
	if !ok {
		return nil, false
	}
	return book.Clone(), true
}

// BookIDs returns the ids of all tracked books, sorted.
func (s *Stores) BookIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.books))
	for id := range s.books {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// User returns a point-in-time copy of the tracked user's state.
func (s *Stores) User() (*UserState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, false
	}
	return s.user.Clone(), true
}

// SubscribedUser returns the tracked wallet, if a user channel is active.
func (s *Stores) SubscribedUser() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return "", false
	}
	return s.user.Wallet(), true
}

// History returns a point-in-time copy of one candle series.
func (s *Stores) History(orderbookID string, resolution wire.Resolution) (*PriceHistoryState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history, ok := s.histories[HistoryKey{OrderbookID: orderbookID, Resolution: resolution}]
	if !ok {
		return nil, false
	}
	return history.Clone(), true
}

// RecentTrades returns up to n recent trades for one orderbook, newest first.
func (s *Stores) RecentTrades(orderbookID string, n int) []wire.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ring, ok := s.trades[orderbookID]
	if !ok {
		return nil
	}
	return ring.Recent(n)
}

// LatestTrade returns the most recent trade for one orderbook.
func (s *Stores) LatestTrade(orderbookID string) (wire.Trade, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ring, ok := s.trades[orderbookID]
	if !ok {
		return wire.Trade{}, false
	}
	return ring.Latest()
}
