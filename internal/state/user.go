package state

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/meridianxyz/meridian-data/internal/wire"
)

// Order lifecycle statuses tracked locally. The venue never sends a status
// field; it is derived from fill progress on every write.
const (
	OrderStatusOpen            = "open"
	OrderStatusPartiallyFilled = "partially_filled"
)

// OrderSnapshot is a locally-tracked open order.
type OrderSnapshot struct {
	OrderHash    string
	MarketPubkey string
	OrderbookID  string
	Side         int
	MakerAmount  decimal.Decimal
	TakerAmount  decimal.Decimal
	Remaining    decimal.Decimal
	Filled       decimal.Decimal
	Price        decimal.Decimal
	Status       string
	CreatedAt    int64
	Expiration   int64
}

// UserState mirrors one wallet's open orders, balances, and signing nonce.
//
// Orders are keyed by order hash. Balances are keyed "market_pubkey:deposit_mint".
// A remaining amount of exactly zero removes the order; the comparison is done
// on exact decimals, never floats.
type UserState struct {
	wallet      string
	orders      map[string]OrderSnapshot
	balances    map[string]wire.BalanceEntry
	nonce       uint64
	hasSnapshot bool
}

// NewUserState returns an empty state for the given wallet.
func NewUserState(wallet string) *UserState {
	return &UserState{
		wallet:   wallet,
		orders:   make(map[string]OrderSnapshot),
		balances: make(map[string]wire.BalanceEntry),
	}
}

// Apply folds a user-channel event into the state. Events with an unknown
// event_type are ignored; the caller decides whether to log them.
func (s *UserState) Apply(event *wire.UserEvent) {
	switch event.EventType {
	case wire.UserEventSnapshot:
		s.applySnapshot(event)
	case wire.UserEventOrderUpdate:
		s.applyOrderUpdate(event)
	case wire.UserEventBalanceUpdate:
		s.applyBalanceUpdate(event)
	case wire.UserEventNonce:
		s.nonce = event.NewNonce
	}
}

func (s *UserState) applySnapshot(event *wire.UserEvent) {
	s.orders = make(map[string]OrderSnapshot, len(event.Orders))
	for _, o := range event.Orders {
		s.orders[o.OrderHash] = OrderSnapshot{
			OrderHash:    o.OrderHash,
			MarketPubkey: o.MarketPubkey,
			OrderbookID:  o.OrderbookID,
			Side:         o.Side,
			MakerAmount:  o.MakerAmount,
			TakerAmount:  o.TakerAmount,
			Remaining:    o.Remaining,
			Filled:       o.Filled,
			Price:        o.Price,
			Status:       statusForFilled(o.Filled),
			CreatedAt:    o.CreatedAt,
			Expiration:   o.Expiration,
		}
	}

	s.balances = make(map[string]wire.BalanceEntry, len(event.Balances))
	for key, entry := range event.Balances {
		s.balances[key] = entry
	}

	s.nonce = event.Nonce
	if event.Wallet != "" {
		s.wallet = event.Wallet
	}
	s.hasSnapshot = true
}

func (s *UserState) applyOrderUpdate(event *wire.UserEvent) {
	update := event.Order
	if update == nil {
		return
	}

	if update.Remaining.IsZero() {
		delete(s.orders, update.OrderHash)
	} else if existing, ok := s.orders[update.OrderHash]; ok {
		existing.Remaining = update.Remaining
		existing.Filled = update.Filled
		existing.Status = statusForFilled(update.Filled)
		s.orders[update.OrderHash] = existing
	} else if event.MarketPubkey != "" && event.OrderbookID != "" {
		// First sighting of a placement looks identical to an update with
		// no prior record. Reconstruct what we can; the taker amount and
		// expiration are not on the wire for updates.
		s.orders[update.OrderHash] = OrderSnapshot{
			OrderHash:    update.OrderHash,
			MarketPubkey: event.MarketPubkey,
			OrderbookID:  event.OrderbookID,
			Side:         update.Side,
			MakerAmount:  update.Remaining.Add(update.Filled),
			Remaining:    update.Remaining,
			Filled:       update.Filled,
			Price:        update.Price,
			Status:       statusForFilled(update.Filled),
			CreatedAt:    update.CreatedAt,
		}
	}

	if update.Balance != nil {
		s.replaceBalance(event.MarketPubkey, event.DepositMint, update.Balance.Outcomes)
	}
}

func (s *UserState) applyBalanceUpdate(event *wire.UserEvent) {
	if event.Balance == nil {
		return
	}
	s.replaceBalance(event.MarketPubkey, event.DepositMint, event.Balance.Outcomes)
}

// replaceBalance swaps the balance entry for a market/mint pair. Some venue
// events omit the deposit mint; those fall back to the first entry whose key
// shares the market prefix.
func (s *UserState) replaceBalance(marketPubkey, depositMint string, outcomes []wire.OutcomeBalance) {
	if marketPubkey == "" {
		return
	}
	if depositMint != "" {
		s.balances[BalanceKey(marketPubkey, depositMint)] = wire.BalanceEntry{
			MarketPubkey: marketPubkey,
			DepositMint:  depositMint,
			Outcomes:     outcomes,
		}
		return
	}

	prefix := marketPubkey + ":"
	for key, entry := range s.balances {
		if strings.HasPrefix(key, prefix) {
			entry.Outcomes = outcomes
			s.balances[key] = entry
			return
		}
	}
}

// BalanceKey builds the canonical balance map key.
func BalanceKey(marketPubkey, depositMint string) string {
	return marketPubkey + ":" + depositMint
}

func statusForFilled(filled decimal.Decimal) string {
	if filled.IsPositive() {
		return OrderStatusPartiallyFilled
	}
	return OrderStatusOpen
}

// Wallet returns the wallet this state tracks.
func (s *UserState) Wallet() string { return s.wallet }

// Nonce returns the last nonce delivered by the server.
func (s *UserState) Nonce() uint64 { return s.nonce }

// HasSnapshot reports whether an initial snapshot has been applied.
func (s *UserState) HasSnapshot() bool { return s.hasSnapshot }

// Order looks up a tracked order by hash.
func (s *UserState) Order(hash string) (OrderSnapshot, bool) {
	o, ok := s.orders[hash]
	return o, ok
}

// Orders returns all tracked orders, oldest first.
func (s *UserState) Orders() []OrderSnapshot {
	out := make([]OrderSnapshot, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].OrderHash < out[j].OrderHash
	})
	return out
}

// OrderCount returns the number of tracked orders.
func (s *UserState) OrderCount() int { return len(s.orders) }

// Balance looks up the balance entry for a market/mint pair.
func (s *UserState) Balance(marketPubkey, depositMint string) (wire.BalanceEntry, bool) {
	entry, ok := s.balances[BalanceKey(marketPubkey, depositMint)]
	return entry, ok
}

// Balances returns a copy of all balance entries keyed "market:mint".
func (s *UserState) Balances() map[string]wire.BalanceEntry {
	out := make(map[string]wire.BalanceEntry, len(s.balances))
	for key, entry := range s.balances {
		out[key] = entry
	}
	return out
}

// Clear drops all orders, balances, the nonce, and the snapshot flag.
func (s *UserState) Clear() {
	s.orders = make(map[string]OrderSnapshot)
	s.balances = make(map[string]wire.BalanceEntry)
	s.nonce = 0
	s.hasSnapshot = false
}

// Clone returns a deep copy that stays valid while the original keeps
// mutating. Balance entries are replaced wholesale on write, so sharing
// their outcome slices is safe.
func (s *UserState) Clone() *UserState {
	clone := &UserState{
		wallet:      s.wallet,
		orders:      make(map[string]OrderSnapshot, len(s.orders)),
		balances:    make(map[string]wire.BalanceEntry, len(s.balances)),
		nonce:       s.nonce,
		hasSnapshot: s.hasSnapshot,
	}
	for hash, order := range s.orders {
		clone.orders[hash] = order
	}
	for key, entry := range s.balances {
		clone.balances[key] = entry
	}
	return clone
}
