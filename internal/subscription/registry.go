package subscription

import (
	"sort"

	"github.com/meridianxyz/meridian-data/internal/wire"
)

// Kind tags the channel a subscription belongs to.
type Kind string

// Subscription kinds, one per wire channel.
const (
	KindBooks        Kind = "books"
	KindTrades       Kind = "trades"
	KindUser         Kind = "user"
	KindPriceHistory Kind = "price_history"
	KindMarket       Kind = "market"
	KindTicker       Kind = "ticker"
)

// Subscription is one registry entry. Which fields are set depends on Kind:
// books/trades/ticker carry an orderbook id, user carries a wallet,
// price_history carries an orderbook id plus resolution, market carries a
// market pubkey (or the "all" wildcard).
type Subscription struct {
	Kind         Kind
	OrderbookID  string
	Wallet       string
	MarketPubkey string
	Resolution   wire.Resolution
	IncludeOHLCV bool
}

// Books subscribes to depth updates for one orderbook.
func Books(orderbookID string) Subscription {
	return Subscription{Kind: KindBooks, OrderbookID: orderbookID}
}

// Trades subscribes to executions for one orderbook.
func Trades(orderbookID string) Subscription {
	return Subscription{Kind: KindTrades, OrderbookID: orderbookID}
}

// User subscribes to the authenticated user channel for a wallet.
func User(wallet string) Subscription {
	return Subscription{Kind: KindUser, Wallet: wallet}
}

// PriceHistory subscribes to the candle stream for one orderbook/resolution.
func PriceHistory(orderbookID string, resolution wire.Resolution, includeOHLCV bool) Subscription {
	return Subscription{
		Kind:         KindPriceHistory,
		OrderbookID:  orderbookID,
		Resolution:   resolution,
		IncludeOHLCV: includeOHLCV,
	}
}

// Market subscribes to lifecycle events for one market, or for every market
// when pubkey is the wildcard "all".
func Market(pubkey string) Subscription {
	return Subscription{Kind: KindMarket, MarketPubkey: pubkey}
}

// Ticker subscribes to top-of-book summaries for one orderbook.
func Ticker(orderbookID string) Subscription {
	return Subscription{Kind: KindTicker, OrderbookID: orderbookID}
}

// Key is the registry identity of a subscription. IncludeOHLCV is not part of
// the identity: re-adding the same series with a different flag replaces it.
func (s Subscription) Key() string {
	switch s.Kind {
	case KindUser:
		return string(s.Kind) + ":" + s.Wallet
	case KindMarket:
		return string(s.Kind) + ":" + s.MarketPubkey
	case KindPriceHistory:
		return string(s.Kind) + ":" + s.OrderbookID + ":" + string(s.Resolution)
	default:
		return string(s.Kind) + ":" + s.OrderbookID
	}
}

// Registry is the active subscription set.
type Registry struct {
	entries map[string]Subscription
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Subscription)}
}

// Add inserts or replaces a subscription. It reports whether the entry is new.
func (r *Registry) Add(sub Subscription) bool {
	key := sub.Key()
	_, exists := r.entries[key]
	r.entries[key] = sub
	return !exists
}

// Remove drops a subscription. It reports whether the entry existed.
func (r *Registry) Remove(sub Subscription) bool {
	key := sub.Key()
	if _, exists := r.entries[key]; !exists {
		return false
	}
	delete(r.entries, key)
	return true
}

// Contains reports whether an equivalent subscription is registered.
func (r *Registry) Contains(sub Subscription) bool {
	_, ok := r.entries[sub.Key()]
	return ok
}

// UserWallet returns the wallet of the registered user subscription, if any.
// At most one user channel is served per connection, so the first match wins.
func (r *Registry) UserWallet() (string, bool) {
	for _, sub := range r.entries {
		if sub.Kind == KindUser {
			return sub.Wallet, true
		}
	}
	return "", false
}

// Len returns the number of registered subscriptions.
func (r *Registry) Len() int { return len(r.entries) }

// All returns every subscription in deterministic key order.
func (r *Registry) All() []Subscription {
	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]Subscription, 0, len(keys))
	for _, key := range keys {
		out = append(out, r.entries[key])
	}
	return out
}

// Clear empties the registry.
func (r *Registry) Clear() {
	r.entries = make(map[string]Subscription)
}

// Requests renders the registry as subscribe frames for replay after a
// reconnect. Channels that accept batched ids (books, trades, ticker) are
// grouped into one frame each; the rest get one frame per entry.
func (r *Registry) Requests() []wire.Request {
	var (
		bookIDs   []string
		tradeIDs  []string
		tickerIDs []string
		users     []Subscription
		histories []Subscription
		markets   []Subscription
	)

	for _, sub := range r.All() {
		switch sub.Kind {
		case KindBooks:
			bookIDs = append(bookIDs, sub.OrderbookID)
		case KindTrades:
			tradeIDs = append(tradeIDs, sub.OrderbookID)
		case KindTicker:
			tickerIDs = append(tickerIDs, sub.OrderbookID)
		case KindUser:
			users = append(users, sub)
		case KindPriceHistory:
			histories = append(histories, sub)
		case KindMarket:
			markets = append(markets, sub)
		}
	}

	var requests []wire.Request
	if len(bookIDs) > 0 {
		requests = append(requests, wire.Subscribe(wire.BookParams(bookIDs)))
	}
	if len(tradeIDs) > 0 {
		requests = append(requests, wire.Subscribe(wire.TradesParams(tradeIDs)))
	}
	for _, sub := range users {
		requests = append(requests, wire.Subscribe(wire.UserParams(sub.Wallet)))
	}
	for _, sub := range histories {
		requests = append(requests, wire.Subscribe(wire.PriceHistoryParams(sub.OrderbookID, sub.Resolution, sub.IncludeOHLCV)))
	}
	for _, sub := range markets {
		requests = append(requests, wire.Subscribe(wire.MarketParams(sub.MarketPubkey)))
	}
	if len(tickerIDs) > 0 {
		requests = append(requests, wire.Subscribe(wire.TickerParams(tickerIDs)))
	}
	return requests
}
