package subscription

import (
	"strings"
	"testing"

	"github.com/meridianxyz/meridian-data/internal/wire"
)

func TestRegistryAddRemove(t *testing.T) {
	reg := NewRegistry()

	if !reg.Add(Books("ob1")) {
		t.Error("Add(Books ob1) = false, want true for new entry")
	}
	if reg.Add(Books("ob1")) {
		t.Error("Add(Books ob1) again = true, want false for existing entry")
	}
	if !reg.Contains(Books("ob1")) {
		t.Error("Contains(Books ob1) = false, want true")
	}
	if reg.Contains(Trades("ob1")) {
		t.Error("Contains(Trades ob1) = true, want false (distinct kind)")
	}

	if !reg.Remove(Books("ob1")) {
		t.Error("Remove(Books ob1) = false, want true")
	}
	if reg.Remove(Books("ob1")) {
		t.Error("Remove(Books ob1) again = true, want false")
	}
	if reg.Len() != 0 {
		t.Errorf("Len() = %d, want 0", reg.Len())
	}
}

func TestRegistryPriceHistoryIdentity(t *testing.T) {
	reg := NewRegistry()

	reg.Add(PriceHistory("ob1", wire.Resolution1m, false))
	if !reg.Add(PriceHistory("ob1", wire.Resolution5m, false)) {
		t.Error("different resolution should be a new entry")
	}

	// Same series with a different flag replaces, not duplicates.
	if reg.Add(PriceHistory("ob1", wire.Resolution1m, true)) {
		t.Error("same series with different include_ohlcv should replace")
	}
	if reg.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", reg.Len())
	}

	for _, sub := range reg.All() {
		if sub.Resolution == wire.Resolution1m && !sub.IncludeOHLCV {
			t.Error("replacement did not refresh IncludeOHLCV")
		}
	}
}

func TestRegistryUserWallet(t *testing.T) {
	reg := NewRegistry()

	if _, ok := reg.UserWallet(); ok {
		t.Error("UserWallet() ok = true on empty registry")
	}

	reg.Add(User("wallet1"))
	wallet, ok := reg.UserWallet()
	if !ok {
		t.Fatal("UserWallet() ok = false, want true")
	}
	if wallet != "wallet1" {
		t.Errorf("UserWallet() = %q, want wallet1", wallet)
	}
}

func TestRegistryRequestsGroupsBatchChannels(t *testing.T) {
	reg := NewRegistry()
	reg.Add(Books("ob2"))
	reg.Add(Books("ob1"))
	reg.Add(Trades("ob1"))
	reg.Add(User("wallet1"))
	reg.Add(PriceHistory("ob1", wire.Resolution1m, true))
	reg.Add(Market("all"))
	reg.Add(Ticker("ob1"))
	reg.Add(Ticker("ob2"))

	requests := reg.Requests()
	// One frame per batch channel, one per scalar entry.
	if len(requests) != 6 {
		t.Fatalf("len(Requests()) = %d, want 6", len(requests))
	}

	byChannel := make(map[string]wire.Request)
	for _, req := range requests {
		if req.Type != wire.TypeSubscribe {
			t.Errorf("request type = %q, want subscribe", req.Type)
		}
		if req.Params == nil {
			t.Fatal("request params = nil")
		}
		byChannel[req.Params.Type] = req
	}

	books, ok := byChannel[wire.TypeBookUpdate]
	if !ok {
		t.Fatal("no book_update frame")
	}
	if len(books.Params.OrderbookIDs) != 2 {
		t.Fatalf("book ids = %v, want 2 entries", books.Params.OrderbookIDs)
	}
	// Deterministic replay: ids come out sorted.
	if books.Params.OrderbookIDs[0] != "ob1" || books.Params.OrderbookIDs[1] != "ob2" {
		t.Errorf("book ids = %v, want [ob1 ob2]", books.Params.OrderbookIDs)
	}

	ticker := byChannel[wire.TypeTicker]
	if len(ticker.Params.OrderbookIDs) != 2 {
		t.Errorf("ticker ids = %v, want 2 entries", ticker.Params.OrderbookIDs)
	}

	user := byChannel[wire.TypeUser]
	if user.Params.User != "wallet1" {
		t.Errorf("user = %q, want wallet1", user.Params.User)
	}

	history := byChannel[wire.TypePriceHistory]
	if history.Params.OrderbookID != "ob1" || history.Params.Resolution != wire.Resolution1m {
		t.Errorf("history params = %+v, want ob1/1m", history.Params)
	}
	if history.Params.IncludeOHLCV == nil || !*history.Params.IncludeOHLCV {
		t.Error("history include_ohlcv not carried")
	}

	market := byChannel[wire.TypeMarket]
	if market.Params.MarketPubkey != "all" {
		t.Errorf("market pubkey = %q, want all", market.Params.MarketPubkey)
	}
}

func TestRegistryClear(t *testing.T) {
	reg := NewRegistry()
	reg.Add(Books("ob1"))
	reg.Add(User("wallet1"))

	reg.Clear()

	if reg.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", reg.Len())
	}
	if got := reg.Requests(); got != nil {
		t.Errorf("Requests() = %v after Clear, want nil", got)
	}
}

func TestSubscriptionKeys(t *testing.T) {
	tests := []struct {
		sub  Subscription
		want string
	}{
		{Books("ob1"), "books:ob1"},
		{Trades("ob1"), "trades:ob1"},
		{User("w1"), "user:w1"},
		{PriceHistory("ob1", wire.Resolution1h, false), "price_history:ob1:1h"},
		{Market("mkt1"), "market:mkt1"},
		{Ticker("ob1"), "ticker:ob1"},
	}
	for _, tt := range tests {
		t.Run(strings.SplitN(tt.want, ":", 2)[0], func(t *testing.T) {
			if got := tt.sub.Key(); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}
