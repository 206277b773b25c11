package state

import (
	"testing"

	"github.com/meridianxyz/meridian-data/internal/wire"
)

func TestStoresBookLifecycle(t *testing.T) {
	stores := NewStores(0)

	if _, ok := stores.Book("ob1"); ok {
		t.Error("Book(ob1) ok = true before any update")
	}

	if err := stores.ApplyBook(bookSnapshot(0,
		[]wire.PriceLevel{level("bid", "0.50", "1")},
		nil,
	)); err != nil {
		t.Fatalf("ApplyBook(snapshot) error = %v", err)
	}

	book, ok := stores.Book("ob1")
	if !ok {
		t.Fatal("Book(ob1) ok = false after snapshot")
	}
	if book.BidCount() != 1 {
		t.Errorf("BidCount() = %d, want 1", book.BidCount())
	}

	// The returned copy is detached from subsequent writes.
	if err := stores.ApplyBook(bookDelta(1, []wire.PriceLevel{level("bid", "0.49", "2")}, nil)); err != nil {
		t.Fatalf("ApplyBook(delta) error = %v", err)
	}
	if book.BidCount() != 1 {
		t.Errorf("copy BidCount() = %d after later write, want 1", book.BidCount())
	}

	stores.DropBook("ob1")
	if _, ok := stores.Book("ob1"); ok {
		t.Error("Book(ob1) ok = true after DropBook")
	}
}

func TestStoresUserTracking(t *testing.T) {
	stores := NewStores(0)

	if _, applied := stores.ApplyUser(userSnapshot()); applied {
		t.Error("ApplyUser applied = true with no subscribed user")
	}

	stores.SetUser("wallet1")
	wallet, applied := stores.ApplyUser(userSnapshot())
	if !applied {
		t.Fatal("ApplyUser applied = false with subscribed user")
	}
	if wallet != "wallet1" {
		t.Errorf("ApplyUser wallet = %q, want wallet1", wallet)
	}

	user, ok := stores.User()
	if !ok {
		t.Fatal("User() ok = false")
	}
	if user.OrderCount() != 2 {
		t.Errorf("OrderCount() = %d, want 2", user.OrderCount())
	}

	stores.DropUser("other")
	if _, ok := stores.SubscribedUser(); !ok {
		t.Error("DropUser removed a non-matching wallet")
	}
	stores.DropUser("wallet1")
	if _, ok := stores.SubscribedUser(); ok {
		t.Error("SubscribedUser() ok = true after DropUser")
	}
}

func TestStoresHistoryCreateOnlyOnSnapshot(t *testing.T) {
	stores := NewStores(0)

	if stores.ApplyHistory("ob1", wire.Resolution1m, historyUpdate(60, "0.40")) {
		t.Error("ApplyHistory(update) = true for unknown series, want false")
	}

	if !stores.ApplyHistory("ob1", wire.Resolution1m, historySnapshot([]wire.Candle{candle(60, "0.40")})) {
		t.Error("ApplyHistory(snapshot) = false, want true")
	}
	if !stores.ApplyHistory("ob1", wire.Resolution1m, historyUpdate(120, "0.41")) {
		t.Error("ApplyHistory(update) = false for known series, want true")
	}

	history, ok := stores.History("ob1", wire.Resolution1m)
	if !ok {
		t.Fatal("History(ob1, 1m) ok = false")
	}
	if history.Len() != 2 {
		t.Errorf("Len() = %d, want 2", history.Len())
	}

	stores.HeartbeatHistories(&wire.PriceHistory{EventType: wire.PriceHistoryHeartbeat, ServerTime: 777})
	history, _ = stores.History("ob1", wire.Resolution1m)
	if history.ServerTime() != 777 {
		t.Errorf("ServerTime() = %d after heartbeat, want 777", history.ServerTime())
	}

	stores.DropHistory("ob1", wire.Resolution1m)
	if _, ok := stores.History("ob1", wire.Resolution1m); ok {
		t.Error("History ok = true after DropHistory")
	}
}

func TestStoresTrades(t *testing.T) {
	stores := NewStores(2)

	stores.PushTrade(trade("t1", "0.50"))
	stores.PushTrade(trade("t2", "0.51"))
	stores.PushTrade(trade("t3", "0.52"))

	recent := stores.RecentTrades("ob1", 10)
	if len(recent) != 2 {
		t.Fatalf("len(RecentTrades) = %d, want 2 (capped)", len(recent))
	}
	latest, ok := stores.LatestTrade("ob1")
	if !ok || latest.TradeID != "t3" {
		t.Errorf("LatestTrade = %v/%v, want t3/true", latest.TradeID, ok)
	}

	stores.ReplaceTrades("ob1", []wire.Trade{trade("b1", "0.49")})
	latest, _ = stores.LatestTrade("ob1")
	if latest.TradeID != "b1" {
		t.Errorf("LatestTrade after Replace = %q, want b1", latest.TradeID)
	}

	if got := stores.RecentTrades("unknown", 5); got != nil {
		t.Errorf("RecentTrades(unknown) = %v, want nil", got)
	}
}

func TestStoresClearAllKeepsInstances(t *testing.T) {
	stores := NewStores(0)
	stores.SetUser("wallet1")
	stores.ApplyUser(userSnapshot())
	stores.ApplyBook(bookSnapshot(0, []wire.PriceLevel{level("bid", "0.50", "1")}, nil))
	stores.ApplyHistory("ob1", wire.Resolution1m, historySnapshot([]wire.Candle{candle(60, "0.40")}))
	stores.PushTrade(trade("t1", "0.50"))

	stores.ClearAll()

	// Stores are emptied but stay registered, so replayed snapshots after a
	// reconnect land in the same instances.
	book, ok := stores.Book("ob1")
	if !ok {
		t.Fatal("Book(ob1) ok = false after ClearAll")
	}
	if book.HasSnapshot() || book.BidCount() != 0 {
		t.Errorf("book not cleared: hasSnapshot=%v bids=%d", book.HasSnapshot(), book.BidCount())
	}

	if wallet, ok := stores.SubscribedUser(); !ok || wallet != "wallet1" {
		t.Errorf("SubscribedUser() = %q/%v after ClearAll, want wallet1/true", wallet, ok)
	}
	user, _ := stores.User()
	if user.HasSnapshot() || user.OrderCount() != 0 {
		t.Errorf("user not cleared: hasSnapshot=%v orders=%d", user.HasSnapshot(), user.OrderCount())
	}

	// The replayed user snapshot applies into the kept instance.
	if _, applied := stores.ApplyUser(userSnapshot()); !applied {
		t.Error("ApplyUser applied = false after ClearAll")
	}

	history, ok := stores.History("ob1", wire.Resolution1m)
	if !ok {
		t.Fatal("History ok = false after ClearAll")
	}
	if history.HasSnapshot() || history.Len() != 0 {
		t.Errorf("history not cleared: hasSnapshot=%v len=%d", history.HasSnapshot(), history.Len())
	}
	// Non-snapshot updates still apply: the series is known, just empty.
	if !stores.ApplyHistory("ob1", wire.Resolution1m, historySnapshot([]wire.Candle{candle(120, "0.41")})) {
		t.Error("ApplyHistory(snapshot) = false after ClearAll")
	}

	if got := stores.RecentTrades("ob1", 5); len(got) != 0 {
		t.Errorf("RecentTrades after ClearAll = %v, want empty", got)
	}
}
