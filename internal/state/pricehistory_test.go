package state

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/meridianxyz/meridian-data/internal/wire"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func candle(t int64, close string) wire.Candle {
	return wire.Candle{T: t, C: decPtr(close)}
}

func historySnapshot(prices []wire.Candle) *wire.PriceHistory {
	include := true
	return &wire.PriceHistory{
		EventType:    wire.PriceHistorySnapshot,
		OrderbookID:  "ob1",
		Resolution:   wire.Resolution1m,
		IncludeOHLCV: &include,
		Prices:       prices,
		ServerTime:   9000,
	}
}

func historyUpdate(t int64, close string) *wire.PriceHistory {
	return &wire.PriceHistory{
		EventType:   wire.PriceHistoryUpdate,
		OrderbookID: "ob1",
		Resolution:  wire.Resolution1m,
		T:           t,
		C:           decPtr(close),
	}
}

func TestPriceHistorySnapshotReversesOrder(t *testing.T) {
	history := NewPriceHistoryState("ob1", wire.Resolution1m)

	// Server order is oldest first.
	history.Apply(historySnapshot([]wire.Candle{
		candle(100, "0.40"),
		candle(160, "0.42"),
		candle(220, "0.45"),
	}))

	if !history.HasSnapshot() {
		t.Error("HasSnapshot() = false, want true")
	}
	if history.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", history.Len())
	}

	latest, ok := history.Latest()
	if !ok {
		t.Fatal("Latest() ok = false")
	}
	if latest.T != 220 {
		t.Errorf("Latest().T = %d, want 220", latest.T)
	}

	candles := history.Candles()
	wantOrder := []int64{220, 160, 100}
	for i, want := range wantOrder {
		if candles[i].T != want {
			t.Errorf("Candles()[%d].T = %d, want %d", i, candles[i].T, want)
		}
	}

	if !history.IncludeOHLCV() {
		t.Error("IncludeOHLCV() = false, want true")
	}
	if history.LastTimestamp() != 220 {
		t.Errorf("LastTimestamp() = %d, want 220", history.LastTimestamp())
	}
	if history.ServerTime() != 9000 {
		t.Errorf("ServerTime() = %d, want 9000", history.ServerTime())
	}

	got, ok := history.CandleAt(160)
	if !ok {
		t.Fatal("CandleAt(160) ok = false")
	}
	if !got.C.Equal(decimal.RequireFromString("0.42")) {
		t.Errorf("CandleAt(160).C = %s, want 0.42", got.C)
	}
}

func TestPriceHistoryUpdateOverwritesInPlace(t *testing.T) {
	history := NewPriceHistoryState("ob1", wire.Resolution1m)
	history.Apply(historySnapshot([]wire.Candle{candle(100, "0.40"), candle(160, "0.42")}))

	history.Apply(historyUpdate(160, "0.47"))

	if history.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", history.Len())
	}
	got, _ := history.CandleAt(160)
	if !got.C.Equal(decimal.RequireFromString("0.47")) {
		t.Errorf("CandleAt(160).C = %s, want 0.47", got.C)
	}
	latest, _ := history.Latest()
	if latest.T != 160 {
		t.Errorf("Latest().T = %d, want 160", latest.T)
	}
}

func TestPriceHistoryUpdateInsertsSorted(t *testing.T) {
	history := NewPriceHistoryState("ob1", wire.Resolution1m)
	history.Apply(historySnapshot([]wire.Candle{
		candle(100, "0.40"),
		candle(220, "0.45"),
	}))

	// A backfilled interval lands between existing candles.
	history.Apply(historyUpdate(160, "0.42"))

	candles := history.Candles()
	wantOrder := []int64{220, 160, 100}
	if history.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", history.Len())
	}
	for i, want := range wantOrder {
		if candles[i].T != want {
			t.Errorf("Candles()[%d].T = %d, want %d", i, candles[i].T, want)
		}
	}

	// The index survives the shift.
	for _, ts := range wantOrder {
		if _, ok := history.CandleAt(ts); !ok {
			t.Errorf("CandleAt(%d) ok = false after insert", ts)
		}
	}

	// A newer interval lands at the front.
	history.Apply(historyUpdate(280, "0.50"))
	latest, _ := history.Latest()
	if latest.T != 280 {
		t.Errorf("Latest().T = %d, want 280", latest.T)
	}
	if history.LastTimestamp() != 280 {
		t.Errorf("LastTimestamp() = %d, want 280", history.LastTimestamp())
	}
}

func TestPriceHistoryEvictsOldestAtCap(t *testing.T) {
	history := NewPriceHistoryState("ob1", wire.Resolution1m)
	history.Apply(historySnapshot([]wire.Candle{candle(60, "0.40")}))

	for i := 1; i <= maxCandles; i++ {
		history.Apply(historyUpdate(int64(60*(i+1)), "0.40"))
	}

	if history.Len() != maxCandles {
		t.Fatalf("Len() = %d, want %d", history.Len(), maxCandles)
	}
	if _, ok := history.CandleAt(60); ok {
		t.Error("CandleAt(60) ok = true, want evicted")
	}
	latest, _ := history.Latest()
	if latest.T != int64(60*(maxCandles+1)) {
		t.Errorf("Latest().T = %d, want %d", latest.T, 60*(maxCandles+1))
	}
}

func TestPriceHistoryOversizedSnapshotKeepsNewest(t *testing.T) {
	prices := make([]wire.Candle, maxCandles+10)
	for i := range prices {
		prices[i] = candle(int64(60*(i+1)), "0.40")
	}

	history := NewPriceHistoryState("ob1", wire.Resolution1m)
	history.Apply(historySnapshot(prices))

	if history.Len() != maxCandles {
		t.Fatalf("Len() = %d, want %d", history.Len(), maxCandles)
	}
	// The oldest 10 are dropped.
	if _, ok := history.CandleAt(60 * 10); ok {
		t.Error("CandleAt(600) ok = true, want dropped")
	}
	if _, ok := history.CandleAt(60 * 11); !ok {
		t.Error("CandleAt(660) ok = false, want kept")
	}
}

func TestPriceHistoryHeartbeat(t *testing.T) {
	history := NewPriceHistoryState("ob1", wire.Resolution1m)
	history.Apply(historySnapshot([]wire.Candle{candle(100, "0.40")}))

	history.Apply(&wire.PriceHistory{
		EventType:  wire.PriceHistoryHeartbeat,
		ServerTime: 12345,
	})

	if history.ServerTime() != 12345 {
		t.Errorf("ServerTime() = %d, want 12345", history.ServerTime())
	}
	if history.Len() != 1 {
		t.Errorf("Len() = %d after heartbeat, want 1", history.Len())
	}
	if history.LastTimestamp() != 100 {
		t.Errorf("LastTimestamp() = %d after heartbeat, want 100", history.LastTimestamp())
	}
}

func TestPriceHistoryClear(t *testing.T) {
	history := NewPriceHistoryState("ob1", wire.Resolution1m)
	history.Apply(historySnapshot([]wire.Candle{candle(100, "0.40")}))

	history.Clear()

	if history.HasSnapshot() {
		t.Error("HasSnapshot() = true after Clear")
	}
	if history.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", history.Len())
	}
	if _, ok := history.Latest(); ok {
		t.Error("Latest() ok = true after Clear")
	}
	if history.ServerTime() != 9000 {
		t.Errorf("ServerTime() = %d after Clear, want 9000 (connection-scoped)", history.ServerTime())
	}
}
