package recorder

import (
	"context"
	"testing"
	"time"

	"github.com/meridianxyz/meridian-data/internal/wire"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BatchSize != 1000 {
		t.Errorf("BatchSize = %d, want 1000", cfg.BatchSize)
	}
	if cfg.FlushInterval != time.Second {
		t.Errorf("FlushInterval = %v, want 1s", cfg.FlushInterval)
	}
	if cfg.BufferSize != 10000 {
		t.Errorf("BufferSize = %d, want 10000", cfg.BufferSize)
	}
}

func TestRecorderLifecycle(t *testing.T) {
	cfg := Config{
		BatchSize:     10,
		FlushInterval: 100 * time.Millisecond,
		BufferSize:    10,
	}

	// No database: nothing is ingested, so no flush ever reaches the pool.
	// This tests the goroutine lifecycle.
	r := New(cfg, nil, nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := r.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestRecorderStopWithoutStart(t *testing.T) {
	r := New(DefaultConfig(), nil, nil)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := r.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}

	if r.Ingest(wire.Event{Type: wire.EventTrade}) {
		t.Error("Ingest should return false after Stop")
	}
}

func TestRecorderHandleEventBook(t *testing.T) {
	cfg := Config{
		BatchSize:     100, // large batch so no auto-flush
		FlushInterval: time.Hour,
		BufferSize:    10,
	}
	r := New(cfg, nil, nil)

	ev := wire.Event{
		Type:       wire.EventBookUpdate,
		ReceivedAt: time.Now(),
		Book: &wire.BookUpdate{
			OrderbookID: "ob1",
			Seq:         1,
			Bids:        []wire.PriceLevel{{Price: d("0.5"), Size: d("10")}},
			Asks:        []wire.PriceLevel{{Price: d("0.6"), Size: d("5")}},
		},
	}

	r.handleEvent(ev)

	r.batchMu.Lock()
	bookLen := len(r.bookBatch)
	tradeLen := len(r.tradeBatch)
	r.batchMu.Unlock()

	if bookLen != 2 {
		t.Errorf("book batch length = %d, want 2", bookLen)
	}
	if tradeLen != 0 {
		t.Errorf("trade batch length = %d, want 0", tradeLen)
	}
}

func TestRecorderHandleEventTrade(t *testing.T) {
	cfg := Config{
		BatchSize:     100,
		FlushInterval: time.Hour,
		BufferSize:    10,
	}
	r := New(cfg, nil, nil)

	ev := wire.Event{
		Type:       wire.EventTrade,
		ReceivedAt: time.Now(),
		Trade:      &wire.Trade{TradeID: "t1", Price: d("0.5"), Size: d("1")},
	}

	r.handleEvent(ev)

	r.batchMu.Lock()
	tradeLen := len(r.tradeBatch)
	r.batchMu.Unlock()

	if tradeLen != 1 {
		t.Errorf("trade batch length = %d, want 1", tradeLen)
	}
}

func TestRecorderSkipsNonDataEvents(t *testing.T) {
	cfg := Config{
		BatchSize:     100,
		FlushInterval: time.Hour,
		BufferSize:    10,
	}
	r := New(cfg, nil, nil)

	events := []wire.Event{
		{Type: wire.EventConnected},
		{Type: wire.EventReconnecting, Attempt: 2},
		{Type: wire.EventResyncRequired, OrderbookID: "ob1"},
		{Type: wire.EventUserUpdate},
		{Type: wire.EventError},
		{Type: wire.EventBookUpdate}, // no payload
		{Type: wire.EventTrade},      // no payload
	}
	for _, ev := range events {
		r.handleEvent(ev)
	}

	r.batchMu.Lock()
	bookLen := len(r.bookBatch)
	tradeLen := len(r.tradeBatch)
	r.batchMu.Unlock()

	if bookLen != 0 || tradeLen != 0 {
		t.Errorf("batch lengths = %d book, %d trade; want 0, 0", bookLen, tradeLen)
	}
}

func TestRecorderConsumesIngested(t *testing.T) {
	cfg := Config{
		BatchSize:     100,
		FlushInterval: time.Hour,
		BufferSize:    10,
	}
	r := New(cfg, nil, nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		ev := wire.Event{
			Type:       wire.EventTrade,
			ReceivedAt: time.Now(),
			Trade:      &wire.Trade{TradeID: "t1", Price: d("0.5"), Size: d("1")},
		}
		if !r.Ingest(ev) {
			t.Fatal("Ingest returned false while running")
		}
	}

	deadline := time.Now().Add(time.Second)
	for {
		r.batchMu.Lock()
		n := len(r.tradeBatch)
		r.batchMu.Unlock()
		if n == 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("trade batch length = %d, want 3", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := r.Stats().Buffered; got != 0 {
		t.Errorf("Stats().Buffered = %d, want 0 after drain", got)
	}

	// Reap workers without flushing; there is no database behind this test.
	r.spool.Close()
	<-r.consumeDone
	r.cancel()
	r.flushTicker.Stop()
	r.wg.Wait()
}

func TestRecorderStats(t *testing.T) {
	r := New(DefaultConfig(), nil, nil)

	stats := r.Stats()

	if stats.BookInserts != 0 || stats.TradeInserts != 0 {
		t.Errorf("initial inserts = %d book, %d trade; want 0, 0", stats.BookInserts, stats.TradeInserts)
	}
	if stats.Errors != 0 {
		t.Errorf("initial Errors = %d, want 0", stats.Errors)
	}
	if stats.Flushes != 0 {
		t.Errorf("initial Flushes = %d, want 0", stats.Flushes)
	}

	r.Ingest(wire.Event{Type: wire.EventConnected})
	r.Ingest(wire.Event{Type: wire.EventConnected})

	if got := r.Stats().Buffered; got != 2 {
		t.Errorf("Stats().Buffered = %d, want 2 before Start", got)
	}
}
