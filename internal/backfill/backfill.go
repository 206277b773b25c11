package backfill

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meridianxyz/meridian-data/internal/api"
	"github.com/meridianxyz/meridian-data/internal/wire"
)

// Sink receives recovered trades as ordinary trade events. Ingest reports
// false once the sink has shut down.
type Sink interface {
	Ingest(ev wire.Event) bool
}

// Config holds backfill configuration.
type Config struct {
	Interval    time.Duration // Time between cycles (default: 15m)
	Concurrency int           // Max concurrent REST requests (default: 8)
	Timeout     time.Duration // Per-request timeout (default: 10s)
	PageLimit   int           // Trades fetched per orderbook per cycle (default: 500)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    15 * time.Minute,
		Concurrency: 8,
		Timeout:     10 * time.Second,
		PageLimit:   500,
	}
}

// Backfiller periodically fetches recent trade history via the REST API.
type Backfiller struct {
	cfg    Config
	client *api.Client
	books  []string
	sink   Sink
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Backfiller for the given orderbooks. Zero config fields take
// their defaults.
func New(cfg Config, client *api.Client, books []string, sink Sink, logger *slog.Logger) *Backfiller {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = def.PageLimit
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Backfiller{
		cfg:    cfg,
		client: client,
		books:  books,
		sink:   sink,
		logger: logger,
	}
}

// Start begins the backfill loop.
func (b *Backfiller) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.wg.Add(1)
	go b.run()

	b.logger.Info("trade backfill started",
		"interval", b.cfg.Interval,
		"orderbooks", len(b.books),
	)

	return nil
}

// Stop gracefully shuts down the backfiller.
func (b *Backfiller) Stop(ctx context.Context) error {
	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("trade backfill stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main backfill loop. The first cycle fires immediately so a
// restart recovers its outage window without waiting a full interval.
func (b *Backfiller) run() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	b.fillAll()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.fillAll()
		}
	}
}

// fillAll fetches trade history for all tracked orderbooks concurrently.
func (b *Backfiller) fillAll() {
	start := time.Now()

	if len(b.books) == 0 {
		b.logger.Debug("no orderbooks to backfill")
		return
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, b.cfg.Concurrency)
	var wg sync.WaitGroup
	var trades, errors atomic.Int64

	for _, book := range b.books {
		wg.Add(1)
		go func(orderbookID string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-b.ctx.Done():
				return
			}

			n, err := b.fillBook(orderbookID)
			if err != nil {
				b.logger.Warn("failed to backfill orderbook",
					"orderbook_id", orderbookID,
					"err", err,
				)
				errors.Add(1)
				return
			}

			trades.Add(int64(n))
		}(book)
	}

	wg.Wait()

	b.logger.Info("backfill cycle complete",
		"orderbooks", len(b.books),
		"trades", trades.Load(),
		"errors", errors.Load(),
		"duration", time.Since(start),
	)
}

// fillBook fetches one page of recent trades for a single orderbook and
// replays it into the sink, oldest first. Returns the number ingested.
func (b *Backfiller) fillBook(orderbookID string) (int, error) {
	ctx, cancel := context.WithTimeout(b.ctx, b.cfg.Timeout)
	defer cancel()

	resp, err := b.client.GetTradeHistory(ctx, orderbookID, 0, b.cfg.PageLimit)
	if err != nil {
		return 0, err
	}

	trades := resp.ToWireTrades()
	now := time.Now()

	for i := range trades {
		ok := b.sink.Ingest(wire.Event{
			Type:        wire.EventTrade,
			ReceivedAt:  now,
			OrderbookID: trades[i].OrderbookID,
			Trade:       &trades[i],
		})
		if !ok {
			// Sink shut down; the rest of this page is moot.
			return i, nil
		}
	}

	return len(trades), nil
}
