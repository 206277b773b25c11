package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridianxyz/meridian-data/internal/wire"
)

// Recorder consumes stream events and writes book updates and trades to
// TimescaleDB in batches.
type Recorder struct {
	cfg    Config
	logger *slog.Logger

	// Input from the stream client, decoupled by the spool.
	spool *spool[wire.Event]

	// Database
	db *pgxpool.Pool

	// Batching (separate batches per table)
	bookBatch   []bookRow
	tradeBatch  []tradeRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	consumeDone chan struct{}

	// Metrics
	metrics Stats
}

// New creates a Recorder writing to the given pool.
func New(cfg Config, db *pgxpool.Pool, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:        cfg,
		db:         db,
		logger:     logger,
		spool:      newSpool[wire.Event](cfg.BufferSize),
		bookBatch:  make([]bookRow, 0, cfg.BatchSize),
		tradeBatch: make([]tradeRow, 0, cfg.BatchSize),
	}
}

// Ingest queues one event for archival. It never blocks; the spool grows
// instead. Returns false once the recorder is stopping.
func (r *Recorder) Ingest(ev wire.Event) bool {
	return r.spool.Send(ev)
}

// Start begins consuming queued events and writing to the database.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)
	r.consumeDone = make(chan struct{})

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop drains the spool, shuts the workers down, and flushes whatever is
// still batched. The context bounds how long draining may take.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping recorder")

	// Stop intake first so queued events drain before the workers exit.
	r.spool.Close()

	if r.consumeDone != nil {
		select {
		case <-r.consumeDone:
		case <-ctx.Done():
			r.logger.Warn("recorder drain timed out", "buffered", r.spool.Len())
		}
	}

	if r.cancel != nil {
		r.cancel()
	}
	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("recorder stop timed out")
	}

	// Final flush runs on the caller's context; the run context is gone.
	r.flush(ctx)

	r.logger.Info("recorder stopped")
	return nil
}

// Stats returns current metrics.
func (r *Recorder) Stats() Stats {
	r.batchMu.Lock()
	s := r.metrics
	r.batchMu.Unlock()
	s.Buffered = r.spool.Len()
	return s
}

// consumeLoop drains the spool and accumulates batches. It exits once the
// spool is closed and empty.
func (r *Recorder) consumeLoop() {
	defer r.wg.Done()
	defer close(r.consumeDone)

	for {
		ev, ok := r.spool.Receive()
		if !ok {
			return
		}
		r.handleEvent(ev)
	}
}

// flushLoop periodically flushes the batches.
func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flush(r.ctx)
		}
	}
}

// handleEvent batches data events. Lifecycle, user, and error events are
// not archived.
func (r *Recorder) handleEvent(ev wire.Event) {
	switch ev.Type {
	case wire.EventBookUpdate:
		if ev.Book == nil {
			return
		}
		rows := bookRows(ev)
		r.batchMu.Lock()
		r.bookBatch = append(r.bookBatch, rows...)
		shouldFlush := len(r.bookBatch) >= r.cfg.BatchSize
		r.batchMu.Unlock()
		if shouldFlush {
			r.flush(r.ctx)
		}
	case wire.EventTrade:
		if ev.Trade == nil {
			return
		}
		row := tradeRowFrom(ev)
		r.batchMu.Lock()
		r.tradeBatch = append(r.tradeBatch, row)
		shouldFlush := len(r.tradeBatch) >= r.cfg.BatchSize
		r.batchMu.Unlock()
		if shouldFlush {
			r.flush(r.ctx)
		}
	}
}

// flush writes both batches to the database.
func (r *Recorder) flush(ctx context.Context) {
	r.batchMu.Lock()
	bookBatch := r.bookBatch
	tradeBatch := r.tradeBatch
	r.bookBatch = make([]bookRow, 0, r.cfg.BatchSize)
	r.tradeBatch = make([]tradeRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	if len(bookBatch) == 0 && len(tradeBatch) == 0 {
		return
	}

	start := time.Now()

	if len(bookBatch) > 0 {
		conflicts, err := r.insertBookRows(ctx, bookBatch)
		if err != nil {
			r.logger.Error("book batch insert failed", "error", err, "count", len(bookBatch))
			r.batchMu.Lock()
			r.metrics.Errors++
			r.batchMu.Unlock()
		} else {
			r.batchMu.Lock()
			r.metrics.BookInserts += int64(len(bookBatch) - conflicts)
			r.metrics.BookConflicts += int64(conflicts)
			r.batchMu.Unlock()
		}
	}

	if len(tradeBatch) > 0 {
		conflicts, err := r.insertTradeRows(ctx, tradeBatch)
		if err != nil {
			r.logger.Error("trade batch insert failed", "error", err, "count", len(tradeBatch))
			r.batchMu.Lock()
			r.metrics.Errors++
			r.batchMu.Unlock()
		} else {
			r.batchMu.Lock()
			r.metrics.TradeInserts += int64(len(tradeBatch) - conflicts)
			r.metrics.TradeConflicts += int64(conflicts)
			r.batchMu.Unlock()
		}
	}

	r.batchMu.Lock()
	r.metrics.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed batches",
		"book_rows", len(bookBatch),
		"trade_rows", len(tradeBatch),
		"duration", time.Since(start),
	)
}

// insertBookRows inserts book rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (r *Recorder) insertBookRows(ctx context.Context, rows []bookRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO book_updates (received_at, orderbook_id, seq, is_snapshot, side, price, size)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (orderbook_id, seq, side, price) DO NOTHING
		`, row.ReceivedAt, row.OrderbookID, row.Seq, row.IsSnapshot, row.Side, row.Price, row.Size)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}

// insertTradeRows inserts trade rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (r *Recorder) insertTradeRows(ctx context.Context, rows []tradeRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO trades (trade_id, orderbook_id, side, price, size, executed_at, received_at, seq)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (trade_id) DO NOTHING
		`, row.TradeID, row.OrderbookID, row.Side, row.Price, row.Size, row.ExecutedAt, row.ReceivedAt, row.Seq)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
