package recorder

import (
	"time"
)

// Config contains batching parameters for the recorder.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// BufferSize is the initial capacity of the ingest spool.
	BufferSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     1000,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// bookRow is a row for the book_updates table.
type bookRow struct {
	ReceivedAt  int64 // Microseconds
	OrderbookID string
	Seq         int64
	IsSnapshot  bool
	Side        string // "bid" or "ask"
	Price       int64  // Micros
	Size        int64  // Micros
}

// tradeRow is a row for the trades table.
type tradeRow struct {
	TradeID     string
	OrderbookID string
	Side        string // "buy" or "sell"
	Price       int64  // Micros
	Size        int64  // Micros
	ExecutedAt  int64  // Microseconds
	ReceivedAt  int64  // Microseconds
	Seq         int64
}

// Stats holds recorder counters.
type Stats struct {
	BookInserts    int64
	BookConflicts  int64
	TradeInserts   int64
	TradeConflicts int64
	Errors         int64
	Flushes        int64

	// Buffered is the number of events waiting in the spool.
	Buffered int
}
