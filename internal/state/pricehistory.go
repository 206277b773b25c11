package state

import (
	"sort"

	"github.com/meridianxyz/meridian-data/internal/wire"
)

// maxCandles caps the retained history per orderbook/resolution pair. The
// oldest candle is evicted once an insert pushes past the cap.
const maxCandles = 1000

// PriceHistoryState mirrors the candle series for one orderbook at one
// resolution.
//
// The server delivers snapshots oldest-first; candles are stored newest-first
// so the latest interval is an O(1) access. The byTimestamp index maps candle
// open times to slice positions and is kept consistent on every insert.
type PriceHistoryState struct {
	orderbookID  string
	resolution   wire.Resolution
	candles      []wire.Candle
	byTimestamp  map[int64]int
	includeOHLCV bool

	lastTimestamp int64
	serverTime    int64
	hasSnapshot   bool
}

// NewPriceHistoryState returns an empty history for one orderbook/resolution.
func NewPriceHistoryState(orderbookID string, resolution wire.Resolution) *PriceHistoryState {
	return &PriceHistoryState{
		orderbookID: orderbookID,
		resolution:  resolution,
		byTimestamp: make(map[int64]int),
	}
}

// Apply folds a price-history event into the state. Heartbeats touch only the
// server clock; they never append or mutate candles.
func (s *PriceHistoryState) Apply(event *wire.PriceHistory) {
	switch event.EventType {
	case wire.PriceHistorySnapshot:
		s.applySnapshot(event)
	case wire.PriceHistoryUpdate:
		if candle, ok := event.ToCandle(); ok {
			s.applyCandle(candle)
		}
		if event.ServerTime > 0 {
			s.serverTime = event.ServerTime
		}
	case wire.PriceHistoryHeartbeat:
		if event.ServerTime > 0 {
			s.serverTime = event.ServerTime
		}
	}
}

func (s *PriceHistoryState) applySnapshot(event *wire.PriceHistory) {
	prices := event.Prices
	if len(prices) > maxCandles {
		// Keep the newest tail of an oversized snapshot.
		prices = prices[len(prices)-maxCandles:]
	}

	s.candles = make([]wire.Candle, len(prices))
	for i, candle := range prices {
		s.candles[len(prices)-1-i] = candle
	}

	s.byTimestamp = make(map[int64]int, len(s.candles))
	for i, candle := range s.candles {
		s.byTimestamp[candle.T] = i
	}

	if event.IncludeOHLCV != nil {
		s.includeOHLCV = *event.IncludeOHLCV
	}
	if event.LastTimestamp > 0 {
		s.lastTimestamp = event.LastTimestamp
	} else if len(s.candles) > 0 {
		s.lastTimestamp = s.candles[0].T
	}
	if event.ServerTime > 0 {
		s.serverTime = event.ServerTime
	}
	s.hasSnapshot = true
}

func (s *PriceHistoryState) applyCandle(candle wire.Candle) {
	if idx, ok := s.byTimestamp[candle.T]; ok {
		s.candles[idx] = candle
	} else {
		s.insertCandle(candle)
	}
	if candle.T > s.lastTimestamp {
		s.lastTimestamp = candle.T
	}
}

func (s *PriceHistoryState) insertCandle(candle wire.Candle) {
	// Candles are sorted newest-first; find the first strictly older entry.
	pos := sort.Search(len(s.candles), func(i int) bool {
		return s.candles[i].T < candle.T
	})

	s.candles = append(s.candles, wire.Candle{})
	copy(s.candles[pos+1:], s.candles[pos:])
	s.candles[pos] = candle

	for t, idx := range s.byTimestamp {
		if idx >= pos {
			s.byTimestamp[t] = idx + 1
		}
	}
	s.byTimestamp[candle.T] = pos

	if len(s.candles) > maxCandles {
		evicted := s.candles[len(s.candles)-1]
		s.candles = s.candles[:len(s.candles)-1]
		delete(s.byTimestamp, evicted.T)
	}
}

// OrderbookID returns the orderbook this history tracks.
func (s *PriceHistoryState) OrderbookID() string { return s.orderbookID }

// Resolution returns the candle interval this history tracks.
func (s *PriceHistoryState) Resolution() wire.Resolution { return s.resolution }

// IncludeOHLCV reports whether the subscription carries full OHLCV fields.
func (s *PriceHistoryState) IncludeOHLCV() bool { return s.includeOHLCV }

// HasSnapshot reports whether an initial snapshot has been applied.
func (s *PriceHistoryState) HasSnapshot() bool { return s.hasSnapshot }

// LastTimestamp returns the open time of the newest candle seen.
func (s *PriceHistoryState) LastTimestamp() int64 { return s.lastTimestamp }

// ServerTime returns the venue clock from the latest snapshot or heartbeat.
func (s *PriceHistoryState) ServerTime() int64 { return s.serverTime }

// Len returns the number of retained candles.
func (s *PriceHistoryState) Len() int { return len(s.candles) }

// Latest returns the newest candle.
func (s *PriceHistoryState) Latest() (wire.Candle, bool) {
	if len(s.candles) == 0 {
		return wire.Candle{}, false
	}
	return s.candles[0], true
}

// CandleAt returns the candle opening at timestamp t.
func (s *PriceHistoryState) CandleAt(t int64) (wire.Candle, bool) {
	idx, ok := s.byTimestamp[t]
	if !ok {
		return wire.Candle{}, false
	}
	return s.candles[idx], true
}

// Candles returns a copy of the history, newest first.
func (s *PriceHistoryState) Candles() []wire.Candle {
	out := make([]wire.Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

// Clear drops all candles and resets the snapshot flag. The server clock is
// kept; it is connection-scoped, not series-scoped.
func (s *PriceHistoryState) Clear() {
	s.candles = nil
	s.byTimestamp = make(map[int64]int)
	s.lastTimestamp = 0
	s.hasSnapshot = false
}

// Clone returns a deep copy that stays valid while the original keeps
// mutating. Candles are replaced wholesale on write, so sharing their price
// pointers is safe.
func (s *PriceHistoryState) Clone() *PriceHistoryState {
	clone := &PriceHistoryState{
		orderbookID:   s.orderbookID,
		resolution:    s.resolution,
		candles:       make([]wire.Candle, len(s.candles)),
		byTimestamp:   make(map[int64]int, len(s.byTimestamp)),
		includeOHLCV:  s.includeOHLCV,
		lastTimestamp: s.lastTimestamp,
		serverTime:    s.serverTime,
		hasSnapshot:   s.hasSnapshot,
	}
	copy(clone.candles, s.candles)
	for t, idx := range s.byTimestamp {
		clone.byTimestamp[t] = idx
	}
	return clone
}
