package router

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/meridianxyz/meridian-data/internal/state"
	"github.com/meridianxyz/meridian-data/internal/wire"
)

// Outcome is what one inbound frame produced.
type Outcome struct {
	// Events to deliver to the application, in order.
	Events []wire.Event

	// Requests the connection must send back to the server, such as a
	// fresh subscribe after gap recovery.
	Requests []wire.Request

	// Pong reports a liveness reply; the connection clears its probe
	// state and nothing reaches the application.
	Pong bool
}

// Router decodes inbound frames, applies them to the entity stores, and
// reports the events and follow-up requests each frame produced. It runs on
// the connection manager goroutine; only the stats are read concurrently.
type Router struct {
	cfg    Config
	stores *state.Stores
	logger *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates a router over the given stores.
func New(cfg Config, stores *state.Stores, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OnGap == "" {
		cfg.OnGap = GapPolicyResubscribe
	}
	return &Router{
		cfg:    cfg,
		stores: stores,
		logger: logger,
	}
}

// Stats returns current dispatch statistics.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Dispatch handles one inbound frame.
func (r *Router) Dispatch(data []byte, receivedAt time.Time) Outcome {
	r.mu.Lock()
	r.stats.MessagesReceived++
	r.mu.Unlock()

	env, err := wire.ParseEnvelope(data)
	if err != nil {
		return r.parseFailure("envelope", err, receivedAt)
	}

	switch env.Type {
	case wire.TypeBookUpdate:
		return r.handleBookUpdate(env.Data, receivedAt)
	case wire.TypeTrades:
		return r.handleTrade(env.Data, receivedAt)
	case wire.TypeUser:
		return r.handleUserEvent(env.Data, receivedAt)
	case wire.TypePriceHistory:
		return r.handlePriceHistory(env.Data, receivedAt)
	case wire.TypeMarket:
		return r.handleMarketEvent(env.Data, receivedAt)
	case wire.TypeTicker:
		return r.handleTicker(env.Data, receivedAt)
	case wire.TypeAuth:
		return r.handleAuth(env.Data, receivedAt)
	case wire.TypeError:
		return r.handleServerError(env.Data, receivedAt)
	case wire.TypePong:
		return Outcome{Pong: true}
	default:
		r.logger.Warn("unknown channel tag", "type", env.Type)
		r.mu.Lock()
		r.stats.UnknownMessages++
		r.mu.Unlock()
		return Outcome{}
	}
}

func (r *Router) handleBookUpdate(data []byte, receivedAt time.Time) Outcome {
	var update wire.BookUpdate
	if err := json.Unmarshal(data, &update); err != nil {
		return r.parseFailure(wire.TypeBookUpdate, err, receivedAt)
	}

	if update.Resync {
		r.logger.Info("server requested resync",
			"orderbook_id", update.OrderbookID,
			"message", update.Message,
		)
		r.mu.Lock()
		r.stats.Resyncs++
		r.mu.Unlock()
		return r.resync(update.OrderbookID, update.Message, nil, r.cfg.Resubscribe, receivedAt)
	}

	if err := r.stores.ApplyBook(&update); err != nil {
		var gap *state.SequenceGapError
		if errors.As(err, &gap) {
			r.logger.Warn("sequence gap",
				"orderbook_id", update.OrderbookID,
				"expected", gap.Expected,
				"received", gap.Received,
			)
			r.mu.Lock()
			r.stats.SequenceGaps++
			r.mu.Unlock()
			resubscribe := r.cfg.Resubscribe && r.cfg.OnGap == GapPolicyResubscribe
			return r.resync(update.OrderbookID, "sequence gap", gap, resubscribe, receivedAt)
		}
		return Outcome{Events: []wire.Event{errorEvent(err, receivedAt)}}
	}

	return Outcome{Events: []wire.Event{{
		Type:        wire.EventBookUpdate,
		ReceivedAt:  receivedAt,
		OrderbookID: update.OrderbookID,
		IsSnapshot:  update.IsSnapshot,
		Book:        &update,
	}}}
}

// resync clears one book and surfaces a resync event, optionally requesting
// the fresh snapshot in the same breath.
func (r *Router) resync(orderbookID, reason string, cause error, resubscribe bool, receivedAt time.Time) Outcome {
	r.stores.ClearBook(orderbookID)

	out := Outcome{Events: []wire.Event{{
		Type:        wire.EventResyncRequired,
		ReceivedAt:  receivedAt,
		OrderbookID: orderbookID,
		Reason:      reason,
		Err:         cause,
	}}}
	if resubscribe {
		out.Requests = append(out.Requests, wire.Subscribe(wire.BookParams([]string{orderbookID})))
	}
	return out
}

func (r *Router) handleTrade(data []byte, receivedAt time.Time) Outcome {
	var trade wire.Trade
	if err := json.Unmarshal(data, &trade); err != nil {
		return r.parseFailure(wire.TypeTrades, err, receivedAt)
	}

	r.stores.PushTrade(trade)

	return Outcome{Events: []wire.Event{{
		Type:        wire.EventTrade,
		ReceivedAt:  receivedAt,
		OrderbookID: trade.OrderbookID,
		Trade:       &trade,
	}}}
}

func (r *Router) handleUserEvent(data []byte, receivedAt time.Time) Outcome {
	var event wire.UserEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return r.parseFailure(wire.TypeUser, err, receivedAt)
	}

	wallet, applied := r.stores.ApplyUser(&event)
	if !applied {
		r.logger.Warn("user event with no active user subscription",
			"event_type", event.EventType,
		)
		wallet = event.Wallet
	}

	events := []wire.Event{{
		Type:          wire.EventUserUpdate,
		ReceivedAt:    receivedAt,
		UserEventType: event.EventType,
		Wallet:        wallet,
		OrderbookID:   event.OrderbookID,
	}}
	if event.EventType == wire.UserEventNonce {
		events = append(events, wire.Event{
			Type:       wire.EventNonceUpdate,
			ReceivedAt: receivedAt,
			Wallet:     wallet,
			NewNonce:   event.NewNonce,
		})
	}
	return Outcome{Events: events}
}

func (r *Router) handlePriceHistory(data []byte, receivedAt time.Time) Outcome {
	var event wire.PriceHistory
	if err := json.Unmarshal(data, &event); err != nil {
		return r.parseFailure(wire.TypePriceHistory, err, receivedAt)
	}

	// Heartbeats carry no orderbook id and touch every series.
	if event.EventType == wire.PriceHistoryHeartbeat {
		r.stores.HeartbeatHistories(&event)
		return Outcome{}
	}

	if event.OrderbookID == "" {
		r.logger.Warn("price history event missing orderbook_id",
			"event_type", event.EventType,
		)
		return Outcome{}
	}

	resolution := event.Resolution
	if resolution == "" {
		resolution = wire.Resolution1m
	}

	if !r.stores.ApplyHistory(event.OrderbookID, resolution, &event) {
		r.logger.Warn("price history event for unknown series dropped",
			"event_type", event.EventType,
			"orderbook_id", event.OrderbookID,
			"resolution", resolution,
		)
	}

	return Outcome{Events: []wire.Event{{
		Type:             wire.EventPriceHistory,
		ReceivedAt:       receivedAt,
		OrderbookID:      event.OrderbookID,
		Resolution:       resolution,
		HistoryEventType: event.EventType,
	}}}
}

func (r *Router) handleMarketEvent(data []byte, receivedAt time.Time) Outcome {
	var event wire.MarketEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return r.parseFailure(wire.TypeMarket, err, receivedAt)
	}

	return Outcome{Events: []wire.Event{{
		Type:        wire.EventMarket,
		ReceivedAt:  receivedAt,
		OrderbookID: event.OrderbookID,
		Market:      &event,
	}}}
}

func (r *Router) handleTicker(data []byte, receivedAt time.Time) Outcome {
	var ticker wire.TickerUpdate
	if err := json.Unmarshal(data, &ticker); err != nil {
		return r.parseFailure(wire.TypeTicker, err, receivedAt)
	}

	return Outcome{Events: []wire.Event{{
		Type:        wire.EventTicker,
		ReceivedAt:  receivedAt,
		OrderbookID: ticker.OrderbookID,
		Ticker:      &ticker,
	}}}
}

func (r *Router) handleAuth(data []byte, receivedAt time.Time) Outcome {
	var status wire.AuthStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return r.parseFailure(wire.TypeAuth, err, receivedAt)
	}

	r.logger.Info("auth status",
		"status", status.Status,
		"wallet", status.Wallet,
	)

	return Outcome{Events: []wire.Event{{
		Type:       wire.EventAuth,
		ReceivedAt: receivedAt,
		Wallet:     status.Wallet,
		Auth:       &status,
	}}}
}

func (r *Router) handleServerError(data []byte, receivedAt time.Time) Outcome {
	var payload wire.ErrorData
	if err := json.Unmarshal(data, &payload); err != nil {
		return r.parseFailure(wire.TypeError, err, receivedAt)
	}

	r.logger.Error("server error",
		"code", payload.Code,
		"error", payload.Error,
		"orderbook_id", payload.OrderbookID,
	)

	return Outcome{Events: []wire.Event{{
		Type:        wire.EventError,
		ReceivedAt:  receivedAt,
		OrderbookID: payload.OrderbookID,
		Err: &wire.ServerError{
			Code:        payload.Code,
			Message:     payload.Error,
			OrderbookID: payload.OrderbookID,
		},
	}}}
}

func (r *Router) parseFailure(channel string, err error, receivedAt time.Time) Outcome {
	r.logger.Warn("failed to parse frame",
		"channel", channel,
		"error", err,
	)
	r.mu.Lock()
	r.stats.ParseErrors++
	r.mu.Unlock()
	return Outcome{Events: []wire.Event{errorEvent(&wire.ParseError{Channel: channel, Err: err}, receivedAt)}}
}

func errorEvent(err error, receivedAt time.Time) wire.Event {
	return wire.Event{
		Type:       wire.EventError,
		ReceivedAt: receivedAt,
		Err:        err,
	}
}
