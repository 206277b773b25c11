package connection

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/meridianxyz/meridian-data/internal/router"
	"github.com/meridianxyz/meridian-data/internal/state"
	"github.com/meridianxyz/meridian-data/internal/subscription"
	"github.com/meridianxyz/meridian-data/internal/wire"
)

// commandKind discriminates the work items accepted by the run loop.
type commandKind int

const (
	cmdSend commandKind = iota
	cmdPing
	cmdSubscribe
	cmdUnsubscribe
	cmdDisconnect
)

// command is one unit of work for the run loop. The loop replies on errc
// at most once per command; errc is buffered so an abandoned caller never
// blocks the loop.
type command struct {
	kind commandKind
	req  wire.Request
	subs []subscription.Subscription
	errc chan error
}

// Manager owns one streaming connection to the venue: the lifecycle state
// machine, liveness probing, reconnection with backoff, and the single
// goroutine that reads the socket, applies frames to the entity stores,
// and serves API commands. Applications consume Events() and read
// reconciled state through the store accessors; all mutation happens on
// the run loop, so per-frame state changes are atomic.
//
// One connection serves at most one authenticated user channel at a time.
// Subscribing a second wallet fails with ErrUserSubscribed until the
// first is unsubscribed.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	stores   *state.Stores
	registry *subscription.Registry
	router   *router.Router
	limiter  *rate.Limiter

	cmds   chan command
	events chan wire.Event

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	state  State
	closed bool

	statsMu sync.Mutex
	stats   Stats
}

// New builds a Manager around cfg. The manager is inert until Connect.
func New(cfg Config, logger *slog.Logger) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.normalize()
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("conn_id", uuid.NewString())

	stores := state.NewStores(cfg.TradeLimit)
	m := &Manager{
		cfg:      cfg,
		logger:   logger,
		stores:   stores,
		registry: subscription.NewRegistry(),
		router: router.New(router.Config{
			OnGap:       cfg.OnGap,
			Resubscribe: cfg.AutoResubscribe,
		}, stores, logger),
		cmds:   make(chan command, cfg.CommandBuffer),
		events: make(chan wire.Event, cfg.EventBuffer),
		done:   make(chan struct{}),
		state:  StateDisconnected,
	}
	if cfg.SendRate > 0 {
		burst := cfg.SendBurst
		if burst <= 0 {
			burst = 1
		}
		m.limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), burst)
	}
	return m, nil
}

// Connect dials the venue and starts the background loop. It returns once
// the socket is up; a Connected event is also delivered on the stream.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrConnectionClosed
	}
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.state = StateConnecting
	m.mu.Unlock()

	cl := newWSClient(m.cfg, m.logger)
	if err := cl.Connect(ctx); err != nil {
		m.setState(StateDisconnected)
		return fmt.Errorf("connect: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cl.Close()
		return ErrConnectionClosed
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.state = StateConnected
	m.mu.Unlock()

	m.statsMu.Lock()
	m.stats.Connects++
	m.statsMu.Unlock()
	m.logger.Info("connected", "url", m.cfg.URL)
	m.emit(wire.Event{Type: wire.EventConnected, ReceivedAt: time.Now()})

	go m.run(cl)
	return nil
}

// Disconnect closes the connection gracefully and stops the background
// loop. The manager cannot be reused afterwards; auto-reconnect never
// fires for an explicit disconnect.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrConnectionClosed
	}
	m.closed = true
	started := m.cancel != nil
	if started {
		m.state = StateDisconnecting
	} else {
		m.state = StateDisconnected
	}
	m.mu.Unlock()

	if !started {
		close(m.events)
		close(m.done)
		return nil
	}

	// Wake the loop wherever it is: the command covers the serving path,
	// the cancel covers backoff sleeps and in-flight dials.
	m.cancel()
	c := command{kind: cmdDisconnect, errc: make(chan error, 1)}
	select {
	case m.cmds <- c:
	case <-m.done:
	}
	<-m.done
	return nil
}

// Events returns the event stream. The channel closes when the manager
// stops for good; a lagging consumer loses the oldest events first.
func (m *Manager) Events() <-chan wire.Event { return m.events }

// State reports the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Stats returns a snapshot of the connection counters.
func (m *Manager) Stats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

// RouterStats returns a snapshot of the frame-processing counters.
func (m *Manager) RouterStats() router.Stats { return m.router.Stats() }

// SubscribeBooks opens depth channels for the given orderbooks. The venue
// answers with one snapshot per book before streaming deltas.
func (m *Manager) SubscribeBooks(ctx context.Context, orderbookIDs ...string) error {
	subs := make([]subscription.Subscription, 0, len(orderbookIDs))
	for _, id := range orderbookIDs {
		subs = append(subs, subscription.Books(id))
	}
	return m.subscribe(ctx, subs)
}

// UnsubscribeBooks closes depth channels and drops the local books.
func (m *Manager) UnsubscribeBooks(ctx context.Context, orderbookIDs ...string) error {
	subs := make([]subscription.Subscription, 0, len(orderbookIDs))
	for _, id := range orderbookIDs {
		subs = append(subs, subscription.Books(id))
	}
	return m.unsubscribe(ctx, subs)
}

// SubscribeTrades opens execution feeds for the given orderbooks.
func (m *Manager) SubscribeTrades(ctx context.Context, orderbookIDs ...string) error {
	subs := make([]subscription.Subscription, 0, len(orderbookIDs))
	for _, id := range orderbookIDs {
		subs = append(subs, subscription.Trades(id))
	}
	return m.subscribe(ctx, subs)
}

// UnsubscribeTrades closes execution feeds and drops the retained trades.
func (m *Manager) UnsubscribeTrades(ctx context.Context, orderbookIDs ...string) error {
	subs := make([]subscription.Subscription, 0, len(orderbookIDs))
	for _, id := range orderbookIDs {
		subs = append(subs, subscription.Trades(id))
	}
	return m.unsubscribe(ctx, subs)
}

// SubscribeTicker opens top-of-book summaries for the given orderbooks.
func (m *Manager) SubscribeTicker(ctx context.Context, orderbookIDs ...string) error {
	subs := make([]subscription.Subscription, 0, len(orderbookIDs))
	for _, id := range orderbookIDs {
		subs = append(subs, subscription.Ticker(id))
	}
	return m.subscribe(ctx, subs)
}

// UnsubscribeTicker closes top-of-book summaries.
func (m *Manager) UnsubscribeTicker(ctx context.Context, orderbookIDs ...string) error {
	subs := make([]subscription.Subscription, 0, len(orderbookIDs))
	for _, id := range orderbookIDs {
		subs = append(subs, subscription.Ticker(id))
	}
	return m.unsubscribe(ctx, subs)
}

// SubscribeUser opens the authenticated user channel for wallet. The
// connection must carry an auth token for the venue to accept it.
func (m *Manager) SubscribeUser(ctx context.Context, wallet string) error {
	return m.subscribe(ctx, []subscription.Subscription{subscription.User(wallet)})
}

// UnsubscribeUser closes the user channel and drops the local user state.
func (m *Manager) UnsubscribeUser(ctx context.Context, wallet string) error {
	return m.unsubscribe(ctx, []subscription.Subscription{subscription.User(wallet)})
}

// SubscribePriceHistory opens the candle stream for one orderbook at a
// resolution.
func (m *Manager) SubscribePriceHistory(ctx context.Context, orderbookID string, resolution wire.Resolution, includeOHLCV bool) error {
	return m.subscribe(ctx, []subscription.Subscription{
		subscription.PriceHistory(orderbookID, resolution, includeOHLCV),
	})
}

// UnsubscribePriceHistory closes a candle stream and drops its history.
func (m *Manager) UnsubscribePriceHistory(ctx context.Context, orderbookID string, resolution wire.Resolution) error {
	return m.unsubscribe(ctx, []subscription.Subscription{
		subscription.PriceHistory(orderbookID, resolution, false),
	})
}

// SubscribeMarket opens lifecycle events for one market, or for every
// market when pubkey is "all".
func (m *Manager) SubscribeMarket(ctx context.Context, marketPubkey string) error {
	return m.subscribe(ctx, []subscription.Subscription{subscription.Market(marketPubkey)})
}

// UnsubscribeMarket closes a market lifecycle channel.
func (m *Manager) UnsubscribeMarket(ctx context.Context, marketPubkey string) error {
	return m.unsubscribe(ctx, []subscription.Subscription{subscription.Market(marketPubkey)})
}

// Ping sends one liveness probe outside the periodic schedule.
func (m *Manager) Ping(ctx context.Context) error {
	return m.dispatch(ctx, command{kind: cmdPing, errc: make(chan error, 1)})
}

// Send writes a raw request frame on the connection.
func (m *Manager) Send(ctx context.Context, req wire.Request) error {
	return m.dispatch(ctx, command{kind: cmdSend, req: req, errc: make(chan error, 1)})
}

// Book returns a copy of the reconciled depth for one orderbook.
func (m *Manager) Book(orderbookID string) (*state.OrderBook, bool) {
	return m.stores.Book(orderbookID)
}

// BookIDs lists the orderbooks with tracked depth.
func (m *Manager) BookIDs() []string { return m.stores.BookIDs() }

// User returns a copy of the tracked user state, when one is subscribed.
func (m *Manager) User() (*state.UserState, bool) { return m.stores.User() }

// SubscribedUser returns the wallet whose user channel is tracked.
func (m *Manager) SubscribedUser() (string, bool) { return m.stores.SubscribedUser() }

// History returns a copy of one candle series.
func (m *Manager) History(orderbookID string, resolution wire.Resolution) (*state.PriceHistoryState, bool) {
	return m.stores.History(orderbookID, resolution)
}

// RecentTrades returns up to n retained executions, newest first.
func (m *Manager) RecentTrades(orderbookID string, n int) []wire.Trade {
	return m.stores.RecentTrades(orderbookID, n)
}

// LatestTrade returns the most recent retained execution.
func (m *Manager) LatestTrade(orderbookID string) (wire.Trade, bool) {
	return m.stores.LatestTrade(orderbookID)
}

func (m *Manager) subscribe(ctx context.Context, subs []subscription.Subscription) error {
	if len(subs) == 0 {
		return nil
	}
	return m.dispatch(ctx, command{kind: cmdSubscribe, subs: subs, errc: make(chan error, 1)})
}

func (m *Manager) unsubscribe(ctx context.Context, subs []subscription.Subscription) error {
	if len(subs) == 0 {
		return nil
	}
	return m.dispatch(ctx, command{kind: cmdUnsubscribe, subs: subs, errc: make(chan error, 1)})
}

// dispatch hands a command to the run loop and waits for its reply.
// Commands issued while the manager is reconnecting queue up and take
// effect on the fresh connection.
func (m *Manager) dispatch(ctx context.Context, c command) error {
	m.mu.RLock()
	st, closed := m.state, m.closed
	m.mu.RUnlock()
	if closed {
		return ErrConnectionClosed
	}
	switch st {
	case StateConnected, StateReconnecting:
	default:
		return ErrNotConnected
	}

	select {
	case m.cmds <- c:
	case <-m.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.errc:
		return err
	case <-m.done:
		return ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the single background loop. It owns the transport and is the
// only writer of the entity stores and the subscription registry; it
// multiplexes inbound frames, API commands, and the ping schedule.
func (m *Manager) run(cl Client) {
	defer func() {
		m.mu.Lock()
		m.closed = true
		m.state = StateDisconnected
		m.mu.Unlock()
		close(m.events)
		close(m.done)
	}()

	ticker := time.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	awaitingPong := false
	lastPong := time.Now()

	for {
		select {
		case msg, ok := <-cl.Messages():
			if !ok {
				next, alive := m.transportDown(cl, drainError(cl))
				if !alive {
					return
				}
				cl = next
				awaitingPong = false
				lastPong = time.Now()
				continue
			}
			out := m.router.Dispatch(msg.Data, msg.ReceivedAt)
			if out.Pong {
				awaitingPong = false
				lastPong = time.Now()
			}
			for _, ev := range out.Events {
				m.emit(ev)
			}
			for _, req := range out.Requests {
				m.writeRequest(cl, req)
			}

		case c := <-m.cmds:
			if c.kind == cmdDisconnect {
				m.shutdown(cl)
				c.errc <- nil
				return
			}
			c.errc <- m.handleCommand(cl, c)

		case <-ticker.C:
			if awaitingPong && time.Since(lastPong) > m.cfg.PongTimeout {
				m.statsMu.Lock()
				m.stats.PongTimeouts++
				m.statsMu.Unlock()
				m.logger.Warn("pong timeout", "timeout", m.cfg.PongTimeout)
				m.emit(wire.Event{Type: wire.EventError, Err: ErrPingTimeout, ReceivedAt: time.Now()})

				next, alive := m.transportDown(cl, ErrPingTimeout)
				if !alive {
					return
				}
				cl = next
				awaitingPong = false
				lastPong = time.Now()
				continue
			}
			if err := m.writeRequest(cl, wire.Ping()); err == nil {
				awaitingPong = true
				m.statsMu.Lock()
				m.stats.PingsSent++
				m.statsMu.Unlock()
			}

		case <-m.ctx.Done():
			m.shutdown(cl)
			return
		}
	}
}

// transportDown runs the recovery path after the socket drops: close out
// the old transport, surface the disconnect, then reconnect when
// configured. It returns the replacement transport, or alive=false when
// the loop must stop.
func (m *Manager) transportDown(cl Client, cause error) (Client, bool) {
	cl.Close()

	reason := "connection closed"
	if cause != nil {
		reason = cause.Error()
	}
	if websocket.IsCloseError(cause, websocket.ClosePolicyViolation) {
		m.logger.Warn("rate limited by venue", "reason", reason)
		m.emit(wire.Event{Type: wire.EventRateLimited, Reason: reason, Err: ErrRateLimited, ReceivedAt: time.Now()})
	} else {
		m.logger.Warn("connection lost", "reason", reason)
	}
	m.emit(wire.Event{Type: wire.EventDisconnected, Reason: reason, ReceivedAt: time.Now()})

	if !m.cfg.AutoReconnect {
		m.logger.Info("auto-reconnect disabled, stopping")
		return nil, false
	}
	return m.reconnect()
}

// reconnect runs the backoff loop until a dial succeeds or the attempt
// budget is spent. On success every entity store is cleared, because
// sequence counters cannot be assumed continuous across a transport
// restart, and the registered subscriptions are replayed so the venue
// resends fresh snapshots.
func (m *Manager) reconnect() (Client, bool) {
	m.setState(StateReconnecting)

	for attempt := 1; attempt <= m.cfg.ReconnectAttempts; attempt++ {
		delay := backoffDelay(m.cfg.BaseDelay, m.cfg.MaxDelay, attempt)
		m.logger.Info("reconnecting",
			"attempt", attempt,
			"max_attempts", m.cfg.ReconnectAttempts,
			"delay", delay)
		m.emit(wire.Event{Type: wire.EventReconnecting, Attempt: attempt, ReceivedAt: time.Now()})

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-m.ctx.Done():
			timer.Stop()
			return nil, false
		}

		cl := newWSClient(m.cfg, m.logger)
		dialCtx, cancel := context.WithTimeout(m.ctx, m.cfg.ConnectTimeout)
		err := cl.Connect(dialCtx)
		cancel()
		if err != nil {
			m.logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			continue
		}

		m.stores.ClearAll()
		m.setState(StateConnected)
		m.statsMu.Lock()
		m.stats.Connects++
		m.stats.Reconnects++
		m.statsMu.Unlock()

		if m.cfg.AutoResubscribe {
			for _, req := range m.registry.Requests() {
				m.writeRequest(cl, req)
			}
		}

		m.logger.Info("reconnected", "attempt", attempt)
		m.emit(wire.Event{Type: wire.EventConnected, ReceivedAt: time.Now()})
		return cl, true
	}

	m.logger.Error("reconnect attempts exhausted", "attempts", m.cfg.ReconnectAttempts)
	m.emit(wire.Event{Type: wire.EventError, Err: ErrReconnectFailed, ReceivedAt: time.Now()})
	m.emit(wire.Event{Type: wire.EventDisconnected, Reason: "reconnect attempts exhausted", ReceivedAt: time.Now()})
	return nil, false
}

// shutdown closes the socket for an explicit disconnect.
func (m *Manager) shutdown(cl Client) {
	m.setState(StateDisconnecting)
	cl.Close()
	m.registry.Clear()
	m.logger.Info("disconnected")
	m.emit(wire.Event{Type: wire.EventDisconnected, Reason: "client disconnect", ReceivedAt: time.Now()})
}

// handleCommand serves one non-disconnect command on the loop goroutine.
func (m *Manager) handleCommand(cl Client, c command) error {
	switch c.kind {
	case cmdSend:
		return m.writeRequest(cl, c.req)
	case cmdPing:
		err := m.writeRequest(cl, wire.Ping())
		if err == nil {
			m.statsMu.Lock()
			m.stats.PingsSent++
			m.statsMu.Unlock()
		}
		return err
	case cmdSubscribe:
		return m.applySubscribe(cl, c.subs)
	case cmdUnsubscribe:
		return m.applyUnsubscribe(cl, c.subs)
	}
	return nil
}

// applySubscribe registers subs, primes the stores they feed, and sends
// the subscribe frames. All subs in one call belong to the same channel.
func (m *Manager) applySubscribe(cl Client, subs []subscription.Subscription) error {
	for _, sub := range subs {
		if sub.Kind != subscription.KindUser {
			continue
		}
		if wallet, ok := m.registry.UserWallet(); ok && wallet != sub.Wallet {
			return ErrUserSubscribed
		}
	}
	for _, sub := range subs {
		m.registry.Add(sub)
		switch sub.Kind {
		case subscription.KindBooks:
			m.stores.EnsureBook(sub.OrderbookID)
		case subscription.KindUser:
			m.stores.SetUser(sub.Wallet)
		}
	}
	return m.sendFrames(cl, subs, wire.Subscribe)
}

// applyUnsubscribe deregisters subs, drops the local state they fed, and
// sends the unsubscribe frames. Dropping keeps reads honest: a lapsed
// subscription must not serve stale depth.
func (m *Manager) applyUnsubscribe(cl Client, subs []subscription.Subscription) error {
	for _, sub := range subs {
		m.registry.Remove(sub)
		switch sub.Kind {
		case subscription.KindBooks:
			m.stores.DropBook(sub.OrderbookID)
		case subscription.KindTrades:
			m.stores.DropTrades(sub.OrderbookID)
		case subscription.KindUser:
			m.stores.DropUser(sub.Wallet)
		case subscription.KindPriceHistory:
			m.stores.DropHistory(sub.OrderbookID, sub.Resolution)
		}
	}
	return m.sendFrames(cl, subs, wire.Unsubscribe)
}

// sendFrames renders subs as wire params, batching ids where the protocol
// allows, and writes one frame per params through build.
func (m *Manager) sendFrames(cl Client, subs []subscription.Subscription, build func(wire.Params) wire.Request) error {
	for _, p := range groupParams(subs) {
		if err := m.writeRequest(cl, build(p)); err != nil {
			return err
		}
	}
	return nil
}

// groupParams folds id-carrying subscriptions of one channel into a single
// batched params; scalar channels produce one params each. Callers pass
// subs of a single kind.
func groupParams(subs []subscription.Subscription) []wire.Params {
	var (
		out  []wire.Params
		ids  []string
		kind subscription.Kind
	)
	for _, sub := range subs {
		switch sub.Kind {
		case subscription.KindBooks, subscription.KindTrades, subscription.KindTicker:
			kind = sub.Kind
			ids = append(ids, sub.OrderbookID)
		case subscription.KindUser:
			out = append(out, wire.UserParams(sub.Wallet))
		case subscription.KindPriceHistory:
			out = append(out, wire.PriceHistoryParams(sub.OrderbookID, sub.Resolution, sub.IncludeOHLCV))
		case subscription.KindMarket:
			out = append(out, wire.MarketParams(sub.MarketPubkey))
		}
	}
	switch kind {
	case subscription.KindBooks:
		out = append(out, wire.BookParams(ids))
	case subscription.KindTrades:
		out = append(out, wire.TradesParams(ids))
	case subscription.KindTicker:
		out = append(out, wire.TickerParams(ids))
	}
	return out
}

// writeRequest encodes and sends one frame, honoring the optional
// outbound rate limit.
func (m *Manager) writeRequest(cl Client, req wire.Request) error {
	data, err := req.Encode()
	if err != nil {
		return fmt.Errorf("encode %s request: %w", req.Type, err)
	}
	if m.limiter != nil {
		if err := m.limiter.Wait(m.ctx); err != nil {
			return err
		}
	}
	if err := cl.Send(data); err != nil {
		m.logger.Warn("send failed", "type", req.Type, "error", err)
		return err
	}
	m.statsMu.Lock()
	m.stats.FramesSent++
	m.statsMu.Unlock()
	return nil
}

// emit delivers ev without ever blocking the loop. When the consumer
// lags, the oldest pending event is dropped to make room; a blocked
// producer would stall ping handling and fake a dead connection.
func (m *Manager) emit(ev wire.Event) {
	select {
	case m.events <- ev:
		return
	default:
	}
	select {
	case dropped := <-m.events:
		m.statsMu.Lock()
		m.stats.EventsDropped++
		m.statsMu.Unlock()
		m.logger.Warn("event buffer full, dropping oldest event",
			"dropped", dropped.Type,
			"pending", ev.Type)
	default:
	}
	select {
	case m.events <- ev:
	default:
	}
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// drainError collects the transport's terminal read error, if any was
// recorded before its message channel closed.
func drainError(cl Client) error {
	select {
	case err := <-cl.Errors():
		return err
	default:
		return nil
	}
}

// backoffDelay draws a full-jitter reconnect delay: uniform between zero
// and the exponential step base·2^(attempt-1), capped at max.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	ceil := base << (attempt - 1)
	if ceil <= 0 || ceil > max {
		ceil = max
	}
	return time.Duration(rand.Int64N(int64(ceil) + 1))
}
