// streamwatch connects to the Meridian stream and prints parsed events to
// the console.
// Usage: go run ./cmd/streamwatch --config configs/streamwatch.local.yaml
// Start from configs/streamwatch.example.yaml.
//
// An optional .env file supplies variables referenced by the config, such
// as MERIDIAN_AUTH_TOKEN. Anonymous read-only sessions need none.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/meridianxyz/meridian-data/internal/api"
	"github.com/meridianxyz/meridian-data/internal/config"
	"github.com/meridianxyz/meridian-data/internal/connection"
	"github.com/meridianxyz/meridian-data/internal/router"
	"github.com/meridianxyz/meridian-data/internal/version"
	"github.com/meridianxyz/meridian-data/internal/wire"
)

func main() {
	configPath := flag.String("config", "configs/streamwatch.local.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full event payload JSON")
	history := flag.Int("history", 20, "recent trades to print per orderbook at startup (0 disables)")
	flag.Parse()

	// .env fills variables the config references; real env always wins.
	_ = godotenv.Load()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting streamwatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if *history > 0 {
		primeFromREST(ctx, cfg, *history, logger)
	}

	mgr, err := connection.New(managerConfig(cfg), logger)
	if err != nil {
		logger.Error("failed to create connection manager", "error", err)
		os.Exit(1)
	}

	logger.Info("connecting", "url", cfg.Venue.WSURL)
	if err := mgr.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	if err := subscribeAll(ctx, mgr, cfg); err != nil {
		logger.Error("failed to subscribe", "error", err)
		mgr.Disconnect()
		os.Exit(1)
	}

	printerDone := make(chan struct{})
	go func() {
		defer close(printerDone)
		printEvents(mgr.Events(), *verbose)
	}()

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				connStats := mgr.Stats()
				routerStats := mgr.RouterStats()
				logger.Info("stats",
					"state", mgr.State(),
					"connects", connStats.Connects,
					"reconnects", connStats.Reconnects,
					"frames_sent", connStats.FramesSent,
					"events_dropped", connStats.EventsDropped,
					"frames_received", routerStats.MessagesReceived,
					"parse_errors", routerStats.ParseErrors,
					"seq_gaps", routerStats.SequenceGaps,
					"resyncs", routerStats.Resyncs,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// The event stream ending on its own means reconnects are exhausted.
	select {
	case <-ctx.Done():
	case <-printerDone:
		logger.Error("event stream ended")
	}

	logger.Info("shutting down...")
	if err := mgr.Disconnect(); err != nil && err != connection.ErrConnectionClosed {
		logger.Warn("disconnect", "error", err)
	}
	<-printerDone

	logger.Info("streamwatch stopped")
}

// managerConfig maps the YAML venue and stream blocks onto the connection
// manager configuration.
func managerConfig(cfg *config.Config) connection.Config {
	cc := connection.DefaultConfig()
	cc.URL = cfg.Venue.WSURL
	cc.AuthToken = cfg.Venue.AuthToken
	cc.ReconnectAttempts = cfg.Stream.ReconnectAttempts
	cc.BaseDelay = cfg.Stream.BaseDelay
	cc.MaxDelay = cfg.Stream.MaxDelay
	cc.PingInterval = cfg.Stream.PingInterval
	cc.PongTimeout = cfg.Stream.PongTimeout
	cc.ConnectTimeout = cfg.Stream.ConnectTimeout
	cc.WriteTimeout = cfg.Stream.WriteTimeout
	cc.AutoReconnect = *cfg.Stream.AutoReconnect
	cc.AutoResubscribe = *cfg.Stream.AutoResubscribe
	cc.OnGap = router.GapPolicy(cfg.Stream.OnGap)
	cc.EventBuffer = cfg.Stream.EventBuffer
	cc.CommandBuffer = cfg.Stream.CommandBuffer
	cc.TradeLimit = cfg.Stream.TradeLimit
	cc.SendRate = cfg.Stream.SendRate
	cc.SendBurst = cfg.Stream.SendBurst
	return cc
}

// primeFromREST seeds the console from the request/response API before the
// stream attaches: current depth for each subscribed book and the most
// recent trades for each subscribed tape, oldest first so the live feed
// continues where the history leaves off.
func primeFromREST(ctx context.Context, cfg *config.Config, history int, logger *slog.Logger) {
	rest := api.NewClient(cfg.Venue.RestURL, cfg.Venue.AuthToken,
		api.WithTimeout(cfg.Venue.Timeout),
		api.WithLogger(logger),
	)

	if serverTime, err := rest.GetServerTime(ctx); err != nil {
		logger.Warn("venue time unavailable", "error", err)
	} else {
		logger.Info("venue clock",
			"server_time", serverTime.UTC().Format(time.RFC3339),
			"offset", time.Since(serverTime).Round(time.Millisecond),
		)
	}

	for _, book := range cfg.Subscriptions.Books {
		ob, err := rest.GetOrderbook(ctx, book, 0)
		if err != nil {
			logger.Warn("bootstrap depth unavailable", "orderbook_id", book, "error", err)
			continue
		}
		fmt.Printf("[BOOT] orderbook=%s bids=%d asks=%d best_bid=%s best_ask=%s\n",
			ob.OrderbookID, len(ob.Bids), len(ob.Asks),
			scaledStr(ob.BestBid), scaledStr(ob.BestAsk))
	}

	for _, book := range cfg.Subscriptions.Trades {
		resp, err := rest.GetTradeHistory(ctx, book, 0, history)
		if err != nil {
			logger.Warn("trade history unavailable", "orderbook_id", book, "error", err)
			continue
		}
		for _, trade := range resp.ToWireTrades() {
			fmt.Printf("[HIST] orderbook=%s id=%s side=%s price=%s size=%s time=%s\n",
				trade.OrderbookID, trade.TradeID, trade.Side, trade.Price, trade.Size, trade.Timestamp)
		}
	}
}

// scaledStr formats an optional 1e6-scaled price, "-" when absent.
func scaledStr(scaled *int64) string {
	if scaled == nil {
		return "-"
	}
	return api.ScaledToDecimal(*scaled).String()
}

// subscribeAll issues the subscriptions listed in the config.
func subscribeAll(ctx context.Context, mgr *connection.Manager, cfg *config.Config) error {
	subs := cfg.Subscriptions
	if len(subs.Books) > 0 {
		if err := mgr.SubscribeBooks(ctx, subs.Books...); err != nil {
			return fmt.Errorf("subscribe books: %w", err)
		}
	}
	if len(subs.Trades) > 0 {
		if err := mgr.SubscribeTrades(ctx, subs.Trades...); err != nil {
			return fmt.Errorf("subscribe trades: %w", err)
		}
	}
	if len(subs.Ticker) > 0 {
		if err := mgr.SubscribeTicker(ctx, subs.Ticker...); err != nil {
			return fmt.Errorf("subscribe ticker: %w", err)
		}
	}
	for _, pubkey := range subs.Markets {
		if err := mgr.SubscribeMarket(ctx, pubkey); err != nil {
			return fmt.Errorf("subscribe market %s: %w", pubkey, err)
		}
	}
	for _, ph := range subs.PriceHistory {
		if err := mgr.SubscribePriceHistory(ctx, ph.OrderbookID, wire.Resolution(ph.Resolution), ph.IncludeOHLCV); err != nil {
			return fmt.Errorf("subscribe price history %s/%s: %w", ph.OrderbookID, ph.Resolution, err)
		}
	}
	if subs.User != "" {
		if err := mgr.SubscribeUser(ctx, subs.User); err != nil {
			return fmt.Errorf("subscribe user: %w", err)
		}
	}
	return nil
}

func printEvents(events <-chan wire.Event, verbose bool) {
	for ev := range events {
		switch ev.Type {
		case wire.EventConnected:
			fmt.Println("[CONN] connected")
		case wire.EventDisconnected:
			fmt.Printf("[CONN] disconnected reason=%q\n", ev.Reason)
		case wire.EventReconnecting:
			fmt.Printf("[CONN] reconnecting attempt=%d\n", ev.Attempt)
		case wire.EventRateLimited:
			fmt.Println("[CONN] rate limited by venue")
		case wire.EventBookUpdate:
			printBook(ev, verbose)
		case wire.EventTrade:
			printTrade(ev, verbose)
		case wire.EventTicker:
			printTicker(ev, verbose)
		case wire.EventPriceHistory:
			fmt.Printf("[CANDLES] orderbook=%s resolution=%s event=%s\n",
				ev.OrderbookID, ev.Resolution, ev.HistoryEventType)
		case wire.EventMarket:
			if m := ev.Market; m != nil {
				fmt.Printf("[MARKET] event=%s market=%s orderbook=%s\n",
					m.EventType, m.MarketPubkey, m.OrderbookID)
			}
		case wire.EventUserUpdate:
			fmt.Printf("[USER] event=%s wallet=%s orderbook=%s\n",
				ev.UserEventType, ev.Wallet, ev.OrderbookID)
		case wire.EventNonceUpdate:
			fmt.Printf("[USER] nonce=%d wallet=%s\n", ev.NewNonce, ev.Wallet)
		case wire.EventAuth:
			if a := ev.Auth; a != nil {
				fmt.Printf("[AUTH] status=%s wallet=%s\n", a.Status, a.Wallet)
			}
		case wire.EventResyncRequired:
			fmt.Printf("[RESYNC] orderbook=%s reason=%q\n", ev.OrderbookID, ev.Reason)
		case wire.EventError:
			fmt.Printf("[ERROR] %v\n", ev.Err)
		}
	}
}

func printBook(ev wire.Event, verbose bool) {
	b := ev.Book
	if b == nil {
		return
	}
	if verbose {
		data, _ := json.MarshalIndent(b, "", "  ")
		fmt.Printf("[BOOK] %s\n", data)
		return
	}
	kind := "delta"
	if b.IsSnapshot {
		kind = "snapshot"
	}
	fmt.Printf("[BOOK] orderbook=%s kind=%s bids=%d asks=%d seq=%d\n",
		b.OrderbookID, kind, len(b.Bids), len(b.Asks), b.Seq)
}

func printTrade(ev wire.Event, verbose bool) {
	t := ev.Trade
	if t == nil {
		return
	}
	if verbose {
		data, _ := json.MarshalIndent(t, "", "  ")
		fmt.Printf("[TRADE] %s\n", data)
		return
	}
	fmt.Printf("[TRADE] orderbook=%s id=%s side=%s price=%s size=%s\n",
		t.OrderbookID, t.TradeID, t.Side, t.Price, t.Size)
}

func printTicker(ev wire.Event, verbose bool) {
	tk := ev.Ticker
	if tk == nil {
		return
	}
	if verbose {
		data, _ := json.MarshalIndent(tk, "", "  ")
		fmt.Printf("[TICKER] %s\n", data)
		return
	}
	fmt.Printf("[TICKER] orderbook=%s bid=%s ask=%s mid=%s\n",
		tk.OrderbookID, decStr(tk.BestBid), decStr(tk.BestAsk), decStr(tk.Mid))
}

// decStr formats an optional decimal, "-" when absent.
func decStr(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
