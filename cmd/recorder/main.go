// recorder captures the Meridian stream into TimescaleDB.
// Usage: go run ./cmd/recorder --config configs/recorder.local.yaml
// Start from configs/recorder.example.yaml.
//
// An optional .env file supplies variables referenced by the config, such
// as MERIDIAN_DB_PASSWORD. A /health endpoint reports database, stream,
// and batch-writer status.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/meridianxyz/meridian-data/internal/api"
	"github.com/meridianxyz/meridian-data/internal/backfill"
	"github.com/meridianxyz/meridian-data/internal/config"
	"github.com/meridianxyz/meridian-data/internal/connection"
	"github.com/meridianxyz/meridian-data/internal/database"
	"github.com/meridianxyz/meridian-data/internal/recorder"
	"github.com/meridianxyz/meridian-data/internal/router"
	"github.com/meridianxyz/meridian-data/internal/version"
	"github.com/meridianxyz/meridian-data/internal/wire"
)

func main() {
	configPath := flag.String("config", "configs/recorder.local.yaml", "path to config file")
	flag.Parse()

	// .env fills variables the config references; real env always wins.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting recorder",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateRecorder(); err != nil {
		logger.Error("invalid config", "error", err)
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

	logger.Info("connecting to database",
		"host", cfg.Database.Timescale.Host,
		"port", cfg.Database.Timescale.Port,
		"database", cfg.Database.Timescale.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database.Timescale)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	rec := recorder.New(recorder.Config{
		BatchSize:     cfg.Recorder.BatchSize,
		FlushInterval: cfg.Recorder.FlushInterval,
		BufferSize:    cfg.Recorder.BufferSize,
	}, pool, logger)
	if err := rec.Start(ctx); err != nil {
		logger.Error("failed to start recorder", "error", err)
		os.Exit(1)
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

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for ev := range mgr.Events() {
			rec.Ingest(ev)
		}
	}()

	// REST backfill recovers trades that printed while the stream was down.
	// The trade-id conflict key drops any overlap with the live feed.
	var bf *backfill.Backfiller
	if cfg.Recorder.BackfillInterval > 0 && len(cfg.Subscriptions.Trades) > 0 {
		rest := api.NewClient(cfg.Venue.RestURL, cfg.Venue.AuthToken,
			api.WithTimeout(cfg.Venue.Timeout),
			api.WithLogger(logger),
		)
		bcfg := backfill.DefaultConfig()
		bcfg.Interval = cfg.Recorder.BackfillInterval
		bf = backfill.New(bcfg, rest, cfg.Subscriptions.Trades, rec, logger)
		if err := bf.Start(ctx); err != nil {
			logger.Error("failed to start backfill", "error", err)
			os.Exit(1)
		}
	}

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Recorder.HealthPort),
		Handler: healthHandler(pool, mgr, rec),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Recorder.HealthPort)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	// Stats printer
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := rec.Stats()
				connStats := mgr.Stats()
				logger.Info("stats",
					"state", mgr.State(),
					"reconnects", connStats.Reconnects,
					"book_inserts", stats.BookInserts,
					"trade_inserts", stats.TradeInserts,
					"conflicts", stats.BookConflicts+stats.TradeConflicts,
					"errors", stats.Errors,
					"flushes", stats.Flushes,
					"buffered", stats.Buffered,
				)
			}
		}
	}()

	logger.Info("recorder running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Recorder.HealthPort),
	)

	// The event stream ending on its own means reconnects are exhausted.
	select {
	case <-ctx.Done():
	case <-pumpDone:
		logger.Error("event stream ended")
		cancel()
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	healthServer.Shutdown(shutdownCtx)
	if bf != nil {
		if err := bf.Stop(shutdownCtx); err != nil {
			logger.Warn("backfill stop", "error", err)
		}
	}
	if err := mgr.Disconnect(); err != nil && err != connection.ErrConnectionClosed {
		logger.Warn("disconnect", "error", err)
	}
	<-pumpDone

	if err := rec.Stop(shutdownCtx); err != nil {
		logger.Warn("recorder stop", "error", err)
	}

	logger.Info("recorder stopped")
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

// healthHandler serves the capture daemon's health endpoint.
func healthHandler(pool *pgxpool.Pool, mgr *connection.Manager, rec *recorder.Recorder) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if err := pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["timescaledb"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["timescaledb"] = "connected"
		}

		state := mgr.State()
		health.Components["stream"] = string(state)
		if state != connection.StateConnected && health.Status == "healthy" {
			health.Status = "degraded"
		}

		stats := rec.Stats()
		health.Components["recorder"] = map[string]int64{
			"book_inserts":  stats.BookInserts,
			"trade_inserts": stats.TradeInserts,
			"errors":        stats.Errors,
			"flushes":       stats.Flushes,
			"buffered":      int64(stats.Buffered),
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
