package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/meridianxyz/meridian-data/internal/wire"
)

// Validate checks the blocks every tool needs: venue, stream tuning, and
// subscriptions. Database and recorder blocks are checked separately by
// ValidateRecorder since the console viewer runs without them.
func (c *Config) Validate() error {
	if c.Venue.WSURL == "" {
		return errors.New("venue.ws_url is required")
	}
	if u, err := url.Parse(c.Venue.WSURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return fmt.Errorf("venue.ws_url must use ws:// or wss://, got %q", c.Venue.WSURL)
	}

	if c.Stream.ReconnectAttempts < 0 {
		return errors.New("stream.reconnect_attempts must be >= 0")
	}
	if c.Stream.BaseDelay > c.Stream.MaxDelay {
		return fmt.Errorf("stream.base_delay (%v) cannot exceed max_delay (%v)", c.Stream.BaseDelay, c.Stream.MaxDelay)
	}
	if c.Stream.OnGap != "resubscribe" && c.Stream.OnGap != "notify" {
		return fmt.Errorf("stream.on_gap must be \"resubscribe\" or \"notify\", got %q", c.Stream.OnGap)
	}
	if c.Stream.EventBuffer < 1 {
		return errors.New("stream.event_buffer must be >= 1")
	}
	if c.Stream.CommandBuffer < 1 {
		return errors.New("stream.command_buffer must be >= 1")
	}
	if c.Stream.SendRate < 0 {
		return errors.New("stream.send_rate must be >= 0")
	}

	for i, ph := range c.Subscriptions.PriceHistory {
		if ph.OrderbookID == "" {
			return fmt.Errorf("subscriptions.price_history[%d].orderbook_id is required", i)
		}
		if !wire.Resolution(ph.Resolution).Valid() {
			return fmt.Errorf("subscriptions.price_history[%d].resolution %q is not valid", i, ph.Resolution)
		}
	}

	return nil
}

// ValidateRecorder runs Validate plus the database and recorder checks the
// capture daemon needs.
func (c *Config) ValidateRecorder() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if err := c.Database.Timescale.validate("database.timescale"); err != nil {
		return err
	}

	if c.Recorder.BatchSize < 1 {
		return errors.New("recorder.batch_size must be >= 1")
	}
	if c.Recorder.BufferSize < 1 {
		return errors.New("recorder.buffer_size must be >= 1")
	}
	if c.Recorder.BackfillInterval < 0 {
		return errors.New("recorder.backfill_interval cannot be negative")
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
