package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL           = "https://api.meridian.xyz"
	DefaultWSURL             = "wss://stream.meridian.xyz/ws"
	DefaultAPITimeout        = 30 * time.Second
	DefaultMaxRetries        = 3
	DefaultReconnectAttempts = 10
	DefaultBaseDelay         = 1 * time.Second
	DefaultMaxDelay          = 30 * time.Second
	DefaultPingInterval      = 30 * time.Second
	DefaultPongTimeout       = 60 * time.Second
	DefaultConnectTimeout    = 30 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultOnGap             = "resubscribe"
	DefaultEventBuffer       = 1000
	DefaultCommandBuffer     = 100
	DefaultTradeLimit        = 500
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultBatchSize         = 1000
	DefaultFlushInterval     = 1 * time.Second
	DefaultBufferSize        = 10000
	DefaultHealthPort        = 8080
)

func (c *Config) applyDefaults() {
	// Venue defaults
	if c.Venue.RestURL == "" {
		c.Venue.RestURL = DefaultRestURL
	}
	if c.Venue.WSURL == "" {
		c.Venue.WSURL = DefaultWSURL
	}
	if c.Venue.Timeout == 0 {
		c.Venue.Timeout = DefaultAPITimeout
	}
	if c.Venue.MaxRetries == 0 {
		c.Venue.MaxRetries = DefaultMaxRetries
	}

	// Stream defaults
	if c.Stream.ReconnectAttempts == 0 {
		c.Stream.ReconnectAttempts = DefaultReconnectAttempts
	}
	if c.Stream.BaseDelay == 0 {
		c.Stream.BaseDelay = DefaultBaseDelay
	}
	if c.Stream.MaxDelay == 0 {
		c.Stream.MaxDelay = DefaultMaxDelay
	}
	if c.Stream.PingInterval == 0 {
		c.Stream.PingInterval = DefaultPingInterval
	}
	if c.Stream.PongTimeout == 0 {
		c.Stream.PongTimeout = DefaultPongTimeout
	}
	if c.Stream.ConnectTimeout == 0 {
		c.Stream.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.AutoReconnect == nil {
		c.Stream.AutoReconnect = boolPtr(true)
	}
	if c.Stream.AutoResubscribe == nil {
		c.Stream.AutoResubscribe = boolPtr(true)
	}
	if c.Stream.OnGap == "" {
		c.Stream.OnGap = DefaultOnGap
	}
	if c.Stream.EventBuffer == 0 {
		c.Stream.EventBuffer = DefaultEventBuffer
	}
	if c.Stream.CommandBuffer == 0 {
		c.Stream.CommandBuffer = DefaultCommandBuffer
	}
	if c.Stream.TradeLimit == 0 {
		c.Stream.TradeLimit = DefaultTradeLimit
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Recorder defaults
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
	if c.Recorder.BufferSize == 0 {
		c.Recorder.BufferSize = DefaultBufferSize
	}
	if c.Recorder.HealthPort == 0 {
		c.Recorder.HealthPort = DefaultHealthPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

func boolPtr(b bool) *bool {
	return &b
}
