package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration shared by the stream tools.
type Config struct {
	Instance      InstanceConfig      `yaml:"instance"`
	Venue         VenueConfig         `yaml:"venue"`
	Stream        StreamConfig        `yaml:"stream"`
	Subscriptions SubscriptionsConfig `yaml:"subscriptions"`
	Database      DatabaseConfig      `yaml:"database"`
	Recorder      RecorderConfig      `yaml:"recorder"`
}

// InstanceConfig identifies this process in logs and metrics.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// VenueConfig holds Meridian API settings.
type VenueConfig struct {
	RestURL    string        `yaml:"rest_url"`
	WSURL      string        `yaml:"ws_url"`
	AuthToken  string        `yaml:"auth_token"` // empty for anonymous read-only access
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// StreamConfig holds connection manager tuning. Zero values take the stream
// defaults; the boolean fields are pointers so an explicit false survives
// default application.
type StreamConfig struct {
	ReconnectAttempts int           `yaml:"reconnect_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	PongTimeout       time.Duration `yaml:"pong_timeout"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	AutoReconnect     *bool         `yaml:"auto_reconnect"`
	AutoResubscribe   *bool         `yaml:"auto_resubscribe"`
	OnGap             string        `yaml:"on_gap"` // "resubscribe" or "notify"
	EventBuffer       int           `yaml:"event_buffer"`
	CommandBuffer     int           `yaml:"command_buffer"`
	TradeLimit        int           `yaml:"trade_limit"`
	SendRate          float64       `yaml:"send_rate"` // outbound frames/sec, 0 = unlimited
	SendBurst         int           `yaml:"send_burst"`
}

// SubscriptionsConfig lists the channels to subscribe on connect.
type SubscriptionsConfig struct {
	Books        []string             `yaml:"books"`
	Trades       []string             `yaml:"trades"`
	Ticker       []string             `yaml:"ticker"`
	User         string               `yaml:"user"` // wallet pubkey
	Markets      []string             `yaml:"markets"`
	PriceHistory []PriceHistoryTarget `yaml:"price_history"`
}

// PriceHistoryTarget is one candle series subscription.
type PriceHistoryTarget struct {
	OrderbookID  string `yaml:"orderbook_id"`
	Resolution   string `yaml:"resolution"`
	IncludeOHLCV bool   `yaml:"include_ohlcv"`
}

// DatabaseConfig holds the TimescaleDB connection for captured streams.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RecorderConfig holds batch capture settings.
type RecorderConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
	HealthPort    int           `yaml:"health_port"`

	// BackfillInterval enables periodic REST trade backfill when positive.
	BackfillInterval time.Duration `yaml:"backfill_interval"`
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}
