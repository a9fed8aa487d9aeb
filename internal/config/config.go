package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Sync     SyncConfig     `yaml:"sync"`
	Hunt     HuntConfig     `yaml:"hunt"`
	Stats    StatsConfig    `yaml:"stats"`
	Bot      BotConfig      `yaml:"bot"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	KeyPrefix    string        `yaml:"key_prefix"`
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxConnections  int           `yaml:"max_connections"`
	MinConnections  int           `yaml:"min_connections"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
}

// ConnectionString returns the PostgreSQL connection string
func (c *PostgresConfig) ConnectionString() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslMode,
	)
}

// KafkaConfig holds Kafka connection configuration. Inbound chat events are
// consumed from EventsTopic and outbound chat actions are produced to
// ActionsTopic.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	EventsTopic   string        `yaml:"events_topic"`
	ActionsTopic  string        `yaml:"actions_topic"`
	GroupID       string        `yaml:"group_id"`
	Enabled       bool          `yaml:"enabled"`
	HandleTimeout time.Duration `yaml:"handle_timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
}

// SyncConfig holds ranking cache synchronization worker configuration
type SyncConfig struct {
	Interval time.Duration `yaml:"interval"`
	Enabled  bool          `yaml:"enabled"`
}

// DelayRange is an inclusive range of spawn delays in seconds
type DelayRange struct {
	MinSeconds int `yaml:"min_seconds"`
	MaxSeconds int `yaml:"max_seconds"`
}

// Min returns the lower bound as a duration
func (r DelayRange) Min() time.Duration {
	return time.Duration(r.MinSeconds) * time.Second
}

// Max returns the upper bound as a duration
func (r DelayRange) Max() time.Duration {
	return time.Duration(r.MaxSeconds) * time.Second
}

// HuntConfig holds the game tuning options
type HuntConfig struct {
	MinimumMessages      int `yaml:"minimum_messages"`
	MinimumUsers         int `yaml:"minimum_users"`
	SpawnDelayMinSeconds int `yaml:"spawn_delay_min_seconds"`
	SpawnDelayMaxSeconds int `yaml:"spawn_delay_max_seconds"`
	SchedulerTickSeconds int `yaml:"scheduler_tick_seconds"`

	// FastChannels overrides the spawn delay for specific "network/channel" keys
	FastChannels map[string]DelayRange `yaml:"fast_channels"`

	// Workers bounds how many channels a scheduler tick processes at once
	Workers      int           `yaml:"workers"`
	StoreTimeout time.Duration `yaml:"store_timeout"`
	ChatTimeout  time.Duration `yaml:"chat_timeout"`
}

// SpawnDelay returns the default spawn delay range
func (c *HuntConfig) SpawnDelay() DelayRange {
	return DelayRange{MinSeconds: c.SpawnDelayMinSeconds, MaxSeconds: c.SpawnDelayMaxSeconds}
}

// TickInterval returns the scheduler tick as a duration
func (c *HuntConfig) TickInterval() time.Duration {
	return time.Duration(c.SchedulerTickSeconds) * time.Second
}

// StatsConfig holds leaderboard pagination configuration
type StatsConfig struct {
	PageSize       int `yaml:"page_size"`
	ColumnsPerPage int `yaml:"columns_per_page"`
	LiveLimit      int `yaml:"live_limit"`
	MaxLiveLimit   int `yaml:"max_live_limit"`
}

// BotConfig holds the chat command surface configuration
type BotConfig struct {
	CommandPrefix string `yaml:"command_prefix"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks option combinations that defaults cannot repair
func (c *Config) Validate() error {
	if c.Hunt.SpawnDelayMinSeconds > c.Hunt.SpawnDelayMaxSeconds {
		return fmt.Errorf("hunt.spawn_delay_min_seconds (%d) exceeds spawn_delay_max_seconds (%d)",
			c.Hunt.SpawnDelayMinSeconds, c.Hunt.SpawnDelayMaxSeconds)
	}
	for key, r := range c.Hunt.FastChannels {
		if r.MinSeconds < 0 || r.MinSeconds > r.MaxSeconds {
			return fmt.Errorf("hunt.fast_channels[%s]: invalid range %d-%d", key, r.MinSeconds, r.MaxSeconds)
		}
	}
	return nil
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 5 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}

	// Redis defaults
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 20
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 2
	}
	if c.Redis.DialTimeout == 0 {
		c.Redis.DialTimeout = 5 * time.Second
	}
	if c.Redis.ReadTimeout == 0 {
		c.Redis.ReadTimeout = 3 * time.Second
	}
	if c.Redis.WriteTimeout == 0 {
		c.Redis.WriteTimeout = 3 * time.Second
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "duckhunt"
	}

	// PostgreSQL defaults
	if c.Postgres.Host == "" {
		c.Postgres.Host = "localhost"
	}
	if c.Postgres.Port == 0 {
		c.Postgres.Port = 5432
	}
	if c.Postgres.MaxConnections == 0 {
		c.Postgres.MaxConnections = 20
	}
	if c.Postgres.MinConnections == 0 {
		c.Postgres.MinConnections = 2
	}
	if c.Postgres.MaxConnLifetime == 0 {
		c.Postgres.MaxConnLifetime = 1 * time.Hour
	}
	if c.Postgres.MaxConnIdleTime == 0 {
		c.Postgres.MaxConnIdleTime = 30 * time.Minute
	}

	// Kafka defaults
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Kafka.EventsTopic == "" {
		c.Kafka.EventsTopic = "duckhunt-chat-events"
	}
	if c.Kafka.ActionsTopic == "" {
		c.Kafka.ActionsTopic = "duckhunt-chat-actions"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "duckhunt"
	}
	if c.Kafka.HandleTimeout == 0 {
		c.Kafka.HandleTimeout = 10 * time.Second
	}
	if c.Kafka.RetryAttempts == 0 {
		c.Kafka.RetryAttempts = 3
	}
	if c.Kafka.RetryDelay == 0 {
		c.Kafka.RetryDelay = 1 * time.Second
	}

	// Sync defaults
	if c.Sync.Interval == 0 {
		c.Sync.Interval = 30 * time.Minute
	}

	// Hunt defaults
	if c.Hunt.MinimumMessages == 0 {
		c.Hunt.MinimumMessages = 10
	}
	if c.Hunt.MinimumUsers == 0 {
		c.Hunt.MinimumUsers = 2
	}
	if c.Hunt.SpawnDelayMinSeconds == 0 {
		c.Hunt.SpawnDelayMinSeconds = 480
	}
	if c.Hunt.SpawnDelayMaxSeconds == 0 {
		c.Hunt.SpawnDelayMaxSeconds = 3600
	}
	if c.Hunt.SchedulerTickSeconds == 0 {
		c.Hunt.SchedulerTickSeconds = 10
	}
	if c.Hunt.Workers == 0 {
		c.Hunt.Workers = 8
	}
	if c.Hunt.StoreTimeout == 0 {
		c.Hunt.StoreTimeout = 3 * time.Second
	}
	if c.Hunt.ChatTimeout == 0 {
		c.Hunt.ChatTimeout = 5 * time.Second
	}

	// Stats defaults
	if c.Stats.PageSize == 0 {
		c.Stats.PageSize = 10
	}
	if c.Stats.ColumnsPerPage == 0 {
		c.Stats.ColumnsPerPage = 2
	}
	if c.Stats.LiveLimit == 0 {
		c.Stats.LiveLimit = 10
	}
	if c.Stats.MaxLiveLimit == 0 {
		c.Stats.MaxLiveLimit = 100
	}

	// Bot defaults
	if c.Bot.CommandPrefix == "" {
		c.Bot.CommandPrefix = "!"
	}
}

// DefaultConfig returns a configuration with all defaults
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Sync.Enabled = true
	cfg.Redis.Enabled = true
	return cfg
}
