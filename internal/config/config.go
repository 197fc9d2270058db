// Package config handles configuration for the vidkeeper worker, retention
// engine and command-line tools: defaults, JSON overlay, environment
// (including a .env file) and finally command-line flags.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

const gib = 1 << 30

// Config holds runtime settings shared by every subcommand.
//
// Fields are grouped by the component that consumes them:
//   - catalog: DatabaseDriver, DatabaseDSN.
//   - queue: Redis* and Queue* settings.
//   - storage and retention: StoragePath, RetentionWindow, MaxStorageBytes, intervals.
//   - worker: pool size, retry policy, subprocess timeouts and tool paths.
//   - delivery: Telegram bot settings and the payload ceiling.
//   - alternate retrieval path: PublicBaseURL + LinkSecret, or the S3* offload bucket.
//   - producer: rate limit for the enqueue command.
//   - ops: gRPC health and metrics listeners, logging.
type Config struct {
	DatabaseDriver string
	DatabaseDSN    string

	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	QueueName              string
	QueuePopTimeout        time.Duration
	QueueReconnectAttempts int
	QueueReconnectBackoff  time.Duration
	QueueReconnectSleep    time.Duration

	StoragePath string
	CookiesPath string

	RetentionWindow        time.Duration
	MaxStorageBytes        int64
	RetentionInterval      time.Duration
	RetentionErrorInterval time.Duration

	Workers          int
	JobMaxRetries    int
	RetryBackoff     time.Duration
	ExtractTimeout   time.Duration
	TranscodeTimeout time.Duration
	YtDlpPath        string
	FFmpegPath       string
	SendDescription  bool

	TelegramToken       string
	TelegramAPIEndpoint string
	DeliveryMaxBytes    int64
	DeliveryTimeout     time.Duration
	ConnectTimeout      time.Duration

	PublicBaseURL  string
	LinkSecret     string
	S3Bucket       string
	S3Region       string
	S3RootUser     string
	S3RootPassword string
	S3BaseEndpoint string
	PresignTTL     time.Duration

	RateLimitPerHour int

	PreferenceCacheSize int
	PreferenceCacheTTL  time.Duration

	GRPCAddr    string
	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

// LoadDefaults populates Config with the values of the compose single-host
// deployment: SQLite catalog, local Redis, three-day retention, 5 GiB quota.
func (c *Config) LoadDefaults() {
	c.DatabaseDriver = DriverSQLite
	c.DatabaseDSN = "/db/televideo.db"

	c.RedisAddr = "redis:6379"
	c.RedisPassword = ""
	c.RedisDB = 0
	c.QueueName = "download_queue"
	c.QueuePopTimeout = 5 * time.Second
	c.QueueReconnectAttempts = 3
	c.QueueReconnectBackoff = 500 * time.Millisecond
	c.QueueReconnectSleep = 5 * time.Second

	c.StoragePath = "/storage"
	c.CookiesPath = "/cookies"

	c.RetentionWindow = 3 * 24 * time.Hour
	c.MaxStorageBytes = 5 * gib
	c.RetentionInterval = time.Hour
	c.RetentionErrorInterval = 5 * time.Minute

	c.Workers = 1
	c.JobMaxRetries = 2
	c.RetryBackoff = 30 * time.Second
	c.ExtractTimeout = 30 * time.Minute
	c.TranscodeTimeout = 30 * time.Minute
	c.YtDlpPath = ""
	c.FFmpegPath = "ffmpeg"
	c.SendDescription = true

	c.TelegramToken = ""
	c.TelegramAPIEndpoint = ""
	c.DeliveryMaxBytes = 50 << 20
	c.DeliveryTimeout = 5 * time.Minute
	c.ConnectTimeout = 30 * time.Second

	c.PublicBaseURL = ""
	c.LinkSecret = ""
	c.S3Bucket = ""
	c.S3Region = "us-east-1"
	c.S3RootUser = ""
	c.S3RootPassword = ""
	c.S3BaseEndpoint = ""
	c.PresignTTL = 24 * time.Hour

	c.RateLimitPerHour = 10

	c.PreferenceCacheSize = 1024
	c.PreferenceCacheTTL = time.Minute

	c.GRPCAddr = ":50051"
	c.MetricsAddr = ":9090"
	c.LogLevel = "info"
	c.LogFormat = "json"
}

// Validate rejects settings that would make a component misbehave rather
// than fail fast.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseDriver != DriverSQLite && c.DatabaseDriver != DriverPostgres {
		errs = append(errs, fmt.Errorf("database driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.DatabaseDriver))
	}
	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database dsn is required"))
	}
	if c.QueueName == "" {
		errs = append(errs, errors.New("queue name is required"))
	}
	if c.QueuePopTimeout <= 0 {
		errs = append(errs, errors.New("queue pop timeout must be positive"))
	}
	if c.RetentionWindow < time.Second {
		errs = append(errs, errors.New("retention window must be at least 1s"))
	}
	if c.MaxStorageBytes <= 0 {
		errs = append(errs, errors.New("max storage must be positive"))
	}
	if c.RetentionInterval <= 0 || c.RetentionErrorInterval <= 0 {
		errs = append(errs, errors.New("retention intervals must be positive"))
	}
	if c.Workers < 1 {
		errs = append(errs, errors.New("workers must be at least 1"))
	}
	if c.JobMaxRetries < 0 {
		errs = append(errs, errors.New("job max retries must not be negative"))
	}
	if c.DeliveryMaxBytes <= 0 {
		errs = append(errs, errors.New("delivery max bytes must be positive"))
	}
	if c.StoragePath == "" {
		errs = append(errs, errors.New("storage path is required"))
	}
	return errors.Join(errs...)
}

// OffloadEnabled reports whether oversized artifacts go to object storage.
func (c *Config) OffloadEnabled() bool {
	return c.S3Bucket != ""
}

// Load builds a Config by applying defaults, then overlaying an optional JSON
// file (--config), the environment and finally the flags explicitly set on fs.
// fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, configPath(fs)); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if fs != nil {
		if err := applyFlags(cfg, fs); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
