package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Intervals use
// timex.Duration so both "90m" and integer nanoseconds are accepted.
//
// Keys missing from the file keep the value they had before the overlay.
type JsonConfig struct {
	DatabaseDriver string `json:"database_driver"`
	DatabaseDSN    string `json:"database_dsn"`

	RedisAddr              string         `json:"redis_addr"`
	RedisPassword          string         `json:"redis_password"`
	RedisDB                int            `json:"redis_db"`
	QueueName              string         `json:"queue_name"`
	QueuePopTimeout        timex.Duration `json:"queue_pop_timeout"`
	QueueReconnectAttempts int            `json:"queue_reconnect_attempts"`
	QueueReconnectBackoff  timex.Duration `json:"queue_reconnect_backoff"`
	QueueReconnectSleep    timex.Duration `json:"queue_reconnect_sleep"`

	StoragePath string `json:"storage_path"`
	CookiesPath string `json:"cookies_path"`

	RetentionWindow        timex.Duration `json:"retention_window"`
	MaxStorageBytes        int64          `json:"max_storage_bytes"`
	RetentionInterval      timex.Duration `json:"retention_interval"`
	RetentionErrorInterval timex.Duration `json:"retention_error_interval"`

	Workers          int            `json:"workers"`
	JobMaxRetries    int            `json:"job_max_retries"`
	RetryBackoff     timex.Duration `json:"retry_backoff"`
	ExtractTimeout   timex.Duration `json:"extract_timeout"`
	TranscodeTimeout timex.Duration `json:"transcode_timeout"`
	YtDlpPath        string         `json:"ytdlp_path"`
	FFmpegPath       string         `json:"ffmpeg_path"`
	SendDescription  bool           `json:"send_description"`

	TelegramToken       string         `json:"telegram_token"`
	TelegramAPIEndpoint string         `json:"telegram_api_endpoint"`
	DeliveryMaxBytes    int64          `json:"delivery_max_bytes"`
	DeliveryTimeout     timex.Duration `json:"delivery_timeout"`
	ConnectTimeout      timex.Duration `json:"connect_timeout"`

	PublicBaseURL  string         `json:"public_base_url"`
	LinkSecret     string         `json:"link_secret"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3RootUser     string         `json:"s3_root_user"`
	S3RootPassword string         `json:"s3_root_password"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
	PresignTTL     timex.Duration `json:"presign_ttl"`

	RateLimitPerHour int `json:"rate_limit_per_hour"`

	PreferenceCacheSize int            `json:"preference_cache_size"`
	PreferenceCacheTTL  timex.Duration `json:"preference_cache_ttl"`

	GRPCAddr    string `json:"grpc_addr"`
	MetricsAddr string `json:"metrics_addr"`
	LogLevel    string `json:"log_level"`
	LogFormat   string `json:"log_format"`
}

func d(v time.Duration) timex.Duration { return timex.Duration{Duration: v} }

func toJSON(c *Config) *JsonConfig {
	return &JsonConfig{
		DatabaseDriver:         c.DatabaseDriver,
		DatabaseDSN:            c.DatabaseDSN,
		RedisAddr:              c.RedisAddr,
		RedisPassword:          c.RedisPassword,
		RedisDB:                c.RedisDB,
		QueueName:              c.QueueName,
		QueuePopTimeout:        d(c.QueuePopTimeout),
		QueueReconnectAttempts: c.QueueReconnectAttempts,
		QueueReconnectBackoff:  d(c.QueueReconnectBackoff),
		QueueReconnectSleep:    d(c.QueueReconnectSleep),
		StoragePath:            c.StoragePath,
		CookiesPath:            c.CookiesPath,
		RetentionWindow:        d(c.RetentionWindow),
		MaxStorageBytes:        c.MaxStorageBytes,
		RetentionInterval:      d(c.RetentionInterval),
		RetentionErrorInterval: d(c.RetentionErrorInterval),
		Workers:                c.Workers,
		JobMaxRetries:          c.JobMaxRetries,
		RetryBackoff:           d(c.RetryBackoff),
		ExtractTimeout:         d(c.ExtractTimeout),
		TranscodeTimeout:       d(c.TranscodeTimeout),
		YtDlpPath:              c.YtDlpPath,
		FFmpegPath:             c.FFmpegPath,
		SendDescription:        c.SendDescription,
		TelegramToken:          c.TelegramToken,
		TelegramAPIEndpoint:    c.TelegramAPIEndpoint,
		DeliveryMaxBytes:       c.DeliveryMaxBytes,
		DeliveryTimeout:        d(c.DeliveryTimeout),
		ConnectTimeout:         d(c.ConnectTimeout),
		PublicBaseURL:          c.PublicBaseURL,
		LinkSecret:             c.LinkSecret,
		S3Bucket:               c.S3Bucket,
		S3Region:               c.S3Region,
		S3RootUser:             c.S3RootUser,
		S3RootPassword:         c.S3RootPassword,
		S3BaseEndpoint:         c.S3BaseEndpoint,
		PresignTTL:             d(c.PresignTTL),
		RateLimitPerHour:       c.RateLimitPerHour,
		PreferenceCacheSize:    c.PreferenceCacheSize,
		PreferenceCacheTTL:     d(c.PreferenceCacheTTL),
		GRPCAddr:               c.GRPCAddr,
		MetricsAddr:            c.MetricsAddr,
		LogLevel:               c.LogLevel,
		LogFormat:              c.LogFormat,
	}
}

func (j *JsonConfig) apply(c *Config) {
	c.DatabaseDriver = j.DatabaseDriver
	c.DatabaseDSN = j.DatabaseDSN
	c.RedisAddr = j.RedisAddr
	c.RedisPassword = j.RedisPassword
	c.RedisDB = j.RedisDB
	c.QueueName = j.QueueName
	c.QueuePopTimeout = j.QueuePopTimeout.Duration
	c.QueueReconnectAttempts = j.QueueReconnectAttempts
	c.QueueReconnectBackoff = j.QueueReconnectBackoff.Duration
	c.QueueReconnectSleep = j.QueueReconnectSleep.Duration
	c.StoragePath = j.StoragePath
	c.CookiesPath = j.CookiesPath
	c.RetentionWindow = j.RetentionWindow.Duration
	c.MaxStorageBytes = j.MaxStorageBytes
	c.RetentionInterval = j.RetentionInterval.Duration
	c.RetentionErrorInterval = j.RetentionErrorInterval.Duration
	c.Workers = j.Workers
	c.JobMaxRetries = j.JobMaxRetries
	c.RetryBackoff = j.RetryBackoff.Duration
	c.ExtractTimeout = j.ExtractTimeout.Duration
	c.TranscodeTimeout = j.TranscodeTimeout.Duration
	c.YtDlpPath = j.YtDlpPath
	c.FFmpegPath = j.FFmpegPath
	c.SendDescription = j.SendDescription
	c.TelegramToken = j.TelegramToken
	c.TelegramAPIEndpoint = j.TelegramAPIEndpoint
	c.DeliveryMaxBytes = j.DeliveryMaxBytes
	c.DeliveryTimeout = j.DeliveryTimeout.Duration
	c.ConnectTimeout = j.ConnectTimeout.Duration
	c.PublicBaseURL = j.PublicBaseURL
	c.LinkSecret = j.LinkSecret
	c.S3Bucket = j.S3Bucket
	c.S3Region = j.S3Region
	c.S3RootUser = j.S3RootUser
	c.S3RootPassword = j.S3RootPassword
	c.S3BaseEndpoint = j.S3BaseEndpoint
	c.PresignTTL = j.PresignTTL.Duration
	c.RateLimitPerHour = j.RateLimitPerHour
	c.PreferenceCacheSize = j.PreferenceCacheSize
	c.PreferenceCacheTTL = j.PreferenceCacheTTL.Duration
	c.GRPCAddr = j.GRPCAddr
	c.MetricsAddr = j.MetricsAddr
	c.LogLevel = j.LogLevel
	c.LogFormat = j.LogFormat
}

// parseJSON overlays the JSON file at path onto config. An empty path is a
// no-op. The current values of config seed the decode target, so keys absent
// from the file are left untouched.
func parseJSON(config *Config, path string) error {
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := toJSON(config)
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.apply(config)
	return nil
}
