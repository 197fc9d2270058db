package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// dotenvFiles are loaded before the environment is read. Variables already
// present in the process environment win over the file.
var dotenvFiles = []string{".env"}

// parseEnv overlays environment variables onto config. Variable names follow
// the compose deployment (DATABASE_PATH, REDIS_HOST, RETENTION_DAYS, ...).
func parseEnv(config *Config) error {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	var errs []error
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	int64v := func(key string, dst *int64) {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := os.LookupEnv(key); ok {
			p, err := time.ParseDuration(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = p
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("DATABASE_DRIVER", &config.DatabaseDriver)
	str("DATABASE_PATH", &config.DatabaseDSN)
	str("DATABASE_DSN", &config.DatabaseDSN)

	host, hasHost := os.LookupEnv("REDIS_HOST")
	port, hasPort := os.LookupEnv("REDIS_PORT")
	if hasHost || hasPort {
		h, p, err := net.SplitHostPort(config.RedisAddr)
		if err != nil {
			h, p = config.RedisAddr, "6379"
		}
		if hasHost {
			h = host
		}
		if hasPort {
			p = port
		}
		config.RedisAddr = net.JoinHostPort(h, p)
	}
	str("REDIS_ADDR", &config.RedisAddr)
	str("REDIS_PASSWORD", &config.RedisPassword)
	integer("REDIS_DB", &config.RedisDB)
	str("QUEUE_NAME", &config.QueueName)

	str("STORAGE_PATH", &config.StoragePath)
	str("COOKIES_PATH", &config.CookiesPath)

	if v, ok := os.LookupEnv("RETENTION_DAYS"); ok {
		days, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("RETENTION_DAYS: %w", err))
		} else {
			config.RetentionWindow = time.Duration(days) * 24 * time.Hour
		}
	}
	duration("RETENTION_WINDOW", &config.RetentionWindow)
	if v, ok := os.LookupEnv("MAX_STORAGE_GB"); ok {
		gb, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_STORAGE_GB: %w", err))
		} else {
			config.MaxStorageBytes = int64(gb * gib)
		}
	}
	duration("CLEANUP_INTERVAL", &config.RetentionInterval)
	duration("CLEANUP_ERROR_INTERVAL", &config.RetentionErrorInterval)

	integer("WORKERS", &config.Workers)
	integer("JOB_MAX_RETRIES", &config.JobMaxRetries)
	duration("RETRY_BACKOFF", &config.RetryBackoff)
	duration("EXTRACT_TIMEOUT", &config.ExtractTimeout)
	duration("TRANSCODE_TIMEOUT", &config.TranscodeTimeout)
	str("YTDLP_PATH", &config.YtDlpPath)
	str("FFMPEG_PATH", &config.FFmpegPath)
	boolean("SEND_POST_DESCRIPTION", &config.SendDescription)

	str("TELEGRAM_BOT_TOKEN", &config.TelegramToken)
	str("TELEGRAM_API_ENDPOINT", &config.TelegramAPIEndpoint)
	int64v("DELIVERY_MAX_BYTES", &config.DeliveryMaxBytes)

	str("PUBLIC_BASE_URL", &config.PublicBaseURL)
	str("LINK_SECRET", &config.LinkSecret)
	str("S3_BUCKET", &config.S3Bucket)
	str("S3_REGION", &config.S3Region)
	str("S3_ROOT_USER", &config.S3RootUser)
	str("S3_ROOT_PASSWORD", &config.S3RootPassword)
	str("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	duration("PRESIGN_TTL", &config.PresignTTL)

	integer("MAX_DOWNLOADS_PER_HOUR", &config.RateLimitPerHour)

	str("GRPC_ADDR", &config.GRPCAddr)
	str("METRICS_ADDR", &config.MetricsAddr)
	str("LOG_LEVEL", &config.LogLevel)
	str("LOG_FORMAT", &config.LogFormat)

	return errors.Join(errs...)
}
