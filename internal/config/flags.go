package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// RegisterFlags declares the persistent command-line flags. Defaults shown in
// help come from LoadDefaults; only flags the user actually sets override the
// defaults/JSON/environment layers (see applyFlags).
func RegisterFlags(fs *pflag.FlagSet) {
	def := &Config{}
	def.LoadDefaults()

	fs.StringP("config", "c", "", "path to JSON config file")
	fs.String("db-driver", def.DatabaseDriver, "catalog driver: sqlite or pgx")
	fs.String("db-dsn", def.DatabaseDSN, "catalog DSN (SQLite path or PostgreSQL URL)")
	fs.String("redis-addr", def.RedisAddr, "Redis address host:port")
	fs.String("queue", def.QueueName, "Redis list used as the job queue")
	fs.String("storage", def.StoragePath, "storage root holding videos/ and thumbnails/")
	fs.String("cookies", def.CookiesPath, "directory with per-platform cookie files")
	fs.Duration("retention-window", def.RetentionWindow, "artifact lifetime before expiry")
	fs.Float64("max-storage-gb", float64(def.MaxStorageBytes)/gib, "storage quota ceiling in GiB")
	fs.Int("workers", def.Workers, "number of queue consumers")
	fs.String("telegram-token", "", "Telegram bot token")
	fs.String("grpc-addr", def.GRPCAddr, "gRPC health listener address")
	fs.String("metrics-addr", def.MetricsAddr, "metrics HTTP listener address")
	fs.String("log-level", def.LogLevel, "log level: debug, info, warn, error")
	fs.String("log-format", def.LogFormat, "log format: json or text")
}

func configPath(fs *pflag.FlagSet) string {
	if fs == nil {
		return ""
	}
	f := fs.Lookup("config")
	if f == nil {
		return ""
	}
	return f.Value.String()
}

// applyFlags copies explicitly set flags into config.
func applyFlags(config *Config, fs *pflag.FlagSet) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case "db-driver":
			config.DatabaseDriver, err = fs.GetString(f.Name)
		case "db-dsn":
			config.DatabaseDSN, err = fs.GetString(f.Name)
		case "redis-addr":
			config.RedisAddr, err = fs.GetString(f.Name)
		case "queue":
			config.QueueName, err = fs.GetString(f.Name)
		case "storage":
			config.StoragePath, err = fs.GetString(f.Name)
		case "cookies":
			config.CookiesPath, err = fs.GetString(f.Name)
		case "retention-window":
			config.RetentionWindow, err = fs.GetDuration(f.Name)
		case "max-storage-gb":
			var gb float64
			gb, err = fs.GetFloat64(f.Name)
			config.MaxStorageBytes = int64(gb * gib)
		case "workers":
			config.Workers, err = fs.GetInt(f.Name)
		case "telegram-token":
			config.TelegramToken, err = fs.GetString(f.Name)
		case "grpc-addr":
			config.GRPCAddr, err = fs.GetString(f.Name)
		case "metrics-addr":
			config.MetricsAddr, err = fs.GetString(f.Name)
		case "log-level":
			config.LogLevel, err = fs.GetString(f.Name)
		case "log-format":
			config.LogFormat, err = fs.GetString(f.Name)
		}
	})
	if err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	return nil
}
