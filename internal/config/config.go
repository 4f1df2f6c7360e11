// Package config carries the runtime settings shared by every command.
// Everything is read from NETUSAGE_* environment variables with sensible
// defaults; command-line flags may override individual fields afterwards.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver    string
	DBPath      string
	Iface       string
	Interval    time.Duration
	Timezone    string
	LogLevel    string
	LogFormat   string
	MetricsAddr string
	HTTPAddr    string
}

// Load reads configuration from the environment, after loading a .env
// file if one exists.
func Load() Config {
	_ = godotenv.Load()
	return Config{
		DBDriver:    getenv("NETUSAGE_DB_DRIVER", "sqlite3"),
		DBPath:      getenv("NETUSAGE_DB", "~/.netusage.db"),
		Iface:       getenv("NETUSAGE_IFACE", ""),
		Interval:    getdur("NETUSAGE_INTERVAL", time.Minute),
		Timezone:    getenv("NETUSAGE_TZ", ""),
		LogLevel:    getenv("NETUSAGE_LOG_LEVEL", "info"),
		LogFormat:   getenv("NETUSAGE_LOG_FORMAT", "console"),
		MetricsAddr: getenv("NETUSAGE_METRICS_ADDR", ":9221"),
		HTTPAddr:    getenv("NETUSAGE_HTTP_ADDR", ""),
	}
}

// Validate reports configuration problems keyed by field.
func (c Config) Validate() map[string]string {
	problems := make(map[string]string)
	if c.DBDriver != "sqlite3" && c.DBDriver != "pgx" {
		problems["db_driver"] = "must be sqlite3 or pgx"
	}
	if strings.TrimSpace(c.DBPath) == "" {
		problems["db"] = "is required"
	}
	if c.Interval <= 0 {
		problems["interval"] = "must be positive"
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			problems["tz"] = "unknown timezone"
		}
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		problems["log_format"] = "must be json or console"
	}
	return problems
}

// Location resolves the configured timezone. An empty setting means the
// system local zone.
func (c Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
