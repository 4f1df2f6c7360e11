package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"NETUSAGE_DB_DRIVER", "NETUSAGE_DB", "NETUSAGE_IFACE",
		"NETUSAGE_INTERVAL", "NETUSAGE_TZ", "NETUSAGE_LOG_LEVEL",
		"NETUSAGE_LOG_FORMAT", "NETUSAGE_METRICS_ADDR", "NETUSAGE_HTTP_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	require.Equal(t, "sqlite3", cfg.DBDriver)
	require.Equal(t, "~/.netusage.db", cfg.DBPath)
	require.Empty(t, cfg.Iface)
	require.Equal(t, time.Minute, cfg.Interval)
	require.Empty(t, cfg.Timezone)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "console", cfg.LogFormat)
	require.Equal(t, ":9221", cfg.MetricsAddr)
	require.Empty(t, cfg.HTTPAddr)
	require.Empty(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("NETUSAGE_DB_DRIVER", "pgx")
	t.Setenv("NETUSAGE_DB", "postgres://netusage@localhost:5432/netusage")
	t.Setenv("NETUSAGE_IFACE", "eth0")
	t.Setenv("NETUSAGE_INTERVAL", "30s")
	t.Setenv("NETUSAGE_TZ", "Europe/Istanbul")
	t.Setenv("NETUSAGE_LOG_FORMAT", "json")
	t.Setenv("NETUSAGE_HTTP_ADDR", ":8080")

	cfg := Load()
	require.Equal(t, "pgx", cfg.DBDriver)
	require.Equal(t, "postgres://netusage@localhost:5432/netusage", cfg.DBPath)
	require.Equal(t, "eth0", cfg.Iface)
	require.Equal(t, 30*time.Second, cfg.Interval)
	require.Equal(t, "Europe/Istanbul", cfg.Timezone)
	require.Equal(t, "json", cfg.LogFormat)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Empty(t, cfg.Validate())

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "Europe/Istanbul", loc.String())
}

func TestLoadIgnoresMalformedInterval(t *testing.T) {
	clearEnv(t)
	t.Setenv("NETUSAGE_INTERVAL", "not-a-duration")

	cfg := Load()
	require.Equal(t, time.Minute, cfg.Interval)
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	cfg.DBDriver = "oracle"
	cfg.DBPath = "  "
	cfg.Interval = 0
	cfg.Timezone = "Mars/Olympus"
	cfg.LogFormat = "xml"

	problems := cfg.Validate()
	require.Contains(t, problems, "db_driver")
	require.Contains(t, problems, "db")
	require.Contains(t, problems, "interval")
	require.Contains(t, problems, "tz")
	require.Contains(t, problems, "log_format")
}
