package cli

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"

	"github.com/BemreSTR/net-usage/internal/meter"
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

func TestRootOptionsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("NETUSAGE_DB", "/var/lib/netusage/env.db")
	t.Setenv("NETUSAGE_IFACE", "eth0")

	opts := &rootOptions{
		db:    "/tmp/flag.db",
		tz:    "Europe/Istanbul",
		iface: "wlan0",
	}
	cfg, err := opts.config()
	require.NoError(t, err)

	require.Equal(t, "/tmp/flag.db", cfg.DBPath)
	require.Equal(t, "wlan0", cfg.Iface)
	require.Equal(t, "Europe/Istanbul", cfg.Timezone)
	require.Equal(t, "sqlite3", cfg.DBDriver)
}

func TestRootOptionsRejectInvalidConfig(t *testing.T) {
	clearEnv(t)

	opts := &rootOptions{driver: "oracle", tz: "Mars/Olympus"}
	_, err := opts.config()
	require.Error(t, err)
	require.Contains(t, err.Error(), "db_driver must be sqlite3 or pgx")
	require.Contains(t, err.Error(), "tz unknown timezone")
}

func TestExitCodes(t *testing.T) {
	require.Equal(t, exitCodeSuccess, exitCode(nil))
	require.Equal(t, exitCodeBadExpression, exitCode(fmt.Errorf("resolve window: %w", meter.ErrInvalidExpression)))
	require.Equal(t, exitCodeError, exitCode(errors.New("boom")))
}

func TestRenderReport(t *testing.T) {
	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)
	start := time.Date(2026, 8, 25, 0, 0, 0, 0, loc)

	rep := &meter.Report{
		Iface:   "eth0",
		Window:  meter.Window{Start: start, End: start.Add(24 * time.Hour)},
		Usage:   meter.UsageResult{RxBytes: 1536, TxBytes: 512, SufficientData: true},
		Samples: 12,
	}

	var buf bytes.Buffer
	renderReport(&buf, rep, meter.Expression{Day: "2026-08-25"}, loc)
	out := buf.String()

	require.Contains(t, out, "Interface: eth0")
	require.Contains(t, out, "(day 2026-08-25)")
	require.Contains(t, out, "Samples:   12")
	require.Contains(t, out, "Received:  1.5 KiB (1536 bytes)")
	require.Contains(t, out, "Sent:      512 B (512 bytes)")
	require.Contains(t, out, "Total:     2.0 KiB (2048 bytes)")
	require.NotContains(t, out, "insufficient data")
}

func TestRenderReportInsufficientData(t *testing.T) {
	loc := time.UTC
	start := time.Date(2026, 8, 25, 0, 0, 0, 0, loc)

	rep := &meter.Report{
		Iface:  "eth0",
		Window: meter.Window{Start: start, End: start.Add(time.Hour)},
		Usage:  meter.UsageResult{},
	}

	var buf bytes.Buffer
	renderReport(&buf, rep, meter.Expression{Last: "1h"}, loc)
	out := buf.String()

	require.Contains(t, out, "insufficient data")
	require.NotContains(t, out, "Received:")
}

func TestRenderReportHourlyTable(t *testing.T) {
	loc := time.UTC
	start := time.Date(2026, 8, 25, 0, 0, 0, 0, loc)

	rep := &meter.Report{
		Iface:   "eth0",
		Window:  meter.Window{Start: start, End: start.Add(2 * time.Hour)},
		Usage:   meter.UsageResult{RxBytes: 4096, TxBytes: 0, SufficientData: true},
		Samples: 3,
		Hourly: []meter.HourUsage{
			{Start: start, Usage: meter.UsageResult{RxBytes: 4096, SufficientData: true}},
			{Start: start.Add(time.Hour), Usage: meter.UsageResult{}},
		},
	}

	var buf bytes.Buffer
	renderReport(&buf, rep, meter.Expression{From: "2026-08-25T00:00", To: "2026-08-25T02:00"}, loc)
	out := buf.String()

	require.Contains(t, out, "Hour")
	require.Contains(t, out, "00:00")
	require.Contains(t, out, "4.0 KiB")
	require.Contains(t, out, "01:00")
	require.Contains(t, out, "-")
}
