// Package cli wires the netusage commands: one-shot sampling, the watch
// daemon, and window reports.
package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BemreSTR/net-usage/internal/config"
	"github.com/BemreSTR/net-usage/internal/counter"
	"github.com/BemreSTR/net-usage/internal/logging"
	"github.com/BemreSTR/net-usage/internal/meter"
)

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
	// Malformed window expressions get their own exit code so scripts can
	// tell usage errors from runtime failures.
	exitCodeBadExpression = 2
)

// Run executes the root command and maps errors to exit codes.
func Run() int {
	return exitCode(NewRootCmd().Execute())
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitCodeSuccess
	case errors.Is(err, meter.ErrInvalidExpression):
		return exitCodeBadExpression
	default:
		return exitCodeError
	}
}

type rootOptions struct {
	db        string
	driver    string
	iface     string
	tz        string
	logLevel  string
	logFormat string
}

// config merges the environment configuration with flag overrides.
func (o *rootOptions) config() (config.Config, error) {
	cfg := config.Load()
	if o.db != "" {
		cfg.DBPath = o.db
	}
	if o.driver != "" {
		cfg.DBDriver = o.driver
	}
	if o.iface != "" {
		cfg.Iface = o.iface
	}
	if o.tz != "" {
		cfg.Timezone = o.tz
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return cfg, fmt.Errorf("invalid configuration: %s", formatProblems(problems))
	}
	return cfg, nil
}

func formatProblems(problems map[string]string) string {
	keys := make([]string, 0, len(problems))
	for k := range problems {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s %s", k, problems[k]))
	}
	return strings.Join(parts, "; ")
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "netusage",
		Short: "Track network interface usage from periodic counter samples",
		Long: `netusage samples an interface's cumulative rx/tx byte counters into a
local database and reports how much data was used in a time window,
surviving counter resets across reboots.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.db, "db", "", "database path (sqlite3) or DSN (pgx); overrides NETUSAGE_DB")
	pf.StringVar(&opts.driver, "driver", "", "database driver, sqlite3 or pgx; overrides NETUSAGE_DB_DRIVER")
	pf.StringVar(&opts.iface, "iface", "", "interface to track; auto-detected when empty")
	pf.StringVar(&opts.tz, "tz", "", "timezone for calendar expressions, e.g. Europe/Istanbul; overrides NETUSAGE_TZ")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&opts.logFormat, "log-format", "", "log format: console or json")

	cmd.AddCommand(
		newSampleCmd(opts),
		newWatchCmd(opts),
		newReportCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newLogger(cfg config.Config) *logging.Logger {
	return logging.New("netusage", cfg.LogLevel, cfg.LogFormat)
}

// resolveIface applies the configured interface or falls back to default
// route detection.
func resolveIface(ctx context.Context, cfg config.Config, log *logging.Logger) (string, error) {
	if cfg.Iface != "" {
		return cfg.Iface, nil
	}
	iface, err := counter.DetectDefault(ctx)
	if err != nil {
		return "", fmt.Errorf("detect default interface: %w", err)
	}
	log.Info("detected default interface", "iface", iface)
	return iface, nil
}
