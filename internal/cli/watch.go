package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/BemreSTR/net-usage/internal/counter"
	"github.com/BemreSTR/net-usage/internal/httpapi"
	"github.com/BemreSTR/net-usage/internal/observability"
	"github.com/BemreSTR/net-usage/internal/sampler"
	"github.com/BemreSTR/net-usage/internal/store"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		interval    time.Duration
		metricsAddr string
		httpAddr    string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sample the interface counters on an interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				if interval <= 0 {
					return fmt.Errorf("invalid configuration: interval must be greater than 0")
				}
				cfg.Interval = interval
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}
			if cmd.Flags().Changed("http-addr") {
				cfg.HTTPAddr = httpAddr
			}
			log := newLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			loc, err := cfg.Location()
			if err != nil {
				return fmt.Errorf("load timezone: %w", err)
			}

			iface, err := resolveIface(ctx, cfg, log)
			if err != nil {
				return err
			}

			st, err := store.Open(ctx, cfg.DBDriver, cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			metrics := observability.NewMetrics(nil)

			var obs *observability.Server
			if cfg.MetricsAddr != "" {
				obs = observability.Start(ctx, cfg.MetricsAddr, log, metrics.Registry(), st.Ready)
			}
			if cfg.HTTPAddr != "" {
				api := httpapi.NewServer(log, st, metrics, loc, iface)
				srv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.Router()}
				go func() {
					log.Info("api server listening", "addr", cfg.HTTPAddr)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						log.Error("api server error", "error", err)
					}
				}()
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			s, err := sampler.New(log, &sampler.Config{
				Iface:    iface,
				Interval: cfg.Interval,
				Clock:    clockwork.NewRealClock(),
				Source:   counter.NewSystemSource(),
				Store:    st,
				Metrics:  metrics,
			})
			if err != nil {
				return err
			}

			runErr := s.Run(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Stop(shutdownCtx)
			return runErr
		},
	}

	f := cmd.Flags()
	f.DurationVar(&interval, "interval", 0, "sampling interval; overrides NETUSAGE_INTERVAL")
	f.StringVar(&metricsAddr, "metrics-addr", "", "Prometheus listen address; empty disables; overrides NETUSAGE_METRICS_ADDR")
	f.StringVar(&httpAddr, "http-addr", "", "report API listen address; empty disables; overrides NETUSAGE_HTTP_ADDR")
	return cmd
}
