package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/BemreSTR/net-usage/internal/counter"
	"github.com/BemreSTR/net-usage/internal/sampler"
	"github.com/BemreSTR/net-usage/internal/store"
)

func newSampleCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Read the interface counters once and store a sample",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
			}
			log := newLogger(cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			iface, err := resolveIface(ctx, cfg, log)
			if err != nil {
				return err
			}

			st, err := store.Open(ctx, cfg.DBDriver, cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			s, err := sampler.New(log, &sampler.Config{
				Iface:    iface,
				Interval: cfg.Interval,
				Clock:    clockwork.NewRealClock(),
				Source:   counter.NewSystemSource(),
				Store:    st,
			})
			if err != nil {
				return err
			}

			r, err := s.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sampled %s rx=%d tx=%d at %s\n",
				iface, r.RxBytes, r.TxBytes, r.Time.Format(time.RFC3339))
			return nil
		},
	}
}
