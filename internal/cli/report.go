package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jonboulle/clockwork"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/BemreSTR/net-usage/internal/counter"
	"github.com/BemreSTR/net-usage/internal/meter"
	"github.com/BemreSTR/net-usage/internal/sampler"
	"github.com/BemreSTR/net-usage/internal/store"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		day    string
		from   string
		to     string
		last   string
		since  string
		hourly bool
		update bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Report usage for a time window",
		Long: `Report computes rx/tx byte usage for one window from the stored samples.
Exactly one window expression is required: --day, --from/--to, --last or
--since. Windows are half-open: the start instant is included, the end is
not.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return err
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

			if update {
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
				if _, err := s.RunOnce(ctx); err != nil {
					return err
				}
			}

			expr := meter.Expression{Day: day, From: from, To: to, Last: last, Since: since}
			win, err := meter.ResolveWindow(expr, loc, time.Now())
			if err != nil {
				return err
			}

			rep, err := meter.NewBuilder(st).Build(ctx, iface, win, hourly)
			if err != nil {
				return err
			}
			renderReport(cmd.OutOrStdout(), rep, expr, loc)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&day, "day", "", "calendar day, YYYY-MM-DD")
	f.StringVar(&from, "from", "", "window start, ISO 8601; requires --to")
	f.StringVar(&to, "to", "", "window end, ISO 8601; requires --from")
	f.StringVar(&last, "last", "", "relative window ending now, e.g. 30m, 24h, 7d, 2w")
	f.StringVar(&since, "since", "", "window from a date or instant to now")
	f.BoolVar(&hourly, "hourly", false, "break the window into hourly buckets")
	f.BoolVar(&update, "update", false, "store a fresh sample before reporting")
	return cmd
}

func renderReport(w io.Writer, rep *meter.Report, expr meter.Expression, loc *time.Location) {
	fmt.Fprintf(w, "Interface: %s\n", rep.Iface)
	fmt.Fprintf(w, "Window:    %s .. %s (%s)\n",
		rep.Window.Start.In(loc).Format(time.RFC3339),
		rep.Window.End.In(loc).Format(time.RFC3339),
		expr)
	fmt.Fprintf(w, "Samples:   %d\n", rep.Samples)

	if !rep.Usage.SufficientData {
		fmt.Fprintln(w, "insufficient data: fewer than two samples cover this window")
		return
	}

	fmt.Fprintf(w, "Received:  %s (%d bytes)\n", humanize.IBytes(rep.Usage.RxBytes), rep.Usage.RxBytes)
	fmt.Fprintf(w, "Sent:      %s (%d bytes)\n", humanize.IBytes(rep.Usage.TxBytes), rep.Usage.TxBytes)
	fmt.Fprintf(w, "Total:     %s (%d bytes)\n", humanize.IBytes(rep.Usage.Total()), rep.Usage.Total())

	if len(rep.Hourly) == 0 {
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetRowLine(true)
	table.SetHeader([]string{"Hour", "Received", "Sent", "Total"})
	for _, h := range rep.Hourly {
		if !h.Usage.SufficientData {
			table.Append([]string{h.Start.In(loc).Format("15:04"), "-", "-", "-"})
			continue
		}
		table.Append([]string{
			h.Start.In(loc).Format("15:04"),
			humanize.IBytes(h.Usage.RxBytes),
			humanize.IBytes(h.Usage.TxBytes),
			humanize.IBytes(h.Usage.Total()),
		})
	}
	table.Render()
}
