package meter

import (
	"context"
	"fmt"
	"time"
)

// SampleSource is the slice of the sample store the report builder reads.
type SampleSource interface {
	QueryRange(ctx context.Context, iface string, start, end time.Time) ([]Reading, error)
	NearestBefore(ctx context.Context, iface string, t time.Time) (*Reading, error)
	NearestAtOrAfter(ctx context.Context, iface string, t time.Time) (*Reading, error)
}

// Builder composes store fetches and the delta engine into reports.
type Builder struct {
	store SampleSource
}

func NewBuilder(store SampleSource) *Builder {
	return &Builder{store: store}
}

// Build computes usage for one window, with a per-hour breakdown when
// hourly is set. Each computation fetches the in-window readings plus the
// nearest anchor on either side, so usage crossing a boundary lands in the
// window the closing reading was fetched for.
func (b *Builder) Build(ctx context.Context, iface string, w Window, hourly bool) (*Report, error) {
	usage, samples, err := b.usageFor(ctx, iface, w)
	if err != nil {
		return nil, err
	}
	rep := &Report{Iface: iface, Window: w, Usage: usage, Samples: samples}
	if !hourly {
		return rep, nil
	}

	for start := w.Start; start.Before(w.End); start = start.Add(time.Hour) {
		end := start.Add(time.Hour)
		if end.After(w.End) {
			end = w.End
		}
		hu, _, err := b.usageFor(ctx, iface, Window{Start: start, End: end})
		if err != nil {
			return nil, err
		}
		rep.Hourly = append(rep.Hourly, HourUsage{Start: start, Usage: hu})
	}
	return rep, nil
}

func (b *Builder) usageFor(ctx context.Context, iface string, w Window) (UsageResult, int, error) {
	rows, err := b.store.QueryRange(ctx, iface, w.Start, w.End)
	if err != nil {
		return UsageResult{}, 0, fmt.Errorf("query samples for %s: %w", iface, err)
	}
	seq := make([]Reading, 0, len(rows)+2)

	before, err := b.store.NearestBefore(ctx, iface, w.Start)
	if err != nil {
		return UsageResult{}, 0, fmt.Errorf("nearest sample before %s: %w", w.Start.Format(time.RFC3339), err)
	}
	if before != nil {
		seq = append(seq, *before)
	}
	seq = append(seq, rows...)

	after, err := b.store.NearestAtOrAfter(ctx, iface, w.End)
	if err != nil {
		return UsageResult{}, 0, fmt.Errorf("nearest sample after %s: %w", w.End.Format(time.RFC3339), err)
	}
	if after != nil {
		seq = append(seq, *after)
	}

	return ComputeUsage(seq, w), len(rows), nil
}
