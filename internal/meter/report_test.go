package meter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	readings []Reading // ordered by time
	err      error
}

func (f *fakeStore) QueryRange(ctx context.Context, iface string, start, end time.Time) ([]Reading, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []Reading
	for _, r := range f.readings {
		if r.Iface != iface {
			continue
		}
		if !r.Time.Before(start) && r.Time.Before(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) NearestBefore(ctx context.Context, iface string, t time.Time) (*Reading, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := len(f.readings) - 1; i >= 0; i-- {
		r := f.readings[i]
		if r.Iface == iface && r.Time.Before(t) {
			return &r, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) NearestAtOrAfter(ctx context.Context, iface string, t time.Time) (*Reading, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, r := range f.readings {
		if r.Iface == iface && !r.Time.Before(t) {
			return &r, nil
		}
	}
	return nil, nil
}

func TestBuilderBuildUsesBoundaryAnchors(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 11, 2, 12, 0, 0, 0, time.UTC)
	store := &fakeStore{readings: []Reading{
		{Iface: "eth0", Time: base.Add(-time.Minute), RxBytes: 1000, TxBytes: 100},
		{Iface: "eth0", Time: base.Add(time.Minute), RxBytes: 1600, TxBytes: 130},
		{Iface: "eth0", Time: base.Add(2 * time.Minute), RxBytes: 2000, TxBytes: 150},
		{Iface: "eth0", Time: base.Add(10 * time.Minute), RxBytes: 2600, TxBytes: 180},
		{Iface: "wlan0", Time: base.Add(time.Minute), RxBytes: 77, TxBytes: 77},
	}}

	b := NewBuilder(store)
	rep, err := b.Build(context.Background(), "eth0", Window{Start: base, End: base.Add(5 * time.Minute)}, false)
	require.NoError(t, err)

	// 1000 -> 1600 -> 2000 from the leading anchor, closed by 2600.
	require.True(t, rep.Usage.SufficientData)
	require.Equal(t, uint64(1600), rep.Usage.RxBytes)
	require.Equal(t, uint64(80), rep.Usage.TxBytes)
	require.Equal(t, 2, rep.Samples, "boundary anchors are not in-window samples")
}

func TestBuilderHourlyBreakdownCoversDay(t *testing.T) {
	t.Parallel()

	ist, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)
	day := time.Date(2025, 11, 2, 0, 0, 0, 0, ist)

	store := &fakeStore{readings: []Reading{
		{Iface: "eth0", Time: day.Add(10 * time.Hour), RxBytes: 0, TxBytes: 0},
		{Iface: "eth0", Time: day.Add(10*time.Hour + 30*time.Minute), RxBytes: 600, TxBytes: 60},
		{Iface: "eth0", Time: day.Add(11 * time.Hour), RxBytes: 1000, TxBytes: 100},
	}}

	b := NewBuilder(store)
	rep, err := b.Build(context.Background(), "eth0", Window{Start: day, End: day.Add(24 * time.Hour)}, true)
	require.NoError(t, err)

	require.Len(t, rep.Hourly, 24)
	for i, hu := range rep.Hourly {
		require.True(t, hu.Start.Equal(day.Add(time.Duration(i)*time.Hour)))
	}

	require.Equal(t, uint64(1000), rep.Usage.RxBytes)

	// Hours without at least a bracketing pair are insufficient, not zero.
	require.False(t, rep.Hourly[9].Usage.SufficientData)
	require.True(t, rep.Hourly[10].Usage.SufficientData)
	require.Equal(t, uint64(1000), rep.Hourly[10].Usage.RxBytes)
	require.True(t, rep.Hourly[11].Usage.SufficientData)
	require.Equal(t, uint64(400), rep.Hourly[11].Usage.RxBytes)
	require.False(t, rep.Hourly[12].Usage.SufficientData)
}

func TestBuilderSurfacesInsufficientData(t *testing.T) {
	t.Parallel()

	base := time.Unix(1700000000, 0).UTC()
	store := &fakeStore{readings: []Reading{
		{Iface: "eth0", Time: base, RxBytes: 1000, TxBytes: 100},
	}}

	b := NewBuilder(store)
	rep, err := b.Build(context.Background(), "eth0", Window{Start: base, End: base.Add(time.Minute)}, false)
	require.NoError(t, err)
	require.False(t, rep.Usage.SufficientData)
	require.Zero(t, rep.Usage.RxBytes)
	require.Equal(t, 1, rep.Samples)
}

func TestBuilderPropagatesStoreErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("store unavailable")
	b := NewBuilder(&fakeStore{err: boom})

	base := time.Unix(1700000000, 0).UTC()
	_, err := b.Build(context.Background(), "eth0", Window{Start: base, End: base.Add(time.Minute)}, false)
	require.ErrorIs(t, err, boom)
}
