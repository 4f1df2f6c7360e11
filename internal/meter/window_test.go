package meter

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
)

func TestResolveWindowLast(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	cases := []struct {
		expr string
		want time.Duration
	}{
		{expr: "1h", want: time.Hour},
		{expr: "30m", want: 30 * time.Minute},
		{expr: "24h", want: 24 * time.Hour},
		{expr: "7d", want: 7 * 24 * time.Hour},
		{expr: "2w", want: 14 * 24 * time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.expr, func(t *testing.T) {
			w, err := ResolveWindow(Expression{Last: tc.expr}, time.UTC, now)
			require.NoError(t, err)
			require.True(t, w.End.Equal(now))
			require.True(t, w.Start.Equal(now.Add(-tc.want)))
		})
	}
}

func TestResolveWindowLastRejectsMalformed(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0).UTC()
	for _, expr := range []string{"", "h", "0h", "-5m", "1x", "abc", "1.5h"} {
		w, err := ResolveWindow(Expression{Last: expr}, time.UTC, now)
		require.ErrorIs(t, err, ErrInvalidExpression, "expr %q", expr)
		require.Zero(t, w)
	}
}

func TestResolveWindowDayUsesZoneMidnight(t *testing.T) {
	t.Parallel()

	ist, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	w, err := ResolveWindow(Expression{Day: "2025-11-02"}, ist, now)
	require.NoError(t, err)

	require.True(t, w.Start.Equal(time.Date(2025, 11, 2, 0, 0, 0, 0, ist)))
	// Istanbul runs at a fixed UTC+3.
	require.True(t, w.Start.Equal(time.Date(2025, 11, 1, 21, 0, 0, 0, time.UTC)))
	require.Equal(t, 24*time.Hour, w.Duration())
}

func TestResolveWindowFromTo(t *testing.T) {
	t.Parallel()

	ist, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)
	now := time.Unix(1700000000, 0).UTC()

	t.Run("explicit offsets pass through", func(t *testing.T) {
		w, err := ResolveWindow(Expression{From: "2025-11-02T09:00:00+03:00", To: "2025-11-02T18:30:00+03:00"}, ist, now)
		require.NoError(t, err)
		require.True(t, w.Start.Equal(time.Date(2025, 11, 2, 6, 0, 0, 0, time.UTC)))
		require.True(t, w.End.Equal(time.Date(2025, 11, 2, 15, 30, 0, 0, time.UTC)))
	})

	t.Run("offset free instants anchor in zone", func(t *testing.T) {
		w, err := ResolveWindow(Expression{From: "2025-11-02T09:00:00", To: "2025-11-02 18:30"}, ist, now)
		require.NoError(t, err)
		require.True(t, w.Start.Equal(time.Date(2025, 11, 2, 9, 0, 0, 0, ist)))
		require.True(t, w.End.Equal(time.Date(2025, 11, 2, 18, 30, 0, 0, ist)))
	})

	t.Run("to must be after from", func(t *testing.T) {
		_, err := ResolveWindow(Expression{From: "2025-11-02T09:00:00", To: "2025-11-02T09:00:00"}, ist, now)
		require.ErrorIs(t, err, ErrInvalidExpression)
	})

	t.Run("from without to", func(t *testing.T) {
		_, err := ResolveWindow(Expression{From: "2025-11-02T09:00:00"}, ist, now)
		require.ErrorIs(t, err, ErrInvalidExpression)
	})
}

func TestResolveWindowSince(t *testing.T) {
	t.Parallel()

	ist, err := time.LoadLocation("Europe/Istanbul")
	require.NoError(t, err)
	now := time.Date(2025, 11, 5, 14, 0, 0, 0, time.UTC)

	t.Run("date only starts at zone midnight", func(t *testing.T) {
		w, err := ResolveWindow(Expression{Since: "2025-11-01"}, ist, now)
		require.NoError(t, err)
		require.True(t, w.Start.Equal(time.Date(2025, 11, 1, 0, 0, 0, 0, ist)))
		require.True(t, w.End.Equal(now))
	})

	t.Run("full timestamp used as given", func(t *testing.T) {
		w, err := ResolveWindow(Expression{Since: "2025-11-02T18:30:00"}, ist, now)
		require.NoError(t, err)
		require.True(t, w.Start.Equal(time.Date(2025, 11, 2, 18, 30, 0, 0, ist)))
		require.True(t, w.End.Equal(now))
	})
}

func TestResolveWindowExclusiveForms(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0).UTC()

	t.Run("no expression", func(t *testing.T) {
		_, err := ResolveWindow(Expression{}, time.UTC, now)
		require.ErrorIs(t, err, ErrInvalidExpression)
	})

	t.Run("day with from/to", func(t *testing.T) {
		expr := Expression{Day: "2025-11-02", From: "2025-11-02T00:00:00", To: "2025-11-03T00:00:00"}
		_, err := ResolveWindow(expr, time.UTC, now)
		require.ErrorIs(t, err, ErrInvalidExpression)
	})

	t.Run("last with since", func(t *testing.T) {
		_, err := ResolveWindow(Expression{Last: "1h", Since: "2025-11-02"}, time.UTC, now)
		require.ErrorIs(t, err, ErrInvalidExpression)
	})
}
