package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BemreSTR/net-usage/internal/meter"
)

// Append records one reading. Timestamps are stored as whole unix seconds.
func (s *Store) Append(ctx context.Context, r meter.Reading) error {
	const q = `INSERT INTO samples (ts, iface, rx_bytes, tx_bytes) VALUES ($1, $2, $3, $4)`
	return s.withWriteRetry(ctx, func() error {
		_, err := s.conn.ExecContext(ctx, q, r.Time.Unix(), r.Iface, int64(r.RxBytes), int64(r.TxBytes))
		if err != nil {
			return fmt.Errorf("insert sample: %w", err)
		}
		return nil
	})
}

// QueryRange returns the readings with timestamp in [start, end), ordered
// by time.
func (s *Store) QueryRange(ctx context.Context, iface string, start, end time.Time) ([]meter.Reading, error) {
	const q = `SELECT ts, iface, rx_bytes, tx_bytes FROM samples
                WHERE iface = $1 AND ts >= $2 AND ts < $3
                ORDER BY ts ASC`
	rows, err := s.conn.QueryContext(ctx, q, iface, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("query sample range: %w", err)
	}
	defer rows.Close()

	var out []meter.Reading
	for rows.Next() {
		r, err := scanReading(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read sample range: %w", err)
	}
	return out, nil
}

// NearestBefore returns the last reading strictly before t, or nil when the
// table holds none.
func (s *Store) NearestBefore(ctx context.Context, iface string, t time.Time) (*meter.Reading, error) {
	const q = `SELECT ts, iface, rx_bytes, tx_bytes FROM samples
                WHERE iface = $1 AND ts < $2
                ORDER BY ts DESC LIMIT 1`
	return s.queryOne(ctx, q, iface, t.Unix())
}

// NearestAtOrAfter returns the first reading at or after t, or nil when the
// table holds none.
func (s *Store) NearestAtOrAfter(ctx context.Context, iface string, t time.Time) (*meter.Reading, error) {
	const q = `SELECT ts, iface, rx_bytes, tx_bytes FROM samples
                WHERE iface = $1 AND ts >= $2
                ORDER BY ts ASC LIMIT 1`
	return s.queryOne(ctx, q, iface, t.Unix())
}

// LatestSample returns the most recent reading for the interface, or nil.
func (s *Store) LatestSample(ctx context.Context, iface string) (*meter.Reading, error) {
	const q = `SELECT ts, iface, rx_bytes, tx_bytes FROM samples
                WHERE iface = $1
                ORDER BY ts DESC LIMIT 1`
	return s.queryOne(ctx, q, iface)
}

// CountSamples returns the number of stored readings for the interface.
func (s *Store) CountSamples(ctx context.Context, iface string) (int64, error) {
	const q = `SELECT COUNT(*) FROM samples WHERE iface = $1`
	var n int64
	if err := s.conn.QueryRowContext(ctx, q, iface).Scan(&n); err != nil {
		return 0, fmt.Errorf("count samples: %w", err)
	}
	return n, nil
}

func (s *Store) queryOne(ctx context.Context, q string, args ...any) (*meter.Reading, error) {
	row := s.conn.QueryRowContext(ctx, q, args...)
	r, err := scanReading(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query sample: %w", err)
	}
	return &r, nil
}

func scanReading(scan func(dest ...any) error) (meter.Reading, error) {
	var (
		ts, rx, tx int64
		iface      string
	)
	if err := scan(&ts, &iface, &rx, &tx); err != nil {
		return meter.Reading{}, err
	}
	return meter.Reading{
		Iface:   iface,
		Time:    time.Unix(ts, 0).UTC(),
		RxBytes: uint64(rx),
		TxBytes: uint64(tx),
	}, nil
}
