// Package sampler appends one counter reading per tick to the sample
// store. A tick is a single read plus a single append; cancellation takes
// effect between ticks, so stopping the sampler never leaves a partial
// write behind.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/BemreSTR/net-usage/internal/counter"
	"github.com/BemreSTR/net-usage/internal/logging"
	"github.com/BemreSTR/net-usage/internal/meter"
	"github.com/BemreSTR/net-usage/internal/observability"
)

// Store is the slice of the sample store the sampler needs.
type Store interface {
	Append(ctx context.Context, r meter.Reading) error
}

type Config struct {
	Iface    string
	Interval time.Duration
	Clock    clockwork.Clock
	Source   counter.Source
	Store    Store
	Metrics  *observability.Metrics
}

func (cfg *Config) Validate() error {
	if cfg.Iface == "" {
		return errors.New("interface is required")
	}
	if cfg.Interval <= 0 {
		return errors.New("interval must be greater than 0")
	}
	if cfg.Clock == nil {
		return errors.New("clock is required")
	}
	if cfg.Source == nil {
		return errors.New("counter source is required")
	}
	if cfg.Store == nil {
		return errors.New("sample store is required")
	}
	return nil
}

type Sampler struct {
	log *logging.Logger
	cfg *Config
}

// New builds a sampler. Every run gets a fresh id so overlapping daemons
// can be told apart in logs.
func New(log *logging.Logger, cfg *Config) (*Sampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sampler{
		log: log.WithIface(cfg.Iface).With("run_id", uuid.NewString()),
		cfg: cfg,
	}, nil
}

// RunOnce takes a single sample and stores it. The one-shot sample command
// and every timer tick share this path.
func (s *Sampler) RunOnce(ctx context.Context) (meter.Reading, error) {
	reading, err := s.cfg.Source.Read(ctx, s.cfg.Iface)
	if err != nil {
		s.recordError("read")
		return meter.Reading{}, fmt.Errorf("read %s counters: %w", s.cfg.Iface, err)
	}
	if err := s.cfg.Store.Append(ctx, reading); err != nil {
		s.recordError("append")
		return meter.Reading{}, fmt.Errorf("append sample: %w", err)
	}
	return reading, nil
}

// Run samples immediately, then once per interval until ctx is cancelled.
// Tick failures are logged and counted, never fatal.
func (s *Sampler) Run(ctx context.Context) error {
	s.log.Info("sampler starting", "interval", s.cfg.Interval)

	ticker := s.cfg.Clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sampler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			s.tick(ctx)
		}
	}
}

func (s *Sampler) tick(ctx context.Context) {
	started := s.cfg.Clock.Now()
	reading, err := s.RunOnce(ctx)
	if err != nil {
		s.log.Error("sampling tick failed", "error", err)
		return
	}
	took := s.cfg.Clock.Now().Sub(started)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ObserveSample(s.cfg.Iface, reading.RxBytes, reading.TxBytes, reading.Time, took)
	}
	s.log.Debug("sample stored", "rx_bytes", reading.RxBytes, "tx_bytes", reading.TxBytes, "took", took)
}

func (s *Sampler) recordError(stage string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordSampleError(s.cfg.Iface, stage)
	}
}
