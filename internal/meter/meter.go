// Package meter holds the accounting core: counter readings, reporting
// windows, and the reset-safe delta arithmetic between them. Everything in
// this package is pure computation over data the caller already fetched.
package meter

import (
	"errors"
	"time"
)

// Reading is one observation of an interface's cumulative byte counters.
// Counter values are not monotonic across readings: they fall back toward
// zero when the interface or the host restarts.
type Reading struct {
	Iface   string
	Time    time.Time
	RxBytes uint64
	TxBytes uint64
}

// Window is a half-open [Start, End) instant range. End may lie in the
// future; no readings exist past the present, so the result simply covers
// what was recorded.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) Duration() time.Duration { return w.End.Sub(w.Start) }

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// UsageResult is the usage computed for one window. SufficientData
// distinguishes "zero traffic, confidently measured" from "too few readings
// to measure anything"; when it is false both totals are zero and callers
// must report the condition instead of a bare zero.
type UsageResult struct {
	RxBytes        uint64
	TxBytes        uint64
	SufficientData bool
}

func (u UsageResult) Total() uint64 { return u.RxBytes + u.TxBytes }

// HourUsage is one hourly bucket of a day report.
type HourUsage struct {
	Start time.Time
	Usage UsageResult
}

// Report is the report builder's output for one window.
type Report struct {
	Iface   string
	Window  Window
	Usage   UsageResult
	Hourly  []HourUsage
	Samples int
}

// ErrInvalidExpression marks a malformed or ambiguous window request.
// Callers match it with errors.Is; the wrapped message carries the detail.
var ErrInvalidExpression = errors.New("invalid window expression")
