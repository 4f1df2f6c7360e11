package meter

import "sort"

// ComputeUsage totals the byte deltas between consecutive readings for one
// window. The input must be ordered by time and may carry boundary context:
// the nearest reading before Start anchors the first in-window delta, the
// first reading at or after End closes the last one. Anything further
// outside the window is ignored. Fewer than two participating readings
// cannot produce a delta; the result then reports SufficientData=false with
// zero totals.
func ComputeUsage(readings []Reading, w Window) UsageResult {
	readings = clampToWindow(readings, w)
	if len(readings) < 2 {
		return UsageResult{}
	}
	var rx, tx uint64
	prev := readings[0]
	for _, cur := range readings[1:] {
		rx += counterDelta(prev.RxBytes, cur.RxBytes)
		tx += counterDelta(prev.TxBytes, cur.TxBytes)
		prev = cur
	}
	return UsageResult{RxBytes: rx, TxBytes: tx, SufficientData: true}
}

// counterDelta returns the bytes accumulated between two successive counter
// values. A decrease means the counter restarted; the later value is then
// the accumulation since the restart. Never negative, never an error.
func counterDelta(prev, cur uint64) uint64 {
	if cur >= prev {
		return cur - prev
	}
	return cur
}

// clampToWindow narrows an ordered sequence to the readings inside
// [w.Start, w.End) plus at most one anchor on each side.
func clampToWindow(readings []Reading, w Window) []Reading {
	n := len(readings)
	lo := sort.Search(n, func(i int) bool { return !readings[i].Time.Before(w.Start) })
	hi := sort.Search(n, func(i int) bool { return !readings[i].Time.Before(w.End) })
	if lo > 0 {
		lo--
	}
	if hi < n {
		hi++
	}
	return readings[lo:hi]
}
