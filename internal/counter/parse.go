package counter

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
)

// parseProcNetDev extracts the cumulative byte counters for iface from
// /proc/net/dev contents. The first two lines are headers; data lines read
// "<name>: <fields>" where field 0 is rx bytes and field 8 is tx bytes.
func parseProcNetDev(data []byte, iface string) (rx, tx uint64, ok bool) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		if lineNo <= 2 {
			continue
		}
		name, rest, found := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !found || strings.TrimSpace(name) != iface {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) < 9 {
			return 0, 0, false
		}
		rxv, rxErr := strconv.ParseUint(fields[0], 10, 64)
		txv, txErr := strconv.ParseUint(fields[8], 10, 64)
		if rxErr != nil || txErr != nil {
			return 0, 0, false
		}
		return rxv, txv, true
	}
	return 0, 0, false
}

// parseNetstat sums the Ibytes/Obytes columns of `netstat -ib` output over
// the rows whose first column equals iface (netstat prints one row per
// configured address). Column positions come from the header line; when
// the header lacks the named columns, counters sit fourth and third from
// the row end.
func parseNetstat(out []byte, iface string) (rx, tx uint64, ok bool) {
	var lines []string
	for _, l := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	headerIdx := -1
	for i, l := range lines {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(l)), "name") {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return 0, 0, false
	}
	cols := strings.Fields(lines[headerIdx])
	rxCol := columnIndex(cols, "ibytes")
	txCol := columnIndex(cols, "obytes")
	for _, l := range lines[headerIdx+1:] {
		fields := strings.Fields(l)
		if len(fields) == 0 || fields[0] != iface {
			continue
		}
		ri := resolveColumn(rxCol, -4, len(fields))
		ti := resolveColumn(txCol, -3, len(fields))
		if ri < 0 || ti < 0 {
			continue
		}
		rv, rxErr := strconv.ParseUint(fields[ri], 10, 64)
		tv, txErr := strconv.ParseUint(fields[ti], 10, 64)
		if rxErr != nil || txErr != nil {
			continue
		}
		rx += rv
		tx += tv
		ok = true
	}
	return rx, tx, ok
}

func columnIndex(cols []string, name string) int {
	for i, c := range cols {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// resolveColumn turns a header column index, or a fallback offset from the
// row end when the header lookup failed, into a bounded index for one row.
func resolveColumn(headerIdx, fallback, n int) int {
	idx := headerIdx
	if idx < 0 {
		idx = n + fallback
	}
	if idx < 0 || idx >= n {
		return -1
	}
	return idx
}
