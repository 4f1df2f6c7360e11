// Package counter reads the cumulative rx/tx byte counters the operating
// system keeps per network interface. On linux it parses /proc/net/dev and
// falls back to the per-interface sysfs statistics files; on darwin it
// shells out to netstat. Readings carry the wall-clock instant of the
// call, so the same interface sampled twice yields a usable delta.
package counter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/BemreSTR/net-usage/internal/meter"
)

// ErrInterfaceNotFound reports that the named interface does not exist on
// this host.
var ErrInterfaceNotFound = errors.New("interface not found")

// Source yields a reading of one interface's cumulative byte counters at
// the moment of the call.
type Source interface {
	Read(ctx context.Context, iface string) (meter.Reading, error)
}

// SystemSource reads counters from the host operating system.
type SystemSource struct {
	goos        string
	procNetDev  string
	sysClassNet string
	runCommand  func(ctx context.Context, name string, args ...string) ([]byte, error)
	now         func() time.Time
}

// NewSystemSource returns a Source wired to the real OS surfaces.
func NewSystemSource() *SystemSource {
	return &SystemSource{
		goos:        runtime.GOOS,
		procNetDev:  "/proc/net/dev",
		sysClassNet: "/sys/class/net",
		runCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
		now: time.Now,
	}
}

// Read returns the current counters for iface, stamped with the current
// time in UTC at whole-second precision.
func (s *SystemSource) Read(ctx context.Context, iface string) (meter.Reading, error) {
	if strings.TrimSpace(iface) == "" {
		return meter.Reading{}, fmt.Errorf("%w: empty interface name", ErrInterfaceNotFound)
	}
	var (
		rx, tx uint64
		err    error
	)
	if s.goos == "darwin" {
		rx, tx, err = s.readNetstat(ctx, iface)
	} else {
		rx, tx, err = s.readProcNetDev(iface)
	}
	if err != nil {
		return meter.Reading{}, err
	}
	return meter.Reading{
		Iface:   iface,
		Time:    s.now().UTC().Truncate(time.Second),
		RxBytes: rx,
		TxBytes: tx,
	}, nil
}

func (s *SystemSource) readProcNetDev(iface string) (uint64, uint64, error) {
	data, err := os.ReadFile(s.procNetDev)
	if err == nil {
		if rx, tx, ok := parseProcNetDev(data, iface); ok {
			return rx, tx, nil
		}
	}
	return s.readSysfs(iface)
}

func (s *SystemSource) readSysfs(iface string) (uint64, uint64, error) {
	rx, err := readCounterFile(filepath.Join(s.sysClassNet, iface, "statistics", "rx_bytes"))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, 0, fmt.Errorf("%w: %s", ErrInterfaceNotFound, iface)
		}
		return 0, 0, fmt.Errorf("read rx counter: %w", err)
	}
	tx, err := readCounterFile(filepath.Join(s.sysClassNet, iface, "statistics", "tx_bytes"))
	if err != nil {
		return 0, 0, fmt.Errorf("read tx counter: %w", err)
	}
	return rx, tx, nil
}

func (s *SystemSource) readNetstat(ctx context.Context, iface string) (uint64, uint64, error) {
	out, err := s.runCommand(ctx, "netstat", "-ib", "-I", iface)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// netstat exits non-zero for unknown interface names.
			return 0, 0, fmt.Errorf("%w: %s", ErrInterfaceNotFound, iface)
		}
		return 0, 0, fmt.Errorf("run netstat: %w", err)
	}
	rx, tx, ok := parseNetstat(out, iface)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrInterfaceNotFound, iface)
	}
	return rx, tx, nil
}

func readCounterFile(path string) (uint64, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(contents)), 10, 64)
}

// DetectDefault names the interface carrying the default route. A UDP dial
// selects a route without sending packets; the chosen source address is
// mapped back to its interface. Hosts without a route fall back to the
// first up, non-loopback interface that has an address.
func DetectDefault(ctx context.Context) (string, error) {
	if name, err := defaultByRoute(ctx); err == nil {
		return name, nil
	}
	return firstUpInterface()
}

func defaultByRoute(ctx context.Context) (string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", "8.8.8.8:53")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", fmt.Errorf("unexpected local address %T", conn.LocalAddr())
	}
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		addrs, _ := iface.Addrs()
		for _, a := range addrs {
			ipnet, _ := a.(*net.IPNet)
			if ipnet != nil && ipnet.IP.Equal(localAddr.IP) {
				return iface.Name, nil
			}
		}
	}
	return "", errors.New("no interface matches the default route source address")
}

func firstUpInterface() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil || len(addrs) == 0 {
			continue
		}
		return iface.Name, nil
	}
	return "", errors.New("no usable network interface found")
}
