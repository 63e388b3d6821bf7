//go:build linux

package joystick

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"syscall"
)

const (
	subsystemInput = "input"

	// netlinkKobjectUEvent is the netlink protocol for kernel object events.
	netlinkKobjectUEvent = 15
)

// uevent is a kernel device event.
type uevent struct {
	Action    string
	KObj      string
	Subsystem string
	DevName   string // relative to /dev, e.g. "input/js0"
	Env       map[string]string
}

// hotplugMonitor listens for input device uevents over netlink.
type hotplugMonitor struct {
	fd int
}

func newHotplugMonitor() (*hotplugMonitor, error) {
	fd, err := syscall.Socket(syscall.AF_NETLINK, syscall.SOCK_DGRAM|syscall.SOCK_CLOEXEC, netlinkKobjectUEvent)
	if err != nil {
		return nil, err
	}
	addr := &syscall.SockaddrNetlink{Family: syscall.AF_NETLINK, Groups: 1}
	if err := syscall.Bind(fd, addr); err != nil {
		syscall.Close(fd)
		return nil, err
	}
	// Short receive timeout so Run notices cancellation.
	tv := syscall.Timeval{Sec: 1}
	if err := syscall.SetsockoptTimeval(fd, syscall.SOL_SOCKET, syscall.SO_RCVTIMEO, &tv); err != nil {
		syscall.Close(fd)
		return nil, err
	}
	return &hotplugMonitor{fd: fd}, nil
}

func (m *hotplugMonitor) Close() error {
	return syscall.Close(m.fd)
}

// Run sends joystick add and remove events until ctx is done. The channel
// is closed when Run returns.
func (m *hotplugMonitor) Run(ctx context.Context, out chan<- uevent) error {
	defer close(out)

	buf := make([]byte, 8192)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, _, err := syscall.Recvfrom(m.fd, buf, 0)
		if err != nil {
			if errors.Is(err, syscall.EAGAIN) || errors.Is(err, syscall.EINTR) {
				continue
			}
			return err
		}

		ev := parseUEvent(buf[:n])
		if ev == nil || !isJoystick(*ev) {
			continue
		}
		select {
		case out <- *ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func isJoystick(ev uevent) bool {
	if ev.Subsystem != subsystemInput || (ev.Action != actionAdd && ev.Action != actionRemove) {
		return false
	}
	name := ev.DevName
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return strings.HasPrefix(name, "js")
}

// parseUEvent parses "ACTION@KOBJ\0KEY=VALUE\0...", skipping a libudev
// header when present.
func parseUEvent(data []byte) *uevent {
	if bytes.HasPrefix(data, []byte("libudev")) {
		for i := 0; i < len(data)-1; i++ {
			if data[i] != 0 {
				continue
			}
			rest := data[i+1:]
			if at := bytes.IndexByte(rest, '@'); at > 0 && at < 20 {
				data = rest
				break
			}
		}
	}

	parts := bytes.Split(data, []byte{0})
	if len(parts) == 0 || len(parts[0]) == 0 {
		return nil
	}
	header := string(parts[0])
	at := strings.IndexByte(header, '@')
	if at < 1 {
		return nil
	}

	ev := &uevent{Action: header[:at], KObj: header[at+1:], Env: make(map[string]string)}
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(string(part), "=")
		if !ok || key == "" {
			continue
		}
		ev.Env[key] = value
		switch key {
		case "SUBSYSTEM":
			ev.Subsystem = value
		case "DEVNAME":
			ev.DevName = value
		}
	}
	return ev
}
