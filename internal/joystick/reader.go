package joystick

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/smazurov/camwall/internal/events"
	"github.com/smazurov/camwall/internal/logging"
)

// DefaultDevice is the first joystick device node.
const DefaultDevice = "/dev/input/js0"

// Config configures a Reader.
type Config struct {
	Device        string        // device node, DefaultDevice when empty
	RetryInterval time.Duration // reopen attempts without hotplug, default 5s
	Bus           *events.Bus
	Logger        *slog.Logger
}

// Reader feeds a device's events into a State, reopening the device when
// it is unplugged and comes back.
type Reader struct {
	cfg   Config
	state *State
	open  func(path string) (io.ReadCloser, error)
}

// NewReader creates a reader for cfg.Device.
func NewReader(cfg Config, state *State) *Reader {
	if cfg.Device == "" {
		cfg.Device = DefaultDevice
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetLogger("joystick")
	}
	return &Reader{
		cfg:   cfg,
		state: state,
		open:  func(path string) (io.ReadCloser, error) { return os.Open(path) },
	}
}

// Run reads until ctx is done.
func (r *Reader) Run(ctx context.Context) error {
	plugged := r.watchHotplug(ctx)
	logger := r.cfg.Logger.With("device", r.cfg.Device)

	for {
		rc, err := r.open(r.cfg.Device)
		if err == nil {
			logger.Info("Joystick attached")
			r.publish(actionAttached)
			err = r.read(ctx, rc)
			r.state.Reset()
			r.publish(actionDetached)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("Joystick lost", "error", err)
		} else {
			logger.Debug("Joystick not available", "error", err)
		}

		timer := time.NewTimer(r.cfg.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-plugged:
			timer.Stop()
		case <-timer.C:
		}
	}
}

const (
	actionAttached = "attached"
	actionDetached = "detached"
)

func (r *Reader) publish(action string) {
	r.cfg.Bus.Publish(events.JoystickDeviceEvent{Device: r.cfg.Device, Action: action, Timestamp: events.Now()})
}

// read applies records from rc until it fails or ctx is done.
func (r *Reader) read(ctx context.Context, rc io.ReadCloser) error {
	stop := context.AfterFunc(ctx, func() { rc.Close() })
	defer func() {
		if stop() {
			rc.Close()
		}
	}()

	buf := make([]byte, EventSize)
	for {
		if _, err := io.ReadFull(rc, buf); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("device closed: %w", err)
			}
			return err
		}
		ev, _ := ParseEvent(buf)
		r.state.Apply(ev)
	}
}

// watchHotplug signals when the device node is added. Without netlink
// the reader falls back to polling.
func (r *Reader) watchHotplug(ctx context.Context) <-chan struct{} {
	plugged := make(chan struct{}, 1)

	mon, err := newHotplugMonitor()
	if err != nil {
		r.cfg.Logger.Debug("Hotplug monitor unavailable, polling for device", "error", err)
		return plugged
	}

	uevents := make(chan uevent, 8)
	go func() {
		defer mon.Close()
		if err := mon.Run(ctx, uevents); err != nil && !errors.Is(err, context.Canceled) {
			r.cfg.Logger.Warn("Hotplug monitor stopped", "error", err)
		}
	}()
	go func() {
		name := filepath.Base(r.cfg.Device)
		for ev := range uevents {
			if ev.Action != actionAdd || filepath.Base(ev.DevName) != name {
				continue
			}
			select {
			case plugged <- struct{}{}:
			default:
			}
		}
	}()
	return plugged
}
