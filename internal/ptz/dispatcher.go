package ptz

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/smazurov/camwall/internal/events"
	"github.com/smazurov/camwall/internal/logging"
)

const defaultCommandTimeout = 2 * time.Second

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Bindings       map[int]Binding // DefaultBindings when nil
	Selector       Selector        // camera list for next/previous, optional
	Bus            *events.Bus
	Logger         *slog.Logger
	CommandTimeout time.Duration // per command, default 2s
}

// Dispatcher maps button transitions to commands for the focused camera.
// It keeps the pressed state of every button so that a press runs its
// binding once and a release undoes it once, whatever the device repeats.
type Dispatcher struct {
	ctrl     Controller
	selector Selector
	bindings map[int]Binding
	bus      *events.Bus
	logger   *slog.Logger
	timeout  time.Duration

	focus atomic.Pointer[string]

	mu      sync.Mutex
	pressed map[int]bool
}

// NewDispatcher creates a dispatcher sending commands to ctrl.
func NewDispatcher(ctrl Controller, opts DispatcherOptions) *Dispatcher {
	if opts.Bindings == nil {
		opts.Bindings = DefaultBindings()
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("ptz")
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}
	return &Dispatcher{
		ctrl:     ctrl,
		selector: opts.Selector,
		bindings: opts.Bindings,
		bus:      opts.Bus,
		logger:   opts.Logger,
		timeout:  opts.CommandTimeout,
		pressed:  make(map[int]bool),
	}
}

// Controller returns the controller commands are sent to.
func (d *Dispatcher) Controller() Controller { return d.ctrl }

// Focus returns the camera under control, or "" when none is.
func (d *Dispatcher) Focus() string {
	if p := d.focus.Load(); p != nil {
		return *p
	}
	return ""
}

// SetFocus moves control to camera and returns the previous focus. Any
// motion held on the previous camera is stopped and every button is
// treated as released.
func (d *Dispatcher) SetFocus(camera string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	return d.setFocusLocked(ctx, camera)
}

func (d *Dispatcher) setFocusLocked(ctx context.Context, camera string) string {
	prev := d.Focus()
	if prev == camera {
		return prev
	}

	if prev != "" && d.holdingLocked() {
		if err := d.ctrl.Stop(ctx, prev); err != nil {
			d.logger.Warn("Failed to stop held motion", "camera", prev, "error", err)
		}
	}
	clear(d.pressed)
	d.focus.Store(&camera)

	d.logger.Info("PTZ focus changed", "previous", prev, "current", camera)
	d.bus.Publish(events.FocusChangedEvent{Previous: prev, Current: camera, Timestamp: events.Now()})
	return prev
}

func (d *Dispatcher) holdingLocked() bool {
	for btn := range d.pressed {
		if _, ok := d.bindings[btn].(HoldBinding); ok {
			return true
		}
	}
	return false
}

// HandleButton applies one button transition. A press of a button already
// down and a release of a button already up are ignored.
func (d *Dispatcher) HandleButton(ctx context.Context, ev ButtonEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pressed[ev.Button] == ev.Pressed {
		return nil
	}
	// A press is recorded after its binding runs, since selecting a camera
	// resets every button.
	if ev.Pressed {
		defer func() { d.pressed[ev.Button] = true }()
	} else {
		delete(d.pressed, ev.Button)
	}

	b, ok := d.bindings[ev.Button]
	if !ok {
		d.logger.Debug("Unbound button", "button", ev.Button, "pressed", ev.Pressed)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var err error
	if ev.Pressed {
		err = b.Activate(ctx, d)
	} else {
		err = b.Deactivate(ctx, d)
	}
	if err != nil {
		d.logger.Warn("PTZ command failed", "button", ev.Button, "pressed", ev.Pressed, "camera", d.Focus(), "error", err)
		return fmt.Errorf("button %d: %w", ev.Button, err)
	}
	return nil
}

// Pressed reports whether button is currently held.
func (d *Dispatcher) Pressed(button int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pressed[button]
}
