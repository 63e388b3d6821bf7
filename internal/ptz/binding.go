package ptz

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Binding is the action tied to one joystick button. Activate runs on
// press and Deactivate on release. Both are called with the dispatcher's
// lock held and target the focused camera.
type Binding interface {
	Activate(ctx context.Context, d *Dispatcher) error
	Deactivate(ctx context.Context, d *Dispatcher) error
}

// PresetBinding recalls a preset on press.
type PresetBinding struct {
	Preset int
}

func (b PresetBinding) Activate(ctx context.Context, d *Dispatcher) error {
	camera := d.Focus()
	if camera == "" {
		return nil
	}
	return d.ctrl.GotoPreset(ctx, camera, b.Preset)
}

func (b PresetBinding) Deactivate(context.Context, *Dispatcher) error { return nil }

func (b PresetBinding) String() string { return "preset:" + strconv.Itoa(b.Preset) }

// HoldBinding moves while the button is held and stops on release.
type HoldBinding struct {
	Name     string
	Velocity Velocity
}

func (b HoldBinding) Activate(ctx context.Context, d *Dispatcher) error {
	camera := d.Focus()
	if camera == "" {
		return nil
	}
	return d.ctrl.Move(ctx, camera, b.Velocity)
}

func (b HoldBinding) Deactivate(ctx context.Context, d *Dispatcher) error {
	camera := d.Focus()
	if camera == "" {
		return nil
	}
	return d.ctrl.Stop(ctx, camera)
}

func (b HoldBinding) String() string { return b.Name }

// SelectBinding moves focus to the next (Step > 0) or previous camera.
type SelectBinding struct {
	Step int
}

func (b SelectBinding) Activate(ctx context.Context, d *Dispatcher) error {
	if d.selector == nil {
		return nil
	}
	current := d.Focus()
	var (
		next string
		ok   bool
	)
	if b.Step < 0 {
		next, ok = d.selector.Previous(current)
	} else {
		next, ok = d.selector.Next(current)
	}
	if ok && next != current {
		d.setFocusLocked(ctx, next)
	}
	return nil
}

func (b SelectBinding) Deactivate(context.Context, *Dispatcher) error { return nil }

func (b SelectBinding) String() string {
	if b.Step < 0 {
		return "previous"
	}
	return "next"
}

// Selector walks the camera list.
type Selector interface {
	Next(camera string) (string, bool)
	Previous(camera string) (string, bool)
}

var (
	zoomIn  = HoldBinding{Name: "zoom-in", Velocity: Velocity{Zoom: 1}}
	zoomOut = HoldBinding{Name: "zoom-out", Velocity: Velocity{Zoom: -1}}
)

// DefaultBindings returns the standard button layout: buttons 0 to 4
// recall presets 1 to 5, 6 and 7 hold zoom out and in, 10 and 11 select
// the previous and next camera.
func DefaultBindings() map[int]Binding {
	return map[int]Binding{
		0:  PresetBinding{Preset: 1},
		1:  PresetBinding{Preset: 2},
		2:  PresetBinding{Preset: 3},
		3:  PresetBinding{Preset: 4},
		4:  PresetBinding{Preset: 5},
		6:  zoomOut,
		7:  zoomIn,
		10: SelectBinding{Step: -1},
		11: SelectBinding{Step: 1},
	}
}

// ParseBinding parses an action: "preset:N", "zoom-in", "zoom-out",
// "next" or "previous".
func ParseBinding(s string) (Binding, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "zoom-in":
		return zoomIn, nil
	case "zoom-out":
		return zoomOut, nil
	case "next":
		return SelectBinding{Step: 1}, nil
	case "previous", "prev":
		return SelectBinding{Step: -1}, nil
	}
	if n, ok := strings.CutPrefix(s, "preset:"); ok {
		preset, err := strconv.Atoi(n)
		if err != nil || preset < 1 {
			return nil, fmt.Errorf("invalid preset %q", n)
		}
		return PresetBinding{Preset: preset}, nil
	}
	return nil, fmt.Errorf("unknown button action %q", s)
}

// ParseBindings parses "button=action" entries over the default layout.
// An action of "none" unbinds the button.
func ParseBindings(entries []string) (map[int]Binding, error) {
	bindings := DefaultBindings()
	for _, entry := range entries {
		btn, action, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("button binding %q: want button=action", entry)
		}
		n, err := strconv.Atoi(strings.TrimSpace(btn))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("button binding %q: invalid button", entry)
		}
		if strings.EqualFold(strings.TrimSpace(action), "none") {
			delete(bindings, n)
			continue
		}
		b, err := ParseBinding(action)
		if err != nil {
			return nil, fmt.Errorf("button binding %q: %w", entry, err)
		}
		bindings[n] = b
	}
	return bindings, nil
}
