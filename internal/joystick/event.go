// Package joystick reads a Linux joystick device and feeds its buttons and
// axes to the PTZ dispatcher.
package joystick

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/smazurov/camwall/internal/ptz"
)

// js_event record layout from linux/joystick.h.
const (
	EventSize = 8

	TypeButton uint8 = 0x01
	TypeAxis   uint8 = 0x02
	TypeInit   uint8 = 0x80

	axisMax = 32767
)

const (
	actionAdd    = "add"
	actionRemove = "remove"
)

// Event is one js_event record.
type Event struct {
	Time   uint32 // milliseconds, driver clock
	Value  int16
	Type   uint8
	Number uint8
}

// Init reports whether the driver synthesized the event to describe the
// initial device state.
func (e Event) Init() bool { return e.Type&TypeInit != 0 }

// Kind returns the type with the init flag cleared.
func (e Event) Kind() uint8 { return e.Type &^ TypeInit }

// ParseEvent decodes one record. The kernel writes it in host order, which
// is little endian on every platform this runs on.
func ParseEvent(b []byte) (Event, error) {
	if len(b) < EventSize {
		return Event{}, fmt.Errorf("short joystick event: %d bytes", len(b))
	}
	return Event{
		Time:   binary.LittleEndian.Uint32(b[0:4]),
		Value:  int16(binary.LittleEndian.Uint16(b[4:6])),
		Type:   b[6],
		Number: b[7],
	}, nil
}

// AxisMap says which axis numbers drive pan, tilt and zoom.
type AxisMap struct {
	Pan  int
	Tilt int
	Zoom int
}

// DefaultAxisMap is the layout of a three-axis PTZ stick.
var DefaultAxisMap = AxisMap{Pan: 0, Tilt: 1, Zoom: 2}

// State tracks axis positions and routes button events. It implements
// ptz.AxisSource.
type State struct {
	axes    AxisMap
	buttons func(ptz.ButtonEvent)

	mu  sync.Mutex
	pos map[uint8]float64
}

var _ ptz.AxisSource = (*State)(nil)

// NewState creates a State sending button transitions to buttons.
func NewState(axes AxisMap, buttons func(ptz.ButtonEvent)) *State {
	return &State{axes: axes, buttons: buttons, pos: make(map[uint8]float64)}
}

// Apply handles one event. Init button events only describe what is held
// at open and are not dispatched; init axis events set the position.
func (s *State) Apply(ev Event) {
	switch ev.Kind() {
	case TypeAxis:
		v := float64(ev.Value) / axisMax
		if v < -1 {
			v = -1
		}
		s.mu.Lock()
		s.pos[ev.Number] = v
		s.mu.Unlock()
	case TypeButton:
		if ev.Init() || s.buttons == nil {
			return
		}
		s.buttons(ptz.ButtonEvent{Button: int(ev.Number), Pressed: ev.Value != 0})
	}
}

// Reset centres every axis, for when the device goes away.
func (s *State) Reset() {
	s.mu.Lock()
	clear(s.pos)
	s.mu.Unlock()
}

// Axes implements ptz.AxisSource.
func (s *State) Axes() ptz.Axes {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ptz.Axes{
		Pan:  s.pos[uint8(s.axes.Pan)],
		Tilt: s.pos[uint8(s.axes.Tilt)],
		Zoom: s.pos[uint8(s.axes.Zoom)],
	}
}
