// Package ptz turns joystick buttons and axes into pan-tilt-zoom commands
// for whichever camera currently has focus.
package ptz

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// ButtonEvent is one joystick button transition.
type ButtonEvent struct {
	Button  int  `json:"button" minimum:"0" doc:"Button number"`
	Pressed bool `json:"pressed" doc:"True on press, false on release"`
}

// Velocity is a continuous move request. Each component is in [-1, 1].
type Velocity struct {
	Pan  float64 `json:"pan"`
	Tilt float64 `json:"tilt"`
	Zoom float64 `json:"zoom"`
}

// IsZero reports whether v requests no motion.
func (v Velocity) IsZero() bool {
	return v.Pan == 0 && v.Tilt == 0 && v.Zoom == 0
}

// Clamp limits every component to [-1, 1].
func (v Velocity) Clamp() Velocity {
	return Velocity{Pan: clamp(v.Pan), Tilt: clamp(v.Tilt), Zoom: clamp(v.Zoom)}
}

func (v Velocity) String() string {
	return fmt.Sprintf("pan=%.3f tilt=%.3f zoom=%.3f", v.Pan, v.Tilt, v.Zoom)
}

func clamp(f float64) float64 {
	return math.Max(-1, math.Min(1, f))
}

// Controller sends commands to a camera's PTZ head.
type Controller interface {
	// GotoPreset recalls a stored preset, numbered from 1.
	GotoPreset(ctx context.Context, camera string, preset int) error
	// Move starts a continuous move that lasts until Stop or the next Move.
	Move(ctx context.Context, camera string, v Velocity) error
	Stop(ctx context.Context, camera string) error
}

// logController only logs commands. It is the driver for cameras without
// a PTZ endpoint and for bench setups.
type logController struct {
	logger *slog.Logger
}

// NewLogController returns a Controller that logs every command.
func NewLogController(logger *slog.Logger) Controller {
	return &logController{logger: logger}
}

func (l *logController) GotoPreset(_ context.Context, camera string, preset int) error {
	l.logger.Info("PTZ preset", "camera", camera, "preset", preset)
	return nil
}

func (l *logController) Move(_ context.Context, camera string, v Velocity) error {
	l.logger.Info("PTZ move", "camera", camera, "pan", v.Pan, "tilt", v.Tilt, "zoom", v.Zoom)
	return nil
}

func (l *logController) Stop(_ context.Context, camera string) error {
	l.logger.Info("PTZ stop", "camera", camera)
	return nil
}
