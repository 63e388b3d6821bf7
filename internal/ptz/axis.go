package ptz

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// AxisDeadZone is the share of travel around centre that reads as zero.
const AxisDeadZone = 3.0 / 64

// DefaultPollInterval is how often the axes are sampled.
const DefaultPollInterval = 200 * time.Millisecond

// Axes is a snapshot of the three motion axes, each in [-1, 1] as the
// device reports them. Tilt is positive when the stick is pulled back.
type Axes struct {
	Pan  float64
	Tilt float64
	Zoom float64
}

// AxisSource returns the current axis positions.
type AxisSource interface {
	Axes() Axes
}

// FilterDeadZone zeroes v inside the dead zone and rescales the rest so
// the output still spans [-1, 1].
func FilterDeadZone(v float64) float64 {
	av := math.Abs(v)
	if av <= AxisDeadZone {
		return 0
	}
	fv := math.Min(1, (av-AxisDeadZone)/(1-AxisDeadZone))
	if v < 0 {
		return -fv
	}
	return fv
}

// AxisVelocity converts raw axes to a move velocity. Tilt is inverted so
// pushing the stick forward tilts up.
func AxisVelocity(a Axes) Velocity {
	return Velocity{
		Pan:  FilterDeadZone(a.Pan),
		Tilt: FilterDeadZone(-a.Tilt),
		Zoom: FilterDeadZone(a.Zoom),
	}
}

// AxisPoller samples an AxisSource and sends continuous moves to the
// focused camera. A move is sent only when the velocity changes, and a
// stop when it returns to zero.
type AxisPoller struct {
	src      AxisSource
	d        *Dispatcher
	interval time.Duration
	logger   *slog.Logger

	camera string
	last   Velocity
}

// NewAxisPoller creates a poller for src feeding d's focused camera.
func NewAxisPoller(src AxisSource, d *Dispatcher, interval time.Duration) *AxisPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &AxisPoller{src: src, d: d, interval: interval, logger: d.logger.With("component", "axes")}
}

// Run polls until ctx is done, then stops any motion it started.
func (p *AxisPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.release()
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *AxisPoller) poll(ctx context.Context) {
	v := AxisVelocity(p.src.Axes())
	camera := p.d.Focus()

	if camera != p.camera {
		p.release()
		p.camera = camera
	}
	if camera == "" || v == p.last {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, p.d.timeout)
	defer cancel()

	var err error
	if v.IsZero() {
		err = p.d.ctrl.Stop(cctx, camera)
	} else {
		err = p.d.ctrl.Move(cctx, camera, v)
	}
	if err != nil {
		p.logger.Warn("PTZ axis command failed", "camera", camera, "velocity", v.String(), "error", err)
		return
	}
	p.last = v
}

// release stops the motion left on the current camera.
func (p *AxisPoller) release() {
	if p.camera == "" || p.last.IsZero() {
		p.last = Velocity{}
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.d.timeout)
	defer cancel()
	if err := p.d.ctrl.Stop(ctx, p.camera); err != nil {
		p.logger.Warn("Failed to stop axis motion", "camera", p.camera, "error", err)
	}
	p.last = Velocity{}
}
