package ptz

import (
	"context"

	"github.com/smazurov/camwall/internal/events"
	"golang.org/x/time/rate"
)

// rateLimited delays commands so a camera head is never flooded.
type rateLimited struct {
	next    Controller
	limiter *rate.Limiter
}

// RateLimited wraps ctrl so that commands wait for limiter. A nil limiter
// returns ctrl unchanged.
func RateLimited(ctrl Controller, limiter *rate.Limiter) Controller {
	if limiter == nil {
		return ctrl
	}
	return &rateLimited{next: ctrl, limiter: limiter}
}

func (r *rateLimited) GotoPreset(ctx context.Context, camera string, preset int) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	return r.next.GotoPreset(ctx, camera, preset)
}

func (r *rateLimited) Move(ctx context.Context, camera string, v Velocity) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	return r.next.Move(ctx, camera, v)
}

func (r *rateLimited) Stop(ctx context.Context, camera string) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return err
	}
	return r.next.Stop(ctx, camera)
}

// published reports every command on the event bus, including failures.
type published struct {
	next Controller
	bus  *events.Bus
}

// Published wraps ctrl so that every command is published as a
// PTZCommandEvent.
func Published(ctrl Controller, bus *events.Bus) Controller {
	if bus == nil {
		return ctrl
	}
	return &published{next: ctrl, bus: bus}
}

func (p *published) GotoPreset(ctx context.Context, camera string, preset int) error {
	err := p.next.GotoPreset(ctx, camera, preset)
	p.publish(events.PTZCommandEvent{CameraID: camera, Command: "preset", Preset: preset}, err)
	return err
}

func (p *published) Move(ctx context.Context, camera string, v Velocity) error {
	err := p.next.Move(ctx, camera, v)
	p.publish(events.PTZCommandEvent{CameraID: camera, Command: "move", Pan: v.Pan, Tilt: v.Tilt, Zoom: v.Zoom}, err)
	return err
}

func (p *published) Stop(ctx context.Context, camera string) error {
	err := p.next.Stop(ctx, camera)
	p.publish(events.PTZCommandEvent{CameraID: camera, Command: "stop"}, err)
	return err
}

func (p *published) publish(ev events.PTZCommandEvent, err error) {
	if err != nil {
		ev.Error = err.Error()
	}
	ev.Timestamp = events.Now()
	p.bus.Publish(ev)
}
