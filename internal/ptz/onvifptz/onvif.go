// Package onvifptz drives camera heads through the ONVIF PTZ service.
package onvifptz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/smazurov/camwall/internal/ptz"
	"github.com/use-go/onvif"
	onvifMedia "github.com/use-go/onvif/media"
	onvifPTZ "github.com/use-go/onvif/ptz"
	sdkMedia "github.com/use-go/onvif/sdk/media"
	sdkPTZ "github.com/use-go/onvif/sdk/ptz"
	"github.com/use-go/onvif/xsd"
	xsdOnvif "github.com/use-go/onvif/xsd/onvif"
)

// ErrNoEndpoint is returned for a camera without an ONVIF address.
var ErrNoEndpoint = errors.New("camera has no PTZ endpoint")

// Endpoint is a camera's ONVIF device service.
type Endpoint struct {
	XAddr    string // host[:port]
	Username string
	Password string
}

// Lookup finds the endpoint for a camera id.
type Lookup func(camera string) (Endpoint, bool)

type session struct {
	endpoint Endpoint
	dev      *onvif.Device
	profile  xsdOnvif.ReferenceToken
}

// Controller implements ptz.Controller over ONVIF. Device sessions are
// opened on first use and reused until the endpoint changes.
type Controller struct {
	lookup Lookup
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

var _ ptz.Controller = (*Controller)(nil)

// New creates a controller resolving cameras through lookup.
func New(lookup Lookup, logger *slog.Logger) *Controller {
	return &Controller{lookup: lookup, logger: logger, sessions: make(map[string]*session)}
}

func (c *Controller) session(ctx context.Context, camera string) (*session, error) {
	ep, ok := c.lookup(camera)
	if !ok || ep.XAddr == "" {
		return nil, fmt.Errorf("%s: %w", camera, ErrNoEndpoint)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.sessions[camera]; ok && s.endpoint == ep {
		return s, nil
	}

	dev, err := onvif.NewDevice(onvif.DeviceParams{
		Xaddr:    ep.XAddr,
		Username: ep.Username,
		Password: ep.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ONVIF device %s: %w", ep.XAddr, err)
	}

	resp, err := sdkMedia.Call_GetProfiles(ctx, dev, onvifMedia.GetProfiles{})
	if err != nil {
		return nil, fmt.Errorf("failed to get media profiles from %s: %w", ep.XAddr, err)
	}
	if len(resp.Profiles) == 0 {
		return nil, fmt.Errorf("ONVIF device %s has no media profiles", ep.XAddr)
	}

	s := &session{endpoint: ep, dev: dev, profile: resp.Profiles[0].Token}
	c.sessions[camera] = s
	c.logger.Info("ONVIF PTZ session opened", "camera", camera, "xaddr", ep.XAddr, "profile", string(s.profile))
	return s, nil
}

// drop forgets a session after a failed call so the next one reconnects.
func (c *Controller) drop(camera string) {
	c.mu.Lock()
	delete(c.sessions, camera)
	c.mu.Unlock()
}

func (c *Controller) GotoPreset(ctx context.Context, camera string, preset int) error {
	s, err := c.session(ctx, camera)
	if err != nil {
		return err
	}
	_, err = sdkPTZ.Call_GotoPreset(ctx, s.dev, onvifPTZ.GotoPreset{
		ProfileToken: s.profile,
		PresetToken:  xsdOnvif.ReferenceToken(strconv.Itoa(preset)),
	})
	if err != nil {
		c.drop(camera)
		return fmt.Errorf("goto preset %d: %w", preset, err)
	}
	return nil
}

func (c *Controller) Move(ctx context.Context, camera string, v ptz.Velocity) error {
	s, err := c.session(ctx, camera)
	if err != nil {
		return err
	}
	v = v.Clamp()
	_, err = sdkPTZ.Call_ContinuousMove(ctx, s.dev, onvifPTZ.ContinuousMove{
		ProfileToken: s.profile,
		Velocity: xsdOnvif.PTZSpeed{
			PanTilt: xsdOnvif.Vector2D{X: v.Pan, Y: v.Tilt},
			Zoom:    xsdOnvif.Vector1D{X: v.Zoom},
		},
	})
	if err != nil {
		c.drop(camera)
		return fmt.Errorf("continuous move: %w", err)
	}
	return nil
}

func (c *Controller) Stop(ctx context.Context, camera string) error {
	s, err := c.session(ctx, camera)
	if err != nil {
		return err
	}
	_, err = sdkPTZ.Call_Stop(ctx, s.dev, onvifPTZ.Stop{
		ProfileToken: s.profile,
		PanTilt:      xsd.Boolean(true),
		Zoom:         xsd.Boolean(true),
	})
	if err != nil {
		c.drop(camera)
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}
