package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/smazurov/camwall/internal/api"
	"github.com/smazurov/camwall/internal/config"
	"github.com/smazurov/camwall/internal/directory"
	"github.com/smazurov/camwall/internal/events"
	"github.com/smazurov/camwall/internal/joystick"
	"github.com/smazurov/camwall/internal/logging"
	"github.com/smazurov/camwall/internal/metrics"
	"github.com/smazurov/camwall/internal/ptz"
	"github.com/smazurov/camwall/internal/ptz/onvifptz"
	"github.com/smazurov/camwall/internal/transport"
	"github.com/smazurov/camwall/internal/video"
	"golang.org/x/time/rate"
)

// node is one running wall node: the directory, the stream manager, PTZ
// control and the API server, started and stopped together.
type node struct {
	opts   *Options
	logger *slog.Logger

	bus        *events.Bus
	store      *directory.Store
	watcher    *config.Watcher[*directory.Directory]
	manager    *video.StreamManager
	dispatcher *ptz.Dispatcher
	collector  *metrics.Collector
	server     *api.Server

	cancel context.CancelFunc
}

func newNode(opts *Options, tuning *TuningOptions, logger *slog.Logger) (*node, error) {
	n := &node{opts: opts, logger: logger, bus: events.New()}

	n.collector = metrics.NewCollector(n.bus, logging.GetLogger("metrics"))
	n.collector.Start()

	store, err := directory.Open(opts.DirectoryFile, directory.StoreOptions{
		Subnet: opts.DirectorySubnet,
		Bus:    n.bus,
		Logger: logging.GetLogger("directory"),
	})
	if err != nil {
		return nil, err
	}
	n.store = store
	metrics.DirectoryLoaded(len(store.Cameras()))

	if opts.DirectoryWatch {
		if n.watcher, err = store.Watch(opts.DirectoryFile); err != nil {
			logger.Warn("Failed to watch camera directory, hot-reload disabled", "path", opts.DirectoryFile, "error", err)
		}
	}

	t, err := transport.New(transport.Config{
		Name:           opts.StreamTransport,
		ConnectTimeout: tuning.StreamConnectTimeout,
		ReadTimeout:    tuning.StreamReadTimeout,
		GstBinary:      opts.StreamGstBinary,
		Logger:         logging.GetLogger("transport"),
	})
	if err != nil {
		return nil, err
	}

	n.manager = video.NewStreamManager(t, video.Options{
		Resolver:          store,
		MaxSurfaces:       opts.StreamMaxSurfaces,
		FirstFrameTimeout: tuning.StreamFirstFrameTimeout,
		ReleaseTimeout:    tuning.StreamReleaseTimeout,
		Retry: video.RetryPolicy{
			Attempts:     opts.StreamRetryAttempts,
			InitialDelay: tuning.StreamRetryInitialDelay,
			MaxDelay:     tuning.StreamRetryMaxDelay,
			Multiplier:   tuning.StreamRetryMultiplier,
		},
		EventBus: n.bus,
		Logger:   logging.GetLogger("video"),
	})

	ctrl, err := n.ptzController()
	if err != nil {
		return nil, err
	}
	bindings, err := ptz.ParseBindings(tuning.PTZButtons)
	if err != nil {
		return nil, fmt.Errorf("ptz.buttons: %w", err)
	}
	n.dispatcher = ptz.NewDispatcher(ctrl, ptz.DispatcherOptions{
		Bindings:       bindings,
		Selector:       store,
		Bus:            n.bus,
		Logger:         logging.GetLogger("ptz"),
		CommandTimeout: tuning.PTZCommandTimeout,
	})

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	if opts.JoystickEnabled {
		n.startJoystick(ctx, tuning)
	}

	apiOpts := &api.Options{
		AuthUsername: opts.AuthUsername,
		AuthPassword: opts.AuthPassword,
		Manager:      n.manager,
		Directory:    store,
		Dispatcher:   n.dispatcher,
		EventBus:     n.bus,
	}
	if opts.MetricsEnabled {
		apiOpts.PrometheusHandler = metrics.Handler()
	}
	n.server = api.NewServer(apiOpts)

	return n, nil
}

// ptzController builds the driver named by ptz.driver, publishing every
// command on the bus and throttled to ptz.rate.
func (n *node) ptzController() (ptz.Controller, error) {
	var ctrl ptz.Controller
	switch strings.ToLower(n.opts.PTZDriver) {
	case "", "log":
		ctrl = ptz.NewLogController(logging.GetLogger("ptz"))
	case "onvif":
		ctrl = onvifptz.New(func(camera string) (onvifptz.Endpoint, bool) {
			cam, ok := n.store.Camera(camera)
			if !ok || cam.PTZ == "" {
				return onvifptz.Endpoint{}, false
			}
			return onvifptz.Endpoint{XAddr: cam.PTZ, Username: cam.Username, Password: cam.Password}, true
		}, logging.GetLogger("ptz"))
	default:
		return nil, fmt.Errorf("unknown PTZ driver %q (want log or onvif)", n.opts.PTZDriver)
	}

	ctrl = ptz.Published(ctrl, n.bus)
	if n.opts.PTZRate > 0 {
		burst := max(n.opts.PTZBurst, 1)
		ctrl = ptz.RateLimited(ctrl, rate.NewLimiter(rate.Limit(n.opts.PTZRate), burst))
	}
	return ctrl, nil
}

func (n *node) startJoystick(ctx context.Context, tuning *TuningOptions) {
	logger := logging.GetLogger("joystick")

	state := joystick.NewState(joystick.AxisMap{
		Pan:  n.opts.JoystickPanAxis,
		Tilt: n.opts.JoystickTiltAxis,
		Zoom: n.opts.JoystickZoomAxis,
	}, func(ev ptz.ButtonEvent) {
		// The dispatcher logs command failures itself.
		_ = n.dispatcher.HandleButton(ctx, ev)
	})
	reader := joystick.NewReader(joystick.Config{
		Device:        n.opts.JoystickDevice,
		RetryInterval: tuning.JoystickRetryInterval,
		Bus:           n.bus,
		Logger:        logger,
	}, state)
	poller := ptz.NewAxisPoller(state, n.dispatcher, tuning.JoystickPollInterval)

	go func() {
		if err := reader.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("Joystick reader stopped", "error", err)
		}
	}()
	go poller.Run(ctx)
	logger.Info("Joystick control enabled", "device", n.opts.JoystickDevice)
}

// run serves the API until stop.
func (n *node) run() error {
	n.logger.Info("Starting camwall",
		"transport", n.manager.Transport().Name(),
		"cameras", len(n.store.Cameras()),
		"ptz_driver", n.opts.PTZDriver,
		"port", n.opts.Port)
	return n.server.Start(n.opts.Port)
}

// stop shuts down in dependency order: no new requests, then input, then
// every stream, then the watchers.
func (n *node) stop() {
	if err := n.server.Stop(); err != nil {
		n.logger.Error("Error stopping HTTP server", "error", err)
	}
	n.cancel()

	n.logger.Info("Releasing all streams")
	n.manager.Close()

	if n.watcher != nil {
		if err := n.watcher.Stop(); err != nil {
			n.logger.Warn("Error stopping directory watcher", "error", err)
		}
	}
	n.collector.Stop()
}
