package directory

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"sync/atomic"

	"github.com/smazurov/camwall/internal/config"
	"github.com/smazurov/camwall/internal/events"
	"github.com/smazurov/camwall/internal/logging"
	"github.com/smazurov/camwall/internal/video"
)

// ReasonNoSource is the transport failure when no template of a camera
// produced a source the transport can play.
const ReasonNoSource = "no usable source"

// StoreOptions configures a Store.
type StoreOptions struct {
	Subnet string // overrides the directory file's subnet when set
	Bus    *events.Bus
	Logger *slog.Logger
}

// Store holds the current directory and swaps it atomically on reload.
// It resolves stream requests and selects cameras for the joystick.
type Store struct {
	dir    atomic.Pointer[Directory]
	subnet string
	bus    *events.Bus
	logger *slog.Logger
}

// NewStore creates a store holding d, or an empty directory when d is nil.
func NewStore(d *Directory, opts StoreOptions) *Store {
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("directory")
	}
	s := &Store{subnet: opts.Subnet, bus: opts.Bus, logger: opts.Logger}
	if d == nil {
		d = &Directory{Version: 1}
	}
	s.dir.Store(d)
	return s
}

// Open loads path into a new store. A missing file gives an empty
// directory, so a node can start before its directory is provisioned.
func Open(path string, opts StoreOptions) (*Store, error) {
	d, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		s := NewStore(nil, opts)
		s.logger.Warn("Camera directory not found, starting empty", "path", path)
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	return NewStore(d, opts), nil
}

// Directory returns the current directory.
func (s *Store) Directory() *Directory {
	return s.dir.Load()
}

// Set replaces the directory and announces the reload.
func (s *Store) Set(d *Directory) {
	s.dir.Store(d)
	s.logger.Info("Camera directory loaded", "cameras", len(d.Cameras), "templates", len(d.Templates))
	s.bus.Publish(events.DirectoryReloadedEvent{Cameras: len(d.Cameras), Timestamp: events.Now()})
}

// Reload loads path and replaces the directory. On error the current
// directory stays in place.
func (s *Store) Reload(path string) error {
	d, err := Load(path)
	if err != nil {
		return err
	}
	s.Set(d)
	return nil
}

// Watch reloads the directory whenever path changes. Stop the returned
// watcher on shutdown.
func (s *Store) Watch(path string) (*config.Watcher[*Directory], error) {
	w := config.NewWatcher(path, Load, s.logger,
		config.WithErrorHandler[*Directory](func(err error) {
			s.logger.Error("Camera directory reload failed, keeping previous", "path", path, "error", err)
		}))
	w.OnReload(s.Set)
	if err := w.Start(); err != nil {
		return nil, err
	}
	return w, nil
}

// Cameras returns every camera in selection order.
func (s *Store) Cameras() []Camera {
	return s.dir.Load().Ordered()
}

// Camera looks up one camera.
func (s *Store) Camera(id string) (Camera, bool) {
	return s.dir.Load().Camera(id)
}

// Next returns the id of the camera after id.
func (s *Store) Next(id string) (string, bool) {
	c, ok := s.dir.Load().Next(id)
	return c.ID, ok
}

// Previous returns the id of the camera before id.
func (s *Store) Previous(id string) (string, bool) {
	c, ok := s.dir.Load().Previous(id)
	return c.ID, ok
}

// Env builds the template environment for req.
func (s *Store) Env(req video.Request) Env {
	d := s.dir.Load()
	props := make(map[string]string, len(d.Properties))
	for k, v := range d.Properties {
		props[k] = v
	}
	for k, v := range req.Properties() {
		props[k] = v
	}
	subnet := s.subnet
	if subnet == "" {
		subnet = d.Subnet
	}
	return Env{
		Subnet:     subnet,
		Properties: props,
		Size:       req.Size(),
		User:       req.Auth().User,
		SessionID:  req.Auth().SessionID,
	}
}

// Sources lists every candidate source for req's camera.
func (s *Store) Sources(req video.Request, accepts func(string) bool) ([]Candidate, bool) {
	d := s.dir.Load()
	cam, ok := d.Camera(req.CameraID())
	if !ok {
		return nil, false
	}
	return d.Candidates(cam, s.Env(req), accepts), true
}

// Resolve implements video.Resolver: the first accepted candidate wins.
func (s *Store) Resolve(_ context.Context, req video.Request, accepts func(string) bool) (string, error) {
	candidates, ok := s.Sources(req, accepts)
	if !ok {
		return "", video.TransportError(video.ReasonUnknownCamera, nil)
	}
	for _, c := range candidates {
		if c.Accepted {
			return c.Source, nil
		}
		s.logger.Debug("Source template skipped", "camera", req.CameraID(), "template", c.Template, "reason", c.Skipped)
	}
	return "", video.TransportError(ReasonNoSource, nil)
}
