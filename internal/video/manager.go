package video

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/smazurov/camwall/internal/events"
	"github.com/smazurov/camwall/internal/logging"
)

// Manager binds camera streams to surfaces.
type Manager interface {
	// CreateStreamRenderer allocates a fresh, empty surface.
	CreateStreamRenderer() (Surface, error)
	// RequestStream binds a new stream for req to surface, releasing any
	// stream already bound there. It returns at once in Connecting; all
	// later failures are reported through the handle.
	RequestStream(req Request, surface Surface) (*Stream, error)
	// ClearStream releases the stream bound to surface, if any.
	ClearStream(surface Surface)
}

// Default timeouts.
const (
	DefaultFirstFrameTimeout = 10 * time.Second
	DefaultReleaseTimeout    = 2 * time.Second
)

// Options configures a StreamManager.
type Options struct {
	Resolver          Resolver      // source lookup, DirectResolver when nil
	MaxSurfaces       int           // surfaces CreateStreamRenderer may hold, 0 means unlimited
	FirstFrameTimeout time.Duration // Connecting longer than this fails the stream, negative disables
	ReleaseTimeout    time.Duration // how long Dispose waits for teardown
	Retry             RetryPolicy   // initial connect retries, one attempt by default
	EventBus          *events.Bus   // lifecycle events, optional
	Logger            *slog.Logger
}

// StreamManager implements Manager over a single Transport.
type StreamManager struct {
	transport Transport
	resolver  Resolver
	bus       *events.Bus
	logger    *slog.Logger
	opts      Options

	mu       sync.Mutex
	closed   bool
	surfaces map[string]Surface
	bindings map[string]*Stream
	wg       sync.WaitGroup
}

var _ Manager = (*StreamManager)(nil)

// NewStreamManager creates a manager that opens every stream with t.
func NewStreamManager(t Transport, opts Options) *StreamManager {
	if opts.Resolver == nil {
		opts.Resolver = DirectResolver
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetLogger("video")
	}
	if opts.FirstFrameTimeout == 0 {
		opts.FirstFrameTimeout = DefaultFirstFrameTimeout
	}
	if opts.ReleaseTimeout <= 0 {
		opts.ReleaseTimeout = DefaultReleaseTimeout
	}
	return &StreamManager{
		transport: t,
		resolver:  opts.Resolver,
		bus:       opts.EventBus,
		logger:    opts.Logger,
		opts:      opts,
		surfaces:  make(map[string]Surface),
		bindings:  make(map[string]*Stream),
	}
}

// Transport returns the active transport.
func (m *StreamManager) Transport() Transport { return m.transport }

// CreateStreamRenderer implements Manager. The returned surface is a *Canvas.
func (m *StreamManager) CreateStreamRenderer() (Surface, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ResourceError("stream manager closed", nil)
	}
	if m.opts.MaxSurfaces > 0 && len(m.surfaces) >= m.opts.MaxSurfaces {
		m.mu.Unlock()
		return nil, ResourceError(fmt.Sprintf("surface limit reached (%d)", m.opts.MaxSurfaces), nil)
	}
	c := NewCanvas()
	m.surfaces[c.ID()] = c
	m.mu.Unlock()

	m.logger.Debug("Surface created", "surface", c.ID())
	m.bus.Publish(events.SurfaceCreatedEvent{SurfaceID: c.ID(), Timestamp: events.Now()})
	return c, nil
}

// Surface returns a surface created by this manager.
func (m *StreamManager) Surface(id string) (Surface, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surfaces[id]
	return s, ok
}

// Surfaces returns every surface created by this manager.
func (m *StreamManager) Surfaces() []Surface {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Surface, 0, len(m.surfaces))
	for _, s := range m.surfaces {
		out = append(out, s)
	}
	return out
}

// ReleaseSurface clears the surface and forgets it, freeing its slot.
func (m *StreamManager) ReleaseSurface(surface Surface) {
	m.ClearStream(surface)
	m.mu.Lock()
	delete(m.surfaces, surface.ID())
	m.mu.Unlock()
}

// Bound returns the live stream bound to surface, if any.
func (m *StreamManager) Bound(surface Surface) (*Stream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.bindings[surface.ID()]
	return s, ok
}

// RequestStream implements Manager.
func (m *StreamManager) RequestStream(req Request, surface Surface) (*Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if surface == nil {
		return nil, InvalidRequestError("surface is required")
	}

	s := newStream(req, surface, m.transport.Name(), m.opts.ReleaseTimeout, m.logger, streamHooks{
		started:  m.streamStarted,
		finished: m.streamFinished,
	})

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		s.cancel()
		return nil, ResourceError("stream manager closed", nil)
	}
	old := m.bindings[surface.ID()]
	if old != nil {
		old.unbind()
	}
	m.bindings[surface.ID()] = s
	s.bind()
	m.wg.Add(1)
	m.mu.Unlock()

	if old != nil {
		s.logger.Info("Replacing stream", "previous_stream_id", old.ID(), "previous_camera", old.Request().CameraID())
		old.stop(ReasonReplaced)
	}

	s.logger.Info("Stream requested", "request", req.String())
	m.bus.Publish(events.StreamRequestedEvent{
		StreamID:  s.ID(),
		SurfaceID: surface.ID(),
		CameraID:  req.CameraID(),
		Transport: s.transport,
		Timestamp: events.Now(),
	})

	go func() {
		defer m.wg.Done()
		m.run(s)
	}()
	return s, nil
}

// ClearStream implements Manager. It does not wait for teardown.
func (m *StreamManager) ClearStream(surface Surface) {
	if surface == nil {
		return
	}
	m.mu.Lock()
	s := m.bindings[surface.ID()]
	m.mu.Unlock()
	if s != nil {
		s.stop(ReasonCleared)
	}
}

// Close disposes every bound stream and refuses further requests.
func (m *StreamManager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	live := make([]*Stream, 0, len(m.bindings))
	for _, s := range m.bindings {
		live = append(live, s)
	}
	m.mu.Unlock()

	var released sync.WaitGroup
	for _, s := range live {
		s.stop(ReasonShutdown)
		released.Add(1)
		go func() {
			defer released.Done()
			s.Dispose()
		}()
	}
	released.Wait()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(m.opts.ReleaseTimeout):
		m.logger.Warn("Stream tasks still running after close", "timeout", m.opts.ReleaseTimeout)
	}
}

// run is the background task of one stream: resolve, connect, play.
func (m *StreamManager) run(s *Stream) {
	defer close(s.done)
	ctx := s.ctx

	if m.opts.FirstFrameTimeout > 0 {
		watchdog := time.AfterFunc(m.opts.FirstFrameTimeout, func() {
			s.failIfConnecting(TransportError(ReasonTimeout, nil), ReasonTimeout)
		})
		defer watchdog.Stop()
	}

	source, err := m.resolver.Resolve(ctx, s.req, m.transport.Accepts)
	if err != nil {
		s.fail(err, ReasonUnknownCamera)
		return
	}
	s.logger.Debug("Source resolved", "source", redact(source))

	var conn Conn
	err = m.opts.Retry.Do(ctx, func(ctx context.Context) error {
		c, connErr := m.transport.Connect(ctx, source, s.req)
		if connErr != nil {
			return connErr
		}
		conn = c
		return nil
	}, func(attempt int, err error) {
		s.logger.Info("Connect failed, retrying", "attempt", attempt, "error", err)
	})
	if err != nil {
		s.fail(err, ReasonConnectFailed)
		return
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			s.logger.Debug("Connection close failed", "error", closeErr)
		}
	}()

	if ctx.Err() != nil {
		return
	}
	s.logger.Debug("Connected")

	err = conn.Play(ctx, s)
	if ctx.Err() != nil {
		return
	}
	if err == nil {
		err = TransportError(ReasonEndOfStream, nil)
	}
	s.fail(err, ReasonConnectionLost)
}

func (m *StreamManager) streamStarted(s *Stream) {
	m.bus.Publish(events.StreamStartedEvent{
		StreamID:  s.ID(),
		SurfaceID: s.surface.ID(),
		CameraID:  s.req.CameraID(),
		Transport: s.transport,
		Timestamp: events.Now(),
	})
}

func (m *StreamManager) streamFinished(s *Stream) {
	m.mu.Lock()
	if m.bindings[s.surface.ID()] == s {
		delete(m.bindings, s.surface.ID())
	}
	s.unbind()
	m.mu.Unlock()

	m.bus.Publish(events.StreamFinishedEvent{
		StreamID:   s.ID(),
		SurfaceID:  s.surface.ID(),
		CameraID:   s.req.CameraID(),
		Transport:  s.transport,
		Status:     s.Status(),
		Reason:     s.Reason(),
		Started:    s.wasStarted(),
		Frames:     s.Frames(),
		DurationMs: s.Uptime().Milliseconds(),
		Timestamp:  events.Now(),
	})
}

// redact hides the password of a URL source before it is logged.
func redact(source string) string {
	u, err := url.Parse(source)
	if err != nil || u.User == nil {
		return source
	}
	return u.Redacted()
}
