package video

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// streamHooks lets the owning manager observe transitions. Both run on the
// goroutine that caused the transition, after the stream lock is released.
type streamHooks struct {
	started  func(*Stream)
	finished func(*Stream)
}

// Stream is the handle of one stream bound to a surface. All methods are
// safe for concurrent use.
type Stream struct {
	id        string
	req       Request
	surface   Surface
	transport string
	created   time.Time
	logger    *slog.Logger
	hooks     streamHooks
	release   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	state    State
	status   string
	reason   string
	err      error
	bound    bool
	finished time.Time

	frames atomic.Uint64
	notify *notifier
}

func newStream(req Request, surface Surface, transport string, release time.Duration, logger *slog.Logger, hooks streamHooks) *Stream {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With("stream_id", id, "camera", req.CameraID(), "surface", surface.ID(), "transport", transport)
	return &Stream{
		id:        id,
		req:       req,
		surface:   surface,
		transport: transport,
		created:   time.Now(),
		logger:    logger,
		hooks:     hooks,
		release:   release,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     StateConnecting,
		status:    StatusConnecting,
		notify:    newNotifier(logger),
	}
}

// ID returns the unique handle id.
func (s *Stream) ID() string { return s.id }

// Request returns the request the stream was created for.
func (s *Stream) Request() Request { return s.req }

// Component returns the surface this stream renders into.
func (s *Stream) Component() Surface { return s.surface }

// Transport returns the transport family name.
func (s *Stream) Transport() string { return s.transport }

// Created returns when the stream was requested.
func (s *Stream) Created() time.Time { return s.created }

// Status returns the latest human-readable status.
func (s *Stream) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// State returns the lifecycle state.
func (s *Stream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsPlaying reports whether the stream is in the Playing state.
func (s *Stream) IsPlaying() bool {
	return s.State() == StatePlaying
}

// Reason returns why the stream finished, or "" while it is live.
func (s *Stream) Reason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Err returns the first error that ended the stream. It is nil while the
// stream is live and when it was stopped on request.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Frames returns the number of frames received.
func (s *Stream) Frames() uint64 { return s.frames.Load() }

// Uptime returns how long the stream has existed, up to when it finished.
func (s *Stream) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateFinished {
		return s.finished.Sub(s.created)
	}
	return time.Since(s.created)
}

// Done is closed once the background task has exited and the connection
// has been released.
func (s *Stream) Done() <-chan struct{} { return s.done }

// AddListener registers l and returns the function that removes it. A
// listener added late is told about what already happened, in order. Once
// the remove function returns no further callback is delivered; one already
// under way is not waited for.
func (s *Stream) AddListener(l Listener) (remove func()) {
	return s.notify.add(l)
}

// Dispose stops the stream and waits, up to the release timeout, for its
// connection to be released. Calling it again is a no-op.
func (s *Stream) Dispose() {
	s.stop(ReasonStopped)

	if s.release <= 0 {
		<-s.done
		return
	}
	timer := time.NewTimer(s.release)
	defer timer.Stop()
	select {
	case <-s.done:
	case <-timer.C:
		s.logger.Warn("Stream release timed out", "timeout", s.release)
	}
}

// WriteFrame implements FrameSink. The first frame moves the stream to
// Playing.
func (s *Stream) WriteFrame(f Frame) {
	s.mu.Lock()
	if s.state == StateFinished {
		s.mu.Unlock()
		return
	}
	f.Seq = s.frames.Add(1)
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}

	started := false
	if s.state == StateConnecting {
		s.state = StatePlaying
		s.setStatusLocked(StatusConnected)
		s.notify.emit(eventStarted)
		started = true
	}
	if s.bound {
		s.surface.Render(f)
	}
	s.mu.Unlock()

	if started {
		s.logger.Info("Stream playing")
		if s.hooks.started != nil {
			s.hooks.started(s)
		}
	}
}

// stop ends the stream without an error. It does not wait.
func (s *Stream) stop(reason string) {
	s.finish(reason, nil)
}

// fail ends the stream with err. Errors arriving after the stream was
// stopped are dropped.
func (s *Stream) fail(err error, fallback string) {
	if s.ctx.Err() != nil {
		return
	}
	te := asTransport(err, fallback)
	s.finish(te.Message, te)
}

// failIfConnecting is fail for a stream that has not delivered a frame yet.
// A frame arriving first wins.
func (s *Stream) failIfConnecting(err error, fallback string) {
	if s.ctx.Err() != nil {
		return
	}
	te := asTransport(err, fallback)
	s.end(te.Message, te, StateConnecting)
}

func (s *Stream) finish(reason string, err error) bool {
	return s.end(reason, err, -1)
}

// end finishes the stream unless it already finished or, when only is a
// valid State, unless it is in a different state.
func (s *Stream) end(reason string, err error, only State) bool {
	s.mu.Lock()
	if s.state == StateFinished || (only >= 0 && s.state != only) {
		s.mu.Unlock()
		return false
	}
	wasPlaying := s.state == StatePlaying
	s.state = StateFinished
	s.reason = reason
	s.err = err
	s.finished = time.Now()
	s.setStatusLocked(EndedStatus(reason))
	s.notify.emit(eventFinished)
	s.mu.Unlock()

	s.cancel()

	if err != nil {
		s.logger.Warn("Stream ended", "reason", reason, "was_playing", wasPlaying, "frames", s.Frames(), "error", err)
	} else {
		s.logger.Info("Stream ended", "reason", reason, "was_playing", wasPlaying, "frames", s.Frames())
	}
	if s.hooks.finished != nil {
		s.hooks.finished(s)
	}
	return true
}

// setStatusLocked must be called with s.mu held.
func (s *Stream) setStatusLocked(status string) {
	s.status = status
	if s.bound {
		s.surface.SetStatus(status)
	}
}

// bind makes the stream the writer of its surface.
func (s *Stream) bind() {
	s.mu.Lock()
	s.bound = true
	s.surface.SetStatus(s.status)
	s.mu.Unlock()
}

// unbind stops all writes to the surface. Once it returns no frame or
// status from this stream reaches the surface.
func (s *Stream) unbind() {
	s.mu.Lock()
	s.bound = false
	s.mu.Unlock()
}

// wasStarted reports whether the stream ever reached Playing.
func (s *Stream) wasStarted() bool {
	return s.Frames() > 0
}
