package video

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smazurov/camwall/internal/logging"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// fakeTransport hands out fakeConns the test drives by hand.
type fakeTransport struct {
	connected chan *fakeConn

	mu           sync.Mutex
	failures     int           // Connect fails this many times first
	connectErr   error         // error used for those failures
	blockConnect bool          // Connect waits for ctx instead of returning
	closeGate    chan struct{} // when set, Conn.Close waits for it
	attempts     atomic.Int32
	cancelled    atomic.Bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{connected: make(chan *fakeConn, 32)}
}

func (t *fakeTransport) Name() string { return "fake" }

func (t *fakeTransport) Accepts(source string) bool { return !strings.HasPrefix(source, "bad") }

func (t *fakeTransport) Connect(ctx context.Context, source string, _ Request) (Conn, error) {
	t.attempts.Add(1)

	t.mu.Lock()
	block := t.blockConnect
	fail := t.failures > 0
	if fail {
		t.failures--
	}
	err := t.connectErr
	gate := t.closeGate
	t.mu.Unlock()

	if block {
		<-ctx.Done()
		t.cancelled.Store(true)
		return nil, ctx.Err()
	}
	if fail {
		return nil, err
	}

	c := &fakeConn{source: source, frames: make(chan Frame, 16), end: make(chan error, 1), gate: gate}
	t.connected <- c
	return c, nil
}

func (t *fakeTransport) next(tb testing.TB) *fakeConn {
	tb.Helper()
	select {
	case c := <-t.connected:
		return c
	case <-time.After(waitFor):
		tb.Fatal("timeout waiting for connect")
		return nil
	}
}

type fakeConn struct {
	source string
	frames chan Frame
	end    chan error
	gate   chan struct{}
	closed atomic.Bool
}

func (c *fakeConn) Play(ctx context.Context, sink FrameSink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-c.frames:
			sink.WriteFrame(f)
		case err := <-c.end:
			return err
		}
	}
}

func (c *fakeConn) Close() error {
	c.closed.Store(true)
	if c.gate != nil {
		<-c.gate
	}
	return nil
}

func (c *fakeConn) frame() {
	c.frames <- Frame{Format: FormatJPEG, Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}}
}

func (c *fakeConn) drop(err error) {
	c.end <- err
}

// recorder is a Listener that keeps what it saw.
type recorder struct {
	mu       sync.Mutex
	seen     []string
	started  chan struct{}
	finished chan struct{}
}

func newRecorder() *recorder {
	return &recorder{started: make(chan struct{}, 4), finished: make(chan struct{}, 4)}
}

func (r *recorder) OnStreamStarted() {
	r.mu.Lock()
	r.seen = append(r.seen, "started")
	r.mu.Unlock()
	r.started <- struct{}{}
}

func (r *recorder) OnStreamFinished() {
	r.mu.Lock()
	r.seen = append(r.seen, "finished")
	r.mu.Unlock()
	r.finished <- struct{}{}
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func waitSignal(tb testing.TB, ch <-chan struct{}, what string) {
	tb.Helper()
	select {
	case <-ch:
	case <-time.After(waitFor):
		tb.Fatalf("timeout waiting for %s", what)
	}
}

func waitDone(tb testing.TB, s *Stream) {
	tb.Helper()
	select {
	case <-s.Done():
	case <-time.After(waitFor):
		tb.Fatal("timeout waiting for stream task to exit")
	}
}

func newTestManager(t *testing.T, tr Transport, opts Options) *StreamManager {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	m := NewStreamManager(tr, opts)
	t.Cleanup(m.Close)
	return m
}

func newSurface(t *testing.T, m *StreamManager) *Canvas {
	t.Helper()
	s, err := m.CreateStreamRenderer()
	require.NoError(t, err)
	c, ok := s.(*Canvas)
	require.True(t, ok)
	return c
}

var errEOF = errors.New("read tcp 10.0.0.5:80: unexpected EOF")
