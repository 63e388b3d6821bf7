package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/camwall/internal/logging"
	"github.com/smazurov/camwall/internal/version"
	"github.com/smazurov/camwall/internal/video"
	"github.com/stretchr/testify/require"
)

// frameSink collects frames for assertions.
type frameSink struct {
	mu     sync.Mutex
	frames []video.Frame
}

func (s *frameSink) WriteFrame(f video.Frame) {
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
}

func (s *frameSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *frameSink) data(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.frames[i].Data)
}

func testConfig() Config {
	return Config{ConnectTimeout: time.Second, ReadTimeout: time.Second, Logger: logging.Discard()}
}

func TestMJPEG_Accepts(t *testing.T) {
	m := NewMJPEG(testConfig())
	require.True(t, m.Accepts("http://10.0.0.5/axis-cgi/mjpg/video.cgi"))
	require.True(t, m.Accepts("https://user:pw@cam.example/stream"))
	require.False(t, m.Accepts("rtsp://10.0.0.5/stream1"))
	require.False(t, m.Accepts("videotestsrc ! videoconvert"))
	require.False(t, m.Accepts("http://"))
}

func TestMJPEG_PlaysParts(t *testing.T) {
	var gotUser, gotPass, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, _ = r.BasicAuth()
		gotAgent = r.UserAgent()
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		_, _ = w.Write([]byte(part("frame", "jpeg-1") + part("frame", "jpeg-2")))
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	u.User = url.UserPassword("viewer", "s3cret")
	u.Path = "/video.mjpg"

	m := NewMJPEG(testConfig())
	conn, err := m.Connect(context.Background(), u.String(), video.NewRequest("CAM-101"))
	require.NoError(t, err)
	defer conn.Close()

	sink := &frameSink{}
	err = conn.Play(context.Background(), sink)

	require.Equal(t, "viewer", gotUser)
	require.Equal(t, "s3cret", gotPass)
	require.Equal(t, version.UserAgent(), gotAgent)
	require.Equal(t, 2, sink.count())
	require.Equal(t, "jpeg-1", sink.data(0))
	require.Equal(t, video.FormatJPEG, sink.frames[1].Format)
	require.ErrorIs(t, err, &video.Error{Code: video.CodeTransport, Message: video.ReasonEndOfStream})
}

func TestMJPEG_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewMJPEG(testConfig()).Connect(context.Background(), srv.URL, video.NewRequest("CAM-101"))
	require.True(t, video.IsTransport(err))
	require.Contains(t, err.Error(), "401")
}

func TestMJPEG_StallIsConnectionLost(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(part("frame", "only")))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	cfg := testConfig()
	cfg.ReadTimeout = 100 * time.Millisecond
	conn, err := NewMJPEG(cfg).Connect(context.Background(), srv.URL, video.NewRequest("CAM-101"))
	require.NoError(t, err)
	defer conn.Close()

	sink := &frameSink{}
	err = conn.Play(context.Background(), sink)
	require.Equal(t, 1, sink.count())
	require.ErrorIs(t, err, &video.Error{Code: video.CodeTransport, Message: video.ReasonConnectionLost})
}

// cutMidPart answers with one whole part and the first bytes of a second,
// then drops the connection.
func cutMidPart(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		conn, buf, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		defer conn.Close()
		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Type: multipart/x-mixed-replace; boundary=frame\r\nConnection: close\r\n\r\n")
		_, _ = buf.WriteString(part("frame", "jpeg-1"))
		_, _ = buf.WriteString("--frame\r\nContent-Type: image/jpeg\r\nContent-Length: 1000\r\n\r\njpeg-2")
		_ = buf.Flush()
	}))
}

func TestMJPEG_CutMidPartIsConnectionLost(t *testing.T) {
	srv := cutMidPart(t)
	defer srv.Close()

	conn, err := NewMJPEG(testConfig()).Connect(context.Background(), srv.URL, video.NewRequest("CAM-101"))
	require.NoError(t, err)
	defer conn.Close()

	sink := &frameSink{}
	err = conn.Play(context.Background(), sink)
	require.Equal(t, 1, sink.count())
	require.ErrorIs(t, err, &video.Error{Code: video.CodeTransport, Message: video.ReasonConnectionLost})
}

func TestMJPEG_ManagerReportsConnectionLost(t *testing.T) {
	srv := cutMidPart(t)
	defer srv.Close()

	m := video.NewStreamManager(NewMJPEG(testConfig()), video.Options{
		Resolver: video.DirectResolver,
		Logger:   logging.Discard(),
	})
	defer m.Close()

	surface, err := m.CreateStreamRenderer()
	require.NoError(t, err)
	stream, err := m.RequestStream(video.NewRequest(srv.URL), surface)
	require.NoError(t, err)

	select {
	case <-stream.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("stream did not finish")
	}
	require.Equal(t, uint64(1), stream.Frames())
	require.Equal(t, "stream ended: connection lost", stream.Status())
}

func TestMJPEG_CancelStopsPlay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for {
			if _, err := w.Write([]byte(part("frame", strings.Repeat("x", 64)))); err != nil {
				return
			}
			w.(http.Flusher).Flush()
			select {
			case <-r.Context().Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	conn, err := NewMJPEG(testConfig()).Connect(ctx, srv.URL, video.NewRequest("CAM-101"))
	require.NoError(t, err)
	defer conn.Close()

	sink := &frameSink{}
	done := make(chan error, 1)
	go func() { done <- conn.Play(ctx, sink) }()

	require.Eventually(t, func() bool { return sink.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after cancel")
	}
}
