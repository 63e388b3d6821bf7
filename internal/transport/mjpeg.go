package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/smazurov/camwall/internal/version"
	"github.com/smazurov/camwall/internal/video"
)

var errStalled = errors.New("no data within read timeout")

// MJPEG plays multipart JPEG over HTTP.
type MJPEG struct {
	client      *http.Client
	readTimeout time.Duration
	logger      *slog.Logger
}

// NewMJPEG creates the HTTP MJPEG transport.
func NewMJPEG(cfg Config) *MJPEG {
	cfg = cfg.withDefaults()
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	return &MJPEG{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           dialer.DialContext,
				ResponseHeaderTimeout: cfg.ConnectTimeout,
				MaxIdleConnsPerHost:   -1,
			},
		},
		readTimeout: cfg.ReadTimeout,
		logger:      cfg.Logger,
	}
}

// Name implements video.Transport.
func (t *MJPEG) Name() string { return NameMJPEG }

// Accepts implements video.Transport.
func (t *MJPEG) Accepts(source string) bool {
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Connect implements video.Transport. Credentials in the URL are sent as
// basic auth.
func (t *MJPEG) Connect(ctx context.Context, source string, _ video.Request) (video.Conn, error) {
	u, err := url.Parse(source)
	if err != nil {
		return nil, video.InvalidRequestError("invalid source url: %v", err)
	}

	var user, pass string
	hasAuth := false
	if u.User != nil {
		user = u.User.Username()
		pass, _ = u.User.Password()
		hasAuth = true
		u.User = nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, video.InvalidRequestError("invalid source url: %v", err)
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if hasAuth {
		req.SetBasicAuth(user, pass)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, video.TransportError(video.ReasonConnectFailed, fmt.Errorf("http status %s", resp.Status))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(strings.ToLower(ct), "multipart/") {
		t.logger.Debug("Unexpected content type", "content_type", ct)
	}

	return newMJPEGConn(resp.Body, t.readTimeout), nil
}

type mjpegConn struct {
	body    io.ReadCloser
	parts   *partReader
	idle    time.Duration
	stalled atomic.Bool
}

func newMJPEGConn(body io.ReadCloser, idle time.Duration) *mjpegConn {
	return &mjpegConn{body: body, parts: newPartReader(body), idle: idle}
}

// Play reads parts until the body fails. A body that delivers nothing for
// the read timeout is closed and reported as a lost connection.
func (c *mjpegConn) Play(ctx context.Context, sink video.FrameSink) error {
	var watchdog *time.Timer
	if c.idle > 0 {
		watchdog = time.AfterFunc(c.idle, func() {
			c.stalled.Store(true)
			_ = c.body.Close()
		})
		defer watchdog.Stop()
	}
	stop := context.AfterFunc(ctx, func() { _ = c.body.Close() })
	defer stop()

	for {
		data, err := c.parts.Next()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return ctx.Err()
			case c.stalled.Load():
				return video.TransportError(video.ReasonConnectionLost, errStalled)
			}
			return err
		}
		if watchdog != nil {
			watchdog.Reset(c.idle)
		}
		sink.WriteFrame(video.Frame{Format: video.FormatJPEG, Data: data})
	}
}

func (c *mjpegConn) Close() error {
	return c.body.Close()
}
