// Package transport provides the video.Transport families a deployment can
// select: HTTP MJPEG, gst-launch pipelines, RTSP and a local test pattern.
package transport

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smazurov/camwall/internal/logging"
	"github.com/smazurov/camwall/internal/video"
)

// Transport family names.
const (
	NameMJPEG   = "mjpeg"
	NameGst     = "gst"
	NameRTSP    = "rtsp"
	NamePattern = "pattern"
)

// Names lists every family New understands.
var Names = []string{NameMJPEG, NameGst, NameRTSP, NamePattern}

// Config selects and tunes a transport.
type Config struct {
	Name           string
	ConnectTimeout time.Duration // dial and response header timeout
	ReadTimeout    time.Duration // longest gap between frames before the connection counts as lost
	GstBinary      string
	Logger         *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.GstBinary == "" {
		c.GstBinary = "gst-launch-1.0"
	}
	if c.Logger == nil {
		c.Logger = logging.GetLogger("transport")
	}
	return c
}

// New returns the transport named by cfg.Name. An empty name selects MJPEG.
func New(cfg Config) (video.Transport, error) {
	cfg = cfg.withDefaults()

	name := strings.ToLower(strings.TrimSpace(cfg.Name))
	cfg.Logger.Info("Selecting stream transport", "transport", name)

	switch name {
	case "", NameMJPEG:
		return NewMJPEG(cfg), nil
	case NameGst:
		return NewGst(cfg), nil
	case NameRTSP:
		return NewRTSP(cfg), nil
	case NamePattern:
		return NewPattern(), nil
	default:
		return nil, fmt.Errorf("unknown stream transport %q (want one of %s)", cfg.Name, strings.Join(Names, ", "))
	}
}
