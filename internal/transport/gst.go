package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/smazurov/camwall/internal/logging"
	"github.com/smazurov/camwall/internal/process"
	"github.com/smazurov/camwall/internal/video"
)

// gstSink turns any raw video pipeline into multipart JPEG on stdout.
const gstSink = "videoconvert ! jpegenc ! multipartmux ! fdsink fd=1"

// Gst runs the source as a gst-launch pipeline.
type Gst struct {
	binary      string
	readTimeout time.Duration
	logger      *slog.Logger
	gstLogger   *slog.Logger
}

// NewGst creates the pipeline transport.
func NewGst(cfg Config) *Gst {
	cfg = cfg.withDefaults()
	return &Gst{
		binary:      cfg.GstBinary,
		readTimeout: cfg.ReadTimeout,
		logger:      cfg.Logger,
		gstLogger:   logging.GetLogger("gst"),
	}
}

// Name implements video.Transport.
func (t *Gst) Name() string { return NameGst }

// Accepts implements video.Transport. Any pipeline description is
// accepted.
func (t *Gst) Accepts(source string) bool {
	return strings.Contains(source, "!")
}

// Command builds the gst-launch command line for a pipeline.
func (t *Gst) Command(pipeline string) string {
	return fmt.Sprintf("%s -q %s ! %s", t.binary, strings.TrimSpace(pipeline), gstSink)
}

// Connect implements video.Transport. The process is running once it
// returns; the first frame proves the pipeline works.
func (t *Gst) Connect(ctx context.Context, source string, req video.Request) (video.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := req.CameraID() + "-" + uuid.NewString()[:8]
	proc := process.New(id, t.Command(source), t.logger)
	proc.SetLogParser(t.gstLogger.With("camera", req.CameraID()), ParseGstLogLevel)

	stdout, err := proc.Start()
	if err != nil {
		return nil, video.TransportError(video.ReasonConnectFailed, fmt.Errorf("start %s: %w", t.binary, err))
	}
	return &gstConn{proc: proc, stdout: stdout, parts: newPartReader(stdout), idle: t.readTimeout}, nil
}

type gstConn struct {
	proc   *process.Process
	stdout io.ReadCloser
	parts  *partReader
	idle   time.Duration
}

func (c *gstConn) Play(ctx context.Context, sink video.FrameSink) error {
	stop := context.AfterFunc(ctx, func() { c.proc.Stop() })
	defer stop()

	var stalled atomic.Bool
	watchdog := time.AfterFunc(c.idle, func() {
		stalled.Store(true)
		c.proc.Stop()
	})
	defer watchdog.Stop()

	for {
		data, err := c.parts.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return c.exitError(err, stalled.Load())
		}
		watchdog.Reset(c.idle)
		sink.WriteFrame(video.Frame{Format: video.FormatJPEG, Data: data})
	}
}

// exitError prefers the pipeline's own error message over the read error.
func (c *gstConn) exitError(readErr error, stalled bool) error {
	exited := false
	select {
	case <-c.proc.Exited():
		exited = true
	case <-time.After(time.Second):
	}
	if msg := c.proc.FirstError(); msg != "" {
		return video.TransportError(msg, readErr)
	}
	if stalled {
		return video.TransportError(video.ReasonConnectionLost, errStalled)
	}
	var verr *video.Error
	if exited && errors.As(readErr, &verr) && verr.Message == video.ReasonEndOfStream {
		if code, _ := c.proc.Wait(); code == 0 {
			return nil
		}
	}
	return readErr
}

func (c *gstConn) Close() error {
	c.proc.Stop()
	return c.stdout.Close()
}

// ParseGstLogLevel extracts the level from gst-launch output. Errors look
// like "ERROR: from element /GstPipeline:pipeline0/GstRTSPSrc:src: Could not
// open resource"; the message keeps only the text after the element path.
func ParseGstLogLevel(line string) (level, msg string) {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "ERROR: "):
		return "error", stripElement(line[len("ERROR: "):])
	case strings.HasPrefix(line, "WARNING: "):
		return "warning", stripElement(line[len("WARNING: "):])
	case strings.HasPrefix(line, "Additional debug info:"),
		strings.HasPrefix(line, "Setting pipeline"),
		strings.HasPrefix(line, "Pipeline is"),
		strings.HasPrefix(line, "Redistribute latency"),
		strings.HasPrefix(line, "New clock"),
		strings.HasPrefix(line, "Freeing pipeline"):
		return "debug", line
	}
	return "info", line
}

func stripElement(s string) string {
	if !strings.HasPrefix(s, "from element ") {
		return s
	}
	rest := s[len("from element "):]
	if _, msg, ok := strings.Cut(rest, ": "); ok {
		return strings.TrimSpace(msg)
	}
	return s
}
