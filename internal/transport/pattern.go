package transport

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/smazurov/camwall/internal/video"
)

const patternScheme = "pattern://"

// Pattern generates moving colour bars locally. Sources look like
// pattern://name?fps=10&width=320&height=240&frames=0, where frames > 0
// ends the stream after that many frames.
type Pattern struct{}

// NewPattern creates the test pattern transport.
func NewPattern() *Pattern { return &Pattern{} }

// Name implements video.Transport.
func (t *Pattern) Name() string { return NamePattern }

// Accepts implements video.Transport.
func (t *Pattern) Accepts(source string) bool {
	return strings.HasPrefix(source, patternScheme)
}

// PatternOptions are the parsed parameters of a pattern source.
type PatternOptions struct {
	FPS    int
	Width  int
	Height int
	Frames int
}

// ParsePattern parses a pattern:// source.
func ParsePattern(source string) (PatternOptions, error) {
	opts := PatternOptions{FPS: 10, Width: 320, Height: 240}
	u, err := url.Parse(source)
	if err != nil || u.Scheme != "pattern" {
		return opts, video.InvalidRequestError("invalid pattern source %q", source)
	}

	q := u.Query()
	for key, dst := range map[string]*int{"fps": &opts.FPS, "width": &opts.Width, "height": &opts.Height, "frames": &opts.Frames} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 0 {
			return opts, video.InvalidRequestError("invalid pattern %s %q", key, v)
		}
		*dst = n
	}
	if opts.FPS == 0 || opts.Width == 0 || opts.Height == 0 || opts.Width > 4096 || opts.Height > 4096 {
		return opts, video.InvalidRequestError("invalid pattern geometry %dx%d@%d", opts.Width, opts.Height, opts.FPS)
	}
	return opts, nil
}

// Connect implements video.Transport.
func (t *Pattern) Connect(ctx context.Context, source string, req video.Request) (video.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts, err := ParsePattern(source)
	if err != nil {
		return nil, err
	}
	if b, ok := req.Bounds(); ok && b.Width > 0 && b.Height > 0 {
		opts.Width, opts.Height = min(opts.Width, b.Width), min(opts.Height, b.Height)
	}
	return &patternConn{opts: opts, label: req.CameraID()}, nil
}

type patternConn struct {
	opts  PatternOptions
	label string
}

func (c *patternConn) Play(ctx context.Context, sink video.FrameSink) error {
	ticker := time.NewTicker(time.Second / time.Duration(c.opts.FPS))
	defer ticker.Stop()

	for n := 0; c.opts.Frames == 0 || n < c.opts.Frames; n++ {
		data, err := renderPattern(c.opts.Width, c.opts.Height, n)
		if err != nil {
			return video.TransportError(video.ReasonDecode, fmt.Errorf("encode pattern: %w", err))
		}
		sink.WriteFrame(video.Frame{Format: video.FormatJPEG, Data: data})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func (c *patternConn) Close() error { return nil }

var bars = []color.RGBA{
	{235, 235, 235, 255}, {235, 235, 16, 255}, {16, 235, 235, 255}, {16, 235, 16, 255},
	{235, 16, 235, 255}, {235, 16, 16, 255}, {16, 16, 235, 255}, {16, 16, 16, 255},
}

// renderPattern draws colour bars shifted by frame n.
func renderPattern(width, height, n int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	barWidth := max(width/len(bars), 1)
	for y := range height {
		for x := range width {
			idx := ((x+n*4)/barWidth + len(bars)) % len(bars)
			img.SetRGBA(x, y, bars[idx])
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 70}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
