package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/AlexxIT/go2rtc/pkg/core"
	"github.com/AlexxIT/go2rtc/pkg/rtsp"
	"github.com/smazurov/camwall/internal/video"
)

var errNoH264 = errors.New("no H264 video track")

// RTSP pulls H264 over RTSP with the go2rtc client.
type RTSP struct {
	connectTimeout time.Duration
	logger         *slog.Logger
}

// NewRTSP creates the RTSP transport.
func NewRTSP(cfg Config) *RTSP {
	cfg = cfg.withDefaults()
	return &RTSP{connectTimeout: cfg.ConnectTimeout, logger: cfg.Logger}
}

// Name implements video.Transport.
func (t *RTSP) Name() string { return NameRTSP }

// Accepts implements video.Transport.
func (t *RTSP) Accepts(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "rtsp://") || strings.HasPrefix(s, "rtsps://")
}

// Connect implements video.Transport. It dials, describes and sets up the
// first H264 video track.
func (t *RTSP) Connect(ctx context.Context, source string, _ video.Request) (video.Conn, error) {
	client := rtsp.NewClient(source)

	ctx, cancel := context.WithTimeout(ctx, t.connectTimeout)
	defer cancel()

	type setup struct {
		media *core.Media
		codec *core.Codec
		track *core.Receiver
		err   error
	}
	done := make(chan setup, 1)
	go func() {
		var s setup
		defer func() { done <- s }()

		if s.err = client.Dial(); s.err != nil {
			return
		}
		if s.err = client.Describe(); s.err != nil {
			return
		}
		s.media, s.codec = pickH264(client.GetMedias())
		if s.codec == nil {
			s.err = video.TransportError(video.ReasonDecode, errNoH264)
			return
		}
		s.track, s.err = client.GetTrack(s.media, s.codec)
	}()

	select {
	case <-ctx.Done():
		// the handshake goroutine still owns the socket; close it once it returns
		go func() {
			<-done
			_ = client.Stop()
		}()
		return nil, ctx.Err()
	case s := <-done:
		if s.err != nil {
			_ = client.Stop()
			return nil, s.err
		}
		t.logger.Debug("RTSP track ready", "codec", s.codec.Name, "clock_rate", s.codec.ClockRate)
		return &rtspConn{client: client, media: s.media, codec: s.codec, track: s.track}, nil
	}
}

func pickH264(medias []*core.Media) (*core.Media, *core.Codec) {
	for _, media := range medias {
		if media.Kind != core.KindVideo {
			continue
		}
		for _, codec := range media.Codecs {
			if codec.Name == core.CodecH264 {
				return media, codec
			}
		}
	}
	return nil, nil
}

type rtspConn struct {
	client *rtsp.Conn
	media  *core.Media
	codec  *core.Codec
	track  *core.Receiver
}

// Play starts the session and blocks while RTP flows.
func (c *rtspConn) Play(ctx context.Context, sink video.FrameSink) error {
	assembler := newAccessUnitAssembler(c.codec, func(au []byte, _ uint32) {
		sink.WriteFrame(video.Frame{Format: video.FormatH264, Data: au})
	})

	sender := core.NewSender(c.media, c.codec)
	sender.Handler = assembler.handlePacket
	sender.HandleRTP(c.track)
	defer sender.Close()

	stop := context.AfterFunc(ctx, func() { _ = c.client.Stop() })
	defer stop()

	err := c.client.Start()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return video.TransportError(video.ReasonConnectionLost, err)
	}
	return err
}

func (c *rtspConn) Close() error {
	return c.client.Stop()
}
