package transport

import (
	"fmt"
	"io"
	"strings"
	"syscall"
	"testing"
	"testing/iotest"

	"github.com/smazurov/camwall/internal/video"
	"github.com/stretchr/testify/require"
)

func part(boundary string, body string, extraHeaders ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--%s\r\nContent-Type: image/jpeg\r\n", boundary)
	fmt.Fprintf(&b, "Content-Length: %d\r\n", len(body))
	for _, h := range extraHeaders {
		b.WriteString(h + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return b.String()
}

func TestPartReader_Frames(t *testing.T) {
	stream := part("frame", "first") + part("frame", "second\r\nwith newline", "X-Timestamp: 12") + part("frame", "")
	r := newPartReader(strings.NewReader(stream))

	got, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "first", string(got))

	got, err = r.Next()
	require.NoError(t, err)
	require.Equal(t, "second\r\nwith newline", string(got))

	got, err = r.Next()
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = r.Next()
	require.True(t, video.IsTransport(err))
	require.ErrorIs(t, err, &video.Error{Code: video.CodeTransport, Message: video.ReasonEndOfStream})
}

func TestPartReader_Errors(t *testing.T) {
	tests := []struct {
		name   string
		stream string
		reason string
	}{
		{"empty", "", video.ReasonEndOfStream},
		{"bad length", "--b\r\nContent-Length: abc\r\n\r\n", ReasonInvalidContentLength},
		{"negative length", "--b\r\ncontent-length: -4\r\n\r\n", ReasonInvalidContentLength},
		{"huge length", "--b\r\nContent-Length: 999999999\r\n\r\n", ReasonInvalidContentLength},
		{"closing boundary", "--b--\r\n", video.ReasonEndOfStream},
		{"truncated body", "--b\r\nContent-Length: 10\r\n\r\nabc", video.ReasonConnectionLost},
		{"length without body", "--b\r\nContent-Length: 10\r\n\r\n", video.ReasonConnectionLost},
		{"cut inside headers", "--b\r\nContent-Type: image/jpeg\r\n", video.ReasonConnectionLost},
		{"no length", strings.Repeat("X-Header: 1\r\n", maxHeaderLines+1), ReasonMissingContentLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newPartReader(strings.NewReader(tt.stream)).Next()
			requireReason(t, err, tt.reason)
		})
	}
}

func TestPartReader_ResetIsConnectionLost(t *testing.T) {
	r := newPartReader(io.MultiReader(strings.NewReader(part("frame", "first")), iotest.ErrReader(syscall.ECONNRESET)))

	got, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, "first", string(got))

	_, err = r.Next()
	requireReason(t, err, video.ReasonConnectionLost)
	require.ErrorIs(t, err, syscall.ECONNRESET)
}

func requireReason(t *testing.T, err error, reason string) {
	t.Helper()
	var verr *video.Error
	require.ErrorAs(t, err, &verr)
	require.Equal(t, video.CodeTransport, verr.Code)
	require.Equal(t, reason, verr.Message)
}
