package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/smazurov/camwall/internal/video"
)

// Reasons specific to multipart framing.
const (
	ReasonMissingContentLength = "missing content-length"
	ReasonInvalidContentLength = "invalid content-length"
)

const (
	maxHeaderLines = 100
	maxFrameSize   = 16 << 20
)

// partReader splits a multipart JPEG byte stream into frames. Each part is
// framed by its Content-Length header; boundaries are skipped as ordinary
// header lines.
type partReader struct {
	r *bufio.Reader
}

func newPartReader(r io.Reader) *partReader {
	return &partReader{r: bufio.NewReaderSize(r, 64<<10)}
}

// Next returns the payload of the next part.
func (p *partReader) Next() ([]byte, error) {
	size, err := p.contentLength()
	if err != nil {
		return nil, err
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(p.r, data); err != nil {
		return nil, video.TransportError(video.ReasonConnectionLost, err)
	}
	return data, nil
}

// contentLength scans header lines until it finds Content-Length, then
// skips the rest of the header block.
func (p *partReader) contentLength() (int, error) {
	inHeaders := false
	for i := 0; i < maxHeaderLines; i++ {
		line, err := p.readLine()
		if err != nil {
			return 0, readError(err, !inHeaders)
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		inHeaders = true
		if !strings.EqualFold(strings.TrimSpace(name), "content-length") {
			continue
		}

		size, convErr := strconv.Atoi(strings.TrimSpace(value))
		if convErr != nil || size < 0 || size > maxFrameSize {
			return 0, video.TransportError(ReasonInvalidContentLength, fmt.Errorf("content-length %q", strings.TrimSpace(value)))
		}

		for j := i + 1; j < maxHeaderLines; j++ {
			rest, err := p.readLine()
			if err != nil {
				return 0, readError(err, false)
			}
			if rest == "" {
				return size, nil
			}
		}
		return 0, video.TransportError(ReasonMissingContentLength, errors.New("header block too long"))
	}
	return 0, video.TransportError(ReasonMissingContentLength, nil)
}

// readLine returns one line without its terminator. A stream ending on a
// partial line still yields that line.
func (p *partReader) readLine() (string, error) {
	line, err := p.r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readError classifies a failed header read. Only a clean EOF between
// parts, before any header of the next one, is the end of the stream.
func readError(err error, boundary bool) error {
	if boundary && errors.Is(err, io.EOF) {
		return video.TransportError(video.ReasonEndOfStream, err)
	}
	return video.TransportError(video.ReasonConnectionLost, err)
}
