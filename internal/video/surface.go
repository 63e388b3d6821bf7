package video

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Format is the encoding of a Frame payload.
type Format string

// Frame formats.
const (
	FormatJPEG Format = "jpeg"
	FormatH264 Format = "h264"
)

// Frame is one unit of video handed to a surface. Data is owned by the
// receiver once delivered; transports must not reuse the slice.
type Frame struct {
	Seq       uint64
	Format    Format
	Data      []byte
	Timestamp time.Time
}

// Surface is the renderable target a stream writes into. Implementations
// must be safe for use from the stream's background goroutine and must
// not block. IDs must be unique within a manager.
type Surface interface {
	ID() string
	Render(f Frame)
	SetStatus(status string)
}

// Canvas is an in-memory Surface. It keeps the latest frame and status and
// fans frames out to subscribers, dropping frames for slow ones.
type Canvas struct {
	id string

	mu      sync.RWMutex
	status  string
	last    Frame
	hasLast bool
	count   uint64
	updated time.Time
	subs    map[int]chan Frame
	nextSub int
}

// NewCanvas allocates an empty canvas with a random id.
func NewCanvas() *Canvas {
	return NewCanvasWithID(uuid.NewString())
}

// NewCanvasWithID allocates an empty canvas with a fixed id.
func NewCanvasWithID(id string) *Canvas {
	return &Canvas{
		id:      id,
		updated: time.Now(),
		subs:    make(map[int]chan Frame),
	}
}

// ID implements Surface.
func (c *Canvas) ID() string { return c.id }

// Render implements Surface.
func (c *Canvas) Render(f Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.last = f
	c.hasLast = true
	c.count++
	c.updated = time.Now()
	for _, ch := range c.subs {
		select {
		case ch <- f:
		default:
		}
	}
}

// SetStatus implements Surface.
func (c *Canvas) SetStatus(status string) {
	c.mu.Lock()
	c.status = status
	c.updated = time.Now()
	c.mu.Unlock()
}

// Status returns the last status written.
func (c *Canvas) Status() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// LastFrame returns the most recent frame, if any.
func (c *Canvas) LastFrame() (Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last, c.hasLast
}

// FrameCount returns how many frames have been rendered.
func (c *Canvas) FrameCount() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// Updated returns the time of the last frame or status change.
func (c *Canvas) Updated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updated
}

// Subscribe returns a channel receiving every rendered frame, and a cancel
// function that closes it. Frames are dropped while the channel is full.
func (c *Canvas) Subscribe(buffer int) (<-chan Frame, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Frame, buffer)

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}
