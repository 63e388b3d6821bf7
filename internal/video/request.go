package video

import (
	"fmt"
	"maps"
	"strings"
)

// Size is a resolution hint for the source template.
type Size int

// Size hints. The zero value is medium.
const (
	SizeMedium Size = iota
	SizeSmall
	SizeLarge
)

// Code is the one-letter form used in source templates.
func (s Size) Code() string {
	switch s {
	case SizeSmall:
		return "s"
	case SizeLarge:
		return "l"
	default:
		return "m"
	}
}

func (s Size) String() string {
	switch s {
	case SizeSmall:
		return "small"
	case SizeMedium:
		return "medium"
	case SizeLarge:
		return "large"
	default:
		return fmt.Sprintf("Size(%d)", int(s))
	}
}

// ParseSize accepts "small", "medium", "large" or their one-letter codes.
// The empty string is medium.
func ParseSize(s string) (Size, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "m", "medium":
		return SizeMedium, nil
	case "s", "small":
		return SizeSmall, nil
	case "l", "large":
		return SizeLarge, nil
	default:
		return SizeMedium, InvalidRequestError("unknown size %q", s)
	}
}

// Bounds constrains the rendered size. Zero means unconstrained.
type Bounds struct {
	Width  int
	Height int
}

// Auth is the caller's session context, forwarded to source templates.
type Auth struct {
	User      string
	SessionID int64
}

// Request describes what to stream. It is immutable: every field is
// reachable only through accessors that return copies.
type Request struct {
	cameraID string
	size     Size
	bounds   Bounds
	auth     Auth
	props    map[string]string
}

// RequestOption sets an optional Request field.
type RequestOption func(*Request)

// WithSize sets the resolution hint.
func WithSize(s Size) RequestOption {
	return func(r *Request) { r.size = s }
}

// WithBounds sets the size-constraint rectangle.
func WithBounds(width, height int) RequestOption {
	return func(r *Request) { r.bounds = Bounds{Width: width, Height: height} }
}

// WithAuth sets the session context.
func WithAuth(a Auth) RequestOption {
	return func(r *Request) { r.auth = a }
}

// WithProperty adds a template property.
func WithProperty(key, value string) RequestOption {
	return func(r *Request) {
		if r.props == nil {
			r.props = make(map[string]string)
		}
		r.props[key] = value
	}
}

// NewRequest builds a request for cameraID. It is not validated here.
func NewRequest(cameraID string, opts ...RequestOption) Request {
	r := Request{cameraID: strings.TrimSpace(cameraID)}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// CameraID returns the camera identifier.
func (r Request) CameraID() string { return r.cameraID }

// Size returns the resolution hint.
func (r Request) Size() Size { return r.size }

// Bounds returns the constraint rectangle and whether one was set.
func (r Request) Bounds() (Bounds, bool) {
	return r.bounds, r.bounds.Width > 0 || r.bounds.Height > 0
}

// Auth returns the session context.
func (r Request) Auth() Auth { return r.auth }

// Property returns one template property.
func (r Request) Property(key string) (string, bool) {
	v, ok := r.props[key]
	return v, ok
}

// Properties returns a copy of all template properties.
func (r Request) Properties() map[string]string {
	return maps.Clone(r.props)
}

// Validate checks the request is well formed.
func (r Request) Validate() error {
	if r.cameraID == "" {
		return InvalidRequestError("camera identifier is required")
	}
	if r.size < SizeMedium || r.size > SizeLarge {
		return InvalidRequestError("unknown size %d", int(r.size))
	}
	if r.bounds.Width < 0 || r.bounds.Height < 0 {
		return InvalidRequestError("bounds must not be negative (%dx%d)", r.bounds.Width, r.bounds.Height)
	}
	return nil
}

func (r Request) String() string {
	if b, ok := r.Bounds(); ok {
		return fmt.Sprintf("%s/%s/%dx%d", r.cameraID, r.size, b.Width, b.Height)
	}
	return fmt.Sprintf("%s/%s", r.cameraID, r.size)
}
