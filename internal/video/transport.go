package video

import "context"

// Transport opens connections for one transport family. A deployment
// selects exactly one at startup; it is shared by every stream.
type Transport interface {
	// Name identifies the family in logs and metrics.
	Name() string
	// Accepts reports whether source is something this family can play.
	Accepts(source string) bool
	// Connect establishes the connection. It must honour ctx cancellation.
	Connect(ctx context.Context, source string, req Request) (Conn, error)
}

// Conn is an established connection.
type Conn interface {
	// Play pushes frames into sink until ctx is cancelled or the stream
	// ends. A nil return means the source ended normally.
	Play(ctx context.Context, sink FrameSink) error
	// Close releases the connection. It may be called after Play returns.
	Close() error
}

// FrameSink receives decoded or passthrough frames from a Conn.
type FrameSink interface {
	WriteFrame(f Frame)
}

// Resolver turns a request into a transport source. accepts is the active
// transport's Accepts, so a resolver with several candidate sources can
// pick one the transport can play.
type Resolver interface {
	Resolve(ctx context.Context, req Request, accepts func(source string) bool) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, req Request, accepts func(string) bool) (string, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, req Request, accepts func(string) bool) (string, error) {
	return f(ctx, req, accepts)
}

// DirectResolver uses the camera identifier itself as the source.
var DirectResolver Resolver = ResolverFunc(func(_ context.Context, req Request, accepts func(string) bool) (string, error) {
	if !accepts(req.CameraID()) {
		return "", TransportError(ReasonUnknownCamera, nil)
	}
	return req.CameraID(), nil
})
