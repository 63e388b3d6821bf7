package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smazurov/camwall/internal/video"
)

const (
	viewerWriteWait    = 5 * time.Second
	viewerPingInterval = 30 * time.Second
	viewerStatusPoll   = 500 * time.Millisecond
	viewerFrameBuffer  = 2
)

// viewerStatus is the text message sent whenever the surface status changes.
type viewerStatus struct {
	SurfaceID string `json:"surface_id"`
	Status    string `json:"status"`
}

// handleSurfaceSocket pushes a surface's JPEG frames to a websocket as
// binary messages and its status changes as JSON text messages. A slow
// viewer misses frames rather than holding up the stream.
func (s *Server) handleSurfaceSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorizeHTTP(w, r) {
		return
	}
	surface, ok := s.manager.Surface(r.PathValue("surface_id"))
	if !ok {
		http.Error(w, "surface not found", http.StatusNotFound)
		return
	}
	canvas, ok := surface.(*video.Canvas)
	if !ok {
		http.Error(w, "surface cannot be viewed", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("Viewer upgrade failed", "surface", surface.ID(), "error", err)
		return
	}
	defer conn.Close()

	logger := s.logger.With("surface", surface.ID(), "remote_addr", r.RemoteAddr)
	logger.Debug("Viewer connected")
	defer logger.Debug("Viewer disconnected")

	frames, unsubscribe := canvas.Subscribe(viewerFrameBuffer)
	defer unsubscribe()

	// The read side only exists to notice the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	status := canvas.Status()
	if err := writeViewerJSON(conn, viewerStatus{SurfaceID: surface.ID(), Status: status}); err != nil {
		return
	}
	if f, ok := canvas.LastFrame(); ok {
		if err := writeViewerFrame(conn, f); err != nil {
			return
		}
	}

	ping := time.NewTicker(viewerPingInterval)
	defer ping.Stop()
	poll := time.NewTicker(viewerStatusPoll)
	defer poll.Stop()

	for {
		select {
		case <-closed:
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			if err := writeViewerFrame(conn, f); err != nil {
				logger.Debug("Viewer write failed", "error", err)
				return
			}
		case <-poll.C:
			if cur := canvas.Status(); cur != status {
				status = cur
				if err := writeViewerJSON(conn, viewerStatus{SurfaceID: surface.ID(), Status: status}); err != nil {
					return
				}
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(viewerWriteWait)); err != nil {
				return
			}
		}
	}
}

func writeViewerFrame(conn *websocket.Conn, f video.Frame) error {
	if f.Format != video.FormatJPEG {
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(viewerWriteWait))
	return conn.WriteMessage(websocket.BinaryMessage, f.Data)
}

func writeViewerJSON(conn *websocket.Conn, v any) error {
	_ = conn.SetWriteDeadline(time.Now().Add(viewerWriteWait))
	return conn.WriteJSON(v)
}
