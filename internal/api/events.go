package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/camwall/internal/events"
)

// sseEventTypes maps SSE event names to the bus events they carry.
var sseEventTypes = map[string]any{
	"surface-created":    events.SurfaceCreatedEvent{},
	"stream-requested":   events.StreamRequestedEvent{},
	"stream-started":     events.StreamStartedEvent{},
	"stream-finished":    events.StreamFinishedEvent{},
	"focus-changed":      events.FocusChangedEvent{},
	"ptz-command":        events.PTZCommandEvent{},
	"joystick-device":    events.JoystickDeviceEvent{},
	"directory-reloaded": events.DirectoryReloadedEvent{},
}

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream lifecycle, PTZ and directory events. " +
			"The current focus is sent first as a focus-changed event.",
		Tags:     []string{"events"},
		Security: withAuth(),
		Errors:   []int{401},
	}, sseEventTypes, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.SurfaceCreatedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamRequestedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamStartedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamFinishedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FocusChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PTZCommandEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.JoystickDeviceEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DirectoryReloadedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		focus := ""
		if s.dispatcher != nil {
			focus = s.dispatcher.Focus()
		}
		if err := send.Data(events.FocusChangedEvent{Previous: focus, Current: focus, Timestamp: events.Now()}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
