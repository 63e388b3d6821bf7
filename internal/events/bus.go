package events

import (
	"time"

	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher. Publish never blocks on subscribers.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Now formats the current time the way every event timestamp is written.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Publish publishes an event to all subscribers of its concrete type.
// A nil bus drops the event so components can run without one.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case SurfaceCreatedEvent:
		event.Publish(b.dispatcher, e)
	case StreamRequestedEvent:
		event.Publish(b.dispatcher, e)
	case StreamStartedEvent:
		event.Publish(b.dispatcher, e)
	case StreamFinishedEvent:
		event.Publish(b.dispatcher, e)
	case FocusChangedEvent:
		event.Publish(b.dispatcher, e)
	case PTZCommandEvent:
		event.Publish(b.dispatcher, e)
	case JoystickDeviceEvent:
		event.Publish(b.dispatcher, e)
	case DirectoryReloadedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler for the event type of its argument and returns
// the unsubscribe function. Unknown handler types get a no-op.
//
//	unsub := bus.Subscribe(func(e StreamFinishedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SurfaceCreatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamRequestedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FocusChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PTZCommandEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(JoystickDeviceEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DirectoryReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
