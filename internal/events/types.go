package events

// Event type constants for kelindar/event.
const (
	TypeSurfaceCreated uint32 = iota + 1
	TypeStreamRequested
	TypeStreamStarted
	TypeStreamFinished
	TypeFocusChanged
	TypePTZCommand
	TypeJoystickDevice
	TypeDirectoryReloaded
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SurfaceCreatedEvent is published when a renderable surface is allocated.
type SurfaceCreatedEvent struct {
	SurfaceID string `json:"surface_id" example:"6f1c2b0e-9a51-4c1e-8a0d-1b2f3c4d5e6f" doc:"Surface identifier"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SurfaceCreatedEvent.
func (e SurfaceCreatedEvent) Type() uint32 { return TypeSurfaceCreated }

// StreamRequestedEvent is published when a stream is bound to a surface.
type StreamRequestedEvent struct {
	StreamID  string `json:"stream_id" doc:"Stream handle identifier"`
	SurfaceID string `json:"surface_id" doc:"Surface the stream is bound to"`
	CameraID  string `json:"camera_id" example:"CAM-101" doc:"Requested camera"`
	Transport string `json:"transport" example:"mjpeg" doc:"Active transport"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamRequestedEvent.
func (e StreamRequestedEvent) Type() uint32 { return TypeStreamRequested }

// StreamStartedEvent is published when a stream delivers its first frame.
type StreamStartedEvent struct {
	StreamID  string `json:"stream_id" doc:"Stream handle identifier"`
	SurfaceID string `json:"surface_id" doc:"Surface the stream renders into"`
	CameraID  string `json:"camera_id" example:"CAM-101" doc:"Camera identifier"`
	Transport string `json:"transport" example:"mjpeg" doc:"Active transport"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamStartedEvent.
func (e StreamStartedEvent) Type() uint32 { return TypeStreamStarted }

// StreamFinishedEvent is published once per stream when it reaches Finished.
type StreamFinishedEvent struct {
	StreamID   string `json:"stream_id" doc:"Stream handle identifier"`
	SurfaceID  string `json:"surface_id" doc:"Surface the stream was bound to"`
	CameraID   string `json:"camera_id" example:"CAM-101" doc:"Camera identifier"`
	Transport  string `json:"transport" example:"mjpeg" doc:"Active transport"`
	Status     string `json:"status" example:"stream ended: connection lost" doc:"Final status text"`
	Reason     string `json:"reason" example:"connection lost" doc:"Why the stream ended"`
	Started    bool   `json:"started" doc:"Whether the stream ever reached playing"`
	Frames     uint64 `json:"frames" doc:"Frames received over the stream lifetime"`
	DurationMs int64  `json:"duration_ms" doc:"Time from request to finish"`
	Timestamp  string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for StreamFinishedEvent.
func (e StreamFinishedEvent) Type() uint32 { return TypeStreamFinished }

// FocusChangedEvent is published when PTZ control moves to another camera.
type FocusChangedEvent struct {
	Previous  string `json:"previous" example:"CAM-101" doc:"Previously controlled camera"`
	Current   string `json:"current" example:"CAM-202" doc:"Newly controlled camera"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FocusChangedEvent.
func (e FocusChangedEvent) Type() uint32 { return TypeFocusChanged }

// PTZCommandEvent is published for every command sent to a camera.
type PTZCommandEvent struct {
	CameraID  string  `json:"camera_id" example:"CAM-101" doc:"Target camera"`
	Command   string  `json:"command" example:"preset" enum:"preset,move,stop" doc:"Command kind"`
	Preset    int     `json:"preset,omitempty" doc:"Preset number for preset commands"`
	Pan       float64 `json:"pan,omitempty" doc:"Pan velocity"`
	Tilt      float64 `json:"tilt,omitempty" doc:"Tilt velocity"`
	Zoom      float64 `json:"zoom,omitempty" doc:"Zoom velocity"`
	Error     string  `json:"error,omitempty" doc:"Controller error, if the command failed"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PTZCommandEvent.
func (e PTZCommandEvent) Type() uint32 { return TypePTZCommand }

// JoystickDeviceEvent reports a joystick being attached or lost.
type JoystickDeviceEvent struct {
	Device    string `json:"device" example:"/dev/input/js0" doc:"Device path"`
	Action    string `json:"action" example:"attached" enum:"attached,detached" doc:"What happened"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for JoystickDeviceEvent.
func (e JoystickDeviceEvent) Type() uint32 { return TypeJoystickDevice }

// DirectoryReloadedEvent is published after the camera directory file is reloaded.
type DirectoryReloadedEvent struct {
	Cameras   int    `json:"cameras" doc:"Number of cameras now known"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DirectoryReloadedEvent.
func (e DirectoryReloadedEvent) Type() uint32 { return TypeDirectoryReloaded }
