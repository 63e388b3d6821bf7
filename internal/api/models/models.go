package models

import "time"

// Health check models
type HealthData struct {
	Status    string `json:"status" example:"ok" doc:"Service status"`
	Message   string `json:"message" example:"API is healthy" doc:"Status message"`
	Transport string `json:"transport" example:"mjpeg" doc:"Active stream transport"`
	Surfaces  int    `json:"surfaces" example:"4" doc:"Surfaces currently allocated"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.1" doc:"Go version used to build"`
	Platform  string `json:"platform" example:"linux/arm64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Camera models
type CameraData struct {
	CameraID string `json:"camera_id" example:"CAM-101" doc:"Camera identifier"`
	Name     string `json:"name" example:"I-5 @ Main St" doc:"Display name"`
	Encoder  string `json:"encoder" example:"axis-q" doc:"Encoder type the camera sits behind"`
	Address  string `json:"address,omitempty" example:"10.0.0.5" doc:"Encoder address"`
	Channel  int    `json:"channel,omitempty" example:"2" doc:"Encoder channel"`
	PTZ      bool   `json:"ptz" doc:"Whether the camera accepts PTZ commands"`
	Focused  bool   `json:"focused" doc:"Whether the camera is under PTZ control"`
}

type CameraListData struct {
	Cameras []CameraData `json:"cameras" doc:"Cameras in directory order"`
	Count   int          `json:"count" example:"12" doc:"Number of cameras"`
}

type CameraListResponse struct {
	Body CameraListData
}

type SourceData struct {
	Template string `json:"template" example:"multicast" doc:"Template name"`
	Label    string `json:"label,omitempty" example:"Multicast MJPEG" doc:"Template label"`
	Source   string `json:"source,omitempty" example:"http://10.0.0.5/mjpg/2/video.mjpg" doc:"Expanded source"`
	Accepted bool   `json:"accepted" doc:"Whether the active transport can play the source"`
	Skipped  string `json:"skipped,omitempty" example:"no value for {maddr}" doc:"Why the template was not usable"`
}

type SourceListData struct {
	CameraID string       `json:"camera_id" example:"CAM-101" doc:"Camera identifier"`
	Selected string       `json:"selected,omitempty" doc:"Source a stream request would use"`
	Sources  []SourceData `json:"sources" doc:"Every template in encoder order"`
}

type SourceListResponse struct {
	Body SourceListData
}

// Stream models
type StreamData struct {
	StreamID  string    `json:"stream_id" doc:"Stream handle identifier"`
	CameraID  string    `json:"camera_id" example:"CAM-101" doc:"Requested camera"`
	Size      string    `json:"size" example:"medium" enum:"small,medium,large" doc:"Requested size"`
	Transport string    `json:"transport" example:"mjpeg" doc:"Transport carrying the stream"`
	State     string    `json:"state" example:"playing" enum:"connecting,playing,finished" doc:"Lifecycle state"`
	Status    string    `json:"status" example:"connected" doc:"Status text shown on the surface"`
	Reason    string    `json:"reason,omitempty" example:"connection lost" doc:"Why the stream finished"`
	Error     string    `json:"error,omitempty" doc:"First error the stream hit"`
	Frames    uint64    `json:"frames" example:"1200" doc:"Frames received"`
	UptimeMs  int64     `json:"uptime_ms" example:"60000" doc:"Time since the first frame"`
	Created   time.Time `json:"created" doc:"When the stream was requested"`
}

type StreamRequestData struct {
	CameraID   string            `json:"camera_id" example:"CAM-101" doc:"Camera to show"`
	Size       string            `json:"size,omitempty" example:"medium" doc:"Resolution hint: s, m, l or small, medium, large"`
	Width      int               `json:"width,omitempty" minimum:"0" example:"640" doc:"Maximum rendered width"`
	Height     int               `json:"height,omitempty" minimum:"0" example:"480" doc:"Maximum rendered height"`
	Properties map[string]string `json:"properties,omitempty" doc:"Extra template properties for this request"`
}

type StreamRequest struct {
	SurfaceID string `path:"surface_id" doc:"Surface identifier"`
	Body      StreamRequestData
}

type StreamResponse struct {
	Body StreamData
}

// Surface models
type SurfaceData struct {
	SurfaceID string      `json:"surface_id" doc:"Surface identifier"`
	Status    string      `json:"status" example:"connected" doc:"Status text"`
	Frames    uint64      `json:"frames" example:"1200" doc:"Frames rendered into the surface"`
	Updated   time.Time   `json:"updated" doc:"Last frame or status change"`
	Stream    *StreamData `json:"stream,omitempty" doc:"Stream bound to the surface"`
}

type SurfaceListData struct {
	Surfaces []SurfaceData `json:"surfaces" doc:"Allocated surfaces"`
	Count    int           `json:"count" example:"4" doc:"Number of surfaces"`
}

type SurfaceListResponse struct {
	Body SurfaceListData
}

type SurfaceResponse struct {
	Body SurfaceData
}

// PTZ models
type FocusRequest struct {
	Body struct {
		CameraID string `json:"camera_id" example:"CAM-202" doc:"Camera to control, empty releases control"`
	}
}

type FocusData struct {
	Previous string `json:"previous" example:"CAM-101" doc:"Previously controlled camera"`
	Current  string `json:"current" example:"CAM-202" doc:"Camera now under control"`
}

type FocusResponse struct {
	Body FocusData
}

type ButtonRequest struct {
	Body struct {
		Button  int  `json:"button" minimum:"0" example:"7" doc:"Button number"`
		Pressed bool `json:"pressed" doc:"True on press, false on release"`
	}
}

type ButtonData struct {
	Focus   string `json:"focus" example:"CAM-101" doc:"Camera under control after the event"`
	Pressed bool   `json:"pressed" doc:"Whether the button is now held"`
}

type ButtonResponse struct {
	Body ButtonData
}
