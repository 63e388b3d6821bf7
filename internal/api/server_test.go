package api

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/smazurov/camwall/internal/api/models"
	"github.com/smazurov/camwall/internal/directory"
	"github.com/smazurov/camwall/internal/events"
	"github.com/smazurov/camwall/internal/logging"
	"github.com/smazurov/camwall/internal/metrics"
	"github.com/smazurov/camwall/internal/ptz"
	"github.com/smazurov/camwall/internal/transport"
	"github.com/smazurov/camwall/internal/video"
	"github.com/stretchr/testify/require"
)

const testDirectory = `
version = 1

[templates.pattern]
label = "Local pattern"
config = "pattern://{pname}?fps=25&width=64&height=48"

[encoders.local]
templates = ["pattern"]

[cameras.CAM-1]
name = "Lobby"
encoder = "local"
ptz = "http://10.0.0.9/onvif/device_service"

[cameras.CAM-2]
encoder = "local"
`

const waitFor = 3 * time.Second

type testNode struct {
	server  *Server
	http    *httptest.Server
	manager *video.StreamManager
	bus     *events.Bus
}

func newTestNode(t *testing.T, maxSurfaces int) *testNode {
	t.Helper()

	d, err := directory.Parse([]byte(testDirectory))
	require.NoError(t, err)

	bus := events.New()
	store := directory.NewStore(d, directory.StoreOptions{Bus: bus, Logger: logging.Discard()})
	manager := video.NewStreamManager(transport.NewPattern(), video.Options{
		Resolver:    store,
		MaxSurfaces: maxSurfaces,
		EventBus:    bus,
		Logger:      logging.Discard(),
	})
	dispatcher := ptz.NewDispatcher(ptz.NewLogController(logging.Discard()), ptz.DispatcherOptions{
		Selector: store,
		Bus:      bus,
		Logger:   logging.Discard(),
	})

	server := NewServer(&Options{
		AuthUsername:      "admin",
		AuthPassword:      "secret",
		Manager:           manager,
		Directory:         store,
		Dispatcher:        dispatcher,
		EventBus:          bus,
		PrometheusHandler: metrics.Handler(),
		Logger:            logging.Discard(),
	})
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(func() {
		ts.Close()
		manager.Close()
	})
	return &testNode{server: server, http: ts, manager: manager, bus: bus}
}

func credentials() string {
	return base64.StdEncoding.EncodeToString([]byte("admin:secret"))
}

// do sends an authenticated JSON request and decodes the response into out.
func (n *testNode) do(t *testing.T, method, path string, body, out any) int {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, n.http.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Basic "+credentials())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (n *testNode) createSurface(t *testing.T) string {
	t.Helper()
	var surface models.SurfaceData
	require.Equal(t, http.StatusCreated, n.do(t, http.MethodPost, "/api/surfaces", nil, &surface))
	require.NotEmpty(t, surface.SurfaceID)
	return surface.SurfaceID
}

func (n *testNode) waitSurface(t *testing.T, id string, cond func(models.SurfaceData) bool) models.SurfaceData {
	t.Helper()
	deadline := time.Now().Add(waitFor)
	for {
		var surface models.SurfaceData
		require.Equal(t, http.StatusOK, n.do(t, http.MethodGet, "/api/surfaces/"+id, nil, &surface))
		if cond(surface) {
			return surface
		}
		if time.Now().After(deadline) {
			t.Fatalf("surface %s never reached the expected state, last: %+v", id, surface)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestHealth_NoAuth(t *testing.T) {
	n := newTestNode(t, 0)

	resp, err := http.Get(n.http.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health models.HealthData
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, transport.NamePattern, health.Transport)
}

func TestAuth(t *testing.T) {
	n := newTestNode(t, 0)

	resp, err := http.Get(n.http.URL + "/api/surfaces")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")

	req, _ := http.NewRequest(http.MethodGet, n.http.URL+"/api/surfaces", nil)
	req.SetBasicAuth("admin", "wrong")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(n.http.URL + "/api/surfaces?auth=" + credentials())
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCheckCredentials(t *testing.T) {
	good := base64.StdEncoding.EncodeToString([]byte("u:p:with:colons"))
	require.NoError(t, checkCredentials("Basic "+good, "", "u", "p:with:colons"))
	require.NoError(t, checkCredentials("", good, "u", "p:with:colons"))
	require.ErrorIs(t, checkCredentials("", "", "u", "p"), errAuthRequired)
	require.ErrorIs(t, checkCredentials("Bearer x", "", "u", "p"), errAuthType)
	require.ErrorIs(t, checkCredentials("Basic !!", "", "u", "p"), errAuthFormat)
	require.ErrorIs(t, checkCredentials("Basic "+base64.StdEncoding.EncodeToString([]byte("nocolon")), "", "u", "p"), errAuthFormat)
}

func TestSurface_StreamLifecycle(t *testing.T) {
	n := newTestNode(t, 0)
	id := n.createSurface(t)

	var stream models.StreamData
	code := n.do(t, http.MethodPut, "/api/surfaces/"+id+"/stream", models.StreamRequestData{CameraID: "CAM-1", Size: "s"}, &stream)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "CAM-1", stream.CameraID)
	require.Equal(t, "small", stream.Size)
	require.Equal(t, transport.NamePattern, stream.Transport)
	require.NotEmpty(t, stream.StreamID)

	surface := n.waitSurface(t, id, func(s models.SurfaceData) bool {
		return s.Stream != nil && s.Stream.State == "playing" && s.Frames > 0
	})
	require.Equal(t, video.StatusConnected, surface.Status)
	require.Equal(t, stream.StreamID, surface.Stream.StreamID)

	require.Equal(t, http.StatusNoContent, n.do(t, http.MethodDelete, "/api/surfaces/"+id+"/stream", nil, nil))
	surface = n.waitSurface(t, id, func(s models.SurfaceData) bool { return s.Stream == nil })
	require.Equal(t, video.EndedStatus(video.ReasonCleared), surface.Status)

	var list models.SurfaceListData
	require.Equal(t, http.StatusOK, n.do(t, http.MethodGet, "/api/surfaces", nil, &list))
	require.Equal(t, 1, list.Count)

	require.Equal(t, http.StatusNoContent, n.do(t, http.MethodDelete, "/api/surfaces/"+id, nil, nil))
	require.Equal(t, http.StatusNotFound, n.do(t, http.MethodGet, "/api/surfaces/"+id, nil, nil))
}

func TestSurface_UnknownCameraFailsAsync(t *testing.T) {
	n := newTestNode(t, 0)
	id := n.createSurface(t)

	require.Equal(t, http.StatusOK, n.do(t, http.MethodPut, "/api/surfaces/"+id+"/stream", models.StreamRequestData{CameraID: "NOPE"}, nil))
	surface := n.waitSurface(t, id, func(s models.SurfaceData) bool { return s.Stream == nil && s.Status != video.StatusConnecting })
	require.Equal(t, video.EndedStatus(video.ReasonUnknownCamera), surface.Status)
}

func TestSurface_RequestErrors(t *testing.T) {
	n := newTestNode(t, 1)
	id := n.createSurface(t)

	require.Equal(t, http.StatusServiceUnavailable, n.do(t, http.MethodPost, "/api/surfaces", nil, nil))
	require.Equal(t, http.StatusNotFound, n.do(t, http.MethodPut, "/api/surfaces/missing/stream", models.StreamRequestData{CameraID: "CAM-1"}, nil))
	require.Equal(t, http.StatusBadRequest, n.do(t, http.MethodPut, "/api/surfaces/"+id+"/stream", models.StreamRequestData{CameraID: ""}, nil))
	require.Equal(t, http.StatusBadRequest, n.do(t, http.MethodPut, "/api/surfaces/"+id+"/stream", models.StreamRequestData{CameraID: "CAM-1", Size: "huge"}, nil))
	require.Equal(t, http.StatusNotFound, n.do(t, http.MethodDelete, "/api/surfaces/missing/stream", nil, nil))
}

func TestCameras(t *testing.T) {
	n := newTestNode(t, 0)

	var list models.CameraListData
	require.Equal(t, http.StatusOK, n.do(t, http.MethodGet, "/api/cameras", nil, &list))
	require.Equal(t, 2, list.Count)
	require.Equal(t, "CAM-1", list.Cameras[0].CameraID)
	require.Equal(t, "Lobby", list.Cameras[0].Name)
	require.True(t, list.Cameras[0].PTZ)
	require.False(t, list.Cameras[1].PTZ)

	var sources models.SourceListData
	require.Equal(t, http.StatusOK, n.do(t, http.MethodGet, "/api/cameras/CAM-1/sources", nil, &sources))
	require.Equal(t, "pattern://Lobby?fps=25&width=64&height=48", sources.Selected)
	require.Len(t, sources.Sources, 1)
	require.True(t, sources.Sources[0].Accepted)

	require.Equal(t, http.StatusNotFound, n.do(t, http.MethodGet, "/api/cameras/NOPE/sources", nil, nil))
}

func TestFocusAndButtons(t *testing.T) {
	n := newTestNode(t, 0)

	var focus models.FocusData
	require.Equal(t, http.StatusOK, n.do(t, http.MethodPut, "/api/focus", map[string]string{"camera_id": "CAM-1"}, &focus))
	require.Equal(t, "", focus.Previous)
	require.Equal(t, "CAM-1", focus.Current)

	require.Equal(t, http.StatusNotFound, n.do(t, http.MethodPut, "/api/focus", map[string]string{"camera_id": "NOPE"}, nil))

	var button models.ButtonData
	require.Equal(t, http.StatusOK, n.do(t, http.MethodPost, "/api/joystick/buttons", map[string]any{"button": 7, "pressed": true}, &button))
	require.Equal(t, "CAM-1", button.Focus)
	require.True(t, button.Pressed)

	require.Equal(t, http.StatusOK, n.do(t, http.MethodPost, "/api/joystick/buttons", map[string]any{"button": 11, "pressed": true}, &button))
	require.Equal(t, "CAM-2", button.Focus)

	require.Equal(t, http.StatusOK, n.do(t, http.MethodGet, "/api/focus", nil, &focus))
	require.Equal(t, "CAM-2", focus.Current)

	var list models.CameraListData
	require.Equal(t, http.StatusOK, n.do(t, http.MethodGet, "/api/cameras", nil, &list))
	require.True(t, list.Cameras[1].Focused)
}

func TestEvents_SSE(t *testing.T) {
	n := newTestNode(t, 0)

	resp, err := http.Get(n.http.URL + "/api/events?auth=" + credentials())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := make(chan string, 32)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	next := func(prefix string) string {
		t.Helper()
		timeout := time.After(waitFor)
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "event stream closed")
				if strings.HasPrefix(line, prefix) {
					return line
				}
			case <-timeout:
				t.Fatalf("timeout waiting for %q", prefix)
			}
		}
	}

	require.Equal(t, "event: focus-changed", next("event:"))
	next("data:")

	id := n.createSurface(t)
	require.Equal(t, "event: surface-created", next("event:"))
	require.Contains(t, next("data:"), id)
}

func TestViewer_PushesFrames(t *testing.T) {
	n := newTestNode(t, 0)
	id := n.createSurface(t)
	require.Equal(t, http.StatusOK, n.do(t, http.MethodPut, "/api/surfaces/"+id+"/stream", models.StreamRequestData{CameraID: "CAM-2"}, nil))

	wsURL := "ws" + strings.TrimPrefix(n.http.URL, "http") + "/api/surfaces/" + id + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?auth="+credentials(), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	var sawStatus, sawFrame bool
	for !sawFrame {
		kind, data, err := conn.ReadMessage()
		require.NoError(t, err)
		switch kind {
		case websocket.TextMessage:
			var st viewerStatus
			require.NoError(t, json.Unmarshal(data, &st))
			require.Equal(t, id, st.SurfaceID)
			sawStatus = true
		case websocket.BinaryMessage:
			require.True(t, bytes.HasPrefix(data, []byte{0xFF, 0xD8}), "not a JPEG")
			sawFrame = true
		}
	}
	require.True(t, sawStatus)

	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(n.http.URL, "http")+"/api/surfaces/missing/ws?auth="+credentials(), nil)
	require.Error(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsRoute(t *testing.T) {
	n := newTestNode(t, 0)

	resp, err := http.Get(n.http.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
