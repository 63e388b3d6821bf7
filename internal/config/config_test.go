package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

type testOptions struct {
	Config string `help:"Config file path"`

	Transport    string        `toml:"stream.transport" env:"STREAM_TRANSPORT"`
	MaxSurfaces  int           `toml:"stream.max_surfaces" env:"STREAM_MAX_SURFACES"`
	FirstFrame   time.Duration `toml:"stream.first_frame_timeout" env:"STREAM_FIRST_FRAME_TIMEOUT"`
	Multiplier   float64       `toml:"stream.retry.multiplier" env:"STREAM_RETRY_MULTIPLIER"`
	JoystickOn   bool          `toml:"joystick.enabled" env:"JOYSTICK_ENABLED"`
	Subnets      []string      `toml:"directory.subnets" env:"DIRECTORY_SUBNETS"`
	DirectoryDir string        `toml:"directory.file" env:"DIRECTORY_FILE"`
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[stream]
transport = "rtsp"
max_surfaces = 16
first_frame_timeout = "7s"

[stream.retry]
multiplier = 1.5

[joystick]
enabled = true

[directory]
subnets = ["ops", "lab"]
file = "cameras.toml"
`)

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Transport != "rtsp" {
		t.Errorf("Transport = %q, want rtsp", opts.Transport)
	}
	if opts.MaxSurfaces != 16 {
		t.Errorf("MaxSurfaces = %d, want 16", opts.MaxSurfaces)
	}
	if opts.FirstFrame != 7*time.Second {
		t.Errorf("FirstFrame = %v, want 7s", opts.FirstFrame)
	}
	if opts.Multiplier != 1.5 {
		t.Errorf("Multiplier = %v, want 1.5", opts.Multiplier)
	}
	if !opts.JoystickOn {
		t.Error("JoystickOn = false, want true")
	}
	if want := []string{"ops", "lab"}; !reflect.DeepEqual(opts.Subnets, want) {
		t.Errorf("Subnets = %v, want %v", opts.Subnets, want)
	}
	if opts.DirectoryDir != "cameras.toml" {
		t.Errorf("DirectoryDir = %q, want cameras.toml", opts.DirectoryDir)
	}
}

func TestLoadConfigEnvOverridesToml(t *testing.T) {
	path := writeFile(t, "config.toml", `
[stream]
transport = "mjpeg"
max_surfaces = 4
`)
	t.Setenv("CAMWALL_STREAM_TRANSPORT", "gst")
	t.Setenv("CAMWALL_STREAM_FIRST_FRAME_TIMEOUT", "250ms")
	t.Setenv("CAMWALL_DIRECTORY_SUBNETS", " a , b ")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.Transport != "gst" {
		t.Errorf("Transport = %q, want env override gst", opts.Transport)
	}
	if opts.MaxSurfaces != 4 {
		t.Errorf("MaxSurfaces = %d, want 4 from TOML", opts.MaxSurfaces)
	}
	if opts.FirstFrame != 250*time.Millisecond {
		t.Errorf("FirstFrame = %v, want 250ms", opts.FirstFrame)
	}
	if want := []string{"a", "b"}; !reflect.DeepEqual(opts.Subnets, want) {
		t.Errorf("Subnets = %v, want %v", opts.Subnets, want)
	}
}

func TestLoadConfigDurationMilliseconds(t *testing.T) {
	path := writeFile(t, "config.toml", "[stream]\nfirst_frame_timeout = 1500\n")

	opts := &testOptions{Config: path}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if opts.FirstFrame != 1500*time.Millisecond {
		t.Errorf("FirstFrame = %v, want 1.5s", opts.FirstFrame)
	}
}

func TestLoadConfigTypeMismatch(t *testing.T) {
	path := writeFile(t, "config.toml", "[stream]\nmax_surfaces = \"many\"\n")

	if err := LoadConfig(&testOptions{Config: path}, nil); err == nil {
		t.Fatal("expected an error for a string in an integer field")
	}
}

func TestLoadConfigBadEnv(t *testing.T) {
	t.Setenv("CAMWALL_STREAM_MAX_SURFACES", "lots")

	if err := LoadConfig(&testOptions{}, nil); err == nil {
		t.Fatal("expected an error for a non-numeric env value")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{Config: filepath.Join(t.TempDir(), "absent.toml"), Transport: "mjpeg"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for a missing file: %v", err)
	}
	if opts.Transport != "mjpeg" {
		t.Errorf("default Transport overwritten: %q", opts.Transport)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := writeFile(t, "config.toml", "[stream\ninvalid toml syntax\n")

	if err := LoadConfig(&testOptions{Config: path}, nil); err == nil {
		t.Fatal("expected an error for invalid TOML")
	}
}

func TestLoadConfigRejectsNonPointer(t *testing.T) {
	if err := LoadConfig(testOptions{}, nil); err == nil {
		t.Fatal("expected an error for a non-pointer options value")
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"stream": map[string]any{
			"retry":     map[string]any{"attempts": int64(3)},
			"transport": "rtsp",
		},
		"root": "root_value",
	}

	tests := []struct {
		path string
		want any
	}{
		{"root", "root_value"},
		{"stream.transport", "rtsp"},
		{"stream.retry.attempts", int64(3)},
		{"nonexistent", nil},
		{"root.child", nil},
	}

	for _, tt := range tests {
		if got := getNestedValue(data, tt.path); got != tt.want {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Port":                    "port",
		"StreamTransport":         "stream-transport",
		"StreamFirstFrameTimeout": "stream-first-frame-timeout",
		"PTZDriver":               "ptz-driver",
		"JoystickPanAxis":         "joystick-pan-axis",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeFile(t, "config.toml", `
[logging]
level = "warn"
format = "json"
api = "error"

[logging.modules]
video = "debug"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("got level=%q format=%q, want warn/json", cfg.Level, cfg.Format)
	}
	if cfg.Modules["video"] != "debug" {
		t.Errorf("video module = %q, want debug", cfg.Modules["video"])
	}
	if cfg.Modules["api"] != "error" {
		t.Errorf("api module = %q, want error", cfg.Modules["api"])
	}
}

func TestLoadLoggingConfigDefaults(t *testing.T) {
	cfg := LoadLoggingConfig("")
	if cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("got level=%q format=%q, want info/text", cfg.Level, cfg.Format)
	}
}
