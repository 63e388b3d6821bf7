package main

import (
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/camwall/cmd"
	"github.com/smazurov/camwall/internal/config"
	"github.com/smazurov/camwall/internal/logging"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Stream settings
	StreamTransport     string `help:"Stream transport (mjpeg, gst, rtsp, pattern)" default:"mjpeg" toml:"stream.transport" env:"STREAM_TRANSPORT"`
	StreamMaxSurfaces   int    `help:"Maximum surfaces, 0 for no limit" default:"0" toml:"stream.max_surfaces" env:"STREAM_MAX_SURFACES"`
	StreamRetryAttempts int    `help:"Connect attempts per stream request" default:"1" toml:"stream.retry.attempts" env:"STREAM_RETRY_ATTEMPTS"`
	StreamGstBinary     string `help:"gst-launch binary for the gst transport" default:"gst-launch-1.0" toml:"stream.gst_binary" env:"STREAM_GST_BINARY"`

	// Camera directory settings
	DirectoryFile   string `help:"Camera directory file" default:"cameras.toml" toml:"directory.file" env:"DIRECTORY_FILE"`
	DirectorySubnet string `help:"Local subnet name for source template selection" default:"" toml:"directory.subnet" env:"DIRECTORY_SUBNET"`
	DirectoryWatch  bool   `help:"Reload the camera directory when it changes" default:"true" toml:"directory.watch" env:"DIRECTORY_WATCH"`

	// PTZ settings
	PTZDriver string `help:"PTZ driver (log, onvif)" default:"log" toml:"ptz.driver" env:"PTZ_DRIVER"`
	PTZRate   int    `help:"PTZ commands per second, 0 for no limit" default:"10" toml:"ptz.rate" env:"PTZ_RATE"`
	PTZBurst  int    `help:"PTZ command burst" default:"5" toml:"ptz.burst" env:"PTZ_BURST"`

	// Joystick settings
	JoystickEnabled  bool   `help:"Read a local joystick for PTZ" default:"false" toml:"joystick.enabled" env:"JOYSTICK_ENABLED"`
	JoystickDevice   string `help:"Joystick device node" default:"/dev/input/js0" toml:"joystick.device" env:"JOYSTICK_DEVICE"`
	JoystickPanAxis  int    `help:"Axis number for pan" default:"0" toml:"joystick.pan_axis" env:"JOYSTICK_PAN_AXIS"`
	JoystickTiltAxis int    `help:"Axis number for tilt" default:"1" toml:"joystick.tilt_axis" env:"JOYSTICK_TILT_AXIS"`
	JoystickZoomAxis int    `help:"Axis number for zoom" default:"2" toml:"joystick.zoom_axis" env:"JOYSTICK_ZOOM_AXIS"`

	// Metrics settings
	MetricsEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingVideo     string `help:"Stream manager logging level" default:"info" toml:"logging.video" env:"LOGGING_VIDEO"`
	LoggingTransport string `help:"Transport logging level" default:"info" toml:"logging.transport" env:"LOGGING_TRANSPORT"`
	LoggingDirectory string `help:"Camera directory logging level" default:"info" toml:"logging.directory" env:"LOGGING_DIRECTORY"`
	LoggingPTZ       string `help:"PTZ logging level" default:"info" toml:"logging.ptz" env:"LOGGING_PTZ"`
	LoggingJoystick  string `help:"Joystick logging level" default:"info" toml:"logging.joystick" env:"LOGGING_JOYSTICK"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

// TuningOptions holds settings that only come from the config file or the
// environment.
type TuningOptions struct {
	Config string

	StreamFirstFrameTimeout time.Duration `toml:"stream.first_frame_timeout" env:"STREAM_FIRST_FRAME_TIMEOUT"`
	StreamReleaseTimeout    time.Duration `toml:"stream.release_timeout" env:"STREAM_RELEASE_TIMEOUT"`
	StreamConnectTimeout    time.Duration `toml:"stream.connect_timeout" env:"STREAM_CONNECT_TIMEOUT"`
	StreamReadTimeout       time.Duration `toml:"stream.read_timeout" env:"STREAM_READ_TIMEOUT"`
	StreamRetryInitialDelay time.Duration `toml:"stream.retry.initial_delay" env:"STREAM_RETRY_INITIAL_DELAY"`
	StreamRetryMaxDelay     time.Duration `toml:"stream.retry.max_delay" env:"STREAM_RETRY_MAX_DELAY"`
	StreamRetryMultiplier   float64       `toml:"stream.retry.multiplier" env:"STREAM_RETRY_MULTIPLIER"`

	PTZButtons        []string      `toml:"ptz.buttons" env:"PTZ_BUTTONS"`
	PTZCommandTimeout time.Duration `toml:"ptz.command_timeout" env:"PTZ_COMMAND_TIMEOUT"`

	JoystickPollInterval  time.Duration `toml:"joystick.poll_interval" env:"JOYSTICK_POLL_INTERVAL"`
	JoystickRetryInterval time.Duration `toml:"joystick.retry_interval" env:"JOYSTICK_RETRY_INTERVAL"`
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}
		tuning := TuningOptions{Config: opts.Config, StreamRetryMultiplier: 2}
		if loadErr := config.LoadConfig(&tuning, nil); loadErr != nil {
			slog.Warn("Failed to load tuning config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"video":     opts.LoggingVideo,
				"transport": opts.LoggingTransport,
				"directory": opts.LoggingDirectory,
				"ptz":       opts.LoggingPTZ,
				"joystick":  opts.LoggingJoystick,
				"api":       opts.LoggingAPI,
				"http":      opts.LoggingAPI,
			},
		})
		logger := logging.GetLogger("main")

		var running atomic.Pointer[node]
		hooks.OnStart(func() {
			n, err := newNode(opts, &tuning, logger)
			if err != nil {
				logger.Error("Failed to start camwall", "error", err)
				os.Exit(1)
			}
			running.Store(n)
			if err := n.run(); err != nil {
				logger.Error("Failed to start HTTP server", "error", err)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			if n := running.Load(); n != nil {
				n.stop()
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateWatchCmd())
	cli.Root().AddCommand(cmd.CreateSourcesCmd())

	cli.Run()
}
