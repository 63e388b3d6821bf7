// Package cmd holds the camwall subcommands that run without the API server.
package cmd

import (
	"fmt"
	"time"

	"github.com/smazurov/camwall/internal/config"
	"github.com/smazurov/camwall/internal/directory"
	"github.com/smazurov/camwall/internal/logging"
	"github.com/smazurov/camwall/internal/transport"
	"github.com/smazurov/camwall/internal/video"
	"github.com/spf13/cobra"
)

// clientOptions are the settings shared by the headless commands. Flag
// names match the field names so config.LoadConfig leaves explicit flags
// alone.
type clientOptions struct {
	Config string

	DirectoryFile           string        `toml:"directory.file" env:"DIRECTORY_FILE"`
	DirectorySubnet         string        `toml:"directory.subnet" env:"DIRECTORY_SUBNET"`
	StreamTransport         string        `toml:"stream.transport" env:"STREAM_TRANSPORT"`
	StreamGstBinary         string        `toml:"stream.gst_binary" env:"STREAM_GST_BINARY"`
	StreamConnectTimeout    time.Duration `toml:"stream.connect_timeout" env:"STREAM_CONNECT_TIMEOUT"`
	StreamReadTimeout       time.Duration `toml:"stream.read_timeout" env:"STREAM_READ_TIMEOUT"`
	StreamFirstFrameTimeout time.Duration `toml:"stream.first_frame_timeout" env:"STREAM_FIRST_FRAME_TIMEOUT"`

	LogJSON bool
}

func (o *clientOptions) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&o.Config, "config", "c", "config.toml", "Path to configuration file")
	flags.StringVar(&o.DirectoryFile, "directory-file", "cameras.toml", "Camera directory file")
	flags.StringVar(&o.DirectorySubnet, "directory-subnet", "", "Local subnet name for source template selection")
	flags.StringVar(&o.StreamTransport, "stream-transport", transport.NameMJPEG, "Stream transport (mjpeg, gst, rtsp, pattern)")
	flags.StringVar(&o.StreamGstBinary, "stream-gst-binary", "gst-launch-1.0", "gst-launch binary for the gst transport")
	flags.DurationVar(&o.StreamConnectTimeout, "stream-connect-timeout", 0, "Connect timeout, 0 for the transport default")
	flags.DurationVar(&o.StreamReadTimeout, "stream-read-timeout", 0, "Longest gap between frames, 0 for the transport default")
	flags.DurationVar(&o.StreamFirstFrameTimeout, "stream-first-frame-timeout", 0, "How long to wait for the first frame, 0 for the default")
	flags.BoolVar(&o.LogJSON, "log-json", false, "Log as JSON")
}

// load applies the config file and environment, then starts logging.
func (o *clientOptions) load(cmd *cobra.Command) error {
	if err := config.LoadConfig(o, cmd); err != nil {
		return err
	}
	loggingConfig := config.LoadLoggingConfig(o.Config)
	if o.LogJSON {
		loggingConfig.Format = "json"
	}
	logging.Initialize(loggingConfig)
	return nil
}

func (o *clientOptions) openDirectory() (*directory.Store, error) {
	store, err := directory.Open(o.DirectoryFile, directory.StoreOptions{
		Subnet: o.DirectorySubnet,
		Logger: logging.GetLogger("directory"),
	})
	if err != nil {
		return nil, fmt.Errorf("camera directory %s: %w", o.DirectoryFile, err)
	}
	return store, nil
}

func (o *clientOptions) transport() (video.Transport, error) {
	return transport.New(transport.Config{
		Name:           o.StreamTransport,
		ConnectTimeout: o.StreamConnectTimeout,
		ReadTimeout:    o.StreamReadTimeout,
		GstBinary:      o.StreamGstBinary,
		Logger:         logging.GetLogger("transport"),
	})
}
