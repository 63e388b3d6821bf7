package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/camwall/internal/logging"
	"github.com/smazurov/camwall/internal/video"
	"github.com/spf13/cobra"
)

// CreateWatchCmd creates the watch command.
func CreateWatchCmd() *cobra.Command {
	opts := &clientOptions{}
	var size string
	var every time.Duration

	cmd := &cobra.Command{
		Use:   "watch [camera-id]",
		Short: "Play one camera headless and report its status",
		Long: `Resolves the camera through the directory, plays it on an in-memory surface and logs ` +
			`status changes and the frame rate until the stream finishes or Ctrl-C. ` +
			`Exits non-zero when the stream ends with an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if err := opts.load(c); err != nil {
				return err
			}
			sz, err := video.ParseSize(size)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			code, err := watch(ctx, opts, video.NewRequest(args[0], video.WithSize(sz)), every)
			if err != nil {
				return err
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
	opts.bind(cmd)
	cmd.Flags().StringVar(&size, "size", "medium", "Resolution hint (small, medium, large)")
	cmd.Flags().DurationVar(&every, "report-interval", 5*time.Second, "How often to log the frame rate")
	return cmd
}

// watch plays req until it finishes or ctx is done and returns the exit code.
func watch(ctx context.Context, opts *clientOptions, req video.Request, every time.Duration) (int, error) {
	logger := logging.GetLogger("watch").With("camera", req.CameraID())

	store, err := opts.openDirectory()
	if err != nil {
		return 1, err
	}
	t, err := opts.transport()
	if err != nil {
		return 1, err
	}
	manager := video.NewStreamManager(t, video.Options{
		Resolver:          store,
		FirstFrameTimeout: opts.StreamFirstFrameTimeout,
		Logger:            logging.GetLogger("video"),
	})
	defer manager.Close()

	surface, err := manager.CreateStreamRenderer()
	if err != nil {
		return 1, err
	}
	stream, err := manager.RequestStream(req, surface)
	if err != nil {
		return 1, err
	}
	stream.AddListener(video.ListenerFuncs{
		Started: func() { logger.Info("Stream playing", "transport", stream.Transport()) },
	})

	if every <= 0 {
		every = 5 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	status := ""
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()

	var lastFrames uint64
	lastReport := time.Now()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Interrupted, stopping stream")
			stream.Dispose()
			return 0, nil

		case <-stream.Done():
			logger.Info("Stream finished", "status", stream.Status(), "frames", stream.Frames(), "uptime", stream.Uptime().Round(time.Millisecond))
			if err := stream.Err(); err != nil {
				fmt.Fprintln(os.Stderr, stream.Status())
				return 1, nil
			}
			return 0, nil

		case <-poll.C:
			if cur := stream.Status(); cur != status {
				status = cur
				logger.Info("Status changed", "status", status)
			}

		case now := <-ticker.C:
			frames := stream.Frames()
			elapsed := now.Sub(lastReport).Seconds()
			if stream.IsPlaying() && elapsed > 0 {
				logger.Info("Receiving", "frames", frames, "fps", fmt.Sprintf("%.1f", float64(frames-lastFrames)/elapsed))
			}
			lastFrames, lastReport = frames, now
		}
	}
}
