// Package logging provides slog loggers with per-module levels.
//
// Initialize once at startup, then ask for a logger per module:
//
//	logging.Initialize(logging.Config{
//		Level:   "info",
//		Format:  "text",
//		Modules: map[string]string{"video": "debug", "api": "warn"},
//	})
//
//	logger := logging.GetLogger("video").With("stream_id", id)
//	logger.Info("Stream started", "camera", cam)
//
// Records go to stdout when it is attached to something and to the systemd
// journal when journald is listening. Journal entries carry the identifier
// "camwall" and every attribute as an upper-cased field:
//
//	journalctl -t camwall MODULE=video
//	journalctl -t camwall CAMERA=CAM-101 -f
//
// Module levels are held in a [log/slog.LevelVar] so [SetModuleLevel] takes
// effect on loggers already handed out.
package logging
