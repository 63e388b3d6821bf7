package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Identifier is the syslog identifier used for journal entries.
const Identifier = "camwall"

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

type registry struct {
	mu      sync.RWMutex
	cfg     Config
	ready   bool
	loggers map[string]*slog.Logger
	levels  map[string]*slog.LevelVar
	formats map[string]string
	global  slog.LevelVar
}

var reg = &registry{
	loggers: make(map[string]*slog.Logger),
	levels:  make(map[string]*slog.LevelVar),
	formats: make(map[string]string),
}

// Initialize applies cfg to the default logger and to every module logger
// handed out so far. Loggers keep their identity unless the output format
// changes.
func Initialize(cfg Config) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	reg.cfg = cfg
	reg.ready = true
	reg.global.Set(levelOr(cfg.Level, slog.LevelInfo))

	for module, lv := range reg.levels {
		lv.Set(reg.moduleLevel(module))
		if reg.formats[module] != formatName(cfg.Format) {
			reg.loggers[module] = slog.New(newHandler(cfg.Format, lv)).With("module", module)
			reg.formats[module] = formatName(cfg.Format)
		}
	}

	slog.SetDefault(slog.New(newHandler(cfg.Format, &reg.global)))
}

// GetLogger returns the logger for module, creating it on first use.
func GetLogger(module string) *slog.Logger {
	reg.mu.RLock()
	logger, ok := reg.loggers[module]
	reg.mu.RUnlock()
	if ok {
		return logger
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if logger, ok := reg.loggers[module]; ok {
		return logger
	}

	lv := &slog.LevelVar{}
	lv.Set(reg.moduleLevel(module))

	format := "text"
	if reg.ready {
		format = formatName(reg.cfg.Format)
	}
	logger = slog.New(newHandler(format, lv)).With("module", module)
	reg.loggers[module] = logger
	reg.levels[module] = lv
	reg.formats[module] = format
	return logger
}

// SetModuleLevel changes the level of one module at runtime.
// It reports false for an unknown level string.
func SetModuleLevel(module, level string) bool {
	parsed := parseLevel(level)
	if parsed == nil {
		return false
	}
	GetLogger(module)

	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.levels[module].Set(*parsed)
	if reg.cfg.Modules == nil {
		reg.cfg.Modules = make(map[string]string)
	}
	reg.cfg.Modules[module] = level
	return true
}

// Discard returns a logger that drops everything. Used by tests and by
// components constructed without a logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// moduleLevel must be called with reg.mu held.
func (r *registry) moduleLevel(module string) slog.Level {
	if !r.ready {
		return slog.LevelInfo
	}
	level := levelOr(r.cfg.Level, slog.LevelInfo)
	if s, ok := r.cfg.Modules[module]; ok {
		level = levelOr(s, level)
	}
	return level
}

// newHandler builds the output chain: stdout when something is attached to it,
// plus the journal when journald is listening.
func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	var handlers []slog.Handler
	if isStdoutAvailable() {
		handlers = append(handlers, stdout)
	}
	if IsJournalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}

	return tee(stdout, handlers...)
}

// isStdoutAvailable reports whether stdout is a terminal, pipe, socket or file.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return (mode&os.ModeCharDevice) != 0 || (mode&os.ModeNamedPipe) != 0 || (mode&os.ModeSocket) != 0 || mode.IsRegular()
}

func formatName(format string) string {
	if format == "json" {
		return "json"
	}
	return "text"
}

func levelOr(s string, fallback slog.Level) slog.Level {
	if l := parseLevel(s); l != nil {
		return *l
	}
	return fallback
}

func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
