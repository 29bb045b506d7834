package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Fabulani/shopfloor-simulation/internal/infrastructure/config"
)

// ServiceName is attached to every log entry.
const ServiceName = "shopfloor-sim"

// Logger is a slog.Logger whose level can be changed while the simulation
// runs. Child loggers created with With or Component share the level of the
// logger they were derived from. Safe for concurrent use.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New creates a logger writing to the configured output, tagged with the
// service name and version.
func New(cfg config.LoggingConfig, version string) *Logger {
	out := io.Writer(os.Stdout)
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return NewWithWriter(cfg, version, out)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.Level))
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}

	l := slog.New(h).With("service", ServiceName, "version", version)
	return &Logger{Logger: l, level: level}
}

// Default is used until the configuration has been loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json"}, "dev")
}

// Discard drops every entry.
func Discard() *Logger {
	return &Logger{
		Logger: slog.New(slog.DiscardHandler),
		level:  new(slog.LevelVar),
	}
}

// With returns a child logger carrying args on every entry.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

// Component returns a child logger tagged with component=name.
func (l *Logger) Component(name string) *Logger {
	return l.With("component", name)
}

// Level returns the current minimum level as a lowercase name.
func (l *Logger) Level() string {
	return strings.ToLower(l.level.Level().String())
}

// SetLevel changes the minimum level of l and every logger sharing it.
func (l *Logger) SetLevel(name string) error {
	switch strings.ToLower(name) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", name)
	}
	l.level.Set(parseLevel(name))
	return nil
}

// parseLevel maps a level name to slog. Unknown names mean info.
func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
