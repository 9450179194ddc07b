package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/damianarielmauro/Shelly-App/internal/infrastructure/config"
)

// Logger is slog with shellyd-wide defaults baked in: every entry
// carries service and version attributes, filtered at the configured
// level. Safe for concurrent use.
type Logger struct {
	*slog.Logger
}

// New builds the process logger from config.yaml settings. Format is
// json unless "text" is configured; output goes to stdout unless
// "stderr" is configured.
func New(cfg config.LoggingConfig, version string) *Logger {
	out := io.Writer(os.Stdout)
	if strings.EqualFold(cfg.Output, "stderr") {
		out = os.Stderr
	}
	return NewWithWriter(cfg, version, out)
}

// NewWithWriter is New with an explicit destination, so callers (and
// tests) can capture output.
func NewWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", "shellyd"),
		slog.String("version", version),
	})
	return &Logger{Logger: slog.New(handler)}
}

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// parseLevel maps a config level name to slog; unknown names fall back
// to info rather than failing startup.
func parseLevel(name string) slog.Level {
	if level, ok := levelNames[strings.ToLower(name)]; ok {
		return level
	}
	return slog.LevelInfo
}

// With returns a child logger carrying extra default attributes, e.g.
// logger.With("component", "monitor").
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// Default is the early-startup logger used before config is loaded:
// JSON to stdout at info level.
func Default() *Logger {
	return New(config.LoggingConfig{}, "dev")
}
