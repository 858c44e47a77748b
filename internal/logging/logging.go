// logging.go - Structured logging for the shieldtx tools
//
// Builds one zerolog.Logger from configuration and installs it as gnark's logger, so circuit compilation,
// setup and proving share the application's sink.

package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"

	"shieldtx/internal/config"
)

// Logger wraps a zerolog.Logger together with the file it writes to, if any.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// ParseLevel maps a configured level name to a zerolog level. Unknown names fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a logger writing to stderr, and also to cfg.LogFile when set.
func New(cfg *config.Config) (*Logger, error) {
	return NewWithWriter(cfg, os.Stderr)
}

// NewWithWriter is New with an explicit console writer.
func NewWithWriter(cfg *config.Config, console io.Writer) (*Logger, error) {
	l := &Logger{}
	out := console
	if cfg.LogFormat == "console" {
		out = zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}
	}
	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		l.file = file
		out = zerolog.MultiLevelWriter(out, file)
	}
	l.Logger = zerolog.New(out).Level(ParseLevel(cfg.LogLevel)).With().Timestamp().Logger()

	gnarklogger.Set(l.Logger.With().Str("component", "gnark").Logger())
	return l, nil
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}
