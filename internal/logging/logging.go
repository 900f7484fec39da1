package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls where and how codewiki's structured logs are written.
type Config struct {
	// Level is the minimum level that reaches the log: debug, info, warn, or error.
	Level string
	// FilePath is the rotating log file's path. Empty disables file logging.
	FilePath string
	// MaxSizeMB is the size a log file may reach before it rotates.
	MaxSizeMB int
	// MaxFiles caps how many rotated files are kept alongside the active one.
	MaxFiles int
	// WriteToStderr duplicates every log line to stderr in addition to the file.
	WriteToStderr bool
}

// DefaultConfig is info-level file logging with a modest rotation policy.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig is DefaultConfig with the level lowered to debug.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

// Setup builds a JSON-structured logger backed by a rotating file writer
// (and stderr, if cfg.WriteToStderr) and returns it alongside a cleanup
// function the caller must run before exiting.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	if err := EnsureLogDir(); err != nil {
		return nil, nil, err
	}

	writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	var dest io.Writer = writer
	if cfg.WriteToStderr {
		dest = io.MultiWriter(writer, os.Stderr)
	}

	handler := slog.NewJSONHandler(dest, &slog.HandlerOptions{Level: LevelFromString(cfg.Level)})
	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}

	return slog.New(handler), cleanup, nil
}

// SetupDefault configures debug-level logging and installs it as slog's
// package-wide default logger.
func SetupDefault() (func(), error) {
	logger, cleanup, err := Setup(DebugConfig())
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}

// LevelFromString maps a config level name to an slog.Level, defaulting to
// info for anything unrecognized. Exported so the log viewer can filter by
// the same names Config accepts.
func LevelFromString(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
