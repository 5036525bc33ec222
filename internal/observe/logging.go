package observe

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig selects where and how the process logs.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string

	// File, when set, sends JSON logs to a size-rotated file instead of
	// stderr. Required while the terminal game owns the screen.
	File string

	// MaxSizeMB is the rotation size. Default: 32.
	MaxSizeMB int

	// MaxBackups is the number of rotated files kept. Default: 3.
	MaxBackups int
}

// ParseLevel maps a config level name to a [slog.Level].
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("observe: invalid log level %q", s)
	}
}

// NewLogger builds the process logger. With a file configured it writes
// JSON through lumberjack; otherwise text to stderr. The returned closer
// releases the log file and is a no-op for stderr.
func NewLogger(cfg LogConfig) (*slog.Logger, io.Closer, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	if cfg.File == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nopCloser{}, nil
	}

	if dir := filepath.Dir(cfg.File); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("observe: create log dir: %w", err)
		}
	}
	w := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	if w.MaxSize <= 0 {
		w.MaxSize = 32 // MB
	}
	if w.MaxBackups <= 0 {
		w.MaxBackups = 3
	}
	return slog.New(slog.NewJSONHandler(w, opts)), w, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
