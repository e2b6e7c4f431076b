// Package logger provides the notifier's structured slog logger. Logs are
// written as JSON lines to a size-rotated file and mirrored to stderr.
package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a JSON slog.Logger writing to <logDir>/notifier.log with
// rotation, mirrored to stderr. The directory is created if missing.
func New(logDir string, level slog.Level) (*slog.Logger, error) {
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return nil, err
	}

	rotating := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "notifier.log"),
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}

	handler := slog.NewJSONHandler(io.MultiWriter(rotating, os.Stderr),
		&slog.HandlerOptions{Level: level})
	return slog.New(handler), nil
}
