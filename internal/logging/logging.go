// Package logging builds the process logger and the HTTP access log sink.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits shared by the application and access logs.
const (
	maxSizeMB  = 100
	maxBackups = 5
	maxAgeDays = 14
)

// ParseLevel maps a LOG_LEVEL value to a slog level. Unknown values are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// RotatingFile returns a size-rotated writer for path.
func RotatingFile(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
}

// New returns a text logger writing to stdout, and also to a rotated file when
// file is set. The returned closer releases the file and is never nil.
func New(level, file string) (*slog.Logger, io.Closer) {
	return newLogger(os.Stdout, level, file)
}

func newLogger(stdout io.Writer, level, file string) (*slog.Logger, io.Closer) {
	var out io.Writer = stdout
	var closer io.Closer = nopCloser{}
	if file != "" {
		rotated := RotatingFile(file)
		out = io.MultiWriter(stdout, rotated)
		closer = rotated
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(handler), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
