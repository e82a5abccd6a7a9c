package log

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation settings of the log file.
const (
	// maxFileSizeMB is the size at which the log file is rotated.
	maxFileSizeMB = 5

	// maxBackups is the number of rotated files kept.
	maxBackups = 3

	// maxAgeDays is how long rotated files are kept.
	maxAgeDays = 30
)

// LevelFor maps the verbose and quiet options to a log level.
// Verbose logs everything, quiet logs only errors, and the default logs
// every purge and crawl milestone.
func LevelFor(verbose, quiet bool) slog.Level {
	switch {
	case verbose:
		return slog.LevelDebug
	case quiet:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a new slog.Logger with secure handling.
// The logger sanitizes sensitive information in all log output.
//
// Parameters:
//   - w: The io.Writer to write log output to (typically os.Stderr)
//   - level: The minimum level written, usually from LevelFor
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(NewSecureHandler(slog.NewTextHandler(w, opts)))
}

// NewJSONLogger creates a new slog.Logger with secure handling
// that outputs JSON format. Useful for structured log aggregation.
func NewJSONLogger(w io.Writer, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, opts)))
}

// OpenFile returns a writer appending to the log file at path. The file is
// created on first write and rotated when it grows past 5MB.
func OpenFile(path string) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxFileSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
}
