// Package logging provides structured file logging for the retrans CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultLogDir returns the default log directory following XDG Base Directory Spec.
// Uses $XDG_STATE_HOME/retrans/logs, defaulting to ~/.local/state/retrans/logs.
func DefaultLogDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "retrans", "logs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home can't be determined
		return filepath.Join(".", "retrans", "logs")
	}
	return filepath.Join(home, ".local", "state", "retrans", "logs")
}

// Logger wraps a zerolog.Logger with the level filtering and file output
// the CLI cares about; callers never touch zerolog directly.
type Logger struct {
	zl       zerolog.Logger
	debug    bool
	file     *os.File
	filePath string
}

// Setup creates a new logger that writes newline-delimited JSON to a
// timestamped log file. Returns nil if logging is disabled (noLog=true).
// cmdArgs should be os.Args to log the command that was run.
func Setup(logDir string, verbose, noLog bool, cmdArgs []string) (*Logger, error) {
	if noLog {
		return nil, nil
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("retrans_run_%s.log", timestamp)
	filePath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", filePath, err)
	}

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}

	zl := zerolog.New(file).Level(level).With().Timestamp().Logger()

	l := &Logger{zl: zl, debug: verbose, file: file, filePath: filePath}

	l.Info("command: %s", strings.Join(cmdArgs, " "))
	l.Info("retrans starting")
	if verbose {
		l.Info("debug level logging enabled")
	}
	l.Info("log file: %s", filePath)

	return l, nil
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// Info logs an info-level message.
func (l *Logger) Info(format string, args ...any) {
	if l == nil {
		return
	}
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}

// Debug logs a debug-level message (only if verbose mode is enabled).
func (l *Logger) Debug(format string, args ...any) {
	if l == nil || !l.debug {
		return
	}
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}

// Err logs an error-level message with its cause attached as a field.
func (l *Logger) Err(err error, format string, args ...any) {
	if l == nil {
		return
	}
	l.zl.Error().Err(err).Msg(fmt.Sprintf(format, args...))
}

// Writer returns an io.Writer that writes to the log file.
// Useful for redirecting other loggers or capturing output.
func (l *Logger) Writer() io.Writer {
	if l == nil || l.file == nil {
		return io.Discard
	}
	return l.file
}
