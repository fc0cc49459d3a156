// Package logging writes structured logs to a file, since the terminal
// belongs to the TUI.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultPath returns ~/.policypulse/logs/policypulse-<date>.log for now.
func DefaultPath(now time.Time) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	name := fmt.Sprintf("policypulse-%s.log", now.Format("2006-01-02"))
	return filepath.Join(homeDir, ".policypulse", "logs", name), nil
}

// Logger is a file backed logger. Close flushes and releases the file.
type Logger struct {
	*log.Logger
	file *os.File
	path string
}

// Open creates or appends to the log file at path. An empty path selects
// DefaultPath.
func Open(path string, level log.Level) (*Logger, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(time.Now()); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return &Logger{Logger: New(f, level), file: f, path: path}, nil
}

// New returns a logger writing to w with the standard options.
func New(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
	})
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// Path is the file being written.
func (l *Logger) Path() string {
	return l.path
}

func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
