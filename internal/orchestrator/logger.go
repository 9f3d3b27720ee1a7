package orchestrator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DebugLogger writes timestamped scheduler trace lines. The zero value and a
// nil *DebugLogger discard everything.
type DebugLogger struct {
	mu sync.Mutex
	w  io.Writer
	// closer is set when the logger owns the underlying file.
	closer io.Closer
}

// NewDebugLogger opens (appending) the log file at logPath, creating parent
// directories as needed. An empty path yields a no-op logger.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return NopLogger(), nil
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &DebugLogger{w: f, closer: f}
	l.Log("=== Scheduler Debug Log Started at %s ===", time.Now().Format(time.RFC3339))
	return l, nil
}

// NewWriterLogger logs to w. Close does not close w.
func NewWriterLogger(w io.Writer) *DebugLogger {
	return &DebugLogger{w: w}
}

// NewDebugLoggerForProject logs to .quorum/logs/scheduler-debug.log under
// projectDir, falling back to a no-op logger when the file can't be opened.
func NewDebugLoggerForProject(projectDir string) *DebugLogger {
	l, err := NewDebugLogger(filepath.Join(projectDir, ".quorum", "logs", "scheduler-debug.log"))
	if err != nil {
		return NopLogger()
	}
	return l
}

// NopLogger returns a logger that discards everything.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// Log writes one line prefixed with the wall-clock time.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil || l.w == nil {
		return
	}

	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("15:04:05.000"), fmt.Sprintf(format, args...))

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.w, line)
	if f, ok := l.w.(*os.File); ok {
		_ = f.Sync()
	}
}

// Close releases the log file, if the logger opened one.
func (l *DebugLogger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closer.Close()
}
