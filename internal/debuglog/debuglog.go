// Package debuglog writes opt-in JSON-lines diagnostics to a file.
package debuglog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/javiermolinar/cadence/internal/timing"
)

// DefaultPath is the fixed path for debug logs.
const DefaultPath = "cadence-debug.log"

// Logger writes one JSON object per line. A nil or disabled Logger
// discards everything, so callers never need to check.
type Logger struct {
	mu      sync.Mutex
	w       io.Writer
	closer  io.Closer
	enabled bool
	seq     int
	now     func() time.Time
}

// Disabled returns a Logger that writes nothing.
func Disabled() *Logger {
	return &Logger{}
}

// New returns a Logger writing to w.
func New(w io.Writer) *Logger {
	return &Logger{w: w, enabled: true, now: time.Now}
}

// Open creates (or truncates) the log file at path.
func Open(path string) (*Logger, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating debug log: %w", err)
	}

	l := New(f)
	l.closer = f
	l.Log("DEBUG_START", map[string]any{
		"log_file": path,
		"time":     l.now().Format(time.RFC3339),
	})
	return l, nil
}

// Enabled reports whether entries are written.
func (l *Logger) Enabled() bool {
	return l != nil && l.enabled && l.w != nil
}

// Close writes the end marker and closes the underlying file, if any.
func (l *Logger) Close() error {
	if !l.Enabled() {
		return nil
	}
	l.Log("DEBUG_END", map[string]any{
		"time": l.now().Format(time.RFC3339),
	})
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Log writes a structured log entry.
func (l *Logger) Log(event string, data map[string]any) {
	if !l.Enabled() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	entry := map[string]any{
		"seq":   l.seq,
		"ts":    l.now().Format("15:04:05.000"),
		"event": event,
	}
	for k, v := range data {
		entry[k] = v
	}

	b, _ := json.Marshal(entry)
	_, _ = fmt.Fprintf(l.w, "%s\n", b)
}

// Error logs an error with the operation it came from.
func (l *Logger) Error(context string, err error) {
	if err == nil {
		return
	}
	l.Log("ERROR", map[string]any{
		"context": context,
		"error":   err.Error(),
	})
}

// ResolveTrace returns a timing.TraceFunc that records each resolver stage.
// It returns nil when the logger is disabled.
func (l *Logger) ResolveTrace() timing.TraceFunc {
	if !l.Enabled() {
		return nil
	}
	return func(stage string, w timing.Window) {
		l.Log("RESOLVE_STAGE", WindowFields(w, map[string]any{"stage": stage}))
	}
}

// WindowFields adds the instants of w to data and returns it.
func WindowFields(w timing.Window, data map[string]any) map[string]any {
	if data == nil {
		data = make(map[string]any, 3)
	}
	data["start"] = w.Start.UTC().Format(time.RFC3339)
	data["end"] = w.End.UTC().Format(time.RFC3339)
	if w.Deadline != nil {
		data["deadline"] = w.Deadline.UTC().Format(time.RFC3339)
	}
	return data
}
