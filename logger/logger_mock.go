package logger

import (
	"fmt"
	"sync"
)

// RecordingLogger keeps formatted messages in memory, keyed by level. Tests install it with
// SetLogger to assert on what a component logged.
type RecordingLogger struct {
	mu      sync.Mutex
	entries map[string][]string
}

func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{entries: make(map[string][]string)}
}

func (r *RecordingLogger) record(level, msg string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[level] = append(r.entries[level], fmt.Sprintf(msg, args...))
}

func (r *RecordingLogger) Debugf(msg string, args ...any) { r.record("debug", msg, args...) }
func (r *RecordingLogger) Infof(msg string, args ...any)  { r.record("info", msg, args...) }
func (r *RecordingLogger) Warnf(msg string, args ...any)  { r.record("warn", msg, args...) }
func (r *RecordingLogger) Errorf(msg string, args ...any) { r.record("error", msg, args...) }
func (r *RecordingLogger) Fatalf(msg string, args ...any) { r.record("fatal", msg, args...) }

// Entries returns a copy of the messages logged at level ("debug", "info", "warn", "error", "fatal").
func (r *RecordingLogger) Entries(level string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries[level]...)
}
