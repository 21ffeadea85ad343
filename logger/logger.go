package logger

import "sync"

var (
	mu     sync.RWMutex
	logger Logger = NewGlogLogger()
)

// SetLogger replaces the process-wide logger and returns the previous one so callers
// (mostly tests) can restore it.
func SetLogger(l Logger) Logger {
	mu.Lock()
	defer mu.Unlock()

	prev := logger
	if l == nil {
		l = NewGlogLogger()
	}
	logger = l
	return prev
}

func current() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug level logging
func Debugf(msg string, args ...any) {
	current().Debugf(msg, args...)
}

// Info level logging
func Infof(msg string, args ...any) {
	current().Infof(msg, args...)
}

// Warn level logging
func Warnf(msg string, args ...any) {
	current().Warnf(msg, args...)
}

// Error level logging
func Errorf(msg string, args ...any) {
	current().Errorf(msg, args...)
}

// Fatal level logging and terminates the program execution.
func Fatalf(msg string, args ...any) {
	current().Fatalf(msg, args...)
}
