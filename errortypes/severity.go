package errortypes

import "errors"

// Severity tells callers whether an operation was rejected or went ahead in a degraded form.
type Severity int

const (
	SeverityUnknown Severity = iota
	// SeverityFatal means the requested operation was rejected.
	SeverityFatal
	// SeverityWarning means the operation went ahead, degraded or adjusted.
	SeverityWarning
)

// IsFatal reports whether err rejected an operation. Errors without a Severity count as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var c Coder
	return !errors.As(err, &c) || c.Severity() == SeverityFatal
}

// IsWarning reports whether err, or an error it wraps, carries SeverityWarning.
func IsWarning(err error) bool {
	var c Coder
	return errors.As(err, &c) && c.Severity() == SeverityWarning
}
