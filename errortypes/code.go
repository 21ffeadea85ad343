package errortypes

import "errors"

// Defines numeric codes for well-known errors.
const (
	UnknownErrorCode = 999
	TimeoutErrorCode = iota
	InvalidConfigErrorCode
	InvalidStateErrorCode
	FetchFailureErrorCode
	NoBidsErrorCode
)

// Defines numeric codes for well-known warnings.
const (
	VisibilityUnavailableWarningCode = iota + 10001
)

// Coder provides an error or warning code with severity.
type Coder interface {
	Code() int
	Severity() Severity
}

// ReadCode returns the code of err or of the first error it wraps that has one. It returns
// UnknownErrorCode otherwise.
func ReadCode(err error) int {
	var c Coder
	if errors.As(err, &c) {
		return c.Code()
	}
	return UnknownErrorCode
}
