package errortypes

import (
	"strconv"
	"strings"
)

// AggregateErrors reports every problem found in one pass, such as configuration validation.
type AggregateErrors struct {
	Message string
	Errors  []error
}

func NewAggregateErrors(msg string, errs []error) AggregateErrors {
	return AggregateErrors{
		Message: msg,
		Errors:  errs,
	}
}

// Error lists the wrapped errors one per line, numbered from 1.
func (e AggregateErrors) Error() string {
	if len(e.Errors) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(e.Message)
	if len(e.Errors) == 1 {
		b.WriteString(" (1 error):\n")
	} else {
		b.WriteString(" (" + strconv.Itoa(len(e.Errors)) + " errors):\n")
	}
	for i, err := range e.Errors {
		b.WriteString("  " + strconv.Itoa(i+1) + ": " + err.Error() + "\n")
	}
	return b.String()
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e AggregateErrors) Unwrap() []error {
	return e.Errors
}
