package pushgate

import (
	"errors"
	"fmt"
)

// NotFoundError is implemented by datastore errors for missing entities.
type NotFoundError interface {
	error
	IsNotFound() bool
}

// IsNotFound reports whether err's chain contains a NotFoundError.
func IsNotFound(err error) bool {
	var nfe NotFoundError
	if errors.As(err, &nfe) {
		return nfe.IsNotFound()
	}
	return false
}

// InvalidArgumentError is the error returned when invalid data is presented
// to a service method. Distinct from transport or credential failures: it
// indicates a malformed message the caller should fix, so the orchestrator
// surfaces it instead of downgrading it to a warning.
type InvalidArgumentError struct {
	Errors []InvalidArgument
}

// InvalidArgument is the details about a single invalid argument.
type InvalidArgument struct {
	name   string
	reason string
}

// NewInvalidArgumentError returns an InvalidArgumentError with at least one
// error.
func NewInvalidArgumentError(name, reason string) *InvalidArgumentError {
	var invalid InvalidArgumentError
	invalid.Append(name, reason)
	return &invalid
}

func (e *InvalidArgumentError) Append(name, reason string) {
	e.Errors = append(e.Errors, InvalidArgument{
		name:   name,
		reason: reason,
	})
}

func (e *InvalidArgumentError) Appendf(name, reasonFmt string, args ...interface{}) {
	e.Append(name, fmt.Sprintf(reasonFmt, args...))
}

func (e *InvalidArgumentError) HasErrors() bool {
	return len(e.Errors) != 0
}

// Error implements the error interface.
func (e *InvalidArgumentError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "validation failed"
	case 1:
		return fmt.Sprintf("validation failed: %s %s", e.Errors[0].name, e.Errors[0].reason)
	default:
		return fmt.Sprintf("validation failed: %s %s and %d other errors", e.Errors[0].name, e.Errors[0].reason,
			len(e.Errors))
	}
}

// IsInvalidArgument reports whether err's chain contains an
// InvalidArgumentError.
func IsInvalidArgument(err error) bool {
	var iae *InvalidArgumentError
	return errors.As(err, &iae)
}
