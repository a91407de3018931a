// Package ctxerr provides functions to create and annotate errors in a way
// that plays well with the context propagated through the call stack. Call
// Wrap[f] as close as possible from where the error is encountered; it is
// fine to wrap the error with more annotations along the way.
package ctxerr

import (
	"context"
	"strings"

	"github.com/pkg/errors"
)

// New creates a new error with the provided error message.
func New(ctx context.Context, errMsg string) error {
	return errors.New(errMsg)
}

// Errorf creates a new error with the provided formatted message.
func Errorf(ctx context.Context, fmsg string, args ...interface{}) error {
	return errors.Errorf(fmsg, args...)
}

// Wrap annotates err with the provided message, if any.
func Wrap(ctx context.Context, err error, msgs ...string) error {
	if err == nil {
		return nil
	}
	msg := strings.Join(msgs, " ")
	if msg == "" {
		return errors.WithStack(err)
	}
	return errors.Wrap(err, msg)
}

// Wrapf annotates err with the provided formatted message.
func Wrapf(ctx context.Context, err error, fmsg string, args ...interface{}) error {
	return errors.Wrapf(err, fmsg, args...)
}

// Cause returns the root error in err's chain.
func Cause(err error) error {
	return errors.Cause(err)
}
