// Package errorsx provides the small set of error helpers this module
// needs on top of github.com/pkg/errors: constructors that attach a stack
// trace at the point an error first becomes fatal to a Swarm or Pool, and
// an Is predicate that matches an error against several targets.
package errorsx

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// New mirrors errors.New but attaches a stack trace.
func New(s string) error {
	return pkgerrors.New(s)
}

// Errorf mirrors fmt.Errorf but attaches a stack trace.
func Errorf(format string, args ...interface{}) error {
	return pkgerrors.New(fmt.Sprintf(format, args...))
}

// Wrap annotates cause with a message and a stack trace, unless cause is nil.
func Wrap(cause error, msg string) error {
	if cause == nil {
		return nil
	}
	return pkgerrors.Wrap(cause, msg)
}

// Wrapf annotates cause with a formatted message and a stack trace, unless
// cause is nil.
func Wrapf(cause error, format string, args ...interface{}) error {
	if cause == nil {
		return nil
	}
	return pkgerrors.Wrapf(cause, format, args...)
}

// String is a wrapper for string constants used as errors, matching the
// teacher's preference for declaring sentinel errors as consts.
type String string

func (s String) Error() string { return string(s) }

// Is returns true if err matches any of targets.
func Is(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
