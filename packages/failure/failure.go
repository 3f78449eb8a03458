// Package failure defines the ways a scenario can fail.
//
// Every failure aborts only the scenario it happened in. Each type carries
// enough context (selector, expected and actual state, method and path, the
// awaited condition) to diagnose the failure from the report alone.
package failure

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a scenario failure.
type Kind string

const (
	KindAssertion Kind = "assertion"
	KindUnmocked  Kind = "unmocked"
	KindTimeout   Kind = "timeout"
	KindError     Kind = "error"
)

// AssertionFailure reports an expected DOM state that was not observed
// within the wait bound.
type AssertionFailure struct {
	Selector string
	Expected string
	Actual   string
	Waited   time.Duration
}

func (f *AssertionFailure) Error() string {
	return fmt.Sprintf("assertion failed on %s: expected %s, got %s (waited %s)",
		f.Selector, f.Expected, f.Actual, f.Waited.Round(time.Millisecond))
}

// UnmockedRequestFailure reports an application request that no intercept
// rule answered.
type UnmockedRequestFailure struct {
	Method string
	Path   string
}

func (f *UnmockedRequestFailure) Error() string {
	return fmt.Sprintf("unmocked request: %s %s", f.Method, f.Path)
}

// TimeoutFailure reports a wait that exceeded its bound.
type TimeoutFailure struct {
	Condition string
	After     time.Duration
	Cause     error
}

func (f *TimeoutFailure) Error() string {
	msg := fmt.Sprintf("timed out after %s waiting for %s", f.After.Round(time.Millisecond), f.Condition)
	if f.Cause != nil {
		msg += ": " + f.Cause.Error()
	}
	return msg
}

func (f *TimeoutFailure) Unwrap() error {
	return f.Cause
}

// Classify returns the kind of the first failure found in err's tree.
func Classify(err error) Kind {
	var (
		af *AssertionFailure
		uf *UnmockedRequestFailure
		tf *TimeoutFailure
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &uf):
		return KindUnmocked
	case errors.As(err, &af):
		return KindAssertion
	case errors.As(err, &tf):
		return KindTimeout
	default:
		return KindError
	}
}
