// Package contractcourt holds the monitoring service's reducer: the
// pure function that folds a decoded event stream onto a loaded
// channeldb.Snapshot and produces the delta for the next commit. It
// replaces this repo's namesake teacher package, which resolved
// contract disputes with a goroutine per channel; here the same
// decision logic is restructured into a single-threaded, side-effect
// free function per the design note to model cooperative concurrency as
// a reactor instead of one goroutine per watched object.
package contractcourt

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Kind classifies why a tick could not apply an event, mirroring the
// error-kind taxonomy (not a type hierarchy) from spec.md §7.
type Kind uint8

const (
	// KindStateInvariantViolation means the reducer observed state that
	// should be impossible under the channel lifecycle -- e.g. a
	// ChannelClosed for a channel never opened. The tick that produced
	// it must be aborted and rolled back.
	KindStateInvariantViolation Kind = iota
)

func (k Kind) String() string {
	switch k {
	case KindStateInvariantViolation:
		return "state_invariant_violation"
	default:
		return "unknown"
	}
}

// Error wraps a reducer failure with its Kind so the main loop can
// decide whether to roll back-and-retry or treat it as fatal after
// repeated occurrences.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// invariantViolation wraps the offending condition with a stack trace
// via go-errors/errors -- a StateInvariantViolation is exactly the kind
// of "should never happen" condition where the trace back to the
// reducer call site matters for diagnosis, unlike the routine
// rejections in package intake.
func invariantViolation(format string, args ...interface{}) error {
	return &Error{
		Kind: KindStateInvariantViolation,
		Err:  goerrors.Errorf(format, args...),
	}
}
