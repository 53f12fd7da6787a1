// Package check provides the fatal checks used by command handlers.
//
// A failed check halts the core: it panics with a *Fault that the dispatcher
// recovers at the invocation boundary. Pre and Unreached run in every build.
// Invariant only runs when Enabled is true, which is the default; building
// with -tags nocheck compiles it out along with the bookkeeping it guards.
package check

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition marks a violated caller precondition (misaligned
	// address, out-of-range index, invalid handle).
	ErrPrecondition = errors.New("precondition violated")

	// ErrInvariant marks a violated internal invariant (busy filter,
	// exhausted tag pool, impossible stage).
	ErrInvariant = errors.New("invariant violated")
)

// Fault is the panic value raised by a failed check.
type Fault struct {
	Err error
	Msg string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%v: %s", f.Err, f.Msg)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Pre fails with ErrPrecondition unless ok. It is never compiled out.
func Pre(ok bool, format string, args ...any) {
	if !ok {
		panic(&Fault{Err: ErrPrecondition, Msg: fmt.Sprintf(format, args...)})
	}
}

// Invariant fails with ErrInvariant unless ok. It is a no-op when checks are
// compiled out.
func Invariant(ok bool, format string, args ...any) {
	if Enabled && !ok {
		panic(&Fault{Err: ErrInvariant, Msg: fmt.Sprintf(format, args...)})
	}
}

// Unreached fails unconditionally. Used for impossible stages and command
// kinds, where continuing would corrupt the core in any build.
func Unreached(format string, args ...any) {
	panic(&Fault{Err: ErrInvariant, Msg: fmt.Sprintf(format, args...)})
}

// AsFault reports whether a recovered panic value is a check failure.
func AsFault(v any) (*Fault, bool) {
	f, ok := v.(*Fault)
	return f, ok
}
