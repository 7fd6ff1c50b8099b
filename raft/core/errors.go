package core

import "fmt"

// FatalError signals that a collaborator (the persistent-state store or the
// state machine) failed in a way the core cannot safely continue past: its
// own durability guarantees depend on every mutating store call succeeding.
// Handlers that hit one panic with a *FatalError rather than calling into
// logrus's Fatal severity, which would terminate the whole process instead
// of just this replica; raft.Replica recovers it at the top of the event
// loop and stops cleanly.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string { return fmt.Sprintf("raft: fatal error during %s: %v", e.Op, e.Err) }

func (e *FatalError) Unwrap() error { return e.Err }

func fatal(op string, err error) {
	panic(&FatalError{Op: op, Err: err})
}
