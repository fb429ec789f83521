// Package store holds the client's canonical in-memory state: the site list,
// the post selection and the current page. Stores are safe for concurrent use.
// Only the service package mutates them; everything else reads snapshots.
package store

import (
	"fmt"
	"log/slog"
)

// StateError is an internal invariant violation. It points at a bug in the
// stores and is never shown to the user.
type StateError struct {
	Msg string
}

func (e *StateError) Error() string {
	return "state invariant violated: " + e.Msg
}

// Invariants reports violations. In strict mode a violation panics, which is
// what tests and debug builds want; otherwise it is logged.
type Invariants struct {
	strict bool
	logger *slog.Logger
}

func NewInvariants(strict bool, logger *slog.Logger) *Invariants {
	return &Invariants{strict: strict, logger: logger}
}

func (i *Invariants) Violated(format string, args ...any) {
	err := &StateError{Msg: fmt.Sprintf(format, args...)}
	if i.strict {
		panic(err)
	}
	i.logger.Error("store invariant violated", "error", err)
}

// Ticket orders asynchronous completions. A completion may only be applied
// while its ticket is still current.
type Ticket uint64
