package service

import (
	"context"
	"errors"
	"fmt"

	"driftwood/internal/gateway"
)

type Kind int

const (
	KindTransport Kind = iota + 1
	KindApplication
	KindValidation
	KindState
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindApplication:
		return "application"
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// Error is the failure of a workflow operation.
type Error struct {
	Kind    Kind
	Op      string
	Status  int    // envelope status for application errors
	Message string // user-facing text
	Err     error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrTransport   = &Error{Kind: KindTransport}
	ErrApplication = &Error{Kind: KindApplication}
	ErrValidation  = &Error{Kind: KindValidation}
	ErrState       = &Error{Kind: KindState}
)

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

const genericFailure = "Something went wrong while talking to the backend. Please try again."

func invalid(op string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: err.Error(), Err: err}
}

// classify turns a gateway failure into an operation error. Only the
// caller's own cancellation counts as an abort; a deadline hit inside the
// transport is a transport failure like any other.
func classify(ctx context.Context, op string, err error) error {
	var appErr *gateway.ApplicationError
	if errors.As(err, &appErr) {
		return &Error{Kind: KindApplication, Op: op, Status: appErr.Status, Message: appErr.Message, Err: err}
	}
	if ctx.Err() != nil {
		return aborted(ctx, op)
	}
	return &Error{Kind: KindTransport, Op: op, Message: genericFailure, Err: err}
}

// aborted reports that ctx ended while the call was in flight; the result is
// dropped without touching any store.
func aborted(ctx context.Context, op string) error {
	return fmt.Errorf("%s: %w", op, ctx.Err())
}

// isAbort reports whether err is a dropped operation rather than a failure.
func isAbort(err error) bool {
	var opErr *Error
	if err == nil || errors.As(err, &opErr) {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "error"
)

// Notice is the single user-visible notification for an operation result.
type Notice struct {
	Level   Level
	Title   string
	Message string
}

// Notify translates err into a notice. It returns false when there is nothing
// to show: success, an aborted operation, or an internal state error.
func Notify(err error) (Notice, bool) {
	if err == nil {
		return Notice{}, false
	}
	if isAbort(err) {
		return Notice{}, false
	}
	var opErr *Error
	if !errors.As(err, &opErr) {
		return Notice{Level: LevelError, Title: "Operation failed", Message: genericFailure}, true
	}
	switch opErr.Kind {
	case KindApplication:
		return Notice{Level: LevelError, Title: "Operation failed", Message: opErr.Message}, true
	case KindValidation:
		return Notice{Level: LevelError, Title: "Invalid input", Message: opErr.Message}, true
	case KindState:
		return Notice{}, false
	default:
		return Notice{Level: LevelError, Title: "Operation failed", Message: genericFailure}, true
	}
}
