package errs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrForbidden         = errors.New("forbidden")
)

// NotFoundError names the missing record. It matches ErrNotFound.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// TransitionError reports an operation attempted from a state that does not
// permit it. It matches ErrInvalidTransition.
type TransitionError struct {
	Kind string
	ID   string
	From string
	Op   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s %q in status %s", e.Op, e.Kind, e.ID, e.From)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

func Transition(kind, id, from, op string) error {
	return &TransitionError{Kind: kind, ID: id, From: from, Op: op}
}

func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func Insufficient(target string, available, requested int) error {
	return fmt.Errorf("%w: %s has %d, requested %d", ErrInsufficientStock, target, available, requested)
}
