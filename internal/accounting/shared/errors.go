package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates malformed input such as an unbalanced entry or an unknown account.
	ErrValidation = errors.New("accounting: validation failed")
	// ErrState indicates an illegal journal status transition.
	ErrState = errors.New("accounting: invalid status transition")
	// ErrNotFound indicates a tenant-scoped lookup miss.
	ErrNotFound = errors.New("accounting: not found")
	// ErrConflict indicates the operation collides with existing tenant state.
	ErrConflict = errors.New("accounting: conflict")
	// ErrStorage indicates the storage layer failed; it is never a business rejection.
	ErrStorage = errors.New("accounting: storage failure")
)

// Error carries a business error kind together with the failing operation.
type Error struct {
	Kind   error
	Op     string
	Detail string
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Detail != "":
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Detail)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return e.Kind.Error()
}

// Unwrap exposes the kind so errors.Is(err, ErrValidation) works.
func (e *Error) Unwrap() error { return e.Kind }

// Validation builds an ErrValidation error for op.
func Validation(op, format string, args ...any) error {
	return &Error{Kind: ErrValidation, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// State builds an ErrState error for op.
func State(op, format string, args ...any) error {
	return &Error{Kind: ErrState, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// NotFound builds an ErrNotFound error for op.
func NotFound(op, format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// Conflict builds an ErrConflict error for op.
func Conflict(op, format string, args ...any) error {
	return &Error{Kind: ErrConflict, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// StorageError wraps an infrastructure failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage, e.Op, e.Err)
}

// Unwrap returns the underlying driver error.
func (e *StorageError) Unwrap() error { return e.Err }

// Is reports ErrStorage as a match so callers need not know the driver error.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Storage wraps err unless it is nil or already a business or storage error.
func Storage(op string, err error) error {
	if err == nil || IsBusiness(err) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsBusiness reports whether err is one of the deterministic, caller-facing kinds.
func IsBusiness(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrState) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict)
}
