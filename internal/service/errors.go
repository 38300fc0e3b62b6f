package service

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels matched with errors.Is.  The typed errors below wrap the sentinel
// of their class so handlers can switch on either.
var (
	// ErrValidation marks a malformed request, rejected before any
	// transaction opens.
	ErrValidation = errors.New("invalid request")
	// ErrUnavailable marks boxes already held by someone else.
	ErrUnavailable = errors.New("box unavailable")
	// ErrRemovalCap marks more than MaxRemovalsPerBox present names for one box.
	ErrRemovalCap = errors.New("content removal cap exceeded")
	ErrNotFound = errors.New("box not found")
	// ErrNotHeld marks a shop cancellation of a box nobody has reserved.
	ErrNotHeld = errors.New("box is not reserved")
	ErrExpired = errors.New("box retrieval window has ended")
	// ErrInvariant means the ownership flags disagree with the reservations
	// after a write; the transaction is rolled back.
	ErrInvariant = errors.New("ownership invariant violated")
	ErrStorage   = errors.New("storage failure")
)

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}

// UnavailableError lists the requested boxes another user already holds.
type UnavailableError struct {
	BoxIDs []int64
}

func (e *UnavailableError) Error() string {
	if len(e.BoxIDs) == 1 {
		return fmt.Sprintf("box %d is no longer available", e.BoxIDs[0])
	}
	return fmt.Sprintf("boxes %s are no longer available", joinIDs(e.BoxIDs))
}

func (e *UnavailableError) Unwrap() error { return ErrUnavailable }

// NotFoundError lists requested ids that match no box.
type NotFoundError struct {
	BoxIDs []int64
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("unknown box ids: %s", joinIDs(e.BoxIDs)) }

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ExpiredError lists requested boxes whose retrieval window already ended.
type ExpiredError struct {
	BoxIDs []int64
}

func (e *ExpiredError) Error() string {
	if len(e.BoxIDs) == 1 {
		return fmt.Sprintf("the box with ID %d is already wasted", e.BoxIDs[0])
	}
	return fmt.Sprintf("the boxes with IDs %s are already wasted", joinIDs(e.BoxIDs))
}

func (e *ExpiredError) Unwrap() error { return ErrExpired }

// RemovalCapError reports a box for which more than MaxRemovalsPerBox
// present content lines were requested.
type RemovalCapError struct {
	BoxID     int64
	Requested []string
}

func (e *RemovalCapError) Error() string {
	return fmt.Sprintf("at most %d items can be removed from box %d, got %d (%s)",
		MaxRemovalsPerBox, e.BoxID, len(e.Requested), strings.Join(e.Requested, ", "))
}

func (e *RemovalCapError) Unwrap() error { return ErrRemovalCap }

// StorageError wraps an unexpected persistence failure with the step that
// hit it.  Safe to retry: the transaction was rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
