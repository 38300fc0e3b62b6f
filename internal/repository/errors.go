// Package repository defines the data access layer and the error values
// shared by its repositories.  These sentinel values allow higher layers such
// as handlers to distinguish between different failure scenarios.  For
// example, ErrForbidden indicates that a shop owner tried to touch a box that
// another shop offers, while ErrConflict signals that an operation cannot
// proceed because of dependent rows (deleting a box that is still reserved).
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.  Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or insert cannot be performed
// because of conflicting state, such as deleting a box that still has an
// active reservation.  Handlers translate this into HTTP 422.
var ErrConflict = errors.New("conflict")

var (
	ErrBoxNotFound    = errors.New("box not found")
	ErrShopNotFound   = errors.New("shop not found")
	ErrShopExists     = errors.New("shop already exists")
	ErrItemExists     = errors.New("item already exists")
	ErrUnknownItems   = errors.New("unknown catalog items")
	ErrUsernameExists = errors.New("username already exists")
)
