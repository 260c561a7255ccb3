package models

import "errors"

var (
	// ErrNotFound is returned when a conversation or ticket id is unknown.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when caller data violates a precondition.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidState is returned when an operation is not allowed in the
	// record's current lifecycle state.
	ErrInvalidState = errors.New("invalid state")
)
