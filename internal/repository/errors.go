package repository

import "errors"

var (
	// ErrNotFound is returned when a requested row doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write collides with an existing row
	ErrConflict = errors.New("conflict: row already exists")

	// ErrClosed is returned after the store has been closed
	ErrClosed = errors.New("store closed")
)
