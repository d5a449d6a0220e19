package annotation

import "errors"

var (
	// ErrEmptyCorrection indicates an incorrect verdict without a usable correction.
	ErrEmptyCorrection = errors.New("correction is empty or unchanged")
	// ErrShapeMismatch indicates the correction does not match the record's payload shape.
	ErrShapeMismatch = errors.New("correction does not match record shape")
)
