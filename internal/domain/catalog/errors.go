package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyCatalog indicates the input held no records.
	ErrEmptyCatalog = errors.New("catalog contains no records")
	// ErrDuplicateID indicates two records normalized to the same id.
	ErrDuplicateID = errors.New("duplicate record id")
	// ErrInvalidRecord indicates a record failed structural validation.
	ErrInvalidRecord = errors.New("invalid record")
)

// DuplicateIDError reports the offending id.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate record id %q", e.ID)
}

func (e *DuplicateIDError) Unwrap() error {
	return ErrDuplicateID
}

// RecordError describes one invalid record by its zero-based position.
type RecordError struct {
	Index  int
	Reason string
}

// ValidationError aggregates every invalid record in a file.
type ValidationError struct {
	Records []RecordError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Records))
	for _, r := range e.Records {
		parts = append(parts, fmt.Sprintf("record %d: %s", r.Index, r.Reason))
	}
	return "validation errors: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRecord
}
