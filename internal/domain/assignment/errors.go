package assignment

import (
	"errors"
	"fmt"

	"github.com/rpggio/annotask/internal/domain/annotation"
)

var (
	// ErrQuotaExceeded indicates the user already has batch_size annotations.
	ErrQuotaExceeded = errors.New("annotation quota exceeded")
	// ErrNotInBatch indicates the record is not in the user's current batch.
	ErrNotInBatch = errors.New("record not in user's batch")
	// ErrAlreadyAnnotated indicates another user already annotated the record.
	ErrAlreadyAnnotated = errors.New("record already annotated by another user")
	// ErrEmptyCorrection indicates an incorrect verdict without a real correction.
	ErrEmptyCorrection = annotation.ErrEmptyCorrection
	// ErrInvalidInput indicates missing identifiers.
	ErrInvalidInput = errors.New("invalid assignment input")
	// ErrInvalidBatchSize indicates a batch size below one.
	ErrInvalidBatchSize = errors.New("batch size must be at least 1")
	// ErrAnnotationNotFound indicates no annotation exists for the record.
	ErrAnnotationNotFound = errors.New("annotation not found")
	// ErrStorageUnavailable indicates a durable store failure; no state changed.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// StorageError wraps a store failure so it matches both ErrStorageUnavailable
// and the underlying cause.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: storage unavailable: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error {
	return []error{ErrStorageUnavailable, e.Err}
}

func isDomainError(err error) bool {
	for _, target := range []error{
		ErrQuotaExceeded,
		ErrNotInBatch,
		ErrAlreadyAnnotated,
		ErrInvalidInput,
		ErrInvalidBatchSize,
		ErrAnnotationNotFound,
		annotation.ErrEmptyCorrection,
		annotation.ErrShapeMismatch,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
