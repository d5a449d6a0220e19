package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/annotask/internal/domain/annotation"
	"github.com/rpggio/annotask/internal/domain/assignment"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps engine rejections to stable codes. It returns nil for
// errors that should surface as tool failures.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, assignment.ErrQuotaExceeded):
		return &APIError{Code: "QUOTA_EXCEEDED", Message: "annotation limit reached", RecoveryHint: "Stop; this user is done"}
	case errors.Is(err, assignment.ErrNotInBatch):
		return &APIError{Code: "NOT_IN_BATCH", Message: "record is not in the user's batch", RecoveryHint: "Call next_record"}
	case errors.Is(err, annotation.ErrEmptyCorrection):
		return &APIError{Code: "EMPTY_CORRECTION", Message: "correction is empty or unchanged", RecoveryHint: "Edit the content or mark it correct"}
	case errors.Is(err, annotation.ErrShapeMismatch):
		return &APIError{Code: "INVALID_CORRECTION", Message: "correction does not match the record shape", RecoveryHint: "Use edited_conversations for conversation records"}
	case errors.Is(err, assignment.ErrAlreadyAnnotated):
		return &APIError{Code: "ALREADY_ANNOTATED", Message: "another user annotated this record", RecoveryHint: "Call next_record"}
	case errors.Is(err, assignment.ErrInvalidInput):
		return &APIError{Code: "INVALID_INPUT", Message: "user_id and record_id are required"}
	case errors.Is(err, assignment.ErrInvalidBatchSize):
		return &APIError{Code: "INVALID_BATCH_SIZE", Message: "batch size must be at least 1"}
	default:
		return nil
	}
}
