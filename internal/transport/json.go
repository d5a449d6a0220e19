package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rpggio/annotask/internal/domain/annotation"
	"github.com/rpggio/annotask/internal/domain/assignment"
)

// Stable error codes returned to the presentation layer.
const (
	CodeQuotaExceeded      = "QUOTA_EXCEEDED"
	CodeNotInBatch         = "NOT_IN_BATCH"
	CodeEmptyCorrection    = "EMPTY_CORRECTION"
	CodeInvalidCorrection  = "INVALID_CORRECTION"
	CodeAlreadyAnnotated   = "ALREADY_ANNOTATED"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeInvalidBatchSize   = "INVALID_BATCH_SIZE"
	CodeNotFound           = "NOT_FOUND"
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeInternal           = "INTERNAL"
)

// Error is the body of every failed response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error Error `json:"error"`
}

// ParseRequest decodes a JSON request body into dst. An empty body leaves dst unchanged.
func ParseRequest(body io.Reader, dst any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse error: %w", err)
	}
	return nil
}

// WriteResult writes a JSON success response.
func WriteResult(w http.ResponseWriter, status int, result any) {
	writeJSON(w, status, result)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: Error{Code: code, Message: message}})
}

// WriteDomainError maps engine errors to a status and stable code.
func WriteDomainError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	WriteError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, assignment.ErrQuotaExceeded):
		return http.StatusConflict, CodeQuotaExceeded
	case errors.Is(err, assignment.ErrNotInBatch):
		return http.StatusForbidden, CodeNotInBatch
	case errors.Is(err, annotation.ErrEmptyCorrection):
		return http.StatusUnprocessableEntity, CodeEmptyCorrection
	case errors.Is(err, annotation.ErrShapeMismatch):
		return http.StatusUnprocessableEntity, CodeInvalidCorrection
	case errors.Is(err, assignment.ErrAlreadyAnnotated):
		return http.StatusConflict, CodeAlreadyAnnotated
	case errors.Is(err, assignment.ErrInvalidBatchSize):
		return http.StatusBadRequest, CodeInvalidBatchSize
	case errors.Is(err, assignment.ErrInvalidInput):
		return http.StatusBadRequest, CodeInvalidInput
	case errors.Is(err, assignment.ErrAnnotationNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, assignment.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, CodeStorageUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
