package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("resource not found")
	ErrValidation       = errors.New("invalid document upload")
	ErrExtraction       = errors.New("text extraction failed")
	ErrPersistence      = errors.New("persistence failed")
	ErrProcessingFailed = errors.New("document processing failed")
	ErrFileTooLarge     = errors.New("file exceeds maximum allowed size")
	ErrOCRUnavailable   = errors.New("no OCR engine configured")
)

// ValidationError rejects an invocation before any processing happens. Err
// optionally names a more specific sentinel such as ErrFileTooLarge.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrValidation}
	}
	return []error{ErrValidation, e.Err}
}

// ExtractionError is an unrecoverable parse or OCR failure.
type ExtractionError struct {
	Method ExtractionMethod
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction: %v", e.Method, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtraction, e.Err}
}

// PersistenceError is a storage or audit write failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.Err}
}

// ErrorCode returns a stable, detail-free code for err suitable for audit rows.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrExtraction):
		return "EXTRACTION_ERROR"
	case errors.Is(err, ErrPersistence):
		return "PERSISTENCE_ERROR"
	default:
		return "INTERNAL_ERROR"
	}
}
