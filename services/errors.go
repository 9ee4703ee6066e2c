package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeUnauthorized       ErrorType = "unauthorized"
	ErrorTypeInternal           ErrorType = "internal"
	ErrorTypeEmbeddingBackend   ErrorType = "embedding_backend"
	ErrorTypeStoreUnavailable   ErrorType = "store_unavailable"
	ErrorTypeGeneration         ErrorType = "generation"
	ErrorTypeEvaluationDegraded ErrorType = "evaluation_degraded"
	ErrorTypeConfiguration      ErrorType = "configuration"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	ErrDocumentNotFound = NewDomainError(ErrorTypeNotFound, "document not found", nil)
	ErrAnswerNotFound   = NewDomainError(ErrorTypeNotFound, "answer record not found", nil)

	ErrInvalidInput       = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyQuestion      = NewDomainError(ErrorTypeValidation, "Question cannot be empty", nil)
	ErrDimensionMismatch  = NewDomainError(ErrorTypeValidation, "embedding dimension mismatch", nil)
	ErrNoDocumentsToStore = NewDomainError(ErrorTypeValidation, "no documents to ingest", nil)

	ErrUnauthorized = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidToken = NewDomainError(ErrorTypeUnauthorized, "invalid authentication token", nil)

	ErrInternal      = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError = NewDomainError(ErrorTypeInternal, "database error", nil)

	ErrEmbeddingBackend   = NewDomainError(ErrorTypeEmbeddingBackend, "embedding backend error", nil)
	ErrStoreUnavailable   = NewDomainError(ErrorTypeStoreUnavailable, "document store unavailable", nil)
	ErrGeneration         = NewDomainError(ErrorTypeGeneration, "answer generation failed", nil)
	ErrEvaluationDegraded = NewDomainError(ErrorTypeEvaluationDegraded, "evaluation degraded", nil)
	ErrConfiguration      = NewDomainError(ErrorTypeConfiguration, "invalid configuration", nil)
)

// NewEmbeddingBackendError wraps a failure of the embedding backend
func NewEmbeddingBackendError(backend string, err error) *DomainError {
	return NewDomainError(ErrorTypeEmbeddingBackend, "embedding backend "+backend+" failed", err).
		WithDetail("backend", backend)
}

// NewStoreUnavailableError wraps a connection failure of the document store
func NewStoreUnavailableError(store string, err error) *DomainError {
	return NewDomainError(ErrorTypeStoreUnavailable, "document store "+store+" unavailable", err).
		WithDetail("store", store)
}

// NewGenerationError wraps a failure of the language-model backend while answering
func NewGenerationError(message string, err error) *DomainError {
	return NewDomainError(ErrorTypeGeneration, message, err)
}

// NewConfigurationError reports an invalid configuration value
func NewConfigurationError(message string) *DomainError {
	return NewDomainError(ErrorTypeConfiguration, message, nil)
}

// Error type checking helper functions

func hasType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errType
	}
	return false
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return hasType(err, ErrorTypeNotFound)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return hasType(err, ErrorTypeValidation)
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return hasType(err, ErrorTypeUnauthorized)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return hasType(err, ErrorTypeInternal)
}

// IsEmbeddingBackendError checks if an error came from the embedding backend
func IsEmbeddingBackendError(err error) bool {
	return hasType(err, ErrorTypeEmbeddingBackend)
}

// IsStoreUnavailableError checks if the document store could not be reached
func IsStoreUnavailableError(err error) bool {
	return hasType(err, ErrorTypeStoreUnavailable)
}

// IsGenerationError checks if answer generation failed
func IsGenerationError(err error) bool {
	return hasType(err, ErrorTypeGeneration)
}

// IsEvaluationDegraded checks if an error signals a degraded evaluation
func IsEvaluationDegraded(err error) bool {
	return hasType(err, ErrorTypeEvaluationDegraded)
}

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	return hasType(err, ErrorTypeConfiguration)
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
