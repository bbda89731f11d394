package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a reqlens error code.
type ErrorCode string

const (
	ErrInvalidRequest       ErrorCode = "INVALID_REQUEST"        // 400
	ErrNotFound             ErrorCode = "NOT_FOUND"              // 404
	ErrFileNotFound         ErrorCode = "FILE_NOT_FOUND"         // 404
	ErrConflict             ErrorCode = "CONFLICT"               // 409
	ErrUnsupportedDocument  ErrorCode = "UNSUPPORTED_DOCUMENT"   // 415
	ErrInvalidSubsystemName ErrorCode = "INVALID_SUBSYSTEM_NAME" // 422
	ErrCancelled            ErrorCode = "CANCELLED"              // 499
	ErrInternal             ErrorCode = "INTERNAL"               // 500
	ErrAIUnavailable        ErrorCode = "AI_UNAVAILABLE"         // 503
)

// ReqError represents a structured error with code, status, and details.
type ReqError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ReqError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ReqError {
	return &ReqError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing candidate, document or record.
func NewNotFound(kind, identifier string) *ReqError {
	return &ReqError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a path that does not exist.
func NewFileNotFound(path string) *ReqError {
	return &ReqError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewConflict creates a 409 error for general conflicts.
func NewConflict(msg string) *ReqError {
	return &ReqError{
		Code:    ErrConflict,
		Status:  409,
		Message: msg,
	}
}

// NewUnsupportedDocument creates a 415 error for document formats that need binary extraction.
func NewUnsupportedDocument(ext string) *ReqError {
	return &ReqError{
		Code:    ErrUnsupportedDocument,
		Status:  415,
		Message: fmt.Sprintf("unsupported document type %q (convert to text, markdown or html first)", ext),
		Details: map[string]any{"extension": ext},
	}
}

// NewInvalidSubsystemName creates a 422 error when a proposed subsystem name
// fails the domain-name sanity filter.
func NewInvalidSubsystemName(name, reason string) *ReqError {
	return &ReqError{
		Code:    ErrInvalidSubsystemName,
		Status:  422,
		Message: fmt.Sprintf("subsystem name %q rejected: %s", name, reason),
		Details: map[string]any{"name": name, "reason": reason},
	}
}

// NewCancelled creates a 499 error when an operation is cancelled by its caller.
func NewCancelled(op string) *ReqError {
	return &ReqError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", op),
	}
}

// NewAIUnavailable creates a 503 error when an AI-only operation has no provider.
func NewAIUnavailable(reason string) *ReqError {
	return &ReqError{
		Code:    ErrAIUnavailable,
		Status:  503,
		Message: reason,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ReqError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ReqError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error (or anything it wraps) is a ReqError with the given code.
func Is(err error, code ErrorCode) bool {
	var rErr *ReqError
	if stderrors.As(err, &rErr) {
		return rErr.Code == code
	}
	return false
}

// As returns the ReqError in err's chain, if any.
func As(err error) (*ReqError, bool) {
	var rErr *ReqError
	if stderrors.As(err, &rErr) {
		return rErr, true
	}
	return nil, false
}
