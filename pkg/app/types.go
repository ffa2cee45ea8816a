package app

import (
	"errors"
	"fmt"
)

// ImageTarget represents the disk image selected across commands
type ImageTarget struct {
	ImagePath string
	ReadOnly  bool
}

// Validate ensures the image target is usable
func (it *ImageTarget) Validate() error {
	if it.ImagePath == "" {
		return errors.New("image path is required")
	}
	return nil
}

// String returns a string representation of the image target
func (it *ImageTarget) String() string {
	if it.ReadOnly {
		return "Image: " + it.ImagePath + " (read-only)"
	}
	return "Image: " + it.ImagePath
}

// ValidateOutputFormat checks a --output value
func ValidateOutputFormat(format string) error {
	switch format {
	case "table", "json", "yaml":
		return nil
	default:
		return NewError(ErrCodeInvalidInput, fmt.Sprintf("unsupported output format %q (want table, json or yaml)", format), nil)
	}
}

// CommonError represents application-level errors
type CommonError struct {
	Code    string
	Message string
	Cause   error
}

func (e *CommonError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CommonError) Unwrap() error {
	return e.Cause
}

// Common error codes
const (
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeImageAccess  = "IMAGE_ACCESS"
	ErrCodeNotFormatted = "NOT_FORMATTED"
	ErrCodeCheckFailed  = "CHECK_FAILED"
)

// NewError creates a new CommonError
func NewError(code, message string, cause error) *CommonError {
	return &CommonError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
