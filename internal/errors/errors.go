// Package errors provides structured error types for the dicomlens system.
// All errors include a category, code, message, and a kind that tells callers
// whether the failure is fatal, a missing resource, or a soft skip condition.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by system component.
type ErrorCategory string

const (
	ErrCategoryConfig     ErrorCategory = "CONFIG"
	ErrCategoryDictionary ErrorCategory = "DICTIONARY"
	ErrCategoryProjection ErrorCategory = "PROJECTION"
	ErrCategoryCache      ErrorCategory = "CACHE"
	ErrCategoryArchive    ErrorCategory = "ARCHIVE"
	ErrCategoryAggregate  ErrorCategory = "AGGREGATE"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// ErrorKind tells callers how to react to an error.
type ErrorKind int

const (
	// KindFatal aborts the current operation (or, at init time, the process).
	KindFatal ErrorKind = iota
	// KindNotFound maps to a "resource not found" condition on the request path.
	KindNotFound
	// KindSkip marks a soft failure: omit the affected item and continue.
	KindSkip
)

// Error codes for each category.
const (
	// Config codes
	CodeInvalidDataSource = "INVALID_DATA_SOURCE"
	CodeInvalidStoreType  = "INVALID_STORE_TYPE"
	CodeInvalidConfig     = "INVALID_CONFIG"

	// Dictionary codes
	CodeConflictingDescriptor = "CONFLICTING_DESCRIPTOR"

	// Projection codes
	CodeUnsupportedKind = "UNSUPPORTED_KIND"

	// Cache codes
	CodeRecordCorrupt = "RECORD_CORRUPT"
	CodeStaleVersion  = "STALE_VERSION"
	CodeStoreFailed   = "STORE_FAILED"
	CodeNoRecord      = "NO_RECORD"

	// Archive codes
	CodeInstanceUnknown = "INSTANCE_UNKNOWN"
	CodeStudyUnknown    = "STUDY_UNKNOWN"
	CodeArchiveRequest  = "ARCHIVE_REQUEST"
	CodeDicomWebMissing = "DICOMWEB_MISSING"

	// Internal codes
	CodeUnexpected   = "UNEXPECTED"
	CodeAssetUnknown = "ASSET_UNKNOWN"
)

// LensError is the structured error type used throughout the system.
type LensError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Cause    error
	Kind     ErrorKind
}

// Error returns a formatted error string.
func (e *LensError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *LensError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *LensError) Is(target error) bool {
	var t *LensError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new LensError.
func New(category ErrorCategory, code, message string) *LensError {
	return &LensError{
		Category: category,
		Code:     code,
		Message:  message,
		Kind:     kindOf(code),
	}
}

// Wrap creates a new LensError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *LensError {
	return &LensError{
		Category: category,
		Code:     code,
		Message:  message,
		Cause:    cause,
		Kind:     kindOf(code),
	}
}

// IsNotFound checks whether an error (or its chain) is a missing-resource condition.
func IsNotFound(err error) bool {
	var le *LensError
	if errors.As(err, &le) {
		return le.Kind == KindNotFound
	}
	return false
}

// IsSkip checks whether an error (or its chain) is a soft skip condition.
func IsSkip(err error) bool {
	var le *LensError
	if errors.As(err, &le) {
		return le.Kind == KindSkip
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a LensError.
func GetCategory(err error) ErrorCategory {
	var le *LensError
	if errors.As(err, &le) {
		return le.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a LensError.
func GetCode(err error) string {
	var le *LensError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

// kindOf determines the kind of an error code.
func kindOf(code string) ErrorKind {
	switch code {
	case CodeStudyUnknown, CodeInstanceUnknown, CodeAssetUnknown:
		return KindNotFound
	case CodeNoRecord, CodeRecordCorrupt, CodeStaleVersion:
		return KindSkip
	default:
		return KindFatal
	}
}

// Convenience constructors for common errors.

func NewConfigError(code, message string) *LensError {
	return New(ErrCategoryConfig, code, message)
}

func NewArchiveError(code, message string, cause error) *LensError {
	return Wrap(ErrCategoryArchive, code, message, cause)
}

func NewCacheError(code, message string, cause error) *LensError {
	return Wrap(ErrCategoryCache, code, message, cause)
}

func NewInternalError(message string, cause error) *LensError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
