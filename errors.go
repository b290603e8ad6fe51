package sdk

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sentinel errors for common pipeline error conditions.
// These errors can be used with errors.Is() for error checking.
var (
	// ErrPersonaNotFound indicates the requested persona has no store or
	// save record.
	ErrPersonaNotFound = errors.New("persona not found")

	// ErrInvalidConfig indicates the provided configuration or profile is
	// invalid or incomplete.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Error kinds categorize errors by their type.
const (
	// KindAuthority represents writes rejected by the authority hierarchy.
	KindAuthority = "authority"

	// KindImmutable represents attempts to modify canonical facts.
	KindImmutable = "immutable"

	// KindValidation represents errors related to input validation.
	KindValidation = "validation"

	// KindInference represents inference backend failures.
	KindInference = "inference"

	// KindMalformedOutput represents unparseable model output.
	KindMalformedOutput = "malformed_output"

	// KindConfiguration represents errors related to configuration.
	KindConfiguration = "configuration"

	// KindNotFound represents errors where a resource was not found.
	KindNotFound = "not_found"

	// KindTimeout represents errors related to operation timeouts.
	KindTimeout = "timeout"

	// KindInternal represents internal SDK errors.
	KindInternal = "internal"
)

// Error is a structured error type that wraps underlying errors with
// additional context about the operation that failed and the category of
// error.
//
// Error implements the error interface and supports error unwrapping,
// making it compatible with errors.Is() and errors.As().
//
// Example usage:
//
//	err := &Error{
//		Op:   "Pipeline.Interact",
//		Kind: KindInference,
//		Err:  llm.ErrInferenceFailed,
//	}
type Error struct {
	// Op is the operation that failed (e.g., "Pipeline.Save", "Store.AddCanonicalFact").
	Op string

	// Kind categorizes the error (e.g., KindAuthority, KindValidation).
	Kind string

	// Err is the underlying error that caused this error.
	Err error

	// Context provides additional context about the error (optional).
	// This can include persona IDs, memory keys, or other debugging
	// information.
	Context map[string]any
}

// Error implements the error interface, returning a formatted error message
// that includes the operation, kind, and underlying error.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("sdk: %s: %s", e.Op, e.Kind)
	}

	if len(e.Context) > 0 {
		return fmt.Sprintf("sdk: %s (%s): %v [context: %+v]", e.Op, e.Kind, e.Err, e.Context)
	}

	return fmt.Sprintf("sdk: %s (%s): %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error, allowing errors.Is() and errors.As()
// to work correctly with wrapped errors.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error matching for Error, allowing comparison based on
// the underlying error or the Error itself.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	// Check if target is an Error with matching Kind
	if t, ok := target.(*Error); ok {
		if t.Kind != "" && e.Kind == t.Kind {
			if t.Op == "" || e.Op == t.Op {
				return true
			}
		}
	}

	// Delegate to underlying error
	return errors.Is(e.Err, target)
}

// WithContext returns a new Error with the provided context added.
// This is useful for adding debugging information to errors.
func (e *Error) WithContext(ctx map[string]any) *Error {
	newErr := *e
	if newErr.Context == nil {
		newErr.Context = make(map[string]any)
	}
	for k, v := range ctx {
		newErr.Context[k] = v
	}
	return &newErr
}

// NewAuthorityError creates a new Error with KindAuthority.
func NewAuthorityError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindAuthority, Err: err}
}

// NewImmutableError creates a new Error with KindImmutable.
func NewImmutableError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindImmutable, Err: err}
}

// NewValidationError creates a new Error with KindValidation.
func NewValidationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindValidation, Err: err}
}

// NewInferenceError creates a new Error with KindInference.
func NewInferenceError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInference, Err: err}
}

// NewConfigurationError creates a new Error with KindConfiguration.
func NewConfigurationError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConfiguration, Err: err}
}

// NewNotFoundError creates a new Error with KindNotFound.
func NewNotFoundError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindNotFound, Err: err}
}

// NewTimeoutError creates a new Error with KindTimeout.
func NewTimeoutError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindTimeout, Err: err}
}

// NewInternalError creates a new Error with KindInternal.
func NewInternalError(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInternal, Err: err}
}

// CloseWithLog attempts to close the provided resource and logs any error
// at warning level. This is intended for use in defer statements to ensure
// cleanup errors are not silently ignored.
//
// The name parameter should describe the resource being closed (e.g.,
// "redis store", "ownership directory"). If logger is nil, slog.Default()
// is used.
func CloseWithLog(closer io.Closer, logger *slog.Logger, name string) {
	if closer == nil {
		return
	}

	if logger == nil {
		logger = slog.Default()
	}

	if err := closer.Close(); err != nil {
		logger.Warn("failed to close resource",
			"resource", name,
			"error", err)
	}
}
