package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrInferenceFailed is the sentinel for all inference backend failures.
// Use errors.Is to detect it regardless of the wrapping InferenceError.
var ErrInferenceFailed = errors.New("llm: inference failed")

// Completer is the inference collaborator: an opaque, asynchronous,
// cancellable text-completion function. Implementations are treated as
// non-deterministic and potentially failing; the orchestrator owns the
// timeout via the context it passes in.
type Completer interface {
	// Complete generates text for the request. Implementations must honor
	// context cancellation and deadline.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	return f(ctx, req)
}

// InferenceError wraps a backend failure with provider context.
// It matches ErrInferenceFailed under errors.Is.
type InferenceError struct {
	// Provider names the backend that failed.
	Provider string

	// Timeout is true when the call exceeded its deadline.
	Timeout bool

	// Err is the underlying failure.
	Err error
}

// Error implements the error interface.
func (e *InferenceError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("llm: inference timed out (provider %s): %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("llm: inference failed (provider %s): %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *InferenceError) Unwrap() error {
	return e.Err
}

// Is matches InferenceError against the ErrInferenceFailed sentinel.
func (e *InferenceError) Is(target error) bool {
	return target == ErrInferenceFailed
}
