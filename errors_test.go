package sdk

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestSentinelErrors verifies that all sentinel errors are defined correctly.
func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "ErrPersonaNotFound",
			err:  ErrPersonaNotFound,
			want: "persona not found",
		},
		{
			name: "ErrInvalidConfig",
			err:  ErrInvalidConfig,
			want: "invalid configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatalf("sentinel error %s is nil", tt.name)
			}
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("error message = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestErrorError verifies the Error() method formatting.
func TestErrorError(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "basic error",
			err: &Error{
				Op:   "Pipeline.Save",
				Kind: KindInternal,
				Err:  errors.New("redis unreachable"),
			},
			want: "sdk: Pipeline.Save (internal): redis unreachable",
		},
		{
			name: "error with context",
			err: &Error{
				Op:   "Pipeline.Interact",
				Kind: KindInference,
				Err:  errors.New("backend down"),
				Context: map[string]any{
					"persona_id": "npc-blacksmith",
				},
			},
			want: "sdk: Pipeline.Interact (inference): backend down [context:",
		},
		{
			name: "error without underlying error",
			err: &Error{
				Op:   "NewPipeline",
				Kind: KindConfiguration,
			},
			want: "sdk: NewPipeline: configuration",
		},
		{
			name: "error with wrapped error",
			err: &Error{
				Op:   "NewPipeline",
				Kind: KindConfiguration,
				Err:  fmt.Errorf("failed to load profile: %w", ErrInvalidConfig),
			},
			want: "sdk: NewPipeline (configuration): failed to load profile: invalid configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if !strings.Contains(got, tt.want) {
				t.Errorf("Error() = %q, want to contain %q", got, tt.want)
			}
		})
	}
}

// TestErrorUnwrap verifies errors.Is sees through the wrapper.
func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := NewInternalError("Pipeline.Save", fmt.Errorf("wrapped: %w", inner))

	if !errors.Is(err, inner) {
		t.Error("errors.Is should match the wrapped error")
	}
	if errors.Is(err, ErrPersonaNotFound) {
		t.Error("errors.Is should not match an unrelated sentinel")
	}
}

// TestErrorIs verifies kind-based matching between Error values.
func TestErrorIs(t *testing.T) {
	err := NewAuthorityError("Store.AddCanonicalFact", errors.New("denied"))

	if !errors.Is(err, &Error{Kind: KindAuthority}) {
		t.Error("should match on Kind alone")
	}
	if !errors.Is(err, &Error{Op: "Store.AddCanonicalFact", Kind: KindAuthority}) {
		t.Error("should match on Op and Kind")
	}
	if errors.Is(err, &Error{Op: "Other.Op", Kind: KindAuthority}) {
		t.Error("should not match a different Op")
	}
	if errors.Is(err, &Error{Kind: KindTimeout}) {
		t.Error("should not match a different Kind")
	}
}

// TestErrorWithContext verifies context is copied, not shared.
func TestErrorWithContext(t *testing.T) {
	base := NewValidationError("NewPipeline", ErrInvalidConfig)
	withCtx := base.WithContext(map[string]any{"persona_id": "npc-guard"})

	if base.Context != nil {
		t.Error("WithContext must not mutate the receiver")
	}
	if withCtx.Context["persona_id"] != "npc-guard" {
		t.Errorf("context not carried: %+v", withCtx.Context)
	}
}

// TestConstructors verifies each constructor sets the matching kind.
func TestConstructors(t *testing.T) {
	inner := errors.New("x")
	tests := []struct {
		name string
		err  *Error
		kind string
	}{
		{"authority", NewAuthorityError("op", inner), KindAuthority},
		{"immutable", NewImmutableError("op", inner), KindImmutable},
		{"validation", NewValidationError("op", inner), KindValidation},
		{"inference", NewInferenceError("op", inner), KindInference},
		{"configuration", NewConfigurationError("op", inner), KindConfiguration},
		{"not found", NewNotFoundError("op", inner), KindNotFound},
		{"timeout", NewTimeoutError("op", inner), KindTimeout},
		{"internal", NewInternalError("op", inner), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", tt.err.Kind, tt.kind)
			}
			if tt.err.Op != "op" || tt.err.Err != inner {
				t.Errorf("constructor dropped fields: %+v", tt.err)
			}
		})
	}
}
