package constraint

import (
	"errors"
	"fmt"
)

// ErrInvalidConstraint is returned when a constraint is missing required
// fields or carries an unknown type or severity.
var ErrInvalidConstraint = errors.New("constraint: invalid constraint")

// Type classifies a behavioral rule attached to an interaction.
type Type string

const (
	// Prohibition names something the output must not do.
	Prohibition Type = "prohibition"

	// Requirement names something the output must do.
	Requirement Type = "requirement"

	// Permission names something the output may do.
	Permission Type = "permission"
)

// IsValid returns true if the Type is one of the defined constants.
func (t Type) IsValid() bool {
	switch t {
	case Prohibition, Requirement, Permission:
		return true
	default:
		return false
	}
}

// Severity ranks how serious a violation of the constraint is.
type Severity string

const (
	// Hard violations fail validation but leave the attempt retryable.
	Hard Severity = "hard"

	// Critical violations terminate retries and route to fallback.
	Critical Severity = "critical"
)

// IsValid returns true if the Severity is one of the defined constants.
func (s Severity) IsValid() bool {
	switch s {
	case Hard, Critical:
		return true
	default:
		return false
	}
}

// Constraint is a single typed behavioral rule: a prohibition, requirement,
// or permission the validation gate checks generated output against.
type Constraint struct {
	// ID uniquely identifies the constraint within a set.
	ID string `json:"id" yaml:"id"`

	// Type is the rule class.
	Type Type `json:"type" yaml:"type"`

	// Description is the human-readable rule statement.
	Description string `json:"description" yaml:"description"`

	// PromptInjection is the directive text rendered into the prompt.
	// Falls back to Description when empty.
	PromptInjection string `json:"prompt_injection,omitempty" yaml:"prompt_injection,omitempty"`

	// Severity of a violation. Defaults to Hard.
	Severity Severity `json:"severity" yaml:"severity"`

	// Patterns are case-insensitive keywords used for violation detection.
	// A prohibition is violated when any pattern appears in the output;
	// a requirement with patterns is violated when none appear.
	Patterns []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`
}

// Validate checks the constraint for completeness.
func (c Constraint) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidConstraint)
	}
	if !c.Type.IsValid() {
		return fmt.Errorf("%w: %s: unknown type %q", ErrInvalidConstraint, c.ID, c.Type)
	}
	if c.Severity != "" && !c.Severity.IsValid() {
		return fmt.Errorf("%w: %s: unknown severity %q", ErrInvalidConstraint, c.ID, c.Severity)
	}
	if c.Description == "" && c.PromptInjection == "" {
		return fmt.Errorf("%w: %s: missing description", ErrInvalidConstraint, c.ID)
	}
	return nil
}

// Directive returns the text rendered into the prompt for this constraint.
func (c Constraint) Directive() string {
	if c.PromptInjection != "" {
		return c.PromptInjection
	}
	return c.Description
}
