package gate

import (
	"github.com/lorekeep-ai/sdk/constraint"
	"github.com/lorekeep-ai/sdk/parser"
)

// Stage names one of the five validation stages.
type Stage string

const (
	// StageConstraint checks prohibitions and hard requirements.
	StageConstraint Stage = "constraint"

	// StageCanonical checks for contradictions of canonical facts.
	StageCanonical Stage = "canonical"

	// StageBoundary checks for forbidden-knowledge mentions.
	StageBoundary Stage = "boundary"

	// StageMutation validates proposed mutations.
	StageMutation Stage = "mutation"

	// StageCustom runs caller-supplied rules.
	StageCustom Stage = "custom"
)

// Failure is one itemized validation failure.
type Failure struct {
	// Stage that produced the failure.
	Stage Stage `json:"stage"`

	// ConstraintID identifies the violated constraint or rule, when any.
	ConstraintID string `json:"constraint_id,omitempty"`

	// Severity of the failure. Critical terminates retries.
	Severity constraint.Severity `json:"severity"`

	// Reason is the human-readable explanation.
	Reason string `json:"reason"`
}

// Result is the verdict of a full gate run. All five stages contribute;
// failures accumulate rather than short-circuit.
type Result struct {
	failures          []Failure
	approvedMutations []parser.ProposedMutation
	rejectedMutations []parser.ProposedMutation
}

// Passed is true only if zero failures accumulated across all stages.
func (r *Result) Passed() bool {
	return len(r.failures) == 0
}

// HasCriticalFailure is true if any failure carries Critical severity.
func (r *Result) HasCriticalFailure() bool {
	for _, f := range r.failures {
		if f.Severity == constraint.Critical {
			return true
		}
	}
	return false
}

// ShouldRetry is true when the output failed for reasons a retried,
// constraint-escalated attempt might fix.
func (r *Result) ShouldRetry() bool {
	return !r.Passed() && !r.HasCriticalFailure()
}

// Failures returns a copy of the accumulated failures.
func (r *Result) Failures() []Failure {
	return append([]Failure(nil), r.failures...)
}

// ApprovedMutations returns the mutations cleared for application.
// It returns nil unless the output passed: a failing output releases no
// mutations, approved or not.
func (r *Result) ApprovedMutations() []parser.ProposedMutation {
	if !r.Passed() {
		return nil
	}
	return append([]parser.ProposedMutation(nil), r.approvedMutations...)
}

// ApprovedIntents returns the approved emit_world_intent mutations.
// Nil unless the output passed.
func (r *Result) ApprovedIntents() []parser.ProposedMutation {
	if !r.Passed() {
		return nil
	}
	var intents []parser.ProposedMutation
	for _, m := range r.approvedMutations {
		if m.Kind == parser.MutationEmitWorldIntent {
			intents = append(intents, m)
		}
	}
	return intents
}

// RejectedMutations returns the mutations the gate refused, for logging
// and diagnostics. Available regardless of the verdict.
func (r *Result) RejectedMutations() []parser.ProposedMutation {
	return append([]parser.ProposedMutation(nil), r.rejectedMutations...)
}

// ViolatedConstraintIDs returns the distinct constraint ids named by the
// accumulated failures, in first-seen order. The orchestrator escalates
// these between attempts.
func (r *Result) ViolatedConstraintIDs() []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, f := range r.failures {
		if f.ConstraintID == "" {
			continue
		}
		if _, dup := seen[f.ConstraintID]; dup {
			continue
		}
		seen[f.ConstraintID] = struct{}{}
		ids = append(ids, f.ConstraintID)
	}
	return ids
}
