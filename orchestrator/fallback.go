package orchestrator

import (
	"sync"

	"github.com/lorekeep-ai/sdk/constraint"
	"github.com/lorekeep-ai/sdk/gate"
)

// TriggerReason classifies why a turn fell back to a canned response.
type TriggerReason string

const (
	// TriggerInferenceError covers backend call failures and timeouts.
	TriggerInferenceError TriggerReason = "inference_error"

	// TriggerConstraintViolation covers stage-1 constraint failures.
	TriggerConstraintViolation TriggerReason = "constraint_violation"

	// TriggerCanonicalContradiction covers stage-2 fact contradictions.
	TriggerCanonicalContradiction TriggerReason = "canonical_contradiction"

	// TriggerKnowledgeBoundary covers stage-3 forbidden-knowledge leaks.
	TriggerKnowledgeBoundary TriggerReason = "knowledge_boundary"

	// TriggerMutationRejected covers stage-4 mutation rejections.
	TriggerMutationRejected TriggerReason = "mutation_rejected"

	// TriggerCustomRule covers stage-5 rule failures.
	TriggerCustomRule TriggerReason = "custom_rule"
)

// emergencyLine is the hard-coded response of last resort, used when the
// library has no matching contextual or generic template.
const emergencyLine = "Hm... give me a moment to collect my thoughts."

// FallbackLibrary selects a canned response when all generation attempts
// are exhausted: first a context-specific template keyed by trigger reason,
// else a generic template, else the emergency line. Selection rotates
// deterministically through each template list by usage count.
//
// The library tracks usage statistics and is safe for concurrent use, since
// one library is typically shared across personas.
type FallbackLibrary struct {
	mu         sync.Mutex
	contextual map[TriggerReason][]string
	generic    []string
	emergency  string

	contextualUses map[TriggerReason]int
	genericUses    int
	emergencyUses  int
}

// NewFallbackLibrary creates a library. The emergency line defaults to a
// built-in response when empty.
func NewFallbackLibrary(contextual map[TriggerReason][]string, generic []string, emergency string) *FallbackLibrary {
	if emergency == "" {
		emergency = emergencyLine
	}
	lib := &FallbackLibrary{
		contextual:     make(map[TriggerReason][]string, len(contextual)),
		generic:        append([]string(nil), generic...),
		emergency:      emergency,
		contextualUses: make(map[TriggerReason]int),
	}
	for reason, templates := range contextual {
		lib.contextual[reason] = append([]string(nil), templates...)
	}
	return lib
}

// Select returns the fallback response for a trigger reason and records
// the usage.
func (l *FallbackLibrary) Select(reason TriggerReason) string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if templates := l.contextual[reason]; len(templates) > 0 {
		line := templates[l.contextualUses[reason]%len(templates)]
		l.contextualUses[reason]++
		return line
	}
	if len(l.generic) > 0 {
		line := l.generic[l.genericUses%len(l.generic)]
		l.genericUses++
		return line
	}
	l.emergencyUses++
	return l.emergency
}

// FallbackStats is a snapshot of fallback usage counters.
type FallbackStats struct {
	Contextual map[TriggerReason]int `json:"contextual"`
	Generic    int                   `json:"generic"`
	Emergency  int                   `json:"emergency"`
}

// Stats returns usage counters per selection tier.
func (l *FallbackLibrary) Stats() FallbackStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	contextual := make(map[TriggerReason]int, len(l.contextualUses))
	for reason, uses := range l.contextualUses {
		contextual[reason] = uses
	}
	return FallbackStats{
		Contextual: contextual,
		Generic:    l.genericUses,
		Emergency:  l.emergencyUses,
	}
}

// triggerFor maps accumulated gate failures to the trigger reason used for
// fallback selection. Critical failures take precedence; within a severity
// the first failure in stage order wins.
func triggerFor(failures []gate.Failure) TriggerReason {
	pick := func(critical bool) (TriggerReason, bool) {
		for _, f := range failures {
			if (f.Severity == constraint.Critical) != critical {
				continue
			}
			switch f.Stage {
			case gate.StageConstraint:
				return TriggerConstraintViolation, true
			case gate.StageCanonical:
				return TriggerCanonicalContradiction, true
			case gate.StageBoundary:
				return TriggerKnowledgeBoundary, true
			case gate.StageMutation:
				return TriggerMutationRejected, true
			case gate.StageCustom:
				return TriggerCustomRule, true
			}
		}
		return "", false
	}

	if reason, ok := pick(true); ok {
		return reason
	}
	if reason, ok := pick(false); ok {
		return reason
	}
	return TriggerInferenceError
}
