package parser

import "errors"

// ErrMalformedOutput is returned when a structured block was present but
// could not be decoded. It is non-fatal: the accompanying ParsedOutput
// still carries the plain dialogue, degraded from the structured form.
var ErrMalformedOutput = errors.New("parser: malformed structured output")

// MutationKind names the change a proposed mutation wants to make.
type MutationKind string

const (
	// MutationAppendEpisodic appends an episodic memory entry.
	MutationAppendEpisodic MutationKind = "append_episodic"

	// MutationTransformBelief upserts a belief.
	MutationTransformBelief MutationKind = "transform_belief"

	// MutationTransformRelationship upserts a relationship belief about
	// a subject.
	MutationTransformRelationship MutationKind = "transform_relationship"

	// MutationEmitWorldIntent requests a host-side world effect.
	MutationEmitWorldIntent MutationKind = "emit_world_intent"
)

// IsValid returns true if the MutationKind is one of the defined constants.
func (k MutationKind) IsValid() bool {
	switch k {
	case MutationAppendEpisodic, MutationTransformBelief,
		MutationTransformRelationship, MutationEmitWorldIntent:
		return true
	default:
		return false
	}
}

// ProposedMutation is a change the model's output asks for. Proposals are
// untrusted: they only reach the memory store after the validation gate
// approves them and the mutation controller re-checks them.
type ProposedMutation struct {
	// Kind selects the mutation type.
	Kind MutationKind `json:"kind"`

	// TargetID is the entry the mutation addresses (belief key or
	// episodic id). Mutations targeting a canonical fact id are rejected.
	TargetID string `json:"target_id,omitempty"`

	// Subject is who or what a belief or relationship is about.
	Subject string `json:"subject,omitempty"`

	// Content is the proposed text (episode description, belief content).
	Content string `json:"content,omitempty"`

	// Sentiment in [-1,1] for belief and relationship mutations.
	Sentiment float64 `json:"sentiment,omitempty"`

	// Confidence in [0,1] for belief and relationship mutations.
	Confidence float64 `json:"confidence,omitempty"`

	// Significance in [0,1] for episodic mutations.
	Significance float64 `json:"significance,omitempty"`

	// EpisodeType for episodic mutations (dialogue, observation, ...).
	EpisodeType string `json:"episode_type,omitempty"`

	// IntentType names the world effect for emit_world_intent mutations.
	IntentType string `json:"intent_type,omitempty"`

	// Payload carries intent parameters for the host.
	Payload map[string]any `json:"payload,omitempty"`
}

// ParsedOutput is the typed form of one model completion: the dialogue to
// speak plus any structured change proposals extracted from it.
type ParsedOutput struct {
	// Dialogue is the normalized speakable text.
	Dialogue string `json:"dialogue"`

	// Mutations are the structured change proposals, in output order.
	Mutations []ProposedMutation `json:"mutations,omitempty"`

	// Metadata carries parse diagnostics such as "parse_error".
	Metadata map[string]string `json:"metadata,omitempty"`
}
