package memory

import (
	"errors"
	"fmt"
	"time"
)

// Common errors returned by memory operations.
var (
	// ErrAuthorityViolation is returned when a mutation source's authority
	// level is below the authority level of the target collection.
	ErrAuthorityViolation = errors.New("memory: authority violation")

	// ErrImmutableTarget is returned when a write attempts to modify a
	// canonical fact after its creation.
	ErrImmutableTarget = errors.New("memory: immutable target")

	// ErrInvalidInput is returned when a write carries an empty identifier
	// or otherwise malformed entry data.
	ErrInvalidInput = errors.New("memory: invalid input")

	// ErrNotFound is returned when a requested entry does not exist.
	ErrNotFound = errors.New("memory: entry not found")
)

// Kind identifies one of the four authoritative memory collections.
// Kind is a closed set: every write site switches exhaustively over it,
// and the authority level of a kind is a pure function of the tag.
type Kind string

const (
	// KindCanonical is designer-authored, permanently immutable world truth.
	KindCanonical Kind = "canonical"

	// KindWorldState is mutable game state owned by the game system.
	KindWorldState Kind = "world_state"

	// KindEpisodic is a decaying record of a specific event or exchange.
	KindEpisodic Kind = "episodic"

	// KindBelief is a possibly-incorrect, confidence-weighted opinion.
	KindBelief Kind = "belief"
)

// IsValid returns true if the Kind is one of the defined constants.
func (k Kind) IsValid() bool {
	switch k {
	case KindCanonical, KindWorldState, KindEpisodic, KindBelief:
		return true
	default:
		return false
	}
}

// AuthorityLevel is the numeric rank determining which mutation sources
// may write which memory kind. Higher values outrank lower ones.
type AuthorityLevel int

const (
	// AuthorityBelief is the lowest target authority.
	AuthorityBelief AuthorityLevel = 25

	// AuthorityEpisodic covers append-only event records.
	AuthorityEpisodic AuthorityLevel = 50

	// AuthorityWorldState covers game-system-owned mutable state.
	AuthorityWorldState AuthorityLevel = 75

	// AuthorityCanonical is the highest target authority.
	AuthorityCanonical AuthorityLevel = 100
)

// AuthorityOf returns the authority level required to write entries of the
// given kind. Unknown kinds rank as canonical so that nothing can write them.
func AuthorityOf(k Kind) AuthorityLevel {
	switch k {
	case KindBelief:
		return AuthorityBelief
	case KindEpisodic:
		return AuthorityEpisodic
	case KindWorldState:
		return AuthorityWorldState
	case KindCanonical:
		return AuthorityCanonical
	default:
		return AuthorityCanonical
	}
}

// Source identifies the origin of a write request. Each source carries an
// authority level; a write succeeds only if the source's level is at least
// the authority level of the target kind.
type Source string

const (
	// SourceDesigner is content authored by the game's designers.
	SourceDesigner Source = "designer"

	// SourceGameSystem is state produced by deterministic game logic.
	SourceGameSystem Source = "game_system"

	// SourceValidatedOutput is model output that passed the validation gate.
	SourceValidatedOutput Source = "validated_output"

	// SourceLLMSuggestion is raw model output that has not been validated.
	SourceLLMSuggestion Source = "llm_suggestion"
)

// Level returns the authority level of the mutation source.
// Unknown sources rank at zero and can write nothing.
func (s Source) Level() AuthorityLevel {
	switch s {
	case SourceDesigner:
		return 100
	case SourceGameSystem:
		return 75
	case SourceValidatedOutput:
		return 50
	case SourceLLMSuggestion:
		return 25
	default:
		return 0
	}
}

// IsValid returns true if the Source is one of the defined constants.
func (s Source) IsValid() bool {
	switch s {
	case SourceDesigner, SourceGameSystem, SourceValidatedOutput, SourceLLMSuggestion:
		return true
	default:
		return false
	}
}

// CanWrite reports whether this source may write entries of the given kind.
func (s Source) CanWrite(k Kind) bool {
	return s.Level() >= AuthorityOf(k)
}

// EpisodeType categorizes an episodic memory entry.
type EpisodeType string

const (
	EpisodeDialogue    EpisodeType = "dialogue"
	EpisodeObservation EpisodeType = "observation"
	EpisodeThought     EpisodeType = "thought"
	EpisodeEvent       EpisodeType = "event"
	EpisodeLearnedInfo EpisodeType = "learned_info"
	EpisodeMajorEvent  EpisodeType = "major_event"
)

// IsValid returns true if the EpisodeType is one of the defined constants.
func (e EpisodeType) IsValid() bool {
	switch e {
	case EpisodeDialogue, EpisodeObservation, EpisodeThought,
		EpisodeEvent, EpisodeLearnedInfo, EpisodeMajorEvent:
		return true
	default:
		return false
	}
}

// Validate returns an error if the EpisodeType is not valid.
func (e EpisodeType) Validate() error {
	if !e.IsValid() {
		return fmt.Errorf("%w: unknown episode type %q", ErrInvalidInput, e)
	}
	return nil
}

// CanonicalFact is designer-authored world truth. Facts are immutable after
// creation: every modification attempt is rejected, including from
// SourceDesigner. Facts never decay and are never pruned.
type CanonicalFact struct {
	// ID is the stable identifier, unique within the fact collection.
	ID string `json:"id"`

	// Fact is the truth statement itself.
	Fact string `json:"fact"`

	// Domain is a category tag (e.g., "royalty", "geography").
	Domain string `json:"domain"`

	// CreatedAt is captured once at insertion and never recomputed.
	CreatedAt time.Time `json:"created_at"`

	// SequenceNumber is assigned from the store's monotonic counter.
	SequenceNumber uint64 `json:"sequence_number"`

	// LastAccessedAt is updated whenever the entry is read.
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// WorldStateEntry is a key-value pair of mutable game state. Entries are
// overwritten in place; each overwrite increments ModificationCount.
type WorldStateEntry struct {
	// Key is unique within the world-state collection.
	Key string `json:"key"`

	// Value is the current state text.
	Value string `json:"value"`

	// ModificationCount counts successful writes, starting at 1 on creation.
	ModificationCount int `json:"modification_count"`

	// ModifiedAt is the time of the most recent successful write.
	ModifiedAt time.Time `json:"modified_at"`

	CreatedAt      time.Time `json:"created_at"`
	SequenceNumber uint64    `json:"sequence_number"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// EpisodicMemoryEntry is an append-only, decaying record of a specific
// event or exchange. Strength starts at 1.0 and is reduced by decay;
// the entry is removed once Strength reaches zero.
type EpisodicMemoryEntry struct {
	// ID is the stable identifier; a UUID is assigned when empty.
	ID string `json:"id"`

	// Description is the remembered event text.
	Description string `json:"description"`

	// EpisodeType categorizes the memory.
	EpisodeType EpisodeType `json:"episode_type"`

	// Significance in [0,1] slows decay and raises retrieval priority.
	Significance float64 `json:"significance"`

	// Strength in [0,1] starts at 1.0 and decays over time.
	Strength float64 `json:"strength"`

	CreatedAt      time.Time `json:"created_at"`
	SequenceNumber uint64    `json:"sequence_number"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// BeliefMemoryEntry is a possibly-incorrect NPC opinion about a subject.
// Beliefs are upsertable by key and are automatically flagged contradicted
// (with confidence clamped down) when their content conflicts with a
// canonical fact.
type BeliefMemoryEntry struct {
	// Key is unique within the belief collection.
	Key string `json:"key"`

	// Subject is who or what the belief is about.
	Subject string `json:"subject"`

	// BeliefContent is the opinion text.
	BeliefContent string `json:"belief_content"`

	// Sentiment in [-1,1] expresses disposition toward the subject.
	Sentiment float64 `json:"sentiment"`

	// Confidence in [0,1] expresses how strongly the belief is held.
	Confidence float64 `json:"confidence"`

	// IsContradicted marks beliefs that conflict with canonical facts.
	IsContradicted bool `json:"is_contradicted"`

	// Evidence is optional supporting text.
	Evidence string `json:"evidence,omitempty"`

	CreatedAt      time.Time `json:"created_at"`
	SequenceNumber uint64    `json:"sequence_number"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
}

// WriteReason explains why a write was accepted or rejected.
type WriteReason string

const (
	// ReasonOK indicates the write succeeded.
	ReasonOK WriteReason = "ok"

	// ReasonAuthorityViolation indicates the source outranked by the target.
	ReasonAuthorityViolation WriteReason = "authority_violation"

	// ReasonImmutableTarget indicates a post-creation canonical fact write.
	ReasonImmutableTarget WriteReason = "immutable_target"

	// ReasonInvalidInput indicates malformed or empty entry data.
	ReasonInvalidInput WriteReason = "invalid_input"
)

// WriteResult reports the outcome of a store write operation.
type WriteResult struct {
	// OK is true if the write was applied.
	OK bool

	// Reason explains rejection; ReasonOK on success.
	Reason WriteReason

	// SequenceNumber is the number assigned to the entry on success.
	SequenceNumber uint64
}

// Err converts a rejected WriteResult into its corresponding error.
// Returns nil for successful writes.
func (r WriteResult) Err() error {
	if r.OK {
		return nil
	}
	switch r.Reason {
	case ReasonAuthorityViolation:
		return ErrAuthorityViolation
	case ReasonImmutableTarget:
		return ErrImmutableTarget
	case ReasonInvalidInput:
		return ErrInvalidInput
	default:
		return fmt.Errorf("memory: write rejected: %s", r.Reason)
	}
}

func accepted(seq uint64) WriteResult {
	return WriteResult{OK: true, Reason: ReasonOK, SequenceNumber: seq}
}

func rejected(reason WriteReason) WriteResult {
	return WriteResult{OK: false, Reason: reason}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
