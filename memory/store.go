package memory

import (
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Config controls store behavior. The zero value is usable; unset fields
// fall back to defaults.
type Config struct {
	// MaxEpisodicMemories caps the episodic collection. When an insertion
	// pushes the collection over the cap, the lowest (Strength, then
	// Significance) entries are removed until the cap holds.
	// Defaults to 100.
	MaxEpisodicMemories int

	// ActiveStrengthFloor is the minimum Strength for an episodic entry to
	// be returned by ActiveEpisodic. Defaults to 0.1.
	ActiveStrengthFloor float64

	// IncludeContradictedBeliefs makes ActiveBeliefs return beliefs whose
	// IsContradicted flag is set. Off by default.
	IncludeContradictedBeliefs bool

	// Detector decides whether a belief conflicts with a canonical fact.
	// Defaults to the keyword/negation detector.
	Detector ContradictionDetector

	// Clock supplies timestamps. Defaults to time.Now. Tests inject a
	// fixed clock to keep CreatedAt values reproducible.
	Clock func() time.Time

	// Logger receives structured records of rejected writes.
	// Defaults to slog.Default.
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxEpisodicMemories <= 0 {
		c.MaxEpisodicMemories = 100
	}
	if c.ActiveStrengthFloor == 0 {
		c.ActiveStrengthFloor = 0.1
	}
	if c.Detector == nil {
		c.Detector = NewKeywordDetector(nil)
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Store is the authoritative memory for a single agent persona. It owns the
// four memory collections and the monotonic sequence counter, and enforces
// the authority hierarchy on every write.
//
// A Store is not safe for concurrent mutation. Each persona owns exactly one
// Store, and interactions for the same persona must be serialized by the
// caller; interactions across different personas are independent. The store
// holds no internal clock or timer: decay and pruning run only when the
// caller invokes them.
type Store struct {
	personaID string
	cfg       Config

	facts    map[string]*CanonicalFact
	world    map[string]*WorldStateEntry
	episodic []*EpisodicMemoryEntry
	beliefs  map[string]*BeliefMemoryEntry

	// nextSeq is the next sequence number to assign. It only moves forward
	// for the lifetime of the store, including across save/restore.
	nextSeq uint64
}

// NewStore creates an empty store for the given persona.
func NewStore(personaID string, cfg Config) *Store {
	return &Store{
		personaID: personaID,
		cfg:       cfg.withDefaults(),
		facts:     make(map[string]*CanonicalFact),
		world:     make(map[string]*WorldStateEntry),
		beliefs:   make(map[string]*BeliefMemoryEntry),
		nextSeq:   1,
	}
}

// PersonaID returns the persona this store belongs to.
func (s *Store) PersonaID() string {
	return s.personaID
}

// NextSequenceNumber returns the sequence number the next successful write
// will receive.
func (s *Store) NextSequenceNumber() uint64 {
	return s.nextSeq
}

func (s *Store) assignSeq() uint64 {
	seq := s.nextSeq
	s.nextSeq++
	return seq
}

func (s *Store) reject(op string, reason WriteReason, source Source, attrs ...any) WriteResult {
	all := append([]any{
		"persona", s.personaID,
		"reason", string(reason),
		"source", string(source),
	}, attrs...)
	s.cfg.Logger.Warn("memory write rejected", append([]any{slog.String("op", op)}, all...)...)
	return rejected(reason)
}

// AddCanonicalFact inserts a new canonical fact. Only SourceDesigner may
// create facts, and an existing fact rejects every modification attempt
// regardless of source.
func (s *Store) AddCanonicalFact(id, fact, domain string, source Source) WriteResult {
	if id == "" || fact == "" {
		return s.reject("AddCanonicalFact", ReasonInvalidInput, source, "id", id)
	}
	if _, exists := s.facts[id]; exists {
		return s.reject("AddCanonicalFact", ReasonImmutableTarget, source, "id", id)
	}
	if !source.CanWrite(KindCanonical) {
		return s.reject("AddCanonicalFact", ReasonAuthorityViolation, source, "id", id)
	}

	now := s.cfg.Clock()
	entry := &CanonicalFact{
		ID:             id,
		Fact:           fact,
		Domain:         domain,
		CreatedAt:      now,
		SequenceNumber: s.assignSeq(),
		LastAccessedAt: now,
	}
	s.facts[id] = entry

	// A new fact may invalidate standing beliefs.
	s.reflagBeliefs(entry)

	return accepted(entry.SequenceNumber)
}

// SetWorldState creates or overwrites a world-state entry. Writable by
// SourceGameSystem or SourceDesigner. ModificationCount is 1 after the
// creating write and increments on each overwrite.
func (s *Store) SetWorldState(key, value string, source Source) WriteResult {
	if key == "" {
		return s.reject("SetWorldState", ReasonInvalidInput, source)
	}
	if !source.CanWrite(KindWorldState) {
		return s.reject("SetWorldState", ReasonAuthorityViolation, source, "key", key)
	}

	now := s.cfg.Clock()
	if entry, exists := s.world[key]; exists {
		entry.Value = value
		entry.ModificationCount++
		entry.ModifiedAt = now
		return accepted(entry.SequenceNumber)
	}

	entry := &WorldStateEntry{
		Key:               key,
		Value:             value,
		ModificationCount: 1,
		ModifiedAt:        now,
		CreatedAt:         now,
		SequenceNumber:    s.assignSeq(),
		LastAccessedAt:    now,
	}
	s.world[key] = entry
	return accepted(entry.SequenceNumber)
}

// AddEpisodic appends an episodic memory. The entry receives a UUID when its
// ID is empty; a caller-supplied ID that collides with an existing entry is
// rejected as invalid input. Strength defaults to 1.0 and Significance is
// clamped to [0,1]. Insertion that pushes the collection over the configured
// cap prunes the weakest entries back to the cap.
func (s *Store) AddEpisodic(e EpisodicMemoryEntry, source Source) WriteResult {
	if e.Description == "" {
		return s.reject("AddEpisodic", ReasonInvalidInput, source)
	}
	if e.EpisodeType == "" {
		e.EpisodeType = EpisodeEvent
	}
	if !e.EpisodeType.IsValid() {
		return s.reject("AddEpisodic", ReasonInvalidInput, source, "episode_type", string(e.EpisodeType))
	}
	if !source.CanWrite(KindEpisodic) {
		return s.reject("AddEpisodic", ReasonAuthorityViolation, source)
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	for _, existing := range s.episodic {
		if existing.ID == e.ID {
			return s.reject("AddEpisodic", ReasonInvalidInput, source, "id", e.ID)
		}
	}
	if e.Strength == 0 {
		e.Strength = 1.0
	}
	e.Strength = clamp(e.Strength, 0, 1)
	e.Significance = clamp(e.Significance, 0, 1)

	now := s.cfg.Clock()
	e.CreatedAt = now
	e.LastAccessedAt = now
	e.SequenceNumber = s.assignSeq()

	entry := e
	s.episodic = append(s.episodic, &entry)
	s.PruneEpisodic()

	return accepted(entry.SequenceNumber)
}

// SetBelief upserts a belief by key. Writable by every source, including
// SourceLLMSuggestion. The belief is checked against all canonical facts;
// on conflict it is flagged contradicted and its confidence clamped down.
//
// An upsert of an existing key keeps the original CreatedAt and
// SequenceNumber: the identity of the belief does not change, only its
// content.
func (s *Store) SetBelief(key string, b BeliefMemoryEntry, source Source) WriteResult {
	if key == "" || b.BeliefContent == "" {
		return s.reject("SetBelief", ReasonInvalidInput, source, "key", key)
	}
	if !source.CanWrite(KindBelief) {
		return s.reject("SetBelief", ReasonAuthorityViolation, source, "key", key)
	}

	b.Key = key
	b.Sentiment = clamp(b.Sentiment, -1, 1)
	b.Confidence = clamp(b.Confidence, 0, 1)

	now := s.cfg.Clock()
	if existing, exists := s.beliefs[key]; exists {
		b.CreatedAt = existing.CreatedAt
		b.SequenceNumber = existing.SequenceNumber
		b.LastAccessedAt = now
	} else {
		b.CreatedAt = now
		b.LastAccessedAt = now
		b.SequenceNumber = s.assignSeq()
	}

	entry := b
	s.flagIfContradicted(&entry)
	s.beliefs[key] = &entry

	return accepted(entry.SequenceNumber)
}

// contradictedConfidenceCeiling caps the confidence of a belief once it is
// known to conflict with canonical truth.
const contradictedConfidenceCeiling = 0.2

func (s *Store) flagIfContradicted(b *BeliefMemoryEntry) {
	for _, f := range s.facts {
		if s.cfg.Detector.Contradicts(*b, *f) {
			b.IsContradicted = true
			if b.Confidence > contradictedConfidenceCeiling {
				b.Confidence = contradictedConfidenceCeiling
			}
			return
		}
	}
}

// reflagBeliefs re-checks every standing belief against a newly added fact.
func (s *Store) reflagBeliefs(f *CanonicalFact) {
	for _, b := range s.beliefs {
		if b.IsContradicted {
			continue
		}
		if s.cfg.Detector.Contradicts(*b, *f) {
			b.IsContradicted = true
			if b.Confidence > contradictedConfidenceCeiling {
				b.Confidence = contradictedConfidenceCeiling
			}
		}
	}
}

// GetCanonicalFact returns a copy of the fact with the given id.
func (s *Store) GetCanonicalFact(id string) (CanonicalFact, bool) {
	entry, ok := s.facts[id]
	if !ok {
		return CanonicalFact{}, false
	}
	entry.LastAccessedAt = s.cfg.Clock()
	return *entry, true
}

// HasCanonicalFact reports whether a fact with the given id exists.
// Unlike GetCanonicalFact it does not touch LastAccessedAt.
func (s *Store) HasCanonicalFact(id string) bool {
	_, ok := s.facts[id]
	return ok
}

// CanonicalFacts returns copies of all facts in insertion (sequence) order.
func (s *Store) CanonicalFacts() []CanonicalFact {
	now := s.cfg.Clock()
	out := make([]CanonicalFact, 0, len(s.facts))
	for _, entry := range s.facts {
		entry.LastAccessedAt = now
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SequenceNumber < out[j].SequenceNumber
	})
	return out
}

// GetWorldState returns a copy of the world-state entry for key.
func (s *Store) GetWorldState(key string) (WorldStateEntry, bool) {
	entry, ok := s.world[key]
	if !ok {
		return WorldStateEntry{}, false
	}
	entry.LastAccessedAt = s.cfg.Clock()
	return *entry, true
}

// WorldState returns copies of all world-state entries in insertion order.
func (s *Store) WorldState() []WorldStateEntry {
	now := s.cfg.Clock()
	out := make([]WorldStateEntry, 0, len(s.world))
	for _, entry := range s.world {
		entry.LastAccessedAt = now
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SequenceNumber < out[j].SequenceNumber
	})
	return out
}

// ActiveEpisodic returns copies of episodic entries whose Strength exceeds
// the configured floor, in insertion order.
func (s *Store) ActiveEpisodic() []EpisodicMemoryEntry {
	now := s.cfg.Clock()
	out := make([]EpisodicMemoryEntry, 0, len(s.episodic))
	for _, entry := range s.episodic {
		if entry.Strength > s.cfg.ActiveStrengthFloor {
			entry.LastAccessedAt = now
			out = append(out, *entry)
		}
	}
	return out
}

// GetBelief returns a copy of the belief with the given key.
func (s *Store) GetBelief(key string) (BeliefMemoryEntry, bool) {
	entry, ok := s.beliefs[key]
	if !ok {
		return BeliefMemoryEntry{}, false
	}
	entry.LastAccessedAt = s.cfg.Clock()
	return *entry, true
}

// ActiveBeliefs returns copies of beliefs, excluding contradicted ones
// unless IncludeContradictedBeliefs is configured, in insertion order.
func (s *Store) ActiveBeliefs() []BeliefMemoryEntry {
	now := s.cfg.Clock()
	out := make([]BeliefMemoryEntry, 0, len(s.beliefs))
	for _, entry := range s.beliefs {
		if entry.IsContradicted && !s.cfg.IncludeContradictedBeliefs {
			continue
		}
		entry.LastAccessedAt = now
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SequenceNumber < out[j].SequenceNumber
	})
	return out
}

// Counts returns the size of each collection.
func (s *Store) Counts() (facts, world, episodic, beliefs int) {
	return len(s.facts), len(s.world), len(s.episodic), len(s.beliefs)
}
