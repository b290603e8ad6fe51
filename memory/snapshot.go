package memory

import (
	"fmt"
	"sort"
)

// SaveRecord is the logical save contract for one persona: every entry of
// every collection, each carrying its SequenceNumber and CreatedAt, plus
// the counter value at snapshot time. The on-disk or on-wire encoding of
// the record is the persistence layer's concern.
type SaveRecord struct {
	PersonaID          string                `json:"persona_id"`
	NextSequenceNumber uint64                `json:"next_sequence_number"`
	Facts              []CanonicalFact       `json:"facts"`
	WorldState         []WorldStateEntry     `json:"world_state"`
	Episodic           []EpisodicMemoryEntry `json:"episodic"`
	Beliefs            []BeliefMemoryEntry   `json:"beliefs"`
}

// Snapshot captures the full store state. Entries are emitted in sequence
// order so that two snapshots of the same state are byte-identical once
// encoded.
func (s *Store) Snapshot() *SaveRecord {
	rec := &SaveRecord{
		PersonaID:          s.personaID,
		NextSequenceNumber: s.nextSeq,
		Facts:              make([]CanonicalFact, 0, len(s.facts)),
		WorldState:         make([]WorldStateEntry, 0, len(s.world)),
		Episodic:           make([]EpisodicMemoryEntry, 0, len(s.episodic)),
		Beliefs:            make([]BeliefMemoryEntry, 0, len(s.beliefs)),
	}
	for _, entry := range s.facts {
		rec.Facts = append(rec.Facts, *entry)
	}
	for _, entry := range s.world {
		rec.WorldState = append(rec.WorldState, *entry)
	}
	for _, entry := range s.episodic {
		rec.Episodic = append(rec.Episodic, *entry)
	}
	for _, entry := range s.beliefs {
		rec.Beliefs = append(rec.Beliefs, *entry)
	}

	sort.Slice(rec.Facts, func(i, j int) bool { return rec.Facts[i].SequenceNumber < rec.Facts[j].SequenceNumber })
	sort.Slice(rec.WorldState, func(i, j int) bool { return rec.WorldState[i].SequenceNumber < rec.WorldState[j].SequenceNumber })
	sort.Slice(rec.Episodic, func(i, j int) bool { return rec.Episodic[i].SequenceNumber < rec.Episodic[j].SequenceNumber })
	sort.Slice(rec.Beliefs, func(i, j int) bool { return rec.Beliefs[i].SequenceNumber < rec.Beliefs[j].SequenceNumber })
	return rec
}

// RestoreStore rebuilds a store from a save record. The sequence counter is
// recalculated from the loaded entries immediately after the bulk load; the
// record's own NextSequenceNumber is not trusted, and enumeration order
// plays no part.
func RestoreStore(rec *SaveRecord, cfg Config) (*Store, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil save record", ErrInvalidInput)
	}
	if rec.PersonaID == "" {
		return nil, fmt.Errorf("%w: save record missing persona id", ErrInvalidInput)
	}

	s := NewStore(rec.PersonaID, cfg)
	for i := range rec.Facts {
		entry := rec.Facts[i]
		if entry.ID == "" {
			return nil, fmt.Errorf("%w: canonical fact with empty id", ErrInvalidInput)
		}
		s.facts[entry.ID] = &entry
	}
	for i := range rec.WorldState {
		entry := rec.WorldState[i]
		if entry.Key == "" {
			return nil, fmt.Errorf("%w: world state entry with empty key", ErrInvalidInput)
		}
		s.world[entry.Key] = &entry
	}
	for i := range rec.Episodic {
		entry := rec.Episodic[i]
		if entry.ID == "" {
			return nil, fmt.Errorf("%w: episodic entry with empty id", ErrInvalidInput)
		}
		s.episodic = append(s.episodic, &entry)
	}
	for i := range rec.Beliefs {
		entry := rec.Beliefs[i]
		if entry.Key == "" {
			return nil, fmt.Errorf("%w: belief entry with empty key", ErrInvalidInput)
		}
		s.beliefs[entry.Key] = &entry
	}

	s.RecalculateSequenceCounter()
	return s, nil
}

// RecalculateSequenceCounter restores the monotonic counter as
// max(existing SequenceNumber) + 1. Callers bulk-loading entries must invoke
// this immediately afterward so newly inserted entries never collide with
// restored ones.
func (s *Store) RecalculateSequenceCounter() {
	var max uint64
	for _, entry := range s.facts {
		if entry.SequenceNumber > max {
			max = entry.SequenceNumber
		}
	}
	for _, entry := range s.world {
		if entry.SequenceNumber > max {
			max = entry.SequenceNumber
		}
	}
	for _, entry := range s.episodic {
		if entry.SequenceNumber > max {
			max = entry.SequenceNumber
		}
	}
	for _, entry := range s.beliefs {
		if entry.SequenceNumber > max {
			max = entry.SequenceNumber
		}
	}
	s.nextSeq = max + 1
}
