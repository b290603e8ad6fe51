package memory

import "sort"

// ApplyEpisodicDecay reduces the Strength of every episodic entry by
// rate * (1 - Significance*0.5), so highly significant memories fade at
// half the base rate. Entries whose Strength reaches zero are removed.
//
// Decay is invoked explicitly by the caller's turn loop; the store never
// decays on its own and holds no wall-clock dependency.
func (s *Store) ApplyEpisodicDecay(rate float64) int {
	if rate <= 0 {
		return 0
	}

	kept := s.episodic[:0]
	removed := 0
	for _, entry := range s.episodic {
		entry.Strength -= rate * (1 - entry.Significance*0.5)
		if entry.Strength <= 0 {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	s.episodic = kept
	return removed
}

// PruneEpisodic removes the lowest (Strength, then Significance, then
// oldest) entries until the collection is back at the configured cap.
// Returns the number of entries removed.
func (s *Store) PruneEpisodic() int {
	cap := s.cfg.MaxEpisodicMemories
	if cap <= 0 || len(s.episodic) <= cap {
		return 0
	}

	victims := make([]*EpisodicMemoryEntry, len(s.episodic))
	copy(victims, s.episodic)
	sort.Slice(victims, func(i, j int) bool {
		a, b := victims[i], victims[j]
		if a.Strength != b.Strength {
			return a.Strength < b.Strength
		}
		if a.Significance != b.Significance {
			return a.Significance < b.Significance
		}
		return a.SequenceNumber < b.SequenceNumber
	})

	drop := make(map[uint64]struct{}, len(s.episodic)-cap)
	for _, entry := range victims[:len(s.episodic)-cap] {
		drop[entry.SequenceNumber] = struct{}{}
	}

	kept := s.episodic[:0]
	for _, entry := range s.episodic {
		if _, gone := drop[entry.SequenceNumber]; gone {
			continue
		}
		kept = append(kept, entry)
	}
	removed := len(s.episodic) - len(kept)
	s.episodic = kept
	return removed
}
