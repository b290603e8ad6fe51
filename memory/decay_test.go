package memory

import "testing"

// TestApplyEpisodicDecay verifies significance halves the effective rate
// and depleted entries are removed.
func TestApplyEpisodicDecay(t *testing.T) {
	s := NewStore("npc-decay", Config{Clock: fixedClock()})

	s.AddEpisodic(EpisodicMemoryEntry{ID: "plain", Description: "small talk", Strength: 0.5}, SourceValidatedOutput)
	s.AddEpisodic(EpisodicMemoryEntry{ID: "vivid", Description: "dragon attack", Strength: 0.5, Significance: 1.0}, SourceValidatedOutput)
	s.AddEpisodic(EpisodicMemoryEntry{ID: "faint", Description: "a passing cart", Strength: 0.05}, SourceValidatedOutput)

	removed := s.ApplyEpisodicDecay(0.1)
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}

	find := func(id string) (EpisodicMemoryEntry, bool) {
		for _, e := range s.ActiveEpisodic() {
			if e.ID == id {
				return e, true
			}
		}
		return EpisodicMemoryEntry{}, false
	}

	plain, ok := find("plain")
	if !ok {
		t.Fatal("plain entry missing")
	}
	if got, want := plain.Strength, 0.4; !almostEqual(got, want) {
		t.Errorf("plain Strength = %g, want %g", got, want)
	}

	vivid, ok := find("vivid")
	if !ok {
		t.Fatal("vivid entry missing")
	}
	// Full significance halves the rate: 0.5 - 0.1*(1-0.5) = 0.45.
	if got, want := vivid.Strength, 0.45; !almostEqual(got, want) {
		t.Errorf("vivid Strength = %g, want %g", got, want)
	}

	if _, ok := find("faint"); ok {
		t.Error("depleted entry still present")
	}
}

// TestDecayZeroRate verifies a non-positive rate is a no-op.
func TestDecayZeroRate(t *testing.T) {
	s := NewStore("npc-decay", Config{Clock: fixedClock()})
	s.AddEpisodic(EpisodicMemoryEntry{Description: "event", Strength: 0.3}, SourceValidatedOutput)

	if removed := s.ApplyEpisodicDecay(0); removed != 0 {
		t.Errorf("zero rate removed %d entries", removed)
	}
	if removed := s.ApplyEpisodicDecay(-0.5); removed != 0 {
		t.Errorf("negative rate removed %d entries", removed)
	}
	if e := s.ActiveEpisodic()[0]; e.Strength != 0.3 {
		t.Errorf("Strength changed to %g", e.Strength)
	}
}

// TestPruneEpisodicOrder verifies pruning drops by Strength, then
// Significance, then age, and survivors keep insertion order.
func TestPruneEpisodicOrder(t *testing.T) {
	s := NewStore("npc-prune", Config{MaxEpisodicMemories: 2, Clock: fixedClock()})

	// Same strength, differing significance: the less significant goes.
	s.AddEpisodic(EpisodicMemoryEntry{ID: "a", Description: "x", Strength: 0.5, Significance: 0.1}, SourceValidatedOutput)
	s.AddEpisodic(EpisodicMemoryEntry{ID: "b", Description: "x", Strength: 0.5, Significance: 0.9}, SourceValidatedOutput)
	s.AddEpisodic(EpisodicMemoryEntry{ID: "c", Description: "x", Strength: 0.8}, SourceValidatedOutput)

	entries := s.ActiveEpisodic()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].ID != "b" || entries[1].ID != "c" {
		t.Errorf("survivors = %s,%s, want b,c in insertion order", entries[0].ID, entries[1].ID)
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
