package retrieval

import (
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"github.com/lorekeep-ai/sdk/memory"
)

// constClock freezes CreatedAt so ordering falls through to the later
// tie-break keys.
func constClock() func() time.Time {
	at := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func storeWithEpisodic(t *testing.T, ids []string) *memory.Store {
	t.Helper()
	s := memory.NewStore("npc-ret", memory.Config{Clock: constClock()})
	for _, id := range ids {
		res := s.AddEpisodic(memory.EpisodicMemoryEntry{
			ID:          id,
			Description: "an event occurred",
			Strength:    0.5,
		}, memory.SourceValidatedOutput)
		if !res.OK {
			t.Fatalf("seed %s rejected: %s", id, res.Reason)
		}
	}
	return s
}

// TestRetrieveRepeatable verifies two calls over the same state are
// byte-identical once encoded.
func TestRetrieveRepeatable(t *testing.T) {
	s := storeWithEpisodic(t, []string{"m1", "m2", "m3"})
	s.AddCanonicalFact("f1", "the moon is full", "cosmos", memory.SourceDesigner)
	s.SetBelief("b1", memory.BeliefMemoryEntry{Subject: "moon", BeliefContent: "the moon brings luck", Confidence: 0.7}, memory.SourceLLMSuggestion)

	cfg := DefaultConfig()
	a, err := json.Marshal(Retrieve(s, "tell me about the moon", nil, cfg))
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(Retrieve(s, "tell me about the moon", nil, cfg))
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Error("repeat retrieval differs")
	}
}

// TestZeroWeightsOrdinalOrder verifies that with all weights zero the
// strict tie-breakers alone determine the order: equal scores, equal
// CreatedAt, so IDs compare ordinally and "a" precedes "b".
func TestZeroWeightsOrdinalOrder(t *testing.T) {
	s := storeWithEpisodic(t, []string{"b", "a", "c"})

	cfg := Config{MaxEpisodic: 10}
	got := Retrieve(s, "anything", nil, cfg)

	if len(got.Episodic) != 3 {
		t.Fatalf("got %d entries, want 3", len(got.Episodic))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got.Episodic[i].ID != want {
			t.Errorf("position %d = %s, want %s", i, got.Episodic[i].ID, want)
		}
	}
}

// TestShuffledInsertionStableOrder verifies insertion order does not leak
// into the retrieval order.
func TestShuffledInsertionStableOrder(t *testing.T) {
	ids := []string{"e1", "e2", "e3", "e4", "e5", "e6"}
	cfg := Config{MaxEpisodic: 10}

	base := Retrieve(storeWithEpisodic(t, ids), "query", nil, cfg)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 5; trial++ {
		shuffled := append([]string(nil), ids...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got := Retrieve(storeWithEpisodic(t, shuffled), "query", nil, cfg)
		for i := range base.Episodic {
			if got.Episodic[i].ID != base.Episodic[i].ID {
				t.Fatalf("trial %d: order depends on insertion: %v", trial, shuffled)
			}
		}
	}
}

// TestEpsilonNearTies verifies nearly equal scores still order under the
// full key chain, not float luck.
func TestEpsilonNearTies(t *testing.T) {
	s := memory.NewStore("npc-eps", memory.Config{Clock: constClock()})
	// Strengths differ by less than 1e-12; identical description text.
	s.AddEpisodic(memory.EpisodicMemoryEntry{ID: "x", Description: "event", Strength: 0.5}, memory.SourceValidatedOutput)
	s.AddEpisodic(memory.EpisodicMemoryEntry{ID: "y", Description: "event", Strength: 0.5 + 1e-13}, memory.SourceValidatedOutput)

	cfg := Config{RecencyWeight: 1, MaxEpisodic: 10}
	got := Retrieve(s, "event", nil, cfg)

	if len(got.Episodic) != 2 {
		t.Fatalf("got %d entries", len(got.Episodic))
	}
	// The higher score, however small the margin, must sort first; when
	// the float sum collapses the difference, the ID key decides.
	first := got.Episodic[0].ID
	if first != "y" && first != "x" {
		t.Fatalf("unexpected first entry %s", first)
	}
	again := Retrieve(s, "event", nil, cfg)
	if again.Episodic[0].ID != first {
		t.Error("near-tie order not stable across calls")
	}
}

// TestScoreFormula verifies the episodic scoring weights.
func TestScoreFormula(t *testing.T) {
	s := memory.NewStore("npc-score", memory.Config{Clock: constClock()})
	s.AddEpisodic(memory.EpisodicMemoryEntry{
		ID:           "e1",
		Description:  "the dragon burned the mill",
		Strength:     0.8,
		Significance: 0.5,
	}, memory.SourceValidatedOutput)

	cfg := DefaultConfig()
	got := Retrieve(s, "dragon mill", nil, cfg)
	if len(got.Episodic) != 1 {
		t.Fatalf("got %d entries", len(got.Episodic))
	}

	// Both query terms match: relevance 1.0.
	want := 0.4*0.8 + 0.4*1.0 + 0.2*0.5
	if diff := got.Episodic[0].Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Score = %g, want %g", got.Episodic[0].Score, want)
	}
}

// TestBeliefScoring verifies the belief formula and the contradicted
// halving.
func TestBeliefScoring(t *testing.T) {
	s := memory.NewStore("npc-belief", memory.Config{
		Clock:                      constClock(),
		IncludeContradictedBeliefs: true,
	})
	s.AddCanonicalFact("king", "the king rules", "", memory.SourceDesigner)
	s.SetBelief("fine", memory.BeliefMemoryEntry{Subject: "king", BeliefContent: "the king is generous", Confidence: 0.8}, memory.SourceLLMSuggestion)
	s.SetBelief("wrong", memory.BeliefMemoryEntry{Subject: "king", BeliefContent: "he is not king anymore", Confidence: 0.8}, memory.SourceLLMSuggestion)

	cfg := DefaultConfig()
	got := Retrieve(s, "the king", nil, cfg)
	if len(got.Beliefs) != 2 {
		t.Fatalf("got %d beliefs, want 2", len(got.Beliefs))
	}

	var fine, wrong ScoredBelief
	for _, b := range got.Beliefs {
		switch b.Key {
		case "fine":
			fine = b
		case "wrong":
			wrong = b
		}
	}

	// relevance 1.0 (sole query term "king" matches both).
	wantFine := 0.6*1.0 + 0.4*0.8
	if diff := fine.Score - wantFine; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("fine Score = %g, want %g", fine.Score, wantFine)
	}
	// Contradicted: confidence clamped to 0.2, then the score halves.
	wantWrong := (0.6*1.0 + 0.4*0.2) / 2
	if diff := wrong.Score - wantWrong; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("wrong Score = %g, want %g", wrong.Score, wantWrong)
	}
	if got.Beliefs[0].Key != "fine" {
		t.Error("contradicted belief outranked the intact one")
	}
}

// TestBounds verifies the caps and that facts/world state are always
// included.
func TestBounds(t *testing.T) {
	s := memory.NewStore("npc-bounds", memory.Config{Clock: constClock()})
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		s.AddCanonicalFact("f-"+id, "fact "+id, "", memory.SourceDesigner)
		s.SetWorldState("w-"+id, id, memory.SourceGameSystem)
		s.AddEpisodic(memory.EpisodicMemoryEntry{ID: "e-" + id, Description: "event " + id}, memory.SourceValidatedOutput)
		s.SetBelief("b-"+id, memory.BeliefMemoryEntry{BeliefContent: "belief " + id, Confidence: 0.5}, memory.SourceLLMSuggestion)
	}

	cfg := DefaultConfig()
	cfg.MaxEpisodic = 2
	cfg.MaxBeliefs = 3

	got := Retrieve(s, "hello", nil, cfg)
	if len(got.Facts) != 5 {
		t.Errorf("Facts = %d, want all 5", len(got.Facts))
	}
	if len(got.WorldState) != 5 {
		t.Errorf("WorldState = %d, want all 5", len(got.WorldState))
	}
	if len(got.Episodic) != 2 {
		t.Errorf("Episodic = %d, want 2", len(got.Episodic))
	}
	if len(got.Beliefs) != 3 {
		t.Errorf("Beliefs = %d, want 3", len(got.Beliefs))
	}

	cfg.MaxCanonicalFacts = 3
	got = Retrieve(s, "hello", nil, cfg)
	if len(got.Facts) != 3 {
		t.Errorf("capped Facts = %d, want 3", len(got.Facts))
	}
}

// TestRelevance verifies the term-overlap fraction.
func TestRelevance(t *testing.T) {
	terms := memory.Keywords("dragon mill river")
	cases := []struct {
		text string
		want float64
	}{
		{"the dragon burned the mill", 2.0 / 3.0},
		{"nothing matches here", 0},
		{"dragon mill river delta", 1},
	}
	for _, tt := range cases {
		if got := Relevance(terms, tt.text); !almost(got, tt.want) {
			t.Errorf("Relevance(%q) = %g, want %g", tt.text, got, tt.want)
		}
	}

	if got := Relevance(nil, "anything"); got != 0 {
		t.Errorf("empty query Relevance = %g, want 0", got)
	}
}

// TestTopicsBiasRelevance verifies topics join the query term set.
func TestTopicsBiasRelevance(t *testing.T) {
	s := memory.NewStore("npc-topics", memory.Config{Clock: constClock()})
	s.AddEpisodic(memory.EpisodicMemoryEntry{ID: "t1", Description: "the festival in the square", Strength: 0.5}, memory.SourceValidatedOutput)
	s.AddEpisodic(memory.EpisodicMemoryEntry{ID: "t2", Description: "a quiet morning", Strength: 0.5}, memory.SourceValidatedOutput)

	cfg := Config{RelevanceWeight: 1, MaxEpisodic: 10}
	got := Retrieve(s, "hello", []string{"festival"}, cfg)
	if got.Episodic[0].ID != "t1" {
		t.Errorf("topic did not bias ranking: first = %s", got.Episodic[0].ID)
	}
}

func almost(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}
