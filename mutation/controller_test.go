package mutation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lorekeep-ai/sdk/gate"
	"github.com/lorekeep-ai/sdk/memory"
	"github.com/lorekeep-ai/sdk/parser"
)

// passingResult runs the given mutations through a gate with the given
// canonical facts and fails the test unless the verdict passes.
func passingResult(t *testing.T, facts []memory.CanonicalFact, mutations ...parser.ProposedMutation) *gate.Result {
	t.Helper()
	g := gate.New(gate.Config{})
	res := g.Validate(context.Background(), &parser.ParsedOutput{
		Dialogue:  "very well",
		Mutations: mutations,
	}, nil, facts)
	if !res.Passed() {
		t.Fatalf("fixture verdict failed: %+v", res.Failures())
	}
	return res
}

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	return memory.NewStore("npc-ctl", memory.Config{})
}

// TestApplyRefusesUnvalidated verifies the controller only acts on a
// passing verdict.
func TestApplyRefusesUnvalidated(t *testing.T) {
	c := NewController()
	store := newTestStore(t)

	if _, err := c.Apply(context.Background(), nil, store); !errors.Is(err, ErrNotValidated) {
		t.Errorf("nil result: err = %v", err)
	}

	g := gate.New(gate.Config{ForbiddenKnowledge: []string{"secret"}})
	failing := g.Validate(context.Background(), &parser.ParsedOutput{Dialogue: "the secret"}, nil, nil)
	if failing.Passed() {
		t.Fatal("fixture unexpectedly passed")
	}
	if _, err := c.Apply(context.Background(), failing, store); !errors.Is(err, ErrNotValidated) {
		t.Errorf("failing result: err = %v", err)
	}
}

// TestApplyEpisodic verifies an approved append lands as validated output.
func TestApplyEpisodic(t *testing.T) {
	c := NewController()
	store := newTestStore(t)

	res := passingResult(t, nil, parser.ProposedMutation{
		Kind:         parser.MutationAppendEpisodic,
		Content:      "the player shared bread",
		Significance: 0.6,
	})

	batch, err := c.Apply(context.Background(), res, store)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if batch.Applied != 1 || batch.Failed != 0 {
		t.Errorf("batch = %+v", batch)
	}

	snap := store.Snapshot()
	if len(snap.Episodic) != 1 || snap.Episodic[0].Description != "the player shared bread" {
		t.Errorf("Episodic = %+v", snap.Episodic)
	}
	if snap.Episodic[0].Significance != 0.6 {
		t.Errorf("Significance = %g", snap.Episodic[0].Significance)
	}
}

// TestApplyBeliefKeying verifies the belief key derivation.
func TestApplyBeliefKeying(t *testing.T) {
	c := NewController()
	store := newTestStore(t)

	res := passingResult(t, nil,
		parser.ProposedMutation{Kind: parser.MutationTransformBelief, TargetID: "opinion-of-guard", Subject: "guard", Content: "lazy", Confidence: 0.5},
		parser.ProposedMutation{Kind: parser.MutationTransformBelief, Subject: "baker", Content: "kind", Confidence: 0.7},
		parser.ProposedMutation{Kind: parser.MutationTransformRelationship, Subject: "player", Content: "trusted ally", Confidence: 0.9},
	)

	batch, err := c.Apply(context.Background(), res, store)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if batch.Applied != 3 {
		t.Fatalf("batch = %+v", batch)
	}

	snap := store.Snapshot()
	keys := make(map[string]string, len(snap.Beliefs))
	for _, b := range snap.Beliefs {
		keys[b.Key] = b.BeliefContent
	}
	if keys["opinion-of-guard"] != "lazy" {
		t.Errorf("explicit key missing: %v", keys)
	}
	if keys["belief:baker"] != "kind" {
		t.Errorf("derived belief key missing: %v", keys)
	}
	if keys["relationship:player"] != "trusted ally" {
		t.Errorf("relationship key missing: %v", keys)
	}
}

// TestApplyCanonicalBackstop verifies the controller's own canonical check
// fires even when the verdict was produced without knowledge of the fact.
func TestApplyCanonicalBackstop(t *testing.T) {
	c := NewController()
	store := newTestStore(t)
	store.AddCanonicalFact("fact-king", "the king rules", "politics", memory.SourceDesigner)

	// The verdict is built against an empty fact list, so the gate approves
	// the mutation. The controller must still refuse it.
	res := passingResult(t, nil, parser.ProposedMutation{
		Kind: parser.MutationTransformBelief, TargetID: "fact-king", Content: "usurped", Confidence: 0.9,
	})

	batch, err := c.Apply(context.Background(), res, store)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if batch.Failed != 1 || batch.Applied != 0 {
		t.Fatalf("batch = %+v", batch)
	}
	if !strings.Contains(batch.Outcomes[0].Reason, "fact-king") {
		t.Errorf("Reason = %q", batch.Outcomes[0].Reason)
	}
	if len(store.Snapshot().Beliefs) != 0 {
		t.Error("belief written despite canonical target")
	}
}

// TestApplyEpisodicDuplicateTarget verifies a model repeating a target id
// cannot create colliding episodic entries.
func TestApplyEpisodicDuplicateTarget(t *testing.T) {
	c := NewController()
	store := newTestStore(t)

	res := passingResult(t, nil,
		parser.ProposedMutation{Kind: parser.MutationAppendEpisodic, TargetID: "mem-1", Content: "the real memory"},
		parser.ProposedMutation{Kind: parser.MutationAppendEpisodic, TargetID: "mem-1", Content: "an imposter"},
	)

	batch, err := c.Apply(context.Background(), res, store)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if batch.Applied != 1 || batch.Failed != 1 {
		t.Fatalf("batch = %+v", batch)
	}

	snap := store.Snapshot()
	if len(snap.Episodic) != 1 || snap.Episodic[0].Description != "the real memory" {
		t.Errorf("Episodic = %+v", snap.Episodic)
	}
}

// TestApplyContinuesPastFailures verifies one bad mutation does not block
// the rest of the batch.
func TestApplyContinuesPastFailures(t *testing.T) {
	c := NewController()
	store := newTestStore(t)

	res := passingResult(t, nil,
		parser.ProposedMutation{Kind: parser.MutationTransformRelationship, Content: "no subject here"},
		parser.ProposedMutation{Kind: parser.MutationAppendEpisodic, Content: "still recorded"},
	)

	batch, err := c.Apply(context.Background(), res, store)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if batch.Failed != 1 || batch.Applied != 1 {
		t.Fatalf("batch = %+v", batch)
	}
	if batch.Outcomes[0].OK || !batch.Outcomes[1].OK {
		t.Errorf("outcomes = %+v", batch.Outcomes)
	}
	if rate := batch.SuccessRate(); rate != 0.5 {
		t.Errorf("SuccessRate = %g", rate)
	}
}

// TestWorldIntentDispatch verifies sink delivery and intent identity.
func TestWorldIntentDispatch(t *testing.T) {
	var got []WorldIntent
	sink := IntentSinkFunc(func(_ context.Context, intent WorldIntent) {
		got = append(got, intent)
	})
	c := NewController(WithSink(sink))
	store := newTestStore(t)

	res := passingResult(t, nil, parser.ProposedMutation{
		Kind:       parser.MutationEmitWorldIntent,
		IntentType: "open_gate",
		Payload:    map[string]any{"gate": "north"},
	})

	batch, err := c.Apply(context.Background(), res, store)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("sink received %d intents", len(got))
	}
	if got[0].Type != "open_gate" || got[0].NPCID != "npc-ctl" || got[0].ID == "" {
		t.Errorf("intent = %+v", got[0])
	}
	if got[0].Payload["gate"] != "north" {
		t.Errorf("Payload = %v", got[0].Payload)
	}
	if len(batch.Intents) != 1 || batch.Intents[0].ID != got[0].ID {
		t.Errorf("batch intents = %+v", batch.Intents)
	}
}

// TestWorldIntentNoSink verifies intents are still recorded as applied when
// no sink is configured.
func TestWorldIntentNoSink(t *testing.T) {
	c := NewController()
	store := newTestStore(t)

	res := passingResult(t, nil, parser.ProposedMutation{
		Kind: parser.MutationEmitWorldIntent, IntentType: "ring_bell",
	})

	batch, err := c.Apply(context.Background(), res, store)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if batch.Applied != 1 || len(batch.Intents) != 1 {
		t.Errorf("batch = %+v", batch)
	}
}

// TestStats verifies the lifetime counters.
func TestStats(t *testing.T) {
	c := NewController()
	store := newTestStore(t)

	res := passingResult(t, nil,
		parser.ProposedMutation{Kind: parser.MutationAppendEpisodic, Content: "one"},
		parser.ProposedMutation{Kind: parser.MutationAppendEpisodic, Content: "two"},
		parser.ProposedMutation{Kind: parser.MutationTransformRelationship, Content: "missing subject"},
	)
	if _, err := c.Apply(context.Background(), res, store); err != nil {
		t.Fatal(err)
	}

	stats := c.Stats()
	if stats.Applied != 2 || stats.Failed != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.PerKind[parser.MutationAppendEpisodic] != 2 {
		t.Errorf("PerKind = %v", stats.PerKind)
	}
	want := 2.0 / 3.0
	if diff := stats.SuccessRate - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("SuccessRate = %g, want %g", stats.SuccessRate, want)
	}

	if fresh := NewController().Stats(); fresh.SuccessRate != 1 {
		t.Errorf("fresh SuccessRate = %g, want 1", fresh.SuccessRate)
	}
}

// TestSuccessRateEmptyBatch verifies the empty-batch convention.
func TestSuccessRateEmptyBatch(t *testing.T) {
	b := &BatchResult{}
	if b.SuccessRate() != 1 {
		t.Errorf("SuccessRate = %g, want 1", b.SuccessRate())
	}
}
