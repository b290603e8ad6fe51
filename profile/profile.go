// Package profile loads persona configuration from YAML or JSON files. A
// profile is everything a host needs to stand up one persona: identity,
// designer-seeded memories, behavioral constraints, knowledge boundaries,
// and tuning knobs for retrieval, decay, and retries.
package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/lorekeep-ai/sdk/constraint"
	"github.com/lorekeep-ai/sdk/retrieval"
)

// FactSeed is a designer-authored canonical fact.
type FactSeed struct {
	ID     string `json:"id" yaml:"id"`
	Fact   string `json:"fact" yaml:"fact"`
	Domain string `json:"domain,omitempty" yaml:"domain,omitempty"`
}

// WorldStateSeed is an initial world-state entry.
type WorldStateSeed struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// FallbackSeeds configures the canned-response library.
type FallbackSeeds struct {
	// Contextual maps a trigger reason (e.g. "canonical_contradiction")
	// to its templates.
	Contextual map[string][]string `json:"contextual,omitempty" yaml:"contextual,omitempty"`

	// Generic templates used when no contextual template matches.
	Generic []string `json:"generic,omitempty" yaml:"generic,omitempty"`

	// Emergency is the response of last resort. Empty uses the built-in.
	Emergency string `json:"emergency,omitempty" yaml:"emergency,omitempty"`
}

// Profile is a complete persona definition.
type Profile struct {
	// PersonaID uniquely identifies the persona.
	PersonaID string `json:"persona_id" yaml:"persona_id"`

	// Name is the display name, informational only.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Facts are the designer-seeded canonical facts.
	Facts []FactSeed `json:"facts,omitempty" yaml:"facts,omitempty"`

	// WorldState seeds the mutable environment entries.
	WorldState []WorldStateSeed `json:"world_state,omitempty" yaml:"world_state,omitempty"`

	// Constraints active on every interaction.
	Constraints []constraint.Constraint `json:"constraints,omitempty" yaml:"constraints,omitempty"`

	// ForbiddenKnowledge lists terms the persona must never reveal.
	ForbiddenKnowledge []string `json:"forbidden_knowledge,omitempty" yaml:"forbidden_knowledge,omitempty"`

	// ContradictionKeywords flag belief/fact conflicts in the gate and
	// the keyword contradiction detector.
	ContradictionKeywords []string `json:"contradiction_keywords,omitempty" yaml:"contradiction_keywords,omitempty"`

	// Retrieval holds scoring weights and caps. Zero value means
	// retrieval.DefaultConfig.
	Retrieval *retrieval.Config `json:"retrieval,omitempty" yaml:"retrieval,omitempty"`

	// DecayRate is the per-tick episodic strength decay. Zero disables
	// host-driven decay.
	DecayRate float64 `json:"decay_rate,omitempty" yaml:"decay_rate,omitempty"`

	// MaxEpisodicMemories caps the episodic collection. Zero uses the
	// memory package default.
	MaxEpisodicMemories int `json:"max_episodic_memories,omitempty" yaml:"max_episodic_memories,omitempty"`

	// MaxAttempts bounds generation attempts per turn. Zero uses the
	// orchestrator default.
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`

	// Fallbacks seeds the canned-response library.
	Fallbacks FallbackSeeds `json:"fallbacks,omitempty" yaml:"fallbacks,omitempty"`
}

// Load reads a persona profile from a file. The format is detected by
// extension (.json, .yaml, .yml) and the result is validated.
func Load(path string) (*Profile, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("profile file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file: %w", err)
	}

	ext := filepath.Ext(path)
	var p Profile

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse JSON profile: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("failed to parse YAML profile: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported profile format: %s (supported: .json, .yaml, .yml)", ext)
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile validation failed: %w", err)
	}

	return &p, nil
}

// Validate checks the profile for structural correctness: required ids,
// unique fact ids and world-state keys, valid constraints, and ranges.
func (p *Profile) Validate() error {
	if p.PersonaID == "" {
		return fmt.Errorf("profile is missing required field 'persona_id'")
	}

	seenFacts := make(map[string]bool, len(p.Facts))
	for i, f := range p.Facts {
		if f.ID == "" {
			return fmt.Errorf("fact at index %d is missing required field 'id'", i)
		}
		if f.Fact == "" {
			return fmt.Errorf("fact %s is missing required field 'fact'", f.ID)
		}
		if seenFacts[f.ID] {
			return fmt.Errorf("duplicate fact ID found: %s", f.ID)
		}
		seenFacts[f.ID] = true
	}

	seenKeys := make(map[string]bool, len(p.WorldState))
	for i, w := range p.WorldState {
		if w.Key == "" {
			return fmt.Errorf("world state entry at index %d is missing required field 'key'", i)
		}
		if seenKeys[w.Key] {
			return fmt.Errorf("duplicate world state key found: %s", w.Key)
		}
		seenKeys[w.Key] = true
	}

	seenConstraints := make(map[string]bool, len(p.Constraints))
	for _, c := range p.Constraints {
		if err := c.Validate(); err != nil {
			return err
		}
		if seenConstraints[c.ID] {
			return fmt.Errorf("duplicate constraint ID found: %s", c.ID)
		}
		seenConstraints[c.ID] = true
	}

	if p.DecayRate < 0 || p.DecayRate > 1 {
		return fmt.Errorf("decay_rate must be in [0, 1], got %g", p.DecayRate)
	}
	if p.MaxEpisodicMemories < 0 {
		return fmt.Errorf("max_episodic_memories cannot be negative")
	}
	if p.MaxAttempts < 0 {
		return fmt.Errorf("max_attempts cannot be negative")
	}

	return nil
}

// ConstraintSet builds the constraint set the profile declares.
func (p *Profile) ConstraintSet() *constraint.Set {
	return constraint.NewSet(p.Constraints...)
}

// RetrievalConfig returns the profile's retrieval tuning, falling back to
// the package defaults when the profile leaves it unset.
func (p *Profile) RetrievalConfig() retrieval.Config {
	if p.Retrieval == nil {
		return retrieval.DefaultConfig()
	}
	return *p.Retrieval
}
