package retrieval

import (
	"sort"
	"strings"

	"github.com/lorekeep-ai/sdk/memory"
)

// Config holds the scoring weights and caps for context retrieval.
// The zero value is unusable; start from DefaultConfig.
type Config struct {
	// Episodic score = RecencyWeight*Strength + RelevanceWeight*relevance
	// + SignificanceWeight*Significance.
	RecencyWeight      float64 `yaml:"recency_weight" json:"recency_weight"`
	RelevanceWeight    float64 `yaml:"relevance_weight" json:"relevance_weight"`
	SignificanceWeight float64 `yaml:"significance_weight" json:"significance_weight"`

	// Belief score = BeliefRelevanceWeight*relevance +
	// BeliefConfidenceWeight*confidence, halved when contradicted.
	BeliefRelevanceWeight  float64 `yaml:"belief_relevance_weight" json:"belief_relevance_weight"`
	BeliefConfidenceWeight float64 `yaml:"belief_confidence_weight" json:"belief_confidence_weight"`

	// MaxEpisodic and MaxBeliefs bound the scored subsets.
	MaxEpisodic int `yaml:"max_episodic" json:"max_episodic"`
	MaxBeliefs  int `yaml:"max_beliefs" json:"max_beliefs"`

	// MaxCanonicalFacts and MaxWorldState cap the always-included
	// collections only when set above zero.
	MaxCanonicalFacts int `yaml:"max_canonical_facts" json:"max_canonical_facts"`
	MaxWorldState     int `yaml:"max_world_state" json:"max_world_state"`
}

// DefaultConfig returns the standard weights and caps.
func DefaultConfig() Config {
	return Config{
		RecencyWeight:          0.4,
		RelevanceWeight:        0.4,
		SignificanceWeight:     0.2,
		BeliefRelevanceWeight:  0.6,
		BeliefConfidenceWeight: 0.4,
		MaxEpisodic:            10,
		MaxBeliefs:             5,
	}
}

// ScoredEpisodic pairs an episodic entry with its retrieval score.
type ScoredEpisodic struct {
	memory.EpisodicMemoryEntry

	// Score is the combined retrieval score for this entry.
	Score float64 `json:"score"`
}

// ScoredBelief pairs a belief with its retrieval score.
type ScoredBelief struct {
	memory.BeliefMemoryEntry

	// Score is the combined retrieval score for this entry.
	Score float64 `json:"score"`
}

// Context is the bounded, deterministically ordered subset of a store's
// contents relevant to one interaction.
type Context struct {
	Facts      []memory.CanonicalFact
	WorldState []memory.WorldStateEntry
	Episodic   []ScoredEpisodic
	Beliefs    []ScoredBelief
}

// Retrieve scores and selects memories relevant to the player input and
// optional topic list. Canonical facts and world state are always included
// (capped only when the config says so); episodic memories and beliefs are
// scored, ordered under a strict total order, and bounded.
//
// Retrieval is stateless and reads all time-dependent inputs (Strength,
// CreatedAt) from the snapshot it is handed, never from a live clock, so
// two calls over the same memory state produce byte-identical output
// regardless of insertion order, floating-point near-ties, or host locale.
func Retrieve(store *memory.Store, playerInput string, topics []string, cfg Config) *Context {
	query := queryTerms(playerInput, topics)

	ctx := &Context{
		Facts:      store.CanonicalFacts(),
		WorldState: store.WorldState(),
	}
	if cfg.MaxCanonicalFacts > 0 && len(ctx.Facts) > cfg.MaxCanonicalFacts {
		ctx.Facts = ctx.Facts[:cfg.MaxCanonicalFacts]
	}
	if cfg.MaxWorldState > 0 && len(ctx.WorldState) > cfg.MaxWorldState {
		ctx.WorldState = ctx.WorldState[:cfg.MaxWorldState]
	}

	for _, e := range store.ActiveEpisodic() {
		rel := Relevance(query, e.Description)
		score := cfg.RecencyWeight*e.Strength +
			cfg.RelevanceWeight*rel +
			cfg.SignificanceWeight*e.Significance
		ctx.Episodic = append(ctx.Episodic, ScoredEpisodic{EpisodicMemoryEntry: e, Score: score})
	}
	sortEpisodic(ctx.Episodic)
	if cfg.MaxEpisodic > 0 && len(ctx.Episodic) > cfg.MaxEpisodic {
		ctx.Episodic = ctx.Episodic[:cfg.MaxEpisodic]
	}

	for _, b := range store.ActiveBeliefs() {
		rel := Relevance(query, b.Subject+" "+b.BeliefContent)
		score := cfg.BeliefRelevanceWeight*rel + cfg.BeliefConfidenceWeight*b.Confidence
		if b.IsContradicted {
			score /= 2
		}
		ctx.Beliefs = append(ctx.Beliefs, ScoredBelief{BeliefMemoryEntry: b, Score: score})
	}
	sortBeliefs(ctx.Beliefs)
	if cfg.MaxBeliefs > 0 && len(ctx.Beliefs) > cfg.MaxBeliefs {
		ctx.Beliefs = ctx.Beliefs[:cfg.MaxBeliefs]
	}

	return ctx
}

// sortEpisodic applies the strict total order for episodic selection:
// score descending, CreatedAt descending, ID under ordinal byte comparison,
// and finally SequenceNumber ascending. The final key is unique per store,
// so the order admits no ties at all.
func sortEpisodic(entries []ScoredEpisodic) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		if c := strings.Compare(a.ID, b.ID); c != 0 {
			return c < 0
		}
		return a.SequenceNumber < b.SequenceNumber
	})
}

// sortBeliefs applies the strict total order for belief selection:
// score descending, Confidence descending, Key under ordinal byte
// comparison, and finally SequenceNumber ascending.
func sortBeliefs(entries []ScoredBelief) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if c := strings.Compare(a.Key, b.Key); c != 0 {
			return c < 0
		}
		return a.SequenceNumber < b.SequenceNumber
	})
}

// queryTerms builds the distinct keyword set from the player input and
// topic list.
func queryTerms(playerInput string, topics []string) []string {
	combined := playerInput
	if len(topics) > 0 {
		combined += " " + strings.Join(topics, " ")
	}
	return memory.Keywords(combined)
}

// Relevance is the keyword/topic overlap between the query terms and the
// entry text: matched distinct query terms divided by total query terms.
// No embeddings are involved; this is plain lexical overlap.
func Relevance(queryTerms []string, text string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	matched := 0
	for _, term := range queryTerms {
		if strings.Contains(lower, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}
