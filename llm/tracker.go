package llm

import (
	"sort"
	"sync"
)

// PersonaUsage aggregates inference cost for one persona. Attempts counts
// individual completion calls, including retried attempts within a turn, so
// Attempts divided by turns taken gives the persona's retry pressure.
type PersonaUsage struct {
	// Usage is the summed token usage across all recorded attempts.
	Usage TokenUsage `json:"usage"`

	// Attempts is the number of completion calls recorded.
	Attempts int `json:"attempts"`
}

// MeanTokensPerAttempt returns the average total tokens per completion
// call, or 0 when nothing has been recorded.
func (p PersonaUsage) MeanTokensPerAttempt() float64 {
	if p.Attempts == 0 {
		return 0
	}
	return float64(p.Usage.TotalTokens) / float64(p.Attempts)
}

// TokenTracker accumulates inference cost per persona. The orchestrator
// records one entry per completion attempt; hosts read the aggregates to
// budget which NPCs are worth their tokens.
type TokenTracker interface {
	// Add records the usage of one completion attempt for a persona.
	Add(personaID string, usage TokenUsage)

	// Total returns the aggregate usage across all personas.
	Total() TokenUsage

	// ByPersona returns the recorded usage for one persona. Zero value
	// when the persona has no recorded attempts.
	ByPersona(personaID string) PersonaUsage

	// Personas returns the tracked persona ids in sorted order.
	Personas() []string

	// Reset clears all recorded usage.
	Reset()
}

// DefaultTokenTracker is a thread-safe TokenTracker. One tracker is
// typically shared across every pipeline in a process.
type DefaultTokenTracker struct {
	mu       sync.RWMutex
	personas map[string]PersonaUsage
	total    TokenUsage
}

// NewTokenTracker creates an empty tracker.
func NewTokenTracker() *DefaultTokenTracker {
	return &DefaultTokenTracker{
		personas: make(map[string]PersonaUsage),
	}
}

// Add records the usage of one completion attempt for a persona.
func (t *DefaultTokenTracker) Add(personaID string, usage TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p := t.personas[personaID]
	p.Usage = p.Usage.Add(usage)
	p.Attempts++
	t.personas[personaID] = p
	t.total = t.total.Add(usage)
}

// Total returns the aggregate usage across all personas.
func (t *DefaultTokenTracker) Total() TokenUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// ByPersona returns the recorded usage for one persona.
func (t *DefaultTokenTracker) ByPersona(personaID string) PersonaUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.personas[personaID]
}

// Personas returns the tracked persona ids in sorted order.
func (t *DefaultTokenTracker) Personas() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.personas))
	for id := range t.personas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reset clears all recorded usage.
func (t *DefaultTokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.personas = make(map[string]PersonaUsage)
	t.total = TokenUsage{}
}
