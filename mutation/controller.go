package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/lorekeep-ai/sdk/gate"
	"github.com/lorekeep-ai/sdk/memory"
	"github.com/lorekeep-ai/sdk/parser"
)

// ErrNotValidated is returned when Apply is handed a gate result that did
// not pass. The controller refuses to touch memory for failing output.
var ErrNotValidated = errors.New("mutation: gate result did not pass")

// Outcome records the result of applying one mutation.
type Outcome struct {
	// Index is the mutation's position in the approved batch.
	Index int `json:"index"`

	// Kind of the mutation.
	Kind parser.MutationKind `json:"kind"`

	// OK is true if the mutation was applied (or its intent dispatched).
	OK bool `json:"ok"`

	// Reason explains a failure.
	Reason string `json:"reason,omitempty"`
}

// BatchResult enumerates per-mutation outcomes for one gate-approved batch
// plus the world intents that were dispatched.
type BatchResult struct {
	Outcomes []Outcome     `json:"outcomes"`
	Intents  []WorldIntent `json:"intents,omitempty"`
	Applied  int           `json:"applied"`
	Failed   int           `json:"failed"`
}

// SuccessRate returns applied/(applied+failed), or 1 for an empty batch.
func (b *BatchResult) SuccessRate() float64 {
	total := b.Applied + b.Failed
	if total == 0 {
		return 1
	}
	return float64(b.Applied) / float64(total)
}

// Option configures a Controller.
type Option func(*Controller)

// WithSink sets the world-intent sink.
func WithSink(sink IntentSink) Option {
	return func(c *Controller) { c.sink = sink }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithMeter registers per-kind OpenTelemetry counters on the given meter.
// Metric errors are logged and leave the controller functional.
func WithMeter(meter metric.Meter) Option {
	return func(c *Controller) { c.meter = meter }
}

// Controller applies gate-approved mutations to a persona's memory store.
// It is the only writer on the validated-output path, and it re-enforces
// the canonical-fact rule itself: even a mutation the gate (hypothetically)
// waved through is rejected here if it targets a canonical fact.
type Controller struct {
	sink   IntentSink
	logger *slog.Logger
	meter  metric.Meter

	appliedCounter metric.Int64Counter
	failedCounter  metric.Int64Counter

	mu      sync.Mutex
	perKind map[parser.MutationKind]int
	applied int
	failed  int
}

// NewController creates a controller. Without a sink, approved world
// intents are logged and dropped.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		logger:  slog.Default(),
		perKind: make(map[parser.MutationKind]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.meter != nil {
		var err error
		c.appliedCounter, err = c.meter.Int64Counter(
			"mutation.applied",
			metric.WithDescription("Mutations applied to persona memory"),
			metric.WithUnit("1"),
		)
		if err != nil {
			c.logger.Warn("failed to create applied counter", "error", err)
		}
		c.failedCounter, err = c.meter.Int64Counter(
			"mutation.failed",
			metric.WithDescription("Mutations that failed to apply"),
			metric.WithUnit("1"),
		)
		if err != nil {
			c.logger.Warn("failed to create failed counter", "error", err)
		}
	}
	return c
}

// Apply executes each approved mutation from a passing gate result against
// the store, in order, continuing past individual failures. Non-passing
// results are refused with ErrNotValidated and no mutation is applied.
func (c *Controller) Apply(ctx context.Context, res *gate.Result, store *memory.Store) (*BatchResult, error) {
	if res == nil || !res.Passed() {
		return nil, ErrNotValidated
	}

	batch := &BatchResult{}
	for i, m := range res.ApprovedMutations() {
		outcome := c.applyOne(ctx, i, m, store, batch)
		batch.Outcomes = append(batch.Outcomes, outcome)
		if outcome.OK {
			batch.Applied++
		} else {
			batch.Failed++
			c.logger.Warn("mutation failed",
				"persona", store.PersonaID(),
				"kind", string(m.Kind),
				"reason", outcome.Reason)
		}
		c.record(ctx, m.Kind, outcome.OK)
	}
	return batch, nil
}

func (c *Controller) applyOne(ctx context.Context, index int, m parser.ProposedMutation, store *memory.Store, batch *BatchResult) Outcome {
	outcome := Outcome{Index: index, Kind: m.Kind}

	// Defense in depth: the gate already filters canonical targets, but a
	// bypassed or buggy gate must still never reach a fact.
	if m.TargetID != "" && store.HasCanonicalFact(m.TargetID) {
		outcome.Reason = fmt.Sprintf("targets canonical fact %q", m.TargetID)
		return outcome
	}

	switch m.Kind {
	case parser.MutationAppendEpisodic:
		result := store.AddEpisodic(memory.EpisodicMemoryEntry{
			ID:           m.TargetID,
			Description:  m.Content,
			EpisodeType:  memory.EpisodeType(m.EpisodeType),
			Significance: m.Significance,
		}, memory.SourceValidatedOutput)
		return c.fromWriteResult(outcome, result)

	case parser.MutationTransformBelief:
		key := m.TargetID
		if key == "" {
			key = "belief:" + m.Subject
		}
		result := store.SetBelief(key, memory.BeliefMemoryEntry{
			Subject:       m.Subject,
			BeliefContent: m.Content,
			Sentiment:     m.Sentiment,
			Confidence:    m.Confidence,
		}, memory.SourceValidatedOutput)
		return c.fromWriteResult(outcome, result)

	case parser.MutationTransformRelationship:
		if m.Subject == "" {
			outcome.Reason = "relationship mutation missing subject"
			return outcome
		}
		result := store.SetBelief("relationship:"+m.Subject, memory.BeliefMemoryEntry{
			Subject:       m.Subject,
			BeliefContent: m.Content,
			Sentiment:     m.Sentiment,
			Confidence:    m.Confidence,
		}, memory.SourceValidatedOutput)
		return c.fromWriteResult(outcome, result)

	case parser.MutationEmitWorldIntent:
		if m.IntentType == "" {
			outcome.Reason = "world intent missing type"
			return outcome
		}
		intent := WorldIntent{
			ID:      uuid.NewString(),
			Type:    m.IntentType,
			NPCID:   store.PersonaID(),
			Payload: m.Payload,
		}
		if c.sink == nil {
			c.logger.Info("world intent dropped: no sink configured",
				"persona", store.PersonaID(), "type", intent.Type)
		} else {
			c.sink.Dispatch(ctx, intent)
		}
		batch.Intents = append(batch.Intents, intent)
		outcome.OK = true
		return outcome

	default:
		outcome.Reason = fmt.Sprintf("unknown mutation kind %q", m.Kind)
		return outcome
	}
}

func (c *Controller) fromWriteResult(outcome Outcome, result memory.WriteResult) Outcome {
	if result.OK {
		outcome.OK = true
		return outcome
	}
	outcome.Reason = string(result.Reason)
	return outcome
}

func (c *Controller) record(ctx context.Context, kind parser.MutationKind, ok bool) {
	c.mu.Lock()
	c.perKind[kind]++
	if ok {
		c.applied++
	} else {
		c.failed++
	}
	c.mu.Unlock()

	attrs := metric.WithAttributes(attribute.String("kind", string(kind)))
	if ok && c.appliedCounter != nil {
		c.appliedCounter.Add(ctx, 1, attrs)
	}
	if !ok && c.failedCounter != nil {
		c.failedCounter.Add(ctx, 1, attrs)
	}
}

// Stats is a snapshot of the controller's lifetime counters.
type Stats struct {
	PerKind     map[parser.MutationKind]int `json:"per_kind"`
	Applied     int                         `json:"applied"`
	Failed      int                         `json:"failed"`
	SuccessRate float64                     `json:"success_rate"`
}

// Stats returns the lifetime per-kind counters and overall success rate.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	perKind := make(map[parser.MutationKind]int, len(c.perKind))
	for k, v := range c.perKind {
		perKind[k] = v
	}
	s := Stats{PerKind: perKind, Applied: c.applied, Failed: c.failed, SuccessRate: 1}
	if total := c.applied + c.failed; total > 0 {
		s.SuccessRate = float64(c.applied) / float64(total)
	}
	return s
}
