package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/lorekeep-ai/sdk/constraint"
	"github.com/lorekeep-ai/sdk/gate"
	"github.com/lorekeep-ai/sdk/llm"
	"github.com/lorekeep-ai/sdk/memory"
	"github.com/lorekeep-ai/sdk/mutation"
	"github.com/lorekeep-ai/sdk/parser"
	"github.com/lorekeep-ai/sdk/retrieval"
)

// ErrInvalidRequest is returned when a turn request is missing its store
// or player input.
var ErrInvalidRequest = errors.New("orchestrator: invalid turn request")

// PromptBuilder assembles the prompt text for one attempt from the
// retrieved context, the rendered constraint directives, and the player
// input. Prompt assembly proper is the host's concern; the default builder
// is a minimal concatenation for hosts that do not supply one.
type PromptBuilder func(retrieved *retrieval.Context, directives, playerInput string) string

// Config controls orchestration behavior. Zero-value fields fall back to
// defaults.
type Config struct {
	// MaxAttempts bounds generation attempts per turn. Defaults to 3.
	MaxAttempts int

	// AttemptTimeout bounds each inference call. Defaults to 30s.
	AttemptTimeout time.Duration

	// Retrieval is the scoring config for context retrieval.
	Retrieval retrieval.Config

	// Sampling options applied to every completion request.
	Sampling []llm.CompletionOption

	// Fallbacks selects canned responses when attempts are exhausted.
	Fallbacks *FallbackLibrary

	// PromptBuilder assembles attempt prompts.
	PromptBuilder PromptBuilder

	// Logger receives per-attempt structured records.
	Logger *slog.Logger

	// Tracer emits one span per attempt. Defaults to a no-op tracer.
	Tracer trace.Tracer

	// Tracker records per-persona usage for each completion attempt.
	Tracker llm.TokenTracker
}

// Orchestrator drives the attempt/validate/escalate/fallback state machine
// for one turn at a time. Attempts are strictly sequential: each attempt's
// escalated constraints depend on the previous attempt's failures, so there
// is never a speculative parallel attempt.
type Orchestrator struct {
	completer  llm.Completer
	gate       *gate.Gate
	controller *mutation.Controller
	cfg        Config
}

// New creates an orchestrator around the inference collaborator, the
// validation gate, and the mutation controller.
func New(completer llm.Completer, g *gate.Gate, controller *mutation.Controller, cfg Config) *Orchestrator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}
	if cfg.Fallbacks == nil {
		cfg.Fallbacks = NewFallbackLibrary(nil, nil, "")
	}
	if cfg.PromptBuilder == nil {
		cfg.PromptBuilder = defaultPromptBuilder
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("lorekeep")
	}
	return &Orchestrator{completer: completer, gate: g, controller: controller, cfg: cfg}
}

// TurnRequest describes one player interaction with a persona.
type TurnRequest struct {
	// PlayerInput is the player's utterance.
	PlayerInput string

	// Topics optionally bias retrieval relevance.
	Topics []string

	// Constraints active for this interaction. Nil means unconstrained.
	Constraints *constraint.Set
}

// AttemptContext is the immutable state of one generation attempt. The
// next attempt's context is produced functionally via Next; no retry state
// is shared or mutated across attempts.
type AttemptContext struct {
	// Constraints in force for this attempt.
	Constraints *constraint.Set

	// AttemptNumber counts from 1.
	AttemptNumber int
}

// Next returns the context for the following attempt, with the violated
// constraints promoted to Critical severity: a constraint the model broke
// once becomes non-negotiable on the retry.
func (a AttemptContext) Next(violated ...string) AttemptContext {
	return AttemptContext{
		Constraints:   a.Constraints.Escalate(violated...),
		AttemptNumber: a.AttemptNumber + 1,
	}
}

// TurnResult is the outcome of a turn: either validated dialogue with its
// applied mutations, or a fallback line.
type TurnResult struct {
	// Dialogue is the text to speak.
	Dialogue string

	// Attempts is the number of inference calls made.
	Attempts int

	// Passed is true when a generation attempt cleared the gate.
	Passed bool

	// FromFallback is true when Dialogue is a canned response.
	FromFallback bool

	// FallbackReason is set when FromFallback is true.
	FallbackReason TriggerReason `json:",omitempty"`

	// Failures are the last attempt's accumulated gate failures.
	Failures []gate.Failure

	// Mutations is the applied batch for a passing turn.
	Mutations *mutation.BatchResult

	// Usage is the token usage summed across all attempts.
	Usage llm.TokenUsage
}

// RunTurn executes one turn: retrieve context, attempt generation up to the
// bound with escalating constraints, validate, and either apply mutations
// or fall back.
//
// The only error returns are an invalid request and caller cancellation;
// every runtime failure (inference errors, validation failures, exhausted
// retries) resolves internally to a fallback result, so nothing propagates
// to the host as a fault. Mutations are applied only after a complete,
// validated result — cancelling an in-flight generation never leaves a
// partial mutation behind.
func (o *Orchestrator) RunTurn(ctx context.Context, store *memory.Store, req TurnRequest) (*TurnResult, error) {
	if store == nil || req.PlayerInput == "" {
		return nil, ErrInvalidRequest
	}

	constraints := req.Constraints
	if constraints == nil {
		constraints = constraint.NewSet()
	}

	// Memory cannot change between attempts (mutations land only after a
	// passing verdict), so one retrieval snapshot serves the whole turn.
	retrieved := retrieval.Retrieve(store, req.PlayerInput, req.Topics, o.cfg.Retrieval)

	result := &TurnResult{}
	attempt := AttemptContext{Constraints: constraints, AttemptNumber: 1}
	lastTrigger := TriggerInferenceError

	for {
		verdict, parsed, trigger, err := o.runAttempt(ctx, store, req, retrieved, attempt, result)
		if err != nil {
			return nil, err
		}

		if verdict != nil && verdict.Passed() {
			result.Passed = true
			result.Failures = nil
			result.Dialogue = parsed.Dialogue
			batch, applyErr := o.controller.Apply(ctx, verdict, store)
			if applyErr != nil {
				// Unreachable for a passing verdict; kept as a guard.
				o.cfg.Logger.Error("mutation apply refused", "error", applyErr)
			}
			result.Mutations = batch
			return result, nil
		}

		lastTrigger = trigger
		if verdict != nil {
			result.Failures = verdict.Failures()
		}

		retryable := verdict == nil || verdict.ShouldRetry()
		if retryable && attempt.AttemptNumber < o.cfg.MaxAttempts {
			violated := []string(nil)
			if verdict != nil {
				violated = verdict.ViolatedConstraintIDs()
			}
			attempt = attempt.Next(violated...)
			continue
		}

		return o.fallback(result, lastTrigger), nil
	}
}

// runAttempt performs one generate/parse/validate cycle. A nil verdict with
// nil error means the inference call itself failed. The returned error is
// non-nil only for caller cancellation.
func (o *Orchestrator) runAttempt(ctx context.Context, store *memory.Store, req TurnRequest, retrieved *retrieval.Context, attempt AttemptContext, result *TurnResult) (*gate.Result, *parser.ParsedOutput, TriggerReason, error) {
	ctx, span := o.cfg.Tracer.Start(ctx, "turn.attempt",
		trace.WithAttributes(
			attribute.String("persona.id", store.PersonaID()),
			attribute.Int("attempt.number", attempt.AttemptNumber),
		))
	defer span.End()

	prompt := o.cfg.PromptBuilder(retrieved, attempt.Constraints.Render(), req.PlayerInput)
	creq := llm.NewCompletionRequest(prompt, o.cfg.Sampling...)

	callCtx, cancel := context.WithTimeout(ctx, o.cfg.AttemptTimeout)
	resp, err := o.completer.Complete(callCtx, creq)
	cancel()

	result.Attempts = attempt.AttemptNumber

	if err != nil {
		if ctx.Err() != nil {
			span.SetStatus(codes.Error, "cancelled")
			return nil, nil, TriggerInferenceError, ctx.Err()
		}
		span.SetStatus(codes.Error, err.Error())
		o.cfg.Logger.Warn("inference call failed",
			"persona", store.PersonaID(),
			"attempt", attempt.AttemptNumber,
			"error", err)
		return nil, nil, TriggerInferenceError, nil
	}

	result.Usage = result.Usage.Add(resp.Usage)
	if o.cfg.Tracker != nil {
		o.cfg.Tracker.Add(store.PersonaID(), resp.Usage)
	}

	parsed, parseErr := parser.Parse(resp.Content, true)
	if parseErr != nil {
		// Malformed structured output degrades to plain dialogue.
		o.cfg.Logger.Info("structured output malformed, using plain dialogue",
			"persona", store.PersonaID(),
			"attempt", attempt.AttemptNumber)
	}

	verdict := o.gate.Validate(ctx, parsed, attempt.Constraints, retrieved.Facts)
	trigger := TriggerInferenceError
	if !verdict.Passed() {
		trigger = triggerFor(verdict.Failures())
		span.SetStatus(codes.Error, fmt.Sprintf("validation failed: %s", trigger))
		span.SetAttributes(attribute.Int("gate.failures", len(verdict.Failures())))
	} else {
		span.SetStatus(codes.Ok, "validated")
	}
	return verdict, parsed, trigger, nil
}

// fallback resolves the turn with a canned response and logs the
// aggregated failure reason.
func (o *Orchestrator) fallback(result *TurnResult, trigger TriggerReason) *TurnResult {
	result.FromFallback = true
	result.FallbackReason = trigger
	result.Dialogue = o.cfg.Fallbacks.Select(trigger)

	violated := make([]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		violated = append(violated, fmt.Sprintf("%s/%s", f.Stage, f.Severity))
	}
	o.cfg.Logger.Warn("turn fell back",
		"reason", string(trigger),
		"attempts", result.Attempts,
		"failures", strings.Join(violated, ","))
	return result
}

// defaultPromptBuilder is the minimal prompt assembly used when the host
// does not provide its own.
func defaultPromptBuilder(retrieved *retrieval.Context, directives, playerInput string) string {
	var b strings.Builder

	if len(retrieved.Facts) > 0 {
		b.WriteString("Known facts:\n")
		for _, f := range retrieved.Facts {
			fmt.Fprintf(&b, "- %s\n", f.Fact)
		}
	}
	if len(retrieved.WorldState) > 0 {
		b.WriteString("World state:\n")
		for _, w := range retrieved.WorldState {
			fmt.Fprintf(&b, "- %s: %s\n", w.Key, w.Value)
		}
	}
	if len(retrieved.Episodic) > 0 {
		b.WriteString("You remember:\n")
		for _, e := range retrieved.Episodic {
			fmt.Fprintf(&b, "- %s\n", e.Description)
		}
	}
	if len(retrieved.Beliefs) > 0 {
		b.WriteString("You believe:\n")
		for _, bl := range retrieved.Beliefs {
			fmt.Fprintf(&b, "- %s\n", bl.BeliefContent)
		}
	}
	if directives != "" {
		b.WriteString(directives)
	}
	fmt.Fprintf(&b, "\nPlayer: %s\n", playerInput)
	return b.String()
}
