package sdk

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lorekeep-ai/sdk/gate"
	"github.com/lorekeep-ai/sdk/llm"
	"github.com/lorekeep-ai/sdk/memory"
	"github.com/lorekeep-ai/sdk/mutation"
	"github.com/lorekeep-ai/sdk/orchestrator"
	"github.com/lorekeep-ai/sdk/persistence"
	"github.com/lorekeep-ai/sdk/profile"
	"github.com/lorekeep-ai/sdk/retrieval"
)

// Pipeline wires one persona end to end: its memory store, validation
// gate, mutation controller, and turn orchestrator, built from a profile
// and an inference backend.
//
// A pipeline is bound to a single persona. The memory store underneath is
// single-writer; the host must serialize Interact, Save, and Decay calls
// for the same pipeline. Distinct pipelines are fully independent.
type Pipeline struct {
	prof    *profile.Profile
	store   *memory.Store
	orch    *orchestrator.Orchestrator
	persist persistence.Store
	logger  *slog.Logger
}

// NewPipeline builds a pipeline from a validated profile and an inference
// backend. The store is seeded with the profile's canonical facts at
// designer authority and its world state at game-system authority.
func NewPipeline(prof *profile.Profile, completer llm.Completer, opts ...PipelineOption) (*Pipeline, error) {
	if prof == nil {
		return nil, NewConfigurationError("NewPipeline", ErrInvalidConfig)
	}
	if err := prof.Validate(); err != nil {
		return nil, NewConfigurationError("NewPipeline", err)
	}
	if completer == nil {
		return nil, NewConfigurationError("NewPipeline", fmt.Errorf("%w: nil completer", ErrInvalidConfig))
	}

	cfg := applyOptions(opts)

	store := memory.NewStore(prof.PersonaID, storeConfig(prof, cfg))
	if err := seedStore(store, prof); err != nil {
		return nil, err
	}

	return assemble(prof, store, completer, cfg), nil
}

// NewPipelineFromSave builds a pipeline whose store is restored from the
// persona's save record instead of the profile seeds. The persistence
// store must be supplied via WithPersistence.
func NewPipelineFromSave(ctx context.Context, prof *profile.Profile, completer llm.Completer, opts ...PipelineOption) (*Pipeline, error) {
	if prof == nil {
		return nil, NewConfigurationError("NewPipelineFromSave", ErrInvalidConfig)
	}
	if err := prof.Validate(); err != nil {
		return nil, NewConfigurationError("NewPipelineFromSave", err)
	}
	if completer == nil {
		return nil, NewConfigurationError("NewPipelineFromSave", fmt.Errorf("%w: nil completer", ErrInvalidConfig))
	}

	cfg := applyOptions(opts)
	if cfg.persist == nil {
		return nil, NewConfigurationError("NewPipelineFromSave",
			fmt.Errorf("%w: persistence store required", ErrInvalidConfig))
	}

	rec, err := cfg.persist.Load(ctx, prof.PersonaID)
	if err != nil {
		if err == persistence.ErrNotFound {
			return nil, NewNotFoundError("NewPipelineFromSave", ErrPersonaNotFound).
				WithContext(map[string]any{"persona_id": prof.PersonaID})
		}
		return nil, NewInternalError("NewPipelineFromSave", err)
	}

	store, err := memory.RestoreStore(rec, storeConfig(prof, cfg))
	if err != nil {
		return nil, NewValidationError("NewPipelineFromSave", err)
	}

	return assemble(prof, store, completer, cfg), nil
}

// applyOptions folds the option list into a config with defaults.
func applyOptions(opts []PipelineOption) *pipelineConfig {
	cfg := &pipelineConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	return cfg
}

func storeConfig(prof *profile.Profile, cfg *pipelineConfig) memory.Config {
	mc := memory.Config{
		MaxEpisodicMemories: prof.MaxEpisodicMemories,
		Detector:            cfg.detector,
		Logger:              cfg.logger,
	}
	if mc.Detector == nil && len(prof.ContradictionKeywords) > 0 {
		mc.Detector = memory.NewKeywordDetector(prof.ContradictionKeywords)
	}
	return mc
}

// seedStore loads the profile's facts and world state. Seeding runs at
// full authority, so a rejection here means the profile itself is bad.
func seedStore(store *memory.Store, prof *profile.Profile) error {
	for _, f := range prof.Facts {
		if res := store.AddCanonicalFact(f.ID, f.Fact, f.Domain, memory.SourceDesigner); !res.OK {
			return NewValidationError("NewPipeline", res.Err()).
				WithContext(map[string]any{"fact_id": f.ID})
		}
	}
	for _, w := range prof.WorldState {
		if res := store.SetWorldState(w.Key, w.Value, memory.SourceGameSystem); !res.OK {
			return NewValidationError("NewPipeline", res.Err()).
				WithContext(map[string]any{"world_state_key": w.Key})
		}
	}
	return nil
}

func assemble(prof *profile.Profile, store *memory.Store, completer llm.Completer, cfg *pipelineConfig) *Pipeline {
	g := gate.New(gate.Config{
		ContradictionKeywords: prof.ContradictionKeywords,
		ForbiddenKnowledge:    prof.ForbiddenKnowledge,
		Rules:                 cfg.rules,
		Logger:                cfg.logger,
	})

	ctrlOpts := []mutation.Option{mutation.WithLogger(cfg.logger)}
	if cfg.sink != nil {
		ctrlOpts = append(ctrlOpts, mutation.WithSink(cfg.sink))
	}
	if cfg.meter != nil {
		ctrlOpts = append(ctrlOpts, mutation.WithMeter(cfg.meter))
	}
	controller := mutation.NewController(ctrlOpts...)

	fallbacks := fallbackLibrary(prof.Fallbacks)

	orch := orchestrator.New(completer, g, controller, orchestrator.Config{
		MaxAttempts:   prof.MaxAttempts,
		Retrieval:     prof.RetrievalConfig(),
		Sampling:      cfg.sampling,
		Fallbacks:     fallbacks,
		PromptBuilder: cfg.promptBuilder,
		Logger:        cfg.logger,
		Tracer:        cfg.tracer,
		Tracker:       cfg.tracker,
	})

	return &Pipeline{
		prof:    prof,
		store:   store,
		orch:    orch,
		persist: cfg.persist,
		logger:  cfg.logger,
	}
}

// fallbackLibrary converts profile fallback seeds into the orchestrator's
// library form.
func fallbackLibrary(seeds profile.FallbackSeeds) *orchestrator.FallbackLibrary {
	contextual := make(map[orchestrator.TriggerReason][]string, len(seeds.Contextual))
	for reason, templates := range seeds.Contextual {
		contextual[orchestrator.TriggerReason(reason)] = templates
	}
	return orchestrator.NewFallbackLibrary(contextual, seeds.Generic, seeds.Emergency)
}

// PersonaID returns the persona this pipeline serves.
func (p *Pipeline) PersonaID() string {
	return p.prof.PersonaID
}

// Store exposes the underlying memory store for direct host writes, such
// as game-system world-state updates between turns.
func (p *Pipeline) Store() *memory.Store {
	return p.store
}

// Interact runs one player turn through retrieval, generation, validation,
// and mutation. The result always carries speakable dialogue; runtime
// failures resolve to a fallback line rather than an error.
func (p *Pipeline) Interact(ctx context.Context, playerInput string, topics []string) (*orchestrator.TurnResult, error) {
	return p.orch.RunTurn(ctx, p.store, orchestrator.TurnRequest{
		PlayerInput: playerInput,
		Topics:      topics,
		Constraints: p.prof.ConstraintSet(),
	})
}

// Retrieve returns the context the next interaction would see, without
// calling the model. Useful for debugging persona behavior.
func (p *Pipeline) Retrieve(playerInput string, topics []string) *retrieval.Context {
	return retrieval.Retrieve(p.store, playerInput, topics, p.prof.RetrievalConfig())
}

// Decay applies the profile's episodic decay rate once and returns how
// many memories were forgotten. The host decides the tick cadence.
func (p *Pipeline) Decay() int {
	return p.store.ApplyEpisodicDecay(p.prof.DecayRate)
}

// Save snapshots the store and writes it to the persistence backend.
func (p *Pipeline) Save(ctx context.Context) error {
	if p.persist == nil {
		return NewConfigurationError("Pipeline.Save",
			fmt.Errorf("%w: no persistence store configured", ErrInvalidConfig))
	}
	if err := p.persist.Save(ctx, p.store.Snapshot()); err != nil {
		return NewInternalError("Pipeline.Save", err).
			WithContext(map[string]any{"persona_id": p.prof.PersonaID})
	}
	return nil
}

// Close releases the persistence backend if it holds resources.
func (p *Pipeline) Close() error {
	if closer, ok := p.persist.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
