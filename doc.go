// Package sdk provides an authoritative, tamper-resistant memory store for
// AI-driven conversational game characters.
//
// The SDK sits between a game host and an LLM inference backend. It owns
// what a persona knows and believes, decides what context each interaction
// sees, validates every generated response before it reaches the player,
// and controls how model output is allowed to change memory.
//
// # Core Concepts
//
// The SDK is organized around several key concepts:
//
//   - Memory: four kinds of persona memory (canonical facts, world state,
//     episodic memories, beliefs) under an authority hierarchy
//   - Retrieval: deterministic, bounded selection of the memories relevant
//     to one interaction
//   - Constraints: typed behavioral rules (prohibitions, requirements,
//     permissions) with hard and critical severities
//   - Gate: a five-stage validation pass every generated response must
//     clear before it is spoken or allowed to mutate memory
//   - Orchestrator: the retry/escalate/fallback loop around generation
//     attempts
//
// # Architecture
//
// The SDK follows a layered architecture:
//
//   - Pipeline Layer: the high-level facade wiring one persona end to end
//   - Memory Layer: the authoritative store, snapshots, and persistence
//   - Validation Layer: constraint sets, the gate, and the mutation
//     controller
//   - Observability Layer: OpenTelemetry-based tracing and metrics
//
// # Getting Started
//
// To use the SDK, load a persona profile and build a pipeline around an
// inference backend:
//
//	import "github.com/lorekeep-ai/sdk"
//
//	prof, err := profile.Load("blacksmith.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	pipe, err := sdk.NewPipeline(prof, completer)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer pipe.Close()
//
//	result, err := pipe.Interact(ctx, "What happened to the king?", nil)
//
// The subpackages can also be used directly when a host wants finer
// control than the pipeline facade offers.
package sdk
