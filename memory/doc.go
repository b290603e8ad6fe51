// Package memory implements the authoritative, tamper-resistant memory
// store for a single agent persona.
//
// The store owns four collections, each with a fixed authority level:
//
//   - Canonical facts (100): designer-authored world truth, immutable
//     after creation
//   - World state (75): game-system-owned key-value state, overwritten
//     in place
//   - Episodic memories (50): append-only decaying event records
//   - Beliefs (25): upsertable, confidence-weighted opinions that are
//     flagged when they contradict canonical truth
//
// Every write names a Source (Designer, GameSystem, ValidatedOutput, or
// LLMSuggestion) and succeeds only if the source's authority level is at
// least the target collection's level. Canonical facts additionally reject
// all modification attempts after creation, from every source.
//
// Each successful write receives a SequenceNumber from a per-store
// monotonic counter. The counter never moves backward: after a save/restore
// round trip it is recalculated as max(existing)+1, so restored and new
// entries never collide. The sequence number is the final tie-breaker the
// retrieval layer uses to keep output ordering byte-stable.
//
// A Store is owned by exactly one persona and is not safe for concurrent
// mutation; callers serialize same-persona interactions. Decay and pruning
// run only when invoked — the store keeps no timers and reads no clocks on
// its own beyond stamping CreatedAt at insertion.
package memory
