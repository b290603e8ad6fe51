package mutation

import "context"

// WorldIntent is a controller-approved, host-directed side effect outside
// the memory store: open a door, start a quest, change a disposition. The
// controller never applies intents itself; it dispatches them to the sink.
type WorldIntent struct {
	// ID is a unique identifier assigned at dispatch time.
	ID string `json:"id"`

	// Type names the effect (e.g., "open_door", "give_item").
	Type string `json:"type"`

	// NPCID is the persona emitting the intent.
	NPCID string `json:"npc_id"`

	// Payload carries effect parameters for the host.
	Payload map[string]any `json:"payload,omitempty"`
}

// IntentSink receives approved world intents. Dispatch is fire-and-forget:
// the sink owns delivery and the controller does not wait on an outcome.
// Intents reach the sink only after gate approval and the controller's own
// re-check — never straight from raw model output.
type IntentSink interface {
	Dispatch(ctx context.Context, intent WorldIntent)
}

// IntentSinkFunc adapts a function to the IntentSink interface.
type IntentSinkFunc func(ctx context.Context, intent WorldIntent)

// Dispatch calls f.
func (f IntentSinkFunc) Dispatch(ctx context.Context, intent WorldIntent) {
	f(ctx, intent)
}
