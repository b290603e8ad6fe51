// Package orchestrator drives the retry/fallback state machine around
// generation attempts: retrieve context, call the inference backend, parse
// and validate the output, escalate violated constraints between attempts,
// and fall back to a canned response when attempts are exhausted or a
// critical failure ends the turn early. Attempts are strictly sequential
// and carry their state in immutable AttemptContext values.
package orchestrator
