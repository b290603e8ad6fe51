// Package llm defines the inference collaborator interface: completion
// request/response types, functional sampling options, the Completer
// contract the orchestrator calls, and a token usage tracker. The backend
// itself is external; everything here treats it as an opaque, cancellable,
// possibly failing text-completion function.
package llm
