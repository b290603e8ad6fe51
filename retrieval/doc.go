// Package retrieval selects the bounded subset of a persona's memory that
// is relevant to one interaction.
//
// The scorer is stateless: it reads a memory snapshot, computes lexical
// relevance against the player input and topics, and orders candidates
// under a strict total order (score, then recency or confidence, then ID
// under ordinal comparison, then sequence number). Because the final key is
// unique, the output ordering is byte-stable across runs, insertion orders,
// floating-point near-ties, and host locales — a correctness property the
// rest of the pipeline depends on for reproducible prompts.
package retrieval
