// Package gate validates parsed model output before any of its proposed
// mutations may touch persona memory.
//
// Validation is a five-stage pipeline run in fixed order: constraint
// checks, canonical-fact contradiction checks, knowledge-boundary checks,
// mutation validation, and caller-supplied custom rules (including
// CEL-expression rules). Every stage runs even when an earlier one fails;
// failures accumulate so one gate run reports everything wrong with an
// attempt. The verdict passes only with zero failures, and approved
// mutations are released only on a passing verdict.
package gate
