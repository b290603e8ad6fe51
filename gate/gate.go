package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lorekeep-ai/sdk/constraint"
	"github.com/lorekeep-ai/sdk/memory"
	"github.com/lorekeep-ai/sdk/parser"
)

// Config controls the gate's detection inputs.
type Config struct {
	// ContradictionKeywords are extra markers that, combined with a
	// canonical-fact keyword in the dialogue, flag a contradiction.
	ContradictionKeywords []string

	// ForbiddenKnowledge lists terms the persona must never mention,
	// matched case-insensitively.
	ForbiddenKnowledge []string

	// Rules are caller-supplied custom checks run as the fifth stage.
	Rules []Rule

	// Logger receives a structured record per failed validation.
	// Defaults to slog.Default.
	Logger *slog.Logger
}

// Gate is the five-stage validator a parsed output must pass before any of
// its proposed mutations are applied. Stages run in fixed order and all of
// them run regardless of earlier failures.
type Gate struct {
	cfg Config
}

// New creates a gate with the given config.
func New(cfg Config) *Gate {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gate{cfg: cfg}
}

// negationPrefixes are the patterns recognized as contradicting a fact
// keyword when they immediately precede it in the dialogue.
var negationPrefixes = []string{"not ", "isn't ", "is not "}

// Validate runs all five stages over the parsed output and returns the
// accumulated verdict. Failures never short-circuit: a stage-1 violation
// still leaves stages 2 through 5 with a complete run, so the retry
// orchestrator sees every problem at once.
func (g *Gate) Validate(ctx context.Context, out *parser.ParsedOutput, constraints *constraint.Set, facts []memory.CanonicalFact) *Result {
	res := &Result{}
	dialogue := strings.ToLower(out.Dialogue)

	g.checkConstraints(res, dialogue, constraints)
	g.checkCanonical(res, dialogue, facts)
	g.checkBoundary(res, dialogue)
	g.checkMutations(res, out.Mutations, facts)
	g.checkCustom(ctx, res, out)

	if !res.Passed() {
		g.cfg.Logger.Info("validation failed",
			"failures", len(res.failures),
			"critical", res.HasCriticalFailure(),
			"rejected_mutations", len(res.rejectedMutations))
	}
	return res
}

// checkConstraints is stage 1: prohibition pattern hits and missing hard
// requirements, with severity copied from the violated constraint.
func (g *Gate) checkConstraints(res *Result, dialogue string, constraints *constraint.Set) {
	if constraints == nil {
		return
	}

	for _, c := range constraints.Prohibitions() {
		for _, pattern := range c.Patterns {
			if pattern == "" {
				continue
			}
			if strings.Contains(dialogue, strings.ToLower(pattern)) {
				res.failures = append(res.failures, Failure{
					Stage:        StageConstraint,
					ConstraintID: c.ID,
					Severity:     c.Severity,
					Reason:       fmt.Sprintf("prohibited pattern %q present", pattern),
				})
				break
			}
		}
	}

	for _, c := range constraints.Requirements() {
		if len(c.Patterns) == 0 {
			continue
		}
		satisfied := false
		for _, pattern := range c.Patterns {
			if pattern != "" && strings.Contains(dialogue, strings.ToLower(pattern)) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			res.failures = append(res.failures, Failure{
				Stage:        StageConstraint,
				ConstraintID: c.ID,
				Severity:     c.Severity,
				Reason:       fmt.Sprintf("required content missing: %s", c.Description),
			})
		}
	}
}

// checkCanonical is stage 2: negation patterns and configured
// contradiction keywords against canonical fact text. Contradicting canon
// is always Critical.
func (g *Gate) checkCanonical(res *Result, dialogue string, facts []memory.CanonicalFact) {
	for _, fact := range facts {
		mentioned := false
		negated := false

	scan:
		for _, kw := range memory.Keywords(fact.Fact) {
			if !strings.Contains(dialogue, kw) {
				continue
			}
			mentioned = true
			for _, neg := range negationPrefixes {
				if strings.Contains(dialogue, neg+kw) {
					res.failures = append(res.failures, Failure{
						Stage:        StageCanonical,
						ConstraintID: fact.ID,
						Severity:     constraint.Critical,
						Reason:       fmt.Sprintf("dialogue negates canonical fact %q (%s%s)", fact.ID, neg, kw),
					})
					negated = true
					break scan
				}
			}
		}

		if negated || !mentioned {
			continue
		}
		for _, marker := range g.cfg.ContradictionKeywords {
			if marker != "" && strings.Contains(dialogue, strings.ToLower(marker)) {
				res.failures = append(res.failures, Failure{
					Stage:        StageCanonical,
					ConstraintID: fact.ID,
					Severity:     constraint.Critical,
					Reason:       fmt.Sprintf("dialogue disputes canonical fact %q (marker %q)", fact.ID, marker),
				})
				break
			}
		}
	}
}

// checkBoundary is stage 3: case-insensitive forbidden-knowledge terms.
func (g *Gate) checkBoundary(res *Result, dialogue string) {
	for _, term := range g.cfg.ForbiddenKnowledge {
		if term == "" {
			continue
		}
		if strings.Contains(dialogue, strings.ToLower(term)) {
			res.failures = append(res.failures, Failure{
				Stage:    StageBoundary,
				Severity: constraint.Hard,
				Reason:   fmt.Sprintf("forbidden knowledge mentioned: %q", term),
			})
		}
	}
}

// checkMutations is stage 4: any proposal targeting a canonical fact, or
// carrying an unknown kind, is rejected; the rest are approved. Approved
// and rejected proposals are collected separately.
func (g *Gate) checkMutations(res *Result, mutations []parser.ProposedMutation, facts []memory.CanonicalFact) {
	factIDs := make(map[string]struct{}, len(facts))
	for _, f := range facts {
		factIDs[f.ID] = struct{}{}
	}

	for _, m := range mutations {
		if !m.Kind.IsValid() {
			res.rejectedMutations = append(res.rejectedMutations, m)
			res.failures = append(res.failures, Failure{
				Stage:    StageMutation,
				Severity: constraint.Hard,
				Reason:   fmt.Sprintf("unknown mutation kind %q", m.Kind),
			})
			continue
		}
		if _, canonical := factIDs[m.TargetID]; canonical {
			res.rejectedMutations = append(res.rejectedMutations, m)
			res.failures = append(res.failures, Failure{
				Stage:        StageMutation,
				ConstraintID: m.TargetID,
				Severity:     constraint.Hard,
				Reason:       fmt.Sprintf("mutation targets canonical fact %q", m.TargetID),
			})
			continue
		}
		res.approvedMutations = append(res.approvedMutations, m)
	}
}

// checkCustom is stage 5: the extension point for caller-supplied rules.
func (g *Gate) checkCustom(ctx context.Context, res *Result, out *parser.ParsedOutput) {
	for _, rule := range g.cfg.Rules {
		failures, err := rule.Check(ctx, out)
		if err != nil {
			res.failures = append(res.failures, Failure{
				Stage:        StageCustom,
				ConstraintID: rule.Name(),
				Severity:     constraint.Hard,
				Reason:       fmt.Sprintf("rule error: %v", err),
			})
			continue
		}
		res.failures = append(res.failures, failures...)
	}
}
