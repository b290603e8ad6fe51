package memory

import "strings"

// ContradictionDetector decides whether a belief's content conflicts with a
// canonical fact. Detection is a pluggable strategy: the default keyword
// detector is deliberately shallow and can both over- and under-detect, and
// callers with richer semantics can substitute their own implementation.
type ContradictionDetector interface {
	// Contradicts reports whether the belief conflicts with the fact.
	Contradicts(belief BeliefMemoryEntry, fact CanonicalFact) bool
}

// DetectorFunc adapts a function to the ContradictionDetector interface.
type DetectorFunc func(belief BeliefMemoryEntry, fact CanonicalFact) bool

// Contradicts calls f.
func (f DetectorFunc) Contradicts(belief BeliefMemoryEntry, fact CanonicalFact) bool {
	return f(belief, fact)
}

// negationMarkers are the prefixes recognized as negating a fact keyword.
var negationMarkers = []string{"not ", "isn't ", "is not ", "never ", "no longer "}

// KeywordDetector flags a belief when its content negates a keyword of the
// fact ("not X", "isn't X", "is not X"), or when both texts share a keyword
// and the belief contains one of the configured contradiction keywords.
type KeywordDetector struct {
	// ContradictionKeywords are extra markers (e.g., "actually", "lie")
	// that signal conflict when the belief also mentions a fact keyword.
	ContradictionKeywords []string
}

// NewKeywordDetector creates the default detector with optional extra
// contradiction keywords.
func NewKeywordDetector(keywords []string) *KeywordDetector {
	return &KeywordDetector{ContradictionKeywords: keywords}
}

// Contradicts implements ContradictionDetector.
func (d *KeywordDetector) Contradicts(belief BeliefMemoryEntry, fact CanonicalFact) bool {
	content := strings.ToLower(belief.BeliefContent)
	keywords := Keywords(fact.Fact)
	if len(keywords) == 0 {
		return false
	}

	sharesKeyword := false
	for _, kw := range keywords {
		if !strings.Contains(content, kw) {
			continue
		}
		sharesKeyword = true
		for _, marker := range negationMarkers {
			if strings.Contains(content, marker+kw) {
				return true
			}
		}
	}

	if !sharesKeyword {
		return false
	}
	for _, extra := range d.ContradictionKeywords {
		if extra != "" && strings.Contains(content, strings.ToLower(extra)) {
			return true
		}
	}
	return false
}

// Keywords extracts the significant lowercase tokens of a text: runs of
// letters and digits at least three characters long. Tokenization is
// ordinal (no locale tables) so results are identical on every host.
func Keywords(text string) []string {
	lower := strings.ToLower(text)
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
