package parser

import (
	"encoding/json"
	"regexp"
	"strings"
)

// fencedBlock matches a fenced code block, optionally tagged json,
// capturing its body.
var fencedBlock = regexp.MustCompile("(?s)```(?:json)?[ \t]*\n(.*?)\n?```")

// mutationEnvelope is the structured payload a model may embed in its
// output, either as a bare array of mutations or wrapped in an object.
type mutationEnvelope struct {
	Mutations []ProposedMutation `json:"mutations"`
	Metadata  map[string]string  `json:"metadata"`
}

// Parse converts raw model output into a ParsedOutput.
//
// With extractStructured false, only the Normalize whitespace contract is
// applied and the whole text becomes dialogue.
//
// With extractStructured true, fenced JSON blocks are extracted first and
// decoded into mutation proposals; normalization then applies to the
// remaining dialogue text only. A block that looks structured but fails to
// decode degrades to plain dialogue: the output is still returned, with
// Metadata["parse_error"] set, alongside ErrMalformedOutput. Callers treat
// that error as non-fatal.
func Parse(raw string, extractStructured bool) (*ParsedOutput, error) {
	if !extractStructured {
		return &ParsedOutput{Dialogue: Normalize(raw)}, nil
	}

	out := &ParsedOutput{}
	var parseErr error

	remaining := fencedBlock.ReplaceAllStringFunc(raw, func(block string) string {
		body := fencedBlock.FindStringSubmatch(block)[1]

		env, err := decodeEnvelope(body)
		if err != nil {
			// Not a mutation payload: leave the block in the dialogue.
			if !looksStructured(body) {
				return block
			}
			if out.Metadata == nil {
				out.Metadata = make(map[string]string)
			}
			out.Metadata["parse_error"] = err.Error()
			parseErr = ErrMalformedOutput
			return ""
		}

		out.Mutations = append(out.Mutations, env.Mutations...)
		for k, v := range env.Metadata {
			if out.Metadata == nil {
				out.Metadata = make(map[string]string)
			}
			out.Metadata[k] = v
		}
		return ""
	})

	out.Dialogue = Normalize(remaining)
	return out, parseErr
}

// decodeEnvelope accepts either {"mutations": [...]} or a bare [...] array.
func decodeEnvelope(body string) (*mutationEnvelope, error) {
	trimmed := strings.TrimSpace(body)

	if strings.HasPrefix(trimmed, "[") {
		var mutations []ProposedMutation
		if err := json.Unmarshal([]byte(trimmed), &mutations); err != nil {
			return nil, err
		}
		return &mutationEnvelope{Mutations: mutations}, nil
	}

	var env mutationEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return nil, err
	}
	if env.Mutations == nil && env.Metadata == nil {
		return nil, ErrMalformedOutput
	}
	return &env, nil
}

// looksStructured reports whether a fenced block was plausibly meant as a
// mutation payload. Blocks that were never JSON-shaped stay in the
// dialogue untouched instead of being reported as malformed.
func looksStructured(body string) bool {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "[") {
		return true
	}
	return strings.HasPrefix(trimmed, "{") && strings.Contains(trimmed, "\"mutations\"")
}
