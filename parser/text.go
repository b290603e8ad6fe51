package parser

import (
	"regexp"
	"strings"
)

// blankRuns matches three or more consecutive blank lines.
var blankRuns = regexp.MustCompile(`\n{4,}`)

// Normalize applies the whitespace contract to raw model output:
//
//   - a leading UTF-8 BOM is stripped
//   - CRLF line endings become LF
//   - trailing whitespace is trimmed from each line
//   - runs of three or more blank lines collapse to two
//   - an existing trailing newline is preserved, never invented
//
// Nothing else is touched; interior spacing survives.
func Normalize(raw string) string {
	s := strings.TrimPrefix(raw, "\uFEFF")
	s = strings.ReplaceAll(s, "\r\n", "\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	s = strings.Join(lines, "\n")

	return blankRuns.ReplaceAllString(s, "\n\n\n")
}
