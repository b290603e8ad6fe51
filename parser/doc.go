// Package parser turns raw model completions into typed output: speakable
// dialogue plus any structured mutation proposals embedded in fenced JSON
// blocks. Malformed structured payloads are non-fatal and degrade to plain
// dialogue.
package parser
