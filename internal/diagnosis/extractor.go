// Package diagnosis recovers a structured Diagnosis from raw completion
// output. The upstream model is instructed to emit pure JSON but in
// practice wraps it in markdown fences or injects stray control bytes, so
// extraction is an ordered chain of increasingly forgiving parse
// strategies rather than a single unmarshal.
package diagnosis

import (
	// The strict stdlib decoder is deliberate here: the sanitize fallback
	// is only reachable when the decoder rejects raw control bytes inside
	// strings, which lenient parsers let through.
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/stacksentry/stacksentry/api/schemas"
)

// Regex uses \x60 for backticks because Go raw strings cannot contain them.
// fencedObjectRegex extracts a JSON object wrapped in a markdown code block,
// optionally tagged "json".
var fencedObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")

// ParseError reports that no valid diagnosis could be recovered after all
// fallback strategies. It carries the original decode failure and the raw
// model output for diagnostics.
type ParseError struct {
	Raw   string
	cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to recover a diagnosis from model output: %v", e.cause)
}

func (e *ParseError) Unwrap() error { return e.cause }

// NewParseError builds a ParseError from the raw model output and the
// underlying decode failure.
func NewParseError(raw string, cause error) *ParseError {
	return &ParseError{Raw: raw, cause: cause}
}

// strategy derives a candidate JSON payload from the raw response. It
// returns false when it has nothing new to offer for this input.
type strategy struct {
	name  string
	apply func(raw string) (string, bool)
}

// strategies are attempted in order; each is only consulted after every
// prior candidate failed to decode.
var strategies = []strategy{
	{
		name: "direct",
		apply: func(raw string) (string, bool) {
			return strings.TrimSpace(raw), true
		},
	},
	{
		name: "fenced",
		apply: func(raw string) (string, bool) {
			matches := fencedObjectRegex.FindStringSubmatch(raw)
			if len(matches) > 1 {
				return matches[1], true
			}
			return "", false
		},
	},
	{
		name: "sanitized",
		apply: func(raw string) (string, bool) {
			candidate := strings.TrimSpace(raw)
			if matches := fencedObjectRegex.FindStringSubmatch(raw); len(matches) > 1 {
				candidate = matches[1]
			}
			stripped := stripControlChars(candidate)
			if stripped == candidate {
				return "", false
			}
			return stripped, true
		},
	},
}

// Extract parses raw completion-service text into a validated Diagnosis.
// It is a pure function; it fails with *ParseError only when every
// strategy in the chain has been exhausted.
func Extract(raw string) (*schemas.Diagnosis, error) {
	var firstErr error

	for _, s := range strategies {
		candidate, ok := s.apply(raw)
		if !ok {
			continue
		}

		var d schemas.Diagnosis
		if err := json.Unmarshal([]byte(candidate), &d); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		d.ApplyDefaults()
		return &d, nil
	}

	if firstErr == nil {
		firstErr = fmt.Errorf("no parse strategy produced a candidate")
	}
	return nil, &ParseError{Raw: raw, cause: firstErr}
}

// stripControlChars removes ASCII control characters (0x00-0x1F) except
// newline. Models occasionally emit raw tabs or carriage returns inside
// string values, which the JSON grammar forbids.
func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\n' {
			return -1
		}
		return r
	}, s)
}
