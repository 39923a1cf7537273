package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Models often wrap structured output in prose, markdown fences, or
// reasoning preambles. The extractors here pull the structured payload out
// so raw model text never drives control flow directly.

const (
	// CodeStartMarker and CodeEndMarker wrap generated code in coder responses.
	CodeStartMarker = "<<START_CODE>>"
	CodeEndMarker   = "<<END_CODE>>"
)

var (
	jsonArrayRe  = regexp.MustCompile(`\[\s*\{[\s\S]*?\}\s*\]`)
	jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)
)

// ExtractJSONArray finds the first JSON array of objects in the text and
// unmarshals it into dst. Returns an error if no parseable array is present.
func ExtractJSONArray(text string, dst any) error {
	match := jsonArrayRe.FindString(text)
	if match == "" {
		// An empty array is a valid "nothing left to do" answer.
		if strings.Contains(text, "[]") {
			return json.Unmarshal([]byte("[]"), dst)
		}
		return fmt.Errorf("no JSON array found in response")
	}

	if err := json.Unmarshal([]byte(match), dst); err != nil {
		return fmt.Errorf("decoding JSON array: %w", err)
	}
	return nil
}

// ExtractJSONObject finds the outermost JSON object in the text and
// unmarshals it into dst.
func ExtractJSONObject(text string, dst any) error {
	match := jsonObjectRe.FindString(text)
	if match == "" {
		return fmt.Errorf("no JSON object found in response")
	}

	if err := json.Unmarshal([]byte(match), dst); err != nil {
		return fmt.Errorf("decoding JSON object: %w", err)
	}
	return nil
}

// ExtractCode pulls code from between the start/end markers. If the markers
// are missing the trimmed raw text is returned with ok=false so callers can
// decide whether the fallback is acceptable.
func ExtractCode(text string) (code string, ok bool) {
	start := strings.Index(text, CodeStartMarker)
	end := strings.Index(text, CodeEndMarker)

	if start != -1 && end != -1 && end > start {
		return strings.TrimSpace(text[start+len(CodeStartMarker) : end]), true
	}

	return strings.TrimSpace(stripFences(text)), false
}

// stripFences removes a single wrapping markdown code fence, if present.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return text
	}

	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return text
	}

	// Drop the opening fence (possibly with a language tag) and a trailing fence.
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
