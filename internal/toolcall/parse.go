// SPDX-License-Identifier: AGPL-3.0-only
package toolcall

import (
	"encoding/json"
	"strings"
)

// Marker is the literal token a free-text backend emits to signal an
// embedded structured call.
const Marker = "TOOL_CALL:"

// Call is a parsed structured tool invocation
type Call struct {
	Name      string
	Arguments map[string]interface{}
}

// markerPayload is the wire shape following the marker
type markerPayload struct {
	ToolName  string                 `json:"tool_name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// Parse scans text for the first marker and decodes the JSON object that
// follows it. Arguments default to an empty object when absent. A missing
// marker, unbalanced braces, invalid JSON or a missing tool name all degrade
// to "no call found" — this boundary never fails.
func Parse(text string) (*Call, bool) {
	start := strings.Index(text, Marker)
	if start < 0 {
		return nil, false
	}

	objStart, objEnd, ok := scanObject(text, start+len(Marker))
	if !ok {
		return nil, false
	}

	var payload markerPayload
	if err := json.Unmarshal([]byte(text[objStart:objEnd]), &payload); err != nil {
		return nil, false
	}
	if payload.ToolName == "" {
		return nil, false
	}
	if payload.Arguments == nil {
		payload.Arguments = map[string]interface{}{}
	}
	return &Call{Name: payload.ToolName, Arguments: payload.Arguments}, true
}

// Strip removes every marker-and-object span from text and trims the
// surrounding whitespace. The span is removed even when its JSON does not
// decode, so internal protocol syntax never leaks into user-visible content;
// a marker with no balanced object after it is removed through the end of
// its line. Strip is idempotent.
func Strip(text string) string {
	var b strings.Builder
	rest := text
	for {
		start := strings.Index(rest, Marker)
		if start < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])

		if _, objEnd, ok := scanObject(rest, start+len(Marker)); ok {
			rest = rest[objEnd:]
			continue
		}

		// No balanced object follows; drop the marker and the remainder of
		// its line.
		lineEnd := strings.IndexByte(rest[start:], '\n')
		if lineEnd < 0 {
			break
		}
		rest = rest[start+lineEnd:]
	}
	return strings.TrimSpace(b.String())
}

// scanObject finds the brace-balanced JSON object starting at or after pos,
// allowing only whitespace between pos and the opening brace. It walks the
// text with an explicit depth counter, honoring string literals and escape
// sequences, so nested braces inside argument values cannot misparse. It
// returns the object's start and one-past-end offsets.
func scanObject(text string, pos int) (int, int, bool) {
	i := pos
	for i < len(text) && isSpace(text[i]) {
		i++
	}
	if i >= len(text) || text[i] != '{' {
		return 0, 0, false
	}

	depth := 0
	inString := false
	escaped := false
	for j := i; j < len(text); j++ {
		c := text[j]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, j + 1, true
			}
		}
	}
	return 0, 0, false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
