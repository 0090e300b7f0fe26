// SPDX-License-Identifier: AGPL-3.0-only
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ContentValue is the message content union: a plain string, a list of
// content parts, or any other shape a caller may send. Normalization to text
// never fails; unrecognized shapes degrade to a best-effort string form so
// that malformed input cannot break prompt construction.
type ContentValue struct {
	value interface{}
}

// Text creates a ContentValue holding a plain string
func Text(s string) ContentValue {
	return ContentValue{value: s}
}

// Parts creates a ContentValue holding a list of content parts
func Parts(items ...interface{}) ContentValue {
	return ContentValue{value: items}
}

// UnmarshalJSON accepts any JSON shape without erroring on structure
func (c *ContentValue) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	c.value = v
	return nil
}

// MarshalJSON re-emits the original shape. A zero ContentValue marshals as
// the empty string rather than null.
func (c ContentValue) MarshalJSON() ([]byte, error) {
	if c.value == nil {
		return []byte(`""`), nil
	}
	return json.Marshal(c.value)
}

// IsEmpty reports whether the normalized text form is empty
func (c ContentValue) IsEmpty() bool {
	return c.AsText() == ""
}

// AsText collapses the content to a single string. Plain strings pass
// through unchanged; part lists concatenate each part's extractable text
// joined by newlines, substituting a generic string conversion for parts
// without text; every other shape gets a generic string conversion.
func (c ContentValue) AsText() string {
	switch v := c.value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fragmentText(item))
		}
		return strings.Join(parts, "\n")
	case map[string]interface{}:
		if text, ok := v["text"].(string); ok {
			return text
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// fragmentText extracts the text of a single content part
func fragmentText(item interface{}) string {
	switch f := item.(type) {
	case string:
		return f
	case map[string]interface{}:
		if text, ok := f["text"].(string); ok {
			return text
		}
		return fmt.Sprintf("%v", f)
	default:
		return fmt.Sprintf("%v", f)
	}
}
