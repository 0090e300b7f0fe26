// SPDX-License-Identifier: AGPL-3.0-only
package tokens

import (
	"github.com/pkoukk/tiktoken-go"

	"github.com/sligter/canctool/internal/logging"
)

// Counter estimates token counts for usage accounting. Counts are
// informational only; nothing in the pipeline depends on them.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter creates a token counter backed by the cl100k_base encoding.
// When the encoding cannot be initialized (e.g. no cached vocabulary and no
// network) the counter falls back to a character-based estimate.
func NewCounter(logger *logging.Logger) *Counter {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		if logger != nil {
			logger.Warnf("Token encoding unavailable, using character estimate: %v", err)
		}
		return &Counter{}
	}
	return &Counter{encoding: encoding}
}

// Count returns the token count of text
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.encoding == nil {
		// Rough average of four characters per token.
		return (len(text) + 3) / 4
	}
	return len(c.encoding.Encode(text, nil, nil))
}
