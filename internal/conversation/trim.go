// SPDX-License-Identifier: AGPL-3.0-only
package conversation

import (
	"github.com/sligter/canctool/internal/config"
	"github.com/sligter/canctool/internal/model"
)

// Estimate overheads, in characters. These are deliberately generous so the
// additive estimate stays an upper bound on the rendered prompt without
// re-rendering on every trial.
const (
	// templateOverhead covers the fixed prompt framing: priming instruction,
	// section headers, marker grammar explanation and closing instruction.
	templateOverhead = 900

	// messageOverhead covers the role label and newline of one history line
	messageOverhead = 16

	// toolOverhead covers the fixed labels around one tool entry
	toolOverhead = 80

	// paramOverhead covers the fixed labels around one parameter line
	paramOverhead = 64

	// resultOverhead covers the labels around an embedded tool result
	resultOverhead = 160
)

// Trimmer enforces the prompt length budget by discarding oldest history
// entries. The final message is never trimmed away: a prompt with zero
// history is always valid, an empty prompt is not.
type Trimmer struct {
	budget int
}

// NewTrimmer creates a Trimmer with the given character budget. A
// non-positive budget falls back to the default.
func NewTrimmer(budget int) *Trimmer {
	if budget <= 0 {
		budget = config.DefaultPromptBudget
	}
	return &Trimmer{budget: budget}
}

// Budget returns the configured character budget
func (t *Trimmer) Budget() int {
	return t.budget
}

// Trim drops oldest messages until the estimated rendered length fits the
// budget, or only one message remains. Eviction is greedy and deterministic;
// a message is never partially truncated.
func (t *Trimmer) Trim(messages []model.ChatMessage, tools []model.Tool, toolResult string) []model.ChatMessage {
	fixed := fixedEstimate(tools, toolResult)

	kept := messages
	for len(kept) > 1 && fixed+historyEstimate(kept) > t.budget {
		kept = kept[1:]
	}
	return kept
}

// Estimate returns the estimated rendered prompt length for the given
// inputs. The estimate is additive and monotonic in the number of messages.
func (t *Trimmer) Estimate(messages []model.ChatMessage, tools []model.Tool, toolResult string) int {
	return fixedEstimate(tools, toolResult) + historyEstimate(messages)
}

func fixedEstimate(tools []model.Tool, toolResult string) int {
	total := templateOverhead
	for _, tool := range tools {
		total += schemaEstimate(tool)
	}
	if toolResult != "" {
		total += len(toolResult) + resultOverhead
	}
	return total
}

func historyEstimate(messages []model.ChatMessage) int {
	total := 0
	for _, msg := range messages {
		total += messageEstimate(msg)
	}
	return total
}

func messageEstimate(msg model.ChatMessage) int {
	total := messageOverhead
	if len(msg.ToolCalls) > 0 {
		// Rendered as "Called tool <name> with arguments <args>" lines.
		for _, call := range msg.ToolCalls {
			total += len(call.Function.Name) + len(call.Function.Arguments) + 32
		}
		return total
	}
	return total + len(msg.Content.AsText())
}

func schemaEstimate(tool model.Tool) int {
	fn := tool.Function
	total := toolOverhead + len(fn.Name) + len(fn.Description)
	for name, param := range fn.Parameters.Properties {
		total += paramOverhead + len(name) + len(param.Type) + len(param.Description)
		for _, e := range param.Enum {
			total += len(e) + 4
		}
	}
	return total
}
