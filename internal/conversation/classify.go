// SPDX-License-Identifier: AGPL-3.0-only
package conversation

import (
	"github.com/sligter/canctool/internal/model"
)

// State is the derived turn state of a conversation. It is recomputed per
// request and never stored.
type State int

const (
	// StatePlain is a regular turn with no tool apparatus involved
	StatePlain State = iota
	// StateToolResultPending means the newest tool-relevant message is a tool
	// result the backend has not yet seen
	StateToolResultPending
	// StateToolInvocationEligible is a plain turn where the caller supplied
	// tool schemas, so the prompt must embed the tool catalog
	StateToolInvocationEligible
)

// String returns the state name for logging and usage records
func (s State) String() string {
	switch s {
	case StateToolResultPending:
		return "tool_result"
	case StateToolInvocationEligible:
		return "tool_call"
	default:
		return "plain"
	}
}

// Classify scans messages from most recent to oldest and returns the turn
// state. The first tool-relevant message decides: a tool-role message means a
// result is pending; an assistant message carrying tool calls with no
// subsequent tool reply is a dead end and classifies as plain.
func Classify(messages []model.ChatMessage) State {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Role == model.RoleTool {
			return StateToolResultPending
		}
		if msg.Role == model.RoleAssistant && len(msg.ToolCalls) > 0 {
			return StatePlain
		}
	}
	return StatePlain
}

// WantsTools reports whether the caller supplied at least one tool schema
func WantsTools(tools []model.Tool) bool {
	return len(tools) > 0
}

// Determine combines Classify and WantsTools into the state used downstream:
// a plain turn with tool schemas present becomes tool-invocation eligible.
func Determine(messages []model.ChatMessage, tools []model.Tool) State {
	state := Classify(messages)
	if state == StatePlain && WantsTools(tools) {
		return StateToolInvocationEligible
	}
	return state
}

// LatestToolResult returns the content of the most recent tool-role message.
// The second return is false when no tool-role message exists.
func LatestToolResult(messages []model.ChatMessage) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleTool {
			return messages[i].Content.AsText(), true
		}
	}
	return "", false
}
