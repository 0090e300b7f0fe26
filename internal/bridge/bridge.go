// SPDX-License-Identifier: AGPL-3.0-only
package bridge

import (
	"context"
	"time"

	"github.com/sligter/canctool/internal/conversation"
	"github.com/sligter/canctool/internal/errors"
	"github.com/sligter/canctool/internal/logging"
	"github.com/sligter/canctool/internal/model"
	"github.com/sligter/canctool/internal/prompt"
	"github.com/sligter/canctool/internal/provider"
	"github.com/sligter/canctool/internal/tokens"
)

// sentinelNoToolResult is returned without contacting the backend when a
// tool-result turn is detected but no result content can be extracted.
const sentinelNoToolResult = "Tool result not found"

// Bridge runs the request pipeline: classify the turn, trim and compile the
// prompt, call the backend once, parse the reply for a structured call and
// assemble the protocol response. It holds no per-request state; any number
// of requests may flow through one Bridge concurrently.
type Bridge struct {
	registry *provider.Registry
	trimmer  *conversation.Trimmer
	compiler *prompt.Compiler
	counter  *tokens.Counter
	store    model.UsageStore
	logger   *logging.Logger
}

// New creates a Bridge. store may be nil to disable usage recording.
func New(registry *provider.Registry, trimmer *conversation.Trimmer, counter *tokens.Counter, store model.UsageStore, logger *logging.Logger) *Bridge {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &Bridge{
		registry: registry,
		trimmer:  trimmer,
		compiler: prompt.NewCompiler(),
		counter:  counter,
		store:    store,
		logger:   logger,
	}
}

// Complete processes one chat completion request end to end
func (b *Bridge) Complete(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error) {
	if len(req.Messages) == 0 {
		return nil, errors.InvalidInput("messages cannot be empty")
	}

	start := time.Now()
	state := conversation.Determine(req.Messages, req.Tools)
	logger := b.logger.WithField("state", state.String())

	var toolResult string
	hasToolResult := false
	if state == conversation.StateToolResultPending {
		result, ok := conversation.LatestToolResult(req.Messages)
		if !ok {
			// Unreachable given the classifier's scan order, but a missing
			// result must short-circuit rather than reach the backend.
			logger.Warnf("Tool result turn without extractable result, short-circuiting")
			resp := assemblePlain(req.Model, sentinelNoToolResult)
			b.recordUsage(req, resp, state, start)
			return resp, nil
		}
		toolResult = result
		hasToolResult = true
	}

	// Tool schemas are embedded whenever the caller supplied them; a
	// tool-result turn still needs the catalog so the backend can decide
	// whether further calls are required.
	var schemas []model.Tool
	if state != conversation.StatePlain {
		schemas = req.Tools
	}

	trimmed := b.trimmer.Trim(req.Messages, schemas, toolResult)

	// On a tool-result turn the pending tool message is rendered in its own
	// prompt section; drop it from the history so its content appears once.
	// On every other turn the newest message is rendered as the user's
	// latest message, separate from the history.
	var history []model.ChatMessage
	var latest model.ChatMessage
	if hasToolResult {
		history = withoutNewestToolMessage(trimmed)
	} else {
		history = trimmed[:len(trimmed)-1]
		latest = trimmed[len(trimmed)-1]
	}

	compiled := b.compiler.Compile(prompt.Input{
		History:       history,
		Latest:        latest,
		Tools:         schemas,
		ToolResult:    toolResult,
		HasToolResult: hasToolResult,
	})
	logger.Debugf("Compiled prompt length: %d (budget %d, %d of %d messages kept)",
		len(compiled), b.trimmer.Budget(), len(trimmed), len(req.Messages))

	prov := b.registry.Resolve(req.Model)
	logger.Infof("Calling model %s via provider %s", req.Model, prov.Name)

	raw, err := prov.Call(ctx, req.Model, compiled)
	if err != nil {
		logger.Errorf("Backend call failed: %v", err)
		return nil, errors.Upstream(prov.Name, err)
	}

	// Plain turns never surface tool calls, matching the request contract:
	// without schemas there is nothing a structured call could refer to.
	resp := assemble(req.Model, raw, state != conversation.StatePlain)
	resp.Usage = model.Usage{
		PromptTokens:     b.counter.Count(compiled),
		CompletionTokens: b.counter.Count(raw),
	}
	resp.Usage.TotalTokens = resp.Usage.PromptTokens + resp.Usage.CompletionTokens

	b.recordUsage(req, resp, state, start)
	return resp, nil
}

// withoutNewestToolMessage returns messages minus the most recent tool-role
// entry, the one whose content was extracted as the pending result.
func withoutNewestToolMessage(messages []model.ChatMessage) []model.ChatMessage {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleTool {
			out := make([]model.ChatMessage, 0, len(messages)-1)
			out = append(out, messages[:i]...)
			return append(out, messages[i+1:]...)
		}
	}
	return messages
}

func (b *Bridge) recordUsage(req *model.ChatRequest, resp *model.ChatResponse, state conversation.State, start time.Time) {
	record := &model.UsageRecord{
		RequestID:        resp.ID,
		Model:            req.Model,
		Provider:         b.registry.Resolve(req.Model).Name,
		TurnState:        state.String(),
		FinishReason:     resp.Choices[0].FinishReason,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		Duration:         time.Since(start).String(),
		CreatedAt:        time.Now(),
	}
	model.PersistAndLogUsage(b.store, record, b.logger)
}
