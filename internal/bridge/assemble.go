// SPDX-License-Identifier: AGPL-3.0-only
package bridge

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sligter/canctool/internal/model"
	"github.com/sligter/canctool/internal/toolcall"
)

// assemble builds the protocol response from backend free text. When
// checkToolCalls is set and a marker parses, the result is a tool-call
// message with empty content and exactly one structured call; otherwise a
// plain message with the marker-stripped text.
func assemble(modelName string, raw string, checkToolCalls bool) *model.ChatResponse {
	if checkToolCalls {
		if call, ok := toolcall.Parse(raw); ok {
			return assembleToolCall(modelName, call)
		}
	}
	return assemblePlain(modelName, toolcall.Strip(raw))
}

func assembleToolCall(modelName string, call *toolcall.Call) *model.ChatResponse {
	args, err := json.Marshal(call.Arguments)
	if err != nil {
		// Arguments came out of a JSON decode, so this cannot fail; keep the
		// response well-formed regardless.
		args = []byte("{}")
	}

	return newResponse(modelName, model.Choice{
		Index: 0,
		Message: model.ResponseMessage{
			Role:    model.RoleAssistant,
			Content: "",
			ToolCalls: []model.ToolCall{
				{
					ID:   newCallID(),
					Type: "function",
					Function: model.FunctionCall{
						Name:      call.Name,
						Arguments: string(args),
					},
				},
			},
		},
		FinishReason: model.FinishToolCalls,
	})
}

func assemblePlain(modelName string, content string) *model.ChatResponse {
	return newResponse(modelName, model.Choice{
		Index: 0,
		Message: model.ResponseMessage{
			Role:    model.RoleAssistant,
			Content: content,
		},
		FinishReason: model.FinishStop,
	})
}

func newResponse(modelName string, choice model.Choice) *model.ChatResponse {
	return &model.ChatResponse{
		ID:      NewResponseID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   modelName,
		Choices: []model.Choice{choice},
	}
}

// NewResponseID generates a fresh chatcmpl identifier. Uniqueness is
// structural, not security-sensitive.
func NewResponseID() string {
	return "chatcmpl-" + compactUUID()[:24]
}

func newCallID() string {
	return "call_" + compactUUID()[:24]
}

func compactUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
