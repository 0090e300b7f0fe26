// SPDX-License-Identifier: AGPL-3.0-only
package conversation

import (
	"testing"

	"github.com/sligter/canctool/internal/model"
)

func userMsg(text string) model.ChatMessage {
	return model.ChatMessage{Role: model.RoleUser, Content: model.Text(text)}
}

func assistantMsg(text string) model.ChatMessage {
	return model.ChatMessage{Role: model.RoleAssistant, Content: model.Text(text)}
}

func toolMsg(text string) model.ChatMessage {
	return model.ChatMessage{Role: model.RoleTool, Content: model.Text(text), ToolCallID: "call_abc"}
}

func assistantCallMsg(name, args string) model.ChatMessage {
	return model.ChatMessage{
		Role: model.RoleAssistant,
		ToolCalls: []model.ToolCall{
			{ID: "call_abc", Type: "function", Function: model.FunctionCall{Name: name, Arguments: args}},
		},
	}
}

func sampleTool() model.Tool {
	return model.Tool{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        "get_weather",
			Description: "Look up current weather for a city",
			Parameters: model.FunctionParameters{
				Type: "object",
				Properties: map[string]model.FunctionParameter{
					"city":  {Type: "string", Description: "City name"},
					"units": {Type: "string", Description: "Unit system", Enum: []string{"metric", "imperial"}, Default: "metric"},
				},
				Required: []string{"city"},
			},
		},
	}
}

func TestClassifyPlainConversation(t *testing.T) {
	messages := []model.ChatMessage{
		userMsg("hello"),
		assistantMsg("hi there"),
		userMsg("how are you?"),
	}
	if state := Classify(messages); state != StatePlain {
		t.Fatalf("Expected StatePlain, got %v", state)
	}
}

func TestClassifyToolResultPending(t *testing.T) {
	messages := []model.ChatMessage{
		userMsg("weather in Paris?"),
		assistantCallMsg("get_weather", `{"city":"Paris"}`),
		toolMsg(`{"temp": 18, "conditions": "cloudy"}`),
	}
	if state := Classify(messages); state != StateToolResultPending {
		t.Fatalf("Expected StateToolResultPending, got %v", state)
	}
}

func TestClassifyDeadEndToolCalls(t *testing.T) {
	// An assistant turn with tool calls but no subsequent tool reply is a
	// dead end; the conversation proceeds as plain.
	messages := []model.ChatMessage{
		userMsg("weather in Paris?"),
		assistantCallMsg("get_weather", `{"city":"Paris"}`),
		userMsg("never mind, tell me a joke"),
	}
	if state := Classify(messages); state != StatePlain {
		t.Fatalf("Expected StatePlain for dead-end tool calls, got %v", state)
	}
}

func TestClassifyNewestToolMessageWins(t *testing.T) {
	// The most recent tool-relevant message decides, even when older turns
	// also carried tool traffic.
	messages := []model.ChatMessage{
		userMsg("weather in Paris?"),
		assistantCallMsg("get_weather", `{"city":"Paris"}`),
		toolMsg(`{"temp": 18}`),
		assistantMsg("It is 18 degrees in Paris."),
		userMsg("and in London?"),
		assistantCallMsg("get_weather", `{"city":"London"}`),
		toolMsg(`{"temp": 12}`),
	}
	if state := Classify(messages); state != StateToolResultPending {
		t.Fatalf("Expected StateToolResultPending, got %v", state)
	}
	result, ok := LatestToolResult(messages)
	if !ok {
		t.Fatal("Expected a tool result to be found")
	}
	if result != `{"temp": 12}` {
		t.Fatalf("Expected newest tool result, got %q", result)
	}
}

func TestClassifyEmptyMessages(t *testing.T) {
	if state := Classify(nil); state != StatePlain {
		t.Fatalf("Expected StatePlain for empty messages, got %v", state)
	}
}

func TestDetermineToolInvocationEligible(t *testing.T) {
	messages := []model.ChatMessage{userMsg("weather in Paris?")}
	tools := []model.Tool{sampleTool()}

	if state := Determine(messages, tools); state != StateToolInvocationEligible {
		t.Fatalf("Expected StateToolInvocationEligible, got %v", state)
	}
	if state := Determine(messages, nil); state != StatePlain {
		t.Fatalf("Expected StatePlain without tools, got %v", state)
	}
}

func TestDetermineToolResultOverridesEligibility(t *testing.T) {
	messages := []model.ChatMessage{
		userMsg("weather in Paris?"),
		assistantCallMsg("get_weather", `{"city":"Paris"}`),
		toolMsg(`{"temp": 18}`),
	}
	if state := Determine(messages, []model.Tool{sampleTool()}); state != StateToolResultPending {
		t.Fatalf("Expected StateToolResultPending, got %v", state)
	}
}

func TestLatestToolResultMissing(t *testing.T) {
	messages := []model.ChatMessage{userMsg("hello")}
	if _, ok := LatestToolResult(messages); ok {
		t.Fatal("Expected no tool result in a plain conversation")
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StatePlain:                  "plain",
		StateToolResultPending:      "tool_result",
		StateToolInvocationEligible: "tool_call",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Errorf("Expected %q for state %d, got %q", want, state, got)
		}
	}
}
