// SPDX-License-Identifier: AGPL-3.0-only
package prompt

import (
	"strings"
	"testing"

	"github.com/sligter/canctool/internal/model"
)

func weatherTool() model.Tool {
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

func TestCompileSectionOrder(t *testing.T) {
	c := NewCompiler()
	out := c.Compile(Input{
		History: []model.ChatMessage{
			{Role: model.RoleUser, Content: model.Text("weather in Paris?")},
			{Role: model.RoleAssistant, Content: model.Text("It is 18 degrees.")},
		},
		Latest: model.ChatMessage{Role: model.RoleUser, Content: model.Text("and in London?")},
		Tools:  []model.Tool{weatherTool()},
	})

	sections := []string{
		"You are an intelligent assistant",
		"Available tools:",
		"Tool name: get_weather",
		"Tool calling format:",
		"Current conversation:",
		"User's latest message:",
		"and in London?",
		"Please analyze the user's needs.",
	}
	pos := -1
	for _, section := range sections {
		idx := strings.Index(out, section)
		if idx < 0 {
			t.Fatalf("Expected prompt to contain %q", section)
		}
		if idx <= pos {
			t.Fatalf("Expected %q to appear after previous section, got offset %d", section, idx)
		}
		pos = idx
	}
}

func TestCompileToolResultTurn(t *testing.T) {
	c := NewCompiler()
	out := c.Compile(Input{
		History: []model.ChatMessage{
			{Role: model.RoleUser, Content: model.Text("weather in Paris?")},
			{
				Role: model.RoleAssistant,
				ToolCalls: []model.ToolCall{
					{Function: model.FunctionCall{Name: "get_weather", Arguments: `{"city":"Paris"}`}},
				},
			},
		},
		Tools:         []model.Tool{weatherTool()},
		ToolResult:    `{"temp": 18}`,
		HasToolResult: true,
	})

	sections := []string{
		"Available tools:",
		"Previous tool call result:",
		`{"temp": 18}`,
		"Current conversation:",
		"User: weather in Paris?",
		"Please analyze the user's needs.",
	}
	pos := -1
	for _, section := range sections {
		idx := strings.Index(out, section)
		if idx < 0 {
			t.Fatalf("Expected prompt to contain %q", section)
		}
		if idx <= pos {
			t.Fatalf("Expected %q to appear after previous section, got offset %d", section, idx)
		}
		pos = idx
	}

	// The backend continues from the result; there is no separate latest
	// message and the result text appears exactly once.
	if strings.Contains(out, "User's latest message:") {
		t.Error("Expected no latest-message section on a tool result turn")
	}
	if n := strings.Count(out, `{"temp": 18}`); n != 1 {
		t.Errorf("Expected the tool result rendered once, got %d occurrences", n)
	}
}

func TestCompileDeterministic(t *testing.T) {
	c := NewCompiler()
	in := Input{
		Latest: model.ChatMessage{Role: model.RoleUser, Content: model.Text("weather?")},
		Tools:  []model.Tool{weatherTool()},
	}
	first := c.Compile(in)
	for i := 0; i < 20; i++ {
		if got := c.Compile(in); got != first {
			t.Fatal("Expected identical inputs to compile byte-identically")
		}
	}
}

func TestCompileOmitsEmptySections(t *testing.T) {
	c := NewCompiler()
	out := c.Compile(Input{
		Latest: model.ChatMessage{Role: model.RoleUser, Content: model.Text("hello")},
	})

	if strings.Contains(out, "Available tools:") {
		t.Error("Expected no tool catalog without schemas")
	}
	if strings.Contains(out, "Previous tool call result:") {
		t.Error("Expected no tool result section")
	}
	if strings.Contains(out, "Current conversation:") {
		t.Error("Expected no history section for an empty history")
	}
	if !strings.Contains(out, "hello") {
		t.Error("Expected the latest message to be rendered")
	}
}

func TestCompileEmptyToolResult(t *testing.T) {
	// An empty result is still a result and must produce the section.
	c := NewCompiler()
	out := c.Compile(Input{
		Latest:        model.ChatMessage{Role: model.RoleUser, Content: model.Text("hello")},
		ToolResult:    "",
		HasToolResult: true,
	})
	if !strings.Contains(out, "Previous tool call result:") {
		t.Error("Expected the result section for an empty tool result")
	}
}

func TestRenderToolsParameterDetails(t *testing.T) {
	out := renderTools([]model.Tool{weatherTool()})

	if !strings.Contains(out, "Description: Look up current weather for a city") {
		t.Errorf("Expected tool description, got:\n%s", out)
	}
	if !strings.Contains(out, "- city (string) (required)") {
		t.Errorf("Expected required marker on city, got:\n%s", out)
	}
	if !strings.Contains(out, "- units (string) (optional, default: metric)") {
		t.Errorf("Expected optional marker with default on units, got:\n%s", out)
	}
	if !strings.Contains(out, "allowed values: [metric, imperial]") {
		t.Errorf("Expected enum values, got:\n%s", out)
	}

	// Parameters render in sorted name order.
	if strings.Index(out, "- city") > strings.Index(out, "- units") {
		t.Error("Expected parameters sorted by name")
	}
}

func TestRenderToolsNoParameters(t *testing.T) {
	tool := model.Tool{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        "get_time",
			Description: "Current server time",
		},
	}
	out := renderTools([]model.Tool{tool})
	if !strings.Contains(out, "  No parameters\n") {
		t.Errorf("Expected no-parameters placeholder, got:\n%s", out)
	}
}

func TestRenderHistory(t *testing.T) {
	messages := []model.ChatMessage{
		{Role: model.RoleUser, Content: model.Text("weather in Paris?")},
		{
			Role: model.RoleAssistant,
			ToolCalls: []model.ToolCall{
				{Function: model.FunctionCall{Name: "get_weather", Arguments: `{"city":"Paris"}`}},
			},
		},
		{Role: model.RoleTool, Content: model.Text(`{"temp": 18}`)},
		{Role: model.RoleAssistant, Content: model.Text("It is 18 degrees.")},
		{Role: model.RoleAssistant},
		{Role: "unknown", Content: model.Text("ignored")},
	}

	out := renderHistory(messages)
	want := "User: weather in Paris?\n" +
		`Assistant: Called tool get_weather with arguments {"city":"Paris"}` + "\n" +
		`Tool result: {"temp": 18}` + "\n" +
		"Assistant: It is 18 degrees."
	if out != want {
		t.Fatalf("Expected:\n%s\ngot:\n%s", want, out)
	}
}

func TestRenderHistoryMultipleCalls(t *testing.T) {
	messages := []model.ChatMessage{
		{
			Role: model.RoleAssistant,
			ToolCalls: []model.ToolCall{
				{Function: model.FunctionCall{Name: "get_weather", Arguments: `{"city":"Paris"}`}},
				{Function: model.FunctionCall{Name: "get_time", Arguments: `{}`}},
			},
		},
	}
	out := renderHistory(messages)
	want := `Assistant: Called tool get_weather with arguments {"city":"Paris"}; Called tool get_time with arguments {}`
	if out != want {
		t.Fatalf("Expected %q, got %q", want, out)
	}
}

func TestCompileMarkerGrammarVerbatim(t *testing.T) {
	c := NewCompiler()
	out := c.Compile(Input{
		Latest: model.ChatMessage{Role: model.RoleUser, Content: model.Text("hi")},
		Tools:  []model.Tool{weatherTool()},
	})
	if !strings.Contains(out, `TOOL_CALL: {"tool_name": "tool_name", "arguments": {"parameter_name": "parameter_value"}}`) {
		t.Error("Expected the marker grammar example in the prompt")
	}
}
