// SPDX-License-Identifier: AGPL-3.0-only
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sligter/canctool/internal/model"
)

const priming = "You are an intelligent assistant that must prioritize using tools to answer user questions. " +
	"Only provide direct answers when tool calls cannot satisfy the user's needs."

const markerGrammar = "Tool calling format:\n" +
	"When you need to call a tool, you must include the following format in your response:\n" +
	"```\n" +
	`TOOL_CALL: {"tool_name": "tool_name", "arguments": {"parameter_name": "parameter_value"}}` + "\n" +
	"```\n\n" +
	"Parameter requirements:\n" +
	"- tool_name: Must be one of the available tools from the list above\n" +
	"- arguments: Must be a JSON object that conforms to the tool definition, including all required parameters"

const closing = "Please analyze the user's needs. If you need to call a tool, " +
	"return the tool call information in the format above. If no tools are needed, answer directly."

// Input is everything a compiled prompt is built from. History excludes the
// latest user turn, which is rendered separately.
type Input struct {
	History    []model.ChatMessage
	Latest     model.ChatMessage
	Tools      []model.Tool
	ToolResult string
	// HasToolResult distinguishes an empty result from no result at all
	HasToolResult bool
}

// Compiler renders a single prompt text for the free-text backend. Given
// identical inputs the output is byte-identical.
type Compiler struct{}

// NewCompiler creates a prompt compiler
func NewCompiler() *Compiler {
	return &Compiler{}
}

// Compile combines, in fixed order: the role priming instruction, the tool
// catalog and marker grammar (when schemas are present), the last tool
// result (when present), the rendered history, the latest user message, and
// the closing instruction. On a tool-result turn the backend's task is to
// continue from the result, so the latest-message section is omitted and the
// user's question reaches the backend through the rendered history.
func (c *Compiler) Compile(in Input) string {
	var b strings.Builder
	b.WriteString(priming)
	b.WriteString("\n")

	if len(in.Tools) > 0 {
		b.WriteString("\nAvailable tools:\n")
		b.WriteString(renderTools(in.Tools))
		b.WriteString("\n")
		b.WriteString(markerGrammar)
		b.WriteString("\n")
	}

	if in.HasToolResult {
		b.WriteString("\nPrevious tool call result:\n")
		b.WriteString(in.ToolResult)
		b.WriteString("\n\nBased on the above result, please decide whether you need to call more tools or answer the user's question directly.\n")
	}

	history := renderHistory(in.History)
	if history != "" {
		b.WriteString("\nCurrent conversation:\n")
		b.WriteString(history)
		b.WriteString("\n")
	}

	if !in.HasToolResult {
		b.WriteString("\nUser's latest message:\n")
		b.WriteString(in.Latest.Content.AsText())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(closing)

	return b.String()
}

// renderTools renders the tool catalog: name, description, and each
// parameter's type, required-or-default marker, allowed values and
// description.
func renderTools(tools []model.Tool) string {
	var b strings.Builder
	for _, tool := range tools {
		fn := tool.Function
		fmt.Fprintf(&b, "\nTool name: %s\n", fn.Name)
		fmt.Fprintf(&b, "Description: %s\n", fn.Description)
		b.WriteString("Parameters:\n")

		if len(fn.Parameters.Properties) == 0 {
			b.WriteString("  No parameters\n")
		} else {
			required := make(map[string]bool, len(fn.Parameters.Required))
			for _, name := range fn.Parameters.Required {
				required[name] = true
			}
			for _, name := range sortedParamNames(fn.Parameters.Properties) {
				param := fn.Parameters.Properties[name]
				fmt.Fprintf(&b, "  - %s (%s)", name, param.Type)
				if required[name] {
					b.WriteString(" (required)")
				} else {
					fmt.Fprintf(&b, " (optional, default: %v)", param.Default)
				}
				if len(param.Enum) > 0 {
					fmt.Fprintf(&b, ", allowed values: [%s]", strings.Join(param.Enum, ", "))
				}
				fmt.Fprintf(&b, "\n    Description: %s\n", param.Description)
			}
		}
	}
	return b.String()
}

// renderHistory renders messages oldest to newest as role-labeled lines.
// Assistant turns that carried tool calls are rendered as terse call
// descriptions since their content is empty. Unrecognized roles and empty
// assistant messages are skipped, never fatal.
func renderHistory(messages []model.ChatMessage) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case model.RoleUser:
			lines = append(lines, "User: "+msg.Content.AsText())
		case model.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				calls := make([]string, 0, len(msg.ToolCalls))
				for _, call := range msg.ToolCalls {
					calls = append(calls, fmt.Sprintf("Called tool %s with arguments %s", call.Function.Name, call.Function.Arguments))
				}
				lines = append(lines, "Assistant: "+strings.Join(calls, "; "))
			} else if text := msg.Content.AsText(); text != "" {
				lines = append(lines, "Assistant: "+text)
			}
		case model.RoleTool:
			lines = append(lines, "Tool result: "+msg.Content.AsText())
		}
	}
	return strings.Join(lines, "\n")
}

func sortedParamNames(props map[string]model.FunctionParameter) []string {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	// Map iteration order is random; sorted names keep compiled prompts
	// byte-identical across runs.
	sort.Strings(names)
	return names
}
