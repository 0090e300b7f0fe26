// SPDX-License-Identifier: AGPL-3.0-only
package provider

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sligter/canctool/internal/config"
)

// AnthropicCaller calls the Anthropic Messages API as the text backend
type AnthropicCaller struct {
	client *anthropic.Client
}

// NewAnthropicCaller creates an Anthropic-backed Caller
func NewAnthropicCaller(pc config.ProviderConfig) *AnthropicCaller {
	opts := []option.RequestOption{option.WithAPIKey(pc.APIKey)}
	if pc.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(pc.BaseURL))
	}
	for _, key := range sortedHeaderKeys(pc.Headers) {
		opts = append(opts, option.WithHeader(key, pc.Headers[key]))
	}
	client := anthropic.NewClient(opts...)
	return &AnthropicCaller{client: &client}
}

// Call sends the compiled prompt as a single user message and returns the
// concatenated text blocks of the reply.
func (c *AnthropicCaller) Call(ctx context.Context, model string, prompt string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: completionMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			if text != "" {
				text += "\n"
			}
			text += block.AsText().Text
		}
	}
	return text, nil
}
