// SPDX-License-Identifier: AGPL-3.0-only
package provider

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/sligter/canctool/internal/config"
)

// Generation parameters for the single wrapped backend call. The compiled
// prompt carries all conversational context, so the call itself is a plain
// one-shot completion.
const (
	completionMaxTokens   = 1000
	completionTemperature = 0.7
)

// OpenAICaller calls any OpenAI-compatible chat completion endpoint
// (OpenAI, Ollama, vLLM, Groq, LM Studio, etc.) via a configurable base URL.
type OpenAICaller struct {
	client *openai.Client
}

// NewOpenAICaller creates an OpenAI-backed Caller. Retries and the request
// timeout are handled by the SDK client.
func NewOpenAICaller(pc config.ProviderConfig, timeout time.Duration, maxRetries int) *OpenAICaller {
	opts := []option.RequestOption{
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(maxRetries),
	}
	if pc.APIKey != "" {
		opts = append(opts, option.WithAPIKey(pc.APIKey))
	}
	if pc.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(pc.BaseURL))
	}
	for _, key := range sortedHeaderKeys(pc.Headers) {
		opts = append(opts, option.WithHeader(key, pc.Headers[key]))
	}

	client := openai.NewClient(opts...)
	return &OpenAICaller{client: &client}
}

// Call sends the compiled prompt as a single user message and returns the
// backend's free-text reply.
func (c *OpenAICaller) Call(ctx context.Context, model string, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(completionMaxTokens),
		Temperature: openai.Float(completionTemperature),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("backend response has no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func sortedHeaderKeys(headers map[string]string) []string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
