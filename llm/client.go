// Package llm adapts model provider SDKs to a single streaming interface.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/m4xw311/they/config"
	"github.com/m4xw311/they/errors"
	"github.com/m4xw311/they/session"
	"github.com/m4xw311/they/tools"
)

// OpenRouterBaseURL is used for the openrouter provider when no base URL is configured.
const OpenRouterBaseURL = "https://openrouter.ai/api/v1"

// TextFunc receives each streamed text fragment in order. Returning an error
// aborts the stream.
type TextFunc func(text string) error

// LLMClient is the interface for interacting with a Large Language Model.
type LLMClient interface {
	// Stream sends the conversation and streams one assistant response. Text
	// fragments go to onText as they arrive; the complete message, including
	// any tool calls, is returned at the end.
	Stream(ctx context.Context, messages []session.Message, availableTools []tools.Tool, onText TextFunc) (*session.Message, error)
}

// Options carries the model parameters shared by every provider.
type Options struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int64
}

// OptionsFromConfig extracts client options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
}

// New returns the client for the configured provider.
func New(ctx context.Context, cfg *config.Config) (LLMClient, error) {
	opts := OptionsFromConfig(cfg)
	switch strings.ToLower(cfg.Provider) {
	case "anthropic":
		return NewAnthropicLLMClient(opts)
	case "openai":
		return NewOpenAILLMClient(opts)
	case "openrouter":
		if opts.BaseURL == "" {
			opts.BaseURL = OpenRouterBaseURL
		}
		c, err := NewOpenAILLMClient(opts)
		if err != nil {
			return nil, err
		}
		c.legacyMaxTokens = true
		return c, nil
	case "gemini":
		return NewGeminiLLMClient(ctx, opts)
	case "bedrock":
		return NewBedrockLLMClient(ctx, opts)
	case "mock":
		return &MockLLMClient{}, nil
	}
	return nil, errors.New("unsupported provider '%s'", cfg.Provider)
}

// splitSystem separates system messages from the conversation. Providers take
// the system prompt as a separate request field.
func splitSystem(messages []session.Message) (string, []session.Message) {
	var system []string
	rest := make([]session.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == session.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

// MockLLMClient streams back the last user message. It never calls tools.
type MockLLMClient struct{}

func (m *MockLLMClient) Stream(ctx context.Context, messages []session.Message, availableTools []tools.Tool, onText TextFunc) (*session.Message, error) {
	var last string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == session.RoleUser {
			last = messages[i].Content
			break
		}
	}
	reply := fmt.Sprintf("I am a mock LLM with %d tools. You said: '%s'.", len(availableTools), last)
	for _, word := range strings.SplitAfter(reply, " ") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := onText(word); err != nil {
			return nil, err
		}
	}
	return &session.Message{Role: session.RoleAssistant, Content: reply}, nil
}
