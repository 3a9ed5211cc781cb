package llm

import (
	"context"
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/m4xw311/they/errors"
	"github.com/m4xw311/they/session"
	"github.com/m4xw311/they/tools"
)

// AnthropicLLMClient is a client for the Anthropic API.
type AnthropicLLMClient struct {
	client *anthropic.Client
	opts   Options
}

// NewAnthropicLLMClient creates a new AnthropicLLMClient.
func NewAnthropicLLMClient(opts Options) (*AnthropicLLMClient, error) {
	if opts.APIKey == "" {
		return nil, errors.New("API key for Anthropic not set")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	client := anthropic.NewClient(reqOpts...)

	return &AnthropicLLMClient{
		client: &client,
		opts:   opts,
	}, nil
}

// Stream sends the conversation to the Anthropic API and streams the reply.
func (a *AnthropicLLMClient) Stream(ctx context.Context, messages []session.Message, availableTools []tools.Tool, onText TextFunc) (*session.Message, error) {
	systemPrompt, rest := splitSystem(messages)

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(a.opts.Model),
		MaxTokens:   a.opts.MaxTokens,
		Messages:    convertMessagesToAnthropicMessages(rest),
		Temperature: anthropic.Float(a.opts.Temperature),
		Tools:       convertToolsToAnthropicTools(availableTools),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}

	stream := a.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	message := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := message.Accumulate(event); err != nil {
			return nil, errors.Wrapf(err, "failed to accumulate Anthropic stream")
		}
		if ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok {
			if d, ok := ev.Delta.AsAny().(anthropic.TextDelta); ok && d.Text != "" {
				if err := onText(d.Text); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to send message to Anthropic")
	}

	return processAnthropicResponse(&message), nil
}

// convertMessagesToAnthropicMessages converts our internal message format to
// Anthropic's. Consecutive tool results are grouped into one user message, as
// the API expects every result for a turn in the same message.
func convertMessagesToAnthropicMessages(messages []session.Message) []anthropic.MessageParam {
	var out []anthropic.MessageParam
	var pending []anthropic.ContentBlockParamUnion

	flush := func() {
		if len(pending) > 0 {
			out = append(out, anthropic.NewUserMessage(pending...))
			pending = nil
		}
	}

	for _, msg := range messages {
		if msg.Role == session.RoleTool {
			pending = append(pending, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false))
			continue
		}
		flush()

		switch msg.Role {
		case session.RoleUser:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case session.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, rawArguments(tc.Arguments), tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		}
	}
	flush()
	return out
}

// convertToolsToAnthropicTools converts our Tool interface to Anthropic's tool format.
func convertToolsToAnthropicTools(ts []tools.Tool) []anthropic.ToolUnionParam {
	if len(ts) == 0 {
		return nil
	}

	out := make([]anthropic.ToolUnionParam, 0, len(ts))
	for _, t := range ts {
		props, required := tools.SchemaProperties(t.Schema())
		out = append(out, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name(),
			Description: anthropic.String(t.Description()),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: props,
				Required:   required,
			},
		}})
	}
	return out
}

// processAnthropicResponse converts an accumulated Anthropic message into our
// internal session.Message format.
func processAnthropicResponse(resp *anthropic.Message) *session.Message {
	msg := &session.Message{Role: session.RoleAssistant}
	for _, content := range resp.Content {
		switch c := content.AsAny().(type) {
		case anthropic.TextBlock:
			msg.Content += c.Text
		case anthropic.ToolUseBlock:
			msg.ToolCalls = append(msg.ToolCalls, session.ToolCall{
				ID:        c.ID,
				Name:      c.Name,
				Arguments: rawArguments(c.Input),
			})
		}
	}
	return msg
}

// rawArguments normalises tool arguments to a JSON object.
func rawArguments(args json.RawMessage) json.RawMessage {
	if len(args) == 0 || string(args) == "null" {
		return json.RawMessage("{}")
	}
	return args
}
