package llm

import (
	"context"

	"github.com/m4xw311/they/errors"
	"github.com/m4xw311/they/session"
	"github.com/m4xw311/they/tools"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAILLMClient is a client for the OpenAI Chat Completion API and
// compatible endpoints such as OpenRouter.
type OpenAILLMClient struct {
	client *openai.Client
	opts   Options
	// legacyMaxTokens sends max_tokens instead of max_completion_tokens.
	legacyMaxTokens bool
}

// NewOpenAILLMClient creates a new OpenAILLMClient. BaseURL selects a custom endpoint.
func NewOpenAILLMClient(opts Options) (*OpenAILLMClient, error) {
	if opts.APIKey == "" {
		return nil, errors.New("API key for OpenAI not set")
	}

	options := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
	}
	if opts.BaseURL != "" {
		options = append(options, option.WithBaseURL(opts.BaseURL))
	}

	// The v2 SDK uses functional options for configuration.
	c := openai.NewClient(options...)
	return &OpenAILLMClient{client: &c, opts: opts}, nil
}

// Stream sends the conversation to the chat completions endpoint and streams the reply.
func (o *OpenAILLMClient) Stream(ctx context.Context, messages []session.Message, availableTools []tools.Tool, onText TextFunc) (*session.Message, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.opts.Model),
		Messages:    convertMessagesToOpenaiContent(messages),
		Tools:       convertToolsToOpenAITools(availableTools),
		Temperature: openai.Float(o.opts.Temperature),
	}
	if o.legacyMaxTokens {
		params.MaxTokens = openai.Int(o.opts.MaxTokens)
	} else {
		params.MaxCompletionTokens = openai.Int(o.opts.MaxTokens)
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if err := onText(chunk.Choices[0].Delta.Content); err != nil {
				return nil, err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to send message to OpenAI")
	}

	return processOpenaiResponse(&acc.ChatCompletion), nil
}

// processOpenaiResponse converts an OpenAI API response into our internal session.Message format.
func processOpenaiResponse(resp *openai.ChatCompletion) *session.Message {
	msg := &session.Message{Role: session.RoleAssistant}
	if len(resp.Choices) == 0 {
		return msg
	}

	choice := resp.Choices[0].Message
	msg.Content = choice.Content
	for _, tc := range choice.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, session.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: rawArguments([]byte(tc.Function.Arguments)),
		})
	}
	return msg
}

// convertMessagesToOpenaiContent converts our internal message format to OpenAI's.
func convertMessagesToOpenaiContent(messages []session.Message) []openai.ChatCompletionMessageParamUnion {
	var chatMessages []openai.ChatCompletionMessageParamUnion
	for _, msg := range messages {
		switch msg.Role {
		case session.RoleSystem:
			chatMessages = append(chatMessages, openai.SystemMessage(msg.Content))
		case session.RoleAssistant:
			assistantMessage := openai.ChatCompletionMessage{
				Role:    "assistant",
				Content: msg.Content,
			}
			for _, tc := range msg.ToolCalls {
				assistantMessage.ToolCalls = append(assistantMessage.ToolCalls, openai.ChatCompletionMessageToolCallUnion{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageFunctionToolCallFunction{
						Name:      tc.Name,
						Arguments: string(rawArguments(tc.Arguments)),
					},
				})
			}
			chatMessages = append(chatMessages, assistantMessage.ToParam())
		case session.RoleTool:
			chatMessages = append(chatMessages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			chatMessages = append(chatMessages, openai.UserMessage(msg.Content))
		}
	}
	return chatMessages
}

// convertToolsToOpenAITools converts our Tool interface to the OpenAI Tool format.
func convertToolsToOpenAITools(ts []tools.Tool) []openai.ChatCompletionToolUnionParam {
	if len(ts) == 0 {
		return nil
	}
	var openAITools []openai.ChatCompletionToolUnionParam
	for _, t := range ts {
		props, required := tools.SchemaProperties(t.Schema())
		params := openai.FunctionParameters{
			"type":       "object",
			"properties": props,
		}
		if len(required) > 0 {
			params["required"] = required
		}

		openAITools = append(openAITools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        t.Name(),
			Description: openai.String(t.Description()),
			Parameters:  params,
		}))
	}
	return openAITools
}
