package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/m4xw311/they/errors"
	"github.com/m4xw311/they/session"
	"github.com/m4xw311/they/tools"
)

const bedrockAnthropicVersion = "bedrock-2023-05-31"

// BedrockLLMClient is a client for the Anthropic models on AWS Bedrock.
// Bedrock answers in one piece, so the whole text is delivered as a single fragment.
type BedrockLLMClient struct {
	client  *bedrockruntime.Client
	opts    Options
	modelID string
}

// NewBedrockLLMClient creates a new BedrockLLMClient.
// It requires AWS credentials to be configured in the environment.
func NewBedrockLLMClient(ctx context.Context, opts Options) (*BedrockLLMClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load AWS config")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	// A custom endpoint is useful for testing.
	endpoint := opts.BaseURL
	if endpoint == "" {
		endpoint = os.Getenv("BEDROCK_ENDPOINT_URL")
	}
	client := bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &BedrockLLMClient{
		client:  client,
		opts:    opts,
		modelID: opts.Model,
	}, nil
}

// Stream sends a chat request to the Anthropic model via AWS Bedrock.
func (b *BedrockLLMClient) Stream(ctx context.Context, messages []session.Message, availableTools []tools.Tool, onText TextFunc) (*session.Message, error) {
	systemPrompt, rest := splitSystem(messages)

	requestBody, err := createAnthropicRequest(convertMessagesToAnthropicFormat(rest), systemPrompt, availableTools, b.opts)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create Anthropic request")
	}

	resp, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to invoke Bedrock model")
	}

	msg, err := processBedrockResponse(resp.Body)
	if err != nil {
		return nil, err
	}
	if msg.Content != "" {
		if err := onText(msg.Content); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// convertMessagesToAnthropicFormat converts our internal message format to
// the Anthropic JSON body Bedrock expects. Consecutive tool results share one
// user message.
func convertMessagesToAnthropicFormat(messages []session.Message) []map[string]interface{} {
	var out []map[string]interface{}
	var results []map[string]interface{}

	flush := func() {
		if len(results) > 0 {
			out = append(out, map[string]interface{}{"role": "user", "content": results})
			results = nil
		}
	}

	for _, msg := range messages {
		if msg.Role == session.RoleTool {
			results = append(results, map[string]interface{}{
				"type":        "tool_result",
				"tool_use_id": msg.ToolCallID,
				"content":     msg.Content,
			})
			continue
		}
		flush()

		switch msg.Role {
		case session.RoleUser:
			out = append(out, map[string]interface{}{
				"role": "user",
				"content": []map[string]interface{}{
					{"type": "text", "text": msg.Content},
				},
			})
		case session.RoleAssistant:
			var content []map[string]interface{}
			if msg.Content != "" {
				content = append(content, map[string]interface{}{"type": "text", "text": msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				content = append(content, map[string]interface{}{
					"type":  "tool_use",
					"id":    tc.ID,
					"name":  tc.Name,
					"input": rawArguments(tc.Arguments),
				})
			}
			if len(content) > 0 {
				out = append(out, map[string]interface{}{"role": "assistant", "content": content})
			}
		}
	}
	flush()
	return out
}

// createAnthropicRequest creates the request body for Anthropic models on Bedrock.
func createAnthropicRequest(messages []map[string]interface{}, systemPrompt string, availableTools []tools.Tool, opts Options) ([]byte, error) {
	request := map[string]interface{}{
		"anthropic_version": bedrockAnthropicVersion,
		"max_tokens":        opts.MaxTokens,
		"temperature":       opts.Temperature,
		"messages":          messages,
	}

	if systemPrompt != "" {
		request["system"] = systemPrompt
	}

	if len(availableTools) > 0 {
		var ts []map[string]interface{}
		for _, tool := range availableTools {
			ts = append(ts, map[string]interface{}{
				"name":         tool.Name(),
				"description":  tool.Description(),
				"input_schema": tool.Schema(),
			})
		}
		request["tools"] = ts
	}

	return json.Marshal(request)
}

type bedrockResponse struct {
	Content []struct {
		Type  string          `json:"type"`
		Text  string          `json:"text"`
		ID    string          `json:"id"`
		Name  string          `json:"name"`
		Input json.RawMessage `json:"input"`
	} `json:"content"`
	Error json.RawMessage `json:"error"`
}

// processBedrockResponse converts a Bedrock API response into our internal session.Message format.
func processBedrockResponse(body []byte) (*session.Message, error) {
	var response bedrockResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal Bedrock response")
	}
	if len(response.Error) > 0 && string(response.Error) != "null" {
		return nil, errors.New("Bedrock API error: %s", string(body))
	}

	msg := &session.Message{Role: session.RoleAssistant}
	for i, item := range response.Content {
		switch item.Type {
		case "text":
			msg.Content += item.Text
		case "tool_use":
			id := item.ID
			if id == "" {
				id = fmt.Sprintf("call_%d_%s", i, item.Name)
			}
			msg.ToolCalls = append(msg.ToolCalls, session.ToolCall{
				ID:        id,
				Name:      item.Name,
				Arguments: rawArguments(item.Input),
			})
		}
	}
	return msg, nil
}
