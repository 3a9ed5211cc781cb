package llm

import (
	"context"
	"encoding/json"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"github.com/m4xw311/they/errors"
	"github.com/m4xw311/they/session"
	"github.com/m4xw311/they/tools"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiLLMClient is a client for the Google Gemini API.
type GeminiLLMClient struct {
	client *genai.Client
	opts   Options
}

// NewGeminiLLMClient creates a new GeminiLLMClient.
func NewGeminiLLMClient(ctx context.Context, opts Options) (*GeminiLLMClient, error) {
	if opts.APIKey == "" {
		return nil, errors.New("API key for Gemini not set")
	}

	clientOpts := []option.ClientOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(opts.BaseURL))
	}
	client, err := genai.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create genai client")
	}
	return &GeminiLLMClient{client: client, opts: opts}, nil
}

// Close releases the underlying connection.
func (g *GeminiLLMClient) Close() error {
	return g.client.Close()
}

// Stream sends the conversation to the Gemini API and streams the reply.
func (g *GeminiLLMClient) Stream(ctx context.Context, messages []session.Message, availableTools []tools.Tool, onText TextFunc) (*session.Message, error) {
	systemPrompt, rest := splitSystem(messages)
	history := convertMessagesToGeminiContent(rest)
	if len(history) == 0 {
		return nil, errors.New("no messages to send to Gemini")
	}

	// Tools and the system prompt are set on a fresh model for every request.
	model := g.client.GenerativeModel(g.opts.Model)
	model.SetTemperature(float32(g.opts.Temperature))
	model.SetMaxOutputTokens(int32(g.opts.MaxTokens))
	model.Tools = convertToolsToGeminiTools(availableTools)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}

	// The last message is the new prompt.
	last := history[len(history)-1]
	chatSession := model.StartChat()
	chatSession.History = history[:len(history)-1]

	msg := &session.Message{Role: session.RoleAssistant}
	iter := chatSession.SendMessageStream(ctx, last.Parts...)
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to send message to Gemini")
		}
		if err := processGeminiChunk(resp, msg, onText); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// processGeminiChunk folds one streamed response into msg.
func processGeminiChunk(resp *genai.GenerateContentResponse, msg *session.Message, onText TextFunc) error {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			if v == "" {
				continue
			}
			msg.Content += string(v)
			if err := onText(string(v)); err != nil {
				return err
			}
		case genai.FunctionCall:
			args, err := json.Marshal(v.Args)
			if err != nil {
				return errors.Wrapf(err, "failed to encode arguments for %s", v.Name)
			}
			// Gemini does not assign call ids.
			msg.ToolCalls = append(msg.ToolCalls, session.ToolCall{
				ID:        "call_" + uuid.NewString(),
				Name:      v.Name,
				Arguments: rawArguments(args),
			})
		}
	}
	return nil
}

// convertMessagesToGeminiContent converts our internal message format to
// Gemini's. Consecutive tool results become one user turn of function responses.
func convertMessagesToGeminiContent(messages []session.Message) []*genai.Content {
	var contents []*genai.Content
	var pending []genai.Part

	flush := func() {
		if len(pending) > 0 {
			contents = append(contents, &genai.Content{Role: "user", Parts: pending})
			pending = nil
		}
	}

	for _, msg := range messages {
		if msg.Role == session.RoleTool {
			pending = append(pending, genai.FunctionResponse{
				Name:     msg.Name,
				Response: map[string]any{"result": msg.Content},
			})
			continue
		}
		flush()

		switch msg.Role {
		case session.RoleAssistant:
			var parts []genai.Part
			if msg.Content != "" {
				parts = append(parts, genai.Text(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				if err := json.Unmarshal(rawArguments(tc.Arguments), &args); err != nil {
					args = map[string]any{}
				}
				parts = append(parts, genai.FunctionCall{Name: tc.Name, Args: args})
			}
			if len(parts) > 0 {
				contents = append(contents, &genai.Content{Role: "model", Parts: parts})
			}
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	flush()
	return contents
}

// convertToolsToGeminiTools converts our Tool interface to Gemini's FunctionDeclaration format.
func convertToolsToGeminiTools(ts []tools.Tool) []*genai.Tool {
	if len(ts) == 0 {
		return nil
	}
	var funcDecls []*genai.FunctionDeclaration
	for _, tool := range ts {
		var schema map[string]any
		if err := json.Unmarshal(tool.Schema(), &schema); err != nil {
			schema = map[string]any{"type": "object"}
		}
		funcDecls = append(funcDecls, &genai.FunctionDeclaration{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  toGeminiSchema(schema),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: funcDecls}}
}

// toGeminiSchema maps the JSON Schema subset Gemini understands.
func toGeminiSchema(s map[string]any) *genai.Schema {
	out := &genai.Schema{Type: geminiType(s["type"])}
	if d, ok := s["description"].(string); ok {
		out.Description = d
	}
	if enum, ok := s["enum"].([]any); ok {
		for _, e := range enum {
			if str, ok := e.(string); ok {
				out.Enum = append(out.Enum, str)
			}
		}
	}
	if items, ok := s["items"].(map[string]any); ok {
		out.Items = toGeminiSchema(items)
	}
	if props, ok := s["properties"].(map[string]any); ok {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]any); ok {
				out.Properties[name] = toGeminiSchema(pm)
			}
		}
	}
	if req, ok := s["required"].([]any); ok {
		for _, r := range req {
			if str, ok := r.(string); ok {
				out.Required = append(out.Required, str)
			}
		}
	}
	return out
}

func geminiType(t any) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	}
	return genai.TypeObject
}
