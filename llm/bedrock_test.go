package llm

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/m4xw311/they/session"
	"github.com/m4xw311/they/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockTool is a simple mock tool for testing
type MockTool struct {
	name        string
	description string
}

func (m *MockTool) Name() string {
	return m.name
}

func (m *MockTool) Description() string {
	return m.description
}

func (m *MockTool) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"file_path":{"type":"string","description":"Path"}},"required":["file_path"]}`)
}

func (m *MockTool) Execute(ctx context.Context, args json.RawMessage) string {
	return "mock result"
}

func toolTurn() []session.Message {
	call := session.ToolCall{ID: "call_1", Name: "read_file", Arguments: json.RawMessage(`{"file_path":"a.txt"}`)}
	call2 := session.ToolCall{ID: "call_2", Name: "read_file", Arguments: json.RawMessage(`{"file_path":"b.txt"}`)}
	return []session.Message{
		{Role: session.RoleUser, Content: "read both"},
		{Role: session.RoleAssistant, Content: "Reading.", ToolCalls: []session.ToolCall{call, call2}},
		session.ToolResult(call, "A"),
		session.ToolResult(call2, "B"),
		{Role: session.RoleAssistant, Content: "Done."},
	}
}

func TestConvertMessagesToAnthropicFormat(t *testing.T) {
	result := convertMessagesToAnthropicFormat(toolTurn())
	require.Len(t, result, 4)

	assert.Equal(t, "user", result[0]["role"])
	assert.Equal(t, "assistant", result[1]["role"])

	content := result[1]["content"].([]map[string]interface{})
	require.Len(t, content, 3)
	assert.Equal(t, "text", content[0]["type"])
	assert.Equal(t, "tool_use", content[1]["type"])
	assert.Equal(t, "call_1", content[1]["id"])

	assert.Equal(t, "user", result[2]["role"], "tool results travel in a user message")
	results := result[2]["content"].([]map[string]interface{})
	require.Len(t, results, 2)
	assert.Equal(t, "call_2", results[1]["tool_use_id"])
	assert.Equal(t, "B", results[1]["content"])
}

func TestCreateAnthropicRequest(t *testing.T) {
	body, err := createAnthropicRequest(
		convertMessagesToAnthropicFormat([]session.Message{session.UserMessage("hi")}),
		"be brief",
		[]tools.Tool{&MockTool{name: "read_file", description: "Reads"}},
		Options{MaxTokens: 1024, Temperature: 0.5},
	)
	require.NoError(t, err)

	var req map[string]any
	require.NoError(t, json.Unmarshal(body, &req))
	assert.Equal(t, bedrockAnthropicVersion, req["anthropic_version"])
	assert.Equal(t, float64(1024), req["max_tokens"])
	assert.Equal(t, 0.5, req["temperature"])
	assert.Equal(t, "be brief", req["system"])

	ts := req["tools"].([]any)
	require.Len(t, ts, 1)
	schema := ts[0].(map[string]any)["input_schema"].(map[string]any)
	assert.Equal(t, []any{"file_path"}, schema["required"])
}

func TestProcessBedrockResponse(t *testing.T) {
	body := []byte(`{"content":[{"type":"text","text":"Let me look."},{"type":"tool_use","id":"toolu_9","name":"read_file","input":{"file_path":"x"}}]}`)
	msg, err := processBedrockResponse(body)
	require.NoError(t, err)

	assert.Equal(t, session.RoleAssistant, msg.Role)
	assert.Equal(t, "Let me look.", msg.Content)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "toolu_9", msg.ToolCalls[0].ID)
	assert.JSONEq(t, `{"file_path":"x"}`, string(msg.ToolCalls[0].Arguments))

	_, err = processBedrockResponse([]byte(`{"error":{"message":"denied"}}`))
	assert.Error(t, err)
}
