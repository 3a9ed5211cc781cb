package session

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryCloneIsIndependent(t *testing.T) {
	h := History{
		UserMessage("hi"),
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "1", Name: "read_file", Arguments: json.RawMessage(`{}`)}}},
	}
	c := h.Clone()
	c[0].Content = "changed"
	c[1].ToolCalls[0].Name = "changed"

	assert.Equal(t, "hi", h[0].Content)
	assert.Equal(t, "read_file", h[1].ToolCalls[0].Name)
}

func TestHistoryWith(t *testing.T) {
	h := History{UserMessage("a")}
	next := h.With(UserMessage("b"), UserMessage("c"))

	assert.Len(t, h, 1)
	require.Len(t, next, 3)
	assert.Equal(t, "c", next[2].Content)
}

func TestToolResult(t *testing.T) {
	m := ToolResult(ToolCall{ID: "call_1", Name: "execute_command"}, "ok")
	assert.Equal(t, RoleTool, m.Role)
	assert.Equal(t, "call_1", m.ToolCallID)
	assert.Equal(t, "execute_command", m.Name)
	assert.Equal(t, "ok", m.Content)
}

func TestSessionReplaceAndReset(t *testing.T) {
	s := New("test")
	s.AddMessage(UserMessage("first"))

	snap := s.Snapshot()
	s.AddMessage(UserMessage("second"))
	assert.Len(t, snap, 1)

	turn := History{UserMessage("x"), {Role: RoleAssistant, Content: "y"}}
	s.Replace(turn)
	turn[0].Content = "mutated"
	assert.Equal(t, "x", s.Messages[0].Content)

	s.Reset()
	assert.Empty(t, s.Messages)
}

func TestDefaultName(t *testing.T) {
	name := DefaultName(time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC))
	assert.True(t, strings.HasSuffix(name, "_2024-03-01_09-05-07"), name)
}
