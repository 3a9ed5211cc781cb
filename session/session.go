// Package session holds the conversation history exchanged with the model.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a request from the model to run one tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type Message struct {
	Role    string `json:"role"` // "user", "assistant", "tool", "system"
	Content string `json:"content"`
	// Set on assistant messages that request tools.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// Set on tool messages: the call being answered and the tool's name.
	ToolCallID string `json:"tool_call_id,omitempty"`
	Name       string `json:"name,omitempty"`
}

// History is an ordered list of messages. A History value handed to another
// goroutine must not be mutated afterwards; use Clone or With.
type History []Message

// Clone returns an independent copy of h.
func (h History) Clone() History {
	if h == nil {
		return History{}
	}
	out := make(History, len(h))
	for i, m := range h {
		out[i] = m
		if m.ToolCalls != nil {
			out[i].ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
		}
	}
	return out
}

// With returns a copy of h with msgs appended.
func (h History) With(msgs ...Message) History {
	out := make(History, 0, len(h)+len(msgs))
	out = append(out, h.Clone()...)
	return append(out, msgs...)
}

// UserMessage returns a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// ToolResult returns the tool-role message answering call.
func ToolResult(call ToolCall, result string) Message {
	return Message{Role: RoleTool, Content: result, ToolCallID: call.ID, Name: call.Name}
}

// Session is one interactive conversation. It lives in memory only.
type Session struct {
	Name      string    `json:"name"`
	StartedAt time.Time `json:"started_at"`
	Messages  History   `json:"messages"`
}

// New creates a new empty session.
func New(name string) *Session {
	return &Session{
		Name:      name,
		StartedAt: time.Now(),
		Messages:  History{},
	}
}

// AddMessage appends a message to the session history.
func (s *Session) AddMessage(msg Message) {
	s.Messages = append(s.Messages, msg)
}

// Replace swaps the history for h, typically the result of a completed turn.
func (s *Session) Replace(h History) {
	s.Messages = h.Clone()
}

// Reset drops every message.
func (s *Session) Reset() {
	s.Messages = History{}
}

// Snapshot returns a copy of the history that is safe to hand to a turn.
func (s *Session) Snapshot() History {
	return s.Messages.Clone()
}

// DefaultName derives a session name from the working directory and the time.
func DefaultName(now time.Time) string {
	wd, err := os.Getwd()
	if err != nil {
		wd = "they"
	}
	return fmt.Sprintf("%s_%s", filepath.Base(wd), now.Format("2006-01-02_15-04-05"))
}
