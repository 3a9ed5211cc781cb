package terminal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/m4xw311/they/agent"
	"github.com/stretchr/testify/assert"
)

func TestSummarizeArgs(t *testing.T) {
	tests := []struct {
		name string
		args string
		want string
	}{
		{"command first", `{"command":"ls -la","file_path":"x"}`, "ls -la"},
		{"file path", `{"file_path":"/tmp/a.txt","content":"..."}`, "/tmp/a.txt"},
		{"path", `{"path":"src"}`, "src"},
		{"multiline command", `{"command":"cd x\nmake"}`, "cd x make"},
		{"other keys", `{"query":"weather"}`, `{"query":"weather"}`},
		{"empty object", `{}`, ""},
		{"not json", `oops`, "oops"},
		{"number value", `{"path":42}`, "42"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, summarizeArgs(tt.args))
		})
	}
}

func TestSummarizeArgsTruncates(t *testing.T) {
	got := summarizeArgs(`{"command":"` + strings.Repeat("é", 300) + `"}`)
	assert.Equal(t, strings.Repeat("é", maxSummaryLen)+"...", got)
}

func TestRendererEvents(t *testing.T) {
	var out bytes.Buffer
	r := newRenderer(&out)

	r.event(agent.TextDelta{Text: "Let me look"})
	r.event(agent.ToolInvoked{Name: "execute_command", Arguments: `{"command":"ls"}`})
	r.event(agent.ToolOutput{Name: "execute_command", Result: "a\nb"})
	r.event(agent.TextDelta{Text: "Done"})
	r.interrupted()

	assert.Equal(t, "Let me look\n  [execute_command] ls\nDone\n(interrupted)\n", out.String())
}

func TestRendererFailure(t *testing.T) {
	var out bytes.Buffer
	r := newRenderer(&out)
	r.failure(errorReport{Primary: "boom", RootCause: "x.Error: deep", Hint: toolUseHint})

	assert.Equal(t, "Error: boom\n  x.Error: deep\n"+toolUseHint+"\n", out.String())
}
