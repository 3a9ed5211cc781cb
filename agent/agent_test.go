package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m4xw311/they/config"
	"github.com/m4xw311/they/llm"
	"github.com/m4xw311/they/session"
	"github.com/m4xw311/they/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// google.golang.org/api pulls in opencensus, whose view worker starts in init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type reply struct {
	deltas []string
	msg    session.Message
	err    error
	// hang blocks until the request context is cancelled.
	hang bool
}

type scriptedClient struct {
	mu      sync.Mutex
	replies []reply
	seen    [][]session.Message
}

func (c *scriptedClient) Stream(ctx context.Context, messages []session.Message, _ []tools.Tool, onText llm.TextFunc) (*session.Message, error) {
	c.mu.Lock()
	c.seen = append(c.seen, append([]session.Message(nil), messages...))
	if len(c.replies) == 0 {
		c.mu.Unlock()
		return nil, errors.New("script exhausted")
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	c.mu.Unlock()

	for _, d := range r.deltas {
		if err := onText(d); err != nil {
			return nil, err
		}
	}
	if r.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.err != nil {
		return nil, r.err
	}
	msg := r.msg
	return &msg, nil
}

func newTestAgent(t *testing.T, replies ...reply) (*Agent, *scriptedClient) {
	t.Helper()
	client := &scriptedClient{replies: replies}
	return New(client, tools.NewToolRegistry(config.Default()), WithSystemPrompt("sys")), client
}

func drain(run *Run) []Event {
	var events []Event
	for ev := range run.Events() {
		events = append(events, ev)
	}
	return events
}

func TestRunStreamedTextOnly(t *testing.T) {
	a, client := newTestAgent(t, reply{
		deltas: []string{"Hel", "lo"},
		msg:    session.Message{Role: session.RoleAssistant, Content: "Hello"},
	})

	history := session.History{session.UserMessage("hi")}
	run := a.RunStreamed(context.Background(), history)
	events := drain(run)

	require.NoError(t, run.Err())
	assert.Equal(t, []Event{TextDelta{Text: "Hel"}, TextDelta{Text: "lo"}}, events)

	got := run.History()
	require.Len(t, got, 2)
	assert.Equal(t, "Hello", got[1].Content)
	assert.Len(t, history, 1, "caller history untouched")

	require.Len(t, client.seen, 1)
	assert.Equal(t, session.RoleSystem, client.seen[0][0].Role)
	assert.Equal(t, "sys", client.seen[0][0].Content)
}

func TestRunStreamedExecutesTools(t *testing.T) {
	args, err := json.Marshal(map[string]any{"command": "echo tool-ran"})
	require.NoError(t, err)
	call := session.ToolCall{ID: "c1", Name: "execute_command", Arguments: args}

	a, client := newTestAgent(t,
		reply{deltas: []string{"Running."}, msg: session.Message{Content: "Running.", ToolCalls: []session.ToolCall{call}}},
		reply{deltas: []string{"Done."}, msg: session.Message{Content: "Done."}},
	)

	run := a.RunStreamed(context.Background(), session.History{session.UserMessage("go")})
	events := drain(run)
	require.NoError(t, run.Err())

	require.Len(t, events, 4)
	assert.Equal(t, TextDelta{Text: "Running."}, events[0])
	assert.Equal(t, ToolInvoked{CallID: "c1", Name: "execute_command", Arguments: string(args)}, events[1])
	out, ok := events[2].(ToolOutput)
	require.True(t, ok)
	assert.Equal(t, "tool-ran\n", out.Result)
	assert.Equal(t, TextDelta{Text: "Done."}, events[3])

	h := run.History()
	require.Len(t, h, 4)
	assert.Equal(t, session.RoleAssistant, h[1].Role)
	assert.Equal(t, session.RoleTool, h[2].Role)
	assert.Equal(t, "c1", h[2].ToolCallID)
	assert.Equal(t, "Done.", h[3].Content)

	require.Len(t, client.seen, 2)
	assert.Len(t, client.seen[1], 4, "system prompt plus three messages")
}

func TestRunStreamedModelError(t *testing.T) {
	boom := errors.New("boom")
	a, _ := newTestAgent(t, reply{deltas: []string{"partial"}, err: boom})

	run := a.RunStreamed(context.Background(), session.History{session.UserMessage("hi")})
	events := drain(run)

	assert.Len(t, events, 1)
	assert.ErrorIs(t, run.Err(), boom)
	assert.Nil(t, run.History())
}

func TestRunStreamedMaxIterations(t *testing.T) {
	call := session.ToolCall{ID: "c", Name: "read_file", Arguments: json.RawMessage(`{"file_path":"/nonexistent"}`)}
	loop := reply{msg: session.Message{ToolCalls: []session.ToolCall{call}}}
	client := &scriptedClient{replies: []reply{loop, loop, loop}}
	a := New(client, tools.NewToolRegistry(config.Default()), WithMaxIterations(2))

	run := a.RunStreamed(context.Background(), session.History{session.UserMessage("hi")})
	drain(run)
	assert.ErrorIs(t, run.Err(), ErrMaxIterations)
	assert.Len(t, client.seen, 2)
}

func TestRunCloseStopsProducer(t *testing.T) {
	a, _ := newTestAgent(t, reply{deltas: []string{"one", "two", "three"}, hang: true})

	run := a.RunStreamed(context.Background(), session.History{session.UserMessage("hi")})
	first := <-run.Events()
	assert.Equal(t, TextDelta{Text: "one"}, first)

	done := make(chan struct{})
	go func() {
		run.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return")
	}
	assert.ErrorIs(t, run.Err(), context.Canceled)
	run.Close()
}

func TestToolsExposesRegistry(t *testing.T) {
	a, _ := newTestAgent(t)
	assert.Len(t, a.Tools(), 4)
}
