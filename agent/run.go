package agent

import (
	"context"

	"github.com/m4xw311/they/session"
)

// Event is one unit of streamed turn output.
type Event interface {
	isEvent()
}

// TextDelta carries a fragment of assistant text.
type TextDelta struct {
	Text string
}

// ToolInvoked reports that the model issued a tool call, before it runs.
type ToolInvoked struct {
	CallID    string
	Name      string
	Arguments string
}

// ToolOutput reports the result of a tool call.
type ToolOutput struct {
	CallID string
	Name   string
	Result string
}

func (TextDelta) isEvent()   {}
func (ToolInvoked) isEvent() {}
func (ToolOutput) isEvent()  {}

// Run is one streamed turn. Events must be drained, or the run closed, for
// its goroutine to finish.
type Run struct {
	events chan Event
	done   chan struct{}
	cancel context.CancelFunc

	// Written by the producer before done is closed.
	history session.History
	err     error
}

// Events yields the turn's events in order. The channel is closed when the
// turn finishes, fails or is cancelled.
func (r *Run) Events() <-chan Event {
	return r.events
}

// Err waits for the turn to finish and returns its failure, if any.
func (r *Run) Err() error {
	<-r.done
	return r.err
}

// History waits for the turn to finish and returns the complete conversation
// including the turn's assistant and tool messages. It is nil when the turn failed.
func (r *Run) History() session.History {
	<-r.done
	return r.history
}

// Close cancels the turn and waits for it to stop. It is safe to call more than once.
func (r *Run) Close() {
	r.cancel()
	<-r.done
}

func (r *Run) emitter(ctx context.Context) func(Event) error {
	return func(ev Event) error {
		select {
		case r.events <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
