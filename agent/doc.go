// Package agent runs conversation turns against a language model, executing
// the tools the model asks for until it produces a final answer.
//
// # Turns
//
// A turn starts from the conversation history, which must end with the
// user's new message, and repeats two steps: stream one model response, then
// run every tool call that response requested and append the results. The
// turn ends when a response requests no tools, when the model call fails, or
// when the iteration limit is reached ([ErrMaxIterations]).
//
//	run := a.RunStreamed(ctx, history.With(session.UserMessage(text)))
//	defer run.Close()
//	for ev := range run.Events() {
//	    switch ev := ev.(type) {
//	    case agent.TextDelta:
//	        fmt.Print(ev.Text)
//	    case agent.ToolInvoked:
//	        fmt.Printf("\n[%s]\n", ev.Name)
//	    }
//	}
//	if err := run.Err(); err != nil {
//	    // the caller's history is untouched
//	}
//	history = run.History()
//
// # Events
//
// Events arrive in the order they happen: [TextDelta] for each text fragment,
// [ToolInvoked] when a tool call is issued and [ToolOutput] once it returns.
// The channel is unbuffered, so a consumer that stops reading stalls the turn
// until [Run.Close] cancels it.
//
// # History
//
// The turn never mutates the caller's history. [Run.History] returns a new
// history holding the caller's messages followed by every assistant and tool
// message of the turn. The system prompt is sent with each request but is
// not part of the history.
//
// # Subpackages
//
// agent/terminal: the interactive terminal session that reads user input,
// renders turns as they stream and lets the user interrupt them.
package agent
