// Package terminal is the interactive front end of they.
//
// A Terminal reads user input with a single-line editor, runs each
// submission as an agent turn and renders the streamed events as they
// arrive. While a turn runs, pressing Esc twice in quick succession (or
// sending SIGINT) cancels it; the conversation is then left exactly as it
// was before the turn.
//
// Large pastes are shown in the editor as a short "[Pasted N lines]" marker
// and expanded back to the full text when the line is submitted.
//
// Lines starting with "/" are commands:
//
//	/help   list commands
//	/model  show the provider and model in use
//	/clear  start a new conversation
//	/quit   leave
//	/exit   leave
package terminal
