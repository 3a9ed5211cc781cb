package terminal

import (
	"fmt"
	"strings"
)

type commandResult int

const (
	commandHandled commandResult = iota
	commandQuit
	commandClear
)

const helpText = `Commands:
  /help   show this message
  /model  show current model
  /clear  clear conversation history
  /quit   exit
  /exit   exit`

// command runs a slash command. Only the first word is significant.
func (t *Terminal) command(line string) commandResult {
	name := strings.ToLower(strings.Fields(line)[0])
	switch name {
	case "/quit", "/exit":
		t.render.println("Bye!")
		return commandQuit
	case "/clear":
		t.render.println("Conversation cleared.")
		return commandClear
	case "/help":
		t.render.println(helpText)
	case "/model":
		t.render.println(fmt.Sprintf("Provider: %s", t.info.Provider))
		t.render.println(fmt.Sprintf("Model: %s", t.info.Model))
		t.render.println(t.render.dim.Render(fmt.Sprintf("temperature=%g  max_tokens=%d", t.info.Temperature, t.info.MaxTokens)))
	default:
		t.render.println(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", name))
	}
	return commandHandled
}
