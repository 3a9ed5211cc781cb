package terminal

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/m4xw311/they/agent"
)

const maxSummaryLen = 120

// summaryKeys are the argument fields shown for a tool call, in priority order.
var summaryKeys = []string{"command", "file_path", "path"}

// renderer writes everything the terminal shows besides the prompt itself.
type renderer struct {
	out io.Writer

	// midLine is true when the last byte written was not a newline.
	midLine bool

	panel  lipgloss.Style
	dim    lipgloss.Style
	errSty lipgloss.Style
}

func newRenderer(out io.Writer) *renderer {
	r := lipgloss.NewRenderer(out)
	return &renderer{
		out: out,
		panel: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("4")).
			Padding(0, 1),
		dim:    r.NewStyle().Faint(true),
		errSty: r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
	}
}

func (r *renderer) write(s string) {
	if s == "" {
		return
	}
	_, _ = io.WriteString(r.out, s)
	r.midLine = !strings.HasSuffix(s, "\n")
}

func (r *renderer) println(s string) {
	r.write(s + "\n")
}

// newline ends a partially written line, if any.
func (r *renderer) newline() {
	if r.midLine {
		r.write("\n")
	}
}

func (r *renderer) welcome(sessionName string) {
	text := "they await. /quit to leave."
	if sessionName != "" {
		text += "\n" + r.dim.Render("session "+sessionName)
	}
	r.println(r.panel.Render(text))
}

// event renders one streamed turn event.
func (r *renderer) event(ev agent.Event) {
	switch e := ev.(type) {
	case agent.TextDelta:
		r.write(e.Text)
	case agent.ToolInvoked:
		r.write("\n")
		label := fmt.Sprintf("  [%s]", e.Name)
		if s := summarizeArgs(e.Arguments); s != "" {
			label += " " + s
		}
		r.println(r.dim.Render(label))
	}
}

func (r *renderer) interrupted() {
	r.newline()
	r.println(r.dim.Render("(interrupted)"))
}

func (r *renderer) failure(rep errorReport) {
	r.newline()
	r.println(r.errSty.Render("Error: " + rep.Primary))
	if rep.RootCause != "" {
		r.println(r.dim.Render("  " + rep.RootCause))
	}
	if rep.Hint != "" {
		r.println(r.dim.Render(rep.Hint))
	}
}

// summarizeArgs picks a one-line description of a tool call's arguments.
func summarizeArgs(raw string) string {
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		for _, key := range summaryKeys {
			v, ok := args[key]
			if !ok || v == nil {
				continue
			}
			s, ok := v.(string)
			if !ok {
				s = fmt.Sprint(v)
			}
			return truncateRunes(oneLine(s), maxSummaryLen)
		}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "{}" || raw == "null" {
		return ""
	}
	return truncateRunes(oneLine(raw), maxSummaryLen)
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

func oneLine(s string) string {
	return strings.TrimSpace(lineBreaks.Replace(s))
}
