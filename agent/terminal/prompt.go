package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/m4xw311/they/errors"
	"golang.org/x/term"
)

// DefaultPasteThreshold is the largest paste, in lines, inserted verbatim.
const DefaultPasteThreshold = 5

// InputKind tells how a prompt read ended.
type InputKind int

const (
	// InputLine is a submitted line.
	InputLine InputKind = iota
	// InputCancelled means the user pressed Ctrl+C at the prompt.
	InputCancelled
	// InputEOF means the input stream ended.
	InputEOF
)

// Input is the result of one prompt read.
type Input struct {
	Kind InputKind
	Text string
}

// LineReader reads one user submission.
type LineReader interface {
	ReadLine(ctx context.Context) (Input, error)
}

// NewLineReader returns an interactive line editor when in is a terminal and
// a plain line reader otherwise.
func NewLineReader(in *os.File, out io.Writer, pasteThreshold int) LineReader {
	if pasteThreshold <= 0 {
		pasteThreshold = DefaultPasteThreshold
	}
	if in != nil && term.IsTerminal(int(in.Fd())) {
		return &teaReader{in: in, out: out, threshold: pasteThreshold}
	}
	if in == nil {
		return newPlainReader(strings.NewReader(""))
	}
	return newPlainReader(in)
}

// teaReader runs a single-line bubbletea editor per read.
type teaReader struct {
	in        io.Reader
	out       io.Writer
	threshold int
}

func (r *teaReader) ReadLine(ctx context.Context) (Input, error) {
	p := tea.NewProgram(newPromptModel(r.threshold),
		tea.WithInput(r.in),
		tea.WithOutput(r.out),
		tea.WithContext(ctx),
		tea.WithoutSignalHandler(),
	)
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return Input{Kind: InputCancelled}, nil
		}
		return Input{}, errors.Wrapf(err, "prompt failed")
	}
	m, ok := final.(promptModel)
	if !ok || !m.done {
		return Input{Kind: InputEOF}, nil
	}
	return m.result, nil
}

// promptModel is the line editor. A paste with more lines than threshold is
// shown as a marker and restored on submit.
type promptModel struct {
	input     textinput.Model
	threshold int

	// pasted holds the retained paste; marker is what stands in for it.
	pasted string
	marker string

	result Input
	done   bool
}

func newPromptModel(threshold int) promptModel {
	in := textinput.New()
	in.Prompt = "> "
	in.PromptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("2"))
	in.Focus()
	return promptModel{input: in, threshold: threshold}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.Paste {
			return m.paste(string(msg.Runes))
		}
		switch msg.Type {
		case tea.KeyEnter, tea.KeyCtrlJ:
			return m.finish(Input{Kind: InputLine, Text: m.expand(m.input.Value())})
		case tea.KeyCtrlC:
			return m.finish(Input{Kind: InputCancelled})
		case tea.KeyCtrlD:
			if m.input.Value() == "" {
				return m.finish(Input{Kind: InputEOF})
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done {
		return m.input.PromptStyle.Render(m.input.Prompt) + m.input.Value() + "\n"
	}
	return m.input.View()
}

func (m promptModel) finish(in Input) (tea.Model, tea.Cmd) {
	m.result = in
	m.done = true
	m.pasted, m.marker = "", ""
	return m, tea.Quit
}

func (m promptModel) paste(data string) (tea.Model, tea.Cmd) {
	data = normalizeNewlines(data)
	n := countLines(data)
	if n <= m.threshold {
		m.pasted, m.marker = "", ""
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(data), Paste: true})
		return m, cmd
	}

	m.pasted = data
	m.marker = pasteMarker(n)
	value := []rune(m.input.Value())
	pos := m.input.Position()
	ins := []rune(m.marker)
	next := make([]rune, 0, len(value)+len(ins))
	next = append(next, value[:pos]...)
	next = append(next, ins...)
	next = append(next, value[pos:]...)
	m.input.SetValue(string(next))
	m.input.SetCursor(pos + len(ins))
	return m, nil
}

// expand replaces the marker of the retained paste, if any, with its content.
// Only the last marker is replaced; an earlier paste with the same line count
// is no longer retained and stays as its marker.
func (m promptModel) expand(text string) string {
	if m.pasted == "" {
		return text
	}
	i := strings.LastIndex(text, m.marker)
	if i < 0 {
		return text
	}
	return text[:i] + m.pasted + text[i+len(m.marker):]
}

func pasteMarker(lines int) string {
	return fmt.Sprintf("[Pasted %d lines]", lines)
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// countLines counts lines the way a text editor would: a trailing newline
// does not start another line.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}

// plainReader reads newline-terminated lines from a non-terminal input.
type plainReader struct {
	lines chan plainLine
	stop  chan struct{}
	once  sync.Once
}

type plainLine struct {
	text string
	err  error
}

func newPlainReader(in io.Reader) *plainReader {
	r := &plainReader{lines: make(chan plainLine), stop: make(chan struct{})}
	go r.scan(bufio.NewReader(in))
	return r
}

func (r *plainReader) scan(br *bufio.Reader) {
	defer close(r.lines)
	for {
		line, err := br.ReadString('\n')
		if line != "" && !r.send(plainLine{text: strings.TrimRight(line, "\r\n")}) {
			return
		}
		if err != nil {
			if err != io.EOF {
				r.send(plainLine{err: err})
			}
			return
		}
	}
}

func (r *plainReader) send(l plainLine) bool {
	select {
	case r.lines <- l:
		return true
	case <-r.stop:
		return false
	}
}

// Close stops delivering lines. A read blocked in the underlying input is
// not interrupted.
func (r *plainReader) Close() error {
	r.once.Do(func() { close(r.stop) })
	return nil
}

func (r *plainReader) ReadLine(ctx context.Context) (Input, error) {
	select {
	case l, ok := <-r.lines:
		if !ok {
			return Input{Kind: InputEOF}, nil
		}
		if l.err != nil {
			return Input{}, errors.Wrapf(l.err, "failed to read input")
		}
		return Input{Kind: InputLine, Text: l.text}, nil
	case <-ctx.Done():
		return Input{Kind: InputCancelled}, nil
	}
}
