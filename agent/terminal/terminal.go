package terminal

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/m4xw311/they/agent"
	"github.com/m4xw311/they/errors"
	"github.com/m4xw311/they/session"
	"go.uber.org/zap"
)

// ModelInfo is what /model reports.
type ModelInfo struct {
	Provider    string
	Model       string
	Temperature float64
	MaxTokens   int64
}

// watcher arms a cancel watch for the duration of one turn.
type watcher interface {
	Watch() *Watch
}

// Terminal is the interactive session loop.
type Terminal struct {
	agent   *agent.Agent
	session *session.Session
	info    ModelInfo
	logger  *zap.Logger

	in             *os.File
	out            io.Writer
	pasteThreshold int

	reader  LineReader
	monitor watcher
	render  *renderer

	// interrupts subscribes to SIGINT until the returned stop is called.
	interrupts func() (<-chan os.Signal, func())
}

// Option configures a Terminal.
type Option func(*Terminal)

// WithInput sets the terminal input. Defaults to os.Stdin.
func WithInput(in *os.File) Option {
	return func(t *Terminal) { t.in = in }
}

// WithOutput sets where the session is rendered. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(t *Terminal) { t.out = w }
}

// WithLineReader replaces the prompt reader built from the input.
func WithLineReader(r LineReader) Option {
	return func(t *Terminal) { t.reader = r }
}

// WithModelInfo sets what /model reports.
func WithModelInfo(info ModelInfo) Option {
	return func(t *Terminal) { t.info = info }
}

// WithPasteThreshold sets the largest paste, in lines, inserted verbatim.
func WithPasteThreshold(n int) Option {
	return func(t *Terminal) { t.pasteThreshold = n }
}

// WithSession sets the conversation to continue.
func WithSession(s *session.Session) Option {
	return func(t *Terminal) { t.session = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Terminal) { t.logger = l }
}

// New creates a Terminal driving a.
func New(a *agent.Agent, opts ...Option) *Terminal {
	t := &Terminal{
		agent:          a,
		in:             os.Stdin,
		out:            os.Stdout,
		pasteThreshold: DefaultPasteThreshold,
		logger:         zap.NewNop(),
		interrupts:     osInterrupts,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.session == nil {
		t.session = session.New("")
	}
	if t.reader == nil {
		t.reader = NewLineReader(t.in, t.out, t.pasteThreshold)
	}
	if t.monitor == nil {
		t.monitor = NewMonitor(t.in, t.logger)
	}
	t.render = newRenderer(t.out)
	return t
}

// Session returns the conversation the terminal is driving.
func (t *Terminal) Session() *session.Session {
	return t.session
}

// Run shows the welcome panel, runs initialPrompt as the first turn when it
// is not empty, then reads and handles input until the user leaves or the
// input ends.
func (t *Terminal) Run(ctx context.Context, initialPrompt string) error {
	if c, ok := t.reader.(io.Closer); ok {
		defer c.Close()
	}

	t.render.welcome(t.session.Name)
	if text := strings.TrimSpace(initialPrompt); text != "" {
		t.turn(ctx, text)
	}

	for {
		t.render.newline()
		t.render.println("")
		in, err := t.read(ctx)
		if err != nil {
			return err
		}
		if in.Kind != InputLine {
			t.render.newline()
			t.render.println("Bye!")
			return nil
		}

		text := strings.TrimSpace(in.Text)
		if text == "" {
			continue
		}
		if strings.HasPrefix(text, "/") {
			switch t.command(text) {
			case commandQuit:
				return nil
			case commandClear:
				t.session.Reset()
			}
			continue
		}
		t.turn(ctx, text)
	}
}

// read waits for one submission. SIGINT while waiting counts as Ctrl+C.
func (t *Terminal) read(ctx context.Context) (Input, error) {
	if err := ctx.Err(); err != nil {
		return Input{Kind: InputEOF}, nil
	}
	sigs, stop := t.interrupts()
	defer stop()

	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	interrupted := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			close(interrupted)
			cancel()
		case <-readCtx.Done():
		}
	}()

	in, err := t.reader.ReadLine(readCtx)
	cancel()
	select {
	case <-interrupted:
		return Input{Kind: InputCancelled}, nil
	default:
	}
	if ctx.Err() != nil {
		return Input{Kind: InputEOF}, nil
	}
	return in, err
}

// turn runs one model turn for text. The conversation is only updated when
// the turn completes; a cancelled or failed turn leaves it as it was.
func (t *Terminal) turn(ctx context.Context, text string) {
	history := t.session.Snapshot().With(session.UserMessage(text))
	t.logger.Debug("turn started", zap.Int("messages", len(history)))

	sigs, stop := t.interrupts()
	defer stop()
	watch := t.monitor.Watch()
	defer watch.Close()

	run := t.agent.RunStreamed(ctx, history)
	defer run.Close()

	if !t.stream(run, watch, sigs) {
		run.Close()
		watch.Close()
		t.render.interrupted()
		t.logger.Debug("turn cancelled by user")
		return
	}
	watch.Close()

	if err := run.Err(); err != nil {
		t.logger.Debug("turn failed", zap.Error(err), zap.NamedError("root", errors.Root(err)))
		t.render.failure(describeError(err))
		return
	}
	t.render.newline()
	t.session.Replace(run.History())
	t.logger.Debug("turn finished", zap.Int("messages", len(t.session.Messages)))
}

// stream renders run's events until the run ends. It returns false when the
// user cancelled first.
func (t *Terminal) stream(run *agent.Run, watch *Watch, sigs <-chan os.Signal) bool {
	for {
		select {
		case ev, ok := <-run.Events():
			if !ok {
				return true
			}
			t.render.event(ev)
			if watch.Cancelled() {
				return false
			}
		case <-watch.Fired():
			return false
		case <-sigs:
			return false
		}
	}
}

func osInterrupts() (<-chan os.Signal, func()) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	return c, func() { signal.Stop(c) }
}
