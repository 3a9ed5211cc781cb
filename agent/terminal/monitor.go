package terminal

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/muesli/cancelreader"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const (
	escapeKey = 0x1b
	// DefaultCancelWindow is how close together two Esc presses must be.
	DefaultCancelWindow = 500 * time.Millisecond
)

// escDetector recognises two Esc presses within a window.
type escDetector struct {
	window time.Duration
	last   time.Time
}

// feed consumes one read from the terminal and reports whether it completed
// a double press. Reads that are not bare Esc presses are ignored, which
// keeps arrow keys and other escape sequences from counting.
func (d *escDetector) feed(b []byte, now time.Time) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c != escapeKey {
			return false
		}
	}
	if len(b) > 1 {
		return true
	}
	if !d.last.IsZero() && now.Sub(d.last) <= d.window {
		d.last = time.Time{}
		return true
	}
	d.last = now
	return false
}

// Monitor watches the terminal for a cancel request while a turn runs.
type Monitor struct {
	in     *os.File
	window time.Duration
	logger *zap.Logger

	isTerminal  func(fd int) bool
	enterCbreak func(fd int) (*term.State, error)
	restore     func(fd int, st *term.State) error
	newReader   func(r io.Reader) (cancelreader.CancelReader, error)
	now         func() time.Time
}

// NewMonitor creates a monitor reading from in. A nil logger discards logs.
func NewMonitor(in *os.File, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		in:          in,
		window:      DefaultCancelWindow,
		logger:      logger,
		isTerminal:  term.IsTerminal,
		enterCbreak: enterCbreak,
		restore:     term.Restore,
		newReader:   cancelreader.NewReader,
		now:         time.Now,
	}
}

// Watch starts watching. The returned Watch must be closed; closing restores
// the terminal mode that was active before. When the input is not a
// terminal the watch never fires.
func (m *Monitor) Watch() *Watch {
	w := newWatch()
	if m.in == nil {
		return w
	}
	fd := int(m.in.Fd())
	if !m.isTerminal(fd) {
		return w
	}
	state, err := m.enterCbreak(fd)
	if err != nil {
		m.logger.Debug("cancel monitor disabled", zap.Error(err))
		return w
	}
	restore := func() {
		if err := m.restore(fd, state); err != nil {
			m.logger.Warn("failed to restore terminal", zap.Error(err))
		}
	}
	reader, err := m.newReader(m.in)
	if err != nil {
		restore()
		m.logger.Debug("cancel monitor disabled", zap.Error(err))
		return w
	}

	w.reader = reader
	w.restore = restore
	w.stopped = make(chan struct{})
	det := &escDetector{window: m.window}
	go func() {
		defer close(w.stopped)
		buf := make([]byte, 64)
		for {
			n, err := reader.Read(buf)
			if n > 0 && det.feed(buf[:n], m.now()) {
				w.fire()
			}
			if err != nil {
				return
			}
		}
	}()
	return w
}

// Watch is one armed monitor. Its methods are safe for concurrent use.
type Watch struct {
	cancelled atomic.Bool
	fired     chan struct{}
	fireOnce  sync.Once
	closeOnce sync.Once

	reader  cancelreader.CancelReader
	restore func()
	stopped chan struct{}
}

func newWatch() *Watch {
	return &Watch{fired: make(chan struct{})}
}

// Cancelled reports whether the user asked to cancel.
func (w *Watch) Cancelled() bool {
	return w.cancelled.Load()
}

// Fired is closed once the user asks to cancel.
func (w *Watch) Fired() <-chan struct{} {
	return w.fired
}

func (w *Watch) fire() {
	w.fireOnce.Do(func() {
		w.cancelled.Store(true)
		close(w.fired)
	})
}

// Close stops reading and restores the terminal. It is safe to call more
// than once.
func (w *Watch) Close() {
	w.closeOnce.Do(func() {
		if w.reader == nil {
			return
		}
		w.reader.Cancel()
		<-w.stopped
		_ = w.reader.Close()
		w.restore()
	})
}
