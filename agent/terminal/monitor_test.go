package terminal

import (
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/term"
)

func TestEscDetector(t *testing.T) {
	start := time.Unix(1000, 0)
	esc := []byte{escapeKey}

	d := &escDetector{window: DefaultCancelWindow}
	assert.False(t, d.feed(esc, start))
	assert.True(t, d.feed(esc, start.Add(300*time.Millisecond)))

	d = &escDetector{window: DefaultCancelWindow}
	assert.False(t, d.feed(esc, start))
	assert.False(t, d.feed(esc, start.Add(800*time.Millisecond)), "too slow")
	assert.True(t, d.feed(esc, start.Add(1100*time.Millisecond)), "second press of a new pair")
}

func TestEscDetectorIgnoresSequences(t *testing.T) {
	now := time.Unix(1000, 0)
	d := &escDetector{window: DefaultCancelWindow}

	assert.False(t, d.feed([]byte("\x1b[A"), now))
	assert.False(t, d.feed([]byte("q"), now))
	assert.False(t, d.feed(nil, now))
	assert.True(t, d.feed([]byte{escapeKey, escapeKey}, now), "two presses in one read")
}

type stubTerminal struct {
	restored atomic.Int32
}

func (s *stubTerminal) monitor(in *os.File) *Monitor {
	m := NewMonitor(in, nil)
	m.isTerminal = func(int) bool { return true }
	m.enterCbreak = func(int) (*term.State, error) { return &term.State{}, nil }
	m.restore = func(int, *term.State) error {
		s.restored.Add(1)
		return nil
	}
	return m
}

func TestWatchFiresOnDoubleEsc(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	stub := &stubTerminal{}
	watch := stub.monitor(r).Watch()

	_, err = w.Write([]byte{escapeKey})
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	assert.False(t, watch.Cancelled())
	_, err = w.Write([]byte{escapeKey})
	require.NoError(t, err)

	select {
	case <-watch.Fired():
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not fire")
	}
	assert.True(t, watch.Cancelled())

	watch.Close()
	watch.Close()
	assert.Equal(t, int32(1), stub.restored.Load())
}

func TestWatchRestoresWithoutFiring(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	stub := &stubTerminal{}
	watch := stub.monitor(r).Watch()
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)

	watch.Close()
	assert.False(t, watch.Cancelled())
	assert.Equal(t, int32(1), stub.restored.Load())
}

func TestWatchInertWithoutTerminal(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	watch := NewMonitor(r, nil).Watch()
	assert.Nil(t, watch.reader)
	assert.False(t, watch.Cancelled())
	watch.Close()
}

func TestWatchCbreakFailure(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	stub := &stubTerminal{}
	m := stub.monitor(r)
	m.enterCbreak = func(int) (*term.State, error) { return nil, errors.New("not a tty") }

	watch := m.Watch()
	watch.Close()
	assert.Zero(t, stub.restored.Load())
}
