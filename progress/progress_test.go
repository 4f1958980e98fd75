package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// syncBuffer guards a bytes.Buffer written by the render goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinner(t *testing.T) {
	s := NewSpinner("indexing")
	assert.True(t, strings.HasPrefix(s.String(), "indexing "))
	assert.True(t, strings.ContainsAny(s.String(), strings.Join(frames, "")))

	s.SetMessage("scanning")
	assert.True(t, strings.HasPrefix(s.String(), "scanning "))

	s.Stop()
	s.Stop()
	assert.False(t, strings.ContainsAny(s.String(), strings.Join(frames, "")))
	assert.True(t, strings.HasSuffix(s.String(), "s"), s.String())
}

func TestProgressStop(t *testing.T) {
	var buf syncBuffer
	p := NewProgress(&buf)
	s := NewSpinner("indexing")
	p.Add(s)

	time.Sleep(250 * time.Millisecond)
	assert.True(t, p.Stop())

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "\033[?25l"))
	assert.Contains(t, out, "indexing")
	assert.True(t, strings.HasSuffix(out, "\n\033[?25h"))
	assert.False(t, s.stopped.IsZero(), "stopping progress stops its spinners")
	assert.False(t, p.Stop(), "already stopped")
}

func TestProgressStopAndClear(t *testing.T) {
	var buf syncBuffer
	p := NewProgress(&buf)
	p.Add(NewSpinner("first"))
	p.Add(NewSpinner("second"))

	assert.True(t, p.StopAndClear())

	out := buf.String()
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "second")
	assert.True(t, strings.HasSuffix(out, "\033[A\033[2K\033[1G\033[?25h"))
}
