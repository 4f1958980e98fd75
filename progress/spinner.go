package progress

import (
	"strings"
	"sync"
	"time"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates next to a message until stopped, then shows how long it
// ran.
type Spinner struct {
	mu      sync.Mutex
	message string
	value   int

	started time.Time
	stopped time.Time
	done    chan struct{}
}

func NewSpinner(message string) *Spinner {
	s := &Spinner{
		message: message,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	go s.start()
	return s
}

func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

func (s *Spinner) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	if message := strings.TrimSpace(s.message); message != "" {
		sb.WriteString(message)
		sb.WriteString(" ")
	}

	if s.stopped.IsZero() {
		sb.WriteString(frames[s.value])
		sb.WriteString(" ")
	} else {
		sb.WriteString(s.stopped.Sub(s.started).Round(time.Millisecond).String())
	}

	return sb.String()
}

func (s *Spinner) start() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			s.value = (s.value + 1) % len(frames)
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}

func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped.IsZero() {
		s.stopped = time.Now()
		close(s.done)
	}
}
