package cli

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Spinner animates a label on a terminal while a model call is pending.
// On anything other than a terminal it stays silent.
type Spinner struct {
	frames   []string
	interval time.Duration
	writer   io.Writer
	label    string
	enabled  bool
	started  bool

	once sync.Once
	stop chan struct{}
	done chan struct{}
}

// NewSpinner creates a spinner writing to w.
func NewSpinner(w io.Writer, label string) *Spinner {
	return &Spinner{
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		interval: 80 * time.Millisecond,
		writer:   w,
		label:    label,
		enabled:  isTerminal(w),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the animation.
func (s *Spinner) Start() {
	if !s.enabled || s.started {
		return
	}
	s.started = true
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for idx := 0; ; idx++ {
			fmt.Fprintf(s.writer, "\r%s %s", s.frames[idx%len(s.frames)], s.label)
			select {
			case <-s.stop:
				fmt.Fprintf(s.writer, "\r\033[K")
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop clears the spinner line. It is safe to call more than once, and
// before Start.
func (s *Spinner) Stop() {
	s.once.Do(func() { close(s.stop) })
	if s.started {
		<-s.done
	}
}
