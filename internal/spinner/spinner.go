// Package spinner renders a terminal activity indicator for long dispatch
// waits.
package spinner

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a one-line message on a terminal until stopped.
type Spinner struct {
	w       io.Writer
	message string
	done    chan struct{}
	cleared chan struct{}
	once    sync.Once
}

// Start begins animating message on w. Call Stop to clear the line.
func Start(w io.Writer, message string) *Spinner {
	s := &Spinner{
		w:       w,
		message: message,
		done:    make(chan struct{}),
		cleared: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Spinner) run() {
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-s.done:
			fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", len(s.message)+2)) //nolint:errcheck
			close(s.cleared)
			return
		case <-ticker.C:
			fmt.Fprintf(s.w, "\r%s %s", frames[frame%len(frames)], s.message) //nolint:errcheck
			frame++
		}
	}
}

// Stop halts the animation and clears the line. Safe to call twice.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		close(s.done)
	})
	<-s.cleared
}
