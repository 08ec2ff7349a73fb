// Package progress renders a terminal activity indicator for long
// capture and materialize runs. Output goes to stderr so the animation
// never interleaves with command results on stdout.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Tracker counts processed files and animates a spinner while work is in
// flight. A non-positive total switches to count-only mode for runs whose
// size is unknown up front.
type Tracker struct {
	label string
	total int
	out   io.Writer

	mu      sync.Mutex
	count   int
	started time.Time
	done    chan struct{}
	exited  chan struct{}
}

// NewTracker starts rendering immediately and must be stopped with
// Finish.
func NewTracker(total int, label string) *Tracker {
	return newTracker(total, label, os.Stderr)
}

func newTracker(total int, label string, out io.Writer) *Tracker {
	t := &Tracker{
		label:   label,
		total:   total,
		out:     out,
		started: time.Now(),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
	go t.render()
	return t
}

func (t *Tracker) render() {
	defer close(t.exited)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-t.done:
			t.mu.Lock()
			fmt.Fprintf(t.out, "\r✓ %s(%d files, %s)          \n",
				t.label, t.count, time.Since(t.started).Round(time.Millisecond))
			t.mu.Unlock()
			return

		case <-ticker.C:
			t.mu.Lock()
			if t.total > 0 {
				percent := float64(t.count) / float64(t.total) * 100
				fmt.Fprintf(t.out, "\r%s %s[%d/%d] %.0f%%  ",
					frames[frame%len(frames)], t.label, t.count, t.total, percent)
			} else {
				fmt.Fprintf(t.out, "\r%s %s[%d files]  ",
					frames[frame%len(frames)], t.label, t.count)
			}
			t.mu.Unlock()
			frame++
		}
	}
}

// Increment records one processed file. Safe for concurrent use.
func (t *Tracker) Increment() {
	t.mu.Lock()
	t.count++
	t.mu.Unlock()
}

// Finish stops the spinner, prints the final summary line and waits for
// the renderer to exit so no output trails the caller.
func (t *Tracker) Finish() {
	close(t.done)
	<-t.exited
}
