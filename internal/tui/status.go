package tui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// StatusWriter prints a spinning status line to a writer. It runs in
// the background and updates the current phase text in-place. It covers the
// interactive phases, before the progress table takes over the terminal.
type StatusWriter struct {
	w          io.Writer
	mu         sync.Mutex
	message    string
	phaseStart time.Time
	done       chan struct{}
	stopped    bool
	paused     bool
}

// NewStatusWriter starts a background spinner that renders the current
// status message to w every 100ms.
func NewStatusWriter(w io.Writer) *StatusWriter {
	sw := &StatusWriter{
		w:          w,
		phaseStart: time.Now(),
		done:       make(chan struct{}),
	}
	go sw.loop()
	return sw
}

// Update changes the status message shown next to the spinner and resets
// the phase timer so elapsed time restarts from zero.
func (sw *StatusWriter) Update(msg string) {
	sw.mu.Lock()
	sw.message = msg
	sw.phaseStart = time.Now()
	sw.paused = false
	sw.mu.Unlock()
}

// Pause clears the line and hides the spinner until the next Update, so a
// prompt or SteamCMD output can use the terminal.
func (sw *StatusWriter) Pause() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.stopped || sw.paused {
		return
	}
	sw.paused = true
	fmt.Fprintf(sw.w, "\r\033[K")
}

// Stop clears the status line and stops the spinner.
func (sw *StatusWriter) Stop() {
	sw.mu.Lock()
	if sw.stopped {
		sw.mu.Unlock()
		return
	}
	sw.stopped = true
	sw.mu.Unlock()
	close(sw.done)
	// Clear the status line.
	fmt.Fprintf(sw.w, "\r\033[K")
}

func (sw *StatusWriter) loop() {
	tick := 0
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sw.done:
			return
		case <-ticker.C:
			// Printing under the lock keeps a concurrent Pause from being
			// overdrawn by a stale frame.
			sw.mu.Lock()
			if !sw.paused && !sw.stopped && sw.message != "" {
				spinner := spinnerFrames[tick%len(spinnerFrames)]
				tick++
				fmt.Fprintf(sw.w, "\r\033[K%s %s (%s)", spinner, sw.message, formatElapsed(time.Since(sw.phaseStart)))
			}
			sw.mu.Unlock()
		}
	}
}

// formatElapsed formats a duration for display in the status line.
func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < 10*time.Second {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
