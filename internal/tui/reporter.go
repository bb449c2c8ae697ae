package tui

import (
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"vilehvh/internal/progress"
)

// ProgramReporter adapts bubbletea message sending to progress.Reporter, and
// doubles as a status line for the footer.
type ProgramReporter struct {
	send func(tea.Msg)
}

// NewProgramReporter wraps a send function, usually tea.Program.Send.
func NewProgramReporter(send func(tea.Msg)) *ProgramReporter {
	return &ProgramReporter{send: send}
}

// Report implements progress.Reporter.
func (r *ProgramReporter) Report(task progress.Task) {
	r.send(TaskUpdateMsg{Task: task})
}

// Update sets the footer status text.
func (r *ProgramReporter) Update(msg string) {
	r.send(StatusMsg{Text: msg})
}

// LineReporter is the plain-mode reporter. It prints a line when a task
// changes phase or crosses a 10% step, so logs stay short on long transfers.
type LineReporter struct {
	w    io.Writer
	mu   sync.Mutex
	last map[string]lineState
}

type lineState struct {
	phase progress.Phase
	step  int
}

// NewLineReporter writes progress lines to w.
func NewLineReporter(w io.Writer) *LineReporter {
	return &LineReporter{w: w, last: make(map[string]lineState)}
}

// Report implements progress.Reporter.
func (r *LineReporter) Report(task progress.Task) {
	state := lineState{phase: task.Phase, step: int(task.Percent) / 10}
	r.mu.Lock()
	prev, seen := r.last[task.Name]
	if seen && prev == state {
		r.mu.Unlock()
		return
	}
	r.last[task.Name] = state
	r.mu.Unlock()

	line := task.String()
	if task.Message != "" {
		line += ": " + task.Message
	}
	fmt.Fprintln(r.w, line)
}
