package tui

import (
	"errors"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// ErrInterrupted is returned when the operator quits the display before the
// work finished.
var ErrInterrupted = errors.New("interrupted")

// RunWithWork creates a bubbletea program, launches work in a goroutine with
// a reporter bound to the program, and blocks until the program exits. The
// work error, if any, is returned unchanged.
func RunWithWork(out io.Writer, model ProgressModel, work func(rep *ProgramReporter) error) error {
	p := tea.NewProgram(model, tea.WithOutput(out))
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		// Let bubbletea start its event loop and render the initial frame.
		time.Sleep(50 * time.Millisecond)

		if err := work(NewProgramReporter(p.Send)); err != nil {
			p.Send(ErrorMsg{Err: err})
			return
		}
		p.Send(WorkDoneMsg{})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := finalModel.(ProgressModel); ok && m.Err() != nil {
		return m.Err()
	}
	select {
	case <-finished:
		return nil
	default:
		return ErrInterrupted
	}
}
