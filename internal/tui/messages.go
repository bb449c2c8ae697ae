package tui

import "vilehvh/internal/progress"

// TaskUpdateMsg carries a task snapshot; rows are keyed by task name.
type TaskUpdateMsg struct {
	Task progress.Task
}

// StatusMsg replaces the footer text.
type StatusMsg struct {
	Text string
}

// WorkDoneMsg signals that all background work has completed.
type WorkDoneMsg struct{}

// ErrorMsg signals a fatal error; the TUI should quit.
type ErrorMsg struct {
	Err error
}
