package tui

import (
	"fmt"
	"strings"
	"time"

	bar "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"vilehvh/internal/progress"
)

const (
	tickInterval = 150 * time.Millisecond
	marqueeGap   = "   "

	nameWidth    = 12
	statusWidth  = 11
	barWidth     = 30
	bytesWidth   = 21
	messageWidth = 32
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// tickMsg drives animation (spinner, marquee).
type tickMsg time.Time

// ProgressModel is a bubbletea model rendering one row per task with a
// progress bar. Rows appear on their first update unless pre-added.
type ProgressModel struct {
	title  string
	tasks  []progress.Task
	index  map[string]int
	bar    bar.Model
	status string
	done   bool
	err    error

	// Animation state.
	tick int
}

// NewProgressModel creates an empty progress model.
func NewProgressModel(title string) ProgressModel {
	return ProgressModel{
		title: title,
		index: make(map[string]int),
		bar:   bar.New(bar.WithDefaultGradient(), bar.WithWidth(barWidth), bar.WithoutPercentage()),
	}
}

// AddTask pre-populates a row. Call this before the program starts.
func (m *ProgressModel) AddTask(task progress.Task) {
	m.upsert(task)
}

func (m *ProgressModel) upsert(task progress.Task) {
	if i, ok := m.index[task.Name]; ok {
		m.tasks[i] = task
		return
	}
	m.index[task.Name] = len(m.tasks)
	m.tasks = append(m.tasks, task)
}

func scheduleTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init satisfies the tea.Model interface.
func (m ProgressModel) Init() tea.Cmd {
	return scheduleTick()
}

// Update satisfies the tea.Model interface.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.tick++
		if m.done {
			return m, nil
		}
		return m, scheduleTick()

	case TaskUpdateMsg:
		m.upsert(msg.Task)
		return m, nil

	case StatusMsg:
		m.status = msg.Text
		return m, nil

	case WorkDoneMsg:
		m.done = true
		return m, tea.Quit

	case ErrorMsg:
		m.err = msg.Err
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// View satisfies the tea.Model interface.
func (m ProgressModel) View() string {
	var b strings.Builder
	if m.title != "" {
		b.WriteString(TitleStyle.Render(m.title))
		b.WriteString("\n\n")
	}

	header := []string{
		pad("TASK", nameWidth),
		pad("STATUS", statusWidth),
		pad("PROGRESS", barWidth+8),
		pad("SIZE", bytesWidth),
		"MESSAGE",
	}
	for i, h := range header {
		header[i] = HeaderStyle.Render(h)
	}
	b.WriteString(strings.Join(header, "  "))
	b.WriteByte('\n')

	for _, task := range m.tasks {
		status := string(task.Phase)
		msg := task.Message
		if !m.done && len(strings.TrimSpace(msg)) > messageWidth {
			msg = marqueeText(msg, messageWidth, m.tick)
		} else {
			msg = TruncateWithEllipsis(msg, messageWidth)
		}
		parts := []string{
			pad(TruncateWithEllipsis(task.Name, nameWidth), nameWidth),
			StatusStyle(status).Render(pad(status, statusWidth)),
			m.bar.ViewAs(task.Percent/100) + fmt.Sprintf(" %6.2f%%", task.Percent),
			pad(sizeText(task), bytesWidth),
			msg,
		}
		b.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
		b.WriteByte('\n')
	}

	if m.err != nil {
		fmt.Fprintf(&b, "\n%s\n", ErrorStyle.Render("Error: "+m.err.Error()))
		return b.String()
	}
	if !m.done {
		finished, total := m.progressCounts()
		spinner := spinnerFrames[m.tick%len(spinnerFrames)]
		status := m.status
		if status == "" {
			status = "Working"
		}
		fmt.Fprintf(&b, "\n%s %s %d/%d...\n", spinner, status, finished, total)
	}
	return b.String()
}

// progressCounts returns (finished, total) counting tasks in a terminal phase.
func (m ProgressModel) progressCounts() (int, int) {
	finished := 0
	for _, task := range m.tasks {
		if task.Phase.Terminal() {
			finished++
		}
	}
	return finished, len(m.tasks)
}

// Tasks returns the latest snapshot of every row.
func (m ProgressModel) Tasks() []progress.Task {
	return append([]progress.Task(nil), m.tasks...)
}

// Done returns whether the model has finished (work done or error).
func (m ProgressModel) Done() bool {
	return m.done
}

// Err returns any fatal error that occurred.
func (m ProgressModel) Err() error {
	return m.err
}

func sizeText(task progress.Task) string {
	if task.BytesTotal <= 0 {
		return "-"
	}
	return progress.HumanBytes(task.BytesDone) + " / " + progress.HumanBytes(task.BytesTotal)
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// marqueeText renders a scrolling window over text that exceeds the given width.
// The text slides left on each tick, with a gap between cycles.
func marqueeText(text string, width, tick int) string {
	text = strings.TrimSpace(text)
	if width <= 0 {
		return ""
	}
	if len(text) <= width {
		return text
	}
	cycle := text + marqueeGap
	cycleLen := len(cycle)
	offset := tick % cycleLen
	var result strings.Builder
	result.Grow(width)
	for i := 0; i < width; i++ {
		result.WriteByte(cycle[(offset+i)%cycleLen])
	}
	return result.String()
}

// NonEmptyOrDash returns "-" for empty/whitespace strings.
func NonEmptyOrDash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}

// TruncateWithEllipsis truncates a string and adds "..." if it exceeds max length.
func TruncateWithEllipsis(value string, max int) string {
	if max <= 0 {
		return ""
	}
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
