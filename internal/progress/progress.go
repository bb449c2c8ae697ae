// Package progress holds the normalized progress signal shared by the
// payload deployment and the archive downloads.
package progress

import (
	"fmt"
	"sync"
)

// Phase is the lifecycle stage of a Task.
type Phase string

const (
	PhasePending     Phase = "pending"
	PhaseDownloading Phase = "downloading"
	PhaseValidating  Phase = "validating"
	PhaseComplete    Phase = "complete"
	PhaseFailed      Phase = "failed"
)

// Terminal reports whether no further updates are expected.
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseFailed
}

// Task tracks one payload class being deployed.
type Task struct {
	Name       string  `json:"name"`
	AppID      string  `json:"app_id,omitempty"`
	Validate   bool    `json:"validate"`
	Phase      Phase   `json:"phase"`
	Percent    float64 `json:"percent"`
	BytesDone  int64   `json:"bytes_done"`
	BytesTotal int64   `json:"bytes_total"`
	Message    string  `json:"message,omitempty"`
}

// NewTask returns a pending task.
func NewTask(name, appID string, validate bool) *Task {
	return &Task{Name: name, AppID: appID, Validate: validate, Phase: PhasePending}
}

// Update is one observation parsed from tool output.
type Update struct {
	Phase      Phase
	Percent    float64
	BytesDone  int64
	BytesTotal int64
}

// Apply folds an observation into the task. Terminal tasks are not changed,
// and percent is clamped to [0, 100].
func (t *Task) Apply(u Update) {
	if t.Phase.Terminal() {
		return
	}
	if u.Phase != "" {
		t.Phase = u.Phase
	}
	pct := u.Percent
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	t.Percent = pct
	if u.BytesTotal > 0 {
		t.BytesDone = u.BytesDone
		t.BytesTotal = u.BytesTotal
	}
}

// Complete marks the task finished.
func (t *Task) Complete() {
	t.Phase = PhaseComplete
	t.Percent = 100
	if t.BytesTotal > 0 {
		t.BytesDone = t.BytesTotal
	}
}

// Fail marks the task failed, keeping the last observed progress.
func (t *Task) Fail(msg string) {
	t.Phase = PhaseFailed
	t.Message = msg
}

func (t Task) String() string {
	if t.BytesTotal > 0 {
		return fmt.Sprintf("%s %s %.2f%% (%s / %s)", t.Name, t.Phase, t.Percent, HumanBytes(t.BytesDone), HumanBytes(t.BytesTotal))
	}
	return fmt.Sprintf("%s %s %.2f%%", t.Name, t.Phase, t.Percent)
}

// Reporter receives task snapshots as they change.
type Reporter interface {
	Report(task Task)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Task)

func (f ReporterFunc) Report(task Task) { f(task) }

// Discard drops every report.
var Discard Reporter = ReporterFunc(func(Task) {})

// Recorder keeps every snapshot; useful in tests and for the final summary.
type Recorder struct {
	mu    sync.Mutex
	tasks []Task
}

func (r *Recorder) Report(task Task) {
	r.mu.Lock()
	r.tasks = append(r.tasks, task)
	r.mu.Unlock()
}

// Snapshots returns a copy of the recorded snapshots.
func (r *Recorder) Snapshots() []Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Task(nil), r.tasks...)
}

// Last returns the most recent snapshot.
func (r *Recorder) Last() (Task, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.tasks) == 0 {
		return Task{}, false
	}
	return r.tasks[len(r.tasks)-1], true
}

// HumanBytes formats a byte count with binary units.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
