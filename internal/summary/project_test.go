package summary

import (
	"testing"
	"time"

	"github.com/javiermolinar/cadence/internal/task"
)

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return jan1.AddDate(0, 0, n) }

func newTask(title string, status task.Status, start, end time.Time, days float64) *task.Task {
	dl := end
	return &task.Task{
		ID:           title,
		Title:        title,
		Status:       status,
		Duration:     days,
		PlannedStart: start,
		PlannedEnd:   end,
		Deadline:     &dl,
	}
}

func TestSummarize(t *testing.T) {
	deadline := day(10)
	p := &task.Project{ID: "p", Title: "Launch", Deadline: &deadline}

	parent := "design"
	child := newTask("review", task.StatusPlanned, day(2), day(3), 1)
	child.ParentID = &parent

	tasks := []*task.Task{
		newTask("design", task.StatusDone, day(1), day(3), 2),
		child,
		newTask("build", task.StatusInProgress, day(3), day(12), 9),
		newTask("dropped", task.StatusCancelled, day(0), day(20), 20),
		newTask("stuck", task.StatusBlocked, day(4), day(5), 1),
	}

	now := day(6)
	sum := Summarize(p, tasks, now)
	st := sum.Stats

	if st.Total != 5 || st.Done != 1 || st.Planned != 1 || st.InProgress != 1 || st.Cancelled != 1 || st.Blocked != 1 {
		t.Errorf("unexpected status counts: %+v", st)
	}
	if st.Subtasks != 1 {
		t.Errorf("subtasks = %d, want 1", st.Subtasks)
	}
	// review and stuck ended before now and are not done
	if st.Overdue != 2 {
		t.Errorf("overdue = %d, want 2", st.Overdue)
	}
	if st.PastDeadline != 1 {
		t.Errorf("past deadline = %d, want 1", st.PastDeadline)
	}
	if st.PlannedDays != 13 {
		t.Errorf("planned days = %v, want 13", st.PlannedDays)
	}
	if st.Active() != 4 || st.DonePercent() != 25 {
		t.Errorf("active = %d, done = %d%%, want 4 and 25%%", st.Active(), st.DonePercent())
	}

	// the cancelled task does not widen the range
	if !sum.Start.Equal(day(1)) || !sum.End.Equal(day(12)) {
		t.Errorf("range = %v..%v, want %v..%v", sum.Start, sum.End, day(1), day(12))
	}
	if sum.Span() != 11*24*time.Hour {
		t.Errorf("span = %v, want 264h", sum.Span())
	}
	slack, ok := sum.Slack()
	if !ok || slack != -2*24*time.Hour {
		t.Errorf("slack = %v (ok %v), want -48h", slack, ok)
	}
}

func TestSummarize_Empty(t *testing.T) {
	sum := Summarize(&task.Project{ID: "p", Title: "Empty"}, nil, jan1)

	if sum.Stats.Total != 0 || sum.Stats.DonePercent() != 0 {
		t.Errorf("unexpected stats: %+v", sum.Stats)
	}
	if !sum.Start.IsZero() || !sum.End.IsZero() {
		t.Errorf("expected zero range, got %v..%v", sum.Start, sum.End)
	}
	if _, ok := sum.Slack(); ok {
		t.Error("expected no slack without a deadline")
	}
}
