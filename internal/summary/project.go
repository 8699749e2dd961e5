// Package summary provides project progress summaries.
package summary

import (
	"context"
	"fmt"
	"time"

	"github.com/javiermolinar/cadence/internal/task"
)

// Stats holds task counts for a project.
type Stats struct {
	Total      int
	Planned    int
	InProgress int
	Done       int
	Blocked    int
	Cancelled  int
	Subtasks   int
	Overdue    int

	// PastDeadline counts tasks that end after the project deadline.
	PastDeadline int

	// PlannedDays sums the requested duration of tasks that are not cancelled.
	PlannedDays float64
}

// Active returns the number of tasks that are not cancelled.
func (s Stats) Active() int {
	return s.Total - s.Cancelled
}

// DonePercent returns the share of active tasks that are done.
func (s Stats) DonePercent() int {
	if s.Active() == 0 {
		return 0
	}
	return (s.Done * 100) / s.Active()
}

// ProjectSummary holds aggregated project data.
type ProjectSummary struct {
	Project *task.Project
	Tasks   []*task.Task
	Stats   Stats

	// Start and End bound every task that is not cancelled. Both are zero
	// when there is no such task.
	Start time.Time
	End   time.Time
}

// Span returns End - Start.
func (s *ProjectSummary) Span() time.Duration {
	return s.End.Sub(s.Start)
}

// Slack returns the time between the last planned end and the project
// deadline, negative when the plan runs late. ok is false without a
// deadline or without active tasks.
func (s *ProjectSummary) Slack() (slack time.Duration, ok bool) {
	if s.Project.Deadline == nil || s.End.IsZero() {
		return 0, false
	}
	return s.Project.Deadline.Sub(s.End), true
}

// Summarize builds a summary from a project and its tasks.
func Summarize(p *task.Project, tasks []*task.Task, now time.Time) *ProjectSummary {
	sum := &ProjectSummary{Project: p, Tasks: tasks}
	st := &sum.Stats

	for _, t := range tasks {
		st.Total++
		switch t.Status {
		case task.StatusPlanned:
			st.Planned++
		case task.StatusInProgress:
			st.InProgress++
		case task.StatusDone:
			st.Done++
		case task.StatusBlocked:
			st.Blocked++
		case task.StatusCancelled:
			st.Cancelled++
		}
		if t.IsSubtask() {
			st.Subtasks++
		}
		if t.IsOverdue(now) {
			st.Overdue++
		}

		if t.Status == task.StatusCancelled || !t.IsScheduled() {
			continue
		}
		st.PlannedDays += t.Duration
		if p.Deadline != nil && t.PlannedEnd.After(*p.Deadline) {
			st.PastDeadline++
		}
		if sum.Start.IsZero() || t.PlannedStart.Before(sum.Start) {
			sum.Start = t.PlannedStart
		}
		if t.PlannedEnd.After(sum.End) {
			sum.End = t.PlannedEnd
		}
	}

	return sum
}

// Build loads a project and its tasks and summarizes them.
func Build(ctx context.Context, repo task.Repository, projectID string, now time.Time) (*ProjectSummary, error) {
	p, err := repo.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	tasks, err := repo.ListProjectTasks(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("fetching tasks: %w", err)
	}

	return Summarize(p, tasks, now), nil
}
