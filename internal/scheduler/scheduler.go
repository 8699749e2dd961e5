// Package scheduler plans, replans and shifts tasks against their stored
// neighbours.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/javiermolinar/cadence/internal/debuglog"
	"github.com/javiermolinar/cadence/internal/task"
	"github.com/javiermolinar/cadence/internal/timing"
)

// Draft is the user input for a new task.
type Draft struct {
	ProjectID    string
	ParentID     string // empty for top-level tasks
	Title        string
	Description  string
	Start        *time.Time
	End          *time.Time
	Deadline     *time.Time
	DurationDays float64
	Dependencies []task.Dependency
}

// Edit is a partial update of an existing task. Nil fields are left
// unchanged.
//
// When Start or End is set, the given dates replace the stored window as
// explicit input. Otherwise the stored start is kept as the anchor, together
// with the stored end unless the duration changes. A stored deadline equal to
// the stored end was defaulted from it and is derived again.
type Edit struct {
	Title         *string
	Description   *string
	Start         *time.Time
	End           *time.Time
	Deadline      *time.Time
	ClearDeadline bool
	DurationDays  *float64
	Dependencies  *[]task.Dependency
	Status        *task.Status
}

// Service resolves task windows using the repository for context.
type Service struct {
	repo     task.Repository
	resolver *timing.Resolver
	log      *debuglog.Logger
}

// New creates a Service. A nil resolver uses timing defaults; a nil logger
// disables debug logging.
func New(repo task.Repository, resolver *timing.Resolver, log *debuglog.Logger) *Service {
	if resolver == nil {
		resolver = timing.NewResolver()
	}
	return &Service{repo: repo, resolver: resolver, log: log}
}

// PlanTask resolves the window of a new task and stores it.
func (s *Service) PlanTask(ctx context.Context, d Draft) (*task.Task, timing.Resolution, error) {
	t, res, err := s.prepare(ctx, d)
	if err != nil {
		s.log.Error("plan task", err)
		return nil, timing.Resolution{}, err
	}

	if err := s.repo.CreateTask(ctx, t); err != nil {
		s.log.Error("plan task", err)
		return nil, timing.Resolution{}, fmt.Errorf("storing task: %w", err)
	}

	s.log.Log("PLAN_TASK", debuglog.WindowFields(t.Window(), map[string]any{
		"task":     t.ID,
		"project":  t.ProjectID,
		"warnings": res.Warnings(),
	}))
	return t, res, nil
}

// Preview resolves a draft without storing anything.
func (s *Service) Preview(ctx context.Context, d Draft) (timing.Resolution, error) {
	_, res, err := s.prepare(ctx, d)
	if err != nil {
		return timing.Resolution{}, err
	}
	return res, nil
}

func (s *Service) prepare(ctx context.Context, d Draft) (*task.Task, timing.Resolution, error) {
	t, err := task.New(d.ProjectID, d.Title, d.Description, d.DurationDays)
	if err != nil {
		return nil, timing.Resolution{}, err
	}
	if d.ParentID != "" {
		if err := t.SetParent(d.ParentID); err != nil {
			return nil, timing.Resolution{}, err
		}
	}
	for _, dep := range d.Dependencies {
		if err := t.AddDependency(dep); err != nil {
			return nil, timing.Resolution{}, err
		}
	}

	in := timing.Input{
		PlannedStart: d.Start,
		PlannedEnd:   d.End,
		Deadline:     d.Deadline,
		DurationDays: d.DurationDays,
	}
	res, err := s.resolve(ctx, t, in)
	if err != nil {
		return nil, timing.Resolution{}, err
	}
	t.ApplyWindow(res.Window)
	return t, res, nil
}

// ReplanTask applies an edit to a stored task, resolves its window again and
// stores the result. Dependents are not touched.
func (s *Service) ReplanTask(ctx context.Context, id string, e Edit) (*task.Task, timing.Resolution, error) {
	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, timing.Resolution{}, err
	}

	in, err := applyEdit(t, e)
	if err != nil {
		return nil, timing.Resolution{}, err
	}

	res, err := s.resolve(ctx, t, in)
	if err != nil {
		s.log.Error("replan task", err)
		return nil, timing.Resolution{}, err
	}
	t.ApplyWindow(res.Window)

	if err := s.repo.UpdateTask(ctx, t); err != nil {
		s.log.Error("replan task", err)
		return nil, timing.Resolution{}, fmt.Errorf("storing task: %w", err)
	}

	s.log.Log("REPLAN_TASK", debuglog.WindowFields(t.Window(), map[string]any{
		"task":     t.ID,
		"warnings": res.Warnings(),
	}))
	return t, res, nil
}

// applyEdit updates the editable fields of t and returns the timing input
// for the new resolution.
func applyEdit(t *task.Task, e Edit) (timing.Input, error) {
	if e.Title != nil {
		if err := t.Rename(*e.Title); err != nil {
			return timing.Input{}, err
		}
	}
	if e.Description != nil {
		t.Description = *e.Description
	}
	if e.DurationDays != nil {
		if err := task.ValidateDuration(*e.DurationDays); err != nil {
			return timing.Input{}, err
		}
		t.Duration = *e.DurationDays
	}
	if e.Status != nil {
		if !e.Status.Valid() {
			return timing.Input{}, task.ErrInvalidStatus
		}
		t.Status = *e.Status
	}
	if e.Dependencies != nil {
		t.Dependencies = nil
		for _, dep := range *e.Dependencies {
			if err := t.AddDependency(dep); err != nil {
				return timing.Input{}, err
			}
		}
	}

	deadline := t.Deadline
	switch {
	case e.ClearDeadline:
		deadline = nil
	case e.Deadline != nil:
		deadline = e.Deadline
	case deadline != nil && deadline.Equal(t.PlannedEnd):
		deadline = nil
	}

	in := timing.Input{
		Deadline:     deadline,
		DurationDays: t.Duration,
	}
	switch {
	case e.Start != nil || e.End != nil:
		in.PlannedStart = e.Start
		in.PlannedEnd = e.End
	case t.IsScheduled():
		start, end := t.PlannedStart, t.PlannedEnd
		in.PlannedStart = &start
		if e.DurationDays == nil {
			in.PlannedEnd = &end
		}
	}
	return in, nil
}

// resolve gathers the project deadline, the parent window and the
// predecessor windows of t and runs the resolver.
func (s *Service) resolve(ctx context.Context, t *task.Task, in timing.Input) (timing.Resolution, error) {
	bounds, err := s.bounds(ctx, t)
	if err != nil {
		return timing.Resolution{}, err
	}

	constraints, err := s.constraints(ctx, t)
	if err != nil {
		return timing.Resolution{}, err
	}
	in.Dependencies = constraints

	res, err := s.resolver.Resolve(in, bounds)
	if err != nil {
		return timing.Resolution{}, fmt.Errorf("resolving %q: %w", t.Title, err)
	}
	return res, nil
}

func (s *Service) bounds(ctx context.Context, t *task.Task) (timing.Bounds, error) {
	project, err := s.repo.GetProject(ctx, t.ProjectID)
	if err != nil {
		return timing.Bounds{}, err
	}

	b := timing.Bounds{ProjectDeadline: project.Deadline}
	if t.ParentID == nil {
		return b, nil
	}

	parent, err := s.repo.GetTask(ctx, *t.ParentID)
	if errors.Is(err, task.ErrTaskNotFound) {
		return timing.Bounds{}, fmt.Errorf("parent %s: %w", *t.ParentID, task.ErrParentOutsideProject)
	}
	if err != nil {
		return timing.Bounds{}, fmt.Errorf("loading parent: %w", err)
	}
	if parent.ProjectID != t.ProjectID {
		return timing.Bounds{}, fmt.Errorf("parent %s: %w", parent.ID, task.ErrParentOutsideProject)
	}

	w := parent.Window()
	b.Parent = &w
	return b, nil
}

func (s *Service) constraints(ctx context.Context, t *task.Task) ([]timing.Constraint, error) {
	if len(t.Dependencies) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(t.Dependencies))
	for _, d := range t.Dependencies {
		ids = append(ids, d.PredecessorID)
	}

	preds, err := s.repo.GetTasks(ctx, ids)
	if errors.Is(err, task.ErrTaskNotFound) {
		return nil, fmt.Errorf("%w: %w", task.ErrPredecessorOutside, err)
	}
	if err != nil {
		return nil, fmt.Errorf("loading predecessors: %w", err)
	}

	out := make([]timing.Constraint, 0, len(t.Dependencies))
	for _, d := range t.Dependencies {
		p := preds[d.PredecessorID]
		if p == nil || p.ProjectID != t.ProjectID {
			return nil, fmt.Errorf("predecessor %s: %w", d.PredecessorID, task.ErrPredecessorOutside)
		}
		out = append(out, d.Constraint(p))
	}
	return out, nil
}

// ShiftTask moves a task's window and deadline by deltaHours. Nothing is
// re-resolved: neither the task's constraints nor its dependents.
func (s *Service) ShiftTask(ctx context.Context, id string, deltaHours float64) (*task.Task, error) {
	if err := timing.ValidateShift(deltaHours); err != nil {
		return nil, fmt.Errorf("shift %v hours: %w", deltaHours, err)
	}

	t, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	w := timing.Shift(t.Window(), deltaHours)
	if err := s.repo.UpdateTaskWindow(ctx, t.ID, w); err != nil {
		s.log.Error("shift task", err)
		return nil, fmt.Errorf("storing window: %w", err)
	}
	t.ApplyWindow(w)

	s.log.Log("SHIFT_TASK", debuglog.WindowFields(w, map[string]any{
		"task":  t.ID,
		"hours": deltaHours,
	}))
	return t, nil
}

// ShiftTasks moves several tasks by the same delta in one batch.
func (s *Service) ShiftTasks(ctx context.Context, ids []string, deltaHours float64) error {
	if err := timing.ValidateShift(deltaHours); err != nil {
		return fmt.Errorf("shift %v hours: %w", deltaHours, err)
	}

	tasks, err := s.repo.GetTasks(ctx, ids)
	if err != nil {
		return err
	}

	updates := make([]task.WindowUpdate, 0, len(tasks))
	for _, id := range ids {
		t := tasks[id]
		if t == nil { // duplicate id, already shifted
			continue
		}
		updates = append(updates, task.WindowUpdate{ID: id, Window: timing.Shift(t.Window(), deltaHours)})
		delete(tasks, id)
	}

	if err := s.repo.BatchUpdateTaskWindows(ctx, updates); err != nil {
		s.log.Error("shift tasks", err)
		return fmt.Errorf("storing windows: %w", err)
	}
	s.log.Log("SHIFT_TASKS", map[string]any{"count": len(updates), "hours": deltaHours})
	return nil
}
