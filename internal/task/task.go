// Package task defines the core domain types for cadence.
package task

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/javiermolinar/cadence/internal/timing"
)

// Validation errors.
var (
	ErrEmptyTitle        = errors.New("title cannot be empty")
	ErrTitleTooLong      = errors.New("title cannot exceed 200 characters")
	ErrInvalidDuration   = errors.New("duration must be a non-negative number of days")
	ErrEndBeforeStart    = errors.New("planned end must be after planned start")
	ErrInvalidStatus     = errors.New("status must be one of Planned, InProgress, Done, Blocked, Cancelled")
	ErrInvalidID         = errors.New("id must be a UUID")
	ErrSelfDependency    = errors.New("a task cannot depend on itself")
	ErrSelfParent        = errors.New("a task cannot be its own parent")
	ErrInvalidDependency = errors.New("invalid dependency")
)

// Domain errors.
var (
	ErrTaskNotFound         = errors.New("task not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrParentOutsideProject = errors.New("parent must refer to a task within the same project")
	ErrPredecessorOutside   = errors.New("predecessor must refer to a task within the same project")
	ErrDuplicateDependency  = errors.New("dependency between these tasks already exists")
)

// MaxTitleLength is the longest accepted task or project title.
const MaxTitleLength = 200

// Status represents the state of a task.
type Status string

const (
	StatusPlanned    Status = "Planned"
	StatusInProgress Status = "InProgress"
	StatusDone       Status = "Done"
	StatusBlocked    Status = "Blocked"
	StatusCancelled  Status = "Cancelled"
)

// Valid returns true if the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusDone, StatusBlocked, StatusCancelled:
		return true
	default:
		return false
	}
}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{StatusPlanned, StatusInProgress, StatusDone, StatusBlocked, StatusCancelled} {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

// Task is the durable record of a scheduled piece of work.
type Task struct {
	ID           string
	ProjectID    string
	ParentID     *string // nil for top-level tasks
	Title        string
	Description  string
	Status       Status
	Duration     float64 // days, fractional allowed
	PlannedStart time.Time
	PlannedEnd   time.Time
	Deadline     *time.Time
	Dependencies []Dependency // predecessors of this task
	CreatedAt    time.Time
}

// New creates a new Task with validation. The planned window is left
// empty; it is filled by ApplyWindow once resolved.
func New(projectID, title, description string, durationDays float64) (*Task, error) {
	if err := ValidateID(projectID); err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	title, err := validateTitle(title)
	if err != nil {
		return nil, err
	}
	if err := ValidateDuration(durationDays); err != nil {
		return nil, err
	}

	return &Task{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Status:      StatusPlanned,
		Duration:    durationDays,
		CreatedAt:   time.Now(),
	}, nil
}

// SetParent attaches the task to a parent task.
func (t *Task) SetParent(parentID string) error {
	if err := ValidateID(parentID); err != nil {
		return fmt.Errorf("parent: %w", err)
	}
	if parentID == t.ID {
		return ErrSelfParent
	}
	t.ParentID = &parentID
	return nil
}

// Rename validates and sets a new title.
func (t *Task) Rename(title string) error {
	title, err := validateTitle(title)
	if err != nil {
		return err
	}
	t.Title = title
	return nil
}

// AddDependency appends a predecessor constraint.
func (t *Task) AddDependency(d Dependency) error {
	if d.PredecessorID == t.ID {
		return ErrSelfDependency
	}
	for _, existing := range t.Dependencies {
		if existing.PredecessorID == d.PredecessorID {
			return ErrDuplicateDependency
		}
	}
	t.Dependencies = append(t.Dependencies, d)
	return nil
}

// Window returns the task's schedule.
func (t *Task) Window() timing.Window {
	w := timing.Window{Start: t.PlannedStart, End: t.PlannedEnd}
	if t.Deadline != nil {
		d := *t.Deadline
		w.Deadline = &d
	}
	return w
}

// ApplyWindow stores a resolved window on the task.
func (t *Task) ApplyWindow(w timing.Window) {
	t.PlannedStart = w.Start
	t.PlannedEnd = w.End
	t.Deadline = nil
	if w.Deadline != nil {
		d := *w.Deadline
		t.Deadline = &d
	}
}

// IsSubtask returns true if the task has a parent.
func (t *Task) IsSubtask() bool {
	return t.ParentID != nil
}

// IsScheduled returns true if the task has a resolved window.
func (t *Task) IsScheduled() bool {
	return !t.PlannedStart.IsZero() && !t.PlannedEnd.IsZero()
}

// IsOverdue returns true if the task is not done and its deadline has passed.
func (t *Task) IsOverdue(now time.Time) bool {
	if t.Deadline == nil || t.Status == StatusDone || t.Status == StatusCancelled {
		return false
	}
	return now.After(*t.Deadline)
}

// ValidateID checks that s is a UUID.
func ValidateID(s string) error {
	if _, err := uuid.Parse(s); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return nil
}

// ValidateDuration checks that days is finite and non-negative.
func ValidateDuration(days float64) error {
	if math.IsNaN(days) || math.IsInf(days, 0) || days < 0 || days > timing.MaxDurationDays {
		return ErrInvalidDuration
	}
	return nil
}

// ValidatePlannedPair checks an explicitly given start/end pair.
func ValidatePlannedPair(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return ErrEndBeforeStart
	}
	return nil
}

func validateTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ErrEmptyTitle
	}
	if len([]rune(title)) > MaxTitleLength {
		return "", ErrTitleTooLong
	}
	return title, nil
}
