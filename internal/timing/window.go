// Package timing resolves task windows from partial timing input and
// dependency constraints, and shifts existing windows by a fixed delta.
//
// Everything in this package is pure: no I/O, no shared state, and "now" is
// injected through a Clock.
package timing

import (
	"fmt"
	"strings"
	"time"
)

// Day is the length of one duration day.
const Day = 24 * time.Hour

// Window is the schedule of a task.
type Window struct {
	Start    time.Time
	End      time.Time
	Deadline *time.Time // nil when no deadline is set
}

// Span returns End - Start.
func (w Window) Span() time.Duration {
	return w.End.Sub(w.Start)
}

// Contains returns true if other lies fully inside w.
func (w Window) Contains(other Window) bool {
	return !other.Start.Before(w.Start) && !other.End.After(w.End)
}

// Equal reports whether both windows describe the same instants.
func (w Window) Equal(other Window) bool {
	if !w.Start.Equal(other.Start) || !w.End.Equal(other.End) {
		return false
	}
	if w.Deadline == nil || other.Deadline == nil {
		return w.Deadline == nil && other.Deadline == nil
	}
	return w.Deadline.Equal(*other.Deadline)
}

// DependencyType is the kind of precedence constraint between two tasks.
type DependencyType string

const (
	FinishToStart  DependencyType = "FS"
	StartToStart   DependencyType = "SS"
	FinishToFinish DependencyType = "FF"
	StartToFinish  DependencyType = "SF"
)

// Valid returns true if the type is one of the four known codes.
func (d DependencyType) Valid() bool {
	switch d {
	case FinishToStart, StartToStart, FinishToFinish, StartToFinish:
		return true
	default:
		return false
	}
}

// BoundsStart returns true if the constraint produces a floor on the
// successor's start (FS, SS). FF and SF bound the successor's end.
func (d DependencyType) BoundsStart() bool {
	return d == FinishToStart || d == StartToStart
}

// ParseDependencyType parses a case-insensitive FS/SS/FF/SF code.
func ParseDependencyType(s string) (DependencyType, error) {
	d := DependencyType(strings.ToUpper(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownDependencyType, s)
	}
	return d, nil
}

// Constraint is a precedence edge from an already-resolved predecessor to
// the task being resolved.
type Constraint struct {
	PredecessorID string
	Type          DependencyType
	LagHours      float64 // negative lag means lead time
	Predecessor   Window
}

// anchor returns the predecessor instant the constraint is measured from.
func (c Constraint) anchor() time.Time {
	switch c.Type {
	case FinishToStart, FinishToFinish:
		return c.Predecessor.End
	default:
		return c.Predecessor.Start
	}
}

// Input is the partially specified timing of a task.
type Input struct {
	PlannedStart *time.Time
	PlannedEnd   *time.Time
	Deadline     *time.Time
	DurationDays float64
	Dependencies []Constraint
}

// hasExplicitDates returns true if the caller gave any of start, end or deadline.
func (in Input) hasExplicitDates() bool {
	return in.PlannedStart != nil || in.PlannedEnd != nil || in.Deadline != nil
}

// Bounds carries the already-resolved surroundings of a task.
type Bounds struct {
	Parent          *Window    // set only for subtasks
	ProjectDeadline *time.Time // fallback end anchor and soft ceiling
}

// Resolution is the output of Resolve.
type Resolution struct {
	Window

	// Span is the minimum window length derived from the duration.
	Span time.Duration

	// ContainmentConflict is set when the span did not fit inside the
	// parent window and the task was shrunk to the parent's bounds.
	ContainmentConflict bool

	// DeadlineOverrun is set when End is after the project deadline.
	DeadlineOverrun bool

	// DeadlineMissed is set when End is after an explicit task deadline.
	DeadlineMissed bool
}

// Warnings returns human readable notices for every flag that is set.
func (r Resolution) Warnings() []string {
	var out []string
	if r.ContainmentConflict {
		out = append(out, "duration does not fit inside the parent task; window shrunk to the parent's bounds")
	}
	if r.DeadlineOverrun {
		out = append(out, "planned end is after the project deadline")
	}
	if r.DeadlineMissed {
		out = append(out, "planned end is after the task deadline")
	}
	return out
}
