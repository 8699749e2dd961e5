package timing

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Validation errors. Every error returned by Resolve wraps ErrInvalidInput
// and one of the more specific errors below.
var (
	ErrInvalidInput          = errors.New("invalid timing input")
	ErrNoAnchor              = errors.New("specify a duration or a date")
	ErrNegativeDuration      = errors.New("duration must be a finite, non-negative number of days")
	ErrDurationTooLong       = errors.New("duration is too long")
	ErrNonFiniteLag          = errors.New("lag must be a finite number of hours")
	ErrZeroInstant           = errors.New("instant is not set")
	ErrEndBeforeStart        = errors.New("end must not be before start")
	ErrUnknownDependencyType = errors.New("dependency type must be one of FS, SS, FF, SF")
)

const (
	// DefaultMinSpan is the window given to zero-duration tasks.
	DefaultMinSpan = time.Minute

	// MaxDurationDays keeps spans well inside time.Duration's range.
	MaxDurationDays = 36500

	// MaxLagHours bounds the lag of a single constraint.
	MaxLagHours = MaxDurationDays * 24
)

// Stage names reported to a TraceFunc, in pipeline order.
const (
	StageSeed        = "seed"
	StageFloors      = "dependency_floors"
	StageContainment = "containment"
	StageCeiling     = "deadline_ceiling"
	StageFinal       = "final"
)

// TraceFunc observes the window after each pipeline stage.
type TraceFunc func(stage string, w Window)

// Resolver computes consistent windows from partial timing input.
// A Resolver is immutable and safe for concurrent use.
type Resolver struct {
	clock   Clock
	minSpan time.Duration
	trace   TraceFunc
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock sets the clock used for the last-resort start.
func WithClock(c Clock) Option {
	return func(r *Resolver) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithMinSpan sets the window given to zero-duration tasks.
// Non-positive values are ignored.
func WithMinSpan(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.minSpan = d
		}
	}
}

// WithTrace registers a callback invoked after each pipeline stage.
func WithTrace(fn TraceFunc) Option {
	return func(r *Resolver) {
		r.trace = fn
	}
}

// NewResolver creates a Resolver. Defaults: SystemClock, DefaultMinSpan.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		clock:   SystemClock{},
		minSpan: DefaultMinSpan,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve computes the window of one task from its partial input and its
// already-resolved parent and predecessors.
//
// Stages run in a fixed order: seed from explicit dates, derive the missing
// endpoint from the span, raise to the dependency floors, then either clamp
// into the parent window or pull back under the project deadline. The
// project deadline is a preference: a dependency floor may still push the
// end past it, which is reported through DeadlineOverrun.
func (r *Resolver) Resolve(in Input, b Bounds) (Resolution, error) {
	if err := validate(in, b); err != nil {
		return Resolution{}, err
	}
	if in.DurationDays == 0 && !in.hasExplicitDates() && len(in.Dependencies) == 0 &&
		b.Parent == nil && b.ProjectDeadline == nil {
		return Resolution{}, fmt.Errorf("%w: %w", ErrInvalidInput, ErrNoAnchor)
	}

	span := r.spanFor(in.DurationDays)
	f := computeDependencyFloors(in.Dependencies)

	start, end := seedWindow(in, b)
	w := deriveMissing(start, end, span, f, r.clock)
	r.emit(StageSeed, w)

	w = applyDependencyFloors(w, f, span)
	r.emit(StageFloors, w)

	res := Resolution{Span: span}
	switch {
	case b.Parent != nil:
		w, res.ContainmentConflict = applyContainment(w, *b.Parent, span)
		r.emit(StageContainment, w)
	case b.ProjectDeadline != nil && (len(in.Dependencies) > 0 || !in.hasExplicitDates()):
		w = applyDeadlineCeiling(w, *b.ProjectDeadline, f, span)
		r.emit(StageCeiling, w)
	}

	res.Window = finalizeDeadline(w, in.Deadline)
	res.DeadlineOverrun = b.ProjectDeadline != nil && res.End.After(*b.ProjectDeadline)
	res.DeadlineMissed = in.Deadline != nil && res.End.After(*in.Deadline)
	r.emit(StageFinal, res.Window)

	return res, nil
}

// Resolve resolves with a default Resolver.
func Resolve(in Input, b Bounds) (Resolution, error) {
	return NewResolver().Resolve(in, b)
}

func (r *Resolver) emit(stage string, w Window) {
	if r.trace != nil {
		r.trace(stage, w)
	}
}

// spanFor converts a duration in days to a window length of at least minSpan.
func (r *Resolver) spanFor(days float64) time.Duration {
	span := time.Duration(days * float64(Day))
	if span < r.minSpan {
		return r.minSpan
	}
	return span
}

// lagDuration converts signed lag hours to a duration.
func lagDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

// floors holds the latest start and end bounds produced by dependencies.
// A nil field means no dependency produced that bound.
type floors struct {
	start *time.Time
	end   *time.Time
}

// computeDependencyFloors folds every constraint into the latest start
// floor (FS, SS) and the latest end floor (FF, SF).
func computeDependencyFloors(deps []Constraint) floors {
	var f floors
	for _, c := range deps {
		bound := c.anchor().Add(lagDuration(c.LagHours))
		if c.Type.BoundsStart() {
			f.start = later(f.start, bound)
		} else {
			f.end = later(f.end, bound)
		}
	}
	return f
}

// seedWindow picks the explicit anchors. A deadline stands in for a missing
// planned end. With no dates at all, a subtask is pushed to the tail of its
// parent and a top-level task to the project deadline.
func seedWindow(in Input, b Bounds) (start, end *time.Time) {
	start = in.PlannedStart
	end = in.PlannedEnd
	if end == nil && in.Deadline != nil {
		end = in.Deadline
	}
	if start != nil || end != nil {
		return start, end
	}
	switch {
	case b.Parent != nil:
		e := b.Parent.End
		end = &e
	case b.ProjectDeadline != nil:
		end = b.ProjectDeadline
	}
	return start, end
}

// deriveMissing fills the endpoint that was not seeded. When nothing was
// seeded the start falls back to the dependency floors, then to the clock.
func deriveMissing(start, end *time.Time, span time.Duration, f floors, clock Clock) Window {
	switch {
	case start != nil && end != nil:
		w := Window{Start: *start, End: *end}
		w.End = latest(w.End, w.Start.Add(span))
		return w
	case start != nil:
		return Window{Start: *start, End: start.Add(span)}
	case end != nil:
		return Window{Start: end.Add(-span), End: *end}
	}

	s := clock.Now()
	switch {
	case f.start != nil:
		s = *f.start
	case f.end != nil:
		s = f.end.Add(-span)
	}
	return Window{Start: s, End: s.Add(span)}
}

// applyDependencyFloors raises the window to the start and end floors.
// The start floor wins when the two disagree.
func applyDependencyFloors(w Window, f floors, span time.Duration) Window {
	if f.start != nil && f.start.After(w.Start) {
		w.Start = *f.start
		w.End = latest(w.End, w.Start.Add(span))
	}
	if f.end != nil && f.end.After(w.End) {
		w.End = *f.end
		w.Start = w.End.Add(-span)
		if f.start != nil && w.Start.Before(*f.start) {
			w.Start = *f.start
			w.End = latest(w.End, w.Start.Add(span))
		}
	}
	return w
}

// applyContainment clamps w into the parent window. Parent bounds win over
// the span: when the span does not fit, the window is shrunk to the parent
// and the conflict is reported.
func applyContainment(w Window, parent Window, span time.Duration) (Window, bool) {
	conflict := false
	if w.Start.Before(parent.Start) {
		w.Start = parent.Start
	}
	if w.Start.After(w.End.Add(-span)) {
		w.End = w.Start.Add(span)
	}
	if w.End.After(parent.End) {
		w.End = parent.End
		if w.End.Add(-span).Before(w.Start) {
			w.Start = w.End.Add(-span)
			if w.Start.Before(parent.Start) {
				w.Start = parent.Start
				conflict = true
			}
		}
	}
	return w, conflict
}

// applyDeadlineCeiling pulls the window back under the project deadline and
// re-applies the dependency floors once. The floors may push the end past
// the deadline again.
func applyDeadlineCeiling(w Window, deadline time.Time, f floors, span time.Duration) Window {
	if !w.End.After(deadline) {
		return w
	}
	w.End = deadline
	w.Start = deadline.Add(-span)
	return applyDependencyFloors(w, f, span)
}

// finalizeDeadline keeps an explicit deadline, otherwise the deadline is the end.
func finalizeDeadline(w Window, explicit *time.Time) Window {
	d := w.End
	if explicit != nil {
		d = *explicit
	}
	w.Deadline = &d
	return w
}

func validate(in Input, b Bounds) error {
	if math.IsNaN(in.DurationDays) || math.IsInf(in.DurationDays, 0) || in.DurationDays < 0 {
		return invalid(ErrNegativeDuration, fmt.Sprintf("duration %v", in.DurationDays))
	}
	if in.DurationDays > MaxDurationDays {
		return invalid(ErrDurationTooLong, fmt.Sprintf("duration %v days", in.DurationDays))
	}

	instants := []struct {
		name string
		t    *time.Time
	}{
		{"planned start", in.PlannedStart},
		{"planned end", in.PlannedEnd},
		{"deadline", in.Deadline},
		{"project deadline", b.ProjectDeadline},
	}
	for _, it := range instants {
		if it.t != nil && it.t.IsZero() {
			return invalid(ErrZeroInstant, it.name)
		}
	}
	if in.PlannedStart != nil && in.PlannedEnd != nil && in.PlannedEnd.Before(*in.PlannedStart) {
		return invalid(ErrEndBeforeStart, "planned window")
	}

	if b.Parent != nil {
		if err := validateWindow(*b.Parent, "parent"); err != nil {
			return err
		}
	}

	for i, c := range in.Dependencies {
		name := c.PredecessorID
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		if !c.Type.Valid() {
			return invalid(ErrUnknownDependencyType, fmt.Sprintf("dependency %s: %q", name, c.Type))
		}
		if math.IsNaN(c.LagHours) || math.IsInf(c.LagHours, 0) || math.Abs(c.LagHours) > MaxLagHours {
			return invalid(ErrNonFiniteLag, fmt.Sprintf("dependency %s: lag %v", name, c.LagHours))
		}
		if err := validateWindow(c.Predecessor, "predecessor "+name); err != nil {
			return err
		}
	}
	return nil
}

func validateWindow(w Window, name string) error {
	if w.Start.IsZero() || w.End.IsZero() {
		return invalid(ErrZeroInstant, name)
	}
	if w.End.Before(w.Start) {
		return invalid(ErrEndBeforeStart, name)
	}
	return nil
}

func invalid(err error, detail string) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalidInput, detail, err)
}

// later returns the later of cur and t, treating nil as absent.
func later(cur *time.Time, t time.Time) *time.Time {
	if cur == nil || t.After(*cur) {
		return &t
	}
	return cur
}

func latest(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
