package task

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/javiermolinar/cadence/internal/timing"
)

// Dependency is a precedence constraint from a predecessor to the task
// that owns it.
type Dependency struct {
	PredecessorID string
	Type          timing.DependencyType
	LagHours      float64
}

// NewDependency creates a validated dependency.
func NewDependency(predecessorID, depType string, lagHours float64) (Dependency, error) {
	if err := ValidateID(predecessorID); err != nil {
		return Dependency{}, fmt.Errorf("%w: predecessor: %w", ErrInvalidDependency, err)
	}
	typ, err := timing.ParseDependencyType(depType)
	if err != nil {
		return Dependency{}, fmt.Errorf("%w: %w", ErrInvalidDependency, err)
	}
	if math.IsNaN(lagHours) || math.IsInf(lagHours, 0) || math.Abs(lagHours) > timing.MaxLagHours {
		return Dependency{}, fmt.Errorf("%w: lag must be a finite number of hours", ErrInvalidDependency)
	}
	return Dependency{PredecessorID: predecessorID, Type: typ, LagHours: lagHours}, nil
}

// ParseDependency parses "PREDECESSOR:TYPE[:LAG]", e.g. "<uuid>:FS:24".
// TYPE defaults to FS when omitted.
func ParseDependency(s string) (Dependency, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 0 || len(parts) > 3 || parts[0] == "" {
		return Dependency{}, fmt.Errorf("%w: expected PREDECESSOR:TYPE[:LAG], got %q", ErrInvalidDependency, s)
	}

	typ := string(timing.FinishToStart)
	if len(parts) >= 2 && parts[1] != "" {
		typ = parts[1]
	}

	var lag float64
	if len(parts) == 3 {
		v, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return Dependency{}, fmt.Errorf("%w: lag %q is not a number", ErrInvalidDependency, parts[2])
		}
		lag = v
	}

	return NewDependency(parts[0], typ, lag)
}

// String formats the dependency the way ParseDependency reads it.
func (d Dependency) String() string {
	if d.LagHours == 0 {
		return fmt.Sprintf("%s:%s", d.PredecessorID, d.Type)
	}
	return fmt.Sprintf("%s:%s:%s", d.PredecessorID, d.Type, strconv.FormatFloat(d.LagHours, 'f', -1, 64))
}

// Constraint binds the dependency to its predecessor's resolved window.
func (d Dependency) Constraint(predecessor *Task) timing.Constraint {
	return timing.Constraint{
		PredecessorID: d.PredecessorID,
		Type:          d.Type,
		LagHours:      d.LagHours,
		Predecessor:   predecessor.Window(),
	}
}
