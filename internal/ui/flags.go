package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/javiermolinar/cadence/internal/dateutil"
	"github.com/javiermolinar/cadence/internal/task"
	"github.com/javiermolinar/cadence/internal/timing"
)

var (
	errPredecessorFormat = errors.New("predecessor must be NAME=START,END")
	errConstraintFormat  = errors.New("dependency must be NAME[:TYPE[:LAG]]")
	errUnknownPredName   = errors.New("dependency refers to an unknown predecessor")
)

// parseTimeFlag parses an optional instant flag in the configured zone.
func (a *App) parseTimeFlag(name, value string) (*time.Time, error) {
	t, err := dateutil.ParseOptionalInstant(value, a.now(), a.location())
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}

// parseDependencies parses repeated --dep PRED:TYPE[:LAG] values.
func parseDependencies(values []string) ([]task.Dependency, error) {
	deps := make([]task.Dependency, 0, len(values))
	for _, v := range values {
		d, err := task.ParseDependency(v)
		if err != nil {
			return nil, fmt.Errorf("--dep: %w", err)
		}
		deps = append(deps, d)
	}
	return deps, nil
}

// parsePredecessor parses a NAME=START,END predecessor window.
func (a *App) parsePredecessor(v string) (string, timing.Window, error) {
	name, rest, ok := strings.Cut(v, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", timing.Window{}, fmt.Errorf("%w, got %q", errPredecessorFormat, v)
	}
	startStr, endStr, ok := strings.Cut(rest, ",")
	if !ok {
		return "", timing.Window{}, fmt.Errorf("%w, got %q", errPredecessorFormat, v)
	}

	now, loc := a.now(), a.location()
	start, err := dateutil.ParseInstant(startStr, now, loc)
	if err != nil {
		return "", timing.Window{}, fmt.Errorf("predecessor %s start: %w", name, err)
	}
	end, err := dateutil.ParseInstant(endStr, now, loc)
	if err != nil {
		return "", timing.Window{}, fmt.Errorf("predecessor %s end: %w", name, err)
	}
	return name, timing.Window{Start: start, End: end}, nil
}

// parseConstraint parses NAME[:TYPE[:LAG]] against named predecessor
// windows. TYPE defaults to FS.
func parseConstraint(v string, preds map[string]timing.Window) (timing.Constraint, error) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) > 3 || parts[0] == "" {
		return timing.Constraint{}, fmt.Errorf("%w, got %q", errConstraintFormat, v)
	}

	c := timing.Constraint{PredecessorID: parts[0], Type: timing.FinishToStart}
	if len(parts) >= 2 && parts[1] != "" {
		typ, err := timing.ParseDependencyType(parts[1])
		if err != nil {
			return timing.Constraint{}, err
		}
		c.Type = typ
	}
	if len(parts) == 3 {
		lag, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return timing.Constraint{}, fmt.Errorf("%w: lag %q is not a number", errConstraintFormat, parts[2])
		}
		c.LagHours = lag
	}

	w, ok := preds[c.PredecessorID]
	if !ok {
		return timing.Constraint{}, fmt.Errorf("%w: %s", errUnknownPredName, c.PredecessorID)
	}
	c.Predecessor = w
	return c, nil
}
