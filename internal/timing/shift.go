package timing

import (
	"errors"
	"math"
	"time"
)

// MaxShiftHours bounds a single shift so the delta stays inside time.Duration.
const MaxShiftHours = MaxLagHours

// ErrShiftOutOfRange is returned by ValidateShift.
var ErrShiftOutOfRange = errors.New("shift must be a finite number of hours within 36500 days")

// ValidateShift reports whether deltaHours can be applied by Shift without
// overflowing. Callers check it before Shift.
func ValidateShift(deltaHours float64) error {
	if math.IsNaN(deltaHours) || math.IsInf(deltaHours, 0) || math.Abs(deltaHours) > MaxShiftHours {
		return ErrShiftOutOfRange
	}
	return nil
}

// Shift moves every instant of w by deltaHours. Dependencies and parent
// containment are not re-checked; dependents must be re-resolved by the caller.
func Shift(w Window, deltaHours float64) Window {
	return ShiftBy(w, time.Duration(deltaHours*float64(time.Hour)))
}

// ShiftBy moves every instant of w by d.
func ShiftBy(w Window, d time.Duration) Window {
	out := Window{
		Start: w.Start.Add(d),
		End:   w.End.Add(d),
	}
	if w.Deadline != nil {
		dl := w.Deadline.Add(d)
		out.Deadline = &dl
	}
	return out
}
