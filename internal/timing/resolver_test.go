package timing

import (
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"
)

var testNow = at("2024-01-01T00:00:00Z")

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time {
	return &t
}

func newTestResolver() *Resolver {
	return NewResolver(WithClock(FixedClock(testNow)))
}

func window(start, end string) Window {
	return Window{Start: at(start), End: at(end)}
}

func assertWindow(t *testing.T, got Resolution, wantStart, wantEnd string) {
	t.Helper()
	if !got.Start.Equal(at(wantStart)) {
		t.Errorf("expected start %s, got %s", wantStart, got.Start.Format(time.RFC3339))
	}
	if !got.End.Equal(at(wantEnd)) {
		t.Errorf("expected end %s, got %s", wantEnd, got.End.Format(time.RFC3339))
	}
}

func TestResolve_ScenarioA_FinishToStartWithLag(t *testing.T) {
	r := newTestResolver()
	in := Input{
		DurationDays: 2,
		Dependencies: []Constraint{{
			PredecessorID: "design",
			Type:          FinishToStart,
			LagHours:      24,
			Predecessor:   window("2024-01-08T00:00:00Z", "2024-01-10T00:00:00Z"),
		}},
	}

	got, err := r.Resolve(in, Bounds{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertWindow(t, got, "2024-01-11T00:00:00Z", "2024-01-13T00:00:00Z")
	if got.Deadline == nil || !got.Deadline.Equal(got.End) {
		t.Errorf("expected deadline to default to end, got %v", got.Deadline)
	}
}

func TestResolve_ScenarioB_ZeroDurationProjectDeadline(t *testing.T) {
	r := newTestResolver()
	pd := at("2024-02-01T00:00:00Z")

	got, err := r.Resolve(Input{DurationDays: 0}, Bounds{ProjectDeadline: &pd})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !got.End.Equal(pd) {
		t.Errorf("expected end %v, got %v", pd, got.End)
	}
	if !got.Start.Before(got.End) {
		t.Fatalf("expected start strictly before end, got %v >= %v", got.Start, got.End)
	}
	if got.End.Sub(got.Start) != DefaultMinSpan {
		t.Errorf("expected epsilon window %v, got %v", DefaultMinSpan, got.End.Sub(got.Start))
	}
	if got.DeadlineOverrun {
		t.Error("expected no deadline overrun")
	}
}

func TestResolve_ScenarioC_ChildLongerThanParent(t *testing.T) {
	r := newTestResolver()
	parent := window("2024-01-01T00:00:00Z", "2024-01-05T00:00:00Z")

	got, err := r.Resolve(Input{DurationDays: 10}, Bounds{Parent: &parent})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	assertWindow(t, got, "2024-01-01T00:00:00Z", "2024-01-05T00:00:00Z")
	if !got.ContainmentConflict {
		t.Error("expected containment conflict to be reported")
	}
}

func TestResolve_DependencyTypes(t *testing.T) {
	pred := window("2024-01-05T00:00:00Z", "2024-01-10T00:00:00Z")

	tests := []struct {
		name      string
		in        Input
		wantStart string
		wantEnd   string
	}{
		{
			name: "SS with lead time",
			in: Input{
				DurationDays: 1,
				Dependencies: []Constraint{{Type: StartToStart, LagHours: -12, Predecessor: pred}},
			},
			wantStart: "2024-01-04T12:00:00Z",
			wantEnd:   "2024-01-05T12:00:00Z",
		},
		{
			name: "FF anchors the end",
			in: Input{
				DurationDays: 2,
				Dependencies: []Constraint{{Type: FinishToFinish, Predecessor: pred}},
			},
			wantStart: "2024-01-08T00:00:00Z",
			wantEnd:   "2024-01-10T00:00:00Z",
		},
		{
			name: "SF raises the end and pulls the start",
			in: Input{
				PlannedStart: ptr(at("2024-01-01T00:00:00Z")),
				DurationDays: 1,
				Dependencies: []Constraint{{Type: StartToFinish, LagHours: 48, Predecessor: pred}},
			},
			wantStart: "2024-01-06T00:00:00Z",
			wantEnd:   "2024-01-07T00:00:00Z",
		},
		{
			name: "FS raises an explicit start",
			in: Input{
				PlannedStart: ptr(at("2024-01-02T00:00:00Z")),
				DurationDays: 1,
				Dependencies: []Constraint{{Type: FinishToStart, Predecessor: pred}},
			},
			wantStart: "2024-01-10T00:00:00Z",
			wantEnd:   "2024-01-11T00:00:00Z",
		},
		{
			name: "FS below an explicit start is ignored",
			in: Input{
				PlannedStart: ptr(at("2024-01-20T00:00:00Z")),
				DurationDays: 1,
				Dependencies: []Constraint{{Type: FinishToStart, Predecessor: pred}},
			},
			wantStart: "2024-01-20T00:00:00Z",
			wantEnd:   "2024-01-21T00:00:00Z",
		},
	}

	r := newTestResolver()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Resolve(tc.in, Bounds{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertWindow(t, got, tc.wantStart, tc.wantEnd)
		})
	}
}

func TestResolve_LatestPredecessorWins(t *testing.T) {
	r := newTestResolver()
	in := Input{
		DurationDays: 1,
		Dependencies: []Constraint{
			{PredecessorID: "a", Type: FinishToStart, Predecessor: window("2024-01-01T00:00:00Z", "2024-01-10T00:00:00Z")},
			{PredecessorID: "b", Type: FinishToStart, Predecessor: window("2024-01-01T00:00:00Z", "2024-01-12T00:00:00Z")},
			{PredecessorID: "c", Type: StartToStart, LagHours: 6, Predecessor: window("2024-01-11T00:00:00Z", "2024-01-13T00:00:00Z")},
		},
	}

	got, err := r.Resolve(in, Bounds{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertWindow(t, got, "2024-01-12T00:00:00Z", "2024-01-13T00:00:00Z")
}

func TestResolve_FinishToStartIdempotence(t *testing.T) {
	end := at("2024-03-15T09:30:00Z")
	lags := []float64{-36, -1.5, 0, 0.25, 8, 72}

	for _, clock := range []time.Time{testNow, at("2030-06-01T00:00:00Z")} {
		r := NewResolver(WithClock(FixedClock(clock)))
		for _, lag := range lags {
			in := Input{
				DurationDays: 1.5,
				Dependencies: []Constraint{{
					Type:        FinishToStart,
					LagHours:    lag,
					Predecessor: Window{Start: end.Add(-48 * time.Hour), End: end},
				}},
			}
			got, err := r.Resolve(in, Bounds{})
			if err != nil {
				t.Fatalf("lag %v: unexpected error: %v", lag, err)
			}
			want := end.Add(lagDuration(lag))
			if !got.Start.Equal(want) {
				t.Errorf("clock %v lag %v: expected start %v, got %v", clock, lag, want, got.Start)
			}
		}
	}
}

func TestResolve_SeedFromExplicitInput(t *testing.T) {
	r := newTestResolver()

	t.Run("start only", func(t *testing.T) {
		got, err := r.Resolve(Input{PlannedStart: ptr(at("2024-01-03T08:00:00Z")), DurationDays: 0.5}, Bounds{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertWindow(t, got, "2024-01-03T08:00:00Z", "2024-01-03T20:00:00Z")
	})

	t.Run("end only", func(t *testing.T) {
		got, err := r.Resolve(Input{PlannedEnd: ptr(at("2024-01-03T08:00:00Z")), DurationDays: 1}, Bounds{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertWindow(t, got, "2024-01-02T08:00:00Z", "2024-01-03T08:00:00Z")
	})

	t.Run("deadline stands in for end", func(t *testing.T) {
		dl := at("2024-01-10T00:00:00Z")
		got, err := r.Resolve(Input{Deadline: &dl, DurationDays: 2}, Bounds{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertWindow(t, got, "2024-01-08T00:00:00Z", "2024-01-10T00:00:00Z")
		if !got.Deadline.Equal(dl) {
			t.Errorf("expected explicit deadline %v, got %v", dl, got.Deadline)
		}
	})

	t.Run("explicit pair narrower than duration is widened", func(t *testing.T) {
		in := Input{
			PlannedStart: ptr(at("2024-01-01T00:00:00Z")),
			PlannedEnd:   ptr(at("2024-01-02T00:00:00Z")),
			DurationDays: 3,
		}
		got, err := r.Resolve(in, Bounds{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertWindow(t, got, "2024-01-01T00:00:00Z", "2024-01-04T00:00:00Z")
	})

	t.Run("explicit pair wider than duration is kept", func(t *testing.T) {
		in := Input{
			PlannedStart: ptr(at("2024-01-01T00:00:00Z")),
			PlannedEnd:   ptr(at("2024-01-09T00:00:00Z")),
			DurationDays: 3,
		}
		got, err := r.Resolve(in, Bounds{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertWindow(t, got, "2024-01-01T00:00:00Z", "2024-01-09T00:00:00Z")
	})

	t.Run("nothing given falls back to the clock", func(t *testing.T) {
		got, err := r.Resolve(Input{DurationDays: 2}, Bounds{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertWindow(t, got, "2024-01-01T00:00:00Z", "2024-01-03T00:00:00Z")
	})
}

func TestResolve_ExplicitDeadline(t *testing.T) {
	r := newTestResolver()

	t.Run("kept when end is earlier", func(t *testing.T) {
		in := Input{
			PlannedStart: ptr(at("2024-01-01T00:00:00Z")),
			PlannedEnd:   ptr(at("2024-01-02T00:00:00Z")),
			Deadline:     ptr(at("2024-01-05T00:00:00Z")),
			DurationDays: 1,
		}
		got, err := r.Resolve(in, Bounds{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !got.Deadline.Equal(at("2024-01-05T00:00:00Z")) {
			t.Errorf("expected explicit deadline to be kept, got %v", got.Deadline)
		}
		if got.DeadlineMissed {
			t.Error("expected deadline not to be missed")
		}
	})

	t.Run("missed when the span does not fit", func(t *testing.T) {
		in := Input{
			PlannedStart: ptr(at("2024-01-01T00:00:00Z")),
			Deadline:     ptr(at("2024-01-01T12:00:00Z")),
			DurationDays: 1,
		}
		got, err := r.Resolve(in, Bounds{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertWindow(t, got, "2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z")
		if !got.DeadlineMissed {
			t.Error("expected deadline to be reported as missed")
		}
		if !got.Deadline.Equal(at("2024-01-01T12:00:00Z")) {
			t.Errorf("expected deadline unchanged, got %v", got.Deadline)
		}
	})
}

func TestResolve_Containment(t *testing.T) {
	parent := window("2024-01-01T00:00:00Z", "2024-01-31T00:00:00Z")

	tests := []struct {
		name         string
		in           Input
		wantStart    string
		wantEnd      string
		wantConflict bool
	}{
		{
			name:      "no dates goes to the tail of the parent",
			in:        Input{DurationDays: 2},
			wantStart: "2024-01-29T00:00:00Z",
			wantEnd:   "2024-01-31T00:00:00Z",
		},
		{
			name:      "start before parent is clamped",
			in:        Input{PlannedStart: ptr(at("2023-12-25T00:00:00Z")), DurationDays: 2},
			wantStart: "2024-01-01T00:00:00Z",
			wantEnd:   "2024-01-03T00:00:00Z",
		},
		{
			name:      "end after parent is pulled back",
			in:        Input{PlannedStart: ptr(at("2024-01-30T00:00:00Z")), DurationDays: 3},
			wantStart: "2024-01-28T00:00:00Z",
			wantEnd:   "2024-01-31T00:00:00Z",
		},
		{
			name: "dependency floor past the parent loses to the parent",
			in: Input{
				DurationDays: 3,
				Dependencies: []Constraint{{
					Type:        FinishToStart,
					Predecessor: window("2024-01-20T00:00:00Z", "2024-01-30T00:00:00Z"),
				}},
			},
			wantStart: "2024-01-28T00:00:00Z",
			wantEnd:   "2024-01-31T00:00:00Z",
		},
		{
			name:         "start after parent end collapses to the parent",
			in:           Input{PlannedStart: ptr(at("2024-03-01T00:00:00Z")), DurationDays: 40},
			wantStart:    "2024-01-01T00:00:00Z",
			wantEnd:      "2024-01-31T00:00:00Z",
			wantConflict: true,
		},
	}

	r := newTestResolver()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := r.Resolve(tc.in, Bounds{Parent: &parent})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertWindow(t, got, tc.wantStart, tc.wantEnd)
			if got.ContainmentConflict != tc.wantConflict {
				t.Errorf("expected conflict %v, got %v", tc.wantConflict, got.ContainmentConflict)
			}
		})
	}
}

func TestResolve_ProjectDeadlineCeiling(t *testing.T) {
	pd := at("2024-01-20T00:00:00Z")
	r := newTestResolver()

	t.Run("duration only is pushed to the deadline", func(t *testing.T) {
		got, err := r.Resolve(Input{DurationDays: 2}, Bounds{ProjectDeadline: &pd})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertWindow(t, got, "2024-01-18T00:00:00Z", "2024-01-20T00:00:00Z")
	})

	t.Run("dependent task is pulled back under the deadline", func(t *testing.T) {
		in := Input{
			PlannedStart: ptr(at("2024-01-19T00:00:00Z")),
			DurationDays: 3,
			Dependencies: []Constraint{{Type: FinishToStart, Predecessor: window("2023-12-28T00:00:00Z", "2024-01-01T00:00:00Z")}},
		}
		got, err := r.Resolve(in, Bounds{ProjectDeadline: &pd})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertWindow(t, got, "2024-01-17T00:00:00Z", "2024-01-20T00:00:00Z")
		if got.DeadlineOverrun {
			t.Error("expected no overrun")
		}
	})

	t.Run("dependency floor escapes the ceiling", func(t *testing.T) {
		in := Input{
			PlannedStart: ptr(at("2024-01-01T00:00:00Z")),
			DurationDays: 2,
			Dependencies: []Constraint{{Type: FinishToStart, Predecessor: window("2024-01-22T00:00:00Z", "2024-01-25T00:00:00Z")}},
		}
		got, err := r.Resolve(in, Bounds{ProjectDeadline: &pd})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertWindow(t, got, "2024-01-25T00:00:00Z", "2024-01-27T00:00:00Z")
		if !got.DeadlineOverrun {
			t.Error("expected deadline overrun to be reported")
		}
	})

	t.Run("explicit dates without dependencies are not pulled", func(t *testing.T) {
		in := Input{PlannedStart: ptr(at("2024-01-19T00:00:00Z")), DurationDays: 3}
		got, err := r.Resolve(in, Bounds{ProjectDeadline: &pd})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		assertWindow(t, got, "2024-01-19T00:00:00Z", "2024-01-22T00:00:00Z")
		if !got.DeadlineOverrun {
			t.Error("expected deadline overrun to be reported")
		}
		warnings := got.Warnings()
		if len(warnings) != 1 || warnings[0] != "planned end is after the project deadline" {
			t.Errorf("unexpected warnings: %q", warnings)
		}
	})
}

func TestResolve_InvalidInput(t *testing.T) {
	pred := window("2024-01-01T00:00:00Z", "2024-01-02T00:00:00Z")

	tests := []struct {
		name    string
		in      Input
		bounds  Bounds
		wantErr error
	}{
		{"negative duration", Input{DurationDays: -1}, Bounds{}, ErrNegativeDuration},
		{"NaN duration", Input{DurationDays: math.NaN()}, Bounds{}, ErrNegativeDuration},
		{"infinite duration", Input{DurationDays: math.Inf(1)}, Bounds{}, ErrNegativeDuration},
		{"huge duration", Input{DurationDays: MaxDurationDays + 1}, Bounds{}, ErrDurationTooLong},
		{"no anchors", Input{}, Bounds{}, ErrNoAnchor},
		{"zero start", Input{PlannedStart: &time.Time{}, DurationDays: 1}, Bounds{}, ErrZeroInstant},
		{
			"end before start",
			Input{PlannedStart: ptr(at("2024-01-02T00:00:00Z")), PlannedEnd: ptr(at("2024-01-01T00:00:00Z"))},
			Bounds{},
			ErrEndBeforeStart,
		},
		{
			"inverted parent",
			Input{DurationDays: 1},
			Bounds{Parent: &Window{Start: at("2024-01-05T00:00:00Z"), End: at("2024-01-01T00:00:00Z")}},
			ErrEndBeforeStart,
		},
		{
			"unknown dependency type",
			Input{DurationDays: 1, Dependencies: []Constraint{{Type: "XX", Predecessor: pred}}},
			Bounds{},
			ErrUnknownDependencyType,
		},
		{
			"NaN lag",
			Input{DurationDays: 1, Dependencies: []Constraint{{Type: FinishToStart, LagHours: math.NaN(), Predecessor: pred}}},
			Bounds{},
			ErrNonFiniteLag,
		},
		{
			"unresolved predecessor",
			Input{DurationDays: 1, Dependencies: []Constraint{{PredecessorID: "p", Type: FinishToStart}}},
			Bounds{},
			ErrZeroInstant,
		},
	}

	r := newTestResolver()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Resolve(tc.in, tc.bounds)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestResolve_ZeroDurationIsNotAnErrorWithAnchor(t *testing.T) {
	r := newTestResolver()
	got, err := r.Resolve(Input{PlannedStart: ptr(at("2024-01-03T00:00:00Z"))}, Bounds{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.End.Sub(got.Start) != DefaultMinSpan {
		t.Errorf("expected minimum span, got %v", got.End.Sub(got.Start))
	}
}

func TestResolve_MinSpanOption(t *testing.T) {
	r := NewResolver(WithClock(FixedClock(testNow)), WithMinSpan(time.Hour))
	got, err := r.Resolve(Input{PlannedStart: ptr(testNow)}, Bounds{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Span != time.Hour {
		t.Errorf("expected span 1h, got %v", got.Span)
	}
	if !got.End.Equal(testNow.Add(time.Hour)) {
		t.Errorf("expected end %v, got %v", testNow.Add(time.Hour), got.End)
	}
}

func TestResolve_TraceStages(t *testing.T) {
	var stages []string
	r := NewResolver(WithClock(FixedClock(testNow)), WithTrace(func(stage string, _ Window) {
		stages = append(stages, stage)
	}))
	parent := window("2024-01-01T00:00:00Z", "2024-01-10T00:00:00Z")

	if _, err := r.Resolve(Input{DurationDays: 1}, Bounds{Parent: &parent}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{StageSeed, StageFloors, StageContainment, StageFinal}
	if len(stages) != len(want) {
		t.Fatalf("expected stages %v, got %v", want, stages)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("stage %d: expected %s, got %s", i, want[i], stages[i])
		}
	}
}

func TestResolve_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	base := at("2024-01-01T00:00:00Z")
	types := []DependencyType{FinishToStart, StartToStart, FinishToFinish, StartToFinish}
	r := newTestResolver()

	randInstant := func() time.Time {
		return base.Add(time.Duration(rng.IntN(60*24)) * time.Hour)
	}

	for i := range 2000 {
		in := Input{DurationDays: float64(rng.IntN(40)) / 4}
		var b Bounds

		if rng.IntN(3) == 0 {
			s := randInstant()
			in.PlannedStart = &s
		}
		if rng.IntN(3) == 0 {
			e := randInstant()
			if in.PlannedStart != nil && e.Before(*in.PlannedStart) {
				e = *in.PlannedStart
			}
			in.PlannedEnd = &e
		}
		if rng.IntN(4) == 0 {
			d := randInstant()
			in.Deadline = &d
		}
		for range rng.IntN(4) {
			s := randInstant()
			in.Dependencies = append(in.Dependencies, Constraint{
				Type:        types[rng.IntN(len(types))],
				LagHours:    float64(rng.IntN(97) - 48),
				Predecessor: Window{Start: s, End: s.Add(time.Duration(rng.IntN(240)) * time.Hour)},
			})
		}
		if rng.IntN(3) == 0 {
			ps := randInstant()
			p := Window{Start: ps, End: ps.Add(time.Duration(rng.IntN(30*24)+1) * time.Hour)}
			b.Parent = &p
		}
		if rng.IntN(2) == 0 {
			pd := randInstant()
			b.ProjectDeadline = &pd
		}

		got, err := r.Resolve(in, b)
		if err != nil {
			t.Fatalf("case %d: unexpected error: %v", i, err)
		}

		if got.End.Before(got.Start) {
			t.Fatalf("case %d: end %v before start %v", i, got.End, got.Start)
		}
		if !got.ContainmentConflict && got.End.Sub(got.Start) < got.Span {
			t.Fatalf("case %d: window %v shorter than span %v", i, got.End.Sub(got.Start), got.Span)
		}
		if got.Deadline == nil {
			t.Fatalf("case %d: deadline not set", i)
		}
		if b.Parent != nil {
			if !b.Parent.Contains(got.Window) {
				t.Fatalf("case %d: window [%v, %v] not inside parent [%v, %v]",
					i, got.Start, got.End, b.Parent.Start, b.Parent.End)
			}
			if b.Parent.Span() >= got.Span && got.ContainmentConflict {
				t.Fatalf("case %d: conflict reported although the span fits", i)
			}
		}
	}
}

func TestResolve_Concurrent(t *testing.T) {
	r := newTestResolver()
	pred := window("2024-01-08T00:00:00Z", "2024-01-10T00:00:00Z")
	in := Input{
		DurationDays: 2,
		Dependencies: []Constraint{{Type: FinishToStart, LagHours: 24, Predecessor: pred}},
	}

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Resolve(in, Bounds{})
			if err != nil {
				errs <- err
				return
			}
			if !got.Start.Equal(at("2024-01-11T00:00:00Z")) {
				errs <- errors.New("unexpected start " + got.Start.String())
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
