package calendar

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"admcal/internal/model"
)

func TestEngineSession(t *testing.T) {
	events := mustValidate(t, sampleRaws())
	e := NewEngine(events, Options{
		WeekStart: "monday",
		Cursor:    Cursor{2025, time.September},
		Today:     day(2025, 9, 10),
	})

	if len(e.Filtered()) != len(events) {
		t.Fatalf("unfiltered engine shows %d of %d", len(e.Filtered()), len(events))
	}

	e.SetFilter(FilterState{Category: "application"})
	if got := ids(e.List()); !slices.Equal(got, []string{"1", "9", "5"}) {
		t.Errorf("List() = %v, want [1 9 5]", got)
	}

	var withEvents []int
	for _, c := range e.Grid() {
		if c.HasEvents() {
			withEvents = append(withEvents, c.Day)
		}
	}
	if !slices.Equal(withEvents, []int{15}) {
		t.Errorf("September days with events = %v, want [15]", withEvents)
	}

	if got := e.Navigate(-1); got != (Cursor{2025, time.August}) {
		t.Errorf("Navigate(-1) = %v", got)
	}
	if got := e.Navigate(0); got != (Cursor{2025, time.August}) {
		t.Errorf("Navigate(0) moved the cursor to %v", got)
	}
	e.GoTo(Cursor{2025, 13})
	if e.Cursor() != (Cursor{2025, time.August}) {
		t.Errorf("GoTo accepted an invalid cursor")
	}

	if ev, ok := e.Event("2"); !ok || ev.Category != model.CategoryBursary {
		t.Errorf("Event(2) = %+v, %v; lookup must ignore filters", ev, ok)
	}
	if _, ok := e.Event("missing"); ok {
		t.Errorf("Event(missing) found")
	}

	if act := e.SelectDate(day(2025, 9, 15)); act.Kind != ActivateSingle || act.EventID != "9" {
		t.Errorf("SelectDate(Sep 15) = %+v", act)
	}
	if act := e.SelectDate(day(2025, 9, 30)); act.Kind != ActivateNone {
		t.Errorf("SelectDate(Sep 30) = %+v, filtered-out event must be inert", act)
	}
}

func TestEngineDefaultsCursorToToday(t *testing.T) {
	e := NewEngine(nil, Options{Today: day(2026, 2, 14)})
	if e.Cursor() != (Cursor{2026, time.February}) {
		t.Errorf("Cursor() = %v", e.Cursor())
	}
	if len(e.Grid()) != GridCells || len(e.List()) != 0 {
		t.Errorf("empty engine should still render a grid and an empty list")
	}
	// Weeks start on Monday unless told otherwise; 1 February 2026 is a Sunday.
	if e.WeekStart() != time.Monday || !e.Grid()[0].Date.Equal(day(2026, 1, 26)) {
		t.Errorf("default week start = %v, first cell %v", e.WeekStart(), e.Grid()[0].Date)
	}
	sun := NewEngine(nil, Options{WeekStart: "sunday", Today: day(2026, 2, 14)})
	if !sun.Grid()[0].Date.Equal(day(2026, 2, 1)) {
		t.Errorf("sunday grid starts %v", sun.Grid()[0].Date)
	}
}

func TestEngineStatsAndFacets(t *testing.T) {
	events := mustValidate(t, sampleRaws())
	e := NewEngine(events, Options{Today: day(2025, 11, 25)})

	want := Stats{Total: 8, ThisWeek: 2, ThisMonth: 1, Institutions: 6}
	if got := e.Stats(); got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}

	inst := e.Institutions()
	if len(inst) != 6 || !slices.IsSorted(inst) {
		t.Errorf("Institutions() = %v", inst)
	}
	wantCats := []model.Category{"application", "bursary", "orientation", "registration"}
	if got := e.Categories(); !slices.Equal(got, wantCats) {
		t.Errorf("Categories() = %v, want %v", got, wantCats)
	}
}

func TestDaysLeftLabel(t *testing.T) {
	ev := model.Event{Date: day(2025, 12, 1)}
	tests := []struct {
		today time.Time
		days  int
		label string
	}{
		{day(2025, 12, 2), -1, "Past"},
		{time.Date(2025, 12, 1, 18, 0, 0, 0, time.Local), 0, "Today"},
		{day(2025, 11, 30), 1, "Tomorrow"},
		{day(2025, 11, 1), 30, "30 days left"},
	}
	for _, tt := range tests {
		days := DaysUntil(ev, tt.today)
		if days != tt.days {
			t.Errorf("DaysUntil(%v) = %d, want %d", tt.today, days, tt.days)
		}
		if got := DaysLeftLabel(days); got != tt.label {
			t.Errorf("DaysLeftLabel(%d) = %q, want %q", days, got, tt.label)
		}
	}

	far := model.Event{Date: day(9999, 12, 31)}
	if got := DaysUntil(far, day(1, 1, 1)); got != 3652058 {
		t.Errorf("DaysUntil(9999-12-31 from 0001-01-01) = %d", got)
	}
	if got := DaysUntil(model.Event{Date: day(1, 1, 1)}, day(9999, 12, 31)); got != -3652058 {
		t.Errorf("DaysUntil(0001-01-01 from 9999-12-31) = %d", got)
	}
}

type stubSource struct {
	name  string
	batch Batch
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(context.Context) (Batch, error) {
	s.calls++
	return s.batch, s.err
}

func TestLoaderStates(t *testing.T) {
	ctx := context.Background()

	t.Run("not loaded", func(t *testing.T) {
		l := NewLoader(nil, 0)
		if _, _, err := l.Snapshot(); !errors.Is(err, ErrNotLoaded) {
			t.Errorf("Snapshot() error = %v, want ErrNotLoaded", err)
		}
	})

	t.Run("empty success is not failure", func(t *testing.T) {
		l := NewLoader([]Source{&stubSource{name: "empty"}}, 0)
		st := l.Load(ctx)
		events, _, err := l.Snapshot()
		if st.State != StateLoaded || err != nil || len(events) != 0 {
			t.Errorf("state=%s err=%v events=%d", st.State, err, len(events))
		}
	})

	t.Run("all sources failing", func(t *testing.T) {
		src := &stubSource{name: "down", err: errors.New("connection refused")}
		l := NewLoader([]Source{src}, 0)
		st := l.Load(ctx)
		if st.State != StateFailed || !errors.Is(st.Err, ErrLoadFailed) {
			t.Fatalf("status = %+v", st)
		}
		if _, _, err := l.Snapshot(); !errors.Is(err, ErrLoadFailed) {
			t.Errorf("Snapshot() error = %v", err)
		}
		if l.ShouldRefresh() {
			t.Errorf("ShouldRefresh() after failure = true")
		}
		if src.calls != 1 {
			t.Errorf("source called %d times, want exactly 1", src.calls)
		}

		src.err = nil
		src.batch = Batch{Events: []model.RawEvent{{ID: "1", Date: "2025-01-01"}}}
		if st := l.Load(ctx); st.State != StateLoaded {
			t.Errorf("manual reload state = %s", st.State)
		}
		if !l.ShouldRefresh() {
			t.Errorf("ShouldRefresh() after recovery = false")
		}
	})

	t.Run("partial failure and rejects", func(t *testing.T) {
		good := &stubSource{name: "good", batch: Batch{
			FromCache: true,
			Events: []model.RawEvent{
				{ID: "1", Date: "2025-01-01"},
				{ID: "2", Date: "not a date"},
			},
		}}
		bad := &stubSource{name: "bad", err: errors.New("503")}
		l := NewLoader([]Source{good, bad}, time.Second)
		st := l.Load(ctx)
		if st.State != StateLoaded || st.FailedSources != 1 || st.Rejected != 1 || !st.Stale {
			t.Errorf("status = %+v", st)
		}
		events, _, _ := l.Snapshot()
		if len(events) != 1 || events[0].Source != "good" {
			t.Errorf("events = %+v", events)
		}
	})
}
