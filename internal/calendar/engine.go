package calendar

import (
	"time"

	"admcal/internal/model"
)

// Options configures a new Engine.
type Options struct {
	// WeekStart names the first column of the grid, "monday" or "sunday",
	// as read by ParseWeekStart. Empty means Monday.
	WeekStart string
	// Cursor is the initial month. A zero or invalid cursor is replaced by
	// the month of Today.
	Cursor Cursor
	// Filter is the initial filter state.
	Filter FilterState
	// Today is the reference date for IsToday and statistics. Zero means
	// time.Now().
	Today time.Time
}

// Engine owns the event collection of one calendar session together with
// its filter state and cursor. It is not safe for concurrent use; callers
// that serve many sessions build one Engine per session over a shared,
// read-only event slice.
type Engine struct {
	all       []model.Event
	byID      map[string]int
	filter    FilterState
	filtered  []model.Event
	cursor    Cursor
	weekStart time.Weekday
	today     time.Time
}

// NewEngine creates an engine over events. The slice is not copied and must
// not be modified afterwards.
func NewEngine(events []model.Event, opts Options) *Engine {
	today := opts.Today
	if today.IsZero() {
		today = time.Now()
	}
	today = model.CivilDate(today)

	cursor := opts.Cursor
	if cursor.Year == 0 || !cursor.Valid() {
		cursor = CursorFor(today)
	}

	e := &Engine{
		all:       events,
		byID:      make(map[string]int, len(events)),
		cursor:    cursor,
		weekStart: ParseWeekStart(opts.WeekStart),
		today:     today,
	}
	for i, ev := range events {
		if _, ok := e.byID[ev.ID]; !ok {
			e.byID[ev.ID] = i
		}
	}
	e.SetFilter(opts.Filter)
	return e
}

// All returns every event of the session, filtered or not.
func (e *Engine) All() []model.Event { return e.all }

// Filter returns the active filter state.
func (e *Engine) Filter() FilterState { return e.filter }

// SetFilter replaces the filter state and recomputes the filtered view.
func (e *Engine) SetFilter(f FilterState) {
	e.filter = f
	e.filtered = ApplyFilters(e.all, f)
}

// Filtered returns the events matching the active filters, in load order.
func (e *Engine) Filtered() []model.Event { return e.filtered }

// Cursor returns the month currently shown by the grid.
func (e *Engine) Cursor() Cursor { return e.cursor }

// Navigate moves the cursor one month back (dir < 0) or forward (dir > 0).
func (e *Engine) Navigate(dir int) Cursor {
	switch {
	case dir < 0:
		e.cursor = e.cursor.Navigate(-1)
	case dir > 0:
		e.cursor = e.cursor.Navigate(1)
	}
	return e.cursor
}

// GoTo sets the cursor directly. Invalid cursors are ignored.
func (e *Engine) GoTo(c Cursor) {
	if c.Valid() {
		e.cursor = c
	}
}

// WeekStart returns the grid's first weekday.
func (e *Engine) WeekStart() time.Weekday { return e.weekStart }

// Today returns the engine's reference date.
func (e *Engine) Today() time.Time { return e.today }

// Grid returns the cursor month's grid over the filtered events.
func (e *Engine) Grid() []Cell {
	return BuildMonthGrid(e.cursor.Year, e.cursor.Month, e.filtered, e.weekStart, e.today)
}

// List returns the filtered events sorted by date.
func (e *Engine) List() []model.Event {
	return BuildSortedList(e.filtered)
}

// Event looks up a single event by id among all events, ignoring filters.
func (e *Engine) Event(id string) (model.Event, bool) {
	i, ok := e.byID[id]
	if !ok {
		return model.Event{}, false
	}
	return e.all[i], true
}

// Day returns the filtered events on date, in filtered order.
func (e *Engine) Day(date time.Time) []model.Event {
	key := model.CivilDate(date).Format(model.DateLayout)
	var out []model.Event
	for _, ev := range e.filtered {
		if ev.DateKey() == key {
			out = append(out, ev)
		}
	}
	return out
}

// SelectDate is SelectDay for the cell of date, whether or not date falls in
// the cursor month.
func (e *Engine) SelectDate(date time.Time) DayActivation {
	return selectEvents(e.Day(date))
}
