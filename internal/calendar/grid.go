package calendar

import (
	"strings"
	"time"

	"admcal/internal/model"
)

const (
	// GridWeeks and GridCells fix the month grid at six full weeks, which is
	// enough for any month with any week start (at most 6+31 days).
	GridWeeks = 6
	GridCells = GridWeeks * 7
)

// Cell is one day square of the month grid.
type Cell struct {
	Day        int
	Date       time.Time
	OtherMonth bool
	IsToday    bool
	Events     []model.Event
}

// HasEvents reports whether the cell is clickable.
func (c Cell) HasEvents() bool {
	return len(c.Events) > 0
}

// ParseWeekStart maps "sunday" to time.Sunday and anything else to
// time.Monday.
func ParseWeekStart(s string) time.Weekday {
	if strings.EqualFold(strings.TrimSpace(s), "sunday") {
		return time.Sunday
	}
	return time.Monday
}

// WeekdayOrder returns the seven weekdays starting at weekStart.
func WeekdayOrder(weekStart time.Weekday) []time.Weekday {
	out := make([]time.Weekday, 7)
	for i := range out {
		out[i] = (weekStart + time.Weekday(i)) % 7
	}
	return out
}

// LeadingDays is the number of previous-month cells shown before the 1st.
func LeadingDays(year int, month time.Month, weekStart time.Weekday) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return (int(first.Weekday()) - int(weekStart) + 7) % 7
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// BuildMonthGrid lays out year/month as GridCells cells starting on
// weekStart. Cells outside the month are padded with the neighbouring
// months' days and flagged OtherMonth. Each cell carries the events of
// filtered that fall on its date, in filtered's order. today is compared by
// calendar date only.
func BuildMonthGrid(year int, month time.Month, filtered []model.Event, weekStart time.Weekday, today time.Time) []Cell {
	// Out-of-range months (e.g. 13) roll over the way time.Date does.
	first := Cursor{Year: year, Month: month}.First()
	year, month = first.Year(), first.Month()

	byDate := make(map[string][]model.Event)
	for _, ev := range filtered {
		k := ev.DateKey()
		byDate[k] = append(byDate[k], ev)
	}

	todayKey := model.CivilDate(today).Format(model.DateLayout)
	start := first.AddDate(0, 0, -LeadingDays(year, month, weekStart))

	cells := make([]Cell, GridCells)
	for i := range cells {
		d := start.AddDate(0, 0, i)
		k := d.Format(model.DateLayout)
		cells[i] = Cell{
			Day:        d.Day(),
			Date:       d,
			OtherMonth: d.Month() != month || d.Year() != year,
			IsToday:    k == todayKey,
			Events:     byDate[k],
		}
	}
	return cells
}
