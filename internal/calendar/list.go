package calendar

import (
	"cmp"
	"slices"

	"admcal/internal/model"
)

// BuildSortedList returns a copy of events ordered by date. Events on the
// same date keep their relative order.
func BuildSortedList(events []model.Event) []model.Event {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b model.Event) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// sortForDay orders events of a single day by category, then title.
func sortForDay(events []model.Event) []model.Event {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b model.Event) int {
		if c := cmp.Compare(a.Category, b.Category); c != 0 {
			return c
		}
		return cmp.Compare(a.Title, b.Title)
	})
	return out
}
