package calendar

import (
	"strings"
	"time"

	"admcal/internal/model"
)

// All is the filter value that disables a predicate.
const All = "all"

// FilterState holds the active filter predicates. Zero value matches every
// event.
type FilterState struct {
	// Search is matched case-insensitively as a substring of title,
	// institution or description.
	Search string
	// Institution must equal the event's institution, ignoring case.
	// Empty or "all" disables the predicate.
	Institution string
	// Category must equal the event's category. Empty or "all" disables
	// the predicate.
	Category string
	// Month restricts events to one month of any year. Zero disables it.
	Month time.Month
}

// Active reports whether any predicate is set.
func (f FilterState) Active() bool {
	return strings.TrimSpace(f.Search) != "" ||
		!isAll(f.Institution) ||
		!isAll(f.Category) ||
		f.Month != 0
}

func isAll(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, All)
}

// ApplyFilters returns the events that satisfy every active predicate of f,
// in their original order. events is never modified.
func ApplyFilters(events []model.Event, f FilterState) []model.Event {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	institution := strings.TrimSpace(f.Institution)
	category := model.NormalizeCategory(f.Category)
	anyInstitution := isAll(f.Institution)
	anyCategory := isAll(f.Category)

	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if search != "" && !matchesSearch(ev, search) {
			continue
		}
		if !anyInstitution && !strings.EqualFold(ev.Institution, institution) {
			continue
		}
		if !anyCategory && ev.Category != category {
			continue
		}
		if f.Month != 0 && ev.Date.Month() != f.Month {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func matchesSearch(ev model.Event, needle string) bool {
	return strings.Contains(strings.ToLower(ev.Title), needle) ||
		strings.Contains(strings.ToLower(ev.Institution), needle) ||
		strings.Contains(strings.ToLower(ev.Description), needle)
}
