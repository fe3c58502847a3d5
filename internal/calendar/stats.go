package calendar

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"admcal/internal/model"
)

// Stats summarises the whole collection for the page's info bar.
type Stats struct {
	Total        int
	ThisWeek     int // today through today+7
	ThisMonth    int // today through the last day of today's month
	Institutions int
}

// Stats counts over all events, ignoring filters.
func (e *Engine) Stats() Stats {
	weekEnd := e.today.AddDate(0, 0, 7)
	monthEnd := time.Date(e.today.Year(), e.today.Month()+1, 0, 0, 0, 0, 0, time.UTC)

	s := Stats{Total: len(e.all)}
	institutions := make(map[string]struct{})
	for _, ev := range e.all {
		if !ev.Date.Before(e.today) {
			if !ev.Date.After(weekEnd) {
				s.ThisWeek++
			}
			if !ev.Date.After(monthEnd) {
				s.ThisMonth++
			}
		}
		if ev.Institution != "" {
			institutions[strings.ToLower(ev.Institution)] = struct{}{}
		}
	}
	s.Institutions = len(institutions)
	return s
}

// Institutions returns the distinct institution names, sorted. Names that
// differ only in case are reported once, using the first spelling seen.
func (e *Engine) Institutions() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, ev := range e.all {
		if ev.Institution == "" {
			continue
		}
		k := strings.ToLower(ev.Institution)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, ev.Institution)
	}
	slices.Sort(out)
	return out
}

// Categories returns the distinct categories present, sorted.
func (e *Engine) Categories() []model.Category {
	var out []model.Category
	for _, ev := range e.all {
		if ev.Category != "" && !slices.Contains(out, ev.Category) {
			out = append(out, ev.Category)
		}
	}
	slices.Sort(out)
	return out
}

// DaysUntil returns the whole days from today to the event's date; negative
// values mean the event is past.
func DaysUntil(ev model.Event, today time.Time) int {
	const secondsPerDay = 24 * 60 * 60
	return int((ev.Date.Unix() - model.CivilDate(today).Unix()) / secondsPerDay)
}

// DaysLeftLabel renders DaysUntil the way event cards show it.
func DaysLeftLabel(days int) string {
	switch {
	case days < 0:
		return "Past"
	case days == 0:
		return "Today"
	case days == 1:
		return "Tomorrow"
	default:
		return strconv.Itoa(days) + " days left"
	}
}

// Urgent reports whether an upcoming event is within a week.
func Urgent(days int) bool {
	return days >= 0 && days <= 7
}
