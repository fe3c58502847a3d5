package model

import (
	"strings"
	"time"
)

// DateLayout is the wire format of event dates.
const DateLayout = "2006-01-02"

// Category classifies an admissions event. The set is open: sources may
// carry values beyond the four known ones.
type Category string

const (
	CategoryApplication  Category = "application"
	CategoryRegistration Category = "registration"
	CategoryBursary      Category = "bursary"
	CategoryOrientation  Category = "orientation"
)

// KnownCategories lists the built-in categories in display order.
var KnownCategories = []Category{
	CategoryApplication,
	CategoryRegistration,
	CategoryBursary,
	CategoryOrientation,
}

// NormalizeCategory lowercases and trims a category label and keeps only
// its first word, so "Application Opening" becomes "application".
func NormalizeCategory(s string) Category {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.IndexAny(s, " _-"); i > 0 {
		s = s[:i]
	}
	return Category(s)
}

// RawEvent is an event as delivered by a source, before validation.
type RawEvent struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Institution string `yaml:"institution" json:"institution"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Date        string `yaml:"date" json:"date"`
	Category    string `yaml:"category" json:"category"`
	URL         string `yaml:"url,omitempty" json:"url,omitempty"`

	// Source is the name of the source that produced the event.
	Source string `yaml:"-" json:"-"`
}

// Event is a validated admissions event. Date is a calendar date at
// midnight UTC; the time of day carries no meaning.
type Event struct {
	ID          string
	Title       string
	Institution string
	Description string
	Date        time.Time
	Category    Category
	URL         string
	Source      string
}

// DateKey returns the event's date in DateLayout.
func (e Event) DateKey() string {
	return e.Date.Format(DateLayout)
}

// CivilDate returns midnight UTC of the calendar day of t, ignoring t's
// location. It is the canonical form for all date comparisons.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// dateTimeLayouts are the timestamp forms ParseDate accepts besides a bare
// date. The date is taken as written, not converted to any zone.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// ParseDate parses a YYYY-MM-DD string into a civil date. A full timestamp
// ("2025-04-01T00:00:00", "2025-04-01T08:00:00+02:00") keeps its date part;
// any other trailing text is an error.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if !strings.ContainsRune(s, 'T') {
		return time.Parse(DateLayout, s)
	}
	var err error
	for _, layout := range dateTimeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return CivilDate(t), nil
		}
	}
	return time.Time{}, err
}
