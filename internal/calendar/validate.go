package calendar

import (
	"errors"
	"fmt"
	"strings"

	"admcal/internal/model"
)

var (
	ErrMissingID   = errors.New("event has no id")
	ErrInvalidDate = errors.New("event date is not a valid YYYY-MM-DD date")
	ErrDuplicateID = errors.New("event id already used")
)

// Validate converts raw events into events. Raw events with a missing id, an
// unparseable date or an id seen earlier in the slice are left out; one error
// per rejected event is returned alongside the valid ones. Input order is
// preserved.
func Validate(raws []model.RawEvent) ([]model.Event, []error) {
	events := make([]model.Event, 0, len(raws))
	var rejected []error
	seen := make(map[string]struct{}, len(raws))

	for i, raw := range raws {
		id := strings.TrimSpace(raw.ID)
		if id == "" {
			rejected = append(rejected, fmt.Errorf("event #%d (%q): %w", i, raw.Title, ErrMissingID))
			continue
		}
		date, err := model.ParseDate(raw.Date)
		if err != nil {
			rejected = append(rejected, fmt.Errorf("event %s: %w: %q", id, ErrInvalidDate, raw.Date))
			continue
		}
		if _, dup := seen[id]; dup {
			rejected = append(rejected, fmt.Errorf("event %s: %w", id, ErrDuplicateID))
			continue
		}
		seen[id] = struct{}{}

		events = append(events, model.Event{
			ID:          id,
			Title:       strings.TrimSpace(raw.Title),
			Institution: strings.TrimSpace(raw.Institution),
			Description: strings.TrimSpace(raw.Description),
			Date:        date,
			Category:    model.NormalizeCategory(raw.Category),
			URL:         strings.TrimSpace(raw.URL),
			Source:      raw.Source,
		})
	}

	return events, rejected
}
