package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"admcal/internal/calendar"
	appLog "admcal/internal/log"
	"admcal/internal/model"
)

// Backend reads admission records from the portal backend's JSON API
// (GET /admissions/api/admissions). Records use several field-name
// conventions; the fallbacks are resolved here so the engine only sees
// RawEvents.
type Backend struct {
	name    string
	url     string
	fetcher *Fetcher
}

// NewBackend creates a backend source.
func NewBackend(name, url string, fetcher *Fetcher) *Backend {
	if name == "" {
		name = "backend"
	}
	return &Backend{name: name, url: url, fetcher: fetcher}
}

func (b *Backend) Name() string { return b.name }

// Fetch implements calendar.Source.
func (b *Backend) Fetch(ctx context.Context) (calendar.Batch, error) {
	res, err := b.fetcher.Get(ctx, b.name, b.url, "application/json")
	if err != nil {
		return calendar.Batch{}, err
	}
	events, err := DecodeAdmissions(res.Body)
	if err != nil {
		return calendar.Batch{}, err
	}
	return calendar.Batch{Events: events, FromCache: res.FromCache}, nil
}

type record map[string]any

// DecodeAdmissions maps a JSON array of admission records to raw events.
// A record yields one event for its primary date and a second, registration
// event when it also carries a different registration deadline.
func DecodeAdmissions(body []byte) ([]model.RawEvent, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var records []record
	if err := dec.Decode(&records); err != nil {
		// The backend reports failures as {"error": "..."}.
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("backend error: %s", e.Error)
		}
		return nil, fmt.Errorf("decode admissions: %w", err)
	}

	return recordsToEvents(records), nil
}

func recordsToEvents(records []record) []model.RawEvent {
	events := make([]model.RawEvent, 0, len(records))
	for i, r := range records {
		evs, err := r.events()
		if err != nil {
			appLog.Warn("admission record skipped", "index", i, "reason", err.Error())
			continue
		}
		events = append(events, evs...)
	}
	return events
}

func (r record) events() ([]model.RawEvent, error) {
	id := r.str("id", "admission_id", "admissionId")
	title := r.str("title", "programName", "program_name")
	if id == "" {
		return nil, errors.New("record has no id")
	}

	base := model.RawEvent{
		ID:          id,
		Title:       title,
		Institution: r.str("institution", "university"),
		Description: r.str("description"),
		URL:         r.str("url", "link", "applicationPortalUrl", "application_portal_url"),
	}

	primary := r.str("date", "applicationDeadline", "application_deadline", "startDate")
	second := r.str("registrationDeadline", "registration_deadline", "endDate")

	if c := r.str("category", "type"); c != "" {
		base.Category = string(model.NormalizeCategory(c))
	} else {
		base.Category = string(DeriveCategory(title))
	}

	var out []model.RawEvent
	if primary != "" {
		ev := base
		ev.Date = primary
		out = append(out, ev)
	}
	if second != "" && dateOnly(second) != dateOnly(primary) {
		ev := base
		ev.ID = id + "-reg"
		ev.Date = second
		ev.Category = string(model.CategoryRegistration)
		if primary != "" {
			ev.Title = strings.TrimSpace(title + " (registration)")
		}
		out = append(out, ev)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("record %s has no date", id)
	}
	return out, nil
}

// str returns the first non-empty value among keys, stringified.
func (r record) str(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case json.Number:
			s = t.String()
		case bool:
			continue
		default:
			s = fmt.Sprint(t)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func dateOnly(s string) string {
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		return s[:i]
	}
	return s
}
