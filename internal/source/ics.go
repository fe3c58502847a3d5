package source

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"admcal/internal/calendar"
	appLog "admcal/internal/log"
	"admcal/internal/model"
)

const defaultMaxOccurrencesPerEvent = 500

// ICSWindow bounds recurrence expansion relative to the load time.
type ICSWindow struct {
	BackfillDays int
	HorizonDays  int
	// Location is the zone timed occurrences are converted to before their
	// calendar date is taken. Nil means time.Local.
	Location *time.Location
	// MaxOccurrencesPerEvent caps a single RRULE. Zero uses a default.
	MaxOccurrencesPerEvent int
}

// ICS reads an iCalendar subscription and turns every occurrence inside the
// window into one event.
type ICS struct {
	name        string
	url         string
	institution string
	window      ICSWindow
	fetcher     *Fetcher

	now func() time.Time
}

// NewICS creates an ICS source. institution is used as the institution of
// every event; when empty the source name is used.
func NewICS(name, url, institution string, window ICSWindow, fetcher *Fetcher) *ICS {
	if institution == "" {
		institution = name
	}
	return &ICS{
		name:        name,
		url:         url,
		institution: institution,
		window:      window,
		fetcher:     fetcher,
		now:         time.Now,
	}
}

func (s *ICS) Name() string { return s.name }

// Fetch implements calendar.Source.
func (s *ICS) Fetch(ctx context.Context) (calendar.Batch, error) {
	res, err := s.fetcher.Get(ctx, s.name, s.url, "text/calendar")
	if err != nil {
		return calendar.Batch{}, err
	}
	parsed, err := ParseICS(s.name, res.Body)
	if err != nil {
		return calendar.Batch{}, err
	}

	now := s.now()
	w := s.window
	start := now.AddDate(0, 0, -w.BackfillDays)
	end := now.AddDate(0, 0, w.HorizonDays)

	events := ExpandICS(parsed, start, end, w)
	for i := range events {
		events[i].Institution = s.institution
	}
	return calendar.Batch{Events: events, FromCache: res.FromCache}, nil
}

// ParsedEvent is a VEVENT before recurrence expansion.
type ParsedEvent struct {
	UID string
	Seq int

	Summary     string
	Description string
	Location    string
	URL         string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID, in the event's own timezone
	IsOverride bool
}

// ParseICS parses an iCalendar payload. VEVENTs that cannot be parsed are
// logged and skipped.
func ParseICS(name string, body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err, "source", name)
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "source", name, "reason", perr.Error())
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "source", name, "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if seqProp := ve.GetProperty(ical.ComponentPropertySequence); seqProp != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(seqProp.Value)); err == nil {
			out.Seq = n
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyUrl); p != nil {
		out.URL = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	out.Start = start
	if end, err := ve.GetEndAt(); err == nil {
		out.End = end
	} else {
		out.End = start
	}

	// VALUE=DATE or a value without 'T' is an all-day event.
	if dt := ve.GetProperty(ical.ComponentPropertyDtStart); dt != nil {
		if vs, ok := dt.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.AllDay = true
		}
		if !strings.Contains(dt.Value, "T") {
			out.AllDay = true
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc, err := propLocation(p, out.Start.Location())
		if err != nil {
			return out, err
		}
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if rid := ve.GetProperty(ical.ComponentPropertyRecurrenceId); rid != nil {
		loc, err := propLocation(rid, out.Start.Location())
		if err != nil {
			return out, err
		}
		if t, err := parseICSTime(rid.Value, loc); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// propLocation returns the zone named by the property's TZID parameter, or
// fallback (the DTSTART zone) when there is none.
func propLocation(p *ical.IANAProperty, fallback *time.Location) (*time.Location, error) {
	tzid, ok := p.ICalParameters["TZID"]
	if !ok || len(tzid) == 0 || tzid[0] == "" {
		return fallback, nil
	}
	return time.LoadLocation(tzid[0])
}

// parseICSTime parses the DATE, floating DATE-TIME and UTC forms used by
// EXDATE and RECURRENCE-ID. Non-UTC values are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

// ExpandICS expands parsed events into one raw event per occurrence that
// starts within [start, end]. Override VEVENTs replace the instance they
// name. Event ids are "UID@YYYY-MM-DD".
func ExpandICS(events []ParsedEvent, start, end time.Time, w ICSWindow) []model.RawEvent {
	loc := w.Location
	if loc == nil {
		loc = time.Local
	}
	maxOcc := w.MaxOccurrencesPerEvent
	if maxOcc <= 0 {
		maxOcc = defaultMaxOccurrencesPerEvent
	}

	var base []ParsedEvent
	overrides := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride {
			overrides[ev.UID] = append(overrides[ev.UID], ev)
		} else {
			base = append(base, ev)
		}
	}

	out := make([]model.RawEvent, 0)
	for _, ev := range base {
		for _, occStart := range occurrenceStarts(ev, start, end, maxOcc) {
			inst := ev
			if o, ok := findOverride(overrides[ev.UID], occStart); ok {
				inst = o
				occStart = o.Start
			}
			out = append(out, occurrenceEvent(ev.UID, inst, occStart, loc))
		}
	}
	return out
}

func occurrenceStarts(ev ParsedEvent, start, end time.Time, maxOcc int) []time.Time {
	if ev.RawRRule == "" {
		if ev.Start.Before(start) || ev.Start.After(end) {
			return nil
		}
		return []time.Time{ev.Start}
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("ics: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	times := set.Between(start.In(ev.Start.Location()), end.In(ev.Start.Location()), true)
	if len(times) > maxOcc {
		appLog.Warn("ics: occurrences truncated", "uid", ev.UID, "cap", maxOcc)
		times = times[:maxOcc]
	}
	return times
}

func findOverride(overrides []ParsedEvent, occStart time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(occStart) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func occurrenceEvent(uid string, ev ParsedEvent, occStart time.Time, loc *time.Location) model.RawEvent {
	// All-day dates are floating; timed events take the display zone's date.
	d := occStart
	if !ev.AllDay {
		d = occStart.In(loc)
	}
	date := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC).Format(model.DateLayout)

	desc := ev.Description
	if ev.Location != "" {
		if desc != "" {
			desc += "\n"
		}
		desc += "Location: " + ev.Location
	}

	return model.RawEvent{
		ID:          uid + "@" + date,
		Title:       ev.Summary,
		Description: desc,
		Date:        date,
		Category:    string(DeriveCategory(ev.Summary)),
		URL:         ev.URL,
	}
}
