package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"admcal/internal/config"
	"admcal/internal/model"
)

func TestDeriveCategory(t *testing.T) {
	tests := []struct {
		title string
		want  model.Category
	}{
		{"NSFAS Applications Deadline", model.CategoryBursary},
		{"Faculty Bursary Applications", model.CategoryBursary},
		{"Residence Applications", model.CategoryRegistration},
		{"First Year Registration", model.CategoryRegistration},
		{"Orientation Week", model.CategoryOrientation},
		{"Postgraduate Applications Close", model.CategoryApplication},
		{"Something else", model.CategoryApplication},
	}
	for _, tt := range tests {
		if got := DeriveCategory(tt.title); got != tt.want {
			t.Errorf("DeriveCategory(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}

func TestRedactURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://example.com/path/private.ics?token=abcd", "https://example.com/...(redacted)"},
		{"http://127.0.0.1:5000", "http://127.0.0.1:5000/...(redacted)"},
		{"not a url", "url://...(redacted)"},
	}
	for _, tt := range tests {
		if got := redactURL(tt.in); got != tt.want {
			t.Errorf("redactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

const admissionsJSON = `[
  {"id": 1, "title": "Undergraduate Applications", "institution": "University of Cape Town",
   "applicationDeadline": "2025-04-01T00:00:00", "registrationDeadline": "2025-12-01",
   "type": "Application Opening", "applicationPortalUrl": "https://www.uct.ac.za/apply",
   "description": null, "priority": "High"},
  {"admission_id": "b7", "title": "NSFAS Funding Window", "university": "NSFAS", "date": "2025-11-30"},
  {"title": "no id", "date": "2025-01-01"},
  {"id": 3, "title": "Orientation", "institution": "Stellenbosch University",
   "startDate": "2026-02-03", "endDate": "2026-02-03", "link": "https://www.sun.ac.za"},
  {"id": 4, "title": "Undated"}
]`

func byID(events []model.RawEvent) map[string]model.RawEvent {
	out := make(map[string]model.RawEvent, len(events))
	for _, ev := range events {
		out[ev.ID] = ev
	}
	return out
}

func TestDecodeAdmissions(t *testing.T) {
	events, err := DecodeAdmissions([]byte(admissionsJSON))
	if err != nil {
		t.Fatalf("DecodeAdmissions() error = %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("DecodeAdmissions() = %d events, want 4: %+v", len(events), events)
	}
	got := byID(events)

	want := map[string]model.RawEvent{
		"1": {ID: "1", Title: "Undergraduate Applications", Institution: "University of Cape Town",
			Date: "2025-04-01T00:00:00", Category: "application", URL: "https://www.uct.ac.za/apply"},
		"1-reg": {ID: "1-reg", Title: "Undergraduate Applications (registration)", Institution: "University of Cape Town",
			Date: "2025-12-01", Category: "registration", URL: "https://www.uct.ac.za/apply"},
		"b7": {ID: "b7", Title: "NSFAS Funding Window", Institution: "NSFAS", Date: "2025-11-30", Category: "bursary"},
		"3": {ID: "3", Title: "Orientation", Institution: "Stellenbosch University", Date: "2026-02-03",
			Category: "orientation", URL: "https://www.sun.ac.za"},
	}
	for id, w := range want {
		if g, ok := got[id]; !ok || g != w {
			t.Errorf("event %s = %+v, want %+v", id, g, w)
		}
	}
}

func TestDecodeAdmissionsBackendError(t *testing.T) {
	_, err := DecodeAdmissions([]byte(`{"error": "database is locked"}`))
	if err == nil || !strings.Contains(err.Error(), "database is locked") {
		t.Errorf("DecodeAdmissions() error = %v", err)
	}
	if _, err := DecodeAdmissions([]byte(`<html>`)); err == nil {
		t.Errorf("DecodeAdmissions(html) should fail")
	}
}

func TestFetcherMirror(t *testing.T) {
	var (
		hits   atomic.Int32
		broken atomic.Bool
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if broken.Load() {
			http.Error(w, "down", http.StatusInternalServerError)
			return
		}
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(admissionsJSON))
	}))
	defer srv.Close()

	ctx := context.Background()
	f := NewFetcher(t.TempDir(), time.Second)

	first, err := f.Get(ctx, "test", srv.URL, "")
	if err != nil || first.FromCache || string(first.Body) != admissionsJSON {
		t.Fatalf("first Get() = %+v, %v", first.FromCache, err)
	}

	second, err := f.Get(ctx, "test", srv.URL, "")
	if err != nil || second.FromCache || string(second.Body) != admissionsJSON {
		t.Fatalf("revalidated Get() = %+v, %v", second.FromCache, err)
	}

	broken.Store(true)
	third, err := f.Get(ctx, "test", srv.URL, "")
	if err != nil || !third.FromCache || string(third.Body) != admissionsJSON {
		t.Fatalf("fallback Get() = %+v, %v", third.FromCache, err)
	}
	if hits.Load() != 3 {
		t.Errorf("server hit %d times, want 3", hits.Load())
	}

	noMirror := NewFetcher("", time.Second)
	if _, err := noMirror.Get(ctx, "test", srv.URL, ""); err == nil {
		t.Errorf("Get() without mirror should fail on 500")
	}
}

func TestBackendFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admissions/api/admissions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(admissionsJSON))
	}))
	defer srv.Close()

	b := NewBackend("", srv.URL+"/admissions/api/admissions", NewFetcher("", time.Second))
	if b.Name() != "backend" {
		t.Errorf("Name() = %q", b.Name())
	}
	batch, err := b.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(batch.Events) != 4 || batch.FromCache {
		t.Errorf("Fetch() = %d events, fromCache=%v", len(batch.Events), batch.FromCache)
	}
}

const sampleICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//admcal//test//EN
BEGIN:VEVENT
UID:open-day
DTSTAMP:20250101T000000Z
DTSTART;VALUE=DATE:20250510
DTEND;VALUE=DATE:20250511
SUMMARY:Campus Orientation Day
LOCATION:Main Hall
URL:https://example.ac.za/open-day
END:VEVENT
BEGIN:VEVENT
UID:info
DTSTAMP:20250101T000000Z
DTSTART:20250505T090000Z
DTEND:20250505T100000Z
RRULE:FREQ=WEEKLY;COUNT=4
EXDATE:20250512T090000Z
SUMMARY:Bursary Info Session
END:VEVENT
BEGIN:VEVENT
UID:info
DTSTAMP:20250101T000000Z
RECURRENCE-ID:20250519T090000Z
DTSTART:20250520T090000Z
DTEND:20250520T100000Z
SUMMARY:Bursary Info Session (moved)
END:VEVENT
BEGIN:VEVENT
UID:old
DTSTAMP:20250101T000000Z
DTSTART;VALUE=DATE:20240101
SUMMARY:Ancient Application Deadline
END:VEVENT
END:VCALENDAR
`

func TestICSParseAndExpand(t *testing.T) {
	body := []byte(strings.ReplaceAll(sampleICS, "\n", "\r\n"))
	parsed, err := ParseICS("test", body)
	if err != nil {
		t.Fatalf("ParseICS() error = %v", err)
	}
	if len(parsed) != 4 {
		t.Fatalf("ParseICS() = %d events, want 4", len(parsed))
	}

	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	got := byID(ExpandICS(parsed, start, end, ICSWindow{Location: time.UTC}))

	wantTitles := map[string]string{
		"open-day@2025-05-10": "Campus Orientation Day",
		"info@2025-05-05":     "Bursary Info Session",
		"info@2025-05-20":     "Bursary Info Session (moved)",
		"info@2025-05-26":     "Bursary Info Session",
	}
	if len(got) != len(wantTitles) {
		t.Errorf("ExpandICS() = %v", got)
	}
	for id, title := range wantTitles {
		ev, ok := got[id]
		if !ok {
			t.Errorf("missing occurrence %s", id)
			continue
		}
		if ev.Title != title {
			t.Errorf("%s title = %q, want %q", id, ev.Title, title)
		}
	}

	od := got["open-day@2025-05-10"]
	if od.Category != "orientation" || od.URL != "https://example.ac.za/open-day" || !strings.Contains(od.Description, "Main Hall") {
		t.Errorf("open day = %+v", od)
	}
	if got["info@2025-05-05"].Category != "bursary" {
		t.Errorf("info category = %q", got["info@2025-05-05"].Category)
	}
}

const zonedICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//admcal//test//EN
BEGIN:VEVENT
UID:weekly
DTSTAMP:20250101T000000Z
DTSTART;TZID=Africa/Johannesburg:20250106T090000
DTEND;TZID=Africa/Johannesburg:20250106T100000
RRULE:FREQ=WEEKLY;COUNT=4
EXDATE;TZID=Africa/Johannesburg:20250127T090000
SUMMARY:Info session
END:VEVENT
BEGIN:VEVENT
UID:weekly
DTSTAMP:20250101T000000Z
RECURRENCE-ID;TZID=Africa/Johannesburg:20250113T090000
DTSTART;TZID=Africa/Johannesburg:20250115T090000
DTEND;TZID=Africa/Johannesburg:20250115T100000
SUMMARY:Info session (moved)
END:VEVENT
END:VCALENDAR
`

func TestICSZonedOverrides(t *testing.T) {
	jhb, err := time.LoadLocation("Africa/Johannesburg")
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := ParseICS("zoned", []byte(strings.ReplaceAll(zonedICS, "\n", "\r\n")))
	if err != nil {
		t.Fatalf("ParseICS() error = %v", err)
	}

	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)
	for _, display := range []*time.Location{time.UTC, jhb} {
		got := byID(ExpandICS(parsed, start, end, ICSWindow{Location: display}))

		want := map[string]string{
			"weekly@2025-01-06": "Info session",
			"weekly@2025-01-15": "Info session (moved)",
			"weekly@2025-01-20": "Info session",
		}
		if len(got) != len(want) {
			t.Errorf("%s: ExpandICS() = %v", display, got)
		}
		for id, title := range want {
			if ev, ok := got[id]; !ok || ev.Title != title {
				t.Errorf("%s: %s = %+v, want title %q", display, id, ev, title)
			}
		}
		for _, id := range []string{"weekly@2025-01-13", "weekly@2025-01-27"} {
			if _, ok := got[id]; ok {
				t.Errorf("%s: %s should be replaced or excluded", display, id)
			}
		}
	}
}

func TestICSSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = w.Write([]byte(strings.ReplaceAll(sampleICS, "\n", "\r\n")))
	}))
	defer srv.Close()

	s := NewICS("uct-feed", srv.URL, "University of Cape Town", ICSWindow{BackfillDays: 10, HorizonDays: 30, Location: time.UTC}, NewFetcher("", time.Second))
	s.now = func() time.Time { return time.Date(2025, 5, 8, 12, 0, 0, 0, time.UTC) }

	batch, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	got := byID(batch.Events)
	for _, id := range []string{"open-day@2025-05-10", "info@2025-05-05", "info@2025-05-20", "info@2025-05-26"} {
		ev, ok := got[id]
		if !ok {
			t.Errorf("missing %s in %v", id, got)
			continue
		}
		if ev.Institution != "University of Cape Town" {
			t.Errorf("%s institution = %q", id, ev.Institution)
		}
	}
	if _, ok := got["old@2024-01-01"]; ok {
		t.Errorf("event outside the window was included")
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()

	listPath := filepath.Join(dir, "events.yaml")
	list := `- id: 1
  title: Undergraduate Applications Open
  university: University of Cape Town
  date: 2025-04-01
  type: application
  link: https://www.uct.ac.za/apply
- id: 2
  title: Broken
  date: sometime
`
	if err := os.WriteFile(listPath, []byte(list), 0o600); err != nil {
		t.Fatal(err)
	}

	batch, err := NewFile("", listPath).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(batch.Events) != 2 {
		t.Fatalf("Fetch() = %+v", batch.Events)
	}
	first := batch.Events[0]
	if first.ID != "1" || first.Date != "2025-04-01" || first.Institution != "University of Cape Town" || first.URL != "https://www.uct.ac.za/apply" {
		t.Errorf("first = %+v", first)
	}
	if batch.Events[1].Date != "sometime" {
		t.Errorf("malformed dates are left for validation, got %+v", batch.Events[1])
	}

	docPath := filepath.Join(dir, "events.json")
	doc := `{"events": [{"id": "x", "title": "Orientation Week", "date": "2026-02-03"}]}`
	if err := os.WriteFile(docPath, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}
	batch, err = NewFile("seed", docPath).Fetch(context.Background())
	if err != nil || len(batch.Events) != 1 || batch.Events[0].Category != "orientation" {
		t.Errorf("Fetch(json doc) = %+v, %v", batch.Events, err)
	}

	if _, err := NewFile("", filepath.Join(dir, "missing.yaml")).Fetch(context.Background()); err == nil {
		t.Errorf("Fetch(missing) should fail")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ICS = []config.ICSConfig{
		{ID: "uct", Name: "University of Cape Town", URL: "https://example.ac.za/uct.ics"},
		{Name: "Wits", URL: "https://example.ac.za/wits.ics"},
		{ID: "skipped"},
	}
	cfg.Files = []config.FileConfig{{Name: "seed", Path: "./seed.yaml"}}

	sources := FromConfig(cfg)
	var names []string
	for _, s := range sources {
		names = append(names, s.Name())
	}
	want := []string{"backend", "uct", "Wits", "seed"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("FromConfig() names = %v, want %v", names, want)
	}
	if ics, ok := sources[1].(*ICS); !ok || ics.institution != "University of Cape Town" {
		t.Errorf("ics source = %+v", sources[1])
	}
}
