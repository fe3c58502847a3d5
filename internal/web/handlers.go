package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"admcal/internal/calendar"
	appLog "admcal/internal/log"
	"admcal/internal/model"
)

// eventDTO is the JSON view of an event. Description is always present,
// empty when the source had none.
type eventDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Institution string `json:"institution"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Category    string `json:"category"`
	URL         string `json:"url,omitempty"`
	DaysUntil   int    `json:"days_until"`
	DaysLeft    string `json:"days_left"`
	Urgent      bool   `json:"urgent"`
}

func toEventDTO(ev model.Event, today time.Time) eventDTO {
	days := calendar.DaysUntil(ev, today)
	return eventDTO{
		ID:          ev.ID,
		Title:       ev.Title,
		Institution: ev.Institution,
		Description: ev.Description,
		Date:        ev.DateKey(),
		Category:    string(ev.Category),
		URL:         ev.URL,
		DaysUntil:   days,
		DaysLeft:    calendar.DaysLeftLabel(days),
		Urgent:      calendar.Urgent(days),
	}
}

func toEventDTOs(events []model.Event, today time.Time) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventDTO(ev, today))
	}
	return out
}

type statusDTO struct {
	State         calendar.LoadState `json:"state"`
	LoadedAt      *time.Time         `json:"loaded_at,omitempty"`
	Stale         bool               `json:"stale"`
	Rejected      int                `json:"rejected"`
	Sources       int                `json:"sources"`
	FailedSources int                `json:"failed_sources"`
	Error         string             `json:"error,omitempty"`
}

func toStatusDTO(st calendar.LoadStatus) statusDTO {
	out := statusDTO{
		State:         st.State,
		Stale:         st.Stale,
		Rejected:      st.Rejected,
		Sources:       st.Sources,
		FailedSources: st.FailedSources,
	}
	if !st.LoadedAt.IsZero() {
		t := st.LoadedAt
		out.LoadedAt = &t
	}
	if st.Err != nil {
		out.Error = st.Err.Error()
	}
	return out
}

type cursorDTO struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Title string `json:"title"`
}

func toCursorDTO(c calendar.Cursor) cursorDTO {
	return cursorDTO{Year: c.Year, Month: int(c.Month), Title: c.Title()}
}

// GET /api/events?q=&institution=&category=&month=
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	if e == nil {
		return
	}

	type eventsResponse struct {
		Events []eventDTO `json:"events"`
		Total  int        `json:"total"`
		Status statusDTO  `json:"status"`
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Events: toEventDTOs(e.List(), e.Today()),
		Total:  len(e.All()),
		Status: toStatusDTO(s.loader.Status()),
	})
}

// GET /api/events/{id}
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	if e == nil {
		return
	}
	ev, ok := e.Event(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, toEventDTO(ev, e.Today()))
}

type cellDTO struct {
	Date       string   `json:"date"`
	Day        int      `json:"day"`
	OtherMonth bool     `json:"other_month"`
	IsToday    bool     `json:"is_today"`
	EventIDs   []string `json:"event_ids"`
	Categories []string `json:"categories"`
}

// GET /api/grid?year=&cal_month=&<filters>
//
// The displayed month is cal_month; month is the list filter.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	if e == nil {
		return
	}

	grid := e.Grid()
	cells := make([]cellDTO, len(grid))
	for i, c := range grid {
		ids := make([]string, len(c.Events))
		cats := make([]string, len(c.Events))
		for j, ev := range c.Events {
			ids[j] = ev.ID
			cats[j] = string(ev.Category)
		}
		cells[i] = cellDTO{
			Date:       c.Date.Format(model.DateLayout),
			Day:        c.Day,
			OtherMonth: c.OtherMonth,
			IsToday:    c.IsToday,
			EventIDs:   ids,
			Categories: cats,
		}
	}

	weekdays := make([]string, 0, 7)
	for _, d := range calendar.WeekdayOrder(e.WeekStart()) {
		weekdays = append(weekdays, d.String())
	}

	type gridResponse struct {
		Cursor   cursorDTO `json:"cursor"`
		Weekdays []string  `json:"weekdays"`
		Cells    []cellDTO `json:"cells"`
	}
	writeJSON(w, http.StatusOK, gridResponse{
		Cursor:   toCursorDTO(e.Cursor()),
		Weekdays: weekdays,
		Cells:    cells,
	})
}

// GET /api/day?date=YYYY-MM-DD&<filters>
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	date, err := model.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	e := s.session(w, r)
	if e == nil {
		return
	}

	act := e.SelectDate(date)
	type dayResponse struct {
		Date     string     `json:"date"`
		Kind     string     `json:"kind"`
		EventID  string     `json:"event_id,omitempty"`
		EventIDs []string   `json:"event_ids,omitempty"`
		Events   []eventDTO `json:"events"`
	}
	resp := dayResponse{
		Date:     date.Format(model.DateLayout),
		Kind:     act.Kind.String(),
		EventID:  act.EventID,
		EventIDs: act.EventIDs,
		Events:   []eventDTO{},
	}
	switch act.Kind {
	case calendar.ActivateSingle:
		if ev, ok := e.Event(act.EventID); ok {
			resp.Events = append(resp.Events, toEventDTO(ev, e.Today()))
		}
	case calendar.ActivateMulti:
		for _, id := range act.EventIDs {
			if ev, ok := e.Event(id); ok {
				resp.Events = append(resp.Events, toEventDTO(ev, e.Today()))
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/navigate?year=&cal_month=&dir=-1|1
func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cursor, err := parseCursor(q, s.today())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	dir, err := strconv.Atoi(q.Get("dir"))
	if err != nil || (dir != -1 && dir != 1) {
		writeError(w, http.StatusBadRequest, "dir must be -1 or 1")
		return
	}
	writeJSON(w, http.StatusOK, toCursorDTO(cursor.Navigate(dir)))
}

// GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	if e == nil {
		return
	}
	st := e.Stats()
	type statsResponse struct {
		Total        int `json:"total"`
		ThisWeek     int `json:"this_week"`
		ThisMonth    int `json:"this_month"`
		Institutions int `json:"institutions"`
	}
	writeJSON(w, http.StatusOK, statsResponse{
		Total:        st.Total,
		ThisWeek:     st.ThisWeek,
		ThisMonth:    st.ThisMonth,
		Institutions: st.Institutions,
	})
}

// GET /api/facets
func (s *Server) handleFacets(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	if e == nil {
		return
	}
	cats := make([]string, 0)
	for _, c := range e.Categories() {
		cats = append(cats, string(c))
	}
	inst := e.Institutions()
	if inst == nil {
		inst = []string{}
	}
	type facetsResponse struct {
		Institutions []string `json:"institutions"`
		Categories   []string `json:"categories"`
	}
	writeJSON(w, http.StatusOK, facetsResponse{Institutions: inst, Categories: cats})
}

// GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toStatusDTO(s.loader.Status()))
}

// POST /api/reload runs a load synchronously. This is the only retry path
// after a failed load.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	// The load outlives a dropped client; the loader applies its own timeout.
	st := s.loader.Load(context.WithoutCancel(r.Context()))
	code := http.StatusOK
	if st.State == calendar.StateFailed {
		code = http.StatusServiceUnavailable
	}
	appLog.Info("reload requested", "state", st.State, "remote", r.RemoteAddr)
	writeJSON(w, code, toStatusDTO(st))
}

// parseFilter reads q (or search), institution, category and month. month
// accepts 1-12, a month name, or "all".
func parseFilter(q url.Values) (calendar.FilterState, error) {
	f := calendar.FilterState{
		Search:      q.Get("q"),
		Institution: q.Get("institution"),
		Category:    q.Get("category"),
	}
	if f.Search == "" {
		f.Search = q.Get("search")
	}
	m, err := parseMonth(q.Get("month"), true)
	if err != nil {
		return f, err
	}
	f.Month = m
	return f, nil
}

func parseMonth(s string, allowAll bool) (time.Month, error) {
	s = strings.TrimSpace(s)
	if s == "" || (allowAll && strings.EqualFold(s, calendar.All)) {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("month %d out of range 1-12", n)
		}
		return time.Month(n), nil
	}
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(s, m.String()) || strings.EqualFold(s, m.String()[:3]) {
			return m, nil
		}
	}
	return 0, fmt.Errorf("invalid month %q", s)
}

// parseCursor reads year and month, defaulting each to today's.
func parseCursor(q url.Values, today time.Time) (calendar.Cursor, error) {
	c := calendar.CursorFor(today)
	if y := q.Get("year"); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil || n < 1 || n > 9999 {
			return c, fmt.Errorf("invalid year %q", y)
		}
		c.Year = n
	}
	m, err := parseMonth(q.Get("cal_month"), false)
	if err != nil {
		return c, err
	}
	if m != 0 {
		c.Month = m
	}
	return c, nil
}
