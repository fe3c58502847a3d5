package web

import (
	"bytes"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"admcal/internal/calendar"
	appLog "admcal/internal/log"
	"admcal/internal/model"
)

type pageCell struct {
	calendar.Cell
	Activation calendar.DayActivation
}

type pageItem struct {
	model.Event
	DaysLeft string
	Urgent   bool
}

type calendarPage struct {
	Title      string
	Cursor     calendar.Cursor
	PrevURL    string
	NextURL    string
	ClearURL   string
	Weekdays   []time.Weekday
	Weeks      [][]pageCell
	List       []pageItem
	Filter     calendar.FilterState
	Months     []time.Month
	Categories []model.Category
	Inst       []string
	Stats      calendar.Stats
	Status     calendar.LoadStatus
}

// GET /calendar renders the month grid and the filtered list. The capture
// pipeline waits for [data-ready="true"] before taking a snapshot.
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	e := s.session(w, r)
	if e == nil {
		return
	}
	today := e.Today()

	grid := e.Grid()
	weeks := make([][]pageCell, 0, calendar.GridWeeks)
	for i := 0; i < len(grid); i += 7 {
		row := make([]pageCell, 0, 7)
		for _, c := range grid[i : i+7] {
			row = append(row, pageCell{Cell: c, Activation: calendar.SelectDay(c)})
		}
		weeks = append(weeks, row)
	}

	list := e.List()
	items := make([]pageItem, 0, len(list))
	for _, ev := range list {
		days := calendar.DaysUntil(ev, today)
		items = append(items, pageItem{
			Event:    ev,
			DaysLeft: calendar.DaysLeftLabel(days),
			Urgent:   calendar.Urgent(days),
		})
	}

	months := make([]time.Month, 0, 12)
	for m := time.January; m <= time.December; m++ {
		months = append(months, m)
	}

	q := r.URL.Query()
	page := calendarPage{
		Title:      e.Cursor().Title(),
		Cursor:     e.Cursor(),
		PrevURL:    navURL(q, e.Cursor().Navigate(-1)),
		NextURL:    navURL(q, e.Cursor().Navigate(1)),
		ClearURL:   navURL(nil, e.Cursor()),
		Weekdays:   calendar.WeekdayOrder(e.WeekStart()),
		Weeks:      weeks,
		List:       items,
		Filter:     e.Filter(),
		Months:     months,
		Categories: model.KnownCategories,
		Inst:       e.Institutions(),
		Stats:      e.Stats(),
		Status:     s.loader.Status(),
	}

	var buf bytes.Buffer
	if err := pageTemplates.ExecuteTemplate(&buf, "calendar.html", page); err != nil {
		appLog.Error("failed to render calendar page", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// navURL keeps the current filters and points the grid at c.
func navURL(q url.Values, c calendar.Cursor) string {
	next := url.Values{}
	for k, v := range q {
		next[k] = v
	}
	next.Set("year", strconv.Itoa(c.Year))
	next.Set("cal_month", strconv.Itoa(int(c.Month)))
	return "/calendar?" + next.Encode()
}
