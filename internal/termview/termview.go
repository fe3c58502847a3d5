// Package termview prints a month grid and the deadline list to a terminal.
package termview

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"admcal/internal/calendar"
	"admcal/internal/model"
)

// View is everything one printout needs.
type View struct {
	Cursor    calendar.Cursor
	WeekStart time.Weekday
	Grid      []calendar.Cell
	List      []model.Event
	Today     time.Time
}

// FromEngine captures the engine's current month and filtered list.
func FromEngine(e *calendar.Engine) View {
	return View{
		Cursor:    e.Cursor(),
		WeekStart: e.WeekStart(),
		Grid:      e.Grid(),
		List:      e.List(),
		Today:     e.Today(),
	}
}

// Options tunes the printout.
type Options struct {
	// CellWidth is the width of one day column. Zero means 6.
	CellWidth int
	// Renderer decides the colour profile; nil uses one bound to w.
	Renderer *lipgloss.Renderer
	// HideList prints the grid only.
	HideList bool
}

var categoryColors = map[model.Category]lipgloss.Color{
	model.CategoryApplication:  lipgloss.Color("4"),
	model.CategoryRegistration: lipgloss.Color("2"),
	model.CategoryBursary:      lipgloss.Color("1"),
	model.CategoryOrientation:  lipgloss.Color("5"),
}

type styles struct {
	title  lipgloss.Style
	header lipgloss.Style
	day    lipgloss.Style
	other  lipgloss.Style
	today  lipgloss.Style
	urgent lipgloss.Style
	faint  lipgloss.Style

	withEvents func(model.Category) lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, width int) styles {
	cell := r.NewStyle().Width(width).Align(lipgloss.Right).PaddingRight(1)
	return styles{
		title:  r.NewStyle().Bold(true).Width(width * 7).Align(lipgloss.Center),
		header: cell.Bold(true),
		day:    cell,
		other:  cell.Faint(true),
		today:  cell.Reverse(true),
		urgent: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		faint:  r.NewStyle().Faint(true),
		withEvents: func(c model.Category) lipgloss.Style {
			s := cell.Bold(true)
			if col, ok := categoryColors[c]; ok {
				s = s.Foreground(col)
			}
			return s
		},
	}
}

// Render writes v to w: the month title, a weekday header in week-start
// order, six week rows and then the sorted list. Days with events carry a
// '*' marker.
func Render(w io.Writer, v View, opts Options) error {
	if len(v.Grid) != calendar.GridCells {
		return fmt.Errorf("termview: grid has %d cells, want %d", len(v.Grid), calendar.GridCells)
	}
	width := opts.CellWidth
	if width <= 0 {
		width = 6
	}
	r := opts.Renderer
	if r == nil {
		r = lipgloss.NewRenderer(w)
	}
	st := newStyles(r, width)

	var b strings.Builder
	b.WriteString(st.title.Render(v.Cursor.Title()))
	b.WriteByte('\n')

	header := make([]string, 0, 7)
	for _, d := range calendar.WeekdayOrder(v.WeekStart) {
		header = append(header, st.header.Render(d.String()[:3]))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, header...))
	b.WriteByte('\n')

	for week := 0; week < calendar.GridWeeks; week++ {
		row := make([]string, 0, 7)
		for _, c := range v.Grid[week*7 : week*7+7] {
			row = append(row, renderCell(st, c))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, row...))
		b.WriteByte('\n')
	}

	if !opts.HideList {
		b.WriteByte('\n')
		if len(v.List) == 0 {
			b.WriteString(st.faint.Render("No events match the current filters."))
			b.WriteByte('\n')
		}
		for _, ev := range v.List {
			b.WriteString(renderItem(st, ev, v.Today))
			b.WriteByte('\n')
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func renderCell(st styles, c calendar.Cell) string {
	label := strconv.Itoa(c.Day)
	if c.HasEvents() {
		label += "*"
	}
	switch {
	case c.IsToday:
		return st.today.Render(label)
	case c.OtherMonth:
		return st.other.Render(label)
	case c.HasEvents():
		return st.withEvents(c.Events[0].Category).Render(label)
	default:
		return st.day.Render(label)
	}
}

func renderItem(st styles, ev model.Event, today time.Time) string {
	days := calendar.DaysUntil(ev, today)
	left := calendar.DaysLeftLabel(days)
	if calendar.Urgent(days) {
		left = st.urgent.Render(left)
	}
	line := fmt.Sprintf("%s  %-12s  %s", ev.DateKey(), ev.Category, ev.Title)
	if ev.Institution != "" {
		line += " (" + ev.Institution + ")"
	}
	return line + "  " + left
}
