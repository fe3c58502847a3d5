package calendar

import (
	"fmt"
	"time"
)

// Cursor identifies the month shown by the grid.
type Cursor struct {
	Year  int
	Month time.Month
}

// CursorFor returns the cursor of the month containing t.
func CursorFor(t time.Time) Cursor {
	return Cursor{Year: t.Year(), Month: t.Month()}
}

// Navigate moves the cursor by dir months (normally -1 or +1), rolling the
// year over at January and December.
func (c Cursor) Navigate(dir int) Cursor {
	// Zero-based month index.
	idx := c.Year*12 + int(c.Month) - 1 + dir
	year := idx / 12
	m := idx % 12
	if m < 0 {
		m += 12
		year--
	}
	return Cursor{Year: year, Month: time.Month(m + 1)}
}

// Valid reports whether Month is within January..December.
func (c Cursor) Valid() bool {
	return c.Month >= time.January && c.Month <= time.December
}

// First returns the first day of the cursor month.
func (c Cursor) First() time.Time {
	return time.Date(c.Year, c.Month, 1, 0, 0, 0, 0, time.UTC)
}

func (c Cursor) String() string {
	return fmt.Sprintf("%04d-%02d", c.Year, int(c.Month))
}

// Title is the grid heading, e.g. "April 2025".
func (c Cursor) Title() string {
	return fmt.Sprintf("%s %d", c.Month, c.Year)
}
