package calendar

import "admcal/internal/model"

// ActivationKind is what a click on a day cell should open.
type ActivationKind int

const (
	ActivateNone ActivationKind = iota
	ActivateSingle
	ActivateMulti
)

func (k ActivationKind) String() string {
	switch k {
	case ActivateSingle:
		return "single"
	case ActivateMulti:
		return "multi"
	default:
		return "none"
	}
}

// DayActivation is the result of selecting a day cell.
type DayActivation struct {
	Kind ActivationKind
	// EventID is set for ActivateSingle.
	EventID string
	// EventIDs is set for ActivateMulti, ordered by category then title.
	EventIDs []string
}

// SelectDay decides what activating cell opens: nothing for an empty day, the
// event detail for a single event, or the day's event list otherwise.
func SelectDay(cell Cell) DayActivation {
	return selectEvents(cell.Events)
}

func selectEvents(events []model.Event) DayActivation {
	switch len(events) {
	case 0:
		return DayActivation{Kind: ActivateNone}
	case 1:
		return DayActivation{Kind: ActivateSingle, EventID: events[0].ID}
	}

	sorted := sortForDay(events)
	ids := make([]string, len(sorted))
	for i, ev := range sorted {
		ids[i] = ev.ID
	}
	return DayActivation{Kind: ActivateMulti, EventIDs: ids}
}
