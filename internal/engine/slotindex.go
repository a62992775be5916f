package engine

import (
	"github.com/ovenlight/mealboard/internal/dateutil"
	"github.com/ovenlight/mealboard/internal/plugins/meals"
)

// slotKey addresses one meal slot. Dates are DayKey strings so equality
// never depends on timezones.
type slotKey struct {
	calendarID string
	date       dateutil.DayKey
	mealType   meals.MealType
}

// SlotIndex is a read projection over the engine's authoritative entry
// list: (calendar, date, mealType) to the entries occupying that slot.
// It is rebuilt whenever the entry set changes and never mutated in place.
type SlotIndex struct {
	bySlot map[slotKey][]meals.Entry
	byDate map[dateutil.DayKey][]meals.Entry
}

// BuildSlotIndex projects the entry list into slot and date lookups.
// Entries keep their arrival order within a slot.
func BuildSlotIndex(entries []meals.Entry) *SlotIndex {
	idx := &SlotIndex{
		bySlot: make(map[slotKey][]meals.Entry),
		byDate: make(map[dateutil.DayKey][]meals.Entry),
	}
	for _, entry := range entries {
		key := slotKey{entry.CalendarID, entry.PlannedDate, entry.MealType}
		idx.bySlot[key] = append(idx.bySlot[key], entry)
		idx.byDate[entry.PlannedDate] = append(idx.byDate[entry.PlannedDate], entry)
	}
	return idx
}

// EntriesForSlot returns the entries in one slot. An empty calendarID
// matches every calendar, preserving overall arrival order.
func (idx *SlotIndex) EntriesForSlot(calendarID string, date dateutil.DayKey, mealType meals.MealType) []meals.Entry {
	if calendarID != "" {
		return idx.bySlot[slotKey{calendarID, date, mealType}]
	}
	var out []meals.Entry
	for _, entry := range idx.byDate[date] {
		if entry.MealType == mealType {
			out = append(out, entry)
		}
	}
	return out
}

// EntriesForDate returns every entry on a day across all meal types, in
// arrival order. Used by month and day-summary views.
func (idx *SlotIndex) EntriesForDate(date dateutil.DayKey) []meals.Entry {
	return idx.byDate[date]
}
