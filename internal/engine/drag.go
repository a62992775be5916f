package engine

import (
	"github.com/ovenlight/mealboard/internal/dateutil"
	"github.com/ovenlight/mealboard/internal/plugins/meals"
)

// Drag is the transient drag-and-drop state: the entry being dragged and
// the slot currently hovered. UI-session scoped; cleared on navigation
// and always cleared by EndDrag.
type Drag struct {
	entry    *meals.Entry
	hovering bool
	hoverDay dateutil.DayKey
	hoverMT  meals.MealType
}

// Begin records the dragged entry.
func (d *Drag) Begin(entry meals.Entry) {
	d.entry = &entry
}

// Active reports whether a drag is in progress.
func (d *Drag) Active() bool { return d.entry != nil }

// Dragged returns the entry being dragged, or nil.
func (d *Drag) Dragged() *meals.Entry { return d.entry }

// Hover records the highlighted target slot, overwriting any prior one.
func (d *Drag) Hover(date dateutil.DayKey, mealType meals.MealType) {
	d.hovering = true
	d.hoverDay = date
	d.hoverMT = mealType
}

// Hovered returns the current hover target, if any.
func (d *Drag) Hovered() (dateutil.DayKey, meals.MealType, bool) {
	return d.hoverDay, d.hoverMT, d.hovering
}

// End clears all drag and hover state. Called on drop, cancel, and error.
func (d *Drag) End() {
	d.entry = nil
	d.hovering = false
	d.hoverDay = ""
	d.hoverMT = ""
}
