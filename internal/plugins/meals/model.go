package meals

import (
	"time"

	"github.com/ovenlight/mealboard/internal/dateutil"
)

// MealType is one of the four planning slots in a day.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// Valid reports whether the meal type is one of the known slots.
func (m MealType) Valid() bool {
	switch m {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// PayloadKind discriminates the two entry payload shapes.
type PayloadKind string

const (
	PayloadRecipe PayloadKind = "recipe"
	PayloadCustom PayloadKind = "custom"
)

// Payload is a tagged union: a reference to a recipe with denormalized
// display fields, or a free-form custom meal. Exactly one kind is set.
type Payload struct {
	Kind PayloadKind `json:"kind"`

	// Recipe fields. RecipeID identifies the recipe in whatever catalog
	// the client uses; the rest is a display snapshot.
	RecipeID     string `json:"recipeId,omitempty"`
	RecipeTitle  string `json:"recipeTitle,omitempty"`
	RecipeImage  string `json:"recipeImage,omitempty"`
	RecipeAuthor string `json:"recipeAuthor,omitempty"`

	// Custom fields.
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// DisplayTitle returns the human-readable title regardless of kind.
func (p Payload) DisplayTitle() string {
	if p.Kind == PayloadRecipe {
		return p.RecipeTitle
	}
	return p.Title
}

// Entry is one planned meal in a calendar slot. Slots hold any number of
// entries; there is no uniqueness constraint on (calendar, date, type).
type Entry struct {
	ID          string          `json:"id"`
	CalendarID  string          `json:"calendarId"`
	PlannedDate dateutil.DayKey `json:"plannedDate"`
	MealType    MealType        `json:"mealType"`
	Payload     Payload         `json:"payload"`
	Servings    int             `json:"servings"`
	CreatedBy   string          `json:"createdBy"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// CreateEntryRequest is the payload for creating a single entry.
type CreateEntryRequest struct {
	CalendarID  string          `json:"calendarId"`
	PlannedDate dateutil.DayKey `json:"plannedDate"`
	MealType    MealType        `json:"mealType"`
	Payload     Payload         `json:"payload"`
	Servings    int             `json:"servings"`
}

// MoveEntryRequest relocates an entry to another slot.
type MoveEntryRequest struct {
	PlannedDate dateutil.DayKey `json:"plannedDate"`
	MealType    MealType        `json:"mealType"`
}

// UpdateServingsRequest changes an entry's serving count.
type UpdateServingsRequest struct {
	Servings int `json:"servings"`
}

// BulkCopyRequest copies every entry in one week onto another week,
// preserving weekday and meal type.
type BulkCopyRequest struct {
	CalendarID  string          `json:"calendarId"`
	SourceStart dateutil.DayKey `json:"sourceStart"`
	SourceEnd   dateutil.DayKey `json:"sourceEnd"`
	TargetStart dateutil.DayKey `json:"targetStart"`
}

// RecurringRequest creates one entry per matching weekday between two
// dates inclusive.
type RecurringRequest struct {
	CalendarID string          `json:"calendarId"`
	StartDate  dateutil.DayKey `json:"startDate"`
	EndDate    dateutil.DayKey `json:"endDate"`
	// Weekdays are Monday=0 .. Sunday=6.
	Weekdays []int    `json:"weekdays"`
	MealType MealType `json:"mealType"`
	Payload  Payload  `json:"payload"`
	Servings int      `json:"servings"`
}

// BatchResult reports a partially successful batch operation. Created
// entries are kept even when some inserts failed.
type BatchResult struct {
	Created []Entry `json:"created"`
	Failed  int     `json:"failed"`
}
