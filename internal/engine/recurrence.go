package engine

import (
	"sort"

	"github.com/ovenlight/mealboard/internal/apperror"
	"github.com/ovenlight/mealboard/internal/dateutil"
	"github.com/ovenlight/mealboard/internal/plugins/meals"
)

// ExpandRecurrence turns a template entry, a weekday set (Monday=0 ..
// Sunday=6), and a week count into concrete creation requests: one per
// selected weekday in each of the weekCount weeks after the template's
// week, never the template's own week. Pure; the caller issues the
// requests.
//
// Only recipe entries are repeatable. The result always holds exactly
// weekCount * len(weekdays) requests with no de-duplication against
// existing slot occupants.
func ExpandRecurrence(template meals.Entry, weekdays []int, weekCount int) ([]meals.CreateEntryRequest, error) {
	if template.Payload.Kind != meals.PayloadRecipe {
		return nil, apperror.NewValidation("only recipe entries can be repeated")
	}
	if len(weekdays) == 0 {
		return nil, apperror.NewValidation("select at least one weekday")
	}
	if weekCount < 1 {
		return nil, apperror.NewValidation("week count must be at least 1")
	}

	days := make([]int, 0, len(weekdays))
	seen := map[int]bool{}
	for _, d := range weekdays {
		if d < 0 || d > 6 {
			return nil, apperror.NewValidation("weekdays must be 0 (Monday) through 6 (Sunday)")
		}
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Ints(days)

	weekStart := dateutil.StartOfWeek(template.PlannedDate)

	requests := make([]meals.CreateEntryRequest, 0, weekCount*len(days))
	for w := 1; w <= weekCount; w++ {
		for _, d := range days {
			requests = append(requests, meals.CreateEntryRequest{
				CalendarID:  template.CalendarID,
				PlannedDate: weekStart.AddDays(7*w + d),
				MealType:    template.MealType,
				Payload:     template.Payload,
				Servings:    template.Servings,
			})
		}
	}
	return requests, nil
}
