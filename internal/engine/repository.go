package engine

import (
	"context"

	"github.com/ovenlight/mealboard/internal/dateutil"
	"github.com/ovenlight/mealboard/internal/plugins/auth"
	"github.com/ovenlight/mealboard/internal/plugins/calendars"
	"github.com/ovenlight/mealboard/internal/plugins/meals"
)

// Repository is the engine's view of the remote store. Implementations
// are transport-specific (see the remote package); the engine only
// assumes the calls may be slow, may fail, and may complete out of order.
type Repository interface {
	ListEntries(ctx context.Context, calendarIDs []string, start, end dateutil.DayKey) ([]meals.Entry, error)
	CreateEntry(ctx context.Context, req meals.CreateEntryRequest) (*meals.Entry, error)
	MoveEntry(ctx context.Context, entryID string, req meals.MoveEntryRequest) (*meals.Entry, error)
	UpdateServings(ctx context.Context, entryID string, servings int) (*meals.Entry, error)
	DeleteEntry(ctx context.Context, entryID string) error
	// BulkCopy is the server-side week duplication. Implementations
	// without it return apperror with a 404/501 code and the engine
	// falls back to per-entry creates.
	BulkCopy(ctx context.Context, req meals.BulkCopyRequest) (*meals.BatchResult, error)
	CreateRecurring(ctx context.Context, req meals.RecurringRequest) (*meals.BatchResult, error)

	ListCalendars(ctx context.Context) ([]calendars.Calendar, error)
	CreateCalendar(ctx context.Context, req calendars.CreateCalendarRequest) (*calendars.Calendar, error)
	RenameCalendar(ctx context.Context, calendarID string, req calendars.RenameCalendarRequest) (*calendars.Calendar, error)
	DeleteCalendar(ctx context.Context, calendarID string) error

	ListShares(ctx context.Context, calendarID string) ([]calendars.ShareGrant, error)
	GrantShare(ctx context.Context, calendarID string, req calendars.ShareRequest) error
	UpdateShare(ctx context.Context, calendarID string, req calendars.ShareRequest) error
	RevokeShare(ctx context.Context, calendarID, userID string) error
	LeaveCalendar(ctx context.Context, calendarID string) error

	SearchUsers(ctx context.Context, query string, limit int) ([]auth.UserSummary, error)
	GetSettings(ctx context.Context) (*auth.Settings, error)
}
