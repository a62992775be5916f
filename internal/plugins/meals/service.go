package meals

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/ovenlight/mealboard/internal/apperror"
	"github.com/ovenlight/mealboard/internal/dateutil"
	"github.com/ovenlight/mealboard/internal/plugins/calendars"
	"github.com/ovenlight/mealboard/internal/sanitize"
)

// recurrenceCap bounds how many entries a single recurring request may
// create. A full year of daily occurrences fits under it.
const recurrenceCap = 366

// maxServings is a sanity ceiling on serving counts.
const maxServings = 99

// RoleChecker resolves a user's role on a calendar. Satisfied by the
// calendars service.
type RoleChecker interface {
	RoleFor(ctx context.Context, userID, calendarID string) (calendars.Role, error)
}

// EntryService defines the business logic for meal planning.
type EntryService interface {
	ListRange(ctx context.Context, userID string, calendarIDs []string, start, end dateutil.DayKey) ([]Entry, error)
	Create(ctx context.Context, userID string, input CreateEntryRequest) (*Entry, error)
	Move(ctx context.Context, userID, entryID string, input MoveEntryRequest) (*Entry, error)
	UpdateServings(ctx context.Context, userID, entryID string, servings int) (*Entry, error)
	Delete(ctx context.Context, userID, entryID string) error
	BulkCopy(ctx context.Context, userID string, input BulkCopyRequest) (*BatchResult, error)
	CreateRecurring(ctx context.Context, userID string, input RecurringRequest) (*BatchResult, error)
}

type entryService struct {
	repo  EntryRepository
	roles RoleChecker
}

// NewEntryService creates the meal entry service.
func NewEntryService(repo EntryRepository, roles RoleChecker) EntryService {
	return &entryService{repo: repo, roles: roles}
}

func generateUUID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}

// ListRange returns entries across the requested calendars. Calendars the
// user cannot view are skipped rather than failing the whole request, so a
// revoked share does not break a multi-calendar board.
func (s *entryService) ListRange(ctx context.Context, userID string, calendarIDs []string, start, end dateutil.DayKey) ([]Entry, error) {
	if !start.Valid() || !end.Valid() {
		return nil, apperror.NewValidation("from and to must be YYYY-MM-DD dates")
	}
	if end.Before(start) {
		return nil, apperror.NewValidation("to must not precede from")
	}
	if len(calendarIDs) == 0 {
		return nil, apperror.NewValidation("at least one calendar is required")
	}

	visible := make([]string, 0, len(calendarIDs))
	for _, id := range calendarIDs {
		role, err := s.roles.RoleFor(ctx, userID, id)
		if err != nil {
			if apperror.SafeCode(err) == http.StatusNotFound {
				continue
			}
			return nil, err
		}
		if role >= calendars.RoleViewer {
			visible = append(visible, id)
		}
	}

	entries, err := s.repo.ListRange(ctx, visible, start, end)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	return entries, nil
}

// Create validates and inserts a single entry. Slots are multisets: no
// occupancy check is performed.
func (s *entryService) Create(ctx context.Context, userID string, input CreateEntryRequest) (*Entry, error) {
	if err := s.requireEditor(ctx, userID, input.CalendarID); err != nil {
		return nil, err
	}
	payload, err := validatePayload(input.Payload)
	if err != nil {
		return nil, err
	}
	if !input.PlannedDate.Valid() {
		return nil, apperror.NewValidation("plannedDate must be a YYYY-MM-DD date")
	}
	if !input.MealType.Valid() {
		return nil, apperror.NewValidation("mealType must be breakfast, lunch, dinner or snack")
	}
	if err := validateServings(input.Servings); err != nil {
		return nil, err
	}

	entry := s.newEntry(userID, input.CalendarID, input.PlannedDate, input.MealType, payload, input.Servings)
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, apperror.NewInternal(err)
	}
	return entry, nil
}

// Move relocates an entry to another slot on the same calendar. Moving an
// entry onto its current slot is a no-op handled by clients; the server
// accepts it.
func (s *entryService) Move(ctx context.Context, userID, entryID string, input MoveEntryRequest) (*Entry, error) {
	entry, err := s.loadForEdit(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	if !input.PlannedDate.Valid() {
		return nil, apperror.NewValidation("plannedDate must be a YYYY-MM-DD date")
	}
	if !input.MealType.Valid() {
		return nil, apperror.NewValidation("mealType must be breakfast, lunch, dinner or snack")
	}

	if err := s.repo.Move(ctx, entryID, input.PlannedDate, input.MealType); err != nil {
		return nil, apperror.NewInternal(err)
	}
	entry.PlannedDate = input.PlannedDate
	entry.MealType = input.MealType
	entry.UpdatedAt = time.Now().UTC()
	return entry, nil
}

// UpdateServings changes an entry's serving count.
func (s *entryService) UpdateServings(ctx context.Context, userID, entryID string, servings int) (*Entry, error) {
	entry, err := s.loadForEdit(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	if err := validateServings(servings); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateServings(ctx, entryID, servings); err != nil {
		return nil, apperror.NewInternal(err)
	}
	entry.Servings = servings
	entry.UpdatedAt = time.Now().UTC()
	return entry, nil
}

// Delete removes an entry.
func (s *entryService) Delete(ctx context.Context, userID, entryID string) error {
	if _, err := s.loadForEdit(ctx, userID, entryID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, entryID); err != nil {
		return apperror.NewInternal(err)
	}
	return nil
}

// BulkCopy clones every entry in [sourceStart, sourceEnd] onto the window
// starting at targetStart, preserving the day offset and meal type. Inserts
// are independent: failures are counted, successes are kept.
func (s *entryService) BulkCopy(ctx context.Context, userID string, input BulkCopyRequest) (*BatchResult, error) {
	if err := s.requireEditor(ctx, userID, input.CalendarID); err != nil {
		return nil, err
	}
	if !input.SourceStart.Valid() || !input.SourceEnd.Valid() || !input.TargetStart.Valid() {
		return nil, apperror.NewValidation("sourceStart, sourceEnd and targetStart must be YYYY-MM-DD dates")
	}
	if input.SourceEnd.Before(input.SourceStart) {
		return nil, apperror.NewValidation("sourceEnd must not precede sourceStart")
	}

	source, err := s.repo.ListRange(ctx, []string{input.CalendarID}, input.SourceStart, input.SourceEnd)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	result := &BatchResult{Created: []Entry{}}
	for _, src := range source {
		offset := src.PlannedDate.DaysSince(input.SourceStart)
		clone := s.newEntry(userID, input.CalendarID, input.TargetStart.AddDays(offset), src.MealType, src.Payload, src.Servings)
		if err := s.repo.Create(ctx, clone); err != nil {
			slog.Warn("bulk copy insert failed",
				slog.String("calendar_id", input.CalendarID),
				slog.String("source_entry", src.ID),
				slog.Any("error", err),
			)
			result.Failed++
			continue
		}
		result.Created = append(result.Created, *clone)
	}
	return result, nil
}

// CreateRecurring expands a weekly recurrence into dated entries, one per
// matching weekday between startDate and endDate inclusive.
func (s *entryService) CreateRecurring(ctx context.Context, userID string, input RecurringRequest) (*BatchResult, error) {
	if err := s.requireEditor(ctx, userID, input.CalendarID); err != nil {
		return nil, err
	}
	payload, err := validatePayload(input.Payload)
	if err != nil {
		return nil, err
	}
	if !input.StartDate.Valid() || !input.EndDate.Valid() {
		return nil, apperror.NewValidation("startDate and endDate must be YYYY-MM-DD dates")
	}
	if input.EndDate.Before(input.StartDate) {
		return nil, apperror.NewValidation("endDate must not precede startDate")
	}
	if !input.MealType.Valid() {
		return nil, apperror.NewValidation("mealType must be breakfast, lunch, dinner or snack")
	}
	if err := validateServings(input.Servings); err != nil {
		return nil, err
	}
	if len(input.Weekdays) == 0 {
		return nil, apperror.NewValidation("at least one weekday is required")
	}

	dates, err := expandWeekly(input.StartDate, input.EndDate, input.Weekdays)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{Created: []Entry{}}
	for _, date := range dates {
		entry := s.newEntry(userID, input.CalendarID, date, input.MealType, payload, input.Servings)
		if err := s.repo.Create(ctx, entry); err != nil {
			slog.Warn("recurring insert failed",
				slog.String("calendar_id", input.CalendarID),
				slog.String("date", string(date)),
				slog.Any("error", err),
			)
			result.Failed++
			continue
		}
		result.Created = append(result.Created, *entry)
	}
	return result, nil
}

// expandWeekly lists the dates matching the weekday set between start and
// end inclusive, via a weekly RRULE. Weekdays are Monday=0 .. Sunday=6,
// the same numbering rrule uses.
func expandWeekly(start, end dateutil.DayKey, weekdays []int) ([]dateutil.DayKey, error) {
	rruleDays := []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

	byDay := make([]rrule.Weekday, 0, len(weekdays))
	seen := map[int]bool{}
	for _, wd := range weekdays {
		if wd < 0 || wd > 6 {
			return nil, apperror.NewValidation("weekdays must be 0 (Monday) through 6 (Sunday)")
		}
		if seen[wd] {
			continue
		}
		seen[wd] = true
		byDay = append(byDay, rruleDays[wd])
	}

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: byDay,
		Dtstart:   start.Time(),
		Until:     end.Time(),
	})
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("building rrule: %w", err))
	}

	occurrences := r.All()
	if len(occurrences) > recurrenceCap {
		return nil, apperror.NewValidation(fmt.Sprintf("recurrence would create %d entries; the limit is %d", len(occurrences), recurrenceCap))
	}

	dates := make([]dateutil.DayKey, len(occurrences))
	for i, t := range occurrences {
		dates[i] = dateutil.KeyOf(t)
	}
	return dates, nil
}

// newEntry builds a fully-populated entry ready for insert.
func (s *entryService) newEntry(userID, calendarID string, date dateutil.DayKey, mealType MealType, payload Payload, servings int) *Entry {
	now := time.Now().UTC()
	return &Entry{
		ID:          generateUUID(),
		CalendarID:  calendarID,
		PlannedDate: date,
		MealType:    mealType,
		Payload:     payload,
		Servings:    servings,
		CreatedBy:   userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// loadForEdit fetches an entry and checks the user can edit its calendar.
func (s *entryService) loadForEdit(ctx context.Context, userID, entryID string) (*Entry, error) {
	entry, err := s.repo.FindByID(ctx, entryID)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}
	if entry == nil {
		return nil, apperror.NewNotFound("entry not found")
	}
	if err := s.requireEditor(ctx, userID, entry.CalendarID); err != nil {
		return nil, err
	}
	return entry, nil
}

// requireEditor rejects with 403 unless the user can edit the calendar.
func (s *entryService) requireEditor(ctx context.Context, userID, calendarID string) error {
	if calendarID == "" {
		return apperror.NewValidation("calendarId is required")
	}
	role, err := s.roles.RoleFor(ctx, userID, calendarID)
	if err != nil {
		return err
	}
	if !role.CanEdit() {
		return apperror.NewPermission("you need editor access to modify this calendar")
	}
	return nil
}

// validatePayload checks the tagged union and sanitizes free-form text.
func validatePayload(p Payload) (Payload, error) {
	switch p.Kind {
	case PayloadRecipe:
		if p.RecipeID == "" {
			return Payload{}, apperror.NewValidation("recipeId is required for recipe entries")
		}
		p.RecipeTitle = sanitize.Text(p.RecipeTitle)
		p.RecipeAuthor = sanitize.Text(p.RecipeAuthor)
		p.Title = ""
		p.Description = ""
	case PayloadCustom:
		p.Title = sanitize.Text(p.Title)
		p.Description = sanitize.Text(p.Description)
		if p.Title == "" {
			return Payload{}, apperror.NewValidation("title is required for custom entries")
		}
		p.RecipeID = ""
		p.RecipeTitle = ""
		p.RecipeImage = ""
		p.RecipeAuthor = ""
	default:
		return Payload{}, apperror.NewValidation("payload kind must be recipe or custom")
	}
	return p, nil
}

func validateServings(servings int) error {
	if servings < 1 || servings > maxServings {
		return apperror.NewValidation(fmt.Sprintf("servings must be between 1 and %d", maxServings))
	}
	return nil
}
