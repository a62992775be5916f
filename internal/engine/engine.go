// Package engine is the meal-planning calendar core: it turns a view mode,
// a reference date, and a set of selected calendars into a slot grid, and
// performs all scheduling mutations (create, move, copy, recur, bulk-copy,
// clipboard paste, drag-drop) optimistically against a remote repository.
//
// The engine is single-goroutine: every method must be called from the
// owning event loop. Repository calls are split off as Commit closures the
// host runs asynchronously; their results come back as values the host
// feeds to Apply on the owning goroutine, bubbletea-command style.
package engine

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/ovenlight/mealboard/internal/apperror"
	"github.com/ovenlight/mealboard/internal/dateutil"
	"github.com/ovenlight/mealboard/internal/plugins/auth"
	"github.com/ovenlight/mealboard/internal/plugins/calendars"
	"github.com/ovenlight/mealboard/internal/plugins/meals"
)

// defaultServingsFallback seeds new entries before settings have loaded.
const defaultServingsFallback = 2

// Commit is the remote half of a mutation. The engine applies the local
// patch synchronously and returns a Commit; the host runs it off the event
// loop and feeds the Result back to Apply.
type Commit func(ctx context.Context) Result

// Result is the outcome of a Commit.
type Result struct {
	// EntryID is the entry whose pending operation this resolves. For
	// creates it is the optimistic placeholder id.
	EntryID string
	// Seq matches the pending operation so a stale completion cannot
	// revert a newer op on the same entry.
	Seq uint64

	// Entry is the authoritative entry returned by the server, when the
	// operation produces one.
	Entry *meals.Entry
	// Batch holds created entries for recurrence and bulk-copy.
	Batch *meals.BatchResult
	// Deleted marks a successful delete.
	Deleted bool

	Err error
}

// FetchResult carries a completed range fetch plus the token identifying
// the (range, calendar set) it was issued for.
type FetchResult struct {
	Token   string
	Entries []meals.Entry
	Err     error
}

// AddPrompt asks the presentation layer to open the add-entry interaction
// for a slot, pre-seeded with the user's default servings.
type AddPrompt struct {
	Date     dateutil.DayKey
	MealType meals.MealType
	Servings int
}

// SlotSelection is the outcome of selecting a slot: either a paste commit
// (clipboard was holding) or an add-entry prompt.
type SlotSelection struct {
	Paste Commit
	Add   *AddPrompt
}

type pendingOp struct {
	seq    uint64
	revert func()
}

// Engine owns the calendar state for one user session.
type Engine struct {
	repo  Repository
	clock dateutil.Clock

	viewMode dateutil.ViewMode
	refDate  dateutil.DayKey
	selected []string

	// entries is the authoritative local list for the visible range;
	// index is its slot projection, rebuilt on every change.
	entries []meals.Entry
	index   *SlotIndex

	calendars map[string]calendars.Calendar
	calOrder  []string
	settings  auth.Settings

	clipboard Clipboard
	drag      Drag

	pending    map[string]pendingOp
	seq        uint64
	tempSeq    uint64
	fetchToken string
}

// New creates an engine showing the current week.
func New(repo Repository, clock dateutil.Clock) *Engine {
	e := &Engine{
		repo:      repo,
		clock:     clock,
		viewMode:  dateutil.ViewWeek,
		calendars: make(map[string]calendars.Calendar),
		settings:  auth.Settings{DefaultServings: defaultServingsFallback},
		pending:   make(map[string]pendingOp),
	}
	e.refDate = dateutil.Today(clock)
	e.index = BuildSlotIndex(nil)
	return e
}

// --- Read surface ---

// ViewMode returns the current view mode.
func (e *Engine) ViewMode() dateutil.ViewMode { return e.viewMode }

// ReferenceDate returns the navigation anchor date.
func (e *Engine) ReferenceDate() dateutil.DayKey { return e.refDate }

// VisibleRange returns the date window the current view shows.
func (e *Engine) VisibleRange() (dateutil.DayKey, dateutil.DayKey) {
	return dateutil.VisibleRange(e.viewMode, e.refDate)
}

// HeaderLabel returns the human-readable label for the current window.
func (e *Engine) HeaderLabel() string {
	return dateutil.HeaderLabel(e.viewMode, e.refDate)
}

// Slots returns the slot projection for rendering.
func (e *Engine) Slots() *SlotIndex { return e.index }

// Entries returns the authoritative entry list for the visible range.
func (e *Engine) Entries() []meals.Entry { return e.entries }

// Clipboard exposes the clipboard state for rendering.
func (e *Engine) Clipboard() *Clipboard { return &e.clipboard }

// DragState exposes the drag state for rendering.
func (e *Engine) DragState() *Drag { return &e.drag }

// Busy reports whether the entry has an in-flight operation, for
// per-entry busy markers.
func (e *Engine) Busy(entryID string) bool {
	_, ok := e.pending[entryID]
	return ok
}

// Calendars returns the known calendars in server order.
func (e *Engine) Calendars() []calendars.Calendar {
	out := make([]calendars.Calendar, 0, len(e.calOrder))
	for _, id := range e.calOrder {
		out = append(out, e.calendars[id])
	}
	return out
}

// SelectedCalendars returns the ids currently shown on the board.
func (e *Engine) SelectedCalendars() []string { return e.selected }

// Settings returns the cached user settings.
func (e *Engine) Settings() auth.Settings { return e.settings }

// --- Navigation ---

// SetViewMode switches the view. The caller should follow up with Fetch.
func (e *Engine) SetViewMode(mode dateutil.ViewMode) {
	if mode.IsValid() {
		e.viewMode = mode
		e.drag.End()
	}
}

// Navigate moves the reference date by delta units of the current view.
func (e *Engine) Navigate(delta int) {
	e.refDate = dateutil.Navigate(e.viewMode, e.refDate, delta)
	e.drag.End()
}

// GoToToday re-anchors on the clock's current day.
func (e *Engine) GoToToday() {
	e.refDate = dateutil.Today(e.clock)
	e.drag.End()
}

// SetSelectedCalendars replaces the visible calendar set.
func (e *Engine) SetSelectedCalendars(ids []string) {
	e.selected = append([]string(nil), ids...)
}

// --- Fetching ---

// fetchTokenFor identifies a fetch by its range and sorted calendar set,
// so results for a window the user has since navigated away from are
// recognizably stale.
func fetchTokenFor(start, end dateutil.DayKey, calendarIDs []string) string {
	sorted := append([]string(nil), calendarIDs...)
	sort.Strings(sorted)
	return string(start) + "|" + string(end) + "|" + strings.Join(sorted, ",")
}

// Fetch starts loading entries for the current window. The returned
// closure is run off the event loop; its FetchResult goes to ApplyFetch.
func (e *Engine) Fetch() func(ctx context.Context) FetchResult {
	start, end := e.VisibleRange()
	ids := append([]string(nil), e.selected...)
	token := fetchTokenFor(start, end, ids)
	e.fetchToken = token

	return func(ctx context.Context) FetchResult {
		entries, err := e.repo.ListEntries(ctx, ids, start, end)
		return FetchResult{Token: token, Entries: entries, Err: err}
	}
}

// ApplyFetch installs a completed fetch, discarding it when the window or
// calendar selection has changed since it was issued.
func (e *Engine) ApplyFetch(r FetchResult) error {
	if r.Token != e.fetchToken {
		return nil // superseded; drop silently
	}
	if r.Err != nil {
		return r.Err
	}
	e.entries = r.Entries
	e.rebuild()
	return nil
}

// LoadCalendars starts fetching the calendar list and role cache.
func (e *Engine) LoadCalendars() func(ctx context.Context) ([]calendars.Calendar, error) {
	return func(ctx context.Context) ([]calendars.Calendar, error) {
		return e.repo.ListCalendars(ctx)
	}
}

// ApplyCalendars installs the calendar list. The first load selects every
// calendar by default.
func (e *Engine) ApplyCalendars(list []calendars.Calendar) {
	e.calendars = make(map[string]calendars.Calendar, len(list))
	e.calOrder = e.calOrder[:0]
	for _, cal := range list {
		e.calendars[cal.ID] = cal
		e.calOrder = append(e.calOrder, cal.ID)
	}
	if len(e.selected) == 0 {
		e.selected = append([]string(nil), e.calOrder...)
	}
}

// LoadSettings starts fetching the user settings.
func (e *Engine) LoadSettings() func(ctx context.Context) (*auth.Settings, error) {
	return func(ctx context.Context) (*auth.Settings, error) {
		return e.repo.GetSettings(ctx)
	}
}

// ApplySettings installs fetched settings.
func (e *Engine) ApplySettings(s auth.Settings) {
	if s.DefaultServings < 1 {
		s.DefaultServings = defaultServingsFallback
	}
	e.settings = s
}

// --- Permissions ---

// roleOf resolves the acting user's role on a calendar from the cached
// calendar list. Checked immediately before every mutation, since grants
// can change between render and action.
func (e *Engine) roleOf(calendarID string) calendars.Role {
	cal, ok := e.calendars[calendarID]
	if !ok {
		return calendars.RoleNone
	}
	if role, valid := calendars.RoleFromString(cal.Role); valid {
		return role
	}
	if cal.Role == "owner" {
		return calendars.RoleOwner
	}
	return calendars.RoleNone
}

// requireEditor rejects a mutation locally unless the user can edit the
// calendar. No repository call is ever attempted for a viewer.
func (e *Engine) requireEditor(calendarID string) error {
	if !e.roleOf(calendarID).CanEdit() {
		return apperror.NewPermission("you need editor access to modify this calendar")
	}
	return nil
}

// writableCalendars returns the selected calendars the user can edit.
func (e *Engine) writableCalendars() []string {
	var out []string
	for _, id := range e.selected {
		if e.roleOf(id).CanEdit() {
			out = append(out, id)
		}
	}
	return out
}

// --- Optimistic mutation core ---

// beginOp registers a revert closure for an entry and returns the op's
// sequence number. A newer op on the same entry supersedes the older
// pending record, so the older completion can no longer revert it.
func (e *Engine) beginOp(entryID string, revert func()) uint64 {
	e.seq++
	e.pending[entryID] = pendingOp{seq: e.seq, revert: revert}
	return e.seq
}

// Apply resolves a completed Commit: failures revert exactly the entry
// they touched, successes install the authoritative server state, and
// completions superseded by a newer op on the same entry are discarded
// entirely. Batch results append their created entries. Returns the
// error to surface, if any.
func (e *Engine) Apply(r Result) error {
	if r.EntryID != "" {
		op, ok := e.pending[r.EntryID]
		if !ok || op.seq != r.Seq {
			// Superseded op: neither its failure nor its success owns
			// the entry state anymore. Installing a stale success here
			// would overwrite the newer op's confirmed state.
			return r.Err
		}
		delete(e.pending, r.EntryID)
		if r.Err != nil {
			op.revert()
			e.rebuild()
			return r.Err
		}
	} else if r.Err != nil {
		// A failed batch may still carry entries created before the
		// failure; keep them visible alongside the error.
		if r.Batch != nil && len(r.Batch.Created) > 0 {
			e.entries = append(e.entries, r.Batch.Created...)
			e.rebuild()
		}
		return r.Err
	}

	switch {
	case r.Entry != nil:
		e.replaceEntry(r.EntryID, *r.Entry)
		e.rebuild()
	case r.Deleted:
		// Optimistic removal already happened.
	case r.Batch != nil:
		e.entries = append(e.entries, r.Batch.Created...)
		e.rebuild()
		if r.Batch.Failed > 0 {
			return apperror.NewInternal(fmt.Errorf("%d of %d entries could not be created",
				r.Batch.Failed, r.Batch.Failed+len(r.Batch.Created)))
		}
	}
	return nil
}

func (e *Engine) rebuild() {
	e.index = BuildSlotIndex(e.entries)
}

func (e *Engine) findEntry(id string) (int, *meals.Entry) {
	for i := range e.entries {
		if e.entries[i].ID == id {
			return i, &e.entries[i]
		}
	}
	return -1, nil
}

func (e *Engine) replaceEntry(id string, entry meals.Entry) {
	if i, _ := e.findEntry(id); i >= 0 {
		e.entries[i] = entry
	} else {
		e.entries = append(e.entries, entry)
	}
}

func (e *Engine) nextTempID() string {
	e.tempSeq++
	return fmt.Sprintf("pending-%d", e.tempSeq)
}

// --- Entry mutations ---

// CreateEntry optimistically appends a placeholder entry and returns the
// commit that creates it remotely. On failure the placeholder is removed.
func (e *Engine) CreateEntry(req meals.CreateEntryRequest) (Commit, error) {
	if err := e.requireEditor(req.CalendarID); err != nil {
		return nil, err
	}
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	tempID := e.nextTempID()
	placeholder := meals.Entry{
		ID:          tempID,
		CalendarID:  req.CalendarID,
		PlannedDate: req.PlannedDate,
		MealType:    req.MealType,
		Payload:     req.Payload,
		Servings:    req.Servings,
	}
	e.entries = append(e.entries, placeholder)
	e.rebuild()

	seq := e.beginOp(tempID, func() { e.removeEntry(tempID) })

	return func(ctx context.Context) Result {
		entry, err := e.repo.CreateEntry(ctx, req)
		return Result{EntryID: tempID, Seq: seq, Entry: entry, Err: err}
	}, nil
}

// MoveEntry optimistically relocates an entry and returns the commit. On
// failure the entry snaps back to its previous slot.
func (e *Engine) MoveEntry(entryID string, date dateutil.DayKey, mealType meals.MealType) (Commit, error) {
	i, entry := e.findEntry(entryID)
	if entry == nil {
		return nil, apperror.NewNotFound("entry not found")
	}
	if err := e.requireEditor(entry.CalendarID); err != nil {
		return nil, err
	}
	if !date.Valid() || !mealType.Valid() {
		return nil, apperror.NewValidation("invalid target slot")
	}

	snapshot := e.entries[i]
	e.entries[i].PlannedDate = date
	e.entries[i].MealType = mealType
	e.rebuild()

	seq := e.beginOp(entryID, func() { e.replaceEntry(entryID, snapshot) })
	req := meals.MoveEntryRequest{PlannedDate: date, MealType: mealType}

	return func(ctx context.Context) Result {
		moved, err := e.repo.MoveEntry(ctx, entryID, req)
		return Result{EntryID: entryID, Seq: seq, Entry: moved, Err: err}
	}, nil
}

// CopyEntry clones an existing entry onto another slot.
func (e *Engine) CopyEntry(entryID string, date dateutil.DayKey, mealType meals.MealType) (Commit, error) {
	_, entry := e.findEntry(entryID)
	if entry == nil {
		return nil, apperror.NewNotFound("entry not found")
	}
	return e.CreateEntry(meals.CreateEntryRequest{
		CalendarID:  entry.CalendarID,
		PlannedDate: date,
		MealType:    mealType,
		Payload:     entry.Payload,
		Servings:    entry.Servings,
	})
}

// DeleteEntry optimistically removes an entry; failure restores it. The
// clipboard drops the entry if it was held.
func (e *Engine) DeleteEntry(entryID string) (Commit, error) {
	i, entry := e.findEntry(entryID)
	if entry == nil {
		return nil, apperror.NewNotFound("entry not found")
	}
	if err := e.requireEditor(entry.CalendarID); err != nil {
		return nil, err
	}

	snapshot := e.entries[i]
	e.removeEntry(entryID)
	e.clipboard.Evict(entryID)
	e.rebuild()

	seq := e.beginOp(entryID, func() { e.entries = append(e.entries, snapshot) })

	return func(ctx context.Context) Result {
		err := e.repo.DeleteEntry(ctx, entryID)
		return Result{EntryID: entryID, Seq: seq, Deleted: err == nil, Err: err}
	}, nil
}

// UpdateServings optimistically changes an entry's serving count.
func (e *Engine) UpdateServings(entryID string, servings int) (Commit, error) {
	i, entry := e.findEntry(entryID)
	if entry == nil {
		return nil, apperror.NewNotFound("entry not found")
	}
	if err := e.requireEditor(entry.CalendarID); err != nil {
		return nil, err
	}
	if servings < 1 {
		return nil, apperror.NewValidation("servings must be at least 1")
	}

	snapshot := e.entries[i]
	e.entries[i].Servings = servings
	e.rebuild()

	seq := e.beginOp(entryID, func() { e.replaceEntry(entryID, snapshot) })

	return func(ctx context.Context) Result {
		updated, err := e.repo.UpdateServings(ctx, entryID, servings)
		return Result{EntryID: entryID, Seq: seq, Entry: updated, Err: err}
	}, nil
}

func (e *Engine) removeEntry(id string) {
	for i := range e.entries {
		if e.entries[i].ID == id {
			e.entries = append(e.entries[:i], e.entries[i+1:]...)
			return
		}
	}
}

func validateCreate(req meals.CreateEntryRequest) error {
	if !req.PlannedDate.Valid() {
		return apperror.NewValidation("a planned date is required")
	}
	if !req.MealType.Valid() {
		return apperror.NewValidation("a meal type is required")
	}
	if req.Servings < 1 {
		return apperror.NewValidation("servings must be at least 1")
	}
	switch req.Payload.Kind {
	case meals.PayloadRecipe:
		if req.Payload.RecipeID == "" {
			return apperror.NewValidation("a recipe is required")
		}
	case meals.PayloadCustom:
		if strings.TrimSpace(req.Payload.Title) == "" {
			return apperror.NewValidation("a title is required")
		}
	default:
		return apperror.NewValidation("entry must be a recipe or a custom item")
	}
	return nil
}

// --- Clipboard and slot interaction ---

// CopyToClipboard holds a snapshot of the entry for a clone-paste.
func (e *Engine) CopyToClipboard(entryID string) error {
	_, entry := e.findEntry(entryID)
	if entry == nil {
		return apperror.NewNotFound("entry not found")
	}
	e.clipboard.Copy(*entry)
	return nil
}

// CutToClipboard holds the entry for a move-paste. Cutting requires edit
// access since the paste will relocate the entry.
func (e *Engine) CutToClipboard(entryID string) error {
	_, entry := e.findEntry(entryID)
	if entry == nil {
		return apperror.NewNotFound("entry not found")
	}
	if err := e.requireEditor(entry.CalendarID); err != nil {
		return err
	}
	e.clipboard.Cut(*entry)
	return nil
}

// Paste resolves the held clipboard operation against a target slot: a
// copy clones the held entry there, a cut moves it. The clipboard is
// emptied either way.
func (e *Engine) Paste(date dateutil.DayKey, mealType meals.MealType) (Commit, error) {
	held, action := e.clipboard.Held()
	if held == nil {
		return nil, apperror.NewValidation("clipboard is empty")
	}

	var commit Commit
	var err error
	switch action {
	case ClipboardCopy:
		commit, err = e.CreateEntry(meals.CreateEntryRequest{
			CalendarID:  held.CalendarID,
			PlannedDate: date,
			MealType:    mealType,
			Payload:     held.Payload,
			Servings:    held.Servings,
		})
	case ClipboardCut:
		commit, err = e.MoveEntry(held.ID, date, mealType)
	}
	if err != nil {
		return nil, err
	}
	e.clipboard.Clear()
	return commit, nil
}

// SelectSlot is the primary slot interaction: a pending clipboard
// operation pastes into the slot; otherwise the add-entry interaction
// opens, seeded with the user's default servings. Refused when no
// selected calendar is writable.
func (e *Engine) SelectSlot(date dateutil.DayKey, mealType meals.MealType) (SlotSelection, error) {
	if e.clipboard.Holding() {
		commit, err := e.Paste(date, mealType)
		if err != nil {
			return SlotSelection{}, err
		}
		return SlotSelection{Paste: commit}, nil
	}

	if len(e.writableCalendars()) == 0 {
		return SlotSelection{}, apperror.NewPermission("none of the selected calendars are writable")
	}
	return SlotSelection{Add: &AddPrompt{
		Date:     date,
		MealType: mealType,
		Servings: e.settings.DefaultServings,
	}}, nil
}

// --- Drag and drop ---

// BeginDrag starts dragging an entry. A viewer-only calendar rejects the
// drag outright so no drop can ever be attempted.
func (e *Engine) BeginDrag(entryID string) error {
	_, entry := e.findEntry(entryID)
	if entry == nil {
		return apperror.NewNotFound("entry not found")
	}
	if err := e.requireEditor(entry.CalendarID); err != nil {
		return err
	}
	e.drag.Begin(*entry)
	return nil
}

// HoverDrag records the slot under the pointer.
func (e *Engine) HoverDrag(date dateutil.DayKey, mealType meals.MealType) {
	if e.drag.Active() {
		e.drag.Hover(date, mealType)
	}
}

// Drop resolves the drag onto a target slot. Dropping an entry onto its
// own slot is a no-op that issues no request. Drag state always clears.
func (e *Engine) Drop(date dateutil.DayKey, mealType meals.MealType) (Commit, error) {
	dragged := e.drag.Dragged()
	e.drag.End()
	if dragged == nil {
		return nil, nil
	}
	if dragged.PlannedDate == date && dragged.MealType == mealType {
		return nil, nil
	}
	return e.MoveEntry(dragged.ID, date, mealType)
}

// EndDrag clears drag state without dropping.
func (e *Engine) EndDrag() { e.drag.End() }

// --- Recurrence and bulk copy ---

// RepeatMeal expands a template entry across the selected weekdays for
// weekCount weeks and creates the batch remotely. Created entries are
// appended to local state when the result arrives; partial success keeps
// what was created.
func (e *Engine) RepeatMeal(entryID string, weekdays []int, weekCount int) (Commit, error) {
	_, template := e.findEntry(entryID)
	if template == nil {
		return nil, apperror.NewNotFound("entry not found")
	}
	if err := e.requireEditor(template.CalendarID); err != nil {
		return nil, err
	}

	// Validates weekdays, weekCount, and the recipe-only rule.
	requests, err := ExpandRecurrence(*template, weekdays, weekCount)
	if err != nil {
		return nil, err
	}

	weekStart := dateutil.StartOfWeek(template.PlannedDate)
	req := meals.RecurringRequest{
		CalendarID: template.CalendarID,
		StartDate:  weekStart.AddDays(7),
		EndDate:    weekStart.AddDays(7*weekCount + 6),
		Weekdays:   weekdays,
		MealType:   template.MealType,
		Payload:    template.Payload,
		Servings:   template.Servings,
	}

	return func(ctx context.Context) Result {
		batch, err := e.repo.CreateRecurring(ctx, req)
		if err != nil {
			code := apperror.SafeCode(err)
			if code != http.StatusNotFound && code != http.StatusNotImplemented {
				return Result{Err: err}
			}
			// The server has no recurrence endpoint; fall back to
			// independent creates producing the same date set.
			batch = &meals.BatchResult{Created: []meals.Entry{}}
			for _, create := range requests {
				entry, createErr := e.repo.CreateEntry(ctx, create)
				if createErr != nil {
					batch.Failed++
					continue
				}
				batch.Created = append(batch.Created, *entry)
			}
		}
		return Result{Batch: batch}
	}, nil
}

// BulkCopyWeek duplicates the current week's entries into the next
// weekCount weeks, shifted by 7 days per week. Delegates to the server's
// bulk copy per target week; existing occupants are never checked.
func (e *Engine) BulkCopyWeek(weekCount int) (Commit, error) {
	if weekCount < 1 {
		return nil, apperror.NewValidation("week count must be at least 1")
	}
	writable := e.writableCalendars()
	if len(writable) == 0 {
		return nil, apperror.NewPermission("none of the selected calendars are writable")
	}

	weekStart := dateutil.StartOfWeek(e.refDate)
	weekEnd := weekStart.AddDays(6)

	// Snapshot the week's entries per calendar now, on the event loop,
	// so the per-entry fallback never reads engine state from the commit
	// goroutine.
	sources := make(map[string][]meals.Entry, len(writable))
	for _, entry := range e.entries {
		if entry.PlannedDate.Before(weekStart) || entry.PlannedDate.After(weekEnd) {
			continue
		}
		for _, calendarID := range writable {
			if entry.CalendarID == calendarID {
				sources[calendarID] = append(sources[calendarID], entry)
				break
			}
		}
	}

	return func(ctx context.Context) Result {
		total := &meals.BatchResult{Created: []meals.Entry{}}
		for _, calendarID := range writable {
			for offset := 1; offset <= weekCount; offset++ {
				batch, err := e.repo.BulkCopy(ctx, meals.BulkCopyRequest{
					CalendarID:  calendarID,
					SourceStart: weekStart,
					SourceEnd:   weekEnd,
					TargetStart: weekStart.AddDays(7 * offset),
				})
				if err != nil {
					// Servers without bulk copy get independent creates
					// shifted by the same offset.
					code := apperror.SafeCode(err)
					if code != http.StatusNotFound && code != http.StatusNotImplemented {
						// Keep what earlier offsets created alongside
						// the error.
						return Result{Batch: total, Err: err}
					}
					batch = &meals.BatchResult{Created: []meals.Entry{}}
					for _, src := range sources[calendarID] {
						created, createErr := e.repo.CreateEntry(ctx, meals.CreateEntryRequest{
							CalendarID:  calendarID,
							PlannedDate: src.PlannedDate.AddDays(7 * offset),
							MealType:    src.MealType,
							Payload:     src.Payload,
							Servings:    src.Servings,
						})
						if createErr != nil {
							batch.Failed++
							continue
						}
						batch.Created = append(batch.Created, *created)
					}
				}
				total.Created = append(total.Created, batch.Created...)
				total.Failed += batch.Failed
			}
		}
		return Result{Batch: total}
	}, nil
}

// --- Sharing ---

// GrantShare shares a calendar. The owner or an editor may invite;
// viewers are rejected locally before any repository call.
func (e *Engine) GrantShare(calendarID, userID string, role calendars.Role) (Commit, error) {
	if !e.roleOf(calendarID).CanEdit() {
		return nil, apperror.NewPermission("you need editor access to share this calendar")
	}
	req := calendars.ShareRequest{UserID: userID, Role: role.String()}
	return func(ctx context.Context) Result {
		return Result{Err: e.repo.GrantShare(ctx, calendarID, req)}
	}, nil
}

// UpdateShare changes an existing grant's role.
func (e *Engine) UpdateShare(calendarID, userID string, role calendars.Role) (Commit, error) {
	if !e.roleOf(calendarID).CanEdit() {
		return nil, apperror.NewPermission("you need editor access to change shares")
	}
	req := calendars.ShareRequest{UserID: userID, Role: role.String()}
	return func(ctx context.Context) Result {
		return Result{Err: e.repo.UpdateShare(ctx, calendarID, req)}
	}, nil
}

// RevokeShare removes a grant.
func (e *Engine) RevokeShare(calendarID, userID string) (Commit, error) {
	if !e.roleOf(calendarID).CanEdit() {
		return nil, apperror.NewPermission("you need editor access to revoke shares")
	}
	return func(ctx context.Context) Result {
		return Result{Err: e.repo.RevokeShare(ctx, calendarID, userID)}
	}, nil
}

// LeaveCalendar removes the user's own grant on a shared calendar.
func (e *Engine) LeaveCalendar(calendarID string) (Commit, error) {
	if e.roleOf(calendarID) == calendars.RoleOwner {
		return nil, apperror.NewValidation("the owner cannot leave their own calendar")
	}
	return func(ctx context.Context) Result {
		return Result{Err: e.repo.LeaveCalendar(ctx, calendarID)}
	}, nil
}
