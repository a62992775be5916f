package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ovenlight/mealboard/internal/apperror"
	"github.com/ovenlight/mealboard/internal/dateutil"
	"github.com/ovenlight/mealboard/internal/plugins/auth"
	"github.com/ovenlight/mealboard/internal/plugins/calendars"
	"github.com/ovenlight/mealboard/internal/plugins/meals"
)

// fakeRepo is an in-memory Repository that records every mutating call.
type fakeRepo struct {
	entries map[string]meals.Entry
	nextID  int

	createCalls int
	moveCalls   int
	deleteCalls int
	grantCalls  int
	leaveCalls  int

	failCreate bool
	failMove   bool

	listFn     func(calendarIDs []string, start, end dateutil.DayKey) ([]meals.Entry, error)
	bulkCopyFn func(req meals.BulkCopyRequest) (*meals.BatchResult, error)
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{entries: make(map[string]meals.Entry)}
}

func (f *fakeRepo) ListEntries(ctx context.Context, calendarIDs []string, start, end dateutil.DayKey) ([]meals.Entry, error) {
	if f.listFn != nil {
		return f.listFn(calendarIDs, start, end)
	}
	return nil, nil
}

func (f *fakeRepo) CreateEntry(ctx context.Context, req meals.CreateEntryRequest) (*meals.Entry, error) {
	f.createCalls++
	if f.failCreate {
		return nil, apperror.NewConflict("rejected")
	}
	f.nextID++
	entry := meals.Entry{
		ID:          fmt.Sprintf("srv-%d", f.nextID),
		CalendarID:  req.CalendarID,
		PlannedDate: req.PlannedDate,
		MealType:    req.MealType,
		Payload:     req.Payload,
		Servings:    req.Servings,
		CreatedAt:   time.Now(),
	}
	f.entries[entry.ID] = entry
	return &entry, nil
}

func (f *fakeRepo) MoveEntry(ctx context.Context, entryID string, req meals.MoveEntryRequest) (*meals.Entry, error) {
	f.moveCalls++
	if f.failMove {
		return nil, apperror.NewNotFound("entry not found")
	}
	entry, ok := f.entries[entryID]
	if !ok {
		entry = meals.Entry{ID: entryID}
	}
	entry.PlannedDate = req.PlannedDate
	entry.MealType = req.MealType
	f.entries[entryID] = entry
	return &entry, nil
}

func (f *fakeRepo) UpdateServings(ctx context.Context, entryID string, servings int) (*meals.Entry, error) {
	entry := f.entries[entryID]
	entry.ID = entryID
	entry.Servings = servings
	f.entries[entryID] = entry
	return &entry, nil
}

func (f *fakeRepo) DeleteEntry(ctx context.Context, entryID string) error {
	f.deleteCalls++
	delete(f.entries, entryID)
	return nil
}

func (f *fakeRepo) BulkCopy(ctx context.Context, req meals.BulkCopyRequest) (*meals.BatchResult, error) {
	if f.bulkCopyFn != nil {
		return f.bulkCopyFn(req)
	}
	return &meals.BatchResult{Created: []meals.Entry{}}, nil
}

func (f *fakeRepo) CreateRecurring(ctx context.Context, req meals.RecurringRequest) (*meals.BatchResult, error) {
	return nil, apperror.NewNotFound("not supported")
}

func (f *fakeRepo) ListCalendars(ctx context.Context) ([]calendars.Calendar, error) {
	return nil, nil
}

func (f *fakeRepo) CreateCalendar(ctx context.Context, req calendars.CreateCalendarRequest) (*calendars.Calendar, error) {
	return nil, nil
}

func (f *fakeRepo) RenameCalendar(ctx context.Context, calendarID string, req calendars.RenameCalendarRequest) (*calendars.Calendar, error) {
	return nil, nil
}

func (f *fakeRepo) DeleteCalendar(ctx context.Context, calendarID string) error { return nil }

func (f *fakeRepo) ListShares(ctx context.Context, calendarID string) ([]calendars.ShareGrant, error) {
	return nil, nil
}

func (f *fakeRepo) GrantShare(ctx context.Context, calendarID string, req calendars.ShareRequest) error {
	f.grantCalls++
	return nil
}

func (f *fakeRepo) UpdateShare(ctx context.Context, calendarID string, req calendars.ShareRequest) error {
	return nil
}

func (f *fakeRepo) RevokeShare(ctx context.Context, calendarID, userID string) error { return nil }

func (f *fakeRepo) LeaveCalendar(ctx context.Context, calendarID string) error {
	f.leaveCalls++
	return nil
}

func (f *fakeRepo) SearchUsers(ctx context.Context, query string, limit int) ([]auth.UserSummary, error) {
	return []auth.UserSummary{
		{ID: "user-2", DisplayName: "Bea"},
		{ID: "user-3", DisplayName: "Cal"},
	}, nil
}

func (f *fakeRepo) GetSettings(ctx context.Context) (*auth.Settings, error) {
	return &auth.Settings{DefaultServings: 3}, nil
}

// --- Helpers ---

// fixedClock pins "today" to Wednesday 2024-03-13.
var fixedClock = dateutil.ClockFunc(func() time.Time {
	return time.Date(2024, 3, 13, 15, 4, 5, 0, time.UTC)
})

func newTestEngine(repo Repository, role string) *Engine {
	e := New(repo, fixedClock)
	e.ApplyCalendars([]calendars.Calendar{
		{ID: "cal-1", OwnerID: "owner-1", Name: "Family", Role: role},
	})
	return e
}

func run(t *testing.T, e *Engine, commit Commit) error {
	t.Helper()
	if commit == nil {
		return nil
	}
	return e.Apply(commit(context.Background()))
}

func recipeEntry(id string, date dateutil.DayKey, mealType meals.MealType) meals.Entry {
	return meals.Entry{
		ID:          id,
		CalendarID:  "cal-1",
		PlannedDate: date,
		MealType:    mealType,
		Payload:     meals.Payload{Kind: meals.PayloadRecipe, RecipeID: "recipe-x", RecipeTitle: "Recipe X"},
		Servings:    2,
	}
}

func seed(e *Engine, entries ...meals.Entry) {
	e.entries = append(e.entries, entries...)
	e.rebuild()
}

// --- Scenario 1: week window and header ---

func TestWeekWindow_Scenario(t *testing.T) {
	e := newTestEngine(newFakeRepo(), "editor")
	// Clock pins the reference date to Wednesday 2024-03-13.
	if e.ReferenceDate() != "2024-03-13" {
		t.Fatalf("reference date = %s", e.ReferenceDate())
	}
	start, end := e.VisibleRange()
	if start != "2024-03-11" || end != "2024-03-17" {
		t.Errorf("week window = [%s, %s], want [2024-03-11, 2024-03-17]", start, end)
	}
	if got := e.HeaderLabel(); got != "Mar 11 - 17, 2024" {
		t.Errorf("header = %q", got)
	}
}

// --- Scenario 2: recurrence expansion ---

func TestExpandRecurrence_Scenario(t *testing.T) {
	template := recipeEntry("a", "2024-03-11", meals.MealDinner)

	requests, err := ExpandRecurrence(template, []int{0, 2}, 2)
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	want := []dateutil.DayKey{"2024-03-18", "2024-03-20", "2024-03-25", "2024-03-27"}
	if len(requests) != len(want) {
		t.Fatalf("got %d requests, want %d", len(requests), len(want))
	}
	for i, req := range requests {
		if req.PlannedDate != want[i] {
			t.Errorf("request %d dated %s, want %s", i, req.PlannedDate, want[i])
		}
		if req.Payload.RecipeID != "recipe-x" || req.MealType != meals.MealDinner || req.Servings != 2 {
			t.Errorf("request %d lost template fields", i)
		}
	}
}

func TestExpandRecurrence_Properties(t *testing.T) {
	template := recipeEntry("a", "2024-03-13", meals.MealLunch)
	weekdays := []int{1, 4, 6}
	weekEnd := dateutil.StartOfWeek(template.PlannedDate).AddDays(6)

	for _, n := range []int{1, 3, 8} {
		requests, err := ExpandRecurrence(template, weekdays, n)
		if err != nil {
			t.Fatalf("expand n=%d: %v", n, err)
		}
		if len(requests) != n*len(weekdays) {
			t.Errorf("n=%d: got %d requests, want %d", n, len(requests), n*len(weekdays))
		}
		allowed := map[int]bool{1: true, 4: true, 6: true}
		for _, req := range requests {
			if !allowed[req.PlannedDate.Weekday()] {
				t.Errorf("emitted weekday %d not in set", req.PlannedDate.Weekday())
			}
			if !req.PlannedDate.After(weekEnd) {
				t.Errorf("date %s is not after the template's week", req.PlannedDate)
			}
		}
	}
}

func TestExpandRecurrence_Rejections(t *testing.T) {
	recipe := recipeEntry("a", "2024-03-11", meals.MealDinner)
	custom := recipe
	custom.Payload = meals.Payload{Kind: meals.PayloadCustom, Title: "Leftovers"}

	cases := []struct {
		name     string
		template meals.Entry
		weekdays []int
		weeks    int
	}{
		{"custom template", custom, []int{0}, 1},
		{"empty weekdays", recipe, nil, 1},
		{"zero weeks", recipe, []int{0}, 0},
		{"weekday out of range", recipe, []int{7}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ExpandRecurrence(tc.template, tc.weekdays, tc.weeks); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

// --- Scenario 3: copy-paste clones ---

func TestClipboard_CopyPaste_Scenario(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo, "editor")
	a := recipeEntry("a", "2024-03-11", meals.MealDinner)
	seed(e, a)

	if err := e.CopyToClipboard("a"); err != nil {
		t.Fatalf("copy: %v", err)
	}
	sel, err := e.SelectSlot("2024-03-14", meals.MealLunch)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.Paste == nil {
		t.Fatal("selecting a slot with a held clipboard must paste")
	}
	if err := run(t, e, sel.Paste); err != nil {
		t.Fatalf("paste commit: %v", err)
	}

	if e.Clipboard().Holding() {
		t.Error("clipboard must be empty after paste")
	}
	// Original untouched.
	_, orig := e.findEntry("a")
	if orig == nil || orig.PlannedDate != "2024-03-11" || orig.MealType != meals.MealDinner {
		t.Error("copied entry must remain at its original slot")
	}
	// Clone landed in the target slot with the same payload and servings.
	clones := e.Slots().EntriesForSlot("cal-1", "2024-03-14", meals.MealLunch)
	if len(clones) != 1 {
		t.Fatalf("target slot holds %d entries, want 1", len(clones))
	}
	if clones[0].Payload.RecipeID != "recipe-x" || clones[0].Servings != 2 {
		t.Error("clone must copy payload and servings")
	}
	if clones[0].ID == "a" {
		t.Error("paste of a copy must create a new entry")
	}
}

// --- Scenario 4: cut-paste moves ---

func TestClipboard_CutPaste_Scenario(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo, "editor")
	b := recipeEntry("b", "2024-03-11", meals.MealDinner)
	repo.entries["b"] = b
	seed(e, b)

	if err := e.CutToClipboard("b"); err != nil {
		t.Fatalf("cut: %v", err)
	}
	commit, err := e.Paste("2024-03-15", meals.MealBreakfast)
	if err != nil {
		t.Fatalf("paste: %v", err)
	}
	if err := run(t, e, commit); err != nil {
		t.Fatalf("paste commit: %v", err)
	}

	if e.Clipboard().Holding() {
		t.Error("clipboard must be empty after paste")
	}
	if repo.createCalls != 0 {
		t.Error("cut-paste must not create a new entry")
	}
	if repo.moveCalls != 1 {
		t.Errorf("cut-paste must issue exactly one move, got %d", repo.moveCalls)
	}
	_, moved := e.findEntry("b")
	if moved == nil || moved.PlannedDate != "2024-03-15" || moved.MealType != meals.MealBreakfast {
		t.Errorf("entry b not relocated: %+v", moved)
	}
	if len(e.Entries()) != 1 {
		t.Errorf("entry count changed: %d", len(e.Entries()))
	}
}

func TestClipboard_SingleSlot(t *testing.T) {
	e := newTestEngine(newFakeRepo(), "editor")
	seed(e,
		recipeEntry("a", "2024-03-11", meals.MealDinner),
		recipeEntry("b", "2024-03-12", meals.MealLunch),
	)

	e.CopyToClipboard("a")
	e.CopyToClipboard("b")
	held, action := e.Clipboard().Held()
	if held.ID != "b" || action != ClipboardCopy {
		t.Error("second copy must overwrite, never append")
	}

	e.CutToClipboard("a")
	held, action = e.Clipboard().Held()
	if held.ID != "a" || action != ClipboardCut {
		t.Error("cut must overwrite a held copy")
	}
}

func TestClipboard_ClearedWhenHeldEntryDeleted(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo, "editor")
	seed(e, recipeEntry("a", "2024-03-11", meals.MealDinner))

	e.CopyToClipboard("a")
	commit, err := e.DeleteEntry("a")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if e.Clipboard().Holding() {
		t.Error("deleting the held entry must empty the clipboard")
	}
	run(t, e, commit)
}

// --- Scenario 5: bulk copy week ---

func TestBulkCopyWeek_Scenario(t *testing.T) {
	repo := newFakeRepo()
	week := []meals.Entry{
		recipeEntry("a", "2024-03-11", meals.MealBreakfast),
		recipeEntry("b", "2024-03-13", meals.MealDinner),
		recipeEntry("c", "2024-03-16", meals.MealLunch),
	}
	var copies []meals.Entry
	srv := 0
	repo.bulkCopyFn = func(req meals.BulkCopyRequest) (*meals.BatchResult, error) {
		if req.SourceStart != "2024-03-11" || req.SourceEnd != "2024-03-17" {
			t.Errorf("source window [%s, %s]", req.SourceStart, req.SourceEnd)
		}
		offset := req.TargetStart.DaysSince(req.SourceStart)
		batch := &meals.BatchResult{}
		for _, src := range week {
			srv++
			clone := src
			clone.ID = fmt.Sprintf("copy-%d", srv)
			clone.PlannedDate = src.PlannedDate.AddDays(offset)
			batch.Created = append(batch.Created, clone)
			copies = append(copies, clone)
		}
		return batch, nil
	}

	e := newTestEngine(repo, "editor")
	seed(e, week...)

	commit, err := e.BulkCopyWeek(2)
	if err != nil {
		t.Fatalf("bulk copy: %v", err)
	}
	if err := run(t, e, commit); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if len(copies) != 6 {
		t.Fatalf("expected 3x2 = 6 copies, got %d", len(copies))
	}
	// First batch shifted 7 days, second 14.
	if copies[0].PlannedDate != "2024-03-18" || copies[3].PlannedDate != "2024-03-25" {
		t.Errorf("shifts wrong: %s, %s", copies[0].PlannedDate, copies[3].PlannedDate)
	}
	// Originals untouched, copies appended.
	if len(e.Entries()) != 9 {
		t.Errorf("entry list has %d entries, want 9", len(e.Entries()))
	}
	_, orig := e.findEntry("a")
	if orig == nil || orig.PlannedDate != "2024-03-11" {
		t.Error("original entries must be untouched")
	}
}

func TestBulkCopyWeek_FallsBackToPerEntryCreates(t *testing.T) {
	repo := newFakeRepo()
	repo.bulkCopyFn = func(req meals.BulkCopyRequest) (*meals.BatchResult, error) {
		return nil, apperror.NewNotFound("no bulk copy endpoint")
	}

	e := newTestEngine(repo, "editor")
	seed(e,
		recipeEntry("a", "2024-03-11", meals.MealBreakfast),
		recipeEntry("b", "2024-03-13", meals.MealDinner),
	)

	commit, err := e.BulkCopyWeek(2)
	if err != nil {
		t.Fatalf("bulk copy: %v", err)
	}
	if err := run(t, e, commit); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// 2 entries x 2 target weeks, one create each.
	if repo.createCalls != 4 {
		t.Errorf("createCalls = %d, want 4", repo.createCalls)
	}
	if len(e.Entries()) != 6 {
		t.Errorf("entry list has %d entries, want 6", len(e.Entries()))
	}
	shifted := e.Slots().EntriesForSlot("cal-1", "2024-03-25", meals.MealBreakfast)
	if len(shifted) != 1 {
		t.Errorf("second-week breakfast copy missing: %d", len(shifted))
	}
}

func TestBulkCopyWeek_MidBatchFailureKeepsPartial(t *testing.T) {
	repo := newFakeRepo()
	calls := 0
	repo.bulkCopyFn = func(req meals.BulkCopyRequest) (*meals.BatchResult, error) {
		calls++
		if calls == 2 {
			return nil, apperror.NewInternal(fmt.Errorf("database gone away"))
		}
		clone := recipeEntry(fmt.Sprintf("copy-%d", calls), req.TargetStart, meals.MealBreakfast)
		return &meals.BatchResult{Created: []meals.Entry{clone}}, nil
	}

	e := newTestEngine(repo, "editor")
	seed(e, recipeEntry("a", "2024-03-11", meals.MealBreakfast))

	commit, err := e.BulkCopyWeek(2)
	if err != nil {
		t.Fatalf("bulk copy: %v", err)
	}
	if err := run(t, e, commit); err == nil {
		t.Fatal("the mid-batch failure must surface")
	}

	// The first offset succeeded before the failure; its copy must stay
	// visible rather than waiting for the next fetch.
	if len(e.Entries()) != 2 {
		t.Fatalf("entry list has %d entries, want original + first copy", len(e.Entries()))
	}
	kept := e.Slots().EntriesForSlot("cal-1", "2024-03-18", meals.MealBreakfast)
	if len(kept) != 1 {
		t.Errorf("first-week copy missing after partial failure: %d", len(kept))
	}
}

// --- Scenario 6 and the permission gate ---

func TestViewer_MutationsRejectedLocally(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo, "viewer")
	seed(e, recipeEntry("a", "2024-03-11", meals.MealDinner))

	_, err := e.CreateEntry(meals.CreateEntryRequest{
		CalendarID:  "cal-1",
		PlannedDate: "2024-03-14",
		MealType:    meals.MealLunch,
		Payload:     meals.Payload{Kind: meals.PayloadCustom, Title: "Soup"},
		Servings:    2,
	})
	if !apperror.IsPermission(err) {
		t.Fatalf("expected a permission error, got %v", err)
	}
	if _, err := e.MoveEntry("a", "2024-03-14", meals.MealLunch); !apperror.IsPermission(err) {
		t.Errorf("move: %v", err)
	}
	if _, err := e.DeleteEntry("a"); !apperror.IsPermission(err) {
		t.Errorf("delete: %v", err)
	}
	if err := e.BeginDrag("a"); !apperror.IsPermission(err) {
		t.Errorf("beginDrag: %v", err)
	}
	if _, err := e.SelectSlot("2024-03-14", meals.MealLunch); !apperror.IsPermission(err) {
		t.Errorf("selectSlot: %v", err)
	}

	// The whole point: nothing ever reached the repository.
	if repo.createCalls+repo.moveCalls+repo.deleteCalls != 0 {
		t.Error("viewer mutations must never reach the repository")
	}
	if len(e.Entries()) != 1 {
		t.Error("local entry list must be unchanged")
	}
}

// --- Drag and drop ---

func TestDrop_SelfDropIsNoOp(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo, "editor")
	seed(e, recipeEntry("a", "2024-03-11", meals.MealDinner))

	if err := e.BeginDrag("a"); err != nil {
		t.Fatalf("beginDrag: %v", err)
	}
	commit, err := e.Drop("2024-03-11", meals.MealDinner)
	if err != nil {
		t.Fatalf("drop: %v", err)
	}
	if commit != nil {
		t.Error("self-drop must not issue any request")
	}
	if repo.moveCalls != 0 {
		t.Error("self-drop reached the repository")
	}
	if e.DragState().Active() {
		t.Error("drag state must clear after drop")
	}
	_, entry := e.findEntry("a")
	if entry.PlannedDate != "2024-03-11" || entry.MealType != meals.MealDinner {
		t.Error("self-drop changed state")
	}
}

func TestDrop_FailureSnapsBack(t *testing.T) {
	repo := newFakeRepo()
	repo.failMove = true
	e := newTestEngine(repo, "editor")
	seed(e, recipeEntry("a", "2024-03-11", meals.MealDinner))

	e.BeginDrag("a")
	commit, err := e.Drop("2024-03-14", meals.MealLunch)
	if err != nil {
		t.Fatalf("drop: %v", err)
	}

	// Optimistic move applied immediately.
	_, entry := e.findEntry("a")
	if entry.PlannedDate != "2024-03-14" {
		t.Fatal("optimistic move not applied")
	}

	if err := run(t, e, commit); err == nil {
		t.Fatal("expected the move rejection to surface")
	}
	_, entry = e.findEntry("a")
	if entry.PlannedDate != "2024-03-11" || entry.MealType != meals.MealDinner {
		t.Errorf("entry must snap back on failure, got %s %s", entry.PlannedDate, entry.MealType)
	}
}

// --- Multiset slots ---

func TestSlots_Multiset(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo, "editor")

	req := meals.CreateEntryRequest{
		CalendarID:  "cal-1",
		PlannedDate: "2024-03-13",
		MealType:    meals.MealDinner,
		Payload:     meals.Payload{Kind: meals.PayloadCustom, Title: "Pasta"},
		Servings:    2,
	}
	for i := 0; i < 2; i++ {
		commit, err := e.CreateEntry(req)
		if err != nil {
			t.Fatalf("create %d: %v", i+1, err)
		}
		if err := run(t, e, commit); err != nil {
			t.Fatalf("commit %d: %v", i+1, err)
		}
	}

	got := e.Slots().EntriesForSlot("cal-1", "2024-03-13", meals.MealDinner)
	if len(got) != 2 {
		t.Errorf("slot holds %d entries, want 2", len(got))
	}
}

// --- Optimistic lifecycle ---

func TestCreate_OptimisticThenAuthoritative(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo, "editor")

	commit, err := e.CreateEntry(meals.CreateEntryRequest{
		CalendarID:  "cal-1",
		PlannedDate: "2024-03-13",
		MealType:    meals.MealLunch,
		Payload:     meals.Payload{Kind: meals.PayloadCustom, Title: "Salad"},
		Servings:    1,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Placeholder visible immediately, marked busy.
	if len(e.Entries()) != 1 {
		t.Fatal("optimistic entry missing")
	}
	tempID := e.Entries()[0].ID
	if !e.Busy(tempID) {
		t.Error("placeholder must be marked busy")
	}

	if err := run(t, e, commit); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(e.Entries()) != 1 {
		t.Fatalf("entry count after confirm: %d", len(e.Entries()))
	}
	if e.Entries()[0].ID == tempID {
		t.Error("placeholder must be replaced by the server entry")
	}
	if e.Busy(e.Entries()[0].ID) || e.Busy(tempID) {
		t.Error("busy marker must clear after confirm")
	}
}

func TestCreate_FailureRemovesPlaceholder(t *testing.T) {
	repo := newFakeRepo()
	repo.failCreate = true
	e := newTestEngine(repo, "editor")

	commit, _ := e.CreateEntry(meals.CreateEntryRequest{
		CalendarID:  "cal-1",
		PlannedDate: "2024-03-13",
		MealType:    meals.MealLunch,
		Payload:     meals.Payload{Kind: meals.PayloadCustom, Title: "Salad"},
		Servings:    1,
	})
	if err := run(t, e, commit); err == nil {
		t.Fatal("expected the rejection to surface")
	}
	if len(e.Entries()) != 0 {
		t.Error("failed create must remove its placeholder")
	}
}

func TestApply_LateFailureRevertsOnlyItsEntry(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo, "editor")
	seed(e,
		recipeEntry("a", "2024-03-11", meals.MealDinner),
		recipeEntry("b", "2024-03-12", meals.MealLunch),
	)

	repo.failMove = true
	commitA, err := e.MoveEntry("a", "2024-03-14", meals.MealSnack)
	if err != nil {
		t.Fatalf("move a: %v", err)
	}
	resultA := commitA(context.Background())
	repo.failMove = false
	commitB, err := e.MoveEntry("b", "2024-03-15", meals.MealSnack)
	if err != nil {
		t.Fatalf("move b: %v", err)
	}
	resultB := commitB(context.Background())

	// Completions arrive out of order: b first, then a's failure.
	if err := e.Apply(resultB); err != nil {
		t.Fatalf("apply b: %v", err)
	}
	if err := e.Apply(resultA); err == nil {
		t.Fatal("a's failure must surface")
	}

	_, a := e.findEntry("a")
	_, b := e.findEntry("b")
	if a.PlannedDate != "2024-03-11" {
		t.Errorf("a must revert, got %s", a.PlannedDate)
	}
	if b.PlannedDate != "2024-03-15" {
		t.Errorf("b must keep its confirmed move, got %s", b.PlannedDate)
	}
}

func TestApply_StaleSuccessDiscarded(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo, "editor")
	seed(e, recipeEntry("a", "2024-03-11", meals.MealDinner))

	first, err := e.MoveEntry("a", "2024-03-12", meals.MealLunch)
	if err != nil {
		t.Fatalf("first move: %v", err)
	}
	second, err := e.MoveEntry("a", "2024-03-14", meals.MealSnack)
	if err != nil {
		t.Fatalf("second move: %v", err)
	}

	firstResult := first(context.Background())
	secondResult := second(context.Background())

	// The newer op confirms first; the superseded op's success arrives
	// late and must be discarded, not installed.
	if err := e.Apply(secondResult); err != nil {
		t.Fatalf("apply second: %v", err)
	}
	if err := e.Apply(firstResult); err != nil {
		t.Fatalf("apply first: %v", err)
	}

	_, entry := e.findEntry("a")
	if entry.PlannedDate != "2024-03-14" || entry.MealType != meals.MealSnack {
		t.Errorf("stale success overwrote newer confirmed state: entry at %s %s, want 2024-03-14 snack",
			entry.PlannedDate, entry.MealType)
	}
	if e.Busy("a") {
		t.Error("no operation should remain pending")
	}
}

// --- Stale fetch discard ---

func TestApplyFetch_DiscardsStaleResults(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo, "editor")
	e.SetSelectedCalendars([]string{"cal-1"})

	repo.listFn = func(calendarIDs []string, start, end dateutil.DayKey) ([]meals.Entry, error) {
		return []meals.Entry{recipeEntry("old", start, meals.MealDinner)}, nil
	}
	staleFetch := e.Fetch()

	// User navigates before the first fetch lands.
	e.Navigate(1)
	repo.listFn = func(calendarIDs []string, start, end dateutil.DayKey) ([]meals.Entry, error) {
		return []meals.Entry{recipeEntry("new", start, meals.MealDinner)}, nil
	}
	freshFetch := e.Fetch()

	fresh := freshFetch(context.Background())
	stale := staleFetch(context.Background())

	if err := e.ApplyFetch(fresh); err != nil {
		t.Fatalf("fresh: %v", err)
	}
	if err := e.ApplyFetch(stale); err != nil {
		t.Fatalf("stale apply returned error: %v", err)
	}

	if len(e.Entries()) != 1 || e.Entries()[0].ID != "new" {
		t.Errorf("stale fetch overwrote fresh data: %+v", e.Entries())
	}
}

// --- Slot selection ---

func TestSelectSlot_SeedsDefaultServings(t *testing.T) {
	e := newTestEngine(newFakeRepo(), "editor")
	e.ApplySettings(auth.Settings{DefaultServings: 5})

	sel, err := e.SelectSlot("2024-03-13", meals.MealDinner)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if sel.Add == nil {
		t.Fatal("empty clipboard must open the add interaction")
	}
	if sel.Add.Servings != 5 {
		t.Errorf("add prompt seeded with %d servings, want 5", sel.Add.Servings)
	}
	if sel.Add.Date != "2024-03-13" || sel.Add.MealType != meals.MealDinner {
		t.Error("add prompt must target the selected slot")
	}
}

// --- Search debounce ---

func TestUserSearch_KeystrokeSupersedes(t *testing.T) {
	var s UserSearch
	t1 := s.Keystroke("al")
	t2 := s.Keystroke("ali")

	if _, ok := s.Pending(t1); ok {
		t.Error("older keystroke token must be stale")
	}
	query, ok := s.Pending(t2)
	if !ok || query != "ali" {
		t.Errorf("newest token must run with %q, got %q %v", "ali", query, ok)
	}
}

func TestSearchShareCandidates_ExcludesGrantees(t *testing.T) {
	e := newTestEngine(newFakeRepo(), "owner")

	users, err := e.SearchShareCandidates(context.Background(), "b", []string{"user-2"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, u := range users {
		if u.ID == "user-2" {
			t.Error("existing grantee must be excluded from candidates")
		}
	}
	if len(users) != 1 || users[0].ID != "user-3" {
		t.Errorf("unexpected candidates: %+v", users)
	}
}

// --- Sharing gates ---

func TestSharing_ViewerRejectedEditorInvites(t *testing.T) {
	repo := newFakeRepo()
	viewer := newTestEngine(repo, "viewer")

	if _, err := viewer.GrantShare("cal-1", "user-2", calendars.RoleEditor); !apperror.IsPermission(err) {
		t.Errorf("viewer grant: %v", err)
	}
	if _, err := viewer.UpdateShare("cal-1", "user-2", calendars.RoleViewer); !apperror.IsPermission(err) {
		t.Errorf("viewer update: %v", err)
	}
	if _, err := viewer.RevokeShare("cal-1", "user-2"); !apperror.IsPermission(err) {
		t.Errorf("viewer revoke: %v", err)
	}
	if repo.grantCalls != 0 {
		t.Error("share management by a viewer must never reach the repository")
	}

	// Owner or editor may invite.
	for i, role := range []string{"editor", "owner"} {
		e := newTestEngine(repo, role)
		commit, err := e.GrantShare("cal-1", "user-2", calendars.RoleEditor)
		if err != nil {
			t.Fatalf("%s grant: %v", role, err)
		}
		if err := run(t, e, commit); err != nil {
			t.Fatalf("%s grant commit: %v", role, err)
		}
		if repo.grantCalls != i+1 {
			t.Errorf("grantCalls = %d, want %d", repo.grantCalls, i+1)
		}
	}
}

func TestLeaveCalendar_OwnerRefused(t *testing.T) {
	repo := newFakeRepo()
	owner := newTestEngine(repo, "owner")
	if _, err := owner.LeaveCalendar("cal-1"); err == nil {
		t.Fatal("owner must not be able to leave their own calendar")
	}
	if repo.leaveCalls != 0 {
		t.Error("refused leave reached the repository")
	}

	grantee := newTestEngine(repo, "viewer")
	commit, err := grantee.LeaveCalendar("cal-1")
	if err != nil {
		t.Fatalf("grantee leave: %v", err)
	}
	if err := run(t, grantee, commit); err != nil {
		t.Fatalf("leave commit: %v", err)
	}
	if repo.leaveCalls != 1 {
		t.Errorf("leaveCalls = %d, want 1", repo.leaveCalls)
	}
}

// --- Direct entry copy (context-menu style, no clipboard) ---

func TestCopyEntry_ClonesWithoutClipboard(t *testing.T) {
	repo := newFakeRepo()
	e := newTestEngine(repo, "editor")
	seed(e, recipeEntry("a", "2024-03-11", meals.MealDinner))

	commit, err := e.CopyEntry("a", "2024-03-12", meals.MealLunch)
	if err != nil {
		t.Fatalf("copyEntry: %v", err)
	}
	if err := run(t, e, commit); err != nil {
		t.Fatalf("commit: %v", err)
	}

	if repo.createCalls != 1 {
		t.Errorf("createCalls = %d, want 1", repo.createCalls)
	}
	clones := e.Slots().EntriesForSlot("cal-1", "2024-03-12", meals.MealLunch)
	if len(clones) != 1 {
		t.Fatalf("clone slot has %d entries, want 1", len(clones))
	}
	if clones[0].ID == "a" || clones[0].Payload.RecipeID != "recipe-x" {
		t.Errorf("clone must be a new entry with the source payload, got %+v", clones[0])
	}
	if e.Clipboard().Holding() {
		t.Error("direct copy must not touch the clipboard")
	}
}

// --- Drag hover bookkeeping ---

func TestDrag_HoverAndCancel(t *testing.T) {
	e := newTestEngine(newFakeRepo(), "editor")
	seed(e, recipeEntry("a", "2024-03-11", meals.MealDinner))

	// Hovering without an active drag is ignored.
	e.HoverDrag("2024-03-12", meals.MealLunch)
	if e.DragState().Active() {
		t.Fatal("hover must not start a drag")
	}

	if err := e.BeginDrag("a"); err != nil {
		t.Fatalf("beginDrag: %v", err)
	}
	e.HoverDrag("2024-03-12", meals.MealLunch)
	date, mealType, ok := e.DragState().Hovered()
	if !ok || date != "2024-03-12" || mealType != meals.MealLunch {
		t.Errorf("hovered = %v %v %v", date, mealType, ok)
	}

	e.EndDrag()
	if e.DragState().Active() {
		t.Error("endDrag must clear the drag")
	}
	if _, _, ok := e.DragState().Hovered(); ok {
		t.Error("endDrag must clear the hover slot")
	}
}
