// Package tui is the terminal week board: a bubbletea front end over the
// calendar engine. It is a reference presentation layer -- the engine owns
// all scheduling state and the board only renders and forwards keys.
package tui

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ovenlight/mealboard/internal/dateutil"
	"github.com/ovenlight/mealboard/internal/engine"
	"github.com/ovenlight/mealboard/internal/plugins/auth"
	"github.com/ovenlight/mealboard/internal/plugins/calendars"
	"github.com/ovenlight/mealboard/internal/plugins/meals"
)

// boardView is the active screen.
type boardView int

const (
	viewBoard boardView = iota
	viewAddEntry
	viewRepeat
	viewBulkCopy
)

// mealRows is the fixed row order of the week grid.
var mealRows = []meals.MealType{meals.MealBreakfast, meals.MealLunch, meals.MealDinner, meals.MealSnack}

// Messages.
type fetchDoneMsg engine.FetchResult

type commitDoneMsg engine.Result

type calendarsLoadedMsg struct {
	calendars []calendars.Calendar
	err       error
}

type settingsLoadedMsg struct {
	settings *auth.Settings
	err      error
}

// Board is the week-board TUI model.
type Board struct {
	engine *engine.Engine

	width  int
	height int

	// Cursor over the grid: day column 0..6, meal row 0..3, and the
	// entry offset within the selected slot.
	dayIdx   int
	mealIdx  int
	entryIdx int

	view    boardView
	errLine string

	// Add-entry form.
	addTitle    textinput.Model
	addServings textinput.Model
	addPrompt   *engine.AddPrompt
	addFocus    int

	// Repeat/bulk-copy forms.
	repeatWeekdays map[int]bool
	repeatWeeks    textinput.Model
	repeatTarget   string
	bulkWeeks      textinput.Model
}

// NewBoard creates the board over a repository.
func NewBoard(repo engine.Repository) *Board {
	return &Board{
		engine:         engine.New(repo, dateutil.SystemClock{}),
		repeatWeekdays: make(map[int]bool),
	}
}

func (b *Board) Init() tea.Cmd {
	return tea.Batch(b.loadCalendars(), b.loadSettings())
}

func (b *Board) loadCalendars() tea.Cmd {
	load := b.engine.LoadCalendars()
	return func() tea.Msg {
		list, err := load(context.Background())
		return calendarsLoadedMsg{calendars: list, err: err}
	}
}

func (b *Board) loadSettings() tea.Cmd {
	load := b.engine.LoadSettings()
	return func() tea.Msg {
		settings, err := load(context.Background())
		return settingsLoadedMsg{settings: settings, err: err}
	}
}

// fetch kicks off a range load for the engine's current window.
func (b *Board) fetch() tea.Cmd {
	run := b.engine.Fetch()
	return func() tea.Msg {
		return fetchDoneMsg(run(context.Background()))
	}
}

// commit runs the remote half of a mutation off the event loop.
func (b *Board) commit(c engine.Commit) tea.Cmd {
	if c == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return commitDoneMsg(c(ctx))
	}
}

func (b *Board) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width = msg.Width
		b.height = msg.Height
		return b, nil

	case calendarsLoadedMsg:
		if msg.err != nil {
			b.errLine = msg.err.Error()
			return b, nil
		}
		b.engine.ApplyCalendars(msg.calendars)
		return b, b.fetch()

	case settingsLoadedMsg:
		if msg.err == nil && msg.settings != nil {
			b.engine.ApplySettings(*msg.settings)
		}
		return b, nil

	case fetchDoneMsg:
		if err := b.engine.ApplyFetch(engine.FetchResult(msg)); err != nil {
			b.errLine = err.Error()
		}
		b.clampCursor()
		return b, nil

	case commitDoneMsg:
		if err := b.engine.Apply(engine.Result(msg)); err != nil {
			b.errLine = err.Error()
		}
		b.clampCursor()
		return b, nil

	case tea.KeyMsg:
		return b.handleKey(msg)
	}

	if b.view != viewBoard {
		return b.updateForm(msg)
	}
	return b, nil
}

func (b *Board) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if b.view != viewBoard {
		return b.handleFormKey(msg)
	}

	b.errLine = ""
	switch msg.String() {
	case "q", "ctrl+c":
		return b, tea.Quit

	// Cursor.
	case "h", "left":
		b.moveCursor(-1, 0)
	case "l", "right":
		b.moveCursor(1, 0)
	case "k", "up":
		b.moveCursor(0, -1)
	case "j", "down":
		b.moveCursor(0, 1)
	case "tab":
		b.entryIdx++
		b.clampCursor()

	// Navigation.
	case "H", "pgup":
		b.engine.Navigate(-1)
		return b, b.fetch()
	case "L", "pgdown":
		b.engine.Navigate(1)
		return b, b.fetch()
	case "t":
		b.engine.GoToToday()
		return b, b.fetch()
	case "v":
		b.cycleViewMode()
		return b, b.fetch()

	// Clipboard.
	case "y":
		if entry := b.selectedEntry(); entry != nil {
			if err := b.engine.CopyToClipboard(entry.ID); err != nil {
				b.errLine = err.Error()
			}
		}
	case "x":
		if entry := b.selectedEntry(); entry != nil {
			if err := b.engine.CutToClipboard(entry.ID); err != nil {
				b.errLine = err.Error()
			}
		}
	case "p", "enter":
		return b.selectSlot()
	case "esc":
		b.engine.Clipboard().Clear()

	// Entry mutations.
	case "d":
		if entry := b.selectedEntry(); entry != nil {
			commit, err := b.engine.DeleteEntry(entry.ID)
			if err != nil {
				b.errLine = err.Error()
				return b, nil
			}
			return b, b.commit(commit)
		}
	case "+":
		return b.adjustServings(1)
	case "-":
		return b.adjustServings(-1)

	// Dialogs.
	case "a":
		return b.openAddForm()
	case "r":
		return b.openRepeatForm()
	case "B":
		b.view = viewBulkCopy
		b.bulkWeeks = newInput("weeks", "1")
		b.bulkWeeks.Focus()
	}
	return b, nil
}

// selectSlot forwards the primary slot interaction to the engine: paste
// when the clipboard is holding, otherwise the add form.
func (b *Board) selectSlot() (tea.Model, tea.Cmd) {
	date, mealType := b.cursorSlot()
	sel, err := b.engine.SelectSlot(date, mealType)
	if err != nil {
		b.errLine = err.Error()
		return b, nil
	}
	if sel.Paste != nil {
		return b, b.commit(sel.Paste)
	}
	b.addPrompt = sel.Add
	b.view = viewAddEntry
	b.addFocus = 0
	b.addTitle = newInput("what are you cooking?", "")
	b.addTitle.Focus()
	b.addServings = newInput("servings", strconv.Itoa(sel.Add.Servings))
	return b, nil
}

func (b *Board) adjustServings(delta int) (tea.Model, tea.Cmd) {
	entry := b.selectedEntry()
	if entry == nil {
		return b, nil
	}
	next := entry.Servings + delta
	if next < 1 {
		return b, nil
	}
	commit, err := b.engine.UpdateServings(entry.ID, next)
	if err != nil {
		b.errLine = err.Error()
		return b, nil
	}
	return b, b.commit(commit)
}

func (b *Board) openAddForm() (tea.Model, tea.Cmd) {
	date, mealType := b.cursorSlot()
	sel, err := b.engine.SelectSlot(date, mealType)
	if err != nil {
		b.errLine = err.Error()
		return b, nil
	}
	if sel.Paste != nil {
		// `a` while holding still pastes; the slot interaction decides.
		return b, b.commit(sel.Paste)
	}
	b.addPrompt = sel.Add
	b.view = viewAddEntry
	b.addFocus = 0
	b.addTitle = newInput("what are you cooking?", "")
	b.addTitle.Focus()
	b.addServings = newInput("servings", strconv.Itoa(sel.Add.Servings))
	return b, nil
}

func (b *Board) openRepeatForm() (tea.Model, tea.Cmd) {
	entry := b.selectedEntry()
	if entry == nil {
		return b, nil
	}
	if entry.Payload.Kind != meals.PayloadRecipe {
		b.errLine = "only recipe entries can be repeated"
		return b, nil
	}
	b.repeatTarget = entry.ID
	b.repeatWeekdays = map[int]bool{entry.PlannedDate.Weekday(): true}
	b.repeatWeeks = newInput("weeks", "1")
	b.repeatWeeks.Focus()
	b.view = viewRepeat
	return b, nil
}

func (b *Board) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		b.view = viewBoard
		return b, nil
	case "enter":
		return b.submitForm()
	}

	switch b.view {
	case viewRepeat:
		// 1..7 toggle Monday..Sunday.
		if n, err := strconv.Atoi(msg.String()); err == nil && n >= 1 && n <= 7 {
			b.repeatWeekdays[n-1] = !b.repeatWeekdays[n-1]
			return b, nil
		}
	case viewAddEntry:
		if msg.String() == "tab" {
			b.addFocus = (b.addFocus + 1) % 2
			if b.addFocus == 0 {
				b.addTitle.Focus()
				b.addServings.Blur()
			} else {
				b.addTitle.Blur()
				b.addServings.Focus()
			}
			return b, nil
		}
	}
	return b.updateForm(msg)
}

func (b *Board) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch b.view {
	case viewAddEntry:
		if b.addFocus == 0 {
			b.addTitle, cmd = b.addTitle.Update(msg)
		} else {
			b.addServings, cmd = b.addServings.Update(msg)
		}
	case viewRepeat:
		b.repeatWeeks, cmd = b.repeatWeeks.Update(msg)
	case viewBulkCopy:
		b.bulkWeeks, cmd = b.bulkWeeks.Update(msg)
	}
	return b, cmd
}

func (b *Board) submitForm() (tea.Model, tea.Cmd) {
	defer func() { b.view = viewBoard }()

	switch b.view {
	case viewAddEntry:
		title := strings.TrimSpace(b.addTitle.Value())
		servings, err := strconv.Atoi(strings.TrimSpace(b.addServings.Value()))
		if err != nil {
			servings = b.addPrompt.Servings
		}
		writable := b.writableCalendar()
		if writable == "" {
			b.errLine = "no writable calendar selected"
			return b, nil
		}
		commit, err := b.engine.CreateEntry(meals.CreateEntryRequest{
			CalendarID:  writable,
			PlannedDate: b.addPrompt.Date,
			MealType:    b.addPrompt.MealType,
			Payload:     meals.Payload{Kind: meals.PayloadCustom, Title: title},
			Servings:    servings,
		})
		if err != nil {
			b.errLine = err.Error()
			return b, nil
		}
		return b, b.commit(commit)

	case viewRepeat:
		weeks, err := strconv.Atoi(strings.TrimSpace(b.repeatWeeks.Value()))
		if err != nil {
			weeks = 1
		}
		var weekdays []int
		for d, on := range b.repeatWeekdays {
			if on {
				weekdays = append(weekdays, d)
			}
		}
		commit, err := b.engine.RepeatMeal(b.repeatTarget, weekdays, weeks)
		if err != nil {
			b.errLine = err.Error()
			return b, nil
		}
		return b, b.commit(commit)

	case viewBulkCopy:
		weeks, err := strconv.Atoi(strings.TrimSpace(b.bulkWeeks.Value()))
		if err != nil {
			weeks = 1
		}
		commit, err := b.engine.BulkCopyWeek(weeks)
		if err != nil {
			b.errLine = err.Error()
			return b, nil
		}
		return b, b.commit(commit)
	}
	return b, nil
}

// --- Cursor helpers ---

func (b *Board) cursorSlot() (dateutil.DayKey, meals.MealType) {
	start, _ := b.engine.VisibleRange()
	if b.engine.ViewMode() == dateutil.ViewWeek {
		start = dateutil.StartOfWeek(b.engine.ReferenceDate())
	}
	return start.AddDays(b.dayIdx), mealRows[b.mealIdx]
}

func (b *Board) selectedEntry() *meals.Entry {
	date, mealType := b.cursorSlot()
	slot := b.engine.Slots().EntriesForSlot("", date, mealType)
	if len(slot) == 0 {
		return nil
	}
	if b.entryIdx >= len(slot) {
		return &slot[len(slot)-1]
	}
	return &slot[b.entryIdx]
}

func (b *Board) moveCursor(dx, dy int) {
	b.dayIdx = clamp(b.dayIdx+dx, 0, 6)
	b.mealIdx = clamp(b.mealIdx+dy, 0, len(mealRows)-1)
	b.entryIdx = 0
}

func (b *Board) clampCursor() {
	date, mealType := b.cursorSlot()
	slot := b.engine.Slots().EntriesForSlot("", date, mealType)
	if b.entryIdx >= len(slot) {
		b.entryIdx = 0
	}
}

func (b *Board) cycleViewMode() {
	switch b.engine.ViewMode() {
	case dateutil.ViewDay:
		b.engine.SetViewMode(dateutil.ViewWeek)
	case dateutil.ViewWeek:
		b.engine.SetViewMode(dateutil.ViewMonth)
	default:
		b.engine.SetViewMode(dateutil.ViewDay)
	}
}

// writableCalendar picks the first selected calendar the user can edit.
func (b *Board) writableCalendar() string {
	for _, cal := range b.engine.Calendars() {
		if cal.Role == "owner" || cal.Role == "editor" {
			for _, id := range b.engine.SelectedCalendars() {
				if id == cal.ID {
					return cal.ID
				}
			}
		}
	}
	return ""
}

func newInput(placeholder, value string) textinput.Model {
	in := textinput.New()
	in.Placeholder = placeholder
	in.SetValue(value)
	in.CharLimit = 100
	return in
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
