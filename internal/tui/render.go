package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ovenlight/mealboard/internal/dateutil"
	"github.com/ovenlight/mealboard/internal/plugins/meals"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114"))
	dayStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245")).Width(16)
	todayStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114")).Width(16)
	mealStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Width(10)
	cellStyle   = lipgloss.NewStyle().Width(16)
	cursorStyle = lipgloss.NewStyle().Reverse(true)
	busyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	hintStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	clipStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
)

func (b *Board) View() string {
	var out strings.Builder

	out.WriteString(headerStyle.Render(b.engine.HeaderLabel()))
	out.WriteString("\n")
	if held, action := b.engine.Clipboard().Held(); held != nil {
		out.WriteString(clipStyle.Render(fmt.Sprintf("clipboard: %s %q", action, held.Payload.DisplayTitle())))
		out.WriteString("\n")
	}
	out.WriteString("\n")

	switch b.view {
	case viewAddEntry:
		out.WriteString(b.renderAddForm())
	case viewRepeat:
		out.WriteString(b.renderRepeatForm())
	case viewBulkCopy:
		out.WriteString("copy this week into how many following weeks?\n\n  " +
			b.bulkWeeks.View() + "\n\n" + hintStyle.Render("enter confirm · esc cancel"))
	default:
		out.WriteString(b.renderGrid())
	}

	out.WriteString("\n")
	if b.errLine != "" {
		out.WriteString(errStyle.Render(b.errLine))
		out.WriteString("\n")
	}
	if b.view == viewBoard {
		out.WriteString(hintStyle.Render("hjkl move · H/L week · t today · v view · y/x/p clipboard · a add · d delete · +/- servings · r repeat · B bulk copy · q quit"))
	}
	return out.String()
}

// renderGrid draws the 7x4 week grid with the cursor slot highlighted.
func (b *Board) renderGrid() string {
	start := dateutil.StartOfWeek(b.engine.ReferenceDate())
	today := dateutil.Today(dateutil.SystemClock{})

	var out strings.Builder

	// Day header row.
	out.WriteString(mealStyle.Render(""))
	for d := 0; d < 7; d++ {
		day := start.AddDays(d)
		label := day.Time().Format("Mon 2")
		if day == today {
			out.WriteString(todayStyle.Render(label))
		} else {
			out.WriteString(dayStyle.Render(label))
		}
	}
	out.WriteString("\n")

	for row, mealType := range mealRows {
		// Each meal row is tall enough for its fullest slot.
		height := 1
		for d := 0; d < 7; d++ {
			n := len(b.engine.Slots().EntriesForSlot("", start.AddDays(d), mealType))
			if n > height {
				height = n
			}
		}

		for line := 0; line < height; line++ {
			if line == 0 {
				out.WriteString(mealStyle.Render(string(mealType)))
			} else {
				out.WriteString(mealStyle.Render(""))
			}
			for d := 0; d < 7; d++ {
				out.WriteString(b.renderCell(start.AddDays(d), mealType, d, row, line))
			}
			out.WriteString("\n")
		}
	}
	return out.String()
}

func (b *Board) renderCell(date dateutil.DayKey, mealType meals.MealType, day, row, line int) string {
	slot := b.engine.Slots().EntriesForSlot("", date, mealType)
	underCursor := day == b.dayIdx && row == b.mealIdx

	if line >= len(slot) {
		if line == 0 && underCursor {
			return cellStyle.Render(cursorStyle.Render(" · "))
		}
		return cellStyle.Render("")
	}

	entry := slot[line]
	label := truncate(entry.Payload.DisplayTitle(), 13)
	if entry.Servings > 1 {
		label = fmt.Sprintf("%s x%d", truncate(entry.Payload.DisplayTitle(), 10), entry.Servings)
	}
	if b.engine.Busy(entry.ID) {
		return cellStyle.Render(busyStyle.Render(label + " …"))
	}
	if underCursor && line == b.entryIdx {
		return cellStyle.Render(cursorStyle.Render(label))
	}
	return cellStyle.Render(label)
}

func (b *Board) renderAddForm() string {
	return fmt.Sprintf("add to %s %s\n\n  title:    %s\n  servings: %s\n\n%s",
		b.addPrompt.Date, b.addPrompt.MealType,
		b.addTitle.View(), b.addServings.View(),
		hintStyle.Render("tab switch field · enter save · esc cancel"))
}

func (b *Board) renderRepeatForm() string {
	names := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	var days []string
	for d, name := range names {
		if b.repeatWeekdays[d] {
			days = append(days, cursorStyle.Render(fmt.Sprintf(" %d:%s ", d+1, name)))
		} else {
			days = append(days, fmt.Sprintf(" %d:%s ", d+1, name))
		}
	}
	return fmt.Sprintf("repeat on: %s\n\n  weeks: %s\n\n%s",
		strings.Join(days, ""), b.repeatWeeks.View(),
		hintStyle.Render("1-7 toggle weekday · enter confirm · esc cancel"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
