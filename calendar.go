package main

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

var weekdayLabels = [7]string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

// CalendarGrid is the month view of the date picker.
// Weeks always have seven cells; a zero Day is a placeholder outside the month.
type CalendarGrid struct {
	Year   int
	Month  time.Month
	Header string
	Weeks  [][7]int
}

// RenderCalendar builds the Monday-first grid for the given month.
func RenderCalendar(year int, month time.Month) CalendarGrid {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()

	// Monday = 0 ... Sunday = 6
	offset := (int(first.Weekday()) + 6) % 7

	grid := CalendarGrid{
		Year:   year,
		Month:  month,
		Header: fmt.Sprintf("%s %d", month, year),
	}

	var week [7]int
	col := offset
	for day := 1; day <= days; day++ {
		week[col] = day
		col++
		if col == 7 {
			grid.Weeks = append(grid.Weeks, week)
			week = [7]int{}
			col = 0
		}
	}
	if col > 0 {
		grid.Weeks = append(grid.Weeks, week)
	}
	return grid
}

// ShiftMonth adds delta months to (year, month), wrapping year boundaries.
func ShiftMonth(year int, month time.Month, delta int) (int, time.Month) {
	idx := year*12 + int(month) - 1 + delta
	y := idx / 12
	m := idx % 12
	if m < 0 {
		m += 12
		y--
	}
	return y, time.Month(m + 1)
}

// Date returns the calendar day of the grid's month.
func (g CalendarGrid) Date(day int) time.Time {
	return time.Date(g.Year, g.Month, day, 0, 0, 0, 0, time.UTC)
}

// calendarKeyboard maps the grid onto inline buttons.
func calendarKeyboard(grid CalendarGrid) tgbotapi.InlineKeyboardMarkup {
	ignore := Action{Kind: ActionIgnore}.String()

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(grid.Weeks)+3)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(grid.Header, ignore),
	))

	labels := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for _, l := range weekdayLabels {
		labels = append(labels, tgbotapi.NewInlineKeyboardButtonData(l, ignore))
	}
	rows = append(rows, labels)

	for _, week := range grid.Weeks {
		row := make([]tgbotapi.InlineKeyboardButton, 0, 7)
		for _, day := range week {
			if day == 0 {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", ignore))
				continue
			}
			data := Action{Kind: ActionDay, Date: grid.Date(day)}.String()
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprint(day), data))
		}
		rows = append(rows, row)
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("<", Action{Kind: ActionPrevMonth}.String()),
		tgbotapi.NewInlineKeyboardButtonData(">", Action{Kind: ActionNextMonth}.String()),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
