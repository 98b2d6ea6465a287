package main

import (
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

// displayDateLayout is how dates are shown to users.
const displayDateLayout = "02.01.2006"

// formatEvent renders an event card as Telegram HTML.
func formatEvent(ev Event, applicants []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>", html.EscapeString(ev.Title))
	if ev.Description != "" {
		b.WriteString("\n" + html.EscapeString(ev.Description))
	}
	fmt.Fprintf(&b, "\n\U0001F550 When? %s at %s", ev.Date.Format(displayDateLayout), ev.Time)
	if ev.Location != "" {
		b.WriteString("\n\U0001F4CD " + html.EscapeString(ev.Location))
	}
	if len(applicants) > 0 {
		mentions := make([]string, 0, len(applicants))
		for _, u := range applicants {
			mentions = append(mentions, mention(u))
		}
		b.WriteString("\nWill go: " + strings.Join(mentions, ", "))
	}
	return b.String()
}

// mention links a username to its profile. Applicants without a username are
// stored by first name and rendered as plain text.
func mention(u string) string {
	if !isTelegramHandle(u) {
		return html.EscapeString(u)
	}
	return fmt.Sprintf(`<a href="https://t.me/%s">@%s</a>`, u, u)
}

func isTelegramHandle(s string) bool {
	if len(s) < 5 || len(s) > 32 {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}

// applicationKeyboard flips between apply and cancel depending on the viewer.
func applicationKeyboard(eventID int64, applied bool) tgbotapi.InlineKeyboardMarkup {
	button := tgbotapi.NewInlineKeyboardButtonData("Apply to the event", Action{Kind: ActionApply, EventID: eventID}.String())
	if applied {
		button = tgbotapi.NewInlineKeyboardButtonData("Cancel application", Action{Kind: ActionWithdraw, EventID: eventID}.String())
	}
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(button))
}

// mainMenuKeyboard lists the entry points; delete is offered to admins only.
func mainMenuKeyboard(isAdmin bool) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Schedule event", Action{Kind: ActionSchedule}.String())),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Show events", Action{Kind: ActionShow}.String())),
	}
	if isAdmin {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Delete event", Action{Kind: ActionDeleteMenu}.String())))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func deleteListKeyboard(events []Event) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(events))
	for _, ev := range events {
		label := fmt.Sprintf("%s on %s at %s", ev.Title, ev.Date.Format(displayDateLayout), ev.Time)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, Action{Kind: ActionChooseEvent, EventID: ev.ID}.String()),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmDeleteKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Confirm", Action{Kind: ActionConfirmDelete}.String())),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("Cancel", Action{Kind: ActionAbortDelete}.String())),
	)
}

func adminListKeyboard(admins []string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(admins))
	for _, u := range admins {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(u, Action{Kind: ActionChooseAdmin, Admin: u}.String()),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

const helpText = "Available commands:\n" +
	"/start - show main menu\n" +
	"/schedule - schedule event\n" +
	"/show - show events\n" +
	"/cancel - cancel current action\n" +
	"/help - show this message"

// helpFor extends the help text with the commands the user's roles unlock.
func helpFor(roles *RoleSnapshot, username string) string {
	text := helpText
	if roles.IsAdmin(username) {
		text += "\n/delete - delete event" +
			"\n/qrcode <id> - QR code linking to an event" +
			"\n/export - export events and applicants as CSV"
	}
	if roles.IsSuperAdmin(username) {
		text += "\n/refresh - reload admin lists" +
			"\n/add_admin - add a new admin" +
			"\n/remove_admin - remove an admin"
	}
	return text
}
