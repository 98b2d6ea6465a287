package main

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

type fakeSender struct {
	sent    []tgbotapi.Chattable
	answers []tgbotapi.CallbackConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) AnswerCallbackQuery(c tgbotapi.CallbackConfig) (tgbotapi.APIResponse, error) {
	f.answers = append(f.answers, c)
	return tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) texts() []string {
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeSender) lastText(t *testing.T) string {
	t.Helper()
	texts := f.texts()
	if len(texts) == 0 {
		t.Fatalf("no messages sent")
	}
	return texts[len(texts)-1]
}

type testEnv struct {
	bot      *Bot
	api      *fakeSender
	repo     *SQLiteRepository
	roles    *RoleRegistry
	sessions *SessionStore
	clock    *fixedClock
}

const testChat int64 = -100

var (
	userAlice = &tgbotapi.User{ID: 1, UserName: "alice", FirstName: "Alice"}
	userBobby = &tgbotapi.User{ID: 2, UserName: "bobby", FirstName: "Bob"}
	userAdmin = &tgbotapi.User{ID: 3, UserName: "admin", FirstName: "Ada"}
	userRoot  = &tgbotapi.User{ID: 4, UserName: "rootu", FirstName: "Root"}
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := &fixedClock{now: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)}
	api := &fakeSender{}
	repo := newTestRepo(t)
	roles, _ := newTestRegistry(t, "admin\n", "rootu\n")
	sessions := NewSessionStore(clock, 30*time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &testEnv{
		bot:      NewBot(api, "schedule_test_bot", repo, roles, sessions, clock, logger),
		api:      api,
		repo:     repo,
		roles:    roles,
		sessions: sessions,
		clock:    clock,
	}
}

func (e *testEnv) command(user *tgbotapi.User, text string) {
	cmd, _, _ := strings.Cut(text, " ")
	e.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      user,
		Chat:      &tgbotapi.Chat{ID: testChat, Type: "group"},
		Text:      text,
		Entities:  &[]tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}})
}

func (e *testEnv) text(user *tgbotapi.User, text string) {
	e.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		From:      user,
		Chat:      &tgbotapi.Chat{ID: testChat, Type: "group"},
		Text:      text,
	}})
}

func (e *testEnv) press(user *tgbotapi.User, data string) {
	e.bot.HandleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-" + data,
		From:    user,
		Message: &tgbotapi.Message{MessageID: 42, Chat: &tgbotapi.Chat{ID: testChat, Type: "group"}},
		Data:    data,
	}})
}

func (e *testEnv) lastText(t *testing.T) string {
	t.Helper()
	return e.api.lastText(t)
}

func (e *testEnv) state(t *testing.T, user *tgbotapi.User) DialogState {
	t.Helper()
	sess, ok := e.sessions.Get(sessionKey{chatID: testChat, userID: user.ID})
	if !ok {
		return NoDialog
	}
	return sess.State
}

func (e *testEnv) events(t *testing.T) []Event {
	t.Helper()
	events, err := e.repo.ListEventsByChat(context.Background(), testChat)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	return events
}

func TestScheduling_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	mustCreateEvent(t, env.repo, testChat, "Later", "2024-06-10", "08:00")

	env.command(userAlice, "/schedule")
	if got := env.state(t, userAlice); got != AwaitingTitle {
		t.Fatalf("expected %s, got %s", AwaitingTitle, got)
	}
	env.text(userAlice, "Standup")
	env.text(userAlice, "Daily sync")
	if got := env.state(t, userAlice); got != AwaitingDate {
		t.Fatalf("expected %s, got %s", AwaitingDate, got)
	}

	env.press(userAlice, "day:2024-06-03")
	if got := env.state(t, userAlice); got != AwaitingTime {
		t.Fatalf("expected %s, got %s", AwaitingTime, got)
	}

	for _, bad := range []string{"9:30", "25:61", "09-30"} {
		env.text(userAlice, bad)
		if got := env.lastText(t); got != "Invalid time format. Use HH:MM" {
			t.Fatalf("expected time rejection for %q, got %q", bad, got)
		}
		if got := env.state(t, userAlice); got != AwaitingTime {
			t.Fatalf("expected to stay in %s, got %s", AwaitingTime, got)
		}
	}
	sess, _ := env.sessions.Get(sessionKey{chatID: testChat, userID: userAlice.ID})
	if sess.Draft.Title != "Standup" || sess.Draft.Description != "Daily sync" {
		t.Fatalf("draft lost after rejected time: %+v", sess.Draft)
	}

	env.text(userAlice, "09:00")
	env.text(userAlice, "Room 1")

	if got := env.state(t, userAlice); got != NoDialog {
		t.Fatalf("expected session discarded, got %s", got)
	}
	if !slices.Contains(env.api.texts(), "Event saved!") {
		t.Fatalf("expected confirmation, got %v", env.api.texts())
	}

	events := env.events(t)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	got := events[0]
	if got.Title != "Standup" || got.Description != "Daily sync" || got.Time != "09:00" || got.Location != "Room 1" {
		t.Fatalf("unexpected event %+v", got)
	}
	if got.Date.Format(dateLayout) != "2024-06-03" {
		t.Fatalf("unexpected date %v", got.Date)
	}
	if events[1].Title != "Later" {
		t.Fatalf("expected Standup sorted before Later, got %v", events[1].Title)
	}
}

func TestScheduling_OptionalFieldsAndTitleArgument(t *testing.T) {
	env := newTestEnv(t)

	env.command(userAlice, "/schedule Quick sync")
	if got := env.state(t, userAlice); got != AwaitingDescription {
		t.Fatalf("expected title taken from arguments, got %s", got)
	}
	env.text(userAlice, "-")
	env.press(userAlice, "day:2024-06-05")
	env.text(userAlice, "18:30")
	env.text(userAlice, "-")

	events := env.events(t)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Title != "Quick sync" || events[0].Description != "" || events[0].Location != "" {
		t.Fatalf("unexpected event %+v", events[0])
	}
}

func TestScheduling_LongFieldsAreKept(t *testing.T) {
	env := newTestEnv(t)
	title := strings.Repeat("x", 300)
	description := strings.Repeat("d", 3000)

	env.command(userAlice, "/schedule")
	env.text(userAlice, title)
	env.text(userAlice, description)
	env.press(userAlice, "day:2024-06-03")
	env.text(userAlice, "09:00")
	env.text(userAlice, "-")

	if got := env.lastText(t); got != "Choose an option:" {
		t.Fatalf("expected menu after saving, got %q", got)
	}
	events := env.events(t)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Title != title || events[0].Description != description {
		t.Fatalf("long fields were not stored intact")
	}
}

func TestScheduling_NonTextMessageIsIgnored(t *testing.T) {
	env := newTestEnv(t)

	env.command(userAlice, "/schedule Standup")
	sent := len(env.api.sent)
	env.bot.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 3,
		From:      userAlice,
		Chat:      &tgbotapi.Chat{ID: testChat, Type: "group"},
		Sticker:   &tgbotapi.Sticker{FileID: "sticker"},
	}})

	if got := env.state(t, userAlice); got != AwaitingDescription {
		t.Fatalf("expected to stay in %s, got %s", AwaitingDescription, got)
	}
	if len(env.api.sent) != sent {
		t.Fatalf("expected no reply to a sticker")
	}
	sess, _ := env.sessions.Get(sessionKey{chatID: testChat, userID: userAlice.ID})
	if sess.Draft.Description != "" {
		t.Fatalf("description must not be set, got %q", sess.Draft.Description)
	}
}

func TestScheduling_CalendarNavigation(t *testing.T) {
	env := newTestEnv(t)
	env.clock.now = time.Date(2024, 12, 15, 9, 0, 0, 0, time.UTC)

	env.command(userAlice, "/schedule")
	env.text(userAlice, "Party")
	env.text(userAlice, "New year")

	msg, ok := env.api.sent[len(env.api.sent)-1].(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("expected calendar message")
	}
	kb := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if kb.InlineKeyboard[0][0].Text != "December 2024" {
		t.Fatalf("expected current month, got %q", kb.InlineKeyboard[0][0].Text)
	}

	env.press(userAlice, "cal:next")
	edit, ok := env.api.sent[len(env.api.sent)-1].(tgbotapi.EditMessageReplyMarkupConfig)
	if !ok {
		t.Fatalf("expected keyboard edit, got %T", env.api.sent[len(env.api.sent)-1])
	}
	if edit.ReplyMarkup.InlineKeyboard[0][0].Text != "January 2025" {
		t.Fatalf("expected January 2025, got %q", edit.ReplyMarkup.InlineKeyboard[0][0].Text)
	}

	env.press(userAlice, "cal:prev")
	env.press(userAlice, "cal:prev")
	sess, _ := env.sessions.Get(sessionKey{chatID: testChat, userID: userAlice.ID})
	if sess.CursorYear != 2024 || sess.CursorMonth != time.November {
		t.Fatalf("expected November 2024, got %d-%d", sess.CursorYear, sess.CursorMonth)
	}

	sent := len(env.api.sent)
	env.press(userAlice, "cal:ignore")
	if len(env.api.sent) != sent {
		t.Fatalf("placeholder press must not send messages")
	}
	if got := env.state(t, userAlice); got != AwaitingDate {
		t.Fatalf("expected to stay in %s, got %s", AwaitingDate, got)
	}

	// free text does not pick a date
	env.text(userAlice, "tomorrow")
	if got := env.state(t, userAlice); got != AwaitingDate {
		t.Fatalf("expected to stay in %s, got %s", AwaitingDate, got)
	}
}

func TestScheduling_CancelDiscardsSession(t *testing.T) {
	env := newTestEnv(t)

	env.command(userAlice, "/schedule")
	env.text(userAlice, "Standup")
	env.text(userAlice, "desc")
	env.press(userAlice, "day:2024-06-03")
	env.command(userAlice, "/cancel")

	if got := env.state(t, userAlice); got != NoDialog {
		t.Fatalf("expected no dialog, got %s", got)
	}
	if len(env.events(t)) != 0 {
		t.Fatalf("cancel must not persist anything")
	}
	if got := env.lastText(t); got != "Cancelled" {
		t.Fatalf("unexpected reply %q", got)
	}

	env.command(userAlice, "/cancel")
	if got := env.lastText(t); got != "Nothing to cancel" {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestScheduling_SessionsAreIndependent(t *testing.T) {
	env := newTestEnv(t)

	env.command(userAlice, "/schedule")
	env.command(userBobby, "/schedule")
	env.text(userAlice, "Alice event")

	if got := env.state(t, userAlice); got != AwaitingDescription {
		t.Fatalf("expected alice at description, got %s", got)
	}
	if got := env.state(t, userBobby); got != AwaitingTitle {
		t.Fatalf("expected bob still at title, got %s", got)
	}

	// bob pressing a calendar button without a date dialog is rejected
	env.press(userBobby, "day:2024-06-03")
	if got := env.state(t, userBobby); got != AwaitingTitle {
		t.Fatalf("expected bob unchanged, got %s", got)
	}

	// restarting discards the previous draft
	env.command(userAlice, "/schedule")
	sess, _ := env.sessions.Get(sessionKey{chatID: testChat, userID: userAlice.ID})
	if sess.State != AwaitingTitle || sess.Draft.Title != "" {
		t.Fatalf("expected fresh session, got %+v", sess)
	}
}

func TestScheduling_IdleSessionExpires(t *testing.T) {
	env := newTestEnv(t)

	env.command(userAlice, "/schedule")
	env.clock.Advance(31 * time.Minute)
	env.text(userAlice, "Standup")

	if got := env.state(t, userAlice); got != NoDialog {
		t.Fatalf("expected expired session, got %s", got)
	}
	if len(env.events(t)) != 0 {
		t.Fatalf("expired session must not persist")
	}
}

func TestApplications_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	id := mustCreateEvent(t, env.repo, testChat, "Standup", "2024-06-03", "09:00")
	ctx := context.Background()
	apply := Action{Kind: ActionApply, EventID: id}.String()
	withdraw := Action{Kind: ActionWithdraw, EventID: id}.String()

	env.press(userAlice, apply)
	env.press(userAlice, apply)
	env.press(userBobby, apply)
	if got := env.api.answers[1].Text; got != "You have already applied" {
		t.Fatalf("unexpected toast for repeated apply %q", got)
	}

	users, err := env.repo.ListApplicants(ctx, id)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !slices.Equal(users, []string{"alice", "bobby"}) {
		t.Fatalf("expected [alice bobby], got %v", users)
	}

	env.press(userAlice, withdraw)
	users, err = env.repo.ListApplicants(ctx, id)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !slices.Equal(users, []string{"bobby"}) {
		t.Fatalf("expected [bobby], got %v", users)
	}

	edit, ok := env.api.sent[len(env.api.sent)-1].(tgbotapi.EditMessageTextConfig)
	if !ok {
		t.Fatalf("expected card edit, got %T", env.api.sent[len(env.api.sent)-1])
	}
	if !strings.Contains(edit.Text, "@bobby") || strings.Contains(edit.Text, "@alice") {
		t.Fatalf("unexpected card %q", edit.Text)
	}
	if *edit.ReplyMarkup.InlineKeyboard[0][0].CallbackData != apply {
		t.Fatalf("expected apply button after withdrawing")
	}

	last := env.api.answers[len(env.api.answers)-1]
	if last.Text != "Cancelled" {
		t.Fatalf("expected toast, got %q", last.Text)
	}
	if len(env.api.answers) != 4 {
		t.Fatalf("expected every press answered once, got %d answers", len(env.api.answers))
	}
}

func TestApplications_MissingEvent(t *testing.T) {
	env := newTestEnv(t)
	env.press(userAlice, "apply:404")

	if len(env.api.sent) != 0 {
		t.Fatalf("expected no messages, got %d", len(env.api.sent))
	}
	if got := env.api.answers[0].Text; got != "Event not found" {
		t.Fatalf("unexpected toast %q", got)
	}
}

func TestShowEvents(t *testing.T) {
	env := newTestEnv(t)

	env.command(userAlice, "/show")
	if got := env.lastText(t); got != "No events found" {
		t.Fatalf("unexpected reply %q", got)
	}

	id := mustCreateEvent(t, env.repo, testChat, "Standup", "2024-06-03", "09:00")
	mustCreateEvent(t, env.repo, testChat, "Retro", "2024-06-04", "09:00")
	if err := env.repo.AddApplicant(context.Background(), id, "alice"); err != nil {
		t.Fatalf("apply: %v", err)
	}

	env.api.sent = nil
	env.press(userAlice, "show")
	if len(env.api.sent) != 2 {
		t.Fatalf("expected one card per event, got %d", len(env.api.sent))
	}
	first := env.api.sent[0].(tgbotapi.MessageConfig)
	if first.ParseMode != tgbotapi.ModeHTML || !strings.Contains(first.Text, "Standup") {
		t.Fatalf("unexpected first card %+v", first)
	}
	kb := first.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if kb.InlineKeyboard[0][0].Text != "Cancel application" {
		t.Fatalf("expected cancel button for applied viewer, got %q", kb.InlineKeyboard[0][0].Text)
	}
	kb = env.api.sent[1].(tgbotapi.MessageConfig).ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if kb.InlineKeyboard[0][0].Text != "Apply to the event" {
		t.Fatalf("expected apply button, got %q", kb.InlineKeyboard[0][0].Text)
	}
}

func TestDelete_NonAdminDenied(t *testing.T) {
	env := newTestEnv(t)
	mustCreateEvent(t, env.repo, testChat, "Standup", "2024-06-03", "09:00")

	env.command(userAlice, "/delete")
	if got := env.lastText(t); got != "You are not authorized to delete events." {
		t.Fatalf("unexpected reply %q", got)
	}
	if env.sessions.Len() != 0 {
		t.Fatalf("denied user must not get a session")
	}

	env.press(userAlice, "delete")
	if env.sessions.Len() != 0 {
		t.Fatalf("denied menu press must not create a session")
	}
	if len(env.events(t)) != 1 {
		t.Fatalf("nothing may be deleted")
	}
}

func TestDelete_NoEvents(t *testing.T) {
	env := newTestEnv(t)

	env.command(userAdmin, "/delete")
	if got := env.lastText(t); got != "No events found" {
		t.Fatalf("unexpected reply %q", got)
	}
	if got := env.state(t, userAdmin); got != NoDialog {
		t.Fatalf("expected no dialog, got %s", got)
	}
}

func TestDelete_ConfirmRemovesEventAndApplications(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := mustCreateEvent(t, env.repo, testChat, "Standup", "2024-06-03", "09:00")
	if err := env.repo.AddApplicant(ctx, id, "alice"); err != nil {
		t.Fatalf("apply: %v", err)
	}

	env.command(userAdmin, "/delete")
	if got := env.state(t, userAdmin); got != AwaitingEventChoice {
		t.Fatalf("expected %s, got %s", AwaitingEventChoice, got)
	}
	env.press(userAdmin, Action{Kind: ActionChooseEvent, EventID: id}.String())
	if got := env.state(t, userAdmin); got != AwaitingConfirmation {
		t.Fatalf("expected %s, got %s", AwaitingConfirmation, got)
	}
	env.press(userAdmin, "confirm_delete")

	if got := env.lastText(t); got != "Event deleted" {
		t.Fatalf("unexpected reply %q", got)
	}
	if got := env.state(t, userAdmin); got != NoDialog {
		t.Fatalf("expected dialog finished, got %s", got)
	}
	if len(env.events(t)) != 0 {
		t.Fatalf("expected event deleted")
	}
	users, err := env.repo.ListApplicants(ctx, id)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected applications deleted, got %v", users)
	}
}

func TestDelete_AnyOtherInputAborts(t *testing.T) {
	tests := []struct {
		name  string
		abort func(env *testEnv)
	}{
		{"cancel button", func(env *testEnv) { env.press(userAdmin, "cancel_delete") }},
		{"free text", func(env *testEnv) { env.text(userAdmin, "yes please") }},
		{"another event button", func(env *testEnv) { env.press(userAdmin, "del:999") }},
		{"cancel command", func(env *testEnv) { env.command(userAdmin, "/cancel") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			id := mustCreateEvent(t, env.repo, testChat, "Standup", "2024-06-03", "09:00")

			env.command(userAdmin, "/delete")
			env.press(userAdmin, Action{Kind: ActionChooseEvent, EventID: id}.String())
			tt.abort(env)

			if got := env.state(t, userAdmin); got != NoDialog {
				t.Fatalf("expected dialog aborted, got %s", got)
			}
			if len(env.events(t)) != 1 {
				t.Fatalf("event must survive an aborted deletion")
			}
		})
	}
}

func TestDelete_EventFromOtherChatIsNotOffered(t *testing.T) {
	env := newTestEnv(t)
	mustCreateEvent(t, env.repo, testChat, "Mine", "2024-06-03", "09:00")
	foreign := mustCreateEvent(t, env.repo, 777, "Theirs", "2024-06-03", "09:00")

	env.command(userAdmin, "/delete")
	env.press(userAdmin, Action{Kind: ActionChooseEvent, EventID: foreign}.String())

	if got := env.lastText(t); got != "Event not found" {
		t.Fatalf("unexpected reply %q", got)
	}
	if _, err := env.repo.GetEvent(context.Background(), foreign); err != nil {
		t.Fatalf("foreign event must survive: %v", err)
	}
}

func TestAdminManagement(t *testing.T) {
	env := newTestEnv(t)

	env.command(userAdmin, "/add_admin @bobby")
	if got := env.lastText(t); got != "You are not authorized to add admins." {
		t.Fatalf("unexpected reply %q", got)
	}

	env.command(userRoot, "/add_admin")
	if got := env.lastText(t); got != "Usage: /add_admin @username" {
		t.Fatalf("unexpected reply %q", got)
	}

	env.command(userRoot, "/add_admin @bob")
	if got := env.lastText(t); got != "Invalid username" {
		t.Fatalf("unexpected reply %q", got)
	}

	env.command(userRoot, "/add_admin https://t.me/bobby")
	if got := env.lastText(t); got != "Added bobby as admin" {
		t.Fatalf("unexpected reply %q", got)
	}
	env.command(userRoot, "/add_admin @bobby")
	if got := env.lastText(t); got != "User is already an admin" {
		t.Fatalf("unexpected reply %q", got)
	}

	// bobby can now open the delete menu
	mustCreateEvent(t, env.repo, testChat, "Standup", "2024-06-03", "09:00")
	env.command(userBobby, "/delete")
	if got := env.state(t, userBobby); got != AwaitingEventChoice {
		t.Fatalf("expected new admin to start deletion, got %s", got)
	}
	env.command(userBobby, "/cancel")

	env.command(userAdmin, "/remove_admin")
	if env.state(t, userAdmin) != NoDialog {
		t.Fatalf("non super-admin must not get a session")
	}

	env.command(userRoot, "/remove_admin")
	if got := env.state(t, userRoot); got != AwaitingAdminChoice {
		t.Fatalf("expected %s, got %s", AwaitingAdminChoice, got)
	}
	env.press(userRoot, "rm_admin:bobby")
	if got := env.lastText(t); got != "Removed bobby from admins" {
		t.Fatalf("unexpected reply %q", got)
	}
	if env.roles.Snapshot().IsAdmin("bobby") {
		t.Fatalf("expected bobby removed")
	}
	if got := env.state(t, userRoot); got != NoDialog {
		t.Fatalf("expected dialog finished, got %s", got)
	}

	env.command(userRoot, "/refresh")
	if got := env.lastText(t); got != "Roles reloaded" {
		t.Fatalf("unexpected reply %q", got)
	}
	if !env.roles.Snapshot().IsAdmin("admin") || env.roles.Snapshot().IsAdmin("bobby") {
		t.Fatalf("unexpected roles after reload")
	}
}

func TestQRCodeAndDeepLink(t *testing.T) {
	env := newTestEnv(t)
	mustCreateEvent(t, env.repo, testChat, "Past", "2024-05-01", "09:00")
	id := mustCreateEvent(t, env.repo, testChat, "Next", "2024-06-03", "09:00")

	env.command(userAlice, "/qrcode")
	if got := env.lastText(t); got != "You are not authorized to create QR codes." {
		t.Fatalf("unexpected reply %q", got)
	}

	env.api.sent = nil
	env.command(userAdmin, "/qrcode")
	photo, ok := env.api.sent[0].(tgbotapi.PhotoConfig)
	if !ok {
		t.Fatalf("expected photo, got %T", env.api.sent[0])
	}
	if photo.Caption != "Scan to open Next" {
		t.Fatalf("expected upcoming event, got caption %q", photo.Caption)
	}
	file, ok := photo.File.(tgbotapi.FileBytes)
	if !ok || !strings.HasPrefix(string(file.Bytes), "\x89PNG") {
		t.Fatalf("expected PNG upload")
	}

	env.command(userAdmin, "/qrcode abc")
	if got := env.lastText(t); got != "Usage: /qrcode [event id]" {
		t.Fatalf("unexpected reply %q", got)
	}

	if link := eventDeepLink("schedule_test_bot", id); link != "https://t.me/schedule_test_bot?start=event_2" {
		t.Fatalf("unexpected link %q", link)
	}

	env.api.sent = nil
	env.command(userBobby, "/start event_2")
	card, ok := env.api.sent[0].(tgbotapi.MessageConfig)
	if !ok || !strings.Contains(card.Text, "<b>Next</b>") {
		t.Fatalf("expected event card, got %+v", env.api.sent)
	}

	env.command(userBobby, "/start event_99")
	if got := env.lastText(t); got != "Event not found" {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestExportCommand(t *testing.T) {
	env := newTestEnv(t)

	env.command(userAdmin, "/export")
	if got := env.lastText(t); got != "No events found" {
		t.Fatalf("unexpected reply %q", got)
	}

	mustCreateEvent(t, env.repo, testChat, "Standup", "2024-06-03", "09:00")
	env.api.sent = nil
	env.command(userAdmin, "/export")
	doc, ok := env.api.sent[0].(tgbotapi.DocumentConfig)
	if !ok {
		t.Fatalf("expected document, got %T", env.api.sent[0])
	}
	if doc.Caption != "Events export (1 events)" {
		t.Fatalf("unexpected caption %q", doc.Caption)
	}
}

func TestHelpAndUnknownCommand(t *testing.T) {
	env := newTestEnv(t)

	env.command(userRoot, "/help")
	if got := env.lastText(t); !strings.Contains(got, "/remove_admin") {
		t.Fatalf("expected super-admin help, got %q", got)
	}
	env.command(userAlice, "/frobnicate")
	if got := env.lastText(t); !strings.HasPrefix(got, "Unknown command") {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestStartMenu(t *testing.T) {
	env := newTestEnv(t)

	env.command(userAlice, "/start")
	msg := env.api.sent[0].(tgbotapi.MessageConfig)
	if n := len(msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup).InlineKeyboard); n != 2 {
		t.Fatalf("expected user menu with 2 rows, got %d", n)
	}

	env.command(userAdmin, "/start")
	msg = env.api.sent[1].(tgbotapi.MessageConfig)
	if n := len(msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup).InlineKeyboard); n != 3 {
		t.Fatalf("expected admin menu with 3 rows, got %d", n)
	}

	// group chatter outside a dialog is ignored
	env.text(userAlice, "hello everyone")
	if len(env.api.sent) != 2 {
		t.Fatalf("expected no reply to group chatter")
	}
}
