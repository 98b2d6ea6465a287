package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

// Sender is the part of the Telegram API the bot talks to.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	AnswerCallbackQuery(config tgbotapi.CallbackConfig) (tgbotapi.APIResponse, error)
}

// Bot routes updates to command handlers and dialogs.
type Bot struct {
	api         Sender
	username    string // bot's own username, used for deep links
	repo        Repository
	roles       *RoleRegistry
	sessions    *SessionStore
	clock       Clock
	log         *slog.Logger
	validate    *validator.Validate
	transitions map[transitionKey]stepFunc
	fallbacks   map[DialogState]stepFunc
}

// NewBot wires the controller.
func NewBot(api Sender, username string, repo Repository, roles *RoleRegistry, sessions *SessionStore, clock Clock, logger *slog.Logger) *Bot {
	return &Bot{
		api:         api,
		username:    username,
		repo:        repo,
		roles:       roles,
		sessions:    sessions,
		clock:       clock,
		log:         logger,
		validate:    validator.New(),
		transitions: dialogTransitions(),
		fallbacks:   dialogFallbacks(),
	}
}

// request carries everything a handler needs about one inbound update.
type request struct {
	ctx        context.Context
	key        sessionKey
	chatID     int64
	private    bool
	username   string // Telegram handle, used for roles
	applicant  string // handle or first name, used for applications
	messageID  int    // message holding the pressed button
	callbackID string
	answered   bool
	roles      *RoleSnapshot
	log        *slog.Logger
}

func (b *Bot) newRequest(ctx context.Context, chat *tgbotapi.Chat, from *tgbotapi.User) *request {
	applicant := from.UserName
	if applicant == "" {
		applicant = from.FirstName
	}
	return &request{
		ctx:       ctx,
		key:       sessionKey{chatID: chat.ID, userID: from.ID},
		chatID:    chat.ID,
		private:   chat.IsPrivate(),
		username:  from.UserName,
		applicant: applicant,
		roles:     b.roles.Snapshot(),
		log:       b.log.With("chat_id", chat.ID, "user", applicant),
	}
}

// HandleUpdate processes one update from the Telegram long poll.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallbackQuery(ctx, update.CallbackQuery)
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.Chat == nil {
			return
		}
		req := b.newRequest(ctx, msg.Chat, msg.From)
		switch {
		case msg.IsCommand():
			b.handleCommand(req, msg.Command(), strings.TrimSpace(msg.CommandArguments()))
		case msg.Text != "":
			b.handleText(req, msg.Text)
		}
	}
}

// handleCommand routes commands to corresponding handlers.
func (b *Bot) handleCommand(req *request, command, args string) {
	req.log.Debug("command", "command", command)
	switch command {
	case "start":
		if id, ok := strings.CutPrefix(args, deepLinkPrefix); ok {
			b.showEventFromLink(req, id)
			return
		}
		b.showMainMenu(req)
	case "help":
		b.reply(req, helpFor(req.roles, req.username))
	case "schedule":
		b.startScheduling(req, args)
	case "show":
		b.showEvents(req, args)
	case "cancel":
		b.cancel(req)
	case "delete":
		AdminCheckMiddleware("delete events", (*Bot).startDeletion)(b, req, args)
	case "qrcode":
		AdminCheckMiddleware("create QR codes", (*Bot).sendQRCode)(b, req, args)
	case "export":
		AdminCheckMiddleware("export events", (*Bot).exportEvents)(b, req, args)
	case "refresh":
		SuperAdminCheckMiddleware("refresh roles", (*Bot).refreshRoles)(b, req, args)
	case "add_admin":
		SuperAdminCheckMiddleware("add admins", (*Bot).addAdmin)(b, req, args)
	case "remove_admin":
		SuperAdminCheckMiddleware("remove admins", (*Bot).startAdminRemoval)(b, req, args)
	default:
		b.reply(req, "Unknown command. Use /help to see what I can do.")
	}
}

// handleText feeds free text into the active dialog.
func (b *Bot) handleText(req *request, text string) {
	sess, ok := b.sessions.Get(req.key)
	if !ok {
		// Group chats are noisy; only offer the menu in private chats.
		if req.private {
			b.showMainMenu(req)
		}
		return
	}
	b.dispatch(req, sess, Input{Kind: InputText, Text: text})
}

// handleCallbackQuery handles inline button callbacks.
func (b *Bot) handleCallbackQuery(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil || cq.Message.Chat == nil || cq.From == nil {
		b.answerQuery(cq.ID, "")
		return
	}
	req := b.newRequest(ctx, cq.Message.Chat, cq.From)
	req.messageID = cq.Message.MessageID
	req.callbackID = cq.ID
	defer func() {
		if !req.answered {
			b.answer(req, "")
		}
	}()

	action, err := ParseAction(cq.Data)
	if err != nil {
		req.log.Warn("unrecognized callback", "data", cq.Data, "error", err)
		return
	}

	switch action.Kind {
	case ActionSchedule:
		b.startScheduling(req, "")
	case ActionShow:
		b.showEvents(req, "")
	case ActionDeleteMenu:
		AdminCheckMiddleware("delete events", (*Bot).startDeletion)(b, req, "")
	case ActionApply:
		b.apply(req, action.EventID)
	case ActionWithdraw:
		b.withdraw(req, action.EventID)
	default:
		in, _ := inputFromAction(action)
		sess, ok := b.sessions.Get(req.key)
		if !ok {
			if action.Kind != ActionIgnore {
				b.answer(req, "This action has expired")
			}
			return
		}
		b.dispatch(req, sess, in)
	}
}

// dispatch runs the transition for the session's state and the input kind.
func (b *Bot) dispatch(req *request, sess *Session, in Input) {
	step, ok := b.transitions[transitionKey{state: sess.State, input: in.Kind}]
	if !ok {
		step, ok = b.fallbacks[sess.State]
	}
	req.log = req.log.With("session", sess.ID.String(), "state", sess.State.String())
	if !ok {
		b.promptAgain(req, sess)
		return
	}
	step(b, req, sess, in)
}

// promptAgain reminds the user what the current step expects.
func (b *Bot) promptAgain(req *request, sess *Session) {
	var hint string
	switch sess.State {
	case AwaitingTitle:
		hint = "Enter event title:"
	case AwaitingDescription:
		hint = "Enter event description (or - to skip):"
	case AwaitingDate:
		hint = "Please pick a date in the calendar above."
	case AwaitingTime:
		hint = "Enter time (HH:MM, 24h):"
	case AwaitingLocation:
		hint = "Enter location (or - to skip):"
	default:
		hint = "Please use the buttons above or /cancel."
	}
	if req.callbackID != "" {
		b.answer(req, hint)
		return
	}
	b.reply(req, hint)
}

func (b *Bot) showMainMenu(req *request) {
	b.replyWithKeyboard(req, "Choose an option:", mainMenuKeyboard(req.roles.IsAdmin(req.username)))
}

func (b *Bot) cancel(req *request) {
	if _, ok := b.sessions.Get(req.key); !ok {
		b.reply(req, "Nothing to cancel")
		return
	}
	b.sessions.Clear(req.key)
	req.log.Info("dialog cancelled")
	b.reply(req, "Cancelled")
}

// Scheduling dialog

func (b *Bot) startScheduling(req *request, args string) {
	sess := b.sessions.Start(req.key, AwaitingTitle)
	sess.Draft.ChatID = req.chatID
	req.log.Info("scheduling started", "session", sess.ID.String())
	if args != "" {
		b.receiveTitle(req, sess, Input{Kind: InputText, Text: args})
		return
	}
	b.reply(req, "Enter event title:")
}

func (b *Bot) receiveTitle(req *request, sess *Session, in Input) {
	title := strings.TrimSpace(in.Text)
	if title == "" {
		b.reply(req, "Title cannot be empty. Enter event title:")
		return
	}
	sess.Draft.Title = title
	sess.State = AwaitingDescription
	b.reply(req, "Enter event description (or - to skip):")
}

func (b *Bot) receiveDescription(req *request, sess *Session, in Input) {
	sess.Draft.Description = optionalText(in.Text)
	now := b.clock.Now()
	sess.CursorYear, sess.CursorMonth = now.Year(), now.Month()
	sess.State = AwaitingDate
	b.replyWithKeyboard(req, "Select a date:", calendarKeyboard(RenderCalendar(sess.CursorYear, sess.CursorMonth)))
}

func (b *Bot) shiftCalendar(req *request, sess *Session, in Input) {
	delta := 1
	if in.Action.Kind == ActionPrevMonth {
		delta = -1
	}
	sess.CursorYear, sess.CursorMonth = ShiftMonth(sess.CursorYear, sess.CursorMonth, delta)
	b.editMarkup(req, calendarKeyboard(RenderCalendar(sess.CursorYear, sess.CursorMonth)))
}

// redrawCalendar handles header, weekday and blank cells; the grid stays as is.
func (b *Bot) redrawCalendar(req *request, sess *Session, in Input) {
	b.answer(req, "")
}

func (b *Bot) receiveDate(req *request, sess *Session, in Input) {
	sess.Draft.Date = in.Action.Date
	sess.State = AwaitingTime
	b.editText(req, "Selected "+in.Action.Date.Format(displayDateLayout), nil, false)
	b.reply(req, "Enter time (HH:MM, 24h):")
}

func (b *Bot) receiveTime(req *request, sess *Session, in Input) {
	t := strings.TrimSpace(in.Text)
	if err := ValidateTime(t); err != nil {
		req.log.Debug("rejected time", "input", t)
		b.reply(req, "Invalid time format. Use HH:MM")
		return
	}
	sess.Draft.Time = t
	sess.State = AwaitingLocation
	b.reply(req, "Enter location (or - to skip):")
}

func (b *Bot) receiveLocation(req *request, sess *Session, in Input) {
	sess.Draft.Location = optionalText(in.Text)
	if err := b.validate.Struct(sess.Draft); err != nil {
		req.log.Warn("invalid event draft", "error", err)
		b.sessions.Clear(req.key)
		b.reply(req, "Could not save the event: some fields are missing.")
		return
	}
	b.sessions.Clear(req.key)

	id, err := b.repo.CreateEvent(req.ctx, sess.Draft)
	if err != nil {
		req.log.Error("failed to save event", "error", err)
		b.reply(req, "Failed to save the event")
		return
	}
	req.log.Info("event created", "event_id", id, "title", sess.Draft.Title)
	b.reply(req, "Event saved!")
	b.showMainMenu(req)
}

// Listing and applications

func (b *Bot) showEvents(req *request, _ string) {
	events, err := b.repo.ListEventsByChat(req.ctx, req.chatID)
	if err != nil {
		req.log.Error("failed to list events", "error", err)
		b.reply(req, "Failed to load events")
		return
	}
	if len(events) == 0 {
		b.reply(req, "No events found")
		return
	}
	for _, ev := range events {
		b.sendEventCard(req, ev)
	}
}

func (b *Bot) showEventFromLink(req *request, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		b.reply(req, "This link is broken")
		return
	}
	ev, err := b.repo.GetEvent(req.ctx, id)
	if err != nil {
		if !errors.Is(err, ErrEventNotFound) {
			req.log.Error("failed to load event", "event_id", id, "error", err)
		}
		b.reply(req, "Event not found")
		return
	}
	b.sendEventCard(req, *ev)
}

func (b *Bot) sendEventCard(req *request, ev Event) {
	applicants, err := b.repo.ListApplicants(req.ctx, ev.ID)
	if err != nil {
		req.log.Error("failed to list applicants", "event_id", ev.ID, "error", err)
		return
	}
	applied := slices.Contains(applicants, req.applicant)
	message := tgbotapi.NewMessage(req.chatID, formatEvent(ev, applicants))
	message.ParseMode = tgbotapi.ModeHTML
	message.ReplyMarkup = applicationKeyboard(ev.ID, applied)
	b.send(req, message)
}

func (b *Bot) apply(req *request, eventID int64) {
	ev, err := b.repo.GetEvent(req.ctx, eventID)
	if err != nil {
		b.eventLookupFailed(req, eventID, err)
		return
	}
	already, err := b.repo.IsApplicant(req.ctx, eventID, req.applicant)
	if err != nil {
		req.log.Error("failed to check application", "event_id", eventID, "error", err)
		b.answer(req, "Failed to apply")
		return
	}
	if already {
		b.answer(req, "You have already applied")
		return
	}
	if err := b.repo.AddApplicant(req.ctx, eventID, req.applicant); err != nil {
		req.log.Error("failed to apply", "event_id", eventID, "error", err)
		b.answer(req, "Failed to apply")
		return
	}
	req.log.Info("applied", "event_id", eventID)
	b.refreshEventCard(req, *ev, true)
	b.answer(req, "Applied")
}

func (b *Bot) withdraw(req *request, eventID int64) {
	ev, err := b.repo.GetEvent(req.ctx, eventID)
	if err != nil {
		b.eventLookupFailed(req, eventID, err)
		return
	}
	if err := b.repo.RemoveApplicant(req.ctx, eventID, req.applicant); err != nil {
		req.log.Error("failed to cancel application", "event_id", eventID, "error", err)
		b.answer(req, "Failed to cancel application")
		return
	}
	req.log.Info("application cancelled", "event_id", eventID)
	b.refreshEventCard(req, *ev, false)
	b.answer(req, "Cancelled")
}

func (b *Bot) eventLookupFailed(req *request, eventID int64, err error) {
	if errors.Is(err, ErrEventNotFound) {
		b.answer(req, "Event not found")
		return
	}
	req.log.Error("failed to load event", "event_id", eventID, "error", err)
	b.answer(req, "Failed to load event")
}

func (b *Bot) refreshEventCard(req *request, ev Event, applied bool) {
	applicants, err := b.repo.ListApplicants(req.ctx, ev.ID)
	if err != nil {
		req.log.Error("failed to list applicants", "event_id", ev.ID, "error", err)
		return
	}
	markup := applicationKeyboard(ev.ID, applied)
	b.editText(req, formatEvent(ev, applicants), &markup, true)
}

// Deletion dialog

func (b *Bot) startDeletion(req *request, _ string) {
	events, err := b.repo.ListEventsByChat(req.ctx, req.chatID)
	if err != nil {
		req.log.Error("failed to list events", "error", err)
		b.reply(req, "Failed to load events")
		return
	}
	if len(events) == 0 {
		b.reply(req, "No events found")
		return
	}
	sess := b.sessions.Start(req.key, AwaitingEventChoice)
	req.log.Info("deletion started", "session", sess.ID.String())
	b.replyWithKeyboard(req, "Select event to delete:", deleteListKeyboard(events))
}

func (b *Bot) chooseEventToDelete(req *request, sess *Session, in Input) {
	ev, err := b.repo.GetEvent(req.ctx, in.Action.EventID)
	if err != nil || ev.ChatID != req.chatID {
		if err != nil && !errors.Is(err, ErrEventNotFound) {
			req.log.Error("failed to load event", "event_id", in.Action.EventID, "error", err)
		}
		b.sessions.Clear(req.key)
		b.editText(req, "Event not found", nil, false)
		return
	}
	sess.PendingDelete = ev.ID
	sess.State = AwaitingConfirmation
	b.replyWithKeyboard(req, fmt.Sprintf("Delete %q on %s at %s?", ev.Title, ev.Date.Format(displayDateLayout), ev.Time), confirmDeleteKeyboard())
}

func (b *Bot) confirmDelete(req *request, sess *Session, _ Input) {
	b.sessions.Clear(req.key)
	if !req.roles.IsAdmin(req.username) {
		b.editText(req, "You are not authorized to delete events.", nil, false)
		return
	}
	err := b.repo.DeleteEvent(req.ctx, sess.PendingDelete)
	switch {
	case errors.Is(err, ErrEventNotFound):
		b.editText(req, "Event not found", nil, false)
	case err != nil:
		req.log.Error("failed to delete event", "event_id", sess.PendingDelete, "error", err)
		b.editText(req, "Failed to delete the event", nil, false)
	default:
		req.log.Info("event deleted", "event_id", sess.PendingDelete)
		b.editText(req, "Event deleted", nil, false)
	}
}

func (b *Bot) abortDelete(req *request, _ *Session, _ Input) {
	b.sessions.Clear(req.key)
	if req.callbackID != "" {
		b.editText(req, "Deletion cancelled", nil, false)
		return
	}
	b.reply(req, "Deletion cancelled")
}

// Role management

func (b *Bot) refreshRoles(req *request, _ string) {
	snap, err := b.roles.Reload()
	if err != nil {
		req.log.Error("failed to reload roles", "error", err)
		b.reply(req, "Failed to reload roles")
		return
	}
	req.log.Info("roles reloaded", "admins", len(snap.admins), "superadmins", len(snap.superAdmins))
	b.reply(req, "Roles reloaded")
}

func (b *Bot) addAdmin(req *request, args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		b.reply(req, "Usage: /add_admin @username")
		return
	}
	username, err := b.roles.AddAdmin(fields[0])
	switch {
	case errors.Is(err, ErrInvalidUsername):
		b.reply(req, "Invalid username")
	case errors.Is(err, ErrAlreadyAdmin):
		b.reply(req, "User is already an admin")
	case err != nil:
		req.log.Error("failed to add admin", "error", err)
		b.reply(req, "Failed to add admin")
	default:
		req.log.Info("admin added", "admin", username)
		b.reply(req, "Added "+username+" as admin")
	}
}

func (b *Bot) startAdminRemoval(req *request, _ string) {
	admins := req.roles.Admins()
	if len(admins) == 0 {
		b.reply(req, "No admins to remove")
		return
	}
	b.sessions.Start(req.key, AwaitingAdminChoice)
	b.replyWithKeyboard(req, "Choose admin to remove:", adminListKeyboard(admins))
}

func (b *Bot) chooseAdminToRemove(req *request, _ *Session, in Input) {
	b.sessions.Clear(req.key)
	if !req.roles.IsSuperAdmin(req.username) {
		b.editText(req, "You are not authorized to remove admins.", nil, false)
		return
	}
	err := b.roles.RemoveAdmin(in.Action.Admin)
	switch {
	case errors.Is(err, ErrAdminNotFound):
		b.editText(req, "User not found", nil, false)
	case err != nil:
		req.log.Error("failed to remove admin", "error", err)
		b.editText(req, "Failed to remove admin", nil, false)
	default:
		req.log.Info("admin removed", "admin", in.Action.Admin)
		b.editText(req, "Removed "+in.Action.Admin+" from admins", nil, false)
	}
}

// Outgoing messages

func (b *Bot) send(req *request, c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		req.log.Error("failed to send message", "error", err)
	}
}

// reply sends a text message to the request's chat.
func (b *Bot) reply(req *request, text string) {
	b.send(req, tgbotapi.NewMessage(req.chatID, text))
}

func (b *Bot) replyWithKeyboard(req *request, text string, markup tgbotapi.InlineKeyboardMarkup) {
	message := tgbotapi.NewMessage(req.chatID, text)
	message.ReplyMarkup = markup
	b.send(req, message)
}

// editText rewrites the message that carried the pressed button.
func (b *Bot) editText(req *request, text string, markup *tgbotapi.InlineKeyboardMarkup, html bool) {
	if req.messageID == 0 {
		b.reply(req, text)
		return
	}
	edit := tgbotapi.NewEditMessageText(req.chatID, req.messageID, text)
	edit.ReplyMarkup = markup
	if html {
		edit.ParseMode = tgbotapi.ModeHTML
	}
	b.send(req, edit)
}

func (b *Bot) editMarkup(req *request, markup tgbotapi.InlineKeyboardMarkup) {
	if req.messageID == 0 {
		return
	}
	b.send(req, tgbotapi.NewEditMessageReplyMarkup(req.chatID, req.messageID, markup))
}

// answer acknowledges the pressed button, optionally with a toast.
func (b *Bot) answer(req *request, text string) {
	if req.callbackID == "" || req.answered {
		return
	}
	req.answered = true
	b.answerQuery(req.callbackID, text)
}

func (b *Bot) answerQuery(id, text string) {
	if _, err := b.api.AnswerCallbackQuery(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Error("failed to answer callback", "error", err)
	}
}
