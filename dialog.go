package main

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DialogState represents the current state of a user's dialog with the bot
type DialogState int

const (
	NoDialog DialogState = iota
	AwaitingTitle
	AwaitingDescription
	AwaitingDate
	AwaitingTime
	AwaitingLocation
	AwaitingEventChoice
	AwaitingConfirmation
	AwaitingAdminChoice
)

func (s DialogState) String() string {
	switch s {
	case AwaitingTitle:
		return "awaiting_title"
	case AwaitingDescription:
		return "awaiting_description"
	case AwaitingDate:
		return "awaiting_date"
	case AwaitingTime:
		return "awaiting_time"
	case AwaitingLocation:
		return "awaiting_location"
	case AwaitingEventChoice:
		return "awaiting_event_choice"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case AwaitingAdminChoice:
		return "awaiting_admin_choice"
	default:
		return "none"
	}
}

// InputKind classifies what the user sent while a dialog is active.
type InputKind int

const (
	InputText InputKind = iota
	InputDay
	InputMonthShift
	InputIgnore
	InputEventChoice
	InputConfirm
	InputAbort
	InputAdminChoice
)

// Input is one user reply routed to the active dialog.
type Input struct {
	Kind   InputKind
	Text   string
	Action Action
}

// inputFromAction maps a decoded button press onto a dialog input.
// Stateless actions (menu, apply, withdraw) report ok == false.
func inputFromAction(a Action) (Input, bool) {
	var kind InputKind
	switch a.Kind {
	case ActionDay:
		kind = InputDay
	case ActionPrevMonth, ActionNextMonth:
		kind = InputMonthShift
	case ActionIgnore:
		kind = InputIgnore
	case ActionChooseEvent:
		kind = InputEventChoice
	case ActionConfirmDelete:
		kind = InputConfirm
	case ActionAbortDelete:
		kind = InputAbort
	case ActionChooseAdmin:
		kind = InputAdminChoice
	default:
		return Input{}, false
	}
	return Input{Kind: kind, Action: a}, true
}

// Session stores the dialog state for a user in a chat
type Session struct {
	ID            uuid.UUID
	State         DialogState
	Draft         EventDraft
	CursorYear    int
	CursorMonth   time.Month
	PendingDelete int64

	touched time.Time
}

type sessionKey struct {
	chatID int64
	userID int
}

// SessionStore keeps in-flight dialogs in memory. Idle sessions expire after ttl;
// a zero ttl keeps them until completion, cancellation or restart.
type SessionStore struct {
	sessions map[sessionKey]*Session
	clock    Clock
	ttl      time.Duration
	mu       sync.Mutex
}

// NewSessionStore creates a new SessionStore
func NewSessionStore(clock Clock, ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[sessionKey]*Session),
		clock:    clock,
		ttl:      ttl,
	}
}

// Start begins a new dialog, discarding any previous one for the same key.
func (s *SessionStore) Start(key sessionKey, state DialogState) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &Session{
		ID:      uuid.New(),
		State:   state,
		touched: s.clock.Now(),
	}
	s.sessions[key] = sess
	return sess
}

// Get returns the live session for key and refreshes its idle timer.
func (s *SessionStore) Get(key sessionKey) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[key]
	if !ok {
		return nil, false
	}
	now := s.clock.Now()
	if s.expired(sess, now) {
		delete(s.sessions, key)
		return nil, false
	}
	sess.touched = now
	return sess, true
}

// Clear ends the dialog for key
func (s *SessionStore) Clear(key sessionKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, key)
}

// Sweep drops expired sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	removed := 0
	for key, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of sessions held, expired or not.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.touched) > s.ttl
}

var timeRegex = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// ValidateTime checks a strict 24h HH:MM value
func ValidateTime(s string) error {
	if !timeRegex.MatchString(s) {
		return ErrInvalidTime
	}
	return nil
}

// optionalText treats a lone "-" as an empty value
func optionalText(s string) string {
	s = strings.TrimSpace(s)
	if s == "-" {
		return ""
	}
	return s
}

type transitionKey struct {
	state DialogState
	input InputKind
}

type stepFunc func(b *Bot, req *request, sess *Session, in Input)

// dialogTransitions returns the transition table. Inputs missing from it are
// handled by the state's fallback or answered with a hint.
func dialogTransitions() map[transitionKey]stepFunc {
	return map[transitionKey]stepFunc{
		{AwaitingTitle, InputText}:       (*Bot).receiveTitle,
		{AwaitingDescription, InputText}: (*Bot).receiveDescription,
		{AwaitingDate, InputDay}:         (*Bot).receiveDate,
		{AwaitingDate, InputMonthShift}:  (*Bot).shiftCalendar,
		{AwaitingDate, InputIgnore}:      (*Bot).redrawCalendar,
		{AwaitingTime, InputText}:        (*Bot).receiveTime,
		{AwaitingLocation, InputText}:    (*Bot).receiveLocation,

		{AwaitingEventChoice, InputEventChoice}: (*Bot).chooseEventToDelete,
		{AwaitingConfirmation, InputConfirm}:    (*Bot).confirmDelete,

		{AwaitingAdminChoice, InputAdminChoice}: (*Bot).chooseAdminToRemove,
	}
}

// dialogFallbacks handle any input without an explicit transition.
func dialogFallbacks() map[DialogState]stepFunc {
	return map[DialogState]stepFunc{
		AwaitingConfirmation: (*Bot).abortDelete,
	}
}
