package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ActionKind identifies what an inline button does.
type ActionKind int

const (
	ActionIgnore ActionKind = iota
	ActionSchedule
	ActionShow
	ActionDeleteMenu
	ActionDay
	ActionPrevMonth
	ActionNextMonth
	ActionApply
	ActionWithdraw
	ActionChooseEvent
	ActionConfirmDelete
	ActionAbortDelete
	ActionChooseAdmin
)

// Action is a decoded callback payload.
type Action struct {
	Kind    ActionKind
	Date    time.Time // ActionDay
	EventID int64     // ActionApply, ActionWithdraw, ActionChooseEvent
	Admin   string    // ActionChooseAdmin
}

// String encodes the action as callback data. Telegram limits it to 64 bytes.
func (a Action) String() string {
	switch a.Kind {
	case ActionSchedule:
		return "schedule"
	case ActionShow:
		return "show"
	case ActionDeleteMenu:
		return "delete"
	case ActionDay:
		return "day:" + a.Date.Format(dateLayout)
	case ActionPrevMonth:
		return "cal:prev"
	case ActionNextMonth:
		return "cal:next"
	case ActionApply:
		return "apply:" + strconv.FormatInt(a.EventID, 10)
	case ActionWithdraw:
		return "withdraw:" + strconv.FormatInt(a.EventID, 10)
	case ActionChooseEvent:
		return "del:" + strconv.FormatInt(a.EventID, 10)
	case ActionConfirmDelete:
		return "confirm_delete"
	case ActionAbortDelete:
		return "cancel_delete"
	case ActionChooseAdmin:
		return "rm_admin:" + a.Admin
	default:
		return "cal:ignore"
	}
}

// ParseAction decodes callback data produced by Action.String.
func ParseAction(data string) (Action, error) {
	switch data {
	case "schedule":
		return Action{Kind: ActionSchedule}, nil
	case "show":
		return Action{Kind: ActionShow}, nil
	case "delete":
		return Action{Kind: ActionDeleteMenu}, nil
	case "cal:prev":
		return Action{Kind: ActionPrevMonth}, nil
	case "cal:next":
		return Action{Kind: ActionNextMonth}, nil
	case "cal:ignore":
		return Action{Kind: ActionIgnore}, nil
	case "confirm_delete":
		return Action{Kind: ActionConfirmDelete}, nil
	case "cancel_delete":
		return Action{Kind: ActionAbortDelete}, nil
	}

	prefix, value, ok := strings.Cut(data, ":")
	if !ok || value == "" {
		return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, data)
	}

	switch prefix {
	case "day":
		date, err := time.Parse(dateLayout, value)
		if err != nil {
			return Action{}, fmt.Errorf("%w: bad date %q", ErrUnknownAction, value)
		}
		return Action{Kind: ActionDay, Date: date}, nil
	case "apply", "withdraw", "del":
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return Action{}, fmt.Errorf("%w: bad event id %q", ErrUnknownAction, value)
		}
		kind := map[string]ActionKind{
			"apply":    ActionApply,
			"withdraw": ActionWithdraw,
			"del":      ActionChooseEvent,
		}[prefix]
		return Action{Kind: kind, EventID: id}, nil
	case "rm_admin":
		return Action{Kind: ActionChooseAdmin, Admin: value}, nil
	}
	return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, data)
}
