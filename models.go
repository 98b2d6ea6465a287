package main

import "time"

// Event represents a scheduled event owned by a chat.
type Event struct {
	ID          int64     // ID is the unique identifier for the event.
	ChatID      int64     // ChatID is the chat the event was scheduled in.
	Title       string    // Title is the event name.
	Description string    // Description is optional free text.
	Date        time.Time // Date is the calendar day of the event.
	Time        string    // Time is the start time in HH:MM, 24h.
	Location    string    // Location is optional free text.
}

// EventDraft holds the fields collected while scheduling an event.
type EventDraft struct {
	ChatID      int64  `validate:"required"`
	Title       string `validate:"required"`
	Description string
	Date        time.Time `validate:"required"`
	Time        string    `validate:"required,len=5"`
	Location    string
}

// EventWithApplicants extends Event with the usernames that applied to it
type EventWithApplicants struct {
	Event               // Embedded Event
	Applicants []string // Applicants sorted lexicographically
}
