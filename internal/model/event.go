package model

import "time"

// Event is a calendar event extracted from a chat message or created
// manually via the dashboard.
//
// UserID is empty for "orphan" events — ingestion may fail to resolve an
// owning user from the message author or the channel's watchers, and we
// store the event anyway rather than drop it.
//
// ExternalCalendarID is the one mutable field: when the optional Google
// Calendar backfill succeeds it records the remote event ID. Everything
// else is immutable after creation; events are deleted, never edited.
type Event struct {
	ID                 string     `json:"id"                 db:"id"`
	UserID             string     `json:"userId,omitempty"   db:"user_id"`
	Title              string     `json:"title"              db:"title"`
	Description        string     `json:"description"        db:"description"`
	Location           string     `json:"location"           db:"location"`
	StartTime          time.Time  `json:"startTime"          db:"start_time"`
	EndTime            time.Time  `json:"endTime"            db:"end_time"`
	SourceURL          string     `json:"sourceUrl"          db:"source_url"`
	ExternalCalendarID string     `json:"externalCalendarId" db:"external_calendar_id"`
	CreatedAt          time.Time  `json:"createdAt"          db:"created_at"`
	Reminders          []Reminder `json:"reminders"`
}

// Reminder is a notification offset attached to an event: fire Offset
// before StartTime, displaying Description.
type Reminder struct {
	Offset      time.Duration `json:"offset"`
	Description string        `json:"description"`
}
