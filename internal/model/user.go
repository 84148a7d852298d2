// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents an account created from a chat-platform identity.
//
// Users are created implicitly on first interaction (a watch command or a
// dashboard login) and keyed by the platform's user ID. We still generate our
// own internal string ID (xid) so primary keys aren't tied to a third-party's
// numbering scheme; the platform ID stays a unique lookup key.
//
// CalendarToken is an opaque, unguessable identifier that grants read access
// to this user's iCalendar feed. It is issued once at creation and never
// rotated — calendar clients subscribe to the URL containing it.
type User struct {
	ID            string    `json:"id"            db:"id"`
	PlatformID    string    `json:"platformId"    db:"platform_id"` // chat-platform user ID
	Username      string    `json:"username"      db:"username"`
	CalendarToken string    `json:"calendarToken" db:"calendar_token"`
	CreatedAt     time.Time `json:"createdAt"     db:"created_at"`
}
