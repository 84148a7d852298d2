package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/calsync/calsync/internal/apperror"
	"github.com/calsync/calsync/internal/model"
	"github.com/calsync/calsync/internal/repository"
)

// compile-time check that *DB implements repository.EventRepository
var _ repository.EventRepository = (*DB)(nil)

// CreateEvent inserts an event and its reminder rows.
//
// The event's UserID may be empty (orphan event) — we store NULL so the
// foreign key stays satisfied. ID and CreatedAt are filled in here, same
// contract as the user insert: the caller's struct holds the canonical
// record afterwards.
func (db *DB) CreateEvent(ctx context.Context, event *model.Event) error {
	event.ID = xid.New().String()
	event.CreatedAt = time.Now()

	var userID sql.NullString
	if event.UserID != "" {
		userID = sql.NullString{String: event.UserID, Valid: true}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO events (id, user_id, title, description, location,
		                     start_time, end_time, source_url, external_calendar_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		userID,
		event.Title,
		event.Description,
		event.Location,
		event.StartTime,
		event.EndTime,
		event.SourceURL,
		event.ExternalCalendarID,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating event: %w", err)
	}

	for _, r := range event.Reminders {
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO reminders (event_id, offset_seconds, description)
			 VALUES (?, ?, ?)`,
			event.ID, int64(r.Offset.Seconds()), r.Description,
		)
		if err != nil {
			return fmt.Errorf("sqlite: creating reminder for event %s: %w", event.ID, err)
		}
	}

	return nil
}

// GetEvent returns one event by ID with its reminders attached.
func (db *DB) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var e model.Event
	var owner sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, title, description, location,
		        start_time, end_time, source_url, external_calendar_id, created_at
		 FROM events WHERE id = ?`,
		id,
	).Scan(
		&e.ID, &owner, &e.Title, &e.Description, &e.Location,
		&e.StartTime, &e.EndTime, &e.SourceURL, &e.ExternalCalendarID, &e.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.NotFound("event", id)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting event %s: %w", id, err)
	}
	e.UserID = owner.String

	reminders, err := db.listReminders(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	e.Reminders = reminders

	return &e, nil
}

// ListEvents returns events ordered by start time ascending, with their
// reminders attached. An empty userID returns all events.
func (db *DB) ListEvents(ctx context.Context, userID string) ([]model.Event, error) {
	query := `SELECT id, user_id, title, description, location,
	                 start_time, end_time, source_url, external_calendar_id, created_at
	          FROM events`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY start_time ASC`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing events: %w", err)
	}
	defer rows.Close()

	events := []model.Event{}
	for rows.Next() {
		var e model.Event
		var owner sql.NullString
		if err := rows.Scan(
			&e.ID, &owner, &e.Title, &e.Description, &e.Location,
			&e.StartTime, &e.EndTime, &e.SourceURL, &e.ExternalCalendarID, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning event row: %w", err)
		}
		e.UserID = owner.String
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating events: %w", err)
	}

	for i := range events {
		reminders, err := db.listReminders(ctx, events[i].ID)
		if err != nil {
			return nil, err
		}
		events[i].Reminders = reminders
	}

	return events, nil
}

// DeleteEvent removes an event by ID. Reminder rows cascade.
// Returns apperror.ErrNotFound when the event doesn't exist.
func (db *DB) DeleteEvent(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM events WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting event %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("event", id)
	}

	return nil
}

// SetExternalCalendarID records the remote calendar event ID after a
// successful external sync. Best-effort caller: a NotFound here means the
// event was deleted in the meantime, which the sync just logs.
func (db *DB) SetExternalCalendarID(ctx context.Context, id, externalID string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE events SET external_calendar_id = ? WHERE id = ?`,
		externalID, id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: backfilling external id for event %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("event", id)
	}

	return nil
}

func (db *DB) listReminders(ctx context.Context, eventID string) ([]model.Reminder, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT offset_seconds, description FROM reminders
		 WHERE event_id = ?
		 ORDER BY offset_seconds DESC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing reminders for event %s: %w", eventID, err)
	}
	defer rows.Close()

	reminders := []model.Reminder{}
	for rows.Next() {
		var seconds int64
		var r model.Reminder
		if err := rows.Scan(&seconds, &r.Description); err != nil {
			return nil, fmt.Errorf("sqlite: scanning reminder row: %w", err)
		}
		r.Offset = time.Duration(seconds) * time.Second
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating reminders: %w", err)
	}

	return reminders, nil
}
