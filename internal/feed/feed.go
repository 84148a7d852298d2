// Package feed renders a user's events as an iCalendar document.
//
// The feed URL embeds the user's calendar token; possession of the token is
// the entire authorization model. External calendar clients poll the URL,
// so the output must be a syntactically valid VCALENDAR even when the user
// has no events — an empty-but-valid document keeps subscriptions alive.
package feed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/emersion/go-ical"

	"github.com/calsync/calsync/internal/model"
	"github.com/calsync/calsync/internal/repository"
)

const prodID = "-//calsync//EN"

// Generator builds per-user iCalendar feeds.
type Generator struct {
	users  repository.UserRepository
	events repository.EventRepository
	logger *slog.Logger
}

// NewGenerator creates a feed Generator.
func NewGenerator(users repository.UserRepository, events repository.EventRepository, logger *slog.Logger) *Generator {
	return &Generator{
		users:  users,
		events: events,
		logger: logger,
	}
}

// Generate resolves the user by calendar token and renders their events.
// Returns apperror.ErrNotFound (wrapped) for an unrecognized token.
func (g *Generator) Generate(ctx context.Context, token string) ([]byte, error) {
	user, err := g.users.GetUserByCalendarToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("feed: resolving token: %w", err)
	}

	events, err := g.events.ListEvents(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("feed: loading events for user %s: %w", user.ID, err)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)

	for i := range events {
		cal.Children = append(cal.Children, toVEvent(&events[i]))
	}

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("feed: encoding calendar for user %s: %w", user.ID, err)
	}

	g.logger.Debug("calendar feed generated",
		slog.String("userID", user.ID),
		slog.Int("events", len(events)),
	)

	return buf.Bytes(), nil
}

// toVEvent maps a stored event to a VEVENT with one VALARM per reminder.
// Timestamps are written as stored — no timezone conversion beyond what the
// stored value already encodes.
func toVEvent(event *model.Event) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, event.ID)
	ve.Props.SetText(ical.PropSummary, event.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, event.CreatedAt.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, event.StartTime)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, event.EndTime)

	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		ve.Props.SetText(ical.PropLocation, event.Location)
	}
	if event.SourceURL != "" {
		ve.Props.SetText(ical.PropURL, event.SourceURL)
	}

	for _, r := range event.Reminders {
		ve.Children = append(ve.Children, toVAlarm(r))
	}

	return ve
}

// toVAlarm renders a reminder as a display alarm with a relative negative
// trigger ("-P14D" means 14 days before the event start).
func toVAlarm(r model.Reminder) *ical.Component {
	va := ical.NewComponent(ical.CompAlarm)
	va.Props.SetText(ical.PropAction, "DISPLAY")
	va.Props.SetText(ical.PropDescription, r.Description)

	// DURATION is the default value type for TRIGGER, so the bare value
	// suffices; a leading minus means "before the event start".
	trigger := ical.NewProp(ical.PropTrigger)
	trigger.Value = "-" + formatDuration(r.Offset)
	va.Props.Set(trigger)

	return va
}

// formatDuration renders a positive duration in RFC 5545 form (P1D, PT1H30M).
func formatDuration(d time.Duration) string {
	total := int64(d.Seconds())
	days := total / 86400
	total %= 86400
	hours := total / 3600
	total %= 3600
	minutes := total / 60
	seconds := total % 60

	out := "P"
	if days > 0 {
		out += fmt.Sprintf("%dD", days)
	}
	if hours > 0 || minutes > 0 || seconds > 0 {
		out += "T"
		if hours > 0 {
			out += fmt.Sprintf("%dH", hours)
		}
		if minutes > 0 {
			out += fmt.Sprintf("%dM", minutes)
		}
		if seconds > 0 {
			out += fmt.Sprintf("%dS", seconds)
		}
	}
	if out == "P" {
		out = "PT0S"
	}
	return out
}
