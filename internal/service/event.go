package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calsync/calsync/internal/apperror"
	"github.com/calsync/calsync/internal/extract"
	"github.com/calsync/calsync/internal/model"
	"github.com/calsync/calsync/internal/repository"
)

// DefaultEventDuration is applied when no end time is known: an event ends
// one hour after it starts.
const DefaultEventDuration = time.Hour

// Extractor is the slice of the extraction client the event service needs.
// Satisfied by *extract.Extractor; tests inject fakes.
type Extractor interface {
	Extract(ctx context.Context, text string, ec extract.Context) (*extract.ExtractedEvent, error)
	ExtractFromURL(ctx context.Context, url string, ec extract.Context) (*extract.ExtractedEvent, error)
}

// CalendarSyncer mirrors stored events to an external calendar. Insert
// returns the remote event ID; Delete removes the remote copy. Satisfied by
// *gcal.Client.
type CalendarSyncer interface {
	Insert(ctx context.Context, event *model.Event) (string, error)
	Delete(ctx context.Context, externalID string) error
}

// EventService owns event creation, listing, deletion, and the ingestion
// flow from chat messages.
//
// extractor and syncer are optional: a nil extractor makes Ingest report
// extraction as unavailable, and a nil syncer skips the external-calendar
// backfill. Both mirror how the server degrades when the corresponding
// credentials are missing at startup.
type EventService struct {
	users     repository.UserRepository
	watches   repository.WatchRepository
	events    repository.EventRepository
	extractor Extractor
	syncer    CalendarSyncer
	logger    *slog.Logger
}

// NewEventService creates an EventService.
func NewEventService(
	users repository.UserRepository,
	watches repository.WatchRepository,
	events repository.EventRepository,
	extractor Extractor,
	syncer CalendarSyncer,
	logger *slog.Logger,
) *EventService {
	return &EventService{
		users:     users,
		watches:   watches,
		events:    events,
		extractor: extractor,
		syncer:    syncer,
		logger:    logger,
	}
}

// AddEventInput carries the fields of a new event. OwnerPlatformID is
// optional; an unresolvable owner produces an orphan event, not an error.
type AddEventInput struct {
	OwnerPlatformID string
	OwnerUserID     string // already-resolved internal ID wins over the platform ID
	Title           string
	Description     string
	Location        string
	Start           time.Time
	End             time.Time // zero means "default to Start + 1h"
	SourceURL       string
	Reminders       []model.Reminder
}

// Add validates and stores a new event, then best-effort syncs it to the
// external calendar.
func (s *EventService) Add(ctx context.Context, in AddEventInput) (*model.Event, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, apperror.ValidationFailed("title", "event title is required")
	}
	if in.Start.IsZero() {
		return nil, apperror.ValidationFailed("start_time", "event start time is required")
	}
	if in.End.IsZero() {
		in.End = in.Start.Add(DefaultEventDuration)
	}

	ownerID := in.OwnerUserID
	if ownerID == "" && in.OwnerPlatformID != "" {
		user, err := s.users.GetUserByPlatformID(ctx, in.OwnerPlatformID)
		switch {
		case err == nil:
			ownerID = user.ID
		case errors.Is(err, apperror.ErrNotFound):
			// Store the event ownerless instead of failing the write.
			s.logger.Warn("event owner could not be resolved, storing orphan event",
				slog.String("platformID", in.OwnerPlatformID),
				slog.String("title", in.Title),
			)
		default:
			return nil, fmt.Errorf("service/event: resolving owner: %w", err)
		}
	}

	event := &model.Event{
		UserID:      ownerID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Location:    strings.TrimSpace(in.Location),
		StartTime:   in.Start,
		EndTime:     in.End,
		SourceURL:   in.SourceURL,
		Reminders:   in.Reminders,
	}

	if err := s.events.CreateEvent(ctx, event); err != nil {
		s.logger.Error("failed to create event",
			slog.String("title", in.Title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/event: creating event: %w", err)
	}

	s.logger.Info("event created",
		slog.String("id", event.ID),
		slog.String("title", event.Title),
		slog.String("ownerID", ownerID),
	)

	s.backfillExternalID(ctx, event)

	return event, nil
}

// backfillExternalID pushes the event to the external calendar and records
// the remote ID. Strictly best-effort: every failure is logged and dropped.
func (s *EventService) backfillExternalID(ctx context.Context, event *model.Event) {
	if s.syncer == nil {
		return
	}

	externalID, err := s.syncer.Insert(ctx, event)
	if err != nil {
		s.logger.Warn("external calendar sync failed",
			slog.String("eventID", event.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	if err := s.events.SetExternalCalendarID(ctx, event.ID, externalID); err != nil {
		s.logger.Warn("external calendar id backfill failed",
			slog.String("eventID", event.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	event.ExternalCalendarID = externalID
}

// List returns events ordered by start time. A platform ID filters to that
// owner; empty returns everything (the admin/demo view).
func (s *EventService) List(ctx context.Context, ownerPlatformID string) ([]model.Event, error) {
	userID := ""
	if ownerPlatformID != "" {
		user, err := s.users.GetUserByPlatformID(ctx, ownerPlatformID)
		if err != nil {
			return nil, err
		}
		userID = user.ID
	}

	events, err := s.events.ListEvents(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list events", slog.String("error", err.Error()))
		return nil, fmt.Errorf("service/event: listing events: %w", err)
	}

	return events, nil
}

// ListForUser returns the events owned by an internal user ID.
func (s *EventService) ListForUser(ctx context.Context, userID string) ([]model.Event, error) {
	events, err := s.events.ListEvents(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/event: listing events: %w", err)
	}
	return events, nil
}

// Delete removes an event by ID, including its copy in the external
// calendar when one was synced. The remote delete is best-effort, same as
// the insert on the way in.
func (s *EventService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "event ID is required")
	}

	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return err
	}

	if err := s.events.DeleteEvent(ctx, id); err != nil {
		return err
	}

	if s.syncer != nil && event.ExternalCalendarID != "" {
		if err := s.syncer.Delete(ctx, event.ExternalCalendarID); err != nil {
			s.logger.Warn("external calendar delete failed",
				slog.String("eventID", id),
				slog.String("externalID", event.ExternalCalendarID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("event deleted", slog.String("id", id))
	return nil
}
