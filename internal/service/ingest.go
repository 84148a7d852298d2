package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/calsync/calsync/internal/apperror"
	"github.com/calsync/calsync/internal/extract"
	"github.com/calsync/calsync/internal/model"
)

// IngestInput is the payload the bot forwards for a message seen in a
// watched channel. SourceURL is the first http(s) link the bot spotted, if
// any. AuthorPlatformID may be empty on older bot builds.
type IngestInput struct {
	Text             string
	SourceURL        string
	ChannelID        string
	CommunityID      string
	AuthorName       string
	AuthorPlatformID string
}

// IngestResult reports the outcome back to the bot. Success=false with a
// Message is the normal "no event detected" path, not an error.
type IngestResult struct {
	Success bool
	Message string
	Event   *model.Event
}

var notAnEvent = &IngestResult{Success: false, Message: "No event detected."}

// Ingest runs one chat message through extraction and, when an event comes
// out, persists it.
//
// Extraction failures (model down, unreachable URL, malformed output) are
// per-message and non-fatal: they degrade to the same "no event detected"
// answer the bot gets for small talk, with the cause logged server-side.
// There is no retry and no queue — a dropped message is lost.
func (s *EventService) Ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	if s.extractor == nil {
		return nil, apperror.Unavailable("event extraction")
	}

	ec := extract.Context{SourceURL: in.SourceURL, Now: time.Now()}

	var (
		extracted *extract.ExtractedEvent
		err       error
	)
	if in.SourceURL != "" {
		extracted, err = s.extractor.ExtractFromURL(ctx, in.SourceURL, ec)
	} else {
		extracted, err = s.extractor.Extract(ctx, in.Text, ec)
	}
	if err != nil {
		s.logger.Warn("extraction failed",
			slog.String("channelID", in.ChannelID),
			slog.String("error", err.Error()),
		)
		return notAnEvent, nil
	}
	if extracted == nil {
		return notAnEvent, nil
	}

	event, err := s.Add(ctx, AddEventInput{
		OwnerUserID: s.resolveIngestOwner(ctx, in),
		Title:       extracted.Title,
		Description: extracted.Description,
		Location:    extracted.Location,
		Start:       extracted.Start,
		End:         extracted.End, // zero end defaults inside Add
		SourceURL:   extracted.SourceURL,
		Reminders:   extracted.Reminders,
	})
	if err != nil {
		return nil, err
	}

	return &IngestResult{Success: true, Event: event}, nil
}

// resolveIngestOwner decides which user owns an ingested event: the message
// author when we know them, otherwise the channel's earliest watcher. An
// empty return means the event is stored as an orphan.
func (s *EventService) resolveIngestOwner(ctx context.Context, in IngestInput) string {
	if in.AuthorPlatformID != "" {
		user, err := s.users.GetUserByPlatformID(ctx, in.AuthorPlatformID)
		if err == nil {
			return user.ID
		}
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Warn("author lookup failed",
				slog.String("platformID", in.AuthorPlatformID),
				slog.String("error", err.Error()),
			)
		}
	}

	watchers, err := s.watches.ListWatchersForChannel(ctx, in.ChannelID)
	if err != nil {
		s.logger.Warn("watcher lookup failed",
			slog.String("channelID", in.ChannelID),
			slog.String("error", err.Error()),
		)
		return ""
	}
	if len(watchers) == 0 {
		s.logger.Warn("no owner resolved for ingested event, storing orphan",
			slog.String("channelID", in.ChannelID),
			slog.String("author", in.AuthorName),
		)
		return ""
	}

	return watchers[0]
}
