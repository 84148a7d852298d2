package repository

import (
	"context"

	"github.com/calsync/calsync/internal/model"
)

// UserRepository manages user accounts keyed by chat-platform identity.
type UserRepository interface {
	// EnsureUser looks a user up by platform ID, creating the account (with
	// a fresh calendar token) if it does not exist. Idempotent: repeated
	// calls with the same platform ID return the same record and token.
	EnsureUser(ctx context.Context, platformID, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByPlatformID(ctx context.Context, platformID string) (*model.User, error)
	GetUserByCalendarToken(ctx context.Context, token string) (*model.User, error)
}

// WatchRepository manages channel-watch subscriptions.
type WatchRepository interface {
	// AddWatch inserts a (channel, user) watch row. Returns applied=false
	// when the pair already exists — callers message "already watching"
	// instead of treating the duplicate as an error.
	AddWatch(ctx context.Context, communityID, channelID, channelName, userID string) (applied bool, err error)
	RemoveWatch(ctx context.Context, channelID, userID string) error
	ListWatchesForUser(ctx context.Context, userID string) ([]model.WatchedChannel, error)
	ListWatchersForChannel(ctx context.Context, channelID string) ([]string, error)
	IsChannelWatched(ctx context.Context, channelID string) (bool, error)
}

// EventRepository manages persisted calendar events and their reminders.
type EventRepository interface {
	CreateEvent(ctx context.Context, event *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	// ListEvents returns events ordered by start time ascending. An empty
	// userID returns every event (the unfiltered admin/demo view).
	ListEvents(ctx context.Context, userID string) ([]model.Event, error)
	DeleteEvent(ctx context.Context, id string) error
	// SetExternalCalendarID backfills the remote calendar ID after a
	// successful external sync. The only update path on events.
	SetExternalCalendarID(ctx context.Context, id, externalID string) error
}
