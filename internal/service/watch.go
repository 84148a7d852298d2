package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/calsync/calsync/internal/apperror"
	"github.com/calsync/calsync/internal/model"
	"github.com/calsync/calsync/internal/repository"
)

// WatchService manages channel-watch subscriptions on behalf of the bot.
//
// The bot only knows platform identities, so every operation here starts by
// resolving (or creating) the internal user record — a user running /watch
// before ever logging in to the dashboard still gets an account and a
// calendar token.
type WatchService struct {
	users   repository.UserRepository
	watches repository.WatchRepository
	logger  *slog.Logger
}

// NewWatchService creates a WatchService.
func NewWatchService(users repository.UserRepository, watches repository.WatchRepository, logger *slog.Logger) *WatchService {
	return &WatchService{
		users:   users,
		watches: watches,
		logger:  logger,
	}
}

// WatchResult tells the bot whether the subscription was newly applied and
// where the user's calendar feed lives.
type WatchResult struct {
	Applied bool
	User    *model.User
}

// Watch subscribes the platform user to a channel. Applied=false means the
// user was already watching it — the bot replies "already watching" rather
// than erroring.
func (s *WatchService) Watch(ctx context.Context, communityID, channelID, channelName, platformID, username string) (*WatchResult, error) {
	if strings.TrimSpace(channelID) == "" {
		return nil, apperror.ValidationFailed("channel_id", "channel_id is required")
	}
	if strings.TrimSpace(platformID) == "" {
		return nil, apperror.ValidationFailed("platform_id", "platform_id is required")
	}

	user, err := s.users.EnsureUser(ctx, platformID, username)
	if err != nil {
		return nil, fmt.Errorf("service/watch: ensuring user: %w", err)
	}

	applied, err := s.watches.AddWatch(ctx, communityID, channelID, channelName, user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/watch: adding watch: %w", err)
	}

	s.logger.Info("watch requested",
		slog.String("channelID", channelID),
		slog.String("userID", user.ID),
		slog.Bool("applied", applied),
	)

	return &WatchResult{Applied: applied, User: user}, nil
}

// Unwatch removes the platform user's subscription to a channel.
func (s *WatchService) Unwatch(ctx context.Context, channelID, platformID string) error {
	user, err := s.users.GetUserByPlatformID(ctx, platformID)
	if err != nil {
		return err
	}

	if err := s.watches.RemoveWatch(ctx, channelID, user.ID); err != nil {
		return err
	}

	s.logger.Info("watch removed",
		slog.String("channelID", channelID),
		slog.String("userID", user.ID),
	)
	return nil
}

// ListChannels returns the channels the platform user watches, creating the
// account if needed (a /list before any /watch is valid).
func (s *WatchService) ListChannels(ctx context.Context, platformID, username string) (*model.User, []model.WatchedChannel, error) {
	user, err := s.users.EnsureUser(ctx, platformID, username)
	if err != nil {
		return nil, nil, fmt.Errorf("service/watch: ensuring user: %w", err)
	}

	watches, err := s.watches.ListWatchesForUser(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("service/watch: listing watches: %w", err)
	}

	return user, watches, nil
}

// IsChannelWatched reports whether anyone watches the channel. The bot
// calls this before forwarding a message to ingestion.
func (s *WatchService) IsChannelWatched(ctx context.Context, channelID string) (bool, error) {
	return s.watches.IsChannelWatched(ctx, channelID)
}
