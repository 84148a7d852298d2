package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/calsync/calsync/internal/apperror"
	"github.com/calsync/calsync/internal/model"
	"github.com/calsync/calsync/internal/repository"
)

// compile-time check that *DB implements repository.WatchRepository
var _ repository.WatchRepository = (*DB)(nil)

// AddWatch subscribes a user to a channel.
//
// INSERT OR IGNORE leans on UNIQUE(channel_id, user_id): the duplicate row
// is silently skipped and RowsAffected tells us whether anything was
// applied. Two watch commands racing on the same pair both succeed, one
// with applied=false — concurrency control is entirely the constraint's.
func (db *DB) AddWatch(ctx context.Context, communityID, channelID, channelName, userID string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO watched_channels (id, community_id, channel_id, channel_name, user_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		xid.New().String(), communityID, channelID, channelName, userID, time.Now(),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: adding watch (channel=%s user=%s): %w", channelID, userID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// RemoveWatch deletes a user's subscription to a channel.
// Returns apperror.ErrNotFound when the user wasn't watching it.
func (db *DB) RemoveWatch(ctx context.Context, channelID, userID string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM watched_channels WHERE channel_id = ? AND user_id = ?`,
		channelID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing watch (channel=%s user=%s): %w", channelID, userID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("watch", channelID)
	}

	return nil
}

// ListWatchesForUser returns every channel the user watches.
func (db *DB) ListWatchesForUser(ctx context.Context, userID string) ([]model.WatchedChannel, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, community_id, channel_id, channel_name, user_id, created_at
		 FROM watched_channels
		 WHERE user_id = ?
		 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing watches for user %s: %w", userID, err)
	}
	defer rows.Close()

	watches := []model.WatchedChannel{}
	for rows.Next() {
		var w model.WatchedChannel
		if err := rows.Scan(
			&w.ID, &w.CommunityID, &w.ChannelID, &w.ChannelName,
			&w.UserID, &w.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning watch row: %w", err)
		}
		watches = append(watches, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating watches: %w", err)
	}

	return watches, nil
}

// ListWatchersForChannel returns the internal IDs of every user watching
// the channel, earliest subscriber first. Ingestion uses the ordering to
// pick a deterministic owner when the message author can't be resolved.
func (db *DB) ListWatchersForChannel(ctx context.Context, channelID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id FROM watched_channels
		 WHERE channel_id = ?
		 ORDER BY created_at ASC`,
		channelID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing watchers for channel %s: %w", channelID, err)
	}
	defer rows.Close()

	userIDs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning watcher row: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating watchers: %w", err)
	}

	return userIDs, nil
}

// IsChannelWatched reports whether any user watches the channel. The bot
// calls this for every message; unwatched channels are dropped before any
// extraction happens.
func (db *DB) IsChannelWatched(ctx context.Context, channelID string) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM watched_channels WHERE channel_id = ? LIMIT 1`,
		channelID,
	).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("sqlite: checking channel %s: %w", channelID, err)
	}

	return true, nil
}
